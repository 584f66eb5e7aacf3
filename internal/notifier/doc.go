// Package notifier delivers run reports to their destinations: the console,
// SMTP email, a Telegram chat, or a summary tweet. Delivery failures are
// surfaced as SendError and never fail the monitoring run itself.
package notifier
