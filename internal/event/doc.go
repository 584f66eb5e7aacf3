// Package event holds the domain model for monitored chess events: the
// date-normalization logic that turns the site's free-text date strings into
// ordered calendar-day sets, the snapshot and participant types, and the
// roster/detail diff that detects registrations and withdrawals between two
// checks of the same event.
package event
