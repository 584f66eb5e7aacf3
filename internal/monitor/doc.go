// Package monitor orchestrates a monitoring run: event discovery, keyword
// filtering, per-event fetch/diff/store, report emission to the configured
// notifiers, and expiry cleanup of stored snapshots.
package monitor
