// Package storage persists event snapshots as one JSON file per event id
// under a data directory, with atomic overwrites and best-effort expiry
// cleanup of events whose dates have all passed.
package storage
