// Package storage persists canonical event records and per-source scraping logs.
//
// Two backends share the Backend interface: FileBackend keeps a single
// events.json document under the data directory (default
// ~/.local/share/weekly-events/), and PostgresBackend stores rows through gorm.
// Both enforce uniqueness of (normalized title, start time, location) and
// implement upsert without discarding enrichment that a caller did not replace.
package storage
