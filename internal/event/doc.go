// Package event defines the data model of the pipeline: raw listings as
// scraped, normalized events, persisted canonical records, and the
// Monday-to-Sunday week identifiers that scope a scrape cycle.
//
// The canonical identity of an event is (NormalizedTitle, StartTime, Location).
// StartTime is always a minute-precision civil time ("2006-01-02T15:04").
package event
