// Package dedup detects duplicate postings of the same real-world event.
//
// Batch is a per-run pre-filter keyed on URL and on title, hour and location.
// Deduplicator checks a single event against the canonical store through an
// ordered chain of strategies (exact identity, then fuzzy title similarity
// within a location and time window) and stops at the first match.
package dedup
