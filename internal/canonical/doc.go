// Package canonical is the canonical event store used by the pipeline and by
// reporting collaborators.
//
// Store composes a storage.Backend with the dedup strategy chain: SaveEvent
// refuses duplicates, Upsert refreshes a stored identity without discarding
// enrichment, and Sync picks between the two for each scraped event.
package canonical
