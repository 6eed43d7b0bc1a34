// Package pipeline runs a weekly scrape cycle end to end.
//
// A cycle fans out over the configured sources, normalizes every listing,
// discards in-batch duplicates, classifies what remains and syncs it into the
// canonical store, where exact re-sightings refresh the stored record and
// fuzzy duplicates are skipped. The cycle ends by selecting the ranked
// candidate set for the target week. Each source's outcome is written to the
// scraping log under a per-cycle run id.
package pipeline
