// Package normalize converts scraped listings into normalized events.
//
// Start times are reduced to minute-precision civil time ("2006-01-02T15:04")
// from timestamps, free text ("7:00 PM", "7pm", "noon") or ranges
// ("2pm - 8pm"). Values that only carry a date are rejected instead of being
// given an invented time of day. Titles and locations get a comparison form
// used by deduplication, and Similarity scores two titles by edit distance.
package normalize
