package dedup

import (
	"strings"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/normalize"
)

// BatchStats counts what Batch.Dedupe dropped.
type BatchStats struct {
	Input         int `json:"input"`
	Kept          int `json:"kept"`
	URLDuplicates int `json:"url_duplicates"`
	KeyDuplicates int `json:"key_duplicates"`
}

// Batch is the cheap per-run pre-filter. Within one batch the first
// sighting wins; later events with the same URL, or the same title and
// location starting in the same key window, are dropped.
type Batch struct {
	window time.Duration
}

// NewBatch creates a batch deduplicator bucketing start times by window
// (one hour truncates to the hour).
func NewBatch(window time.Duration) *Batch {
	if window <= 0 {
		window = DefaultKeyWindow
	}
	return &Batch{window: window}
}

// Dedupe returns the surviving events in input order.
func (b *Batch) Dedupe(events []*event.Event) ([]*event.Event, BatchStats) {
	stats := BatchStats{Input: len(events)}
	seenURLs := make(map[string]bool, len(events))
	seenKeys := make(map[string]bool, len(events))

	kept := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		url := strings.TrimSpace(evt.OriginalURL)
		if url != "" && seenURLs[url] {
			stats.URLDuplicates++
			continue
		}

		key := b.Key(evt)
		if seenKeys[key] {
			stats.KeyDuplicates++
			continue
		}

		if url != "" {
			seenURLs[url] = true
		}
		seenKeys[key] = true
		kept = append(kept, evt)
	}

	stats.Kept = len(kept)
	return kept, stats
}

// Key returns "normalizedTitle|bucketedStart|normalizedLocation".
func (b *Batch) Key(evt *event.Event) string {
	bucket := evt.StartTime
	if start, err := evt.Start(); err == nil {
		bucket = event.FormatCivil(start.Truncate(b.window))
	}
	return evt.NormalizedTitle + "|" + bucket + "|" + normalize.NormalizeLocation(evt.Location)
}
