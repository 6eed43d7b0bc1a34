package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

func strPtr(s string) *string { return &s }

func testRecord(title, start, location string) *event.Record {
	week, _ := event.WeekOf(start)
	return &event.Record{
		Event: event.Event{
			Title:           title,
			NormalizedTitle: title,
			StartTime:       start,
			Location:        location,
			Price:           "$10",
			SourceID:        "test",
			OriginalURL:     "https://example.com/" + title,
			EventType:       "market",
			Priority:        10,
			WeekIdentifier:  week,
		},
		ScrapedAt: time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC),
	}
}

// runBackendTests exercises the Backend contract shared by every implementation.
func runBackendTests(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("insert and find by identity", func(t *testing.T) {
		b := newBackend(t)
		rec := testRecord("holiday market", "2025-11-15T10:00", "Union Square")

		id, err := b.Insert(ctx, rec)
		if err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
		if id <= 0 {
			t.Fatalf("Insert() id = %d, want > 0", id)
		}

		got, err := b.FindByIdentity(ctx, rec.Identity())
		if err != nil {
			t.Fatalf("FindByIdentity() error: %v", err)
		}
		if got.ID != id || got.Title != rec.Title {
			t.Errorf("FindByIdentity() = %+v", got)
		}

		if _, err := b.FindByIdentity(ctx, event.Identity{NormalizedTitle: "missing"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByIdentity(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("insert conflict", func(t *testing.T) {
		b := newBackend(t)
		rec := testRecord("jazz night", "2025-11-15T19:00", "Blue Note")

		if _, err := b.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
		if _, err := b.Insert(ctx, rec); !errors.Is(err, ErrConflict) {
			t.Errorf("second Insert() error = %v, want ErrConflict", err)
		}
	})

	t.Run("upsert keeps enrichment", func(t *testing.T) {
		b := newBackend(t)
		rec := testRecord("night market", "2025-11-14T18:00", "Pier 39")
		rec.Translation = strPtr("夜市")

		id, created, err := b.Upsert(ctx, rec)
		if err != nil || !created {
			t.Fatalf("Upsert() = %d, %v, %v; want created", id, created, err)
		}

		again := testRecord("night market", "2025-11-14T18:00", "Pier 39")
		again.Price = "$20"
		id2, created, err := b.Upsert(ctx, again)
		if err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
		if created || id2 != id {
			t.Errorf("Upsert() = %d, created %v; want %d, false", id2, created, id)
		}

		got, err := b.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.Price != "$20" {
			t.Errorf("Price = %q, want $20", got.Price)
		}
		if got.Translation == nil || *got.Translation != "夜市" {
			t.Errorf("Translation = %v, want 夜市", got.Translation)
		}

		replaced := testRecord("night market", "2025-11-14T18:00", "Pier 39")
		replaced.Translation = strPtr("夜市场")
		if _, _, err := b.Upsert(ctx, replaced); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
		got, _ = b.Get(ctx, id)
		if got.Translation == nil || *got.Translation != "夜市场" {
			t.Errorf("Translation = %v, want 夜市场", got.Translation)
		}
	})

	t.Run("find candidates", func(t *testing.T) {
		b := newBackend(t)
		for _, rec := range []*event.Record{
			testRecord("a", "2025-11-15T10:00", "Union Square"),
			testRecord("b", "2025-11-15T11:30", "Union Square"),
			testRecord("c", "2025-11-15T13:00", "Union Square"),
			testRecord("d", "2025-11-15T10:30", "Pier 39"),
		} {
			if _, err := b.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert() error: %v", err)
			}
		}

		start := time.Date(2025, 11, 15, 10, 30, 0, 0, time.UTC)
		got, err := b.FindCandidates(ctx, CandidateQuery{
			Location: "Union Square",
			Week:     "2025-11-10_to_2025-11-16",
			Start:    start,
			Window:   2 * time.Hour,
		})
		if err != nil {
			t.Fatalf("FindCandidates() error: %v", err)
		}
		titles := map[string]bool{}
		for _, r := range got {
			titles[r.NormalizedTitle] = true
		}
		if len(got) != 2 || !titles["a"] || !titles["b"] {
			t.Errorf("FindCandidates() titles = %v, want a and b", titles)
		}

		got, _ = b.FindCandidates(ctx, CandidateQuery{
			Location: "Union Square",
			Week:     "2025-11-17_to_2025-11-23",
			Start:    start,
			Window:   2 * time.Hour,
		})
		if len(got) != 0 {
			t.Errorf("FindCandidates() other week = %d records, want 0", len(got))
		}
	})

	t.Run("week events ordered", func(t *testing.T) {
		b := newBackend(t)
		for _, rec := range []*event.Record{
			testRecord("late", "2025-11-16T20:00", "Hall"),
			testRecord("early", "2025-11-10T08:00", "Hall"),
			testRecord("next week", "2025-11-17T08:00", "Hall"),
		} {
			if _, err := b.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert() error: %v", err)
			}
		}

		got, err := b.WeekEvents(ctx, "2025-11-10_to_2025-11-16")
		if err != nil {
			t.Fatalf("WeekEvents() error: %v", err)
		}
		if len(got) != 2 || got[0].Title != "early" || got[1].Title != "late" {
			t.Errorf("WeekEvents() = %v", got)
		}
	})

	t.Run("enrichment and delete", func(t *testing.T) {
		b := newBackend(t)
		id, err := b.Insert(ctx, testRecord("parade", "2025-11-15T10:00", "Main St"))
		if err != nil {
			t.Fatalf("Insert() error: %v", err)
		}

		got, err := b.UpdateEnrichment(ctx, id, event.Enrichment{ShortSummary: strPtr("A parade")})
		if err != nil {
			t.Fatalf("UpdateEnrichment() error: %v", err)
		}
		if got.ShortSummary == nil || *got.ShortSummary != "A parade" {
			t.Errorf("ShortSummary = %v", got.ShortSummary)
		}

		if _, err := b.UpdateEnrichment(ctx, id+1000, event.Enrichment{ShortSummary: strPtr("x")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateEnrichment(missing) error = %v, want ErrNotFound", err)
		}

		if err := b.Delete(ctx, id); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := b.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := b.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("scraping logs", func(t *testing.T) {
		b := newBackend(t)
		entries := []*ScrapeLog{
			{RunID: "r1", Source: "city", Week: "2025-11-10_to_2025-11-16", EventsCount: 12, Success: true,
				ScrapedAt: time.Date(2025, 11, 8, 9, 0, 0, 0, time.UTC)},
			{RunID: "r1", Source: "venue", Week: "2025-11-10_to_2025-11-16", Success: false, Error: "timeout",
				ScrapedAt: time.Date(2025, 11, 8, 9, 1, 0, 0, time.UTC)},
		}
		for _, e := range entries {
			if err := b.LogScrapingResult(ctx, e); err != nil {
				t.Fatalf("LogScrapingResult() error: %v", err)
			}
			if e.ID == 0 {
				t.Error("LogScrapingResult() did not assign an id")
			}
		}

		got, err := b.ScrapeLogs(ctx, ScrapeLogQuery{})
		if err != nil {
			t.Fatalf("ScrapeLogs() error: %v", err)
		}
		if len(got) != 2 || got[0].Source != "venue" || got[0].Error != "timeout" {
			t.Errorf("ScrapeLogs() = %+v", got)
		}

		got, _ = b.ScrapeLogs(ctx, ScrapeLogQuery{Source: "city"})
		if len(got) != 1 || got[0].EventsCount != 12 || !got[0].Success {
			t.Errorf("ScrapeLogs(city) = %+v", got)
		}
	})
}

func TestCandidateQuery_Matches(t *testing.T) {
	q := CandidateQuery{
		Location: "Hall",
		Start:    time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC),
		Window:   time.Hour,
	}

	tests := []struct {
		name  string
		start string
		loc   string
		want  bool
	}{
		{name: "same time", start: "2025-11-15T12:00", loc: "Hall", want: true},
		{name: "inside window before", start: "2025-11-15T11:01", loc: "Hall", want: true},
		{name: "window is exclusive", start: "2025-11-15T13:00", loc: "Hall", want: false},
		{name: "other location", start: "2025-11-15T12:00", loc: "Park", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("x", tt.start, tt.loc)
			if got := q.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Options{Kind: "sqlite"}, nil); err == nil {
		t.Error("Open() expected error for unknown backend")
	}
}
