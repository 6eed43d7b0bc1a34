package normalize

import (
	"errors"
	"testing"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

func TestNormalizer_Event(t *testing.T) {
	n := New(nil, nil)

	tests := []struct {
		name      string
		raw       event.RawEvent
		wantStart string
		wantEnd   string
		wantErr   error
	}{
		{
			name: "machine start time",
			raw: event.RawEvent{
				Title:       "Holiday Market!",
				StartTime:   "2025-11-15T10:00:00-08:00",
				EndTime:     "2025-11-15T16:00:00-08:00",
				Location:    "Union Square (10am)",
				Price:       "FREE",
				SourceID:    "city",
				OriginalURL: "https://example.com/a",
			},
			wantStart: "2025-11-15T10:00",
			wantEnd:   "2025-11-15T16:00",
		},
		{
			name: "free text time",
			raw: event.RawEvent{
				Title:       "Jazz Night",
				DateText:    "2025-11-15",
				TimeText:    "7:00 PM",
				Location:    "Blue Note",
				SourceID:    "venue",
				OriginalURL: "https://example.com/b",
			},
			wantStart: "2025-11-15T19:00",
		},
		{
			name: "free text range",
			raw: event.RawEvent{
				Title:       "Night Market",
				DateText:    "Nov 15, 2025",
				TimeText:    "6pm - 11pm",
				Location:    "Pier 39",
				SourceID:    "venue",
				OriginalURL: "https://example.com/c",
			},
			wantStart: "2025-11-15T18:00",
			wantEnd:   "2025-11-15T23:00",
		},
		{
			name: "end before start dropped",
			raw: event.RawEvent{
				Title:       "Lecture",
				StartTime:   "2025-11-15T19:00",
				EndTime:     "2025-11-15T18:00",
				Location:    "Library",
				OriginalURL: "https://example.com/d",
			},
			wantStart: "2025-11-15T19:00",
		},
		{
			name: "unusable end dropped",
			raw: event.RawEvent{
				Title:       "Lecture",
				StartTime:   "2025-11-15T19:00",
				EndTime:     "later",
				Location:    "Library",
				OriginalURL: "https://example.com/e",
			},
			wantStart: "2025-11-15T19:00",
		},
		{
			name: "date only start",
			raw: event.RawEvent{
				Title:       "Parade",
				StartTime:   "2025-11-15",
				Location:    "Main St",
				OriginalURL: "https://example.com/f",
			},
			wantErr: ErrDateOnly,
		},
		{
			name: "date text without time",
			raw: event.RawEvent{
				Title:       "Parade",
				DateText:    "2025-11-15",
				TimeText:    "All day",
				Location:    "Main St",
				OriginalURL: "https://example.com/g",
			},
			wantErr: ErrDateOnly,
		},
		{
			name: "one-digit clock without period dropped",
			raw: event.RawEvent{
				Title:       "Comedy Hour",
				DateText:    "2025-11-15",
				TimeText:    "Show starts 7:30",
				Location:    "Cobb's",
				SourceID:    "venue",
				OriginalURL: "https://example.com/i",
			},
			wantErr: ErrDateOnly,
		},
		{
			name: "day/month ambiguous date dropped",
			raw: event.RawEvent{
				Title:       "Comedy Hour",
				DateText:    "05/06/2025",
				TimeText:    "7pm",
				Location:    "Cobb's",
				SourceID:    "venue",
				OriginalURL: "https://example.com/j",
			},
			wantErr: ErrAmbiguousDate,
		},
		{
			name: "missing location",
			raw: event.RawEvent{
				Title:       "Parade",
				StartTime:   "2025-11-15T10:00",
				OriginalURL: "https://example.com/h",
			},
			wantErr: ErrMissingField,
		},
		{
			name: "missing url",
			raw: event.RawEvent{
				Title:     "Parade",
				StartTime: "2025-11-15T10:00",
				Location:  "Main St",
			},
			wantErr: ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Event(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Event() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Event() unexpected error: %v", err)
			}
			if got.StartTime != tt.wantStart {
				t.Errorf("StartTime = %q, want %q", got.StartTime, tt.wantStart)
			}
			if got.EndTime != tt.wantEnd {
				t.Errorf("EndTime = %q, want %q", got.EndTime, tt.wantEnd)
			}
			if got.WeekIdentifier != "2025-11-10_to_2025-11-16" {
				t.Errorf("WeekIdentifier = %q", got.WeekIdentifier)
			}
		})
	}
}

func TestNormalizer_EventFields(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Event(event.RawEvent{
		Title:       "  Holiday   Market! ",
		StartTime:   "2025-11-15T10:00",
		Location:    "Union Square (10am) https://maps.example.com",
		Price:       "$0",
		Description: "Crafts &amp; food",
		SourceID:    "city",
		OriginalURL: " https://example.com/a ",
	})
	if err != nil {
		t.Fatalf("Event() error: %v", err)
	}

	if got.Title != "Holiday Market!" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.NormalizedTitle != "holiday market" {
		t.Errorf("NormalizedTitle = %q", got.NormalizedTitle)
	}
	if got.Location != "Union Square" {
		t.Errorf("Location = %q", got.Location)
	}
	if got.Price != event.PriceFree {
		t.Errorf("Price = %q, want %q", got.Price, event.PriceFree)
	}
	if got.Description != "Crafts & food" {
		t.Errorf("Description = %q", got.Description)
	}
	if got.OriginalURL != "https://example.com/a" {
		t.Errorf("OriginalURL = %q", got.OriginalURL)
	}
}
