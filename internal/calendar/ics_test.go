package calendar

import (
	"strings"
	"testing"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

func strPtr(s string) *string {
	return &s
}

func TestGenerateICS(t *testing.T) {
	rec := &event.Record{
		ID: 7,
		Event: event.Event{
			Title:           "Holiday Market",
			NormalizedTitle: "holiday market",
			StartTime:       "2025-11-15T10:00",
			EndTime:         "2025-11-15T16:30",
			Location:        "Union Square, San Francisco",
			Price:           event.PriceFree,
			EventType:       "market",
			OriginalURL:     "https://example.com/market",
		},
		Enrichment: event.Enrichment{Translation: strPtr("节日市集")},
	}

	ics := GenerateICS([]*event.Record{rec})

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Weekly Events//weekly-events//EN",
		"BEGIN:VEVENT",
		"UID:" + rec.Identity().Fingerprint() + "@weekly-events",
		"DTSTAMP:",
		"DTSTART:20251115T100000\r\n",
		"DTEND:20251115T163000\r\n",
		"SUMMARY:Holiday Market",
		"DESCRIPTION:节日市集\\nPrice: Free",
		"LOCATION:Union Square\\, San Francisco", // Comma is escaped
		"CATEGORIES:market",
		"URL:https://example.com/market",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing required field: %s", field)
		}
	}
}

func TestGenerateICS_DefaultDuration(t *testing.T) {
	rec := &event.Record{Event: event.Event{Title: "Jazz Night", StartTime: "2025-11-14T23:00", Location: "Blue Note"}}

	ics := GenerateICS([]*event.Record{rec})

	if !strings.Contains(ics, "DTEND:20251115T010000\r\n") {
		t.Errorf("expected a two hour default end crossing midnight, got:\n%s", ics)
	}
}

func TestGenerateICS_SkipsUnparseable(t *testing.T) {
	records := []*event.Record{
		{Event: event.Event{Title: "Broken", StartTime: "soon", Location: "Hall"}},
		{Event: event.Event{Title: "Fine", StartTime: "2025-11-14T19:00", Location: "Hall"}},
	}

	ics := GenerateICS(records)

	if n := strings.Count(ics, "BEGIN:VEVENT"); n != 1 {
		t.Errorf("got %d events, want 1", n)
	}
}

func TestGenerateICS_Empty(t *testing.T) {
	ics := GenerateICS(nil)
	if !strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Errorf("empty calendar malformed: %q", ics)
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Simple text", "Simple text"},
		{"Text, with comma", "Text\\, with comma"},
		{"Text; with semicolon", "Text\\; with semicolon"},
		{"Text\\with backslash", "Text\\\\with backslash"},
		{"Text\nwith newline", "Text\\nwith newline"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeICS(tt.input); got != tt.want {
				t.Errorf("escapeICS(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
