// Package filter narrows canonical event records for review.
//
// Filters combine any of the following criteria; every active criterion must
// match:
//   - Date range (from/to dates, inclusive, against the exact start time)
//   - Keywords (case-insensitive substring of the title)
//   - Locations (case-insensitive substring of the location)
//   - Event types and sources (exact, case-insensitive)
//   - Weekends only (Saturday/Sunday)
//   - Free only, minimum priority, Chinese-relevant only
//
// Example usage:
//
//	// Weekend markets near Union Square
//	f := filter.NewFilter()
//	f.WeekendsOnly = true
//	f.Types = []string{"market"}
//	f.Locations = []string{"union square"}
//
//	filtered := f.Apply(records)
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

// Filter represents record filtering criteria
type Filter struct {
	// Date range filtering
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Title keyword filtering (case-insensitive substring match)
	Keywords []string `json:"keywords,omitempty"`

	// Location filtering (case-insensitive substring match)
	Locations []string `json:"locations,omitempty"`

	Types   []string `json:"types,omitempty"`
	Sources []string `json:"sources,omitempty"`

	// Weekend-only filtering (Saturday/Sunday)
	WeekendsOnly bool `json:"weekends_only,omitempty"`

	FreeOnly    bool `json:"free_only,omitempty"`
	ChineseOnly bool `json:"chinese_only,omitempty"`
	MinPriority int  `json:"min_priority,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all records until criteria are added.
func NewFilter() *Filter {
	return &Filter{
		Keywords:  []string{},
		Locations: []string{},
		Types:     []string{},
		Sources:   []string{},
	}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Keywords) == 0 &&
		len(f.Locations) == 0 &&
		len(f.Types) == 0 &&
		len(f.Sources) == 0 &&
		!f.WeekendsOnly &&
		!f.FreeOnly &&
		!f.ChineseOnly &&
		f.MinPriority == 0
}

// Matches checks if a record matches all active filter criteria.
// An empty filter matches all records. Date criteria compare the calendar
// day of the start time; a record whose start time cannot be parsed fails
// any date criterion.
func (f *Filter) Matches(rec *event.Record) bool {
	if f.IsEmpty() {
		return true
	}

	if f.DateFrom != nil || f.DateTo != nil || f.WeekendsOnly {
		start, err := rec.Start()
		if err != nil {
			return false
		}
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

		if f.DateFrom != nil && day.Before(truncateDay(*f.DateFrom)) {
			return false
		}
		if f.DateTo != nil && day.After(truncateDay(*f.DateTo)) {
			return false
		}
		if f.WeekendsOnly {
			weekday := day.Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	if len(f.Keywords) > 0 && !containsAny(rec.Title, f.Keywords) {
		return false
	}
	if len(f.Locations) > 0 && !containsAny(rec.Location, f.Locations) {
		return false
	}
	if len(f.Types) > 0 && !equalsAny(rec.EventType, f.Types) {
		return false
	}
	if len(f.Sources) > 0 && !equalsAny(rec.SourceID, f.Sources) {
		return false
	}

	if f.FreeOnly && rec.Price != event.PriceFree {
		return false
	}
	if f.ChineseOnly && !rec.ChineseRelevant {
		return false
	}
	if f.MinPriority > 0 && rec.Priority < f.MinPriority {
		return false
	}

	return true
}

// Apply applies the filter to a list of records and returns only matching records.
// If the filter is empty, returns the original list unchanged.
func (f *Filter) Apply(records []*event.Record) []*event.Record {
	if f.IsEmpty() {
		return records
	}

	var filtered []*event.Record
	for _, rec := range records {
		if f.Matches(rec) {
			filtered = append(filtered, rec)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: Nov 10, 2025 | To: Nov 16, 2025 | Types: market | Weekends only"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format("Jan 2, 2006")))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format("Jan 2, 2006")))
	}
	if len(f.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("Keywords: %s", strings.Join(f.Keywords, ", ")))
	}
	if len(f.Locations) > 0 {
		parts = append(parts, fmt.Sprintf("Locations: %s", strings.Join(f.Locations, ", ")))
	}
	if len(f.Types) > 0 {
		parts = append(parts, fmt.Sprintf("Types: %s", strings.Join(f.Types, ", ")))
	}
	if len(f.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %s", strings.Join(f.Sources, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}
	if f.FreeOnly {
		parts = append(parts, "Free only")
	}
	if f.ChineseOnly {
		parts = append(parts, "Chinese-relevant only")
	}
	if f.MinPriority > 0 {
		parts = append(parts, fmt.Sprintf("Min priority: %d", f.MinPriority))
	}

	return strings.Join(parts, " | ")
}

// FromValues builds a filter from query parameters: dates (a range accepted
// by ParseDateRange), keyword, location, type, source (repeatable or
// comma-separated), weekends, free, chinese (booleans) and min_priority.
func FromValues(v url.Values) (*Filter, error) {
	f := NewFilter()

	if dates := strings.TrimSpace(v.Get("dates")); dates != "" {
		from, to, err := ParseDateRange(dates)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = from, to
	}

	f.Keywords = list(v["keyword"])
	f.Locations = list(v["location"])
	f.Types = list(v["type"])
	f.Sources = list(v["source"])

	for key, dst := range map[string]*bool{
		"weekends": &f.WeekendsOnly,
		"free":     &f.FreeOnly,
		"chinese":  &f.ChineseOnly,
	} {
		raw := strings.TrimSpace(v.Get(key))
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", key, raw)
		}
		*dst = b
	}

	if raw := strings.TrimSpace(v.Get("min_priority")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid min_priority value %q", raw)
		}
		f.MinPriority = n
	}

	return f, nil
}

// list splits repeated and comma-separated values, dropping blanks.
func list(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func equalsAny(s string, values []string) bool {
	for _, v := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
