package event

import (
	"crypto/sha1"
	"fmt"
	"time"
)

// StartTimeLayout is the canonical civil-time form of StartTime and EndTime.
const StartTimeLayout = "2006-01-02T15:04"

// PriceFree is the normalized price of events that cost nothing.
const PriceFree = "Free"

// RawEvent is a listing as produced by a scraper adapter. It is never persisted.
//
// A source either supplies StartTime (a machine attribute such as a datetime
// value) or DateText plus TimeText (free text). EndTime is optional.
type RawEvent struct {
	Title       string `json:"title"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	DateText    string `json:"date_text,omitempty"`
	TimeText    string `json:"time_text,omitempty"`
	Location    string `json:"location"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	SourceID    string `json:"source_id"`
	OriginalURL string `json:"original_url"`
}

// Event is a normalized event. StartTime is always minute-exact.
type Event struct {
	Title             string  `json:"title"`
	NormalizedTitle   string  `json:"normalized_title"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time,omitempty"`
	Location          string  `json:"location"`
	Price             string  `json:"price"`
	Description       string  `json:"description,omitempty"`
	DescriptionDetail string  `json:"description_detail,omitempty"`
	SourceID          string  `json:"source_id"`
	OriginalURL       string  `json:"original_url"`
	EventType         string  `json:"event_type"`
	Priority          int     `json:"priority"`
	Confidence        float64 `json:"confidence"`
	ChineseRelevant   bool    `json:"chinese_relevant"`
	WeekIdentifier    string  `json:"week_identifier"`
}

// Identity is the canonical uniqueness key of an event.
type Identity struct {
	NormalizedTitle string `json:"normalized_title"`
	StartTime       string `json:"start_time"`
	Location        string `json:"location"`
}

// Key returns the identity as a single string, usable as a map key.
func (i Identity) Key() string {
	return i.NormalizedTitle + "|" + i.StartTime + "|" + i.Location
}

// Identity returns the canonical identity of the event.
func (e *Event) Identity() Identity {
	return Identity{
		NormalizedTitle: e.NormalizedTitle,
		StartTime:       e.StartTime,
		Location:        e.Location,
	}
}

// Start parses StartTime as civil time (in UTC, no offset applied).
func (e *Event) Start() (time.Time, error) {
	return ParseCivil(e.StartTime)
}

// ParseCivil parses a canonical minute-precision civil time string.
func ParseCivil(value string) (time.Time, error) {
	t, err := time.Parse(StartTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing civil time %q: %w", value, err)
	}
	return t, nil
}

// FormatCivil formats t as a canonical civil time string.
func FormatCivil(t time.Time) string {
	return t.Format(StartTimeLayout)
}

// Enrichment holds fields attached by downstream collaborators (translation,
// summarization). A nil field means "not supplied".
type Enrichment struct {
	Translation     *string `json:"translation,omitempty"`
	ShortSummary    *string `json:"short_summary,omitempty"`
	DetailedSummary *string `json:"detailed_summary,omitempty"`
}

// IsEmpty reports whether no enrichment field is set.
func (en Enrichment) IsEmpty() bool {
	return en.Translation == nil && en.ShortSummary == nil && en.DetailedSummary == nil
}

// Merge returns en with every non-nil field of update applied.
func (en Enrichment) Merge(update Enrichment) Enrichment {
	if update.Translation != nil {
		en.Translation = update.Translation
	}
	if update.ShortSummary != nil {
		en.ShortSummary = update.ShortSummary
	}
	if update.DetailedSummary != nil {
		en.DetailedSummary = update.DetailedSummary
	}
	return en
}

// Record is a persisted canonical event.
type Record struct {
	ID int64 `json:"id"`
	Event
	Enrichment
	ScrapedAt time.Time `json:"scraped_at"`
}

// NewRecord wraps an event for persistence with ScrapedAt populated.
func NewRecord(evt *Event) *Record {
	return &Record{
		Event:     *evt,
		ScrapedAt: time.Now().UTC(),
	}
}

// Fingerprint returns a deterministic hash of the identity, used where a
// stable opaque identifier is needed (calendar UIDs).
func (i Identity) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(i.Key()))
	return fmt.Sprintf("%x", h.Sum(nil))
}
