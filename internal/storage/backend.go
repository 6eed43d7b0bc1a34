package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

var (
	// ErrNotFound is returned when no record matches an id or identity.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by Insert when the canonical identity is already stored.
	ErrConflict = errors.New("canonical identity already stored")
)

// Backend kinds accepted by Open.
const (
	KindFile     = "file"
	KindPostgres = "postgres"
)

// CandidateQuery selects stored records that might be the same event as a
// new one: same location, start time within Window of Start, and optionally
// the same week.
type CandidateQuery struct {
	Location string
	Week     string
	Start    time.Time
	Window   time.Duration
}

// Matches reports whether a stored record satisfies the query.
func (q CandidateQuery) Matches(rec *event.Record) bool {
	if rec.Location != q.Location {
		return false
	}
	if q.Week != "" && rec.WeekIdentifier != q.Week {
		return false
	}
	start, err := rec.Start()
	if err != nil {
		return false
	}
	diff := start.Sub(q.Start)
	if diff < 0 {
		diff = -diff
	}
	return diff < q.Window
}

// ScrapeLog is the recorded outcome of one source in one scrape cycle.
type ScrapeLog struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Week        string    `json:"week_identifier,omitempty"`
	EventsCount int       `json:"events_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// ScrapeLogQuery filters ScrapeLogs. Zero values match everything.
type ScrapeLogQuery struct {
	Source string
	Week   string
	Limit  int
}

// Backend persists canonical event records and scraping logs.
// Implementations must enforce uniqueness of the canonical identity.
type Backend interface {
	Ping(ctx context.Context) error
	FindByIdentity(ctx context.Context, id event.Identity) (*event.Record, error)
	FindCandidates(ctx context.Context, q CandidateQuery) ([]*event.Record, error)
	// Insert stores a new record and returns its id, or ErrConflict.
	Insert(ctx context.Context, rec *event.Record) (int64, error)
	// Upsert inserts rec or refreshes the stored record with the same identity.
	// Stored enrichment is only replaced by non-nil enrichment fields of rec.
	Upsert(ctx context.Context, rec *event.Record) (id int64, created bool, err error)
	Get(ctx context.Context, id int64) (*event.Record, error)
	WeekEvents(ctx context.Context, week string) ([]*event.Record, error)
	UpdateEnrichment(ctx context.Context, id int64, en event.Enrichment) (*event.Record, error)
	Delete(ctx context.Context, id int64) error
	LogScrapingResult(ctx context.Context, entry *ScrapeLog) error
	ScrapeLogs(ctx context.Context, q ScrapeLogQuery) ([]*ScrapeLog, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Kind        string
	DataDir     string
	DatabaseURL string
	LogLevel    string
}

// Open creates the backend named by opts.Kind.
func Open(ctx context.Context, opts Options, log *logger.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindFile:
		return NewFile(opts.DataDir)
	case KindPostgres:
		return NewPostgres(ctx, opts.DatabaseURL, opts.LogLevel, log)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (must be 'file' or 'postgres')", opts.Kind)
	}
}

// refresh copies the mutable fields of incoming onto existing, keeping the
// identity and id, and merging enrichment.
func refresh(existing, incoming *event.Record) {
	existing.Title = incoming.Title
	existing.EndTime = incoming.EndTime
	existing.Price = incoming.Price
	existing.Description = incoming.Description
	existing.DescriptionDetail = incoming.DescriptionDetail
	existing.SourceID = incoming.SourceID
	existing.OriginalURL = incoming.OriginalURL
	existing.EventType = incoming.EventType
	existing.Priority = incoming.Priority
	existing.Confidence = incoming.Confidence
	existing.ChineseRelevant = incoming.ChineseRelevant
	existing.WeekIdentifier = incoming.WeekIdentifier
	existing.Enrichment = existing.Enrichment.Merge(incoming.Enrichment)
	existing.ScrapedAt = incoming.ScrapedAt
}
