package canonical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/dedup"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

// ReasonDuplicate is the SaveResult reason for events that were not stored
// because they duplicate an existing record.
const ReasonDuplicate = "duplicate"

// ErrEmptyEnrichment is returned by Enrich when no field is supplied.
var ErrEmptyEnrichment = errors.New("enrichment has no fields set")

// SaveResult is the outcome of SaveEvent.
type SaveResult struct {
	Saved  bool         `json:"saved"`
	ID     int64        `json:"id,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Match  *dedup.Match `json:"-"`
}

// UpsertResult is the outcome of Upsert.
type UpsertResult struct {
	ID      int64 `json:"id"`
	Created bool  `json:"created"`
}

// Sync outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeRefreshed = "refreshed"
	OutcomeDuplicate = "duplicate"
)

// SyncResult is the outcome of Sync.
type SyncResult struct {
	Outcome string
	ID      int64
	Match   *dedup.Match
	Changes []*event.EventChange
}

// ScrapeResult is one source's outcome in one cycle.
type ScrapeResult struct {
	RunID  string
	Source string
	Week   string
	Count  int
	Err    error
}

// Store is the canonical event store: a storage backend guarded by the
// duplicate detection chain. Callers are expected to write sequentially.
type Store struct {
	backend storage.Backend
	dedup   *dedup.Deduplicator
	log     *logger.Logger
}

// New creates a Store over backend using the standard strategy chain.
func New(backend storage.Backend, cfg dedup.Config, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		backend: backend,
		dedup:   dedup.New(backend, dedup.Strategies(cfg), cfg.FailOpen, log),
		log:     log,
	}
}

// NewWithDeduplicator creates a Store with a custom deduplicator.
func NewWithDeduplicator(backend storage.Backend, d *dedup.Deduplicator, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{backend: backend, dedup: d, log: log}
}

// Ping checks the backend connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// IsDuplicate reports whether evt matches a stored record.
func (s *Store) IsDuplicate(ctx context.Context, evt *event.Event) (bool, error) {
	m, err := s.dedup.Check(ctx, evt)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// SaveEvent stores evt unless it duplicates a stored record. A unique
// constraint conflict on insert is reported as a duplicate too.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event) (SaveResult, error) {
	m, err := s.dedup.Check(ctx, evt)
	if err != nil {
		return SaveResult{}, err
	}
	if m != nil {
		return SaveResult{Saved: false, Reason: ReasonDuplicate, Match: m}, nil
	}
	return s.insert(ctx, evt)
}

func (s *Store) insert(ctx context.Context, evt *event.Event) (SaveResult, error) {
	id, err := s.backend.Insert(ctx, event.NewRecord(evt))
	if errors.Is(err, storage.ErrConflict) {
		s.log.Info("Insert hit unique constraint, treating as duplicate", logger.Fields{
			"title":      evt.Title,
			"start_time": evt.StartTime,
			"location":   evt.Location,
		})
		return SaveResult{Saved: false, Reason: ReasonDuplicate}, nil
	}
	if err != nil {
		return SaveResult{}, fmt.Errorf("saving event %q: %w", evt.Title, err)
	}

	s.log.Debug("Saved event", logger.Fields{"id": id, "title": evt.Title, "start_time": evt.StartTime})
	return SaveResult{Saved: true, ID: id}, nil
}

// Upsert inserts rec or refreshes the stored record with the same canonical
// identity. Enrichment already stored survives unless rec supplies a new value.
func (s *Store) Upsert(ctx context.Context, rec *event.Record) (UpsertResult, error) {
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = time.Now().UTC()
	}
	id, created, err := s.backend.Upsert(ctx, rec)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upserting event %q: %w", rec.Title, err)
	}
	return UpsertResult{ID: id, Created: created}, nil
}

// Sync records a freshly scraped event. A re-sighting of a stored identity
// refreshes that record; a fuzzy duplicate is skipped; anything else is saved.
func (s *Store) Sync(ctx context.Context, evt *event.Event) (SyncResult, error) {
	m, err := s.dedup.Check(ctx, evt)
	if err != nil {
		return SyncResult{}, err
	}

	switch {
	case m.Exact():
		changes := event.DetectChanges(m.Record, evt)
		res, err := s.Upsert(ctx, event.NewRecord(evt))
		if err != nil {
			return SyncResult{}, err
		}
		if len(changes) > 0 {
			s.log.Info("Refreshed event changed", logger.Fields{
				"id":      res.ID,
				"title":   evt.Title,
				"changes": changeTypes(changes),
			})
		}
		outcome := OutcomeRefreshed
		if res.Created {
			outcome = OutcomeCreated
		}
		return SyncResult{Outcome: outcome, ID: res.ID, Match: m, Changes: changes}, nil

	case m != nil:
		return SyncResult{Outcome: OutcomeDuplicate, ID: m.Record.ID, Match: m}, nil
	}

	saved, err := s.insert(ctx, evt)
	if err != nil {
		return SyncResult{}, err
	}
	if !saved.Saved {
		return SyncResult{Outcome: OutcomeDuplicate}, nil
	}
	return SyncResult{Outcome: OutcomeCreated, ID: saved.ID}, nil
}

func changeTypes(changes []*event.EventChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.ChangeType)
	}
	return out
}

// GetWeekEvents returns the week's canonical records ordered by start time.
func (s *Store) GetWeekEvents(ctx context.Context, week string) ([]*event.Record, error) {
	if _, _, err := event.ParseWeek(week); err != nil {
		return nil, err
	}
	recs, err := s.backend.WeekEvents(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("loading week %s: %w", week, err)
	}
	return recs, nil
}

// LogScrapingResult records one source's outcome for a cycle.
func (s *Store) LogScrapingResult(ctx context.Context, r ScrapeResult) error {
	entry := &storage.ScrapeLog{
		RunID:       r.RunID,
		Source:      r.Source,
		Week:        r.Week,
		EventsCount: r.Count,
		Success:     r.Err == nil,
		ScrapedAt:   time.Now().UTC(),
	}
	if r.Err != nil {
		entry.Error = r.Err.Error()
	}
	if err := s.backend.LogScrapingResult(ctx, entry); err != nil {
		return fmt.Errorf("logging scrape result for %s: %w", r.Source, err)
	}
	return nil
}

// ScrapeLogs returns recorded scrape outcomes, newest first.
func (s *Store) ScrapeLogs(ctx context.Context, q storage.ScrapeLogQuery) ([]*storage.ScrapeLog, error) {
	return s.backend.ScrapeLogs(ctx, q)
}

// Get returns one canonical record by id.
func (s *Store) Get(ctx context.Context, id int64) (*event.Record, error) {
	return s.backend.Get(ctx, id)
}

// Enrich attaches collaborator output to a record. Nil fields are left untouched.
func (s *Store) Enrich(ctx context.Context, id int64, en event.Enrichment) (*event.Record, error) {
	if en.IsEmpty() {
		return nil, ErrEmptyEnrichment
	}
	rec, err := s.backend.UpdateEnrichment(ctx, id, en)
	if err != nil {
		return nil, fmt.Errorf("enriching event %d: %w", id, err)
	}
	return rec, nil
}

// Delete removes a record. This is an administrative action; the pipeline
// never deletes.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting event %d: %w", id, err)
	}
	s.log.Info("Deleted canonical record", logger.Fields{"id": id})
	return nil
}
