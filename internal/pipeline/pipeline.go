package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/weekly-events/internal/canonical"
	"github.com/pfrederiksen/weekly-events/internal/classify"
	"github.com/pfrederiksen/weekly-events/internal/dedup"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
	"github.com/pfrederiksen/weekly-events/internal/metrics"
	"github.com/pfrederiksen/weekly-events/internal/normalize"
	"github.com/pfrederiksen/weekly-events/internal/scraper"
)

// ErrStoreUnavailable aborts a cycle whose store cannot be reached at start.
var ErrStoreUnavailable = errors.New("canonical store unavailable")

// Scraper fetches every configured source. *scraper.Runner implements it.
type Scraper interface {
	Run(ctx context.Context) []scraper.Result
}

// Config wires the components of a Service.
type Config struct {
	Store      *canonical.Store
	Scraper    Scraper
	Normalizer *normalize.Normalizer
	Batch      *dedup.Batch
	Classifier *classify.Classifier
	Metrics    *metrics.Metrics // optional
	MaxCount   int
	Logger     *logger.Logger
}

// Service runs scrape cycles. One cycle per store may run at a time.
type Service struct {
	store      *canonical.Store
	scraper    Scraper
	normalizer *normalize.Normalizer
	batch      *dedup.Batch
	classifier *classify.Classifier
	metrics    *metrics.Metrics
	maxCount   int
	log        *logger.Logger
	now        func() time.Time
}

// New validates cfg and creates a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("pipeline: store is required")
	case cfg.Scraper == nil:
		return nil, fmt.Errorf("pipeline: scraper is required")
	case cfg.Normalizer == nil:
		return nil, fmt.Errorf("pipeline: normalizer is required")
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("pipeline: classifier is required")
	case cfg.MaxCount < 1:
		return nil, fmt.Errorf("pipeline: max count must be >= 1")
	}
	if cfg.Batch == nil {
		cfg.Batch = dedup.NewBatch(dedup.DefaultKeyWindow)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Service{
		store:      cfg.Store,
		scraper:    cfg.Scraper,
		normalizer: cfg.Normalizer,
		batch:      cfg.Batch,
		classifier: cfg.Classifier,
		metrics:    cfg.Metrics,
		maxCount:   cfg.MaxCount,
		log:        cfg.Logger,
		now:        time.Now,
	}, nil
}

// SourceReport is one source's scrape outcome.
type SourceReport struct {
	Source   string        `json:"source"`
	Scraped  int           `json:"scraped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a cycle.
type Report struct {
	RunID         string                 `json:"run_id"`
	Week          string                 `json:"week_identifier"`
	StartedAt     time.Time              `json:"started_at"`
	Duration      time.Duration          `json:"duration"`
	Sources       []SourceReport         `json:"sources"`
	Scraped       int                    `json:"scraped"`
	ParseErrors   int                    `json:"parse_errors"`
	MissingFields int                    `json:"missing_fields"`
	Batch         dedup.BatchStats       `json:"batch"`
	Created       int                    `json:"created"`
	Refreshed     int                    `json:"refreshed"`
	Duplicates    int                    `json:"duplicates"`
	StoreErrors   int                    `json:"store_errors"`
	Candidates    *classify.CandidateSet `json:"candidates"`
}

// Run executes one cycle for week ("" means the upcoming week): scrape all
// sources, normalize, drop in-batch duplicates, classify, sync each event
// into the canonical store, then select the week's candidates.
//
// Individual listings and sources fail independently. Only an unreachable
// store at start, or a cancelled context, ends the cycle with an error.
func (s *Service) Run(ctx context.Context, week string) (*Report, error) {
	started := s.now()
	if week == "" {
		week = event.UpcomingWeek(started)
	} else if _, _, err := event.ParseWeek(week); err != nil {
		return nil, err
	}

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("Store unreachable, aborting cycle", logger.Fields{"week": week}, err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Week:      week,
		StartedAt: started.UTC(),
	}
	log := s.log.With(logger.Fields{"run_id": report.RunID, "week": week})
	log.Info("Cycle started", nil)

	events := s.scrape(ctx, report, log)

	kept, stats := s.batch.Dedupe(events)
	report.Batch = stats
	s.metrics.Dropped(metrics.DropURLDuplicate, stats.URLDuplicates)
	s.metrics.Dropped(metrics.DropKeyDuplicate, stats.KeyDuplicates)

	for _, evt := range kept {
		s.classifier.Apply(ctx, evt)
	}

	if err := s.sync(ctx, kept, report, log); err != nil {
		return report, err
	}

	set, err := Candidates(ctx, s.store, week, s.maxCount, s.now())
	if err != nil {
		log.Error("Candidate selection failed", nil, err)
		return report, err
	}
	report.Candidates = set
	report.Duration = s.now().Sub(started)
	s.metrics.CycleCompleted(report.Duration, len(set.Candidates))

	log.Info("Cycle completed", logger.Fields{
		"scraped":      report.Scraped,
		"parse_errors": report.ParseErrors,
		"batch_kept":   stats.Kept,
		"created":      report.Created,
		"refreshed":    report.Refreshed,
		"duplicates":   report.Duplicates,
		"store_errors": report.StoreErrors,
		"candidates":   len(set.Candidates),
		"duration":     report.Duration.String(),
	})
	return report, nil
}

// scrape runs every source, records its outcome and returns the
// normalized events. Listings that fail normalization are dropped.
func (s *Service) scrape(ctx context.Context, report *Report, log *logger.Logger) []*event.Event {
	var events []*event.Event

	for _, res := range s.scraper.Run(ctx) {
		sr := SourceReport{Source: res.Source, Scraped: len(res.Events), Duration: res.Duration}
		s.metrics.EventsScraped(res.Source, len(res.Events))
		if res.Err != nil {
			sr.Error = res.Err.Error()
			s.metrics.SourceFailed(res.Source)
		}
		report.Sources = append(report.Sources, sr)
		report.Scraped += len(res.Events)

		if err := s.store.LogScrapingResult(ctx, canonical.ScrapeResult{
			RunID:  report.RunID,
			Source: res.Source,
			Week:   report.Week,
			Count:  len(res.Events),
			Err:    res.Err,
		}); err != nil {
			log.Warn("Failed to record scrape result", logger.Fields{"source": res.Source, "error": err.Error()})
		}

		for _, raw := range res.Events {
			evt, err := s.normalizer.Event(raw)
			if err != nil {
				s.countDrop(report, err)
				log.Debug("Dropped listing", logger.Fields{
					"source": res.Source,
					"title":  raw.Title,
					"error":  err.Error(),
				})
				continue
			}
			events = append(events, evt)
		}
	}
	return events
}

func (s *Service) countDrop(report *Report, err error) {
	if errors.Is(err, normalize.ErrMissingField) {
		report.MissingFields++
		s.metrics.Dropped(metrics.DropMissingField, 1)
		return
	}
	report.ParseErrors++
	s.metrics.Dropped(metrics.DropParse, 1)
}

// sync writes events one at a time. A failed write is logged and skipped.
func (s *Service) sync(ctx context.Context, events []*event.Event, report *Report, log *logger.Logger) error {
	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.store.Sync(ctx, evt)
		if err != nil {
			report.StoreErrors++
			s.metrics.Dropped(metrics.DropStoreError, 1)
			log.Error("Failed to store event", logger.Fields{
				"title":      evt.Title,
				"start_time": evt.StartTime,
				"source":     evt.SourceID,
			}, err)
			continue
		}

		s.metrics.StoreOutcome(res.Outcome)
		switch res.Outcome {
		case canonical.OutcomeCreated:
			report.Created++
		case canonical.OutcomeRefreshed:
			report.Refreshed++
		case canonical.OutcomeDuplicate:
			report.Duplicates++
		}
	}
	return nil
}

// Candidates selects the ranked, diversity-capped review set for week from
// the store's canonical records.
func Candidates(ctx context.Context, store *canonical.Store, week string, maxCount int, now time.Time) (*classify.CandidateSet, error) {
	recs, err := store.GetWeekEvents(ctx, week)
	if err != nil {
		return nil, err
	}
	return &classify.CandidateSet{
		Week:        week,
		GeneratedAt: now.UTC(),
		MaxCount:    maxCount,
		Candidates:  classify.SelectTopCandidates(recs, maxCount),
	}, nil
}
