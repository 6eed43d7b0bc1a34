package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// Default windows and thresholds. Each is tuned independently.
const (
	DefaultKeyWindow             = time.Hour
	DefaultSameCycleWindow       = 2 * time.Hour
	DefaultCrossHistoryWindow    = 24 * time.Hour
	DefaultSameCycleThreshold    = 0.8
	DefaultCrossHistoryThreshold = 0.75
)

// Config holds the deduplication parameters.
type Config struct {
	KeyWindow             time.Duration
	SameCycleWindow       time.Duration
	SameCycleThreshold    float64
	CrossHistoryWindow    time.Duration
	CrossHistoryThreshold float64
	// FailOpen treats a failed store lookup as "not a duplicate".
	FailOpen bool
}

// DefaultConfig returns the default parameters, failing open.
func DefaultConfig() Config {
	return Config{
		KeyWindow:             DefaultKeyWindow,
		SameCycleWindow:       DefaultSameCycleWindow,
		SameCycleThreshold:    DefaultSameCycleThreshold,
		CrossHistoryWindow:    DefaultCrossHistoryWindow,
		CrossHistoryThreshold: DefaultCrossHistoryThreshold,
		FailOpen:              true,
	}
}

// Strategies returns the standard chain: exact identity, then same-cycle
// fuzzy, then cross-history fuzzy.
func Strategies(cfg Config) []Strategy {
	return []Strategy{
		ExactKeyStrategy{},
		FuzzyWindowStrategy{
			Label:     StrategySameCycle,
			Window:    cfg.SameCycleWindow,
			Threshold: cfg.SameCycleThreshold,
			SameWeek:  true,
		},
		FuzzyWindowStrategy{
			Label:     StrategyCrossHistory,
			Window:    cfg.CrossHistoryWindow,
			Threshold: cfg.CrossHistoryThreshold,
		},
	}
}

// Deduplicator runs strategies in order and stops at the first match.
type Deduplicator struct {
	finder     Finder
	strategies []Strategy
	failOpen   bool
	log        *logger.Logger
}

// New creates a Deduplicator. A nil strategy list uses Strategies(DefaultConfig()).
func New(finder Finder, strategies []Strategy, failOpen bool, log *logger.Logger) *Deduplicator {
	if strategies == nil {
		strategies = Strategies(DefaultConfig())
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Deduplicator{
		finder:     finder,
		strategies: strategies,
		failOpen:   failOpen,
		log:        log,
	}
}

// Check returns the first matching stored record, or nil if evt is novel.
// When failing open, a lookup error is logged and that strategy is skipped;
// otherwise the error is returned.
func (d *Deduplicator) Check(ctx context.Context, evt *event.Event) (*Match, error) {
	for _, s := range d.strategies {
		m, err := s.Match(ctx, d.finder, evt)
		if err != nil {
			if !d.failOpen {
				return nil, fmt.Errorf("duplicate check %s: %w", s.Name(), err)
			}
			d.log.Warn("Duplicate check failed, treating as not duplicate", logger.Fields{
				"strategy": s.Name(),
				"title":    evt.Title,
				"error":    err.Error(),
			})
			continue
		}
		if m == nil {
			continue
		}

		d.log.Info("Duplicate event detected", logger.Fields{
			"strategy":      m.Strategy,
			"title":         evt.Title,
			"matched_title": m.Record.Title,
			"matched_id":    m.Record.ID,
			"score":         m.Score,
		})
		return m, nil
	}
	return nil, nil
}
