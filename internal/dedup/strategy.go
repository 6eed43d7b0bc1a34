package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/normalize"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

// Strategy names.
const (
	StrategyExact        = "exact"
	StrategySameCycle    = "same_cycle"
	StrategyCrossHistory = "cross_history"
)

// Finder is the read side of the canonical store used by strategies.
type Finder interface {
	FindByIdentity(ctx context.Context, id event.Identity) (*event.Record, error)
	FindCandidates(ctx context.Context, q storage.CandidateQuery) ([]*event.Record, error)
}

// Match describes the stored record an event duplicates.
type Match struct {
	Strategy string
	Record   *event.Record
	Score    float64
}

// Exact reports whether the match is on the full canonical identity.
func (m *Match) Exact() bool {
	return m != nil && m.Strategy == StrategyExact
}

// Strategy decides whether an event duplicates something already stored.
// Match returns nil when it finds nothing.
type Strategy interface {
	Name() string
	Match(ctx context.Context, f Finder, evt *event.Event) (*Match, error)
}

// ExactKeyStrategy matches a stored record with the same canonical identity.
type ExactKeyStrategy struct{}

func (ExactKeyStrategy) Name() string { return StrategyExact }

func (ExactKeyStrategy) Match(ctx context.Context, f Finder, evt *event.Event) (*Match, error) {
	rec, err := f.FindByIdentity(ctx, evt.Identity())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Match{Strategy: StrategyExact, Record: rec, Score: 1}, nil
}

// FuzzyWindowStrategy matches stored records at the same location whose
// start lies within Window and whose normalized title scores at least
// Threshold. SameWeek restricts candidates to the event's week.
type FuzzyWindowStrategy struct {
	Label     string
	Window    time.Duration
	Threshold float64
	SameWeek  bool
}

func (s FuzzyWindowStrategy) Name() string { return s.Label }

func (s FuzzyWindowStrategy) Match(ctx context.Context, f Finder, evt *event.Event) (*Match, error) {
	start, err := evt.Start()
	if err != nil {
		return nil, fmt.Errorf("event start: %w", err)
	}

	q := storage.CandidateQuery{
		Location: evt.Location,
		Start:    start,
		Window:   s.Window,
	}
	if s.SameWeek {
		q.Week = evt.WeekIdentifier
	}

	candidates, err := f.FindCandidates(ctx, q)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, rec := range candidates {
		score := normalize.Similarity(evt.NormalizedTitle, rec.NormalizedTitle)
		if score < s.Threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Strategy: s.Label, Record: rec, Score: score}
		}
	}
	return best, nil
}
