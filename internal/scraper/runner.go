package scraper

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// Result is the outcome of one source in one run.
type Result struct {
	Source   string
	Events   []event.RawEvent
	Err      error
	Duration time.Duration
}

// Runner fetches all sources concurrently. A failing source never affects
// the others; each result carries its own error.
type Runner struct {
	sources     []Source
	concurrency int
	fetch       FetchOptions
	log         *logger.Logger
}

// NewRunner creates a Runner fetching at most concurrency sources at once
// (zero means all of them).
func NewRunner(sources []Source, concurrency int, fetch FetchOptions, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		sources:     sources,
		concurrency: concurrency,
		fetch:       fetch,
		log:         log,
	}
}

// Run fetches every source and returns results in source order.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, len(r.sources))
	visited := NewURLSet()

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for i, src := range r.sources {
		g.Go(func() error {
			fetcher := NewFetcher(r.fetch, visited, r.log)
			started := time.Now()

			events, err := src.Fetch(ctx, fetcher)
			results[i] = Result{
				Source:   src.Name(),
				Events:   events,
				Err:      err,
				Duration: time.Since(started),
			}

			fields := logger.Fields{
				"source":   src.Name(),
				"count":    len(events),
				"duration": results[i].Duration.String(),
			}
			if err != nil {
				r.log.Error("Source scrape failed", fields, err)
			} else {
				r.log.Info("Source scraped", fields)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
