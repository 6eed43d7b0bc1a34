package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/pfrederiksen/weekly-events/internal/logger"
)

const (
	UserAgent = "weekly-events/1.0 (github.com/pfrederiksen/weekly-events)"
	Timeout   = 30 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 10 << 20
)

// ErrVisited is returned by Fetcher.Get for a URL already fetched in this run.
var ErrVisited = errors.New("url already fetched in this run")

// FetchOptions configures a Fetcher.
type FetchOptions struct {
	Timeout      time.Duration
	RequestDelay time.Duration
	MaxRetries   uint64
	UserAgent    string
}

// DefaultFetchOptions returns the options used when none are configured.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Timeout:      Timeout,
		RequestDelay: time.Second,
		MaxRetries:   2,
		UserAgent:    UserAgent,
	}
}

// Fetcher performs sequential, throttled GET requests for one source.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	retries   uint64
	userAgent string
	visited   *URLSet
	log       *logger.Logger
}

// NewFetcher creates a Fetcher. visited may be shared between fetchers of
// the same run; nil disables the check.
func NewFetcher(opts FetchOptions, visited *URLSet, log *logger.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if log == nil {
		log = logger.Nop()
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:   rate.NewLimiter(limit, 1),
		retries:   opts.MaxRetries,
		userAgent: opts.UserAgent,
		visited:   visited,
		log:       log,
	}
}

// Get fetches url and returns the body. Network errors and 5xx/429 responses
// are retried with exponential backoff; other non-200 statuses fail at once.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if f.visited != nil && !f.visited.Add(url) {
		return nil, ErrVisited
	}

	var body []byte
	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		b, err := f.do(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		f.log.Warn("Fetch failed, retrying", logger.Fields{
			"url":      url,
			"retry_in": wait.String(),
			"error":    err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
