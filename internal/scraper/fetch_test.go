package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(FetchOptions{MaxRetries: 2}, nil, nil)
	body, err := f.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetcher_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFetcher(FetchOptions{MaxRetries: 3}, nil, nil)
	if _, err := f.Get(context.Background(), server.URL); err == nil {
		t.Fatal("Get() expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetcher_Visited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(FetchOptions{}, NewURLSet(), nil)
	if _, err := f.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, err := f.Get(context.Background(), server.URL); !errors.Is(err, ErrVisited) {
		t.Errorf("second Get() error = %v, want ErrVisited", err)
	}
}

func TestURLSet_Concurrent(t *testing.T) {
	s := NewURLSet()
	var added int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("https://example.com/page") {
				atomic.AddInt32(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("Add() returned true %d times, want 1", added)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
