package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/pfrederiksen/weekly-events/internal/canonical"
	"github.com/pfrederiksen/weekly-events/internal/dedup"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/metrics"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

const testWeek = "2025-11-10_to_2025-11-16"

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func seedEvent(title, start, location, eventType string, priority int) *event.Event {
	week, _ := event.WeekOf(start)
	return &event.Event{
		Title:           title,
		NormalizedTitle: strings.ToLower(title),
		StartTime:       start,
		Location:        location,
		SourceID:        "city",
		OriginalURL:     "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		EventType:       eventType,
		Priority:        priority,
		WeekIdentifier:  week,
	}
}

func newTestServer(t *testing.T) (*Server, *canonical.Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error: %v", err)
	}
	store := canonical.New(backend, dedup.DefaultConfig(), nil)

	ctx := context.Background()
	for _, evt := range []*event.Event{
		seedEvent("Holiday Market", "2025-11-15T10:00", "Union Square", "market", 10),
		seedEvent("Jazz Night", "2025-11-14T19:00", "Blue Note", "music", 7),
		seedEvent("Night Market", "2025-11-16T17:00", "Pier 39", "market", 10),
	} {
		if _, err := store.SaveEvent(ctx, evt); err != nil {
			t.Fatalf("SaveEvent() error: %v", err)
		}
	}
	if err := store.LogScrapingResult(ctx, canonical.ScrapeResult{RunID: "run-1", Source: "city", Week: testWeek, Count: 3}); err != nil {
		t.Fatalf("LogScrapingResult() error: %v", err)
	}

	m := metrics.New()
	m.EventsScraped("city", 3)
	return NewServer(store, m, nil, Options{MaxCount: 10}), store, dir
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestServer_WeekEvents(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
	}{
		{name: "all", target: "/api/weeks/" + testWeek + "/events", wantStatus: http.StatusOK, wantCount: 3},
		{name: "type filter", target: "/api/weeks/" + testWeek + "/events?type=market", wantStatus: http.StatusOK, wantCount: 2},
		{name: "weekend market at pier", target: "/api/weeks/" + testWeek + "/events?type=market&location=pier&weekends=true", wantStatus: http.StatusOK, wantCount: 1},
		{name: "no match", target: "/api/weeks/" + testWeek + "/events?type=food", wantStatus: http.StatusOK, wantCount: 0},
		{name: "invalid week", target: "/api/weeks/next-week/events", wantStatus: http.StatusBadRequest},
		{name: "invalid filter", target: "/api/weeks/" + testWeek + "/events?free=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if env.Status != "fail" {
					t.Errorf("envelope status = %q, want fail", env.Status)
				}
				return
			}

			var data weekEventsResponse
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("decoding data: %v", err)
			}
			if data.Count != tt.wantCount || len(data.Events) != tt.wantCount {
				t.Errorf("count = %d (%d events), want %d", data.Count, len(data.Events), tt.wantCount)
			}
		})
	}
}

func TestServer_Candidates(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/weeks/"+testWeek+"/candidates?max=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var data struct {
		Week       string          `json:"week_identifier"`
		MaxCount   int             `json:"max_count"`
		Candidates []*event.Record `json:"candidates"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.Week != testWeek || data.MaxCount != 2 {
		t.Errorf("set header = %q, %d", data.Week, data.MaxCount)
	}
	if len(data.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(data.Candidates))
	}
	if data.Candidates[0].Priority != 10 {
		t.Errorf("top candidate priority = %d, want 10", data.Candidates[0].Priority)
	}

	if rec, _ := do(t, s, http.MethodGet, "/api/weeks/"+testWeek+"/candidates?max=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("max=0 status = %d, want 400", rec.Code)
	}
}

func TestServer_EventAndEnrichment(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/events/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got event.Record
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.Title != "Holiday Market" {
		t.Errorf("Title = %q", got.Title)
	}

	rec, env = do(t, s, http.MethodPut, "/api/events/1/enrichment", `{"translation": "节日市集", "short_summary": "Crafts and food"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	got = event.Record{}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.Translation == nil || *got.Translation != "节日市集" {
		t.Errorf("Translation = %v", got.Translation)
	}

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "missing event", method: http.MethodGet, target: "/api/events/999", wantStatus: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, target: "/api/events/abc", wantStatus: http.StatusBadRequest},
		{name: "empty enrichment", method: http.MethodPut, target: "/api/events/1/enrichment", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "enrich missing event", method: http.MethodPut, target: "/api/events/999/enrichment", body: `{"translation": "x"}`, wantStatus: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPut, target: "/api/events/1/enrichment", body: `{"translation":`, wantStatus: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodGet, target: "/api/nothing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env.Status != "fail" {
				t.Errorf("envelope status = %q, want fail", env.Status)
			}
		})
	}
}

func TestServer_ScrapeLogs(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/scrape-logs?source=city&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Items []storage.ScrapeLog `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(data.Items) != 1 || data.Items[0].RunID != "run-1" {
		t.Errorf("items = %+v", data.Items)
	}

	if rec, _ := do(t, s, http.MethodGet, "/api/scrape-logs?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s, _, dir := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Errorf("healthz = %d %q", rec.Code, env.Status)
	}

	rec, _ = do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `weekly_events_events_scraped_total{source="city"} 3`) {
		t.Errorf("metrics body missing scraped counter")
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	rec, env = do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable || env.Status != "error" {
		t.Errorf("healthz with missing store = %d %q, want 503 error", rec.Code, env.Status)
	}
}
