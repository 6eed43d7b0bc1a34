package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div class="event">
  <h3 class="title"><a href="/events/market">Holiday   Market</a></h3>
  <time class="start" datetime="2025-11-15T10:00:00-08:00">Nov 15, 10am</time>
  <span class="venue">Union Square</span>
  <span class="price">Free</span>
  <p class="desc">Crafts and food</p>
</div>
<div class="event">
  <h3 class="title"><a href="https://other.example.com/jazz">Jazz Night</a></h3>
  <time class="start" datetime="2025-11-15T19:00">Nov 15, 7pm</time>
  <span class="venue">Blue Note</span>
</div>
<div class="event">
  <h3 class="title"><a href="/events/no-venue">No Venue</a></h3>
  <time class="start" datetime="2025-11-16T12:00">Nov 16</time>
</div>
<div class="event">
  <h3 class="title"><a href="/events/no-time">No Time</a></h3>
  <span class="venue">Library</span>
</div>
</body></html>`

func htmlSelectors() Selectors {
	return Selectors{
		Item:        ".event",
		Title:       ".title",
		Link:        ".title a",
		Start:       "time.start",
		StartAttr:   "datetime",
		Location:    ".venue",
		Price:       ".price",
		Description: ".desc",
	}
}

func TestHTMLSource_Fetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	src, err := NewSource(SourceConfig{
		Name:      "city",
		Kind:      KindHTML,
		URLs:      []string{server.URL + "/calendar"},
		Selectors: htmlSelectors(),
	}, nil)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}

	events, err := src.Fetch(context.Background(), NewFetcher(FetchOptions{}, nil, nil))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if userAgent != UserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgent, UserAgent)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (incomplete listings dropped)", len(events))
	}

	first := events[0]
	if first.Title != "Holiday Market" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.StartTime != "2025-11-15T10:00:00-08:00" {
		t.Errorf("StartTime = %q", first.StartTime)
	}
	if first.OriginalURL != server.URL+"/events/market" {
		t.Errorf("OriginalURL = %q, want resolved link", first.OriginalURL)
	}
	if first.Location != "Union Square" || first.Price != "Free" || first.Description != "Crafts and food" {
		t.Errorf("event = %+v", first)
	}
	if first.SourceID != "city" {
		t.Errorf("SourceID = %q", first.SourceID)
	}
	if events[1].OriginalURL != "https://other.example.com/jazz" {
		t.Errorf("absolute link rewritten: %q", events[1].OriginalURL)
	}
}

func TestHTMLSource_DateAndTimeText(t *testing.T) {
	page := `<ul>
<li class="e"><a href="/a">Dumpling Class</a><span class="d">2025-11-14</span><span class="t">6:30 PM</span><span class="loc">Community Kitchen</span></li>
<li class="e"><a href="/b">Night Walk</a><span class="d">2025-11-14</span><span class="loc">Park</span></li>
</ul>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	src, err := NewSource(SourceConfig{
		Name: "venue",
		Kind: KindHTML,
		URLs: []string{server.URL},
		Selectors: Selectors{
			Item:     "li.e",
			Title:    "a",
			Date:     ".d",
			Time:     ".t",
			Location: ".loc",
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}

	events, err := src.Fetch(context.Background(), NewFetcher(FetchOptions{}, nil, nil))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].DateText != "2025-11-14" || events[0].TimeText != "6:30 PM" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].OriginalURL != server.URL+"/a" {
		t.Errorf("OriginalURL = %q", events[0].OriginalURL)
	}
}

func TestHTMLSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src, _ := NewSource(SourceConfig{
		Name:      "city",
		Kind:      KindHTML,
		URLs:      []string{server.URL},
		Selectors: htmlSelectors(),
	}, nil)

	if _, err := src.Fetch(context.Background(), NewFetcher(FetchOptions{}, nil, nil)); err == nil {
		t.Error("Fetch() expected error for 404")
	}
}

func TestSourceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SourceConfig
		wantErr bool
	}{
		{name: "valid html", cfg: SourceConfig{Name: "a", Kind: KindHTML, URLs: []string{"http://x"}, Selectors: htmlSelectors()}},
		{name: "valid json", cfg: SourceConfig{Name: "a", Kind: KindJSON, URLs: []string{"http://x"}}},
		{name: "missing name", cfg: SourceConfig{Kind: KindJSON, URLs: []string{"http://x"}}, wantErr: true},
		{name: "missing urls", cfg: SourceConfig{Name: "a", Kind: KindJSON}, wantErr: true},
		{name: "unknown kind", cfg: SourceConfig{Name: "a", Kind: "rss", URLs: []string{"http://x"}}, wantErr: true},
		{name: "html without item", cfg: SourceConfig{Name: "a", Kind: KindHTML, URLs: []string{"http://x"}, Selectors: Selectors{Title: "h3", Location: ".v", Start: "time"}}, wantErr: true},
		{name: "html without time", cfg: SourceConfig{Name: "a", Kind: KindHTML, URLs: []string{"http://x"}, Selectors: Selectors{Item: ".e", Title: "h3", Location: ".v"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
