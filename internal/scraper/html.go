package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// HTMLSource scrapes listing pages with CSS selectors.
type HTMLSource struct {
	name string
	urls []string
	sel  Selectors
	log  *logger.Logger
}

func (s *HTMLSource) Name() string { return s.name }

// Fetch scrapes every configured page in order. A page that fails aborts
// the source; pages already fetched in this run are skipped.
func (s *HTMLSource) Fetch(ctx context.Context, f *Fetcher) ([]event.RawEvent, error) {
	var events []event.RawEvent
	for _, pageURL := range s.urls {
		body, err := f.Get(ctx, pageURL)
		if errors.Is(err, ErrVisited) {
			continue
		}
		if err != nil {
			return events, fmt.Errorf("fetching %s: %w", pageURL, err)
		}

		page, err := s.parse(body, pageURL)
		if err != nil {
			return events, err
		}
		events = append(events, page...)
	}
	return events, nil
}

// parse extracts listings from one page.
func (s *HTMLSource) parse(body []byte, pageURL string) ([]event.RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, _ := url.Parse(pageURL)
	events := make([]event.RawEvent, 0)
	dropped := 0

	doc.Find(s.sel.Item).Each(func(i int, item *goquery.Selection) {
		raw := event.RawEvent{
			Title:       text(item, s.sel.Title),
			StartTime:   value(item, s.sel.Start, s.sel.StartAttr),
			EndTime:     value(item, s.sel.End, s.sel.EndAttr),
			DateText:    text(item, s.sel.Date),
			TimeText:    text(item, s.sel.Time),
			Location:    text(item, s.sel.Location),
			Price:       text(item, s.sel.Price),
			Description: text(item, s.sel.Description),
			SourceID:    s.name,
			OriginalURL: link(item, s.sel.Link, base),
		}
		if raw.TimeText == "" && raw.DateText != "" && s.sel.Time == "" {
			// Date and time share one element
			raw.TimeText = raw.DateText
		}

		if !complete(raw) {
			dropped++
			return
		}
		events = append(events, raw)
	})

	if dropped > 0 {
		s.log.Debug("Dropped incomplete listings", logger.Fields{"url": pageURL, "dropped": dropped})
	}
	return events, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

func value(item *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	sel := item.Find(selector).First()
	if attr != "" {
		v, _ := sel.Attr(attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// link resolves the listing's href against the page URL. Without a link
// selector the item itself (or its first anchor) is used.
func link(item *goquery.Selection, selector string, base *url.URL) string {
	sel := item
	if selector != "" {
		sel = item.Find(selector).First()
	}
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}
