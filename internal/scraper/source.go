package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// Source kinds.
const (
	KindHTML = "html"
	KindJSON = "json"
)

// Source produces raw listings from one website. Implementations drop
// listings missing a title, location, link or any time information.
type Source interface {
	Name() string
	Fetch(ctx context.Context, f *Fetcher) ([]event.RawEvent, error)
}

// Selectors are the CSS selectors an HTML source is scraped with. Item
// selects one element per listing; the rest are evaluated inside it. An
// *Attr field reads that attribute instead of the element text.
type Selectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Start       string `yaml:"start"`
	StartAttr   string `yaml:"start_attr"`
	End         string `yaml:"end"`
	EndAttr     string `yaml:"end_attr"`
	Date        string `yaml:"date"`
	Time        string `yaml:"time"`
	Location    string `yaml:"location"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
}

// SourceConfig describes one configured source.
type SourceConfig struct {
	Name      string    `yaml:"name"`
	Kind      string    `yaml:"kind"`
	URLs      []string  `yaml:"urls"`
	Selectors Selectors `yaml:"selectors"`
	Disabled  bool      `yaml:"disabled"`
}

// Validate checks the fields NewSource relies on.
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if len(c.URLs) == 0 {
		return fmt.Errorf("source %s: at least one url is required", c.Name)
	}
	switch c.Kind {
	case KindHTML:
		s := c.Selectors
		if s.Item == "" || s.Title == "" || s.Location == "" {
			return fmt.Errorf("source %s: item, title and location selectors are required", c.Name)
		}
		if s.Start == "" && s.Date == "" {
			return fmt.Errorf("source %s: a start or date selector is required", c.Name)
		}
	case KindJSON:
	default:
		return fmt.Errorf("source %s: unknown kind %q (must be 'html' or 'json')", c.Name, c.Kind)
	}
	return nil
}

// NewSource builds the source described by cfg.
func NewSource(cfg SourceConfig, log *logger.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Fields{"source": cfg.Name})

	switch cfg.Kind {
	case KindHTML:
		return &HTMLSource{name: cfg.Name, urls: cfg.URLs, sel: cfg.Selectors, log: log}, nil
	default:
		return &JSONSource{name: cfg.Name, urls: cfg.URLs, log: log}, nil
	}
}

// complete reports whether raw carries every field the pipeline requires.
func complete(raw event.RawEvent) bool {
	if raw.Title == "" || raw.Location == "" || raw.OriginalURL == "" {
		return false
	}
	return raw.StartTime != "" || (raw.DateText != "" && raw.TimeText != "")
}
