package scraper

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

//go:embed raw_event.schema.json
var rawEventSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// JSONSource reads listings from a JSON feed: either an array of objects
// or an object with an "events" array. Each object is validated against the
// raw event schema; invalid objects are dropped.
type JSONSource struct {
	name string
	urls []string
	log  *logger.Logger
}

func (s *JSONSource) Name() string { return s.name }

func (s *JSONSource) Fetch(ctx context.Context, f *Fetcher) ([]event.RawEvent, error) {
	var events []event.RawEvent
	for _, feedURL := range s.urls {
		body, err := f.Get(ctx, feedURL)
		if errors.Is(err, ErrVisited) {
			continue
		}
		if err != nil {
			return events, fmt.Errorf("fetching %s: %w", feedURL, err)
		}

		feed, err := s.parse(body)
		if err != nil {
			return events, fmt.Errorf("parsing %s: %w", feedURL, err)
		}
		events = append(events, feed...)
	}
	return events, nil
}

func (s *JSONSource) parse(body []byte) ([]event.RawEvent, error) {
	items, err := feedItems(body)
	if err != nil {
		return nil, err
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	events := make([]event.RawEvent, 0, len(items))
	for i, item := range items {
		raw, err := decodeItem(schema, item)
		if err != nil {
			s.log.Debug("Dropped invalid feed item", logger.Fields{"index": i, "error": err.Error()})
			continue
		}
		raw.SourceID = s.name
		events = append(events, raw)
	}
	return events, nil
}

// feedItems splits a feed body into its raw items.
func feedItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		return items, nil
	}

	var wrapper struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return wrapper.Events, nil
}

func decodeItem(schema *jsonschema.Schema, item json.RawMessage) (event.RawEvent, error) {
	decoder := json.NewDecoder(bytes.NewReader(item))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return event.RawEvent{}, fmt.Errorf("decode item: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return event.RawEvent{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var raw event.RawEvent
	if err := json.Unmarshal(item, &raw); err != nil {
		return event.RawEvent{}, fmt.Errorf("unmarshal item: %w", err)
	}
	raw.Title = strings.TrimSpace(raw.Title)
	raw.Location = strings.TrimSpace(raw.Location)
	raw.OriginalURL = strings.TrimSpace(raw.OriginalURL)
	if !complete(raw) {
		return event.RawEvent{}, fmt.Errorf("item is missing required fields")
	}
	return raw, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("raw_event.schema.json", strings.NewReader(rawEventSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("raw_event.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}
