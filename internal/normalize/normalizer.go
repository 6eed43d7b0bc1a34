package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// ErrMissingField rejects raw events lacking a title, location or URL.
var ErrMissingField = errors.New("missing required field")

// Normalizer converts scraped RawEvents into normalized Events.
type Normalizer struct {
	times *TimeNormalizer
	log   *logger.Logger
}

// New creates a Normalizer using the given time normalizer.
func New(times *TimeNormalizer, log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop()
	}
	if times == nil {
		times = NewTimeNormalizer(nil, log)
	}
	return &Normalizer{times: times, log: log}
}

// Event normalizes one raw listing. A listing without an exact start time
// yields a *ParseError; one missing a title, location or URL yields
// ErrMissingField. An unusable end time is dropped rather than failing the event.
func (n *Normalizer) Event(raw event.RawEvent) (*event.Event, error) {
	title := CleanText(raw.Title)
	location := CleanLocationText(raw.Location)
	url := strings.TrimSpace(raw.OriginalURL)

	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	case location == "":
		return nil, fmt.Errorf("%w: location", ErrMissingField)
	case url == "":
		return nil, fmt.Errorf("%w: original_url", ErrMissingField)
	}

	normalizedTitle := NormalizeTitle(title)
	if normalizedTitle == "" {
		return nil, fmt.Errorf("%w: title has no letters or digits", ErrMissingField)
	}

	start, end, err := n.resolveTimes(raw)
	if err != nil {
		return nil, err
	}

	week, err := event.WeekOf(start)
	if err != nil {
		return nil, parseErr(start, ErrUnparseable)
	}

	return &event.Event{
		Title:           title,
		NormalizedTitle: normalizedTitle,
		StartTime:       start,
		EndTime:         end,
		Location:        location,
		Price:           NormalizePrice(raw.Price),
		Description:     CleanText(raw.Description),
		SourceID:        raw.SourceID,
		OriginalURL:     url,
		WeekIdentifier:  week,
	}, nil
}

// resolveTimes resolves start and end, preferring machine attributes over free text.
func (n *Normalizer) resolveTimes(raw event.RawEvent) (string, string, error) {
	var start, end string
	var err error

	switch {
	case strings.TrimSpace(raw.StartTime) != "":
		start, err = n.times.Normalize(raw.StartTime, raw.SourceID)
		if err != nil {
			return "", "", err
		}
	case HasTimeRange(raw.TimeText):
		r, err := ParseTimeRange(raw.DateText, raw.TimeText)
		if err != nil {
			return "", "", err
		}
		start, end = r.Start, r.End
	default:
		start, err = ParseTimeText(raw.DateText, raw.TimeText)
		if errors.Is(err, ErrNoTime) {
			return "", "", parseErr(raw.DateText, ErrDateOnly)
		}
		if err != nil {
			return "", "", err
		}
	}

	if strings.TrimSpace(raw.EndTime) != "" {
		parsed, endErr := n.times.Normalize(raw.EndTime, raw.SourceID)
		if endErr != nil {
			n.log.Debug("Dropping unusable end time", logger.Fields{
				"source": raw.SourceID,
				"value":  raw.EndTime,
			})
		} else {
			end = parsed
		}
	}

	if end != "" && end <= start {
		end = ""
	}
	return start, end, nil
}
