package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

var (
	// ErrDateOnly rejects values that carry a date but no time of day.
	ErrDateOnly = errors.New("date without time of day")
	// ErrUnparseable rejects values that match no supported form.
	ErrUnparseable = errors.New("unrecognized date/time")
	// ErrNoTime is returned when free text contains no clock time.
	ErrNoTime = errors.New("no time of day found")
	// ErrAmbiguousDate rejects numeric dates that read validly as both
	// month/day and day/month.
	ErrAmbiguousDate = errors.New("ambiguous numeric date")
)

// ParseError describes a value that could not be turned into an exact start time.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(input string, err error) error {
	return &ParseError{Input: input, Err: err}
}

// DefaultOffsets are the standard and daylight offsets of US Pacific time.
var DefaultOffsets = []string{"-08:00", "-07:00"}

var (
	tzSuffixPattern    = regexp.MustCompile(`(?i)(Z|[+-]\d{2}:?\d{2})$`)
	dateOnlyPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numericDatePattern = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)
	timestampPattern   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2})(?::\d{2}(?:\.\d+)?)?$`)

	// "7:00 PM", "7pm", "7 p.m."
	clock12Pattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*([ap])\.?\s?m\b\.?`)
	// "19:00", "07:30"; a one-digit hour without am/pm is not a 24-hour time
	clock24Pattern  = regexp.MustCompile(`\b([01]\d|2[0-3]):([0-5]\d)\b`)
	noonPattern     = regexp.MustCompile(`(?i)\bnoon\b`)
	midnightPattern = regexp.MustCompile(`(?i)\bmidnight\b`)

	// "2pm - 8pm", "12 - 5pm", "7:30pm to 10pm", "14:00-16:00"
	rangePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*(?:([ap])\.?\s?m\.?)?\s*(?:-|–|—|to|until|till)\s*(\d{1,2})(?::([0-5]\d))?\s*(?:([ap])\.?\s?m\.?)?`)
)

// TimeNormalizer turns heterogeneous date/time values into canonical
// minute-precision civil time strings, or rejects them.
type TimeNormalizer struct {
	offsets map[string]bool
	log     *logger.Logger
}

// NewTimeNormalizer creates a normalizer that accepts the given local offsets
// (e.g. "-08:00", "-07:00") without warning.
func NewTimeNormalizer(offsets []string, log *logger.Logger) *TimeNormalizer {
	if len(offsets) == 0 {
		offsets = DefaultOffsets
	}
	if log == nil {
		log = logger.Nop()
	}

	accepted := make(map[string]bool, len(offsets))
	for _, o := range offsets {
		accepted[canonicalOffset(o)] = true
	}
	return &TimeNormalizer{offsets: accepted, log: log}
}

// Normalize converts a timestamp, optionally carrying a timezone suffix, to
// "YYYY-MM-DDTHH:MM". Seconds are truncated; canonical values pass through.
// Date-only values return ErrDateOnly rather than inventing a time of day.
func (n *TimeNormalizer) Normalize(value, source string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", parseErr(value, ErrUnparseable)
	}

	if dateOnlyPattern.MatchString(v) {
		n.log.Debug("Rejected date-only start time", logger.Fields{"source": source, "value": v})
		return "", parseErr(value, ErrDateOnly)
	}

	if suffix := tzSuffixPattern.FindString(v); suffix != "" && len(v) > len("2006-01-02") {
		n.checkOffset(suffix, v, source)
		v = strings.TrimSpace(strings.TrimSuffix(v, suffix))
	}

	m := timestampPattern.FindStringSubmatch(v)
	if m == nil {
		return "", parseErr(value, ErrUnparseable)
	}

	canonical := m[1] + "T" + m[2]
	if _, err := event.ParseCivil(canonical); err != nil {
		return "", parseErr(value, ErrUnparseable)
	}
	return canonical, nil
}

// checkOffset logs a warning for UTC or unexpected offsets. The value is kept
// as written; no conversion is applied.
func (n *TimeNormalizer) checkOffset(suffix, value, source string) {
	offset := canonicalOffset(suffix)
	switch {
	case offset == "+00:00":
		n.log.Warn("Timestamp carries a UTC offset, treating wall clock as local", logger.Fields{
			"source": source,
			"value":  value,
		})
	case !n.offsets[offset]:
		n.log.Warn("Timestamp carries an unexpected offset", logger.Fields{
			"source": source,
			"value":  value,
			"offset": offset,
		})
	}
}

// canonicalOffset maps "Z", "+0000", "-0800" and "-08:00" forms to "±HH:MM".
func canonicalOffset(suffix string) string {
	s := strings.TrimSpace(suffix)
	if strings.EqualFold(s, "z") {
		return "+00:00"
	}
	s = strings.ReplaceAll(s, ":", "")
	if len(s) != 5 {
		return s
	}
	if s[1:] == "0000" {
		return "+00:00"
	}
	return s[:3] + ":" + s[3:]
}

// ParseTimeText finds a clock time in free text ("7:00 PM", "7pm", "19:00",
// "noon") and combines it with dateStr.
func ParseTimeText(dateStr, timeText string) (string, error) {
	day, err := parseDate(dateStr)
	if err != nil {
		return "", err
	}

	hour, minute, err := findClock(timeText)
	if err != nil {
		return "", err
	}

	return combine(day, hour, minute), nil
}

// TimeRange is a start/end pair of canonical civil times.
type TimeRange struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// ParseTimeRange extracts a start/end pair from text such as "2pm - 8pm" or
// "12 - 5pm". An omitted start period is inferred from the end period; if
// that would put the start after the end the opposite period is used. An end
// earlier than the start falls on the following day.
func ParseTimeRange(dateStr, rangeText string) (TimeRange, error) {
	day, err := parseDate(dateStr)
	if err != nil {
		return TimeRange{}, err
	}

	for _, m := range rangePattern.FindAllStringSubmatch(rangeText, -1) {
		startH, startM, endH, endM, ok := resolveRange(m)
		if !ok {
			continue
		}

		start := time.Date(day.Year(), day.Month(), day.Day(), startH, startM, 0, 0, time.UTC)
		end := time.Date(day.Year(), day.Month(), day.Day(), endH, endM, 0, 0, time.UTC)
		if end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}

		return TimeRange{Start: event.FormatCivil(start), End: event.FormatCivil(end)}, nil
	}

	return TimeRange{}, parseErr(rangeText, ErrNoTime)
}

// HasTimeRange reports whether text contains something ParseTimeRange can use.
func HasTimeRange(text string) bool {
	for _, m := range rangePattern.FindAllStringSubmatch(text, -1) {
		if _, _, _, _, ok := resolveRange(m); ok {
			return true
		}
	}
	return false
}

// resolveRange turns one rangePattern match into 24-hour start/end values.
func resolveRange(m []string) (startH, startM, endH, endM int, ok bool) {
	startH, _ = strconv.Atoi(m[1])
	startM = atoiDefault(m[2])
	startPeriod := strings.ToLower(m[3])
	endH, _ = strconv.Atoi(m[4])
	endM = atoiDefault(m[5])
	endPeriod := strings.ToLower(m[6])

	switch {
	case startPeriod == "" && endPeriod == "":
		// Bare numbers are only trusted as two-digit 24-hour clock times.
		if m[2] == "" || m[5] == "" || len(m[1]) != 2 || len(m[4]) != 2 || startH > 23 || endH > 23 {
			return 0, 0, 0, 0, false
		}
	case startPeriod == "" && (startH > 12 || startH == 0):
		// 24-hour start paired with a 12-hour end.
		if endH, ok = to24(endH, endPeriod); !ok || startH > 23 || len(m[1]) != 2 {
			return 0, 0, 0, 0, false
		}
	default:
		if startPeriod == "" {
			startPeriod = endPeriod
		}
		if endPeriod == "" {
			endPeriod = startPeriod
		}

		inferred := m[3] == "" || m[6] == ""
		s, okStart := to24(startH, startPeriod)
		e, okEnd := to24(endH, endPeriod)
		if !okStart || !okEnd {
			return 0, 0, 0, 0, false
		}
		if inferred && s*60+startM > e*60+endM {
			if m[3] == "" {
				s, _ = to24(startH, opposite(startPeriod))
			} else {
				e, _ = to24(endH, opposite(endPeriod))
			}
		}
		startH, endH = s, e
	}

	if startH == endH && startM == endM {
		return 0, 0, 0, 0, false
	}
	return startH, startM, endH, endM, true
}

func opposite(period string) string {
	if period == "a" {
		return "p"
	}
	return "a"
}

// to24 converts a 12-hour clock hour with period "a" or "p" to 0-23.
func to24(hour int, period string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	hour %= 12
	if period == "p" {
		hour += 12
	}
	return hour, true
}

func findClock(text string) (int, int, error) {
	if m := clock12Pattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		h, ok := to24(hour, strings.ToLower(m[3]))
		if !ok {
			return 0, 0, parseErr(text, ErrUnparseable)
		}
		return h, atoiDefault(m[2]), nil
	}

	if m := clock24Pattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return hour, minute, nil
	}

	if noonPattern.MatchString(text) {
		return 12, 0, nil
	}
	if midnightPattern.MatchString(text) {
		return 0, 0, nil
	}

	return 0, 0, parseErr(text, ErrNoTime)
}

// parseDate accepts "YYYY-MM-DD" and other explicit date spellings
// ("Nov 15, 2025", "11/15/2025"). Yearless or relative dates are rejected, as
// are numeric dates whose day and month could be swapped ("05/06/2025").
func parseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, parseErr(dateStr, ErrUnparseable)
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		return parseNumericDate(dateStr, m)
	}

	t, err := dateparse.ParseAny(s)
	if err != nil || t.Year() < 2000 {
		return time.Time{}, parseErr(dateStr, ErrUnparseable)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseNumericDate resolves "a/b/yyyy". A part above 12 fixes the order;
// otherwise the date is only accepted when both readings are the same day.
func parseNumericDate(input string, m []string) (time.Time, error) {
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	month, day := a, b
	switch {
	case a > 12:
		month, day = b, a
	case b > 12:
	case a != b:
		return time.Time{}, parseErr(input, ErrAmbiguousDate)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if month < 1 || month > 12 || t.Day() != day || year < 2000 {
		return time.Time{}, parseErr(input, ErrUnparseable)
	}
	return t, nil
}

func combine(day time.Time, hour, minute int) string {
	return event.FormatCivil(time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC))
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
