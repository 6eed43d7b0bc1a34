package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidWeek is returned for strings that are not a Monday-to-Sunday week identifier.
var ErrInvalidWeek = errors.New("invalid week identifier")

// WeekIdentifier returns the "YYYY-MM-DD_to_YYYY-MM-DD" identifier of the
// Monday-to-Sunday week containing t.
func WeekIdentifier(t time.Time) string {
	monday := weekStart(t)
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format(dateLayout) + "_to_" + sunday.Format(dateLayout)
}

// WeekOf returns the week identifier of a canonical start time.
func WeekOf(startTime string) (string, error) {
	t, err := ParseCivil(startTime)
	if err != nil {
		return "", err
	}
	return WeekIdentifier(t), nil
}

// UpcomingWeek returns the identifier of the first full week starting after now.
func UpcomingWeek(now time.Time) string {
	return WeekIdentifier(weekStart(now).AddDate(0, 0, 7))
}

// ParseWeek validates a week identifier and returns its Monday and Sunday dates.
func ParseWeek(id string) (time.Time, time.Time, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(id), "_to_")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeek, id)
	}

	monday, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeek, id)
	}
	sunday, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeek, id)
	}

	if monday.Weekday() != time.Monday || !sunday.Equal(monday.AddDate(0, 0, 6)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q is not a Monday-to-Sunday range", ErrInvalidWeek, id)
	}

	return monday, sunday, nil
}

// InWeek reports whether a canonical start time falls inside the given week.
func InWeek(startTime, week string) bool {
	w, err := WeekOf(startTime)
	if err != nil {
		return false
	}
	return w == week
}

// weekStart returns midnight of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}
