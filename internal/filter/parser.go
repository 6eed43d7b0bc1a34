package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthNames = `jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december`

var (
	sameMonthPattern  = regexp.MustCompile(`(?i)^(` + monthNames + `)\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthPattern = regexp.MustCompile(`(?i)^(` + monthNames + `)\s+(\d{1,2})\s*-\s*(` + monthNames + `)\s+(\d{1,2})$`)
	monthPattern      = regexp.MustCompile(`(?i)^(` + monthNames + `)$`)
	isoRangePattern   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:\s*(?:\.\.|to|-\s)\s*(\d{4}-\d{2}-\d{2}))?$`)
)

// ParseDateRange parses a date range string into start and end times.
//
// Supported formats:
//   - "Nov 1-15" or "November 1-15" - Same month, different days
//   - "Nov 28 - Dec 5" - Different months
//   - "November" - Entire month
//   - "2025-11-14", "2025-11-14..2025-11-16" - explicit ISO dates
//
// Month-name forms infer the year: a month already past this year means next
// year, and an end month before the start month rolls into the next year.
//
// Returns (dateFrom, dateTo, error). Times are in UTC.
// Start time is at 00:00:00, end time is at 23:59:59.
func ParseDateRange(input string) (*time.Time, *time.Time, error) {
	return parseDateRange(input, time.Now())
}

func parseDateRange(input string, now time.Time) (*time.Time, *time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if matches := isoRangePattern.FindStringSubmatch(input); matches != nil {
		from, err := time.Parse("2006-01-02", matches[1])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date: %s", matches[1])
		}
		to := from
		if matches[2] != "" {
			if to, err = time.Parse("2006-01-02", matches[2]); err != nil {
				return nil, nil, fmt.Errorf("invalid date: %s", matches[2])
			}
		}
		return bounds(from, to)
	}

	if matches := sameMonthPattern.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		day1, err := parseDay(matches[2])
		if err != nil {
			return nil, nil, err
		}
		day2, err := parseDay(matches[3])
		if err != nil {
			return nil, nil, err
		}

		year := yearForMonth(month, now)
		return bounds(
			time.Date(year, month, day1, 0, 0, 0, 0, time.UTC),
			time.Date(year, month, day2, 0, 0, 0, 0, time.UTC),
		)
	}

	if matches := crossMonthPattern.FindStringSubmatch(input); matches != nil {
		month1 := parseMonth(matches[1])
		day1, err := parseDay(matches[2])
		if err != nil {
			return nil, nil, err
		}
		month2 := parseMonth(matches[3])
		day2, err := parseDay(matches[4])
		if err != nil {
			return nil, nil, err
		}

		year1 := yearForMonth(month1, now)
		year2 := year1
		// If month2 < month1, assume month2 is in the next year
		if month2 < month1 {
			year2++
		}

		return bounds(
			time.Date(year1, month1, day1, 0, 0, 0, 0, time.UTC),
			time.Date(year2, month2, day2, 0, 0, 0, 0, time.UTC),
		)
	}

	if matches := monthPattern.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		year := yearForMonth(month, now)
		// Day 0 of the next month is the last day of this one
		return bounds(
			time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC),
		)
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use 'Nov 1-15', 'Nov 28 - Dec 5', 'November' or '2025-11-14..2025-11-16'")
}

// bounds expands two days to [from 00:00:00, to 23:59:59].
func bounds(from, to time.Time) (*time.Time, *time.Time, error) {
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
	if from.After(end) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &from, &end, nil
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day: %s", s)
	}
	return day, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}

	return months[name]
}

// yearForMonth returns the year a bare month name refers to, relative to now.
// If the month has already passed this year, returns next year.
func yearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
