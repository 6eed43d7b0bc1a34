// Package calendar exports canonical event records as iCalendar (.ics) data.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

// DefaultDuration is used for records without an end time.
const DefaultDuration = 2 * time.Hour

// GenerateICS generates an iCalendar document with one VEVENT per record.
// Records whose start time cannot be parsed are skipped. Start and end are
// written as floating local times, matching the civil times in the store.
func GenerateICS(records []*event.Record) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Weekly Events//weekly-events//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")

	// DTSTAMP - timestamp when this calendar was generated
	stamp := formatUTC(time.Now())

	for _, rec := range records {
		writeEvent(&ics, rec, stamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, rec *event.Record, stamp string) {
	start, err := rec.Start()
	if err != nil {
		return
	}
	end := start.Add(DefaultDuration)
	if rec.EndTime != "" {
		if t, err := event.ParseCivil(rec.EndTime); err == nil && t.After(start) {
			end = t
		}
	}

	ics.WriteString("BEGIN:VEVENT\r\n")

	// UID - stable across exports of the same canonical identity
	ics.WriteString(fmt.Sprintf("UID:%s@weekly-events\r\n", rec.Identity().Fingerprint()))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))
	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatLocal(start)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatLocal(end)))
	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(rec.Title)))

	var description []string
	if rec.Translation != nil && *rec.Translation != "" {
		description = append(description, *rec.Translation)
	}
	if rec.ShortSummary != nil && *rec.ShortSummary != "" {
		description = append(description, *rec.ShortSummary)
	} else if rec.Description != "" {
		description = append(description, rec.Description)
	}
	if rec.Price != "" {
		description = append(description, "Price: "+rec.Price)
	}
	if len(description) > 0 {
		ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(strings.Join(description, "\n"))))
	}

	ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(rec.Location)))
	if rec.EventType != "" {
		ics.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", escapeICS(rec.EventType)))
	}
	if rec.OriginalURL != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", rec.OriginalURL))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// formatLocal formats a civil time as a floating iCalendar datetime.
func formatLocal(t time.Time) string {
	return t.Format("20060102T150405")
}

// formatUTC formats a time.Time as an iCalendar UTC datetime string
func formatUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
