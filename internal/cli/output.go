package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/calendar"
	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/pipeline"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// OutputResult contains data to be output
type OutputResult struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Week        string                     `json:"week_identifier"`
	Filter      string                     `json:"filter,omitempty"`
	Events      []*event.Record            `json:"events"`
	EventCount  int                        `json:"event_count"`
	ByType      map[string][]*event.Record `json:"by_type,omitempty"`
	Ranked      bool                       `json:"ranked,omitempty"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	case FormatICS:
		_, err := io.WriteString(w, calendar.GenerateICS(result.Events))
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	fmt.Fprintf(w, "Week %s\n", result.Week)
	if result.Filter != "" && result.Filter != "No active filters" {
		fmt.Fprintf(w, "Filter: %s\n", result.Filter)
	}

	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	// Candidates keep their rank order
	if result.Ranked {
		fmt.Fprintln(w)
		for i, rec := range result.Events {
			fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, rec.EventType, eventLine(rec))
			if verbose {
				writeDetails(w, rec, "    ")
			}
		}
		fmt.Fprintf(w, "\nTotal: %d candidates\n", result.EventCount)
		return nil
	}

	byType := result.ByType
	if len(byType) == 0 {
		byType = groupByType(result.Events)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		recs := byType[t]
		if len(recs) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s (%d events):\n", t, len(recs))
		for _, rec := range recs {
			fmt.Fprintf(w, "  %s\n", eventLine(rec))
			if verbose {
				writeDetails(w, rec, "       ")
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d events across %d types\n", result.EventCount, len(types))

	return nil
}

// eventLine renders "Sat Nov 15 10:00  Title @ Location (Free)".
func eventLine(rec *event.Record) string {
	when := rec.StartTime
	if t, err := event.ParseCivil(rec.StartTime); err == nil {
		when = t.Format("Mon Jan 2 15:04")
	}

	line := fmt.Sprintf("%s  %s @ %s", when, rec.Title, rec.Location)
	if rec.Price != "" {
		line += fmt.Sprintf(" (%s)", rec.Price)
	}
	return line
}

func writeDetails(w io.Writer, rec *event.Record, indent string) {
	fmt.Fprintf(w, "%sID: %d\n", indent, rec.ID)
	fmt.Fprintf(w, "%sSource: %s\n", indent, rec.SourceID)
	fmt.Fprintf(w, "%sPriority: %d\n", indent, rec.Priority)
	if rec.EndTime != "" {
		fmt.Fprintf(w, "%sEnds: %s\n", indent, rec.EndTime)
	}
	if rec.Translation != nil {
		fmt.Fprintf(w, "%sTranslation: %s\n", indent, *rec.Translation)
	}
	if rec.OriginalURL != "" {
		fmt.Fprintf(w, "%sURL: %s\n", indent, rec.OriginalURL)
	}
}

func groupByType(records []*event.Record) map[string][]*event.Record {
	grouped := make(map[string][]*event.Record)
	for _, rec := range records {
		t := rec.EventType
		if t == "" {
			t = "other"
		}
		grouped[t] = append(grouped[t], rec)
	}
	return grouped
}

// WriteReport writes a cycle report
func WriteReport(w io.Writer, report *pipeline.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	fmt.Fprintf(w, "Run %s for week %s (%s)\n\n", report.RunID, report.Week, report.Duration.Round(time.Millisecond))

	for _, src := range report.Sources {
		if src.Error != "" {
			fmt.Fprintf(w, "  FAIL %s: %s\n", src.Source, src.Error)
			continue
		}
		fmt.Fprintf(w, "  OK   %s: %d listings\n", src.Source, src.Scraped)
	}

	fmt.Fprintf(w, "\nScraped: %d (parse errors %d, missing fields %d)\n", report.Scraped, report.ParseErrors, report.MissingFields)
	fmt.Fprintf(w, "Batch: kept %d of %d (url duplicates %d, key duplicates %d)\n",
		report.Batch.Kept, report.Batch.Input, report.Batch.URLDuplicates, report.Batch.KeyDuplicates)
	fmt.Fprintf(w, "Store: created %d, refreshed %d, duplicates %d, errors %d\n",
		report.Created, report.Refreshed, report.Duplicates, report.StoreErrors)

	if report.Candidates == nil {
		return nil
	}
	fmt.Fprintf(w, "Candidates: %d of max %d\n", len(report.Candidates.Candidates), report.Candidates.MaxCount)
	if verbose {
		for i, rec := range report.Candidates.Candidates {
			fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, rec.EventType, eventLine(rec))
		}
	}
	return nil
}

// WriteLogs writes scrape log entries, newest first as stored.
func WriteLogs(w io.Writer, logs []*storage.ScrapeLog, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, logs)
	case FormatText:
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if len(logs) == 0 {
		fmt.Fprintln(w, "No scrape logs found.")
		return nil
	}

	for _, l := range logs {
		status := "OK  "
		if !l.Success {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s  %-20s %4d  %s", l.ScrapedAt.Format(time.RFC3339), status, l.Source, l.EventsCount, l.Week)
		if l.Error != "" {
			fmt.Fprintf(w, "  %s", l.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
