// Package cli implements the command-line interface for weekly-events.
//
// The cli package provides the Cobra-based CLI: "run" executes one scrape
// cycle, "week" and "candidates" list a week's canonical records (text, JSON
// or iCalendar), "logs" shows scraping history, "enrich" and "delete" edit
// stored records, and "serve" starts the HTTP API. It wires config, storage,
// scraper, normalize, dedup, classify, metrics and pipeline together.
package cli
