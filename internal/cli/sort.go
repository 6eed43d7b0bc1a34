package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/weekly-events/internal/classify"
	"github.com/pfrederiksen/weekly-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate     SortOrder = "date"
	SortByTitle    SortOrder = "title"
	SortByLocation SortOrder = "location"
	SortByRank     SortOrder = "rank"
)

// sortRecords sorts a slice of records based on the specified sort order
func sortRecords(records []*event.Record, sortOrder SortOrder) error {
	switch sortOrder {
	case SortByDate, "":
		sort.SliceStable(records, func(i, j int) bool {
			return compareByDate(records[i], records[j])
		})
	case SortByTitle:
		sort.SliceStable(records, func(i, j int) bool {
			ti, tj := strings.ToLower(records[i].Title), strings.ToLower(records[j].Title)
			if ti != tj {
				return ti < tj
			}
			// If titles are equal, sort by date
			return compareByDate(records[i], records[j])
		})
	case SortByLocation:
		sort.SliceStable(records, func(i, j int) bool {
			li, lj := strings.ToLower(records[i].Location), strings.ToLower(records[j].Location)
			if li != lj {
				return li < lj
			}
			return compareByDate(records[i], records[j])
		})
	case SortByRank:
		classify.SortByRank(records)
	default:
		return fmt.Errorf("invalid sort order: %s (must be 'date', 'title', 'location' or 'rank')", sortOrder)
	}
	return nil
}

// compareByDate compares two records by start time, then title.
// Canonical start times sort lexically in time order.
func compareByDate(i, j *event.Record) bool {
	if i.StartTime != j.StartTime {
		return i.StartTime < j.StartTime
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
