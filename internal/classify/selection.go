package classify

import (
	"sort"
	"time"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

// constrainedShare is the fraction of slots filled under the per-category cap.
const constrainedShare = 0.8

// CandidateSet is the ranked review set for one week.
type CandidateSet struct {
	Week        string          `json:"week_identifier"`
	GeneratedAt time.Time       `json:"generated_at"`
	MaxCount    int             `json:"max_count"`
	Candidates  []*event.Record `json:"candidates"`
}

// CategoryCap returns the per-category limit applied while filling the
// constrained slots: max(2, maxCount/4).
func CategoryCap(maxCount int) int {
	return max(2, maxCount/4)
}

// SelectTopCandidates picks at most maxCount records. The first 80% of slots
// are filled in rank order with at most CategoryCap records per event type;
// the remaining slots are filled in rank order without a cap. The result is
// in rank order.
func SelectTopCandidates(records []*event.Record, maxCount int) []*event.Record {
	if maxCount <= 0 || len(records) == 0 {
		return nil
	}

	ranked := make([]*event.Record, len(records))
	copy(ranked, records)
	SortByRank(ranked)

	limit := CategoryCap(maxCount)
	constrained := int(float64(maxCount) * constrainedShare)

	selected := make([]*event.Record, 0, min(maxCount, len(ranked)))
	taken := make([]bool, len(ranked))
	perType := make(map[string]int)

	for i, rec := range ranked {
		if len(selected) >= constrained {
			break
		}
		if perType[rec.EventType] >= limit {
			continue
		}
		perType[rec.EventType]++
		taken[i] = true
		selected = append(selected, rec)
	}

	for i, rec := range ranked {
		if len(selected) >= maxCount {
			break
		}
		if taken[i] {
			continue
		}
		taken[i] = true
		selected = append(selected, rec)
	}

	SortByRank(selected)
	return selected
}

// SortByRank orders records by priority, Chinese relevance and confidence,
// all descending, then by start time and id.
func SortByRank(records []*event.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.ChineseRelevant != b.ChineseRelevant {
			return a.ChineseRelevant
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}
