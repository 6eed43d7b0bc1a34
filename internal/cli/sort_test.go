package cli

import (
	"testing"

	"github.com/pfrederiksen/weekly-events/internal/event"
)

func rec(id int64, title, start, location string, priority int) *event.Record {
	return &event.Record{
		ID: id,
		Event: event.Event{
			Title:     title,
			StartTime: start,
			Location:  location,
			Priority:  priority,
			EventType: "other",
		},
	}
}

func TestSortRecords(t *testing.T) {
	records := func() []*event.Record {
		return []*event.Record{
			rec(1, "beta", "2025-11-15T10:00", "Zoo", 3),
			rec(2, "Alpha", "2025-11-16T09:00", "Park", 10),
			rec(3, "gamma", "2025-11-14T18:00", "Hall", 7),
			rec(4, "alpha", "2025-11-13T12:00", "park", 3),
		}
	}

	tests := []struct {
		name    string
		order   SortOrder
		want    []int64
		wantErr bool
	}{
		{name: "date", order: SortByDate, want: []int64{4, 3, 1, 2}},
		{name: "default is date", order: "", want: []int64{4, 3, 1, 2}},
		{name: "title case-insensitive, then date", order: SortByTitle, want: []int64{4, 2, 1, 3}},
		{name: "location, then date", order: SortByLocation, want: []int64{3, 4, 2, 1}},
		{name: "rank", order: SortByRank, want: []int64{2, 3, 4, 1}},
		{name: "unknown", order: "state", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := records()
			err := sortRecords(recs, tt.order)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sortRecords() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			for i, id := range tt.want {
				if recs[i].ID != id {
					t.Errorf("position %d = %d, want %d", i, recs[i].ID, id)
				}
			}
		})
	}
}
