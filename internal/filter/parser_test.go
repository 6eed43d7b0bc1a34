package filter

import (
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	// Reference date: Oct 17, 2025
	now := time.Date(2025, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantFrom string
		wantTo   string
	}{
		{name: "Nov 1-15", input: "Nov 1-15", wantFrom: "2025-11-01", wantTo: "2025-11-15"},
		{name: "November 1-15", input: "November 1-15", wantFrom: "2025-11-01", wantTo: "2025-11-15"},
		{name: "Nov 28 - Dec 5", input: "Nov 28 - Dec 5", wantFrom: "2025-11-28", wantTo: "2025-12-05"},
		{name: "Dec 25 - Jan 5 (cross year)", input: "Dec 25 - Jan 5", wantFrom: "2025-12-25", wantTo: "2026-01-05"},
		{name: "past month rolls forward", input: "Mar 1-15", wantFrom: "2026-03-01", wantTo: "2026-03-15"},
		{name: "entire month", input: "November", wantFrom: "2025-11-01", wantTo: "2025-11-30"},
		{name: "current month", input: "oct", wantFrom: "2025-10-01", wantTo: "2025-10-31"},
		{name: "iso day", input: "2025-11-14", wantFrom: "2025-11-14", wantTo: "2025-11-14"},
		{name: "iso range", input: "2025-11-14..2025-11-16", wantFrom: "2025-11-14", wantTo: "2025-11-16"},
		{name: "iso range with to", input: "2025-11-14 to 2025-11-16", wantFrom: "2025-11-14", wantTo: "2025-11-16"},
		{name: "iso range with dash", input: "2025-11-14 - 2025-11-16", wantFrom: "2025-11-14", wantTo: "2025-11-16"},
		{name: "reversed days", input: "Nov 15-1", wantErr: true},
		{name: "invalid day", input: "Nov 1-45", wantErr: true},
		{name: "reversed iso", input: "2025-11-16..2025-11-14", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "next weekend", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := parseDateRange(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if got := from.Format("2006-01-02"); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format("2006-01-02"); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
			if to.Hour() != 23 || to.Minute() != 59 {
				t.Errorf("to time = %s, want end of day", to.Format("15:04"))
			}
		})
	}
}
