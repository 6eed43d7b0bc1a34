package event

import (
	"testing"
)

func TestIdentity_Key(t *testing.T) {
	evt := &Event{
		NormalizedTitle: "night market",
		StartTime:       "2025-11-15T19:00",
		Location:        "Civic Center Plaza",
	}

	got := evt.Identity().Key()
	want := "night market|2025-11-15T19:00|Civic Center Plaza"
	if got != want {
		t.Errorf("Identity().Key() = %q, want %q", got, want)
	}
}

func TestIdentity_Fingerprint(t *testing.T) {
	id := Identity{NormalizedTitle: "night market", StartTime: "2025-11-15T19:00", Location: "Plaza"}

	fp1 := id.Fingerprint()
	fp2 := id.Fingerprint()

	if fp1 != fp2 {
		t.Errorf("Fingerprint should be deterministic, got %s vs %s", fp1, fp2)
	}
	if len(fp1) != 40 { // SHA1 produces 40 hex characters
		t.Errorf("expected fingerprint length of 40, got %d", len(fp1))
	}

	other := Identity{NormalizedTitle: "night market", StartTime: "2025-11-15T20:00", Location: "Plaza"}
	if other.Fingerprint() == fp1 {
		t.Error("different identities should not share a fingerprint")
	}
}

func TestParseCivil(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "canonical", value: "2025-11-15T19:00"},
		{name: "seconds not allowed", value: "2025-11-15T19:00:00", wantErr: true},
		{name: "date only", value: "2025-11-15", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCivil(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCivil(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && FormatCivil(got) != tt.value {
				t.Errorf("FormatCivil(ParseCivil(%q)) = %q", tt.value, FormatCivil(got))
			}
		})
	}
}

func TestEnrichment_Merge(t *testing.T) {
	oldTranslation := "夜市"
	newSummary := "A weekend night market"

	base := Enrichment{Translation: &oldTranslation}
	merged := base.Merge(Enrichment{ShortSummary: &newSummary})

	if merged.Translation == nil || *merged.Translation != oldTranslation {
		t.Errorf("Translation should be kept, got %v", merged.Translation)
	}
	if merged.ShortSummary == nil || *merged.ShortSummary != newSummary {
		t.Errorf("ShortSummary should be applied, got %v", merged.ShortSummary)
	}
	if merged.DetailedSummary != nil {
		t.Errorf("DetailedSummary should stay nil, got %v", *merged.DetailedSummary)
	}
	if (Enrichment{}).IsEmpty() != true {
		t.Error("zero Enrichment should be empty")
	}
	if merged.IsEmpty() {
		t.Error("merged Enrichment should not be empty")
	}
}

func TestNewRecord(t *testing.T) {
	evt := &Event{Title: "Night Market", StartTime: "2025-11-15T19:00"}
	rec := NewRecord(evt)

	if rec.ScrapedAt.IsZero() {
		t.Error("expected ScrapedAt to be set")
	}
	if rec.Title != "Night Market" {
		t.Errorf("expected title to be copied, got %q", rec.Title)
	}
	if rec.ID != 0 {
		t.Errorf("expected unsaved record to have ID 0, got %d", rec.ID)
	}
}
