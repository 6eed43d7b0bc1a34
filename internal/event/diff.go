package event

import (
	"strconv"
	"time"
)

// Change types reported by DetectChanges.
const (
	ChangeNew         = "new"
	ChangePrice       = "price"
	ChangeEndTime     = "end_time"
	ChangeDescription = "description"
	ChangeEventType   = "event_type"
	ChangePriority    = "priority"
	ChangeURL         = "url"
)

// EventChange represents a change detected when a canonical record is re-sighted
type EventChange struct {
	RecordID   int64     `json:"record_id"`
	ChangeType string    `json:"change_type"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectChanges compares a stored record with a fresh sighting of the same
// canonical identity and returns the mutable fields that differ.
func DetectChanges(previous *Record, current *Event) []*EventChange {
	now := time.Now().UTC()

	// If no previous record, this is a new event
	if previous == nil {
		return []*EventChange{
			{
				ChangeType: ChangeNew,
				NewValue:   current.Title,
				DetectedAt: now,
			},
		}
	}

	var changes []*EventChange
	add := func(changeType, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		changes = append(changes, &EventChange{
			RecordID:   previous.ID,
			ChangeType: changeType,
			OldValue:   oldValue,
			NewValue:   newValue,
			DetectedAt: now,
		})
	}

	add(ChangePrice, previous.Price, current.Price)
	add(ChangeEndTime, previous.EndTime, current.EndTime)
	add(ChangeDescription, previous.Description, current.Description)
	add(ChangeEventType, previous.EventType, current.EventType)
	add(ChangePriority, strconv.Itoa(previous.Priority), strconv.Itoa(current.Priority))
	add(ChangeURL, previous.OriginalURL, current.OriginalURL)

	return changes
}
