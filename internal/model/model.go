package model

import "time"

// Priority ranks an event for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RecurrenceType is the repeat frequency of a recurring event. The empty
// value means "not recurring".
type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = ""
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// DefaultColor is assigned to events created without a color.
const DefaultColor = "#3498db"

// Event is a stored calendar event. Recurring events are kept as a single
// row (flag + type + end date) and only expanded into occurrences on demand.
type Event struct {
	ID int64 `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Priority Priority `json:"priority"`
	Color    string   `json:"color"`

	IsRecurring       bool           `json:"is_recurring"`
	RecurrenceType    RecurrenceType `json:"recurrence_type,omitempty"`
	RecurrenceEndDate *time.Time     `json:"recurrence_end_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input returns the mutable fields of e, e.g. to feed them back into an update.
func (e Event) Input() EventInput {
	return EventInput{
		Title:             e.Title,
		Description:       e.Description,
		Location:          e.Location,
		StartTime:         e.StartTime,
		EndTime:           e.EndTime,
		Priority:          e.Priority,
		Color:             e.Color,
		IsRecurring:       e.IsRecurring,
		RecurrenceType:    e.RecurrenceType,
		RecurrenceEndDate: e.RecurrenceEndDate,
	}
}

// Overlaps reports whether the event interval intersects [start, end] under
// the three-way test: it starts inside the window, ends inside it, or spans
// all of it. Bounds are inclusive.
func (e Event) Overlaps(start, end time.Time) bool {
	return Overlaps(e.StartTime, e.EndTime, start, end)
}

// Overlaps applies the three-way overlap test to [aStart, aEnd] against the
// window [start, end].
func Overlaps(aStart, aEnd, start, end time.Time) bool {
	if within(aStart, start, end) || within(aEnd, start, end) {
		return true
	}
	return !aStart.After(start) && !aEnd.Before(end)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// EventInput carries every mutable field of an Event. It is used for both
// add and update; update is a full replacement. Zero values of the optional
// fields are replaced with defaults by the store.
type EventInput struct {
	Title       string `validate:"required"`
	Description string
	Location    string

	StartTime time.Time `validate:"required"`
	EndTime   time.Time `validate:"required"`

	Priority Priority `validate:"omitempty,oneOf=low medium high"`
	Color    string   `validate:"omitempty,hexcolor"`

	IsRecurring       bool
	RecurrenceType    RecurrenceType `validate:"omitempty,oneOf=daily weekly monthly yearly"`
	RecurrenceEndDate *time.Time
}

// HistoryAction names a lifecycle transition recorded in the event history.
type HistoryAction string

const (
	ActionCreate HistoryAction = "create"
	ActionUpdate HistoryAction = "update"
	ActionDelete HistoryAction = "delete"
)

// HistoryEntry is an append-only audit record. EventID may refer to an
// event that has since been deleted.
type HistoryEntry struct {
	ID        int64         `json:"id"`
	EventID   int64         `json:"event_id"`
	Action    HistoryAction `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	Details   string        `json:"details"`
}

// Occurrence represents a single concrete instance of an event inside a
// queried window (after recurrence expansion).
type Occurrence struct {
	EventID int64

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Title    string
	Location string
	Color    string
	Priority Priority

	Recurring bool

	Start time.Time
	End   time.Time
}
