package store

import (
	"time"

	"evcal/internal/model"
)

// eventRecord is the persisted form of model.Event. Timestamps are Unix
// seconds so that range predicates compare integers.
type eventRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Description string `gorm:"not null"`
	StartTime   int64  `gorm:"index;not null"`
	EndTime     int64  `gorm:"index;not null"`
	Location    string `gorm:"not null"`
	Priority    string `gorm:"not null"`
	Color       string `gorm:"not null"`

	IsRecurring       bool `gorm:"index;not null"`
	RecurrenceType    *string
	RecurrenceEndDate *int64

	Created int64 `gorm:"column:created_at;not null"`
	Updated int64 `gorm:"column:updated_at;not null"`
}

func (eventRecord) TableName() string { return "events" }

// historyRecord has no foreign key on EventID: entries outlive their event.
type historyRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	EventID   int64  `gorm:"index;not null"`
	Action    string `gorm:"not null"`
	Timestamp int64  `gorm:"index;not null"`
	Details   string
}

func (historyRecord) TableName() string { return "event_history" }

type settingRecord struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (settingRecord) TableName() string { return "settings" }

func toUnix(t time.Time) int64 { return t.Unix() }

func (s *Store) fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(s.loc)
}

// newEventRecord builds a row from an already normalized input.
func newEventRecord(in model.EventInput) eventRecord {
	r := eventRecord{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   toUnix(in.StartTime),
		EndTime:     toUnix(in.EndTime),
		Location:    in.Location,
		Priority:    string(in.Priority),
		Color:       in.Color,
		IsRecurring: in.IsRecurring,
	}
	if in.IsRecurring {
		if in.RecurrenceType != model.RecurrenceNone {
			rt := string(in.RecurrenceType)
			r.RecurrenceType = &rt
		}
		if in.RecurrenceEndDate != nil {
			end := toUnix(*in.RecurrenceEndDate)
			r.RecurrenceEndDate = &end
		}
	}
	return r
}

func (s *Store) toEvent(r eventRecord) model.Event {
	e := model.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		StartTime:   s.fromUnix(r.StartTime),
		EndTime:     s.fromUnix(r.EndTime),
		Priority:    model.Priority(r.Priority),
		Color:       r.Color,
		IsRecurring: r.IsRecurring,
		CreatedAt:   s.fromUnix(r.Created),
		UpdatedAt:   s.fromUnix(r.Updated),
	}
	if r.RecurrenceType != nil {
		e.RecurrenceType = model.RecurrenceType(*r.RecurrenceType)
	}
	if r.RecurrenceEndDate != nil {
		end := s.fromUnix(*r.RecurrenceEndDate)
		e.RecurrenceEndDate = &end
	}
	return e
}

func (s *Store) toEvents(rows []eventRecord) []model.Event {
	out := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toEvent(r))
	}
	return out
}

func (s *Store) toHistory(r historyRecord) model.HistoryEntry {
	return model.HistoryEntry{
		ID:        r.ID,
		EventID:   r.EventID,
		Action:    model.HistoryAction(r.Action),
		Timestamp: s.fromUnix(r.Timestamp),
		Details:   r.Details,
	}
}
