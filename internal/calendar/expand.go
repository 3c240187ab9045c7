package calendar

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// MaxOccurrencesPerEvent caps a single series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and the ids of series that
// hit the per-event cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []int64
}

// Expand turns stored events into concrete occurrences inside [start, end].
// One-off events are kept when they overlap the window; recurring events are
// expanded with an RRULE built from their recurrence type and end date, each
// instance keeping the duration of the stored event. The result is sorted by
// start time.
func Expand(events []model.Event, start, end time.Time, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if end.Before(start) {
		return result, errors.New("expand: window end is before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		if !ev.IsRecurring {
			if ev.Overlaps(start, end) {
				out = append(out, makeOccurrence(ev, ev.StartTime, ev.EndTime, cfg.DisplayLocation))
			}
			continue
		}

		occ, hitCap := expandRecurring(ev, start, end, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Error("expand: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"event_id", ev.ID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].Start.Before(out[j].Start)
	})
	result.Occurrences = out
	return result, nil
}

func expandRecurring(ev model.Event, start, end time.Time, cfg ExpandConfig) ([]model.Occurrence, bool) {
	opt := rrule.ROption{
		Freq:    ics.Frequency(ev.RecurrenceType),
		Dtstart: ev.StartTime,
	}
	if ev.RecurrenceEndDate != nil {
		opt.Until = seriesUntil(*ev.RecurrenceEndDate)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("expand: failed to build RRULE", err, "event_id", ev.ID)
		return nil, false
	}

	dur := ev.EndTime.Sub(ev.StartTime)

	// Instances that began before the window but are still running count.
	rangeStart := start.Add(-dur).In(ev.StartTime.Location())
	rangeEnd := end.In(ev.StartTime.Location())

	times := r.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(times))
	for _, occStart := range times {
		occEnd := occStart.Add(dur)
		if !model.Overlaps(occStart, occEnd, start, end) {
			continue
		}
		out = append(out, makeOccurrence(ev, occStart, occEnd, cfg.DisplayLocation))
	}
	return out, hitCap
}

// seriesUntil makes a date-only end (midnight) cover that whole day.
func seriesUntil(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Second)
	}
	return t
}

// makeOccurrence converts an event plus a specific start/end into a
// model.Occurrence normalized into displayLoc.
func makeOccurrence(ev model.Event, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)

	return model.Occurrence{
		EventID:     ev.ID,
		InstanceKey: startLocal.Format(time.RFC3339),
		Title:       ev.Title,
		Location:    ev.Location,
		Color:       ev.Color,
		Priority:    ev.Priority,
		Recurring:   ev.IsRecurring,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}
