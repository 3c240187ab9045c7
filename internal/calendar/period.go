package calendar

import (
	"context"
	"fmt"
	"time"

	"evcal/internal/model"
)

// PeriodKind selects the width of a calendar view.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// ParsePeriodKind accepts "day", "week" or "month".
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch k := PeriodKind(s); k {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return k, nil
	default:
		return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
	}
}

// PeriodRange returns the window of the period containing anchor, from
// 00:00:00 of the first day to 23:59:59 of the last day, in anchor's
// location. Weeks start on Monday unless sundayFirst is set.
func PeriodRange(kind PeriodKind, anchor time.Time, sundayFirst bool) (time.Time, time.Time) {
	day := startOfDay(anchor)

	var start, next time.Time
	switch kind {
	case PeriodWeek:
		offset := int(day.Weekday())
		if !sundayFirst {
			offset = (offset + 6) % 7
		}
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case PeriodMonth:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		next = start.AddDate(0, 1, 0)
	default:
		start = day
		next = start.AddDate(0, 0, 1)
	}
	return start, next.Add(-time.Second)
}

// Shift moves anchor by n periods of the given kind.
func Shift(kind PeriodKind, anchor time.Time, n int) time.Time {
	switch kind {
	case PeriodWeek:
		return anchor.AddDate(0, 0, 7*n)
	case PeriodMonth:
		// Clamp to the first of the month so Jan 31 + 1 does not skip February.
		first := time.Date(anchor.Year(), anchor.Month(), 1, anchor.Hour(), anchor.Minute(), anchor.Second(), 0, anchor.Location())
		return first.AddDate(0, n, 0)
	default:
		return anchor.AddDate(0, 0, n)
	}
}

// Day is one calendar day and the events touching it.
type Day struct {
	Date   time.Time
	Events []model.Event
}

// GroupByDay buckets events into every day of [start, end] they overlap.
// Events keep their input order within a bucket.
func GroupByDay(events []model.Event, start, end time.Time) []Day {
	var days []Day
	for d := startOfDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		dayEnd := d.AddDate(0, 0, 1).Add(-time.Second)
		bucket := Day{Date: d}
		for _, ev := range events {
			if ev.Overlaps(d, dayEnd) {
				bucket.Events = append(bucket.Events, ev)
			}
		}
		days = append(days, bucket)
	}
	return days
}

// Source is the read side of the event store used to build an agenda.
type Source interface {
	GetByDateRange(ctx context.Context, start, end time.Time) ([]model.Event, error)
	ListRecurring(ctx context.Context, until time.Time) ([]model.Event, error)
}

// Agenda lists every occurrence inside [start, end]: one-off events from the
// range query plus expanded recurring series.
func Agenda(ctx context.Context, src Source, start, end time.Time, cfg ExpandConfig) (ExpandResult, error) {
	ranged, err := src.GetByDateRange(ctx, start, end)
	if err != nil {
		return ExpandResult{}, err
	}
	series, err := src.ListRecurring(ctx, end)
	if err != nil {
		return ExpandResult{}, err
	}

	events := make([]model.Event, 0, len(ranged)+len(series))
	for _, ev := range ranged {
		if !ev.IsRecurring {
			events = append(events, ev)
		}
	}
	events = append(events, series...)

	return Expand(events, start, end, cfg)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
