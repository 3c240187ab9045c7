package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"evcal/internal/model"
)

// ProductID identifies calendars written by Encode.
const ProductID = "-//Calendar & Event Manager//EN"

// UID returns the stable iCalendar UID for a stored event id.
func UID(id int64) string {
	return fmt.Sprintf("%d@calendarapp", id)
}

// Encode writes events as a single VCALENDAR with one VEVENT each. stamp is
// used for every DTSTAMP.
func Encode(w io.Writer, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetVersion("2.0")

	for _, e := range events {
		ev := cal.AddEvent(UID(e.ID))
		ev.SetSummary(e.Title)
		ev.SetDescription(e.Description)
		ev.SetLocation(e.Location)
		ev.SetStartAt(e.StartTime)
		ev.SetEndAt(e.EndTime)
		ev.SetDtStampTime(stamp)

		if e.IsRecurring {
			ev.AddRrule(FormatRRule(e.RecurrenceType, e.RecurrenceEndDate))
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
