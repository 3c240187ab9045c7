package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"evcal/internal/errdef"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// DefaultTitle is used for VEVENTs without a SUMMARY.
const DefaultTitle = "Imported Event"

// DefaultDuration is applied when a VEVENT has no DTEND.
const DefaultDuration = time.Hour

// Record is the outcome of decoding one VEVENT. Exactly one of Input or Err
// is meaningful.
type Record struct {
	// Index is the 1-based position of the VEVENT in the calendar.
	Index int
	UID   string
	Input model.EventInput
	Err   error
}

// Decode parses an iCalendar payload into one Record per VEVENT.
//
//   - Floating DTSTART/DTEND values are read in loc; TZID parameters are
//     honoured; UTC values are converted to loc.
//   - Date-only values (VALUE=DATE or no time part) are promoted to
//     midnight of that date in loc.
//   - A missing DTEND means start + DefaultDuration.
//   - RRULE is reduced to a recurrence type and optional end date.
//
// A payload that cannot be parsed as a calendar at all fails with a
// ParseError. Problems with an individual VEVENT are reported on its Record.
func Decode(body []byte, loc *time.Location) ([]Record, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errdef.NewParse("empty iCalendar payload")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, errdef.NewParse("parse iCalendar: %w", err)
	}

	events := cal.Events()
	records := make([]Record, 0, len(events))
	for i, comp := range events {
		rec := Record{Index: i + 1}
		if p := comp.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			rec.UID = p.Value
		}
		rec.Input, rec.Err = decodeVEvent(comp, loc)
		if rec.Err != nil {
			appLog.Debug("ics vevent decode failed", "index", rec.Index, "uid", rec.UID, "err", rec.Err)
		}
		records = append(records, rec)
	}

	appLog.Debug("ics decode completed", "event_count", len(records))
	return records, nil
}

func decodeVEvent(ve *ical.VEvent, loc *time.Location) (model.EventInput, error) {
	var out model.EventInput

	// Summary / Description / Location
	out.Title = DefaultTitle
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		out.Title = ical.FromText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = ical.FromText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = ical.FromText(p.Value)
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, errdef.NewParse("missing DTSTART")
	}
	start, err := propTime(dtStartProp, loc)
	if err != nil {
		return out, errdef.NewParse("DTSTART: %w", err)
	}
	out.StartTime = start

	if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
		end, err := propTime(dtEndProp, loc)
		if err != nil {
			return out, errdef.NewParse("DTEND: %w", err)
		}
		out.EndTime = end
	} else {
		out.EndTime = start.Add(DefaultDuration)
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		rt, until, err := ParseRRule(rruleProp.Value, loc)
		if err != nil {
			return out, err
		}
		out.IsRecurring = true
		out.RecurrenceType = rt
		out.RecurrenceEndDate = until
	}

	return out, nil
}

// propTime reads a DATE or DATE-TIME property value, honouring VALUE=DATE
// and TZID parameters.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	val := strings.TrimSpace(p.Value)
	if val == "" {
		return time.Time{}, errors.New("empty time value")
	}

	dateOnly := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}
	if dateOnly {
		d, err := time.ParseInLocation("20060102", val, loc)
		if err != nil {
			return time.Time{}, err
		}
		return d, nil
	}

	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 && !strings.HasSuffix(val, "Z") {
		if tz, err := time.LoadLocation(tzs[0]); err == nil {
			t, err := time.ParseInLocation("20060102T150405", val, tz)
			if err != nil {
				return time.Time{}, err
			}
			return t.In(loc), nil
		}
		appLog.Debug("ics unknown TZID, reading as floating time", "tzid", tzs[0])
	}

	t, err := parseICSTime(val, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// parseICSTime parses a basic ICS date-time string: UTC when suffixed with
// Z, otherwise floating and read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Local date-time, e.g., 20250101T090000
	const layout = "20060102T150405"
	return time.ParseInLocation(layout, v, loc)
}
