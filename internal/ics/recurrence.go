package ics

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"evcal/internal/errdef"
	"evcal/internal/model"
)

var freqByType = map[model.RecurrenceType]rrule.Frequency{
	model.RecurrenceDaily:   rrule.DAILY,
	model.RecurrenceWeekly:  rrule.WEEKLY,
	model.RecurrenceMonthly: rrule.MONTHLY,
	model.RecurrenceYearly:  rrule.YEARLY,
}

var knownFreqs = map[string]bool{
	"SECONDLY": true,
	"MINUTELY": true,
	"HOURLY":   true,
	"DAILY":    true,
	"WEEKLY":   true,
	"MONTHLY":  true,
	"YEARLY":   true,
}

// ruleParts are the RRULE parts rrule-go understands. DTSTART is left out:
// the series start always comes from the event.
var ruleParts = map[string]bool{
	"FREQ":       true,
	"INTERVAL":   true,
	"WKST":       true,
	"COUNT":      true,
	"UNTIL":      true,
	"BYSETPOS":   true,
	"BYMONTH":    true,
	"BYMONTHDAY": true,
	"BYYEARDAY":  true,
	"BYWEEKNO":   true,
	"BYDAY":      true,
	"BYHOUR":     true,
	"BYMINUTE":   true,
	"BYSECOND":   true,
	"BYEASTER":   true,
}

// Frequency maps a stored recurrence type onto an RRULE frequency. Unknown
// or empty types map to DAILY.
func Frequency(t model.RecurrenceType) rrule.Frequency {
	if f, ok := freqByType[t]; ok {
		return f
	}
	return rrule.DAILY
}

// RecurrenceType maps an RRULE frequency back onto the stored type. Anything
// finer or coarser than the four supported types becomes daily.
func RecurrenceType(f rrule.Frequency) model.RecurrenceType {
	switch f {
	case rrule.WEEKLY:
		return model.RecurrenceWeekly
	case rrule.MONTHLY:
		return model.RecurrenceMonthly
	case rrule.YEARLY:
		return model.RecurrenceYearly
	default:
		return model.RecurrenceDaily
	}
}

// ParseRRule reads an RRULE value (e.g. "FREQ=WEEKLY;UNTIL=20240301T000000Z")
// into a recurrence type and optional end date. Floating UNTIL values are
// read in loc. An unrecognised FREQ value is treated as DAILY; other
// malformed parts fail with a ParseError.
func ParseRRule(raw string, loc *time.Location) (model.RecurrenceType, *time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:"))
	if raw == "" {
		return model.RecurrenceNone, nil, errdef.NewParse("empty RRULE")
	}

	opt, err := rrule.StrToROptionInLocation(normalizeRule(raw), loc)
	if err != nil {
		return model.RecurrenceNone, nil, errdef.NewParse("parse RRULE %q: %w", raw, err)
	}

	var until *time.Time
	if !opt.Until.IsZero() {
		u := opt.Until.In(loc)
		until = &u
	}
	return RecurrenceType(opt.Freq), until, nil
}

// normalizeRule upper-cases every part, drops X- extensions and parts
// rrule-go does not know, and rewrites a missing or unknown FREQ to
// FREQ=DAILY so the rest of the rule can still be read.
func normalizeRule(raw string) string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts)+1)
	seen := false
	for _, p := range parts {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.ToUpper(strings.TrimSpace(val))
		if !ok || !ruleParts[key] {
			continue
		}
		if key == "FREQ" {
			if seen {
				continue
			}
			seen = true
			if !knownFreqs[val] {
				val = "DAILY"
			}
		}
		out = append(out, key+"="+val)
	}
	if !seen {
		out = append([]string{"FREQ=DAILY"}, out...)
	}
	return strings.Join(out, ";")
}

// FormatRRule builds the RRULE value for a stored recurrence.
func FormatRRule(t model.RecurrenceType, until *time.Time) string {
	opt := rrule.ROption{Freq: Frequency(t)}
	if until != nil {
		opt.Until = *until
	}
	return opt.RRuleString()
}
