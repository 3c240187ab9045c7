// Package datefmt holds the textual date/time layouts shared by the CSV codec
// and the command line.
package datefmt

import (
	"strings"
	"time"

	"evcal/internal/errdef"
)

// Layout is the canonical text form used when writing timestamps.
const Layout = "2006-01-02 15:04:05"

// Layouts are tried in order by Parse; the first match wins.
var Layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Parse reads s in loc using the first matching layout. A nil loc means
// time.Local.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errdef.NewParse("empty date")
	}
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errdef.NewParse("could not parse date: %q", s)
}

// Format renders t in loc using Layout. The zero time renders as "".
func Format(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(Layout)
}
