// Package csvio reads and writes the flat CSV event format.
package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"evcal/internal/datefmt"
	"evcal/internal/errdef"
	"evcal/internal/model"
)

// Header is the column order written by Encode.
var Header = []string{
	"title",
	"description",
	"start_time",
	"end_time",
	"location",
	"priority",
	"color",
	"is_recurring",
	"recurrence_type",
	"recurrence_end_date",
}

// DefaultDuration is applied when end_time is missing or unreadable.
const DefaultDuration = time.Hour

// Record is the outcome of decoding one data row.
type Record struct {
	// Index is the 1-based data row number, not counting the header.
	Index int
	Input model.EventInput
	Err   error
}

// Decode reads a CSV payload with a header row. The header must name at
// least title and start_time, otherwise a MissingField error is returned and
// nothing is decoded. Column order is free and unknown columns are ignored.
// Per-row problems are reported on the row's Record.
func Decode(r io.Reader, loc *time.Location) ([]Record, error) {
	if loc == nil {
		loc = time.Local
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errdef.NewMissingField("csv: missing header row")
	}
	if err != nil {
		return nil, errdef.NewParse("csv: read header: %w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"title", "start_time"} {
		if _, ok := cols[required]; !ok {
			return nil, errdef.NewMissingField("csv: header has no %q column", required)
		}
	}

	var records []Record
	for idx := 1; ; idx++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errdef.NewParse("csv: row %d: %w", idx, err)
		}
		rec := Record{Index: idx}
		rec.Input, rec.Err = decodeRow(columns{index: cols, row: row}, loc)
		records = append(records, rec)
	}
	return records, nil
}

type columns struct {
	index map[string]int
	row   []string
}

func (c columns) get(name string) string {
	i, ok := c.index[name]
	if !ok || i >= len(c.row) {
		return ""
	}
	return strings.TrimSpace(c.row[i])
}

func decodeRow(c columns, loc *time.Location) (model.EventInput, error) {
	var in model.EventInput

	in.Title = c.get("title")
	if in.Title == "" {
		return in, errdef.NewMissingField("title is empty")
	}

	start, err := datefmt.Parse(c.get("start_time"), loc)
	if err != nil {
		return in, errdef.NewParse("start_time: %w", err)
	}
	in.StartTime = start

	in.EndTime = start.Add(DefaultDuration)
	if end, err := datefmt.Parse(c.get("end_time"), loc); err == nil {
		in.EndTime = end
	}

	in.Description = c.get("description")
	in.Location = c.get("location")
	in.Priority = model.Priority(strings.ToLower(c.get("priority")))
	in.Color = c.get("color")
	if in.Color == "" {
		in.Color = model.DefaultColor
	}

	in.IsRecurring = truthy(c.get("is_recurring"))
	in.RecurrenceType = model.RecurrenceType(strings.ToLower(c.get("recurrence_type")))
	if raw := c.get("recurrence_end_date"); raw != "" {
		until, err := datefmt.Parse(raw, loc)
		if err != nil {
			return in, errdef.NewParse("recurrence_end_date: %w", err)
		}
		in.RecurrenceEndDate = &until
	}
	return in, nil
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// Encode writes events under Header, rendering times in loc.
func Encode(w io.Writer, events []model.Event, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range events {
		recurring := "no"
		if e.IsRecurring {
			recurring = "yes"
		}
		var until string
		if e.RecurrenceEndDate != nil {
			until = datefmt.Format(*e.RecurrenceEndDate, loc)
		}
		row := []string{
			e.Title,
			e.Description,
			datefmt.Format(e.StartTime, loc),
			datefmt.Format(e.EndTime, loc),
			e.Location,
			string(e.Priority),
			e.Color,
			recurring,
			string(e.RecurrenceType),
			until,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
