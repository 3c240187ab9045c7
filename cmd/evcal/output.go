package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"evcal/internal/datefmt"
	"evcal/internal/model"
)

var (
	highPriority = color.New(color.FgRed, color.Bold)
	lowPriority  = color.New(color.Faint)
	dayHeading   = color.New(color.Bold, color.Underline)
)

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) formatTime(t time.Time) string {
	return datefmt.Format(t, e.loc)
}

// priorityLabel colours p and pads it to width with plain spaces. Colour
// codes would be counted by tabwriter, so coloured labels only go in the
// last cell of a line.
func priorityLabel(p model.Priority, width int) string {
	var label string
	switch p {
	case model.PriorityHigh:
		label = highPriority.Sprint(p)
	case model.PriorityLow:
		label = lowPriority.Sprint(p)
	default:
		label = string(p)
	}
	if pad := width - len(p); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	return label
}

func recurrenceLabel(ev model.Event) string {
	if !ev.IsRecurring {
		return ""
	}
	if ev.RecurrenceEndDate == nil {
		return string(ev.RecurrenceType)
	}
	return fmt.Sprintf("%s until %s", ev.RecurrenceType, ev.RecurrenceEndDate.In(ev.StartTime.Location()).Format("2006-01-02"))
}

func (e *env) printEvents(events []model.Event) error {
	if e.json {
		if events == nil {
			events = []model.Event{}
		}
		return e.printJSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(e.out, "No events.")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	const priorityHeader = "PRIORITY"
	fmt.Fprintln(tw, "ID\tSTART\tEND\tTITLE\t"+priorityHeader+"  REPEATS")
	for _, ev := range events {
		last := priorityLabel(ev.Priority, 0)
		if repeats := recurrenceLabel(ev); repeats != "" {
			last = priorityLabel(ev.Priority, len(priorityHeader)) + "  " + repeats
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			ev.ID, e.formatTime(ev.StartTime), e.formatTime(ev.EndTime), ev.Title, last)
	}
	return tw.Flush()
}

func (e *env) printEvent(ev model.Event) error {
	if e.json {
		return e.printJSON(ev)
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", fmt.Sprint(ev.ID)},
		{"Title", ev.Title},
		{"Start", e.formatTime(ev.StartTime)},
		{"End", e.formatTime(ev.EndTime)},
		{"Location", ev.Location},
		{"Description", strings.ReplaceAll(ev.Description, "\n", " / ")},
		{"Priority", priorityLabel(ev.Priority, 0)},
		{"Color", ev.Color},
		{"Repeats", recurrenceLabel(ev)},
		{"Created", e.formatTime(ev.CreatedAt)},
		{"Updated", e.formatTime(ev.UpdatedAt)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func (e *env) printHistory(entries []model.HistoryEntry) error {
	if e.json {
		if entries == nil {
			entries = []model.HistoryEntry{}
		}
		return e.printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.out, "No history.")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tDETAILS")
	for _, h := range entries {
		fmt.Fprintf(tw, "%s (%s)\t%s\t%s\n", e.formatTime(h.Timestamp), humanize.Time(h.Timestamp), h.Action, h.Details)
	}
	return tw.Flush()
}

func (e *env) printOccurrences(occ []model.Occurrence) error {
	if e.json {
		if occ == nil {
			occ = []model.Occurrence{}
		}
		return e.printJSON(occ)
	}
	if len(occ) == 0 {
		fmt.Fprintln(e.out, "Nothing scheduled.")
		return nil
	}
	var day string
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	for _, o := range occ {
		if d := o.Start.Format("Monday, 2006-01-02"); d != day {
			if day != "" {
				fmt.Fprintln(tw)
			}
			day = d
			fmt.Fprintln(tw, dayHeading.Sprint(d))
		}
		fmt.Fprintf(tw, "  %s-%s\t%s\t#%d\t%s\n",
			o.Start.Format("15:04"), o.End.Format("15:04"), o.Title, o.EventID, priorityLabel(o.Priority, 0))
	}
	return tw.Flush()
}
