package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"evcal/internal/calendar"
	"evcal/internal/datefmt"
	"evcal/internal/errdef"
	"evcal/internal/model"
	"evcal/internal/store"
)

const dateHelp = "YYYY-MM-DD[ HH:MM[:SS]] or MM/DD/YYYY[ HH:MM[:SS]]"

func eventFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Event title."},
		&cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "Start time, " + dateHelp + "."},
		&cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "End time; defaults to one hour after start when adding."},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Free-text description."},
		&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Where the event takes place."},
		&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "low, medium or high."},
		&cli.StringFlag{Name: "color", Usage: "Hex color such as #3498db."},
		&cli.StringFlag{Name: "repeat", Aliases: []string{"r"}, Usage: "daily, weekly, monthly, yearly or none."},
		&cli.StringFlag{Name: "until", Usage: "Last day of a repeating event; empty to repeat forever."},
	}
}

// applyEventFlags copies every flag the user set onto in.
func (e *env) applyEventFlags(c *cli.Context, in model.EventInput) (model.EventInput, error) {
	if c.IsSet("title") {
		in.Title = c.String("title")
	}
	if c.IsSet("description") {
		in.Description = c.String("description")
	}
	if c.IsSet("location") {
		in.Location = c.String("location")
	}
	if c.IsSet("priority") {
		in.Priority = model.Priority(c.String("priority"))
	}
	if c.IsSet("color") {
		in.Color = c.String("color")
	}

	if c.IsSet("start") {
		t, err := datefmt.Parse(c.String("start"), e.loc)
		if err != nil {
			return in, fmt.Errorf("--start: %w", err)
		}
		// Keep the duration when only the start moves.
		if !c.IsSet("end") && !in.StartTime.IsZero() && !in.EndTime.IsZero() {
			in.EndTime = t.Add(in.EndTime.Sub(in.StartTime))
		}
		in.StartTime = t
	}
	if c.IsSet("end") {
		t, err := datefmt.Parse(c.String("end"), e.loc)
		if err != nil {
			return in, fmt.Errorf("--end: %w", err)
		}
		in.EndTime = t
	}
	if in.EndTime.IsZero() && !in.StartTime.IsZero() {
		in.EndTime = in.StartTime.Add(time.Hour)
	}

	if c.IsSet("repeat") {
		switch r := strings.ToLower(c.String("repeat")); r {
		case "", "none", "no":
			in.IsRecurring = false
			in.RecurrenceType = model.RecurrenceNone
		default:
			in.IsRecurring = true
			in.RecurrenceType = model.RecurrenceType(r)
		}
	}
	if c.IsSet("until") {
		if raw := c.String("until"); raw == "" {
			in.RecurrenceEndDate = nil
		} else {
			t, err := datefmt.Parse(raw, e.loc)
			if err != nil {
				return in, fmt.Errorf("--until: %w", err)
			}
			in.RecurrenceEndDate = &t
		}
	}

	// Missing times are left for the store to report as missing fields.
	if !in.StartTime.IsZero() && !in.EndTime.IsZero() && !in.EndTime.After(in.StartTime) {
		return in, errdef.NewValidation("end time %s is not after start time %s",
			datefmt.Format(in.EndTime, e.loc), datefmt.Format(in.StartTime, e.loc))
	}
	return in, nil
}

func idArg(c *cli.Context) (int64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, errdef.NewMissingField("event id argument is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errdef.NewValidation("invalid event id %q", raw)
	}
	return id, nil
}

func (e *env) addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create an event.",
		Flags: eventFlags(),
		Action: func(c *cli.Context) error {
			in, err := e.applyEventFlags(c, model.EventInput{})
			if err != nil {
				return err
			}
			id, err := e.store.Add(c.Context, in)
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(map[string]int64{"id": id})
			}
			fmt.Fprintf(e.out, "Added event %d.\n", id)
			return nil
		},
	}
}

func (e *env) updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of an event; unset flags keep their current value.",
		ArgsUsage: "ID",
		Flags:     eventFlags(),
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			current, err := e.store.Get(c.Context, id)
			if err != nil {
				return err
			}
			in, err := e.applyEventFlags(c, current.Input())
			if err != nil {
				return err
			}
			if err := e.store.Update(c.Context, id, in); err != nil {
				return err
			}
			if !e.json {
				fmt.Fprintf(e.out, "Updated event %d.\n", id)
				return nil
			}
			updated, err := e.store.Get(c.Context, id)
			if err != nil {
				return err
			}
			return e.printJSON(updated)
		},
	}
}

func (e *env) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete an event; its history is kept.",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			if err := e.store.Delete(c.Context, id); err != nil {
				return err
			}
			if e.json {
				return e.printJSON(map[string]int64{"deleted": id})
			}
			fmt.Fprintf(e.out, "Deleted event %d.\n", id)
			return nil
		},
	}
}

func (e *env) showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one event.",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			ev, err := e.store.Get(c.Context, id)
			if err != nil {
				return err
			}
			return e.printEvent(ev)
		},
	}
}

func windowFlags(defaultPeriod calendar.PeriodKind) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "period", Value: string(defaultPeriod), Usage: "day, week or month around --date."},
		&cli.StringFlag{Name: "date", Usage: "Any moment inside the period; defaults to now."},
		&cli.IntFlag{Name: "offset", Usage: "Move the period by N (negative for the past)."},
		&cli.StringFlag{Name: "from", Usage: "Explicit window start; overrides --period."},
		&cli.StringFlag{Name: "to", Usage: "Explicit window end; defaults to the end of the --from day."},
	}
}

// window resolves the query window from --from/--to or from the period flags.
func (e *env) window(c *cli.Context) (time.Time, time.Time, error) {
	if c.IsSet("from") {
		start, err := datefmt.Parse(c.String("from"), e.loc)
		if err != nil {
			return start, start, fmt.Errorf("--from: %w", err)
		}
		_, end := calendar.PeriodRange(calendar.PeriodDay, start, false)
		if c.IsSet("to") {
			if end, err = datefmt.Parse(c.String("to"), e.loc); err != nil {
				return start, end, fmt.Errorf("--to: %w", err)
			}
		}
		return start, end, nil
	}

	kind, err := calendar.ParsePeriodKind(c.String("period"))
	if err != nil {
		return time.Time{}, time.Time{}, errdef.NewValidation("--period: %w", err)
	}
	anchor := time.Now().In(e.loc)
	if c.IsSet("date") {
		if anchor, err = datefmt.Parse(c.String("date"), e.loc); err != nil {
			return anchor, anchor, fmt.Errorf("--date: %w", err)
		}
	}
	anchor = calendar.Shift(kind, anchor, c.Int("offset"))
	start, end := calendar.PeriodRange(kind, anchor, e.cfg.SundayFirst())
	return start, end, nil
}

func (e *env) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored events overlapping a day, week, month or explicit window.",
		Flags: append(windowFlags(calendar.PeriodWeek),
			&cli.BoolFlag{Name: "by-day", Usage: "Group the events under each day they touch."},
		),
		Action: func(c *cli.Context) error {
			start, end, err := e.window(c)
			if err != nil {
				return err
			}
			events, err := e.store.GetByDateRange(c.Context, start, end)
			if err != nil {
				return err
			}
			if !c.Bool("by-day") {
				return e.printEvents(events)
			}

			days := calendar.GroupByDay(events, start, end)
			if e.json {
				return e.printJSON(days)
			}
			for _, d := range days {
				fmt.Fprintln(e.out, dayHeading.Sprint(d.Date.Format("Monday, 2006-01-02")))
				if err := e.printEvents(d.Events); err != nil {
					return err
				}
				fmt.Fprintln(e.out)
			}
			return nil
		},
	}
}

func (e *env) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find events whose title, description or location contains TERM.",
		ArgsUsage: "TERM",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Only events overlapping this start..."},
			&cli.StringFlag{Name: "to", Usage: "...and this end."},
		},
		Action: func(c *cli.Context) error {
			term := strings.Join(c.Args().Slice(), " ")
			var within *store.Range
			if c.IsSet("from") || c.IsSet("to") {
				if !c.IsSet("from") || !c.IsSet("to") {
					return errdef.NewMissingField("--from and --to must be given together")
				}
				start, err := datefmt.Parse(c.String("from"), e.loc)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				end, err := datefmt.Parse(c.String("to"), e.loc)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				within = &store.Range{Start: start, End: end}
			}
			events, err := e.store.Search(c.Context, term, within)
			if err != nil {
				return err
			}
			return e.printEvents(events)
		},
	}
}

func (e *env) historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the change log of an event, newest first.",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			entries, err := e.store.GetHistory(c.Context, id)
			if err != nil {
				return err
			}
			return e.printHistory(entries)
		},
	}
}

func (e *env) agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "List every occurrence in a period, expanding repeating events.",
		Flags: windowFlags(calendar.PeriodWeek),
		Action: func(c *cli.Context) error {
			start, end, err := e.window(c)
			if err != nil {
				return err
			}
			res, err := calendar.Agenda(c.Context, e.store, start, end, calendar.ExpandConfig{
				DisplayLocation:        e.loc,
				MaxOccurrencesPerEvent: e.cfg.MaxOccurrences,
			})
			if err != nil {
				return err
			}
			return e.printOccurrences(res.Occurrences)
		},
	}
}
