package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	appLog "evcal/internal/log"
	"evcal/internal/notify"
)

func (e *env) upcomingCommand() *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "List events starting soon.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "minutes", Aliases: []string{"m"}, Usage: "Look-ahead in minutes; defaults to the notification_time setting."},
		},
		Action: func(c *cli.Context) error {
			minutes := c.Int("minutes")
			if !c.IsSet("minutes") {
				lead, err := e.store.NotificationLead(c.Context)
				if err != nil {
					return err
				}
				minutes = int(lead / time.Minute)
			}
			events, err := e.store.GetUpcoming(c.Context, minutes)
			if err != nil {
				return err
			}
			if e.json || len(events) == 0 {
				return e.printEvents(events)
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			for _, ev := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.ID, e.formatTime(ev.StartTime), humanize.Time(ev.StartTime), ev.Title)
			}
			return tw.Flush()
		},
	}
}

func (e *env) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the reminder scan on a schedule until interrupted.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec such as \"@every 30s\"; defaults to notify_schedule from the config."},
		},
		Action: func(c *cli.Context) error {
			schedule := e.cfg.NotifySchedule
			if c.IsSet("schedule") {
				schedule = c.String("schedule")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			n := notify.New(e.store, notify.LogSink{})
			sched, err := notify.NewScheduler(n, schedule)
			if err != nil {
				return err
			}

			// First scan right away rather than after one interval.
			if _, err := n.Scan(ctx); err != nil {
				appLog.Error("initial scan failed", err)
			}

			appLog.Info("watching for upcoming events", "schedule", schedule)
			sched.Start()
			<-ctx.Done()

			appLog.Info("signal received, shutting down")
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sched.Stop(shutdown)
			return nil
		},
	}
}
