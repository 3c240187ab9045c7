package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"evcal/internal/errdef"
	"evcal/internal/store"
)

func (e *env) settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Read and change stored preferences (theme, language, notification_time).",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print one setting.",
				ArgsUsage: "KEY",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return errdef.NewMissingField("setting key is required")
					}
					v, ok, err := e.store.GetSetting(c.Context, key)
					if err != nil {
						return err
					}
					if !ok {
						return errdef.NewNotFound("setting %q is not set", key)
					}
					if e.json {
						return e.printJSON(map[string]string{key: v})
					}
					fmt.Fprintln(e.out, v)
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Store a setting.",
				ArgsUsage: "KEY VALUE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return errdef.NewMissingField("usage: settings set KEY VALUE")
					}
					key, value := c.Args().Get(0), c.Args().Get(1)
					if err := e.store.SetSetting(c.Context, key, value); err != nil {
						return err
					}
					if !e.json {
						fmt.Fprintf(e.out, "%s = %s\n", key, value)
						return nil
					}
					return e.printJSON(map[string]string{key: value})
				},
			},
			{
				Name:  "list",
				Usage: "Print every setting.",
				Action: func(c *cli.Context) error {
					all, err := e.store.Settings(c.Context)
					if err != nil {
						return err
					}
					if e.json {
						return e.printJSON(all)
					}
					tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
					for _, k := range store.SettingKeys(all) {
						fmt.Fprintf(tw, "%s\t%s\n", k, all[k])
					}
					return tw.Flush()
				},
			},
		},
	}
}
