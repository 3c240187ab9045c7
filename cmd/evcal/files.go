package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"evcal/internal/datefmt"
	"evcal/internal/errdef"
	"evcal/internal/transfer"
)

func (e *env) translator(policy transfer.Policy) *transfer.Translator {
	return transfer.New(e.store,
		transfer.WithLocation(e.loc),
		transfer.WithPolicy(policy),
	)
}

func (e *env) importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Add the events of an .ics or .csv file.",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Usage: "skip (keep going past bad records) or abort (add nothing on the first bad record); defaults to import_policy from the config."},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errdef.NewMissingField("file argument is required")
			}
			raw := e.cfg.ImportPolicy
			if c.IsSet("policy") {
				raw = c.String("policy")
			}
			policy, err := transfer.ParsePolicy(raw)
			if err != nil {
				return err
			}

			out, err := e.translator(policy).Import(c.Context, path)
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(out)
			}
			fmt.Fprintf(e.out, "Imported %d event(s) from %s.\n", len(out.Added), path)
			for _, s := range out.Skipped {
				fmt.Fprintf(e.out, "  skipped record %d: %s\n", s.Index, s.Reason)
			}
			return nil
		},
	}
}

func (e *env) exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write events to an .ics or .csv file (all events unless --from/--to are given).",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Window start, " + dateHelp + "."},
			&cli.StringFlag{Name: "to", Usage: "Window end."},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errdef.NewMissingField("file argument is required")
			}
			tr := e.translator(transfer.PolicySkip)

			var (
				n   int
				err error
			)
			if c.IsSet("from") || c.IsSet("to") {
				start, end := transfer.AllStart, transfer.AllEnd
				if c.IsSet("from") {
					if start, err = datefmt.Parse(c.String("from"), e.loc); err != nil {
						return fmt.Errorf("--from: %w", err)
					}
				}
				if c.IsSet("to") {
					if end, err = datefmt.Parse(c.String("to"), e.loc); err != nil {
						return fmt.Errorf("--to: %w", err)
					}
				}
				n, err = tr.ExportRange(c.Context, path, start, end)
			} else {
				n, err = tr.ExportAll(c.Context, path)
			}
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(map[string]any{"path": path, "exported": n})
			}
			fmt.Fprintf(e.out, "Exported %d event(s) to %s.\n", n, path)
			return nil
		},
	}
}
