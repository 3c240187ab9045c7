package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"evcal/internal/config"
	appLog "evcal/internal/log"
	"evcal/internal/store"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		appLog.Error("evcal failed", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is the state shared by every command once Before has run.
type env struct {
	out   io.Writer
	json  bool
	cfg   *config.Config
	loc   *time.Location
	store *store.Store
}

func newApp(out io.Writer) *cli.App {
	e := &env{out: out}

	return &cli.App{
		Name:    "evcal",
		Usage:   "Manage calendar events, reminders and iCalendar/CSV files.",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML config file (created with defaults if missing).",
				EnvVars: []string{"EVCAL_CONFIG"},
				Value:   defaultConfigPath(),
			},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides the config file)."},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info or error (overrides the config file)."},
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON."},
		},
		Before: e.setup,
		After:  e.close,
		Commands: []*cli.Command{
			e.addCommand(),
			e.updateCommand(),
			e.deleteCommand(),
			e.showCommand(),
			e.listCommand(),
			e.searchCommand(),
			e.historyCommand(),
			e.upcomingCommand(),
			e.agendaCommand(),
			e.importCommand(),
			e.exportCommand(),
			e.settingsCommand(),
			e.watchCommand(),
		},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "evcal.yaml"
	}
	return filepath.Join(dir, "evcal", "config.yaml")
}

func (e *env) setup(c *cli.Context) error {
	switch c.Args().First() {
	case "", "help", "h":
		return nil
	}

	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if c.IsSet("db") {
		cfg.Database = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	appLog.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	// A relative database path lives next to the config file.
	dbPath := cfg.Database
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(filepath.Dir(cfgPath), dbPath)
	}

	e.cfg = cfg
	e.loc = cfg.Location()
	e.json = c.Bool("json")

	appLog.Debug("effective config",
		"config_path", cfgPath,
		"database", dbPath,
		"timezone", e.loc.String(),
		"week_start", cfg.WeekStart,
		"import_policy", cfg.ImportPolicy,
	)

	st, err := store.Open(dbPath, store.WithLocation(e.loc))
	if err != nil {
		return err
	}
	e.store = st
	return nil
}

func (e *env) close(*cli.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
