package main

import (
	"github.com/urfave/cli/v2"

	"github.com/fruitsalade/filedrop/internal/catalog"
	"github.com/fruitsalade/filedrop/internal/config"
	"github.com/fruitsalade/filedrop/internal/ingest"
	"github.com/fruitsalade/filedrop/internal/logging"
	"github.com/fruitsalade/filedrop/internal/reconcile"
)

// session is the state shared by every command after startup.
type session struct {
	cfg     *config.ClientConfig
	catalog catalog.Catalog
	ctl     *reconcile.Controller
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "filedrop",
		Usage:   "Drop files into a catalog and get them back later",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "mode", Usage: "catalog: local or remote"},
			&cli.StringFlag{Name: "server", Usage: "catalog service URL (remote mode)"},
			&cli.StringFlag{Name: "slot-dir", Usage: "directory for the local slot"},
			&cli.IntFlag{Name: "concurrency", Usage: "files read and encoded at once"},
			&cli.DurationFlag{Name: "timeout", Usage: "catalog service request timeout"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
		},
		Commands: []*cli.Command{
			addCommand(),
			listCommand(),
			getCommand(),
			rmCommand(),
			statusCommand(),
		},
		// Tests run the app in-process; main installs the exiting handler.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// loadConfig merges the config file, environment, and global flags.
func loadConfig(c *cli.Context) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("server") {
		cfg.ServerURL = c.String("server")
	}
	if c.IsSet("slot-dir") {
		cfg.Slot.Dir = c.String("slot-dir")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

// open builds the session and mounts the controller. A failed mount is
// recorded in the controller's view rather than returned.
func open(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit("config: "+err.Error(), 2)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console", OutputPath: "stderr"}); err != nil {
		return nil, err
	}

	cat, err := catalog.Open(c.Context, cfg)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	ctl := reconcile.New(cat, ingest.New(cat, cfg.Concurrency))
	if err := ctl.Mount(c.Context); err != nil {
		logging.Debug("mount refresh failed", logging.Err(err))
	}
	return &session{cfg: cfg, catalog: cat, ctl: ctl}, nil
}
