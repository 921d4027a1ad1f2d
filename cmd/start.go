// Package cmd holds the command-line entry points.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"grimm.is/wrtd/internal/daemon"
	"grimm.is/wrtd/internal/logging"
)

// startOptions are the parsed flags of the start command.
type startOptions struct {
	level logging.Level
	json  bool
}

func parseStart(args []string, stderr io.Writer) (startOptions, error) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)
	levelName := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	jsonLogs := fs.Bool("log-json", false, "Log as JSON")
	if err := fs.Parse(args); err != nil {
		return startOptions{}, err
	}
	if fs.NArg() > 0 {
		return startOptions{}, fmt.Errorf("start takes no arguments, got %q", fs.Arg(0))
	}

	level, err := logging.ParseLevel(*levelName)
	if err != nil {
		return startOptions{}, err
	}
	return startOptions{level: level, json: *jsonLogs}, nil
}

// RunStart runs the daemon in the foreground until it is told to stop.
// Directories come from the brand defaults and their WRTD_* overrides.
func RunStart(args []string) error {
	so, err := parseStart(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = so.level
	cfg.JSON = so.json
	logger := logging.New(cfg)
	logging.SetDefault(logger)

	opts := daemon.DefaultOptions()
	opts.Logger = logger
	return daemon.New(opts).Run(context.Background())
}
