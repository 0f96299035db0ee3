// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command metawatch keeps a CSV snapshot of the metadata (name, creation
// and modification time, size) of every file below a directory up to date.
//
// Set MWTRACE to a comma separated list of facilities (or "all") to enable
// debug output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"

	"github.com/syncthing/metawatch/lib/config"
	"github.com/syncthing/metawatch/lib/indexer"
	"github.com/syncthing/metawatch/lib/logger"
	"github.com/syncthing/metawatch/lib/metrics"
	"github.com/syncthing/metawatch/lib/monitor"
	"github.com/syncthing/metawatch/lib/shell"
	"github.com/syncthing/metawatch/lib/snapshot"
	"github.com/syncthing/metawatch/lib/svcutil"
)

type CLI struct {
	ConfigFile kong.ConfigFlag `name:"config" short:"c" env:"METAWATCH_CONFIG" placeholder:"FILE" help:"YAML configuration file"`

	Watch watchCmd `cmd:"" default:"withargs" help:"Watch the directory and keep the snapshot up to date (default)"`
	Scan  scanCmd  `cmd:"" help:"Write the snapshot once and exit"`
	Show  showCmd  `cmd:"" help:"Print a snapshot as a table"`

	Facilities facilitiesCmd `cmd:"" help:"List the logging facilities that MWTRACE accepts"`
}

type watchCmd struct {
	Config config.Configuration `embed:""`
	Shell  bool                 `help:"Run an interactive shell on standard input"`
}

type scanCmd struct {
	Config config.Configuration `embed:""`
}

type facilitiesCmd struct{}

type showCmd struct {
	Snapshot string `arg:"" optional:"" default:"metadata.csv" type:"path" help:"Snapshot file"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var cli CLI
	kctx := kong.Parse(&cli, options(ctx, os.Stdout)...)
	err := kctx.Run()
	stop()

	if err != nil {
		l.Warnln(err)
	}
	os.Exit(svcutil.ExitStatusOf(err).AsInt())
}

func options(ctx context.Context, out io.Writer) []kong.Option {
	return []kong.Option{
		kong.Name("metawatch"),
		kong.Description("Keeps a CSV snapshot of file metadata below a directory up to date."),
		kong.Configuration(config.YAML),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(out, (*io.Writer)(nil)),
		kong.UsageOnError(),
	}
}

// prepare turns configuration problems into usage errors.
func prepare(cfg *config.Configuration) (*config.Matcher, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, svcutil.AsFatalErr(err, svcutil.ExitUsage)
	}
	if err := cfg.Validate(); err != nil {
		return nil, svcutil.AsFatalErr(err, svcutil.ExitUsage)
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		return nil, svcutil.AsFatalErr(err, svcutil.ExitUsage)
	}
	if pats := matcher.Patterns(); len(pats) > 0 {
		l.Infof("Ignoring %d patterns from %s and the command line: %s", len(pats), cfg.IgnoreFile, strings.Join(pats, ", "))
	}
	return matcher, nil
}

func (c *watchCmd) Run(ctx context.Context, out io.Writer) error {
	cfg := c.Config
	matcher, err := prepare(&cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup := suture.New("metawatch", svcutil.SpecWithInfoLogger(l))
	mon := monitor.New(cfg, matcher)
	sup.Add(mon)

	if cfg.MetricsAddress != "" {
		metrics.CountLogMessages(logger.DefaultLogger)
		sup.Add(metrics.NewService(cfg.MetricsAddress))
	}

	if c.Shell {
		sh := shell.New(cfg.Root, cfg.Snapshot, out)
		sup.Add(svcutil.AsService(func(ctx context.Context) error {
			select {
			case <-mon.Ready():
			case <-ctx.Done():
				return nil
			}
			err := sh.Run(ctx, os.Stdin)
			// Leaving the shell ends the program.
			cancel()
			return svcutil.NoRestartErr(err)
		}, "shell"))
	}

	l.Infoln("metawatch starting, snapshot", cfg.Snapshot)
	err = sup.Serve(ctx)
	l.Infoln("Exiting")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *scanCmd) Run(ctx context.Context) error {
	cfg := c.Config
	matcher, err := prepare(&cfg)
	if err != nil {
		return err
	}

	idx := &indexer.Indexer{
		Root:     cfg.Root,
		Snapshot: cfg.Snapshot,
		Matcher:  matcher,
	}
	return idx.Rescan(ctx)
}

func (c *showCmd) Run(out io.Writer) error {
	fd, err := os.Open(c.Snapshot)
	if err != nil {
		return err
	}
	defer fd.Close()

	rows, err := snapshot.Read(fd)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Snapshot, err)
	}
	return snapshot.PrintTable(out, rows)
}

func (facilitiesCmd) Run(out io.Writer) error {
	facilities := logger.DefaultLogger.Facilities()
	debugging := logger.DefaultLogger.FacilityDebugging()
	names := make([]string, 0, len(facilities))
	for name := range facilities {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(out, 1, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "FACILITY\tDESCRIPTION\tDEBUG")
	for _, name := range names {
		enabled := "no"
		if slices.Contains(debugging, name) {
			enabled = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, facilities[name], enabled)
	}
	return tw.Flush()
}
