// Copyright (C) 2014 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config implements the metawatch configuration: command line
// flags, environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/syncthing/metawatch/lib/fs"
	"github.com/syncthing/metawatch/lib/watchaggregator"
)

const (
	DefaultSnapshot   = "metadata.csv"
	DefaultEventLog   = "events.log"
	DefaultIgnoreFile = ".mwignore"
)

// Configuration is embedded into the command line interface; the tags
// define flags, environment variables and defaults. YAML keys are the
// flag names with dashes replaced by underscores.
type Configuration struct {
	Root           string        `name:"root" short:"r" env:"METAWATCH_ROOT" default:"." placeholder:"PATH" help:"Directory to watch"`
	Snapshot       string        `name:"snapshot" short:"o" env:"METAWATCH_SNAPSHOT" default:"metadata.csv" placeholder:"PATH" help:"Snapshot CSV file to maintain"`
	EventLog       string        `name:"event-log" env:"METAWATCH_EVENT_LOG" placeholder:"PATH" help:"Event log file (default events.log next to the snapshot)"`
	IgnoreFile     string        `name:"ignore-file" env:"METAWATCH_IGNORE_FILE" placeholder:"PATH" help:"Ignore patterns file (default .mwignore in the root)"`
	Ignores        []string      `name:"ignore" env:"METAWATCH_IGNORE" placeholder:"PATTERN" help:"Additional ignore pattern, may be repeated"`
	Backend        string        `name:"backend" env:"METAWATCH_BACKEND" default:"notify" enum:"notify,fsnotify" help:"Filesystem notification backend (${enum})"`
	DebounceDelay  time.Duration `name:"debounce-delay" env:"METAWATCH_DEBOUNCE_DELAY" default:"2s" help:"Delay between a change and the rescan"`
	NoiseWindow    time.Duration `name:"noise-window" env:"METAWATCH_NOISE_WINDOW" default:"2s" help:"Modifications closer than this to the previous change of a file are ignored"`
	MaxDelay       time.Duration `name:"max-delay" env:"METAWATCH_MAX_DELAY" default:"0s" help:"Longest a rescan may be postponed with the quiet-period policy (default 6x the debounce delay, at most 1m)"`
	Policy         string        `name:"policy" env:"METAWATCH_POLICY" default:"first-event" enum:"first-event,quiet-period" help:"Debounce policy (${enum})"`
	MetricsAddress string        `name:"metrics-address" env:"METAWATCH_METRICS_ADDRESS" placeholder:"ADDR" help:"Serve Prometheus metrics on this address"`
}

// Default returns the configuration used when nothing is given; the same
// values as the flag defaults.
func Default() Configuration {
	return Configuration{
		Root:          ".",
		Snapshot:      DefaultSnapshot,
		Backend:       string(fs.BackendNotify),
		DebounceDelay: watchaggregator.DefaultDebounceDelay,
		NoiseWindow:   watchaggregator.DefaultNoiseWindow,
		Policy:        watchaggregator.FirstEvent.String(),
	}
}

var (
	errRootNotDirectory = errors.New("root is not a directory")
	errSnapshotIsDir    = errors.New("snapshot path is a directory")
	errSameFile         = errors.New("snapshot and event log must be different files")
)

// Prepare makes paths absolute and fills in the defaults that depend on
// other settings. The root must exist.
func (cfg *Configuration) Prepare() error {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Snapshot == "" {
		cfg.Snapshot = DefaultSnapshot
	}

	var err error
	if cfg.Root, err = filepath.Abs(cfg.Root); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s: %w", cfg.Root, errRootNotDirectory)
	}

	if cfg.Snapshot, err = filepath.Abs(cfg.Snapshot); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if cfg.EventLog == "" {
		cfg.EventLog = filepath.Join(filepath.Dir(cfg.Snapshot), DefaultEventLog)
	} else if cfg.EventLog, err = filepath.Abs(cfg.EventLog); err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = filepath.Join(cfg.Root, DefaultIgnoreFile)
	} else if cfg.IgnoreFile, err = filepath.Abs(cfg.IgnoreFile); err != nil {
		return fmt.Errorf("ignore file: %w", err)
	}

	l.Debugf("prepared configuration: %+v", *cfg)
	return nil
}

// Validate checks the settings. Apart from the snapshot not being an
// existing directory it doesn't look at the filesystem.
func (cfg Configuration) Validate() error {
	if _, err := fs.ParseBackend(cfg.Backend); err != nil {
		return err
	}
	if _, err := watchaggregator.ParsePolicy(cfg.Policy); err != nil {
		return err
	}
	if cfg.DebounceDelay <= 0 {
		return fmt.Errorf("debounce delay must be positive, not %v", cfg.DebounceDelay)
	}
	if cfg.NoiseWindow < 0 {
		return fmt.Errorf("noise window must not be negative, not %v", cfg.NoiseWindow)
	}
	if cfg.MaxDelay != 0 && cfg.MaxDelay < cfg.DebounceDelay {
		return fmt.Errorf("max delay %v is shorter than the debounce delay %v", cfg.MaxDelay, cfg.DebounceDelay)
	}
	if cfg.Snapshot == "" {
		return errors.New("snapshot path must be set")
	}
	if info, err := os.Stat(cfg.Snapshot); err == nil && info.IsDir() {
		return fmt.Errorf("%s: %w", cfg.Snapshot, errSnapshotIsDir)
	}
	if cfg.EventLog != "" && filepath.Clean(cfg.EventLog) == filepath.Clean(cfg.Snapshot) {
		return errSameFile
	}
	return nil
}

// AggregatorConfig returns the aggregator settings. The configuration must
// be valid.
func (cfg Configuration) AggregatorConfig() watchaggregator.Config {
	policy, err := watchaggregator.ParsePolicy(cfg.Policy)
	if err != nil {
		panic("bug: AggregatorConfig on unvalidated configuration: " + err.Error())
	}
	return watchaggregator.Config{
		DebounceDelay: cfg.DebounceDelay,
		NoiseWindow:   cfg.NoiseWindow,
		MaxDelay:      cfg.MaxDelay,
		Policy:        policy,
	}
}

// WatchBackend returns the parsed backend. The configuration must be valid.
func (cfg Configuration) WatchBackend() fs.Backend {
	backend, err := fs.ParseBackend(cfg.Backend)
	if err != nil {
		panic("bug: WatchBackend on unvalidated configuration: " + err.Error())
	}
	return backend
}
