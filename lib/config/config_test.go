// Copyright (C) 2014 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/d4l3k/messagediff"
	"github.com/syncthing/metawatch/lib/fs"
	"github.com/syncthing/metawatch/lib/osutil"
	"github.com/syncthing/metawatch/lib/watchaggregator"
)

type testCLI struct {
	ConfigFile kong.ConfigFlag `name:"config"`
	Config     Configuration   `embed:""`
}

func parse(t *testing.T, args ...string) Configuration {
	t.Helper()
	var cli testCLI
	parser, err := kong.New(&cli, kong.Configuration(YAML))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cli.Config
}

func TestDefaultValues(t *testing.T) {
	cfg := parse(t)
	if diff, equal := messagediff.PrettyDiff(Default(), cfg); !equal {
		t.Errorf("Flag defaults differ from Default(). Diff:\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration is invalid: %v", err)
	}
}

func TestFlags(t *testing.T) {
	cfg := parse(t, "-r", "/data", "--snapshot", "out.csv", "--backend", "fsnotify",
		"--debounce-delay", "500ms", "--ignore", "*.tmp", "--ignore", "cache")

	if cfg.Root != "/data" || cfg.Snapshot != "out.csv" || cfg.Backend != "fsnotify" {
		t.Errorf("unexpected configuration %+v", cfg)
	}
	if cfg.DebounceDelay != 500*time.Millisecond {
		t.Errorf("got debounce delay %v", cfg.DebounceDelay)
	}
	if diff, equal := messagediff.PrettyDiff([]string{"*.tmp", "cache"}, cfg.Ignores); !equal {
		t.Errorf("Unexpected ignores. Diff:\n%s", diff)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("METAWATCH_NOISE_WINDOW", "1s")
	t.Setenv("METAWATCH_POLICY", "quiet-period")

	cfg := parse(t, "--policy", "first-event")
	if cfg.NoiseWindow != time.Second {
		t.Errorf("got noise window %v, expected 1s from the environment", cfg.NoiseWindow)
	}
	if cfg.Policy != "first-event" {
		t.Errorf("got policy %q, flag should win over the environment", cfg.Policy)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metawatch.yaml")
	data := strings.Join([]string{
		"root: /srv/files",
		"backend: fsnotify",
		"debounce_delay: 750ms",
		"policy: quiet-period",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := parse(t, "--config", path, "--policy", "first-event")

	if cfg.Root != "/srv/files" {
		t.Errorf("got root %q from the config file", cfg.Root)
	}
	if cfg.Backend != "fsnotify" {
		t.Errorf("got backend %q from the config file", cfg.Backend)
	}
	if cfg.DebounceDelay != 750*time.Millisecond {
		t.Errorf("got debounce delay %v from the config file", cfg.DebounceDelay)
	}
	if cfg.Policy != "first-event" {
		t.Errorf("got policy %q, flag should win over the config file", cfg.Policy)
	}
	// Not in the file, so the default.
	if cfg.NoiseWindow != watchaggregator.DefaultNoiseWindow {
		t.Errorf("got noise window %v", cfg.NoiseWindow)
	}
}

func TestYAMLErrors(t *testing.T) {
	if _, err := YAML(strings.NewReader("root: [unterminated")); err == nil {
		t.Error("expected error for broken YAML")
	}
	if _, err := YAML(strings.NewReader("")); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestPrepare(t *testing.T) {
	root := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	cfg := Default()
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	expected := Default()
	expected.Root = wd
	expected.Snapshot = filepath.Join(wd, DefaultSnapshot)
	expected.EventLog = filepath.Join(wd, DefaultEventLog)
	expected.IgnoreFile = filepath.Join(wd, DefaultIgnoreFile)
	if diff, equal := messagediff.PrettyDiff(expected, cfg); !equal {
		t.Errorf("Unexpected prepared configuration. Diff:\n%s", diff)
	}
}

func TestPrepareExplicitPaths(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	cfg := Default()
	cfg.Root = root
	cfg.Snapshot = filepath.Join(other, "snap.csv")
	cfg.IgnoreFile = filepath.Join(other, "ignores")
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}
	if cfg.EventLog != filepath.Join(other, DefaultEventLog) {
		t.Errorf("event log defaults to %q", cfg.EventLog)
	}
	if cfg.IgnoreFile != filepath.Join(other, "ignores") {
		t.Errorf("ignore file changed to %q", cfg.IgnoreFile)
	}
}

func TestPrepareBadRoot(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Root = filepath.Join(dir, "missing")
	if err := cfg.Prepare(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing root: unexpected error %v", err)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Root = file
	if err := cfg.Prepare(); !errors.Is(err, errRootNotDirectory) {
		t.Errorf("file root: unexpected error %v", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"backend", func(c *Configuration) { c.Backend = "inotify" }},
		{"policy", func(c *Configuration) { c.Policy = "never" }},
		{"delay", func(c *Configuration) { c.DebounceDelay = 0 }},
		{"window", func(c *Configuration) { c.NoiseWindow = -time.Second }},
		{"max delay", func(c *Configuration) { c.MaxDelay = time.Second }},
		{"no snapshot", func(c *Configuration) { c.Snapshot = "" }},
		{"snapshot is dir", func(c *Configuration) { c.Snapshot = dir }},
		{"same files", func(c *Configuration) { c.EventLog = c.Snapshot }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.MaxDelay = time.Minute
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestAggregatorConfig(t *testing.T) {
	cfg := Default()
	cfg.Policy = "quiet-period"
	cfg.MaxDelay = 10 * time.Second

	expected := watchaggregator.Config{
		DebounceDelay: 2 * time.Second,
		NoiseWindow:   2 * time.Second,
		MaxDelay:      10 * time.Second,
		Policy:        watchaggregator.QuietPeriod,
	}
	if diff, equal := messagediff.PrettyDiff(expected, cfg.AggregatorConfig()); !equal {
		t.Errorf("Unexpected aggregator config. Diff:\n%s", diff)
	}
	if b := cfg.WatchBackend(); b != fs.BackendNotify {
		t.Errorf("got backend %v", b)
	}
}

func TestMatcher(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DefaultIgnoreFile), []byte("!keep.bak\n*.bak\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Root = root
	cfg.Snapshot = filepath.Join(root, "out", "metadata.csv")
	cfg.Ignores = []string{"cache"}
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}

	m, err := cfg.Matcher()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		ignored bool
	}{
		{"out/metadata.csv", true},
		{"out/events.log", true},
		{"out/" + osutil.TempPrefix + "1234", true},
		{"metadata.csv", false},
		{"cache", true},
		{"sub/cache/file", true},
		{"old.bak", true},
		{"keep.bak", false},
		{"data.txt", false},
	}
	for _, tc := range cases {
		if res := m.Match(tc.name); res != tc.ignored {
			t.Errorf("Match(%q) = %v, expected %v", tc.name, res, tc.ignored)
		}
	}

	expected := []string{"cache", "!keep.bak", "*.bak"}
	if diff, equal := messagediff.PrettyDiff(expected, m.Patterns()); !equal {
		t.Errorf("Unexpected patterns. Diff:\n%s", diff)
	}
}

func TestMatcherSnapshotOutsideRoot(t *testing.T) {
	root := t.TempDir()

	cfg := Default()
	cfg.Root = root
	cfg.Snapshot = filepath.Join(t.TempDir(), "metadata.csv")
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}

	m, err := cfg.Matcher()
	if err != nil {
		t.Fatal(err)
	}
	if len(m.internal) != 0 {
		t.Errorf("unexpected internal paths %v", m.internal)
	}
}
