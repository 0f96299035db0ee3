// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package monitor ties the event source, the aggregator and the indexer
// together into a service.
package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/syncthing/metawatch/lib/config"
	"github.com/syncthing/metawatch/lib/eventlog"
	"github.com/syncthing/metawatch/lib/fs"
	"github.com/syncthing/metawatch/lib/indexer"
	"github.com/syncthing/metawatch/lib/svcutil"
	"github.com/syncthing/metawatch/lib/watchaggregator"
)

type watchFunc func(ctx context.Context, root string, backend fs.Backend, ignore fs.Matcher) (<-chan fs.Event, <-chan error, error)

// Monitor keeps the snapshot of the configured root up to date. It is a
// suture service; a failing event source terminates the supervisor.
type Monitor struct {
	cfg     config.Configuration
	matcher fs.Matcher
	indexer *indexer.Indexer
	watch   watchFunc

	readyOnce sync.Once
	ready     chan struct{}

	mut sync.Mutex
	agg *watchaggregator.Aggregator
}

// New returns a monitor for cfg, which must be prepared and valid.
func New(cfg config.Configuration, matcher fs.Matcher) *Monitor {
	return &Monitor{
		cfg:     cfg,
		matcher: matcher,
		indexer: &indexer.Indexer{
			Root:     cfg.Root,
			Snapshot: cfg.Snapshot,
			Matcher:  matcher,
		},
		watch: fs.Watch,
		ready: make(chan struct{}),
	}
}

func (m *Monitor) Serve(ctx context.Context) error {
	log, err := eventlog.Open(m.cfg.EventLog)
	if err != nil {
		return svcutil.AsFatalErr(err, svcutil.ExitError)
	}
	defer log.Close()

	// Watching starts before the initial scan, so nothing that changes
	// during the scan is missed.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	events, errs, err := m.watch(watchCtx, m.cfg.Root, m.cfg.WatchBackend(), m.matcher)
	if err != nil {
		return svcutil.AsFatalErr(fmt.Errorf("starting watcher: %w", err), svcutil.ExitError)
	}
	l.Infof("Watching %s (%s backend)", m.cfg.Root, m.cfg.WatchBackend())

	if err := m.indexer.Rescan(ctx); err != nil {
		// The next change retries.
		l.Warnln("Initial scan:", err)
	}

	agg := watchaggregator.New(m.cfg.AggregatorConfig(), m.indexer, log)
	m.mut.Lock()
	m.agg = agg
	m.mut.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })

	err = agg.Serve(ctx, events, errs)

	// The event source goes first, then the running rescan gets to
	// finish.
	cancelWatch()
	agg.Stop()
	l.Debugln(m, "stopped")

	if err != nil {
		return svcutil.AsFatalErr(err, svcutil.ExitError)
	}
	return nil
}

// Ready is closed once the initial scan is done and events are being
// handled.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

// Rescans returns the number of rescans done after the initial scan.
func (m *Monitor) Rescans() int {
	m.mut.Lock()
	agg := m.agg
	m.mut.Unlock()
	if agg == nil {
		return 0
	}
	return agg.Rescans()
}

// LastRun returns the stats of the latest successful snapshot write.
func (m *Monitor) LastRun() indexer.Stats {
	return m.indexer.LastRun()
}

func (m *Monitor) String() string {
	return fmt.Sprintf("monitor/%s", m.cfg.Root)
}
