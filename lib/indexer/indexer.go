// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package indexer scans a tree and writes its snapshot.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syncthing/metawatch/lib/fs"
	"github.com/syncthing/metawatch/lib/scanner"
	"github.com/syncthing/metawatch/lib/snapshot"
)

var (
	metricSnapshotFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metawatch",
		Subsystem: "indexer",
		Name:      "snapshot_files",
		Help:      "Number of files in the last written snapshot",
	})
	metricSnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metawatch",
		Subsystem: "indexer",
		Name:      "snapshot_writes_total",
		Help:      "Total number of snapshots written",
	})
)

// Stats describes the last successful run.
type Stats struct {
	Files    int
	Duration time.Duration
	Finished time.Time
}

// Indexer writes the snapshot of Root to Snapshot, leaving out paths
// matched by Matcher.
type Indexer struct {
	Root     string
	Snapshot string
	Matcher  fs.Matcher

	mut     sync.Mutex
	lastRun Stats
}

// Rescan scans the tree and replaces the snapshot.
func (i *Indexer) Rescan(ctx context.Context) error {
	t0 := time.Now()
	files, err := scanner.Scan(ctx, i.Root, i.Matcher)
	if err != nil {
		return err
	}
	if err := snapshot.Write(files, i.Snapshot); err != nil {
		return err
	}

	stats := Stats{
		Files:    len(files),
		Duration: time.Since(t0),
		Finished: time.Now(),
	}
	i.mut.Lock()
	i.lastRun = stats
	i.mut.Unlock()

	metricSnapshotFiles.Set(float64(stats.Files))
	metricSnapshotWrites.Inc()
	l.Infof("Wrote snapshot of %d files to %s (%v)", stats.Files, i.Snapshot, stats.Duration.Truncate(time.Millisecond))
	return nil
}

// LastRun returns the stats of the last successful Rescan; the zero value
// if there has been none.
func (i *Indexer) LastRun() Stats {
	i.mut.Lock()
	defer i.mut.Unlock()
	return i.lastRun
}

func (i *Indexer) String() string {
	return fmt.Sprintf("indexer/%s", i.Root)
}
