// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watchaggregator

import (
	"time"

	"github.com/syncthing/metawatch/lib/fs"
)

// noiseFilter decides whether an event counts. A modification right after
// the creation of the same path, or right after another counted
// modification, is part of the same logical change and is suppressed. The
// event's ObservedAt is the only clock used, so the filter is deterministic.
//
// Not safe for concurrent use; the aggregator's mutex guards it.
type noiseFilter struct {
	window   time.Duration
	created  map[string]time.Time
	modified map[string]time.Time
}

func newNoiseFilter(window time.Duration) *noiseFilter {
	return &noiseFilter{
		window:   window,
		created:  make(map[string]time.Time),
		modified: make(map[string]time.Time),
	}
}

func (f *noiseFilter) check(ev fs.Event) Verdict {
	switch ev.Kind {
	case fs.Created:
		f.created[ev.Name] = ev.ObservedAt
		return Accepted

	case fs.Modified:
		if f.recent(f.created, ev) || f.recent(f.modified, ev) {
			return Suppressed
		}
		f.modified[ev.Name] = ev.ObservedAt
		return Accepted

	default:
		// Deletions always count and leave no trace.
		return Accepted
	}
}

func (f *noiseFilter) recent(stamps map[string]time.Time, ev fs.Event) bool {
	stamp, ok := stamps[ev.Name]
	return ok && ev.ObservedAt.Sub(stamp) < f.window
}

func (f *noiseFilter) tracked() int {
	return len(f.created) + len(f.modified)
}

func (f *noiseFilter) reset() {
	clear(f.created)
	clear(f.modified)
}
