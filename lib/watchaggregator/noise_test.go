// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watchaggregator

import (
	"testing"
	"time"

	"github.com/syncthing/metawatch/lib/fs"
)

func TestNoiseFilter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	type step struct {
		name    string
		kind    fs.EventKind
		at      int
		verdict Verdict
	}
	cases := []struct {
		desc  string
		steps []step
	}{
		{"modify right after create is noise", []step{
			{"a", fs.Created, 0, Accepted},
			{"a", fs.Modified, 1999, Suppressed},
		}},
		{"modify at the window edge counts", []step{
			{"a", fs.Created, 0, Accepted},
			{"a", fs.Modified, 2000, Accepted},
		}},
		{"repeated modifications", []step{
			{"a", fs.Modified, 0, Accepted},
			{"a", fs.Modified, 500, Suppressed},
			{"a", fs.Modified, 1999, Suppressed},
			// Suppressed events don't refresh the stamp.
			{"a", fs.Modified, 2000, Accepted},
			{"a", fs.Modified, 3000, Suppressed},
		}},
		{"paths are independent", []step{
			{"a", fs.Created, 0, Accepted},
			{"b", fs.Modified, 10, Accepted},
			{"a/b", fs.Modified, 20, Accepted},
		}},
		{"deletes always count", []step{
			{"a", fs.Created, 0, Accepted},
			{"a", fs.Deleted, 1, Accepted},
			{"a", fs.Deleted, 2, Accepted},
			{"a", fs.Modified, 3, Suppressed},
		}},
		{"creates always count", []step{
			{"a", fs.Created, 0, Accepted},
			{"a", fs.Created, 1, Accepted},
			{"a", fs.Modified, 1500, Suppressed},
			{"a", fs.Modified, 2001, Accepted},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newNoiseFilter(2 * time.Second)
			for i, s := range tc.steps {
				ev := fs.Event{Name: s.name, Kind: s.kind, ObservedAt: at(s.at)}
				if v := f.check(ev); v != s.verdict {
					t.Errorf("step %d (%v): got %v, expected %v", i, ev, v, s.verdict)
				}
			}
		})
	}
}

func TestNoiseFilterReset(t *testing.T) {
	now := time.Now()
	f := newNoiseFilter(time.Hour)

	f.check(fs.Event{Name: "a", Kind: fs.Created, ObservedAt: now})
	f.check(fs.Event{Name: "b", Kind: fs.Modified, ObservedAt: now})
	if n := f.tracked(); n != 2 {
		t.Errorf("tracking %d paths, expected 2", n)
	}

	f.reset()
	if n := f.tracked(); n != 0 {
		t.Errorf("tracking %d paths after reset", n)
	}
	if v := f.check(fs.Event{Name: "a", Kind: fs.Modified, ObservedAt: now}); v != Accepted {
		t.Errorf("got %v after reset, expected accepted", v)
	}
}
