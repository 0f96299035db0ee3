// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"path/filepath"
	"strings"

	"github.com/syncthing/metawatch/lib/ignore"
	"github.com/syncthing/metawatch/lib/osutil"
)

// Matcher ignores the files metawatch writes itself, then whatever the
// user's patterns match.
type Matcher struct {
	internal map[string]struct{}
	patterns *ignore.Matcher
}

// Matcher loads the ignore file and the extra patterns. The configuration
// must be prepared.
func (cfg Configuration) Matcher() (*Matcher, error) {
	patterns := ignore.New()
	if err := patterns.Load(cfg.IgnoreFile, cfg.Ignores...); err != nil {
		return nil, err
	}

	m := &Matcher{
		internal: make(map[string]struct{}),
		patterns: patterns,
	}
	for _, path := range []string{cfg.Snapshot, cfg.EventLog} {
		if rel, ok := below(cfg.Root, path); ok {
			m.internal[rel] = struct{}{}
		}
	}
	return m, nil
}

func (m *Matcher) Match(name string) bool {
	if _, ok := m.internal[name]; ok {
		return true
	}
	if osutil.IsTemporary(name) {
		return true
	}
	return m.patterns.Match(name)
}

// Patterns returns the user's pattern lines; the internal files are not
// included.
func (m *Matcher) Patterns() []string {
	return m.patterns.Patterns()
}

// below returns path relative to root, slash separated, if it lies inside
// root.
func below(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
