// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fs

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EventKind is the kind of change a filesystem event reports.
type EventKind int

const (
	Created EventKind = iota + 1
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "Created"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// ParseEventKind is the inverse of EventKind.String, case insensitive.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(s) {
	case "created":
		return Created, nil
	case "modified":
		return Modified, nil
	case "deleted":
		return Deleted, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is a single change below the watched root. Name is relative to the
// root, "." being the root itself.
type Event struct {
	Name       string
	Kind       EventKind
	ObservedAt time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%v %s", e.Kind, e.Name)
}

// Matcher decides whether a root relative path is ignored.
type Matcher interface {
	Match(name string) bool
}

type noMatcher struct{}

func (noMatcher) Match(string) bool { return false }

// op is the backend independent set of operations an fs notification can
// carry.
type op uint8

const (
	opCreate op = 1 << iota
	opWrite
	opRemove
	opRename
	opChmod
)

// classify maps a backend operation on absPath to an EventKind. It returns
// false for events that are not to be delivered, which is any event on an
// existing directory.
func classify(absPath string, o op) (EventKind, bool) {
	info, err := os.Lstat(absPath)
	exists := err == nil
	if exists && info.IsDir() {
		return 0, false
	}

	switch {
	case o&opRemove != 0:
		return Deleted, true
	case o&opRename != 0:
		// A rename reports both the old and the new name. Only the new
		// one still exists.
		if exists {
			return Created, true
		}
		return Deleted, true
	case o&opCreate != 0:
		return Created, true
	case o&(opWrite|opChmod) != 0:
		return Modified, true
	default:
		return 0, false
	}
}
