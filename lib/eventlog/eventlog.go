// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package eventlog appends human readable change lines to a log file.
package eventlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/syncthing/metawatch/lib/fs"
)

const stampLayout = "2006-01-02 15:04:05"

// A Sink receives one message per accepted change.
type Sink interface {
	Append(message string) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Append(string) error { return nil }

// Log is an append only file of timestamped lines. It is safe for
// concurrent use.
type Log struct {
	path string
	fd   *os.File
	now  func() time.Time
	mut  sync.Mutex
}

// Open opens path for appending, creating it if necessary.
func Open(path string) (*Log, error) {
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Log{
		path: path,
		fd:   fd,
		now:  time.Now,
	}, nil
}

// Append writes "YYYY-MM-DD HH:MM:SS - message" as one line.
func (l *Log) Append(message string) error {
	l.mut.Lock()
	defer l.mut.Unlock()
	if l.fd == nil {
		return fmt.Errorf("append to %s: %w", l.path, os.ErrClosed)
	}
	line := l.now().Local().Format(stampLayout) + " - " + message + "\n"
	if _, err := l.fd.WriteString(line); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mut.Lock()
	defer l.mut.Unlock()
	if l.fd == nil {
		return nil
	}
	err := l.fd.Close()
	l.fd = nil
	return err
}

func (l *Log) String() string {
	return fmt.Sprintf("eventlog/%s", l.path)
}

// Message renders the line logged for an accepted event.
func Message(ev fs.Event) string {
	return fmt.Sprintf("%v file: %s", ev.Kind, ev.Name)
}
