// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !(solaris && !cgo) && !(darwin && !cgo) && !(android && amd64)
// +build !solaris cgo
// +build !darwin cgo
// +build !android !amd64

package fs

import (
	"context"
	"errors"
	"path/filepath"
	"unicode/utf8"

	"github.com/syncthing/notify"
)

const notifyEventMask = notify.Create | notify.Remove | notify.Write | notify.Rename

func watchNotify(ctx context.Context, roots []string, ignore Matcher) (<-chan Event, <-chan error, error) {
	outChan := make(chan Event)
	backendChan := make(chan notify.EventInfo, backendBuffer)

	absShouldIgnore := func(absPath string) bool {
		if !utf8.ValidString(absPath) {
			return true
		}

		rel, err := unrooted(absPath, roots)
		if err != nil {
			return true
		}

		return ignored(ignore, rel)
	}
	err := notify.WatchWithFilter(filepath.Join(roots[0], "..."), backendChan, absShouldIgnore, notifyEventMask)
	if err != nil {
		notify.Stop(backendChan)
		if reachedMaxUserWatches(err) {
			err = errors.New("failed to setup inotify handler. Please increase inotify limits, see https://docs.syncthing.net/users/faq.html#inotify-limits")
		}
		return nil, nil, err
	}
	l.Debugln("Watch: Started notify backend on", roots[0])

	errChan := make(chan error, 1)
	go notifyLoop(ctx, roots, backendChan, outChan, errChan, ignore)

	return outChan, errChan, nil
}

func notifyLoop(ctx context.Context, roots []string, backendChan chan notify.EventInfo, outChan chan<- Event, errChan chan<- error, ignore Matcher) {
	defer close(outChan)
	defer close(errChan)
	defer notify.Stop(backendChan)

	for {
		// Detect channel overflow
		if len(backendChan) == backendBuffer {
		outer:
			for {
				select {
				case <-backendChan:
				default:
					break outer
				}
			}
			// When next scheduling a scan, do it on the entire tree as events have been lost.
			l.Debugln("Watch: Event overflow, send \".\"")
			if !send(ctx, outChan, overflowEvent()) {
				return
			}
		}

		select {
		case ev := <-backendChan:
			relPath, err := unrooted(ev.Path(), roots)
			if err != nil {
				l.Debugln("Watch: Stopped due to", err)
				errChan <- err
				return
			}

			if ignored(ignore, relPath) {
				l.Debugln("Watch: Ignoring", relPath)
				continue
			}
			kind, ok := classify(ev.Path(), notifyOp(ev.Event()))
			if !ok {
				continue
			}
			if !send(ctx, outChan, Event{Name: relPath, Kind: kind, ObservedAt: timeNow()}) {
				l.Debugln("Watch: Stopped")
				return
			}
		case <-ctx.Done():
			l.Debugln("Watch: Stopped")
			return
		}
	}
}

func notifyOp(e notify.Event) op {
	var o op
	if e&notify.Create != 0 {
		o |= opCreate
	}
	if e&notify.Write != 0 {
		o |= opWrite
	}
	if e&notify.Remove != 0 {
		o |= opRemove
	}
	if e&notify.Rename != 0 {
		o |= opRename
	}
	return o
}
