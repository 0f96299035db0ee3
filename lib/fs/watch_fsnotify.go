// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fs

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// fsnotify watches single directories, so the tree is watched by adding
// every directory below the root and following directory creations.
type fsnotifyWatcher struct {
	w        *fsnotify.Watcher
	roots    []string
	ignore   Matcher
	watching map[string]struct{}
}

func watchFsnotify(ctx context.Context, roots []string, ignore Matcher) (<-chan Event, <-chan error, error) {
	w, err := fsnotify.NewBufferedWatcher(uint(backendBuffer))
	if err != nil {
		return nil, nil, err
	}

	fw := &fsnotifyWatcher{
		w:        w,
		roots:    roots,
		ignore:   ignore,
		watching: make(map[string]struct{}),
	}
	if err := fw.addRecursive(roots[0], nil); err != nil {
		w.Close()
		if reachedMaxUserWatches(err) {
			err = errors.New("failed to setup inotify handler. Please increase inotify limits, see https://docs.syncthing.net/users/faq.html#inotify-limits")
		}
		return nil, nil, err
	}
	l.Debugf("Watch: Started fsnotify backend on %s (%d directories)", roots[0], len(fw.watching))

	outChan := make(chan Event)
	errChan := make(chan error, 1)
	go fw.loop(ctx, outChan, errChan)

	return outChan, errChan, nil
}

// addRecursive adds watches for dir and every directory below it. When
// found is non-nil it is called with every regular file encountered, which
// is used to report files created in a new directory before its watch was
// in place.
func (fw *fsnotifyWatcher) addRecursive(dir string, found func(abs string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Vanished or unreadable below the root; nothing to watch.
			l.Debugln("Watch: Skipping", path, err)
			return nil
		}

		rel, err := unrooted(path, fw.roots)
		if err != nil {
			return err
		}
		if ignored(fw.ignore, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			if found != nil && d.Type().IsRegular() {
				found(path)
			}
			return nil
		}

		if _, ok := fw.watching[path]; ok {
			return nil
		}
		if err := fw.w.Add(path); err != nil {
			if path == dir {
				return err
			}
			l.Debugln("Watch: Error adding directory", path, err)
			return nil
		}
		fw.watching[path] = struct{}{}
		return nil
	})
}

func (fw *fsnotifyWatcher) loop(ctx context.Context, outChan chan<- Event, errChan chan<- error) {
	defer close(outChan)
	defer close(errChan)
	defer fw.w.Close()

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				errChan <- errors.New("fsnotify event channel closed")
				return
			}
			if !fw.handle(ctx, ev, outChan) {
				return
			}

		case err, ok := <-fw.w.Errors:
			if !ok {
				errChan <- errors.New("fsnotify error channel closed")
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				l.Debugln("Watch: Event overflow, send \".\"")
				if !send(ctx, outChan, overflowEvent()) {
					return
				}
				continue
			}
			l.Debugln("Watch: Stopped due to", err)
			errChan <- err
			return

		case <-ctx.Done():
			l.Debugln("Watch: Stopped")
			return
		}
	}
}

// handle translates one fsnotify event. It returns false when the loop
// should stop.
func (fw *fsnotifyWatcher) handle(ctx context.Context, ev fsnotify.Event, outChan chan<- Event) bool {
	rel, err := unrooted(ev.Name, fw.roots)
	if err != nil {
		// fsnotify reports the watch root itself with an empty name on
		// some platforms; anything else is outside and ignored.
		l.Debugln("Watch: Dropping", err)
		return true
	}
	if ignored(fw.ignore, rel) {
		l.Debugln("Watch: Ignoring", rel)
		return true
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if _, ok := fw.watching[ev.Name]; ok {
			// A watched directory went away; fsnotify drops the watch
			// itself.
			delete(fw.watching, ev.Name)
			return true
		}
	}

	kind, ok := classify(ev.Name, fsnotifyOp(ev.Op))
	if !ok {
		if ev.Has(fsnotify.Create) {
			return fw.newDirectory(ctx, ev.Name, outChan)
		}
		return true
	}
	return send(ctx, outChan, Event{Name: rel, Kind: kind, ObservedAt: timeNow()})
}

// newDirectory starts watching a created directory and reports the files
// that already exist in it.
func (fw *fsnotifyWatcher) newDirectory(ctx context.Context, dir string, outChan chan<- Event) bool {
	var files []string
	if err := fw.addRecursive(dir, func(abs string) { files = append(files, abs) }); err != nil {
		l.Debugln("Watch: Cannot watch new directory", dir, err)
		return true
	}
	for _, abs := range files {
		rel, err := unrooted(abs, fw.roots)
		if err != nil {
			continue
		}
		if !send(ctx, outChan, Event{Name: rel, Kind: Created, ObservedAt: timeNow()}) {
			return false
		}
	}
	return true
}

func fsnotifyOp(o fsnotify.Op) op {
	var res op
	if o.Has(fsnotify.Create) {
		res |= opCreate
	}
	if o.Has(fsnotify.Write) {
		res |= opWrite
	}
	if o.Has(fsnotify.Remove) {
		res |= opRemove
	}
	if o.Has(fsnotify.Rename) {
		res |= opRename
	}
	if o.Has(fsnotify.Chmod) {
		res |= opChmod
	}
	return res
}
