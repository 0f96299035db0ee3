// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend names an implementation of the raw event source.
type Backend string

const (
	BackendNotify   Backend = "notify"
	BackendFsnotify Backend = "fsnotify"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendNotify, BackendFsnotify:
		return b, nil
	case "":
		return BackendNotify, nil
	default:
		return "", fmt.Errorf("unknown watch backend %q", s)
	}
}

var errNotDirectory = errors.New("watch root is not a directory")

// Not meant to be changed, but must be changeable for tests
var (
	// Notify does not block on sending to channel, so the channel must be
	// buffered. The actual number is magic.
	backendBuffer = 500
	timeNow       = time.Now
)

// Watch starts watching the tree below root recursively. Events are
// relative to root and never refer to directories. A failure of the
// backend is delivered on the error channel, after which no more events
// arrive. Both channels are closed once ctx is cancelled.
func Watch(ctx context.Context, root string, backend Backend, ignore Matcher) (<-chan Event, <-chan error, error) {
	if ignore == nil {
		ignore = noMatcher{}
	}

	roots, err := watchRoots(root)
	if err != nil {
		return nil, nil, err
	}

	switch backend {
	case BackendNotify, "":
		return watchNotify(ctx, roots, ignore)
	case BackendFsnotify:
		return watchFsnotify(ctx, roots, ignore)
	default:
		return nil, nil, fmt.Errorf("unknown watch backend %q", backend)
	}
}

// watchRoots returns the absolute root as given first, followed by the
// root with symlinks resolved if that differs. Backends may report paths
// below either.
func watchRoots(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, errNotDirectory)
	}
	roots := []string{abs}
	if real, err := filepath.EvalSymlinks(abs); err == nil && real != abs {
		roots = append(roots, real)
	}
	return roots, nil
}

// ErrWatchEventOutsideRoot is delivered when the backend reports a path
// that is not below any of the watched roots.
type ErrWatchEventOutsideRoot struct {
	path  string
	roots []string
}

func (e *ErrWatchEventOutsideRoot) Error() string {
	return fmt.Sprintf("watching for changes encountered an event outside of the filesystem root: roots=%v, path=%q", e.roots, e.path)
}

// unrooted returns absPath relative to the first root containing it.
func unrooted(absPath string, roots []string) (string, error) {
	for _, root := range roots {
		// Make sure the root ends with precisely one path separator, to
		// ease prefix comparisons.
		root := strings.TrimRight(root, string(os.PathSeparator)) + string(os.PathSeparator)

		if absPath+string(os.PathSeparator) == root {
			return ".", nil
		}
		if strings.HasPrefix(absPath, root) {
			return filepath.Clean(absPath[len(root):]), nil
		}
	}
	return "", &ErrWatchEventOutsideRoot{path: absPath, roots: roots}
}

func ignored(ignore Matcher, rel string) bool {
	return rel != "." && ignore.Match(filepath.ToSlash(rel))
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		l.Debugln("Watch: Sending", ev)
		return true
	case <-ctx.Done():
		return false
	}
}

// overflowEvent stands in for events lost to a full backend buffer; it
// makes the next rescan cover the whole tree.
func overflowEvent() Event {
	return Event{Name: ".", Kind: Modified, ObservedAt: timeNow()}
}
