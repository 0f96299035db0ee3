// Copyright (C) 2014 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package scanner walks a directory tree and collects the metadata of the
// regular files in it.
package scanner

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/syncthing/metawatch/lib/fs"
)

var errRootNotDirectory = errors.New("scan root is not a directory")

// Scan walks the tree below root and returns the metadata of every regular
// file not matched by matcher, sorted by Path. Files that vanish during the
// walk are skipped silently, unreadable entries below the root are skipped
// with a warning. A failure on the root itself is returned.
func Scan(ctx context.Context, root string, matcher fs.Matcher) ([]FileMetadata, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	var files []FileMetadata
	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == root {
			// Returning the error aborts the walk; an unreadable root is
			// not a partial result.
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		// Return value used when we are returning early and don't want to
		// process the item. For directories, this means do-not-descend.
		var skip error // nil
		if d != nil && d.IsDir() {
			skip = filepath.SkipDir
		}

		if matcher != nil && matcher.Match(rel) {
			l.Debugln("skip walking (patterns):", rel)
			return skip
		}

		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				l.Debugln("vanished during walk:", rel)
			} else {
				l.Warnf("Skipping %q: %v", rel, err)
			}
			return skip
		}

		if !utf8.ValidString(rel) {
			l.Warnf("File name %q is not in UTF8 encoding; skipping.", rel)
			return skip
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		md, err := Extract(root, rel)
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotRegular):
			l.Debugln("vanished before stat:", rel)
			return nil
		case err != nil:
			l.Warnf("Skipping %q: %v", rel, err)
			return nil
		}
		files = append(files, md)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	slices.SortFunc(files, func(a, b FileMetadata) int {
		return strings.Compare(a.Path, b.Path)
	})
	l.Debugf("scanned %s: %d files", root, len(files))
	return files, nil
}

// resolveRoot makes root absolute and follows a symlinked root, so the
// walk descends into it.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", root, err)
	}
	info, err := lstat(resolved)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan %s: %w", root, errRootNotDirectory)
	}
	return resolved, nil
}
