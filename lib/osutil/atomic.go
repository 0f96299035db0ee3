// Copyright (C) 2015 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package osutil implements utilities for native OS support.
package osutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrClosed  = errors.New("write to closed writer")
	TempPrefix = ".metawatch.tmp."
)

// defaultMode is used when the destination doesn't exist yet.
const defaultMode fs.FileMode = 0o644

// An AtomicWriter is an *os.File that writes to a temporary file in the same
// directory as the final path. On successful Close the file is renamed to
// its final path. Any error on Write or during Close is accumulated and
// returned on Close, so a lazy user can ignore errors until Close.
type AtomicWriter struct {
	path string
	next *os.File
	err  error
}

// CreateAtomic is like os.Create, except a temporary file name is used
// instead of the given name. The temporary file is created with 0600
// permissions; the final file keeps the mode of the file it replaces, or
// 0644.
func CreateAtomic(path string) (*AtomicWriter, error) {
	fd, err := os.CreateTemp(filepath.Dir(path), TempPrefix+"*")
	if err != nil {
		return nil, err
	}

	w := &AtomicWriter{
		path: path,
		next: fd,
	}

	return w, nil
}

// Write is like io.Writer, but is a no-op on an already failed AtomicWriter.
func (w *AtomicWriter) Write(bs []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.next.Write(bs)
	if err != nil {
		w.err = err
		w.next.Close()
	}
	return n, err
}

// Close closes the temporary file and renames it to the final path. It is
// invalid to call Write() or Close() after Close().
func (w *AtomicWriter) Close() error {
	if w.err != nil {
		// A failed writer never renames; make sure the temp file goes.
		os.Remove(w.next.Name())
		return w.err
	}

	// Try to not leave temp file around, but ignore error.
	defer os.Remove(w.next.Name())

	// sync() isn't supported everywhere, our best effort will suffice.
	_ = w.next.Sync()

	if err := w.next.Close(); err != nil {
		w.err = err
		return err
	}

	mode := defaultMode
	info, infoErr := os.Lstat(w.path)
	if infoErr != nil && !errors.Is(infoErr, fs.ErrNotExist) {
		w.err = infoErr
		return infoErr
	}
	if infoErr == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(w.next.Name(), mode); err != nil {
		w.err = err
		return err
	}

	err := os.Rename(w.next.Name(), w.path)
	if runtime.GOOS == "windows" && errors.Is(err, fs.ErrPermission) {
		// On Windows, we might not be allowed to rename over the file
		// because it's read-only. Get us some write permissions and try
		// again.
		_ = os.Chmod(w.path, 0o644)
		err = os.Rename(w.next.Name(), w.path)
	}
	if err != nil {
		w.err = err
		return err
	}

	// fsync the directory too
	if fd, err := os.Open(filepath.Dir(w.path)); err == nil {
		fd.Sync()
		fd.Close()
	}

	// Set w.err to return appropriately for any future operations.
	w.err = ErrClosed

	return nil
}

// Abort discards the temporary file, leaving the destination untouched. It
// is a no-op after Close.
func (w *AtomicWriter) Abort() {
	if w.err == ErrClosed {
		return
	}
	w.next.Close()
	os.Remove(w.next.Name())
	w.err = ErrClosed
}

// IsTemporary returns true if name is a temporary file created by an
// AtomicWriter.
func IsTemporary(name string) bool {
	base := filepath.Base(name)
	return len(base) > len(TempPrefix) && strings.HasPrefix(base, TempPrefix)
}
