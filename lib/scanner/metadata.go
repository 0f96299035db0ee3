// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package scanner

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotFound is returned (wrapped) by Extract when the file vanished
	// before it could be inspected.
	ErrNotFound = iofs.ErrNotExist

	// ErrNotRegular is returned by Extract for anything that isn't a
	// regular file.
	ErrNotRegular = errors.New("not a regular file")
)

// Replaced in tests.
var lstat = os.Lstat

// FileMetadata describes one regular file below a scan root. Path is the
// slash separated path relative to the root and identifies the record;
// Name is the base name.
type FileMetadata struct {
	Path             string
	Name             string
	CreationTime     time.Time
	ModificationTime time.Time
	Size             uint64
}

func (f FileMetadata) String() string {
	return fmt.Sprintf("File{Path:%q, Size:%d, ModTime:%v, CreationTime:%v}",
		f.Path, f.Size, f.ModificationTime, f.CreationTime)
}

// Extract returns the metadata for the file at relPath below root. The
// returned error satisfies errors.Is(err, ErrNotFound) when the file does
// not exist.
func Extract(root, relPath string) (FileMetadata, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	info, err := lstat(abs)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("extract %s: %w", relPath, err)
	}
	if !info.Mode().IsRegular() {
		return FileMetadata{}, fmt.Errorf("extract %s: %w", relPath, ErrNotRegular)
	}

	// Every OS but darwin stores names however they were given; we
	// present them as NFC regardless.
	p := norm.NFC.String(filepath.ToSlash(relPath))
	return FileMetadata{
		Path:             p,
		Name:             path.Base(p),
		CreationTime:     creationTime(abs, info),
		ModificationTime: info.ModTime(),
		Size:             uint64(info.Size()),
	}, nil
}
