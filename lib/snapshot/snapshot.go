// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package snapshot reads and writes the CSV metadata snapshot of a watched
// tree.
package snapshot

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/syncthing/metawatch/lib/osutil"
	"github.com/syncthing/metawatch/lib/scanner"
)

// Header is the fixed column order of a snapshot.
var Header = []string{"name", "creation_time", "modification_time", "size"}

// Fractional seconds are appended by FormatTime and accepted by time.Parse
// without being named in the layout.
const timeLayout = "2006-01-02T15:04:05"

var errBadHeader = errors.New("snapshot header mismatch")

// A Row is one parsed snapshot line.
type Row struct {
	Name             string
	CreationTime     time.Time
	ModificationTime time.Time
	Size             uint64
}

// FormatTime renders t in local time without offset, with microseconds
// only when they are non zero.
func FormatTime(t time.Time) string {
	t = t.Local().Truncate(time.Microsecond)
	s := t.Format(timeLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.Local)
}

// Encode writes the header and one row per record, in order.
func Encode(w io.Writer, records []scanner.FileMetadata) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, len(Header))
	for _, f := range records {
		row[0] = f.Name
		row[1] = FormatTime(f.CreationTime)
		row[2] = FormatTime(f.ModificationTime)
		row[3] = strconv.FormatUint(f.Size, 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// Write replaces dest with a snapshot of records. Readers of dest see
// either the previous snapshot or the new one, never a partial file.
func Write(records []scanner.FileMetadata, dest string) error {
	w, err := osutil.CreateAtomic(dest)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := Encode(w, records); err != nil {
		w.Abort()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Read parses a snapshot.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read snapshot: %w", errBadHeader)
	} else if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	for i := range Header {
		if hdr[i] != Header[i] {
			return nil, fmt.Errorf("read snapshot: %w: column %d is %q", errBadHeader, i+1, hdr[i])
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row := Row{Name: rec[0]}
		if row.CreationTime, err = ParseTime(rec[1]); err != nil {
			return nil, fmt.Errorf("read snapshot: line %d: %w", line, err)
		}
		if row.ModificationTime, err = ParseTime(rec[2]); err != nil {
			return nil, fmt.Errorf("read snapshot: line %d: %w", line, err)
		}
		if row.Size, err = strconv.ParseUint(rec[3], 10, 64); err != nil {
			return nil, fmt.Errorf("read snapshot: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}
