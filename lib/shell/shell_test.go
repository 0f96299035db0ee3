// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/syncthing/metawatch/lib/scanner"
	"github.com/syncthing/metawatch/lib/snapshot"
)

func newTestShell(t *testing.T) (*Shell, string, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	out := new(bytes.Buffer)
	return New(root, filepath.Join(t.TempDir(), "snapshot.csv"), out), root, out
}

func TestCreateDelete(t *testing.T) {
	s, root, _ := newTestShell(t)

	if _, err := s.Exec("create new_file.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "new_file.txt")); err != nil {
		t.Fatal("file not created:", err)
	}

	if _, err := s.Exec("delete new_file.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "new_file.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("file not deleted:", err)
	}
}

func TestCreateQuotedAndNested(t *testing.T) {
	s, root, _ := newTestShell(t)

	if _, err := s.Exec(`create "dir/with space.txt"`); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "dir", "with space.txt")); err != nil {
		t.Fatal("file not created:", err)
	}
}

func TestOutsideRoot(t *testing.T) {
	s, _, _ := newTestShell(t)

	for _, line := range []string{"create ../escape", "create /etc/passwd", "delete ..", "delete a/../../b"} {
		if _, err := s.Exec(line); !errors.Is(err, errOutsideRoot) {
			t.Errorf("%q: unexpected error %v", line, err)
		}
	}
}

func TestExecErrors(t *testing.T) {
	s, root, _ := newTestShell(t)
	if err := os.Mkdir(filepath.Join(root, "adir"), 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []string{
		"frobnicate",
		"create",
		"create a b",
		`create "unterminated`,
		"delete missing",
		"delete adir",
		"list",
	}
	for _, line := range cases {
		if _, err := s.Exec(line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}

	if quit, err := s.Exec("   "); quit || err != nil {
		t.Errorf("blank line: %v, %v", quit, err)
	}
}

func TestList(t *testing.T) {
	s, _, out := newTestShell(t)
	records := []scanner.FileMetadata{{Path: "a", Name: "a", Size: 3}}
	if err := snapshot.Write(records, s.snapshot); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Exec("list"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[1], "a ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRun(t *testing.T) {
	s, root, out := newTestShell(t)

	in := strings.NewReader("help\ncreate x\nbogus\nquit\ncreate y\n")
	if err := s.Run(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, "x")); err != nil {
		t.Error("x not created:", err)
	}
	if _, err := os.Stat(filepath.Join(root, "y")); err == nil {
		t.Error("commands after quit were run")
	}
	for _, want := range []string{Prompt, "create <name>", "Created x", `Error: unknown command "bogus"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestRunEOF(t *testing.T) {
	s, _, _ := newTestShell(t)
	if err := s.Run(context.Background(), strings.NewReader("help\n")); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
