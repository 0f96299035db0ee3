// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package shell implements a small line oriented shell for creating and
// removing files in the watched tree. It only touches the filesystem; the
// watcher picks the changes up like any other.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/syncthing/metawatch/lib/snapshot"
)

const Prompt = "metawatch> "

var (
	errOutsideRoot = errors.New("path must stay inside the watched directory")
	errUsage       = errors.New("usage")
)

type command struct {
	usage string
	help  string
	args  int
	run   func(s *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"create": {"create <name>", "create an empty file", 1, (*Shell).create},
		"delete": {"delete <name>", "delete a file", 1, (*Shell).delete},
		"list":   {"list", "show the current snapshot", 0, (*Shell).list},
		"help":   {"help", "show this text", 0, (*Shell).help},
		"quit":   {"quit", "leave the shell", 0, nil},
		"exit":   {"exit", "leave the shell", 0, nil},
	}
}

var commandOrder = []string{"create", "delete", "list", "help", "quit", "exit"}

type Shell struct {
	root     string
	snapshot string
	out      io.Writer
}

// New returns a shell operating below root, listing the snapshot at
// snapshotPath. Output goes to out.
func New(root, snapshotPath string, out io.Writer) *Shell {
	return &Shell{
		root:     root,
		snapshot: snapshotPath,
		out:      out,
	}
}

// Run reads commands from in until quit, end of input or ctx is
// cancelled. Command errors are printed and don't end the shell.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(s.out, Prompt)
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			quit, err := s.Exec(line)
			if err != nil {
				fmt.Fprintln(s.out, "Error:", err)
			}
			if quit {
				return nil
			}
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		}
	}
}

// Exec runs a single command line. quit is true for quit and exit.
func (s *Shell) Exec(line string) (quit bool, err error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}

	name, args := strings.ToLower(words[0]), words[1:]
	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q (try help)", words[0])
	}
	if len(args) != cmd.args {
		return false, fmt.Errorf("%w: %s", errUsage, cmd.usage)
	}
	if cmd.run == nil {
		return true, nil
	}
	l.Debugln("shell:", name, args)
	return false, cmd.run(s, args)
}

// resolve maps a name given by the user to a path below the root.
func (s *Shell) resolve(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%q: %w", name, errOutsideRoot)
	}
	return filepath.Join(s.root, local), nil
}

func (s *Shell) create(args []string) error {
	path, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Created %s\n", args[0])
	return nil
}

func (s *Shell) delete(args []string) error {
	path, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", args[0])
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted %s\n", args[0])
	return nil
}

func (s *Shell) list(_ []string) error {
	fd, err := os.Open(s.snapshot)
	if err != nil {
		return err
	}
	defer fd.Close()
	rows, err := snapshot.Read(fd)
	if err != nil {
		return err
	}
	return snapshot.PrintTable(s.out, rows)
}

func (s *Shell) help(_ []string) error {
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Fprintf(s.out, "  %-16s %s\n", cmd.usage, cmd.help)
	}
	return nil
}
