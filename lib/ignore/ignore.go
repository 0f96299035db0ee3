// Copyright (C) 2014 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ignore matches root relative paths against glob patterns in the
// .stignore syntax: one pattern per line, "//" comments, "!" to negate,
// "(?i)" to fold case and a leading "/" to anchor at the root. The first
// matching pattern decides.
package ignore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

type Pattern struct {
	pattern  string
	match    glob.Glob
	include  bool
	foldCase bool
	// The line the pattern was expanded from.
	source string
}

// String renders the pattern in the syntax the parser reads, negation
// first.
func (p Pattern) String() string {
	ret := p.pattern
	if p.foldCase {
		ret = "(?i)" + ret
	}
	if !p.include {
		ret = "!" + ret
	}
	return ret
}

type Matcher struct {
	patterns []Pattern
	mut      sync.Mutex
}

func New() *Matcher {
	return &Matcher{}
}

// Load reads patterns from file. The extra patterns are placed before the
// ones from the file and thus take precedence. A missing file is not an
// error; only the extra patterns apply then.
func (m *Matcher) Load(file string, extra ...string) error {
	var buf bytes.Buffer
	for _, line := range extra {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if file != "" {
		bs, err := os.ReadFile(file)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		buf.Write(bs)
	}

	return m.Parse(&buf)
}

// SetPatterns replaces the current patterns.
func (m *Matcher) SetPatterns(lines []string) error {
	return m.Parse(strings.NewReader(strings.Join(lines, "\n")))
}

// Parse replaces the current patterns with those read from r. On error the
// current patterns are kept.
func (m *Matcher) Parse(r io.Reader) error {
	patterns, err := parseIgnoreFile(r)
	if err != nil {
		return err
	}

	m.mut.Lock()
	m.patterns = patterns
	m.mut.Unlock()
	return nil
}

// Match reports whether the slash or OS separated root relative path is
// ignored.
func (m *Matcher) Match(file string) bool {
	if m == nil {
		return false
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if len(m.patterns) == 0 {
		return false
	}

	// Check all the patterns for a match.
	file = filepath.ToSlash(file)
	var lowercaseFile string
	for _, pattern := range m.patterns {
		if pattern.foldCase {
			if lowercaseFile == "" {
				lowercaseFile = strings.ToLower(file)
			}
			if pattern.match.Match(lowercaseFile) {
				return pattern.include
			}
		} else {
			if pattern.match.Match(file) {
				return pattern.include
			}
		}
	}

	// Default to false.
	return false
}

// Patterns returns the loaded pattern lines in order, once each. The
// result can be given to SetPatterns to get an equivalent matcher.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	var patterns []string
	seen := make(map[string]struct{}, len(m.patterns))
	for _, pat := range m.patterns {
		if _, ok := seen[pat.source]; ok {
			continue
		}
		seen[pat.source] = struct{}{}
		patterns = append(patterns, pat.source)
	}
	return patterns
}

func parseIgnoreFile(fd io.Reader) ([]Pattern, error) {
	var patterns []Pattern

	compile := func(pattern Pattern, expr, line string) error {
		var err error
		pattern.match, err = glob.Compile(expr, '/')
		if err != nil {
			return fmt.Errorf("invalid pattern %q in ignore file", line)
		}
		patterns = append(patterns, pattern)
		return nil
	}

	addPattern := func(line, source string) error {
		pattern := Pattern{
			include:  true,
			foldCase: runtime.GOOS == "darwin" || runtime.GOOS == "windows",
			source:   source,
		}

		if strings.HasPrefix(line, "!") {
			line = line[1:]
			pattern.include = false
		}

		if strings.HasPrefix(line, "(?i)") {
			line = line[4:]
			pattern.foldCase = true
		}
		if pattern.foldCase {
			line = strings.ToLower(line)
		}
		pattern.pattern = line

		switch {
		case strings.HasPrefix(line, "/"):
			// Pattern is rooted in the current dir only
			return compile(pattern, line[1:], line)
		case strings.HasPrefix(line, "**/"):
			// Add the pattern as is, and without **/ so it matches in current dir
			if err := compile(pattern, line, line); err != nil {
				return err
			}
			return compile(pattern, line[3:], line)
		default:
			// Path name or pattern, add it so it matches files both in
			// current directory and subdirs.
			if err := compile(pattern, line, line); err != nil {
				return err
			}
			return compile(pattern, "**/"+line, line)
		}
	}

	scanner := bufio.NewScanner(fd)
	var err error
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "//"):
			continue
		}

		line = filepath.ToSlash(line)
		switch {
		case strings.HasSuffix(line, "/**"):
			err = addPattern(line, line)
		case strings.HasSuffix(line, "/"):
			err = addPattern(line+"**", line)
		default:
			err = addPattern(line, line)
			if err == nil {
				err = addPattern(line+"/**", line)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return patterns, scanner.Err()
}
