// Copyright (C) 2014 Jakob Borg. All rights reserved. Use of this source code
// is governed by an MIT-style license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestAPI(t *testing.T) {
	l := newLogger(&bytes.Buffer{})

	debug := 0
	l.AddHandler(LevelDebug, checkFunc(t, LevelDebug, &debug))
	info := 0
	l.AddHandler(LevelInfo, checkFunc(t, LevelInfo, &info))
	warn := 0
	l.AddHandler(LevelWarn, checkFunc(t, LevelWarn, &warn))

	l.Debugf("test %d", 0)
	l.Debugln("test", 0)
	l.Infof("test %d", 1)
	l.Infoln("test", 1)
	l.Warnf("test %d", 3)
	l.Warnln("test", 3)

	if debug != 6 {
		t.Errorf("Debug handler called %d != 6 times", debug)
	}
	if info != 4 {
		t.Errorf("Info handler called %d != 4 times", info)
	}
	if warn != 2 {
		t.Errorf("Warn handler called %d != 2 times", warn)
	}
}

func checkFunc(t *testing.T, expectl LogLevel, counter *int) func(LogLevel, string) {
	return func(l LogLevel, msg string) {
		*counter++
		if l < expectl {
			t.Errorf("Incorrect message level %d < %d", l, expectl)
		}
	}
}

func TestFacilityDebugging(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf)

	msgs := 0
	l.AddHandler(LevelDebug, func(l LogLevel, msg string) {
		msgs++
		if strings.Contains(msg, "f1") {
			t.Fatal("Should not get message for facility f1")
		}
	})

	f0 := l.NewFacility("f0", "foo#0")
	f1 := l.NewFacility("f1", "foo#1")

	l.SetDebug("f0", true)
	l.SetDebug("f1", false)

	f0.Debugln("Debug line from f0")
	f1.Debugln("Debug line from f1")

	if msgs != 1 {
		t.Fatalf("Incorrect number of messages, %d != 1", msgs)
	}
	if got := l.FacilityDebugging(); len(got) != 1 || got[0] != "f0" {
		t.Errorf("Unexpected debugging facilities %v", got)
	}
	if descr := l.Facilities()["f1"]; descr != "foo#1" {
		t.Errorf("Unexpected description %q for f1", descr)
	}
}

func TestTraced(t *testing.T) {
	t.Setenv(TraceEnv, "scanner, fs")
	l := newLogger(&bytes.Buffer{})

	l.NewFacility("fs", "Filesystem")
	l.NewFacility("scanner", "Scanner")
	l.NewFacility("shell", "Shell")

	if !l.ShouldDebug("fs") || !l.ShouldDebug("scanner") {
		t.Error("Traced facilities should have debugging enabled")
	}
	if l.ShouldDebug("shell") {
		t.Error("Untraced facility should not have debugging enabled")
	}
}

func TestControlStripper(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(controlStripper{&buf})
	l.Infoln("bell\x07here")

	if strings.Contains(buf.String(), "\x07") {
		t.Errorf("Control character not stripped: %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "INFO: bell here\n") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	var levels []string
	l := newLogger(&bytes.Buffer{})
	l.AddHandler(LevelDebug, func(level LogLevel, _ string) {
		levels = append(levels, level.String())
	})
	l.Debugln("a")
	l.Infoln("b")
	l.Warnln("c")

	if strings.Join(levels, ",") != "debug,info,warning" {
		t.Errorf("Unexpected levels %v", levels)
	}
}
