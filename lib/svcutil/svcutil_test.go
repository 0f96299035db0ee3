// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package svcutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/syncthing/metawatch/lib/logger"
)

func TestFatalErr(t *testing.T) {
	base := errors.New("event source failed")
	ferr := AsFatalErr(base, ExitError)

	if !errors.Is(ferr, suture.ErrTerminateSupervisorTree) {
		t.Error("fatal error doesn't terminate the tree")
	}
	if !errors.Is(ferr, base) {
		t.Error("fatal error doesn't unwrap")
	}
	if again := AsFatalErr(fmt.Errorf("wrapped: %w", ferr), ExitUsage); again != ferr {
		t.Error("fatal error was wrapped twice")
	}
}

func TestNoRestartErr(t *testing.T) {
	if !errors.Is(NoRestartErr(nil), suture.ErrDoNotRestart) {
		t.Error("nil error")
	}
	base := errors.New("done")
	err := NoRestartErr(base)
	if !errors.Is(err, suture.ErrDoNotRestart) || !errors.Is(err, base) {
		t.Error("wrapped error")
	}
}

func TestExitStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status ExitStatus
	}{
		{nil, ExitSuccess},
		{errors.New("plain"), ExitError},
		{AsFatalErr(errors.New("usage"), ExitUsage), ExitUsage},
		{fmt.Errorf("wrapped: %w", AsFatalErr(errors.New("x"), ExitError)), ExitError},
	}
	for _, tc := range cases {
		if s := ExitStatusOf(tc.err); s != tc.status {
			t.Errorf("ExitStatusOf(%v) = %d, expected %d", tc.err, s, tc.status)
		}
	}
}

func TestAsService(t *testing.T) {
	base := errors.New("boom")
	svc := AsService(func(ctx context.Context) error { return base }, "test")

	if err := svc.Serve(context.Background()); err != base {
		t.Errorf("Serve returned %v", err)
	}
	if s := fmt.Sprint(svc); !strings.HasSuffix(s, "created by test") {
		t.Errorf("unexpected name %q", s)
	}
}

func TestSupervisorTermination(t *testing.T) {
	base := errors.New("source failed")
	sup := suture.New("test", SpecWithInfoLogger(logger.DefaultLogger))
	sup.Add(AsService(func(ctx context.Context) error {
		return AsFatalErr(base, ExitError)
	}, "test"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := sup.Serve(ctx)
	if !errors.Is(err, base) {
		t.Errorf("supervisor returned %v", err)
	}
	if s := ExitStatusOf(err); s != ExitError {
		t.Errorf("got exit status %d", s)
	}
}
