// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package svcutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syncthing/metawatch/lib/logger"

	"github.com/thejerf/suture/v4"
)

const serviceTimeout = 10 * time.Second

// FatalErr terminates the supervisor tree; main exits with Status.
type FatalErr struct {
	Err    error
	Status ExitStatus
}

// AsFatalErr wraps the given error creating a FatalErr. If the given error
// already is of type FatalErr, it is not wrapped again.
func AsFatalErr(err error, status ExitStatus) *FatalErr {
	var ferr *FatalErr
	if errors.As(err, &ferr) {
		return ferr
	}
	return &FatalErr{
		Err:    err,
		Status: status,
	}
}

func (e *FatalErr) Error() string {
	return e.Err.Error()
}

func (e *FatalErr) Unwrap() error {
	return e.Err
}

func (e *FatalErr) Is(target error) bool {
	return target == suture.ErrTerminateSupervisorTree
}

// NoRestartErr wraps the given error err (which may be nil) to make sure that
// `errors.Is(err, suture.ErrDoNotRestart) == true`.
func NoRestartErr(err error) error {
	if err == nil {
		return suture.ErrDoNotRestart
	}
	return &noRestartErr{err}
}

type noRestartErr struct {
	err error
}

func (e *noRestartErr) Error() string {
	return e.err.Error()
}

func (e *noRestartErr) Unwrap() error {
	return e.err
}

func (e *noRestartErr) Is(target error) bool {
	return target == suture.ErrDoNotRestart
}

type ExitStatus int

const (
	ExitSuccess ExitStatus = 0
	ExitError   ExitStatus = 1
	ExitUsage   ExitStatus = 2
)

func (s ExitStatus) AsInt() int {
	return int(s)
}

// ExitStatusOf returns the status main should exit with after err: the
// status of a FatalErr in the chain, ExitSuccess for nil and ExitError
// otherwise.
func ExitStatusOf(err error) ExitStatus {
	if err == nil {
		return ExitSuccess
	}
	var ferr *FatalErr
	if errors.As(err, &ferr) {
		return ferr.Status
	}
	return ExitError
}

// AsService wraps fn to implement suture.Service. creator names the
// service in supervisor log messages.
func AsService(fn func(ctx context.Context) error, creator string) suture.Service {
	return &service{
		creator: creator,
		serve:   fn,
	}
}

type service struct {
	creator string
	serve   func(ctx context.Context) error
}

func (s *service) Serve(ctx context.Context) error {
	return s.serve(ctx)
}

func (s *service) String() string {
	return fmt.Sprintf("Service@%p created by %v", s, s.creator)
}

// SpecWithInfoLogger returns the supervisor settings used throughout,
// logging supervisor events at info level on l.
func SpecWithInfoLogger(l logger.Logger) suture.Spec {
	return suture.Spec{
		EventHook:                func(e suture.Event) { l.Infoln(e) },
		Timeout:                  serviceTimeout,
		PassThroughPanics:        true,
		DontPropagateTermination: false,
	}
}
