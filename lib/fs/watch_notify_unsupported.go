// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build (solaris && !cgo) || (darwin && !cgo) || (android && amd64)
// +build solaris,!cgo darwin,!cgo android,amd64

package fs

import (
	"context"
	"fmt"
	"runtime"
)

func watchNotify(_ context.Context, _ []string, _ Matcher) (<-chan Event, <-chan error, error) {
	return nil, nil, fmt.Errorf("notify backend not available on %v-%v, use fsnotify", runtime.GOOS, runtime.GOARCH)
}
