// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux
// +build linux

package fs

import (
	"errors"
	"syscall"
)

// reachedMaxUserWatches reports whether err is the kernel refusing more
// inotify watches (EMFILE or ENOSPC).
func reachedMaxUserWatches(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EMFILE || errno == syscall.ENOSPC
	}
	return false
}
