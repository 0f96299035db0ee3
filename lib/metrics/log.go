// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syncthing/metawatch/lib/logger"
)

var metricLogMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "metawatch",
	Subsystem: "log",
	Name:      "messages_total",
	Help:      "Total number of log messages at info level and above, by level",
}, []string{"level"})

// CountLogMessages counts the info and warning messages logged on lg.
func CountLogMessages(lg logger.Logger) {
	lg.AddHandler(logger.LevelInfo, func(level logger.LogLevel, _ string) {
		metricLogMessages.WithLabelValues(level.String()).Inc()
	})
}
