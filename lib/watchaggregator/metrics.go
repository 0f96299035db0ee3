// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watchaggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metawatch",
		Subsystem: "aggregator",
		Name:      "events_received_total",
		Help:      "Total number of filesystem events received",
	}, []string{"kind"})
	metricEventsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metawatch",
		Subsystem: "aggregator",
		Name:      "events_accepted_total",
		Help:      "Total number of filesystem events that counted towards a rescan",
	}, []string{"kind"})
	metricEventsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metawatch",
		Subsystem: "aggregator",
		Name:      "events_suppressed_total",
		Help:      "Total number of modifications dropped as noise",
	})
	metricRescans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metawatch",
		Subsystem: "aggregator",
		Name:      "rescans_total",
		Help:      "Total number of rescans, by result",
	}, []string{"result"})
	metricRescanSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "metawatch",
		Subsystem: "aggregator",
		Name:      "rescan_seconds",
		Help:      "Duration of rescans",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

const (
	metricResultOK    = "ok"
	metricResultError = "error"
)
