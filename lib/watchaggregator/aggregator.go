// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package watchaggregator turns a stream of filesystem events into
// rescans: noise is suppressed, and a burst of accepted events results in
// a single rescan once the debounce delay has elapsed.
package watchaggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/syncthing/metawatch/lib/eventlog"
	"github.com/syncthing/metawatch/lib/fs"
)

// Verdict is the outcome of handling one event.
type Verdict int

const (
	Accepted Verdict = iota
	Suppressed
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// State is Pending while a rescan is scheduled.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Policy selects how accepted events move the debounce timer.
type Policy int

const (
	// FirstEvent measures the debounce delay from the first accepted event
	// of a burst; later events don't move the timer.
	FirstEvent Policy = iota
	// QuietPeriod restarts the delay on every accepted event, but the
	// rescan happens no later than MaxDelay after the first one.
	QuietPeriod
)

func (p Policy) String() string {
	switch p {
	case FirstEvent:
		return "first-event"
	case QuietPeriod:
		return "quiet-period"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "first-event":
		return FirstEvent, nil
	case "quiet-period":
		return QuietPeriod, nil
	default:
		return 0, fmt.Errorf("unknown debounce policy %q", s)
	}
}

const (
	DefaultDebounceDelay = 2 * time.Second
	DefaultNoiseWindow   = 2 * time.Second
)

type Config struct {
	// Time after an accepted event until the rescan.
	DebounceDelay time.Duration
	// A modification this close to the creation or last accepted
	// modification of the same path is noise.
	NoiseWindow time.Duration
	// Upper bound on the delay of a rescan under the QuietPeriod policy.
	MaxDelay time.Duration
	Policy   Policy
}

func DefaultConfig() Config {
	return Config{
		DebounceDelay: DefaultDebounceDelay,
		NoiseWindow:   DefaultNoiseWindow,
		MaxDelay:      notifyTimeout(DefaultDebounceDelay),
		Policy:        FirstEvent,
	}
}

func (c Config) prepare() Config {
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
	if c.NoiseWindow < 0 {
		c.NoiseWindow = 0
	}
	if c.MaxDelay < c.DebounceDelay {
		c.MaxDelay = notifyTimeout(c.DebounceDelay)
	}
	return c
}

// A Rescanner refreshes the snapshot of the watched tree.
type Rescanner interface {
	Rescan(ctx context.Context) error
}

var errEventSourceClosed = errors.New("event source closed unexpectedly")

// Aggregator is the change aggregator. The noise bookkeeping, the state
// and the timer are guarded by a single mutex; rescans run on a separate
// worker goroutine, one at a time.
type Aggregator struct {
	cfg       Config
	rescanner Rescanner
	sink      eventlog.Sink

	mut   sync.Mutex
	noise *noiseFilter
	state State
	timer *time.Timer
	// Incremented whenever the timer is armed, so a fire that lost the
	// race against a reset can tell it is stale.
	timerGen   uint64
	burstStart time.Time
	stopped    bool

	// Rescan requests coalesce in the single slot.
	requests   chan struct{}
	stop       chan struct{}
	stopOnce   sync.Once
	workerDone chan struct{}

	statsMut sync.Mutex
	rescans  int
	lastErr  error
}

// New returns a running aggregator. A nil sink discards event log
// messages. Stop must be called to release the rescan worker.
func New(cfg Config, rescanner Rescanner, sink eventlog.Sink) *Aggregator {
	if sink == nil {
		sink = eventlog.Discard
	}
	cfg = cfg.prepare()
	a := &Aggregator{
		cfg:        cfg,
		rescanner:  rescanner,
		sink:       sink,
		noise:      newNoiseFilter(cfg.NoiseWindow),
		requests:   make(chan struct{}, 1),
		stop:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	go a.rescanWorker()
	return a
}

// Handle applies noise suppression to ev and, if it counts, makes sure a
// rescan is scheduled. Accepted events are written to the event log.
func (a *Aggregator) Handle(ev fs.Event) Verdict {
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now()
	}
	metricEventsReceived.WithLabelValues(ev.Kind.String()).Inc()

	a.mut.Lock()
	verdict := a.noise.check(ev)
	if verdict == Accepted {
		a.scheduleLocked()
	}
	a.mut.Unlock()

	if verdict == Suppressed {
		l.Debugf("%v Suppressed: %v", a, ev)
		metricEventsSuppressed.Inc()
		return verdict
	}

	l.Debugf("%v Accepted: %v", a, ev)
	metricEventsAccepted.WithLabelValues(ev.Kind.String()).Inc()
	if err := a.sink.Append(eventlog.Message(ev)); err != nil {
		l.Warnln("Writing event log:", err)
	}
	return verdict
}

// scheduleLocked arms the timer when idle, or moves it according to the
// policy when a rescan is already pending. Must be called with a.mut held.
func (a *Aggregator) scheduleLocked() {
	if a.stopped {
		return
	}

	now := time.Now()
	switch {
	case a.state == Idle:
		a.burstStart = now
		a.state = Pending
		a.armLocked(a.cfg.DebounceDelay)
		l.Debugln(a, "Rescan scheduled in", a.cfg.DebounceDelay)

	case a.cfg.Policy == QuietPeriod:
		delay := a.cfg.DebounceDelay
		if limit := a.burstStart.Add(a.cfg.MaxDelay).Sub(now); limit < delay {
			delay = limit
		}
		if delay <= 0 {
			// About to fire anyway.
			return
		}
		a.timer.Stop()
		a.armLocked(delay)
		l.Debugln(a, "Rescan postponed by", delay)
	}
}

func (a *Aggregator) armLocked(delay time.Duration) {
	a.timerGen++
	gen := a.timerGen
	a.timer = time.AfterFunc(delay, func() { a.fire(gen) })
}

// fire ends the burst: the aggregator goes back to Idle with empty
// bookkeeping before the rescan is requested, so events arriving during the
// rescan start a new burst.
func (a *Aggregator) fire(gen uint64) {
	a.mut.Lock()
	if a.stopped || a.state != Pending || gen != a.timerGen {
		a.mut.Unlock()
		return
	}
	a.state = Idle
	a.timer = nil
	tracked := a.noise.tracked()
	a.noise.reset()
	a.mut.Unlock()

	l.Debugf("%v Debounce delay elapsed (%d tracked paths), requesting rescan", a, tracked)
	select {
	case a.requests <- struct{}{}:
	default:
		l.Debugln(a, "Rescan already requested")
	}
}

func (a *Aggregator) rescanWorker() {
	defer close(a.workerDone)
	for {
		select {
		case <-a.stop:
			return
		case <-a.requests:
		}

		select {
		case <-a.stop:
			return
		default:
		}

		a.rescan()
	}
}

func (a *Aggregator) rescan() {
	l.Debugln(a, "Rescan starting")
	t0 := time.Now()
	// A rescan that has started always runs to completion.
	err := a.rescanner.Rescan(context.Background())
	dur := time.Since(t0)
	metricRescanSeconds.Observe(dur.Seconds())

	a.statsMut.Lock()
	a.rescans++
	a.lastErr = err
	a.statsMut.Unlock()

	if err != nil {
		metricRescans.WithLabelValues(metricResultError).Inc()
		l.Warnf("%v Rescan failed: %v", a, err)
		return
	}
	metricRescans.WithLabelValues(metricResultOK).Inc()
	l.Debugf("%v Rescan done in %v", a, dur)
}

// Serve feeds events from in to Handle until ctx is cancelled. An error on
// errs, or in closing while ctx is still live, means the event source has
// failed; it is returned.
func (a *Aggregator) Serve(ctx context.Context, in <-chan fs.Event, errs <-chan error) error {
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				// A failing source reports the cause before closing.
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						return fmt.Errorf("event source: %w", err)
					}
				default:
				}
				return errEventSourceClosed
			}
			a.Handle(ev)

		case err, ok := <-errs:
			if ctx.Err() != nil {
				return nil
			}
			if !ok {
				// The event channel tells us whether this was a clean
				// shutdown.
				errs = nil
				continue
			}
			return fmt.Errorf("event source: %w", err)

		case <-ctx.Done():
			l.Debugln(a, "Stopped")
			return nil
		}
	}
}

// Stop cancels a pending rescan and waits for a running one to finish.
// Events of a burst that hasn't settled yet are not rescanned. Stop is
// idempotent; Handle keeps filtering events afterwards but never schedules.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		a.mut.Lock()
		a.stopped = true
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
		a.state = Idle
		a.mut.Unlock()

		close(a.stop)
	})
	<-a.workerDone
}

func (a *Aggregator) State() State {
	a.mut.Lock()
	defer a.mut.Unlock()
	return a.state
}

// Rescans returns the number of finished rescans, failed ones included.
func (a *Aggregator) Rescans() int {
	a.statsMut.Lock()
	defer a.statsMut.Unlock()
	return a.rescans
}

// LastError returns the result of the latest rescan.
func (a *Aggregator) LastError() error {
	a.statsMut.Lock()
	defer a.statsMut.Unlock()
	return a.lastErr
}

func (a *Aggregator) String() string {
	if s, ok := a.rescanner.(fmt.Stringer); ok {
		return fmt.Sprintf("aggregator/%v:", s)
	}
	return "aggregator:"
}

// Rescans that keep being postponed must happen at some point. For short
// delays the limit is 6 times the delay, capped at 1 minute. For delays
// longer than 1 minute, the delay and limit are equal.
func notifyTimeout(delay time.Duration) time.Duration {
	const (
		shortDelay              = 10 * time.Second
		shortDelayMultiplicator = 6
		longDelay               = time.Minute
		longDelayTimeout        = time.Minute
	)
	if delay < shortDelay {
		return delay * shortDelayMultiplicator
	}
	if delay < longDelay {
		return longDelayTimeout
	}
	return delay
}
