// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics serves the Prometheus metrics registered by the other
// packages over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncthing/metawatch/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("metrics", "Metrics endpoint")

const shutdownTimeout = 5 * time.Second

// Service is a suture service exposing /metrics and /ping on a listen
// address.
type Service struct {
	addr string

	mut   sync.Mutex
	bound net.Addr
}

func NewService(addr string) *Service {
	return &Service{addr: addr}
}

func (s *Service) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mut.Lock()
	s.bound = ln.Addr()
	s.mut.Unlock()
	l.Infoln("Metrics available on", "http://"+ln.Addr().String()+"/metrics")

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Debugln("metrics shutdown:", err)
		}
		return nil
	}
}

// Addr returns the bound listen address, or nil while not listening.
func (s *Service) Addr() net.Addr {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.bound
}

func (s *Service) String() string {
	return fmt.Sprintf("metrics@%s", s.addr)
}
