// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/samizdat/pkg/analytics"
	"github.com/luxfi/samizdat/pkg/api"
	"github.com/luxfi/samizdat/pkg/config"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/metric"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/storage"
)

// Node is one settlement daemon: the store, the engine and its two HTTP
// listeners.
type Node struct {
	cfg     config.Config
	store   storage.Store
	engine  *settlement.Engine
	tracker *analytics.Tracker
	hub     *api.Hub
	metrics *metric.Metrics
	log     log.Logger
	started time.Time

	apiServer   *http.Server
	adminServer *http.Server
	errs        chan error
}

// NewNode opens the store and wires the engine.
func NewNode(ctx context.Context, cfg config.Config, logger log.Logger) (*Node, error) {
	metrics, err := metric.NewMetrics()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		store:   store,
		engine:  settlement.NewEngine(store, logger.With(log.String("component", "engine"))),
		tracker: analytics.NewTracker(),
		hub:     api.NewHub(logger.With(log.String("component", "feed")), metrics),
		metrics: metrics,
		log:     logger,
		errs:    make(chan error, 2),
	}
	n.engine.SetMetrics(metrics)
	n.engine.SetEmitter(settlement.MultiEmitter{n.tracker, n.hub})

	server := api.NewServer(api.Config{
		CORSOrigins: cfg.API.CORSOrigins,
		Mode:        cfg.API.Mode,
	}, n.engine, n.tracker, n.hub, logger.With(log.String("component", "api")), metrics)

	n.apiServer = &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	n.adminServer = &http.Server{
		Addr:              cfg.Admin.Listen,
		Handler:           n.setupAdminRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return n, nil
}

// Start begins serving. Listener failures are reported on Errors. If any
// address cannot be bound, nothing is left listening.
func (n *Node) Start() error {
	n.started = time.Now()
	servers := []*http.Server{n.apiServer, n.adminServer}
	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, ln)
	}
	for i, srv := range servers {
		ln := listeners[i]
		n.log.Info("listening", log.String("addr", ln.Addr().String()))
		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.errs <- err
			}
		}(srv, ln)
	}
	n.log.Info("node started",
		log.String("storage", n.cfg.Storage.Backend),
		log.String("api", n.cfg.API.Listen),
		log.String("admin", n.cfg.Admin.Listen),
	)
	return nil
}

// Errors reports listener failures after Start.
func (n *Node) Errors() <-chan error { return n.errs }

// Shutdown gracefully shuts down the node.
func (n *Node) Shutdown(ctx context.Context) error {
	n.hub.Close()
	var errs []error
	for _, srv := range []*http.Server{n.apiServer, n.adminServer} {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := n.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *Node) setupAdminRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", n.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/info", n.handleInfo).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(n.metrics.GetGatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	body := map[string]interface{}{"time": time.Now().Unix()}
	if err := n.store.View(ctx, func(storage.Tx) error { return nil }); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	body["status"] = status
	writeJSON(w, code, body)
}

func (n *Node) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":     Version,
		"commit":      GitCommit,
		"buildTime":   BuildTime,
		"storage":     n.cfg.Storage.Backend,
		"uptime":      time.Since(n.started).Round(time.Second).String(),
		"subscribers": n.hub.Subscribers(),
		"stats":       n.tracker.Summary(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
