// Package healthchecker wires the heartbeat receiver to the liveness
// tracker and, on a Healthy->Unhealthy transition, drives re-replication
// of every chunk that lost a replica on the failed server.
package healthchecker

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/heartbeat/receiver"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/liveness"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metrics"
)

// Config carries everything a Checker needs to start.
type Config struct {
	ListenAddr          string
	NumWorkers          int
	HeartbeatTimeout    time.Duration
	MaxMissedHeartbeats int
	SweepInterval       time.Duration
	MetricsAddr         string
	ReplicationFactor   int
}

// Checker is the health-checker process: a heartbeat receiver feeding a
// liveness tracker, with a re-replication hook and a metrics endpoint.
type Checker struct {
	recv    *receiver.Receiver
	tracker *liveness.Tracker
	sink    metrics.Sink

	reconciler *Reconciler
	httpServer *http.Server

	stop chan struct{}
}

// New wires a Checker around store (used both to look up affected files on
// server loss and to persist repaired placements) and candidates (the pool
// of servers eligible to receive a replacement replica).
func New(cfg Config, store metastore.MetaStore, transport chunker.Transport, candidates func() []string) *Checker {
	sink := newSink(cfg.MetricsAddr)

	replicationFactor := cfg.ReplicationFactor
	if replicationFactor <= 0 {
		replicationFactor = chunker.DefaultReplicationFactor
	}

	reconciler := &Reconciler{
		store:             store,
		transport:         transport,
		candidates:        candidates,
		replicationFactor: replicationFactor,
	}

	var tracker *liveness.Tracker
	tracker = liveness.New(cfg.HeartbeatTimeout, cfg.MaxMissedHeartbeats, func(serverID uint64) {
		health, ok := tracker.Status(serverID)
		if !ok {
			return
		}
		log.Warn().Uint64("server_id", serverID).Str("ip", health.IP).Msg("healthchecker: server unhealthy, re-replicating")
		if err := reconciler.ReplaceServer(context.Background(), health.IP); err != nil {
			log.Error().Err(err).Uint64("server_id", serverID).Msg("healthchecker: re-replication failed")
		}
	})

	recv := receiver.New(cfg.NumWorkers, sink, tracker.OnHeartbeat)

	return &Checker{
		recv:       recv,
		tracker:    tracker,
		sink:       sink,
		reconciler: reconciler,
		stop:       make(chan struct{}),
	}
}

// Start listens for heartbeats and runs the liveness sweep and metrics
// endpoint until SIGINT/SIGTERM.
func (c *Checker) Start(cfg Config) error {
	if err := c.recv.Listen(cfg.ListenAddr); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.recv.Run()
	}()

	go c.tracker.Run(c.stop, cfg.SweepInterval)

	if cfg.MetricsAddr != "" {
		c.startMetricsServer(cfg.MetricsAddr)
	}

	log.Info().Str("addr", cfg.ListenAddr).Msg("health checker listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	close(c.stop)
	c.recv.Stop()
	wg.Wait()

	if c.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.httpServer.Shutdown(ctx)
	}

	log.Info().Msg("health checker stopped")
	return nil
}

// HealthyServers returns the IDs of servers currently considered healthy.
func (c *Checker) HealthyServers() []uint64 {
	return c.tracker.HealthyServers()
}
