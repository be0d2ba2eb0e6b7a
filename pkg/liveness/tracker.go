// Package liveness implements the per-server missed-heartbeat state
// machine: the liveness tracker keeps one ServerHealth record per known
// cluster server, refreshes it on each heartbeat, and ages it out on a
// periodic sweep, invoking a re-replication hook on the Healthy->Unhealthy
// edge.
package liveness

import (
	"sync"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

const (
	// DefaultHeartbeatTimeout is how long without a heartbeat before a
	// server accrues a missed beat.
	DefaultHeartbeatTimeout = 60 * time.Second
	// DefaultMaxMissedHeartbeats is the miss count at which a server flips
	// unhealthy.
	DefaultMaxMissedHeartbeats = 3
	// DefaultSweepInterval is how often the janitor-equivalent sweep runs.
	DefaultSweepInterval = 30 * time.Second
)

// ReplicationHook is invoked at most once per Healthy->Unhealthy transition,
// with the id of the server that just went unhealthy. Implementations
// enumerate the server's chunks via the metadata store and re-issue
// placement onto healthy peers.
type ReplicationHook func(serverID uint64)

// Tracker is the liveness tracker. Safe for concurrent use: OnHeartbeat
// may be called from many receiver workers while Sweep runs on its own
// goroutine.
type Tracker struct {
	mu      sync.Mutex
	servers map[uint64]*models.ServerHealth

	heartbeatTimeout    time.Duration
	maxMissedHeartbeats int
	onUnhealthy         ReplicationHook

	now func() time.Time // overridable for tests
}

// New creates a Tracker with the given timeout/threshold and
// re-replication hook.
func New(heartbeatTimeout time.Duration, maxMissedHeartbeats int, hook ReplicationHook) *Tracker {
	return NewWithClock(heartbeatTimeout, maxMissedHeartbeats, hook, time.Now)
}

// NewWithClock is New with an overridable clock, so sweep-based state
// transitions can be tested without sleeping real wall-clock time.
func NewWithClock(heartbeatTimeout time.Duration, maxMissedHeartbeats int, hook ReplicationHook, now func() time.Time) *Tracker {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	if maxMissedHeartbeats <= 0 {
		maxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	return &Tracker{
		servers:             make(map[uint64]*models.ServerHealth),
		heartbeatTimeout:    heartbeatTimeout,
		maxMissedHeartbeats: maxMissedHeartbeats,
		onUnhealthy:         hook,
		now:                 now,
	}
}

// OnHeartbeat refreshes last-seen, updates resource fields, clears the miss
// count, and flips the server back to healthy if it was previously
// unhealthy, logging the recovery. Created on first heartbeat.
func (t *Tracker) OnHeartbeat(hb models.Heartbeat) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sh, exists := t.servers[hb.ServerID]
	if !exists {
		sh = &models.ServerHealth{ServerID: hb.ServerID}
		t.servers[hb.ServerID] = sh
	}

	wasUnhealthy := exists && !sh.IsHealthy

	sh.IP = hb.IP
	sh.LastHeartbeat = t.now()
	sh.CPUUsage = hb.CPUUsage
	sh.StorageUsed = hb.StorageUsed
	sh.StorageTotal = hb.StorageTotal
	sh.MissedHeartbeats = 0
	sh.IsHealthy = true

	if wasUnhealthy {
		log.Info().Uint64("server_id", hb.ServerID).Msg("liveness: server recovered")
	}
}

// Sweep ages out stale servers: for each server more than heartbeatTimeout
// past its last heartbeat, increments missed_heartbeats; at
// maxMissedHeartbeats it flips Healthy->Unhealthy and invokes the
// re-replication hook exactly once for that edge. A server that is already
// unhealthy accrues no further misses, so its count stays at
// maxMissedHeartbeats until its next heartbeat resets it.
func (t *Tracker) Sweep() {
	type trigger struct{ serverID uint64 }
	var triggers []trigger

	t.mu.Lock()
	now := t.now()
	for id, sh := range t.servers {
		if now.Sub(sh.LastHeartbeat) <= t.heartbeatTimeout {
			continue
		}
		if !sh.IsHealthy {
			continue
		}

		sh.MissedHeartbeats++
		if sh.MissedHeartbeats >= t.maxMissedHeartbeats && sh.IsHealthy {
			sh.IsHealthy = false
			triggers = append(triggers, trigger{serverID: id})
			log.Warn().Uint64("server_id", id).Int("missed_heartbeats", sh.MissedHeartbeats).
				Msg("liveness: server marked unhealthy")
		}
	}
	t.mu.Unlock()

	for _, tr := range triggers {
		if t.onUnhealthy != nil {
			t.onUnhealthy(tr.serverID)
		}
	}
}

// Status returns a copy of the current health record for serverID.
func (t *Tracker) Status(serverID uint64) (models.ServerHealth, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sh, ok := t.servers[serverID]
	if !ok {
		return models.ServerHealth{}, false
	}
	return *sh, true
}

// HealthyServers returns the ids of all servers currently marked healthy.
func (t *Tracker) HealthyServers() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]uint64, 0, len(t.servers))
	for id, sh := range t.servers {
		if sh.IsHealthy {
			ids = append(ids, id)
		}
	}
	return ids
}

// AllStatus returns a copy of every tracked server's health record.
func (t *Tracker) AllStatus() []models.ServerHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.ServerHealth, 0, len(t.servers))
	for _, sh := range t.servers {
		out = append(out, *sh)
	}
	return out
}

// Run drives periodic sweeps every interval until stop is closed.
func (t *Tracker) Run(stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}
