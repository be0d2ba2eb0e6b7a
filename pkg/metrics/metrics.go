// Package metrics defines the generic sink the heartbeat receiver emits
// counters and histogram observations to, plus two
// implementations: a lock-free atomic sink for tests, and a Prometheus-backed
// sink for production.
package metrics

import "time"

// Sink is the metrics collaborator the core depends on. Implementations
// must make concurrent calls safe; no cross-field atomicity is required
// across a single snapshot.
type Sink interface {
	IncMessagesReceived()
	AddBytesReceived(n int64)
	IncClientsConnected()
	DecClientsConnected()
	IncError(kind string)
	ObserveProcessingTime(d time.Duration)

	// Snapshot returns the current values of the monotonic counters and
	// gauges, for tests and status endpoints.
	Snapshot() Snapshot
}

// Snapshot is a consistent-enough (independently loaded) read of the
// counters and gauges described in the metrics plane.
type Snapshot struct {
	TotalReceivedMessages  uint64
	TotalBytesReceived     uint64
	TotalClientsConnected  uint64
	ActiveConnections      int64
	TotalProcessingTimeNs  uint64
	Errors                 map[string]uint64
}
