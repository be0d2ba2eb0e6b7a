package models

import "time"

// Heartbeat is the unit of liveness emitted periodically by a cluster server
// and consumed by the health checker. It is immutable once constructed.
type Heartbeat struct {
	ServerID         uint64    `json:"server_id"`
	IP               string    `json:"ip"`
	Timestamp        time.Time `json:"timestamp"`
	CPUUsage         float64   `json:"cpu_usage"`
	StorageUsed      float64   `json:"storage_used"`
	StorageTotal     float64   `json:"storage_total"`
	NetworkBandwidth float64   `json:"network_bandwidth"`
}

// Valid reports whether the heartbeat satisfies the wire-level invariants:
// storage_used must not exceed storage_total and cpu_usage must be a
// percentage.
func (h Heartbeat) Valid() bool {
	if h.StorageUsed > h.StorageTotal {
		return false
	}
	if h.CPUUsage < 0 || h.CPUUsage > 100 {
		return false
	}
	return true
}
