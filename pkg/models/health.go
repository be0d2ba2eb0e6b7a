package models

import "time"

// ServerHealth is the liveness tracker's per-cluster-server record. Created
// on first heartbeat, never destroyed for the lifetime of the process.
type ServerHealth struct {
	ServerID         uint64    `json:"server_id"`
	IP               string    `json:"ip"`
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	CPUUsage         float64   `json:"cpu_usage"`
	StorageUsed      float64   `json:"storage_used"`
	StorageTotal     float64   `json:"storage_total"`
	MissedHeartbeats int       `json:"missed_heartbeats"`
	IsHealthy        bool      `json:"is_healthy"`
}
