package models

import "time"

// BackendStatus is the head server's view of one cluster server's fitness
// to receive chunk replicas: whether it answered its last /node/info poll,
// how long that took, and how much storage it reported free.
type BackendStatus struct {
	URL            string    `json:"url"`
	Online         bool      `json:"online"`
	LastCheck      time.Time `json:"last_check"`
	LastError      string    `json:"last_error,omitempty"`
	Latency        int64     `json:"latency_ms"`
	ConsecFails    int       `json:"consecutive_failures"`
	NodeInfo       *NodeInfo `json:"node_info,omitempty"`
	AvailableSpace uint64    `json:"available_space"`
}
