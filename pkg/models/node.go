package models

// NodeInfo represents the resource and storage status a cluster server
// reports from its /node/info endpoint, used by the head server to rank
// candidates for chunk replica placement.
type NodeInfo struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	LoadAverages  LoadAverages `json:"load_averages"`
	Memory        MemoryInfo   `json:"memory"`
	Storage       StorageInfo  `json:"storage"`
}

// LoadAverages is the cluster server's 1/5/15-minute system load.
type LoadAverages struct {
	Load1  float64 `json:"load_1"`
	Load5  float64 `json:"load_5"`
	Load15 float64 `json:"load_15"`
}

// MemoryInfo is the cluster server's memory usage, in bytes.
type MemoryInfo struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

// StorageInfo is the cluster server's chunk storage usage, in bytes.
// Available orders the head server's candidate list (most free space
// first); replica selection then shuffles that list uniformly, so more free
// space does not make a cluster server more likely to receive a replica.
type StorageInfo struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}
