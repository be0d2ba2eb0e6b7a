// Package sysinfo scrapes /proc for the resource fields a cluster server
// must stamp onto each heartbeat: CPU percentage, storage used/total, and
// (best-effort) network throughput.
package sysinfo

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Sample is one point-in-time resource reading.
type Sample struct {
	CPUUsage         float64 // percent, 0..100
	StorageUsed      float64 // bytes
	StorageTotal     float64 // bytes
	NetworkBandwidth float64 // bytes/sec, best-effort
}

// Sampler produces successive resource samples for a given storage path and
// network interface, computing CPU percentage and network throughput as
// deltas between calls.
type Sampler struct {
	storageDir string
	iface      string

	prevCPU     cpuTicks
	havePrevCPU bool
	prevNet     uint64
	prevNetAt   time.Time
	havePrevNet bool
}

// NewSampler creates a Sampler that reports disk usage for storageDir and
// network throughput for iface (empty string disables network sampling).
func NewSampler(storageDir, iface string) *Sampler {
	return &Sampler{storageDir: storageDir, iface: iface}
}

// Sample takes one resource reading. The first call after construction
// reports zero CPU usage and zero network bandwidth, since both require a
// prior sample to compute a delta.
func (s *Sampler) Sample() (Sample, error) {
	storage, err := getStorageInfo(s.storageDir)
	if err != nil {
		return Sample{}, err
	}

	cpuPct, err := s.sampleCPU()
	if err != nil {
		return Sample{}, err
	}

	netBW := s.sampleNetwork()

	return Sample{
		CPUUsage:         cpuPct,
		StorageUsed:      float64(storage.Used),
		StorageTotal:     float64(storage.Total),
		NetworkBandwidth: netBW,
	}, nil
}

type cpuTicks struct {
	idle, total uint64
}

// sampleCPU computes the percentage of non-idle CPU time since the previous
// sample, reading the aggregate "cpu" line of /proc/stat.
func (s *Sampler) sampleCPU() (float64, error) {
	ticks, err := readCPUTicks()
	if err != nil {
		return 0, err
	}

	if !s.havePrevCPU {
		s.prevCPU = ticks
		s.havePrevCPU = true
		return 0, nil
	}

	deltaTotal := ticks.total - s.prevCPU.total
	deltaIdle := ticks.idle - s.prevCPU.idle
	s.prevCPU = ticks

	if deltaTotal == 0 {
		return 0, nil
	}
	busy := float64(deltaTotal-deltaIdle) / float64(deltaTotal) * 100
	if busy < 0 {
		busy = 0
	}
	if busy > 100 {
		busy = 100
	}
	return busy, nil
}

func readCPUTicks() (cpuTicks, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return cpuTicks{}, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var total uint64
		var idle uint64
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				continue
			}
			total += v
			const idleFieldIndex = 3
			if i == idleFieldIndex {
				idle = v
			}
		}
		return cpuTicks{idle: idle, total: total}, nil
	}
	return cpuTicks{}, errors.New("sysinfo: no aggregate cpu line in /proc/stat")
}

// sampleNetwork computes bytes/sec received+transmitted on iface since the
// previous sample, by reading /proc/net/dev. Returns 0 if iface is unset or
// unreadable; network sampling is best-effort and never fails a heartbeat.
func (s *Sampler) sampleNetwork() float64 {
	if s.iface == "" {
		return 0
	}

	total, err := readInterfaceBytes(s.iface)
	if err != nil {
		return 0
	}

	now := time.Now()
	if !s.havePrevNet {
		s.prevNet = total
		s.prevNetAt = now
		s.havePrevNet = true
		return 0
	}

	delta := total - s.prevNet
	elapsed := now.Sub(s.prevNetAt).Seconds()
	s.prevNet = total
	s.prevNetAt = now
	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed
}

func readInterfaceBytes(iface string) (uint64, error) {
	file, err := os.Open("/proc/net/dev")
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), iface+":") {
			continue
		}
		rest := strings.SplitN(line, ":", 2)
		if len(rest) != 2 {
			continue
		}
		fields := strings.Fields(rest[1])
		const rxBytesIdx, txBytesIdx = 0, 8
		if len(fields) <= txBytesIdx {
			continue
		}
		rx, err := strconv.ParseUint(fields[rxBytesIdx], 10, 64)
		if err != nil {
			return 0, err
		}
		tx, err := strconv.ParseUint(fields[txBytesIdx], 10, 64)
		if err != nil {
			return 0, err
		}
		return rx + tx, nil
	}
	return 0, errors.New("sysinfo: interface not found in /proc/net/dev")
}

// StorageInfo reports disk usage information for a path.
type StorageInfo struct {
	Total uint64
	Used  uint64
	Avail uint64
}

// getStorageInfo statfs's path to report total, used, and available space
// for the storage directory of a cluster server's chunk backend.
func getStorageInfo(path string) (StorageInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return StorageInfo{}, err
	}

	blockSize := uint64(stat.Bsize) //nolint:gosec // syscall values are system dependent
	total := stat.Blocks * blockSize
	avail := stat.Bavail * blockSize
	used := total - avail

	return StorageInfo{Total: total, Used: used, Avail: avail}, nil
}
