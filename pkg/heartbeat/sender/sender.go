// Package sender implements the heartbeat sender: one outbound,
// non-blocking TCP connection driven by the single-threaded reactor,
// emitting one framed heartbeat per interval.
package sender

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/reactor"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/wire"
)

// DefaultInterval is how often a heartbeat is emitted once the connection
// is established.
const DefaultInterval = time.Second

// SampleFunc produces the resource fields to stamp onto the next
// heartbeat; the sender calls it once per interval.
type SampleFunc func() (cpuUsage, storageUsed, storageTotal, networkBandwidth float64)

// Sender owns one connection to a heartbeat receiver and emits heartbeats
// for one cluster server.
type Sender struct {
	r        *reactor.Reactor
	serverID uint64
	ip       string
	addr     string
	interval time.Duration
	sample   SampleFunc
}

// New creates a Sender that will connect to addr and emit heartbeats for
// (serverID, ip) once per interval, sampling resource fields via sample.
func New(r *reactor.Reactor, serverID uint64, ip, addr string, interval time.Duration, sample SampleFunc) *Sender {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sender{r: r, serverID: serverID, ip: ip, addr: addr, interval: interval, sample: sample}
}

// Run dials addr, then loops emitting one frame per interval until a send
// fails unrecoverably or stop is closed. Restarting a failed sender is the
// caller's responsibility.
func (s *Sender) Run(stop <-chan struct{}) error {
	fd, err := s.connect()
	if err != nil {
		return fmt.Errorf("sender: connect: %w", err)
	}
	defer func() { _ = unix.Close(fd) }()

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		cpu, used, total, bw := s.sample()
		hb := models.Heartbeat{
			ServerID:         s.serverID,
			IP:               s.ip,
			Timestamp:        time.Now(),
			CPUUsage:         cpu,
			StorageUsed:      used,
			StorageTotal:     total,
			NetworkBandwidth: bw,
		}

		frame := wire.Encode(hb)
		if err := s.writeAll(fd, frame); err != nil {
			log.Warn().Err(err).Uint64("server_id", s.serverID).Msg("sender: write failed, exiting")
			return err
		}

		if err := s.r.SleepFor(s.interval.Nanoseconds()); err != nil {
			return err
		}
	}
}

// connect opens a non-blocking TCP socket to s.addr and suspends on the
// reactor until the connect completes, so the sender never blocks a
// thread on connect.
func (s *Sender) connect() (int, error) {
	sa, fd, err := resolveAndSocket(s.addr)
	if err != nil {
		return -1, err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("connect: %w", err)
	}

	if err == unix.EINPROGRESS {
		if waitErr := s.r.WaitWritable(fd); waitErr != nil {
			_ = unix.Close(fd)
			return -1, waitErr
		}
	}

	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if soErr != 0 {
		_ = unix.Close(fd)
		return -1, unix.Errno(soErr) //nolint:gosec // soErr comes directly from getsockopt
	}

	return fd, nil
}

// writeAll writes the full frame, suspending on wait_writable on EAGAIN and
// continuing from the offset on short writes, so the 4-byte header and
// body are never interleaved with any other writer (this task is the sole
// writer on the connection).
func (s *Sender) writeAll(fd int, frame []byte) error {
	offset := 0
	for offset < len(frame) {
		n, err := unix.Write(fd, frame[offset:])
		if err != nil {
			if err == unix.EAGAIN {
				if waitErr := s.r.WaitWritable(fd); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		offset += n
	}
	return nil
}
