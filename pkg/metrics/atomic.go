package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// AtomicSink is a lock-free Sink built from atomic counters so hot-path
// updates never contend on a mutex. Error counts are keyed by kind and
// therefore need a small mutex, since a map can't be updated atomically.
type AtomicSink struct {
	totalReceivedMessages uint64
	totalBytesReceived    uint64
	totalClientsConnected uint64
	activeConnections     int64
	totalProcessingTimeNs uint64

	errMu  sync.Mutex
	errors map[string]uint64
}

// NewAtomicSink returns a ready-to-use AtomicSink.
func NewAtomicSink() *AtomicSink {
	return &AtomicSink{errors: make(map[string]uint64)}
}

func (s *AtomicSink) IncMessagesReceived() {
	atomic.AddUint64(&s.totalReceivedMessages, 1)
}

func (s *AtomicSink) AddBytesReceived(n int64) {
	atomic.AddUint64(&s.totalBytesReceived, uint64(n)) //nolint:gosec // n is a non-negative byte count
}

func (s *AtomicSink) IncClientsConnected() {
	atomic.AddUint64(&s.totalClientsConnected, 1)
	atomic.AddInt64(&s.activeConnections, 1)
}

func (s *AtomicSink) DecClientsConnected() {
	atomic.AddInt64(&s.activeConnections, -1)
}

func (s *AtomicSink) IncError(kind string) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errors[kind]++
}

func (s *AtomicSink) ObserveProcessingTime(d time.Duration) {
	atomic.AddUint64(&s.totalProcessingTimeNs, uint64(d.Nanoseconds())) //nolint:gosec // duration is non-negative
}

// Reset zeroes every counter and gauge.
func (s *AtomicSink) Reset() {
	atomic.StoreUint64(&s.totalReceivedMessages, 0)
	atomic.StoreUint64(&s.totalBytesReceived, 0)
	atomic.StoreUint64(&s.totalClientsConnected, 0)
	atomic.StoreInt64(&s.activeConnections, 0)
	atomic.StoreUint64(&s.totalProcessingTimeNs, 0)

	s.errMu.Lock()
	s.errors = make(map[string]uint64)
	s.errMu.Unlock()
}

func (s *AtomicSink) Snapshot() Snapshot {
	s.errMu.Lock()
	errs := make(map[string]uint64, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	s.errMu.Unlock()

	return Snapshot{
		TotalReceivedMessages: atomic.LoadUint64(&s.totalReceivedMessages),
		TotalBytesReceived:    atomic.LoadUint64(&s.totalBytesReceived),
		TotalClientsConnected: atomic.LoadUint64(&s.totalClientsConnected),
		ActiveConnections:     atomic.LoadInt64(&s.activeConnections),
		TotalProcessingTimeNs: atomic.LoadUint64(&s.totalProcessingTimeNs),
		Errors:                errs,
	}
}
