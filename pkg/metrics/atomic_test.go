package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metrics"
)

func TestAtomicSinkMonotonicity(t *testing.T) {
	s := metrics.NewAtomicSink()

	for i := 0; i < 10; i++ {
		s.IncMessagesReceived()
		s.AddBytesReceived(18)
		s.IncClientsConnected()
	}

	snap := s.Snapshot()
	assert.Equal(t, uint64(10), snap.TotalReceivedMessages)
	assert.Equal(t, uint64(180), snap.TotalBytesReceived)
	assert.Equal(t, uint64(10), snap.TotalClientsConnected)
	assert.Equal(t, int64(10), snap.ActiveConnections)

	s.DecClientsConnected()
	snap = s.Snapshot()
	assert.Equal(t, int64(9), snap.ActiveConnections)
	assert.Equal(t, uint64(10), snap.TotalClientsConnected, "total connected count never decreases")
}

func TestAtomicSinkErrorsByKind(t *testing.T) {
	s := metrics.NewAtomicSink()
	s.IncError("truncated_frame")
	s.IncError("truncated_frame")
	s.IncError("oversized_length")

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Errors["truncated_frame"])
	assert.Equal(t, uint64(1), snap.Errors["oversized_length"])
}

func TestAtomicSinkResetZeroesEverything(t *testing.T) {
	s := metrics.NewAtomicSink()
	s.IncMessagesReceived()
	s.IncError("x")
	s.ObserveProcessingTime(time.Millisecond)

	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.TotalReceivedMessages)
	assert.Zero(t, snap.TotalProcessingTimeNs)
	assert.Empty(t, snap.Errors)
}
