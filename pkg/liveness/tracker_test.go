package liveness_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/liveness"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

type TrackerSuite struct {
	suite.Suite
	clock      time.Time
	triggerCnt int32
	lastID     uint64
	tracker    *liveness.Tracker
}

func (s *TrackerSuite) SetupTest() {
	s.clock = time.Unix(1_700_000_000, 0)
	s.triggerCnt = 0
	s.tracker = liveness.NewWithClock(time.Second, 3, func(id uint64) {
		atomic.AddInt32(&s.triggerCnt, 1)
		s.lastID = id
	}, func() time.Time { return s.clock })
}

func (s *TrackerSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func (s *TrackerSuite) TestMissedHeartbeatTransition() {
	s.tracker.OnHeartbeat(models.Heartbeat{ServerID: 42, Timestamp: s.clock})

	// Sweep ticks withholding further heartbeats; each tick advances past
	// the 1s timeout, so a miss accrues on each of the first three and the
	// fourth finds the server already unhealthy.
	for i := 0; i < 4; i++ {
		s.advance(2 * time.Second)
		s.tracker.Sweep()
	}

	status, ok := s.tracker.Status(42)
	s.Require().True(ok)
	s.False(status.IsHealthy)
	s.Equal(3, status.MissedHeartbeats)
	s.EqualValues(1, s.triggerCnt)
	s.Equal(uint64(42), s.lastID)
}

func (s *TrackerSuite) TestAtMostOneTriggerPerEdge() {
	s.tracker.OnHeartbeat(models.Heartbeat{ServerID: 7, Timestamp: s.clock})

	for i := 0; i < 8; i++ {
		s.advance(2 * time.Second)
		s.tracker.Sweep()
	}

	s.EqualValues(1, s.triggerCnt, "re-replication hook must fire at most once per Healthy->Unhealthy edge")
}

func (s *TrackerSuite) TestRecoverySymmetry() {
	s.tracker.OnHeartbeat(models.Heartbeat{ServerID: 9, Timestamp: s.clock})
	for i := 0; i < 4; i++ {
		s.advance(2 * time.Second)
		s.tracker.Sweep()
	}
	status, _ := s.tracker.Status(9)
	s.Require().False(status.IsHealthy)

	s.tracker.OnHeartbeat(models.Heartbeat{ServerID: 9, Timestamp: s.clock})
	status, _ = s.tracker.Status(9)
	s.True(status.IsHealthy)
	s.Zero(status.MissedHeartbeats)
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func TestOnHeartbeatCreatesRecordOnFirstBeat(t *testing.T) {
	tr := liveness.New(time.Minute, 3, nil)
	_, ok := tr.Status(1)
	require.False(t, ok)

	tr.OnHeartbeat(models.Heartbeat{ServerID: 1})
	status, ok := tr.Status(1)
	require.True(t, ok)
	require.True(t, status.IsHealthy)
}
