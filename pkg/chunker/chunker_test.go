package chunker_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
)

// memTransport is an in-memory Transport test double.
type memTransport struct {
	mu   sync.Mutex
	data map[string][]byte
	fail map[string]bool // server -> always fail writes
}

func newMemTransport() *memTransport {
	return &memTransport{data: make(map[string][]byte), fail: make(map[string]bool)}
}

func (t *memTransport) key(server, path string) string { return server + "::" + path }

func (t *memTransport) WriteChunk(_ context.Context, server, path string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[server] {
		return errors.New("simulated write failure")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t.data[t.key(server, path)] = buf
	return nil
}

func (t *memTransport) ReadChunk(_ context.Context, server, path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.data[t.key(server, path)]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (t *memTransport) DeleteChunk(_ context.Context, server, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, t.key(server, path))
	return nil
}

func TestChecksumStable(t *testing.T) {
	a := chunker.Checksum([]byte("hello world"))
	b := chunker.Checksum([]byte("hello world"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, chunker.Checksum([]byte("hello worlD")))
}

func TestValidChunkPath(t *testing.T) {
	require.True(t, chunker.ValidChunkPath(chunker.ChunkPath("report.pdf", 3)))
	require.True(t, chunker.ValidChunkPath("/chunks/name.with.dots/chunk_0"))

	for _, bad := range []string{
		"",
		"../../../../etc/passwd",
		"/chunks/../../../etc/passwd",
		"/chunks/a/b/chunk_0",
		"/chunks/a/chunk_abc",
		"/etc/passwd",
	} {
		require.False(t, chunker.ValidChunkPath(bad), "expected %q to be rejected", bad)
	}
}

func TestSelectServersCardinality(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	servers := []string{"a", "b", "c", "d", "e"}

	selected := chunker.SelectServers(servers, 3, rng)
	require.Len(t, selected, 3)

	seen := map[string]bool{}
	for _, s := range selected {
		require.False(t, seen[s], "server selected twice")
		seen[s] = true
	}
}

func TestSelectServersCapsAtCandidateCount(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	servers := []string{"a", "b"}
	selected := chunker.SelectServers(servers, 5, rng)
	require.Len(t, selected, 2)
}

type PlacementRoundTripSuite struct {
	suite.Suite
	transport *memTransport
	ctx       context.Context
}

func (s *PlacementRoundTripSuite) SetupTest() {
	s.transport = newMemTransport()
	s.ctx = context.Background()
}

func (s *PlacementRoundTripSuite) TestReconstructionExactness() {
	original := bytes.Repeat([]byte("Lorem ipsum dolor sit amet. "), 5000)
	rng := rand.New(rand.NewSource(42))
	servers := []string{"s1", "s2", "s3", "s4"}

	placement, err := chunker.SplitAndStore(s.ctx, bytes.NewReader(original), "big.txt", servers, 3, rng, s.transport)
	s.Require().NoError(err)

	var out bytes.Buffer
	s.Require().NoError(chunker.Reconstruct(s.ctx, placement, s.transport, &out))
	s.Equal(original, out.Bytes())
}

func (s *PlacementRoundTripSuite) TestPlacementCardinalityWithinBounds() {
	original := []byte("a small file")
	rng := rand.New(rand.NewSource(7))
	servers := []string{"s1", "s2"}

	placement, err := chunker.SplitAndStore(s.ctx, bytes.NewReader(original), "small.txt", servers, 3, rng, s.transport)
	s.Require().NoError(err)

	for id, replicas := range placement.Chunks {
		s.GreaterOrEqual(len(replicas), 1)
		s.LessOrEqual(len(replicas), 2)
		checksum := replicas[0].Checksum
		for _, r := range replicas[1:] {
			s.Equal(checksum, r.Checksum, "replica %d of chunk %d has mismatched checksum", id, id)
		}
	}
}

func (s *PlacementRoundTripSuite) TestFailedWriteOmittedNotRetried() {
	s.transport.fail["s1"] = true
	original := []byte("short content")
	rng := rand.New(rand.NewSource(9))
	servers := []string{"s1", "s2", "s3"}

	placement, err := chunker.SplitAndStore(s.ctx, bytes.NewReader(original), "f.txt", servers, 3, rng, s.transport)
	s.Require().NoError(err)

	for _, replicas := range placement.Chunks {
		for _, r := range replicas {
			s.NotEqual("s1", r.ServerIP)
		}
	}
}

func (s *PlacementRoundTripSuite) TestReconstructionGapIsFatal() {
	placement, err := chunker.SplitAndStore(s.ctx, bytes.NewReader([]byte("data")), "gap.txt", []string{"s1"}, 1, rand.New(rand.NewSource(3)), s.transport)
	s.Require().NoError(err)

	delete(placement.Chunks, 0)

	var out bytes.Buffer
	err = chunker.Reconstruct(s.ctx, placement, s.transport, &out)
	s.ErrorIs(err, chunker.ErrReconstructionGap)
}

func TestPlacementRoundTripSuite(t *testing.T) {
	suite.Run(t, new(PlacementRoundTripSuite))
}
