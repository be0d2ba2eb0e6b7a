package metastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

type PlacementSuite struct {
	suite.Suite
	store *metastore.MemoryStore
	ctx   context.Context
}

func (s *PlacementSuite) SetupTest() {
	s.store = metastore.NewMemoryStore()
	s.ctx = context.Background()
}

func (s *PlacementSuite) TestWriteThenReadRoundTrips() {
	placement := models.FilePlacement{
		Filename: "test_file.txt",
		Chunks: map[int][]models.ChunkInfo{
			0: {
				{ChunkID: 0, ServerIP: "10.0.0.1:9000", FilePath: "/data/a/chunk_0", Checksum: "abc"},
				{ChunkID: 0, ServerIP: "10.0.0.2:9000", FilePath: "/data/b/chunk_0", Checksum: "abc"},
			},
			1: {
				{ChunkID: 1, ServerIP: "10.0.0.1:9000", FilePath: "/data/a/chunk_1", Checksum: "def"},
			},
		},
		TTL: 3600,
	}

	require.NoError(s.T(), metastore.WritePlacement(s.ctx, s.store, placement))

	got, err := metastore.ReadPlacement(s.ctx, s.store, "test_file.txt")
	require.NoError(s.T(), err)
	s.Len(got.Chunks[0], 2)
	s.Len(got.Chunks[1], 1)
	s.Equal(2, got.NumChunks())
}

func (s *PlacementSuite) TestDeleteEntryWholeKey() {
	placement := models.FilePlacement{
		Filename: "doomed.txt",
		Chunks: map[int][]models.ChunkInfo{
			0: {{ChunkID: 0, ServerIP: "10.0.0.1:9000", FilePath: "/data/chunk_0"}},
		},
	}
	require.NoError(s.T(), metastore.WritePlacement(s.ctx, s.store, placement))
	require.NoError(s.T(), metastore.DeleteEntry(s.ctx, s.store, "doomed.txt"))

	got, err := metastore.ReadPlacement(s.ctx, s.store, "doomed.txt")
	require.NoError(s.T(), err)
	s.Equal(0, got.NumChunks())
}

func (s *PlacementSuite) TestDeleteEntrySingleField() {
	placement := models.FilePlacement{
		Filename: "multi.txt",
		Chunks: map[int][]models.ChunkInfo{
			0: {{ChunkID: 0, ServerIP: "10.0.0.1:9000", FilePath: "/data/chunk_0"}},
			1: {{ChunkID: 1, ServerIP: "10.0.0.1:9000", FilePath: "/data/chunk_1"}},
		},
	}
	require.NoError(s.T(), metastore.WritePlacement(s.ctx, s.store, placement))
	require.NoError(s.T(), metastore.DeleteEntry(s.ctx, s.store, "multi.txt#chunk:0"))

	got, err := metastore.ReadPlacement(s.ctx, s.store, "multi.txt")
	require.NoError(s.T(), err)
	s.Equal(1, got.NumChunks())
	s.Contains(got.Chunks, 1)
}

func (s *PlacementSuite) TestEncodeLocationRejectsDelimiterInServer() {
	_, err := metastore.EncodeLocation("bad|server", "/path")
	s.ErrorIs(err, metastore.ErrDelimiterInIdentifier)
}

func TestPlacementSuite(t *testing.T) {
	suite.Run(t, new(PlacementSuite))
}
