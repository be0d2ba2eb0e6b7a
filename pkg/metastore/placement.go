package metastore

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

// WritePlacement persists a FilePlacement as one hash key with one field
// per (chunk_id, replica), matching the original metadata handler's
// create_entry: one hset call per chunk/server/path triple, followed by an
// optional expire.
func WritePlacement(ctx context.Context, store MetaStore, placement models.FilePlacement) error {
	key := FileKey(placement.Filename)

	chunkIDs := make([]int, 0, len(placement.Chunks))
	for id := range placement.Chunks {
		chunkIDs = append(chunkIDs, id)
	}
	sort.Ints(chunkIDs)

	for _, id := range chunkIDs {
		for replicaIdx, chunk := range placement.Chunks[id] {
			loc, err := EncodeLocation(chunk.ServerIP, chunk.FilePath)
			if err != nil {
				return err
			}
			field := replicaField(id, replicaIdx)
			if err := store.HSet(ctx, key, field, loc); err != nil {
				return err
			}
		}
	}

	if placement.TTL > 0 {
		return store.Expire(ctx, key, placement.TTL)
	}
	return nil
}

// ReadPlacement reconstructs a FilePlacement from the metadata store,
// matching the original handler's read_entry (hgetall plus field parsing).
func ReadPlacement(ctx context.Context, store MetaStore, filename string) (models.FilePlacement, error) {
	key := FileKey(filename)
	fields, err := store.HGetAll(ctx, key)
	if err != nil {
		return models.FilePlacement{}, err
	}

	placement := models.FilePlacement{
		Filename: filename,
		Chunks:   make(map[int][]models.ChunkInfo),
	}

	for field, value := range fields {
		chunkID, ok := parseChunkField(field)
		if !ok {
			continue
		}
		server, path, ok := DecodeLocation(value)
		if !ok {
			continue
		}
		placement.Chunks[chunkID] = append(placement.Chunks[chunkID], models.ChunkInfo{
			ChunkID:  chunkID,
			ServerIP: server,
			FilePath: path,
		})
	}

	return placement, nil
}

// DeleteEntry removes either a single replica field (`filename#chunk:N`) or
// the whole placement key, mirroring the original handler's delete_entry.
func DeleteEntry(ctx context.Context, store MetaStore, target string) error {
	key, field, isFieldDelete := ParseFieldDeleteTarget(target)
	if isFieldDelete {
		return store.HDel(ctx, key, field)
	}
	return store.Del(ctx, key)
}

// replicaField encodes both the chunk id and a replica index into one field
// name so multiple replicas of the same chunk don't collide under one hash
// field, e.g. "chunk:3#1" for the second replica of chunk 3.
func replicaField(chunkID, replicaIdx int) string {
	if replicaIdx == 0 {
		return ChunkField(chunkID)
	}
	return ChunkField(chunkID) + "#" + strconv.Itoa(replicaIdx)
}

func parseChunkField(field string) (int, bool) {
	base := field
	if idx := strings.Index(field, "#"); idx >= 0 {
		base = field[:idx]
	}
	if !strings.HasPrefix(base, "chunk:") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(base, "chunk:"))
	if err != nil {
		return 0, false
	}
	return id, true
}
