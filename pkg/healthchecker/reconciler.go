package healthchecker

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/chunker"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metastore"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

// errNoSurvivingReplica means every replica of a chunk was on the failed
// server; there is nothing left to copy from.
var errNoSurvivingReplica = errors.New("healthchecker: no surviving replica to repair from")

// Reconciler replaces lost replicas after a server is declared unhealthy.
type Reconciler struct {
	store             metastore.MetaStore
	transport         chunker.Transport
	candidates        func() []string
	replicationFactor int
}

// ReplaceServer scans every known file's placement for chunks replicated on
// failedIP and, for each one, copies the chunk from a surviving replica to
// a freshly selected server, then persists the repaired placement.
func (r *Reconciler) ReplaceServer(ctx context.Context, failedIP string) error {
	keys, err := r.store.Keys(ctx, metastore.KeyPrefix)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // placement randomness, not security-sensitive

	var lastErr error
	for _, key := range keys {
		filename := strings.TrimPrefix(key, metastore.KeyPrefix)
		if err := r.repairFile(ctx, filename, failedIP, rng); err != nil {
			log.Error().Err(err).Str("file", filename).Msg("healthchecker: repair failed")
			lastErr = err
		}
	}
	return lastErr
}

func (r *Reconciler) repairFile(ctx context.Context, filename, failedIP string, rng *rand.Rand) error {
	placement, err := metastore.ReadPlacement(ctx, r.store, filename)
	if err != nil {
		return err
	}

	changed := false
	for chunkID, replicas := range placement.Chunks {
		surviving, lost := splitByServer(replicas, failedIP)
		if len(lost) == 0 {
			continue
		}

		replacement, err := r.repairChunk(ctx, surviving, lost, r.candidates(), rng)
		if err != nil {
			log.Warn().Err(err).Str("file", filename).Int("chunk_id", chunkID).
				Msg("healthchecker: could not repair chunk, leaving under-replicated")
			continue
		}

		placement.Chunks[chunkID] = append(surviving, replacement...)
		changed = true
	}

	if !changed {
		return nil
	}
	return metastore.WritePlacement(ctx, r.store, placement)
}

func splitByServer(replicas []models.ChunkInfo, failedIP string) (surviving, lost []models.ChunkInfo) {
	for _, r := range replicas {
		if r.ServerIP == failedIP {
			lost = append(lost, r)
		} else {
			surviving = append(surviving, r)
		}
	}
	return surviving, lost
}

func (r *Reconciler) repairChunk(ctx context.Context, surviving, lost []models.ChunkInfo, candidates []string, rng *rand.Rand) ([]models.ChunkInfo, error) {
	if len(surviving) == 0 {
		return nil, errNoSurvivingReplica
	}

	data, err := r.readAny(ctx, surviving)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]bool, len(surviving)+len(lost))
	for _, r := range surviving {
		exclude[r.ServerIP] = true
	}
	for _, r := range lost {
		exclude[r.ServerIP] = true
	}

	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !exclude[c] {
			pool = append(pool, c)
		}
	}

	need := r.replicationFactor - len(surviving)
	if need <= 0 {
		return nil, nil
	}
	targets := chunker.SelectServers(pool, need, rng)

	replacements := make([]models.ChunkInfo, 0, len(targets))
	for _, target := range targets {
		path := lost[0].FilePath
		if err := r.transport.WriteChunk(ctx, target, path, data); err != nil {
			log.Warn().Err(err).Str("server", target).Msg("healthchecker: replacement write failed")
			continue
		}
		replacements = append(replacements, models.ChunkInfo{
			ChunkID:  lost[0].ChunkID,
			ServerIP: target,
			FilePath: path,
			Size:     int64(len(data)),
			Checksum: lost[0].Checksum,
		})
		log.Info().Str("server", target).Str("size", humanize.Bytes(uint64(len(data)))).Msg("healthchecker: replacement replica written") //nolint:gosec // data length, never negative
	}
	return replacements, nil
}

func (r *Reconciler) readAny(ctx context.Context, replicas []models.ChunkInfo) ([]byte, error) {
	var lastErr error
	for _, rep := range replicas {
		data, err := r.transport.ReadChunk(ctx, rep.ServerIP, rep.FilePath)
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, lastErr
}
