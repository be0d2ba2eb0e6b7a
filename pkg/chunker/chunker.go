// Package chunker implements the file split/replicate/reconstruct engine:
// fixed-size chunking, a polynomial content digest, random replica
// selection, best-effort per-replica writes, and order-preserving
// reassembly on download.
package chunker

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/server/balancer"
)

// ChunkSize is the maximum size of one chunk; the final chunk of a file may
// be shorter.
const ChunkSize = 64 * 1024 * 1024

// replicaReadTimeout bounds each individual replica read raced by
// readAnyReplica; a slow or stuck replica must not hold up reconstruction
// when a faster one can answer.
const replicaReadTimeout = 30 * time.Second

// DefaultReplicationFactor is used when a caller doesn't override R.
const DefaultReplicationFactor = 3

// Transport is the chunk-transfer collaborator: implementations choose any
// reliable byte-stream mechanism, so long as writes are all-or-nothing per
// chunk and reads return exactly the bytes previously written.
type Transport interface {
	WriteChunk(ctx context.Context, server, path string, data []byte) error
	ReadChunk(ctx context.Context, server, path string) ([]byte, error)
	DeleteChunk(ctx context.Context, server, path string) error
}

// ErrReconstructionGap is returned when a chunk_id in a placement has zero
// available replicas; this is fatal for that download.
var ErrReconstructionGap = errors.New("chunker: chunk id has no available replica")

// Checksum computes the content digest used for chunk integrity: a
// non-cryptographic polynomial hash with base 31 over unsigned byte values,
// rendered as lowercase hex. It exists for reproducible integrity checks
// across replicas, not for tamper resistance.
func Checksum(data []byte) string {
	const base = 31
	var hash uint64
	for _, b := range data {
		hash = hash*base + uint64(b)
	}
	return hex.EncodeToString(encodeUint64(hash))
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

// SelectServers picks min(replicationFactor, len(candidates)) distinct
// servers via a uniform random shuffle. rng is caller-supplied so tests get
// deterministic placement.
func SelectServers(candidates []string, replicationFactor int, rng *rand.Rand) []string {
	pool := make([]string, len(candidates))
	copy(pool, candidates)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := replicationFactor
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

// ChunkPath derives the backend-local path for one chunk deterministically
// from (filename, chunk_id), so repeated placement attempts for the same
// chunk land on the same path. The server is not part of the path: every
// replica of a chunk uses the same path on its own server's backend.
func ChunkPath(filename string, chunkID int) string {
	return fmt.Sprintf("/chunks/%s/chunk_%d", filename, chunkID)
}

// chunkPathPattern anchors ChunkPath's shape: a single filename segment with
// no path separators of its own, so a cluster server can reject anything
// that isn't a genuine chunk path before it ever reaches the filesystem.
var chunkPathPattern = regexp.MustCompile(`^/chunks/[^/]+/chunk_[0-9]+$`)

// ValidChunkPath reports whether path is shaped like a path ChunkPath could
// have produced. A cluster server's chunk endpoints take path straight from
// an unauthenticated query parameter, so this must run before that path
// reaches the local store: a crafted value like "../../../../etc/passwd"
// matches no legitimate placement entry and must never be resolved.
func ValidChunkPath(path string) bool {
	return chunkPathPattern.MatchString(path)
}

// SplitAndStore reads src in ChunkSize blocks, computes each chunk's
// checksum, selects a replica set per chunk, and writes each replica via
// transport. Writes are best-effort: a failed write is simply omitted from
// the returned placement, never retried on a different server within this
// pass. Callers should re-invoke placement if any chunk ends up with fewer
// than replicationFactor replicas.
func SplitAndStore(
	ctx context.Context,
	src io.Reader,
	filename string,
	candidates []string,
	replicationFactor int,
	rng *rand.Rand,
	transport Transport,
) (models.FilePlacement, error) {
	placement := models.FilePlacement{
		Filename: filename,
		Chunks:   make(map[int][]models.ChunkInfo),
	}

	buf := make([]byte, ChunkSize)
	chunkID := 0
	for {
		n, readErr := io.ReadFull(src, buf)
		if n == 0 && (errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF)) {
			break
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return placement, readErr
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		checksum := Checksum(data)
		servers := SelectServers(candidates, replicationFactor, rng)
		path := ChunkPath(filename, chunkID)

		replicas := writeReplicasParallel(ctx, transport, servers, path, data, chunkID, checksum)
		if len(replicas) > 0 {
			placement.Chunks[chunkID] = replicas
		}

		chunkID++
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
	}

	return placement, nil
}

// DeleteReplicas removes every replica of every chunk in placement,
// collecting but not stopping on individual failures.
func DeleteReplicas(ctx context.Context, placement models.FilePlacement, transport Transport) error {
	var firstErr error
	for _, replicas := range placement.Chunks {
		for _, r := range replicas {
			if err := transport.DeleteChunk(ctx, r.ServerIP, r.FilePath); err != nil {
				log.Warn().Err(err).Str("server", r.ServerIP).Str("path", r.FilePath).
					Msg("chunker: replica delete failed")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// Reconstruct streams a file's chunks in ascending chunk_id order to dst,
// picking any one available replica per id. A chunk_id with zero replicas
// is a fatal reconstruction gap; a placement with no chunks at all is a gap
// at chunk 0.
func Reconstruct(ctx context.Context, placement models.FilePlacement, transport Transport, dst io.Writer) error {
	ids := make([]int, 0, len(placement.Chunks))
	for id := range placement.Chunks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		return fmt.Errorf("%w: missing chunk 0", ErrReconstructionGap)
	}

	expected := 0
	for _, id := range ids {
		if id != expected {
			return fmt.Errorf("%w: missing chunk %d", ErrReconstructionGap, expected)
		}

		replicas := placement.Chunks[id]
		if len(replicas) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrReconstructionGap, id)
		}

		data, err := readAnyReplica(ctx, transport, replicas)
		if err != nil {
			return fmt.Errorf("%w: chunk %d unreachable on all replicas: %v", ErrReconstructionGap, id, err) //nolint:errorlint // wrapped below via %w on sentinel
		}

		if _, err := dst.Write(data); err != nil {
			return err
		}
		expected++
	}

	return nil
}

// replicaWriteResult is one replica write outcome, fanned out in parallel
// across the selected servers for one chunk.
type replicaWriteResult struct {
	chunk models.ChunkInfo
	err   error
}

// writeReplicasParallel writes one chunk to every selected server
// concurrently and collects only the replicas that succeeded. A failed
// write is simply omitted; it is never retried on a different server
// within this pass.
func writeReplicasParallel(
	ctx context.Context,
	transport Transport,
	servers []string,
	path string,
	data []byte,
	chunkID int,
	checksum string,
) []models.ChunkInfo {
	results := make(chan replicaWriteResult, len(servers))
	var wg sync.WaitGroup

	for _, server := range servers {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			err := transport.WriteChunk(ctx, server, path, data)
			results <- replicaWriteResult{
				chunk: models.ChunkInfo{
					ChunkID:  chunkID,
					ServerIP: server,
					FilePath: path,
					Size:     int64(len(data)),
					Checksum: checksum,
				},
				err: err,
			}
		}(server)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	replicas := make([]models.ChunkInfo, 0, len(servers))
	for res := range results {
		if res.err != nil {
			log.Warn().Err(res.err).Str("server", res.chunk.ServerIP).Int("chunk_id", chunkID).
				Msg("chunker: replica write failed, omitting from placement")
			continue
		}
		replicas = append(replicas, res.chunk)
	}
	return replicas
}

// readAnyReplica races a read against every replica of one chunk and
// returns the first successful response, cancelling the rest. With a
// single replica it skips the fan-out machinery entirely.
func readAnyReplica(ctx context.Context, transport Transport, replicas []models.ChunkInfo) ([]byte, error) {
	if len(replicas) == 1 {
		return transport.ReadChunk(ctx, replicas[0].ServerIP, replicas[0].FilePath)
	}

	pathByServer := make(map[string]string, len(replicas))
	servers := make([]string, 0, len(replicas))
	for _, r := range replicas {
		pathByServer[r.ServerIP] = r.FilePath
		servers = append(servers, r.ServerIP)
	}

	results := balancer.ExecuteBackendRequests(ctx, servers, replicaReadTimeout,
		func(reqCtx context.Context, server string) ([]byte, int, error) {
			data, err := transport.ReadChunk(reqCtx, server, pathByServer[server])
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return data, http.StatusOK, nil
		}, true)

	var lastErr error
	for res := range results {
		if res.Error != nil {
			lastErr = res.Error
			continue
		}
		return res.Data, nil
	}
	return nil, lastErr
}

// TempChunkName generates a collision-resistant name for a chunk staged
// on local disk before being shipped to its replicas.
func TempChunkName(filename string, chunkID int) string {
	return fmt.Sprintf("%s-chunk%d-%s", filename, chunkID, uuid.NewString())
}
