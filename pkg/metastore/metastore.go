// Package metastore implements the chunk-placement metadata contract: a
// hash-keyed key-value store with field-level operations and TTL, built on
// the Redis hash commands (hset/hget/hgetall/hdel/del/expire, plus a
// REPLICAOF-style replication command).
package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FieldDelimiter separates the server address from the backend-local path
// in a field value. Server identifiers containing it must be rejected.
const FieldDelimiter = "|"

// KeyPrefix is prepended to every filename to form the hash key.
const KeyPrefix = "file:"

// ErrDelimiterInIdentifier is returned when a server identifier to be
// encoded into a field value contains FieldDelimiter.
var ErrDelimiterInIdentifier = errors.New("metastore: server identifier contains the field delimiter")

// MetaStore is the metadata collaborator's contract: six hash operations
// plus an orthogonal replication command. Implementations must be safe for
// concurrent use.
type MetaStore interface {
	// HSet bulk-sets fields on key. fields is a flat field,value,... list.
	HSet(ctx context.Context, key string, fields ...string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, field string) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, seconds int64) error

	// Keys lists every hash key with the given prefix. Used by the
	// re-replication sweep to find files affected by a lost server; not
	// part of the hash-command contract itself.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// ReplicaOf issues a REPLICAOF-style command against the backing store,
	// making it a replica of addr ("" to promote to primary). This is
	// orthogonal to the core: the core only emits the call, it never manages
	// replication topology itself.
	ReplicaOf(ctx context.Context, addr string) error
}

// FileKey returns the hash key for filename, per the `file:<filename>`
// layout.
func FileKey(filename string) string {
	return KeyPrefix + filename
}

// ChunkField returns the field name for chunk_id within a file's hash.
func ChunkField(chunkID int) string {
	return fmt.Sprintf("chunk:%d", chunkID)
}

// EncodeLocation packs a server identifier and backend-local path into one
// field value, rejecting identifiers that contain the delimiter.
func EncodeLocation(server, path string) (string, error) {
	if strings.Contains(server, FieldDelimiter) {
		return "", ErrDelimiterInIdentifier
	}
	return server + FieldDelimiter + path, nil
}

// DecodeLocation splits a field value back into server and path.
func DecodeLocation(value string) (server, path string, ok bool) {
	parts := strings.SplitN(value, FieldDelimiter, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ParseFieldDeleteTarget splits a `<filename>#chunk:<id>` deletion target
// into the underlying key and field, for single-field deletes. The second
// return value is false when target names a whole key instead.
func ParseFieldDeleteTarget(target string) (key, field string, isFieldDelete bool) {
	parts := strings.SplitN(target, "#", 2)
	if len(parts) != 2 {
		return FileKey(target), "", false
	}
	return FileKey(parts[0]), parts[1], true
}
