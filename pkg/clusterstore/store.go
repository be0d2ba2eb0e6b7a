// Package clusterstore is the cluster server's local chunk backend: it
// persists one file per chunk replica under a directory tree mirroring the
// deterministic path the placement engine derived, with all-or-nothing
// writes via a temp-file-then-rename on the same filesystem.
package clusterstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
)

const dirPerm = 0750

// ErrPathEscapesRoot is returned when a chunk path, once cleaned and
// resolved, would land outside the store's root — a path-traversal attempt
// (e.g. a leading run of "../" in a query-supplied path) rather than a
// genuine chunk path.
var ErrPathEscapesRoot = errors.New("clusterstore: path escapes store root")

// Store persists chunk replicas under a root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// resolve joins path onto the store root and rejects anything that resolves
// outside it. filepath.Clean alone is not enough: a relative path whose
// leading component is ".." is left untouched by Clean (there is no root to
// clamp it against yet) and only escapes once joined onto root, so the
// escape has to be checked after the join, not before it.
func (s *Store) resolve(path string) (string, error) {
	resolved := filepath.Join(s.root, filepath.Clean(path))
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", ErrPathEscapesRoot
	}
	return resolved, nil
}

// WriteChunk writes data to path atomically: it stages into a temp file in
// the same directory, then renames into place, so a crash mid-write never
// leaves a partial chunk visible under its final name.
func (s *Store) WriteChunk(path string, data []byte) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadChunk returns the exact bytes previously written to path.
func (s *Store) ReadChunk(path string) ([]byte, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target) //nolint:gosec // target is confined to s.root by resolve
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteChunk removes path if present; absence is not an error.
func (s *Store) DeleteChunk(path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("clusterstore: delete failed")
		return err
	}
	return nil
}

// CopyTo streams a chunk to w without buffering it all at once.
func (s *Store) CopyTo(w io.Writer, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.Open(target) //nolint:gosec // target is confined to s.root by resolve
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}
