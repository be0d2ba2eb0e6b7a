package clusterstore_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/clusterstore"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := clusterstore.New(dir)
	require.NoError(t, err)

	data := []byte("chunk payload bytes")
	require.NoError(t, store.WriteChunk("/chunks/foo.txt/chunk_0", data))

	got, err := store.ReadChunk("/chunks/foo.txt/chunk_0")
	require.NoError(t, err)
	require.Equal(t, data, got)

	var buf bytes.Buffer
	require.NoError(t, store.CopyTo(&buf, "/chunks/foo.txt/chunk_0"))
	require.Equal(t, data, buf.Bytes())
}

func TestWriteOverwritesExistingChunk(t *testing.T) {
	dir := t.TempDir()
	store, err := clusterstore.New(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteChunk("/chunks/a/chunk_0", []byte("v1")))
	require.NoError(t, store.WriteChunk("/chunks/a/chunk_0", []byte("v2-updated")))

	got, err := store.ReadChunk("/chunks/a/chunk_0")
	require.NoError(t, err)
	require.Equal(t, []byte("v2-updated"), got)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	store, err := clusterstore.New(dir)
	require.NoError(t, err)
	require.NoError(t, store.DeleteChunk("/nope"))
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/path"
	_, err := clusterstore.New(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWriteReadDeleteRejectPathTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := clusterstore.New(dir)
	require.NoError(t, err)

	traversal := "../../../../etc/passwd"

	err = store.WriteChunk(traversal, []byte("pwned"))
	require.ErrorIs(t, err, clusterstore.ErrPathEscapesRoot)

	_, err = store.ReadChunk(traversal)
	require.ErrorIs(t, err, clusterstore.ErrPathEscapesRoot)

	err = store.DeleteChunk(traversal)
	require.ErrorIs(t, err, clusterstore.ErrPathEscapesRoot)

	var buf bytes.Buffer
	err = store.CopyTo(&buf, traversal)
	require.ErrorIs(t, err, clusterstore.ErrPathEscapesRoot)
}
