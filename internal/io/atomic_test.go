package io

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "deep", "file.csv")

	require.NoError(t, WriteFileAtomic(path, []byte("a,b\n1,2\n")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "a.json"), []byte("{}")))
	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "b.json"), []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
	assert.Len(t, entries, 2)
}

func TestWriteJSONAtomicRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")

	in := map[string]any{"run_id": "r1", "rows": float64(3)}
	require.NoError(t, WriteJSONAtomic(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
