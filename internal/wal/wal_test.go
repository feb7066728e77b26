package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/lsmvec/codec"
	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, w *WAL) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, w.Replay(func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestWAL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Append(
		PutEntry(model.Record{ID: "a", Vector: []float64{1, 2}, Metadata: model.Metadata{"tag": "x"}}),
		DeleteEntry("b"),
	))
	require.NoError(t, w.Append(PutEntry(model.Record{ID: "c", Vector: []float64{3, 4}})))
	assert.Positive(t, w.Size())
	require.NoError(t, w.Close())

	w2, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w2.Close()

	got := collect(t, w2)
	require.Len(t, got, 3)
	assert.Equal(t, model.OpPut, got[0].Op)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, []float64{1, 2}, got[0].Vector)
	assert.Equal(t, "x", got[0].Metadata["tag"])
	assert.Equal(t, model.OpDelete, got[1].Op)
	assert.Equal(t, "b", got[1].ID)
	assert.Nil(t, got[1].Vector)
	assert.Equal(t, "c", got[2].ID)
}

func TestWALLineFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(nil, path, Options{Durability: DurabilityAsync, Codec: codec.JSON{}})
	require.NoError(t, err)
	require.NoError(t, w.Append(DeleteEntry("gone")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"op\":\"delete\",\"id\":\"gone\"}\n", string(data))
}

func TestWALReplayCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	content := "{\"op\":\"put\",\"id\":\"a\",\"vector\":[1]}\nnot json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	err = w.Replay(func(Entry) error { return nil })
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWALReplayUnknownOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"op\":\"merge\",\"id\":\"a\"}\n"), 0644))

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	assert.ErrorIs(t, w.Replay(func(Entry) error { return nil }), ErrCorrupt)
}

func TestWALCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Append(PutEntry(model.Record{ID: id, Vector: []float64{1}})))
	}
	before := w.Size()

	require.NoError(t, w.Checkpoint(DeleteEntry("x")))
	assert.Less(t, w.Size(), before)

	// Appends after checkpoint land in the new file.
	require.NoError(t, w.Append(PutEntry(model.Record{ID: "d", Vector: []float64{2}})))

	got := collect(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, DeleteEntry("x"), got[0])
	assert.Equal(t, "d", got[1].ID)

	require.NoError(t, w.Checkpoint())
	assert.Zero(t, w.Size())
	assert.Empty(t, collect(t, w))
}

func TestWALCheckpointFailureKeepsLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	ffs := fs.NewFaultyFS(nil)

	w, err := Open(ffs, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(PutEntry(model.Record{ID: "a", Vector: []float64{1}})))

	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	require.ErrorIs(t, w.Checkpoint(), fs.ErrInjected)
	ffs.ClearRules()

	got := collect(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestWALAppendFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: 0})

	w, err := Open(ffs, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(PutEntry(model.Record{ID: "a", Vector: []float64{1}}))
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.Zero(t, w.Size())
	assert.Empty(t, collect(t, w))
}

func TestWALSyncFailureBreaksLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	w, err := Open(ffs, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	require.ErrorIs(t, w.Append(DeleteEntry("a")), fs.ErrInjected)
	assert.ErrorIs(t, w.Append(DeleteEntry("b")), ErrBroken)
}

func TestWALClosed(t *testing.T) {
	w, err := Open(nil, filepath.Join(t.TempDir(), "wal.log"), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Append(DeleteEntry("a")), ErrClosed)
	assert.ErrorIs(t, w.Replay(func(Entry) error { return nil }), ErrClosed)
}
