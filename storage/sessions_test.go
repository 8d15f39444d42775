package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyorb/auto-chat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	tr := testTranscript("conv-1", "dreams", time.Now(), "Alice", "Bob")
	tr.Status = model.StatusRunning
	require.NoError(t, store.SaveSnapshot(tr))

	info, err := os.Stat(filepath.Join(dir, "conv-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	snap, err := store.Load("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "dreams", snap.Topic)
	assert.Equal(t, model.StatusRunning, snap.Status)
	assert.Len(t, snap.Messages, 2)
	assert.False(t, snap.UpdatedAt.IsZero())

	// A later save of the same conversation replaces the file.
	tr.Messages = append(tr.Messages, model.Message{Role: model.RoleSpeakerA, SpeakerName: "Alice", Content: "more"})
	require.NoError(t, store.SaveSnapshot(tr))
	snap, err = store.Load("conv-1")
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 3)
}

func TestSnapshotSaveAssignsID(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(model.Transcript{Topic: "untitled"}))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].ID)
	assert.False(t, list[0].StartedAt.IsZero())
}

func TestSnapshotList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveSnapshot(testTranscript("first", "a", time.Now(), "Alice", "Bob")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.SaveSnapshot(testTranscript("second", "b", time.Now(), "Carol", "Dave")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2, "corrupted and foreign files are skipped")
	assert.Equal(t, "second", list[0].ID)
	assert.Equal(t, []string{"Carol", "Dave"}, list[0].Participants)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestSnapshotNotFound(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("nope"), ErrNotFound)
}

func TestSnapshotDelete(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(testTranscript("gone", "x", time.Now(), "Alice", "Bob")))

	require.NoError(t, store.Delete("gone"))
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
