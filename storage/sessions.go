package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"
)

// Snapshot is an autosaved copy of a conversation that may still be running.
type Snapshot struct {
	model.Transcript
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotMetadata is a lightweight version of Snapshot for listing
type SnapshotMetadata struct {
	ID           string                   `json:"id"`
	Topic        string                   `json:"topic"`
	Participants []string                 `json:"participants"`
	Status       model.ConversationStatus `json:"status"`
	StartedAt    time.Time                `json:"started_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	MessageCount int                      `json:"message_count"`
}

// SnapshotStore keeps one JSON file per conversation id.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	// Conversation text is private to the user
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create snapshots directory")
	}

	return &SnapshotStore{dir: dir}, nil
}

func (s *SnapshotStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// SaveSnapshot writes t, replacing the previous snapshot of the same conversation.
func (s *SnapshotStore) SaveSnapshot(t model.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}

	snap := Snapshot{Transcript: t, UpdatedAt: time.Now()}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}

	// Write-then-rename so a crash mid-write never leaves a truncated file.
	tmp := s.path(t.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write snapshot file")
	}
	if err := os.Rename(tmp, s.path(t.ID)); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to replace snapshot file")
	}

	return nil
}

func (s *SnapshotStore) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot file")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal snapshot")
	}

	return &snap, nil
}

// List returns metadata for all snapshots, sorted by update time (newest first)
func (s *SnapshotStore) List() ([]SnapshotMetadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshots directory")
	}

	snapshots := []SnapshotMetadata{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		snap, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}

		names := make([]string, 0, len(snap.Participants))
		for _, p := range snap.Participants {
			names = append(names, p.Persona)
		}

		snapshots = append(snapshots, SnapshotMetadata{
			ID:           snap.ID,
			Topic:        snap.Topic,
			Participants: names,
			Status:       snap.Status,
			StartedAt:    snap.StartedAt,
			UpdatedAt:    snap.UpdatedAt,
			MessageCount: len(snap.Messages),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].UpdatedAt.After(snapshots[j].UpdatedAt)
	})

	return snapshots, nil
}

func (s *SnapshotStore) Delete(id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return errors.Wrap(err, "failed to delete snapshot file")
}
