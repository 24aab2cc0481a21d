package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ripwire-labs/procsnap/checkpoint"
)

func TestResolveCheckpointByIDAndNewest(t *testing.T) {
	store, err := checkpoint.OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	older := checkpoint.CheckpointMeta{
		ID: uuid.New(), Pid: 42, CreatedAt: time.Now().Add(-time.Hour), ArtifactPath: "older.bin",
	}
	newer := checkpoint.CheckpointMeta{
		ID: uuid.New(), Pid: 42, CreatedAt: time.Now(), ArtifactPath: "newer.bin",
	}
	if err := store.Record(older); err != nil {
		t.Fatalf("Record older: %v", err)
	}
	if err := store.Record(newer); err != nil {
		t.Fatalf("Record newer: %v", err)
	}

	got, err := resolveCheckpoint(store, 42, "")
	if err != nil {
		t.Fatalf("resolveCheckpoint (newest): %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("expected newest checkpoint %s, got %s", newer.ID, got.ID)
	}

	got, err = resolveCheckpoint(store, 42, older.ID.String())
	if err != nil {
		t.Fatalf("resolveCheckpoint (by id): %v", err)
	}
	if got.ID != older.ID {
		t.Errorf("expected explicit checkpoint %s, got %s", older.ID, got.ID)
	}

	if _, err := resolveCheckpoint(store, 42, uuid.New().String()); err == nil {
		t.Error("expected error resolving an unrecorded checkpoint id")
	}
	if _, err := resolveCheckpoint(store, 42, "not-a-uuid"); err == nil {
		t.Error("expected error for a malformed checkpoint id")
	}
	if _, err := resolveCheckpoint(store, 999, ""); err == nil {
		t.Error("expected error resolving newest for a pid with no checkpoints")
	}
}
