package state

import (
	"context"
	"testing"
	"time"

	"ccm_server/core/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	loaded, err := store.Load(ctx, "20250110")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil state before first save")
	}

	saved := &domain.SyncState{
		GenerationDate:      "20250110",
		FolderID:            "folder-1",
		LastProcessedFileID: "f1",
		Continuation:        domain.ContinuationToken{FileID: "f2"},
		UpdatedAt:           time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err = store.Load(ctx, "20250110")
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if loaded == nil {
		t.Fatal("state not found after save")
	}
	if loaded.FolderID != "folder-1" || loaded.LastProcessedFileID != "f1" || loaded.Continuation.FileID != "f2" {
		t.Fatalf("loaded state = %+v", loaded)
	}
	if !loaded.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Fatalf("updated_at = %v, want %v", loaded.UpdatedAt, saved.UpdatedAt)
	}
}

func TestFileStoreSaveReplaces(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	first := &domain.SyncState{GenerationDate: "20250110", FolderID: "a", LastProcessedFileID: "f1"}
	second := &domain.SyncState{GenerationDate: "20250110", FolderID: "a", LastProcessedFileID: "f5"}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save replace: %v", err)
	}

	loaded, err := store.Load(ctx, "20250110")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LastProcessedFileID != "f5" {
		t.Fatalf("last processed = %q, want f5", loaded.LastProcessedFileID)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Delete(ctx, "20250110"); err != nil {
		t.Fatalf("Delete of absent state: %v", err)
	}

	if err := store.Save(ctx, &domain.SyncState{GenerationDate: "20250110"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "20250110"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	loaded, err := store.Load(ctx, "20250110")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatal("state still present after delete")
	}
}
