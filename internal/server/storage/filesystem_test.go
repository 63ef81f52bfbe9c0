package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("saves object to disk", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSystemStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data := bytes.NewReader([]byte("test content"))
		if err := store.Save(ctx, "abc123.pdf", data, 12, "application/pdf"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(filepath.Join(dir, "abc123.pdf"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test content" {
			t.Errorf("expected 'test content', got %q", content)
		}
	})

	t.Run("saves large content", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSystemStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		largeContent := strings.Repeat("x", 1024*1024) // 1MB
		if err := store.Save(ctx, "large.bin", bytes.NewReader([]byte(largeContent)), int64(len(largeContent)), "application/octet-stream"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(filepath.Join(dir, "large.bin"))
		if err != nil {
			t.Fatalf("failed to stat saved file: %v", err)
		}
		if info.Size() != int64(len(largeContent)) {
			t.Errorf("expected %d bytes, got %d", len(largeContent), info.Size())
		}
	})

	t.Run("strips path components from object names", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSystemStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := store.Save(ctx, "../escape.txt", bytes.NewReader([]byte("x")), 1, "text/plain"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "escape.txt")); err != nil {
			t.Errorf("expected object inside the storage root: %v", err)
		}
		if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt")); err == nil {
			t.Error("object escaped the storage root")
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes an existing object", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileSystemStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		path := filepath.Join(dir, "gone.txt")
		if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		if err := store.Delete(ctx, "gone.txt"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected file to be removed")
		}
	})

	t.Run("deleting a missing object is not an error", func(t *testing.T) {
		store, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Delete(ctx, "never-existed.txt"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileSystemStore_Ping(t *testing.T) {
	ctx := context.Background()

	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
