package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewLocalStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	t.Run("SaveFile keeps extension", func(t *testing.T) {
		content := []byte("fake mp4 bytes")
		name, err := storage.SaveFile(bytes.NewReader(content), FileInfo{Filename: "Inspection.MP4", Size: int64(len(content))})
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if filepath.Ext(name) != ".mp4" {
			t.Errorf("Expected .mp4 extension, got %s", filepath.Ext(name))
		}

		f, err := storage.OpenFile(name)
		if err != nil {
			t.Fatalf("Failed to open file: %v", err)
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		if !bytes.Equal(got, content) {
			t.Errorf("File content mismatch")
		}
	})

	t.Run("SaveFile without extension", func(t *testing.T) {
		name, err := storage.SaveFile(bytes.NewReader([]byte("x")), FileInfo{Filename: "blob"})
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if filepath.Ext(name) != ".bin" {
			t.Errorf("Expected .bin extension, got %s", name)
		}
	})

	t.Run("Path", func(t *testing.T) {
		p, err := storage.Path("clip.mp4")
		if err != nil {
			t.Fatalf("Path failed: %v", err)
		}
		if p != filepath.Join(tmpDir, "clip.mp4") {
			t.Errorf("Path = %s", p)
		}
	})

	t.Run("DeleteFile", func(t *testing.T) {
		fullPath := filepath.Join(tmpDir, "delete-test.mp4")
		if err := os.WriteFile(fullPath, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		if err := storage.DeleteFile("delete-test.mp4"); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}
		if _, err := os.Stat(fullPath); !os.IsNotExist(err) {
			t.Errorf("File was not deleted")
		}
	})

	t.Run("PathTraversalPrevention", func(t *testing.T) {
		if _, err := storage.OpenFile("../../../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Path traversal was not prevented: %v", err)
		}
		if err := storage.DeleteFile("../../../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Path traversal was not prevented in delete: %v", err)
		}
		if _, err := storage.Path("/etc/passwd"); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Absolute path was accepted: %v", err)
		}
	})
}
