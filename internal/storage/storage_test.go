package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutOpenDelete(t *testing.T) {
	s, err := NewFS(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	ctx := context.Background()
	key := NewKey("p1", "Answer.M4A")
	if !strings.HasPrefix(key, "projects/p1/audio/") || !strings.HasSuffix(key, ".m4a") {
		t.Errorf("key: got %q", key)
	}

	n, err := s.Put(ctx, key, strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n != int64(len("audio bytes")) {
		t.Errorf("size: got %d", n)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("content: got %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("second delete: got %v, want nil", err)
	}
}

func TestPutRejectsOversizeObject(t *testing.T) {
	root := t.TempDir()
	s, err := NewFS(root, 4)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	key := "projects/p1/audio/big.wav"
	if _, err := s.Put(context.Background(), key, strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
	if _, err := os.Stat(filepath.Join(root, "projects", "p1", "audio", "big.wav")); !os.IsNotExist(err) {
		t.Error("oversize object should not be persisted")
	}
	entries, err := os.ReadDir(filepath.Join(root, "projects", "p1", "audio"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d", len(entries))
	}
}

func TestKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewFS(root, 0)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	if _, err := s.Put(context.Background(), "../../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Errorf("object should be stored under root: %v", err)
	}
	if _, err := s.Put(context.Background(), "", strings.NewReader("x")); err == nil {
		t.Error("empty key should be rejected")
	}
}

func TestPutHonoursCancelledContext(t *testing.T) {
	s, err := NewFS(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "a/b.wav", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFS(root, 0)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	ctx := context.Background()
	key := NewKey("p1", "a.webm")
	if _, err := s.Put(ctx, key, strings.NewReader("abc")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	stray := filepath.Join(root, "projects", "p1", "audio", ".upload-123")
	if err := os.WriteFile(stray, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	objects, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != key || objects[0].Size != 3 {
		t.Errorf("got %+v, want only %s", objects, key)
	}
}
