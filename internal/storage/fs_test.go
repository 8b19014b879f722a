package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFSStorePutWritesNestedKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	if err := store.Put(context.Background(), "processed/report.csv", bytes.NewBufferString("a,b\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "processed", "report.csv"))
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Fatalf("unexpected object contents: %q", got)
	}
}

func TestFSStorePutOverwrites(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "k", bytes.NewBufferString("one")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.Put(ctx, "k", bytes.NewBufferString("two")); err != nil {
		t.Fatalf("second put: %v", err)
	}
}
