package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"taskboard/domain"
)

func TestFileBackendLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "taskboard.json")
	exerciseBackend(t, NewFileBackend(path))
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.json")
	ctx := context.Background()

	state := workState(t)
	if !New(NewFileBackend(path), testLogger()).Save(ctx, state) {
		t.Fatal("save failed")
	}

	// A fresh store over the same path sees the document.
	loaded := New(NewFileBackend(path), testLogger()).Load(ctx, domain.EmptyState())
	if len(loaded.Boards) != 1 || loaded.Boards[0].Name != "Work" {
		t.Fatalf("unexpected reloaded state: %#v", loaded.Boards)
	}
	if loaded.Boards[0].Tasks[0].Text != "ship the release" {
		t.Fatalf("unexpected reloaded task: %#v", loaded.Boards[0].Tasks)
	}
}

func TestFileBackendWriteLeavesNoStrayFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskboard.json")
	backend := NewFileBackend(path)
	ctx := context.Background()

	if err := backend.Write(ctx, []byte(`{"version":"3.0"}`)); err != nil {
		t.Fatal(err)
	}
	if err := backend.Write(ctx, []byte(`{"version":"3.0","data":{}}`)); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "taskboard.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only the document file, got %v", names)
	}

	data, found, err := backend.Read(ctx)
	if err != nil || !found {
		t.Fatalf("read back: found=%v err=%v", found, err)
	}
	if string(data) != `{"version":"3.0","data":{}}`+"\n" {
		t.Fatalf("unexpected document: %q", data)
	}
}

func TestFileBackendInterruptedWriteKeepsPriorDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskboard.json")
	backend := NewFileBackend(path)
	ctx := context.Background()

	prior := `{"version":"3.0","data":{"boards":[]}}`
	if err := backend.Write(ctx, []byte(prior)); err != nil {
		t.Fatal(err)
	}

	// A write that died before the rename leaves only a truncated temp file.
	if err := os.WriteFile(path+".tmp", []byte(`{"version":"3.`), 0644); err != nil {
		t.Fatal(err)
	}

	data, found, err := backend.Read(ctx)
	if err != nil || !found {
		t.Fatalf("read after interruption: found=%v err=%v", found, err)
	}
	if string(data) != prior+"\n" {
		t.Fatalf("prior document damaged: %q", data)
	}

	// The next successful write supersedes the leftover temp file.
	next := `{"version":"3.0","data":{"filter":"all"}}`
	if err := backend.Write(ctx, []byte(next)); err != nil {
		t.Fatal(err)
	}
	data, _, _ = backend.Read(ctx)
	if string(data) != next+"\n" {
		t.Fatalf("unexpected document after recovery: %q", data)
	}
}
