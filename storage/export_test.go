package storage

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

func TestExportDataShape(t *testing.T) {
	state := workState(t)
	store := New(NewMemoryBackend(), testLogger())

	doc := store.ExportData(state, ExportOptions{IncludeArchived: true})
	if doc.Version != CurrentVersion {
		t.Fatalf("expected version %s, got %s", CurrentVersion, doc.Version)
	}
	if doc.ExportDate == "" {
		t.Fatal("expected exportDate to be stamped")
	}
	if doc.Metadata.TotalBoards != 1 || doc.Metadata.TotalTasks != 1 {
		t.Fatalf("unexpected metadata: %#v", doc.Metadata)
	}
	if !doc.Options.IncludeArchived {
		t.Fatal("expected options echoed back")
	}
}

func TestExportDataBoardScoped(t *testing.T) {
	state := workState(t)
	second, err := domain.NewBoard("Home", domain.BoardOptions{})
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	state.Boards = append(state.Boards, second)

	store := New(NewMemoryBackend(), testLogger())
	doc := store.ExportData(state, ExportOptions{BoardID: second.ID})
	if doc.Metadata.TotalBoards != 1 {
		t.Fatalf("expected single board export, got %d", doc.Metadata.TotalBoards)
	}
	if doc.Data.Boards[0].ID != second.ID {
		t.Fatalf("expected board %q, got %q", second.ID, doc.Data.Boards[0].ID)
	}

	missing := store.ExportData(state, ExportOptions{BoardID: "ghost"})
	if missing.Metadata.TotalBoards != 0 {
		t.Fatalf("expected empty export for unknown board, got %d", missing.Metadata.TotalBoards)
	}
}

func TestExportDataStripsArchiveByDefault(t *testing.T) {
	state := workState(t)
	board := state.Boards[0]
	board, _ = board.ArchiveTask(board.Tasks[0].ID)
	state.Boards[0] = board

	store := New(NewMemoryBackend(), testLogger())
	doc := store.ExportData(state, ExportOptions{})
	if len(doc.Data.Boards[0].ArchivedTasks) != 0 {
		t.Fatalf("expected archive stripped, got %d", len(doc.Data.Boards[0].ArchivedTasks))
	}

	kept := store.ExportData(state, ExportOptions{IncludeArchived: true})
	if len(kept.Data.Boards[0].ArchivedTasks) != 1 {
		t.Fatalf("expected archive kept, got %d", len(kept.Data.Boards[0].ArchivedTasks))
	}
}

func TestImportDataRoundTripsExport(t *testing.T) {
	state := workState(t)
	store := New(NewMemoryBackend(), testLogger())

	doc := store.ExportData(state, ExportOptions{IncludeArchived: true})
	payload, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal export: %v", err)
	}

	imported, ok := store.ImportData(context.Background(), payload)
	if !ok {
		t.Fatal("expected import of own export to succeed")
	}
	if imported.Boards[0].Name != "Work" || len(imported.Boards[0].Tasks) != 1 {
		t.Fatalf("unexpected imported state: %#v", imported.Boards)
	}

	// The import must be durable, not just returned.
	loaded := store.Load(context.Background(), domain.EmptyState())
	if loaded.Boards[0].Name != "Work" {
		t.Fatalf("expected imported state persisted, got %#v", loaded.Boards)
	}
}

func TestImportDataAcceptsLegacyShapes(t *testing.T) {
	testCases := map[string]string{
		"v1_envelope":  `{"version":"1.0","data":{"todos":[{"text":"X","completed":false}]},"timestamp":1}`,
		"bare_array":   `[{"text":"X","completed":true}]`,
		"bare_current": `{"boards":[{"id":"b1","name":"Work","tasks":[]}],"currentBoardId":"b1","filter":"all"}`,
	}
	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			store := New(NewMemoryBackend(), testLogger())
			state, ok := store.ImportData(context.Background(), []byte(payload))
			if !ok {
				t.Fatal("expected import to succeed")
			}
			if len(state.Boards) != 1 {
				t.Fatalf("expected one board, got %d", len(state.Boards))
			}
			if err := state.Validate(); err != nil {
				t.Fatalf("imported state invalid: %v", err)
			}
		})
	}
}

func TestImportDataRejectsInvalidPayload(t *testing.T) {
	testCases := map[string]string{
		"wrong_shape":   `{"invalid":"shape"}`,
		"not_json":      `{{{`,
		"bad_board":     `{"boards":[{"name":"missing id","tasks":[]}]}`,
		"bad_task_text": `{"boards":[{"id":"b1","name":"W","tasks":[{"id":"t1","text":"","status":"todo"}]}]}`,
	}
	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			backend := NewMemoryBackend()
			store := New(backend, testLogger())
			seeded := workState(t)
			if !store.Save(context.Background(), seeded) {
				t.Fatal("seed save failed")
			}

			var gotOp string
			store.SetErrorFunc(func(op string, err error) { gotOp = op })

			if _, ok := store.ImportData(context.Background(), []byte(payload)); ok {
				t.Fatal("expected import to fail")
			}
			if gotOp != "import" {
				t.Fatalf("expected import error report, got %q", gotOp)
			}

			// Stored document must be untouched by the failed import.
			loaded := store.Load(context.Background(), domain.EmptyState())
			if loaded.Boards[0].ID != seeded.Boards[0].ID {
				t.Fatalf("stored state changed by failed import: %#v", loaded.Boards)
			}
		})
	}
}
