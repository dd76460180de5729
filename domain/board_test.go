package domain

import (
	"errors"
	"strings"
	"testing"
)

func mustTask(t *testing.T, text string) Task {
	t.Helper()
	task, err := NewTask(text, TaskOptions{})
	if err != nil {
		t.Fatalf("new task %q: %v", text, err)
	}
	return task
}

func mustBoard(t *testing.T, name string) Board {
	t.Helper()
	board, err := NewBoard(name, BoardOptions{})
	if err != nil {
		t.Fatalf("new board %q: %v", name, err)
	}
	return board
}

func TestNewBoardValidation(t *testing.T) {
	testCases := map[string]struct {
		name      string
		opts      BoardOptions
		wantField string
		wantKind  string
	}{
		"empty_name":    {name: " ", wantField: "name", wantKind: ValidationEmpty},
		"long_name":     {name: strings.Repeat("n", 51), wantField: "name", wantKind: ValidationTooLong},
		"long_desc":     {name: "ok", opts: BoardOptions{Description: strings.Repeat("d", 201)}, wantField: "description", wantKind: ValidationTooLong},
		"bare_color":    {name: "ok", opts: BoardOptions{Color: "ff0000"}, wantField: "color", wantKind: ValidationBadColor},
		"short_color":   {name: "ok", opts: BoardOptions{Color: "#ff"}, wantField: "color", wantKind: ValidationBadColor},
		"word_color":    {name: "ok", opts: BoardOptions{Color: "red"}, wantField: "color", wantKind: ValidationBadColor},
		"garbage_color": {name: "ok", opts: BoardOptions{Color: "#ggg"}, wantField: "color", wantKind: ValidationBadColor},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBoard(tc.name, tc.opts)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.wantField || ve.Kind != tc.wantKind {
				t.Fatalf("expected %s/%s, got %s/%s", tc.wantField, tc.wantKind, ve.Field, ve.Kind)
			}
		})
	}
}

func TestNewBoardAcceptsShortAndLongHex(t *testing.T) {
	for _, color := range []string{"#fff", "#FF8800", "#0a0"} {
		if _, err := NewBoard("colors", BoardOptions{Color: color}); err != nil {
			t.Fatalf("expected %q to validate, got %v", color, err)
		}
	}
	board := mustBoard(t, "plain")
	if board.Color != DefaultBoardColor {
		t.Fatalf("expected default color, got %q", board.Color)
	}
	if board.Tasks == nil || len(board.Tasks) != 0 {
		t.Fatalf("expected empty task list, got %#v", board.Tasks)
	}
}

func TestBoardAddRemoveTask(t *testing.T) {
	board := mustBoard(t, "work")
	first := mustTask(t, "first")
	second := mustTask(t, "second")

	board = board.AddTask(first).AddTask(second)
	if len(board.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(board.Tasks))
	}
	if board.Tasks[0].ID != first.ID || board.Tasks[1].ID != second.ID {
		t.Fatal("expected insertion order preserved")
	}

	removed := board.RemoveTask(first.ID)
	if len(removed.Tasks) != 1 || removed.Tasks[0].ID != second.ID {
		t.Fatalf("expected only second task left, got %#v", removed.Tasks)
	}

	noop := removed.RemoveTask("missing-id")
	if len(noop.Tasks) != 1 {
		t.Fatalf("expected missing id removal to be a no-op, got %d tasks", len(noop.Tasks))
	}
	if noop.LastModified != removed.LastModified {
		t.Fatal("expected no lastModified bump on no-op removal")
	}
}

func TestBoardAddTaskDoesNotAliasReceiver(t *testing.T) {
	board := mustBoard(t, "isolated")
	task := mustTask(t, "only")
	grown := board.AddTask(task)
	if len(board.Tasks) != 0 {
		t.Fatalf("receiver grew: %d tasks", len(board.Tasks))
	}
	grown.Tasks[0].Text = "scribbled"
	if fetched, ok := grown.GetTask(task.ID); !ok || fetched.Text != "scribbled" {
		t.Fatalf("expected copy semantics on grown board, got %#v", fetched)
	}
}

func TestBoardTasksByStatus(t *testing.T) {
	board := mustBoard(t, "statuses")
	todo := mustTask(t, "open item")
	doing := mustTask(t, "busy item").Start()
	done := mustTask(t, "finished item").Complete()
	board = board.AddTask(todo).AddTask(doing).AddTask(done)

	got := board.TasksByStatus(StatusDoing)
	if len(got) != 1 || got[0].ID != doing.ID {
		t.Fatalf("expected only the doing task, got %#v", got)
	}
	if empty := mustBoard(t, "none").TasksByStatus(StatusDone); len(empty) != 0 {
		t.Fatalf("expected empty slice, got %#v", empty)
	}
}

func TestBoardArchiveAndRestore(t *testing.T) {
	board := mustBoard(t, "archive")
	task := mustTask(t, "old work")
	board = board.AddTask(task)

	archived, ok := board.ArchiveTask(task.ID)
	if !ok {
		t.Fatal("expected archive to find the task")
	}
	if len(archived.Tasks) != 0 || len(archived.ArchivedTasks) != 1 {
		t.Fatalf("expected task moved to archive, got %d/%d", len(archived.Tasks), len(archived.ArchivedTasks))
	}
	if !archived.ArchivedTasks[0].Archived {
		t.Fatal("expected archived flag set")
	}

	if _, ok := archived.ArchiveTask("missing"); ok {
		t.Fatal("expected archive of missing id to report not found")
	}

	restored, ok := archived.RestoreTask(task.ID)
	if !ok {
		t.Fatal("expected restore to find the task")
	}
	if len(restored.Tasks) != 1 || len(restored.ArchivedTasks) != 0 {
		t.Fatalf("expected task back on board, got %d/%d", len(restored.Tasks), len(restored.ArchivedTasks))
	}
	if restored.Tasks[0].Archived || restored.Tasks[0].ArchivedDate != "" {
		t.Fatalf("expected archive flags cleared, got %#v", restored.Tasks[0])
	}
}

func TestBoardDuplicate(t *testing.T) {
	board, err := NewBoard("source", BoardOptions{Description: "desc", Color: "#abc", IsDefault: true})
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	keep := mustTask(t, "keep me")
	board = board.AddTask(keep)
	board, _ = board.ArchiveTask(board.Tasks[0].ID)
	board = board.AddTask(mustTask(t, "active one")).AddTask(mustTask(t, "active two"))

	copied, err := board.Duplicate("copy")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.Name != "copy" || copied.Description != "desc" || copied.Color != "#abc" {
		t.Fatalf("expected attributes carried over, got %#v", copied)
	}
	if copied.IsDefault {
		t.Fatal("expected duplicate to never be the default board")
	}
	if len(copied.ArchivedTasks) != 0 {
		t.Fatalf("expected archive excluded, got %d archived", len(copied.ArchivedTasks))
	}
	if len(copied.Tasks) != len(board.Tasks) {
		t.Fatalf("expected %d tasks, got %d", len(board.Tasks), len(copied.Tasks))
	}
	for i, task := range copied.Tasks {
		if task.ID == board.Tasks[i].ID {
			t.Fatalf("expected fresh id for task %d", i)
		}
		if task.Text != board.Tasks[i].Text {
			t.Fatalf("expected text carried over, got %q", task.Text)
		}
	}
}

func TestBoardUpdate(t *testing.T) {
	board := mustBoard(t, "before")
	name := "after"
	color := "#00ff00"
	updated, err := board.Update(BoardPatch{Name: &name, Color: &color})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "after" || updated.Color != "#00ff00" {
		t.Fatalf("expected patch applied, got %#v", updated)
	}
	if board.Name != "before" {
		t.Fatal("receiver mutated by update")
	}

	bad := "not-a-color"
	if _, err := board.Update(BoardPatch{Color: &bad}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
