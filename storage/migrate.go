package storage

import (
	"fmt"

	"github.com/google/uuid"

	"taskboard/domain"
)

// A migration lifts the generic payload from one schema version to the next.
// Transforms are total: any input shape produces a usable output shape, and
// re-applying a transform to already-migrated data changes nothing.
type migration struct {
	from  string
	to    string
	apply func(any) any
}

// chain is ordered oldest to newest; Load walks it in ascending order.
var chain = []migration{
	{from: "1.0", to: "2.0", apply: migrateTodosToTasks},
	{from: "2.0", to: "3.0", apply: migrateTasksToBoards},
}

func knownVersion(v string) bool {
	if v == CurrentVersion {
		return true
	}
	for _, m := range chain {
		if m.from == v {
			return true
		}
	}
	return false
}

// runMigrations applies every step from the given version up to
// CurrentVersion. A panicking transform is caught and surfaced as an error so
// the caller can fall back to defaults instead of crashing the boot.
func runMigrations(from string, data any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("migration from %s panicked: %v", from, r)
		}
	}()

	start := -1
	for i, m := range chain {
		if m.from == from {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no migration path from version %s", from)
	}
	for _, m := range chain[start:] {
		data = m.apply(data)
	}
	return data, nil
}

// detectLegacyVersion maps a version-less payload onto the schema version its
// shape belongs to. Empty means unrecognizable.
func detectLegacyVersion(data any) string {
	switch v := data.(type) {
	case []any:
		// The very first format: a bare array of todo records.
		return "1.0"
	case map[string]any:
		if _, ok := v["boards"]; ok {
			return CurrentVersion
		}
		if _, ok := v["tasks"]; ok {
			return "2.0"
		}
		if _, ok := v["todos"]; ok {
			return "1.0"
		}
	}
	return ""
}

// migrateTodosToTasks lifts 1.0 (todo records with a completed flag) to 2.0
// (a flat task list with status strings).
func migrateTodosToTasks(data any) any {
	var todos []any
	switch v := data.(type) {
	case []any:
		todos = v
	case map[string]any:
		if _, ok := v["tasks"]; ok {
			return v
		}
		if _, ok := v["boards"]; ok {
			return v
		}
		todos, _ = v["todos"].([]any)
	default:
		return map[string]any{"tasks": []any{}}
	}

	tasks := make([]any, 0, len(todos))
	for _, item := range todos {
		todo, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, _ := todo["text"].(string)
		if text == "" {
			continue
		}
		status := "todo"
		if completed, _ := todo["completed"].(bool); completed {
			status = "done"
		}
		if s, ok := todo["status"].(string); ok && s != "" {
			status = s
		}
		task := map[string]any{
			"id":     stringOr(todo["id"], uuid.NewString()),
			"text":   text,
			"status": status,
		}
		if created, ok := todo["createdDate"].(string); ok {
			task["createdDate"] = created
		}
		if status == "done" {
			task["completedDate"] = stringOr(todo["completedDate"], domain.Today())
		}
		tasks = append(tasks, task)
	}
	return map[string]any{"tasks": tasks}
}

// migrateTasksToBoards lifts 2.0 (flat task list) to 3.0 by folding every
// task into one synthesized default board.
func migrateTasksToBoards(data any) any {
	obj, ok := data.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	if _, ok := obj["boards"]; ok {
		return obj
	}
	tasks, _ := obj["tasks"].([]any)
	if tasks == nil {
		tasks = []any{}
	}
	boardID := uuid.NewString()
	board := map[string]any{
		"id":           boardID,
		"name":         domain.DefaultBoardName,
		"color":        domain.DefaultBoardColor,
		"tasks":        tasks,
		"isDefault":    true,
		"createdDate":  domain.Today(),
		"lastModified": domain.NowMillis(),
	}
	return map[string]any{
		"boards":         []any{board},
		"currentBoardId": boardID,
		"filter":         string(domain.FilterAll),
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
