// Package api exposes the state container, task index and versioned store
// over HTTP: JSON routes for reads and mutations, an SSE stream for change
// notifications, optional bearer auth and an optional queue sink. The package
// adds transport only; every invariant lives below it.
package api

import (
	"context"

	"taskboard/domain"
	"taskboard/index"
	"taskboard/state"
	"taskboard/storage"
)

// StateStore is the slice of the state container the handlers need.
type StateStore interface {
	GetState() domain.AppState
	CurrentBoard() (domain.Board, bool)
	SetState(p state.Patch) domain.AppState

	AddBoard(board domain.Board) (domain.Board, error)
	RemoveBoard(id string) bool
	SetCurrentBoard(id string) bool
	UpdateBoard(id string, patch domain.BoardPatch) (domain.Board, error)

	AddTask(boardID string, task domain.Task) error
	UpdateTask(boardID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	MoveTask(taskID string, status domain.Status) (domain.Task, error)
	RemoveTask(boardID, taskID string) bool
	ArchiveTask(boardID, taskID string) error
	MoveTaskToBoard(taskID, fromID, toID string) error

	Import(ctx context.Context, payload []byte) bool
	Export(opts storage.ExportOptions) storage.ExportDocument
}

// Searcher is the slice of the task index the handlers need.
type Searcher interface {
	Search(c index.Criteria) index.Set
	Stats() index.Stats
	Ready() bool
}

// Notifier hands out notification subscriptions for the SSE stream and the
// queue sink.
type Notifier interface {
	SubscribeAll(fn state.Subscriber) func()
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

type createBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

type createTaskRequest struct {
	Text   string        `json:"text"`
	Status domain.Status `json:"status,omitempty"`
}

type moveTaskRequest struct {
	Status  domain.Status `json:"status,omitempty"`
	BoardID string        `json:"boardId,omitempty"`
	FromID  string        `json:"fromBoardId,omitempty"`
}

type setFilterRequest struct {
	Filter domain.Filter `json:"filter"`
}

type searchResponse struct {
	IDs      []string      `json:"ids"`
	Tasks    []domain.Task `json:"tasks"`
	Total    int           `json:"total"`
	Degraded bool          `json:"degraded,omitempty"`
}

type importResponse struct {
	Imported bool `json:"imported"`
}
