package storage

import (
	"context"
	"errors"
	"time"

	"taskboard/domain"
)

// ExportOptions narrow what ExportData emits. The options travel with the
// document so the receiving side can see how it was produced.
type ExportOptions struct {
	BoardID         string `json:"boardId,omitempty"`
	IncludeArchived bool   `json:"includeArchived"`
	Pretty          bool   `json:"pretty,omitempty"`
}

// ExportMetadata summarizes the exported payload.
type ExportMetadata struct {
	TotalBoards int `json:"totalBoards"`
	TotalTasks  int `json:"totalTasks"`
}

// ExportDocument is the bulk-transfer wrapper. Version and data mirror the
// stored envelope, so an export feeds straight back into ImportData.
type ExportDocument struct {
	Version    string          `json:"version"`
	ExportDate string          `json:"exportDate"`
	Data       domain.AppState `json:"data"`
	Metadata   ExportMetadata  `json:"metadata"`
	Options    ExportOptions   `json:"options"`
}

// ExportData snapshots the given state into a transfer document.
func (s *Store) ExportData(state domain.AppState, opts ExportOptions) ExportDocument {
	data := state.Clone()
	if opts.BoardID != "" {
		if board, ok := data.FindBoard(opts.BoardID); ok {
			data.Boards = []domain.Board{board}
		} else {
			data.Boards = []domain.Board{}
		}
		data.CurrentBoardID = ""
	}
	if !opts.IncludeArchived {
		for i := range data.Boards {
			data.Boards[i].ArchivedTasks = nil
		}
	}
	data = data.Normalize()
	return ExportDocument{
		Version:    CurrentVersion,
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Data:       data,
		Metadata:   ExportMetadata{TotalBoards: data.BoardCount(), TotalTasks: data.TaskCount()},
		Options:    opts,
	}
}

// ValidateImport checks an import payload without touching the store. It
// accepts the current envelope shape (exports included), the bare current
// data shape and the recognized legacy shapes, migrating the latter forward
// before schema validation. On success the state the import would install is
// returned.
func ValidateImport(payload []byte) (domain.AppState, error) {
	version, data, _, ok := decodeEnvelope(payload)
	if !ok {
		return domain.AppState{}, errors.New("unrecognized payload shape")
	}
	if version != CurrentVersion {
		migrated, err := runMigrations(version, data)
		if err != nil {
			return domain.AppState{}, err
		}
		data = migrated
	}
	if err := validateStateShape(data); err != nil {
		return domain.AppState{}, err
	}
	return decodeState(data, domain.EmptyState()), nil
}

// ImportData replaces the stored document with the given payload. Accepted
// shapes match ValidateImport. On success the imported state is persisted and
// returned; every failure path reports through the error callback and leaves
// the stored document untouched.
func (s *Store) ImportData(ctx context.Context, payload []byte) (domain.AppState, bool) {
	state, err := ValidateImport(payload)
	if err != nil {
		s.report("import", err)
		return domain.AppState{}, false
	}
	if !s.Save(ctx, state) {
		return domain.AppState{}, false
	}
	return state, true
}
