package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

const (
	MaxBoardNameLen = 50
	MaxBoardDescLen = 200

	// DefaultBoardName is used when a board has to be synthesized, e.g. when
	// folding legacy flat task lists into the board shape.
	DefaultBoardName = "Main Board"
	// DefaultBoardColor is applied when no color is given.
	DefaultBoardColor = "#6366f1"
)

// Board is a named, ordered collection of tasks with its own archive.
// Task order within Tasks is the column display order.
type Board struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Color         string `json:"color"`
	Tasks         []Task `json:"tasks"`
	ArchivedTasks []Task `json:"archivedTasks,omitempty"`
	IsDefault     bool   `json:"isDefault"`
	IsArchived    bool   `json:"isArchived,omitempty"`
	CreatedDate   string `json:"createdDate"`
	LastModified  int64  `json:"lastModified"`
}

// BoardOptions carries optional attributes for NewBoard.
type BoardOptions struct {
	Description string
	Color       string
	IsDefault   bool
}

// NewBoard validates the inputs and mints a new empty board.
func NewBoard(name string, opts BoardOptions) (Board, error) {
	if err := validateBoardName(name); err != nil {
		return Board{}, err
	}
	if utf8.RuneCountInString(opts.Description) > MaxBoardDescLen {
		return Board{}, errTooLong("description", MaxBoardDescLen)
	}
	color := opts.Color
	if color == "" {
		color = DefaultBoardColor
	} else if err := validateBoardColor(color); err != nil {
		return Board{}, err
	}
	return Board{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  opts.Description,
		Color:        color,
		Tasks:        []Task{},
		IsDefault:    opts.IsDefault,
		CreatedDate:  Today(),
		LastModified: NowMillis(),
	}, nil
}

func validateBoardName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errEmpty("name")
	}
	if utf8.RuneCountInString(name) > MaxBoardNameLen {
		return errTooLong("name", MaxBoardNameLen)
	}
	return nil
}

// Hex colors must carry a leading '#' and 3 or 6 digits.
func validateBoardColor(color string) error {
	if !strings.HasPrefix(color, "#") || !govalidator.IsHexcolor(color) {
		return errBadColor("color", color)
	}
	return nil
}

// Clone returns a deep copy; the task slices are copied so the clone shares
// nothing with the receiver.
func (b Board) Clone() Board {
	next := b
	next.Tasks = append([]Task{}, b.Tasks...)
	if b.ArchivedTasks != nil {
		next.ArchivedTasks = append([]Task{}, b.ArchivedTasks...)
	}
	return next
}

// AddTask returns a copy of the board with the task appended to the column
// order.
func (b Board) AddTask(task Task) Board {
	next := b.Clone()
	next.Tasks = append(next.Tasks, task)
	next.LastModified = NowMillis()
	return next
}

// RemoveTask returns a copy without the named task. A missing id is a no-op:
// the board comes back unchanged, lastModified included.
func (b Board) RemoveTask(id string) Board {
	idx := b.taskIndex(id)
	if idx < 0 {
		return b.Clone()
	}
	next := b.Clone()
	next.Tasks = append(next.Tasks[:idx], next.Tasks[idx+1:]...)
	next.LastModified = NowMillis()
	return next
}

// GetTask returns a snapshot of the named active task.
func (b Board) GetTask(id string) (Task, bool) {
	if idx := b.taskIndex(id); idx >= 0 {
		return b.Tasks[idx], true
	}
	return Task{}, false
}

// ReplaceTask swaps the named active task for the given value.
func (b Board) ReplaceTask(id string, task Task) (Board, bool) {
	idx := b.taskIndex(id)
	if idx < 0 {
		return b.Clone(), false
	}
	next := b.Clone()
	next.Tasks[idx] = task
	next.LastModified = NowMillis()
	return next, true
}

// TasksByStatus returns the tasks of one column, preserving board order.
func (b Board) TasksByStatus(status Status) []Task {
	out := []Task{}
	for _, t := range b.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// ArchiveTask moves an active task into the archive list.
func (b Board) ArchiveTask(id string) (Board, bool) {
	idx := b.taskIndex(id)
	if idx < 0 {
		return b.Clone(), false
	}
	next := b.Clone()
	task := next.Tasks[idx].Archive()
	next.Tasks = append(next.Tasks[:idx], next.Tasks[idx+1:]...)
	next.ArchivedTasks = append(next.ArchivedTasks, task)
	next.LastModified = NowMillis()
	return next, true
}

// RestoreTask moves an archived task back onto the board.
func (b Board) RestoreTask(id string) (Board, bool) {
	idx := -1
	for i := range b.ArchivedTasks {
		if b.ArchivedTasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return b.Clone(), false
	}
	next := b.Clone()
	task := next.ArchivedTasks[idx].Unarchive()
	next.ArchivedTasks = append(next.ArchivedTasks[:idx], next.ArchivedTasks[idx+1:]...)
	next.Tasks = append(next.Tasks, task)
	next.LastModified = NowMillis()
	return next, true
}

// Duplicate deep-clones the board under a new name. Active tasks are copied
// with freshly minted ids; the archive is not carried over and the copy is
// never the default board.
func (b Board) Duplicate(newName string) (Board, error) {
	next, err := NewBoard(newName, BoardOptions{Description: b.Description, Color: b.Color})
	if err != nil {
		return Board{}, err
	}
	for _, t := range b.Tasks {
		next.Tasks = append(next.Tasks, t.CopyWithNewID())
	}
	return next, nil
}

// BoardPatch carries a partial board update. Nil fields are left unchanged.
type BoardPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Update applies the patch and returns the updated copy.
func (b Board) Update(patch BoardPatch) (Board, error) {
	next := b.Clone()
	if patch.Name != nil {
		if err := validateBoardName(*patch.Name); err != nil {
			return Board{}, err
		}
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		if utf8.RuneCountInString(*patch.Description) > MaxBoardDescLen {
			return Board{}, errTooLong("description", MaxBoardDescLen)
		}
		next.Description = *patch.Description
	}
	if patch.Color != nil {
		if err := validateBoardColor(*patch.Color); err != nil {
			return Board{}, err
		}
		next.Color = *patch.Color
	}
	next.LastModified = NowMillis()
	return next, nil
}

func (b Board) taskIndex(id string) int {
	for i := range b.Tasks {
		if b.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
