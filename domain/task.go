// Package domain defines the task, board and application state value objects
// together with their validation and transition rules. All mutating methods
// use value semantics: they return a fresh copy and never touch the receiver.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status represents a task column.
type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// ValidStatus reports whether s is one of the known columns.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// MaxTaskTextLen bounds the task text in characters.
const MaxTaskTextLen = 200

// Task represents a single board item.
type Task struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Status        Status `json:"status"`
	CreatedDate   string `json:"createdDate"`
	LastModified  int64  `json:"lastModified"`
	CompletedDate string `json:"completedDate,omitempty"`
	Archived      bool   `json:"archived,omitempty"`
	ArchivedDate  string `json:"archivedDate,omitempty"`
}

// TaskOptions carries optional attributes for NewTask. Zero values fall back
// to status todo and today's date.
type TaskOptions struct {
	Status      Status
	CreatedDate string
}

// NewTask validates text and options and mints a new task. The completion
// invariant holds from construction: completedDate is set iff status is done.
func NewTask(text string, opts TaskOptions) (Task, error) {
	if strings.TrimSpace(text) == "" {
		return Task{}, errEmpty("text")
	}
	if utf8.RuneCountInString(text) > MaxTaskTextLen {
		return Task{}, errTooLong("text", MaxTaskTextLen)
	}
	status := opts.Status
	if status == "" {
		status = StatusTodo
	}
	if !ValidStatus(status) {
		return Task{}, errBadEnum("status", string(opts.Status))
	}
	created := opts.CreatedDate
	if created == "" {
		created = Today()
	} else if !ValidDate(created) {
		return Task{}, errBadType("createdDate", "date in "+DateLayout+" form")
	}
	t := Task{
		ID:           uuid.NewString(),
		Text:         text,
		Status:       status,
		CreatedDate:  created,
		LastModified: NowMillis(),
	}
	if status == StatusDone {
		t.CompletedDate = Today()
	}
	return t, nil
}

// MoveTo returns a copy of the task in the given column. Moving into done
// stamps completedDate, moving out of done clears it. The copy always carries
// a bumped lastModified, even when the column did not change.
func (t Task) MoveTo(status Status) (Task, error) {
	if !ValidStatus(status) {
		return Task{}, errBadEnum("status", string(status))
	}
	next := t
	next.Status = status
	next.LastModified = NowMillis()
	switch {
	case status == StatusDone && next.CompletedDate == "":
		next.CompletedDate = Today()
	case status != StatusDone:
		next.CompletedDate = ""
	}
	return next, nil
}

// Complete moves the task to done.
func (t Task) Complete() Task {
	next, _ := t.MoveTo(StatusDone)
	return next
}

// Start moves the task to doing.
func (t Task) Start() Task {
	next, _ := t.MoveTo(StatusDoing)
	return next
}

// Reset moves the task back to todo.
func (t Task) Reset() Task {
	next, _ := t.MoveTo(StatusTodo)
	return next
}

// TaskPatch carries a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Text   *string `json:"text,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Update applies the patch and returns the updated copy. Validation failures
// leave the original value untouched and report the offending field.
func (t Task) Update(patch TaskPatch) (Task, error) {
	next := t
	if patch.Text != nil {
		text := *patch.Text
		if strings.TrimSpace(text) == "" {
			return Task{}, errEmpty("text")
		}
		if utf8.RuneCountInString(text) > MaxTaskTextLen {
			return Task{}, errTooLong("text", MaxTaskTextLen)
		}
		next.Text = text
	}
	if patch.Status != nil {
		moved, err := next.MoveTo(*patch.Status)
		if err != nil {
			return Task{}, err
		}
		next = moved
	}
	next.LastModified = NowMillis()
	return next, nil
}

// Archive marks the task archived and stamps archivedDate.
func (t Task) Archive() Task {
	next := t
	next.Archived = true
	next.ArchivedDate = Today()
	next.LastModified = NowMillis()
	return next
}

// Unarchive clears the archived flag and date.
func (t Task) Unarchive() Task {
	next := t
	next.Archived = false
	next.ArchivedDate = ""
	next.LastModified = NowMillis()
	return next
}

// CopyWithNewID clones the task under a freshly minted id.
func (t Task) CopyWithNewID() Task {
	next := t
	next.ID = uuid.NewString()
	next.LastModified = NowMillis()
	return next
}
