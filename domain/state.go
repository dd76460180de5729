package domain

import "github.com/google/uuid"

// Filter is the display-only task filter.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterTodo  Filter = "todo"
	FilterDoing Filter = "doing"
	FilterDone  Filter = "done"
)

// ValidFilter reports whether f is one of the known filters.
func ValidFilter(f Filter) bool {
	switch f {
	case FilterAll, FilterTodo, FilterDoing, FilterDone:
		return true
	}
	return false
}

// AppState is the whole application state: every board, the selected board
// and the display filter. CurrentBoardID is empty only while Boards is empty.
type AppState struct {
	Boards         []Board `json:"boards"`
	CurrentBoardID string  `json:"currentBoardId,omitempty"`
	Filter         Filter  `json:"filter"`
}

// DefaultState returns the state a fresh install boots into: a single default
// board, selected, with the filter wide open.
func DefaultState() AppState {
	board, err := NewBoard(DefaultBoardName, BoardOptions{IsDefault: true})
	if err != nil {
		// The default inputs are constants and always validate.
		panic(err)
	}
	return AppState{
		Boards:         []Board{board},
		CurrentBoardID: board.ID,
		Filter:         FilterAll,
	}
}

// EmptyState returns a state with no boards at all.
func EmptyState() AppState {
	return AppState{Boards: []Board{}, Filter: FilterAll}
}

// Clone returns a deep copy sharing nothing with the receiver.
func (s AppState) Clone() AppState {
	next := s
	next.Boards = make([]Board, 0, len(s.Boards))
	for _, b := range s.Boards {
		next.Boards = append(next.Boards, b.Clone())
	}
	return next
}

// FindBoard returns a snapshot of the named board.
func (s AppState) FindBoard(id string) (Board, bool) {
	for i := range s.Boards {
		if s.Boards[i].ID == id {
			return s.Boards[i].Clone(), true
		}
	}
	return Board{}, false
}

// BoardCount returns the number of boards.
func (s AppState) BoardCount() int { return len(s.Boards) }

// TaskCount returns the number of active tasks across all boards.
func (s AppState) TaskCount() int {
	n := 0
	for i := range s.Boards {
		n += len(s.Boards[i].Tasks)
	}
	return n
}

// ActiveTasks returns every non-archived task paired with its board id.
func (s AppState) ActiveTasks() []BoardTask {
	out := make([]BoardTask, 0, s.TaskCount())
	for i := range s.Boards {
		for _, t := range s.Boards[i].Tasks {
			out = append(out, BoardTask{BoardID: s.Boards[i].ID, Task: t})
		}
	}
	return out
}

// BoardTask pairs a task with the board owning it.
type BoardTask struct {
	BoardID string
	Task    Task
}

// Normalize repairs a loaded or imported state so the structural invariants
// hold: unique board ids, a valid filter, a resolvable current board whenever
// boards exist, exactly one default board, non-nil task slices and the
// completion date rule on every task. Returns the repaired copy.
func (s AppState) Normalize() AppState {
	next := AppState{Boards: []Board{}, Filter: s.Filter}
	if !ValidFilter(next.Filter) {
		next.Filter = FilterAll
	}

	seen := map[string]bool{}
	for _, b := range s.Boards {
		if b.ID == "" || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		board := b.Clone()
		if board.Tasks == nil {
			board.Tasks = []Task{}
		}
		for i, t := range board.Tasks {
			board.Tasks[i] = repairTask(t)
		}
		for i, t := range board.ArchivedTasks {
			t.Archived = true
			board.ArchivedTasks[i] = repairTask(t)
		}
		next.Boards = append(next.Boards, board)
	}

	if len(next.Boards) == 0 {
		return next
	}

	defaults := 0
	for i := range next.Boards {
		if next.Boards[i].IsDefault {
			defaults++
			next.Boards[i].IsDefault = defaults == 1
		}
	}
	if defaults == 0 {
		next.Boards[0].IsDefault = true
	}

	next.CurrentBoardID = s.CurrentBoardID
	if _, ok := next.FindBoard(next.CurrentBoardID); !ok {
		next.CurrentBoardID = next.Boards[0].ID
	}
	return next
}

// repairTask enforces the completion invariant and fills gaps a foreign
// payload may carry.
func repairTask(t Task) Task {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if !ValidStatus(t.Status) {
		t.Status = StatusTodo
	}
	if t.CreatedDate == "" || !ValidDate(t.CreatedDate) {
		t.CreatedDate = Today()
	}
	if t.LastModified == 0 {
		t.LastModified = NowMillis()
	}
	switch {
	case t.Status == StatusDone && t.CompletedDate == "":
		t.CompletedDate = t.CreatedDate
	case t.Status != StatusDone:
		t.CompletedDate = ""
	}
	if !t.Archived {
		t.ArchivedDate = ""
	} else if t.ArchivedDate == "" {
		t.ArchivedDate = Today()
	}
	return t
}

// Validate reports the first violated structural invariant, nil when the
// state is well formed.
func (s AppState) Validate() error {
	if !ValidFilter(s.Filter) {
		return errBadEnum("filter", string(s.Filter))
	}
	seen := map[string]bool{}
	defaults := 0
	for i := range s.Boards {
		b := &s.Boards[i]
		if b.ID == "" {
			return errEmpty("boards.id")
		}
		if seen[b.ID] {
			return errBadType("boards", "set of unique board ids")
		}
		seen[b.ID] = true
		if b.IsDefault {
			defaults++
		}
	}
	if len(s.Boards) == 0 {
		if s.CurrentBoardID != "" {
			return errBadType("currentBoardId", "reference to an existing board")
		}
		return nil
	}
	if defaults != 1 {
		return errBadType("boards", "collection with exactly one default board")
	}
	if !seen[s.CurrentBoardID] {
		return errBadType("currentBoardId", "reference to an existing board")
	}
	return nil
}
