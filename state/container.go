// Package state holds the in-memory application state and the typed
// publish/subscribe surface keeping every consumer consistent with it.
package state

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage"
)

// Patch is a partial state update. Nil fields keep the current value.
type Patch struct {
	Boards         *[]domain.Board
	CurrentBoardID *string
	Filter         *domain.Filter
}

type subscription struct {
	id   int
	kind Kind // empty subscribes to every kind
	fn   Subscriber
}

// Container is the single source of truth for application state. Mutations
// are serialized; notifications are delivered synchronously in subscriber
// registration order before the mutating call returns. Persistence is handed
// to an async saver, so durability lags mutation: consumers that need the
// write confirmed listen for KindSaved.
type Container struct {
	// notifyMu serializes the mutate-then-deliver cycle so subscribers
	// observe state transitions in order.
	notifyMu sync.Mutex
	// mu guards state and subs. Kept separate from notifyMu so callbacks
	// can read state and manage subscriptions mid-delivery.
	mu     sync.RWMutex
	state  domain.AppState
	subs   []subscription
	nextID int

	store  *storage.Store
	saver  *saver
	logger *log.Logger
}

// New returns a container seeded with the default state and wired to store
// for persistence. Call Load to replace the seed with the stored document.
func New(store *storage.Store, logger *log.Logger) *Container {
	if store == nil {
		panic("state.New: store is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Container{
		state:  domain.DefaultState(),
		store:  store,
		logger: logger,
	}
	store.SetErrorFunc(func(operation string, err error) {
		c.emit(Notification{Kind: KindStorageError, State: c.GetState(), Operation: operation, Err: err})
	})
	c.saver = newSaver(defaultSaverConfig(), store, logger, func(saved domain.AppState) {
		c.emit(Notification{Kind: KindSaved, State: saved})
	})
	return c
}

// Close flushes the pending save and stops the saver worker.
func (c *Container) Close() {
	c.saver.close()
}

// GetState returns a deep copy of the current state.
func (c *Container) GetState() domain.AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// CurrentBoard returns the selected board, or false when no boards exist.
func (c *Container) CurrentBoard() (domain.Board, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.FindBoard(c.state.CurrentBoardID)
}

// Subscribe registers fn for one notification kind and returns its
// unsubscribe function. Unsubscribing twice is a no-op.
func (c *Container) Subscribe(kind Kind, fn Subscriber) func() {
	return c.register(kind, fn)
}

// SubscribeAll registers fn for every notification kind.
func (c *Container) SubscribeAll(fn Subscriber) func() {
	return c.register("", fn)
}

func (c *Container) register(kind Kind, fn Subscriber) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, kind: kind, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.subs {
			if c.subs[i].id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// mutation transforms a private copy of the current state. Returning no kinds
// marks the call a no-op: nothing is committed or delivered.
type mutation func(cur domain.AppState) (domain.AppState, []Kind, error)

func (c *Container) apply(silent, persist bool, fn mutation) (domain.AppState, error) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next, kinds, err := fn(c.state.Clone())
	if err != nil || len(kinds) == 0 {
		c.mu.Unlock()
		return domain.AppState{}, err
	}
	c.state = next
	snap := next.Clone()
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	if !silent {
		deliver(subs, snap, kinds)
		if persist {
			c.saver.request(snap)
		}
	}
	return snap, nil
}

// deliver walks the kinds in order and hands each resulting notification to
// the matching subscribers in registration order.
func deliver(subs []subscription, snap domain.AppState, kinds []Kind) {
	now := domain.NowMillis()
	for _, kind := range kinds {
		n := Notification{Kind: kind, State: snap, Timestamp: now}
		for _, sub := range subs {
			if sub.kind == "" || sub.kind == kind {
				sub.fn(n)
			}
		}
	}
}

// emit delivers one out-of-band notification (saved, storage-error). It takes
// the same delivery lock as mutations so subscribers never see interleaving.
func (c *Container) emit(n Notification) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.RLock()
	subs := append([]subscription(nil), c.subs...)
	c.mu.RUnlock()

	if n.Timestamp == 0 {
		n.Timestamp = domain.NowMillis()
	}
	for _, sub := range subs {
		if sub.kind == "" || sub.kind == n.Kind {
			sub.fn(n)
		}
	}
}

// SetState merges the patch into the state and notifies: one KindStateChanged
// plus one targeted notification per changed top-level key.
func (c *Container) SetState(p Patch) domain.AppState {
	snap, _ := c.apply(false, true, mergePatch(p))
	return snap
}

// SetStateSilent merges the patch without notifying or persisting.
func (c *Container) SetStateSilent(p Patch) domain.AppState {
	snap, _ := c.apply(true, false, mergePatch(p))
	return snap
}

func mergePatch(p Patch) mutation {
	return func(cur domain.AppState) (domain.AppState, []Kind, error) {
		next := cur
		if p.Boards != nil {
			next.Boards = make([]domain.Board, 0, len(*p.Boards))
			for _, b := range *p.Boards {
				next.Boards = append(next.Boards, b.Clone())
			}
		}
		if p.CurrentBoardID != nil {
			next.CurrentBoardID = *p.CurrentBoardID
		}
		if p.Filter != nil {
			next.Filter = *p.Filter
		}
		next = next.Normalize()

		kinds := []Kind{KindStateChanged}
		if p.Boards != nil {
			kinds = append(kinds, KindBoardsChanged)
		}
		if p.CurrentBoardID != nil || cur.CurrentBoardID != next.CurrentBoardID {
			kinds = append(kinds, KindCurrentBoardChanged)
		}
		if p.Filter != nil || cur.Filter != next.Filter {
			kinds = append(kinds, KindFilterChanged)
		}
		return next, kinds, nil
	}
}

// AddBoard appends a board. The first board added becomes current and
// default automatically.
func (c *Container) AddBoard(board domain.Board) (domain.Board, error) {
	var added domain.Board
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		b := board.Clone()
		if b.ID == "" {
			return cur, nil, &domain.ValidationError{Field: "board.id", Kind: domain.ValidationEmpty, Msg: "must not be empty"}
		}
		if _, exists := cur.FindBoard(b.ID); exists {
			return cur, nil, domain.ErrBoardExists
		}
		if len(cur.Boards) == 0 {
			b.IsDefault = true
		} else if b.IsDefault {
			// Exactly one default board: the existing one wins.
			b.IsDefault = false
		}
		cur.Boards = append(cur.Boards, b)
		kinds := []Kind{KindStateChanged, KindBoardsChanged}
		if cur.CurrentBoardID == "" {
			cur.CurrentBoardID = b.ID
			kinds = append(kinds, KindCurrentBoardChanged)
		}
		added = b
		return cur, kinds, nil
	})
	return added, err
}

// RemoveBoard drops the board. Removing the current board moves the
// selection to another existing board, or clears it when none remain.
// Removing an unknown id is a no-op.
func (c *Container) RemoveBoard(id string) bool {
	removed := false
	c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		at := -1
		for i := range cur.Boards {
			if cur.Boards[i].ID == id {
				at = i
				break
			}
		}
		if at < 0 {
			return cur, nil, nil
		}
		removed = true
		wasDefault := cur.Boards[at].IsDefault
		cur.Boards = append(cur.Boards[:at], cur.Boards[at+1:]...)

		kinds := []Kind{KindStateChanged, KindBoardsChanged}
		if wasDefault && len(cur.Boards) > 0 {
			cur.Boards[0].IsDefault = true
		}
		if cur.CurrentBoardID == id {
			cur.CurrentBoardID = ""
			if len(cur.Boards) > 0 {
				cur.CurrentBoardID = cur.Boards[0].ID
			}
			kinds = append(kinds, KindCurrentBoardChanged)
		}
		return cur, kinds, nil
	})
	return removed
}

// SetCurrentBoard selects the board. Unknown ids are rejected without
// touching the state.
func (c *Container) SetCurrentBoard(id string) bool {
	ok := false
	c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		if _, found := cur.FindBoard(id); !found {
			return cur, nil, nil
		}
		ok = true
		cur.CurrentBoardID = id
		return cur, []Kind{KindStateChanged, KindCurrentBoardChanged}, nil
	})
	return ok
}

// UpdateBoard applies the patch to the board and returns the updated
// snapshot.
func (c *Container) UpdateBoard(id string, patch domain.BoardPatch) (domain.Board, error) {
	var updated domain.Board
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			if cur.Boards[i].ID != id {
				continue
			}
			next, err := cur.Boards[i].Update(patch)
			if err != nil {
				return cur, nil, err
			}
			cur.Boards[i] = next
			updated = next.Clone()
			return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
		}
		return cur, nil, domain.ErrBoardNotFound
	})
	return updated, err
}

// AddTask puts the task on the board.
func (c *Container) AddTask(boardID string, task domain.Task) error {
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			if cur.Boards[i].ID == boardID {
				cur.Boards[i] = cur.Boards[i].AddTask(task)
				return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
			}
		}
		return cur, nil, domain.ErrBoardNotFound
	})
	return err
}

// UpdateTask applies the patch to the task and returns the updated snapshot.
func (c *Container) UpdateTask(boardID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	var updated domain.Task
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			if cur.Boards[i].ID != boardID {
				continue
			}
			task, ok := cur.Boards[i].GetTask(taskID)
			if !ok {
				return cur, nil, domain.ErrTaskNotFound
			}
			next, err := task.Update(patch)
			if err != nil {
				return cur, nil, err
			}
			cur.Boards[i], _ = cur.Boards[i].ReplaceTask(next.ID, next)
			updated = next
			return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
		}
		return cur, nil, domain.ErrBoardNotFound
	})
	return updated, err
}

// MoveTask transitions the task to status, wherever it lives.
func (c *Container) MoveTask(taskID string, status domain.Status) (domain.Task, error) {
	var moved domain.Task
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			task, ok := cur.Boards[i].GetTask(taskID)
			if !ok {
				continue
			}
			next, err := task.MoveTo(status)
			if err != nil {
				return cur, nil, err
			}
			cur.Boards[i], _ = cur.Boards[i].ReplaceTask(next.ID, next)
			moved = next
			return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
		}
		return cur, nil, domain.ErrTaskNotFound
	})
	return moved, err
}

// RemoveTask deletes the task from the board. Unknown ids are a no-op.
func (c *Container) RemoveTask(boardID, taskID string) bool {
	removed := false
	c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			if cur.Boards[i].ID != boardID {
				continue
			}
			if _, ok := cur.Boards[i].GetTask(taskID); !ok {
				return cur, nil, nil
			}
			removed = true
			cur.Boards[i] = cur.Boards[i].RemoveTask(taskID)
			return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
		}
		return cur, nil, nil
	})
	return removed
}

// ArchiveTask moves the task out of the active list.
func (c *Container) ArchiveTask(boardID, taskID string) error {
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		for i := range cur.Boards {
			if cur.Boards[i].ID != boardID {
				continue
			}
			next, ok := cur.Boards[i].ArchiveTask(taskID)
			if !ok {
				return cur, nil, domain.ErrTaskNotFound
			}
			cur.Boards[i] = next
			return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
		}
		return cur, nil, domain.ErrBoardNotFound
	})
	return err
}

// MoveTaskToBoard transplants the task from one board to another, keeping
// its identity and status.
func (c *Container) MoveTaskToBoard(taskID, fromID, toID string) error {
	_, err := c.apply(false, true, func(cur domain.AppState) (domain.AppState, []Kind, error) {
		from, to := -1, -1
		for i := range cur.Boards {
			if cur.Boards[i].ID == fromID {
				from = i
			}
			if cur.Boards[i].ID == toID {
				to = i
			}
		}
		if from < 0 || to < 0 {
			return cur, nil, domain.ErrBoardNotFound
		}
		task, ok := cur.Boards[from].GetTask(taskID)
		if !ok {
			return cur, nil, domain.ErrTaskNotFound
		}
		if from == to {
			return cur, nil, nil
		}
		cur.Boards[from] = cur.Boards[from].RemoveTask(taskID)
		cur.Boards[to] = cur.Boards[to].AddTask(task)
		return cur, []Kind{KindStateChanged, KindBoardsChanged}, nil
	})
	return err
}

// Load replaces the seed state with the stored document. Falls back to the
// default state when nothing usable is stored.
func (c *Container) Load(ctx context.Context) domain.AppState {
	loaded := c.store.Load(ctx, domain.DefaultState())
	snap, _ := c.apply(false, false, func(domain.AppState) (domain.AppState, []Kind, error) {
		return loaded, []Kind{KindStateChanged}, nil
	})
	c.logger.WithFields(log.Fields{
		"boards": snap.BoardCount(),
		"tasks":  snap.TaskCount(),
	}).Info("state.loaded")
	return snap
}

// Import replaces the state with the payload after the store validated and
// persisted it. Failures surface as a storage-error notification and leave
// the state untouched.
func (c *Container) Import(ctx context.Context, payload []byte) bool {
	imported, ok := c.store.ImportData(ctx, payload)
	if !ok {
		return false
	}
	c.apply(false, false, func(domain.AppState) (domain.AppState, []Kind, error) {
		return imported, []Kind{KindImported, KindStateChanged}, nil
	})
	return true
}

// Export snapshots the current state into a transfer document.
func (c *Container) Export(opts storage.ExportOptions) storage.ExportDocument {
	return c.store.ExportData(c.GetState(), opts)
}
