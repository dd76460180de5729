package index

import (
	"sync"

	"taskboard/domain"
	"taskboard/state"
)

// Binder keeps an Index synchronized with a state container. It diffs the
// active task set on every state notification (by id, board and lastModified)
// and applies incremental updates; imports trigger a full rebuild. Archived
// tasks are not indexed.
type Binder struct {
	idx *Index

	mu   sync.Mutex
	seen map[string]seenTask

	unsubs []func()
}

type seenTask struct {
	boardID string
	task    domain.Task
}

// Bind builds the index from the container's current state and keeps it in
// sync until Close.
func Bind(c *state.Container, idx *Index) *Binder {
	b := &Binder{idx: idx, seen: map[string]seenTask{}}
	b.unsubs = append(b.unsubs,
		c.Subscribe(state.KindImported, func(n state.Notification) { b.rebuild(n.State) }),
		c.Subscribe(state.KindStateChanged, func(n state.Notification) { b.sync(n.State) }),
	)
	b.rebuild(c.GetState())
	return b
}

// Close detaches the binder. The index keeps its last contents.
func (b *Binder) Close() {
	for _, unsubscribe := range b.unsubs {
		unsubscribe()
	}
}

func (b *Binder) rebuild(st domain.AppState) {
	active := st.ActiveTasks()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idx.Build(active)
	b.seen = make(map[string]seenTask, len(active))
	for _, bt := range active {
		b.seen[bt.Task.ID] = seenTask{boardID: bt.BoardID, task: bt.Task}
	}
}

func (b *Binder) sync(st domain.AppState) {
	active := st.ActiveTasks()
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[string]seenTask, len(active))
	for _, bt := range active {
		next[bt.Task.ID] = seenTask{boardID: bt.BoardID, task: bt.Task}
	}

	for id, prev := range b.seen {
		cur, ok := next[id]
		if !ok {
			b.idx.Remove(prev.task, prev.boardID)
			continue
		}
		if cur.boardID != prev.boardID || cur.task.LastModified != prev.task.LastModified {
			b.idx.Remove(prev.task, prev.boardID)
			b.idx.Add(cur.task, cur.boardID)
		}
	}
	for id, cur := range next {
		if _, ok := b.seen[id]; !ok {
			b.idx.Add(cur.task, cur.boardID)
		}
	}
	b.seen = next
}
