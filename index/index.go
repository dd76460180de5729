// Package index maintains inverted indexes over the task set so filtered and
// searched queries resolve by set intersection instead of scanning boards.
package index

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// minWordLen is the shortest token the full-text index keeps.
const minWordLen = 3

// Set is a set of task ids.
type Set map[string]struct{}

// Contains reports whether id is in the set.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in unspecified order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Criteria narrows a search. Zero fields do not constrain; a criteria with no
// fields set matches nothing, it is not a wildcard.
type Criteria struct {
	Status  domain.Status
	Text    string
	Date    string
	BoardID string
}

func (c Criteria) empty() bool {
	return c.Status == "" && c.Text == "" && c.Date == "" && c.BoardID == ""
}

// Stats is a point-in-time snapshot of index shape and traffic.
type Stats struct {
	IndexedTasks     int       `json:"indexedTasks"`
	DistinctWords    int       `json:"distinctWords"`
	Searches         uint64    `json:"searches"`
	DegradedSearches uint64    `json:"degradedSearches"`
	LastBuild        time.Time `json:"lastBuild"`
}

// Index answers task queries from four inverted maps: status, creation day,
// board and text words. It returns ids only; callers re-resolve them against
// current state so results are never stale objects.
type Index struct {
	logger *log.Logger

	mu       sync.RWMutex
	byStatus map[string]Set
	byDate   map[string]Set
	byBoard  map[string]Set
	byWord   map[string]Set
	ids      Set
	built    bool
	builtAt  time.Time

	searches atomic.Uint64
	degraded atomic.Uint64
}

// New returns an empty index. Searching it before the first Build reports
// degraded mode.
func New(logger *log.Logger) *Index {
	if logger == nil {
		logger = log.StandardLogger()
	}
	idx := &Index{logger: logger}
	idx.resetLocked()
	return idx
}

func (x *Index) resetLocked() {
	x.byStatus = map[string]Set{}
	x.byDate = map[string]Set{}
	x.byBoard = map[string]Set{}
	x.byWord = map[string]Set{}
	x.ids = Set{}
}

// Build rebuilds the index from scratch. Rebuilding from the same input
// reaches the same end state.
func (x *Index) Build(tasks []domain.BoardTask) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.resetLocked()
	for _, bt := range tasks {
		x.addLocked(bt.Task, bt.BoardID)
	}
	x.built = true
	x.builtAt = time.Now().UTC()
}

// Add indexes one task incrementally.
func (x *Index) Add(task domain.Task, boardID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(task, boardID)
}

// Remove drops one task. The task carries the tokens to unindex, so it must
// be the same snapshot that was added. Removing an unknown id is a no-op.
func (x *Index) Remove(task domain.Task, boardID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.ids.Contains(task.ID) {
		return
	}
	unindex(x.byStatus, string(task.Status), task.ID)
	unindex(x.byDate, task.CreatedDate, task.ID)
	unindex(x.byBoard, boardID, task.ID)
	for _, word := range tokenize(task.Text) {
		unindex(x.byWord, word, task.ID)
	}
	delete(x.ids, task.ID)
}

func (x *Index) addLocked(task domain.Task, boardID string) {
	indexInto(x.byStatus, string(task.Status), task.ID)
	indexInto(x.byDate, task.CreatedDate, task.ID)
	indexInto(x.byBoard, boardID, task.ID)
	for _, word := range tokenize(task.Text) {
		indexInto(x.byWord, word, task.ID)
	}
	x.ids[task.ID] = struct{}{}
}

// Search resolves the criteria to a set of task ids. Every present field
// narrows the result by intersection; a multi-word text must match all of its
// words. Before the first Build the index is degraded: it returns an empty
// set and signals that the caller should fall back to a scan.
func (x *Index) Search(c Criteria) Set {
	x.searches.Add(1)

	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.built {
		x.degraded.Add(1)
		x.logger.Warn("index.search.degraded")
		return Set{}
	}
	if c.empty() {
		return Set{}
	}

	var result Set
	narrow := func(s Set) bool {
		if result == nil {
			result = copySet(s)
		} else {
			result = intersect(result, s)
		}
		return len(result) > 0
	}

	if c.Status != "" && !narrow(x.byStatus[string(c.Status)]) {
		return Set{}
	}
	if c.Date != "" && !narrow(x.byDate[c.Date]) {
		return Set{}
	}
	if c.BoardID != "" && !narrow(x.byBoard[c.BoardID]) {
		return Set{}
	}
	if c.Text != "" {
		words := tokenize(c.Text)
		if len(words) == 0 {
			// Nothing indexable in the text criterion: match nothing.
			return Set{}
		}
		for _, word := range words {
			if !narrow(x.byWord[word]) {
				return Set{}
			}
		}
	}
	if result == nil {
		return Set{}
	}
	return result
}

// MatchTask reports whether a single task satisfies the criteria without
// consulting any index. Callers use it for the linear fallback while the
// index is degraded; semantics mirror Search exactly, including the
// match-nothing empty criteria.
func MatchTask(task domain.Task, boardID string, c Criteria) bool {
	if c.empty() {
		return false
	}
	if c.Status != "" && task.Status != c.Status {
		return false
	}
	if c.Date != "" && task.CreatedDate != c.Date {
		return false
	}
	if c.BoardID != "" && boardID != c.BoardID {
		return false
	}
	if c.Text != "" {
		words := tokenize(c.Text)
		if len(words) == 0 {
			return false
		}
		have := map[string]struct{}{}
		for _, w := range tokenize(task.Text) {
			have[w] = struct{}{}
		}
		for _, w := range words {
			if _, ok := have[w]; !ok {
				return false
			}
		}
	}
	return true
}

// Stats reports index shape and search traffic.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		IndexedTasks:     len(x.ids),
		DistinctWords:    len(x.byWord),
		Searches:         x.searches.Load(),
		DegradedSearches: x.degraded.Load(),
		LastBuild:        x.builtAt,
	}
}

// Ready reports whether Build has run at least once.
func (x *Index) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

func indexInto(m map[string]Set, key, id string) {
	if key == "" {
		return
	}
	s, ok := m[key]
	if !ok {
		s = Set{}
		m[key] = s
	}
	s[id] = struct{}{}
}

func unindex(m map[string]Set, key, id string) {
	s, ok := m[key]
	if !ok {
		return
	}
	delete(s, id)
	if len(s) == 0 {
		delete(m, key)
	}
}

// intersect returns the members present in both sets. Content is commutative
// in a and b.
func intersect(a, b Set) Set {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := Set{}
	for id := range a {
		if b.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func copySet(s Set) Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// tokenize lower-cases and splits on whitespace, keeping words longer than
// two runes.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minWordLen {
			out = append(out, f)
		}
	}
	return out
}
