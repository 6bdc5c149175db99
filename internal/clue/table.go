package clue

import "sync"

// Table is an unordered multiset of clues accumulated by one scan run.
// Insertion is semantic-equality based (see Equal), not identity based, and
// all access is mutually exclusive behind a single lock — the scan is
// network-bound, so contention on this lock is never the bottleneck.
type Table struct {
	mu    sync.Mutex
	clues []Clue
}

// NewTable returns an empty clue table.
func NewTable() *Table {
	return &Table{}
}

// Insert merges c into an existing equal clue (incrementing its Count by
// c.Count) or appends c as a new entry. Returns true if c was merged into an
// existing clue, false if it was appended as new.
func (t *Table) Insert(c Clue) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.clues {
		if Equal(t.clues[i], c) {
			t.clues[i] = Merge(t.clues[i], c)
			return true
		}
	}
	t.clues = append(t.clues, c)
	return false
}

// Len returns the number of distinct (digest, diff) entries currently held.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clues)
}

// Snapshot returns a copy of the accumulated clues. Safe to call while
// workers are still inserting.
func (t *Table) Snapshot() []Clue {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Clue, len(t.clues))
	copy(out, t.clues)
	return out
}
