package sound

import "maps"

// Memo remembers every resolution made while serving one request, so a page
// that shows the same sound twice calls upstream at most once. Failures are
// remembered too. A Memo belongs to a single request and is not safe for
// concurrent use.
//
// Records are copied on the way in and out, so a caller editing a returned
// record does not change what later lookups see. The copy is shallow.
type Memo struct {
	results map[int64]memoEntry
}

type memoEntry struct {
	record Record
	err    error
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	return &Memo{results: make(map[int64]memoEntry)}
}

func (m *Memo) load(id int64) (memoEntry, bool) {
	entry, ok := m.results[id]
	entry.record = maps.Clone(entry.record)
	return entry, ok
}

func (m *Memo) store(id int64, record Record, err error) {
	m.results[id] = memoEntry{record: maps.Clone(record), err: err}
}

func (m *Memo) forget(id int64) {
	delete(m.results, id)
}

// Len returns the number of remembered sounds.
func (m *Memo) Len() int {
	return len(m.results)
}
