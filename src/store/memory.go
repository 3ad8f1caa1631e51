package store

import (
	"fmt"
	"iter"
	"sync"
)

// Memory keeps every table in process memory. Reads and writes copy
// documents so the caller and the table never alias.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

// NewMemory returns an empty in-memory table set.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Table returns the named table, creating it on first use.
func (m *Memory) Table(name string) Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{name: name, docs: make(map[int64]Document)}
		m.tables[name] = t
	}
	return t
}

type memoryTable struct {
	name   string
	mu     sync.RWMutex
	docs   map[int64]Document
	lastID int64
}

func (t *memoryTable) Name() string { return t.name }

func (t *memoryTable) Upsert(id int64, doc Document) (int64, error) {
	if id < 0 {
		return 0, fmt.Errorf("store: %s: negative id %d", t.name, id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 {
		t.lastID++
		id = t.lastID
	} else if id > t.lastID {
		t.lastID = id
	}
	t.docs[id] = Clone(doc)
	return id, nil
}

func (t *memoryTable) Get(id int64) (Document, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	doc, ok := t.docs[id]
	if !ok {
		return nil, false, nil
	}
	return Clone(doc), true, nil
}

func (t *memoryTable) Find(match Predicate) (Entry, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range sortedIDs(t.docs) {
		doc := Clone(t.docs[id])
		if match == nil || match(doc) {
			return Entry{ID: id, Doc: doc}, true, nil
		}
	}
	return Entry{}, false, nil
}

func (t *memoryTable) Search(match Predicate) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Entry
	for _, id := range sortedIDs(t.docs) {
		doc := Clone(t.docs[id])
		if match == nil || match(doc) {
			out = append(out, Entry{ID: id, Doc: doc})
		}
	}
	return out, nil
}

func (t *memoryTable) Delete(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.docs[id]; !ok {
		return fmt.Errorf("%s/%d: %w", t.name, id, ErrNotFound)
	}
	delete(t.docs, id)
	return nil
}

// All snapshots the id set when iteration starts; documents deleted
// mid-iteration are skipped.
func (t *memoryTable) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		t.mu.RLock()
		ids := sortedIDs(t.docs)
		t.mu.RUnlock()
		for _, id := range ids {
			doc, ok, _ := t.Get(id)
			if !ok {
				continue
			}
			if !yield(Entry{ID: id, Doc: doc}, nil) {
				return
			}
		}
	}
}
