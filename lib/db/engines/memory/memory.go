package memory

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/emirpasic/gods/maps/treemap"
)

// memoryImpl keeps all entries in a red-black tree ordered by key, which gives
// ordered prefix scans without sorting.
type memoryImpl struct {
	name   string
	mu     sync.RWMutex
	tree   *treemap.Map
	closed atomic.Bool
}

// NewMemoryDB creates an empty, non-durable database.
// The name is only used for reporting.
//
// Thread-safety: the returned database is safe for concurrent use.
func NewMemoryDB(name string) db.KVDB {
	return &memoryImpl{
		name: name,
		tree: treemap.NewWithStringComparator(),
	}
}

// each calls fn for every entry starting with prefix in ascending key order.
// The caller must hold the lock.
func (m *memoryImpl) each(prefix string, fn func(key string, value []byte)) {
	it := m.tree.Iterator()
	for it.Next() {
		key := it.Key().(string)
		if strings.HasPrefix(key, prefix) {
			fn(key, it.Value().([]byte))
		} else if key > prefix {
			// ordered: once past the prefix range no further key can match
			return
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append(make([]byte, 0, len(b)), b...)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (m *memoryImpl) Put(key string, value []byte) error {
	if m.closed.Load() {
		return db.ErrClosed
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Put(key, clone(value))
	return nil
}

func (m *memoryImpl) BatchPut(entries []db.Entry) error {
	if m.closed.Load() {
		return db.ErrClosed
	}
	// validate first so that a rejected batch leaves no trace
	for _, e := range entries {
		if e.Key == "" {
			return db.ErrEmptyKey
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.tree.Put(e.Key, clone(e.Value))
	}
	return nil
}

func (m *memoryImpl) Delete(key string) (bool, error) {
	if m.closed.Load() {
		return false, db.ErrClosed
	}
	if key == "" {
		return false, db.ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.tree.Get(key); !found {
		return false, nil
	}
	m.tree.Remove(key)
	return true, nil
}

func (m *memoryImpl) DeletePrefix(prefix string) (int, error) {
	if m.closed.Load() {
		return 0, db.ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	m.each(prefix, func(key string, _ []byte) {
		keys = append(keys, key)
	})
	for _, key := range keys {
		m.tree.Remove(key)
	}
	return len(keys), nil
}

func (m *memoryImpl) DeleteAll() (int, error) {
	if m.closed.Load() {
		return 0, db.ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.tree.Size()
	m.tree.Clear()
	return n, nil
}

func (m *memoryImpl) Get(key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, db.ErrClosed
	}
	if key == "" {
		return nil, false, db.ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, found := m.tree.Get(key)
	if !found {
		return nil, false, nil
	}
	return clone(v.([]byte)), true, nil
}

func (m *memoryImpl) Keys(prefix string) ([]string, error) {
	if m.closed.Load() {
		return nil, db.ErrClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	m.each(prefix, func(key string, _ []byte) {
		keys = append(keys, key)
	})
	return keys, nil
}

func (m *memoryImpl) ScanPrefix(prefix string) ([]db.Entry, error) {
	if m.closed.Load() {
		return nil, db.ErrClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]db.Entry, 0)
	m.each(prefix, func(key string, value []byte) {
		entries = append(entries, db.Entry{Key: key, Value: clone(value)})
	})
	return entries, nil
}

func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sizes := make([]float64, 0, m.tree.Size())
	m.each("", func(_ string, value []byte) {
		sizes = append(sizes, float64(len(value)))
	})
	return db.DatabaseInfo{
		DbType:     db.ImplMemory,
		Identifier: m.name,
		KeyCount:   m.tree.Size(),
		Metadata:   db.NewSizeStats(sizes),
	}
}

func (m *memoryImpl) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Clear()
	return nil
}
