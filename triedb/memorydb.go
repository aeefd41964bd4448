// Package triedb provides the trie.KVStore backends named in spec §4.1/§4.2:
// an in-memory map for tests and ephemeral chains, and three persistent
// engines (Pebble, LevelDB, Badger) fronted by a shared fastcache read
// cache, matching the teacher's pattern of a single narrow storage
// interface with swappable concrete engines (see luxfi-evm/core/rawdb).
package triedb

import "sync"

// MemoryDB is an in-memory trie.KVStore, used by tests and by chains that
// never persist state to disk.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDB returns an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (m *MemoryDB) Get(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

func (m *MemoryDB) Put(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
}

func (m *MemoryDB) PutBatch(entries map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.data[k] = cp
	}
}

// Delete removes key. It is not part of the narrower trie.KVStore
// interface, since the trie itself never deletes nodes.
func (m *MemoryDB) Delete(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
}

// Len reports the number of stored entries.
func (m *MemoryDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
