package triedb

import (
	"github.com/cockroachdb/pebble"
)

// PebbleDB is a trie.KVStore backed by a cockroachdb/pebble LSM store, the
// default persistent engine per spec §4.2's "one physical table per chain
// data directory" requirement.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a Pebble store at dir.
func OpenPebble(dir string) (*PebbleDB, error) {
	opts := &pebble.Options{}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, bool) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		return nil, false
	}
	defer closer.Close()
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

func (p *PebbleDB) Put(key []byte, value []byte) {
	_ = p.db.Set(key, value, pebble.NoSync)
}

func (p *PebbleDB) PutBatch(entries map[string][]byte) {
	b := p.db.NewBatch()
	for k, v := range entries {
		_ = b.Set([]byte(k), v, nil)
	}
	_ = b.Commit(pebble.NoSync)
}

func (p *PebbleDB) Delete(key []byte) {
	_ = p.db.Delete(key, pebble.NoSync)
}

// Close flushes and closes the underlying store.
func (p *PebbleDB) Close() error {
	return p.db.Close()
}
