package triedb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDB is a trie.KVStore backed by syndtr/goleveldb, kept as an
// alternative engine for chains migrating off an existing LevelDB data
// directory (the historical default engine in the Ethereum client family).
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if absent) a LevelDB store at dir.
func OpenLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, bool) {
	v, err := l.db.Get(key, nil)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (l *LevelDB) Put(key []byte, value []byte) {
	_ = l.db.Put(key, value, nil)
}

func (l *LevelDB) PutBatch(entries map[string][]byte) {
	b := new(leveldb.Batch)
	for k, v := range entries {
		b.Put([]byte(k), v)
	}
	_ = l.db.Write(b, nil)
}

func (l *LevelDB) Delete(key []byte) {
	_ = l.db.Delete(key, nil)
}

// Close closes the underlying store.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
