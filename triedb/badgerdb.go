package triedb

import (
	"github.com/dgraph-io/badger/v4"
)

// BadgerDB is a trie.KVStore backed by dgraph-io/badger, offered as a
// third persistent engine choice per spec §4.2 ("the concrete storage
// engine is a deployment choice, not part of the trie's contract").
type BadgerDB struct {
	db *badger.DB
}

// OpenBadger opens (creating if absent) a Badger store at dir.
func OpenBadger(dir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Get(key []byte) ([]byte, bool) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

func (b *BadgerDB) Put(key []byte, value []byte) {
	_ = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerDB) PutBatch(entries map[string][]byte) {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range entries {
		_ = wb.Set([]byte(k), v)
	}
	_ = wb.Flush()
}

func (b *BadgerDB) Delete(key []byte) {
	_ = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Close closes the underlying store.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
