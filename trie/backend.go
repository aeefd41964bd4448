package trie

import "github.com/luxfi/execd/common"

// KVStore is the narrow key-value capability the trie consumes from its
// backend, per spec §4.1: point lookups, single puts, and batched puts so
// that a commit's reachable-node set can be flushed atomically.
type KVStore interface {
	Get(key []byte) ([]byte, bool)
	Put(key []byte, value []byte)
	PutBatch(entries map[string][]byte)
}

// nodeKey is the physical backend key for a trie node. Account and standalone
// tries are keyed by hash alone; storage tries additionally namespace by
// account hash so that every account's storage sub-trie is an independent
// logical table within one shared physical KVStore, per spec §4.1.
func nodeKey(owner common.Hash, hash common.Hash) []byte {
	if owner.IsZero() {
		return hash.Bytes()
	}
	key := make([]byte, 0, common.HashLength*2)
	key = append(key, owner.Bytes()...)
	key = append(key, hash.Bytes()...)
	return key
}
