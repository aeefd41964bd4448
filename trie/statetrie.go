package trie

import "github.com/luxfi/execd/common"

// StateTrie is the narrow capability core/state.StateDB needs from its
// underlying commitment structure: path-keyed get/insert/remove plus a root
// commitment. *Trie satisfies this directly; VerkleTrie, an alternate
// commitment scheme (spec §4.1's "alternate trie" Open Question), satisfies
// it too, though no chain configuration selects it.
type StateTrie interface {
	Get(path []byte) (value []byte, found bool, err error)
	Insert(path []byte, value []byte) error
	Remove(path []byte) (removed bool, err error)
	RootHash() common.Hash
	Commit() (common.Hash, error)
}

var (
	_ StateTrie = (*Trie)(nil)
)
