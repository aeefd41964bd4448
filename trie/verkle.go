package trie

import (
	"github.com/crate-crypto/go-ipa/banderwagon"
	verkle "github.com/ethereum/go-verkle"

	"github.com/luxfi/execd/common"
)

// VerkleTrie is a StateTrie backed by a Verkle tree (github.com/ethereum/go-verkle),
// whose vector commitments go-verkle itself builds over the banderwagon
// curve from github.com/crate-crypto/go-ipa. It is an alternate commitment
// scheme (spec §4.1's Open Question); no genesis or chain-config setting
// selects it, so it is only built directly through NewVerkle, and the
// account/storage trie is always the Merkle-Patricia *Trie.
//
// Unlike the hexary MPT, a verkle tree has no notion of per-account storage
// sub-tries: both account data and storage slots are inserted as 32-byte
// leaves directly under one tree, keyed by the same 32-byte path the caller
// supplies. core/state is responsible for deriving that combined key the
// way go-ethereum's verkle key scheme does (not reproduced here, since
// nothing in this tree yet activates verkle state by default).
type VerkleTrie struct {
	root     verkle.VerkleNode
	resolver verkle.NodeResolverFn
}

// NewVerkle opens a fresh, empty verkle trie. resolver fetches a missing
// subtree's encoded bytes from the backing KVStore by path, mirroring
// *Trie's own hashNode resolution; a nil resolver is fine for a trie that
// never unloads/reloads children (e.g. built and committed within one
// block's execution).
func NewVerkle(resolver func(path []byte) ([]byte, error)) *VerkleTrie {
	var fn verkle.NodeResolverFn
	if resolver != nil {
		fn = verkle.NodeResolverFn(resolver)
	}
	return &VerkleTrie{root: verkle.New(), resolver: fn}
}

func (t *VerkleTrie) Get(path []byte) ([]byte, bool, error) {
	v, err := t.root.Get(path, t.resolver)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (t *VerkleTrie) Insert(path []byte, value []byte) error {
	return t.root.Insert(path, value, t.resolver)
}

func (t *VerkleTrie) Remove(path []byte) (bool, error) {
	return t.root.Delete(path, t.resolver)
}

// RootHash returns the tree's vector commitment serialized as a 32-byte
// value, the same width as the MPT's Keccak root so callers that only ever
// store/compare a common.Hash don't need to know which scheme produced it.
func (t *VerkleTrie) RootHash() common.Hash {
	return common.Hash(t.root.Commitment().Bytes())
}

// Commit finalizes the tree's internal commitments and returns RootHash.
// Unlike the MPT, a verkle tree has no separate node-serialization step to
// flush to a KVStore here: persisting a verkle trie's internal nodes is a
// distinct on-disk format (see go-verkle's own StatefulSerialize) that this
// tree does not yet write, since nothing activates verkle state by default.
func (t *VerkleTrie) Commit() (common.Hash, error) {
	t.root.Commit()
	return t.RootHash(), nil
}

var _ StateTrie = (*VerkleTrie)(nil)

// VerkleCommitmentsEqual compares two serialized verkle root commitments as
// banderwagon group elements rather than raw bytes, so a future change to
// go-verkle's serialization (compressed vs. uncompressed encoding) can't
// silently turn an equal-state comparison into a false mismatch.
func VerkleCommitmentsEqual(a, b common.Hash) (bool, error) {
	var ea, eb banderwagon.Element
	if err := ea.SetBytes(a[:]); err != nil {
		return false, err
	}
	if err := eb.SetBytes(b[:]); err != nil {
		return false, err
	}
	return ea.Equal(&eb), nil
}
