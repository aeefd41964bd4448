package trie

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// node is the common interface implemented by the trie's persistent node
// representation (shortNode, fullNode) plus the two transient reference
// kinds (hashNode, a 32-byte pointer, and valueNode, a stored value).
//
// A shortNode plays one of two roles described in spec §4.1, discriminated
// by whether its Key carries the terminator nibble (16): terminated it is a
// Leaf (Val is a valueNode); unterminated it is an Extension (Val is the
// child node). Folding both into one struct mirrors how their insert/remove
// splitting logic is genuinely shared, while IsLeaf/AsLeaf/AsExtension below
// present the two variants spec §4.1 names.
type node interface{}

// shortNode is a Leaf or Extension node (see doc above).
type shortNode struct {
	Key []byte // nibbles; terminated (ends in 16) iff this is a Leaf
	Val node   // valueNode for a Leaf, a child node for an Extension
}

// IsLeaf reports whether a shortNode is playing the Leaf role.
func (n *shortNode) IsLeaf() bool { return hasTerm(n.Key) }

// fullNode is a Branch node: sixteen child slots plus an optional value for
// a key that terminates exactly at this branch.
type fullNode struct {
	Children [16]node
	Val      node // valueNode or nil
}

func (n *fullNode) copy() *fullNode {
	cp := *n
	return &cp
}

// hashNode is a reference to a child node by its 32-byte Keccak hash; the
// child must be fetched from the backend to be expanded.
type hashNode []byte

// valueNode is a stored leaf/branch value.
type valueNode []byte

// resolveFn fetches the node a hashNode points to; it is threaded through
// encoding so that Commit/RootHash can inline small children without a
// prior full-tree resolve pass.
type resolveFn func(hashNode) node

// rlpValue encodes a node's RLP representation: a 2-item list for leaf and
// extension nodes, a 17-item list for branch nodes. Children whose encoding
// is under 32 bytes are inlined directly (per §4.1); larger children are
// replaced by their 32-byte hash.
func rlpValue(n node, resolve resolveFn) rlp.Value {
	switch n := n.(type) {
	case *shortNode:
		return rlp.List(rlp.String(hexToCompact(n.Key)), childReference(n.Val, resolve))
	case *fullNode:
		items := make([]rlp.Value, 17)
		for i := 0; i < 16; i++ {
			items[i] = childReference(n.Children[i], resolve)
		}
		items[16] = childReference(n.Val, resolve)
		return rlp.List(items...)
	case hashNode:
		return rlp.String(n)
	case valueNode:
		return rlp.String(n)
	case nil:
		return rlp.String(nil)
	default:
		panic("trie: unknown node type")
	}
}

// childReference produces the RLP value to embed for a child: its raw
// value (valueNode), its inlined encoding (if the encoded node is under 32
// bytes), or its hash.
func childReference(n node, resolve resolveFn) rlp.Value {
	switch n := n.(type) {
	case nil:
		return rlp.String(nil)
	case valueNode:
		return rlp.String(n)
	case hashNode:
		return rlp.String(n)
	}
	enc := rlp.Encode(rlpValue(n, resolve))
	if len(enc) < 32 {
		v, _, _ := rlp.Decode(enc)
		return v
	}
	return rlp.String(common.Keccak256(enc))
}
