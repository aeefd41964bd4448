package trie

import (
	"errors"

	"github.com/luxfi/execd/rlp"
)

// ErrMalformedNode is returned by backend resolution when a stored node's
// encoding cannot be parsed. Per spec §4.1 such failures are fatal to the
// current trie operation, never treated as "key missing".
var ErrMalformedNode = errors.New("trie: malformed node encoding")

// decodeNodeBytes parses a node previously fetched from the backend by hash.
func decodeNodeBytes(buf []byte) (node, error) {
	v, rest, err := rlp.Decode(buf)
	if err != nil || len(rest) != 0 {
		return nil, ErrMalformedNode
	}
	return decodeNodeValue(v)
}

// decodeNodeValue interprets an already-parsed RLP value as a node: a
// 2-item list is a shortNode (leaf or extension, per the compact-encoding
// terminator flag), a 17-item list is a fullNode (branch).
func decodeNodeValue(v rlp.Value) (node, error) {
	items, err := v.Items()
	if err != nil {
		return nil, ErrMalformedNode
	}
	switch len(items) {
	case 2:
		keyBytes, err := items[0].Bytes()
		if err != nil {
			return nil, ErrMalformedNode
		}
		key := compactToHex(keyBytes)
		if hasTerm(key) {
			val, err := items[1].Bytes()
			if err != nil {
				return nil, ErrMalformedNode
			}
			return &shortNode{Key: key, Val: valueNode(val)}, nil
		}
		child, err := decodeChild(items[1])
		if err != nil {
			return nil, err
		}
		return &shortNode{Key: key, Val: child}, nil
	case 17:
		branch := &fullNode{}
		for i := 0; i < 16; i++ {
			child, err := decodeChild(items[i])
			if err != nil {
				return nil, err
			}
			branch.Children[i] = child
		}
		val, err := items[16].Bytes()
		if err != nil {
			return nil, ErrMalformedNode
		}
		if len(val) > 0 {
			branch.Val = valueNode(val)
		}
		return branch, nil
	default:
		return nil, ErrMalformedNode
	}
}

// decodeChild interprets a child slot: an inlined node (raw list), a 32-byte
// hash reference, or absence (empty string).
func decodeChild(v rlp.Value) (node, error) {
	if v.IsList() {
		return decodeNodeValue(v)
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, ErrMalformedNode
	}
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) != 32 {
		return nil, ErrMalformedNode
	}
	return hashNode(b), nil
}
