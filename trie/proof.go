package trie

import (
	"errors"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// ErrProofNotFound is returned by VerifyProof when the supplied proof does
// not terminate in a node proving either presence or absence of key.
var ErrProofNotFound = errors.New("trie: proof does not resolve key")

// Prove walks from the root to path's terminal node (or as far as the trie
// can go before the path provably diverges) and returns the RLP encoding of
// every hash-referenced node visited along the way, root first, per spec
// §4.1's get_proof. Inlined (sub-32-byte) children are not appended as
// separate elements since VerifyProof decodes them from their parent.
func (t *Trie) Prove(path []byte) (proof [][]byte, err error) {
	defer recoverFatal(&err)
	key := keybytesToHex(path)
	n := t.root
	pos := 0
	resolve := func(hn hashNode) node { return t.mustResolve(hn) }
	for n != nil {
		if hn, ok := n.(hashNode); ok {
			n = t.mustResolve(hn)
			proof = append(proof, rlp.Encode(rlpValue(n, resolve)))
		}
		switch cur := n.(type) {
		case *shortNode:
			if len(key)-pos < len(cur.Key) || !hasPrefix(cur.Key, key[pos:pos+len(cur.Key)]) {
				return proof, nil
			}
			pos += len(cur.Key)
			n = cur.Val
		case *fullNode:
			if pos >= len(key) {
				return proof, nil
			}
			if key[pos] == 16 {
				n = cur.Val
			} else {
				n = cur.Children[key[pos]]
			}
			pos++
		default:
			return proof, nil
		}
	}
	return proof, nil
}

// VerifyProof checks that proof is a valid membership (or non-membership)
// proof for path against rootHash, per spec §4.1: each hash-referenced node
// in the chain from rootHash down must match the hash its parent recorded,
// terminating in either the stored value or a structural proof of absence
// (a nil child slot or a diverging extension/leaf key).
//
// value is nil both on a verified non-membership proof and on failure;
// callers must check err to tell the two apart.
func VerifyProof(rootHash common.Hash, path []byte, proof [][]byte) (value []byte, err error) {
	if rootHash == common.EmptyRootHash {
		return nil, nil
	}
	root, err := decodeProofNode(rootHash, proof, 0)
	if err != nil {
		return nil, err
	}
	key := keybytesToHex(path)
	return walkProof(root, key, 0, proof, 0)
}

// decodeProofNode decodes proof[idx], checking it hashes to want.
func decodeProofNode(want common.Hash, proof [][]byte, idx int) (node, error) {
	if idx >= len(proof) {
		return nil, ErrProofNotFound
	}
	enc := proof[idx]
	if common.Keccak256Hash(enc) != want {
		return nil, ErrProofNotFound
	}
	v, rest, derr := rlp.Decode(enc)
	if derr != nil || len(rest) != 0 {
		return nil, ErrMalformedNode
	}
	n, derr := decodeNodeValue(v)
	if derr != nil {
		return nil, ErrMalformedNode
	}
	return n, nil
}

// walkProof descends the decoded node tree, pulling a fresh node from proof
// whenever it crosses a hash reference, until it reaches a value (presence)
// or a structural dead end (absence).
func walkProof(n node, key []byte, pos int, proof [][]byte, nextIdx int) ([]byte, error) {
	switch cur := n.(type) {
	case *shortNode:
		if len(key)-pos < len(cur.Key) || !hasPrefix(cur.Key, key[pos:pos+len(cur.Key)]) {
			return nil, nil
		}
		pos += len(cur.Key)
		return walkChild(cur.Val, key, pos, proof, nextIdx)
	case *fullNode:
		if pos >= len(key) {
			if vn, ok := cur.Val.(valueNode); ok {
				return []byte(vn), nil
			}
			return nil, nil
		}
		nib := key[pos]
		return walkChild(cur.Children[nib], key, pos+1, proof, nextIdx)
	default:
		return nil, ErrMalformedNode
	}
}

func walkChild(child node, key []byte, pos int, proof [][]byte, nextIdx int) ([]byte, error) {
	switch c := child.(type) {
	case nil:
		return nil, nil
	case valueNode:
		return []byte(c), nil
	case hashNode:
		next, err := decodeProofNode(common.BytesToHash(c), proof, nextIdx)
		if err != nil {
			return nil, err
		}
		return walkProof(next, key, pos, proof, nextIdx+1)
	default:
		return walkProof(c, key, pos, proof, nextIdx)
	}
}

func hasPrefix(prefix, key []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if prefix[i] != key[i] {
			return false
		}
	}
	return true
}
