// Package trie implements Ethereum's Merkle-Patricia Trie: a persistent,
// content-addressed radix-16 trie over byte-string paths with leaf,
// extension and branch nodes, per spec §4.1.
package trie

import (
	"bytes"
	"errors"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// Trie is a single Merkle-Patricia Trie rooted at an in-memory (possibly
// partially unresolved) node tree, backed by a KVStore for persistence. A
// Trie holds no long-lived locks; every operation borrows the backend
// transiently (spec §5).
type Trie struct {
	root  node
	owner common.Hash // zero for the account trie, account hash for a storage trie
	db    KVStore
}

// New opens the trie rooted at root (EmptyRootHash or the zero hash for a
// fresh trie).
func New(root common.Hash, owner common.Hash, db KVStore) *Trie {
	t := &Trie{owner: owner, db: db}
	if root != common.EmptyRootHash && !root.IsZero() {
		t.root = hashNode(root.Bytes())
	}
	return t
}

// NewStorage opens the storage sub-trie of account addrHash.
func NewStorage(root common.Hash, addrHash common.Hash, db KVStore) *Trie {
	return New(root, addrHash, db)
}

func (t *Trie) resolve(n node) (node, error) {
	hn, ok := n.(hashNode)
	if !ok {
		return n, nil
	}
	raw, ok := t.db.Get(nodeKey(t.owner, common.BytesToHash(hn)))
	if !ok {
		return nil, ErrMalformedNode
	}
	return decodeNodeBytes(raw)
}

func (t *Trie) mustResolve(hn hashNode) node {
	n, err := t.resolve(hn)
	if err != nil {
		// Per spec §4.1, a malformed stored node is fatal to the current
		// operation; the caller recovers this panic at the public API
		// boundary and turns it into an error return.
		panic(trieFatal{err})
	}
	return n
}

type trieFatal struct{ err error }

func recoverFatal(errp *error) {
	if r := recover(); r != nil {
		if tf, ok := r.(trieFatal); ok {
			*errp = tf.err
			return
		}
		panic(r)
	}
}

// Get walks the trie from the root and returns the stored value for path,
// or (nil, false) if absent.
func (t *Trie) Get(path []byte) (value []byte, found bool, err error) {
	defer recoverFatal(&err)
	key := keybytesToHex(path)
	n := t.root
	pos := 0
	for {
		switch cur := n.(type) {
		case nil:
			return nil, false, nil
		case valueNode:
			return []byte(cur), true, nil
		case *shortNode:
			if len(key)-pos < len(cur.Key) || !bytes.Equal(cur.Key, key[pos:pos+len(cur.Key)]) {
				return nil, false, nil
			}
			n = cur.Val
			pos += len(cur.Key)
		case *fullNode:
			if key[pos] == 16 {
				n = cur.Val
			} else {
				n = cur.Children[key[pos]]
			}
			pos++
		case hashNode:
			n = t.mustResolve(cur)
		default:
			return nil, false, ErrMalformedNode
		}
	}
}

// Insert stores value at path, creating and splitting branches/extensions as
// needed. Inserting a zero-length value is rejected at this layer per
// spec §4.1; callers encode deletion as Remove.
func (t *Trie) Insert(path []byte, value []byte) (err error) {
	if len(value) == 0 {
		return errors.New("trie: cannot insert empty value, use Remove")
	}
	defer recoverFatal(&err)
	key := keybytesToHex(path)
	t.root = t.insert(t.root, key, valueNode(value))
	return nil
}

func (t *Trie) insert(n node, key []byte, value node) node {
	if len(key) == 0 {
		return value
	}
	switch cur := n.(type) {
	case nil:
		return &shortNode{Key: append([]byte{}, key...), Val: value}

	case *shortNode:
		match := prefixLen(key, cur.Key)
		if match == len(cur.Key) {
			return &shortNode{Key: cur.Key, Val: t.insert(cur.Val, key[match:], value)}
		}
		// Split into a branch at the point of divergence.
		branch := &fullNode{}
		branch.Children[cur.Key[match]] = t.insert(nil, cur.Key[match+1:], cur.Val)
		if match == len(key) {
			branch.Val = value
		} else {
			branch.Children[key[match]] = t.insert(nil, key[match+1:], value)
		}
		if match == 0 {
			return branch
		}
		return &shortNode{Key: append([]byte{}, key[:match]...), Val: branch}

	case *fullNode:
		cp := cur.copy()
		if key[0] == 16 {
			cp.Val = value
			return cp
		}
		cp.Children[key[0]] = t.insert(cp.Children[key[0]], key[1:], value)
		return cp

	case hashNode:
		return t.insert(t.mustResolve(cur), key, value)

	default:
		panic(trieFatal{ErrMalformedNode})
	}
}

// Remove deletes path from the trie, collapsing degenerate branches and
// extensions, and reports whether the key previously existed.
func (t *Trie) Remove(path []byte) (removed bool, err error) {
	defer recoverFatal(&err)
	key := keybytesToHex(path)
	newRoot, ok := t.remove(t.root, key)
	if ok {
		t.root = newRoot
	}
	return ok, nil
}

// remove returns the new subtree and whether key was found and removed.
func (t *Trie) remove(n node, key []byte) (node, bool) {
	switch cur := n.(type) {
	case nil:
		return nil, false

	case *shortNode:
		match := prefixLen(key, cur.Key)
		if match < len(cur.Key) {
			return n, false
		}
		if match == len(key) {
			if !cur.IsLeaf() {
				return n, false
			}
			return nil, true
		}
		newChild, ok := t.remove(cur.Val, key[match:])
		if !ok {
			return n, false
		}
		return joinShort(cur.Key, newChild), true

	case *fullNode:
		if key[0] == 16 {
			if cur.Val == nil {
				return n, false
			}
			cp := cur.copy()
			cp.Val = nil
			return collapseFull(cp), true
		}
		newChild, ok := t.remove(cur.Children[key[0]], key[1:])
		if !ok {
			return n, false
		}
		cp := cur.copy()
		cp.Children[key[0]] = newChild
		return collapseFull(cp), true

	case hashNode:
		return t.remove(t.mustResolve(cur), key)

	default:
		panic(trieFatal{ErrMalformedNode})
	}
}

// joinShort prepends prefix nibbles to a (possibly nil, possibly already
// collapsed) child, producing a single canonical shortNode or nil.
func joinShort(prefix []byte, child node) node {
	if child == nil {
		return nil
	}
	if cs, ok := child.(*shortNode); ok {
		return &shortNode{Key: append(append([]byte{}, prefix...), cs.Key...), Val: cs.Val}
	}
	return &shortNode{Key: append([]byte{}, prefix...), Val: child}
}

// collapseFull reduces a branch with only one remaining child (and no
// value) into a single shortNode, and a branch with zero children and a
// value into a bare leaf shortNode, keeping the trie canonical so
// commitment determinism holds regardless of insertion/removal order.
func collapseFull(b *fullNode) node {
	count, idx := 0, -1
	for i, c := range b.Children {
		if c != nil {
			count++
			idx = i
		}
	}
	if count == 0 {
		if b.Val != nil {
			return &shortNode{Key: []byte{16}, Val: b.Val}
		}
		return nil
	}
	if count == 1 && b.Val == nil {
		return joinShort([]byte{byte(idx)}, b.Children[idx])
	}
	return b
}

// RootHash returns the trie's 32-byte root commitment, resolving any
// unresolved hashNode children along the way as needed.
func (t *Trie) RootHash() (h common.Hash) {
	if t.root == nil {
		return common.EmptyRootHash
	}
	if hn, ok := t.root.(hashNode); ok {
		return common.BytesToHash(hn)
	}
	resolve := func(hn hashNode) node { return t.mustResolve(hn) }
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(trieFatal); ok {
				h = common.EmptyRootHash
				return
			}
			panic(r)
		}
	}()
	return common.Keccak256Hash(rlp.Encode(rlpValue(t.root, resolve)))
}

// Commit flushes every node reachable from the current root to the backend
// in a single batch, per spec §4.1 (inlined children under 32 bytes are
// never written; they live only in their parent's encoding).
func (t *Trie) Commit() (root common.Hash, err error) {
	defer recoverFatal(&err)
	if t.root == nil {
		return common.EmptyRootHash, nil
	}
	if hn, ok := t.root.(hashNode); ok {
		return common.BytesToHash(hn), nil
	}
	batch := make(map[string][]byte)
	h := t.commitNode(t.root, batch)
	if _, ok := batch[string(nodeKey(t.owner, h))]; !ok {
		// The root is fetched by hash on reload, so it is stored even when
		// its encoding is under 32 bytes.
		resolve := func(hn hashNode) node { return t.mustResolve(hn) }
		batch[string(nodeKey(t.owner, h))] = rlp.Encode(rlpValue(t.root, resolve))
	}
	t.root = hashNode(h.Bytes())
	t.db.PutBatch(batch)
	return h, nil
}

// commitNode persists n's non-inlined descendants, then n itself if its own
// encoding reaches the 32-byte hashing threshold, returning n's hash either
// way (used by the parent to build its own encoding).
func (t *Trie) commitNode(n node, batch map[string][]byte) common.Hash {
	switch cur := n.(type) {
	case *shortNode:
		if child, ok := cur.Val.(node); ok {
			if _, isHash := child.(hashNode); !isHash {
				if _, isVal := child.(valueNode); !isVal && child != nil {
					t.commitNode(child, batch)
				}
			}
		}
	case *fullNode:
		for _, c := range cur.Children {
			if c == nil {
				continue
			}
			if _, isHash := c.(hashNode); !isHash {
				t.commitNode(c, batch)
			}
		}
	}
	resolve := func(hn hashNode) node { return t.mustResolve(hn) }
	enc := rlp.Encode(rlpValue(n, resolve))
	h := common.Keccak256Hash(enc)
	if len(enc) >= 32 {
		batch[string(nodeKey(t.owner, h))] = enc
	}
	return h
}
