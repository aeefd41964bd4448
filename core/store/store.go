// Package store implements the Store facade named in spec §4.2: headers and
// bodies indexed by hash and number, the canonical number→hash index, and
// the other chain-data singletons every other component borrows a handle
// to. Mirroring the teacher's rawdb package, every logical table is a
// distinct key prefix over one physical KVStore.
package store

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
	"github.com/luxfi/execd/trie"
)

// KVStore is the physical key-value capability the Store is built on; it is
// the same narrow interface the trie package consumes (trie.KVStore),
// reused here so a single backend instance serves both node storage and
// the Store's own logical tables.
type KVStore = trie.KVStore

// Key prefixes for the logical tables enumerated in spec §6's persistence
// layout. Trie nodes use no prefix (trie.nodeKey owns that namespace
// directly); every Store-owned table gets one byte of its own space.
const (
	prefixHeader      = 'h'
	prefixBody        = 'b'
	prefixReceipts    = 'r'
	prefixCanonical   = 'n' // number -> hash
	prefixNumberByHash = 'H'
	prefixCode        = 'c'
	prefixChainData   = 'd'
)

var (
	// ErrNotFound is returned by lookups that find nothing, distinguished
	// from trie/backend errors which are fatal per spec §4.1/§4.2.
	ErrNotFound = errors.New("store: not found")
)

// ChainData holds the small set of chain-wide singletons spec §4.2 names:
// config, the well-known block-number markers, and total difficulty.
type ChainData struct {
	ChainID          *big.Int
	GenesisHash      common.Hash
	Earliest         uint64
	Latest           uint64
	Safe             uint64
	Finalized        uint64
	Pending          uint64
	TotalDifficulty  *big.Int
}

// Store is the facade described in spec §4.2. It is safe for concurrent use
// by many tasks (spec §5): every write holds the Store's lock, and PutHeader's
// two entries land in one atomic batch.
type Store struct {
	mu sync.RWMutex
	db KVStore

	chainData ChainData
}

// New opens a Store over db. db also backs the trie package's node
// storage; the two share one physical table, distinguished by key prefix.
func New(db KVStore) *Store {
	return &Store{db: db}
}

func headerKey(hash common.Hash) []byte   { return append([]byte{prefixHeader}, hash.Bytes()...) }
func bodyKey(hash common.Hash) []byte     { return append([]byte{prefixBody}, hash.Bytes()...) }
func receiptsKey(hash common.Hash) []byte { return append([]byte{prefixReceipts}, hash.Bytes()...) }
func codeKey(hash common.Hash) []byte     { return append([]byte{prefixCode}, hash.Bytes()...) }

func numberKey(n uint64) []byte {
	var buf [9]byte
	buf[0] = prefixCanonical
	binary.BigEndian.PutUint64(buf[1:], n)
	return buf[:]
}

func numberByHashKey(hash common.Hash) []byte {
	return append([]byte{prefixNumberByHash}, hash.Bytes()...)
}

// PutHeader stores a header indexed by its own hash, and records the
// hash->number mapping used to answer "what number is this block" without
// requiring the canonical index (a header may exist without being
// canonical, per spec §4.2).
func (s *Store) PutHeader(h *types.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := h.Hash()
	enc := h.MarshalBinary()
	batch := map[string][]byte{
		string(headerKey(hash)):      enc,
		string(numberByHashKey(hash)): encodeUint64(h.Number),
	}
	s.db.PutBatch(batch)
	return nil
}

// GetHeader fetches a header by hash.
func (s *Store) GetHeader(hash common.Hash) (*types.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(headerKey(hash))
	if !ok {
		return nil, ErrNotFound
	}
	return types.UnmarshalHeaderBinary(raw)
}

// GetHeaderByNumber resolves a canonical block number to its header.
func (s *Store) GetHeaderByNumber(number uint64) (*types.Header, error) {
	hash, err := s.GetCanonicalHash(number)
	if err != nil {
		return nil, err
	}
	return s.GetHeader(hash)
}

// GetHeaderRange resolves a batch of canonical block numbers to their
// headers concurrently, preserving the caller's ordering in the result —
// the eth/68 GetBlockHeaders responder (p2p/server.go) uses this to answer
// one request's worth of headers with parallel backend reads instead of a
// sequential round-trip per number. A failed lookup leaves that slot nil
// rather than aborting the whole batch, since a partial header run is still
// useful to the p2p layer.
func (s *Store) GetHeaderRange(numbers []uint64) ([]*types.Header, error) {
	headers := make([]*types.Header, len(numbers))
	var g errgroup.Group
	for i, n := range numbers {
		i, n := i, n
		g.Go(func() error {
			h, err := s.GetHeaderByNumber(n)
			if err != nil {
				return nil
			}
			headers[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return headers, nil
}

// PutBody stores a block body indexed by the hash of its header.
func (s *Store) PutBody(hash common.Hash, body types.Body) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Put(bodyKey(hash), body.MarshalBinary())
	return nil
}

// GetBody fetches a block body by header hash.
func (s *Store) GetBody(hash common.Hash) (types.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(bodyKey(hash))
	if !ok {
		return types.Body{}, ErrNotFound
	}
	return types.UnmarshalBodyBinary(raw)
}

// PutReceipts stores a block's receipts indexed by header hash.
func (s *Store) PutReceipts(hash common.Hash, receipts []*types.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Put(receiptsKey(hash), encodeReceiptList(receipts))
	return nil
}

// GetReceipts fetches a block's receipts by header hash.
func (s *Store) GetReceipts(hash common.Hash) ([]*types.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(receiptsKey(hash))
	if !ok {
		return nil, ErrNotFound
	}
	return decodeReceiptList(raw)
}

// PutCode stores contract bytecode in the content-addressed code mapping
// keyed by its own Keccak hash (invariant 4: every touched contract's
// code_hash must resolve here).
func (s *Store) PutCode(code []byte) common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := common.Keccak256Hash(code)
	s.db.Put(codeKey(h), code)
	return h
}

// GetCode fetches bytecode by its hash.
func (s *Store) GetCode(hash common.Hash) ([]byte, error) {
	if hash == common.EmptyCodeHash {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(codeKey(hash))
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

// SetCanonical records number -> hash in the canonical index. The
// fork-choice component (§4.6) calls this on every head advance; genesis
// commit and chain import also call it to extend the index directly.
func (s *Store) SetCanonical(number uint64, hash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Put(numberKey(number), hash.Bytes())
}

// UnsetCanonical removes a number's canonical mapping, used when unwinding
// a forked-off branch during a head advance (spec §4.6): the header and
// body remain stored, only the index entry is removed.
func (s *Store) UnsetCanonical(number uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Put(numberKey(number), nil)
}

// GetCanonicalHash resolves a block number through the canonical index.
func (s *Store) GetCanonicalHash(number uint64) (common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(numberKey(number))
	if !ok || len(raw) == 0 {
		return common.Hash{}, ErrNotFound
	}
	return common.BytesToHash(raw), nil
}

// GetNumberByHash resolves any stored (not necessarily canonical) header's
// block number.
func (s *Store) GetNumberByHash(hash common.Hash) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.db.Get(numberByHashKey(hash))
	if !ok {
		return 0, ErrNotFound
	}
	return decodeUint64(raw), nil
}

// ChainData returns a copy of the chain-data singleton table.
func (s *Store) ChainData() ChainData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainData
}

// SetChainData replaces the chain-data singleton table.
func (s *Store) SetChainData(cd ChainData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainData = cd
}

// TrieBackend exposes the underlying KVStore so callers can open state and
// storage tries against the same physical table (spec §4.2's "the
// trie-node key-value capability used by §4.1").
func (s *Store) TrieBackend() KVStore { return s.db }

func encodeUint64(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// encodeReceiptList/decodeReceiptList wrap a block's receipts as an RLP
// list of opaque encodings; this framing is store-local bookkeeping, not
// part of the per-receipt consensus encoding used for the receipts root.
func encodeReceiptList(receipts []*types.Receipt) []byte {
	items := make([]rlp.Value, len(receipts))
	for i, r := range receipts {
		items[i] = rlp.String(r.EncodeRLP())
	}
	return rlp.Encode(rlp.List(items...))
}

func decodeReceiptList(b []byte) ([]*types.Receipt, error) {
	v, rest, err := rlp.Decode(b)
	if err != nil || len(rest) != 0 {
		return nil, types.ErrMalformedTx
	}
	items, err := v.Items()
	if err != nil {
		return nil, types.ErrMalformedTx
	}
	out := make([]*types.Receipt, len(items))
	for i, it := range items {
		raw, err := it.Bytes()
		if err != nil {
			return nil, types.ErrMalformedTx
		}
		r, err := types.DecodeReceiptRLP(raw)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
