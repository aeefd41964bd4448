// Package mempool implements the pending-transaction pool described in
// spec §4.7: admission-checked, indexed by hash and sender, exposing
// add/remove/get/iter to the block builder and RPC surface.
package mempool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/executor"
	"github.com/luxfi/execd/core/kzg"
	"github.com/luxfi/execd/core/types"
)

var (
	ErrAlreadyKnown      = errors.New("mempool: transaction already known")
	ErrInvalidSignature  = errors.New("mempool: invalid signature")
	ErrOversizedData     = errors.New("mempool: transaction exceeds the encoded size limit")
	ErrTypeNotAllowed    = errors.New("mempool: transaction type not accepted")
	ErrInsufficientFunds = errors.New("mempool: sender lacks funds for gas * price + value")
	ErrNonceTooLow       = errors.New("mempool: nonce below the account's current nonce")
	ErrUnderpriced       = errors.New("mempool: priority fee below the configured minimum")
	ErrMissingSidecar    = errors.New("mempool: blob transaction submitted without a sidecar")
	ErrInvalidSidecar    = errors.New("mempool: blob sidecar failed verification")
	ErrPoolFull          = errors.New("mempool: pool is full and the transaction does not outbid its cheapest resident")
)

// txMaxSize mirrors the teacher's 4*32KiB DoS-protection slot bound: larger
// transactions are significantly more expensive to propagate and validate.
const txMaxSize = 128 * 1024

// StateReader is the minimal read-only account view Add needs; satisfied
// directly by *core/state.StateDB.
type StateReader interface {
	GetBalance(addr common.Address) *big.Int
	GetNonce(addr common.Address) uint64
}

// BlobSidecar carries a blob transaction's out-of-consensus blob,
// commitment and proof triples, submitted alongside (never inside) the
// signed transaction per EIP-4844's wrapper format.
type BlobSidecar struct {
	Blobs       [][]byte
	Commitments [][]byte
	Proofs      [][]byte
}

// Config bounds pool admission and capacity.
type Config struct {
	MaxSize        int
	MinPriorityFee *big.Int
	AllowedTypes   map[types.TxType]bool
}

// DefaultConfig allows the four gossipable envelopes; PrivilegedTxType is
// never accepted here since it is sequencer-injected directly into a block,
// not submitted to the public pool.
func DefaultConfig() Config {
	return Config{
		MaxSize:        4096,
		MinPriorityFee: big.NewInt(1),
		AllowedTypes: map[types.TxType]bool{
			types.LegacyTxType:     true,
			types.AccessListTxType: true,
			types.DynamicFeeTxType: true,
			types.BlobTxType:       true,
		},
	}
}

type accountTxs struct {
	byNonce map[uint64]*types.Transaction
}

// Pool is a single pending-transaction set keyed by hash and indexed by
// sender, per §4.7. It is shared but guarded by a single writer lock;
// readers (Iter) take a consistent snapshot, matching §5's concurrency
// model for the mempool.
type Pool struct {
	mu      sync.RWMutex
	cfg     Config
	state   StateReader
	byHash  map[common.Hash]*types.Transaction
	senders map[common.Hash]common.Address
	byAddr  map[common.Address]*accountTxs
	known   mapset.Set[common.Hash]

	reconcile singleflight.Group
}

// New opens an empty pool validating admission against state.
func New(cfg Config, state StateReader) *Pool {
	return &Pool{
		cfg:     cfg,
		state:   state,
		byHash:  make(map[common.Hash]*types.Transaction),
		senders: make(map[common.Hash]common.Address),
		byAddr:  make(map[common.Address]*accountTxs),
		known:   mapset.NewThreadUnsafeSet[common.Hash](),
	}
}

// Add validates tx against §4.7's admission checks and, if it passes,
// indexes it by hash and sender. sidecar must be supplied for blob
// transactions and is ignored for every other type.
func (p *Pool) Add(tx *types.Transaction, sidecar *BlobSidecar) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := tx.Hash()
	if p.known.Contains(hash) {
		return ErrAlreadyKnown
	}
	if !p.cfg.AllowedTypes[tx.Type] {
		return ErrTypeNotAllowed
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		return err
	}
	if len(enc) > txMaxSize {
		return ErrOversizedData
	}

	from, err := executor.Sender(tx)
	if err != nil {
		return ErrInvalidSignature
	}

	tip := tx.GasTipCap
	if tip == nil {
		tip = tx.GasPrice
	}
	if tip == nil || tip.Cmp(p.cfg.MinPriorityFee) < 0 {
		return ErrUnderpriced
	}

	if tx.Nonce < p.state.GetNonce(from) {
		return ErrNonceTooLow
	}

	upfrontCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), tx.EffectiveGasPrice(nil))
	if tx.Value != nil {
		upfrontCost.Add(upfrontCost, tx.Value)
	}
	if p.state.GetBalance(from).Cmp(upfrontCost) < 0 {
		return ErrInsufficientFunds
	}

	if tx.Type == types.BlobTxType {
		if sidecar == nil || len(sidecar.Blobs) == 0 {
			return ErrMissingSidecar
		}
		if err := kzg.VerifySidecar(tx.BlobHashes, sidecar.Blobs, sidecar.Commitments, sidecar.Proofs); err != nil {
			return ErrInvalidSidecar
		}
	}

	if len(p.byHash) >= p.cfg.MaxSize {
		if !p.evictOne(tip) {
			return ErrPoolFull
		}
	}

	p.byHash[hash] = tx
	p.senders[hash] = from
	p.known.Add(hash)
	acct, ok := p.byAddr[from]
	if !ok {
		acct = &accountTxs{byNonce: make(map[uint64]*types.Transaction)}
		p.byAddr[from] = acct
	}
	acct.byNonce[tx.Nonce] = tx
	return nil
}

// evictOne drops the single lowest-tip transaction in the pool if it is
// cheaper than incomingTip, making room for an incoming transaction under
// pressure. Returns false (evicting nothing) if incomingTip would not beat
// the cheapest resident.
func (p *Pool) evictOne(incomingTip *big.Int) bool {
	var (
		worstHash common.Hash
		worstTip  *big.Int
	)
	for hash, tx := range p.byHash {
		t := tx.GasTipCap
		if t == nil {
			t = tx.GasPrice
		}
		if worstTip == nil || t.Cmp(worstTip) < 0 {
			worstTip, worstHash = t, hash
		}
	}
	if worstTip == nil || incomingTip.Cmp(worstTip) <= 0 {
		return false
	}
	p.removeLocked(worstHash)
	return true
}

// Remove drops a transaction from the pool, e.g. once it has been included
// in a block or evicted by its own logic.
func (p *Pool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash common.Hash) {
	tx, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	p.known.Remove(hash)
	from, ok := p.senders[hash]
	delete(p.senders, hash)
	if !ok {
		return
	}
	if acct, ok := p.byAddr[from]; ok {
		delete(acct.byNonce, tx.Nonce)
		if len(acct.byNonce) == 0 {
			delete(p.byAddr, from)
		}
	}
}

// Get returns a pooled transaction by hash, or nil if unknown.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byHash[hash]
}

// Len reports how many transactions the pool currently holds.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Iter returns a point-in-time snapshot of every pooled transaction,
// ordered highest-priority-fee first for a block builder to greedily
// consume. The snapshot is independent of subsequent Add/Remove calls.
func (p *Pool) Iter() []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*types.Transaction, 0, len(p.byHash))
	for _, tx := range p.byHash {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].GasTipCap, out[j].GasTipCap
		if ti == nil {
			ti = out[i].GasPrice
		}
		if tj == nil {
			tj = out[j].GasPrice
		}
		return ti.Cmp(tj) > 0
	})
	return out
}

// Reconcile re-validates every pooled account's transactions against reader,
// the State View at head, and drops whatever no longer clears §4.7's nonce
// and balance checks — the work a fork-choice advance (§4.6) must do before
// the pool's Iter snapshot can be trusted again. Concurrent Reconcile calls
// for the same head collapse into a single pass via singleflight, so a burst
// of near-simultaneous NewHead notifications from the consensus driver costs
// one reconciliation, not one per caller.
func (p *Pool) Reconcile(head common.Hash, reader StateReader) {
	p.reconcile.Do(head.String(), func() (interface{}, error) {
		p.reconcileOnce(reader)
		return nil, nil
	})
}

func (p *Pool) reconcileOnce(reader StateReader) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = reader
	for addr, acct := range p.byAddr {
		balance := reader.GetBalance(addr)
		accountNonce := reader.GetNonce(addr)
		for n, tx := range acct.byNonce {
			if n < accountNonce {
				p.removeLocked(tx.Hash())
				continue
			}
			cost := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), tx.EffectiveGasPrice(nil))
			if tx.Value != nil {
				cost.Add(cost, tx.Value)
			}
			if balance.Cmp(cost) < 0 {
				p.removeLocked(tx.Hash())
			}
		}
	}
}
