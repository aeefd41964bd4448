package rpc

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/mempool"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/genesis"
)

// Backend is the read/write surface the RPC handlers are built against: a
// Store handle for chain data, a mempool for submission, and the chain
// configuration resolved from the genesis document.
type Backend struct {
	Store  *store.Store
	Pool   *mempool.Pool
	Config *genesis.ChainConfig
}

// NewBackend wires a Backend from the process-wide singletons spec §9
// names: the Store handle, the mempool handle and (here) the chain config
// loaded once from genesis at startup.
func NewBackend(st *store.Store, pool *mempool.Pool, cfg *genesis.ChainConfig) *Backend {
	return &Backend{Store: st, Pool: pool, Config: cfg}
}

func (b *Backend) headerByNumber(number uint64) (*types.Header, error) {
	return b.Store.GetHeaderByNumber(number)
}

func (b *Backend) headerByHash(hash common.Hash) (*types.Header, error) {
	return b.Store.GetHeader(hash)
}

// stateAt opens a State View against header's post-state root.
func (b *Backend) stateAt(header *types.Header) *state.StateDB {
	return state.New(header.StateRoot, b.Store)
}

// chainID returns the configured chain id, defaulting to zero if unset.
func (b *Backend) chainID() *big.Int {
	if b.Config == nil || b.Config.ChainID == nil {
		return new(big.Int)
	}
	return b.Config.ChainID
}
