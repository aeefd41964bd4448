package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/executor"
	"github.com/luxfi/execd/core/mempool"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/validator"
	"github.com/luxfi/execd/genesis"
)

// Backend is the Engine API's own read/write surface: the same Store and
// Pool handles the public rpc package is built against, plus the
// fork-choice state a consensus-layer driver advances and the set of
// payloads this node currently has under construction.
type Backend struct {
	Store      *store.Store
	Pool       *mempool.Pool
	Config     *genesis.ChainConfig
	ForkChoice *validator.ForkChoice

	mu       sync.Mutex
	payloads map[PayloadID]*types.Block
}

// NewBackend wires an engine Backend sharing st/pool/cfg with the public
// rpc surface, and owning its own ForkChoice instance over st.
func NewBackend(st *store.Store, pool *mempool.Pool, cfg *genesis.ChainConfig) *Backend {
	return &Backend{
		Store:      st,
		Pool:       pool,
		Config:     cfg,
		ForkChoice: validator.NewForkChoice(st),
		payloads:   make(map[PayloadID]*types.Block),
	}
}

// storePayload registers block under a freshly minted PayloadID and returns
// it, for a later engine_getPayloadV3 to collect. The id is the low 8 bytes
// of a random UUIDv4 rather than a sequential counter, so a consensus-layer
// driver restarting mid-build can't collide with an id it already handed out
// before the restart.
func (b *Backend) storePayload(block *types.Block) PayloadID {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw := uuid.New()
	var id PayloadID
	copy(id[:], raw[:8])
	b.payloads[id] = block
	return id
}

// takePayload returns (and forgets) the block built under id, if any.
// engine_getPayloadV3 is a one-shot collection per the Engine API's
// contract: a consensus driver that calls it twice for the same id after
// the first call is not guaranteed a result.
func (b *Backend) takePayload(id PayloadID) (*types.Block, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	block, ok := b.payloads[id]
	if ok {
		delete(b.payloads, id)
	}
	return block, ok
}

func (b *Backend) headerByHash(hash common.Hash) (*types.Header, error) {
	return b.Store.GetHeader(hash)
}

// stateAt opens a State View against header's post-state root, the same
// way the rpc package's Backend does for its own read-only calls.
func (b *Backend) stateAt(header *types.Header) *state.StateDB {
	return state.New(header.StateRoot, b.Store)
}

// execute runs header/body through the Block Executor against sdb.
func (b *Backend) execute(header *types.Header, body types.Body, sdb *state.StateDB) (*executor.Result, error) {
	return executor.Process(header, body, sdb, b.Store, b.chainIDBig())
}

// now is the clock the server checks a JWT's iat claim against; it is a
// package variable so the clock can be replaced.
var now = time.Now
