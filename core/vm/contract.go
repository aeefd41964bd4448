package vm

import (
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/execd/common"
)

// ScopeContext groups the per-call-frame state an EVMLogger's CaptureState
// hook is given: the operand stack and memory live for exactly one
// Contract's execution.
type ScopeContext struct {
	Memory   *Memory
	Stack    *Stack
	Contract *Contract
}

// Contract is the running code and environment of one call frame: the
// executing code, the address it runs as (self) and the address that
// invoked it (caller), the value attached to the call, and the remaining
// gas budget.
type Contract struct {
	CallerAddress common.Address
	caller        common.Address
	self          common.Address

	code     []byte
	codeHash common.Hash
	input    []byte

	Gas   uint64
	value *big.Int

	jumpdests *jumpdestSet

	// IsDelegate marks a DELEGATECALL frame, which runs the target
	// address's code against self's storage and keeps caller/value
	// unchanged from the parent, per spec §4.3.
	IsDelegate bool
}

var jumpdestCache = newJumpdestCache()

func newContract(caller, self common.Address, value *big.Int, gas uint64, code []byte, codeHash common.Hash, input []byte) *Contract {
	return &Contract{
		CallerAddress: caller,
		caller:        caller,
		self:          self,
		code:          code,
		codeHash:      codeHash,
		input:         input,
		Gas:           gas,
		value:         value,
		jumpdests:     jumpdestCache.get(codeHash, code),
	}
}

// Address returns the address this contract is executing as.
func (c *Contract) Address() common.Address { return c.self }

// Caller returns the address that invoked this call frame.
func (c *Contract) Caller() common.Address { return c.caller }

// Value returns the wei value attached to this call.
func (c *Contract) Value() *big.Int { return c.value }

// UseGas deducts amount from the contract's remaining gas, returning false
// if there isn't enough (the interpreter turns this into ErrOutOfGas).
func (c *Contract) UseGas(amount uint64) bool {
	if c.Gas < amount {
		return false
	}
	c.Gas -= amount
	return true
}

// validJumpdest reports whether dest is both in range and lands on a
// JUMPDEST byte that isn't itself inside a PUSH immediate.
func (c *Contract) validJumpdest(dest *big.Int) bool {
	udest := dest.Uint64()
	if dest.BitLen() > 63 || udest >= uint64(len(c.code)) {
		return false
	}
	if OpCode(c.code[udest]) != JUMPDEST {
		return false
	}
	return c.jumpdests.has(udest)
}

// jumpdestSet is the memoized analysis of which byte offsets are valid jump
// destinations, keyed by code hash so identical contract code (common
// across many deployed instances) is analyzed only once.
type jumpdestSet struct {
	bits []bool
}

func analyzeJumpdests(code []byte) *jumpdestSet {
	bits := make([]bool, len(code))
	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		if op == JUMPDEST {
			bits[pc] = true
			pc++
			continue
		}
		if op >= PUSH1 && op <= PUSH32 {
			pc += int(op-PUSH1) + 2
			continue
		}
		pc++
	}
	return &jumpdestSet{bits: bits}
}

func (j *jumpdestSet) has(pc uint64) bool {
	return pc < uint64(len(j.bits)) && j.bits[pc]
}

// jumpdestLRUCache memoizes jump-destination analysis by code hash so a
// contract called repeatedly across many transactions is analyzed once.
type jumpdestLRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func newJumpdestCache() *jumpdestLRUCache {
	c, _ := lru.New(1024)
	return &jumpdestLRUCache{cache: c}
}

func (j *jumpdestLRUCache) get(codeHash common.Hash, code []byte) *jumpdestSet {
	j.mu.Lock()
	defer j.mu.Unlock()
	if v, ok := j.cache.Get(codeHash); ok {
		return v.(*jumpdestSet)
	}
	analysis := analyzeJumpdests(code)
	j.cache.Add(codeHash, analysis)
	return analysis
}
