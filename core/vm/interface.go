package vm

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

// StateDB is the narrow capability the interpreter needs from the State
// View (core/state.StateDB implements it) to execute a call frame: account
// and storage access, balance transfer, code install/lookup, refund and
// access-list bookkeeping, and nested-call snapshot/revert.
type StateDB interface {
	CreateAccount(common.Address)

	GetBalance(common.Address) *big.Int
	AddBalance(common.Address, *big.Int)
	SubBalance(common.Address, *big.Int)

	GetNonce(common.Address) uint64
	SetNonce(common.Address, uint64)

	GetCodeHash(common.Address) common.Hash
	GetCode(common.Address) []byte
	SetCode(common.Address, []byte)
	GetCodeSize(common.Address) int

	AddRefund(uint64)
	SubRefund(uint64)
	Refund() uint64

	GetStorage(common.Address, common.Hash) common.Hash
	SetStorage(common.Address, common.Hash, common.Hash)

	GetTransientStorage(common.Address, common.Hash) common.Hash
	SetTransientStorage(common.Address, common.Hash, common.Hash)

	SelfDestruct(common.Address, bool)
	CreatedThisTx(common.Address) bool

	Exist(common.Address) bool
	Empty(common.Address) bool

	AddressInAccessList(common.Address) bool
	SlotInAccessList(common.Address, common.Hash) bool
	AddAddressToAccessList(common.Address) bool
	AddSlotToAccessList(common.Address, common.Hash) bool

	Snapshot() int
	RevertTo(int)

	AddLog(*types.Log)
}

// BlockContext carries block-wide values the interpreter needs but that
// never change during a single call tree's execution (spec §4.3's read-only
// environment inputs).
type BlockContext struct {
	Coinbase    common.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	Difficulty  *big.Int // PREVRANDAO value post-Merge
	BaseFee     *big.Int
	BlobBaseFee *big.Int
	GetHash     func(n uint64) common.Hash

	// CanTransfer/Transfer are pluggable so a privileged-transaction
	// context (spec's custom L2 tx type) can skip balance checks while
	// still routing through the same EVM entry point.
	CanTransfer func(StateDB, common.Address, *big.Int) bool
	Transfer    func(StateDB, common.Address, common.Address, *big.Int)
}

// TxContext carries the values that change per transaction.
type TxContext struct {
	Origin     common.Address
	GasPrice   *big.Int
	BlobHashes []common.Hash
	BlobFeeCap *big.Int
}

// EVMLogger receives tracing callbacks at transaction, call-frame and
// opcode granularity, named to match the hook points every mainstream Go
// Ethereum client exposes for tracers.
type EVMLogger interface {
	CaptureTxStart(gasLimit uint64)
	CaptureTxEnd(restGas uint64)
	CaptureStart(env *EVM, from, to common.Address, create bool, input []byte, gas uint64, value *big.Int)
	CaptureEnd(output []byte, gasUsed uint64, err error)
	CaptureEnter(typ OpCode, from, to common.Address, input []byte, gas uint64, value *big.Int)
	CaptureExit(output []byte, gasUsed uint64, err error)
	CaptureState(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, rData []byte, depth int, err error)
	CaptureFault(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, depth int, err error)
}
