// Package vm implements the EVM interpreter described in spec §4.3: an
// operand stack, byte-addressable memory, a gas-metered fetch-decode-execute
// loop, and the CALL/CREATE family's call-frame and snapshot/revert
// semantics.
package vm

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// ChainConfig carries the chain-identifying parameters the interpreter
// reads (CHAINID) and the executor uses to size limits; fork-gating beyond
// the single Cancun-era instruction set this interpreter targets is out of
// scope (see DESIGN.md).
type ChainConfig struct {
	ChainID *big.Int
}

// maxCallDepth bounds CALL/CREATE nesting, per spec §4.3's invariant that a
// call stack cannot grow unboundedly.
const maxCallDepth = 1024

// EVM is the shared execution environment for one transaction's entire
// call tree: one Contract per frame is layered on top of it via Call and
// Create, but the jump table, state view and block context are the same
// throughout.
type EVM struct {
	Context     BlockContext
	TxContext   TxContext
	StateDB     StateDB
	ChainConfig ChainConfig
	Config      Config
	Logger      EVMLogger

	jumpTable   *jumpTable
	interpreter *Interpreter
	depth       int
}

// Config holds the handful of interpreter knobs the executor may want to
// flip per call (no-op today beyond NoBaseFee, kept for tracing/gas-estimation
// callers that want to waive the base-fee floor).
type Config struct {
	NoBaseFee bool
}

// NewEVM constructs an EVM bound to one block/tx context and state view.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, chainConfig ChainConfig, config Config) *EVM {
	evm := &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		StateDB:     statedb,
		ChainConfig: chainConfig,
		Config:      config,
		jumpTable:   cancunInstructionSet,
	}
	evm.interpreter = newInterpreter(evm)
	return evm
}

var cancunInstructionSet = newCancunInstructionSet()

// Call executes the code at addr as a message call from caller, optionally
// carrying value, per spec §4.3's CALL semantics: a fresh snapshot is taken
// so a failing call can be rolled back without unwinding the parent frame.
func (evm *EVM) Call(caller common.Address, addr common.Address, input []byte, gas uint64, value *big.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	if value.Sign() != 0 && !evm.Context.CanTransfer(evm.StateDB, caller, value) {
		return nil, gas, ErrInsufficientBalance
	}
	snapshot := evm.StateDB.Snapshot()

	if !evm.StateDB.Exist(addr) {
		if value.Sign() == 0 && len(evm.StateDB.GetCode(addr)) == 0 {
			// EIP-161: calling an empty account with zero value is a no-op,
			// never materializing it.
		} else {
			evm.StateDB.CreateAccount(addr)
		}
	}
	evm.Context.Transfer(evm.StateDB, caller, addr, value)

	if ret, leftOverGas, handled, perr := runPrecompile(addr, input, gas); handled {
		if perr != nil {
			evm.StateDB.RevertTo(snapshot)
		}
		return ret, leftOverGas, perr
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}
	contract := newContract(caller, addr, value, gas, code, evm.StateDB.GetCodeHash(addr), input)
	evm.depth++
	ret, err = evm.interpreter.Run(contract, input, evm.interpreter.readOnly)
	evm.depth--
	evm.interpreter.returnData = ret
	if err != nil {
		evm.StateDB.RevertTo(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// CallCode is CALL's less commonly used sibling: it runs addr's code
// against caller's own storage and address, keeping caller unchanged.
func (evm *EVM) CallCode(caller common.Address, addr common.Address, input []byte, gas uint64, value *big.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	if value.Sign() != 0 && !evm.Context.CanTransfer(evm.StateDB, caller, value) {
		return nil, gas, ErrInsufficientBalance
	}
	snapshot := evm.StateDB.Snapshot()

	if ret, leftOverGas, handled, perr := runPrecompile(addr, input, gas); handled {
		if perr != nil {
			evm.StateDB.RevertTo(snapshot)
		}
		return ret, leftOverGas, perr
	}

	code := evm.StateDB.GetCode(addr)
	contract := newContract(caller, caller, value, gas, code, evm.StateDB.GetCodeHash(addr), input)
	if len(code) == 0 {
		return nil, gas, nil
	}
	evm.depth++
	ret, err = evm.interpreter.Run(contract, input, evm.interpreter.readOnly)
	evm.depth--
	evm.interpreter.returnData = ret
	if err != nil {
		evm.StateDB.RevertTo(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// DelegateCall runs addr's code in the current frame's own context:
// caller, self and value are all inherited unchanged from the parent, per
// spec §4.3.
func (evm *EVM) DelegateCall(callerContract *Contract, addr common.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	snapshot := evm.StateDB.Snapshot()

	if ret, leftOverGas, handled, perr := runPrecompile(addr, input, gas); handled {
		if perr != nil {
			evm.StateDB.RevertTo(snapshot)
		}
		return ret, leftOverGas, perr
	}

	code := evm.StateDB.GetCode(addr)
	contract := newContract(callerContract.Caller(), callerContract.Address(), callerContract.Value(), gas, code, evm.StateDB.GetCodeHash(addr), input)
	contract.IsDelegate = true
	if len(code) == 0 {
		return nil, gas, nil
	}
	evm.depth++
	ret, err = evm.interpreter.Run(contract, input, evm.interpreter.readOnly)
	evm.depth--
	evm.interpreter.returnData = ret
	if err != nil {
		evm.StateDB.RevertTo(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// StaticCall runs addr's code with writes forbidden (SSTORE, LOG, CREATE,
// SELFDESTRUCT, and any value-bearing sub-call all fault), per spec §4.3.
func (evm *EVM) StaticCall(caller common.Address, addr common.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	snapshot := evm.StateDB.Snapshot()

	if ret, leftOverGas, handled, perr := runPrecompile(addr, input, gas); handled {
		if perr != nil {
			evm.StateDB.RevertTo(snapshot)
		}
		return ret, leftOverGas, perr
	}

	code := evm.StateDB.GetCode(addr)
	contract := newContract(caller, addr, new(big.Int), gas, code, evm.StateDB.GetCodeHash(addr), input)
	if len(code) == 0 {
		return nil, gas, nil
	}
	prevReadOnly := evm.interpreter.readOnly
	evm.interpreter.readOnly = true
	evm.depth++
	ret, err = evm.interpreter.Run(contract, input, true)
	evm.depth--
	evm.interpreter.readOnly = prevReadOnly
	evm.interpreter.returnData = ret
	if err != nil {
		evm.StateDB.RevertTo(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// Create deploys new contract code returned by running initCode as a
// message call, per spec §4.3's CREATE.
func (evm *EVM) Create(caller common.Address, initCode []byte, gas uint64, value *big.Int) (ret []byte, contractAddr common.Address, leftOverGas uint64, err error) {
	nonce := evm.StateDB.GetNonce(caller)
	contractAddr = CreateAddress(caller, nonce)
	return evm.create(caller, initCode, gas, value, contractAddr)
}

// Create2 deploys at the deterministic address keccak(0xff ++ caller ++
// salt ++ keccak(initCode))[12:], per spec §4.3's CREATE2.
func (evm *EVM) Create2(caller common.Address, initCode []byte, gas uint64, value *big.Int, salt common.Hash) (ret []byte, contractAddr common.Address, leftOverGas uint64, err error) {
	codeHash := common.Keccak256Hash(initCode)
	contractAddr = CreateAddress2(caller, salt, codeHash.Bytes())
	return evm.create(caller, initCode, gas, value, contractAddr)
}

func (evm *EVM) create(caller common.Address, initCode []byte, gas uint64, value *big.Int, addr common.Address) ([]byte, common.Address, uint64, error) {
	if evm.depth > maxCallDepth {
		return nil, common.Address{}, gas, ErrDepth
	}
	if len(initCode) > MaxInitCodeSize {
		return nil, common.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	if value.Sign() != 0 && !evm.Context.CanTransfer(evm.StateDB, caller, value) {
		return nil, common.Address{}, gas, ErrInsufficientBalance
	}
	if evm.StateDB.GetNonce(caller)+1 == 0 {
		return nil, common.Address{}, gas, ErrNonceUintOverflow
	}
	evm.StateDB.SetNonce(caller, evm.StateDB.GetNonce(caller)+1)

	if evm.StateDB.Exist(addr) && (evm.StateDB.GetNonce(addr) != 0 || len(evm.StateDB.GetCode(addr)) != 0) {
		return nil, common.Address{}, gas, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	evm.Context.Transfer(evm.StateDB, caller, addr, value)

	contract := newContract(caller, addr, value, gas, initCode, common.Keccak256Hash(initCode), nil)
	evm.depth++
	ret, err := evm.interpreter.Run(contract, nil, false)
	evm.depth--
	evm.interpreter.returnData = ret

	if err == nil {
		if len(ret) > MaxCodeSize {
			err = ErrMaxCodeSizeExceeded
		} else if len(ret) > 0 && ret[0] == 0xef {
			err = ErrInvalidCode
		} else {
			codeCost := uint64(len(ret)) * GasCreateData
			if !contract.UseGas(codeCost) {
				err = ErrCodeStoreOutOfGas
			} else {
				evm.StateDB.SetCode(addr, ret)
			}
		}
	}
	if err != nil {
		evm.StateDB.RevertTo(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
		return nil, addr, contract.Gas, err
	}
	return ret, addr, contract.Gas, nil
}

// CreateAddress computes CREATE's deterministic contract address:
// keccak(rlp([sender, nonce]))[12:].
func CreateAddress(sender common.Address, nonce uint64) common.Address {
	enc := rlp.Encode(rlp.List(rlp.String(sender.Bytes()), rlp.Uint64(nonce)))
	hash := common.Keccak256Hash(enc)
	return common.BytesToAddress(hash.Bytes()[12:])
}

// CreateAddress2 computes CREATE2's deterministic contract address.
func CreateAddress2(sender common.Address, salt common.Hash, codeHash []byte) common.Address {
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, codeHash...)
	hash := common.Keccak256Hash(buf)
	return common.BytesToAddress(hash.Bytes()[12:])
}
