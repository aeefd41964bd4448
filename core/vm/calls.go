package vm

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/execd/common"
)

func opCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	stack := scope.Stack
	gas, addrWord, value := stack.pop(), stack.pop(), stack.pop()
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	if interp.readOnly && value.Sign() != 0 {
		return nil, ErrWriteProtection
	}
	addr := uint256ToAddress(&addrWord)
	args := scope.Memory.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

	valueBig := value.ToBig()
	avail := scope.Contract.Gas
	capGas := avail - avail/64 // EIP-150: at most 63/64 of the caller's remaining gas
	callGas := gas.Uint64()
	if !value.IsZero() {
		callGas += GasCallStipend
	}
	if callGas > capGas {
		callGas = capGas
	}
	scope.Contract.UseGas(callGas)

	ret, returnGas, err := interp.evm.Call(scope.Contract.Address(), addr, args, callGas, valueBig)
	scope.Contract.Gas += returnGas

	writeCallResult(scope, stack, retOffset, retSize, ret, err)
	return nil, nil
}

func opCallCode(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	stack := scope.Stack
	gas, addrWord, value := stack.pop(), stack.pop(), stack.pop()
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	addr := uint256ToAddress(&addrWord)
	args := scope.Memory.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

	valueBig := value.ToBig()
	avail := scope.Contract.Gas
	capGas := avail - avail/64 // EIP-150: at most 63/64 of the caller's remaining gas
	callGas := gas.Uint64()
	if !value.IsZero() {
		callGas += GasCallStipend
	}
	if callGas > capGas {
		callGas = capGas
	}
	scope.Contract.UseGas(callGas)

	ret, returnGas, err := interp.evm.CallCode(scope.Contract.Address(), addr, args, callGas, valueBig)
	scope.Contract.Gas += returnGas

	writeCallResult(scope, stack, retOffset, retSize, ret, err)
	return nil, nil
}

func opDelegateCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	stack := scope.Stack
	gas, addrWord := stack.pop(), stack.pop()
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	addr := uint256ToAddress(&addrWord)
	args := scope.Memory.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

	avail := scope.Contract.Gas
	capGas := avail - avail/64 // EIP-150: at most 63/64 of the caller's remaining gas
	callGas := gas.Uint64()
	if callGas > capGas {
		callGas = capGas
	}
	scope.Contract.UseGas(callGas)

	ret, returnGas, err := interp.evm.DelegateCall(scope.Contract, addr, args, callGas)
	scope.Contract.Gas += returnGas

	writeCallResult(scope, stack, retOffset, retSize, ret, err)
	return nil, nil
}

func opStaticCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	stack := scope.Stack
	gas, addrWord := stack.pop(), stack.pop()
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	addr := uint256ToAddress(&addrWord)
	args := scope.Memory.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

	avail := scope.Contract.Gas
	capGas := avail - avail/64 // EIP-150: at most 63/64 of the caller's remaining gas
	callGas := gas.Uint64()
	if callGas > capGas {
		callGas = capGas
	}
	scope.Contract.UseGas(callGas)

	ret, returnGas, err := interp.evm.StaticCall(scope.Contract.Address(), addr, args, callGas)
	scope.Contract.Gas += returnGas

	writeCallResult(scope, stack, retOffset, retSize, ret, err)
	return nil, nil
}

// writeCallResult pushes the call's success flag, copies return data into
// the caller's memory window, and stashes the raw output for a following
// RETURNDATASIZE/RETURNDATACOPY, mirroring every CALL-family opcode's
// shared tail behavior.
func writeCallResult(scope *ScopeContext, stack *Stack, retOffset, retSize uint256.Int, ret []byte, err error) {
	if err == nil || err == ErrExecutionReverted {
		n := retSize.Uint64()
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		scope.Memory.Set(retOffset.Uint64(), n, ret[:n])
	}
	success := new(uint256.Int)
	if err == nil {
		success.SetOne()
	}
	stack.push(success)
}

func opCreate(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	stack := scope.Stack
	value, offset, size := stack.pop(), stack.pop(), stack.pop()
	initCode := scope.Memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))

	avail := scope.Contract.Gas
	gas := avail - avail/64 // EIP-150: CREATE forwards at most 63/64 of the caller's remaining gas
	scope.Contract.UseGas(gas)

	_, addr, returnGas, err := interp.evm.Create(scope.Contract.Address(), initCode, gas, value.ToBig())
	scope.Contract.Gas += returnGas

	pushCreateResult(stack, addr, err)
	return nil, nil
}

func opCreate2(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	stack := scope.Stack
	value, offset, size, saltWord := stack.pop(), stack.pop(), stack.pop(), stack.pop()
	initCode := scope.Memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	salt := common.Hash(saltWord.Bytes32())

	avail := scope.Contract.Gas
	gas := avail - avail/64 // EIP-150: CREATE2 forwards at most 63/64 of the caller's remaining gas
	scope.Contract.UseGas(gas)

	_, addr, returnGas, err := interp.evm.Create2(scope.Contract.Address(), initCode, gas, value.ToBig(), salt)
	scope.Contract.Gas += returnGas

	pushCreateResult(stack, addr, err)
	return nil, nil
}

func pushCreateResult(stack *Stack, addr common.Address, err error) {
	if err != nil {
		stack.push(new(uint256.Int))
		return
	}
	stack.push(addressToUint256(addr))
}

func opReturn(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.pop(), scope.Stack.pop()
	ret := scope.Memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, errStopExecution
}

func opRevert(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.pop(), scope.Stack.pop()
	ret := scope.Memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, ErrExecutionReverted
}

func opSelfdestruct(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	beneficiaryWord := scope.Stack.pop()
	beneficiary := uint256ToAddress(&beneficiaryWord)
	self := scope.Contract.Address()
	balance := interp.evm.StateDB.GetBalance(self)
	interp.evm.StateDB.AddBalance(beneficiary, balance)
	// EIP-6780: only an account created earlier in this same transaction is
	// actually removed; anything older only has its balance swept above.
	interp.evm.StateDB.SelfDestruct(self, interp.evm.StateDB.CreatedThisTx(self))
	return nil, errStopExecution
}
