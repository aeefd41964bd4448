package vm

import "errors"

// Execution errors are never distinguished by the caller beyond "this call
// reverted and consumed its gas" (spec §4.3); they exist to carry a
// human-readable reason to traces and RPC error responses.
var (
	ErrOutOfGas                 = errors.New("out of gas")
	ErrCodeStoreOutOfGas        = errors.New("contract creation code storage out of gas")
	ErrDepth                    = errors.New("max call depth exceeded")
	ErrInsufficientBalance      = errors.New("insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrExecutionReverted        = errors.New("execution reverted")
	ErrMaxCodeSizeExceeded      = errors.New("max code size exceeded")
	ErrMaxInitCodeSizeExceeded  = errors.New("max initcode size exceeded")
	ErrInvalidJump              = errors.New("invalid jump destination")
	ErrWriteProtection          = errors.New("write protection")
	ErrReturnDataOutOfBounds    = errors.New("return data out of bounds")
	ErrGasUintOverflow          = errors.New("gas uint64 overflow")
	ErrInvalidCode              = errors.New("invalid code: must not begin with 0xef")
	ErrNonceUintOverflow        = errors.New("nonce uint64 overflow")
	ErrInvalidOpCode            = errors.New("invalid opcode")
	ErrStackUnderflow           = errStackUnderflow
	ErrStackOverflow            = errStackOverflow
)

var errGasUintOverflow = ErrGasUintOverflow

// errStopExecution is the sentinel STOP/RETURN/REVERT/SELFDESTRUCT use to
// unwind the interpreter loop without signaling a fault; the interpreter
// recognizes it and reports a clean halt.
var errStopExecution = errors.New("vm: stop execution")
