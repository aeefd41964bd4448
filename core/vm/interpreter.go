package vm

// Interpreter runs one call frame's bytecode to completion against a
// shared EVM environment, per spec §4.3's fetch-decode-execute loop.
type Interpreter struct {
	evm      *EVM
	readOnly bool

	returnData []byte
}

func newInterpreter(evm *EVM) *Interpreter {
	return &Interpreter{evm: evm}
}

// Run executes contract's code starting at pc 0 until it halts (STOP,
// RETURN, REVERT, SELFDESTRUCT) or faults (out of gas, invalid opcode,
// stack under/overflow, invalid jump), returning the output bytes (the
// RETURN/REVERT payload) and any fault.
func (in *Interpreter) Run(contract *Contract, input []byte, readOnly bool) ([]byte, error) {
	prevReadOnly := in.readOnly
	if readOnly && !in.readOnly {
		in.readOnly = true
		defer func() { in.readOnly = prevReadOnly }()
	}
	in.returnData = nil

	contract.input = input
	stack := newStack()
	memory := newMemory()
	scope := &ScopeContext{Memory: memory, Stack: stack, Contract: contract}

	var (
		pc     uint64
		op     OpCode
		output []byte
		err    error
	)

	for {
		if int(pc) >= len(contract.code) {
			return nil, nil
		}
		op = OpCode(contract.code[pc])
		operation := in.evm.jumpTable[op]
		if operation == nil {
			return nil, ErrInvalidOpCode
		}
		if stack.len() < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if stack.len() > operation.maxStack {
			return nil, ErrStackOverflow
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size, ok := operation.memorySize(stack)
			if !ok {
				return nil, ErrGasUintOverflow
			}
			memorySize = size
		}

		cost := operation.constantGas
		if operation.dynamicGas != nil {
			dynCost, dynErr := operation.dynamicGas(in.evm, contract, stack, memory, memorySize)
			if dynErr != nil {
				return nil, dynErr
			}
			cost += dynCost
		}
		if memorySize > 0 {
			expansionCost, cErr := memoryGasCost(memory, memorySize)
			if cErr != nil {
				return nil, cErr
			}
			cost += expansionCost
		}
		if !contract.UseGas(cost) {
			return nil, ErrOutOfGas
		}
		if memorySize > 0 {
			memory.Resize(memorySize)
		}

		if in.evm.Logger != nil {
			in.evm.Logger.CaptureState(pc, op, contract.Gas+cost, cost, scope, in.returnData, in.evm.depth, nil)
		}

		output, err = operation.execute(&pc, in, scope)
		if err != nil {
			switch err {
			case errStopExecution:
				return output, nil
			case ErrExecutionReverted:
				return output, err
			default:
				if in.evm.Logger != nil {
					in.evm.Logger.CaptureFault(pc, op, contract.Gas, cost, scope, in.evm.depth, err)
				}
				return nil, err
			}
		}
		pc++
	}
}
