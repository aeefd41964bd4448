package vm

import (
	"math/big"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/luxfi/execd/common"
)

// TestInterpreterCallsCaptureStateEachStep checks that a CALL-frame's
// interpreter loop reports CaptureState to an attached EVMLogger once per
// executed instruction, using a hand-written gomock mock rather than a
// real tracer implementation.
func TestInterpreterCallsCaptureStateEachStep(t *testing.T) {
	evm, sdb := testEVM(t)
	addr := common.HexToAddress("0x42")
	code := []byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x02,
		byte(ADD),
		byte(POP),
		byte(STOP),
	}
	sdb.SetCode(addr, code)

	ctrl := gomock.NewController(t)
	logger := NewMockEVMLogger(ctrl)
	// 5 instructions: PUSH1, PUSH1, ADD, POP, STOP.
	logger.EXPECT().CaptureState(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(5)
	evm.Logger = logger

	_, _, err := evm.Call(common.HexToAddress("0x01"), addr, nil, 100_000, new(big.Int))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
