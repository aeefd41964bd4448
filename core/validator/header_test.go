package validator

import (
	"math/big"
	"testing"

	"github.com/luxfi/execd/core/types"
)

func TestValidateHeaderAcceptsWellFormedChild(t *testing.T) {
	parent := &types.Header{
		Number:    10,
		Timestamp: 1000,
		GasLimit:  30_000_000,
		GasUsed:   15_000_000,
		BaseFee:   big.NewInt(1_000_000_000),
	}
	child := &types.Header{
		ParentHash: parent.Hash(),
		Number:     11,
		Timestamp:  1001,
		GasLimit:   30_000_000,
		BaseFee:    nextBaseFee(parent),
	}
	child.TxRoot = TxRoot(nil)

	if err := ValidateHeader(child, parent, types.Body{}); err != nil {
		t.Fatalf("expected valid header, got %v", err)
	}
}

func TestValidateHeaderRejectsBadParentHash(t *testing.T) {
	parent := &types.Header{Number: 10, Timestamp: 1000, GasLimit: 30_000_000}
	child := &types.Header{
		ParentHash: [32]byte{0xff},
		Number:     11,
		Timestamp:  1001,
		GasLimit:   30_000_000,
	}
	if err := ValidateHeader(child, parent, types.Body{}); err != ErrParentHashMismatch {
		t.Fatalf("expected ErrParentHashMismatch, got %v", err)
	}
}

func TestValidateHeaderRejectsNonMonotoneTimestamp(t *testing.T) {
	parent := &types.Header{Number: 10, Timestamp: 1000, GasLimit: 30_000_000}
	child := &types.Header{
		ParentHash: parent.Hash(),
		Number:     11,
		Timestamp:  1000,
		GasLimit:   30_000_000,
	}
	if err := ValidateHeader(child, parent, types.Body{}); err != ErrNonMonotoneTime {
		t.Fatalf("expected ErrNonMonotoneTime, got %v", err)
	}
}

func TestValidateHeaderRejectsGasLimitJump(t *testing.T) {
	parent := &types.Header{Number: 10, Timestamp: 1000, GasLimit: 30_000_000}
	child := &types.Header{
		ParentHash: parent.Hash(),
		Number:     11,
		Timestamp:  1001,
		GasLimit:   40_000_000, // far beyond the +parent/1024 bound
	}
	if err := ValidateHeader(child, parent, types.Body{}); err != ErrGasLimitOutOfBounds {
		t.Fatalf("expected ErrGasLimitOutOfBounds, got %v", err)
	}
}

func TestValidateHeaderRejectsBadBaseFee(t *testing.T) {
	parent := &types.Header{
		Number: 10, Timestamp: 1000, GasLimit: 30_000_000, GasUsed: 29_000_000,
		BaseFee: big.NewInt(1_000_000_000),
	}
	child := &types.Header{
		ParentHash: parent.Hash(),
		Number:     11,
		Timestamp:  1001,
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(1_000_000_000), // didn't rise despite over-target usage
	}
	if err := ValidateHeader(child, parent, types.Body{}); err != ErrBaseFeeMismatch {
		t.Fatalf("expected ErrBaseFeeMismatch, got %v", err)
	}
}

func TestNextBaseFeeRisesWhenOverTarget(t *testing.T) {
	parent := &types.Header{GasLimit: 30_000_000, GasUsed: 30_000_000, BaseFee: big.NewInt(1_000_000_000)}
	got := nextBaseFee(parent)
	if got.Cmp(parent.BaseFee) <= 0 {
		t.Fatalf("expected base fee to rise when gas used is at the limit, got %v", got)
	}
}

func TestNextBaseFeeFallsWhenUnderTarget(t *testing.T) {
	parent := &types.Header{GasLimit: 30_000_000, GasUsed: 0, BaseFee: big.NewInt(1_000_000_000)}
	got := nextBaseFee(parent)
	if got.Cmp(parent.BaseFee) >= 0 {
		t.Fatalf("expected base fee to fall when block was empty, got %v", got)
	}
}

func TestCalcExcessBlobGasSaturatesAtZero(t *testing.T) {
	if got := calcExcessBlobGas(0, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestValidatePostExecutionMismatch(t *testing.T) {
	header := &types.Header{GasUsed: 100}
	err := ValidatePostExecution(header, PostExecutionResult{GasUsed: 200})
	if err != ErrGasUsedMismatch {
		t.Fatalf("expected ErrGasUsedMismatch, got %v", err)
	}
}
