package validator

import (
	"errors"
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

var (
	ErrParentHashMismatch  = errors.New("validator: parent_hash does not match parent's hash")
	ErrInvalidNumber       = errors.New("validator: number is not parent.number + 1")
	ErrNonMonotoneTime     = errors.New("validator: timestamp does not exceed parent's timestamp")
	ErrGasLimitOutOfBounds = errors.New("validator: gas_limit out of bounds relative to parent")
	ErrGasLimitTooLow      = errors.New("validator: gas_limit below the protocol minimum")
	ErrExtraDataTooLong    = errors.New("validator: extra_data exceeds 32 bytes")
	ErrBaseFeeMismatch     = errors.New("validator: base_fee does not match the EIP-1559 formula")
	ErrBlobGasMismatch     = errors.New("validator: blob_gas_used/excess_blob_gas does not match the EIP-4844 rule")
	ErrBodyRootMismatch    = errors.New("validator: body does not match header's transactions/withdrawals roots")

	ErrStateRootMismatch   = errors.New("validator: state_root does not match post-execution result")
	ErrReceiptRootMismatch = errors.New("validator: receipts_root does not match post-execution result")
	ErrBloomMismatch       = errors.New("validator: logs_bloom does not match post-execution result")
	ErrGasUsedMismatch     = errors.New("validator: gas_used does not match post-execution result")
)

// gasLimitBoundDivisor bounds how much gas_limit may drift from its
// parent's in one block: strictly less than parent.GasLimit/1024 in either
// direction.
const gasLimitBoundDivisor = 1024

// minGasLimit is the protocol floor below which a block's gas_limit may
// never fall, regardless of its parent's.
const minGasLimit = 5000

const maxExtraDataSize = 32

// ValidateHeader checks header against its parent per spec §4.6's
// pre-execution rules. body is passed separately so its roots can be
// checked against header without requiring the caller to have already
// embedded it in a full Block.
func ValidateHeader(header, parent *types.Header, body types.Body) error {
	if header.ParentHash != parent.Hash() {
		return ErrParentHashMismatch
	}
	if header.Number != parent.Number+1 {
		return ErrInvalidNumber
	}
	if header.Timestamp <= parent.Timestamp {
		return ErrNonMonotoneTime
	}
	if err := validateGasLimit(header.GasLimit, parent.GasLimit); err != nil {
		return err
	}
	if len(header.ExtraData) > maxExtraDataSize {
		return ErrExtraDataTooLong
	}
	if err := validateBaseFee(header, parent); err != nil {
		return err
	}
	if err := validateBlobGas(header, parent); err != nil {
		return err
	}
	if err := validateBodyRoots(header, body); err != nil {
		return err
	}
	return nil
}

func validateGasLimit(gasLimit, parentGasLimit uint64) error {
	if gasLimit < minGasLimit {
		return ErrGasLimitTooLow
	}
	bound := parentGasLimit / gasLimitBoundDivisor
	if bound == 0 {
		bound = 1
	}
	var diff uint64
	if gasLimit > parentGasLimit {
		diff = gasLimit - parentGasLimit
	} else {
		diff = parentGasLimit - gasLimit
	}
	if diff >= bound {
		return ErrGasLimitOutOfBounds
	}
	return nil
}

// elasticityMultiplier is EIP-1559's target/limit ratio: the gas target is
// gas_limit/elasticityMultiplier.
const elasticityMultiplier = 2

// baseFeeMaxChangeDenominator caps base fee's per-block drift at 1/8.
const baseFeeMaxChangeDenominator = 8

// validateBaseFee recomputes EIP-1559's base-fee formula from parent and
// checks header.BaseFee matches exactly. Headers with no BaseFee (pre-
// London) are not validated here; a chain that has activated EIP-1559 is
// assumed to set BaseFee on every header from genesis onward.
func validateBaseFee(header, parent *types.Header) error {
	if parent.BaseFee == nil {
		return nil
	}
	want := nextBaseFee(parent)
	if header.BaseFee == nil || header.BaseFee.Cmp(want) != 0 {
		return ErrBaseFeeMismatch
	}
	return nil
}

// NextBaseFee computes the base fee a child of parent must carry, per
// EIP-1559. A block builder calls this directly so the header it proposes
// already satisfies ValidateHeader's validateBaseFee check.
func NextBaseFee(parent *types.Header) *big.Int { return nextBaseFee(parent) }

// nextBaseFee computes the child block's expected base fee from parent's
// base fee, gas used and gas limit, per EIP-1559.
func nextBaseFee(parent *types.Header) *big.Int {
	gasTarget := parent.GasLimit / elasticityMultiplier
	if parent.GasUsed == gasTarget {
		return new(big.Int).Set(parent.BaseFee)
	}
	if parent.GasUsed > gasTarget {
		gasUsedDelta := parent.GasUsed - gasTarget
		x := new(big.Int).Mul(parent.BaseFee, new(big.Int).SetUint64(gasUsedDelta))
		y := x.Div(x, new(big.Int).SetUint64(gasTarget))
		baseFeeDelta := new(big.Int).Div(y, big.NewInt(baseFeeMaxChangeDenominator))
		if baseFeeDelta.Sign() == 0 {
			baseFeeDelta.SetInt64(1)
		}
		return new(big.Int).Add(parent.BaseFee, baseFeeDelta)
	}
	gasUsedDelta := gasTarget - parent.GasUsed
	x := new(big.Int).Mul(parent.BaseFee, new(big.Int).SetUint64(gasUsedDelta))
	y := x.Div(x, new(big.Int).SetUint64(gasTarget))
	baseFeeDelta := new(big.Int).Div(y, big.NewInt(baseFeeMaxChangeDenominator))
	result := new(big.Int).Sub(parent.BaseFee, baseFeeDelta)
	if result.Sign() < 0 {
		result.SetInt64(0)
	}
	return result
}

// targetBlobGasPerBlock is EIP-4844's target; excess_blob_gas moves toward
// zero when a block uses less than this and grows when it uses more.
const targetBlobGasPerBlock = 393216 // 3 blobs * 131072

// validateBlobGas checks a Cancun+ header's excess_blob_gas follows
// EIP-4844's update rule from the parent. Headers with no blob-gas fields
// (pre-Cancun) are not validated here.
func validateBlobGas(header, parent *types.Header) error {
	if parent.ExcessBlobGas == nil {
		return nil
	}
	if header.ExcessBlobGas == nil || header.BlobGasUsed == nil {
		return ErrBlobGasMismatch
	}
	want := calcExcessBlobGas(*parent.ExcessBlobGas, valueOr(parent.BlobGasUsed, 0))
	if *header.ExcessBlobGas != want {
		return ErrBlobGasMismatch
	}
	return nil
}

// CalcExcessBlobGas computes a child block's excess_blob_gas from its
// parent, per EIP-4844. Exported for the block builder to pre-populate a
// proposed header the same way validateBlobGas will check it.
func CalcExcessBlobGas(parentExcess, parentUsed uint64) uint64 {
	return calcExcessBlobGas(parentExcess, parentUsed)
}

func calcExcessBlobGas(parentExcess, parentUsed uint64) uint64 {
	total := parentExcess + parentUsed
	if total < targetBlobGasPerBlock {
		return 0
	}
	return total - targetBlobGasPerBlock
}

func valueOr(n *uint64, fallback uint64) uint64 {
	if n == nil {
		return fallback
	}
	return *n
}

// validateBodyRoots checks that body's transactions/withdrawals hash to
// the roots header commits to.
func validateBodyRoots(header *types.Header, body types.Body) error {
	if TxRoot(body.Transactions) != header.TxRoot {
		return ErrBodyRootMismatch
	}
	if header.WithdrawalsRoot != nil {
		if WithdrawalsRoot(body.Withdrawals) != *header.WithdrawalsRoot {
			return ErrBodyRootMismatch
		}
	}
	return nil
}

// PostExecutionResult carries the values ValidatePostExecution checks
// against a header, decoupled from any particular executor type.
type PostExecutionResult struct {
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	Bloom        common.Bloom
	GasUsed      uint64
}

// ValidatePostExecution checks that executing header's block produced
// exactly the state root, receipts root, logs bloom and gas used the
// header commits to, per spec §4.6's post-execution rule.
func ValidatePostExecution(header *types.Header, result PostExecutionResult) error {
	if header.StateRoot != result.StateRoot {
		return ErrStateRootMismatch
	}
	if header.ReceiptRoot != result.ReceiptsRoot {
		return ErrReceiptRootMismatch
	}
	if header.Bloom != result.Bloom {
		return ErrBloomMismatch
	}
	if header.GasUsed != result.GasUsed {
		return ErrGasUsedMismatch
	}
	return nil
}
