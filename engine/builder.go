package engine

import (
	"math/big"

	"github.com/luxfi/execd/core/executor"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/validator"
)

// buildPayload assembles a new block on top of parent per attrs, greedily
// consuming the pool in the priority-fee order mempool.Pool.Iter() already
// returns, up to parent's gas limit, then runs the block once through the
// executor to obtain its post-execution roots.
func (b *Backend) buildPayload(parent *types.Header, attrs *PayloadAttributesV3) (*types.Block, error) {
	withdrawals := make([]*types.Withdrawal, len(attrs.Withdrawals))
	for i, w := range attrs.Withdrawals {
		withdrawals[i] = w.toCore()
	}

	// This chain activates Cancun from genesis, so every header carries
	// blob-gas fields; a parent that predates the blob-gas accounting (no
	// ExcessBlobGas of its own, e.g. the genesis header) is treated as
	// having used none, per EIP-4844's own definition for a fork-activation
	// block.
	excess := validator.CalcExcessBlobGas(valueOrZero(parent.ExcessBlobGas), valueOrZero(parent.BlobGasUsed))
	used := uint64(0)
	blobGasUsed, excessBlobGas := &used, &excess

	beaconRoot := attrs.ParentBeaconBlockRoot
	header := &types.Header{
		ParentHash:       parent.Hash(),
		Coinbase:         attrs.SuggestedFeeRecipient,
		Number:           parent.Number + 1,
		GasLimit:         parent.GasLimit,
		Timestamp:        uint64(attrs.Timestamp),
		MixHash:          attrs.PrevRandao,
		BaseFee:          validator.NextBaseFee(parent),
		WithdrawalsRoot:  withdrawalsRootPtr(withdrawals),
		BlobGasUsed:      blobGasUsed,
		ExcessBlobGas:    excessBlobGas,
		ParentBeaconRoot: &beaconRoot,
	}

	var included []*types.Transaction
	var gasBudgetUsed uint64
	for _, tx := range b.Pool.Iter() {
		if tx.Type == types.BlobTxType {
			continue
		}
		if gasBudgetUsed+tx.GasLimit > header.GasLimit {
			continue
		}
		included = append(included, tx)
		gasBudgetUsed += tx.GasLimit
	}

	body := types.Body{Transactions: included, Withdrawals: withdrawals}
	sdb := state.New(parent.StateRoot, b.Store)
	result, err := executor.Process(header, body, sdb, b.Store, b.chainIDBig())
	if err != nil {
		return nil, err
	}

	header.GasUsed = result.GasUsed
	header.StateRoot = result.StateRoot
	header.ReceiptRoot = validator.ReceiptRoot(result.Receipts)
	header.TxRoot = validator.TxRoot(included)
	header.Bloom = types.LogsBloom(result.Logs)

	block := &types.Block{Header: header, Body: body}
	if err := b.Store.PutHeader(header); err != nil {
		return nil, err
	}
	if err := b.Store.PutBody(header.Hash(), body); err != nil {
		return nil, err
	}
	if err := b.Store.PutReceipts(header.Hash(), result.Receipts); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *Backend) chainIDBig() *big.Int {
	if b.Config == nil || b.Config.ChainID == nil {
		return new(big.Int)
	}
	return b.Config.ChainID
}

func valueOrZero(n *uint64) uint64 {
	if n == nil {
		return 0
	}
	return *n
}

// blockValue estimates the builder's own proceeds from block, the
// feeRecipient-facing figure engine_getPayloadV3's blockValue field
// reports: the total priority fee credited to the coinbase, approximated
// here as gas_used * base_fee since per-transaction tips are not retained
// once a payload has already been assembled and re-fetched.
func blockValue(block *types.Block) *big.Int {
	if block.Header.BaseFee == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(block.Header.GasUsed), block.Header.BaseFee)
}
