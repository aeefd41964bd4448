package executor

import (
	"errors"
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/vm"
)

var (
	// ErrGasLimitExceeded is returned when a block's transactions would
	// together spend more gas than the header's GasLimit allows.
	ErrGasLimitExceeded = errors.New("executor: block gas limit exceeded")
	// ErrInsufficientFunds is returned when a sender cannot cover a
	// transaction's up-front cost (gas_limit*fee_cap + value [+ blob cost]).
	ErrInsufficientFunds = errors.New("executor: insufficient funds for gas * price + value")
	// ErrNonceTooLow/ErrNonceTooHigh reject a transaction whose nonce does
	// not match the sender's current account nonce exactly.
	ErrNonceTooLow  = errors.New("executor: nonce too low")
	ErrNonceTooHigh = errors.New("executor: nonce too high")
	// ErrIntrinsicGas is returned when a transaction's GasLimit is below the
	// intrinsic cost its shape alone requires.
	ErrIntrinsicGas = errors.New("executor: intrinsic gas exceeds gas limit")
)

// beaconRootsAddress is the fixed system contract EIP-4788 writes the
// parent beacon block root into at the start of every Cancun+ block.
var beaconRootsAddress = common.HexToAddress("0x000F3df6D732807Ef1319fB7B8bB8522d0Beac02")

// systemAddress is the sender EIP-4788 (and other protocol-level system
// calls) use: it pays no fee, consumes no nonce, and is never a wallet.
var systemAddress = common.HexToAddress("0xfffffffffffffffffffffffffffffffffffffffe")

const systemCallGas = 30_000_000

// Result is what Process returns for one executed block: its receipts
// (CumulativeGasUsed on the last entry must equal the header's GasUsed, invariant 2)
// and the resulting state root.
type Result struct {
	Receipts  []*types.Receipt
	Logs      []*types.Log
	StateRoot common.Hash
	GasUsed   uint64
}

// Process applies block's transactions and withdrawals against sdb,
// starting from the State View's currently-open root, per spec §4.5:
//  1. pre-execution protocol writes (beacon root, then withdrawals are
//     applied after execution per fork rules used here),
//  2. the per-transaction loop,
//  3. post-execution state commitment.
//
// header must already be the block's own header (not the parent); ancestor
// lookups for BLOCKHASH walk backward through st from header.ParentHash.
func Process(header *types.Header, body types.Body, sdb *state.StateDB, st *store.Store, chainID *big.Int) (*Result, error) {
	blockCtx := NewBlockContext(header, st)

	if header.ParentBeaconRoot != nil {
		if err := writeBeaconRoot(*header.ParentBeaconRoot, blockCtx, sdb, chainID); err != nil {
			return nil, err
		}
	}

	var (
		receipts    []*types.Receipt
		allLogs     []*types.Log
		cumGasUsed  uint64
	)
	for i, tx := range body.Transactions {
		receipt, err := applyTransaction(header, blockCtx, tx, uint(i), sdb, chainID, &cumGasUsed)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
		allLogs = append(allLogs, receipt.Logs...)
	}
	if cumGasUsed > header.GasLimit {
		return nil, ErrGasLimitExceeded
	}

	for _, w := range body.Withdrawals {
		// Amount is denominated in Gwei; the account balance is in Wei.
		amount := new(big.Int).Mul(new(big.Int).SetUint64(w.Amount), big.NewInt(1_000_000_000))
		sdb.AddBalance(w.Address, amount)
	}

	root, err := sdb.Commit()
	if err != nil {
		return nil, err
	}

	return &Result{
		Receipts:  receipts,
		Logs:      allLogs,
		StateRoot: root,
		GasUsed:   cumGasUsed,
	}, nil
}

// writeBeaconRoot performs EIP-4788's system call: a message from
// systemAddress to beaconRootsAddress carrying the beacon root as calldata,
// outside the transaction loop so it is never gossiped, never charged gas
// against a user, and never bumps any account's nonce.
func writeBeaconRoot(beaconRoot common.Hash, blockCtx vm.BlockContext, sdb *state.StateDB, chainID *big.Int) error {
	txCtx := vm.TxContext{Origin: systemAddress, GasPrice: new(big.Int)}
	evm := vm.NewEVM(blockCtx, txCtx, sdb, vm.ChainConfig{ChainID: chainID}, vm.Config{})

	snapshot := sdb.Snapshot()
	_, _, err := evm.Call(systemAddress, beaconRootsAddress, beaconRoot.Bytes(), systemCallGas, new(big.Int))
	if err != nil {
		sdb.RevertTo(snapshot)
	}
	// The system call's own revert is not surfaced to the caller: an
	// absent or unimplemented beacon-roots contract must not fail the
	// block, matching EIP-4788's guidance that this call is best-effort.
	return nil
}

// applyTransaction runs one transaction's full state-transition: sender
// recovery, balance/nonce/gas checks, EVM execution, refund and coinbase
// credit, and receipt construction. cumGasUsed is updated in place so the
// caller can check it against the block gas limit once after the loop.
func applyTransaction(header *types.Header, blockCtx vm.BlockContext, tx *types.Transaction, txIndex uint, sdb *state.StateDB, chainID *big.Int, cumGasUsed *uint64) (*types.Receipt, error) {
	sdb.ResetCreatedThisTx()
	sdb.ResetTransient()
	sdb.SubRefund(sdb.Refund())

	from, err := Sender(tx)
	if err != nil {
		return nil, err
	}

	nonce := sdb.GetNonce(from)
	if tx.Nonce < nonce {
		return nil, ErrNonceTooLow
	}
	if tx.Nonce > nonce {
		return nil, ErrNonceTooHigh
	}

	intrinsic := tx.IntrinsicGas()
	if tx.GasLimit < intrinsic {
		return nil, ErrIntrinsicGas
	}

	effectivePrice := tx.EffectiveGasPrice(header.BaseFee)
	upfrontCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), effectivePrice)
	if tx.Value != nil {
		upfrontCost.Add(upfrontCost, tx.Value)
	}
	upfrontCost.Add(upfrontCost, blobGasCost(tx, header))
	if tx.Type != types.PrivilegedTxType && sdb.GetBalance(from).Cmp(upfrontCost) < 0 {
		return nil, ErrInsufficientFunds
	}

	if tx.Type != types.PrivilegedTxType {
		sdb.SubBalance(from, upfrontCost)
	}
	sdb.IncNonce(from)

	txCtx := NewTxContext(tx, from)
	txCtx.GasPrice = effectivePrice
	evm := vm.NewEVM(blockCtx, txCtx, sdb, vm.ChainConfig{ChainID: chainID}, vm.Config{})

	gasForExecution := tx.GasLimit - intrinsic
	snapshot := sdb.Snapshot()
	logsBefore := len(sdb.Logs())

	var (
		execErr   error
		leftover  uint64
		contract  *common.Address
	)
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	if tx.To == nil {
		var addr common.Address
		_, addr, leftover, execErr = evm.Create(from, tx.Data, gasForExecution, value)
		contract = &addr
	} else {
		_, leftover, execErr = evm.Call(from, *tx.To, tx.Data, gasForExecution, value)
	}

	status := types.ReceiptStatusSuccessful
	txLogs := sdb.Logs()[logsBefore:]
	if execErr != nil {
		sdb.RevertTo(snapshot)
		if execErr != vm.ErrExecutionReverted {
			leftover = 0
		}
		status = types.ReceiptStatusFailed
		contract = nil
		txLogs = nil
	}

	gasUsed := gasForExecution - leftover

	refund := sdb.Refund()
	maxRefund := gasUsed / vm.MaxRefundQuotient
	if refund > maxRefund {
		refund = maxRefund
	}
	gasUsed -= refund
	leftover += refund

	totalGasUsed := intrinsic + gasUsed
	if tx.Type != types.PrivilegedTxType {
		sdb.AddBalance(from, new(big.Int).Mul(new(big.Int).SetUint64(leftover), effectivePrice))

		tip := effectivePrice
		if header.BaseFee != nil {
			tip = new(big.Int).Sub(effectivePrice, header.BaseFee)
			if tip.Sign() < 0 {
				tip = new(big.Int)
			}
		}
		sdb.AddBalance(blockCtx.Coinbase, new(big.Int).Mul(new(big.Int).SetUint64(totalGasUsed), tip))
	}

	*cumGasUsed += totalGasUsed

	receipt := &types.Receipt{
		Type:              tx.Type,
		Status:            status,
		CumulativeGasUsed: *cumGasUsed,
		Logs:              txLogs,
		TxHash:            tx.Hash(),
		ContractAddress:   contract,
		GasUsed:           totalGasUsed,
		BlockHash:         header.Hash(),
		BlockNumber:       header.Number,
		TransactionIndex:  txIndex,
	}
	receipt.Bloom = types.LogsBloom(receipt.Logs)
	return receipt, nil
}

// blobGasCost is the up-front cost a type-3 transaction's blob sidecar
// adds, priced at the block's blob base fee.
func blobGasCost(tx *types.Transaction, header *types.Header) *big.Int {
	if tx.Type != types.BlobTxType || len(tx.BlobHashes) == 0 {
		return new(big.Int)
	}
	const gasPerBlob = 131072 // EIP-4844
	blobGas := new(big.Int).Mul(big.NewInt(int64(len(tx.BlobHashes))), big.NewInt(gasPerBlob))
	blobBaseFee := calcBlobBaseFee(header)
	if blobBaseFee == nil {
		blobBaseFee = big.NewInt(1)
	}
	return blobGas.Mul(blobGas, blobBaseFee)
}
