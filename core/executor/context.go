// Package executor implements the Block Executor described in spec §4.5:
// it applies a block's transactions against a State View and produces the
// receipts, logs and state root that result.
package executor

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/vm"
)

// NewBlockContext builds the EVM's per-block context from a header, wiring
// CanTransfer/Transfer against the State View and an ancestor-hash lookup
// bounded to the header's own chain.
func NewBlockContext(header *types.Header, st *store.Store) vm.BlockContext {
	difficulty := header.Difficulty
	if difficulty == nil {
		difficulty = new(big.Int)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	blobBaseFee := calcBlobBaseFee(header)

	return vm.BlockContext{
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		BlockNumber: header.Number,
		Time:        header.Timestamp,
		Difficulty:  difficulty,
		BaseFee:     baseFee,
		BlobBaseFee: blobBaseFee,
		GetHash:     GetHashFn(header, st),
		CanTransfer: CanTransfer,
		Transfer:    Transfer,
	}
}

// NewTxContext builds the EVM's per-transaction context from a transaction
// and its recovered sender.
func NewTxContext(tx *types.Transaction, from common.Address) vm.TxContext {
	return vm.TxContext{
		Origin:     from,
		GasPrice:   effectiveGasPriceOrZero(tx),
		BlobHashes: tx.BlobHashes,
		BlobFeeCap: tx.BlobFeeCap,
	}
}

func effectiveGasPriceOrZero(tx *types.Transaction) *big.Int {
	if tx.GasPrice != nil {
		return new(big.Int).Set(tx.GasPrice)
	}
	if tx.GasFeeCap != nil {
		return new(big.Int).Set(tx.GasFeeCap)
	}
	return new(big.Int)
}

// minBlobBaseFee is EIP-4844's floor; a block with no excess blob gas still
// reports this rather than zero.
const minBlobBaseFee = 1

// blobBaseFeeUpdateFraction controls how fast the blob base fee responds to
// excess blob gas, per EIP-4844.
const blobBaseFeeUpdateFraction = 3338477

// calcBlobBaseFee derives the per-blob-gas fee from a header's excess blob
// gas using the fake-exponential curve EIP-4844 defines. Pre-Cancun headers
// (ExcessBlobGas nil) have no blob market, so this returns nil.
func calcBlobBaseFee(header *types.Header) *big.Int {
	if header.ExcessBlobGas == nil {
		return nil
	}
	return fakeExponential(big.NewInt(minBlobBaseFee), new(big.Int).SetUint64(*header.ExcessBlobGas), big.NewInt(blobBaseFeeUpdateFraction))
}

// fakeExponential approximates factor * e**(numerator/denominator) using the
// integer series EIP-4844 specifies, avoiding floating point.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	i := big.NewInt(1)
	output := new(big.Int)
	accum := new(big.Int).Mul(factor, denominator)
	for accum.Sign() > 0 {
		output.Add(output, accum)
		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, i)
		i.Add(i, big.NewInt(1))
	}
	return output.Div(output, denominator)
}

// GetHashFn returns a BLOCKHASH resolver bounded to ref's ancestry, caching
// parent links as it walks backward through the store so repeated BLOCKHASH
// calls within one block don't re-walk the chain from scratch.
func GetHashFn(ref *types.Header, st *store.Store) func(n uint64) common.Hash {
	var cache []common.Hash

	return func(n uint64) common.Hash {
		if ref.Number <= n {
			return common.Hash{}
		}
		if len(cache) == 0 {
			cache = append(cache, ref.ParentHash)
		}
		if idx := ref.Number - n - 1; idx < uint64(len(cache)) {
			return cache[idx]
		}
		lastKnownHash := cache[len(cache)-1]
		lastKnownNumber := ref.Number - uint64(len(cache))

		for {
			header, err := st.GetHeader(lastKnownHash)
			if err != nil {
				break
			}
			cache = append(cache, header.ParentHash)
			lastKnownHash = header.ParentHash
			lastKnownNumber = header.Number - 1
			if n == lastKnownNumber {
				return lastKnownHash
			}
		}
		return common.Hash{}
	}
}

// CanTransfer reports whether addr holds enough balance to move amount,
// without accounting for the gas the transfer itself costs.
func CanTransfer(db vm.StateDB, addr common.Address, amount *big.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

// Transfer moves amount from sender to recipient.
func Transfer(db vm.StateDB, sender, recipient common.Address, amount *big.Int) {
	db.SubBalance(sender, amount)
	db.AddBalance(recipient, amount)
}
