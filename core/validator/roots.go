// Package validator implements the Validator & Fork Choice component
// described in spec §4.6: pre/post-execution header validation and
// canonical-chain head maintenance.
package validator

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
	"github.com/luxfi/execd/trie"
	"github.com/luxfi/execd/triedb"
)

// TxRoot computes the transactions-root for a header the way DeriveTxRoot
// expects to be driven: a throwaway trie keyed by rlp(index), discarded
// after its root is read.
func TxRoot(txs []*types.Transaction) common.Hash {
	t := trie.New(common.Hash{}, common.Hash{}, triedb.NewMemoryDB())
	_ = types.DeriveTxRoot(txs, func(index uint64, encoded []byte) error {
		return t.Insert(rlp.Encode(rlp.Uint64(index)), encoded)
	})
	return t.RootHash()
}

// ReceiptRoot computes the receipts-root the same way.
func ReceiptRoot(receipts []*types.Receipt) common.Hash {
	t := trie.New(common.Hash{}, common.Hash{}, triedb.NewMemoryDB())
	_ = types.DeriveReceiptRoot(receipts, func(index uint64, encoded []byte) error {
		return t.Insert(rlp.Encode(rlp.Uint64(index)), encoded)
	})
	return t.RootHash()
}

// WithdrawalsRoot computes a withdrawals-root the same way, keyed by index
// exactly like transactions and receipts.
func WithdrawalsRoot(withdrawals []*types.Withdrawal) common.Hash {
	t := trie.New(common.Hash{}, common.Hash{}, triedb.NewMemoryDB())
	for i, w := range withdrawals {
		_ = t.Insert(rlp.Encode(rlp.Uint64(uint64(i))), w.MarshalBinary())
	}
	return t.RootHash()
}
