package executor

import (
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/triedb"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(triedb.NewMemoryDB())
}

// TestProcessEmptyBlock mirrors scenario S1: an empty block should leave the
// state root unchanged and report zero gas used.
func TestProcessEmptyBlock(t *testing.T) {
	st := testStore(t)
	sdb := state.New(common.Hash{}, st)
	genesisRoot, err := sdb.Commit()
	if err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	sdb = state.New(genesisRoot, st)
	header := &types.Header{
		ParentHash: common.Hash{},
		Number:     1,
		GasLimit:   30_000_000,
		Timestamp:  1700000000,
		BaseFee:    big.NewInt(1),
	}

	result, err := Process(header, types.Body{}, sdb, st, big.NewInt(1))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.GasUsed != 0 {
		t.Fatalf("expected zero gas used, got %d", result.GasUsed)
	}
	if result.StateRoot != genesisRoot {
		t.Fatalf("expected state root unchanged at %x, got %x", genesisRoot, result.StateRoot)
	}
}

// TestProcessSingleValueTransfer mirrors scenario S2: a single signed
// transfer moves balance, pays the coinbase its tip, and produces one
// successful receipt whose cumulative gas equals the intrinsic cost.
func TestProcessSingleValueTransfer(t *testing.T) {
	st := testStore(t)
	sdb := state.New(common.Hash{}, st)

	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	to := common.HexToAddress("0xb0b")

	sdb.AddBalance(from, big.NewInt(1_000_000_000_000))

	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(1),
		Nonce:    0,
		GasPrice: big.NewInt(10),
		GasLimit: 21000,
		To:       &to,
		Value:    big.NewInt(1000),
	}
	signTx(t, tx, key)

	header := &types.Header{
		ParentHash: common.Hash{},
		Number:     1,
		GasLimit:   30_000_000,
		Timestamp:  1700000000,
		BaseFee:    big.NewInt(1),
		Coinbase:   common.HexToAddress("0xc0ffee"),
	}
	body := types.Body{Transactions: []*types.Transaction{tx}}

	result, err := Process(header, body, sdb, st, big.NewInt(1))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(result.Receipts))
	}
	receipt := result.Receipts[0]
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("expected successful receipt, got status %d", receipt.Status)
	}
	if receipt.GasUsed != 21000 {
		t.Fatalf("expected gas used 21000, got %d", receipt.GasUsed)
	}
	if result.GasUsed != 21000 {
		t.Fatalf("expected block gas used 21000, got %d", result.GasUsed)
	}

	sdb2 := state.New(result.StateRoot, st)
	if got := sdb2.GetBalance(to); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected recipient balance 1000, got %v", got)
	}
	if got := sdb2.GetNonce(from); got != 1 {
		t.Fatalf("expected sender nonce 1, got %d", got)
	}
	if got := sdb2.GetBalance(header.Coinbase); got.Sign() <= 0 {
		t.Fatalf("expected coinbase to receive a nonzero tip, got %v", got)
	}
}

// TestProcessRejectsNonceTooLow checks admission fails a stale nonce rather
// than silently skipping the transaction.
func TestProcessRejectsNonceTooLow(t *testing.T) {
	st := testStore(t)
	sdb := state.New(common.Hash{}, st)

	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	sdb.AddBalance(from, big.NewInt(1_000_000_000_000))
	sdb.IncNonce(from)

	to := common.HexToAddress("0xb0b")
	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(1),
		Nonce:    0,
		GasPrice: big.NewInt(10),
		GasLimit: 21000,
		To:       &to,
		Value:    big.NewInt(1),
	}
	signTx(t, tx, key)

	header := &types.Header{Number: 1, GasLimit: 30_000_000, BaseFee: big.NewInt(1)}
	body := types.Body{Transactions: []*types.Transaction{tx}}

	if _, err := Process(header, body, sdb, st, big.NewInt(1)); err != ErrNonceTooLow {
		t.Fatalf("expected ErrNonceTooLow, got %v", err)
	}
}
