package mempool

import (
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

type fakeState struct {
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
}

func newFakeState() *fakeState {
	return &fakeState{balances: make(map[common.Address]*big.Int), nonces: make(map[common.Address]uint64)}
}

func (s *fakeState) GetBalance(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (s *fakeState) GetNonce(addr common.Address) uint64 {
	return s.nonces[addr]
}

// signTx mirrors core/executor's signing helper: signs tx's signing hash in
// the chain-ID-folded EIP-155 encoding and sets tx.V/R/S.
func signTx(t *testing.T, tx *types.Transaction, key *secp256k1.PrivateKey) {
	t.Helper()
	hash := tx.SigningHash()
	sig := ecdsa.SignCompact(key, hash.Bytes(), false)
	rawV := sig[0] - 27
	r := new(big.Int).SetBytes(sig[1:33])
	s := new(big.Int).SetBytes(sig[33:65])

	tx.R = r
	tx.S = s
	if tx.Type == types.LegacyTxType {
		v := new(big.Int).Lsh(tx.ChainID, 1)
		v.Add(v, big.NewInt(35+int64(rawV)))
		tx.V = v
	} else {
		tx.V = big.NewInt(int64(rawV))
	}
}

func pubkeyToAddress(pub *secp256k1.PublicKey) common.Address {
	uncompressed := pub.SerializeUncompressed()
	hash := common.Keccak256(uncompressed[1:])
	var addr common.Address
	copy(addr[:], hash[12:])
	return addr
}

func newSignedLegacyTx(t *testing.T, key *secp256k1.PrivateKey, nonce uint64, gasPrice int64) *types.Transaction {
	t.Helper()
	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(1337),
		Nonce:    nonce,
		GasPrice: big.NewInt(gasPrice),
		GasLimit: 21000,
		To:       &common.Address{0x01},
		Value:    big.NewInt(1),
	}
	signTx(t, tx, key)
	return tx
}

func TestPoolAddAcceptsWellFormedTx(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())

	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)

	pool := New(DefaultConfig(), state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected 1 pooled tx, got %d", pool.Len())
	}
	if got := pool.Get(tx.Hash()); got != tx {
		t.Fatalf("Get did not return the pooled transaction")
	}
}

func TestPoolAddRejectsInsufficientFunds(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	state := newFakeState() // zero balance
	pool := New(DefaultConfig(), state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestPoolAddRejectsNonceTooLow(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)
	state.nonces[from] = 5

	pool := New(DefaultConfig(), state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != ErrNonceTooLow {
		t.Fatalf("expected ErrNonceTooLow, got %v", err)
	}
}

func TestPoolAddRejectsDuplicate(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)

	pool := New(DefaultConfig(), state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := pool.Add(tx, nil); err != ErrAlreadyKnown {
		t.Fatalf("expected ErrAlreadyKnown, got %v", err)
	}
}

func TestPoolAddRejectsUnderpriced(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)

	cfg := DefaultConfig()
	cfg.MinPriorityFee = big.NewInt(100)
	pool := New(cfg, state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != ErrUnderpriced {
		t.Fatalf("expected ErrUnderpriced, got %v", err)
	}
}

func TestPoolAddRejectsDisallowedType(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)

	cfg := DefaultConfig()
	cfg.AllowedTypes = map[types.TxType]bool{types.DynamicFeeTxType: true}
	pool := New(cfg, state)
	tx := newSignedLegacyTx(t, key, 0, 1)

	if err := pool.Add(tx, nil); err != ErrTypeNotAllowed {
		t.Fatalf("expected ErrTypeNotAllowed, got %v", err)
	}
}

func TestPoolRemove(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := pubkeyToAddress(key.PubKey())
	state := newFakeState()
	state.balances[from] = big.NewInt(1_000_000)

	pool := New(DefaultConfig(), state)
	tx := newSignedLegacyTx(t, key, 0, 1)
	if err := pool.Add(tx, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	pool.Remove(tx.Hash())
	if pool.Len() != 0 {
		t.Fatalf("expected empty pool after Remove, got %d", pool.Len())
	}
	if got := pool.Get(tx.Hash()); got != nil {
		t.Fatalf("expected Get to return nil after Remove, got %v", got)
	}
}

func TestPoolIterOrdersByPriorityFeeDescending(t *testing.T) {
	keyLow, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyHigh, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fromLow := pubkeyToAddress(keyLow.PubKey())
	fromHigh := pubkeyToAddress(keyHigh.PubKey())

	state := newFakeState()
	state.balances[fromLow] = big.NewInt(1_000_000)
	state.balances[fromHigh] = big.NewInt(1_000_000)

	pool := New(DefaultConfig(), state)
	low := newSignedLegacyTx(t, keyLow, 0, 1)
	high := newSignedLegacyTx(t, keyHigh, 0, 100)

	if err := pool.Add(low, nil); err != nil {
		t.Fatalf("Add low: %v", err)
	}
	if err := pool.Add(high, nil); err != nil {
		t.Fatalf("Add high: %v", err)
	}

	iter := pool.Iter()
	if len(iter) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(iter))
	}
	if iter[0].Hash() != high.Hash() {
		t.Fatalf("expected the higher-priced transaction first")
	}
}

func TestPoolReconcileDropsStaleNonceAndUnderfundedTx(t *testing.T) {
	keyStale, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyDrained, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyFine, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fromStale := pubkeyToAddress(keyStale.PubKey())
	fromDrained := pubkeyToAddress(keyDrained.PubKey())
	fromFine := pubkeyToAddress(keyFine.PubKey())

	state := newFakeState()
	state.balances[fromStale] = big.NewInt(1_000_000)
	state.balances[fromDrained] = big.NewInt(1_000_000)
	state.balances[fromFine] = big.NewInt(1_000_000)

	pool := New(DefaultConfig(), state)
	stale := newSignedLegacyTx(t, keyStale, 0, 1)
	drained := newSignedLegacyTx(t, keyDrained, 0, 1)
	fine := newSignedLegacyTx(t, keyFine, 0, 1)

	for _, tx := range []*types.Transaction{stale, drained, fine} {
		if err := pool.Add(tx, nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	// A new head where fromStale's tx has already landed (nonce advanced)
	// and fromDrained's balance has been spent elsewhere.
	head := newFakeState()
	head.nonces[fromStale] = 1
	head.balances[fromDrained] = big.NewInt(0)
	head.balances[fromFine] = big.NewInt(1_000_000)

	pool.Reconcile(common.HexToHash("0xabc"), head)

	if pool.Get(stale.Hash()) != nil {
		t.Fatalf("expected stale-nonce tx to be dropped after Reconcile")
	}
	if pool.Get(drained.Hash()) != nil {
		t.Fatalf("expected underfunded tx to be dropped after Reconcile")
	}
	if pool.Get(fine.Hash()) == nil {
		t.Fatalf("expected still-valid tx to survive Reconcile")
	}
	if pool.Len() != 1 {
		t.Fatalf("expected 1 surviving tx, got %d", pool.Len())
	}
}
