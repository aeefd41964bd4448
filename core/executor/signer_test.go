package executor

import (
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

// signTx signs tx's signing hash with key, in the chain-ID-folded EIP-155
// encoding, and sets tx.V/R/S.
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

func TestSenderRecoversSignerLegacy(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := pubkeyToAddress(key.PubKey())

	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(1337),
		Nonce:    0,
		GasPrice: big.NewInt(1),
		GasLimit: 21000,
		To:       &common.Address{0x01},
		Value:    big.NewInt(100),
	}
	signTx(t, tx, key)

	got, err := Sender(tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if got != want {
		t.Fatalf("expected sender %x, got %x", want, got)
	}
}

func TestSenderRecoversSignerDynamicFee(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := pubkeyToAddress(key.PubKey())

	tx := &types.Transaction{
		Type:      types.DynamicFeeTxType,
		ChainID:   big.NewInt(1337),
		Nonce:     5,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		GasLimit:  21000,
		To:        &common.Address{0x02},
		Value:     big.NewInt(0),
	}
	signTx(t, tx, key)

	got, err := Sender(tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if got != want {
		t.Fatalf("expected sender %x, got %x", want, got)
	}
}

func TestSenderTamperedPayloadRecoversDifferentSender(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(1337),
		Nonce:    0,
		GasPrice: big.NewInt(1),
		GasLimit: 21000,
		To:       &common.Address{0x01},
		Value:    big.NewInt(100),
	}
	signTx(t, tx, key)
	tx.Nonce = 1 // mutate the signed payload without re-signing

	want := pubkeyToAddress(key.PubKey())
	got, err := Sender(tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if got == want {
		t.Fatalf("expected tampered transaction to recover a different sender")
	}
}

func TestSenderPrivilegedTxUsesPrivilegedFrom(t *testing.T) {
	from := common.HexToAddress("0xdead")
	tx := &types.Transaction{
		Type:           types.PrivilegedTxType,
		PrivilegedFrom: from,
	}
	got, err := Sender(tx)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if got != from {
		t.Fatalf("expected %x, got %x", from, got)
	}
}
