package types

import (
	"math/big"
	"testing"

	"github.com/luxfi/execd/common"
)

func TestTransactionRoundTripLegacy(t *testing.T) {
	to := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tx := &Transaction{
		Type:     LegacyTxType,
		Nonce:    7,
		GasPrice: big.NewInt(1_000_000_000),
		GasLimit: 21000,
		To:       &to,
		Value:    big.NewInt(42),
		Data:     nil,
		V:        big.NewInt(27),
		R:        big.NewInt(1),
		S:        big.NewInt(2),
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Transaction
	if err := got.UnmarshalBinary(enc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Nonce != tx.Nonce || got.GasLimit != tx.GasLimit || got.Value.Cmp(tx.Value) != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.To == nil || *got.To != *tx.To {
		t.Fatalf("round trip To mismatch: %v", got.To)
	}
}

func TestTransactionRoundTripDynamicFee(t *testing.T) {
	to := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tx := &Transaction{
		Type:      DynamicFeeTxType,
		ChainID:   big.NewInt(1),
		Nonce:     3,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(50_000_000_000),
		GasLimit:  100000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      []byte{0x01, 0x02, 0x00, 0x03},
		AccessList: []AccessTuple{
			{Address: to, StorageKeys: []common.Hash{common.HexToHash("0x01")}},
		},
		V: big.NewInt(0),
		R: big.NewInt(5),
		S: big.NewInt(6),
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if TxType(enc[0]) != DynamicFeeTxType {
		t.Fatalf("expected type prefix 0x02, got 0x%x", enc[0])
	}
	var got Transaction
	if err := got.UnmarshalBinary(enc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.AccessList) != 1 || len(got.AccessList[0].StorageKeys) != 1 {
		t.Fatalf("access list not round-tripped: %+v", got.AccessList)
	}
	if got.GasFeeCap.Cmp(tx.GasFeeCap) != 0 || got.GasTipCap.Cmp(tx.GasTipCap) != 0 {
		t.Fatalf("fee fields mismatch: %+v", got)
	}
}

func TestTransactionRoundTripPrivileged(t *testing.T) {
	to := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	from := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	tx := &Transaction{
		Type:           PrivilegedTxType,
		ChainID:        big.NewInt(1),
		Nonce:          0,
		PrivilegedFrom: from,
		To:             &to,
		GasLimit:       100000,
		Value:          big.NewInt(1000),
		Data:           []byte("deposit"),
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Transaction
	if err := got.UnmarshalBinary(enc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.PrivilegedFrom != from {
		t.Fatalf("privileged sender mismatch: %v", got.PrivilegedFrom)
	}
}

func TestEffectiveGasPrice(t *testing.T) {
	tx := &Transaction{
		Type:      DynamicFeeTxType,
		GasFeeCap: big.NewInt(100),
		GasTipCap: big.NewInt(10),
	}
	base := big.NewInt(50)
	got := tx.EffectiveGasPrice(base)
	if got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected base+tip=60, got %v", got)
	}

	tx2 := &Transaction{Type: DynamicFeeTxType, GasFeeCap: big.NewInt(55), GasTipCap: big.NewInt(10)}
	got2 := tx2.EffectiveGasPrice(base)
	if got2.Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("expected capped at feecap=55, got %v", got2)
	}
}

func TestIntrinsicGas(t *testing.T) {
	tx := &Transaction{Data: []byte{0x00, 0x01, 0x00}}
	got := tx.IntrinsicGas()
	want := uint64(21000 + 4 + 16 + 4)
	if got != want {
		t.Fatalf("intrinsic gas = %d, want %d", got, want)
	}

	creation := &Transaction{To: nil, Data: make([]byte, 32)}
	got2 := creation.IntrinsicGas()
	want2 := uint64(21000 + 53000 + 4*32 + 2) // 32 zero bytes, 1 word of init code
	if got2 != want2 {
		t.Fatalf("creation intrinsic gas = %d, want %d", got2, want2)
	}
}

func TestAccountEmptyAndRLP(t *testing.T) {
	a := EmptyAccount()
	if !a.IsEmpty() {
		t.Fatal("fresh account should be empty")
	}
	a.Nonce = 1
	if a.IsEmpty() {
		t.Fatal("account with nonzero nonce must not be empty")
	}
	a.Balance = big.NewInt(100)
	a.StorageRoot = common.EmptyRootHash
	a.CodeHash = common.EmptyCodeHash
	enc := a.EncodeRLP()
	got, err := DecodeAccountRLP(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Nonce != a.Nonce || got.Balance.Cmp(a.Balance) != 0 {
		t.Fatalf("account round trip mismatch: %+v", got)
	}
}

func TestLogsBloomAndHeaderHash(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000001")
	log := &Log{Address: addr, Topics: []common.Hash{common.HexToHash("0x02")}}
	bloom := LogsBloom([]*Log{log})
	if !bloom.Test(addr.Bytes()) {
		t.Fatal("bloom should test positive for the log's address")
	}

	h := &Header{
		ParentHash:  common.HexToHash("0x01"),
		Difficulty:  big.NewInt(0),
		Number:      1,
		GasLimit:    30_000_000,
		Timestamp:   1000,
		BaseFee:     big.NewInt(7),
	}
	if h.Hash().IsZero() {
		t.Fatal("header hash must not be zero")
	}
}
