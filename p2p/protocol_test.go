package p2p

import (
	"math/big"
	"testing"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

func TestStatusEncodeDecodeRoundTrip(t *testing.T) {
	s := &StatusPacket{
		ProtocolVersion: ETH68,
		NetworkID:       1337,
		TD:              big.NewInt(12345),
		Head:            common.HexToHash("0x01"),
		Genesis:         common.HexToHash("0x02"),
	}
	enc, err := encodeStatus(s)
	if err != nil {
		t.Fatalf("encodeStatus: %v", err)
	}
	got, err := decodeStatus(enc)
	if err != nil {
		t.Fatalf("decodeStatus: %v", err)
	}
	if got.ProtocolVersion != s.ProtocolVersion || got.NetworkID != s.NetworkID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.TD.Cmp(s.TD) != 0 || got.Head != s.Head || got.Genesis != s.Genesis {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetBlockHeadersEncodeDecodeRoundTrip(t *testing.T) {
	p := &GetBlockHeadersPacket{
		RequestID: 99,
		Origin:    HashOrNumber{Number: 42},
		Amount:    10,
		Skip:      1,
		Reverse:   true,
	}
	enc, err := encodeGetBlockHeaders(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeGetBlockHeaders(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestID != p.RequestID || got.Origin.Number != p.Origin.Number ||
		got.Amount != p.Amount || got.Skip != p.Skip || got.Reverse != p.Reverse {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetBlockHeadersByHashRoundTrip(t *testing.T) {
	hash := common.HexToHash("0xaaaa")
	p := &GetBlockHeadersPacket{RequestID: 1, Origin: HashOrNumber{Hash: hash}, Amount: 1}
	enc, err := encodeGetBlockHeaders(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeGetBlockHeaders(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Origin.IsHash() || got.Origin.Hash != hash {
		t.Fatalf("origin hash mismatch: %+v", got.Origin)
	}
}

func testHeader(number uint64) *types.Header {
	return &types.Header{
		Number:     number,
		Difficulty: big.NewInt(1),
		GasLimit:   30_000_000,
		GasUsed:    21_000,
		Timestamp:  1700000000,
	}
}

func TestBlockHeadersEncodeDecodeRoundTrip(t *testing.T) {
	p := &BlockHeadersPacket{RequestID: 1, Headers: []*types.Header{testHeader(1), testHeader(2)}}
	enc, err := encodeBlockHeaders(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeBlockHeaders(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Headers) != 2 || got.Headers[0].Number != 1 || got.Headers[1].Number != 2 {
		t.Fatalf("round trip mismatch: %+v", got.Headers)
	}
}

func testLegacyTx(nonce uint64) *types.Transaction {
	return &types.Transaction{
		Type:     types.LegacyTxType,
		Nonce:    nonce,
		GasPrice: big.NewInt(1_000_000_000),
		GasLimit: 21000,
		Value:    big.NewInt(1),
		V:        big.NewInt(27),
		R:        big.NewInt(1),
		S:        big.NewInt(2),
	}
}

func TestBlockBodiesEncodeDecodeRoundTrip(t *testing.T) {
	body := &BlockBody{
		Transactions: []*types.Transaction{testLegacyTx(0), testLegacyTx(1)},
		Withdrawals:  []*types.Withdrawal{{Index: 1, ValidatorIndex: 2, Amount: 3}},
	}
	p := &BlockBodiesPacket{RequestID: 5, Bodies: []*BlockBody{body, nil}}
	enc, err := encodeBlockBodies(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeBlockBodies(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Bodies) != 2 {
		t.Fatalf("expected 2 bodies, got %d", len(got.Bodies))
	}
	if got.Bodies[0] == nil || len(got.Bodies[0].Transactions) != 2 {
		t.Fatalf("first body mismatch: %+v", got.Bodies[0])
	}
	if got.Bodies[1] != nil {
		t.Fatalf("second body should be nil (unknown hash), got %+v", got.Bodies[1])
	}
}

func TestReceiptsEncodeDecodeRoundTrip(t *testing.T) {
	r := &types.Receipt{Type: types.LegacyTxType, Status: types.ReceiptStatusSuccessful, CumulativeGasUsed: 21000}
	p := &ReceiptsPacket{RequestID: 3, Receipts: [][]*types.Receipt{{r}, nil}}
	enc, err := encodeReceipts(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeReceipts(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Receipts) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Receipts))
	}
	if len(got.Receipts[0]) != 1 || got.Receipts[0][0].CumulativeGasUsed != 21000 {
		t.Fatalf("first entry mismatch: %+v", got.Receipts[0])
	}
	if got.Receipts[1] != nil {
		t.Fatalf("second entry should be nil, got %+v", got.Receipts[1])
	}
}

func TestGetBlockBodiesAndReceiptsEncodeDecode(t *testing.T) {
	hashes := []common.Hash{common.HexToHash("0x1"), common.HexToHash("0x2")}

	bp := &GetBlockBodiesPacket{RequestID: 1, Hashes: hashes}
	enc, err := encodeGetBlockBodies(bp)
	if err != nil {
		t.Fatalf("encode bodies req: %v", err)
	}
	gotB, err := decodeGetBlockBodies(enc)
	if err != nil {
		t.Fatalf("decode bodies req: %v", err)
	}
	if len(gotB.Hashes) != 2 || gotB.Hashes[0] != hashes[0] {
		t.Fatalf("hashes mismatch: %+v", gotB.Hashes)
	}

	rp := &GetReceiptsPacket{RequestID: 2, Hashes: hashes}
	enc2, err := encodeGetReceipts(rp)
	if err != nil {
		t.Fatalf("encode receipts req: %v", err)
	}
	gotR, err := decodeGetReceipts(enc2)
	if err != nil {
		t.Fatalf("decode receipts req: %v", err)
	}
	if len(gotR.Hashes) != 2 || gotR.Hashes[1] != hashes[1] {
		t.Fatalf("hashes mismatch: %+v", gotR.Hashes)
	}
}
