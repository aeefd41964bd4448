package p2p

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
)

// ETH68 is the eth sub-protocol version this node speaks.
const ETH68 = 68

// baseProtocolMsgCount is the number of codes HelloMsg..PongMsg occupy; eth
// sub-protocol codes are offset past them so the two protocols can share a
// single multiplexed RLPxSession without their raw Msg.Code values
// colliding, the same scheme go-ethereum's own protocol manager uses.
const baseProtocolMsgCount = 4

// eth sub-protocol message codes, offset past the base protocol's
// Hello/Disconnect/Ping/Pong codes, per spec §6.
const (
	StatusMsg          = baseProtocolMsgCount + 0x00
	GetBlockHeadersMsg = baseProtocolMsgCount + 0x03
	BlockHeadersMsg    = baseProtocolMsgCount + 0x04
	GetBlockBodiesMsg  = baseProtocolMsgCount + 0x05
	BlockBodiesMsg     = baseProtocolMsgCount + 0x06
	GetReceiptsMsg     = baseProtocolMsgCount + 0x0f
	ReceiptsMsg        = baseProtocolMsgCount + 0x10
)

// StatusPacket is the eth sub-protocol's own handshake, sent immediately
// after the base-protocol Hello exchange: each side confirms the other is
// on the same network and chain before exchanging any block data.
type StatusPacket struct {
	ProtocolVersion uint32
	NetworkID       uint64
	TD              *big.Int
	Head            common.Hash
	Genesis         common.Hash
}

func encodeStatus(s *StatusPacket) ([]byte, error) {
	return rlp.Encode(rlp.List(
		rlp.Uint64(uint64(s.ProtocolVersion)),
		rlp.Uint64(s.NetworkID),
		rlp.BigInt(s.TD),
		rlp.String(s.Head.Bytes()),
		rlp.String(s.Genesis.Bytes()),
	)), nil
}

func decodeStatus(data []byte) (*StatusPacket, error) {
	items, err := decodeList(data, 5)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed status packet: %w", err)
	}
	pv, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	networkID, err := items[1].Uint64()
	if err != nil {
		return nil, err
	}
	td, err := items[2].BigInt()
	if err != nil {
		return nil, err
	}
	head, err := hashOf(items[3])
	if err != nil {
		return nil, err
	}
	genesis, err := hashOf(items[4])
	if err != nil {
		return nil, err
	}
	return &StatusPacket{ProtocolVersion: uint32(pv), NetworkID: networkID, TD: td, Head: head, Genesis: genesis}, nil
}

// HashOrNumber identifies a block by hash or by number; exactly one is set.
type HashOrNumber struct {
	Hash   common.Hash
	Number uint64
}

func (hn HashOrNumber) IsHash() bool { return !hn.Hash.IsZero() }

func (hn HashOrNumber) rlpValue() rlp.Value {
	if hn.IsHash() {
		return rlp.String(hn.Hash.Bytes())
	}
	return rlp.Uint64(hn.Number)
}

func decodeHashOrNumber(v rlp.Value) (HashOrNumber, error) {
	b, err := v.Bytes()
	if err != nil {
		return HashOrNumber{}, err
	}
	if len(b) == common.HashLength {
		var h common.Hash
		copy(h[:], b)
		return HashOrNumber{Hash: h}, nil
	}
	n, err := v.Uint64()
	if err != nil {
		return HashOrNumber{}, err
	}
	return HashOrNumber{Number: n}, nil
}

// GetBlockHeadersPacket requests a run of headers starting at Origin.
type GetBlockHeadersPacket struct {
	RequestID uint64
	Origin    HashOrNumber
	Amount    uint64
	Skip      uint64
	Reverse   bool
}

func encodeGetBlockHeaders(p *GetBlockHeadersPacket) ([]byte, error) {
	return rlp.Encode(rlp.List(
		rlp.Uint64(p.RequestID),
		p.Origin.rlpValue(),
		rlp.Uint64(p.Amount),
		rlp.Uint64(p.Skip),
		rlp.Uint64(boolToUint64(p.Reverse)),
	)), nil
}

func decodeGetBlockHeaders(data []byte) (*GetBlockHeadersPacket, error) {
	items, err := decodeList(data, 5)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed getBlockHeaders packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	origin, err := decodeHashOrNumber(items[1])
	if err != nil {
		return nil, err
	}
	amount, err := items[2].Uint64()
	if err != nil {
		return nil, err
	}
	skip, err := items[3].Uint64()
	if err != nil {
		return nil, err
	}
	reverse, err := items[4].Uint64()
	if err != nil {
		return nil, err
	}
	return &GetBlockHeadersPacket{RequestID: reqID, Origin: origin, Amount: amount, Skip: skip, Reverse: reverse != 0}, nil
}

type BlockHeadersPacket struct {
	RequestID uint64
	Headers   []*types.Header
}

func encodeBlockHeaders(p *BlockHeadersPacket) ([]byte, error) {
	headers := make([]rlp.Value, len(p.Headers))
	for i, h := range p.Headers {
		v, _, err := rlp.Decode(h.MarshalBinary())
		if err != nil {
			return nil, err
		}
		headers[i] = v
	}
	return rlp.Encode(rlp.List(rlp.Uint64(p.RequestID), rlp.List(headers...))), nil
}

func decodeBlockHeaders(data []byte) (*BlockHeadersPacket, error) {
	items, err := decodeList(data, 2)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed blockHeaders packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	headerItems, err := items[1].Items()
	if err != nil {
		return nil, err
	}
	headers := make([]*types.Header, len(headerItems))
	for i, hi := range headerItems {
		h, err := types.UnmarshalHeaderBinary(rlp.Encode(hi))
		if err != nil {
			return nil, fmt.Errorf("p2p: header %d: %w", i, err)
		}
		headers[i] = h
	}
	return &BlockHeadersPacket{RequestID: reqID, Headers: headers}, nil
}

type GetBlockBodiesPacket struct {
	RequestID uint64
	Hashes    []common.Hash
}

func encodeGetBlockBodies(p *GetBlockBodiesPacket) ([]byte, error) {
	return rlp.Encode(rlp.List(rlp.Uint64(p.RequestID), hashListValue(p.Hashes))), nil
}

func decodeGetBlockBodies(data []byte) (*GetBlockBodiesPacket, error) {
	items, err := decodeList(data, 2)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed getBlockBodies packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	hashes, err := decodeHashList(items[1])
	if err != nil {
		return nil, err
	}
	return &GetBlockBodiesPacket{RequestID: reqID, Hashes: hashes}, nil
}

// BlockBody is a block's transactions and withdrawals, keyed to its header
// by position in the enclosing BlockBodiesPacket. A nil entry answers a
// hash the responder doesn't have.
type BlockBody struct {
	Transactions []*types.Transaction
	Withdrawals  []*types.Withdrawal
}

type BlockBodiesPacket struct {
	RequestID uint64
	Bodies    []*BlockBody
}

func encodeBlockBodies(p *BlockBodiesPacket) ([]byte, error) {
	bodies := make([]rlp.Value, len(p.Bodies))
	for i, b := range p.Bodies {
		if b == nil {
			bodies[i] = rlp.List()
			continue
		}
		full := types.Body{Transactions: b.Transactions, Withdrawals: b.Withdrawals}
		v, _, err := rlp.Decode(full.MarshalBinary())
		if err != nil {
			return nil, err
		}
		bodies[i] = v
	}
	return rlp.Encode(rlp.List(rlp.Uint64(p.RequestID), rlp.List(bodies...))), nil
}

func decodeBlockBodies(data []byte) (*BlockBodiesPacket, error) {
	items, err := decodeList(data, 2)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed blockBodies packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	bodyItems, err := items[1].Items()
	if err != nil {
		return nil, err
	}
	bodies := make([]*BlockBody, len(bodyItems))
	for i, bi := range bodyItems {
		elems, err := bi.Items()
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			continue
		}
		full, err := types.UnmarshalBodyBinary(rlp.Encode(bi))
		if err != nil {
			return nil, fmt.Errorf("p2p: body %d: %w", i, err)
		}
		bodies[i] = &BlockBody{Transactions: full.Transactions, Withdrawals: full.Withdrawals}
	}
	return &BlockBodiesPacket{RequestID: reqID, Bodies: bodies}, nil
}

type GetReceiptsPacket struct {
	RequestID uint64
	Hashes    []common.Hash
}

func encodeGetReceipts(p *GetReceiptsPacket) ([]byte, error) {
	return rlp.Encode(rlp.List(rlp.Uint64(p.RequestID), hashListValue(p.Hashes))), nil
}

func decodeGetReceipts(data []byte) (*GetReceiptsPacket, error) {
	items, err := decodeList(data, 2)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed getReceipts packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	hashes, err := decodeHashList(items[1])
	if err != nil {
		return nil, err
	}
	return &GetReceiptsPacket{RequestID: reqID, Hashes: hashes}, nil
}

// ReceiptsPacket answers a GetReceiptsPacket with one receipt list per
// requested block hash, in request order; a nil entry answers a hash the
// responder doesn't have.
type ReceiptsPacket struct {
	RequestID uint64
	Receipts  [][]*types.Receipt
}

func encodeReceipts(p *ReceiptsPacket) ([]byte, error) {
	blocks := make([]rlp.Value, len(p.Receipts))
	for i, rs := range p.Receipts {
		items := make([]rlp.Value, len(rs))
		for j, r := range rs {
			v, _, err := rlp.Decode(r.EncodeRLP())
			if err != nil {
				return nil, err
			}
			items[j] = v
		}
		blocks[i] = rlp.List(items...)
	}
	return rlp.Encode(rlp.List(rlp.Uint64(p.RequestID), rlp.List(blocks...))), nil
}

func decodeReceipts(data []byte) (*ReceiptsPacket, error) {
	items, err := decodeList(data, 2)
	if err != nil {
		return nil, fmt.Errorf("p2p: malformed receipts packet: %w", err)
	}
	reqID, err := items[0].Uint64()
	if err != nil {
		return nil, err
	}
	blockItems, err := items[1].Items()
	if err != nil {
		return nil, err
	}
	receipts := make([][]*types.Receipt, len(blockItems))
	for i, bi := range blockItems {
		rItems, err := bi.Items()
		if err != nil {
			return nil, err
		}
		if len(rItems) == 0 {
			continue
		}
		rs := make([]*types.Receipt, len(rItems))
		for j, ri := range rItems {
			r, err := types.DecodeReceiptRLP(rlp.Encode(ri))
			if err != nil {
				return nil, fmt.Errorf("p2p: receipt %d/%d: %w", i, j, err)
			}
			rs[j] = r
		}
		receipts[i] = rs
	}
	return &ReceiptsPacket{RequestID: reqID, Receipts: receipts}, nil
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func hashOf(v rlp.Value) (common.Hash, error) {
	b, err := v.Bytes()
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("p2p: expected %d-byte hash, got %d", common.HashLength, len(b))
	}
	var h common.Hash
	copy(h[:], b)
	return h, nil
}

func hashListValue(hashes []common.Hash) rlp.Value {
	items := make([]rlp.Value, len(hashes))
	for i, h := range hashes {
		items[i] = rlp.String(h.Bytes())
	}
	return rlp.List(items...)
}

func decodeHashList(v rlp.Value) ([]common.Hash, error) {
	items, err := v.Items()
	if err != nil {
		return nil, err
	}
	hashes := make([]common.Hash, len(items))
	for i, item := range items {
		h, err := hashOf(item)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

func decodeList(data []byte, want int) ([]rlp.Value, error) {
	v, rest, err := rlp.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing bytes after list")
	}
	items, err := v.Items()
	if err != nil {
		return nil, err
	}
	if len(items) != want {
		return nil, fmt.Errorf("expected %d elements, got %d", want, len(items))
	}
	return items, nil
}
