package types

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// Header is a block header, per spec §3: everything needed to validate a
// block's ancestry and to re-derive its state independent of the bodies.
// Fields introduced by later forks (BaseFee, WithdrawalsRoot, blob-gas
// fields, ParentBeaconRoot) are nil on headers from earlier forks; encoding
// and validation treat a nil field as absent.
type Header struct {
	ParentHash       common.Hash
	UncleHash        common.Hash
	Coinbase         common.Address
	StateRoot        common.Hash
	TxRoot           common.Hash
	ReceiptRoot      common.Hash
	Bloom            common.Bloom
	Difficulty       *big.Int
	Number           uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	MixHash          common.Hash
	Nonce            uint64
	BaseFee          *big.Int     // EIP-1559, London+
	WithdrawalsRoot  *common.Hash // EIP-4895, Shanghai+
	BlobGasUsed      *uint64      // EIP-4844, Cancun+
	ExcessBlobGas    *uint64      // EIP-4844, Cancun+
	ParentBeaconRoot *common.Hash // EIP-4788, Cancun+
}

// GetBaseFee returns the header's base fee, or nil on pre-London headers.
func (h *Header) GetBaseFee() *big.Int { return h.BaseFee }

// GetGasUsed returns the gas consumed by the header's block.
func (h *Header) GetGasUsed() uint64 { return h.GasUsed }

// Hash returns the header's commitment: the Keccak-256 of its RLP encoding.
func (h *Header) Hash() common.Hash {
	return common.Keccak256Hash(rlp.Encode(h.rlpValue()))
}

// MarshalBinary returns the header's canonical RLP encoding.
func (h *Header) MarshalBinary() []byte {
	return rlp.Encode(h.rlpValue())
}

// UnmarshalHeaderBinary parses a header previously produced by MarshalBinary.
// Trailing optional items after the first 15 are assigned positionally in
// fork order (BaseFee, WithdrawalsRoot, BlobGasUsed, ExcessBlobGas,
// ParentBeaconRoot); items beyond those five are ignored.
func UnmarshalHeaderBinary(b []byte) (*Header, error) {
	v, rest, err := rlp.Decode(b)
	if err != nil || len(rest) != 0 {
		return nil, ErrMalformedHeader
	}
	items, err := v.Items()
	if err != nil || len(items) < 15 {
		return nil, ErrMalformedHeader
	}
	h := &Header{}
	get := func(i int) []byte { b, _ := items[i].Bytes(); return b }
	h.ParentHash = common.BytesToHash(get(0))
	h.UncleHash = common.BytesToHash(get(1))
	h.Coinbase = common.BytesToAddress(get(2))
	h.StateRoot = common.BytesToHash(get(3))
	h.TxRoot = common.BytesToHash(get(4))
	h.ReceiptRoot = common.BytesToHash(get(5))
	copy(h.Bloom[:], get(6))
	if h.Difficulty, err = items[7].BigInt(); err != nil {
		return nil, ErrMalformedHeader
	}
	if h.Number, err = items[8].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	if h.GasLimit, err = items[9].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	if h.GasUsed, err = items[10].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	if h.Timestamp, err = items[11].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	h.ExtraData = get(12)
	h.MixHash = common.BytesToHash(get(13))
	if h.Nonce, err = items[14].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	idx := 15
	next := func() (rlp.Value, bool) {
		if idx >= len(items) {
			return rlp.Value{}, false
		}
		v := items[idx]
		idx++
		return v, true
	}
	if v, ok := next(); ok {
		if h.BaseFee, err = v.BigInt(); err != nil {
			return nil, ErrMalformedHeader
		}
	}
	if v, ok := next(); ok {
		b, err := v.Bytes()
		if err != nil {
			return nil, ErrMalformedHeader
		}
		root := common.BytesToHash(b)
		h.WithdrawalsRoot = &root
	}
	if v, ok := next(); ok {
		n, err := v.Uint64()
		if err != nil {
			return nil, ErrMalformedHeader
		}
		h.BlobGasUsed = &n
	}
	if v, ok := next(); ok {
		n, err := v.Uint64()
		if err != nil {
			return nil, ErrMalformedHeader
		}
		h.ExcessBlobGas = &n
	}
	if v, ok := next(); ok {
		b, err := v.Bytes()
		if err != nil {
			return nil, ErrMalformedHeader
		}
		root := common.BytesToHash(b)
		h.ParentBeaconRoot = &root
	}
	return h, nil
}

func (h *Header) rlpValue() rlp.Value {
	items := []rlp.Value{
		rlp.String(h.ParentHash.Bytes()),
		rlp.String(h.UncleHash.Bytes()),
		rlp.String(h.Coinbase.Bytes()),
		rlp.String(h.StateRoot.Bytes()),
		rlp.String(h.TxRoot.Bytes()),
		rlp.String(h.ReceiptRoot.Bytes()),
		rlp.String(h.Bloom[:]),
		rlp.BigInt(h.Difficulty),
		rlp.Uint64(h.Number),
		rlp.Uint64(h.GasLimit),
		rlp.Uint64(h.GasUsed),
		rlp.Uint64(h.Timestamp),
		rlp.String(h.ExtraData),
		rlp.String(h.MixHash.Bytes()),
		rlp.Uint64(h.Nonce),
	}
	if h.BaseFee != nil {
		items = append(items, rlp.BigInt(h.BaseFee))
	}
	if h.WithdrawalsRoot != nil {
		items = append(items, rlp.String(h.WithdrawalsRoot.Bytes()))
	}
	if h.BlobGasUsed != nil {
		items = append(items, rlp.Uint64(*h.BlobGasUsed))
	}
	if h.ExcessBlobGas != nil {
		items = append(items, rlp.Uint64(*h.ExcessBlobGas))
	}
	if h.ParentBeaconRoot != nil {
		items = append(items, rlp.String(h.ParentBeaconRoot.Bytes()))
	}
	return rlp.List(items...)
}

// Withdrawal is a validator withdrawal credited directly to an execution
// account, per EIP-4895.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        common.Address
	Amount         uint64 // in Gwei
}

func (w *Withdrawal) rlpValue() rlp.Value {
	return rlp.List(
		rlp.Uint64(w.Index),
		rlp.Uint64(w.ValidatorIndex),
		rlp.String(w.Address.Bytes()),
		rlp.Uint64(w.Amount),
	)
}

// MarshalBinary returns the withdrawal's canonical RLP encoding, the leaf
// value committed into a block's withdrawals trie.
func (w *Withdrawal) MarshalBinary() []byte {
	return rlp.Encode(w.rlpValue())
}

// Body is a block's transaction/withdrawal/ommer payload, detached from its
// header so the two can be fetched, validated and stored independently
// (spec §4.2).
type Body struct {
	Transactions []*Transaction
	Withdrawals  []*Withdrawal
	Uncles       []*Header
}

// Block pairs a header with its body.
type Block struct {
	Header *Header
	Body   Body
}

// Hash returns the block's header hash, which is the block's identity.
func (b *Block) Hash() common.Hash { return b.Header.Hash() }

// DeriveTxRoot hands each transaction's index and encoding to commit, in
// order; building the transactions-root trie from them is up to commit.
func DeriveTxRoot(txs []*Transaction, commit func(index uint64, encoded []byte) error) error {
	for i, tx := range txs {
		enc, err := tx.MarshalBinary()
		if err != nil {
			return err
		}
		if err := commit(uint64(i), enc); err != nil {
			return err
		}
	}
	return nil
}
