package types

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// TxType discriminates the five transaction envelopes spec §3 requires a
// single polymorphic codec to round-trip.
type TxType byte

const (
	LegacyTxType      TxType = 0x00
	AccessListTxType  TxType = 0x01 // EIP-2930
	DynamicFeeTxType  TxType = 0x02 // EIP-1559
	BlobTxType        TxType = 0x03 // EIP-4844
	PrivilegedTxType  TxType = 0x7e // L2-sequencer-originated, never gossipped
)

// AccessTuple is one entry of an EIP-2930 access list: an address plus the
// storage slots pre-warmed for it.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

func (a AccessTuple) rlpValue() rlp.Value {
	keys := make([]rlp.Value, len(a.StorageKeys))
	for i, k := range a.StorageKeys {
		keys[i] = rlp.String(k.Bytes())
	}
	return rlp.List(rlp.String(a.Address.Bytes()), rlp.List(keys...))
}

func decodeAccessTuple(v rlp.Value) (AccessTuple, error) {
	items, err := v.Items()
	if err != nil || len(items) != 2 {
		return AccessTuple{}, ErrMalformedTx
	}
	addrBytes, err := items[0].Bytes()
	if err != nil {
		return AccessTuple{}, ErrMalformedTx
	}
	keyItems, err := items[1].Items()
	if err != nil {
		return AccessTuple{}, ErrMalformedTx
	}
	keys := make([]common.Hash, len(keyItems))
	for i, ki := range keyItems {
		kb, err := ki.Bytes()
		if err != nil {
			return AccessTuple{}, ErrMalformedTx
		}
		keys[i] = common.BytesToHash(kb)
	}
	return AccessTuple{Address: common.BytesToAddress(addrBytes), StorageKeys: keys}, nil
}

// Transaction is the union of all five supported envelopes. Not every field
// applies to every Type; the zero value of an inapplicable field is never
// serialized for that type.
type Transaction struct {
	Type TxType

	ChainID   *big.Int // absent (nil) for legacy pre-EIP-155
	Nonce     uint64
	GasTipCap *big.Int // type 2/3 priority fee; unused by legacy/type-1
	GasFeeCap *big.Int // type 2/3 max fee; legacy/type-1 use GasPrice instead
	GasPrice  *big.Int // legacy/type-1 explicit price
	GasLimit  uint64
	To        *common.Address // nil for contract creation
	Value     *big.Int
	Data      []byte
	AccessList []AccessTuple // type 1/2/3

	BlobFeeCap  *big.Int      // type 3
	BlobHashes  []common.Hash // type 3, versioned hashes

	// PrivilegedTxType fields: a sequencer-injected L1→L2 message, never
	// signed by a wallet and never broadcast over the public mempool.
	PrivilegedFrom common.Address

	V *big.Int
	R *big.Int
	S *big.Int
}

// SigningHash is the hash signed by the sender, computed over every field
// except the signature itself.
func (tx *Transaction) SigningHash() common.Hash {
	return common.Keccak256Hash(tx.encodePayload(false))
}

// Hash is the transaction's identity: the Keccak-256 of its full encoding
// (including signature), matching the hash used for mempool keys and
// receipts lookups.
func (tx *Transaction) Hash() common.Hash {
	enc, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}
	}
	return common.Keccak256Hash(enc)
}

// MarshalBinary produces the canonical wire encoding: for Type Legacy, bare
// RLP; for every other type, a one-byte type prefix followed by the RLP
// payload (EIP-2718).
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	payload := tx.encodePayload(true)
	if tx.Type == LegacyTxType {
		return payload, nil
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(tx.Type))
	out = append(out, payload...)
	return out, nil
}

func (tx *Transaction) encodePayload(withSig bool) []byte {
	var items []rlp.Value
	switch tx.Type {
	case LegacyTxType:
		items = []rlp.Value{
			rlp.Uint64(tx.Nonce),
			rlp.BigInt(tx.GasPrice),
			rlp.Uint64(tx.GasLimit),
			rlp.String(toBytes(tx.To)),
			rlp.BigInt(tx.Value),
			rlp.String(tx.Data),
		}
		if withSig {
			items = append(items, rlp.BigInt(tx.V), rlp.BigInt(tx.R), rlp.BigInt(tx.S))
		} else if tx.ChainID != nil && tx.ChainID.Sign() != 0 {
			// EIP-155 replay protection for the signing hash.
			items = append(items, rlp.BigInt(tx.ChainID), rlp.Uint64(0), rlp.Uint64(0))
		}
		return rlp.Encode(rlp.List(items...))

	case AccessListTxType:
		items = append(items,
			rlp.BigInt(tx.ChainID),
			rlp.Uint64(tx.Nonce),
			rlp.BigInt(tx.GasPrice),
			rlp.Uint64(tx.GasLimit),
			rlp.String(toBytes(tx.To)),
			rlp.BigInt(tx.Value),
			rlp.String(tx.Data),
			accessListValue(tx.AccessList),
		)
		if withSig {
			items = append(items, rlp.BigInt(tx.V), rlp.BigInt(tx.R), rlp.BigInt(tx.S))
		}
		return rlp.Encode(rlp.List(items...))

	case DynamicFeeTxType:
		items = append(items,
			rlp.BigInt(tx.ChainID),
			rlp.Uint64(tx.Nonce),
			rlp.BigInt(tx.GasTipCap),
			rlp.BigInt(tx.GasFeeCap),
			rlp.Uint64(tx.GasLimit),
			rlp.String(toBytes(tx.To)),
			rlp.BigInt(tx.Value),
			rlp.String(tx.Data),
			accessListValue(tx.AccessList),
		)
		if withSig {
			items = append(items, rlp.BigInt(tx.V), rlp.BigInt(tx.R), rlp.BigInt(tx.S))
		}
		return rlp.Encode(rlp.List(items...))

	case BlobTxType:
		hashes := make([]rlp.Value, len(tx.BlobHashes))
		for i, h := range tx.BlobHashes {
			hashes[i] = rlp.String(h.Bytes())
		}
		items = append(items,
			rlp.BigInt(tx.ChainID),
			rlp.Uint64(tx.Nonce),
			rlp.BigInt(tx.GasTipCap),
			rlp.BigInt(tx.GasFeeCap),
			rlp.Uint64(tx.GasLimit),
			rlp.String(toBytes(tx.To)),
			rlp.BigInt(tx.Value),
			rlp.String(tx.Data),
			accessListValue(tx.AccessList),
			rlp.BigInt(tx.BlobFeeCap),
			rlp.List(hashes...),
		)
		if withSig {
			items = append(items, rlp.BigInt(tx.V), rlp.BigInt(tx.R), rlp.BigInt(tx.S))
		}
		return rlp.Encode(rlp.List(items...))

	case PrivilegedTxType:
		// No signature: authenticity comes from having been produced by the
		// sequencer itself, not from a recoverable ECDSA signature.
		items = []rlp.Value{
			rlp.BigInt(tx.ChainID),
			rlp.Uint64(tx.Nonce),
			rlp.String(tx.PrivilegedFrom.Bytes()),
			rlp.String(toBytes(tx.To)),
			rlp.Uint64(tx.GasLimit),
			rlp.BigInt(tx.Value),
			rlp.String(tx.Data),
		}
		return rlp.Encode(rlp.List(items...))

	default:
		return nil
	}
}

func accessListValue(list []AccessTuple) rlp.Value {
	items := make([]rlp.Value, len(list))
	for i, a := range list {
		items[i] = a.rlpValue()
	}
	return rlp.List(items...)
}

func toBytes(a *common.Address) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

// UnmarshalBinary parses the wire encoding produced by MarshalBinary.
func (tx *Transaction) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return ErrMalformedTx
	}
	if b[0] >= 0xc0 {
		return tx.decodeLegacy(b)
	}
	typ := TxType(b[0])
	payload := b[1:]
	v, rest, err := rlp.Decode(payload)
	if err != nil || len(rest) != 0 {
		return ErrMalformedTx
	}
	items, err := v.Items()
	if err != nil {
		return ErrMalformedTx
	}
	switch typ {
	case AccessListTxType:
		return tx.decodeAccessList(items)
	case DynamicFeeTxType:
		return tx.decodeDynamicFee(items)
	case BlobTxType:
		return tx.decodeBlob(items)
	case PrivilegedTxType:
		return tx.decodePrivileged(items)
	default:
		return ErrMalformedTx
	}
}

func (tx *Transaction) decodeLegacy(b []byte) error {
	v, rest, err := rlp.Decode(b)
	if err != nil || len(rest) != 0 {
		return ErrMalformedTx
	}
	items, err := v.Items()
	if err != nil || len(items) != 9 {
		return ErrMalformedTx
	}
	tx.Type = LegacyTxType
	if tx.Nonce, err = items[0].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasPrice, err = items[1].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasLimit, err = items[2].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if err := tx.decodeTo(items[3]); err != nil {
		return err
	}
	tx.Value, err = items[4].BigInt()
	if err != nil {
		return ErrMalformedTx
	}
	tx.Data, err = items[5].Bytes()
	if err != nil {
		return ErrMalformedTx
	}
	tx.V, err = items[6].BigInt()
	if err != nil {
		return ErrMalformedTx
	}
	tx.R, err = items[7].BigInt()
	if err != nil {
		return ErrMalformedTx
	}
	tx.S, err = items[8].BigInt()
	if err != nil {
		return ErrMalformedTx
	}
	return nil
}

func (tx *Transaction) decodeTo(v rlp.Value) error {
	b, err := v.Bytes()
	if err != nil {
		return ErrMalformedTx
	}
	if len(b) == 0 {
		tx.To = nil
		return nil
	}
	addr := common.BytesToAddress(b)
	tx.To = &addr
	return nil
}

func decodeAccessListItems(v rlp.Value) ([]AccessTuple, error) {
	items, err := v.Items()
	if err != nil {
		return nil, ErrMalformedTx
	}
	out := make([]AccessTuple, len(items))
	for i, it := range items {
		at, err := decodeAccessTuple(it)
		if err != nil {
			return nil, err
		}
		out[i] = at
	}
	return out, nil
}

func (tx *Transaction) decodeAccessList(items []rlp.Value) error {
	if len(items) != 11 {
		return ErrMalformedTx
	}
	tx.Type = AccessListTxType
	var err error
	tx.ChainID, err = items[0].BigInt()
	if err != nil {
		return ErrMalformedTx
	}
	if tx.Nonce, err = items[1].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasPrice, err = items[2].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasLimit, err = items[3].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if err := tx.decodeTo(items[4]); err != nil {
		return err
	}
	if tx.Value, err = items[5].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Data, err = items[6].Bytes(); err != nil {
		return ErrMalformedTx
	}
	if tx.AccessList, err = decodeAccessListItems(items[7]); err != nil {
		return err
	}
	if tx.V, err = items[8].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.R, err = items[9].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.S, err = items[10].BigInt(); err != nil {
		return ErrMalformedTx
	}
	return nil
}

func (tx *Transaction) decodeDynamicFee(items []rlp.Value) error {
	if len(items) != 12 {
		return ErrMalformedTx
	}
	tx.Type = DynamicFeeTxType
	var err error
	if tx.ChainID, err = items[0].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Nonce, err = items[1].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasTipCap, err = items[2].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasFeeCap, err = items[3].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasLimit, err = items[4].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if err := tx.decodeTo(items[5]); err != nil {
		return err
	}
	if tx.Value, err = items[6].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Data, err = items[7].Bytes(); err != nil {
		return ErrMalformedTx
	}
	if tx.AccessList, err = decodeAccessListItems(items[8]); err != nil {
		return err
	}
	if tx.V, err = items[9].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.R, err = items[10].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.S, err = items[11].BigInt(); err != nil {
		return ErrMalformedTx
	}
	return nil
}

func (tx *Transaction) decodeBlob(items []rlp.Value) error {
	if len(items) != 14 {
		return ErrMalformedTx
	}
	tx.Type = BlobTxType
	var err error
	if tx.ChainID, err = items[0].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Nonce, err = items[1].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasTipCap, err = items[2].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasFeeCap, err = items[3].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.GasLimit, err = items[4].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if err := tx.decodeTo(items[5]); err != nil {
		return err
	}
	if tx.Value, err = items[6].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Data, err = items[7].Bytes(); err != nil {
		return ErrMalformedTx
	}
	if tx.AccessList, err = decodeAccessListItems(items[8]); err != nil {
		return err
	}
	if tx.BlobFeeCap, err = items[9].BigInt(); err != nil {
		return ErrMalformedTx
	}
	hashItems, err := items[10].Items()
	if err != nil {
		return ErrMalformedTx
	}
	tx.BlobHashes = make([]common.Hash, len(hashItems))
	for i, hi := range hashItems {
		hb, err := hi.Bytes()
		if err != nil {
			return ErrMalformedTx
		}
		tx.BlobHashes[i] = common.BytesToHash(hb)
	}
	if tx.V, err = items[11].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.R, err = items[12].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.S, err = items[13].BigInt(); err != nil {
		return ErrMalformedTx
	}
	return nil
}

func (tx *Transaction) decodePrivileged(items []rlp.Value) error {
	if len(items) != 7 {
		return ErrMalformedTx
	}
	tx.Type = PrivilegedTxType
	var err error
	if tx.ChainID, err = items[0].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Nonce, err = items[1].Uint64(); err != nil {
		return ErrMalformedTx
	}
	fromBytes, err := items[2].Bytes()
	if err != nil {
		return ErrMalformedTx
	}
	tx.PrivilegedFrom = common.BytesToAddress(fromBytes)
	if err := tx.decodeTo(items[3]); err != nil {
		return err
	}
	if tx.GasLimit, err = items[4].Uint64(); err != nil {
		return ErrMalformedTx
	}
	if tx.Value, err = items[5].BigInt(); err != nil {
		return ErrMalformedTx
	}
	if tx.Data, err = items[6].Bytes(); err != nil {
		return ErrMalformedTx
	}
	return nil
}

// EffectiveGasPrice computes min(max_fee_per_gas, base_fee + max_priority)
// for fee-market transactions, or the explicit price for legacy/type-1, per
// spec §4.5.
func (tx *Transaction) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	switch tx.Type {
	case LegacyTxType, AccessListTxType:
		return new(big.Int).Set(tx.GasPrice)
	case DynamicFeeTxType, BlobTxType:
		if baseFee == nil {
			return new(big.Int).Set(tx.GasFeeCap)
		}
		tip := new(big.Int).Sub(tx.GasFeeCap, baseFee)
		if tip.Cmp(tx.GasTipCap) > 0 {
			tip.Set(tx.GasTipCap)
		}
		return new(big.Int).Add(baseFee, tip)
	default:
		return new(big.Int)
	}
}

// IntrinsicGas computes the base gas charge before any EVM execution: the
// flat per-transaction cost, calldata bytes, access-list entries, and
// (EIP-3860) init-code words, per spec §4.5.
func (tx *Transaction) IntrinsicGas() uint64 {
	const (
		txGas            = 21000
		txGasContractCreation = 53000
		txDataZeroGas    = 4
		txDataNonZeroGas = 16
		txAccessListAddressGas = 2400
		txAccessListSlotGas    = 1900
		initCodeWordGas  = 2
	)
	gas := uint64(txGas)
	if tx.To == nil {
		gas += txGasContractCreation
		words := (uint64(len(tx.Data)) + 31) / 32
		gas += words * initCodeWordGas
	}
	for _, b := range tx.Data {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	for _, a := range tx.AccessList {
		gas += txAccessListAddressGas
		gas += uint64(len(a.StorageKeys)) * txAccessListSlotGas
	}
	return gas
}
