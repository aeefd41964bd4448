package types

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// MarshalBinary encodes a body as an RLP list of (transactions, withdrawals,
// uncles), matching the shape the trie-rooted tx/withdrawals commitments are
// computed over.
func (b Body) MarshalBinary() []byte {
	txs := make([]rlp.Value, len(b.Transactions))
	for i, tx := range b.Transactions {
		enc, _ := tx.MarshalBinary()
		txs[i] = rlp.String(enc)
	}
	wds := make([]rlp.Value, len(b.Withdrawals))
	for i, w := range b.Withdrawals {
		wds[i] = w.rlpValue()
	}
	uncles := make([]rlp.Value, len(b.Uncles))
	for i, u := range b.Uncles {
		uncles[i] = u.rlpValue()
	}
	return rlp.Encode(rlp.List(rlp.List(txs...), rlp.List(wds...), rlp.List(uncles...)))
}

// UnmarshalBodyBinary parses a body previously produced by Body.MarshalBinary.
func UnmarshalBodyBinary(b []byte) (Body, error) {
	v, rest, err := rlp.Decode(b)
	if err != nil || len(rest) != 0 {
		return Body{}, ErrMalformedHeader
	}
	items, err := v.Items()
	if err != nil || len(items) != 3 {
		return Body{}, ErrMalformedHeader
	}
	txItems, err := items[0].Items()
	if err != nil {
		return Body{}, ErrMalformedHeader
	}
	txs := make([]*Transaction, len(txItems))
	for i, ti := range txItems {
		raw, err := ti.Bytes()
		if err != nil {
			return Body{}, ErrMalformedHeader
		}
		tx := &Transaction{}
		if err := tx.UnmarshalBinary(raw); err != nil {
			return Body{}, err
		}
		txs[i] = tx
	}
	wdItems, err := items[1].Items()
	if err != nil {
		return Body{}, ErrMalformedHeader
	}
	withdrawals := make([]*Withdrawal, len(wdItems))
	for i, wi := range wdItems {
		w, err := decodeWithdrawal(wi)
		if err != nil {
			return Body{}, err
		}
		withdrawals[i] = w
	}
	uncleItems, err := items[2].Items()
	if err != nil {
		return Body{}, ErrMalformedHeader
	}
	uncles := make([]*Header, len(uncleItems))
	for i, ui := range uncleItems {
		enc := rlp.Encode(ui)
		h, err := UnmarshalHeaderBinary(enc)
		if err != nil {
			return Body{}, err
		}
		uncles[i] = h
	}
	return Body{Transactions: txs, Withdrawals: withdrawals, Uncles: uncles}, nil
}

func decodeWithdrawal(v rlp.Value) (*Withdrawal, error) {
	items, err := v.Items()
	if err != nil || len(items) != 4 {
		return nil, ErrMalformedHeader
	}
	w := &Withdrawal{}
	if w.Index, err = items[0].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	if w.ValidatorIndex, err = items[1].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	addrBytes, err := items[2].Bytes()
	if err != nil {
		return nil, ErrMalformedHeader
	}
	w.Address = common.BytesToAddress(addrBytes)
	if w.Amount, err = items[3].Uint64(); err != nil {
		return nil, ErrMalformedHeader
	}
	return w, nil
}
