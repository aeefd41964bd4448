package types

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// Account is the world-state tuple stored at keccak(address) in the state
// trie: (nonce, balance, storage_root, code_hash), per spec §3. An empty
// account (zero nonce, zero balance, empty code) is never stored; its
// absence from the trie IS the representation.
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EmptyAccount returns the zero-value account an absent trie entry implies.
func EmptyAccount() Account {
	return Account{
		Balance:     new(big.Int),
		StorageRoot: common.EmptyRootHash,
		CodeHash:    common.EmptyCodeHash,
	}
}

// IsEmpty reports whether an account has no nonce, no balance and no code,
// the condition under which spec §3 says it must not be stored.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.Sign() == 0) && a.CodeHash == common.EmptyCodeHash
}

// EncodeRLP serializes the account tuple in its canonical field order.
func (a Account) EncodeRLP() []byte {
	bal := a.Balance
	if bal == nil {
		bal = new(big.Int)
	}
	return rlp.Encode(rlp.List(
		rlp.Uint64(a.Nonce),
		rlp.BigInt(bal),
		rlp.String(a.StorageRoot.Bytes()),
		rlp.String(a.CodeHash.Bytes()),
	))
}

// DecodeAccountRLP parses an account tuple previously produced by EncodeRLP.
func DecodeAccountRLP(b []byte) (Account, error) {
	v, rest, err := rlp.Decode(b)
	if err != nil || len(rest) != 0 {
		return Account{}, ErrMalformedAccount
	}
	items, err := v.Items()
	if err != nil || len(items) != 4 {
		return Account{}, ErrMalformedAccount
	}
	nonce, err := items[0].Uint64()
	if err != nil {
		return Account{}, ErrMalformedAccount
	}
	balance, err := items[1].BigInt()
	if err != nil {
		return Account{}, ErrMalformedAccount
	}
	rootBytes, err := items[2].Bytes()
	if err != nil {
		return Account{}, ErrMalformedAccount
	}
	codeBytes, err := items[3].Bytes()
	if err != nil {
		return Account{}, ErrMalformedAccount
	}
	return Account{
		Nonce:       nonce,
		Balance:     balance,
		StorageRoot: common.BytesToHash(rootBytes),
		CodeHash:    common.BytesToHash(codeBytes),
	}, nil
}
