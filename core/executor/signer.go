package executor

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

// secp256k1N is the order of the secp256k1 curve, used to reject malleable
// signatures per EIP-2 (Homestead): S must sit in the lower half.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
var secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

// Sender recovers the address that signed tx, per spec §4.7's admission
// check that every gossiped transaction's signature resolves to a sender.
// PrivilegedTxType transactions carry no wallet signature; their sender is
// the PrivilegedFrom field set by the sequencer that injected them.
func Sender(tx *types.Transaction) (common.Address, error) {
	if tx.Type == types.PrivilegedTxType {
		return tx.PrivilegedFrom, nil
	}
	if tx.V == nil || tx.R == nil || tx.S == nil {
		return common.Address{}, types.ErrInvalidSig
	}

	rawV, chainID, err := normalizeV(tx.Type, tx.V)
	if err != nil {
		return common.Address{}, err
	}
	if tx.Type == types.LegacyTxType && chainID != nil && tx.ChainID != nil && chainID.Cmp(tx.ChainID) != 0 {
		return common.Address{}, types.ErrInvalidSig
	}

	return recoverAddress(tx.SigningHash(), rawV, tx.R, tx.S)
}

// normalizeV maps a transaction's V field to a raw 0/1 recovery ID plus,
// for legacy EIP-155 signatures, the chain ID folded into it.
func normalizeV(typ types.TxType, v *big.Int) (byte, *big.Int, error) {
	if typ != types.LegacyTxType {
		if !v.IsUint64() || (v.Uint64() != 0 && v.Uint64() != 1) {
			return 0, nil, types.ErrInvalidSig
		}
		return byte(v.Uint64()), nil, nil
	}
	if v.IsUint64() && (v.Uint64() == 27 || v.Uint64() == 28) {
		return byte(v.Uint64() - 27), nil, nil
	}
	// EIP-155: v = chainID*2 + 35 + recoveryID
	if v.Cmp(big.NewInt(35)) < 0 {
		return 0, nil, types.ErrInvalidSig
	}
	diff := new(big.Int).Sub(v, big.NewInt(35))
	chainID := new(big.Int).Rsh(diff, 1)
	recID := byte(new(big.Int).And(diff, big.NewInt(1)).Uint64())
	return recID, chainID, nil
}

// recoverAddress reconstructs the compact signature format the secp256k1
// library expects ([recovery code][R][S]) and recovers the signer.
func recoverAddress(hash common.Hash, rawV byte, r, s *big.Int) (common.Address, error) {
	if r.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 {
		return common.Address{}, types.ErrInvalidSig
	}
	if s.Sign() <= 0 || s.Cmp(secp256k1HalfN) > 0 {
		return common.Address{}, types.ErrInvalidSig
	}

	var sig [65]byte
	sig[0] = 27 + rawV
	r.FillBytes(sig[1:33])
	s.FillBytes(sig[33:65])

	pub, _, err := ecdsa.RecoverCompact(sig[:], hash.Bytes())
	if err != nil {
		return common.Address{}, types.ErrInvalidSig
	}
	return pubkeyToAddress(pub), nil
}

// pubkeyToAddress derives the 20-byte account address from an uncompressed
// public key: the low 20 bytes of Keccak256(X || Y).
func pubkeyToAddress(pub *secp256k1.PublicKey) common.Address {
	uncompressed := pub.SerializeUncompressed() // 0x04 || X(32) || Y(32)
	hash := common.Keccak256(uncompressed[1:])
	return common.BytesToAddress(hash[12:])
}
