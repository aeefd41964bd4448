// Package kzg verifies EIP-4844 blob sidecars: that a blob's commitment
// folds to its declared versioned hash, and that the commitment/proof pair
// actually attests to the blob's content.
package kzg

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"sync"

	gokzg4844 "github.com/crate-crypto/go-eth-kzg"
	"github.com/luxfi/execd/common"
)

var (
	ErrSidecarLengthMismatch = errors.New("kzg: blob/commitment/proof count does not match versioned hash count")
	ErrVersionedHashMismatch = errors.New("kzg: commitment does not fold to its declared versioned hash")
	ErrInvalidProof          = errors.New("kzg: proof does not verify against blob and commitment")
)

// blobCommitmentVersion is EIP-4844's single defined versioned-hash version byte.
const blobCommitmentVersion = 0x01

var (
	ctx     *gokzg4844.Context
	ctxOnce sync.Once
	ctxErr  error
)

func context() (*gokzg4844.Context, error) {
	ctxOnce.Do(func() {
		ctx, ctxErr = gokzg4844.NewContext4096()
	})
	return ctx, ctxErr
}

// VersionedHash folds a 48-byte KZG commitment into its EIP-4844 versioned
// hash: the commitment's SHA-256 digest with its first byte replaced by the
// blob commitment version.
func VersionedHash(commitment []byte) common.Hash {
	h := sha256.Sum256(commitment)
	h[0] = blobCommitmentVersion
	return common.Hash(h)
}

// fieldElementsPerBlob and blsModulus are the two 32-byte words EIP-4844's
// point-evaluation precompile returns on success, letting a caller confirm
// which field modulus and blob size the verification ran against.
var (
	fieldElementsPerBlob = func() []byte {
		b := make([]byte, 32)
		big.NewInt(4096).FillBytes(b)
		return b
	}()
	blsModulus = func() []byte {
		modulus, _ := new(big.Int).SetString("52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)
		b := make([]byte, 32)
		modulus.FillBytes(b)
		return b
	}()
)

// PointEvaluationSuccess returns the precompile's fixed 64-byte success
// payload: FIELD_ELEMENTS_PER_BLOB followed by BLS_MODULUS, both as 32-byte
// big-endian integers.
func PointEvaluationSuccess() []byte {
	out := make([]byte, 64)
	copy(out[:32], fieldElementsPerBlob)
	copy(out[32:], blsModulus)
	return out
}

// VerifyPointEvaluation checks that commitment opens to y at the
// evaluation point z, and that commitment itself folds to versionedHash —
// the two checks EIP-4844's point-evaluation precompile performs so a
// rollup's data-availability proof can be checked on-chain.
func VerifyPointEvaluation(versionedHash common.Hash, z, y, commitment, proof []byte) error {
	if VersionedHash(commitment) != versionedHash {
		return ErrVersionedHashMismatch
	}
	c, err := context()
	if err != nil {
		return err
	}
	var zb, yb [32]byte
	copy(zb[:], z)
	copy(yb[:], y)
	var comm gokzg4844.KZGCommitment
	copy(comm[:], commitment)
	var pr gokzg4844.KZGProof
	copy(pr[:], proof)
	if err := c.VerifyKZGProof(comm, zb, yb, pr); err != nil {
		return ErrInvalidProof
	}
	return nil
}

// VerifySidecar checks that blobs/commitments/proofs line up positionally
// with hashes (one triple per versioned hash, per §4.7's sidecar rule),
// that every commitment folds to its declared versioned hash, and that
// every (blob, commitment, proof) triple passes the KZG point-evaluation
// check.
func VerifySidecar(hashes []common.Hash, blobs, commitments, proofs [][]byte) error {
	if len(blobs) != len(hashes) || len(commitments) != len(hashes) || len(proofs) != len(hashes) {
		return ErrSidecarLengthMismatch
	}
	c, err := context()
	if err != nil {
		return err
	}
	for i, h := range hashes {
		if VersionedHash(commitments[i]) != h {
			return ErrVersionedHashMismatch
		}
		var blob gokzg4844.Blob
		copy(blob[:], blobs[i])
		var commitment gokzg4844.KZGCommitment
		copy(commitment[:], commitments[i])
		var proof gokzg4844.KZGProof
		copy(proof[:], proofs[i])
		if err := c.VerifyBlobKZGProof(blob, commitment, proof); err != nil {
			return ErrInvalidProof
		}
	}
	return nil
}
