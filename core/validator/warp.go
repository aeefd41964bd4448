package validator

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// warpDST is the BLS domain-separation tag this chain's warp/attestation
// signatures are signed under, keeping them non-interchangeable with BLS
// signatures produced for any other purpose (e.g. the beacon chain's own
// DST) even if the same validator key is reused across contexts.
var warpDST = []byte("execd-warp-attestation-v1")

// Validator is one member of the weighted signer set a WarpAttestation's
// quorum is checked against — the set the consensus-layer driver maintains
// and the fork-choice path treats as an external collaborator's input,
// mirroring ForkChoice's own "driver supplies state" shape.
type Validator struct {
	PublicKey []byte // 48-byte compressed BLS12-381 G1 point
	Weight    uint64
}

// WarpSignature is one validator's signature over a WarpAttestation's
// message, identified by the same compressed public key bytes used in its
// Validator entry.
type WarpSignature struct {
	PublicKey []byte
	Signature []byte // 96-byte compressed BLS12-381 G2 point
}

// WarpAttestation is a cross-chain message together with the subset of a
// validator set's signatures collected over it, the shape a warp-style
// message-passing precompile (spec's REDESIGN FLAGS carve-out for
// cross-subnet messaging) verifies before trusting Message's contents.
type WarpAttestation struct {
	Message []byte
	Signers []WarpSignature
}

var (
	ErrUnknownSigner    = errors.New("validator: warp signature from a key outside the validator set")
	ErrInvalidSignature = errors.New("validator: warp signature does not verify")
)

// VerifyWarpAttestation checks every signer's BLS signature over att.Message
// individually (no signature aggregation — each Validator's weight is only
// counted once its own signature verifies), then reports whether the
// verified weight clears the num/den quorum fraction of the full set's
// total weight.
func VerifyWarpAttestation(validators []Validator, att WarpAttestation, num, den uint64) (bool, error) {
	weightByKey := make(map[string]uint64, len(validators))
	var total uint64
	for _, v := range validators {
		weightByKey[string(v.PublicKey)] = v.Weight
		total += v.Weight
	}

	var verified uint64
	seen := make(map[string]bool, len(att.Signers))
	for _, sig := range att.Signers {
		weight, ok := weightByKey[string(sig.PublicKey)]
		if !ok {
			return false, ErrUnknownSigner
		}
		if seen[string(sig.PublicKey)] {
			continue
		}
		seen[string(sig.PublicKey)] = true

		var pk blst.P1Affine
		if pk.Deserialize(sig.PublicKey) == nil {
			return false, ErrInvalidSignature
		}
		var s blst.P2Affine
		if s.Deserialize(sig.Signature) == nil {
			return false, ErrInvalidSignature
		}
		if !s.Verify(true, &pk, true, att.Message, warpDST) {
			return false, ErrInvalidSignature
		}
		verified += weight
	}

	if total == 0 || den == 0 {
		return false, nil
	}
	return verified*den >= total*num, nil
}
