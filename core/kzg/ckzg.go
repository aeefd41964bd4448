package kzg

import (
	"sync"

	ckzg4844 "github.com/ethereum/c-kzg-4844/v2"
)

// This tree defaults to the pure-Go crate-crypto/go-eth-kzg backend above
// for VerifySidecar/VerifyPointEvaluation. c-kzg-4844 is the FFI-backed
// reference implementation go-ethereum itself ships behind a build tag; it
// needs an explicit trusted-setup file on disk before first use (unlike
// go-eth-kzg's NewContext4096, it does not embed one), so it is wired here
// as an opt-in alternate backend an operator selects once such a file is
// available, rather than the always-on verification path.
var (
	ckzgSetupOnce sync.Once
	ckzgSetupErr  error
)

// LoadCKZGTrustedSetup initializes the c-kzg-4844 backend from the trusted
// setup file at path (the same file format as go-ethereum's bundled
// trusted_setup.txt). It is safe to call more than once; only the first
// call's result is kept.
func LoadCKZGTrustedSetup(path string) error {
	ckzgSetupOnce.Do(func() {
		ckzgSetupErr = ckzg4844.LoadTrustedSetupFile(path)
	})
	return ckzgSetupErr
}

// VerifyPointEvaluationCKZG is VerifyPointEvaluation's c-kzg-4844 twin: same
// EIP-4844 point-evaluation check, run through the FFI reference
// implementation instead of the pure-Go one. Callers must have already
// succeeded a LoadCKZGTrustedSetup call.
func VerifyPointEvaluationCKZG(z, y, commitment, proof []byte) (bool, error) {
	var zb, yb ckzg4844.Bytes32
	copy(zb[:], z)
	copy(yb[:], y)
	var comm, pr ckzg4844.Bytes48
	copy(comm[:], commitment)
	copy(pr[:], proof)
	return ckzg4844.VerifyKZGProof(comm, zb, yb, pr)
}
