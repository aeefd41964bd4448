package vm

import (
	"crypto/sha256"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for the 0x03 precompile's exact digest

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/kzg"
)

// PrecompiledContract is a native contract reachable from a CALL family
// opcode at a reserved low address, per spec §4.3's precompile set.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// precompiles is the full Cancun-era address table (0x01-0x0a); this
// interpreter targets a single fork so, unlike go-ethereum's per-fork
// precompile maps, there is exactly one set rather than one keyed by
// chain rules.
var precompiles = map[common.Address]PrecompiledContract{
	common.BytesToAddress([]byte{0x01}): &ecrecoverContract{},
	common.BytesToAddress([]byte{0x02}): &sha256Contract{},
	common.BytesToAddress([]byte{0x03}): &ripemd160Contract{},
	common.BytesToAddress([]byte{0x04}): &identityContract{},
	common.BytesToAddress([]byte{0x05}): &modexpContract{},
	common.BytesToAddress([]byte{0x06}): &bn256AddContract{},
	common.BytesToAddress([]byte{0x07}): &bn256ScalarMulContract{},
	common.BytesToAddress([]byte{0x08}): &bn256PairingContract{},
	common.BytesToAddress([]byte{0x09}): &blake2FContract{},
	common.BytesToAddress([]byte{0x0a}): &pointEvaluationContract{},
}

// runPrecompile dispatches to a precompile if addr names one, deducting its
// declared gas cost up front and faulting with ErrOutOfGas if the caller
// didn't supply enough, matching every other opcode's charge-before-run
// discipline.
func runPrecompile(addr common.Address, input []byte, gas uint64) (ret []byte, remainingGas uint64, handled bool, err error) {
	p, ok := precompiles[addr]
	if !ok {
		return nil, gas, false, nil
	}
	cost := p.RequiredGas(input)
	if cost > gas {
		return nil, 0, true, ErrOutOfGas
	}
	ret, err = p.Run(input)
	return ret, gas - cost, true, err
}

func padRight(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func sliceOrZero(b []byte, start, length int) []byte {
	out := make([]byte, length)
	if start >= len(b) {
		return out
	}
	end := start + length
	if end > len(b) {
		end = len(b)
	}
	copy(out, b[start:end])
	return out
}

// --- 0x01 ecrecover ---

type ecrecoverContract struct{}

func (c *ecrecoverContract) RequiredGas([]byte) uint64 { return 3000 }

// secp256k1Order is the curve's group order n; EIP-2's malleability check
// requires s (and, as a well-formedness check, r) to fall strictly below it.
var secp256k1Order, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// Run recovers the signer address from a (hash, v, r, s) tuple, per
// spec §4.3's ECDSA-recovery precompile; a malformed or invalid signature
// yields an empty return value rather than an error, matching the
// reference EVM's "fail silently" precompile convention.
func (c *ecrecoverContract) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)
	hash := input[:32]
	v := new(big.Int).SetBytes(input[32:64])
	r := input[64:96]
	s := input[96:128]

	if !v.IsUint64() || (v.Uint64() != 27 && v.Uint64() != 28) {
		return nil, nil
	}
	if new(big.Int).SetBytes(r).Sign() == 0 || new(big.Int).SetBytes(s).Sign() == 0 {
		return nil, nil
	}
	if new(big.Int).SetBytes(r).Cmp(secp256k1Order) >= 0 || new(big.Int).SetBytes(s).Cmp(secp256k1Order) >= 0 {
		return nil, nil
	}

	sig := make([]byte, 65)
	sig[0] = byte(v.Uint64())
	copy(sig[1:33], r)
	copy(sig[33:65], s)

	pub, _, err := ecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return nil, nil
	}
	uncompressed := pub.SerializeUncompressed()
	addrHash := common.Keccak256(uncompressed[1:])
	out := make([]byte, 32)
	copy(out[12:], addrHash[12:])
	return out, nil
}

// --- 0x02 sha256 ---

// sha256Contract uses crypto/sha256 directly: SHA-256 is a fixed algorithm
// with one correct implementation, not a concern any ecosystem library
// wraps differently, so the standard library is the right tool here.
type sha256Contract struct{}

func (c *sha256Contract) RequiredGas(input []byte) uint64 {
	return 60 + 12*uint64((len(input)+31)/32)
}

func (c *sha256Contract) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// --- 0x03 ripemd160 ---

type ripemd160Contract struct{}

func (c *ripemd160Contract) RequiredGas(input []byte) uint64 {
	return 600 + 120*uint64((len(input)+31)/32)
}

func (c *ripemd160Contract) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	sum := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[12:], sum)
	return out, nil
}

// --- 0x04 identity ---

type identityContract struct{}

func (c *identityContract) RequiredGas(input []byte) uint64 {
	return 15 + 3*uint64((len(input)+31)/32)
}

func (c *identityContract) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// --- 0x05 modexp ---

// modexpContract leans on math/big's own Exp: arbitrary-precision modular
// exponentiation is exactly what big.Int already provides, and the
// precompile's job is reading EIP-198's length-prefixed wire format around
// it, not re-implementing the arithmetic.
type modexpContract struct{}

func modexpLen(input []byte, offset int) *big.Int {
	return new(big.Int).SetBytes(sliceOrZero(input, offset, 32))
}

func (c *modexpContract) RequiredGas(input []byte) uint64 {
	baseLen := modexpLen(input, 0).Uint64()
	expLen := modexpLen(input, 32).Uint64()
	modLen := modexpLen(input, 64).Uint64()

	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := (maxLen + 7) / 8
	gas := words * words

	expStart := 96 + baseLen
	expHead := new(big.Int).SetBytes(sliceOrZero(input, int(expStart), min64(int(expLen), 32)))
	bitLen := expHead.BitLen()
	multiplier := uint64(1)
	if bitLen > 0 {
		multiplier = uint64(bitLen)
	}
	cost := gas * multiplier / 3
	if cost < 200 {
		cost = 200
	}
	return cost
}

func min64(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (c *modexpContract) Run(input []byte) ([]byte, error) {
	baseLen := modexpLen(input, 0).Uint64()
	expLen := modexpLen(input, 32).Uint64()
	modLen := modexpLen(input, 64).Uint64()

	base := new(big.Int).SetBytes(sliceOrZero(input, 96, int(baseLen)))
	exp := new(big.Int).SetBytes(sliceOrZero(input, 96+int(baseLen), int(expLen)))
	mod := new(big.Int).SetBytes(sliceOrZero(input, 96+int(baseLen)+int(expLen), int(modLen)))

	if mod.Sign() == 0 {
		return make([]byte, modLen), nil
	}
	result := new(big.Int).Exp(base, exp, mod)
	out := make([]byte, modLen)
	result.FillBytes(out)
	return out, nil
}

// --- 0x06/0x07/0x08 alt_bn128 ---

// bn254Point parses a 64-byte uncompressed alt_bn128 G1 point (X||Y, each
// 32 bytes big-endian); the all-zero encoding is the point at infinity.
func bn254Point(b []byte) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	var x, y fp.Element
	x.SetBytes(b[:32])
	y.SetBytes(b[32:64])
	p.X, p.Y = x, y
	if p.X.IsZero() && p.Y.IsZero() {
		return p, nil
	}
	if !p.IsOnCurve() {
		return p, errInvalidCurvePoint
	}
	return p, nil
}

var errInvalidCurvePoint = &precompileError{"bn256: point not on curve"}

type precompileError struct{ msg string }

func (e *precompileError) Error() string { return e.msg }

func bn254Bytes(p *bn254.G1Affine) []byte {
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	out := make([]byte, 64)
	copy(out[:32], xb[:])
	copy(out[32:], yb[:])
	return out
}

type bn256AddContract struct{}

func (c *bn256AddContract) RequiredGas([]byte) uint64 { return 150 }

func (c *bn256AddContract) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)
	a, err := bn254Point(input[:64])
	if err != nil {
		return nil, err
	}
	b, err := bn254Point(input[64:128])
	if err != nil {
		return nil, err
	}
	var sum bn254.G1Affine
	sum.Add(&a, &b)
	return bn254Bytes(&sum), nil
}

type bn256ScalarMulContract struct{}

func (c *bn256ScalarMulContract) RequiredGas([]byte) uint64 { return 6000 }

func (c *bn256ScalarMulContract) Run(input []byte) ([]byte, error) {
	input = padRight(input, 96)
	p, err := bn254Point(input[:64])
	if err != nil {
		return nil, err
	}
	scalar := new(big.Int).SetBytes(input[64:96])
	var out bn254.G1Affine
	out.ScalarMultiplication(&p, scalar)
	return bn254Bytes(&out), nil
}

type bn256PairingContract struct{}

const bn256PairInputSize = 192

func (c *bn256PairingContract) RequiredGas(input []byte) uint64 {
	return 45000 + 34000*uint64(len(input)/bn256PairInputSize)
}

// Run checks whether the product of pairings over the submitted G1/G2
// pairs is the identity in GT, EIP-197's batch-verification precompile.
// Each G2 coordinate is encoded imaginary-part-first (x.c1, x.c0, y.c1,
// y.c0), the convention EIP-197 itself specifies and that differs from
// gnark-crypto's natural (c0, c1) field-element ordering.
func (c *bn256PairingContract) Run(input []byte) ([]byte, error) {
	if len(input)%bn256PairInputSize != 0 {
		return nil, &precompileError{"bn256: invalid pairing input length"}
	}
	var g1s []bn254.G1Affine
	var g2s []bn254.G2Affine
	for off := 0; off < len(input); off += bn256PairInputSize {
		chunk := input[off : off+bn256PairInputSize]
		g1, err := bn254Point(chunk[:64])
		if err != nil {
			return nil, err
		}
		var xC1, xC0, yC1, yC0 fp.Element
		xC1.SetBytes(chunk[64:96])
		xC0.SetBytes(chunk[96:128])
		yC1.SetBytes(chunk[128:160])
		yC0.SetBytes(chunk[160:192])

		var g2 bn254.G2Affine
		g2.X.A0, g2.X.A1 = xC0, xC1
		g2.Y.A0, g2.Y.A1 = yC0, yC1
		if !(g2.X.IsZero() && g2.Y.IsZero()) && !g2.IsOnCurve() {
			return nil, &precompileError{"bn256: g2 point not on curve"}
		}
		g1s = append(g1s, g1)
		g2s = append(g2s, g2)
	}

	ok, err := bn254.PairingCheck(g1s, g2s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out, nil
}

// --- 0x09 blake2f ---

// blake2FContract exposes EIP-152's compression-function precompile via
// golang.org/x/crypto/blake2b's exported F, the same primitive geth's own
// blake2f precompile is built on rather than a hand-rolled reimplementation
// of the round function.
type blake2FContract struct{}

const blake2FInputLength = 213

func (c *blake2FContract) RequiredGas(input []byte) uint64 {
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(beUint32(input[:4]))
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (c *blake2FContract) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, &precompileError{"blake2f: invalid input length"}
	}
	final := input[212]
	if final != 0 && final != 1 {
		return nil, &precompileError{"blake2f: invalid final flag"}
	}
	rounds := beUint32(input[:4])

	var h [8]uint64
	for i := 0; i < 8; i++ {
		h[i] = leUint64(input[4+i*8:])
	}
	var m [16]uint64
	for i := 0; i < 16; i++ {
		m[i] = leUint64(input[68+i*8:])
	}
	var t [2]uint64
	t[0] = leUint64(input[196:])
	t[1] = leUint64(input[204:])

	blake2b.F(rounds, &h, m, t, final == 1)

	out := make([]byte, 64)
	for i := 0; i < 8; i++ {
		putLeUint64(out[i*8:], h[i])
	}
	return out, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// --- 0x0a point evaluation (EIP-4844) ---

type pointEvaluationContract struct{}

const pointEvaluationGas = 50000

func (c *pointEvaluationContract) RequiredGas([]byte) uint64 { return pointEvaluationGas }

func (c *pointEvaluationContract) Run(input []byte) ([]byte, error) {
	if len(input) != 192 {
		return nil, &precompileError{"kzg: invalid point-evaluation input length"}
	}
	versionedHash := common.BytesToHash(input[:32])
	z := input[32:64]
	y := input[64:96]
	commitment := input[96:144]
	proof := input[144:192]

	if err := kzg.VerifyPointEvaluation(versionedHash, z, y, commitment, proof); err != nil {
		return nil, err
	}
	return kzg.PointEvaluationSuccess(), nil
}
