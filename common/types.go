// Package common holds the small fixed-size value types shared by every
// layer of the execution core: addresses, hashes and the log bloom filter.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	// AddressLength is the expected length of an account address, in bytes.
	AddressLength = 20
	// HashLength is the expected length of a Keccak-256 hash, in bytes.
	HashLength = 32
	// BloomByteLength is the byte size of the 2048-bit logs bloom filter.
	BloomByteLength = 256
)

// Hash is a 32-byte Keccak-256 output.
type Hash [HashLength]byte

// BytesToHash left-pads or truncates b to HashLength and returns the result.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool   { return h == Hash{} }

// MarshalText renders h as a "0x"-prefixed hex string, used by encoding/json
// and as the key encoding for map[Hash]... fields.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText parses a "0x"-prefixed hex string into h.
func (h *Hash) UnmarshalText(text []byte) error {
	*h = BytesToHash(FromHex(string(text)))
	return nil
}

// Address is a 20-byte account identifier.
type Address [AddressLength]byte

// BytesToAddress left-pads or truncates b to AddressLength and returns the result.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool   { return a == Address{} }

// MarshalText renders a as a "0x"-prefixed hex string, used by encoding/json
// and as the key encoding for map[Address]... fields (e.g. a genesis
// allocation map).
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses a "0x"-prefixed hex string into a.
func (a *Address) UnmarshalText(text []byte) error {
	*a = BytesToAddress(FromHex(string(text)))
	return nil
}

// Hash returns keccak256(address), the key used to locate the account in the
// world-state trie.
func (a Address) Hash() Hash { return BytesToHash(Keccak256(a[:])) }

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hash is Keccak256 with the result wrapped as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(Keccak256(data...))
}

// EmptyCodeHash is keccak256 of the empty byte string; every account with no
// deployed code carries this value, per spec §3.
var EmptyCodeHash = Keccak256Hash(nil)

// EmptyRootHash is the root of an empty Merkle-Patricia trie: the keccak256
// of the RLP encoding of an empty string (rlp(nil) == 0x80).
var EmptyRootHash = Keccak256Hash([]byte{0x80})

// LeftPadBytes returns a slice of length size, right-aligning b within it.
func LeftPadBytes(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// RightPadBytes returns a slice of length size, left-aligning b within it.
func RightPadBytes(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}

// Bloom is the 2048-bit logs bloom filter carried in every block header.
type Bloom [BloomByteLength]byte

// Add folds an item (a log address or topic) into the bloom filter using the
// standard three 11-bit-index scheme derived from Keccak256(item).
func (b *Bloom) Add(item []byte) {
	h := Keccak256(item)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(h[i*2])<<8 | uint(h[i*2+1])) & 0x7ff
		byteIdx := BloomByteLength - 1 - bitIdx/8
		b[byteIdx] |= 1 << (bitIdx % 8)
	}
}

// Test reports whether item's bits are all set in the bloom (a possible, not
// certain, membership test).
func (b Bloom) Test(item []byte) bool {
	h := Keccak256(item)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(h[i*2])<<8 | uint(h[i*2+1])) & 0x7ff
		byteIdx := BloomByteLength - 1 - bitIdx/8
		if b[byteIdx]&(1<<(bitIdx%8)) == 0 {
			return false
		}
	}
	return true
}

// OrBloom ORs other into b in place, folding a per-log or per-receipt bloom
// into a block-wide accumulator.
func (b *Bloom) OrBloom(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

func (h Hash) GoString() string    { return fmt.Sprintf("common.HexToHash(%q)", h.String()) }
func (a Address) GoString() string { return fmt.Sprintf("common.HexToAddress(%q)", a.String()) }

// HexToHash decodes a 0x-prefixed or bare hex string into a Hash.
func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

// HexToAddress decodes a 0x-prefixed or bare hex string into an Address.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

// FromHex decodes a 0x-prefixed or bare hex string, ignoring a single leading
// zero nibble pad used by odd-length inputs.
func FromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
