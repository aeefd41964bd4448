// Package rlp implements Ethereum's Recursive Length Prefix encoding, the
// wire and storage format used by the trie, accounts, transactions and
// receipts throughout this module.
package rlp

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
)

// ErrExpectedList is returned when a list was expected but a string was found.
var ErrExpectedList = errors.New("rlp: expected list")

// ErrExpectedString is returned when a string was expected but a list was found.
var ErrExpectedString = errors.New("rlp: expected string")

// EmptyString is the encoding of the empty byte string, rlp(""): 0x80.
var EmptyString = []byte{0x80}

// EmptyList is the encoding of an empty list, rlp([]): 0xc0.
var EmptyList = []byte{0xc0}

// Value is a minimal RLP value tree: either a byte string or an ordered list
// of Values. It is the encoding-agnostic intermediate representation used to
// build and walk RLP structures (trie nodes, account tuples, tx envelopes)
// without hand-writing byte-counting logic at every call site.
type Value struct {
	str    []byte
	list   []Value
	isList bool
}

// String wraps a byte string as a Value.
func String(b []byte) Value { return Value{str: b} }

// List wraps a sequence of Values as an RLP list.
func List(items ...Value) Value { return Value{list: items, isList: true} }

// Uint64 encodes n as its minimal big-endian byte string (empty for zero).
func Uint64(n uint64) Value {
	if n == 0 {
		return Value{str: nil}
	}
	buf := make([]byte, 8)
	i := 8
	for n > 0 {
		i--
		buf[i] = byte(n)
		n >>= 8
	}
	return Value{str: buf[i:]}
}

// BigInt encodes n as its minimal big-endian byte string.
func BigInt(n *big.Int) Value {
	if n == nil || n.Sign() == 0 {
		return Value{str: nil}
	}
	return Value{str: n.Bytes()}
}

// IsList reports whether v is a list value.
func (v Value) IsList() bool { return v.isList }

// Encode serializes v per the RLP spec.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encodeInto(&buf, v)
	return buf.Bytes()
}

func encodeInto(buf *bytes.Buffer, v Value) {
	if v.isList {
		var body bytes.Buffer
		for _, item := range v.list {
			encodeInto(&body, item)
		}
		writeHeader(buf, 0xc0, body.Len())
		buf.Write(body.Bytes())
		return
	}
	s := v.str
	if len(s) == 1 && s[0] < 0x80 {
		buf.WriteByte(s[0])
		return
	}
	writeHeader(buf, 0x80, len(s))
	buf.Write(s)
}

func writeHeader(buf *bytes.Buffer, offset byte, size int) {
	if size < 56 {
		buf.WriteByte(offset + byte(size))
		return
	}
	sizeBytes := encodeLength(size)
	buf.WriteByte(offset + 55 + byte(len(sizeBytes)))
	buf.Write(sizeBytes)
}

func encodeLength(n int) []byte {
	if n == 0 {
		return nil
	}
	var buf [8]byte
	i := 8
	for n > 0 {
		i--
		buf[i] = byte(n)
		n >>= 8
	}
	return buf[i:]
}

// Decode parses exactly one RLP value from b, returning the value and any
// unconsumed trailing bytes.
func Decode(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, errors.New("rlp: empty input")
	}
	first := b[0]
	switch {
	case first < 0x80:
		return Value{str: b[0:1]}, b[1:], nil
	case first < 0xb8:
		size := int(first - 0x80)
		if len(b) < 1+size {
			return Value{}, nil, errors.New("rlp: short string")
		}
		return Value{str: b[1 : 1+size]}, b[1+size:], nil
	case first < 0xc0:
		lenLen := int(first - 0xb7)
		size, rest, err := readLength(b[1:], lenLen)
		if err != nil {
			return Value{}, nil, err
		}
		if len(rest) < size {
			return Value{}, nil, errors.New("rlp: short long string")
		}
		return Value{str: rest[:size]}, rest[size:], nil
	case first < 0xf8:
		size := int(first - 0xc0)
		if len(b) < 1+size {
			return Value{}, nil, errors.New("rlp: short list")
		}
		items, err := decodeList(b[1 : 1+size])
		if err != nil {
			return Value{}, nil, err
		}
		return Value{list: items, isList: true}, b[1+size:], nil
	default:
		lenLen := int(first - 0xf7)
		size, rest, err := readLength(b[1:], lenLen)
		if err != nil {
			return Value{}, nil, err
		}
		if len(rest) < size {
			return Value{}, nil, errors.New("rlp: short long list")
		}
		items, err := decodeList(rest[:size])
		if err != nil {
			return Value{}, nil, err
		}
		return Value{list: items, isList: true}, rest[size:], nil
	}
}

func readLength(b []byte, lenLen int) (int, []byte, error) {
	if len(b) < lenLen {
		return 0, nil, errors.New("rlp: short length prefix")
	}
	size := 0
	for _, c := range b[:lenLen] {
		size = size<<8 | int(c)
	}
	return size, b[lenLen:], nil
}

func decodeList(b []byte) ([]Value, error) {
	var items []Value
	for len(b) > 0 {
		v, rest, err := Decode(b)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		b = rest
	}
	return items, nil
}

// Bytes returns the raw byte string of a string Value; it errors on a list.
func (v Value) Bytes() ([]byte, error) {
	if v.isList {
		return nil, ErrExpectedString
	}
	return v.str, nil
}

// Items returns the elements of a list Value; it errors on a string.
func (v Value) Items() ([]Value, error) {
	if !v.isList {
		return nil, ErrExpectedList
	}
	return v.list, nil
}

// Uint64 decodes a string Value as a big-endian unsigned integer.
func (v Value) Uint64() (uint64, error) {
	b, err := v.Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, fmt.Errorf("rlp: uint64 overflow, %d bytes", len(b))
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

// BigInt decodes a string Value as a big-endian unsigned integer.
func (v Value) BigInt() (*big.Int, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
