package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// hexUint64 renders a uint64 as the "0x"-prefixed minimal-digit hex string
// every JSON-RPC quantity field uses.
type hexUint64 uint64

func (h hexUint64) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", uint64(h))), nil
}

func (h *hexUint64) UnmarshalText(text []byte) error {
	v, err := parseHexUint64(string(text))
	if err != nil {
		return err
	}
	*h = hexUint64(v)
	return nil
}

// hexBig renders a *big.Int as a "0x"-prefixed hex string, nil as "0x0".
type hexBig struct{ *big.Int }

func (h hexBig) MarshalText() ([]byte, error) {
	if h.Int == nil {
		return []byte("0x0"), nil
	}
	return []byte("0x" + h.Int.Text(16)), nil
}

// hexBytes renders a byte slice as a "0x"-prefixed hex string.
type hexBytes []byte

func (h hexBytes) MarshalText() ([]byte, error) {
	return []byte("0x" + fmt.Sprintf("%x", []byte(h))), nil
}

func (h *hexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("malformed hex byte string: %w", err)
	}
	*h = b
	return nil
}

func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

func parseHexBig(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(s, 16)
	return v, ok
}
