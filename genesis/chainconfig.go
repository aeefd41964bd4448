// Package genesis loads the JSON genesis document described in spec §6: a
// chain-config object (chain id, per-fork activation block/timestamp), an
// allocation map, and initial header fields, producing the genesis block
// whose hash is persisted and must match on every subsequent load.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// ChainConfig is the "config" object of a genesis document: chain id plus
// one activation block (pre-Shanghai forks) or timestamp (Shanghai+) per
// fork, matching the teacher's params.ChainConfig field set.
type ChainConfig struct {
	ChainID *big.Int

	HomesteadBlock      *big.Int
	EIP150Block         *big.Int
	EIP155Block         *big.Int
	EIP158Block         *big.Int
	ByzantiumBlock      *big.Int
	ConstantinopleBlock *big.Int
	PetersburgBlock     *big.Int
	IstanbulBlock       *big.Int
	MuirGlacierBlock    *big.Int
	BerlinBlock         *big.Int
	LondonBlock         *big.Int

	ShanghaiTime *uint64
	CancunTime   *uint64
}

// IsLondon reports whether block is at or past the EIP-1559 activation.
func (c *ChainConfig) IsLondon(block uint64) bool { return blockActive(c.LondonBlock, block) }

// IsBerlin reports whether block is at or past the EIP-2930 activation.
func (c *ChainConfig) IsBerlin(block uint64) bool { return blockActive(c.BerlinBlock, block) }

// IsShanghai reports whether time is at or past the withdrawals activation.
func (c *ChainConfig) IsShanghai(time uint64) bool { return timeActive(c.ShanghaiTime, time) }

// IsCancun reports whether time is at or past the blob/beacon-root activation.
func (c *ChainConfig) IsCancun(time uint64) bool { return timeActive(c.CancunTime, time) }

func blockActive(activation *big.Int, block uint64) bool {
	if activation == nil {
		return false
	}
	return activation.Cmp(new(big.Int).SetUint64(block)) <= 0
}

func timeActive(activation *uint64, time uint64) bool {
	if activation == nil {
		return false
	}
	return *activation <= time
}

// chainConfigJSON mirrors ChainConfig with the hex/decimal-quantity string
// encoding genesis documents use for every numeric field.
type chainConfigJSON struct {
	ChainID *string `json:"chainId"`

	HomesteadBlock      *string `json:"homesteadBlock"`
	EIP150Block         *string `json:"eip150Block"`
	EIP155Block         *string `json:"eip155Block"`
	EIP158Block         *string `json:"eip158Block"`
	ByzantiumBlock      *string `json:"byzantiumBlock"`
	ConstantinopleBlock *string `json:"constantinopleBlock"`
	PetersburgBlock     *string `json:"petersburgBlock"`
	IstanbulBlock       *string `json:"istanbulBlock"`
	MuirGlacierBlock    *string `json:"muirGlacierBlock"`
	BerlinBlock         *string `json:"berlinBlock"`
	LondonBlock         *string `json:"londonBlock"`

	ShanghaiTime *string `json:"shanghaiTime"`
	CancunTime   *string `json:"cancunTime"`
}

func (c *ChainConfig) UnmarshalJSON(data []byte) error {
	var aux chainConfigJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if c.ChainID, err = parseQuantity(aux.ChainID); err != nil {
		return fmt.Errorf("genesis: config.chainId: %w", err)
	}
	if c.HomesteadBlock, err = parseQuantity(aux.HomesteadBlock); err != nil {
		return err
	}
	if c.EIP150Block, err = parseQuantity(aux.EIP150Block); err != nil {
		return err
	}
	if c.EIP155Block, err = parseQuantity(aux.EIP155Block); err != nil {
		return err
	}
	if c.EIP158Block, err = parseQuantity(aux.EIP158Block); err != nil {
		return err
	}
	if c.ByzantiumBlock, err = parseQuantity(aux.ByzantiumBlock); err != nil {
		return err
	}
	if c.ConstantinopleBlock, err = parseQuantity(aux.ConstantinopleBlock); err != nil {
		return err
	}
	if c.PetersburgBlock, err = parseQuantity(aux.PetersburgBlock); err != nil {
		return err
	}
	if c.IstanbulBlock, err = parseQuantity(aux.IstanbulBlock); err != nil {
		return err
	}
	if c.MuirGlacierBlock, err = parseQuantity(aux.MuirGlacierBlock); err != nil {
		return err
	}
	if c.BerlinBlock, err = parseQuantity(aux.BerlinBlock); err != nil {
		return err
	}
	if c.LondonBlock, err = parseQuantity(aux.LondonBlock); err != nil {
		return err
	}
	if c.ShanghaiTime, err = parseUint64Ptr(aux.ShanghaiTime); err != nil {
		return err
	}
	if c.CancunTime, err = parseUint64Ptr(aux.CancunTime); err != nil {
		return err
	}
	return nil
}

func parseQuantity(s *string) (*big.Int, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	n := new(big.Int)
	ok := false
	if strings.HasPrefix(*s, "0x") || strings.HasPrefix(*s, "0X") {
		_, ok = n.SetString((*s)[2:], 16)
	} else {
		_, ok = n.SetString(*s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("genesis: invalid integer quantity %q", *s)
	}
	return n, nil
}

func parseUint64(s *string) (uint64, error) {
	n, err := parseQuantity(s)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, nil
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("genesis: quantity %q overflows uint64", *s)
	}
	return n.Uint64(), nil
}

func parseUint64Ptr(s *string) (*uint64, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v, err := parseUint64(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
