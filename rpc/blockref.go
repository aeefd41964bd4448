package rpc

import (
	"fmt"

	"github.com/luxfi/execd/core/store"
)

// blockTag names the well-known, non-numeric block identifiers spec §6
// allows alongside a 0x-prefixed hex number.
type blockTag string

const (
	tagLatest    blockTag = "latest"
	tagEarliest  blockTag = "earliest"
	tagPending   blockTag = "pending"
	tagSafe      blockTag = "safe"
	tagFinalized blockTag = "finalized"
)

// resolveBlockNumber maps a JSON-RPC block identifier (a tag string or a
// 0x-prefixed hex quantity) to a concrete block number against cd, the
// chain-data singleton's well-known markers.
func resolveBlockNumber(raw string, cd store.ChainData) (uint64, error) {
	switch blockTag(raw) {
	case tagLatest, "":
		return cd.Latest, nil
	case tagEarliest:
		return cd.Earliest, nil
	case tagPending:
		return cd.Pending, nil
	case tagSafe:
		return cd.Safe, nil
	case tagFinalized:
		return cd.Finalized, nil
	}
	n, err := parseHexUint64(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid block identifier %q: %w", raw, err)
	}
	return n, nil
}
