package main

import (
	"fmt"
	"os"

	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
)

// importChain loads a sequence of RLP-encoded [header, body] pairs from
// path and writes each into st, advancing the canonical chain as it goes.
// It does not replay transactions against the state trie: --import seeds a
// header/body archive for serving eth/68 history (spec §4.7's sync
// surface), a full re-execution pass is a separate backfill job layered on
// top of this store, not this entrypoint's concern.
func importChain(st *store.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	count := 0
	rest := raw
	for len(rest) > 0 {
		entry, tail, err := rlp.Decode(rest)
		if err != nil {
			return count, fmt.Errorf("decoding block %d: %w", count, err)
		}
		rest = tail

		items, err := entry.Items()
		if err != nil {
			return count, fmt.Errorf("block %d: %w", count, err)
		}
		if len(items) != 2 {
			return count, fmt.Errorf("block %d: expected [header, body], got %d items", count, len(items))
		}
		headerBytes, err := items[0].Bytes()
		if err != nil {
			return count, fmt.Errorf("block %d: header: %w", count, err)
		}
		bodyBytes, err := items[1].Bytes()
		if err != nil {
			return count, fmt.Errorf("block %d: body: %w", count, err)
		}

		header, err := types.UnmarshalHeaderBinary(headerBytes)
		if err != nil {
			return count, fmt.Errorf("block %d: unmarshal header: %w", count, err)
		}
		body, err := types.UnmarshalBodyBinary(bodyBytes)
		if err != nil {
			return count, fmt.Errorf("block %d: unmarshal body: %w", count, err)
		}

		hash := header.Hash()
		if err := st.PutHeader(header); err != nil {
			return count, fmt.Errorf("block %d: put header: %w", count, err)
		}
		if err := st.PutBody(hash, body); err != nil {
			return count, fmt.Errorf("block %d: put body: %w", count, err)
		}
		st.SetCanonical(header.Number, hash)

		cd := st.ChainData()
		cd.Latest = header.Number
		st.SetChainData(cd)

		count++
	}
	return count, nil
}
