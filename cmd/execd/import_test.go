package main

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
	"github.com/luxfi/execd/triedb"
)

func encodeBlockEntry(h *types.Header, b types.Body) []byte {
	return rlp.Encode(rlp.List(rlp.String(h.MarshalBinary()), rlp.String(b.MarshalBinary())))
}

func TestImportChainAdvancesCanonicalHead(t *testing.T) {
	st := store.New(triedb.NewMemoryDB())

	genesis := &types.Header{Difficulty: big.NewInt(0), Number: 0, GasLimit: 30_000_000}
	if err := st.PutHeader(genesis); err != nil {
		t.Fatalf("put genesis: %v", err)
	}
	genesisHash := genesis.Hash()
	st.SetCanonical(0, genesisHash)
	st.SetChainData(store.ChainData{GenesisHash: genesisHash, Latest: 0})

	block1 := &types.Header{ParentHash: genesisHash, Difficulty: big.NewInt(0), Number: 1, GasLimit: 30_000_000, Timestamp: 1}
	block2 := &types.Header{ParentHash: block1.Hash(), Difficulty: big.NewInt(0), Number: 2, GasLimit: 30_000_000, Timestamp: 2}

	var raw []byte
	raw = append(raw, encodeBlockEntry(block1, types.Body{})...)
	raw = append(raw, encodeBlockEntry(block2, types.Body{})...)

	path := filepath.Join(t.TempDir(), "chain.rlp")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	n, err := importChain(st, path)
	if err != nil {
		t.Fatalf("importChain: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d blocks, want 2", n)
	}

	got, err := st.GetCanonicalHash(2)
	if err != nil {
		t.Fatalf("GetCanonicalHash(2): %v", err)
	}
	if got != block2.Hash() {
		t.Fatalf("canonical hash at 2 mismatch")
	}
	if st.ChainData().Latest != 2 {
		t.Fatalf("chain data latest = %d, want 2", st.ChainData().Latest)
	}
}

func TestImportChainRejectsTruncatedEntry(t *testing.T) {
	st := store.New(triedb.NewMemoryDB())
	path := filepath.Join(t.TempDir(), "bad.rlp")
	if err := os.WriteFile(path, []byte{0xc0 + 1}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := importChain(st, path); err == nil {
		t.Fatal("expected decode error on truncated input")
	}
}
