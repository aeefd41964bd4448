package trie

import (
	"bytes"
	"testing"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/triedb"
)

func TestTrieInsertGet(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)

	entries := map[string]string{
		"do":    "verb",
		"dog":   "puppy",
		"doge":  "coin",
		"horse": "stallion",
	}
	for k, v := range entries {
		if err := tr.Insert([]byte(k), []byte(v)); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}
	for k, v := range entries {
		got, found, err := tr.Get([]byte(k))
		if err != nil {
			t.Fatalf("get %q: %v", k, err)
		}
		if !found {
			t.Fatalf("get %q: not found", k)
		}
		if string(got) != v {
			t.Fatalf("get %q: got %q, want %q", k, got, v)
		}
	}
	if _, found, _ := tr.Get([]byte("missing")); found {
		t.Fatal("expected missing key to be absent")
	}
}

func TestTrieRootDeterminism(t *testing.T) {
	entries := [][2]string{
		{"do", "verb"},
		{"dog", "puppy"},
		{"doge", "coin"},
		{"horse", "stallion"},
	}

	build := func(order []int) common.Hash {
		db := triedb.NewMemoryDB()
		tr := New(common.Hash{}, common.Hash{}, db)
		for _, i := range order {
			if err := tr.Insert([]byte(entries[i][0]), []byte(entries[i][1])); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		return tr.RootHash()
	}

	h1 := build([]int{0, 1, 2, 3})
	h2 := build([]int{3, 2, 1, 0})
	h3 := build([]int{2, 0, 3, 1})
	if h1 != h2 || h1 != h3 {
		t.Fatalf("root hash depends on insertion order: %x %x %x", h1, h2, h3)
	}
	if h1.IsZero() {
		t.Fatal("root hash must not be zero for a non-empty trie")
	}
}

func TestTrieEmptyRoot(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)
	if h := tr.RootHash(); h != common.EmptyRootHash {
		t.Fatalf("empty trie root = %x, want %x", h, common.EmptyRootHash)
	}
}

func TestTrieRemove(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)
	keys := []string{"do", "dog", "doge", "horse"}
	for _, k := range keys {
		if err := tr.Insert([]byte(k), []byte(k+"-val")); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := tr.Remove([]byte("dog"))
	if err != nil || !removed {
		t.Fatalf("remove dog: removed=%v err=%v", removed, err)
	}
	if _, found, _ := tr.Get([]byte("dog")); found {
		t.Fatal("dog should be gone")
	}
	for _, k := range []string{"do", "doge", "horse"} {
		if _, found, _ := tr.Get([]byte(k)); !found {
			t.Fatalf("%q should survive removal of a sibling", k)
		}
	}
	removed, err = tr.Remove([]byte("dog"))
	if err != nil || removed {
		t.Fatalf("second remove of dog: removed=%v err=%v", removed, err)
	}
}

func TestTrieRemoveToEmpty(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)
	if err := tr.Insert([]byte("only"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Remove([]byte("only")); err != nil {
		t.Fatal(err)
	}
	if h := tr.RootHash(); h != common.EmptyRootHash {
		t.Fatalf("root after removing the only key = %x, want empty root", h)
	}
}

func TestTrieCommitAndReload(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)
	keys := []string{"alpha", "alligator", "beta", "bet", "gamma"}
	for _, k := range keys {
		if err := tr.Insert([]byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	root, err := tr.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded := New(root, common.Hash{}, db)
	for _, k := range keys {
		got, found, err := reloaded.Get([]byte(k))
		if err != nil || !found {
			t.Fatalf("reloaded get %q: found=%v err=%v", k, found, err)
		}
		if !bytes.Equal(got, []byte(k)) {
			t.Fatalf("reloaded get %q: got %q", k, got)
		}
	}
	if reloaded.RootHash() != root {
		t.Fatalf("reloaded root = %x, want %x", reloaded.RootHash(), root)
	}
}

func TestTrieStorageNamespacing(t *testing.T) {
	db := triedb.NewMemoryDB()
	acctA := common.HexToHash("0x01")
	acctB := common.HexToHash("0x02")
	trA := NewStorage(common.Hash{}, acctA, db)
	trB := NewStorage(common.Hash{}, acctB, db)
	if err := trA.Insert([]byte("slot"), []byte("valueA")); err != nil {
		t.Fatal(err)
	}
	if err := trB.Insert([]byte("slot"), []byte("valueB")); err != nil {
		t.Fatal(err)
	}
	rootA, err := trA.Commit()
	if err != nil {
		t.Fatal(err)
	}
	rootB, err := trB.Commit()
	if err != nil {
		t.Fatal(err)
	}

	reloadA := NewStorage(rootA, acctA, db)
	v, found, err := reloadA.Get([]byte("slot"))
	if err != nil || !found || string(v) != "valueA" {
		t.Fatalf("account A storage: v=%q found=%v err=%v", v, found, err)
	}
	reloadB := NewStorage(rootB, acctB, db)
	v, found, err = reloadB.Get([]byte("slot"))
	if err != nil || !found || string(v) != "valueB" {
		t.Fatalf("account B storage: v=%q found=%v err=%v", v, found, err)
	}
}

func TestProveAndVerify(t *testing.T) {
	db := triedb.NewMemoryDB()
	tr := New(common.Hash{}, common.Hash{}, db)
	keys := []string{"do", "dog", "doge", "horse", "cat", "category"}
	for _, k := range keys {
		if err := tr.Insert([]byte(k), []byte(k+"-val")); err != nil {
			t.Fatal(err)
		}
	}
	root, err := tr.Commit()
	if err != nil {
		t.Fatal(err)
	}
	reloaded := New(root, common.Hash{}, db)

	for _, k := range keys {
		proof, err := reloaded.Prove([]byte(k))
		if err != nil {
			t.Fatalf("prove %q: %v", k, err)
		}
		val, err := VerifyProof(root, []byte(k), proof)
		if err != nil {
			t.Fatalf("verify %q: %v", k, err)
		}
		if string(val) != k+"-val" {
			t.Fatalf("verify %q: got %q", k, val)
		}
	}

	proof, err := reloaded.Prove([]byte("missing"))
	if err != nil {
		t.Fatalf("prove missing: %v", err)
	}
	val, err := VerifyProof(root, []byte("missing"), proof)
	if err != nil {
		t.Fatalf("verify absence of missing: %v", err)
	}
	if val != nil {
		t.Fatalf("expected nil value for absent key, got %q", val)
	}
}
