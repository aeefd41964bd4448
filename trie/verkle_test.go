package trie

import "testing"

func TestVerkleTrieInsertGetRemove(t *testing.T) {
	vt := NewVerkle(nil)

	key := make([]byte, 32)
	key[31] = 0x01
	val := make([]byte, 32)
	val[31] = 0x2a

	if err := vt.Insert(key, val); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, found, err := vt.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatalf("expected key to be found after insert")
	}
	if string(got) != string(val) {
		t.Fatalf("expected %x, got %x", val, got)
	}

	root1, err := vt.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if root1.IsZero() {
		t.Fatalf("expected a non-zero commitment after inserting a leaf")
	}

	removed, err := vt.Remove(key)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatalf("expected Remove to report the key was present")
	}
	if _, found, _ := vt.Get(key); found {
		t.Fatalf("expected key to be gone after Remove")
	}
}

func TestVerkleCommitmentsEqual(t *testing.T) {
	vtA := NewVerkle(nil)
	vtB := NewVerkle(nil)

	key := make([]byte, 32)
	val := make([]byte, 32)
	val[0] = 0x07
	if err := vtA.Insert(key, val); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := vtB.Insert(key, val); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	rootA, err := vtA.Commit()
	if err != nil {
		t.Fatalf("commit a: %v", err)
	}
	rootB, err := vtB.Commit()
	if err != nil {
		t.Fatalf("commit b: %v", err)
	}

	eq, err := VerkleCommitmentsEqual(rootA, rootB)
	if err != nil {
		t.Fatalf("compare commitments: %v", err)
	}
	if !eq {
		t.Fatalf("expected two trees built from the same inserts to commit equal")
	}
}
