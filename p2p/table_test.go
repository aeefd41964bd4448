package p2p

import "testing"

func TestTableAddAndLen(t *testing.T) {
	tab := NewTable(NodeID{0})
	for i := 1; i <= 5; i++ {
		tab.AddNode(Node{ID: NodeID{byte(i)}})
	}
	if tab.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", tab.Len())
	}
}

func TestTableAddNodeIdempotent(t *testing.T) {
	tab := NewTable(NodeID{0})
	n := Node{ID: NodeID{9}, TCP: 1}
	tab.AddNode(n)
	n.TCP = 2
	tab.AddNode(n)
	if tab.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after re-adding same id", tab.Len())
	}
}

func TestTableBucketOverflowGoesToReplacements(t *testing.T) {
	self := NodeID{0}
	tab := NewTable(self)

	// Fill one bucket to capacity with IDs that all share the same
	// keccak-distance bucket index is impractical to construct by hand, so
	// instead drive bucketSize+1 nodes at the bucket self lands nearest to
	// the same index by reusing bucketIndex to filter inputs.
	var idx = -1
	added := 0
	for i := 0; added < bucketSize+1 && i < 100000; i++ {
		id := NodeID{byte(i), byte(i >> 8)}
		bi := tab.bucketIndex(id)
		if idx == -1 {
			idx = bi
		}
		if bi != idx {
			continue
		}
		tab.AddNode(Node{ID: id})
		added++
	}
	if added != bucketSize+1 {
		t.Skip("could not construct enough same-bucket ids in bound")
	}
	if got := tab.BucketLen(idx); got != bucketSize {
		t.Fatalf("BucketLen(%d) = %d, want %d", idx, got, bucketSize)
	}
}

func TestTableRemoveNodePromotesReplacement(t *testing.T) {
	self := NodeID{0}
	tab := NewTable(self)

	var idx = -1
	var ids []NodeID
	for i := 0; len(ids) < bucketSize+1 && i < 100000; i++ {
		id := NodeID{byte(i), byte(i >> 8)}
		bi := tab.bucketIndex(id)
		if idx == -1 {
			idx = bi
		}
		if bi != idx {
			continue
		}
		ids = append(ids, id)
		tab.AddNode(Node{ID: id})
	}
	if len(ids) != bucketSize+1 {
		t.Skip("could not construct enough same-bucket ids in bound")
	}

	before := tab.BucketLen(idx)
	tab.RemoveNode(ids[0])
	after := tab.BucketLen(idx)
	if after != before {
		t.Fatalf("BucketLen after remove+promote = %d, want %d", after, before)
	}
}

func TestTableClosestOrdersByDistance(t *testing.T) {
	tab := NewTable(NodeID{0})
	var ids []NodeID
	for i := 1; i <= 8; i++ {
		id := NodeID{byte(i)}
		ids = append(ids, id)
		tab.AddNode(Node{ID: id})
	}
	target := NodeID{1}
	closest := tab.Closest(target, 3)
	if len(closest) == 0 {
		t.Fatal("Closest returned no nodes")
	}
	prev := keccakDistance(target, closest[0].ID)
	for _, n := range closest[1:] {
		d := keccakDistance(target, n.ID)
		if d > prev {
			t.Fatalf("Closest not sorted nearest-first: %d after %d", d, prev)
		}
		prev = d
	}
}

func TestTableRecordFailureEvictsAfterThreshold(t *testing.T) {
	tab := NewTable(NodeID{0})
	id := NodeID{42}
	tab.AddNode(Node{ID: id})
	for i := 0; i < maxReplacements; i++ {
		tab.RecordFailure(id)
	}
	idx := tab.bucketIndex(id)
	for _, e := range tab.buckets[idx].entries {
		if e.node.ID == id {
			t.Fatalf("node %s should have been evicted after %d failures", id, maxReplacements)
		}
	}
}
