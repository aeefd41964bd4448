package p2p

import (
	"math/big"
	"testing"

	"github.com/luxfi/execd/common"
)

func TestPeerSetRegisterUnregister(t *testing.T) {
	var counts []int
	ps := NewPeerSet(func(n int) { counts = append(counts, n) })

	p1 := NewPeer(NodeID{1}, "1.2.3.4:30303", nil)
	if err := ps.Register(p1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := ps.Register(p1); err != ErrPeerAlreadyRegistered {
		t.Fatalf("Register duplicate: got %v, want ErrPeerAlreadyRegistered", err)
	}
	if ps.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ps.Len())
	}

	if err := ps.Unregister(p1.ID()); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := ps.Unregister(p1.ID()); err != ErrPeerNotRegistered {
		t.Fatalf("Unregister again: got %v, want ErrPeerNotRegistered", err)
	}

	if len(counts) != 2 || counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("onChange calls = %v, want [1 0]", counts)
	}
}

func TestPeerSetBestPeer(t *testing.T) {
	ps := NewPeerSet(nil)
	low := NewPeer(NodeID{1}, "a", nil)
	low.SetHead(common.Hash{}, 1, big.NewInt(10))
	high := NewPeer(NodeID{2}, "b", nil)
	high.SetHead(common.Hash{}, 2, big.NewInt(100))

	ps.Register(low)
	ps.Register(high)

	best := ps.BestPeer()
	if best == nil || best.ID() != high.ID() {
		t.Fatalf("BestPeer() = %v, want peer with TD 100", best)
	}
}

func TestPeerSetBestPeerEmpty(t *testing.T) {
	ps := NewPeerSet(nil)
	if ps.BestPeer() != nil {
		t.Fatal("BestPeer() on empty set should be nil")
	}
}
