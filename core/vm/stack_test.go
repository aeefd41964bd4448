package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestStackPushPopOrder(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	if got := s.pop(); got.Uint64() != 3 {
		t.Fatalf("expected 3, got %d", got.Uint64())
	}
	if got := s.pop(); got.Uint64() != 2 {
		t.Fatalf("expected 2, got %d", got.Uint64())
	}
	if s.len() != 1 {
		t.Fatalf("expected len 1, got %d", s.len())
	}
}

func TestStackDupSwap(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(10))
	s.push(uint256.NewInt(20))

	s.dup(2)
	if got := s.peek(); got.Uint64() != 10 {
		t.Fatalf("expected dup(2) to copy bottom value 10, got %d", got.Uint64())
	}

	s.swap(1)
	if got := s.pop(); got.Uint64() != 20 {
		t.Fatalf("expected swap(1) to bring 20 to top, got %d", got.Uint64())
	}
}

func TestStackBack(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	if got := s.back(0); got.Uint64() != 3 {
		t.Fatalf("back(0) expected top 3, got %d", got.Uint64())
	}
	if got := s.back(2); got.Uint64() != 1 {
		t.Fatalf("back(2) expected bottom 1, got %d", got.Uint64())
	}
}
