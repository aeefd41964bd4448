package vm

import (
	"bytes"
	"testing"
)

func TestMemoryResizeZeroFills(t *testing.T) {
	m := newMemory()
	m.Resize(64)
	if m.Len() != 64 {
		t.Fatalf("expected len 64, got %d", m.Len())
	}
	if !bytes.Equal(m.Data(), make([]byte, 64)) {
		t.Fatalf("expected zero-filled memory")
	}
}

func TestMemorySetGetCopy(t *testing.T) {
	m := newMemory()
	m.Resize(32)
	m.Set(0, 4, []byte{1, 2, 3, 4})
	got := m.GetCopy(0, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected [1 2 3 4], got %v", got)
	}
}

func TestMemoryResizeNoShrink(t *testing.T) {
	m := newMemory()
	m.Resize(64)
	m.Set(0, 1, []byte{0xff})
	m.Resize(32)
	if m.Len() != 64 {
		t.Fatalf("expected resize to smaller size to be a no-op, got len %d", m.Len())
	}
}

func TestMemoryGasCostQuadratic(t *testing.T) {
	m := newMemory()
	cost, err := memoryGasCost(m, 32)
	if err != nil || cost != 3 {
		t.Fatalf("expected cost 3 for first word, got %d err %v", cost, err)
	}
	m.Resize(32)
	cost, err = memoryGasCost(m, 64)
	if err != nil || cost != 3 {
		t.Fatalf("expected cost 3 for second word, got %d err %v", cost, err)
	}
}

func TestMemoryGasCostOverflow(t *testing.T) {
	m := newMemory()
	if _, err := memoryGasCost(m, 0x1FFFFFFFE0+1); err == nil {
		t.Fatalf("expected overflow error")
	}
}
