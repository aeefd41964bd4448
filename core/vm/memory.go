package vm

// Memory is the EVM's byte-addressable, word-growable scratch space. It
// only ever grows (never shrinks) within a call frame, per spec §4.3.
type Memory struct {
	store []byte
}

func newMemory() *Memory {
	return &Memory{}
}

// Len returns the current size of allocated memory in bytes.
func (m *Memory) Len() int { return len(m.store) }

// Resize grows the memory to size bytes, zero-filling the new region. It is
// a no-op if the memory is already at least size bytes.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, m.store)
	m.store = grown
}

// Set writes value into memory starting at offset, which must already be
// within bounds (callers resize first via the gas-charged expansion path).
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	copy(m.store[offset:offset+size], value)
}

// GetCopy returns a fresh copy of size bytes starting at offset.
func (m *Memory) GetCopy(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a slice aliasing memory's backing array; callers must not
// retain it past the next mutation.
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Data returns the whole backing array.
func (m *Memory) Data() []byte { return m.store }

// memoryWordCount returns the number of 32-byte words needed to cover size
// bytes, rounding up.
func memoryWordCount(size uint64) uint64 {
	return (size + 31) / 32
}

// memoryGasCost computes the EIP memory-expansion cost of growing memory
// from its current size to newSize bytes: 3 gas per new word plus the
// quadratic term newWords^2/512, charged only for words beyond the current
// allocation.
func memoryGasCost(current *Memory, newSize uint64) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}
	if newSize > 0x1FFFFFFFE0 { // keeps the word count from overflowing on square
		return 0, errGasUintOverflow
	}
	newWords := memoryWordCount(newSize)
	newCost := newWords*newWords/512 + 3*newWords

	curWords := memoryWordCount(uint64(current.Len()))
	curCost := curWords*curWords/512 + 3*curWords

	if newCost <= curCost {
		return 0, nil
	}
	return newCost - curCost, nil
}
