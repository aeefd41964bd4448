package vm

import "github.com/holiman/uint256"

// memorySizeFor builds a memorySizeFunc for the common "offset, size" pair
// of stack operands found at depths offIdx/sizeIdx from the top (0 = top).
func memorySizeFor(offIdx, sizeIdx int) memorySizeFunc {
	return func(s *Stack) (uint64, bool) {
		return calcMemSize(s.back(offIdx), s.back(sizeIdx))
	}
}

// memorySizeForByte builds a memorySizeFunc for a single-byte write at the
// stack's offIdx-from-top operand (MSTORE8).
func memorySizeForByte(offIdx int) memorySizeFunc {
	return func(s *Stack) (uint64, bool) {
		off := s.back(offIdx)
		if !off.IsUint64() {
			return 0, false
		}
		return safeAdd(off.Uint64(), 1)
	}
}

func memorySizeMcopy(s *Stack) (uint64, bool) {
	dst, src, size := s.back(0), s.back(1), s.back(2)
	dstEnd, ok := calcMemSize(dst, size)
	if !ok {
		return 0, false
	}
	srcEnd, ok := calcMemSize(src, size)
	if !ok {
		return 0, false
	}
	if srcEnd > dstEnd {
		return srcEnd, true
	}
	return dstEnd, true
}

// memorySizeCallValue covers CALL/CALLCODE's stack layout: gas, addr,
// value, argsOffset, argsSize, retOffset, retSize.
func memorySizeCallValue(s *Stack) (uint64, bool) {
	return memCallExtent(s.back(3), s.back(4), s.back(5), s.back(6))
}

// memorySizeCallNoValue covers DELEGATECALL/STATICCALL's stack layout:
// gas, addr, argsOffset, argsSize, retOffset, retSize.
func memorySizeCallNoValue(s *Stack) (uint64, bool) {
	return memCallExtent(s.back(2), s.back(3), s.back(4), s.back(5))
}

func memCallExtent(argsOff, argsSize, retOff, retSize *uint256.Int) (uint64, bool) {
	inEnd, ok := calcMemSize(argsOff, argsSize)
	if !ok {
		return 0, false
	}
	outEnd, ok := calcMemSize(retOff, retSize)
	if !ok {
		return 0, false
	}
	if outEnd > inEnd {
		return outEnd, true
	}
	return inEnd, true
}

func calcMemSize(off, size *uint256.Int) (uint64, bool) {
	if size.IsZero() {
		return 0, true
	}
	if !off.IsUint64() || !size.IsUint64() {
		return 0, false
	}
	return safeAdd(off.Uint64(), size.Uint64())
}

func safeAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
