package vm

import (
	"errors"

	"github.com/holiman/uint256"
)

// stackLimit is the maximum number of elements the EVM operand stack may
// hold at once, per spec §4.3.
const stackLimit = 1024

var (
	errStackUnderflow = errors.New("vm: stack underflow")
	errStackOverflow  = errors.New("vm: stack overflow")
)

// Stack is the EVM's 256-bit-word operand stack.
type Stack struct {
	data []uint256.Int
}

func newStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

func (s *Stack) push(v *uint256.Int) {
	s.data = append(s.data, *v)
}

func (s *Stack) pop() uint256.Int {
	n := len(s.data) - 1
	v := s.data[n]
	s.data = s.data[:n]
	return v
}

func (s *Stack) len() int { return len(s.data) }

// peek returns the top element without removing it.
func (s *Stack) peek() *uint256.Int {
	return &s.data[len(s.data)-1]
}

// back returns the n-th element from the top, 0-indexed (back(0) == peek()).
func (s *Stack) back(n int) *uint256.Int {
	return &s.data[len(s.data)-n-1]
}

// swap exchanges the top element with the element n positions below it.
func (s *Stack) swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

// dup pushes a copy of the element n positions below the top (dup(1)
// duplicates the current top).
func (s *Stack) dup(n int) {
	v := s.data[len(s.data)-n]
	s.push(&v)
}
