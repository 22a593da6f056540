// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"sync"

	"github.com/holiman/uint256"
)

var stackPool = sync.Pool{
	New: func() any {
		return &Stack{data: make([]uint256.Int, 0, 16)}
	},
}

// Stack is the EVM's 1024-deep operand stack. Values popped are expected
// to be mutated in place by the caller; Stack never zeroes them.
// Grounded on execution/vm/stack.go, with the same pooling
// strategy but generalized off its package-level log dependency.
type Stack struct {
	data []uint256.Int
}

// NewStack returns a Stack from the pool.
func NewStack() *Stack {
	return stackPool.Get().(*Stack)
}

// ReturnStack releases s back to the pool.
func ReturnStack(s *Stack) {
	s.data = s.data[:0]
	stackPool.Put(s)
}

func (st *Stack) push(d uint256.Int) { st.data = append(st.data, d) }

func (st *Stack) pop() (ret uint256.Int) {
	ret = st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return
}

func (st *Stack) Push(d uint256.Int) { st.push(d) }
func (st *Stack) Pop() uint256.Int    { return st.pop() }
func (st *Stack) Len() int            { return len(st.data) }
func (st *Stack) Cap() int            { return cap(st.data) }

func (st *Stack) Swap(n int) {
	st.data[st.Len()-n-1], st.data[st.Len()-1] = st.data[st.Len()-1], st.data[st.Len()-n-1]
}

func (st *Stack) Dup(n int) {
	st.data = append(st.data, st.data[len(st.data)-n])
}

func (st *Stack) Peek() *uint256.Int {
	return &st.data[len(st.data)-1]
}

// Back returns the n'th item from the top of the stack without popping.
func (st *Stack) Back(n int) *uint256.Int {
	return &st.data[len(st.data)-n-1]
}

func (st *Stack) String() string {
	var s string
	for _, di := range st.data {
		s += di.Hex() + ", "
	}
	return s
}
