// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import "github.com/holiman/uint256"

// Memory is the EVM's byte-addressable, word-expanding scratch space.
// Expansion is always to a multiple of 32 bytes and its gas cost is
// charged by the interpreter before Resize is called.
type Memory struct {
	store       []byte
	lastGasCost uint64
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory { return &Memory{} }

// Resize grows the backing store to at least size bytes, zero-filling
// the new region. Callers must have already charged the gas for this
// expansion via memoryGasCost.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Set writes value into m at offset.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("vm: memory write out of bounds")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes val as a 32-byte big-endian word at offset.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("vm: memory write out of bounds")
	}
	val.WriteToSlice(m.store[offset : offset+32])
}

// GetCopy returns an independent copy of size bytes starting at offset.
func (m *Memory) GetCopy(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	if len(m.store) <= int(offset) {
		return make([]byte, size)
	}
	cpy := make([]byte, size)
	copy(cpy, m.store[offset:])
	return cpy
}

// GetPtr returns a slice view of size bytes starting at offset, aliasing
// the backing store; callers must not retain it past the next Resize.
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

func (m *Memory) Len() int { return len(m.store) }

func (m *Memory) Data() []byte { return m.store }

// memoryWordSize returns ceil(size/32), the number of 32-byte words the
// given byte size occupies.
func memoryWordSize(size uint64) uint64 {
	return (size + 31) / 32
}

// memoryGasCost computes the EVM memory-expansion gas cost for growing to
// newSize bytes: quadratic term over 512 plus a linear term, matching
// go-ethereum/erigon's C_mem(a) = 3a + a²/512.
func memoryGasCost(current *Memory, newSize uint64) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}
	if newSize > 0x1FFFFFFFE0 {
		return 0, ErrGasUintOverflow
	}
	newWords := memoryWordSize(newSize)
	newCost := newWords*newWords/512 + 3*newWords
	var curCost uint64
	if current != nil {
		curWords := memoryWordSize(uint64(current.Len()))
		curCost = curWords*curWords/512 + 3*curWords
		if newCost <= curCost {
			return 0, nil
		}
	}
	return newCost - curCost, nil
}

// calcMemSize returns the byte offset+size needed to cover [off, off+size),
// rounded per EVM semantics: zero size never requires expansion.
func calcMemSize(off, size *uint256.Int) (uint64, bool) {
	if size.IsZero() {
		return 0, true
	}
	if !off.IsUint64() || !size.IsUint64() {
		return 0, false
	}
	sum, overflow := new(uint256.Int).AddOverflow(off, size)
	if overflow || !sum.IsUint64() {
		return 0, false
	}
	return sum.Uint64(), true
}
