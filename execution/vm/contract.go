// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
)

// Contract is one call frame's execution context: the running code, its
// caller, the value transferred, remaining gas, and the input calldata.
// Grounded on execution/vm/contract.go, trimmed of its
// gas-tracer hook plumbing.
type Contract struct {
	caller common.Address
	self   common.Address

	Code     []byte
	CodeHash common.Hash
	Input    []byte

	Gas   uint64
	value *uint256.Int

	jumpdests map[common.Hash]bitvec // shared analysis cache, keyed by code hash
	analysis  bitvec

	IsStatic       bool
	IsDelegateCall bool

	CallDepth int
}

// NewContract returns a fresh call frame for executing code at self, as
// invoked by caller with gas and value.
func NewContract(caller, self common.Address, value *uint256.Int, gas uint64, code []byte, codeHash common.Hash) *Contract {
	return &Contract{
		caller:   caller,
		self:     self,
		Code:     code,
		CodeHash: codeHash,
		Gas:      gas,
		value:    value,
	}
}

func (c *Contract) Caller() common.Address  { return c.caller }
func (c *Contract) Address() common.Address { return c.self }
func (c *Contract) Value() *uint256.Int     { return c.value }

// UseGas deducts amount from the remaining gas, returning false (and not
// deducting) if insufficient gas remains.
func (c *Contract) UseGas(amount uint64) bool {
	if c.Gas < amount {
		return false
	}
	c.Gas -= amount
	return true
}

// validJumpdest reports whether dest is a JUMPDEST not embedded inside a
// PUSH instruction's immediate bytes, computing (and caching) the
// bitvector analysis lazily on first use.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(c.Code)) {
		return false
	}
	if c.analysis == nil {
		c.analysis = codeBitmap(c.Code)
	}
	return c.Code[udest] == byte(JUMPDEST) && !c.analysis.codeSegment(udest)
}

// bitvec marks which code offsets are push-data (and thus not valid jump
// targets or independently-decodable instructions), one bit per byte.
type bitvec []byte

func (bits bitvec) set(pos uint64) {
	bits[pos/8] |= 0x80 >> (pos % 8)
}

// codeSegment reports whether pos is PUSH immediate data (true) rather
// than an actual instruction byte (the bit is set for immediate data).
func (bits bitvec) codeSegment(pos uint64) bool {
	return bits[pos/8]&(0x80>>(pos%8)) != 0
}

// codeBitmap marks every byte that is PUSH immediate data, so jumpdest
// analysis can distinguish code bytes from data bytes without a full
// opcode decode pass at runtime.
func codeBitmap(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1+4)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := OpCode(code[pc])
		if op.isPush() {
			numbits := op.pushSize()
			pc++
			for ; numbits >= 8; numbits -= 8 {
				bits.set8(pc)
				pc += 8
			}
			for ; numbits > 0; numbits-- {
				bits.set(pc)
				pc++
			}
			continue
		}
		pc++
	}
	return bits
}

func (bits bitvec) set8(pos uint64) {
	bits[pos/8] |= 0xFF >> (pos % 8)
	bits[pos/8+1] |= ^(0xFF >> (pos % 8))
}
