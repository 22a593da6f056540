// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import "github.com/ethexec/execore/execution/chain"

// executionFunc implements one opcode's logic against the current call
// frame's stack/memory/contract.
type executionFunc func(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error)

// gasFunc computes an opcode's input-dependent gas cost, in addition
// to its constantGas, grounded on core/vm gasFunc shape
// (memorySize already resolved and expansion already charged by the
// caller by the time gasFunc runs).
type gasFunc func(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error)

// memorySizeFunc computes the number of bytes of memory an opcode
// touches, from the stack state alone (before the opcode executes).
type memorySizeFunc func(stack *Stack) (size uint64, overflow bool)

// operation is one jump-table entry: an opcode's logic, fixed and
// dynamic gas cost, stack-depth bounds, and memory footprint.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  gasFunc
	minStack    int
	maxStack    int
	memorySize  memorySizeFunc
	undefined   bool
}

// JumpTable is the full 256-entry opcode dispatch table for one
// hardfork/EIP combination. Built once per Rules snapshot and cached
// by the EVM, grounded on eips.go "layer an enabler atop
// the previous instruction set" pattern (newFrontierInstructionSet,
// enable1884, enable2200, ...).
type JumpTable [256]*operation

func minStack(pop, push int) int { return pop }
func maxStack(pop, push int) int { return stackLimit + pop - push }

// newJumpTable builds the opcode table active under rules, starting
// from the Frontier base set and layering each hardfork's changes on
// top in activation order, the way go-ethereum/erigon's
// newXXXInstructionSet chain does it.
func newJumpTable(rules *chain.Rules) *JumpTable {
	jt := newFrontierInstructionSet()
	if rules.IsHomestead {
		enableHomestead(jt)
	}
	if rules.IsTangerineWhistle {
		enableTangerineWhistle(jt)
	}
	if rules.IsSpuriousDragon {
		enableSpuriousDragon(jt)
	}
	if rules.IsByzantium {
		enableByzantium(jt)
	}
	if rules.IsConstantinople {
		enableConstantinople(jt)
	}
	if rules.IsIstanbul {
		enableIstanbul(jt)
	}
	if rules.IsBerlin {
		enableBerlin(jt)
	}
	if rules.IsLondon {
		enableLondon(jt)
	}
	if rules.IsEIP3855 {
		enableShanghaiPush0(jt)
	}
	if rules.IsEIP4399 {
		enablePrevRandao(jt)
	}
	if rules.IsEIP1153 {
		enableTransientStorage(jt)
	}
	if rules.IsEIP5656 {
		enableMcopy(jt)
	}
	if rules.IsEIP4844 {
		enableBlobHash(jt)
	}
	for i, op := range jt {
		if op == nil {
			jt[i] = &operation{execute: opUndefined, maxStack: stackLimit, undefined: true}
		}
	}
	return jt
}

func opUndefined(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	return nil, ErrInvalidOpcode
}
