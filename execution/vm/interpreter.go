// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

// ScopeContext holds the per-call-frame state (stack, memory, contract)
// threaded through one opcode execution, grounded on // core/vm/interpreter.go ScopeContext.
type ScopeContext struct {
	Memory   *Memory
	Stack    *Stack
	Contract *Contract
}

// Interpreter runs one call frame's bytecode against an EVM. It is not
// safe for concurrent use; every call frame gets its own Interpreter,
// so readOnly is per-frame, while call depth is tracked on the EVM.
type Interpreter struct {
	evm    *EVM
	jt     *JumpTable
	readOnly   bool
	returnData []byte
}

// NewInterpreter returns an Interpreter bound to evm, whose opcode
// table is resolved once per call from evm's cached Rules-keyed tables.
func NewInterpreter(evm *EVM, readOnly bool) *Interpreter {
	return &Interpreter{evm: evm, jt: evm.jumpTable(), readOnly: readOnly}
}

// Run executes contract's code against input, returning the halt
// return value. Errors other than ErrExecutionReverted are hard
// exceptions: the caller (EVM.call/.create) must revert the journal
// and consume all remaining gas.
func (in *Interpreter) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input

	mem := NewMemory()
	stack := NewStack()
	defer ReturnStack(stack)

	scope := &ScopeContext{Memory: mem, Stack: stack, Contract: contract}

	var pc uint64
	for {
		if int(pc) >= len(contract.Code) {
			return nil, nil
		}
		op := OpCode(contract.Code[pc])
		operation := in.jt[op]
		if operation == nil || operation.undefined {
			return nil, ErrInvalidOpcode
		}
		if sLen := stack.Len(); sLen < operation.minStack {
			return nil, ErrStackUnderflow
		} else if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}
		if in.readOnly && isStateModifying(op) {
			return nil, ErrWriteProtection
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			var err error
			memorySize, err = toWordBoundary(size)
			if err != nil {
				return nil, err
			}
		}

		if !contract.UseGas(operation.constantGas) {
			return nil, ErrOutOfGas
		}
		if memorySize > 0 {
			cost, err := memoryGasCost(mem, memorySize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
			mem.Resize(memorySize)
		}
		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(in, scope, memorySize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		ret, err := operation.execute(&pc, in, scope)
		if err != nil {
			if err == errStopToken {
				return ret, nil
			}
			return ret, err
		}
		pc++
	}
}

// toWordBoundary rounds size up to the next multiple of 32, matching
// memorySize-to-byte-count conversion.
func toWordBoundary(size uint64) (uint64, error) {
	if size > 0x1FFFFFFFE0 {
		return 0, ErrGasUintOverflow
	}
	return memoryWordSize(size) * 32, nil
}

// isStateModifying reports whether op is forbidden inside a STATICCALL
// frame (SSTORE/LOG*/CREATE*/SELFDESTRUCT/value-bearing CALL, the last
// of which is checked separately in opCall since it needs the value
// operand).
func isStateModifying(op OpCode) bool {
	if op >= LOG0 && op <= LOG4 {
		return true
	}
	switch op {
	case SSTORE, CREATE, CREATE2, SELFDESTRUCT, TSTORE:
		return true
	}
	return false
}
