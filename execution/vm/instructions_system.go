// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
)

// CALL/CREATE-family opcode logic: each pops its operands, delegates
// to the EVM's message-dispatch methods (evm.go), and pushes a 0/1
// success flag (or the created address for CREATE/CREATE2), grounded
// on core/vm instructions.go opCall/opCreate shape.

func opCreate(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	value, offset, size := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	input := scope.Memory.GetCopy(offset.Uint64(), size.Uint64())

	gas := scope.Contract.Gas
	gas -= gas / 64
	scope.Contract.Gas -= gas

	res, addr, returnGas, err := interp.evm.Create(scope.Contract, input, gas, &value)
	return pushCreateResult(scope, res, addr, returnGas, err, interp)
}

func opCreate2(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	value, offset, size, salt := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	input := scope.Memory.GetCopy(offset.Uint64(), size.Uint64())

	gas := scope.Contract.Gas
	gas -= gas / 64
	scope.Contract.Gas -= gas

	res, addr, returnGas, err := interp.evm.Create2(scope.Contract, input, gas, &value, &salt)
	return pushCreateResult(scope, res, addr, returnGas, err, interp)
}

func pushCreateResult(scope *ScopeContext, res []byte, addr common.Address, returnGas uint64, err error, interp *Interpreter) ([]byte, error) {
	scope.Contract.Gas += returnGas
	if err != nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		var v uint256.Int
		v.SetBytes(addr.Bytes())
		scope.Stack.Push(v)
	}
	if err == ErrExecutionReverted {
		interp.returnData = res
		return res, nil
	}
	interp.returnData = nil
	return nil, nil
}

func opCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	gasArg, addr, value, inOffset, inSize, outOffset, outSize :=
		scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	if interp.readOnly && !value.IsZero() {
		return nil, ErrWriteProtection
	}
	args := scope.Memory.GetCopy(inOffset.Uint64(), inSize.Uint64())
	gas, err := callGasBudget(interp, scope.Contract, &gasArg, !value.IsZero())
	if err != nil {
		return nil, err
	}
	ret, returnGas, err := interp.evm.Call(scope.Contract, uint256ToAddr(&addr), args, gas, &value, false)
	return pushCallResult(scope, ret, returnGas, err, outOffset.Uint64(), outSize.Uint64(), interp)
}

func opCallCode(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	gasArg, addr, value, inOffset, inSize, outOffset, outSize :=
		scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	args := scope.Memory.GetCopy(inOffset.Uint64(), inSize.Uint64())
	gas, err := callGasBudget(interp, scope.Contract, &gasArg, !value.IsZero())
	if err != nil {
		return nil, err
	}
	ret, returnGas, err := interp.evm.CallCode(scope.Contract, uint256ToAddr(&addr), args, gas, &value)
	return pushCallResult(scope, ret, returnGas, err, outOffset.Uint64(), outSize.Uint64(), interp)
}

func opDelegateCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	gasArg, addr, inOffset, inSize, outOffset, outSize :=
		scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	args := scope.Memory.GetCopy(inOffset.Uint64(), inSize.Uint64())
	gas, err := callGasBudget(interp, scope.Contract, &gasArg, false)
	if err != nil {
		return nil, err
	}
	ret, returnGas, err := interp.evm.DelegateCall(scope.Contract, uint256ToAddr(&addr), args, gas)
	return pushCallResult(scope, ret, returnGas, err, outOffset.Uint64(), outSize.Uint64(), interp)
}

func opStaticCall(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	gasArg, addr, inOffset, inSize, outOffset, outSize :=
		scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	args := scope.Memory.GetCopy(inOffset.Uint64(), inSize.Uint64())
	gas, err := callGasBudget(interp, scope.Contract, &gasArg, false)
	if err != nil {
		return nil, err
	}
	ret, returnGas, err := interp.evm.StaticCall(scope.Contract, uint256ToAddr(&addr), args, gas)
	return pushCallResult(scope, ret, returnGas, err, outOffset.Uint64(), outSize.Uint64(), interp)
}

// callGasBudget applies the EIP-150 63/64 rule to a CALL-family gas
// argument: the caller may request more gas than it can forward, and
// the forwarded amount is capped at all-but-one-64th of what remains.
// The capped amount is deducted from the caller's contract immediately
// (matching callGas/useGas split); the EIP-2200 call
// stipend is then added on top for the callee only when value moves.
func callGasBudget(interp *Interpreter, contract *Contract, requested *uint256.Int, withValue bool) (uint64, error) {
	available := contract.Gas
	capped := available - available/64
	gas := capped
	if requested.IsUint64() && requested.Uint64() < capped {
		gas = requested.Uint64()
	}
	if !contract.UseGas(gas) {
		return 0, ErrOutOfGas
	}
	if withValue {
		gas += GasCallStipend
	}
	return gas, nil
}

func pushCallResult(scope *ScopeContext, ret []byte, returnGas uint64, err error, outOffset, outSize uint64, interp *Interpreter) ([]byte, error) {
	scope.Contract.Gas += returnGas
	if err != nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		scope.Stack.Push(*uint256.NewInt(1))
	}
	if err == nil || err == ErrExecutionReverted {
		scope.Memory.Set(outOffset, outSize, capReturnData(ret, outSize))
	}
	interp.returnData = ret
	return nil, nil
}

func capReturnData(ret []byte, size uint64) []byte {
	if uint64(len(ret)) > size {
		return ret[:size]
	}
	out := make([]byte, size)
	copy(out, ret)
	return out
}
