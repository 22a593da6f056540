// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"github.com/ethexec/execore/lib/common"
)

// Dynamic gas cost functions, grounded on eips.go's gasSStoreEIP2200
// shape and the EIP-2929/3529/2200 cost schedule. Each returns the
// *additional* gas beyond the opcode's constantGas; memory-expansion
// cost is charged separately by the interpreter's
// memorySize/memoryGasCost step.

func memoryGasFn(stack *Stack) (uint64, bool) {
	offset, size := stack.data[len(stack.data)-1], stack.data[len(stack.data)-2]
	return calcMemSize(&offset, &size)
}

func memoryCopierGas(stackArgIdx int) gasFunc {
	return func(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
		n := scope.Stack.data[len(scope.Stack.data)-stackArgIdx]
		words := memoryWordSize(n.Uint64())
		return words * CopyGas, nil
	}
}

func gasKeccak256(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.data[len(scope.Stack.data)-2]
	return memoryWordSize(size.Uint64()) * Keccak256WordGas, nil
}

func gasExp(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	exponent := scope.Stack.data[len(scope.Stack.data)-2]
	if exponent.IsZero() {
		return 0, nil
	}
	byteLen := (exponent.BitLen() + 7) / 8
	perByte := uint64(10)
	if interp.evm.chainRules.IsSpuriousDragon {
		perByte = 50
	}
	return uint64(byteLen) * perByte, nil
}

// coldWarmCost charges the EIP-2929 cold-access cost the first time an
// address is touched in a tx, and the cheap warm cost thereafter.
func coldWarmAccountCost(interp *Interpreter, addr common.Address) uint64 {
	if !interp.evm.chainRules.IsEIP2929 {
		return 0
	}
	if interp.evm.journal.AddWarmAddress(addr) {
		return ColdAccountAccessCost - WarmStorageReadCost
	}
	return 0
}

func gasBalance(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	slot := scope.Stack.data[len(scope.Stack.data)-1]
	return coldWarmAccountCost(interp, uint256ToAddr(&slot)), nil
}

func gasExtCodeSize(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	slot := scope.Stack.data[len(scope.Stack.data)-1]
	return coldWarmAccountCost(interp, uint256ToAddr(&slot)), nil
}

func gasExtCodeHash(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	slot := scope.Stack.data[len(scope.Stack.data)-1]
	return coldWarmAccountCost(interp, uint256ToAddr(&slot)), nil
}

func gasExtCodeCopy(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	addr := scope.Stack.data[len(scope.Stack.data)-1]
	n := scope.Stack.data[len(scope.Stack.data)-4]
	words := memoryWordSize(n.Uint64())
	return words*CopyGas + coldWarmAccountCost(interp, uint256ToAddr(&addr)), nil
}

func extCodeCopyMemorySize(stack *Stack) (uint64, bool) {
	memOffset, length := stack.data[len(stack.data)-2], stack.data[len(stack.data)-4]
	return calcMemSize(&memOffset, &length)
}

// gasSload implements EIP-2929 cold/warm SLOAD pricing.
func gasSload(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	if !interp.evm.chainRules.IsEIP2929 {
		return 0, nil
	}
	loc := scope.Stack.data[len(scope.Stack.data)-1]
	key := uint256ToHash(&loc)
	if interp.evm.journal.AddWarmSlot(scope.Contract.Address(), key) {
		return ColdSloadCost - WarmStorageReadCost, nil
	}
	return 0, nil
}

// gasSstore implements the EIP-2200/2929/3529 net-metered SSTORE cost.
func gasSstore(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	if scope.Contract.Gas <= GasCallStipend {
		return 0, ErrOutOfGas
	}
	addr := scope.Contract.Address()
	loc := scope.Stack.data[len(scope.Stack.data)-1]
	newVal := scope.Stack.data[len(scope.Stack.data)-2]
	key := uint256ToHash(&loc)

	var cost uint64
	warmAccess := !interp.evm.journal.AddWarmSlot(addr, key)
	if !warmAccess && interp.evm.chainRules.IsEIP2929 {
		cost = ColdSloadCost
	}
	current, err := interp.evm.state.GetContractStorage(addr, key)
	if err != nil {
		return 0, err
	}
	newHash := uint256ToHash(&newVal)
	if current == newHash {
		return cost + WarmStorageReadCost, nil
	}
	original, err := interp.evm.originalStorage(addr, key)
	if err != nil {
		return 0, err
	}
	if original == current {
		if original.IsZero() {
			return cost + SstoreSetGas, nil
		}
		if newHash.IsZero() {
			interp.evm.journal.AddRefund(SstoreClearsRefund)
		}
		return cost + SstoreResetGas, nil
	}
	return cost + WarmStorageReadCost, nil
}

func gasLog(n int) gasFunc {
	return func(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
		size := scope.Stack.data[len(scope.Stack.data)-2]
		gas := uint64(n)*LogTopicGas + size.Uint64()*LogDataGas
		return gas, nil
	}
}

func logMemorySize(stack *Stack) (uint64, bool) {
	mStart, mSize := stack.data[len(stack.data)-1], stack.data[len(stack.data)-2]
	return calcMemSize(&mStart, &mSize)
}

func gasCreate(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	if !interp.evm.chainRules.IsEIP3860 {
		return 0, nil
	}
	size := scope.Stack.data[len(scope.Stack.data)-3]
	return memoryWordSize(size.Uint64()) * InitCodeWordGas, nil
}

func createMemorySize(stack *Stack) (uint64, bool) {
	offset, size := stack.data[len(stack.data)-2], stack.data[len(stack.data)-3]
	return calcMemSize(&offset, &size)
}

func gasCreate2(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.data[len(scope.Stack.data)-3]
	words := memoryWordSize(size.Uint64())
	gas := words * Keccak256WordGas
	if interp.evm.chainRules.IsEIP3860 {
		gas += words * InitCodeWordGas
	}
	return gas, nil
}

func create2MemorySize(stack *Stack) (uint64, bool) {
	offset, size := stack.data[len(stack.data)-2], stack.data[len(stack.data)-3]
	return calcMemSize(&offset, &size)
}

func gasCall(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	addr := scope.Stack.data[len(scope.Stack.data)-2]
	value := scope.Stack.data[len(scope.Stack.data)-3]
	target := uint256ToAddr(&addr)

	var gas uint64
	gas += coldWarmAccountCost(interp, target)
	if !value.IsZero() {
		gas += GasCallValue
	}
	acct, err := interp.evm.state.GetAccount(target)
	if err != nil {
		return 0, err
	}
	if acct == nil && (!value.IsZero() || !interp.evm.chainRules.IsSpuriousDragon) {
		gas += GasCallNewAccount
	}
	return gas, nil
}

func callMemorySize(stack *Stack) (uint64, bool) {
	n := len(stack.data)
	in, inSize := stack.data[n-4], stack.data[n-5]
	out, outSize := stack.data[n-6], stack.data[n-7]
	inSz, overflow := calcMemSize(&in, &inSize)
	if overflow {
		return 0, true
	}
	outSz, overflow := calcMemSize(&out, &outSize)
	if overflow {
		return 0, true
	}
	if inSz > outSz {
		return inSz, false
	}
	return outSz, false
}

func gasCallCode(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	addr := scope.Stack.data[len(scope.Stack.data)-2]
	value := scope.Stack.data[len(scope.Stack.data)-3]
	target := uint256ToAddr(&addr)
	gas := coldWarmAccountCost(interp, target)
	if !value.IsZero() {
		gas += GasCallValue
	}
	return gas, nil
}

func gasDelegateStaticCall(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	addr := scope.Stack.data[len(scope.Stack.data)-2]
	return coldWarmAccountCost(interp, uint256ToAddr(&addr)), nil
}

func delegateStaticCallMemorySize(stack *Stack) (uint64, bool) {
	n := len(stack.data)
	in, inSize := stack.data[n-3], stack.data[n-4]
	out, outSize := stack.data[n-5], stack.data[n-6]
	inSz, overflow := calcMemSize(&in, &inSize)
	if overflow {
		return 0, true
	}
	outSz, overflow := calcMemSize(&out, &outSize)
	if overflow {
		return 0, true
	}
	if inSz > outSz {
		return inSz, false
	}
	return outSz, false
}

func gasSelfdestruct(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	var gas uint64
	if interp.evm.chainRules.IsEIP2929 {
		beneficiary := scope.Stack.data[len(scope.Stack.data)-1]
		if interp.evm.journal.AddWarmAddress(uint256ToAddr(&beneficiary)) {
			gas += ColdAccountAccessCost
		}
	}
	if interp.evm.chainRules.IsEIP3651 == false && interp.evm.chainRules.IsSpuriousDragon {
		beneficiary := scope.Stack.data[len(scope.Stack.data)-1]
		acct, err := interp.evm.state.GetAccount(uint256ToAddr(&beneficiary))
		if err == nil && acct == nil {
			self, _ := interp.evm.state.GetAccount(scope.Contract.Address())
			if self != nil && !self.Balance.IsZero() {
				gas += GasSelfdestruct
			}
		}
	}
	return gas, nil
}

func gasMcopy(interp *Interpreter, scope *ScopeContext, memorySize uint64) (uint64, error) {
	size := scope.Stack.data[len(scope.Stack.data)-3]
	return memoryWordSize(size.Uint64()) * CopyGas, nil
}

func mcopyMemorySize(stack *Stack) (uint64, bool) {
	n := len(stack.data)
	dst, src, size := stack.data[n-1], stack.data[n-2], stack.data[n-3]
	dstSz, overflow := calcMemSize(&dst, &size)
	if overflow {
		return 0, true
	}
	srcSz, overflow := calcMemSize(&src, &size)
	if overflow {
		return 0, true
	}
	if dstSz > srcSz {
		return dstSz, false
	}
	return srcSz, false
}
