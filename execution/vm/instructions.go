// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// errStopToken is the sentinel "error" opStop/opReturn use to unwind the
// interpreter loop on ordinary halt, distinguished from real faults by
// the Run loop before it is turned into a nil error.
var errStopToken = errStopTokenType{}

type errStopTokenType struct{}

func (errStopTokenType) Error() string { return "stop" }

func logRecord(addr common.Address, topics []common.Hash, data []byte) state.Log {
	return state.Log{Address: addr, Topics: topics, Data: data}
}

// Instruction logic functions, grounded on instruction
// set shape (core/vm instructions.go in the upstream go-ethereum/erigon
// lineage: each opFoo pops its operands off the stack, computes, and
// pushes the result back, mutating pc in place for control-flow ops).

func opAdd(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Add(&x, y)
	return nil, nil
}

func opSub(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Sub(&x, y)
	return nil, nil
}

func opMul(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Mul(&x, y)
	return nil, nil
}

func opDiv(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Div(&x, y)
	return nil, nil
}

func opSdiv(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.SDiv(&x, y)
	return nil, nil
}

func opMod(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Mod(&x, y)
	return nil, nil
}

func opSmod(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.SMod(&x, y)
	return nil, nil
}

func opExp(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	base, exponent := scope.Stack.Pop(), scope.Stack.Peek()
	exponent.Exp(&base, exponent)
	return nil, nil
}

func opSignExtend(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	back, num := scope.Stack.Pop(), scope.Stack.Peek()
	num.ExtendSign(num, &back)
	return nil, nil
}

func opAddmod(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y, z := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Peek()
	z.AddMod(&x, &y, z)
	return nil, nil
}

func opMulmod(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y, z := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Peek()
	z.MulMod(&x, &y, z)
	return nil, nil
}

func opLt(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIszero(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.And(&x, y)
	return nil, nil
}

func opOr(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Or(&x, y)
	return nil, nil
}

func opXor(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x, y := scope.Stack.Pop(), scope.Stack.Peek()
	y.Xor(&x, y)
	return nil, nil
}

func opNot(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	th, val := scope.Stack.Pop(), scope.Stack.Peek()
	val.Byte(&th)
	return nil, nil
}

func opShl(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift, value := scope.Stack.Pop(), scope.Stack.Peek()
	value.Lsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opShr(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift, value := scope.Stack.Pop(), scope.Stack.Peek()
	value.Rsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opSar(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	shift, value := scope.Stack.Pop(), scope.Stack.Peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opKeccak256(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Peek()
	data := scope.Memory.GetPtr(offset.Uint64(), size.Uint64())
	hash := crypto.Keccak256(data)
	size.SetBytes(hash)
	return nil, nil
}

func opAddress(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(addrToUint256(scope.Contract.Address()))
	return nil, nil
}

func opBalance(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := uint256ToAddr(slot)
	acct, err := interp.evm.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		slot.Clear()
	} else {
		slot.Set(&acct.Balance)
	}
	return nil, nil
}

func opOrigin(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(addrToUint256(interp.evm.TxContext.Origin))
	return nil, nil
}

func opCaller(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(addrToUint256(scope.Contract.Caller()))
	return nil, nil
}

func opCallValue(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*scope.Contract.Value())
	return nil, nil
}

func opCallDataLoad(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	x := scope.Stack.Peek()
	if offset, overflow := x.Uint64WithOverflow(); !overflow {
		data := getData(scope.Contract.Input, offset, 32)
		x.SetBytes(data)
	} else {
		x.Clear()
	}
	return nil, nil
}

func opCallDataSize(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(uint64(len(scope.Contract.Input))))
	return nil, nil
}

func opCallDataCopy(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOffset, dataOffset, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	dataOff64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOff64 = 0xffffffffffffffff
	}
	data := getData(scope.Contract.Input, dataOff64, length.Uint64())
	scope.Memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opCodeSize(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(uint64(len(scope.Contract.Code))))
	return nil, nil
}

func opCodeCopy(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOffset, codeOffset, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	codeOff64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOff64 = 0xffffffffffffffff
	}
	data := getData(scope.Contract.Code, codeOff64, length.Uint64())
	scope.Memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opExtCodeSize(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := uint256ToAddr(slot)
	code, err := interp.evm.state.GetContractCode(addr)
	if err != nil {
		return nil, err
	}
	slot.SetUint64(uint64(len(code)))
	return nil, nil
}

func opExtCodeCopy(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	a, memOffset, codeOffset, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	code, err := interp.evm.state.GetContractCode(uint256ToAddr(&a))
	if err != nil {
		return nil, err
	}
	codeOff64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOff64 = 0xffffffffffffffff
	}
	data := getData(code, codeOff64, length.Uint64())
	scope.Memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opExtCodeHash(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	slot := scope.Stack.Peek()
	addr := uint256ToAddr(slot)
	acct, err := interp.evm.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		slot.Clear()
		return nil, nil
	}
	slot.SetBytes(acct.CodeHash.Bytes())
	return nil, nil
}

func opReturnDataSize(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(uint64(len(interp.returnData))))
	return nil, nil
}

func opReturnDataCopy(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	memOffset, dataOffset, length := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return nil, ErrReturnDataOutOfBounds
	}
	length64, overflow := length.Uint64WithOverflow()
	if overflow || offset64+length64 > uint64(len(interp.returnData)) {
		return nil, ErrReturnDataOutOfBounds
	}
	scope.Memory.Set(memOffset.Uint64(), length64, interp.returnData[offset64:offset64+length64])
	return nil, nil
}

func opGasPrice(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*interp.evm.TxContext.GasPrice)
	return nil, nil
}

func opBlockhash(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	num := scope.Stack.Peek()
	if interp.evm.Context.GetHash == nil || !num.IsUint64() {
		num.Clear()
		return nil, nil
	}
	n := num.Uint64()
	if n >= interp.evm.Context.BlockNumber || interp.evm.Context.BlockNumber-n > 256 {
		num.Clear()
		return nil, nil
	}
	num.SetBytes(interp.evm.Context.GetHash(n).Bytes())
	return nil, nil
}

func opCoinbase(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(addrToUint256(interp.evm.Context.Coinbase))
	return nil, nil
}

func opTimestamp(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(interp.evm.Context.Time))
	return nil, nil
}

func opNumber(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(interp.evm.Context.BlockNumber))
	return nil, nil
}

func opDifficulty(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.evm.Context.Difficulty == nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		scope.Stack.Push(*interp.evm.Context.Difficulty)
	}
	return nil, nil
}

func opGasLimit(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(interp.evm.Context.GasLimit))
	return nil, nil
}

func opChainID(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	chainID, _ := uint256.FromBig(interp.evm.chainConfig.ChainID)
	scope.Stack.Push(*chainID)
	return nil, nil
}

func opSelfBalance(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	acct, err := interp.evm.state.GetAccount(scope.Contract.Address())
	if err != nil {
		return nil, err
	}
	if acct == nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		scope.Stack.Push(acct.Balance)
	}
	return nil, nil
}

func opBaseFee(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.evm.Context.BaseFee == nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		scope.Stack.Push(*interp.evm.Context.BaseFee)
	}
	return nil, nil
}

func opBlobHash(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	idx := scope.Stack.Peek()
	if i, overflow := idx.Uint64WithOverflow(); !overflow && i < uint64(len(interp.evm.TxContext.BlobHashes)) {
		idx.SetBytes(interp.evm.TxContext.BlobHashes[i].Bytes())
	} else {
		idx.Clear()
	}
	return nil, nil
}

func opBlobBaseFee(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.evm.Context.BlobBaseFee == nil {
		scope.Stack.Push(*uint256.NewInt(0))
	} else {
		scope.Stack.Push(*interp.evm.Context.BlobBaseFee)
	}
	return nil, nil
}

func opPop(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	v := scope.Stack.Peek()
	offset := v.Uint64()
	v.SetBytes(scope.Memory.GetPtr(offset, 32))
	return nil, nil
}

func opMstore(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	mStart, val := scope.Stack.Pop(), scope.Stack.Pop()
	scope.Memory.Set32(mStart.Uint64(), &val)
	return nil, nil
}

func opMstore8(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	off, val := scope.Stack.Pop(), scope.Stack.Pop()
	scope.Memory.store[off.Uint64()] = byte(val.Uint64())
	return nil, nil
}

func opMcopy(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	dst, src, size := scope.Stack.Pop(), scope.Stack.Pop(), scope.Stack.Pop()
	copy(scope.Memory.GetPtr(dst.Uint64(), size.Uint64()), scope.Memory.GetPtr(src.Uint64(), size.Uint64()))
	return nil, nil
}

func opSload(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	loc := scope.Stack.Peek()
	key := uint256ToHash(loc)
	val, err := interp.evm.state.GetContractStorage(scope.Contract.Address(), key)
	if err != nil {
		return nil, err
	}
	loc.SetBytes(val.Bytes())
	return nil, nil
}

func opSstore(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	loc, val := scope.Stack.Pop(), scope.Stack.Pop()
	key := uint256ToHash(&loc)
	value := uint256ToHash(&val)
	if err := interp.evm.journal.PutStorage(interp.evm.state, scope.Contract.Address(), key, value); err != nil {
		return nil, err
	}
	return nil, nil
}

func opTload(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	loc := scope.Stack.Peek()
	val := interp.evm.transient.Get(scope.Contract.Address(), uint256ToHash(loc))
	loc.SetBytes(val.Bytes())
	return nil, nil
}

func opTstore(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	loc, val := scope.Stack.Pop(), scope.Stack.Pop()
	interp.evm.transient.Put(scope.Contract.Address(), uint256ToHash(&loc), uint256ToHash(&val))
	return nil, nil
}

func opJump(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	dest := scope.Stack.Pop()
	if !scope.Contract.validJumpdest(&dest) {
		return nil, ErrInvalidJump
	}
	// Run adds one after every op, so this lands on the JUMPDEST itself.
	*pc = dest.Uint64() - 1
	return nil, nil
}

func opJumpi(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	dest, cond := scope.Stack.Pop(), scope.Stack.Pop()
	if !cond.IsZero() {
		if !scope.Contract.validJumpdest(&dest) {
			return nil, ErrInvalidJump
		}
		*pc = dest.Uint64() - 1
		return nil, nil
	}
	return nil, nil
}

func opJumpdest(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	return nil, nil
}

func opPc(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(*pc))
	return nil, nil
}

func opMsize(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(uint64(scope.Memory.Len())))
	return nil, nil
}

func opGas(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*uint256.NewInt(scope.Contract.Gas))
	return nil, nil
}

func opPush0(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	scope.Stack.Push(*new(uint256.Int))
	return nil, nil
}

func makePush(size int) executionFunc {
	return func(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
		codeLen := uint64(len(scope.Contract.Code))
		start := *pc + 1
		var v uint256.Int
		if start >= codeLen {
			v.Clear()
		} else {
			end := start + uint64(size)
			if end > codeLen {
				end = codeLen
			}
			v.SetBytes(scope.Contract.Code[start:end])
			if end-start < uint64(size) {
				v.Lsh(&v, uint(8*(uint64(size)-(end-start))))
			}
		}
		scope.Stack.Push(v)
		*pc += uint64(size)
		return nil, nil
	}
}

func makeDup(n int) executionFunc {
	return func(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
		scope.Stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
		scope.Stack.Swap(n)
		return nil, nil
	}
}

func makeLog(n int) executionFunc {
	return func(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
		if interp.readOnly {
			return nil, ErrWriteProtection
		}
		mStart, mSize := scope.Stack.Pop(), scope.Stack.Pop()
		topics := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			t := scope.Stack.Pop()
			topics[i] = uint256ToHash(&t)
		}
		data := scope.Memory.GetCopy(mStart.Uint64(), mSize.Uint64())
		interp.evm.journal.AddLog(logRecord(scope.Contract.Address(), topics, data))
		return nil, nil
	}
}

func opStop(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	return nil, errStopToken
}

func opReturn(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Pop()
	ret := scope.Memory.GetCopy(offset.Uint64(), size.Uint64())
	return ret, errStopToken
}

func opRevert(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	offset, size := scope.Stack.Pop(), scope.Stack.Pop()
	ret := scope.Memory.GetCopy(offset.Uint64(), size.Uint64())
	return ret, ErrExecutionReverted
}

func opInvalid(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	return nil, ErrInvalidOpcode
}

func opSelfdestruct(pc *uint64, interp *Interpreter, scope *ScopeContext) ([]byte, error) {
	if interp.readOnly {
		return nil, ErrWriteProtection
	}
	beneficiary := scope.Stack.Pop()
	return nil, interp.evm.selfDestruct(scope.Contract.Address(), uint256ToAddr(&beneficiary))
}

// helpers

func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	out := make([]byte, size)
	copy(out, data[start:end])
	return out
}

func addrToUint256(a common.Address) uint256.Int {
	var v uint256.Int
	v.SetBytes(a.Bytes())
	return v
}

func uint256ToAddr(v *uint256.Int) common.Address {
	b := v.Bytes20()
	return common.Address(b[len(b)-20:])
}

func uint256ToHash(v *uint256.Int) common.Hash {
	return common.Hash(v.Bytes32())
}

