// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import "github.com/holiman/uint256"

// newFrontierInstructionSet returns the opcode table active at
// Frontier, before any hardfork's enable* layers are applied. Table
// shape (execute/constantGas/dynamicGas/minStack/maxStack) grounded on
// core/vm/eips.go's operation literal.
func newFrontierInstructionSet() *JumpTable {
	jt := &JumpTable{}
	set := func(op OpCode, o *operation) { jt[op] = o }

	set(STOP, &operation{execute: opStop, constantGas: 0, minStack: minStack(0, 0), maxStack: maxStack(0, 0)})
	set(ADD, &operation{execute: opAdd, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(MUL, &operation{execute: opMul, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SUB, &operation{execute: opSub, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(DIV, &operation{execute: opDiv, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SDIV, &operation{execute: opSdiv, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(MOD, &operation{execute: opMod, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SMOD, &operation{execute: opSmod, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(ADDMOD, &operation{execute: opAddmod, constantGas: GasMidStep, minStack: minStack(3, 1), maxStack: maxStack(3, 1)})
	set(MULMOD, &operation{execute: opMulmod, constantGas: GasMidStep, minStack: minStack(3, 1), maxStack: maxStack(3, 1)})
	set(EXP, &operation{execute: opExp, constantGas: GasSlowStep, dynamicGas: gasExp, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SIGNEXTEND, &operation{execute: opSignExtend, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})

	set(LT, &operation{execute: opLt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(GT, &operation{execute: opGt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SLT, &operation{execute: opSlt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(SGT, &operation{execute: opSgt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(EQ, &operation{execute: opEq, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(ISZERO, &operation{execute: opIszero, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(AND, &operation{execute: opAnd, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(OR, &operation{execute: opOr, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(XOR, &operation{execute: opXor, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	set(NOT, &operation{execute: opNot, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(BYTE, &operation{execute: opByte, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)})
	// SHL/SHR/SAR are EIP-145 (Constantinople); see enableConstantinople.

	set(KECCAK256, &operation{execute: opKeccak256, constantGas: Keccak256Gas, dynamicGas: gasKeccak256, minStack: minStack(2, 1), maxStack: maxStack(2, 1), memorySize: memoryGasFn})

	set(ADDRESS, &operation{execute: opAddress, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(BALANCE, &operation{execute: opBalance, constantGas: ColdAccountAccessCost, dynamicGas: gasBalance, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(ORIGIN, &operation{execute: opOrigin, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(CALLER, &operation{execute: opCaller, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(CALLVALUE, &operation{execute: opCallValue, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(CALLDATALOAD, &operation{execute: opCallDataLoad, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(CALLDATASIZE, &operation{execute: opCallDataSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(CALLDATACOPY, &operation{execute: opCallDataCopy, constantGas: GasFastestStep, dynamicGas: memoryCopierGas(3), minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryGasFn})
	set(CODESIZE, &operation{execute: opCodeSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(CODECOPY, &operation{execute: opCodeCopy, constantGas: GasFastestStep, dynamicGas: memoryCopierGas(3), minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryGasFn})
	set(GASPRICE, &operation{execute: opGasPrice, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(EXTCODESIZE, &operation{execute: opExtCodeSize, constantGas: ColdAccountAccessCost, dynamicGas: gasExtCodeSize, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(EXTCODECOPY, &operation{execute: opExtCodeCopy, constantGas: ColdAccountAccessCost, dynamicGas: gasExtCodeCopy, minStack: minStack(4, 0), maxStack: maxStack(4, 0), memorySize: extCodeCopyMemorySize})

	set(BLOCKHASH, &operation{execute: opBlockhash, constantGas: GasExtStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(COINBASE, &operation{execute: opCoinbase, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(TIMESTAMP, &operation{execute: opTimestamp, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(NUMBER, &operation{execute: opNumber, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(DIFFICULTY, &operation{execute: opDifficulty, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(GASLIMIT, &operation{execute: opGasLimit, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})

	set(POP, &operation{execute: opPop, constantGas: GasQuickStep, minStack: minStack(1, 0), maxStack: maxStack(1, 0)})
	set(MLOAD, &operation{execute: opMload, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1), memorySize: wordMemorySize(32)})
	set(MSTORE, &operation{execute: opMstore, constantGas: GasFastestStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: wordMemorySize(32)})
	set(MSTORE8, &operation{execute: opMstore8, constantGas: GasFastestStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: wordMemorySize(1)})
	set(SLOAD, &operation{execute: opSload, constantGas: ColdSloadCost, minStack: minStack(1, 1), maxStack: maxStack(1, 1)})
	set(SSTORE, &operation{execute: opSstore, constantGas: 0, dynamicGas: gasSstore, minStack: minStack(2, 0), maxStack: maxStack(2, 0)})
	set(JUMP, &operation{execute: opJump, constantGas: GasMidStep, minStack: minStack(1, 0), maxStack: maxStack(1, 0)})
	set(JUMPI, &operation{execute: opJumpi, constantGas: GasSlowStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0)})
	set(PC, &operation{execute: opPc, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(MSIZE, &operation{execute: opMsize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(GAS, &operation{execute: opGas, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	set(JUMPDEST, &operation{execute: opJumpdest, constantGas: JumpdestGas, minStack: minStack(0, 0), maxStack: maxStack(0, 0)})

	for i := 0; i < 32; i++ {
		set(PUSH1+OpCode(i), &operation{execute: makePush(i + 1), constantGas: GasFastestStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)})
	}
	for i := 0; i < 16; i++ {
		set(DUP1+OpCode(i), &operation{execute: makeDup(i + 1), constantGas: GasFastestStep, minStack: minStack(i+1, i+2), maxStack: maxStack(i+1, i+2)})
		set(SWAP1+OpCode(i), &operation{execute: makeSwap(i + 1), constantGas: GasFastestStep, minStack: minStack(i+2, i+2), maxStack: maxStack(i+2, i+2)})
	}
	for i := 0; i < 5; i++ {
		set(LOG0+OpCode(i), &operation{execute: makeLog(i), constantGas: LogGas, dynamicGas: gasLog(i), minStack: minStack(2+i, 0), maxStack: maxStack(2+i, 0), memorySize: logMemorySize})
	}

	set(CREATE, &operation{execute: opCreate, constantGas: GasCreate, dynamicGas: gasCreate, minStack: minStack(3, 1), maxStack: maxStack(3, 1), memorySize: createMemorySize})
	set(CALL, &operation{execute: opCall, constantGas: ColdAccountAccessCost, dynamicGas: gasCall, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: callMemorySize})
	set(CALLCODE, &operation{execute: opCallCode, constantGas: ColdAccountAccessCost, dynamicGas: gasCallCode, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: callMemorySize})
	set(RETURN, &operation{execute: opReturn, constantGas: 0, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryGasFn})
	set(INVALID, &operation{execute: opInvalid, constantGas: 0, minStack: minStack(0, 0), maxStack: maxStack(0, 0)})
	set(SELFDESTRUCT, &operation{execute: opSelfdestruct, constantGas: GasSelfdestruct, dynamicGas: gasSelfdestruct, minStack: minStack(1, 0), maxStack: maxStack(1, 0)})

	return jt
}

// wordMemorySize returns a memorySizeFunc covering [offset, offset+n)
// for the top-of-stack offset, used by the fixed-width MLOAD/MSTORE
// family.
func wordMemorySize(n uint64) memorySizeFunc {
	return func(s *Stack) (uint64, bool) {
		off := s.data[len(s.data)-1]
		size := uint256.NewInt(n)
		return calcMemSize(&off, size)
	}
}

func enableHomestead(jt *JumpTable) {
	jt[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: ColdAccountAccessCost, dynamicGas: gasDelegateStaticCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: delegateStaticCallMemorySize}
}

// enableTangerineWhistle applies EIP-150's repricing (folded directly
// into the gas-table constants above; nothing further to layer besides
// the EIP-150 63/64 forwarding rule, applied at call sites in evm.go).
func enableTangerineWhistle(jt *JumpTable) {}

func enableSpuriousDragon(jt *JumpTable) {}

func enableByzantium(jt *JumpTable) {
	jt[REVERT] = &operation{execute: opRevert, constantGas: 0, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryGasFn}
	jt[STATICCALL] = &operation{execute: opStaticCall, constantGas: ColdAccountAccessCost, dynamicGas: gasDelegateStaticCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: delegateStaticCallMemorySize}
	jt[RETURNDATASIZE] = &operation{execute: opReturnDataSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	jt[RETURNDATACOPY] = &operation{execute: opReturnDataCopy, constantGas: GasFastestStep, dynamicGas: memoryCopierGas(3), minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryGasFn}
}

func enableConstantinople(jt *JumpTable) {
	jt[SHL] = &operation{execute: opShl, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	jt[SHR] = &operation{execute: opShr, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	jt[SAR] = &operation{execute: opSar, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	jt[EXTCODEHASH] = &operation{execute: opExtCodeHash, constantGas: ColdAccountAccessCost, dynamicGas: gasExtCodeHash, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	jt[CREATE2] = &operation{execute: opCreate2, constantGas: GasCreate, dynamicGas: gasCreate2, minStack: minStack(4, 1), maxStack: maxStack(4, 1), memorySize: create2MemorySize}
}

func enableIstanbul(jt *JumpTable) {
	jt[CHAINID] = &operation{execute: opChainID, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	jt[SELFBALANCE] = &operation{execute: opSelfBalance, constantGas: GasFastStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
}

// enableBerlin folds EIP-2929's cold/warm surcharge into the dynamic
// gas functions above (gasSload/gasBalance/...); the constantGas base
// for SLOAD/EXT* drops to the warm price and the cold surcharge is
// charged dynamically the first time an address/slot is touched.
func enableBerlin(jt *JumpTable) {
	jt[SLOAD].constantGas = WarmStorageReadCost
	jt[SLOAD].dynamicGas = gasSload
	jt[EXTCODESIZE].constantGas = WarmStorageReadCost
	jt[EXTCODECOPY].constantGas = WarmStorageReadCost
	jt[EXTCODEHASH].constantGas = WarmStorageReadCost
	jt[BALANCE].constantGas = WarmStorageReadCost
	jt[CALL].constantGas = WarmStorageReadCost
	jt[CALLCODE].constantGas = WarmStorageReadCost
	jt[DELEGATECALL].constantGas = WarmStorageReadCost
	jt[STATICCALL].constantGas = WarmStorageReadCost
}

func enableLondon(jt *JumpTable) {
	jt[BASEFEE] = &operation{execute: opBaseFee, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	jt[SELFDESTRUCT].dynamicGas = gasSelfdestruct
}

func enableShanghaiPush0(jt *JumpTable) {
	jt[PUSH0] = &operation{execute: opPush0, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
}

func enablePrevRandao(jt *JumpTable) {
	jt[DIFFICULTY] = &operation{execute: opDifficulty, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
}

func enableTransientStorage(jt *JumpTable) {
	jt[TLOAD] = &operation{execute: opTload, constantGas: WarmStorageReadCost, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	jt[TSTORE] = &operation{execute: opTstore, constantGas: WarmStorageReadCost, minStack: minStack(2, 0), maxStack: maxStack(2, 0)}
}

func enableMcopy(jt *JumpTable) {
	jt[MCOPY] = &operation{execute: opMcopy, constantGas: GasFastestStep, dynamicGas: gasMcopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: mcopyMemorySize}
}

func enableBlobHash(jt *JumpTable) {
	jt[BLOBHASH] = &operation{execute: opBlobHash, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	jt[BLOBBASEFEE] = &operation{execute: opBlobBaseFee, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
}
