// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

// Fixed per-opcode gas tiers, named the way go-ethereum's params package
// names them (GasQuickStep..GasExtStep). Collected here rather than in
// execution/chain since they're consumed only by the interpreter's gas
// table.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	GasMemory        uint64 = 3
	GasContractByte  uint64 = 200
	GasCreate        uint64 = 32000
	GasCreate2Word   uint64 = 6
	GasCallStipend   uint64 = 2300
	GasSelfdestruct  uint64 = 5000
	GasCallValue     uint64 = 9000
	GasCallNewAccount uint64 = 25000

	// EIP-2929 cold/warm access costs.
	ColdAccountAccessCost uint64 = 2600
	ColdSloadCost         uint64 = 2100
	WarmStorageReadCost   uint64 = 100

	// EIP-2200/3529 SSTORE costs.
	SstoreSetGas     uint64 = 20000
	SstoreResetGas   uint64 = 2900
	SstoreClearsRefund uint64 = 4800

	// EIP-3860.
	InitCodeWordGas uint64 = 2

	LogGas        uint64 = 375
	LogTopicGas   uint64 = 375
	LogDataGas    uint64 = 8

	Keccak256Gas     uint64 = 30
	Keccak256WordGas uint64 = 6

	CopyGas uint64 = 3

	JumpdestGas uint64 = 1
)

// refundQuotient returns the EIP-3529 (post-London) or pre-London
// denominator used to cap the total gas refund at gasUsed/quotient.
func refundQuotient(isLondon bool) uint64 {
	if isLondon {
		return 5
	}
	return 2
}

// maxCallDepth is the EVM's hard call-stack depth limit (1024 per the
// yellow paper).
const maxCallDepth = 1024

// stackLimit is the maximum number of operand stack entries (1024).
const stackLimit = 1024
