// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import "github.com/holiman/uint256"

// hardforkParams holds parameters that are properties of a hardfork itself
// rather than contributed by a specific EIP (things that predate EIP
// numbering, or whose value changed across several hardforks without a
// single EIP governing every change). paramAt walks this table from the
// queried hardfork backwards, so a later entry need only list the values
// that changed.
var hardforkParams = map[Hardfork]map[paramKey]*uint256.Int{
	Frontier: {
		{"gas", "sstoreSetGas"}:     u(20000),
		{"gas", "sstoreResetGas"}:   u(5000),
		{"gas", "sstoreClearRefund"}: u(15000),
		{"gas", "codeDepositCost"}:  u(200),
		{"gas", "callStipend"}:      u(2300),
		{"gas", "expByteCost"}:      u(10),
		{"gas", "callGas"}:          u(40),
		{"gas", "createGas"}:        u(32000),
		{"gas", "transactionGas"}:   u(21000),
		{"gas", "txDataZeroGas"}:    u(4),
		{"gas", "txDataNonZeroGasFrontier"}: u(68),
	},
	TangerineWhistle: {
		{"gas", "callGas"}:            u(700),
		{"gas", "extcodeSizeGas"}:     u(700),
		{"gas", "extcodeCopyGas"}:     u(700),
		{"gas", "balanceGas"}:         u(400),
		{"gas", "sloadGas"}:           u(200),
		{"gas", "sstoreSentryGasEIP2200"}: u(2300),
	},
	SpuriousDragon: {
		{"limits", "maxCodeSize"}: u(24576),
		{"gas", "expByteCost"}:    u(50),
	},
	Constantinople: {
		{"gas", "sstoreSetGasEIP1283"}:       u(20000),
		{"gas", "sstoreResetGasEIP1283"}:     u(5000),
		{"gas", "sstoreClearRefundEIP1283"}:  u(15000),
		{"gas", "createAndStoreGasEIP1283"}:  u(15000),
		{"gas", "netSstoreDirtyGasEIP1283"}:   u(200),
	},
	Istanbul: {
		{"gas", "sloadGasEIP2200"}:           u(800),
		{"gas", "sstoreSetGasEIP2200"}:       u(20000),
		{"gas", "sstoreResetGasEIP2200"}:     u(5000),
		{"gas", "sstoreClearRefundEIP2200"}:  u(15000),
		{"gas", "txDataNonZeroGasEIP2028"}:   u(16),
		{"gas", "balanceGasEIP1884"}:         u(700),
		{"gas", "extcodeHashGasEIP1884"}:     u(700),
	},
	Berlin: {
		{"gas", "sloadGas"}: u(100), // warm read; cold surcharge from EIP-2929
	},
	London: {
		{"gas", "maxRefundQuotient"}: u(5),
	},
	Shanghai: {
		{"limits", "maxInitCodeSize"}: u(2 * 24576),
		{"gas", "push0Gas"}:           u(2),
	},
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }
