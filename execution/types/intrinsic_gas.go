// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"math"

	"github.com/ethexec/execore/execution/chain"
)

// Intrinsic gas constants, named the way go-ethereum's params package
// names its intrinsic-gas formula inputs.
const (
	TxGas                     uint64 = 21000
	TxGasContractCreation     uint64 = 53000
	TxDataZeroGas             uint64 = 4
	TxDataNonZeroGasFrontier  uint64 = 68
	TxDataNonZeroGasEIP2028   uint64 = 16
	TxAccessListAddressGas    uint64 = 2400
	TxAccessListStorageKeyGas uint64 = 1900
	InitCodeWordGas           uint64 = 2

	// TxTokensPerZeroByte and TxTokensPerNonZeroByte convert calldata into
	// the "token" unit EIP-7623's floor cost is priced in.
	TxTokensPerZeroByte    uint64 = 1
	TxTokensPerNonZeroByte uint64 = 4
	// TxFloorCostPerToken is the gas owed per token under the EIP-7623
	// calldata floor, independent of the per-byte cost charged above.
	TxFloorCostPerToken uint64 = 10
)

// FloorDataGas computes the EIP-7623 floor cost for a transaction's
// calldata: the base tx cost plus ten gas per "token", where a zero byte
// counts as one token and a non-zero byte as four. A transaction's total gas used
// must never fall below this floor once EIP-7623 is active, which stops
// calldata-heavy transactions from being priced as if they were cheap
// plain transfers.
func FloorDataGas(data []byte) (uint64, error) {
	var nz uint64
	for _, b := range data {
		if b != 0 {
			nz++
		}
	}
	z := uint64(len(data)) - nz

	tokens := nz * TxTokensPerNonZeroByte
	if (math.MaxUint64-tokens)/TxTokensPerZeroByte < z {
		return 0, ErrGasUintOverflow
	}
	tokens += z * TxTokensPerZeroByte

	floorDataCost := tokens * TxFloorCostPerToken
	if (math.MaxUint64 - TxGas) < floorDataCost {
		return 0, ErrGasUintOverflow
	}
	return TxGas + floorDataCost, nil
}

// IntrinsicGas computes the gas a transaction owes before any EVM
// execution begins: the base 21000 (or 53000 for contract creation), data
// cost, access-list cost (EIP-2930), and init-code word cost (EIP-3860).
// The second return value is the EIP-7623 floor cost (zero when EIP-7623
// is not active); callers must charge at least that much total gas
// regardless of how little the EVM execution itself consumes.
func IntrinsicGas(data []byte, accessList AccessList, isContractCreation bool, rules *chain.Rules) (uint64, uint64, error) {
	var gas uint64
	if isContractCreation {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}
	dataLen := uint64(len(data))
	if dataLen > 0 {
		var nz uint64
		for _, b := range data {
			if b != 0 {
				nz++
			}
		}
		nonZeroGas := TxDataNonZeroGasFrontier
		if rules.IsIstanbul {
			nonZeroGas = TxDataNonZeroGasEIP2028
		}
		if (math.MaxUint64-gas)/nonZeroGas < nz {
			return 0, 0, ErrGasUintOverflow
		}
		gas += nz * nonZeroGas

		z := dataLen - nz
		if (math.MaxUint64-gas)/TxDataZeroGas < z {
			return 0, 0, ErrGasUintOverflow
		}
		gas += z * TxDataZeroGas

		if isContractCreation && rules.IsEIP3860 {
			words := (dataLen + 31) / 32
			if (math.MaxUint64-gas)/InitCodeWordGas < words {
				return 0, 0, ErrGasUintOverflow
			}
			gas += words * InitCodeWordGas
		}
	}
	if accessList != nil {
		n := uint64(len(accessList))
		if (math.MaxUint64-gas)/TxAccessListAddressGas < n {
			return 0, 0, ErrGasUintOverflow
		}
		gas += n * TxAccessListAddressGas

		keys := uint64(accessList.StorageKeys())
		if (math.MaxUint64-gas)/TxAccessListStorageKeyGas < keys {
			return 0, 0, ErrGasUintOverflow
		}
		gas += keys * TxAccessListStorageKeyGas
	}

	var floorGas uint64
	if rules.IsEIP7623 {
		fg, err := FloorDataGas(data)
		if err != nil {
			return 0, 0, err
		}
		floorGas = fg
	}
	return gas, floorGas, nil
}
