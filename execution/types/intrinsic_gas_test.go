// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/lib/common"
)

func TestIntrinsicGasPlainTransfer(t *testing.T) {
	gas, floor, err := IntrinsicGas(nil, nil, false, &chain.Rules{})
	require.NoError(t, err)
	require.Equal(t, TxGas, gas)
	require.Zero(t, floor)
}

func TestIntrinsicGasContractCreation(t *testing.T) {
	gas, _, err := IntrinsicGas(nil, nil, true, &chain.Rules{})
	require.NoError(t, err)
	require.Equal(t, TxGasContractCreation, gas)
}

func TestIntrinsicGasEIP2028LowersNonZeroByteCost(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	preIstanbul, _, err := IntrinsicGas(data, nil, false, &chain.Rules{})
	require.NoError(t, err)
	require.Equal(t, TxGas+3*TxDataNonZeroGasFrontier, preIstanbul)

	postIstanbul, _, err := IntrinsicGas(data, nil, false, &chain.Rules{IsIstanbul: true})
	require.NoError(t, err)
	require.Equal(t, TxGas+3*TxDataNonZeroGasEIP2028, postIstanbul)
}

func TestIntrinsicGasEIP3860ChargesInitCodeWords(t *testing.T) {
	data := make([]byte, 64) // exactly two words, all zero bytes
	rules := &chain.Rules{IsIstanbul: true, IsEIP3860: true}
	gas, _, err := IntrinsicGas(data, nil, true, rules)
	require.NoError(t, err)
	require.Equal(t, TxGasContractCreation+64*TxDataZeroGas+2*InitCodeWordGas, gas)
}

func TestIntrinsicGasAccessListCost(t *testing.T) {
	al := AccessList{
		{StorageKeys: make([]common.Hash, 2)},
		{StorageKeys: make([]common.Hash, 1)},
	}
	gas, _, err := IntrinsicGas(nil, al, false, &chain.Rules{})
	require.NoError(t, err)
	require.Equal(t, TxGas+2*TxAccessListAddressGas+3*TxAccessListStorageKeyGas, gas)
}

func TestIntrinsicGasFloorZeroWhenEIP7623Inactive(t *testing.T) {
	_, floor, err := IntrinsicGas([]byte{0x01, 0x02}, nil, false, &chain.Rules{})
	require.NoError(t, err)
	require.Zero(t, floor)
}

func TestFloorDataGasEmptyCalldataEqualsTxGas(t *testing.T) {
	floor, err := FloorDataGas(nil)
	require.NoError(t, err)
	require.Equal(t, TxGas, floor)
}

func TestFloorDataGasMixedCalldata(t *testing.T) {
	// 2 zero bytes + 3 non-zero bytes -> tokens = 2*1 + 3*4 = 14 -> floor = 21000 + 140
	data := []byte{0x00, 0x00, 0x01, 0x02, 0x03}
	floor, err := FloorDataGas(data)
	require.NoError(t, err)
	require.Equal(t, TxGas+14*TxFloorCostPerToken, floor)
}

func TestIntrinsicGasEIP7623FloorAppliesToCalldataHeavyTx(t *testing.T) {
	rules := &chain.Rules{IsIstanbul: true, IsEIP7623: true}
	data := make([]byte, 100) // all zero bytes: 100 tokens once EIP-7623 floor applies
	gas, floor, err := IntrinsicGas(data, nil, false, rules)
	require.NoError(t, err)
	require.Equal(t, TxGas+100*TxDataZeroGas, gas)
	require.Equal(t, TxGas+100*TxTokensPerZeroByte*TxFloorCostPerToken, floor)
	require.Greater(t, floor, gas, "a long run of zero calldata bytes should be priced by the floor, not the per-byte cost")
}
