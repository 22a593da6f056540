// Copyright 2024 The execore Authors
// This file is part of execore.

package builder

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCalcBaseFeeFirstLondonBlock(t *testing.T) {
	got := CalcBaseFee(30_000_000, 15_000_000, nil)
	require.Equal(t, uint256.NewInt(InitialBaseFee), got)
}

func TestCalcBaseFeeUnchangedAtTarget(t *testing.T) {
	parentBaseFee := uint256.NewInt(1_000_000_000)
	got := CalcBaseFee(30_000_000, 15_000_000, parentBaseFee)
	require.Equal(t, parentBaseFee, got)
}

func TestCalcBaseFeeRisesAboveTarget(t *testing.T) {
	parentBaseFee := uint256.NewInt(1_000_000_000)
	got := CalcBaseFee(30_000_000, 30_000_000, parentBaseFee)
	require.True(t, got.Gt(parentBaseFee), "base fee should rise when parent used double its target")
}

func TestCalcBaseFeeFallsBelowTarget(t *testing.T) {
	parentBaseFee := uint256.NewInt(1_000_000_000)
	got := CalcBaseFee(30_000_000, 0, parentBaseFee)
	require.True(t, got.Lt(parentBaseFee), "base fee should fall when parent used none of its target")
}

func TestCalcBaseFeeNeverNegative(t *testing.T) {
	parentBaseFee := uint256.NewInt(1)
	got := CalcBaseFee(30_000_000, 0, parentBaseFee)
	require.False(t, got.Sign() < 0)
}

func TestCalcExcessBlobGasBelowTarget(t *testing.T) {
	got := CalcExcessBlobGas(0, 131072)
	require.Equal(t, uint64(0), got)
}

func TestCalcExcessBlobGasAboveTarget(t *testing.T) {
	got := CalcExcessBlobGas(0, 2*targetBlobGasPerBlock)
	require.Equal(t, targetBlobGasPerBlock, got)
}

func TestCalcBlobBaseFeeAtZeroExcess(t *testing.T) {
	got := CalcBlobBaseFee(0)
	require.Equal(t, uint256.NewInt(minBlobBaseFee), got)
}

func TestCalcBlobBaseFeeRisesWithExcess(t *testing.T) {
	low := CalcBlobBaseFee(0)
	high := CalcBlobBaseFee(10 * targetBlobGasPerBlock)
	require.True(t, high.Gt(low))
}
