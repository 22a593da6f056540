// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/lib/common"
)

func goerliLikeSchedule() map[Hardfork]Activation {
	return map[Hardfork]Activation{
		Frontier: AtBlock(0),
		Berlin:   AtBlock(2),
		London:   AtBlock(3),
	}
}

func TestHardforkByBlock(t *testing.T) {
	cfg, err := NewConfig(big.NewInt(5), "goerli", 5, common.Hash{}, goerliLikeSchedule(), nil)
	require.NoError(t, err)

	hf, err := cfg.GetHardforkBy(HardforkQuery{Block: u64p(0)})
	require.NoError(t, err)
	require.Equal(t, Frontier, hf)

	hf, err = cfg.GetHardforkBy(HardforkQuery{Block: u64p(2)})
	require.NoError(t, err)
	require.Equal(t, Berlin, hf)

	hf, err = cfg.GetHardforkBy(HardforkQuery{Block: u64p(3)})
	require.NoError(t, err)
	require.Equal(t, London, hf)

	hf, err = cfg.GetHardforkBy(HardforkQuery{Block: u64p(4)})
	require.NoError(t, err)
	require.Equal(t, London, hf)
}

func TestHardforkMonotonicity(t *testing.T) {
	cfg, err := NewConfig(big.NewInt(5), "goerli", 5, common.Hash{}, goerliLikeSchedule(), nil)
	require.NoError(t, err)

	var prev int
	for n := uint64(0); n < 6; n++ {
		hf, err := cfg.GetHardforkBy(HardforkQuery{Block: &n})
		require.NoError(t, err)
		idx, _ := hardforkIndex(hf)
		require.GreaterOrEqual(t, idx, prev)
		prev = idx
	}
}

func TestMultipleMergeHardforkRejected(t *testing.T) {
	schedule := map[Hardfork]Activation{
		Frontier: AtBlock(0),
		Merge:    AtTTD(100, 10),
		Shanghai: AtTTD(200, 20),
	}
	_, err := NewConfig(big.NewInt(1), "bad", 1, common.Hash{}, schedule, nil)
	require.ErrorIs(t, err, ErrMultipleMergeHardfork)
}

func TestForkHashStableUnderFutureHardforks(t *testing.T) {
	genesis := common.HexToHash("0x1234")

	base := map[Hardfork]Activation{
		Frontier: AtBlock(0),
		Berlin:   AtBlock(2),
	}
	cfgBase, err := NewConfig(big.NewInt(1), "t", 1, genesis, base, nil)
	require.NoError(t, err)
	hashBase := cfgBase.ForkHash(Berlin, genesis)

	withFuture := map[Hardfork]Activation{
		Frontier: AtBlock(0),
		Berlin:   AtBlock(2),
		London:   AtBlock(10),
	}
	cfgFuture, err := NewConfig(big.NewInt(1), "t", 1, genesis, withFuture, nil)
	require.NoError(t, err)
	hashFuture := cfgFuture.ForkHash(Berlin, genesis)

	require.Equal(t, hashBase, hashFuture)
}

func TestEIPRequiresMinimumHardfork(t *testing.T) {
	schedule := map[Hardfork]Activation{
		Frontier: AtBlock(0),
	}
	cfg, err := NewConfig(big.NewInt(1), "t", 1, common.Hash{}, schedule, []int{2930})
	require.NoError(t, err)
	require.False(t, cfg.IsActivatedEIP(2930), "2930 requires Berlin, chain never leaves Frontier")
}

func TestParamResolutionEIPOverridesHardfork(t *testing.T) {
	schedule := map[Hardfork]Activation{
		Frontier: AtBlock(0),
		Berlin:   AtBlock(0),
		London:   AtBlock(0),
	}
	cfg, err := NewConfig(big.NewInt(1), "t", 1, common.Hash{}, schedule, []int{1559})
	require.NoError(t, err)
	require.Equal(t, uint64(8), cfg.Param("gas", "baseFeeMaxChangeDenominator").Uint64())
}
