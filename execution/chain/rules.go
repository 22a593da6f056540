// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import "math/big"

// Rules is a flattened snapshot of every hardfork-gated boolean the EVM and
// protocol layers consult on a hot path, computed once per block instead of
// walking the schedule on every opcode. Grounded on erigon's chain.Rules
// (a plain bool-per-fork struct returned by Config.Rules), which exists
// precisely so the interpreter's inner loop never calls back into the
// resolver.
type Rules struct {
	ChainID *big.Int

	IsHomestead        bool
	IsTangerineWhistle bool
	IsSpuriousDragon   bool
	IsByzantium        bool
	IsConstantinople   bool
	IsPetersburg       bool
	IsIstanbul         bool
	IsBerlin           bool
	IsLondon           bool
	IsMerge            bool
	IsShanghai         bool
	IsCancun           bool

	IsEIP2929 bool
	IsEIP3529 bool
	IsEIP3541 bool
	IsEIP3540 bool
	IsEIP3607 bool
	IsEIP3651 bool
	IsEIP3670 bool
	IsEIP3855 bool
	IsEIP3860 bool
	IsEIP4399 bool
	IsEIP4844 bool
	IsEIP4895 bool
	IsEIP5656 bool
	IsEIP6780 bool
	IsEIP1153 bool
	IsEIP2537 bool
	IsEIP7823 bool
	IsEIP7623 bool
}

// Rules flattens the activation state at the given block/timestamp pair
// into a Rules value. Callers hold one Rules per block execution; it must
// not be cached across a hardforkChanged signal.
func (c *Config) Rules(blockNumber, blockTime uint64) (Rules, error) {
	hf, err := c.GetHardforkBy(HardforkQuery{Block: &blockNumber, Time: &blockTime})
	if err != nil {
		return Rules{}, err
	}
	gte := func(target Hardfork) bool {
		hfi, _ := hardforkIndex(hf)
		ti, _ := hardforkIndex(target)
		return hfi >= ti
	}
	return Rules{
		ChainID:            c.ChainID,
		IsHomestead:        gte(Homestead),
		IsTangerineWhistle: gte(TangerineWhistle),
		IsSpuriousDragon:   gte(SpuriousDragon),
		IsByzantium:        gte(Byzantium),
		IsConstantinople:   gte(Constantinople),
		IsPetersburg:       gte(Petersburg),
		IsIstanbul:         gte(Istanbul),
		IsBerlin:           gte(Berlin),
		IsLondon:           gte(London),
		IsMerge:            gte(Merge),
		IsShanghai:         gte(Shanghai),
		IsCancun:           gte(Cancun),

		IsEIP2929: c.isActivatedEIPAt(2929, hf, map[int]bool{}),
		IsEIP3529: c.isActivatedEIPAt(3529, hf, map[int]bool{}),
		IsEIP3541: c.isActivatedEIPAt(3541, hf, map[int]bool{}),
		IsEIP3540: c.isActivatedEIPAt(3540, hf, map[int]bool{}),
		IsEIP3607: c.isActivatedEIPAt(3607, hf, map[int]bool{}),
		IsEIP3651: c.isActivatedEIPAt(3651, hf, map[int]bool{}),
		IsEIP3670: c.isActivatedEIPAt(3670, hf, map[int]bool{}),
		IsEIP3855: c.isActivatedEIPAt(3855, hf, map[int]bool{}),
		IsEIP3860: c.isActivatedEIPAt(3860, hf, map[int]bool{}),
		IsEIP4399: c.isActivatedEIPAt(4399, hf, map[int]bool{}),
		IsEIP4844: c.isActivatedEIPAt(4844, hf, map[int]bool{}),
		IsEIP4895: c.isActivatedEIPAt(4895, hf, map[int]bool{}),
		IsEIP5656: c.isActivatedEIPAt(5656, hf, map[int]bool{}),
		IsEIP6780: c.isActivatedEIPAt(6780, hf, map[int]bool{}),
		IsEIP1153: c.isActivatedEIPAt(1153, hf, map[int]bool{}),
		IsEIP2537: c.isActivatedEIPAt(2537, hf, map[int]bool{}),
		IsEIP7823: c.isActivatedEIPAt(7823, hf, map[int]bool{}),
		IsEIP7623: c.isActivatedEIPAt(7623, hf, map[int]bool{}),
	}, nil
}
