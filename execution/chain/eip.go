// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import "github.com/holiman/uint256"

// eipDef describes one EIP's activation prerequisites and the parameters it
// contributes to the resolver. required_eips must all be active, and
// minimum_hardfork must be reached, for the EIP to actually take effect even
// if the caller lists it as "active".
type eipDef struct {
	Number          int
	MinimumHardfork Hardfork
	RequiredEIPs    []int
	Params          map[paramKey]*uint256.Int
}

type paramKey struct {
	Topic string
	Name  string
}

// registry is the built-in table of EIPs this module understands. Chain
// configs reference EIPs by number; unknown numbers fail with ErrUnknownEIP.
var registry = map[int]*eipDef{
	150:  {Number: 150, MinimumHardfork: TangerineWhistle},
	155:  {Number: 155, MinimumHardfork: SpuriousDragon},
	158:  {Number: 158, MinimumHardfork: SpuriousDragon},
	170:  {Number: 170, MinimumHardfork: SpuriousDragon},
	1559: {Number: 1559, MinimumHardfork: London, Params: map[paramKey]*uint256.Int{
		{"gas", "baseFeeMaxChangeDenominator"}: bigFromUint64(8),
		{"gas", "elasticityMultiplier"}:        bigFromUint64(2),
		{"gas", "initialBaseFee"}:              bigFromUint64(1_000_000_000),
	}},
	2718: {Number: 2718, MinimumHardfork: Berlin},
	2929: {Number: 2929, MinimumHardfork: Berlin, Params: map[paramKey]*uint256.Int{
		{"gas", "coldAccountAccessCost"}: bigFromUint64(2600),
		{"gas", "coldSloadCost"}:         bigFromUint64(2100),
		{"gas", "warmStorageReadCost"}:   bigFromUint64(100),
	}},
	2930: {Number: 2930, MinimumHardfork: Berlin, RequiredEIPs: []int{2718, 2929}, Params: map[paramKey]*uint256.Int{
		{"gas", "accessListAddressCost"}: bigFromUint64(2400),
		{"gas", "accessListStorageCost"}: bigFromUint64(1900),
	}},
	3198: {Number: 3198, MinimumHardfork: London, RequiredEIPs: []int{1559}},
	3529: {Number: 3529, MinimumHardfork: London, Params: map[paramKey]*uint256.Int{
		{"gas", "maxRefundQuotient"}: bigFromUint64(5),
	}},
	3541: {Number: 3541, MinimumHardfork: London},
	3540: {Number: 3540, MinimumHardfork: Shanghai},
	3607: {Number: 3607, MinimumHardfork: London},
	3651: {Number: 3651, MinimumHardfork: Shanghai},
	3670: {Number: 3670, MinimumHardfork: Shanghai, RequiredEIPs: []int{3540}},
	3855: {Number: 3855, MinimumHardfork: Shanghai},
	3860: {Number: 3860, MinimumHardfork: Shanghai, Params: map[paramKey]*uint256.Int{
		{"gas", "initCodeWordCost"}: bigFromUint64(2),
		{"limits", "maxInitCodeSize"}: bigFromUint64(2 * 24576),
	}},
	4399: {Number: 4399, MinimumHardfork: Merge},
	4844: {Number: 4844, MinimumHardfork: Cancun, Params: map[paramKey]*uint256.Int{
		{"gas", "blobGasPerBlob"}:               bigFromUint64(131072),
		{"gas", "targetBlobGasPerBlock"}:         bigFromUint64(393216),
		{"gas", "maxBlobGasPerBlock"}:            bigFromUint64(786432),
		{"gas", "blobBaseFeeUpdateFraction"}:     bigFromUint64(3338477),
		{"gas", "minBlobBaseFee"}:                bigFromUint64(1),
	}},
	4895: {Number: 4895, MinimumHardfork: Shanghai},
	5656: {Number: 5656, MinimumHardfork: Cancun},
	6780: {Number: 6780, MinimumHardfork: Cancun},
	1153: {Number: 1153, MinimumHardfork: Cancun},
	2537: {Number: 2537, MinimumHardfork: Cancun},
	2565: {Number: 2565, MinimumHardfork: Berlin},
	7823: {Number: 7823, MinimumHardfork: Cancun},
	7623: {Number: 7623, MinimumHardfork: Cancun, Params: map[paramKey]*uint256.Int{
		{"gas", "floorPerTokenCost"}: bigFromUint64(10),
		{"gas", "standardTokenCost"}: bigFromUint64(4),
	}},
}

func lookupEIP(n int) (*eipDef, error) {
	d, ok := registry[n]
	if !ok {
		return nil, ErrUnknownEIP
	}
	return d, nil
}

func bigFromUint64(v uint64) *uint256.Int { return uint256.NewInt(v) }
