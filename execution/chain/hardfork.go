// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import "fmt"

// Hardfork names a named set of EIPs activated together at a block,
// timestamp, or total-difficulty boundary.
type Hardfork string

const (
	Frontier         Hardfork = "frontier"
	Homestead        Hardfork = "homestead"
	TangerineWhistle Hardfork = "tangerineWhistle"
	SpuriousDragon   Hardfork = "spuriousDragon"
	Byzantium        Hardfork = "byzantium"
	Constantinople   Hardfork = "constantinople"
	Petersburg       Hardfork = "petersburg"
	Istanbul         Hardfork = "istanbul"
	MuirGlacier      Hardfork = "muirGlacier"
	Berlin           Hardfork = "berlin"
	London           Hardfork = "london"
	ArrowGlacier     Hardfork = "arrowGlacier"
	GrayGlacier      Hardfork = "grayGlacier"
	Merge            Hardfork = "merge"
	Shanghai         Hardfork = "shanghai"
	Cancun           Hardfork = "cancun"
)

// hardforkOrder is the canonical Activation order. Index position is used
// for the monotonicity and ">=" comparisons GetHardforkBy/GteHardfork rely on.
var hardforkOrder = []Hardfork{
	Frontier, Homestead, TangerineWhistle, SpuriousDragon, Byzantium,
	Constantinople, Petersburg, Istanbul, MuirGlacier, Berlin, London,
	ArrowGlacier, GrayGlacier, Merge, Shanghai, Cancun,
}

func hardforkIndex(hf Hardfork) (int, error) {
	for i, h := range hardforkOrder {
		if h == hf {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownHardfork, hf)
}

// Before reports whether a is strictly earlier than b in Activation order.
func (a Hardfork) Before(b Hardfork) bool {
	ai, _ := hardforkIndex(a)
	bi, _ := hardforkIndex(b)
	return ai < bi
}

// Activation describes the condition under which a hardfork takes effect.
// Exactly one of Block/Time/TTD is meaningful for a given hardfork, except
// the designated merge hardfork which carries a TTD alongside whichever of
// Block/Time eventually also gets set for bookkeeping.
type Activation struct {
	Block *uint64
	Time  *uint64
	TTD   *uint64 // total difficulty, merge hardfork only
}

func (a Activation) isSet() bool { return a.Block != nil || a.Time != nil || a.TTD != nil }

// AtBlock schedules a hardfork to activate at the given block number.
func AtBlock(n uint64) Activation { return Activation{Block: &n} }

// AtTime schedules a hardfork to activate at the given block timestamp.
func AtTime(t uint64) Activation { return Activation{Time: &t} }

// AtTTD schedules the merge hardfork: it activates once total difficulty
// reaches ttd, and block carries the block number it was actually reached
// at on the canonical chain (used to resolve block/TTD-based queries
// consistently once the network has settled past the merge).
func AtTTD(ttd, block uint64) Activation { return Activation{TTD: &ttd, Block: &block} }
