// Copyright 2024 The execore Authors
// This file is part of execore.

// Package chain implements the hardfork/EIP parameter resolver ("Common"):
// a deterministic lookup of gas, consensus and protocol parameters keyed by
// (chain, hardfork, active EIPs), plus EIP-2124 fork-hash computation. It is
// grounded on params/chain.Config pair, generalized so that
// hardfork parameters live in a data table rather than scattered struct
// fields and magic constants checked against block numbers inline.
package chain

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
)

// Config is the immutable-after-construction chain parameter set. The
// only permitted post-construction mutations are SetHardfork and
// SetEIPs, both of which invalidate dependent caches (opcode/precompile
// tables) by firing the hardforkChanged signal.
type Config struct {
	ChainID         *big.Int
	ChainName       string
	NetworkID       uint64
	GenesisHash     common.Hash
	DefaultHardfork Hardfork

	schedule map[Hardfork]Activation
	eips     []int // active EIPs, in user-supplied order

	observers []func(Hardfork)
}

// NewConfig builds a Config from an explicit hardfork Activation schedule.
// schedule must assign a non-nil Activation to every hardfork the chain
// intends to reach; hardforks absent from schedule are treated as never
// activating.
func NewConfig(chainID *big.Int, chainName string, networkID uint64, genesisHash common.Hash, schedule map[Hardfork]Activation, eips []int) (*Config, error) {
	c := &Config{
		ChainID:     chainID,
		ChainName:   chainName,
		NetworkID:   networkID,
		GenesisHash: genesisHash,
		schedule:    schedule,
		eips:        append([]int(nil), eips...),
	}
	if err := c.validateSchedule(); err != nil {
		return nil, err
	}
	hf, err := c.GetHardforkBy(HardforkQuery{Block: u64p(0)})
	if err != nil {
		return nil, err
	}
	c.DefaultHardfork = hf
	return c, nil
}

func u64p(v uint64) *uint64 { return &v }

func (c *Config) validateSchedule() error {
	var ttdCount int
	for _, a := range c.schedule {
		if a.TTD != nil {
			ttdCount++
		}
	}
	if ttdCount > 1 {
		return ErrMultipleMergeHardfork
	}
	return nil
}

// Subscribe registers fn to be called with the newly-selected hardfork
// whenever SetHardfork or SetEIPs runs.
func (c *Config) Subscribe(fn func(Hardfork)) { c.observers = append(c.observers, fn) }

func (c *Config) notify(hf Hardfork) {
	for _, fn := range c.observers {
		fn(hf)
	}
}

// SetHardfork pins DefaultHardfork directly, bypassing Activation lookup
// (used by tests and by callers replaying state at a pinned hardfork).
func (c *Config) SetHardfork(hf Hardfork) error {
	if _, err := hardforkIndex(hf); err != nil {
		return err
	}
	c.DefaultHardfork = hf
	c.notify(hf)
	return nil
}

// SetEIPs replaces the active EIP list.
func (c *Config) SetEIPs(eips []int) {
	c.eips = append([]int(nil), eips...)
	c.notify(c.DefaultHardfork)
}

// IsActivatedEIP reports whether eip is both listed as active and its
// prerequisites (minimum hardfork, required EIPs) hold at DefaultHardfork.
func (c *Config) IsActivatedEIP(eip int) bool {
	return c.isActivatedEIPAt(eip, c.DefaultHardfork, map[int]bool{})
}

func (c *Config) isActivatedEIPAt(eip int, hf Hardfork, seen map[int]bool) bool {
	if seen[eip] {
		return false
	}
	seen[eip] = true
	listed := false
	for _, e := range c.eips {
		if e == eip {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}
	def, err := lookupEIP(eip)
	if err != nil {
		return false
	}
	if hf.Before(def.MinimumHardfork) {
		return false
	}
	for _, req := range def.RequiredEIPs {
		if !c.isActivatedEIPAt(req, hf, seen) {
			return false
		}
	}
	return true
}

// GteHardfork reports whether DefaultHardfork has reached or passed hf.
func (c *Config) GteHardfork(hf Hardfork) bool {
	cur, err := hardforkIndex(c.DefaultHardfork)
	if err != nil {
		return false
	}
	target, err := hardforkIndex(hf)
	if err != nil {
		return false
	}
	return cur >= target
}

// Param resolves a parameter by (topic, name) at the current
// DefaultHardfork using the resolution order: active EIPs (user order)
// first, then the latest activated hardfork defining the parameter,
// then 0.
func (c *Config) Param(topic, name string) *uint256.Int {
	return c.paramAt(topic, name, c.DefaultHardfork)
}

// ParamByHardfork resolves a parameter as it would read at hardfork hf,
// ignoring active EIPs outside that hardfork's own requirements.
func (c *Config) ParamByHardfork(topic, name string, hf Hardfork) *uint256.Int {
	return c.paramAt(topic, name, hf)
}

// ParamByEIP returns the parameter value an EIP itself defines, independent
// of whether that EIP is currently active.
func (c *Config) ParamByEIP(topic, name string, eip int) *uint256.Int {
	def, err := lookupEIP(eip)
	if err != nil {
		return uint256.NewInt(0)
	}
	if v, ok := def.Params[paramKey{topic, name}]; ok {
		return v
	}
	return uint256.NewInt(0)
}

func (c *Config) paramAt(topic, name string, hf Hardfork) *uint256.Int {
	key := paramKey{topic, name}
	for _, eip := range c.eips {
		if !c.isActivatedEIPAt(eip, hf, map[int]bool{}) {
			continue
		}
		def, err := lookupEIP(eip)
		if err != nil {
			continue
		}
		if v, ok := def.Params[key]; ok {
			return v
		}
	}
	// latest activated hardfork defining the parameter
	idx, err := hardforkIndex(hf)
	if err != nil {
		return uint256.NewInt(0)
	}
	for i := idx; i >= 0; i-- {
		if v, ok := hardforkParams[hardforkOrder[i]][key]; ok {
			return v
		}
	}
	return uint256.NewInt(0)
}

// HardforkQuery bundles the inputs to GetHardforkBy: a block number and/or
// timestamp and/or total difficulty, at least one of which must be set.
type HardforkQuery struct {
	Block *uint64
	Time  *uint64
	TD    *uint64
}

// GetHardforkBy implements the hardfork selection algorithm: find the
// first scheduled hardfork whose Activation condition is not yet
// reached, step back to the last one that is, resolve TTD ambiguity at
// the merge boundary, then advance through ties to the latest hardfork
// sharing that same Activation point.
func (c *Config) GetHardforkBy(q HardforkQuery) (Hardfork, error) {
	type scheduled struct {
		hf  Hardfork
		idx int
		act Activation
	}
	var scheds []scheduled
	for hf, act := range c.schedule {
		if !act.isSet() {
			continue
		}
		idx, err := hardforkIndex(hf)
		if err != nil {
			return "", err
		}
		scheds = append(scheds, scheduled{hf, idx, act})
	}
	sort.Slice(scheds, func(i, j int) bool { return scheds[i].idx < scheds[j].idx })

	reached := func(s scheduled) bool {
		if s.act.TTD != nil {
			if q.TD == nil {
				return s.act.Block != nil && q.Block != nil && *q.Block >= *s.act.Block
			}
			return *q.TD >= *s.act.TTD
		}
		if s.act.Time != nil {
			if q.Time == nil {
				return false
			}
			return *q.Time >= *s.act.Time
		}
		if s.act.Block != nil {
			if q.Block == nil {
				return false
			}
			return *q.Block >= *s.act.Block
		}
		return false
	}

	best := -1
	for i, s := range scheds {
		if reached(s) {
			best = i
		}
	}
	if best == -1 {
		return "", ErrMustHaveHFAtZero
	}

	chosen := scheds[best]
	if chosen.act.TTD != nil && q.TD != nil && chosen.act.Block != nil && q.Block != nil {
		tdSide := *q.TD >= *chosen.act.TTD
		blockSide := *q.Block >= *chosen.act.Block
		if tdSide != blockSide {
			return "", ErrHardforkMismatch
		}
	}

	// advance through ties: any later hardfork sharing the same Activation point.
	for best+1 < len(scheds) {
		next := scheds[best+1]
		if sameActivation(chosen.act, next.act) {
			best++
			chosen = scheds[best]
			continue
		}
		break
	}
	return chosen.hf, nil
}

func sameActivation(a, b Activation) bool {
	eq := func(x, y *uint64) bool {
		if x == nil || y == nil {
			return x == y
		}
		return *x == *y
	}
	return eq(a.Block, b.Block) && eq(a.Time, b.Time)
}

// HardforkBlock returns the Activation block for hf, if block-gated.
func (c *Config) HardforkBlock(hf Hardfork) *uint64 {
	return c.schedule[hf].Block
}

// NextHardforkBlockOrTimestamp returns the Activation point of the first
// hardfork strictly after hf, preferring its block number if set, else its
// timestamp. Returns nil if hf is the last scheduled hardfork.
func (c *Config) NextHardforkBlockOrTimestamp(hf Hardfork) *uint64 {
	idx, err := hardforkIndex(hf)
	if err != nil {
		return nil
	}
	for i := idx + 1; i < len(hardforkOrder); i++ {
		act := c.schedule[hardforkOrder[i]]
		if act.Block != nil {
			return act.Block
		}
		if act.Time != nil {
			return act.Time
		}
	}
	return nil
}
