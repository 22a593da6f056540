// Copyright 2024 The execore Authors
// This file is part of execore.

package chain

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ethexec/execore/lib/common"
)

// ForkID is the 4-byte EIP-2124 fork hash plus the next scheduled
// activation point (0 if none remains), as broadcast in devp2p status
// messages to let peers detect incompatible fork schedules.
type ForkID struct {
	Hash [4]byte
	Next uint64
}

// ForkHash implements EIP-2124's fork-hash computation: CRC32 over the
// genesis hash followed by the big-endian activation point of every
// scheduled hardfork strictly after genesis, skipping the merge hardfork
// (it carries no independent block/timestamp of its own) and any hardfork
// whose activation coincides with the one before it.
func (c *Config) ForkHash(hf Hardfork, genesisHash common.Hash) [4]byte {
	crc := crc32.ChecksumIEEE(genesisHash[:])

	idx, err := hardforkIndex(hf)
	if err != nil {
		idx = len(hardforkOrder) - 1
	}

	var prev *uint64
	for i := 0; i <= idx; i++ {
		h := hardforkOrder[i]
		if h == Merge {
			continue
		}
		act := c.schedule[h]
		point := act.Block
		if point == nil {
			point = act.Time
		}
		if point == nil || *point == 0 {
			continue
		}
		if prev != nil && *prev == *point {
			continue
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], *point)
		crc = crc32.Update(crc, crc32.IEEETable, buf[:])
		prev = point
	}

	var out [4]byte
	binary.BigEndian.PutUint32(out[:], crc)
	return out
}

// CurrentForkID computes the ForkID for the configuration's current
// hardfork relative to genesis, filling Next from the next scheduled
// activation point (0 once every known hardfork has activated).
func (c *Config) CurrentForkID(genesisHash common.Hash) ForkID {
	hash := c.ForkHash(c.DefaultHardfork, genesisHash)
	next := c.NextHardforkBlockOrTimestamp(c.DefaultHardfork)
	var nextVal uint64
	if next != nil {
		nextVal = *next
	}
	return ForkID{Hash: hash, Next: nextVal}
}
