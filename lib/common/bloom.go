// Copyright 2024 The execore Authors
// This file is part of execore.
//
// execore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package common

import "encoding/hex"

// BloomByteLength is the width of a block/receipt log bloom filter, 2048 bits.
const BloomByteLength = 256

// Bloom is the 2048-bit log bloom filter carried in a block header and
// derived from the union of every receipt's own bloom in that block.
type Bloom [BloomByteLength]byte

// BytesToBloom sets the last BloomByteLength bytes of b into a Bloom. If b is
// larger it is cropped from the left.
func BytesToBloom(b []byte) (bl Bloom) {
	if len(b) > BloomByteLength {
		b = b[len(b)-BloomByteLength:]
	}
	copy(bl[BloomByteLength-len(b):], b)
	return bl
}

func (b Bloom) Bytes() []byte  { return b[:] }
func (b Bloom) Hex() string    { return "0x" + hex.EncodeToString(b[:]) }
func (b Bloom) String() string { return b.Hex() }

// Or merges other's set bits into b, used to fold per-receipt blooms into
// one block-level logs_bloom.
func (b *Bloom) Or(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// Add ORs the bloom bits derived from data into b, the same three-bit-per-item
// scheme EIP-7 specifies for address and topic membership.
func (b *Bloom) Add(data []byte) {
	i1, v1, i2, v2, i3, v3 := bloomValues(data)
	b[i1] |= v1
	b[i2] |= v2
	b[i3] |= v3
}

// Test reports whether every bit bloomValues(data) sets is already set in b.
// A true result means "maybe present"; a false result means "definitely
// absent" per standard bloom-filter semantics.
func (b Bloom) Test(data []byte) bool {
	i1, v1, i2, v2, i3, v3 := bloomValues(data)
	return b[i1]&v1 == v1 && b[i2]&v2 == v2 && b[i3]&v3 == v3
}

// bloomValues returns the three (byte-index, bit-mask) pairs EIP-7 derives
// from keccak256(data): each pair comes from an 11-bit slice of the hash
// picking one of 2048 bits.
func bloomValues(data []byte) (i1 int, v1 byte, i2 int, v2 byte, i3 int, v3 byte) {
	h, _ := HashData(data)
	sha := h[:]
	v1 = byte(1 << (sha[1] & 0x7))
	i1 = BloomByteLength - int((uint32(sha[0])<<8|uint32(sha[1]))&0x7ff)/8 - 1
	v2 = byte(1 << (sha[3] & 0x7))
	i2 = BloomByteLength - int((uint32(sha[2])<<8|uint32(sha[3]))&0x7ff)/8 - 1
	v3 = byte(1 << (sha[5] & 0x7))
	i3 = BloomByteLength - int((uint32(sha[4])<<8|uint32(sha[5]))&0x7ff)/8 - 1
	return i1, v1, i2, v2, i3, v3
}

// CreateBloom returns the bloom filter covering every address and topic in
// logs, the way a receipt's Bloom field is derived from its own Logs and a
// block header's logs_bloom is derived from the union of its receipts.
func CreateBloom(addresses [][]byte, topicSets [][][]byte) Bloom {
	var bl Bloom
	for _, addr := range addresses {
		bl.Add(addr)
	}
	for _, topics := range topicSets {
		for _, topic := range topics {
			bl.Add(topic)
		}
	}
	return bl
}
