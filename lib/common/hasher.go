// Copyright 2024 The execore Authors
// This file is part of execore.

package common

import (
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

// keccakState wraps sha3.state. In addition to the usual hash methods, it
// also supports Read to get a variable amount of data from the hash state.
// Read is faster than Sum because it doesn't copy the internal state.
type keccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

type Hasher struct {
	Sha keccakState
}

var hashersPool = sync.Pool{
	New: func() any {
		return &Hasher{Sha: sha3.NewLegacyKeccak256().(keccakState)}
	},
}

func NewHasher() *Hasher {
	h := hashersPool.Get().(*Hasher)
	h.Sha.Reset()
	return h
}

func ReturnHasherToPool(h *Hasher) { hashersPool.Put(h) }

// HashData returns the Keccak256 hash of the concatenation of data,
// pulling one sponge from the pool rather than allocating one per call.
// It is the one place that acquires/releases a pooled Hasher directly;
// Keccak256/Keccak256Hash in lib/crypto and bloomValues here both go
// through it instead of repeating the acquire-write-read-release
// sequence themselves.
func HashData(data ...[]byte) (Hash, error) {
	h := NewHasher()
	defer ReturnHasherToPool(h)

	for _, b := range data {
		if _, err := h.Sha.Write(b); err != nil {
			return Hash{}, err
		}
	}
	var buf Hash
	if _, err := h.Sha.Read(buf[:]); err != nil {
		return Hash{}, err
	}
	return buf, nil
}
