// Copyright 2024 The execore Authors
// This file is part of execore.

// Package kzg holds the single shared KZG trusted-setup context that both
// the EVM's point-evaluation precompile and the typed-transaction blob
// wrapper validator verify proofs against. Grounded on erigon-lib's
// crypto/kzg package, which exists for the same reason: loading the
// trusted setup is expensive enough that every caller in the process must
// share one instance rather than building their own.
package kzg

import (
	"crypto/sha256"
	"fmt"
	"sync"

	gokzg4844 "github.com/crate-crypto/go-eth-kzg"

	"github.com/ethexec/execore/lib/common"
)

// BlobCommitmentVersion is the single byte prefixing every EIP-4844
// versioned hash.
const BlobCommitmentVersion uint8 = 0x01

var (
	ctx      *gokzg4844.Context
	initOnce sync.Once
)

// Ctx returns the process-wide KZG context, lazily building the trusted
// setup the first time it's needed.
func Ctx() *gokzg4844.Context {
	initOnce.Do(func() {
		c, err := gokzg4844.NewContext4096Secure()
		if err != nil {
			panic(fmt.Sprintf("kzg: could not build trusted setup context: %v", err))
		}
		ctx = c
	})
	return ctx
}

// ToVersionedHash implements kzg_to_versioned_hash from EIP-4844: the
// version byte followed by the trailing bytes of the commitment's sha256
// digest.
func ToVersionedHash(commitment gokzg4844.KZGCommitment) common.Hash {
	sum := sha256.Sum256(commitment[:])
	var h common.Hash
	copy(h[:], sum[:])
	h[0] = BlobCommitmentVersion
	return h
}
