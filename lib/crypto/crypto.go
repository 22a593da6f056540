// Copyright 2024 The execore Authors
// This file is part of execore.

// Package crypto wraps the cryptographic primitives the execution layer
// needs as pure functions: Keccak256 hashing and secp256k1 signing /
// recovery, for the subset this module owns directly (hashing and
// transaction signatures); the BLS12-381 and alt_bn128 precompiles live
// next to their callers in execution/vm, and the KZG helpers live in
// lib/crypto/kzg.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/erigontech/secp256k1"

	"github.com/ethexec/execore/lib/common"
)

// SignatureLength is the expected length of the serialized [R || S || V] signature.
const SignatureLength = 64 + 1

// Keccak256 computes the Keccak256 hash of the concatenation of the inputs.
func Keccak256(data ...[]byte) []byte {
	h, err := common.HashData(data...)
	if err != nil {
		panic(err)
	}
	return h[:]
}

// Keccak256Hash computes the Keccak256 hash of the concatenation of the
// inputs and returns it as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	h, err := common.HashData(data...)
	if err != nil {
		panic(err)
	}
	return h
}

var secp256k1N = mustHex("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")

func mustHex(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 16)
	return n
}

// secp256k1halfN is secp256k1N/2, the canonical upper bound for a signature's S value (EIP-2).
var secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

// Sign calculates an ECDSA signature over a 32-byte digest.
//
// The produced signature is in the [R || S || V] format where V is 0 or 1.
func Sign(digestHash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if len(digestHash) != 32 {
		return nil, fmt.Errorf("hash is required to be exactly 32 bytes (%d)", len(digestHash))
	}
	if prv.Curve != S256() {
		return nil, errors.New("private key curve is not secp256k1")
	}
	seckey := make([]byte, 32)
	blob := prv.D.Bytes()
	copy(seckey[32-len(blob):], blob)
	defer zeroBytes(seckey)
	return secp256k1.Sign(digestHash, seckey)
}

// Ecrecover returns the uncompressed public key that created the given signature.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	return secp256k1.RecoverPubkey(hash, sig)
}

// SigToPub returns the ECDSA public key that created the given signature.
func SigToPub(hash, sig []byte) (*ecdsa.PublicKey, error) {
	s, err := Ecrecover(hash, sig)
	if err != nil {
		return nil, err
	}
	return UnmarshalPubkey(s)
}

// VerifySignature checks that the given public key created the signature over
// the digest. The signature must be in [R || S] format (no recovery id).
func VerifySignature(pubkey, digestHash, signature []byte) bool {
	return secp256k1.VerifySignature(pubkey, digestHash, signature)
}

// PubkeyToAddress derives the Ethereum address for the given public key.
func PubkeyToAddress(p ecdsa.PublicKey) common.Address {
	pubBytes := elliptic.Marshal(S256(), p.X, p.Y)
	return common.BytesToAddress(Keccak256(pubBytes[1:])[12:])
}

// UnmarshalPubkey converts bytes to a secp256k1 public key.
func UnmarshalPubkey(pub []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(S256(), pub)
	if x == nil {
		return nil, errors.New("invalid public key")
	}
	return &ecdsa.PublicKey{Curve: S256(), X: x, Y: y}, nil
}

// S256 returns the secp256k1 curve used for Ethereum's ECDSA signatures.
func S256() elliptic.Curve { return secp256k1.S256() }

// ValidateSignatureValues verifies whether the signature values are valid
// given the secp256k1 curve. homestead gates the stricter S-malleability rule
// of EIP-2.
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	if homestead && s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return v == 0 || v == 1
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
