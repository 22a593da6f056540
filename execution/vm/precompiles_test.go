// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

func TestActivePrecompilesBLSTableMatchesEIP2537Range(t *testing.T) {
	rules := &chain.Rules{IsEIP2537: true}
	p := activePrecompiles(rules)

	want := []common.Address{
		blsG1AddAddr, blsG1MSMAddr, blsG2AddAddr, blsG2MSMAddr,
		blsPairingAddr, blsMapFpToG1Addr, blsMapFp2ToG2Addr,
	}
	for _, addr := range want {
		_, ok := p[addr]
		require.True(t, ok, "expected BLS precompile wired at %x", addr)
	}

	// There is no standalone single-point Mul precompile in the 2024
	// EIP-2537 revision: 0x0c is G1MSM, not G1Mul.
	require.Equal(t, byte(0x0b), blsG1AddAddr[19])
	require.Equal(t, byte(0x0c), blsG1MSMAddr[19])
	require.Equal(t, byte(0x11), blsMapFp2ToG2Addr[19])
}

func TestActivePrecompilesOmitBLSWhenEIP2537Inactive(t *testing.T) {
	p := activePrecompiles(&chain.Rules{IsByzantium: true, IsIstanbul: true})
	_, ok := p[blsG1AddAddr]
	require.False(t, ok)
}

func TestRunPrecompiledContractChargesRequiredGas(t *testing.T) {
	p := &identityPrecompile{}
	input := []byte{1, 2, 3}
	required := p.RequiredGas(input)

	out, left, err := RunPrecompiledContract(p, input, required, PrecompileContext{})
	require.NoError(t, err)
	require.Zero(t, left)
	require.Equal(t, input, out)

	_, _, err = RunPrecompiledContract(p, input, required-1, PrecompileContext{})
	require.ErrorIs(t, err, ErrOutOfGas)
}

func TestIdentityPrecompileEchoesInput(t *testing.T) {
	p := &identityPrecompile{}
	input := []byte("the quick brown fox")
	out, err := p.Run(input, PrecompileContext{})
	require.NoError(t, err)
	require.Equal(t, input, out)
}

func TestSHA256Precompile(t *testing.T) {
	p := &sha256Precompile{}
	input := []byte("hello")
	out, err := p.Run(input, PrecompileContext{})
	require.NoError(t, err)
	want := sha256.Sum256(input)
	require.Equal(t, want[:], out)
}

func TestEcrecoverPrecompileRecoversSigner(t *testing.T) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	var hash common.Hash
	copy(hash[:], crypto.Keccak256([]byte("precompile test message")))
	sig, err := crypto.Sign(hash[:], key)
	require.NoError(t, err)

	input := make([]byte, 128)
	copy(input[0:32], hash[:])
	input[63] = sig[64] + 27
	copy(input[64:96], sig[0:32])
	copy(input[96:128], sig[32:64])

	p := &ecrecoverPrecompile{}
	out, err := p.Run(input, PrecompileContext{})
	require.NoError(t, err)
	require.Len(t, out, 32)

	var recovered common.Address
	copy(recovered[:], out[12:])
	require.Equal(t, addr, recovered)
}

func TestEcrecoverPrecompileRejectsBadRecoveryID(t *testing.T) {
	input := make([]byte, 128)
	input[63] = 5 // neither 27 nor 28
	p := &ecrecoverPrecompile{}
	out, err := p.Run(input, PrecompileContext{})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestKZGPointEvalPrecompileRejectsWrongInputLength(t *testing.T) {
	p := &kzgPointEvalPrecompile{}
	_, err := p.Run(make([]byte, 100), PrecompileContext{})
	require.ErrorIs(t, err, errKZGInvalidInput)
}

func TestKZGPointEvalPrecompileRejectsVersionedHashMismatch(t *testing.T) {
	p := &kzgPointEvalPrecompile{}
	input := make([]byte, 192)
	// Commitment left zero, declared versioned hash starting with 0xff: a
	// hash built by ToVersionedHash starts with the KZG version byte instead,
	// so the versioned-hash check must reject before ever reaching the KZG
	// library's proof verification.
	input[0] = 0xff
	_, err := p.Run(input, PrecompileContext{})
	require.ErrorIs(t, err, errKZGVersionedHash)
}
