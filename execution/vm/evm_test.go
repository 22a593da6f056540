// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/lib/common"
)

func londonRules() *chain.Rules {
	return &chain.Rules{
		IsHomestead:      true,
		IsSpuriousDragon: true,
		IsByzantium:      true,
		IsIstanbul:       true,
		IsBerlin:         true,
		IsLondon:         true,
	}
}

func newTestEVM(t *testing.T, sm state.StateManager) *EVM {
	t.Helper()
	return NewEVM(
		BlockContext{BlockNumber: 1, GasLimit: 30_000_000, GetHash: func(uint64) common.Hash { return common.Hash{} }},
		TxContext{},
		sm, nil, londonRules(), Config{},
	)
}

// returnFortyTwo is init code that copies "PUSH1 0x2a PUSH1 0x00 MSTORE
// PUSH1 0x20 PUSH1 0x00 RETURN" (a contract body that returns the 32-byte
// value 42) into memory and returns it as the deployed runtime code.
func returnFortyTwo() []byte {
	runtime := []byte{
		byte(PUSH1), 0x2a,
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	init := []byte{
		byte(PUSH1), byte(len(runtime)),
		byte(DUP1),
		byte(PUSH1), 0x0b, // offset of runtime code within this init code
		byte(PUSH1), 0x00,
		byte(CODECOPY),
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	return append(init, runtime...)
}

func fundAccount(t *testing.T, sm *state.MemoryState, addr common.Address, balance uint64) {
	t.Helper()
	require.NoError(t, sm.PutAccount(addr, &state.Account{Balance: *uint256.NewInt(balance), CodeHash: state.EmptyCodeHash}))
}

func TestCreateDerivesNonceBasedAddress(t *testing.T) {
	sm := state.NewMemoryState()
	caller := common.HexToAddress("0x00000000000000000000000000000000000aaa")
	fundAccount(t, sm, caller, 0)

	evm := newTestEVM(t, sm)
	_, addr, _, err := evm.Create(AccountRef(caller), returnFortyTwo(), 200000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, types.CreateAddress(caller, 0), addr)

	code, err := sm.GetContractCode(addr)
	require.NoError(t, err)
	require.NotEmpty(t, code)
}

func TestCreate2DerivesSaltedAddress(t *testing.T) {
	sm := state.NewMemoryState()
	caller := common.HexToAddress("0x00000000000000000000000000000000000bbb")
	fundAccount(t, sm, caller, 0)

	code := returnFortyTwo()
	salt := uint256.NewInt(7)

	evm := newTestEVM(t, sm)
	_, addr, _, err := evm.Create2(AccountRef(caller), code, 200000, uint256.NewInt(0), salt)
	require.NoError(t, err)

	want := types.CreateAddress2(caller, salt.Bytes32(), keccak256(code))
	require.Equal(t, want, addr)
}

func TestCreateLeavesGasConservationIntact(t *testing.T) {
	sm := state.NewMemoryState()
	caller := common.HexToAddress("0x00000000000000000000000000000000000ccc")
	fundAccount(t, sm, caller, 0)

	evm := newTestEVM(t, sm)
	const gasGiven = 200000
	_, _, leftOverGas, err := evm.Create(AccountRef(caller), returnFortyTwo(), gasGiven, uint256.NewInt(0))
	require.NoError(t, err)
	require.Less(t, leftOverGas, uint64(gasGiven), "deploying non-trivial code must consume some gas")
}

func TestCreateRejectsAddressCollision(t *testing.T) {
	sm := state.NewMemoryState()
	caller := common.HexToAddress("0x00000000000000000000000000000000000ddd")
	fundAccount(t, sm, caller, 0)

	existing := types.CreateAddress(caller, 0)
	require.NoError(t, sm.PutAccount(existing, &state.Account{Nonce: 1, CodeHash: state.EmptyCodeHash}))

	evm := newTestEVM(t, sm)
	_, _, _, err := evm.Create(AccountRef(caller), returnFortyTwo(), 200000, uint256.NewInt(0))
	require.ErrorIs(t, err, ErrContractAddressCollision)
}

func TestValidJumpdestRejectsDataByteInsidePush(t *testing.T) {
	// PUSH1 0x5b, then a real JUMPDEST: the 0x5b pushed as PUSH1's
	// immediate must not itself be a valid jump target.
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(JUMPDEST)}
	c := NewContract(common.Address{}, common.Address{}, uint256.NewInt(0), 0, code, common.Hash{})

	require.False(t, c.validJumpdest(uint256.NewInt(1)), "PUSH1's immediate byte must not be a valid jump destination")
	require.True(t, c.validJumpdest(uint256.NewInt(2)), "the real JUMPDEST at offset 2 must validate")
}

func TestValidJumpdestRejectsOutOfRangeDestination(t *testing.T) {
	code := []byte{byte(JUMPDEST)}
	c := NewContract(common.Address{}, common.Address{}, uint256.NewInt(0), 0, code, common.Hash{})
	require.False(t, c.validJumpdest(uint256.NewInt(100)))
}
