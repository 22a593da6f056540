// Copyright 2024 The execore Authors
// This file is part of execore.

package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/lib/common"
)

type memStateManager struct {
	accounts map[common.Address]*Account
	storage  map[common.Address]map[common.Hash]common.Hash
}

func newMemStateManager() *memStateManager {
	return &memStateManager{
		accounts: make(map[common.Address]*Account),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (m *memStateManager) GetAccount(addr common.Address) (*Account, error) {
	a, ok := m.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStateManager) PutAccount(addr common.Address, acct *Account) error {
	cp := *acct
	m.accounts[addr] = &cp
	return nil
}

func (m *memStateManager) DeleteAccount(addr common.Address) error {
	delete(m.accounts, addr)
	return nil
}

func (m *memStateManager) GetContractCode(common.Address) ([]byte, error)       { return nil, nil }
func (m *memStateManager) PutContractCode(common.Address, []byte) error        { return nil }

func (m *memStateManager) GetContractStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	return m.storage[addr][key], nil
}

func (m *memStateManager) PutContractStorage(addr common.Address, key, value common.Hash) error {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	m.storage[addr][key] = value
	return nil
}

func (m *memStateManager) ClearContractStorage(addr common.Address) error {
	delete(m.storage, addr)
	return nil
}

func (m *memStateManager) Checkpoint() int              { return 0 }
func (m *memStateManager) Commit(int) error              { return nil }
func (m *memStateManager) Revert(int) error              { return nil }
func (m *memStateManager) GetStateRoot() (common.Hash, error) { return common.Hash{}, nil }
func (m *memStateManager) SetStateRoot(common.Hash) error     { return nil }
func (m *memStateManager) ShallowCopy() StateManager           { return m }

func TestJournalRevertRestoresState(t *testing.T) {
	sm := newMemStateManager()
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	key := common.HexToHash("0x01")

	require.NoError(t, sm.PutAccount(addr, &Account{Nonce: 1, Balance: *uint256.NewInt(100)}))

	j := NewJournal()
	defer j.Release()

	cp := j.Checkpoint()
	require.NoError(t, j.PutAccount(sm, addr, &Account{Nonce: 2, Balance: *uint256.NewInt(200)}))
	require.NoError(t, j.PutStorage(sm, addr, key, common.HexToHash("0xff")))
	j.AddLog(Log{Address: addr})
	j.AddRefund(500)
	j.AddWarmAddress(addr)

	require.NoError(t, j.Revert(cp, sm))

	acct, err := sm.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acct.Nonce)
	require.True(t, acct.Balance.Eq(uint256.NewInt(100)))

	val, err := sm.GetContractStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, val)

	require.Empty(t, j.Logs())
	require.Equal(t, uint64(0), j.Refund())
	require.False(t, j.IsWarmAddress(addr))
}

func TestJournalCommitKeepsState(t *testing.T) {
	sm := newMemStateManager()
	addr := common.HexToAddress("0x0000000000000000000000000000000000000002")

	j := NewJournal()
	defer j.Release()

	cp := j.Checkpoint()
	require.NoError(t, j.PutAccount(sm, addr, &Account{Nonce: 1}))
	j.AddRefund(100)
	require.NoError(t, j.Commit(cp))

	acct, err := sm.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), acct.Nonce)
	require.Equal(t, uint64(100), j.Refund())
}

func TestJournalUnbalancedCheckpointRejected(t *testing.T) {
	j := NewJournal()
	defer j.Release()

	outer := j.Checkpoint()
	_ = j.Checkpoint()
	require.ErrorIs(t, j.Commit(outer), ErrJournalUnbalanced)
}

func TestTransientStorageRevert(t *testing.T) {
	ts := NewTransientStorage()
	addr := common.HexToAddress("0x0000000000000000000000000000000000000003")
	key := common.HexToHash("0x02")

	ts.Put(addr, key, common.HexToHash("0x01"))
	cp := ts.Checkpoint()
	ts.Put(addr, key, common.HexToHash("0x02"))
	require.NoError(t, ts.Revert(cp))
	require.Equal(t, common.HexToHash("0x01"), ts.Get(addr, key))
}
