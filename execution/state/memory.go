// Copyright 2024 The execore Authors
// This file is part of execore.

package state

import (
	"bytes"
	"sort"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// MemoryState is a plain in-memory StateManager: every account, code blob
// and storage slot lives in a Go map. Checkpoint copies the account and
// storage maps; the code map is shared by every snapshot. It is not a production state backend (no trie, no
// persistence) — it exists for the CLI's single-transaction runner and
// for tests that need a real StateManager rather than a hand-rolled
// fake, grounded on the same account/code/storage split erigon's
// MemoryMutation test double uses ahead of a real MDBX-backed reader.
type MemoryState struct {
	accounts map[common.Address]Account
	code     map[common.Hash][]byte
	storage  map[common.Address]map[common.Hash]common.Hash

	snapshots []memorySnapshot
}

type memorySnapshot struct {
	accounts map[common.Address]Account
	code     map[common.Hash][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
}

// NewMemoryState returns an empty MemoryState ready for use.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		accounts: make(map[common.Address]Account),
		code:     make(map[common.Hash][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (m *MemoryState) GetAccount(addr common.Address) (*Account, error) {
	a, ok := m.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (m *MemoryState) PutAccount(addr common.Address, acct *Account) error {
	m.accounts[addr] = *acct
	return nil
}

func (m *MemoryState) DeleteAccount(addr common.Address) error {
	delete(m.accounts, addr)
	delete(m.storage, addr)
	return nil
}

func (m *MemoryState) GetContractCode(addr common.Address) ([]byte, error) {
	acct, ok := m.accounts[addr]
	if !ok || acct.CodeHash == EmptyCodeHash {
		return nil, nil
	}
	return m.code[acct.CodeHash], nil
}

func (m *MemoryState) PutContractCode(addr common.Address, code []byte) error {
	hash := crypto.Keccak256Hash(code)
	m.code[hash] = code
	acct, ok := m.accounts[addr]
	if !ok {
		acct = NewEmptyAccount()
	}
	acct.CodeHash = hash
	m.accounts[addr] = acct
	return nil
}

func (m *MemoryState) GetContractStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	slots, ok := m.storage[addr]
	if !ok {
		return common.Hash{}, nil
	}
	return slots[key], nil
}

func (m *MemoryState) PutContractStorage(addr common.Address, key, value common.Hash) error {
	slots, ok := m.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		m.storage[addr] = slots
	}
	if value == (common.Hash{}) {
		delete(slots, key)
		return nil
	}
	slots[key] = value
	return nil
}

func (m *MemoryState) ClearContractStorage(addr common.Address) error {
	delete(m.storage, addr)
	return nil
}

// Checkpoint snapshots the account and storage maps by value-copy. Maps of
// maps (storage) are copied one level deep, enough to let Revert restore a
// prior slot set without aliasing the live one a later Put would then
// corrupt. The code map is not copied: code stored after a checkpoint
// stays in it after Revert, reachable only through an account whose
// CodeHash names it.
func (m *MemoryState) Checkpoint() int {
	snap := memorySnapshot{
		accounts: make(map[common.Address]Account, len(m.accounts)),
		code:     m.code,
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(m.storage)),
	}
	for addr, acct := range m.accounts {
		snap.accounts[addr] = acct
	}
	for addr, slots := range m.storage {
		cp := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		snap.storage[addr] = cp
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *MemoryState) Commit(id int) error {
	if id != len(m.snapshots)-1 {
		return ErrJournalUnbalanced
	}
	m.snapshots = m.snapshots[:id]
	return nil
}

func (m *MemoryState) Revert(id int) error {
	if id != len(m.snapshots)-1 {
		return ErrJournalUnbalanced
	}
	snap := m.snapshots[id]
	m.accounts = snap.accounts
	m.storage = snap.storage
	m.snapshots = m.snapshots[:id]
	return nil
}

// GetStateRoot folds every account's address, nonce, balance and code
// hash into one keccak256 digest, in no particular canonical order beyond
// Go's randomized map iteration stabilized by sorting addresses first.
// It is not a Merkle-Patricia state root and will not match a canonical
// client's value; see execution/types.DeriveSimpleRoot for the same
// tradeoff applied to transaction/receipt roots.
func (m *MemoryState) GetStateRoot() (common.Hash, error) {
	addrs := make([]common.Address, 0, len(m.accounts))
	for addr := range m.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	buf := make([]byte, 0, len(addrs)*64)
	for _, addr := range addrs {
		acct := m.accounts[addr]
		buf = append(buf, addr[:]...)
		for shift := 56; shift >= 0; shift -= 8 {
			buf = append(buf, byte(acct.Nonce>>uint(shift)))
		}
		balance := acct.Balance.Bytes32()
		buf = append(buf, balance[:]...)
		buf = append(buf, acct.CodeHash[:]...)
	}
	return crypto.Keccak256Hash(buf), nil
}

func (m *MemoryState) SetStateRoot(common.Hash) error { return nil }

// ShallowCopy returns an independent MemoryState sharing no mutable map
// with m, used by the pending-block assembler to execute speculative
// transactions without disturbing the canonical state.
func (m *MemoryState) ShallowCopy() StateManager {
	cp := NewMemoryState()
	for addr, acct := range m.accounts {
		cp.accounts[addr] = acct
	}
	for hash, code := range m.code {
		cp.code[hash] = code
	}
	for addr, slots := range m.storage {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		cp.storage[addr] = inner
	}
	return cp
}
