// Copyright 2024 The execore Authors
// This file is part of execore.

package state

import "github.com/ethexec/execore/lib/common"

// StateManager is the external backing store the EVM reads and writes
// through. This module owns the journal sitting in front
// of it (checkpoint/commit/revert of in-flight mutations); the
// StateManager implementation itself (trie-backed, flat-db-backed, or an
// in-memory map for tests) is a caller-supplied collaborator.
type StateManager interface {
	GetAccount(addr common.Address) (*Account, error)
	PutAccount(addr common.Address, acct *Account) error
	DeleteAccount(addr common.Address) error

	GetContractCode(addr common.Address) ([]byte, error)
	PutContractCode(addr common.Address, code []byte) error

	GetContractStorage(addr common.Address, key common.Hash) (common.Hash, error)
	PutContractStorage(addr common.Address, key, value common.Hash) error
	ClearContractStorage(addr common.Address) error

	Checkpoint() int
	Commit(checkpoint int) error
	Revert(checkpoint int) error

	GetStateRoot() (common.Hash, error)
	SetStateRoot(root common.Hash) error

	ShallowCopy() StateManager
}

// ProofStateManager is implemented by StateManagers that can produce a
// Merkle proof of an account/storage slot's inclusion, an optional
// capability.
type ProofStateManager interface {
	StateManager
	GetProof(addr common.Address, keys []common.Hash) ([]byte, error)
}
