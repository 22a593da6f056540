// Copyright 2024 The execore Authors
// This file is part of execore.

// Package state implements the journaled state overlay the EVM mutates
// during message execution: a checkpoint/commit/revert journal,
// per-transaction transient storage (EIP-1153), and the StateManager
// interface the EVM consumes from an externally supplied backing store.
// Grounded on erigon's execution/state package, trimmed to the
// discriminated-union journal entry shape it already uses and
// generalized away from its erigon-specific stateObject/trie plumbing.
package state

import (
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// EmptyCodeHash is the keccak256 of the empty byte string, the code hash
// of every externally-owned account.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// Account is the consensus-relevant state of one address.
type Account struct {
	Nonce       uint64
	Balance     uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// IsEmpty reports whether acct is the EIP-161 empty account: zero nonce,
// zero balance, and the hash of empty code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.CodeHash == EmptyCodeHash
}

// NewEmptyAccount returns a freshly created account as produced by CREATE
// before any code is deposited.
func NewEmptyAccount() Account {
	return Account{CodeHash: EmptyCodeHash}
}
