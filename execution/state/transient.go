// Copyright 2024 The execore Authors
// This file is part of execore.

package state

import "github.com/ethexec/execore/lib/common"

type transientEntry struct {
	key       [52]byte
	prevValue common.Hash
	hadValue  bool
}

// TransientStorage implements EIP-1153: a per-transaction (address, key)
// → value scratch map with its own checkpoint/commit/revert stack, kept
// separate from the main Journal. The EVM checkpoints and reverts it
// alongside the journal, so a reverted sub-call's transient writes are
// undone; a new transaction starts from a new, empty TransientStorage.
type TransientStorage struct {
	values      map[[52]byte]common.Hash
	entries     []transientEntry
	checkpoints []int
}

// NewTransientStorage returns an empty TransientStorage for a new transaction.
func NewTransientStorage() *TransientStorage {
	return &TransientStorage{values: make(map[[52]byte]common.Hash)}
}

// Checkpoint pushes a new undo boundary.
func (t *TransientStorage) Checkpoint() int {
	t.checkpoints = append(t.checkpoints, len(t.entries))
	return len(t.checkpoints) - 1
}

// Commit merges the checkpoint's entries into its parent.
func (t *TransientStorage) Commit(id int) error {
	if id != len(t.checkpoints)-1 {
		return ErrJournalUnbalanced
	}
	t.checkpoints = t.checkpoints[:id]
	return nil
}

// Revert undoes every write since the matching Checkpoint.
func (t *TransientStorage) Revert(id int) error {
	if id != len(t.checkpoints)-1 {
		return ErrJournalUnbalanced
	}
	boundary := t.checkpoints[id]
	for i := len(t.entries) - 1; i >= boundary; i-- {
		e := &t.entries[i]
		if e.hadValue {
			t.values[e.key] = e.prevValue
		} else {
			delete(t.values, e.key)
		}
	}
	t.entries = t.entries[:boundary]
	t.checkpoints = t.checkpoints[:id]
	return nil
}

// Get returns the value stored at (addr, key), or the zero hash if unset.
func (t *TransientStorage) Get(addr common.Address, key common.Hash) common.Hash {
	return t.values[slotKey(addr, key)]
}

// Put writes value at (addr, key), journaling the prior value.
func (t *TransientStorage) Put(addr common.Address, key, value common.Hash) {
	sk := slotKey(addr, key)
	prev, had := t.values[sk]
	t.entries = append(t.entries, transientEntry{key: sk, prevValue: prev, hadValue: had})
	t.values[sk] = value
}
