// Copyright 2024 The execore Authors
// This file is part of execore.

package state

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ethexec/execore/lib/common"
)

// entryKind discriminates journalEntry the way erigon's journalEntryKind
// does, avoiding the interface-boxing allocation of a []func()
// undo-closure list.
type entryKind uint8

const (
	kindAccountPut entryKind = iota
	kindAccountDelete
	kindStoragePut
	kindLogAppend
	kindRefundAdd
	kindWarmAddress
	kindWarmSlot
	kindTransientPut
	kindSelfDestructMark
)

// journalEntry is one undoable mutation. Only the fields relevant to kind
// are populated; this mirrors erigon's flat-struct entry shape rather
// than per-kind interface types, so reverting never allocates.
type journalEntry struct {
	kind entryKind

	addr common.Address
	key  common.Hash

	prevAccount *Account // kindAccountPut / kindAccountDelete
	hadAccount  bool

	prevValue common.Hash // kindStoragePut

	logIndex int // kindLogAppend

	prevRefund uint64 // kindRefundAdd
	refundDiff int64

	prevSelfDestruct bool // kindSelfDestructMark
}

// Log is an EVM event log.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
	TxIndex int
}

// ErrJournalUnbalanced is returned by Commit/Revert when called without a
// matching Checkpoint.
var ErrJournalUnbalanced = fmt.Errorf("state: journal checkpoint/commit/revert unbalanced")

var journalPool = sync.Pool{
	New: func() any {
		return &Journal{entries: make([]journalEntry, 0, 64)}
	},
}

// Journal is the checkpoint-stack of state mutations owned exclusively by
// one EVM call stack for the duration of a transaction.
// Warm-address/warm-slot/self-destruct membership is tracked in sets
// alongside the undo log since membership checks are on the hottest path
// of the interpreter (EIP-2929 SLOAD/SSTORE/CALL gas).
type Journal struct {
	entries     []journalEntry
	checkpoints []int // entries[] length at each open checkpoint

	logs    []Log
	refund  uint64
	touched map[common.Address]struct{}

	warmAddresses  mapset.Set[common.Address]
	warmSlots      mapset.Set[[52]byte] // address(20) || key(32)
	selfDestructed map[common.Address]struct{}
	createdAddrs   mapset.Set[common.Address]
}

// NewJournal returns a Journal from the pool, reset and ready for a new
// transaction.
func NewJournal() *Journal {
	j := journalPool.Get().(*Journal)
	j.entries = j.entries[:0]
	j.checkpoints = j.checkpoints[:0]
	j.logs = nil
	j.refund = 0
	j.touched = make(map[common.Address]struct{})
	j.warmAddresses = mapset.NewThreadUnsafeSet[common.Address]()
	j.warmSlots = mapset.NewThreadUnsafeSet[[52]byte]()
	j.selfDestructed = make(map[common.Address]struct{})
	j.createdAddrs = mapset.NewThreadUnsafeSet[common.Address]()
	return j
}

// Release returns j to the pool. Callers must not use j afterward.
func (j *Journal) Release() {
	journalPool.Put(j)
}

func slotKey(addr common.Address, key common.Hash) [52]byte {
	var k [52]byte
	copy(k[:20], addr[:])
	copy(k[20:], key[:])
	return k
}

// Checkpoint pushes a new boundary, returning its id for a matching
// Commit or Revert.
func (j *Journal) Checkpoint() int {
	j.checkpoints = append(j.checkpoints, len(j.entries))
	return len(j.checkpoints) - 1
}

// Commit merges the checkpoint's entries into its parent: entries stay,
// only the boundary marker is popped.
func (j *Journal) Commit(id int) error {
	if id != len(j.checkpoints)-1 {
		return ErrJournalUnbalanced
	}
	j.checkpoints = j.checkpoints[:id]
	return nil
}

// Revert undoes every entry appended since the matching Checkpoint, in
// LIFO order, and discards logs/refund-changes recorded since then.
func (j *Journal) Revert(id int, sm StateManager) error {
	if id != len(j.checkpoints)-1 {
		return ErrJournalUnbalanced
	}
	boundary := j.checkpoints[id]
	for i := len(j.entries) - 1; i >= boundary; i-- {
		if err := j.undo(&j.entries[i], sm); err != nil {
			return err
		}
	}
	j.entries = j.entries[:boundary]
	j.checkpoints = j.checkpoints[:id]
	return nil
}

func (j *Journal) undo(e *journalEntry, sm StateManager) error {
	switch e.kind {
	case kindAccountPut, kindAccountDelete:
		if e.hadAccount {
			return sm.PutAccount(e.addr, e.prevAccount)
		}
		return sm.DeleteAccount(e.addr)
	case kindStoragePut:
		return sm.PutContractStorage(e.addr, e.key, e.prevValue)
	case kindLogAppend:
		if e.logIndex < len(j.logs) {
			j.logs = j.logs[:e.logIndex]
		}
	case kindRefundAdd:
		j.refund = e.prevRefund
	case kindWarmAddress:
		j.warmAddresses.Remove(e.addr)
	case kindWarmSlot:
		j.warmSlots.Remove(slotKey(e.addr, e.key))
	case kindTransientPut:
		// handled by TransientStorage's own journal, see transient.go
	case kindSelfDestructMark:
		if e.prevSelfDestruct {
			j.selfDestructed[e.addr] = struct{}{}
		} else {
			delete(j.selfDestructed, e.addr)
		}
	}
	return nil
}

// PutAccount records acct as e.addr's new state, remembering the prior
// value (nil if none existed) for revert.
func (j *Journal) PutAccount(sm StateManager, addr common.Address, acct *Account) error {
	prev, err := sm.GetAccount(addr)
	if err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{kind: kindAccountPut, addr: addr, prevAccount: prev, hadAccount: prev != nil})
	j.touched[addr] = struct{}{}
	return sm.PutAccount(addr, acct)
}

// DeleteAccount removes addr's account, per EIP-161 empty-account pruning
// or SELFDESTRUCT finalization.
func (j *Journal) DeleteAccount(sm StateManager, addr common.Address) error {
	prev, err := sm.GetAccount(addr)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}
	j.entries = append(j.entries, journalEntry{kind: kindAccountDelete, addr: addr, prevAccount: prev, hadAccount: true})
	return sm.DeleteAccount(addr)
}

// PutStorage writes value at (addr, key), journaling the previous value.
func (j *Journal) PutStorage(sm StateManager, addr common.Address, key, value common.Hash) error {
	prev, err := sm.GetContractStorage(addr, key)
	if err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{kind: kindStoragePut, addr: addr, key: key, prevValue: prev})
	j.touched[addr] = struct{}{}
	return sm.PutContractStorage(addr, key, value)
}

// AddLog appends a log entry, visible to the caller only if its
// enclosing checkpoint ultimately commits.
func (j *Journal) AddLog(l Log) {
	j.entries = append(j.entries, journalEntry{kind: kindLogAppend, logIndex: len(j.logs)})
	j.logs = append(j.logs, l)
}

// Logs returns every log appended so far (including ones from
// checkpoints still open).
func (j *Journal) Logs() []Log { return j.logs }

// AddRefund increases the gas-refund counter by delta.
func (j *Journal) AddRefund(delta uint64) {
	j.entries = append(j.entries, journalEntry{kind: kindRefundAdd, prevRefund: j.refund})
	j.refund += delta
}

// SubRefund decreases the gas-refund counter by delta, clamping at zero
// the way go-ethereum's SubRefund guards against underflow panics rather
// than silently wrapping.
func (j *Journal) SubRefund(delta uint64) {
	j.entries = append(j.entries, journalEntry{kind: kindRefundAdd, prevRefund: j.refund})
	if delta > j.refund {
		j.refund = 0
		return
	}
	j.refund -= delta
}

// Refund returns the current accumulated gas-refund counter.
func (j *Journal) Refund() uint64 { return j.refund }

// AddWarmAddress marks addr as warm (EIP-2929), journaling the change so
// a revert un-warms it only if it was genuinely added by this entry.
func (j *Journal) AddWarmAddress(addr common.Address) bool {
	if j.warmAddresses.Contains(addr) {
		return false
	}
	j.entries = append(j.entries, journalEntry{kind: kindWarmAddress, addr: addr})
	j.warmAddresses.Add(addr)
	return true
}

// IsWarmAddress reports whether addr has been accessed this transaction.
func (j *Journal) IsWarmAddress(addr common.Address) bool {
	return j.warmAddresses.Contains(addr)
}

// AddWarmSlot marks (addr, key) as warm.
func (j *Journal) AddWarmSlot(addr common.Address, key common.Hash) bool {
	sk := slotKey(addr, key)
	if j.warmSlots.Contains(sk) {
		return false
	}
	j.entries = append(j.entries, journalEntry{kind: kindWarmSlot, addr: addr, key: key})
	j.warmSlots.Add(sk)
	return true
}

// IsWarmSlot reports whether (addr, key) has been accessed this transaction.
func (j *Journal) IsWarmSlot(addr common.Address, key common.Hash) bool {
	return j.warmSlots.Contains(slotKey(addr, key))
}

// MarkCreated records addr as newly created by the current transaction,
// for EIP-6780's SELFDESTRUCT gating.
func (j *Journal) MarkCreated(addr common.Address) {
	j.createdAddrs.Add(addr)
}

// WasCreated reports whether addr was created by the current transaction.
func (j *Journal) WasCreated(addr common.Address) bool {
	return j.createdAddrs.Contains(addr)
}

// MarkSelfDestruct records addr as self-destructed in the current frame.
func (j *Journal) MarkSelfDestruct(addr common.Address) {
	_, was := j.selfDestructed[addr]
	j.entries = append(j.entries, journalEntry{kind: kindSelfDestructMark, addr: addr, prevSelfDestruct: was})
	j.selfDestructed[addr] = struct{}{}
}

// SelfDestructed reports whether addr was marked for self-destruction.
func (j *Journal) SelfDestructed(addr common.Address) bool {
	_, ok := j.selfDestructed[addr]
	return ok
}

// SelfDestructSet returns every address marked for self-destruction.
func (j *Journal) SelfDestructSet() []common.Address {
	out := make([]common.Address, 0, len(j.selfDestructed))
	for a := range j.selfDestructed {
		out = append(out, a)
	}
	return out
}

// WarmCoinbase pre-warms the precompile addresses, tx.to, tx.from, and
// (EIP-3651) the coinbase, grounded on EIP-2929's per-tx warm-set seeding.
func (j *Journal) WarmCoinbase(precompiles []common.Address, to *common.Address, from, coinbase common.Address, eip3651 bool) {
	for _, p := range precompiles {
		j.AddWarmAddress(p)
	}
	j.AddWarmAddress(from)
	if to != nil {
		j.AddWarmAddress(*to)
	}
	if eip3651 {
		j.AddWarmAddress(coinbase)
	}
}
