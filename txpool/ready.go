// Copyright 2024 The execore Authors
// This file is part of execore.

package txpool

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/lib/common"
)

type readyItem struct {
	sender common.Address
	nonce  uint64
	tx     types.Transaction
}

// ReadyQueue is a snapshot of every sender's head transaction, ordered by
// descending effective tip `min(feeCap-baseFee, tipCap)` the way spec.md's
// block-assembly algorithm describes popping "the best" across senders.
// Popping a sender's head advances that sender to its next queued nonce,
// re-inserting it in tip order, mirroring a per-sender iterator merged
// through a priority heap.
type ReadyQueue struct {
	pool    *Pool
	baseFee *uint256.Int
	items   []readyItem
	heads   map[common.Address]uint64
}

func (rq *ReadyQueue) tip(tx types.Transaction) *uint256.Int {
	return types.EffectiveGasTip(tx.GetFeeCap(), tx.GetTipCap(), rq.baseFee)
}

func (rq *ReadyQueue) sort() {
	sort.SliceStable(rq.items, func(i, j int) bool {
		return rq.tip(rq.items[j].tx).Lt(rq.tip(rq.items[i].tx))
	})
}

// Len reports how many senders currently have a ready head transaction.
func (rq *ReadyQueue) Len() int { return len(rq.items) }

// Peek returns the current best transaction without removing it.
func (rq *ReadyQueue) Peek() types.Transaction {
	if len(rq.items) == 0 {
		return nil
	}
	return rq.items[0].tx
}

// PeekSender returns the sender of the current best transaction, the
// address a caller passes to Skip without having to re-recover it from
// the transaction's signature.
func (rq *ReadyQueue) PeekSender() common.Address {
	if len(rq.items) == 0 {
		return common.Address{}
	}
	return rq.items[0].sender
}

// Pop removes and returns the current best transaction, then advances its
// sender to the next nonce queued behind it (if any), re-sorting the
// remaining items by tip.
func (rq *ReadyQueue) Pop() types.Transaction {
	if len(rq.items) == 0 {
		return nil
	}
	best := rq.items[0]
	rq.items = rq.items[1:]
	rq.advance(best.sender, best.nonce)
	return best.tx
}

// Skip removes sender's current head without returning it and, like Pop,
// moves that sender on to its next queued nonce (if any). The builder uses
// it when a head is gas-too-large or hardfork-incompatible, so the skipped
// transaction is never dispatched.
func (rq *ReadyQueue) Skip(sender common.Address) {
	for i, it := range rq.items {
		if it.sender == sender {
			rq.items = append(rq.items[:i], rq.items[i+1:]...)
			rq.advance(sender, it.nonce)
			return
		}
	}
}

func (rq *ReadyQueue) advance(sender common.Address, poppedNonce uint64) {
	rq.pool.mu.RLock()
	sq := rq.pool.bySender[sender]
	var next *metaTx
	if sq != nil {
		next = sq.get(poppedNonce + 1)
	}
	rq.pool.mu.RUnlock()
	if next == nil {
		delete(rq.heads, sender)
		return
	}
	rq.heads[sender] = next.Nonce
	rq.items = append(rq.items, readyItem{sender: sender, nonce: next.Nonce, tx: next.Tx})
	rq.sort()
}
