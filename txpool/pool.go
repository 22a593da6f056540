// Copyright 2024 The execore Authors
// This file is part of execore.

// Package txpool maintains the set of transactions admissible for
// inclusion in a future block: per-sender nonce-ordered queues, upfront
// balance/nonce admission checks, and same-nonce replacement by tip
// bump. Grounded on erigon's txpool package (senderInfo's btree-ordered
// nonce2Tx, sub-pool promotion), rewritten against this module's own
// Transaction/Signer/StateManager/Rules seam rather than erigon's
// kv-backed SendersCache.
package txpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/lib/common"
)

var (
	ErrAlreadyKnown       = errors.New("txpool: transaction already known")
	ErrNonceTooLow        = errors.New("txpool: nonce below account nonce")
	ErrInsufficientFunds  = errors.New("txpool: sender balance below upfront cost")
	ErrUnderpriced        = errors.New("txpool: fee below required multiple of base fee")
	ErrReplaceUnderpriced = errors.New("txpool: replacement transaction underpriced")
	ErrBlobsNotActive     = errors.New("txpool: blob transactions not active on this hardfork")
	ErrChainIDMismatch    = errors.New("txpool: transaction chain id does not match pool signer")
)

// Config governs the admission checks Add applies.
type Config struct {
	// BaseFeeRatioNumerator/Denominator enforce feeCap*Denominator >=
	// baseFee*Numerator, a ratio rather than a flat minimum so the check
	// scales with the chain's current congestion.
	BaseFeeRatioNumerator   uint64
	BaseFeeRatioDenominator uint64

	// PriceBumpPercent is how much a replacement's tip must exceed the
	// existing same-nonce transaction's tip, as a percentage (10 means
	// the new tip must be >= old tip * 1.10).
	PriceBumpPercent uint64

	// MaxPerSender caps how many pending transactions one sender may
	// occupy at once, bounding one account's ability to crowd the pool.
	MaxPerSender int
}

// DefaultConfig matches typical mainnet client defaults: 10% price bump,
// fee cap must be at least the current base fee (ratio 1/1), 64
// transactions per sender.
func DefaultConfig() Config {
	return Config{
		BaseFeeRatioNumerator:   1,
		BaseFeeRatioDenominator: 1,
		PriceBumpPercent:        10,
		MaxPerSender:            64,
	}
}

// metaTx is the btree.Item stored per (sender, nonce) slot; Less orders
// purely by nonce so a probe metaTx with only Nonce set can Get/Delete
// the slot holding the real transaction.
type metaTx struct {
	Nonce uint64
	Tx    types.Transaction
}

func (m *metaTx) Less(than btree.Item) bool {
	return m.Nonce < than.(*metaTx).Nonce
}

// senderQueue is one sender's nonce-ordered transaction set.
type senderQueue struct {
	byNonce *btree.BTree
}

func newSenderQueue() *senderQueue {
	return &senderQueue{byNonce: btree.New(32)}
}

func (sq *senderQueue) get(nonce uint64) *metaTx {
	item := sq.byNonce.Get(&metaTx{Nonce: nonce})
	if item == nil {
		return nil
	}
	return item.(*metaTx)
}

func (sq *senderQueue) put(m *metaTx) { sq.byNonce.ReplaceOrInsert(m) }

func (sq *senderQueue) delete(nonce uint64) {
	sq.byNonce.Delete(&metaTx{Nonce: nonce})
}

// head returns the lowest-nonce transaction still queued for this
// sender, the one eligible to execute next.
func (sq *senderQueue) head() *metaTx {
	item := sq.byNonce.Min()
	if item == nil {
		return nil
	}
	return item.(*metaTx)
}

// Pool is the mutable set of transactions awaiting inclusion. All
// exported methods are safe for concurrent use; mutations are guarded by
// a single RWMutex the way spec.md's "logical lock" shared-resource
// policy describes.
type Pool struct {
	mu sync.RWMutex

	cfg    Config
	signer types.Signer
	rules  *chain.Rules
	sm     state.StateManager

	baseFee *uint256.Int

	bySender map[common.Address]*senderQueue
	byHash   map[common.Hash]common.Address

	metrics *Metrics
}

// New builds an empty pool that validates incoming transactions against
// sm (for nonce/balance) and rules/signer (for hardfork and signature
// compatibility), with baseFee as the block base fee new submissions are
// priced against.
func New(cfg Config, signer types.Signer, rules *chain.Rules, sm state.StateManager, baseFee *uint256.Int, metrics *Metrics) *Pool {
	return &Pool{
		cfg:      cfg,
		signer:   signer,
		rules:    rules,
		sm:       sm,
		baseFee:  baseFee,
		bySender: make(map[common.Address]*senderQueue),
		byHash:   make(map[common.Hash]common.Address),
		metrics:  metrics,
	}
}

// SetBaseFee updates the fee floor new submissions (and replacements) are
// checked against, called whenever the canonical head's base fee changes.
func (p *Pool) SetBaseFee(baseFee *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseFee = baseFee
}

// Add validates tx and inserts it into its sender's nonce-ordered queue,
// replacing an existing same-nonce transaction only if tx's tip clears
// the configured price-bump threshold.
func (p *Pool) Add(tx types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tx.Type() == types.BlobTxType {
		if !p.rules.IsCancun {
			p.reject()
			return ErrBlobsNotActive
		}
		blobTx, ok := tx.(*types.BlobTx)
		if !ok {
			p.reject()
			return ErrBlobsNotActive
		}
		if err := blobTx.ValidateSidecar(); err != nil {
			p.reject()
			return fmt.Errorf("validate blob sidecar: %w", err)
		}
	}
	if chainID := tx.GetChainID(); chainID != nil && p.signer.ChainID() != nil && !chainID.Eq(p.signer.ChainID()) {
		p.reject()
		return ErrChainIDMismatch
	}

	sender, err := tx.Sender(p.signer)
	if err != nil {
		p.reject()
		return fmt.Errorf("recover sender: %w", err)
	}

	if !p.feeCapMeetsRatio(tx) {
		p.reject()
		return ErrUnderpriced
	}

	acct, err := p.sm.GetAccount(sender)
	if err != nil {
		return err
	}
	var nonce uint64
	var balance uint256.Int
	if acct != nil {
		nonce = acct.Nonce
		balance = acct.Balance
	}
	if tx.GetNonce() < nonce {
		p.reject()
		return ErrNonceTooLow
	}
	if upfront := tx.GetUpfrontCost(p.baseFee); balance.Lt(upfront) {
		p.reject()
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientFunds, balance.String(), upfront.String())
	}

	if _, known := p.byHash[tx.Hash()]; known {
		return ErrAlreadyKnown
	}

	sq, ok := p.bySender[sender]
	if !ok {
		sq = newSenderQueue()
		p.bySender[sender] = sq
	}

	if existing := sq.get(tx.GetNonce()); existing != nil {
		if !tipClearsBump(existing.Tx, tx, p.cfg.PriceBumpPercent) {
			p.reject()
			return ErrReplaceUnderpriced
		}
		delete(p.byHash, existing.Tx.Hash())
		if p.metrics != nil {
			p.metrics.Replaced.Inc()
		}
	} else if sq.byNonce.Len() >= p.cfg.MaxPerSender {
		p.reject()
		return fmt.Errorf("txpool: sender %s at capacity (%d)", sender, p.cfg.MaxPerSender)
	}

	sq.put(&metaTx{Nonce: tx.GetNonce(), Tx: tx})
	p.byHash[tx.Hash()] = sender

	if p.metrics != nil {
		p.metrics.Added.Inc()
		p.refreshGaugesLocked()
	}
	return nil
}

// reject bumps the rejection counter; Add calls it on each failed admission
// check (a state read error and an already-known transaction are not counted).
func (p *Pool) reject() {
	if p.metrics != nil {
		p.metrics.Rejected.Inc()
	}
}

// feeCapMeetsRatio enforces BaseFeeRatioNumerator/Denominator against the
// fee the sender is willing to pay: FeeCap for 1559/blob transactions,
// GasPrice for legacy/access-list ones.
func (p *Pool) feeCapMeetsRatio(tx types.Transaction) bool {
	if p.baseFee == nil || p.baseFee.IsZero() {
		return true
	}
	fee := tx.GetFeeCap()
	if fee == nil || fee.IsZero() {
		fee = tx.GetGasPrice()
	}
	lhs := new(uint256.Int).Mul(fee, uint256.NewInt(p.cfg.BaseFeeRatioDenominator))
	rhs := new(uint256.Int).Mul(p.baseFee, uint256.NewInt(p.cfg.BaseFeeRatioNumerator))
	return !lhs.Lt(rhs)
}

// tipClearsBump reports whether next's tip exceeds prev's by at least
// bumpPercent, the same check go-ethereum's legacypool applies before
// allowing a same-nonce replacement.
func tipClearsBump(prev, next types.Transaction, bumpPercent uint64) bool {
	prevTip := prev.GetTipCap()
	if prevTip == nil || prevTip.IsZero() {
		prevTip = prev.GetGasPrice()
	}
	nextTip := next.GetTipCap()
	if nextTip == nil || nextTip.IsZero() {
		nextTip = next.GetGasPrice()
	}
	threshold := new(uint256.Int).Mul(prevTip, uint256.NewInt(100+bumpPercent))
	actual := new(uint256.Int).Mul(nextTip, uint256.NewInt(100))
	return !actual.Lt(threshold)
}

// Remove discards the transaction identified by hash, wherever it sits in
// its sender's queue.
func (p *Pool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash common.Hash) {
	sender, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	sq := p.bySender[sender]
	if sq == nil {
		return
	}
	sq.byNonce.Ascend(func(i btree.Item) bool {
		m := i.(*metaTx)
		if m.Tx.Hash() == hash {
			sq.delete(m.Nonce)
			return false
		}
		return true
	})
	if sq.byNonce.Len() == 0 {
		delete(p.bySender, sender)
	}
	if p.metrics != nil {
		p.refreshGaugesLocked()
	}
}

// DropExecuted removes hash from the pool and counts it against the
// dropped-by-execution-failure metric, used by the block builder when a
// popped transaction fails during speculative execution (OOG, invalid
// opcode, stale nonce against the block it was tried in).
func (p *Pool) DropExecuted(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
	if p.metrics != nil {
		p.metrics.Dropped.Inc()
	}
}

// BySender returns addr's queued transactions in ascending nonce order.
func (p *Pool) BySender(addr common.Address) []types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sq, ok := p.bySender[addr]
	if !ok {
		return nil
	}
	out := make([]types.Transaction, 0, sq.byNonce.Len())
	sq.byNonce.Ascend(func(i btree.Item) bool {
		out = append(out, i.(*metaTx).Tx)
		return true
	})
	return out
}

// refreshGaugesLocked recomputes the pending/queued gauges. Each sender's
// lowest-nonce transaction counts as "pending"; every other transaction of
// that sender counts as "queued", whether or not its nonce leaves a gap.
// Callers must hold p.mu.
func (p *Pool) refreshGaugesLocked() {
	var pending, queued int
	for _, sq := range p.bySender {
		first := true
		sq.byNonce.Ascend(func(i btree.Item) bool {
			if first {
				pending++
				first = false
			} else {
				queued++
			}
			return true
		})
	}
	p.metrics.PendingCount.Set(float64(pending))
	p.metrics.QueuedCount.Set(float64(queued))
}

// Ready returns a snapshot ReadyQueue over every sender's current head
// transaction, ordered best-tip-first. The set of heads is taken when Ready
// is called; Pop and Skip look up a sender's next nonce in the live pool,
// and other later pool changes are seen only by calling Pool.Ready again.
func (p *Pool) Ready(baseFee *uint256.Int) *ReadyQueue {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rq := &ReadyQueue{pool: p, baseFee: baseFee, heads: make(map[common.Address]uint64, len(p.bySender))}
	for addr, sq := range p.bySender {
		if h := sq.head(); h != nil {
			rq.heads[addr] = h.Nonce
			rq.items = append(rq.items, readyItem{sender: addr, nonce: h.Nonce, tx: h.Tx})
		}
	}
	rq.sort()
	return rq
}
