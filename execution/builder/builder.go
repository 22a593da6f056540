// Copyright 2024 The execore Authors
// This file is part of execore.

// Package builder assembles pending blocks from a transaction pool: it
// hands out a stable payload id for a parent/params pair, fills a
// candidate block best-tip-first against a scratch copy of state on each
// Build call, and lets a caller cancel or re-poll for an improved result
// up to a deadline.
//
// Grounded on erigon's block-building flow (txpool's pending pool feeding
// a miner/builder loop that pops by tip, executes speculatively, and
// evicts failures), rewritten against this module's txpool.ReadyQueue and
// execution/protocol.ApplyTransaction instead of erigon's IntraBlockState
// miner worker.
package builder

import (
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/protocol"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/txpool"
)

// ErrUnknownPayload is returned by Build/Stop for a payload id Start never
// produced or that has already been stopped and forgotten.
var ErrUnknownPayload = errors.New("builder: unknown payload id")

// maxBlobGasPerBlock bounds how much blob gas one block may carry
// (EIP-4844: twice the per-block target).
const maxBlobGasPerBlock = 2 * targetBlobGasPerBlock

// PayloadID identifies one in-progress build, an 8-byte digest of the
// inputs that make two Start calls distinguishable, per spec.md's
// payload_id derivation (parent_hash, timestamp, randao, fee recipient,
// withdrawals root).
type PayloadID [8]byte

// Params are the caller-supplied knobs for one payload: who gets the
// block reward, when the block claims to be built, how big it may grow,
// and the post-Merge randomness beacon opcodes read via PREVRANDAO.
type Params struct {
	SuggestedFeeRecipient common.Address
	Timestamp             uint64
	GasLimit              uint64
	PrevRandao            common.Hash
	WithdrawalsRoot       *common.Hash
}

func (p Params) withdrawalsRootOrEmpty() common.Hash {
	if p.WithdrawalsRoot != nil {
		return *p.WithdrawalsRoot
	}
	return types.EmptyRootHash
}

// DerivePayloadID computes the stable id for a (parent, params) pair.
func DerivePayloadID(parentHash common.Hash, params Params) PayloadID {
	withdrawalsRoot := params.withdrawalsRootOrEmpty()
	var timestamp [8]byte
	for i := 0; i < 8; i++ {
		timestamp[i] = byte(params.Timestamp >> (56 - 8*i))
	}
	digest := crypto.Keccak256(
		parentHash[:],
		timestamp[:],
		params.PrevRandao[:],
		params.SuggestedFeeRecipient[:],
		withdrawalsRoot[:],
	)
	var id PayloadID
	copy(id[:], digest[:8])
	return id
}

// BlobBundle is the sidecar data accompanying a block's included blob
// transactions, returned alongside the block itself so a caller can
// gossip it through the blob-pool side channel per EIP-4844.
type BlobBundle struct {
	Blobs       [][]byte
	Commitments [][]byte
	Proofs      [][]byte
}

// Result is what Build hands back: the best block assembled so far, its
// receipts in transaction order, the coinbase's accumulated priority-fee
// earnings, and a blob bundle if any blob transactions were included.
type Result struct {
	Block    *types.Block
	Receipts []*types.Receipt
	Value    *uint256.Int
	Blobs    *BlobBundle
}

// payload is one Start call's accumulating build state. Successive Build
// calls on the same id resume from whatever was already included rather
// than starting over, so a slow builder's result only ever improves.
type payload struct {
	mu sync.Mutex

	header *types.Header
	sm     state.StateManager
	gp     *protocol.GasPool

	blobGasRemaining uint64
	included         map[common.Hash]struct{}
	txs              []types.Transaction
	receipts         []*types.Receipt
	coinbaseValue    *uint256.Int
	blobs            *BlobBundle

	cancelled bool
}

// Builder holds the pool and chain state a block is assembled from and
// tracks every payload Start has handed out.
type Builder struct {
	pool    *txpool.Pool
	config  *chain.Config
	vmCfg   vm.Config
	getHash func(blockNumber uint64) common.Hash

	mu       sync.Mutex
	payloads map[PayloadID]*payload
}

// New returns a Builder that fills candidate blocks from pool's ready
// transactions against config's hardfork schedule. getHash resolves the
// last 256 block hashes the BLOCKHASH opcode reads; pass a function backed
// by the canonical chain's header store.
func New(pool *txpool.Pool, config *chain.Config, vmCfg vm.Config, getHash func(blockNumber uint64) common.Hash) *Builder {
	return &Builder{
		pool:     pool,
		config:   config,
		vmCfg:    vmCfg,
		getHash:  getHash,
		payloads: make(map[PayloadID]*payload),
	}
}

// Start opens a new payload on top of parent, returning the id a caller
// passes to Build/Stop. sm is the canonical state as of parent; Start
// takes its own ShallowCopy so nothing Build does is visible outside the
// payload until the caller commits the finished block elsewhere.
func (b *Builder) Start(parent *types.Header, sm state.StateManager, params Params) (PayloadID, error) {
	rules, err := b.config.Rules(parent.Number+1, params.Timestamp)
	if err != nil {
		return PayloadID{}, err
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   params.SuggestedFeeRecipient,
		Difficulty: new(uint256.Int),
		Number:     parent.Number + 1,
		GasLimit:   params.GasLimit,
		Time:       params.Timestamp,
		MixDigest:  params.PrevRandao,
		Nonce:      types.EncodeNonce(0),
	}

	if rules.IsLondon {
		header.BaseFee = CalcBaseFee(parent.GasLimit, parent.GasUsed, parent.BaseFee)
	}
	if rules.IsShanghai {
		root := params.withdrawalsRootOrEmpty()
		header.WithdrawalsRoot = &root
	}
	var blobGasRemaining uint64
	if rules.IsCancun {
		var parentExcess, parentUsed uint64
		if parent.ExcessBlobGas != nil {
			parentExcess = *parent.ExcessBlobGas
		}
		if parent.BlobGasUsed != nil {
			parentUsed = *parent.BlobGasUsed
		}
		excess := CalcExcessBlobGas(parentExcess, parentUsed)
		used := uint64(0)
		header.ExcessBlobGas = &excess
		header.BlobGasUsed = &used
		blobGasRemaining = maxBlobGasPerBlock
	}

	gp := protocol.GasPool(0)
	gp.AddGas(header.GasLimit)

	p := &payload{
		header:           header,
		sm:               sm.ShallowCopy(),
		gp:               &gp,
		blobGasRemaining: blobGasRemaining,
		included:         make(map[common.Hash]struct{}),
		coinbaseValue:    new(uint256.Int),
	}

	id := DerivePayloadID(header.ParentHash, params)

	b.mu.Lock()
	b.payloads[id] = p
	b.mu.Unlock()

	return id, nil
}

// Stop cancels payload id. It is idempotent: stopping an unknown or
// already-stopped id is not an error.
func (b *Builder) Stop(id PayloadID) {
	b.mu.Lock()
	p, ok := b.payloads[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
}

// Build fills payload id from the pool's ready transactions best-tip
// first until the block is full, the pool runs dry, or deadline passes,
// then returns the best block assembled so far. Calling Build again on
// the same id resumes filling from there, so a later call with a later
// deadline (or simply a pool that has since grown) can return strictly
// more transactions than the last.
func (b *Builder) Build(id PayloadID, deadline time.Time) (*Result, error) {
	b.mu.Lock()
	p, ok := b.payloads[id]
	b.mu.Unlock()
	if !ok {
		return nil, ErrUnknownPayload
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancelled {
		return p.resultLocked(), nil
	}

	rules, err := b.config.Rules(p.header.Number, p.header.Time)
	if err != nil {
		return nil, err
	}

	blockCtx := protocol.BlockContextFromHeader(p.header, b.getHash)

	rq := b.pool.Ready(baseFeeOrZero(p.header))

fillLoop:
	for {
		if time.Now().After(deadline) {
			break
		}
		best := rq.Peek()
		if best == nil {
			break
		}
		sender := rq.PeekSender()

		if _, already := p.included[best.Hash()]; already {
			rq.Pop()
			continue
		}
		if best.GetGas() > p.gp.Gas() {
			rq.Skip(sender)
			continue
		}
		if blobGas := best.GetBlobGas(); blobGas > p.blobGasRemaining {
			rq.Skip(sender)
			continue
		}

		evm := vm.NewEVM(blockCtx, vm.TxContext{}, p.sm, b.config, &rules, b.vmCfg)
		receipt, applyErr := b.tryApply(&rules, evm, p, best)
		switch {
		case applyErr == nil:
			rq.Pop()
			p.included[best.Hash()] = struct{}{}
			p.txs = append(p.txs, best)
			p.receipts = append(p.receipts, receipt)
			p.header.GasUsed += receipt.GasUsed
			if blobGas := best.GetBlobGas(); blobGas > 0 {
				p.blobGasRemaining -= blobGas
				*p.header.BlobGasUsed += blobGas
				p.appendBlobSidecar(best)
			}
			tip := types.EffectiveGasTip(best.GetFeeCap(), best.GetTipCap(), baseFeeOrZero(p.header))
			p.coinbaseValue.Add(p.coinbaseValue, new(uint256.Int).Mul(tip, uint256.NewInt(receipt.GasUsed)))
		case errors.Is(applyErr, types.ErrTxTypeNotActivated):
			rq.Skip(sender)
		default:
			rq.Pop()
			b.pool.DropExecuted(best.Hash())
		}

		if p.gp.Gas() == 0 {
			break fillLoop
		}
	}

	return p.resultLocked(), nil
}

// tryApply executes tx against a checkpoint of the payload's scratch
// state, committing on success and rolling back on any error so a failed
// attempt leaves no trace for the next candidate.
func (b *Builder) tryApply(rules *chain.Rules, evm *vm.EVM, p *payload, tx types.Transaction) (*types.Receipt, error) {
	cp := p.sm.Checkpoint()
	var firstLogIndex uint
	for _, r := range p.receipts {
		firstLogIndex += uint(len(r.Logs))
	}
	receipt, err := protocol.ApplyTransaction(b.config, rules, evm, p.gp, p.header, tx, len(p.txs), firstLogIndex)
	if err != nil {
		_ = p.sm.Revert(cp)
		return nil, err
	}
	if err := p.sm.Commit(cp); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (p *payload) appendBlobSidecar(tx types.Transaction) {
	if p.blobs == nil {
		p.blobs = &BlobBundle{}
	}
	// execore's transaction codec carries only blob versioned hashes, not
	// the blobs/commitments/proofs sidecar itself (that travels out of
	// band per EIP-4844's network wrapper), so the bundle records a slot
	// per hash without payload bytes.
	for range tx.GetBlobHashes() {
		p.blobs.Blobs = append(p.blobs.Blobs, nil)
		p.blobs.Commitments = append(p.blobs.Commitments, nil)
		p.blobs.Proofs = append(p.blobs.Proofs, nil)
	}
}

func (p *payload) resultLocked() *Result {
	header := *p.header
	if root, err := p.sm.GetStateRoot(); err == nil {
		header.StateRoot = root
	}
	block := types.NewBlock(&header, p.txs, p.receipts)
	return &Result{
		Block:    block,
		Receipts: p.receipts,
		Value:    new(uint256.Int).Set(p.coinbaseValue),
		Blobs:    p.blobs,
	}
}

func baseFeeOrZero(header *types.Header) *uint256.Int {
	if header.BaseFee != nil {
		return header.BaseFee
	}
	return new(uint256.Int)
}
