// Copyright 2024 The execore Authors
// This file is part of execore.

// Package protocol implements the state-transition layer that sits above
// the EVM's own message dispatch: the per-transaction bookkeeping
// (intrinsic gas, buy-gas, nonce/balance prechecks, gas-refund settlement,
// coinbase priority-fee payment) that turns an execution/vm.EVM call into
// a complete Ethereum transaction application, plus the receipts and
// blocks it produces. Grounded on erigon's execution/protocol package,
// rewritten against this module's own Message/StateManager/Journal seam
// rather than erigon's IntraBlockState.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
)

var (
	ErrNonceTooLow       = errors.New("protocol: nonce too low")
	ErrNonceTooHigh      = errors.New("protocol: nonce too high")
	ErrNonceMax          = errors.New("protocol: nonce has max value")
	ErrSenderNoEOA       = errors.New("protocol: sender is not an EOA")
	ErrInsufficientFunds = errors.New("protocol: insufficient funds for gas * price + value")
	ErrGasLimitReached   = errors.New("protocol: gas limit reached")
	ErrIntrinsicGas      = errors.New("protocol: intrinsic gas too low")
	ErrFeeCapTooLow      = errors.New("protocol: max fee per gas less than block base fee")
	ErrTipAboveFeeCap    = errors.New("protocol: max priority fee per gas higher than max fee per gas")
	ErrGasUintOverflow   = errors.New("protocol: gas uint64 overflow")
)

// RefundQuotient is the pre-London SSTORE refund cap divisor: at most
// gasUsed/2 of the journal's accumulated refund is honored.
const RefundQuotient = 2

// RefundQuotientEIP3529 is the post-London (EIP-3529) refund cap divisor:
// at most gasUsed/5.
const RefundQuotientEIP3529 = 5

// GasPool tracks the gas still available within one block, shared across
// every transaction applied to it so the sum of their gas limits never
// exceeds the header's gas_limit.
type GasPool uint64

// AddGas returns unspent gas (or the block's initial allowance) to the pool.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > math.MaxUint64-amount {
		panic("protocol: gas pool pushed above uint64")
	}
	*gp += GasPool(amount)
	return gp
}

// SubGas reserves amount from the pool for one transaction's gas limit.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*gp -= GasPool(amount)
	return nil
}

// Gas returns the gas remaining in the pool.
func (gp *GasPool) Gas() uint64 { return uint64(*gp) }

func (gp *GasPool) String() string { return fmt.Sprintf("%d", uint64(*gp)) }

// ExecutionResult is the outcome of applying one message: how much gas it
// actually consumed, what it returned, and (for a successful contract
// creation) the address it deployed to. Err is non-nil only for a
// consensus-level execution failure (OOG, invalid opcode, REVERT); a
// precheck failure never reaches this far, since ApplyMessage returns
// that as a plain error without producing an ExecutionResult at all.
type ExecutionResult struct {
	UsedGas         uint64
	RefundedGas     uint64
	Err             error
	ReturnData      []byte
	ContractAddress *common.Address
}

// Failed reports whether the message's execution halted abnormally
// (exception or revert), as opposed to running to completion.
func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Return returns the data the call returned, or nil if it failed outright.
func (r *ExecutionResult) Return() []byte {
	if r.Err != nil {
		return nil
	}
	return common.CopyBytes(r.ReturnData)
}

// Revert returns the REVERT reason data, or nil if execution did not
// revert via the REVERT opcode.
func (r *ExecutionResult) Revert() []byte {
	if !errors.Is(r.Err, vm.ErrExecutionReverted) {
		return nil
	}
	return common.CopyBytes(r.ReturnData)
}

// StateTransition carries the bookkeeping for applying exactly one
// message: the EVM it executes against, the message itself, and the
// running gas counters preCheck/buyGas/refundGas mutate in sequence.
type StateTransition struct {
	evm   *vm.EVM
	sm    state.StateManager
	msg   *types.Message
	gp    *GasPool
	rules *chain.Rules

	gasRemaining uint64
	initialGas   uint64
}

// NewStateTransition builds a StateTransition for one message, executed
// against evm and metered against the shared block gas pool gp.
func NewStateTransition(evm *vm.EVM, msg *types.Message, gp *GasPool) *StateTransition {
	return &StateTransition{
		evm:   evm,
		sm:    evm.StateManager(),
		msg:   msg,
		gp:    gp,
		rules: evm.ChainRules(),
	}
}

// ApplyMessage is the transaction-application entry point spec.md's EVM
// core layers on top of its own Call/Create dispatch: nonce and balance
// prechecks, buy-gas, intrinsic gas, dispatch, refund settlement, and
// coinbase priority-fee payment.
func ApplyMessage(evm *vm.EVM, msg *types.Message, gp *GasPool) (*ExecutionResult, error) {
	return NewStateTransition(evm, msg, gp).execute()
}

func accountOf(a *state.Account) (nonce uint64, codeHash, root common.Hash, balance uint256.Int) {
	if a == nil {
		return 0, state.EmptyCodeHash, common.Hash{}, uint256.Int{}
	}
	return a.Nonce, a.CodeHash, a.StorageRoot, a.Balance
}

// addBalance credits delta to addr's account, preserving its nonce, code
// hash, and storage root, and journaling the mutation through sm so a
// reverted checkpoint undoes it.
func addBalance(j *state.Journal, sm state.StateManager, addr common.Address, delta *uint256.Int) error {
	acct, err := sm.GetAccount(addr)
	if err != nil {
		return err
	}
	nonce, codeHash, root, balance := accountOf(acct)
	next := &state.Account{Nonce: nonce, CodeHash: codeHash, StorageRoot: root}
	next.Balance.Add(&balance, delta)
	return j.PutAccount(sm, addr, next)
}

// subBalance is addBalance's mirror, used by buyGas where the deduction
// has already been balance-checked, and by the EIP-7623 floor settlement,
// which takes back part of the gas refund the sender was just credited.
func subBalance(j *state.Journal, sm state.StateManager, addr common.Address, delta *uint256.Int) error {
	acct, err := sm.GetAccount(addr)
	if err != nil {
		return err
	}
	nonce, codeHash, root, balance := accountOf(acct)
	next := &state.Account{Nonce: nonce, CodeHash: codeHash, StorageRoot: root}
	next.Balance.Sub(&balance, delta)
	return j.PutAccount(sm, addr, next)
}

// buyGas deducts the message's worst-case gas cost from the sender's
// balance upfront (at FeeCap once London is active, so a base-fee rise
// never leaves the sender unable to cover what it already promised), then
// grants gasRemaining at the message's own gas limit. The price actually
// settled at the end of execution is msg.GasPrice(), which AsMessage
// already resolved to min(feeCap, baseFee+tipCap) for dynamic-fee and
// blob transactions.
func (st *StateTransition) buyGas() error {
	gasVal, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(st.msg.Gas()), st.msg.GasPrice())
	if overflow {
		return ErrGasUintOverflow
	}

	balanceCheck := new(uint256.Int).Set(gasVal)
	if st.rules.IsLondon {
		feeCapCost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(st.msg.Gas()), st.msg.FeeCap())
		if overflow {
			return ErrGasUintOverflow
		}
		balanceCheck = feeCapCost
	}
	if balanceCheck, overflow = new(uint256.Int).AddOverflow(balanceCheck, st.msg.Value()); overflow {
		return ErrGasUintOverflow
	}
	if nBlobs := len(st.msg.BlobHashes()); nBlobs > 0 {
		blobCost, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(nBlobs)*types.GasPerBlob), st.msg.BlobGasFeeCap())
		if overflow {
			return ErrGasUintOverflow
		}
		if balanceCheck, overflow = new(uint256.Int).AddOverflow(balanceCheck, blobCost); overflow {
			return ErrGasUintOverflow
		}
	}

	acct, err := st.sm.GetAccount(st.msg.From())
	if err != nil {
		return err
	}
	_, _, _, have := accountOf(acct)
	if have.Lt(balanceCheck) {
		return fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, st.msg.From(), have.String(), balanceCheck.String())
	}

	if err := st.gp.SubGas(st.msg.Gas()); err != nil {
		return err
	}
	st.gasRemaining += st.msg.Gas()
	st.initialGas = st.msg.Gas()

	return subBalance(st.evm.Journal(), st.sm, st.msg.From(), gasVal)
}

// preCheck validates everything about the message that must hold before
// any gas is spent: nonce, EIP-3607 sender-code rejection, EIP-1559 fee
// cap ordering and base-fee coverage, then delegates to buyGas.
func (st *StateTransition) preCheck() error {
	if st.msg.CheckNonce() {
		acct, err := st.sm.GetAccount(st.msg.From())
		if err != nil {
			return err
		}
		stateNonce, codeHash, _, _ := accountOf(acct)
		if st.rules.IsEIP3607 && acct != nil && codeHash != state.EmptyCodeHash {
			return fmt.Errorf("%w: address %s", ErrSenderNoEOA, st.msg.From())
		}
		switch {
		case stateNonce < st.msg.Nonce():
			return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, st.msg.From(), st.msg.Nonce(), stateNonce)
		case stateNonce > st.msg.Nonce():
			return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, st.msg.From(), st.msg.Nonce(), stateNonce)
		case stateNonce+1 < stateNonce:
			return fmt.Errorf("%w: address %s, nonce: %d", ErrNonceMax, st.msg.From(), stateNonce)
		}
	}

	if st.rules.IsLondon {
		if st.msg.FeeCap().Lt(st.msg.TipCap()) {
			return fmt.Errorf("%w: address %s, maxPriorityFeePerGas: %s, maxFeePerGas: %s",
				ErrTipAboveFeeCap, st.msg.From(), st.msg.TipCap(), st.msg.FeeCap())
		}
		if !st.msg.IsFree() && st.msg.FeeCap().Lt(st.evm.Context.BaseFee) {
			return fmt.Errorf("%w: address %s, maxFeePerGas: %s baseFee: %s",
				ErrFeeCapTooLow, st.msg.From(), st.msg.FeeCap(), st.evm.Context.BaseFee)
		}
	}

	return st.buyGas()
}

// execute runs preCheck, intrinsic gas, dispatch, refund settlement and
// coinbase payment in sequence: the per-message lifecycle layered above
// the EVM's own CALL/CREATE handling.
func (st *StateTransition) execute() (*ExecutionResult, error) {
	if err := st.preCheck(); err != nil {
		return nil, err
	}

	isContractCreation := st.msg.To() == nil
	intrinsicGas, floorGas, err := types.IntrinsicGas(st.msg.Data(), st.msg.AccessList(), isContractCreation, st.rules)
	if err != nil {
		return nil, err
	}
	if want := max(intrinsicGas, floorGas); st.gasRemaining < want {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, st.gasRemaining, want)
	}
	st.gasRemaining -= intrinsicGas

	// EIP-3860 max-initcode-size is enforced by evm.Create itself, which
	// returns vm.ErrMaxInitCodeSizeExceeded as vmErr below.

	sender := vm.AccountRef(st.msg.From())
	var (
		ret             []byte
		vmErr           error
		leftOverGas     uint64
		contractAddress *common.Address
	)
	if isContractCreation {
		var created common.Address
		ret, created, leftOverGas, vmErr = st.evm.Create(sender, st.msg.Data(), st.gasRemaining, st.msg.Value())
		if vmErr == nil {
			contractAddress = &created
		}
	} else {
		ret, leftOverGas, vmErr = st.evm.Call(sender, *st.msg.To(), st.msg.Data(), st.gasRemaining, st.msg.Value(), false)
	}
	st.gasRemaining = leftOverGas

	refund := st.refundGas()

	// EIP-7623: calldata-heavy transactions may execute for less gas than
	// their floor cost once refunds are applied; the sender still pays the
	// floor. refundGas has already returned gasRemaining to the sender and
	// to the block's gas pool, so take the shortfall back out of both.
	if floorGas > st.gasUsed() {
		shortfall := floorGas - st.gasUsed()
		st.gasRemaining -= shortfall
		if err := st.gp.SubGas(shortfall); err != nil {
			return nil, err
		}
		if err := subBalance(st.evm.Journal(), st.sm, st.msg.From(), new(uint256.Int).Mul(uint256.NewInt(shortfall), st.msg.GasPrice())); err != nil {
			return nil, err
		}
	}

	effectiveTip := st.msg.GasPrice()
	if st.rules.IsLondon {
		effectiveTip = types.EffectiveGasTip(st.msg.FeeCap(), st.msg.TipCap(), st.evm.Context.BaseFee)
	}
	fee, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(st.gasUsed()), effectiveTip)
	if overflow {
		return nil, ErrGasUintOverflow
	}
	if !fee.IsZero() {
		if err := addBalance(st.evm.Journal(), st.sm, st.evm.Context.Coinbase, fee); err != nil {
			return nil, err
		}
	}

	return &ExecutionResult{
		UsedGas:         st.gasUsed(),
		RefundedGas:     refund,
		Err:             vmErr,
		ReturnData:      ret,
		ContractAddress: contractAddress,
	}, nil
}

// gasUsed is how much of the message's gas limit was actually consumed:
// initialGas minus whatever remains after execution and refund.
func (st *StateTransition) gasUsed() uint64 {
	return st.initialGas - st.gasRemaining
}

// refundGas applies the EIP-3529 refund cap (gasUsed/5 post-London,
// gasUsed/2 before), credits that refund to gasRemaining, pays the unused
// gas back to the sender at the message's effective price, and returns
// the leftover gas to the block's shared pool.
func (st *StateTransition) refundGas() uint64 {
	refundQuotient := uint64(RefundQuotient)
	if st.rules.IsLondon {
		refundQuotient = RefundQuotientEIP3529
	}
	refund := st.gasUsed() / refundQuotient
	if available := st.evm.Journal().Refund(); refund > available {
		refund = available
	}
	st.gasRemaining += refund

	remaining, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(st.gasRemaining), st.msg.GasPrice())
	if !overflow {
		_ = addBalance(st.evm.Journal(), st.sm, st.msg.From(), remaining)
	}

	st.gp.AddGas(st.gasRemaining)
	return refund
}
