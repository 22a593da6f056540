// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// Config are the interpreter's run-time knobs, grounded on
// core/vm/interpreter.go's Config (trimmed of tracer/JumpDest cache
// fields this module does not carry).
type Config struct {
	NoRecursion       bool
	NoBaseFee         bool
	MaxInitCodeSizeOverride int // 0 means "use EIP-3860 default (2 * MaxCodeSize)"
	RestoreState      bool
}

const (
	maxCodeSize     = 24576
	maxInitCodeSize = 2 * maxCodeSize
)

// EVM is one transaction's (or System-call's) execution environment:
// the journaled state it mutates, the block/tx context opcodes read,
// and the per-hardfork opcode/precompile tables. One EVM instance is
// used for exactly one top-level message; the pending-block assembler
// constructs a fresh EVM per transaction.
//
// Grounded on core/vm/evm.go EVM struct, trimmed of its
// tracer hooks and IntraBlockState coupling in favor of this module's
// StateManager/Journal/TransientStorage seam.
type EVM struct {
	Context   BlockContext
	TxContext TxContext

	chainConfig *chain.Config
	chainRules  *chain.Rules

	state     state.StateManager
	journal   *state.Journal
	transient *state.TransientStorage

	precompiles map[common.Address]PrecompiledContract

	config Config
	jt     *JumpTable

	depth int
	abort atomic.Bool

	origStorage map[[52]byte]common.Hash
}

// NewEVM constructs an EVM bound to one state manager for the
// duration of one top-level call.
func NewEVM(blockCtx BlockContext, txCtx TxContext, sm state.StateManager, chainConfig *chain.Config, rules *chain.Rules, cfg Config) *EVM {
	evm := &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		chainConfig: chainConfig,
		chainRules:  rules,
		state:       sm,
		journal:     state.NewJournal(),
		transient:   state.NewTransientStorage(),
		config:      cfg,
		jt:          newJumpTable(rules),
		origStorage: make(map[[52]byte]common.Hash),
	}
	evm.precompiles = activePrecompiles(rules)
	return evm
}

func (evm *EVM) jumpTable() *JumpTable { return evm.jt }

// Cancel requests that any in-flight Run loop abort at its next
// opcode boundary. Nothing in this module calls it; the block builder
// checks its deadline only between transactions.
func (evm *EVM) Cancel()         { evm.abort.Store(true) }
func (evm *EVM) Cancelled() bool { return evm.abort.Load() }

func (evm *EVM) ChainConfig() *chain.Config       { return evm.chainConfig }
func (evm *EVM) ChainRules() *chain.Rules         { return evm.chainRules }
func (evm *EVM) Journal() *state.Journal          { return evm.journal }
func (evm *EVM) StateManager() state.StateManager { return evm.state }

func (evm *EVM) precompile(addr common.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

// originalStorage returns the value a storage slot held at the start
// of this EVM's (i.e. this top-level transaction's) lifetime, caching
// the first read the way stateObject.originStorage does,
// so gasSstore's EIP-2200 dirty/clean comparison is against a stable
// baseline rather than the latest mutation.
func (evm *EVM) originalStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	var k [52]byte
	copy(k[:20], addr.Bytes())
	copy(k[20:], key.Bytes())
	if v, ok := evm.origStorage[k]; ok {
		return v, nil
	}
	v, err := evm.state.GetContractStorage(addr, key)
	if err != nil {
		return common.Hash{}, err
	}
	evm.origStorage[k] = v
	return v, nil
}

func (evm *EVM) selfDestruct(addr, beneficiary common.Address) error {
	acct, err := evm.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		return nil
	}
	if evm.chainRules.IsEIP3651 {
		evm.journal.AddWarmAddress(beneficiary)
	}
	if !acct.Balance.IsZero() {
		ben, err := evm.state.GetAccount(beneficiary)
		if err != nil {
			return err
		}
		if ben == nil {
			ben = &state.Account{}
		}
		newBen := *ben
		newBen.Balance.Add(&ben.Balance, &acct.Balance)
		if err := evm.journal.PutAccount(evm.state, beneficiary, &newBen); err != nil {
			return err
		}
	}
	if evm.chainRules.IsEIP6780 && !evm.journal.WasCreated(addr) {
		zero := *acct
		zero.Balance.Clear()
		return evm.journal.PutAccount(evm.state, addr, &zero)
	}
	evm.journal.MarkSelfDestruct(addr)
	return evm.journal.DeleteAccount(evm.state, addr)
}

// Call executes addr's code (or a precompile) with input, transferring
// value from caller. This is the CALL-family entry point; CALLCODE/
// DELEGATECALL/STATICCALL below share its core via the typ parameter.
func (evm *EVM) Call(caller ContractRef, addr common.Address, input []byte, gas uint64, value *uint256.Int, bailout bool) ([]byte, uint64, error) {
	return evm.call(CALL, caller, addr, input, gas, value, false)
}

func (evm *EVM) CallCode(caller ContractRef, addr common.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	return evm.call(CALLCODE, caller, addr, input, gas, value, false)
}

func (evm *EVM) DelegateCall(caller ContractRef, addr common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	return evm.call(DELEGATECALL, caller, addr, input, gas, new(uint256.Int), false)
}

func (evm *EVM) StaticCall(caller ContractRef, addr common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	return evm.call(STATICCALL, caller, addr, input, gas, new(uint256.Int), false)
}

func (evm *EVM) call(typ OpCode, caller ContractRef, addr common.Address, input []byte, gas uint64, value *uint256.Int, staticOverride bool) (ret []byte, leftOverGas uint64, err error) {
	if evm.abort.Load() {
		return nil, gas, nil
	}
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	if evm.config.NoRecursion && evm.depth > 0 {
		return nil, gas, nil
	}
	if typ == CALL && !value.IsZero() {
		callerAcct, aerr := evm.state.GetAccount(caller.Address())
		if aerr != nil {
			return nil, gas, aerr
		}
		if callerAcct == nil || callerAcct.Balance.Lt(value) {
			return nil, gas, ErrInsufficientBalance
		}
	}

	checkpoint := evm.journal.Checkpoint()
	transientCheckpoint := evm.transient.Checkpoint()

	p, isPrecompile := evm.precompile(addr)
	var code []byte
	if !isPrecompile {
		code, err = evm.state.GetContractCode(addr)
		if err != nil {
			return nil, gas, err
		}
	}

	if typ == CALL {
		acct, err := evm.state.GetAccount(addr)
		if err != nil {
			return nil, gas, err
		}
		if acct == nil {
			if !isPrecompile && evm.chainRules.IsSpuriousDragon && value.IsZero() {
				return nil, gas, nil
			}
			empty := state.NewEmptyAccount()
			if err := evm.journal.PutAccount(evm.state, addr, &empty); err != nil {
				return nil, gas, err
			}
		}
		if !value.IsZero() {
			if err := evm.transferValue(caller.Address(), addr, value); err != nil {
				return nil, gas, err
			}
		}
	}

	if isPrecompile {
		ret, gas, err = RunPrecompiledContract(p, input, gas, PrecompileContext{Rules: evm.chainRules, Block: evm.Context})
	} else if len(code) == 0 {
		ret, err = nil, nil
	} else {
		readOnly := typ == STATICCALL || staticOverride
		var contractAddr common.Address
		var contractValue *uint256.Int
		switch typ {
		case CALLCODE, DELEGATECALL:
			contractAddr = caller.Address()
			contractValue = value
		default:
			contractAddr = addr
			contractValue = value
		}
		codeHash, cherr := evm.codeHashOf(addr, code)
		if cherr != nil {
			return nil, gas, cherr
		}
		contract := NewContract(caller.Address(), contractAddr, contractValue, gas, code, codeHash)
		if typ == DELEGATECALL {
			contract.IsDelegateCall = true
		}
		contract.IsStatic = readOnly
		contract.CallDepth = evm.depth

		evm.depth++
		interp := NewInterpreter(evm, readOnly)
		ret, err = interp.Run(contract, input)
		evm.depth--
		gas = contract.Gas
	}

	if err != nil || evm.config.RestoreState {
		if rerr := evm.journal.Revert(checkpoint, evm.state); rerr != nil && err == nil {
			err = rerr
		}
		if terr := evm.transient.Revert(transientCheckpoint); terr != nil && err == nil {
			err = terr
		}
		if err != ErrExecutionReverted {
			gas = 0
		}
	} else {
		if cerr := evm.journal.Commit(checkpoint); cerr != nil {
			return ret, gas, cerr
		}
		if cerr := evm.transient.Commit(transientCheckpoint); cerr != nil {
			return ret, gas, cerr
		}
	}
	return ret, gas, err
}

func (evm *EVM) transferValue(from, to common.Address, value *uint256.Int) error {
	fromAcct, err := evm.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcct == nil || fromAcct.Balance.Lt(value) {
		return ErrInsufficientBalance
	}
	toAcct, err := evm.state.GetAccount(to)
	if err != nil {
		return err
	}
	if toAcct == nil {
		empty := state.NewEmptyAccount()
		toAcct = &empty
	}
	newFrom := *fromAcct
	newFrom.Balance.Sub(&fromAcct.Balance, value)
	newTo := *toAcct
	newTo.Balance.Add(&toAcct.Balance, value)
	if err := evm.journal.PutAccount(evm.state, from, &newFrom); err != nil {
		return err
	}
	return evm.journal.PutAccount(evm.state, to, &newTo)
}

func (evm *EVM) codeHashOf(addr common.Address, code []byte) (common.Hash, error) {
	acct, err := evm.state.GetAccount(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if acct != nil {
		return acct.CodeHash, nil
	}
	return common.BytesToHash(nil), nil
}

// Create deploys code as a new contract owned by caller.
func (evm *EVM) Create(caller ContractRef, code []byte, gas uint64, value *uint256.Int) ([]byte, common.Address, uint64, error) {
	nonce, err := evm.bumpNonce(caller.Address())
	if err != nil {
		return nil, common.Address{}, gas, err
	}
	contractAddr := types.CreateAddress(caller.Address(), nonce-1)
	return evm.create(caller, code, gas, value, contractAddr)
}

// Create2 deploys code at a deterministically salted address, per
// EIP-1014.
func (evm *EVM) Create2(caller ContractRef, code []byte, gas uint64, value, salt *uint256.Int) ([]byte, common.Address, uint64, error) {
	if _, err := evm.bumpNonce(caller.Address()); err != nil {
		return nil, common.Address{}, gas, err
	}
	initCodeHash := keccak256(code)
	contractAddr := types.CreateAddress2(caller.Address(), salt.Bytes32(), initCodeHash)
	return evm.create(caller, code, gas, value, contractAddr)
}

func (evm *EVM) bumpNonce(addr common.Address) (uint64, error) {
	acct, err := evm.state.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		empty := state.NewEmptyAccount()
		acct = &empty
	}
	next := *acct
	next.Nonce++
	if err := evm.journal.PutAccount(evm.state, addr, &next); err != nil {
		return 0, err
	}
	return next.Nonce, nil
}

func (evm *EVM) create(caller ContractRef, code []byte, gas uint64, value *uint256.Int, contractAddr common.Address) (ret []byte, createdAddr common.Address, leftOverGas uint64, err error) {
	if evm.depth > maxCallDepth {
		return nil, common.Address{}, gas, ErrDepth
	}
	limit := maxInitCodeSize
	if evm.config.MaxInitCodeSizeOverride > 0 {
		limit = evm.config.MaxInitCodeSizeOverride
	}
	if evm.chainRules.IsEIP3860 && len(code) > limit {
		return nil, common.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}

	existing, err := evm.state.GetAccount(contractAddr)
	if err != nil {
		return nil, common.Address{}, gas, err
	}
	if existing != nil && (existing.Nonce != 0 || existing.CodeHash != state.EmptyCodeHash) {
		return nil, common.Address{}, gas, ErrContractAddressCollision
	}

	checkpoint := evm.journal.Checkpoint()
	transientCheckpoint := evm.transient.Checkpoint()
	evm.journal.MarkCreated(contractAddr)
	evm.journal.AddWarmAddress(contractAddr)

	nonce := uint64(0)
	if evm.chainRules.IsSpuriousDragon {
		nonce = 1
	}
	if err := evm.journal.PutAccount(evm.state, contractAddr, &state.Account{Nonce: nonce, CodeHash: state.EmptyCodeHash}); err != nil {
		return nil, common.Address{}, gas, err
	}
	// Freshly derived addresses cannot already hold storage except in the
	// address-reuse-after-selfdestruct case; clearing is a direct state
	// write rather than a journaled one since the account record itself
	// (journaled above) fully determines revert behavior for new accounts.
	if err := evm.state.ClearContractStorage(contractAddr); err != nil {
		return nil, common.Address{}, gas, err
	}
	if !value.IsZero() {
		if err := evm.transferValue(caller.Address(), contractAddr, value); err != nil {
			evm.journal.Revert(checkpoint, evm.state)
			return nil, common.Address{}, gas, err
		}
	}

	contract := NewContract(caller.Address(), contractAddr, value, gas, code, keccak256Hash(code))
	contract.CallDepth = evm.depth

	evm.depth++
	interp := NewInterpreter(evm, false)
	ret, err = interp.Run(contract, nil)
	evm.depth--
	leftOverGas = contract.Gas

	if err == nil {
		if hasEOFMagic(ret) {
			if !evm.chainRules.IsEIP3540 {
				err = ErrInvalidBytecodeResult
			} else if verr := validateEOFOpcodes(ret); verr != nil {
				err = verr
			} else if _, perr := parseEOFHeader(ret); perr != nil {
				err = perr
			}
		} else if len(ret) > 0 && ret[0] == 0xEF && evm.chainRules.IsEIP3541 {
			err = ErrInvalidBytecodeResult
		}
	}
	if err == nil && evm.chainRules.IsSpuriousDragon && len(ret) > maxCodeSize {
		err = ErrMaxCodeSizeExceeded
	}
	if err == nil {
		depositCost := uint64(len(ret)) * GasContractByte
		if !contract.UseGas(depositCost) {
			if !evm.chainRules.IsHomestead {
				// Frontier: insufficient gas for code deposit is silently
				// accepted, leaving the account without code. EIP-2 (Homestead)
				// turned this into a hard failure instead.
			} else {
				err = ErrCodeStoreOutOfGas
			}
		} else {
			leftOverGas = contract.Gas
			if cerr := evm.journal.PutAccount(evm.state, contractAddr, &state.Account{Nonce: nonce, CodeHash: keccak256Hash(ret)}); cerr != nil {
				err = cerr
			} else if cerr := evm.state.PutContractCode(contractAddr, ret); cerr != nil {
				err = cerr
			}
		}
	}

	if err != nil && err != ErrExecutionReverted {
		if rerr := evm.journal.Revert(checkpoint, evm.state); rerr != nil {
			return nil, common.Address{}, 0, rerr
		}
		evm.transient.Revert(transientCheckpoint)
		leftOverGas = 0
		return nil, common.Address{}, leftOverGas, err
	}
	if err == ErrExecutionReverted {
		evm.journal.Revert(checkpoint, evm.state)
		evm.transient.Revert(transientCheckpoint)
		return ret, common.Address{}, leftOverGas, err
	}
	evm.journal.Commit(checkpoint)
	evm.transient.Commit(transientCheckpoint)
	return ret, contractAddr, leftOverGas, nil
}

func keccak256(data []byte) []byte {
	return crypto.Keccak256(data)
}

func keccak256Hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}
