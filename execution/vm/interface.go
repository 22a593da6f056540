// Copyright 2024 The execore Authors
// This file is part of execore.

package vm

import (
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/lib/common"
)

// ContractRef is anything that can appear as a call frame's caller:
// either an outer Contract or an account reference carrying only an
// address, grounded on core/vm/contract.go ContractRef.
type ContractRef interface {
	Address() common.Address
}

// AccountRef is the trivial ContractRef used for the outermost call,
// where the caller is an EOA with no code or gas of its own.
type AccountRef common.Address

func (ar AccountRef) Address() common.Address { return common.Address(ar) }

// BlockContext carries the per-block values opcodes and precompiles
// read (COINBASE, NUMBER, TIMESTAMP, BASEFEE, ...), split from
// TxContext the way evmtypes.BlockContext/TxContext
// split does, so the same BlockContext serves every tx in a block.
type BlockContext struct {
	Coinbase    common.Address
	BlockNumber uint64
	Time        uint64
	Difficulty  *uint256.Int // PREVRANDAO post-merge (EIP-4399)
	GasLimit    uint64
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int

	GetHash func(blockNumber uint64) common.Hash
}

// TxContext carries the per-transaction values (ORIGIN, GASPRICE, the
// EIP-4844 blob versioned hashes).
type TxContext struct {
	Origin     common.Address
	GasPrice   *uint256.Int
	BlobHashes []common.Hash
}

// PrecompileContext is the execution-context handle passed to
// precompiled contracts, breaking the EVM<->precompile back-reference
// cycle noted in design notes: a plain struct of the values
// a precompile might need instead of a pointer back into the EVM.
type PrecompileContext struct {
	Rules *chain.Rules
	Block BlockContext
}

// PrecompiledContract is a built-in contract implemented in host code,
// addressed at a fixed low address. RequiredGas must be cheap to call
// repeatedly (it is consulted before Run to decide the OutOfGas path).
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte, ctx PrecompileContext) ([]byte, error)
}

// StateReader is the subset of state.StateManager plus the in-process
// Journal/TransientStorage that the interpreter and EVM need, kept as
// an interface so tests can substitute a fake without a full
// state.StateManager implementation.
type StateReader interface {
	state.StateManager
}
