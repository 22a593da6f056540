// Copyright 2024 The execore Authors
// This file is part of execore.

package protocol

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
)

// BlockContextFromHeader builds the per-block values opcodes and
// precompiles read (COINBASE, NUMBER, TIMESTAMP, DIFFICULTY/PREVRANDAO,
// BASEFEE) out of a block header, the way erigon's NewEVMBlockContext
// derives an evmtypes.BlockContext from the header it is about to process.
func BlockContextFromHeader(header *types.Header, getHash func(blockNumber uint64) common.Hash) vm.BlockContext {
	difficulty := header.Difficulty
	if difficulty == nil {
		difficulty = new(uint256.Int)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(uint256.Int)
	}
	return vm.BlockContext{
		Coinbase:    header.Coinbase,
		BlockNumber: header.Number,
		Time:        header.Time,
		Difficulty:  difficulty,
		GasLimit:    header.GasLimit,
		BaseFee:     baseFee,
		GetHash:     getHash,
	}
}

// NewEVMForHeader builds an EVM whose BlockContext is the one header
// implies. The EVM's journal (refund counter, warm sets, logs) and its
// transient storage live as long as the EVM and are not reset between
// messages, so each transaction of the block gets an EVM of its own.
func NewEVMForHeader(header *types.Header, getHash func(blockNumber uint64) common.Hash, sm state.StateManager, config *chain.Config, rules *chain.Rules, cfg vm.Config) *vm.EVM {
	blockContext := BlockContextFromHeader(header, getHash)
	return vm.NewEVM(blockContext, vm.TxContext{}, sm, config, rules, cfg)
}

// ApplyTransaction applies one transaction against evm's already-built
// block context, debiting gp for its gas limit, and returns the receipt
// it produced. header's number and time select the signer, its base fee
// prices the message, and its GasUsed is the cumulative gas before this
// transaction; header, txIndex and firstLogIndex also stamp the receipt's
// and its logs' block-position fields via Receipt.Fill.
//
// Grounded on erigon's execution/protocol.ApplyTransaction, rewritten
// against this module's StateTransition/Receipt instead of erigon's
// IntraBlockState-driven evmtypes.ExecutionResult.
func ApplyTransaction(config *chain.Config, rules *chain.Rules, evm *vm.EVM, gp *GasPool, header *types.Header, tx types.Transaction, txIndex int, firstLogIndex uint) (*types.Receipt, error) {
	signer := types.MakeSigner(config, header.Number, header.Time)

	var baseFee *big.Int
	if header.BaseFee != nil {
		baseFee = header.BaseFee.ToBig()
	}
	msg, err := tx.AsMessage(signer, baseFee, rules)
	if err != nil {
		return nil, err
	}

	evm.TxContext = vm.TxContext{
		Origin:     msg.From(),
		GasPrice:   msg.GasPrice(),
		BlobHashes: msg.BlobHashes(),
	}

	logStart := len(evm.Journal().Logs())
	result, err := ApplyMessage(evm, msg, gp)
	if err != nil {
		return nil, err
	}

	cumulativeGasUsed := header.GasUsed + result.UsedGas

	status := types.ReceiptStatusSuccessful
	if result.Failed() {
		status = types.ReceiptStatusFailed
	}

	// evm's journal keeps every log appended since the EVM was built, so
	// only the entries appended since this call started belong to this
	// transaction's receipt.
	logs := evm.Journal().Logs()[logStart:]
	receiptLogs := make([]*types.Log, len(logs))
	for i, l := range logs {
		receiptLogs[i] = &types.Log{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}

	receipt := types.NewReceipt(tx.Type(), status, cumulativeGasUsed, result.UsedGas, result.ContractAddress, receiptLogs)
	receipt.TxHash = tx.Hash()
	if blobHashes := tx.GetBlobHashes(); len(blobHashes) > 0 {
		receipt.BlobGasUsed = uint64(len(blobHashes)) * types.GasPerBlob
	}
	receipt.Fill(header.Hash(), header.Number, uint(txIndex), firstLogIndex)

	return receipt, nil
}
