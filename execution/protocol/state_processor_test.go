// Copyright 2024 The execore Authors
// This file is part of execore.

package protocol

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

func testConfig(t *testing.T) *chain.Config {
	t.Helper()
	cfg, err := chain.NewConfig(big.NewInt(1337), "protocoltest", 1337, common.Hash{}, map[chain.Hardfork]chain.Activation{
		chain.Frontier: chain.AtBlock(0),
		chain.Berlin:   chain.AtBlock(0),
		chain.London:   chain.AtBlock(0),
	}, nil)
	require.NoError(t, err)
	return cfg
}

func signLegacyTx(t *testing.T, key *ecdsa.PrivateKey, signer types.Signer, tx *types.LegacyTx) types.Transaction {
	t.Helper()
	chainID := new(big.Int)
	if signer.ChainID() != nil {
		chainID = signer.ChainID().ToBig()
	}
	hash := tx.SigningHash(chainID)
	sig, err := crypto.Sign(hash[:], key)
	require.NoError(t, err)
	signed, err := tx.WithSignature(signer, sig)
	require.NoError(t, err)
	return signed
}

func newTestEVM(t *testing.T, cfg *chain.Config, sm state.StateManager, header *types.Header) (*vm.EVM, chain.Rules) {
	t.Helper()
	rules, err := cfg.Rules(header.Number, header.Time)
	require.NoError(t, err)
	evm := NewEVMForHeader(header, func(uint64) common.Hash { return common.Hash{} }, sm, cfg, &rules, vm.Config{})
	return evm, rules
}

func TestApplyTransactionChargesGasAndPaysCoinbase(t *testing.T) {
	cfg := testConfig(t)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0x00000000000000000000000000000000001234")
	coinbase := common.HexToAddress("0x00000000000000000000000000000000009999")

	sm := state.NewMemoryState()
	acct := state.NewEmptyAccount()
	acct.Balance = *uint256.NewInt(1_000_000_000_000_000)
	require.NoError(t, sm.PutAccount(sender, &acct))

	header := &types.Header{
		Number:     1,
		GasLimit:   30_000_000,
		Coinbase:   coinbase,
		Difficulty: new(uint256.Int),
	}
	evm, rules := newTestEVM(t, cfg, sm, header)
	require.True(t, rules.IsLondon, "testConfig activates London at block 0; the header carries no base fee")

	value := uint256.NewInt(1000)
	tx := signLegacyTx(t, key, signer, types.NewLegacyTx(0, &to, value, 21000, uint256.NewInt(2), nil))

	gp := GasPool(0)
	gp.AddGas(header.GasLimit)

	receipt, err := ApplyTransaction(cfg, &rules, evm, &gp, header, tx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.Equal(t, uint64(21000), receipt.GasUsed)

	recipient, err := sm.GetAccount(to)
	require.NoError(t, err)
	require.Equal(t, value, &recipient.Balance)

	coinbaseAcct, err := sm.GetAccount(coinbase)
	require.NoError(t, err)
	require.True(t, coinbaseAcct.Balance.Sign() > 0, "coinbase should have been paid gas*price")
	require.Equal(t, uint256.NewInt(21000*2), &coinbaseAcct.Balance)
}

func TestApplyTransactionRejectsInsufficientBalance(t *testing.T) {
	cfg := testConfig(t)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0x00000000000000000000000000000000001234")

	sm := state.NewMemoryState()
	acct := state.NewEmptyAccount()
	acct.Balance = *uint256.NewInt(100)
	require.NoError(t, sm.PutAccount(sender, &acct))

	header := &types.Header{Number: 1, GasLimit: 30_000_000, Difficulty: new(uint256.Int)}
	evm, rules := newTestEVM(t, cfg, sm, header)

	tx := signLegacyTx(t, key, signer, types.NewLegacyTx(0, &to, uint256.NewInt(0), 21000, uint256.NewInt(2), nil))

	gp := GasPool(0)
	gp.AddGas(header.GasLimit)

	_, err = ApplyTransaction(cfg, &rules, evm, &gp, header, tx, 0, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyTransactionRejectsNonceTooLow(t *testing.T) {
	cfg := testConfig(t)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0x00000000000000000000000000000000001234")

	sm := state.NewMemoryState()
	acct := state.NewEmptyAccount()
	acct.Balance = *uint256.NewInt(1_000_000_000_000_000)
	acct.Nonce = 5
	require.NoError(t, sm.PutAccount(sender, &acct))

	header := &types.Header{Number: 1, GasLimit: 30_000_000, Difficulty: new(uint256.Int)}
	evm, rules := newTestEVM(t, cfg, sm, header)

	tx := signLegacyTx(t, key, signer, types.NewLegacyTx(0, &to, uint256.NewInt(0), 21000, uint256.NewInt(2), nil))

	gp := GasPool(0)
	gp.AddGas(header.GasLimit)

	_, err = ApplyTransaction(cfg, &rules, evm, &gp, header, tx, 0, 0)
	require.ErrorIs(t, err, ErrNonceTooLow)
}

func TestApplyTransactionLogsAreScopedPerTransaction(t *testing.T) {
	cfg := testConfig(t)
	signer := types.MakeSigner(cfg, 0, 0)

	key1, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	sender1 := crypto.PubkeyToAddress(key1.PublicKey)
	key2, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	sender2 := crypto.PubkeyToAddress(key2.PublicKey)
	to := common.HexToAddress("0x00000000000000000000000000000000001234")

	sm := state.NewMemoryState()
	for _, addr := range []common.Address{sender1, sender2} {
		acct := state.NewEmptyAccount()
		acct.Balance = *uint256.NewInt(1_000_000_000_000_000)
		require.NoError(t, sm.PutAccount(addr, &acct))
	}

	header := &types.Header{Number: 1, GasLimit: 30_000_000, Difficulty: new(uint256.Int)}
	evm, rules := newTestEVM(t, cfg, sm, header)

	gp := GasPool(0)
	gp.AddGas(header.GasLimit)

	tx1 := signLegacyTx(t, key1, signer, types.NewLegacyTx(0, &to, uint256.NewInt(1), 21000, uint256.NewInt(2), nil))
	receipt1, err := ApplyTransaction(cfg, &rules, evm, &gp, header, tx1, 0, 0)
	require.NoError(t, err)

	tx2 := signLegacyTx(t, key2, signer, types.NewLegacyTx(0, &to, uint256.NewInt(1), 21000, uint256.NewInt(2), nil))
	receipt2, err := ApplyTransaction(cfg, &rules, evm, &gp, header, tx2, 1, uint(len(receipt1.Logs)))
	require.NoError(t, err)

	// Neither transaction here emits logs (plain value transfers), but the
	// second receipt must never inherit entries from the first even when
	// the same evm/journal is reused across both calls.
	require.Empty(t, receipt1.Logs)
	require.Empty(t, receipt2.Logs)
}
