// Copyright 2024 The execore Authors
// This file is part of execore.

package builder

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/execution/vm"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/txpool"
)

func testLondonConfig(t *testing.T) *chain.Config {
	t.Helper()
	cfg, err := chain.NewConfig(big.NewInt(1337), "buildertest", 1337, common.Hash{}, map[chain.Hardfork]chain.Activation{
		chain.Frontier: chain.AtBlock(0),
		chain.Berlin:   chain.AtBlock(0),
		chain.London:   chain.AtBlock(0),
	}, nil)
	require.NoError(t, err)
	return cfg
}

func signLegacy(t *testing.T, key *ecdsa.PrivateKey, signer types.Signer, tx *types.LegacyTx) types.Transaction {
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

func noHashes(uint64) common.Hash { return common.Hash{} }

func TestBuilderFillsFromReadyQueue(t *testing.T) {
	cfg := testLondonConfig(t)
	rules, err := cfg.Rules(0, 0)
	require.NoError(t, err)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sm := state.NewMemoryState()
	acct := state.NewEmptyAccount()
	acct.Balance = *uint256.NewInt(1_000_000_000_000_000)
	require.NoError(t, sm.PutAccount(addr, &acct))

	metrics := txpool.NewMetrics(prometheus.NewRegistry())
	pool := txpool.New(txpool.DefaultConfig(), signer, &rules, sm, uint256.NewInt(1), metrics)

	tx := signLegacy(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(1_000_000_000), nil))
	require.NoError(t, pool.Add(tx))

	parent := &types.Header{
		Number:     0,
		GasLimit:   30_000_000,
		Time:       0,
		BaseFee:    uint256.NewInt(InitialBaseFee),
		Difficulty: new(uint256.Int),
	}

	b := New(pool, cfg, vm.Config{}, noHashes)
	id, err := b.Start(parent, sm, Params{
		SuggestedFeeRecipient: common.HexToAddress("0xc0ffee0000000000000000000000000000c0ff"),
		Timestamp:             1,
		GasLimit:              30_000_000,
	})
	require.NoError(t, err)

	result, err := b.Build(id, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, result.Block.Transactions, 1)
	require.Equal(t, tx.Hash(), result.Block.Transactions[0].Hash())
	require.Len(t, result.Receipts, 1)
	require.Equal(t, uint64(21000), result.Receipts[0].GasUsed)
	require.True(t, result.Value.Sign() > 0, "coinbase should have accrued a nonzero priority fee")
}

func TestBuilderStopCancelsFurtherFilling(t *testing.T) {
	cfg := testLondonConfig(t)
	rules, err := cfg.Rules(0, 0)
	require.NoError(t, err)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sm := state.NewMemoryState()
	acct := state.NewEmptyAccount()
	acct.Balance = *uint256.NewInt(1_000_000_000_000_000)
	require.NoError(t, sm.PutAccount(addr, &acct))

	metrics := txpool.NewMetrics(prometheus.NewRegistry())
	pool := txpool.New(txpool.DefaultConfig(), signer, &rules, sm, uint256.NewInt(1), metrics)

	tx := signLegacy(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(1_000_000_000), nil))
	require.NoError(t, pool.Add(tx))

	parent := &types.Header{GasLimit: 30_000_000, BaseFee: uint256.NewInt(InitialBaseFee), Difficulty: new(uint256.Int)}

	b := New(pool, cfg, vm.Config{}, noHashes)
	id, err := b.Start(parent, sm, Params{Timestamp: 1, GasLimit: 30_000_000})
	require.NoError(t, err)

	b.Stop(id)

	result, err := b.Build(id, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Empty(t, result.Block.Transactions, "a stopped payload should not fill further")
}

func TestBuildUnknownPayloadErrors(t *testing.T) {
	cfg := testLondonConfig(t)
	b := New(nil, cfg, vm.Config{}, noHashes)
	_, err := b.Build(PayloadID{0xff}, time.Now())
	require.ErrorIs(t, err, ErrUnknownPayload)
}

func TestDerivePayloadIDStableAndSensitiveToInputs(t *testing.T) {
	parentHash := common.HexToHash("0x01")
	params := Params{Timestamp: 100, PrevRandao: common.HexToHash("0x02")}

	id1 := DerivePayloadID(parentHash, params)
	id2 := DerivePayloadID(parentHash, params)
	require.Equal(t, id1, id2, "same inputs must derive the same payload id")

	params.Timestamp = 101
	id3 := DerivePayloadID(parentHash, params)
	require.NotEqual(t, id1, id3, "a different timestamp must derive a different payload id")
}
