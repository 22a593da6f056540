// Copyright 2024 The execore Authors
// This file is part of execore.

package txpool

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/execution/state"
	"github.com/ethexec/execore/execution/types"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

type fakeStateManager struct {
	accounts map[common.Address]*state.Account
}

func newFakeStateManager() *fakeStateManager {
	return &fakeStateManager{accounts: make(map[common.Address]*state.Account)}
}

func (f *fakeStateManager) fund(addr common.Address, balance uint64, nonce uint64) {
	f.accounts[addr] = &state.Account{Nonce: nonce, Balance: *uint256.NewInt(balance), CodeHash: state.EmptyCodeHash}
}

func (f *fakeStateManager) GetAccount(addr common.Address) (*state.Account, error) {
	a, ok := f.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}
func (f *fakeStateManager) PutAccount(addr common.Address, acct *state.Account) error {
	cp := *acct
	f.accounts[addr] = &cp
	return nil
}
func (f *fakeStateManager) DeleteAccount(addr common.Address) error { delete(f.accounts, addr); return nil }
func (f *fakeStateManager) GetContractCode(common.Address) ([]byte, error) { return nil, nil }
func (f *fakeStateManager) PutContractCode(common.Address, []byte) error   { return nil }
func (f *fakeStateManager) GetContractStorage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, nil
}
func (f *fakeStateManager) PutContractStorage(common.Address, common.Hash, common.Hash) error { return nil }
func (f *fakeStateManager) ClearContractStorage(common.Address) error                         { return nil }
func (f *fakeStateManager) Checkpoint() int                                                   { return 0 }
func (f *fakeStateManager) Commit(int) error                                                  { return nil }
func (f *fakeStateManager) Revert(int) error                                                  { return nil }
func (f *fakeStateManager) GetStateRoot() (common.Hash, error)                                { return common.Hash{}, nil }
func (f *fakeStateManager) SetStateRoot(common.Hash) error                                     { return nil }
func (f *fakeStateManager) ShallowCopy() state.StateManager                                    { return f }

func londonConfig(t *testing.T) *chain.Config {
	t.Helper()
	cfg, err := chain.NewConfig(big.NewInt(1337), "pooltest", 1337, common.Hash{}, map[chain.Hardfork]chain.Activation{
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

func newTestPool(t *testing.T) (*Pool, *fakeStateManager, *ecdsa.PrivateKey, types.Signer) {
	t.Helper()
	cfg := londonConfig(t)
	rules, err := cfg.Rules(0, 0)
	require.NoError(t, err)
	signer := types.MakeSigner(cfg, 0, 0)

	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)

	sm := newFakeStateManager()
	metrics := NewMetrics(prometheus.NewRegistry())
	pool := New(DefaultConfig(), signer, &rules, sm, uint256.NewInt(1), metrics)
	return pool, sm, key, signer
}

func TestPoolAddRejectsLowNonce(t *testing.T) {
	pool, sm, key, signer := newTestPool(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sm.fund(addr, 1_000_000, 5)

	tx := signLegacyTx(t, key, signer, types.NewLegacyTx(3, nil, uint256.NewInt(0), 21000, uint256.NewInt(1), nil))
	err := pool.Add(tx)
	require.ErrorIs(t, err, ErrNonceTooLow)
}

func TestPoolAddRejectsInsufficientFunds(t *testing.T) {
	pool, sm, key, signer := newTestPool(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sm.fund(addr, 100, 0)

	tx := signLegacyTx(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(1), nil))
	err := pool.Add(tx)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPoolAddAndReplace(t *testing.T) {
	pool, sm, key, signer := newTestPool(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sm.fund(addr, 1_000_000_000, 0)

	low := signLegacyTx(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(10), nil))
	require.NoError(t, pool.Add(low))
	require.Len(t, pool.BySender(addr), 1)

	underpriced := signLegacyTx(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 22000, uint256.NewInt(10), nil))
	require.ErrorIs(t, pool.Add(underpriced), ErrReplaceUnderpriced)

	replacement := signLegacyTx(t, key, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(20), nil))
	require.NoError(t, pool.Add(replacement))

	got := pool.BySender(addr)
	require.Len(t, got, 1)
	require.Equal(t, replacement.Hash(), got[0].Hash())
}

func TestReadyQueueOrdersByTipAndAdvances(t *testing.T) {
	pool, sm, key1, signer := newTestPool(t)
	addr1 := crypto.PubkeyToAddress(key1.PublicKey)
	sm.fund(addr1, 1_000_000_000, 0)

	key2, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	addr2 := crypto.PubkeyToAddress(key2.PublicKey)
	sm.fund(addr2, 1_000_000_000, 0)

	lowTip := signLegacyTx(t, key1, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(5), nil))
	highTip := signLegacyTx(t, key2, signer, types.NewLegacyTx(0, nil, uint256.NewInt(0), 21000, uint256.NewInt(50), nil))
	require.NoError(t, pool.Add(lowTip))
	require.NoError(t, pool.Add(highTip))

	nextForAddr1 := signLegacyTx(t, key1, signer, types.NewLegacyTx(1, nil, uint256.NewInt(0), 21000, uint256.NewInt(5), nil))
	require.NoError(t, pool.Add(nextForAddr1))

	rq := pool.Ready(uint256.NewInt(1))
	require.Equal(t, 2, rq.Len())
	require.Equal(t, highTip.Hash(), rq.Pop().Hash())
	require.Equal(t, lowTip.Hash(), rq.Pop().Hash())
	require.Equal(t, nextForAddr1.Hash(), rq.Pop().Hash())
	require.Equal(t, 0, rq.Len())
}
