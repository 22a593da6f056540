// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/rlp"
)

func cancunSigner(t *testing.T) (Signer, *chain.Rules) {
	t.Helper()
	cfg, err := chain.NewConfig(big.NewInt(1337), "typestest", 1337, common.Hash{}, map[chain.Hardfork]chain.Activation{
		chain.Frontier: chain.AtBlock(0),
		chain.Berlin:   chain.AtBlock(0),
		chain.London:   chain.AtBlock(0),
		chain.Cancun:   chain.AtBlock(0),
	}, nil)
	require.NoError(t, err)
	rules, err := cfg.Rules(0, 0)
	require.NoError(t, err)
	return MakeSigner(cfg, 0, 0), &rules
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, signer Signer, tx Transaction) Transaction {
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

// decodeEnvelope re-parses a typed transaction's MarshalBinary output the
// way a peer receiving it over devp2p would: sniff the first byte, then
// hand the remainder to the matching envelope's DecodeRLP.
func decodeEnvelope(t *testing.T, encoded []byte) Transaction {
	t.Helper()
	if len(encoded) == 0 {
		t.Fatal("empty encoding")
	}
	switch encoded[0] {
	case AccessListTxType:
		tx := new(AccessListTx)
		require.NoError(t, tx.DecodeRLP(rlp.NewStream(encoded[1:])))
		return tx
	case DynamicFeeTxType:
		tx := new(DynamicFeeTx)
		require.NoError(t, tx.DecodeRLP(rlp.NewStream(encoded[1:])))
		return tx
	case BlobTxType:
		tx := new(BlobTx)
		require.NoError(t, tx.DecodeRLP(rlp.NewStream(encoded[1:])))
		return tx
	default:
		tx := new(LegacyTx)
		require.NoError(t, tx.DecodeRLP(rlp.NewStream(encoded)))
		return tx
	}
}

// requireSameDump compares two values' spew dumps rather than
// reflect.DeepEqual, so a mismatch failure prints both structures in full
// instead of just "not equal", the way a panic dump helps diagnose an
// unrecognized config. Pointer addresses are left out of the dumps so
// that equal values held behind different pointers compare equal.
func requireSameDump(t *testing.T, want, got interface{}) {
	t.Helper()
	cfg := spew.ConfigState{Indent: " ", DisablePointerAddresses: true, DisableCapacities: true}
	wantDump := cfg.Sdump(want)
	gotDump := cfg.Sdump(got)
	if wantDump != gotDump {
		t.Fatalf("decoded transaction does not match original:\nwant:\n%s\ngot:\n%s", wantDump, gotDump)
	}
}

func TestLegacyTxSignRecoverRoundTrip(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x00000000000000000000000000000000001234")

	tx := sign(t, key, signer, NewLegacyTx(7, &to, uint256.NewInt(1000), 21000, uint256.NewInt(1), []byte{0x01, 0x00, 0x02}))

	addr, err := tx.Sender(signer)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	var buf bytes.Buffer
	require.NoError(t, tx.MarshalBinary(&buf))
	decoded := decodeEnvelope(t, buf.Bytes())
	require.Equal(t, tx.Hash(), decoded.Hash())

	decodedAddr, err := decoded.Sender(signer)
	require.NoError(t, err)
	require.Equal(t, addr, decodedAddr)
	// The signed fields only: the cached hash/sender pointers in
	// TransactionMisc differ between two equal transactions.
	want, got := tx.(*LegacyTx), decoded.(*LegacyTx)
	requireSameDump(t,
		[]interface{}{want.Nonce, want.To, want.Value, want.Data, want.GasLimit, &want.V, &want.R, &want.S},
		[]interface{}{got.Nonce, got.To, got.Value, got.Data, got.GasLimit, &got.V, &got.R, &got.S})
}

func TestAccessListTxSignRecoverRoundTrip(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x00000000000000000000000000000000005678")

	al := AccessList{{Address: to, StorageKeys: []common.Hash{common.HexToHash("0x01")}}}
	tx := &AccessListTx{
		LegacyTx: LegacyTx{
			CommonTx: CommonTx{Nonce: 1, To: &to, Value: uint256.NewInt(0), GasLimit: 50000, Data: nil},
			GasPrice: uint256.NewInt(5),
		},
		ChainID:    new(uint256.Int).SetUint64(1337),
		AccessList: al,
	}
	signed := sign(t, key, signer, tx)

	addr, err := signed.Sender(signer)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	var buf bytes.Buffer
	require.NoError(t, signed.MarshalBinary(&buf))
	decoded := decodeEnvelope(t, buf.Bytes())
	require.Equal(t, signed.Hash(), decoded.Hash())
	require.Equal(t, al, decoded.GetAccessList())
}

func TestDynamicFeeTxSignRecoverRoundTrip(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000abcd")

	tx := &DynamicFeeTx{
		CommonTx:   CommonTx{Nonce: 2, To: &to, Value: uint256.NewInt(42), GasLimit: 60000},
		ChainID:    new(uint256.Int).SetUint64(1337),
		Tip:        uint256.NewInt(2),
		FeeCap:     uint256.NewInt(10),
		AccessList: nil,
	}
	signed := sign(t, key, signer, tx)

	addr, err := signed.Sender(signer)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	var buf bytes.Buffer
	require.NoError(t, signed.MarshalBinary(&buf))
	decoded := decodeEnvelope(t, buf.Bytes())
	require.Equal(t, signed.Hash(), decoded.Hash())

	msg, err := signed.AsMessage(signer, nil, &chain.Rules{IsBerlin: true, IsLondon: true})
	require.NoError(t, err)
	require.Equal(t, addr, msg.From())
	require.Equal(t, &to, msg.To())
}

func TestDynamicFeeTxRejectedBeforeLondon(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000abcd")

	tx := &DynamicFeeTx{
		CommonTx: CommonTx{Nonce: 0, To: &to, Value: uint256.NewInt(0), GasLimit: 21000},
		ChainID:  new(uint256.Int).SetUint64(1337),
		Tip:      uint256.NewInt(1),
		FeeCap:   uint256.NewInt(1),
	}
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, &chain.Rules{IsBerlin: true})
	require.ErrorIs(t, err, ErrTxTypeNotActivated)
}
