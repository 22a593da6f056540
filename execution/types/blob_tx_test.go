// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ethexec/execore/lib/common"
)

func newBlobTx(t *testing.T, to *common.Address, hashes []common.Hash) *BlobTx {
	t.Helper()
	return &BlobTx{
		CommonTx:   CommonTx{Nonce: 0, To: to, Value: uint256.NewInt(0), GasLimit: 100000},
		ChainID:    new(uint256.Int).SetUint64(1337),
		Tip:        uint256.NewInt(1),
		FeeCap:     uint256.NewInt(10),
		BlobFeeCap: uint256.NewInt(1),
		BlobHashes: hashes,
	}
}

func versionedHash(b byte) common.Hash {
	h := common.HexToHash("0x02")
	h[0] = BlobVersionedHashVersion
	h[31] = b
	return h
}

func TestBlobTxSignRecoverRoundTrip(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")

	tx := newBlobTx(t, &to, []common.Hash{versionedHash(1), versionedHash(2)})
	signed := sign(t, key, signer, tx)

	addr, err := signed.Sender(signer)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, signed.MarshalBinary(&buf))
	decoded := decodeEnvelope(t, buf.Bytes())
	require.Equal(t, signed.Hash(), decoded.Hash())
	require.Equal(t, signed.GetBlobHashes(), decoded.GetBlobHashes())

	decodedAddr, err := decoded.Sender(signer)
	require.NoError(t, err)
	require.Equal(t, addr, decodedAddr)
}

func TestBlobTxAsMessageRequiresRecipient(t *testing.T) {
	signer, rules := cancunSigner(t)
	key := newTestKey(t)

	tx := newBlobTx(t, nil, []common.Hash{versionedHash(1)})
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, rules)
	require.ErrorIs(t, err, ErrBlobTxNoRecipient)
}

func TestBlobTxAsMessageRejectsEmptyBlobHashes(t *testing.T) {
	signer, rules := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")

	tx := newBlobTx(t, &to, nil)
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, rules)
	require.ErrorIs(t, err, ErrEmptyBlobHashes)
}

func TestBlobTxAsMessageRejectsTooManyBlobHashes(t *testing.T) {
	signer, rules := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")

	hashes := make([]common.Hash, MaxBlobsPerTx+1)
	for i := range hashes {
		hashes[i] = versionedHash(byte(i + 1))
	}
	tx := newBlobTx(t, &to, hashes)
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, rules)
	require.ErrorIs(t, err, ErrTooManyBlobHashes)
}

func TestBlobTxAsMessageRejectsBadVersionByte(t *testing.T) {
	signer, rules := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")

	bad := versionedHash(1)
	bad[0] = 0x02
	tx := newBlobTx(t, &to, []common.Hash{bad})
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, rules)
	require.ErrorIs(t, err, ErrBlobVersionMismatch)
}

func TestBlobTxAsMessageRejectedBeforeCancun(t *testing.T) {
	signer, _ := cancunSigner(t)
	key := newTestKey(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")

	tx := newBlobTx(t, &to, []common.Hash{versionedHash(1)})
	signed := sign(t, key, signer, tx)

	_, err := signed.AsMessage(signer, nil, &Rules{IsLondon: true})
	require.ErrorIs(t, err, ErrTxTypeNotActivated)
}

func TestValidateSidecarRequiresSidecar(t *testing.T) {
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")
	tx := newBlobTx(t, &to, []common.Hash{versionedHash(1)})
	require.ErrorIs(t, tx.ValidateSidecar(), ErrBlobSidecarMissing)
}

func TestValidateSidecarRejectsLengthMismatch(t *testing.T) {
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")
	tx := newBlobTx(t, &to, []common.Hash{versionedHash(1), versionedHash(2)})
	tx.Sidecar = &BlobTxSidecar{
		Blobs:       [][]byte{make([]byte, 131072)},
		Commitments: [][]byte{make([]byte, 48)},
		Proofs:      [][]byte{make([]byte, 48)},
	}
	require.ErrorIs(t, tx.ValidateSidecar(), ErrBlobSidecarLengthMismatch)
}

func TestValidateSidecarRejectsMalformedElementSize(t *testing.T) {
	to := common.HexToAddress("0x0000000000000000000000000000000000fade")
	tx := newBlobTx(t, &to, []common.Hash{versionedHash(1)})
	tx.Sidecar = &BlobTxSidecar{
		Blobs:       [][]byte{make([]byte, 10)}, // too short for a real blob
		Commitments: [][]byte{make([]byte, 48)},
		Proofs:      [][]byte{make([]byte, 48)},
	}
	require.ErrorIs(t, tx.ValidateSidecar(), ErrBlobSidecarLengthMismatch)
}
