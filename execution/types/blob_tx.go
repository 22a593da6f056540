// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	gokzg4844 "github.com/crate-crypto/go-eth-kzg"
	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/lib/crypto/kzg"
	"github.com/ethexec/execore/rlp"
)

// BlobVersionedHashVersion is the single byte prefixing every versioned
// blob hash, per EIP-4844.
const BlobVersionedHashVersion = 0x01

// BlobTxSidecar carries the blobs, KZG commitments and proofs that travel
// alongside a blob transaction on the network but are stripped before the
// transaction is included in a block (EIP-4844's network wrapper).
type BlobTxSidecar struct {
	Blobs       [][]byte
	Commitments [][]byte
	Proofs      [][]byte
}

// BlobTx is the data of an EIP-4844 blob-carrying transaction. It embeds
// the same fee-market fields as DynamicFeeTx plus a blob fee cap and the
// versioned hashes committing to the sidecar's blobs.
type BlobTx struct {
	CommonTx
	ChainID    *uint256.Int
	Tip        *uint256.Int
	FeeCap     *uint256.Int
	AccessList AccessList
	BlobFeeCap *uint256.Int
	BlobHashes []common.Hash

	// Sidecar is present only on transactions received over the network;
	// it is nil once the transaction has been included in a block.
	Sidecar *BlobTxSidecar
}

func (tx *BlobTx) Type() byte               { return BlobTxType }
func (tx *BlobTx) GetChainID() *uint256.Int { return tx.ChainID }
func (tx *BlobTx) GetAccessList() AccessList { return tx.AccessList }
func (tx *BlobTx) Protected() bool          { return true }
func (tx *BlobTx) GetGasPrice() *uint256.Int { return tx.FeeCap }
func (tx *BlobTx) GetFeeCap() *uint256.Int  { return tx.FeeCap }
func (tx *BlobTx) GetTipCap() *uint256.Int  { return tx.Tip }
func (tx *BlobTx) GetBaseFee() *uint256.Int { return tx.FeeCap }
func (tx *BlobTx) GetBlobHashes() []common.Hash { return tx.BlobHashes }

// GetBlobGas returns the data-gas charged for the sidecar: GasPerBlob
// times the number of blob hashes, per EIP-4844 §"gas accounting".
func (tx *BlobTx) GetBlobGas() uint64 {
	return uint64(len(tx.BlobHashes)) * GasPerBlob
}

// GasPerBlob is the fixed data-gas cost of a single blob (EIP-4844).
const GasPerBlob = 1 << 17

// MaxBlobsPerTx is LIMIT_BLOBS_PER_TX: the largest number of blob hashes a
// single blob transaction may carry. Set equal to the per-block blob cap,
// since a transaction that carried more could never fit in any block.
const MaxBlobsPerTx = 6

func (tx *BlobTx) copy() *BlobTx {
	cpy := &BlobTx{
		CommonTx: CommonTx{
			Nonce:    tx.Nonce,
			To:       tx.To,
			Data:     common.CopyBytes(tx.Data),
			GasLimit: tx.GasLimit,
			Value:    new(uint256.Int),
		},
		ChainID:    new(uint256.Int),
		Tip:        new(uint256.Int),
		FeeCap:     new(uint256.Int),
		BlobFeeCap: new(uint256.Int),
		AccessList: make(AccessList, len(tx.AccessList)),
		BlobHashes: make([]common.Hash, len(tx.BlobHashes)),
	}
	copy(cpy.AccessList, tx.AccessList)
	copy(cpy.BlobHashes, tx.BlobHashes)
	if tx.Value != nil {
		cpy.Value.Set(tx.Value)
	}
	if tx.ChainID != nil {
		cpy.ChainID.Set(tx.ChainID)
	}
	if tx.Tip != nil {
		cpy.Tip.Set(tx.Tip)
	}
	if tx.FeeCap != nil {
		cpy.FeeCap.Set(tx.FeeCap)
	}
	if tx.BlobFeeCap != nil {
		cpy.BlobFeeCap.Set(tx.BlobFeeCap)
	}
	cpy.V.Set(&tx.V)
	cpy.R.Set(&tx.R)
	cpy.S.Set(&tx.S)
	cpy.Sidecar = tx.Sidecar
	return cpy
}

func blobHashesSize(hashes []common.Hash) int {
	size := 0
	for range hashes {
		size += 33 // 0xa0 prefix + 32 bytes
	}
	return size
}

func encodeBlobHashes(hashes []common.Hash, w io.Writer, b []byte) error {
	for _, h := range hashes {
		if err := rlp.EncodeString(h[:], w, b); err != nil {
			return err
		}
	}
	return nil
}

func decodeBlobHashes(s *rlp.Stream) ([]common.Hash, error) {
	var hashes []common.Hash
	for {
		hb, err := s.Bytes()
		if err == rlp.EOL {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(hb) != 32 {
			return nil, fmt.Errorf("wrong size for blob hash: %d", len(hb))
		}
		var h common.Hash
		copy(h[:], hb)
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func (tx *BlobTx) payloadSize() (payloadSize, accessListLen, blobHashesLen int) {
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.ChainID)
	payloadSize++
	payloadSize += rlp.IntLenExcludingHead(tx.Nonce)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.Tip)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.FeeCap)
	payloadSize++
	payloadSize += rlp.IntLenExcludingHead(tx.GasLimit)
	payloadSize++
	if tx.To != nil {
		payloadSize += 20
	}
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.Value)
	payloadSize += rlp.StringLen(tx.Data)
	accessListLen = accessListSize(tx.AccessList)
	payloadSize += rlp.ListPrefixLen(accessListLen) + accessListLen
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.BlobFeeCap)
	blobHashesLen = blobHashesSize(tx.BlobHashes)
	payloadSize += rlp.ListPrefixLen(blobHashesLen) + blobHashesLen
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.V)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.R)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.S)
	return
}

func (tx *BlobTx) encodeFields(w io.Writer, b []byte, includeSig bool) error {
	if err := rlp.EncodeUint256(tx.ChainID, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(tx.Nonce, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(tx.Tip, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(tx.FeeCap, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(tx.GasLimit, w, b); err != nil {
		return err
	}
	if tx.To == nil {
		b[0] = 128
	} else {
		b[0] = 128 + 20
	}
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	if tx.To != nil {
		if _, err := w.Write(tx.To[:]); err != nil {
			return err
		}
	}
	if err := rlp.EncodeUint256(tx.Value, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeString(tx.Data, w, b); err != nil {
		return err
	}
	alLen := accessListSize(tx.AccessList)
	if err := rlp.EncodeStructSizePrefix(alLen, w, b); err != nil {
		return err
	}
	if err := encodeAccessList(tx.AccessList, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(tx.BlobFeeCap, w, b); err != nil {
		return err
	}
	bhLen := blobHashesSize(tx.BlobHashes)
	if err := rlp.EncodeStructSizePrefix(bhLen, w, b); err != nil {
		return err
	}
	if err := encodeBlobHashes(tx.BlobHashes, w, b); err != nil {
		return err
	}
	if !includeSig {
		return nil
	}
	if err := rlp.EncodeUint256(&tx.V, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(&tx.R, w, b); err != nil {
		return err
	}
	return rlp.EncodeUint256(&tx.S, w, b)
}

func (tx *BlobTx) MarshalBinary(w io.Writer) error {
	payloadSize, _, _ := tx.payloadSize()
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	b[0] = BlobTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	if err := rlp.EncodeStructSizePrefix(payloadSize, w, b); err != nil {
		return err
	}
	return tx.encodeFields(w, b, true)
}

func (tx *BlobTx) EncodeRLP(w io.Writer) error {
	payloadSize, _, _ := tx.payloadSize()
	envelopeSize := 1 + rlp.ListPrefixLen(payloadSize) + payloadSize
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := rlp.EncodeStringSizePrefix(envelopeSize, w, b); err != nil {
		return err
	}
	b[0] = BlobTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	if err := rlp.EncodeStructSizePrefix(payloadSize, w, b); err != nil {
		return err
	}
	return tx.encodeFields(w, b, true)
}

func (tx *BlobTx) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	cid, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read ChainID: %w", err)
	}
	tx.ChainID = cid
	if tx.Nonce, err = s.Uint(); err != nil {
		return fmt.Errorf("read Nonce: %w", err)
	}
	tip, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read Tip: %w", err)
	}
	tx.Tip = tip
	feeCap, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read FeeCap: %w", err)
	}
	tx.FeeCap = feeCap
	if tx.GasLimit, err = s.Uint(); err != nil {
		return fmt.Errorf("read GasLimit: %w", err)
	}
	toBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read To: %w", err)
	}
	if len(toBytes) > 0 {
		if len(toBytes) != 20 {
			return fmt.Errorf("wrong size for To: %d", len(toBytes))
		}
		var to common.Address
		copy(to[:], toBytes)
		tx.To = &to
	}
	val, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read Value: %w", err)
	}
	tx.Value = val
	if tx.Data, err = s.Bytes(); err != nil {
		return fmt.Errorf("read Data: %w", err)
	}
	tx.AccessList = AccessList{}
	if err := decodeAccessList(&tx.AccessList, s); err != nil {
		return fmt.Errorf("read AccessList: %w", err)
	}
	blobFeeCap, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read BlobFeeCap: %w", err)
	}
	tx.BlobFeeCap = blobFeeCap
	if _, err := s.List(); err != nil {
		return fmt.Errorf("open BlobHashes: %w", err)
	}
	hashes, err := decodeBlobHashes(s)
	if err != nil {
		return fmt.Errorf("read BlobHashes: %w", err)
	}
	tx.BlobHashes = hashes
	if err := s.ListEnd(); err != nil {
		return fmt.Errorf("close BlobHashes: %w", err)
	}
	vv, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read V: %w", err)
	}
	tx.V.Set(vv)
	rr, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read R: %w", err)
	}
	tx.R.Set(rr)
	ss, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read S: %w", err)
	}
	tx.S.Set(ss)
	return s.ListEnd()
}

func (tx *BlobTx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	var buf bytes.Buffer
	_ = tx.MarshalBinary(&buf)
	h := crypto.Keccak256Hash(buf.Bytes())
	tx.hash.Store(&h)
	return h
}

func (tx *BlobTx) SigningHash(_ *big.Int) common.Hash {
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	var payload bytes.Buffer
	_ = tx.encodeFields(&payload, b, false)

	var buf bytes.Buffer
	buf.WriteByte(BlobTxType)
	_ = rlp.EncodeStructSizePrefix(payload.Len(), &buf, b)
	buf.Write(payload.Bytes())
	return crypto.Keccak256Hash(buf.Bytes())
}

func (tx *BlobTx) WithSignature(signer Signer, sig []byte) (Transaction, error) {
	cpy := tx.copy()
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy.R.Set(r)
	cpy.S.Set(s)
	cpy.V.Set(v)
	cpy.ChainID = signer.ChainID()
	return cpy, nil
}

func (tx *BlobTx) Sender(signer Signer) (common.Address, error) {
	if addr, ok := tx.cachedSender(); ok {
		return addr, nil
	}
	addr, err := signer.Sender(tx)
	if err != nil {
		return common.Address{}, err
	}
	tx.from.Store(&addr)
	return addr, nil
}

func (tx *BlobTx) GetUpfrontCost(baseFee *uint256.Int) *uint256.Int {
	price := tx.FeeCap
	if baseFee != nil {
		price = EffectiveGasTip(tx.FeeCap, tx.Tip, baseFee)
		price = new(uint256.Int).Add(price, baseFee)
	}
	total := new(uint256.Int).SetUint64(tx.GasLimit)
	total.Mul(total, price)
	total.Add(total, tx.Value)
	blobCost := new(uint256.Int).SetUint64(tx.GetBlobGas())
	blobCost.Mul(blobCost, tx.BlobFeeCap)
	return total.Add(total, blobCost)
}

func (tx *BlobTx) AsMessage(s Signer, baseFee *big.Int, rules *Rules) (*Message, error) {
	if !rules.IsCancun {
		return nil, ErrTxTypeNotActivated
	}
	if tx.To == nil {
		return nil, ErrBlobTxNoRecipient
	}
	if len(tx.BlobHashes) == 0 {
		return nil, ErrEmptyBlobHashes
	}
	if len(tx.BlobHashes) > MaxBlobsPerTx {
		return nil, ErrTooManyBlobHashes
	}
	for _, h := range tx.BlobHashes {
		if h[0] != BlobVersionedHashVersion {
			return nil, ErrBlobVersionMismatch
		}
	}
	if tx.FeeCap.Cmp(tx.Tip) < 0 {
		return nil, ErrGasFeeCapTooLow
	}
	from, err := tx.Sender(s)
	if err != nil {
		return nil, err
	}
	gasPrice := tx.FeeCap
	if baseFee != nil {
		bf := new(uint256.Int)
		bf.SetFromBig(baseFee)
		effTip := EffectiveGasTip(tx.FeeCap, tx.Tip, bf)
		gasPrice = new(uint256.Int).Add(effTip, bf)
	}
	m := NewMessage(from, tx.To, tx.Nonce, tx.Value, tx.GasLimit, gasPrice, tx.FeeCap, tx.Tip, tx.Data, tx.AccessList, true)
	m.blobHashes = tx.BlobHashes
	m.blobGasFeeCap = tx.BlobFeeCap
	return &m, nil
}

// VersionedHash derives the EIP-4844 versioned hash that commits to a KZG
// commitment: the version byte followed by the trailing bytes of its
// sha256 hash.
func VersionedHash(commitment []byte) common.Hash {
	var c gokzg4844.KZGCommitment
	copy(c[:], commitment)
	return kzg.ToVersionedHash(c)
}

// ValidateSidecar implements validate_blob_transaction_wrapper from
// EIP-4844: the sidecar's blobs, commitments and proofs must each have one
// entry per declared blob hash, the batch KZG proof must verify, and each
// commitment must hash to its corresponding versioned hash. Grounded on
// erigon's BlobTxWrapper.ValidateBlobTransactionWrapper.
func (tx *BlobTx) ValidateSidecar() error {
	if tx.Sidecar == nil {
		return ErrBlobSidecarMissing
	}
	n := len(tx.BlobHashes)
	if n != len(tx.Sidecar.Blobs) || n != len(tx.Sidecar.Commitments) || n != len(tx.Sidecar.Proofs) {
		return ErrBlobSidecarLengthMismatch
	}

	blobs := make([]gokzg4844.Blob, n)
	commitments := make([]gokzg4844.KZGCommitment, n)
	proofs := make([]gokzg4844.KZGProof, n)
	for i := 0; i < n; i++ {
		if len(tx.Sidecar.Blobs[i]) != len(blobs[i]) || len(tx.Sidecar.Commitments[i]) != len(commitments[i]) || len(tx.Sidecar.Proofs[i]) != len(proofs[i]) {
			return ErrBlobSidecarLengthMismatch
		}
		copy(blobs[i][:], tx.Sidecar.Blobs[i])
		copy(commitments[i][:], tx.Sidecar.Commitments[i])
		copy(proofs[i][:], tx.Sidecar.Proofs[i])
	}

	blobPtrs := make([]*gokzg4844.Blob, n)
	for i := range blobs {
		blobPtrs[i] = &blobs[i]
	}
	if err := kzg.Ctx().VerifyBlobKZGProofBatch(blobPtrs, commitments, proofs); err != nil {
		return fmt.Errorf("%w: %v", ErrBlobProofVerification, err)
	}
	for i, h := range tx.BlobHashes {
		if kzg.ToVersionedHash(commitments[i]) != h {
			return ErrBlobCommitmentMismatch
		}
	}
	return nil
}
