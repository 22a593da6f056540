// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/rlp"
)

// BlockNonce is the 64-bit proof-of-work nonce, always zero post-Merge but
// still carried in the RLP encoding for header-hash compatibility.
type BlockNonce [8]byte

// EncodeNonce packs i into a BlockNonce.
func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	for idx := 0; idx < 8; idx++ {
		n[idx] = byte(i >> (56 - 8*idx))
	}
	return n
}

// Uint64 unpacks a BlockNonce into a plain integer.
func (n BlockNonce) Uint64() uint64 {
	var v uint64
	for idx := 0; idx < 8; idx++ {
		v = v<<8 | uint64(n[idx])
	}
	return v
}

// Header is a block header, carrying the fields every hardfork shares plus
// the ones later EIPs append: base fee (EIP-1559), withdrawals root
// (EIP-4895), and blob gas accounting (EIP-4844). A trailing field is
// RLP-encoded only when it is non-nil; the codec does not consult the
// Rules active at Number/Time, so whoever builds the header decides which
// extension fields it carries.
type Header struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	StateRoot   common.Hash
	TxRoot      common.Hash
	ReceiptRoot common.Hash
	Bloom       common.Bloom
	Difficulty  *uint256.Int
	Number      uint64
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash // prev_randao post-Merge
	Nonce       BlockNonce

	BaseFee *uint256.Int // EIP-1559, nil pre-London

	WithdrawalsRoot *common.Hash // EIP-4895, nil pre-Shanghai

	BlobGasUsed   *uint64 // EIP-4844, nil pre-Cancun
	ExcessBlobGas *uint64 // EIP-4844, nil pre-Cancun
}

// EmptyUncleHash is the keccak256 of the RLP encoding of an empty uncle
// list, the value every post-Merge header's UncleHash must equal since
// execore produces no uncles.
var EmptyUncleHash = common.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")

// Hash returns the keccak256 of the header's canonical RLP encoding, the
// value referenced as parent_hash by the header built on top of it.
func (h *Header) Hash() common.Hash {
	var buf bytes.Buffer
	_ = h.EncodeRLP(&buf)
	return crypto.Keccak256Hash(buf.Bytes())
}

func (h *Header) encodeFields(w io.Writer, b []byte) error {
	if _, err := w.Write([]byte{128 + 32}); err != nil {
		return err
	}
	if _, err := w.Write(h.ParentHash[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{128 + 32}); err != nil {
		return err
	}
	if _, err := w.Write(h.UncleHash[:]); err != nil {
		return err
	}
	coinbase := h.Coinbase
	if err := rlp.EncodeOptionalAddress((*[20]byte)(&coinbase), w, b); err != nil {
		return err
	}
	for _, root := range [3]common.Hash{h.StateRoot, h.TxRoot, h.ReceiptRoot} {
		if _, err := w.Write([]byte{128 + 32}); err != nil {
			return err
		}
		if _, err := w.Write(root[:]); err != nil {
			return err
		}
	}
	if err := rlp.EncodeString(h.Bloom.Bytes(), w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(h.Difficulty, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(h.Number, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(h.GasLimit, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(h.GasUsed, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(h.Time, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeString(h.Extra, w, b); err != nil {
		return err
	}
	if _, err := w.Write([]byte{128 + 32}); err != nil {
		return err
	}
	if _, err := w.Write(h.MixDigest[:]); err != nil {
		return err
	}
	if err := rlp.EncodeString(h.Nonce[:], w, b); err != nil {
		return err
	}
	if h.BaseFee != nil {
		if err := rlp.EncodeUint256(h.BaseFee, w, b); err != nil {
			return err
		}
	}
	if h.WithdrawalsRoot != nil {
		if _, err := w.Write([]byte{128 + 32}); err != nil {
			return err
		}
		if _, err := w.Write(h.WithdrawalsRoot[:]); err != nil {
			return err
		}
	}
	if h.BlobGasUsed != nil {
		if err := rlp.EncodeInt(*h.BlobGasUsed, w, b); err != nil {
			return err
		}
	}
	if h.ExcessBlobGas != nil {
		if err := rlp.EncodeInt(*h.ExcessBlobGas, w, b); err != nil {
			return err
		}
	}
	return nil
}

// EncodeRLP writes the header's consensus encoding, field order
// [parent_hash, uncle_hash, coinbase, state_root, tx_trie, receipt_trie,
// logs_bloom, difficulty, number, gas_limit, gas_used, timestamp,
// extra_data, mix_hash, nonce] + base_fee_per_gas (>=London) +
// withdrawals_root (>=Shanghai) + blob_gas_used, excess_blob_gas
// (>=Cancun).
func (h *Header) EncodeRLP(w io.Writer) error {
	var payload bytes.Buffer
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := h.encodeFields(&payload, b); err != nil {
		return err
	}
	if err := rlp.EncodeStructSizePrefix(payload.Len(), w, b); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// DecodeRLP reads back a header encoded by EncodeRLP. Trailing optional
// fields are populated only if present, left nil otherwise, so callers
// distinguish a pre-London header from one whose base fee happens to be
// zero.
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	read32 := func(name string) (common.Hash, error) {
		b, err := s.Bytes()
		if err != nil {
			return common.Hash{}, fmt.Errorf("read %s: %w", name, err)
		}
		if len(b) != 32 {
			return common.Hash{}, fmt.Errorf("wrong size for %s: %d", name, len(b))
		}
		return common.BytesToHash(b), nil
	}
	var err error
	if h.ParentHash, err = read32("ParentHash"); err != nil {
		return err
	}
	if h.UncleHash, err = read32("UncleHash"); err != nil {
		return err
	}
	coinbaseBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read Coinbase: %w", err)
	}
	if len(coinbaseBytes) != 20 {
		return fmt.Errorf("wrong size for Coinbase: %d", len(coinbaseBytes))
	}
	h.Coinbase = common.BytesToAddress(coinbaseBytes)
	if h.StateRoot, err = read32("StateRoot"); err != nil {
		return err
	}
	if h.TxRoot, err = read32("TxRoot"); err != nil {
		return err
	}
	if h.ReceiptRoot, err = read32("ReceiptRoot"); err != nil {
		return err
	}
	bloomBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read Bloom: %w", err)
	}
	h.Bloom = common.BytesToBloom(bloomBytes)
	if h.Difficulty, err = s.Uint256Bytes(); err != nil {
		return fmt.Errorf("read Difficulty: %w", err)
	}
	if h.Number, err = s.Uint(); err != nil {
		return fmt.Errorf("read Number: %w", err)
	}
	if h.GasLimit, err = s.Uint(); err != nil {
		return fmt.Errorf("read GasLimit: %w", err)
	}
	if h.GasUsed, err = s.Uint(); err != nil {
		return fmt.Errorf("read GasUsed: %w", err)
	}
	if h.Time, err = s.Uint(); err != nil {
		return fmt.Errorf("read Time: %w", err)
	}
	if h.Extra, err = s.Bytes(); err != nil {
		return fmt.Errorf("read Extra: %w", err)
	}
	if h.MixDigest, err = read32("MixDigest"); err != nil {
		return err
	}
	nonceBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read Nonce: %w", err)
	}
	if len(nonceBytes) != 8 {
		return fmt.Errorf("wrong size for Nonce: %d", len(nonceBytes))
	}
	copy(h.Nonce[:], nonceBytes)

	if h.BaseFee, err = optionalUint256(s); err != nil {
		return fmt.Errorf("read BaseFee: %w", err)
	}
	if h.BaseFee != nil {
		if h.WithdrawalsRoot, err = optionalHash(s); err != nil {
			return fmt.Errorf("read WithdrawalsRoot: %w", err)
		}
	}
	if h.WithdrawalsRoot != nil {
		if h.BlobGasUsed, err = optionalUint(s); err != nil {
			return fmt.Errorf("read BlobGasUsed: %w", err)
		}
		if h.ExcessBlobGas, err = optionalUint(s); err != nil {
			return fmt.Errorf("read ExcessBlobGas: %w", err)
		}
	}
	return s.ListEnd()
}

// optionalUint256 reads one more trailing header field if present,
// returning (nil, nil) once the list is exhausted the way
// decodeAccessList's EOL check distinguishes "no more elements" from a
// genuine decode error.
func optionalUint256(s *rlp.Stream) (*uint256.Int, error) {
	v, err := s.Uint256Bytes()
	if errors.Is(err, rlp.EOL) {
		return nil, nil
	}
	return v, err
}

func optionalHash(s *rlp.Stream) (*common.Hash, error) {
	b, err := s.Bytes()
	if errors.Is(err, rlp.EOL) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("wrong size: %d", len(b))
	}
	h := common.BytesToHash(b)
	return &h, nil
}

func optionalUint(s *rlp.Stream) (*uint64, error) {
	v, err := s.Uint()
	if errors.Is(err, rlp.EOL) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
