// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/rlp"
)

// LegacyTx is a pre-EIP-2718 transaction: no envelope byte, gasPrice
// instead of fee cap/tip cap, optionally EIP-155-protected.
type LegacyTx struct {
	CommonTx
	GasPrice *uint256.Int
}

func NewLegacyTx(nonce uint64, to *common.Address, value *uint256.Int, gasLimit uint64, gasPrice *uint256.Int, data []byte) *LegacyTx {
	return &LegacyTx{
		CommonTx: CommonTx{Nonce: nonce, To: to, Value: value, GasLimit: gasLimit, Data: data},
		GasPrice: gasPrice,
	}
}

func (tx *LegacyTx) Type() byte                    { return LegacyTxType }
func (tx *LegacyTx) GetChainID() *uint256.Int       { return nil }
func (tx *LegacyTx) GetGasPrice() *uint256.Int      { return tx.GasPrice }
func (tx *LegacyTx) GetFeeCap() *uint256.Int        { return tx.GasPrice }
func (tx *LegacyTx) GetTipCap() *uint256.Int        { return tx.GasPrice }
func (tx *LegacyTx) GetAccessList() AccessList      { return nil }
func (tx *LegacyTx) GetBaseFee() *uint256.Int       { return tx.GasPrice }

// Protected reports whether the signature carries EIP-155 chain
// replay-protection (v is 27/28 for unprotected legacy transactions).
func (tx *LegacyTx) Protected() bool {
	return isProtectedV(&tx.V)
}

func isProtectedV(v *uint256.Int) bool {
	if v.BitLen() <= 8 {
		vv := v.Uint64()
		return vv != 27 && vv != 28
	}
	return true
}

func (tx *LegacyTx) copy() *LegacyTx {
	cpy := &LegacyTx{
		CommonTx: CommonTx{
			Nonce:    tx.Nonce,
			To:       tx.To,
			Data:     common.CopyBytes(tx.Data),
			GasLimit: tx.GasLimit,
			Value:    new(uint256.Int),
		},
		GasPrice: new(uint256.Int),
	}
	if tx.Value != nil {
		cpy.Value.Set(tx.Value)
	}
	if tx.GasPrice != nil {
		cpy.GasPrice.Set(tx.GasPrice)
	}
	cpy.V.Set(&tx.V)
	cpy.R.Set(&tx.R)
	cpy.S.Set(&tx.S)
	return cpy
}

func (tx *LegacyTx) payloadSize() (payloadSize, nonceLen, gasLen int) {
	payloadSize++
	nonceLen = rlp.IntLenExcludingHead(tx.Nonce)
	payloadSize += nonceLen
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.GasPrice)
	payloadSize++
	gasLen = rlp.IntLenExcludingHead(tx.GasLimit)
	payloadSize += gasLen
	payloadSize++
	if tx.To != nil {
		payloadSize += 20
	}
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.Value)
	payloadSize += rlp.StringLen(tx.Data)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.V)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.R)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.S)
	return
}

func (tx *LegacyTx) encodePayload(w io.Writer, b []byte) error {
	if err := rlp.EncodeInt(tx.Nonce, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(tx.GasPrice, w, b); err != nil {
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
	if err := rlp.EncodeUint256(&tx.V, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(&tx.R, w, b); err != nil {
		return err
	}
	return rlp.EncodeUint256(&tx.S, w, b)
}

// MarshalBinary for legacy transactions is plain RLP: no envelope byte.
func (tx *LegacyTx) MarshalBinary(w io.Writer) error {
	return tx.EncodeRLP(w)
}

func (tx *LegacyTx) EncodeRLP(w io.Writer) error {
	size, _, _ := tx.payloadSize()
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := rlp.EncodeStructSizePrefix(size, w, b); err != nil {
		return err
	}
	return tx.encodePayload(w, b)
}

func (tx *LegacyTx) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	var err error
	if tx.Nonce, err = s.Uint(); err != nil {
		return fmt.Errorf("read Nonce: %w", err)
	}
	gp, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read GasPrice: %w", err)
	}
	tx.GasPrice = gp
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
	v, err := s.Uint256Bytes()
	if err != nil {
		return fmt.Errorf("read Value: %w", err)
	}
	tx.Value = v
	if tx.Data, err = s.Bytes(); err != nil {
		return fmt.Errorf("read Data: %w", err)
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

// Hash is the keccak256 of the transaction's canonical RLP encoding.
func (tx *LegacyTx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	var buf bytes.Buffer
	_ = tx.EncodeRLP(&buf)
	h := crypto.Keccak256Hash(buf.Bytes())
	tx.hash.Store(&h)
	return h
}

// chainIDFromV recovers the chain ID encoded into an EIP-155 v value.
func chainIDFromV(v *uint256.Int) *big.Int {
	if v.BitLen() <= 8 {
		return new(big.Int)
	}
	vCopy := new(big.Int).SetBytes(v.Bytes())
	vCopy.Sub(vCopy, big.NewInt(35))
	return vCopy.Rsh(vCopy, 1)
}

// SigningHash returns the EIP-155 signing hash when chainID is non-nil,
// else the pre-155 Frontier signing hash.
func (tx *LegacyTx) SigningHash(chainID *big.Int) common.Hash {
	var buf bytes.Buffer
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)

	fields := func(w io.Writer) error {
		if err := rlp.EncodeInt(tx.Nonce, w, b); err != nil {
			return err
		}
		if err := rlp.EncodeUint256(tx.GasPrice, w, b); err != nil {
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
		if chainID != nil && chainID.Sign() != 0 {
			chainU := new(uint256.Int)
			chainU.SetFromBig(chainID)
			if err := rlp.EncodeUint256(chainU, w, b); err != nil {
				return err
			}
			if err := rlp.EncodeInt(0, w, b); err != nil {
				return err
			}
			if err := rlp.EncodeInt(0, w, b); err != nil {
				return err
			}
		}
		return nil
	}

	var payload bytes.Buffer
	_ = fields(&payload)
	_ = rlp.EncodeStructSizePrefix(payload.Len(), &buf, b)
	buf.Write(payload.Bytes())
	return crypto.Keccak256Hash(buf.Bytes())
}

func (tx *LegacyTx) WithSignature(signer Signer, sig []byte) (Transaction, error) {
	cpy := tx.copy()
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy.R.Set(r)
	cpy.S.Set(s)
	cpy.V.Set(v)
	return cpy, nil
}

func (tx *LegacyTx) Sender(signer Signer) (common.Address, error) {
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

func (tx *LegacyTx) GetUpfrontCost(_ *uint256.Int) *uint256.Int {
	total := new(uint256.Int).SetUint64(tx.GasLimit)
	total.Mul(total, tx.GasPrice)
	return total.Add(total, tx.Value)
}

func (tx *LegacyTx) AsMessage(s Signer, _ *big.Int, _ *Rules) (*Message, error) {
	from, err := tx.Sender(s)
	if err != nil {
		return nil, err
	}
	m := NewMessage(from, tx.To, tx.Nonce, tx.Value, tx.GasLimit, tx.GasPrice, nil, nil, tx.Data, nil, true)
	return &m, nil
}
