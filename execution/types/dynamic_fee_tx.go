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

// DynamicFeeTx is the data of an EIP-1559 transaction: a priority fee
// (tip cap) and a fee cap replace the single gasPrice field.
type DynamicFeeTx struct {
	CommonTx
	ChainID    *uint256.Int
	Tip        *uint256.Int // max priority fee per gas
	FeeCap     *uint256.Int // max fee per gas
	AccessList AccessList
}

func (tx *DynamicFeeTx) Type() byte               { return DynamicFeeTxType }
func (tx *DynamicFeeTx) GetChainID() *uint256.Int  { return tx.ChainID }
func (tx *DynamicFeeTx) GetAccessList() AccessList { return tx.AccessList }
func (tx *DynamicFeeTx) Protected() bool           { return true }
func (tx *DynamicFeeTx) GetGasPrice() *uint256.Int { return tx.FeeCap }
func (tx *DynamicFeeTx) GetFeeCap() *uint256.Int   { return tx.FeeCap }
func (tx *DynamicFeeTx) GetTipCap() *uint256.Int   { return tx.Tip }
func (tx *DynamicFeeTx) GetBaseFee() *uint256.Int  { return tx.FeeCap }

func (tx *DynamicFeeTx) copy() *DynamicFeeTx {
	cpy := &DynamicFeeTx{
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
		AccessList: make(AccessList, len(tx.AccessList)),
	}
	copy(cpy.AccessList, tx.AccessList)
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
	cpy.V.Set(&tx.V)
	cpy.R.Set(&tx.R)
	cpy.S.Set(&tx.S)
	return cpy
}

func (tx *DynamicFeeTx) payloadSize() (payloadSize, accessListLen int) {
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
	payloadSize += rlp.Uint256LenExcludingHead(&tx.V)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.R)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(&tx.S)
	return
}

func (tx *DynamicFeeTx) encodeFields(w io.Writer, b []byte, includeSig bool) error {
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

func (tx *DynamicFeeTx) MarshalBinary(w io.Writer) error {
	payloadSize, _ := tx.payloadSize()
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	b[0] = DynamicFeeTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	if err := rlp.EncodeStructSizePrefix(payloadSize, w, b); err != nil {
		return err
	}
	return tx.encodeFields(w, b, true)
}

func (tx *DynamicFeeTx) EncodeRLP(w io.Writer) error {
	payloadSize, _ := tx.payloadSize()
	envelopeSize := 1 + rlp.ListPrefixLen(payloadSize) + payloadSize
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := rlp.EncodeStringSizePrefix(envelopeSize, w, b); err != nil {
		return err
	}
	b[0] = DynamicFeeTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	if err := rlp.EncodeStructSizePrefix(payloadSize, w, b); err != nil {
		return err
	}
	return tx.encodeFields(w, b, true)
}

func (tx *DynamicFeeTx) DecodeRLP(s *rlp.Stream) error {
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

func (tx *DynamicFeeTx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	var buf bytes.Buffer
	_ = tx.MarshalBinary(&buf)
	h := crypto.Keccak256Hash(buf.Bytes())
	tx.hash.Store(&h)
	return h
}

func (tx *DynamicFeeTx) SigningHash(_ *big.Int) common.Hash {
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	var payload bytes.Buffer
	_ = tx.encodeFields(&payload, b, false)

	var buf bytes.Buffer
	buf.WriteByte(DynamicFeeTxType)
	_ = rlp.EncodeStructSizePrefix(payload.Len(), &buf, b)
	buf.Write(payload.Bytes())
	return crypto.Keccak256Hash(buf.Bytes())
}

func (tx *DynamicFeeTx) WithSignature(signer Signer, sig []byte) (Transaction, error) {
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

func (tx *DynamicFeeTx) Sender(signer Signer) (common.Address, error) {
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

// GetUpfrontCost returns value + gasLimit * effectiveGasPrice, where
// effectiveGasPrice is min(feeCap, baseFee+tip) when baseFee is known.
func (tx *DynamicFeeTx) GetUpfrontCost(baseFee *uint256.Int) *uint256.Int {
	price := tx.FeeCap
	if baseFee != nil {
		price = EffectiveGasTip(tx.FeeCap, tx.Tip, baseFee)
		price = new(uint256.Int).Add(price, baseFee)
	}
	total := new(uint256.Int).SetUint64(tx.GasLimit)
	total.Mul(total, price)
	return total.Add(total, tx.Value)
}

// EffectiveGasTip returns min(tip, feeCap-baseFee), the priority fee the
// block proposer actually collects per EIP-1559.
func EffectiveGasTip(feeCap, tip, baseFee *uint256.Int) *uint256.Int {
	if baseFee == nil {
		return new(uint256.Int).Set(tip)
	}
	if feeCap.Cmp(baseFee) < 0 {
		return new(uint256.Int)
	}
	headroom := new(uint256.Int).Sub(feeCap, baseFee)
	if tip.Cmp(headroom) < 0 {
		return new(uint256.Int).Set(tip)
	}
	return headroom
}

func (tx *DynamicFeeTx) AsMessage(s Signer, baseFee *big.Int, rules *Rules) (*Message, error) {
	if !rules.IsLondon {
		return nil, ErrTxTypeNotActivated
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
	return &m, nil
}
