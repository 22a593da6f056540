// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/rlp"
)

// AccessListTx is the data of an EIP-2930 transaction.
type AccessListTx struct {
	LegacyTx
	ChainID    *uint256.Int
	AccessList AccessList
}

func (tx *AccessListTx) Type() byte               { return AccessListTxType }
func (tx *AccessListTx) GetChainID() *uint256.Int  { return tx.ChainID }
func (tx *AccessListTx) GetAccessList() AccessList { return tx.AccessList }
func (tx *AccessListTx) Protected() bool           { return true }
func (tx *AccessListTx) GetBaseFee() *uint256.Int  { return tx.GasPrice }

func (tx *AccessListTx) copy() *AccessListTx {
	cpy := &AccessListTx{
		LegacyTx: LegacyTx{
			CommonTx: CommonTx{
				Nonce:    tx.Nonce,
				To:       tx.To,
				Data:     common.CopyBytes(tx.Data),
				GasLimit: tx.GasLimit,
				Value:    new(uint256.Int),
			},
			GasPrice: new(uint256.Int),
		},
		ChainID:    new(uint256.Int),
		AccessList: make(AccessList, len(tx.AccessList)),
	}
	copy(cpy.AccessList, tx.AccessList)
	if tx.Value != nil {
		cpy.Value.Set(tx.Value)
	}
	if tx.ChainID != nil {
		cpy.ChainID.Set(tx.ChainID)
	}
	if tx.GasPrice != nil {
		cpy.GasPrice.Set(tx.GasPrice)
	}
	cpy.V.Set(&tx.V)
	cpy.R.Set(&tx.R)
	cpy.S.Set(&tx.S)
	return cpy
}

func accessListSize(al AccessList) int {
	var n int
	for _, tuple := range al {
		tupleLen := 21
		storageLen := 33 * len(tuple.StorageKeys)
		tupleLen += rlp.ListPrefixLen(storageLen) + storageLen
		n += rlp.ListPrefixLen(tupleLen) + tupleLen
	}
	return n
}

func encodeAccessList(al AccessList, w io.Writer, b []byte) error {
	for i := range al {
		storageLen := 33 * len(al[i].StorageKeys)
		tupleLen := 21 + rlp.ListPrefixLen(storageLen) + storageLen
		if err := rlp.EncodeStructSizePrefix(tupleLen, w, b); err != nil {
			return err
		}
		addr := al[i].Address
		if err := rlp.EncodeOptionalAddress((*[20]byte)(&addr), w, b); err != nil {
			return err
		}
		if err := rlp.EncodeStructSizePrefix(storageLen, w, b); err != nil {
			return err
		}
		b[0] = 128 + 32
		for _, key := range al[i].StorageKeys {
			if _, err := w.Write(b[:1]); err != nil {
				return err
			}
			if _, err := w.Write(key[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeAccessList(al *AccessList, s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return fmt.Errorf("open accessList: %w", err)
	}
	for {
		_, err := s.List()
		if errors.Is(err, rlp.EOL) {
			break
		}
		if err != nil {
			return fmt.Errorf("open accessTuple: %w", err)
		}
		*al = append(*al, AccessTuple{})
		tuple := &(*al)[len(*al)-1]
		addrBytes, err := s.Bytes()
		if err != nil {
			return fmt.Errorf("read Address: %w", err)
		}
		if len(addrBytes) != 20 {
			return fmt.Errorf("wrong size for Address: %d", len(addrBytes))
		}
		copy(tuple.Address[:], addrBytes)
		if _, err := s.List(); err != nil {
			return fmt.Errorf("open StorageKeys: %w", err)
		}
		for {
			b, err := s.Bytes()
			if errors.Is(err, rlp.EOL) {
				break
			}
			if err != nil {
				return fmt.Errorf("read StorageKey: %w", err)
			}
			if len(b) != 32 {
				return fmt.Errorf("wrong size for StorageKey: %d", len(b))
			}
			var key common.Hash
			copy(key[:], b)
			tuple.StorageKeys = append(tuple.StorageKeys, key)
		}
		if err := s.ListEnd(); err != nil {
			return fmt.Errorf("close StorageKeys: %w", err)
		}
		if err := s.ListEnd(); err != nil {
			return fmt.Errorf("close AccessTuple: %w", err)
		}
	}
	return s.ListEnd()
}

func (tx *AccessListTx) payloadSize() (payloadSize, accessListLen int) {
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.ChainID)
	payloadSize++
	payloadSize += rlp.IntLenExcludingHead(tx.Nonce)
	payloadSize++
	payloadSize += rlp.Uint256LenExcludingHead(tx.GasPrice)
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

func (tx *AccessListTx) encodePayload(w io.Writer, b []byte, payloadSize, accessListLen int) error {
	if err := rlp.EncodeStructSizePrefix(payloadSize, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeUint256(tx.ChainID, w, b); err != nil {
		return err
	}
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
	if err := rlp.EncodeStructSizePrefix(accessListLen, w, b); err != nil {
		return err
	}
	if err := encodeAccessList(tx.AccessList, w, b); err != nil {
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

func (tx *AccessListTx) MarshalBinary(w io.Writer) error {
	payloadSize, accessListLen := tx.payloadSize()
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	b[0] = AccessListTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	return tx.encodePayload(w, b, payloadSize, accessListLen)
}

func (tx *AccessListTx) EncodeRLP(w io.Writer) error {
	payloadSize, accessListLen := tx.payloadSize()
	envelopeSize := 1 + rlp.ListPrefixLen(payloadSize) + payloadSize
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := rlp.EncodeStringSizePrefix(envelopeSize, w, b); err != nil {
		return err
	}
	b[0] = AccessListTxType
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	return tx.encodePayload(w, b, payloadSize, accessListLen)
}

func (tx *AccessListTx) DecodeRLP(s *rlp.Stream) error {
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

func (tx *AccessListTx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	var buf bytes.Buffer
	_ = tx.MarshalBinary(&buf)
	h := crypto.Keccak256Hash(buf.Bytes())
	tx.hash.Store(&h)
	return h
}

func (tx *AccessListTx) SigningHash(_ *big.Int) common.Hash {
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)

	alLen := accessListSize(tx.AccessList)

	var payload bytes.Buffer
	_ = rlp.EncodeUint256(tx.ChainID, &payload, b)
	_ = rlp.EncodeInt(tx.Nonce, &payload, b)
	_ = rlp.EncodeUint256(tx.GasPrice, &payload, b)
	_ = rlp.EncodeInt(tx.GasLimit, &payload, b)
	if tx.To == nil {
		b[0] = 128
	} else {
		b[0] = 128 + 20
	}
	payload.Write(b[:1])
	if tx.To != nil {
		payload.Write(tx.To[:])
	}
	_ = rlp.EncodeUint256(tx.Value, &payload, b)
	_ = rlp.EncodeString(tx.Data, &payload, b)
	_ = rlp.EncodeStructSizePrefix(alLen, &payload, b)
	_ = encodeAccessList(tx.AccessList, &payload, b)

	var buf bytes.Buffer
	buf.WriteByte(AccessListTxType)
	_ = rlp.EncodeStructSizePrefix(payload.Len(), &buf, b)
	buf.Write(payload.Bytes())
	return crypto.Keccak256Hash(buf.Bytes())
}

func (tx *AccessListTx) WithSignature(signer Signer, sig []byte) (Transaction, error) {
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

func (tx *AccessListTx) Sender(signer Signer) (common.Address, error) {
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

func (tx *AccessListTx) GetUpfrontCost(_ *uint256.Int) *uint256.Int {
	total := new(uint256.Int).SetUint64(tx.GasLimit)
	total.Mul(total, tx.GasPrice)
	return total.Add(total, tx.Value)
}

func (tx *AccessListTx) AsMessage(s Signer, _ *big.Int, rules *Rules) (*Message, error) {
	if !rules.IsBerlin {
		return nil, ErrTxTypeNotActivated
	}
	from, err := tx.Sender(s)
	if err != nil {
		return nil, err
	}
	m := NewMessage(from, tx.To, tx.Nonce, tx.Value, tx.GasLimit, tx.GasPrice, nil, nil, tx.Data, tx.AccessList, true)
	return &m, nil
}
