// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethexec/execore/rlp"
)

// DecodeTransaction parses a single transaction from its EIP-2718 binary
// envelope: a typed transaction starts with a type byte followed by its
// RLP payload; a legacy transaction has no type byte and starts directly
// with an RLP list header (0xc0-0xff).
func DecodeTransaction(data []byte) (Transaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("types: empty transaction payload")
	}
	if data[0] >= 0xc0 {
		tx := new(LegacyTx)
		if err := tx.DecodeRLP(rlp.NewStream(data)); err != nil {
			return nil, fmt.Errorf("decode legacy tx: %w", err)
		}
		return tx, nil
	}
	payload := data[1:]
	switch data[0] {
	case AccessListTxType:
		tx := new(AccessListTx)
		if err := tx.DecodeRLP(rlp.NewStream(payload)); err != nil {
			return nil, fmt.Errorf("decode access-list tx: %w", err)
		}
		return tx, nil
	case DynamicFeeTxType:
		tx := new(DynamicFeeTx)
		if err := tx.DecodeRLP(rlp.NewStream(payload)); err != nil {
			return nil, fmt.Errorf("decode dynamic-fee tx: %w", err)
		}
		return tx, nil
	case BlobTxType:
		tx := new(BlobTx)
		if err := tx.DecodeRLP(rlp.NewStream(payload)); err != nil {
			return nil, fmt.Errorf("decode blob tx: %w", err)
		}
		return tx, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidTxType, data[0])
	}
}

// MarshalTransaction writes tx's EIP-2718 binary envelope to w.
func MarshalTransaction(tx Transaction, w io.Writer) error {
	return tx.MarshalBinary(w)
}

// EncodeTransactionBinary is a convenience wrapper returning the envelope
// as a standalone byte slice, used by the tx pool and RPC layers that
// don't already hold a buffer.
func EncodeTransactionBinary(tx Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.MarshalBinary(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Transactions is a list of transactions, implementing the encoding
// interfaces the block body and network wire format need: an RLP list of
// each transaction's own binary envelope.
type Transactions []Transaction

func (t Transactions) EncodeRLP(w io.Writer) error {
	encoded := make([][]byte, len(t))
	size := 0
	for i, tx := range t {
		b, err := EncodeTransactionBinary(tx)
		if err != nil {
			return err
		}
		encoded[i] = b
		size += rlp.StringLen(b)
	}
	buf := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(buf)
	if err := rlp.EncodeStructSizePrefix(size, w, buf); err != nil {
		return err
	}
	for _, b := range encoded {
		if err := rlp.EncodeString(b, w, buf); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transactions) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	var out Transactions
	for {
		b, err := s.Bytes()
		if err == rlp.EOL {
			break
		}
		if err != nil {
			return err
		}
		tx, err := DecodeTransaction(b)
		if err != nil {
			return err
		}
		out = append(out, tx)
	}
	*t = out
	return s.ListEnd()
}
