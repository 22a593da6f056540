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
	"github.com/ethexec/execore/rlp"
)

// Receipt status values (EIP-658, post-Byzantium). Pre-Byzantium receipts
// carry a PostState root instead of a Status and are not produced by this
// module: it sets Status on every receipt, whatever hardfork is active.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Log is one contract event emitted during a transaction, annotated with
// the block/transaction coordinates needed once it is attached to a
// Receipt, mirroring go-ethereum's split between the journal's bare
// address/topics/data tuple and the log a client actually serves.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	BlockHash   common.Hash
	Index       uint
	Removed     bool
}

// Receipt is the result of applying one transaction: its outcome, the gas
// it actually consumed, the logs it emitted, and (for contract creation)
// the address it deployed to.
type Receipt struct {
	Type              byte
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             common.Bloom
	Logs              []*Log

	TxHash          common.Hash
	ContractAddress *common.Address
	GasUsed         uint64

	BlobGasUsed  uint64
	BlobGasPrice *uint256.Int

	BlockHash        common.Hash
	BlockNumber      uint64
	TransactionIndex uint
}

// NewReceipt builds a Receipt for a single applied transaction, computing
// its own bloom from logs the way DeriveReceiptFields historically
// back-filled it, except done eagerly here since execore produces one
// receipt at a time rather than post-processing a whole block at once.
func NewReceipt(txType byte, status uint64, cumulativeGasUsed, gasUsed uint64, contractAddress *common.Address, logs []*Log) *Receipt {
	r := &Receipt{
		Type:              txType,
		Status:            status,
		CumulativeGasUsed: cumulativeGasUsed,
		GasUsed:           gasUsed,
		ContractAddress:   contractAddress,
		Logs:              logs,
	}
	r.Bloom = receiptBloom(logs)
	return r
}

func receiptBloom(logs []*Log) common.Bloom {
	addrs := make([][]byte, 0, len(logs))
	topicSets := make([][][]byte, 0, len(logs))
	for _, l := range logs {
		addrs = append(addrs, l.Address.Bytes())
		ts := make([][]byte, len(l.Topics))
		for i, t := range l.Topics {
			ts[i] = t.Bytes()
		}
		topicSets = append(topicSets, ts)
	}
	return common.CreateBloom(addrs, topicSets)
}

// Succeeded reports whether the receipt's post-Byzantium status field
// indicates success.
func (r *Receipt) Succeeded() bool { return r.Status == ReceiptStatusSuccessful }

// Fill populates the fields only known once the receipt's position within
// a block is fixed: per-log block/tx coordinates and the global log index.
func (r *Receipt) Fill(blockHash common.Hash, blockNumber uint64, txIndex uint, firstLogIndex uint) uint {
	r.BlockHash = blockHash
	r.BlockNumber = blockNumber
	r.TransactionIndex = txIndex
	idx := firstLogIndex
	for _, l := range r.Logs {
		l.BlockHash = blockHash
		l.BlockNumber = blockNumber
		l.TxHash = r.TxHash
		l.TxIndex = txIndex
		l.Index = idx
		idx++
	}
	return idx
}

// EncodeRLP writes the receipt's consensus-encoded form: [status,
// cumulativeGasUsed, bloom, logs], wrapped in the EIP-2718 typed envelope
// for non-legacy transaction types exactly as the originating transaction
// itself is enveloped.
func (r *Receipt) EncodeRLP(w io.Writer) error {
	var payload bytes.Buffer
	b := rlp.NewEncodingBuf()
	defer rlp.PutEncodingBuf(b)
	if err := r.encodePayload(&payload, b); err != nil {
		return err
	}
	if r.Type == LegacyTxType {
		return writeSizePrefixed(w, payload.Bytes(), b)
	}
	if _, err := w.Write([]byte{r.Type}); err != nil {
		return err
	}
	return writeSizePrefixed(w, payload.Bytes(), b)
}

func writeSizePrefixed(w io.Writer, payload, b []byte) error {
	if err := rlp.EncodeStructSizePrefix(len(payload), w, b); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (r *Receipt) encodePayload(w io.Writer, b []byte) error {
	if err := rlp.EncodeInt(r.Status, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeInt(r.CumulativeGasUsed, w, b); err != nil {
		return err
	}
	if err := rlp.EncodeString(r.Bloom.Bytes(), w, b); err != nil {
		return err
	}
	logsBuf := &bytes.Buffer{}
	for _, l := range r.Logs {
		if err := encodeLogRLP(l, logsBuf, b); err != nil {
			return err
		}
	}
	if err := rlp.EncodeStructSizePrefix(logsBuf.Len(), w, b); err != nil {
		return err
	}
	_, err := w.Write(logsBuf.Bytes())
	return err
}

func encodeLogRLP(l *Log, w io.Writer, b []byte) error {
	var payload bytes.Buffer
	if _, err := payload.Write([]byte{128 + 20}); err != nil {
		return err
	}
	if _, err := payload.Write(l.Address[:]); err != nil {
		return err
	}
	topicsBuf := &bytes.Buffer{}
	for _, t := range l.Topics {
		if err := rlp.EncodeString(t[:], topicsBuf, b); err != nil {
			return err
		}
	}
	if err := rlp.EncodeStructSizePrefix(topicsBuf.Len(), &payload, b); err != nil {
		return err
	}
	if _, err := payload.Write(topicsBuf.Bytes()); err != nil {
		return err
	}
	if err := rlp.EncodeString(l.Data, &payload, b); err != nil {
		return err
	}
	return writeSizePrefixed(w, payload.Bytes(), b)
}

// DecodeRLP reads a bare [status, cumulativeGasUsed, bloom, logs] list.
// It does not read an EIP-2718 type byte, so it decodes EncodeRLP's
// output only for legacy receipts, and it leaves Type unset.
func (r *Receipt) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	var err error
	if r.Status, err = s.Uint(); err != nil {
		return fmt.Errorf("read Status: %w", err)
	}
	if r.CumulativeGasUsed, err = s.Uint(); err != nil {
		return fmt.Errorf("read CumulativeGasUsed: %w", err)
	}
	bloomBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read Bloom: %w", err)
	}
	r.Bloom = common.BytesToBloom(bloomBytes)
	if _, err := s.List(); err != nil {
		return fmt.Errorf("open Logs: %w", err)
	}
	for {
		_, err := s.List()
		if errors.Is(err, rlp.EOL) {
			break
		}
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		l := &Log{}
		if err := decodeLogFields(l, s); err != nil {
			return err
		}
		if err := s.ListEnd(); err != nil {
			return fmt.Errorf("close log: %w", err)
		}
		r.Logs = append(r.Logs, l)
	}
	if err := s.ListEnd(); err != nil {
		return fmt.Errorf("close Logs: %w", err)
	}
	return s.ListEnd()
}

func decodeLogFields(l *Log, s *rlp.Stream) error {
	addrBytes, err := s.Bytes()
	if err != nil {
		return fmt.Errorf("read Log.Address: %w", err)
	}
	if len(addrBytes) != 20 {
		return fmt.Errorf("wrong size for Log.Address: %d", len(addrBytes))
	}
	l.Address = common.BytesToAddress(addrBytes)
	if _, err := s.List(); err != nil {
		return fmt.Errorf("open Log.Topics: %w", err)
	}
	for {
		topicBytes, err := s.Bytes()
		if errors.Is(err, rlp.EOL) {
			break
		}
		if err != nil {
			return fmt.Errorf("read topic: %w", err)
		}
		if len(topicBytes) != 32 {
			return fmt.Errorf("wrong size for topic: %d", len(topicBytes))
		}
		l.Topics = append(l.Topics, common.BytesToHash(topicBytes))
	}
	if err := s.ListEnd(); err != nil {
		return fmt.Errorf("close Log.Topics: %w", err)
	}
	if l.Data, err = s.Bytes(); err != nil {
		return fmt.Errorf("read Log.Data: %w", err)
	}
	return nil
}
