// Copyright 2024 The execore Authors
// This file is part of execore.

// Package types implements the typed transaction codec and validator:
// legacy, EIP-2930 access-list, EIP-1559 dynamic-fee and EIP-4844 blob
// transactions, with canonical signing, hashing and RLP serialization.
// Grounded on the erigon execution/types package, generalized so a
// single Transaction interface dispatches to per-type envelopes rather
// than go-ethereum's original inheritance-free-but-switch-heavy TxData
// pattern.
package types

import (
	"errors"
	"io"
	"math/big"
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/lib/common"
)

// Transaction type markers (EIP-2718 envelope byte).
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
)

var (
	ErrInvalidSig          = errors.New("types: invalid transaction v, r, s values")
	ErrInvalidTxType       = errors.New("types: transaction type not supported")
	ErrTxTypeNotActivated  = errors.New("types: transaction type not yet activated on this hardfork")
	ErrGasFeeCapTooLow     = errors.New("types: max fee per gas less than max priority fee per gas")
	ErrEmptyBlobHashes     = errors.New("types: blob transaction missing blob hashes")
	ErrTooManyBlobHashes   = errors.New("types: blob transaction exceeds the per-tx blob limit")
	ErrBlobVersionMismatch = errors.New("types: blob versioned hash has wrong version byte")
	ErrBlobTxNoRecipient   = errors.New("types: blob transaction must have a recipient")
	ErrGasUintOverflow     = errors.New("types: gas uint64 overflow")

	ErrBlobSidecarMissing      = errors.New("types: blob transaction missing its network sidecar")
	ErrBlobSidecarLengthMismatch = errors.New("types: blob sidecar's blobs, commitments and proofs must have the same length as the tx's blob hashes")
	ErrBlobCommitmentMismatch  = errors.New("types: blob sidecar commitment does not match its declared versioned hash")
	ErrBlobProofVerification   = errors.New("types: blob sidecar KZG proof batch verification failed")
)

// AccessTuple is one entry of an EIP-2930 access list: an address plus the
// storage slots pre-warmed alongside it.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys across every tuple.
func (al AccessList) StorageKeys() int {
	sum := 0
	for _, t := range al {
		sum += len(t.StorageKeys)
	}
	return sum
}

// Transaction is implemented by every envelope variant (legacy,
// access-list, dynamic-fee, blob). Tx objects are frozen upon construction;
// WithSignature returns a new, signed copy rather than mutating the
// receiver, consistent with 's `sign` semantics.
type Transaction interface {
	Type() byte
	GetChainID() *uint256.Int
	GetNonce() uint64
	GetTo() *common.Address
	GetValue() *uint256.Int
	GetData() []byte
	GetGas() uint64
	GetGasPrice() *uint256.Int
	GetFeeCap() *uint256.Int
	GetTipCap() *uint256.Int
	GetAccessList() AccessList
	GetBlobHashes() []common.Hash
	GetBlobGas() uint64

	Protected() bool
	RawSignatureValues() (v, r, s *uint256.Int)

	Hash() common.Hash
	SigningHash(chainID *big.Int) common.Hash
	MarshalBinary(w io.Writer) error
	EncodeRLP(w io.Writer) error

	WithSignature(signer Signer, sig []byte) (Transaction, error)
	Sender(signer Signer) (common.Address, error)

	// GetUpfrontCost returns nonce-independent worst-case cost: value plus
	// gas_limit * effective_gas_price, where effective_gas_price accounts
	// for EIP-1559's fee-cap/base-fee interaction when baseFee is non-nil.
	GetUpfrontCost(baseFee *uint256.Int) *uint256.Int

	// GetBaseFee returns the per-tx minimum base fee it is willing to pay
	// (feeCap for 1559/4844 txs, gasPrice for legacy/2930).
	GetBaseFee() *uint256.Int

	// AsMessage recovers the sender and flattens the transaction into a
	// Message ready for EVM dispatch, rejecting it with
	// ErrTxTypeNotActivated if its envelope's governing EIP is not active
	// under rules.
	AsMessage(signer Signer, baseFee *big.Int, rules *Rules) (*Message, error)
}

// TransactionMisc holds the fields every variant shares for caching derived
// values; atomic.Pointer gives lock-free repeated reads the way the reference implementation
// caches tx.hash/tx.from across repeated validation passes.
type TransactionMisc struct {
	hash atomic.Pointer[common.Hash]
	from atomic.Pointer[common.Address]
}

// CommonTx holds the fields shared by every transaction type (legacy
// onward): nonce, recipient, value, data, gas limit, and the ECDSA
// signature components.
type CommonTx struct {
	TransactionMisc

	Nonce    uint64
	To       *common.Address
	Value    *uint256.Int
	Data     []byte
	GasLimit uint64

	V, R, S uint256.Int
}

func (ct *CommonTx) GetNonce() uint64         { return ct.Nonce }
func (ct *CommonTx) GetTo() *common.Address   { return ct.To }
func (ct *CommonTx) GetValue() *uint256.Int   { return ct.Value }
func (ct *CommonTx) GetData() []byte          { return ct.Data }
func (ct *CommonTx) GetGas() uint64           { return ct.GasLimit }
func (ct *CommonTx) GetBlobHashes() []common.Hash { return nil }
func (ct *CommonTx) GetBlobGas() uint64       { return 0 }

func (ct *CommonTx) RawSignatureValues() (*uint256.Int, *uint256.Int, *uint256.Int) {
	return &ct.V, &ct.R, &ct.S
}

func (ct *CommonTx) cachedSender() (common.Address, bool) {
	p := ct.from.Load()
	if p == nil {
		return common.Address{}, false
	}
	return *p, true
}

// Message is the flattened, ready-to-execute view of a transaction plus its
// recovered sender, consumed directly by the EVM message dispatcher.
type Message struct {
	to         *common.Address
	from       common.Address
	nonce      uint64
	amount     uint256.Int
	gasLimit   uint64
	gasPrice   uint256.Int
	feeCap     uint256.Int
	tipCap     uint256.Int
	data       []byte
	accessList AccessList
	blobHashes []common.Hash
	blobGasFeeCap *uint256.Int
	checkNonce bool
	isFree     bool
}

func NewMessage(from common.Address, to *common.Address, nonce uint64, amount *uint256.Int, gasLimit uint64, gasPrice *uint256.Int, feeCap, tipCap *uint256.Int, data []byte, accessList AccessList, checkNonce bool) Message {
	m := Message{from: from, to: to, nonce: nonce, gasLimit: gasLimit, data: data, accessList: accessList, checkNonce: checkNonce}
	if amount != nil {
		m.amount = *amount
	}
	if gasPrice != nil {
		m.gasPrice = *gasPrice
	}
	if feeCap != nil {
		m.feeCap = *feeCap
	} else {
		m.feeCap = m.gasPrice
	}
	if tipCap != nil {
		m.tipCap = *tipCap
	} else {
		m.tipCap = m.gasPrice
	}
	return m
}

func (m *Message) From() common.Address     { return m.from }
func (m *Message) To() *common.Address       { return m.to }
func (m *Message) GasPrice() *uint256.Int    { return &m.gasPrice }
func (m *Message) FeeCap() *uint256.Int      { return &m.feeCap }
func (m *Message) TipCap() *uint256.Int      { return &m.tipCap }
func (m *Message) Gas() uint64               { return m.gasLimit }
func (m *Message) Value() *uint256.Int       { return &m.amount }
func (m *Message) Nonce() uint64             { return m.nonce }
func (m *Message) Data() []byte              { return m.data }
func (m *Message) AccessList() AccessList    { return m.accessList }
func (m *Message) BlobHashes() []common.Hash { return m.blobHashes }
func (m *Message) BlobGasFeeCap() *uint256.Int { return m.blobGasFeeCap }
func (m *Message) CheckNonce() bool          { return m.checkNonce }
func (m *Message) IsFree() bool              { return m.isFree }

// Rules is re-exported so callers of this package need not import
// execution/chain directly for the type used by AsMessage.
type Rules = chain.Rules
