// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ethexec/execore/execution/chain"
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// Signer encapsulates transaction signature handling for a given hardfork:
// deriving the signing hash, recovering the sender from a signature, and
// producing the V/R/S values a signature should be stored as. Each envelope
// type's own SigningHash covers the EIP-155/typed-tx hash derivation;
// Signer layers sender recovery and chain-ID validation on top, mirroring
// execution/types/transaction_signing.go dispatch-by-type
// signer chain.
type Signer interface {
	// Sender returns the address derived from tx's signature.
	Sender(tx Transaction) (common.Address, error)
	// SignatureValues returns the R, S, V values that should be set on tx
	// given a [R || S || V] signature produced by crypto.Sign.
	SignatureValues(tx Transaction, sig []byte) (r, s, v *uint256.Int, err error)
	// ChainID returns the chain ID this signer is bound to, or nil for the
	// unprotected Frontier signer.
	ChainID() *uint256.Int
	// Equal reports whether s2 describes the same signing domain.
	Equal(s2 Signer) bool
}

// MakeSigner returns the Signer matching the hardfork active at the given
// block/time: Frontier and Homestead sign unprotected, Spurious Dragon
// onward use EIP-155 replay protection, Berlin onward additionally
// accepts EIP-2930 access-list envelopes, London onward additionally
// accepts EIP-1559 envelopes, and Cancun onward additionally accepts
// EIP-4844 blob envelopes.
func MakeSigner(config *chain.Config, blockNumber, blockTime uint64) Signer {
	rules, err := config.Rules(blockNumber, blockTime)
	if err != nil {
		return FrontierSigner{}
	}
	chainID := new(uint256.Int)
	if config.ChainID != nil {
		chainID.SetFromBig(config.ChainID)
	}
	switch {
	case rules.IsCancun:
		return CancunSigner{londonSigner{eip155Signer{chainID: chainID}}}
	case rules.IsLondon:
		return londonSigner{eip155Signer{chainID: chainID}}
	case rules.IsBerlin:
		return berlinSigner{eip155Signer{chainID: chainID}}
	case rules.IsSpuriousDragon:
		return eip155Signer{chainID: chainID}
	default:
		return FrontierSigner{}
	}
}

// LatestSignerForChainID returns the most permissive signer (accepting
// every envelope type) bound to chainID, for callers that cannot resolve
// a Config (e.g. tx pool ingestion before a block context is known).
func LatestSignerForChainID(chainID *big.Int) Signer {
	cid := new(uint256.Int)
	if chainID != nil {
		cid.SetFromBig(chainID)
	}
	return CancunSigner{londonSigner{eip155Signer{chainID: cid}}}
}

func recoverPlain(sighash common.Hash, r, s, v *uint256.Int, homestead bool) (common.Address, error) {
	if !crypto.ValidateSignatureValues(byte(v.Uint64()), r.ToBig(), s.ToBig(), homestead) {
		return common.Address{}, ErrInvalidSig
	}
	sig := make([]byte, 65)
	r.WriteToSlice(sig[:32])
	s.WriteToSlice(sig[32:64])
	sig[64] = byte(v.Uint64())
	pub, err := crypto.Ecrecover(sighash[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return common.Address{}, ErrInvalidSig
	}
	var addr common.Address
	copy(addr[:], crypto.Keccak256(pub[1:])[12:])
	return addr, nil
}

// FrontierSigner implements the original, chain-ID-less signature scheme
// where v is always 27 or 28.
type FrontierSigner struct{}

func (FrontierSigner) ChainID() *uint256.Int { return nil }

func (fs FrontierSigner) Sender(tx Transaction) (common.Address, error) {
	if tx.Type() != LegacyTxType {
		return common.Address{}, ErrInvalidTxType
	}
	v, r, s := tx.RawSignatureValues()
	vv := new(uint256.Int).Sub(v, u256(27))
	return recoverPlain(tx.SigningHash(nil), r, s, vv, false)
}

func (fs FrontierSigner) SignatureValues(tx Transaction, sig []byte) (r, s, v *uint256.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrInvalidTxType
	}
	r, s, v = decodeSignature(sig)
	v.Add(v, u256(27))
	return r, s, v, nil
}

func (fs FrontierSigner) Equal(s2 Signer) bool {
	_, ok := s2.(FrontierSigner)
	return ok
}

// eip155Signer implements EIP-155 replay-protected signing for legacy
// transactions: v encodes chainID*2+35/36 instead of 27/28.
type eip155Signer struct {
	chainID *uint256.Int
}

func (s eip155Signer) ChainID() *uint256.Int { return s.chainID }

func (s eip155Signer) Equal(s2 Signer) bool {
	other, ok := s2.(eip155Signer)
	return ok && s.chainID.Eq(other.chainID)
}

func (s eip155Signer) Sender(tx Transaction) (common.Address, error) {
	if tx.Type() != LegacyTxType {
		return common.Address{}, ErrInvalidTxType
	}
	v, r, sVal := tx.RawSignatureValues()
	if !tx.Protected() {
		return FrontierSigner{}.Sender(tx)
	}
	chainIDMul := new(uint256.Int).Lsh(s.chainID, 1)
	vv := new(uint256.Int).Sub(v, chainIDMul)
	vv.Sub(vv, u256(35))
	return recoverPlain(tx.SigningHash(s.chainID.ToBig()), r, sVal, vv, true)
}

func (s eip155Signer) SignatureValues(tx Transaction, sig []byte) (r, sv, v *uint256.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrInvalidTxType
	}
	rr, ss, vvv := decodeSignature(sig)
	if s.chainID.Sign() != 0 {
		chainIDMul := new(uint256.Int).Lsh(s.chainID, 1)
		vvv.Add(vvv, u256(35))
		vvv.Add(vvv, chainIDMul)
	} else {
		vvv.Add(vvv, u256(27))
	}
	return rr, ss, vvv, nil
}

// berlinSigner additionally accepts EIP-2930 access-list transactions,
// whose signing V is the parity bit itself (0/1), not legacy's 27/28.
type berlinSigner struct {
	eip155Signer
}

func (s berlinSigner) Equal(s2 Signer) bool {
	other, ok := s2.(berlinSigner)
	return ok && s.chainID.Eq(other.chainID)
}

func (s berlinSigner) Sender(tx Transaction) (common.Address, error) {
	if tx.Type() != AccessListTxType {
		return s.eip155Signer.Sender(tx)
	}
	chainID := tx.GetChainID()
	if chainID == nil || !chainID.Eq(s.chainID) {
		return common.Address{}, ErrInvalidSig
	}
	v, r, sv := tx.RawSignatureValues()
	return recoverPlain(tx.SigningHash(s.chainID.ToBig()), r, sv, v, true)
}

func (s berlinSigner) SignatureValues(tx Transaction, sig []byte) (r, sv, v *uint256.Int, err error) {
	if tx.Type() != AccessListTxType {
		return s.eip155Signer.SignatureValues(tx, sig)
	}
	rr, ss, vvv := decodeSignature(sig)
	return rr, ss, vvv, nil
}

// londonSigner additionally accepts EIP-1559 dynamic-fee transactions,
// using the same parity-bit V convention as EIP-2930.
type londonSigner struct {
	eip155Signer
}

func (s londonSigner) Equal(s2 Signer) bool {
	other, ok := s2.(londonSigner)
	return ok && s.chainID.Eq(other.chainID)
}

func (s londonSigner) Sender(tx Transaction) (common.Address, error) {
	if tx.Type() != DynamicFeeTxType {
		return berlinSigner{s.eip155Signer}.Sender(tx)
	}
	chainID := tx.GetChainID()
	if chainID == nil || !chainID.Eq(s.chainID) {
		return common.Address{}, ErrInvalidSig
	}
	v, r, sv := tx.RawSignatureValues()
	return recoverPlain(tx.SigningHash(s.chainID.ToBig()), r, sv, v, true)
}

func (s londonSigner) SignatureValues(tx Transaction, sig []byte) (r, sv, v *uint256.Int, err error) {
	if tx.Type() != DynamicFeeTxType {
		return berlinSigner{s.eip155Signer}.SignatureValues(tx, sig)
	}
	rr, ss, vvv := decodeSignature(sig)
	return rr, ss, vvv, nil
}

// CancunSigner additionally accepts EIP-4844 blob transactions.
type CancunSigner struct {
	londonSigner
}

func (s CancunSigner) Equal(s2 Signer) bool {
	other, ok := s2.(CancunSigner)
	return ok && s.chainID.Eq(other.chainID)
}

func (s CancunSigner) Sender(tx Transaction) (common.Address, error) {
	if tx.Type() != BlobTxType {
		return s.londonSigner.Sender(tx)
	}
	chainID := tx.GetChainID()
	if chainID == nil || !chainID.Eq(s.chainID) {
		return common.Address{}, ErrInvalidSig
	}
	v, r, sv := tx.RawSignatureValues()
	return recoverPlain(tx.SigningHash(s.chainID.ToBig()), r, sv, v, true)
}

func (s CancunSigner) SignatureValues(tx Transaction, sig []byte) (r, sv, v *uint256.Int, err error) {
	if tx.Type() != BlobTxType {
		return s.londonSigner.SignatureValues(tx, sig)
	}
	rr, ss, vvv := decodeSignature(sig)
	return rr, ss, vvv, nil
}

func decodeSignature(sig []byte) (r, s, v *uint256.Int) {
	r = new(uint256.Int).SetBytes(sig[:32])
	s = new(uint256.Int).SetBytes(sig[32:64])
	v = new(uint256.Int).SetUint64(uint64(sig[64]))
	return r, s, v
}

func u256(v uint64) *uint256.Int { return new(uint256.Int).SetUint64(v) }
