// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
	"github.com/ethexec/execore/rlp"
)

// CreateAddress derives the address of a contract created by a.at nonce
// nonce.5's CREATE path: keccak256(rlp([a, nonce]))[12:].
func CreateAddress(a common.Address, nonce uint64) common.Address {
	addrLen := 21 // 0x94 prefix + 20 address bytes
	nonceLen := rlp.U64Len(nonce)
	listLen := addrLen + nonceLen
	prefixLen := rlp.ListPrefixLen(listLen)

	data := make([]byte, prefixLen+listLen)
	pos := rlp.EncodeListPrefix(listLen, data)
	pos += rlp.EncodeAddress(a[:], data[pos:])
	rlp.EncodeU64(nonce, data[pos:])
	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}

// CreateAddress2 derives the address of a contract created by b via CREATE2,
// per EIP-1014: keccak256(0xff || b || salt || keccak256(init_code))[12:].
func CreateAddress2(b common.Address, salt [32]byte, initCodeHash []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte{0xff}, b.Bytes(), salt[:], initCodeHash)[12:])
}
