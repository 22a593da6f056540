// Copyright 2024 The execore Authors
// This file is part of execore.
//
// execore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package common holds the fixed-size value types shared by every layer of
// the execution stack: 20-byte addresses, 32-byte hashes and storage slots.
package common

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the expected length of an Ethereum account address.
const AddressLength = 20

// HashLength is the expected length of a Keccak256 hash or a 32-byte storage
// key/value.
const HashLength = 32

// Address represents the 20-byte address of an Ethereum account.
type Address [AddressLength]byte

// BytesToAddress sets the last AddressLength bytes of b into an Address. If b
// is larger than AddressLength it is cropped from the left.
func BytesToAddress(b []byte) (a Address) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// HexToAddress parses s as a hex string (with or without 0x prefix) into an Address.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

func (a Address) Bytes() []byte   { return a[:] }
func (a Address) Hex() string     { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string  { return a.Hex() }
func (a Address) IsZero() bool    { return a == Address{} }
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Hash represents a 32-byte Keccak256 hash, storage key, or storage value.
type Hash [HashLength]byte

func BytesToHash(b []byte) (h Hash) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool   { return h == Hash{} }

// FromHex decodes a hex string, tolerating an optional 0x/0X prefix and an
// odd number of digits (as produced by some fixtures), returning nil on
// malformed input rather than panicking.
func FromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// CopyBytes returns an independent copy of b.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// ErrOverflow is returned by callers that detect a value too wide for its
// target representation (e.g. a u256 that does not fit in a u64 field).
var ErrOverflow = fmt.Errorf("value overflows its target width")

// LeftPadBytes returns a copy of input padded with leading zero bytes to
// length. If input is already length bytes or longer, it is returned
// unmodified.
func LeftPadBytes(input []byte, length int) []byte {
	if len(input) >= length {
		return input
	}
	padded := make([]byte, length)
	copy(padded[length-len(input):], input)
	return padded
}

// RightPadBytes returns a copy of input padded with trailing zero bytes to
// length. If input is already length bytes or longer, it is returned
// unmodified.
func RightPadBytes(input []byte, length int) []byte {
	if len(input) >= length {
		return input
	}
	padded := make([]byte, length)
	copy(padded, input)
	return padded
}
