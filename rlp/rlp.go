// Copyright 2024 The execore Authors
// This file is part of execore.

// Package rlp implements the canonical recursive-length-prefix codec used
// for every typed transaction envelope and the block header. It is a small,
// in-module dependency rather than a third-party package, mirroring how
// erigon vendors its own rlp package rather than depending on one: RLP
// itself is treated as an external-interface format, not a component
// this module needs to source externally.
//
// The package exposes two layers: low-level length/encode helpers that
// operate on a scratch buffer (mirroring encodel.go), and a thin io.Writer
// wrapper plus streaming Stream decoder used by the transaction codec.
package rlp

import (
	"encoding/binary"
	"errors"
	"io"
	"math/bits"
	"sync"

	"github.com/holiman/uint256"
)

// EOL is returned by Stream methods when the current list has been
// exhausted, the way bufio.Scanner signals end-of-input.
var EOL = errors.New("rlp: end of list")

// ListPrefixLen returns the number of bytes needed to encode a list header
// for a payload of the given length.
func ListPrefixLen(dataLen int) int {
	if dataLen >= 56 {
		return 1 + (bits.Len64(uint64(dataLen))+7)/8
	}
	return 1
}

// EncodeListPrefix writes a list header for a payload of dataLen bytes into to.
func EncodeListPrefix(dataLen int, to []byte) int {
	if dataLen >= 56 {
		beLen := (bits.Len64(uint64(dataLen)) + 7) / 8
		var tmp [9]byte
		binary.BigEndian.PutUint64(tmp[1:], uint64(dataLen))
		tmp[8-beLen] = 247 + byte(beLen)
		copy(to, tmp[8-beLen:9])
		return 1 + beLen
	}
	to[0] = 192 + byte(dataLen)
	return 1
}

// IntLenExcludingHead returns the number of payload bytes (excluding the
// single-byte length prefix) needed to RLP-encode i.
func IntLenExcludingHead(i uint64) int {
	if i >= 128 {
		return (bits.Len64(i) + 7) / 8
	}
	return 0
}

// U64Len returns the total RLP length of encoding i (including its prefix byte).
func U64Len(i uint64) int {
	if i >= 128 {
		return 1 + (bits.Len64(i)+7)/8
	}
	return 1
}

// EncodeU64 writes i's RLP encoding into to and returns bytes written.
func EncodeU64(i uint64, to []byte) int {
	switch {
	case i >= 128:
		beLen := (bits.Len64(i) + 7) / 8
		var tmp [9]byte
		binary.BigEndian.PutUint64(tmp[1:], i)
		tmp[8-beLen] = 128 + byte(beLen)
		copy(to, tmp[8-beLen:9])
		return 1 + beLen
	case i == 0:
		to[0] = 128
		return 1
	default:
		to[0] = byte(i)
		return 1
	}
}

// EncodeAddress writes a 20-byte address string into to and returns bytes written.
func EncodeAddress(addr []byte, to []byte) int {
	to[0] = 128 + 20
	copy(to[1:21], addr)
	return 21
}

func StringLen(s []byte) int {
	switch {
	case len(s) >= 56:
		beLen := (bits.Len(uint(len(s))) + 7) / 8
		return 1 + beLen + len(s)
	case len(s) == 0:
		return 1
	case len(s) == 1:
		if s[0] >= 128 {
			return 2
		}
		return 1
	default:
		return 1 + len(s)
	}
}

func Uint256LenExcludingHead(i *uint256.Int) int {
	if i == nil || i.IsZero() {
		return 0
	}
	return i.ByteLen()
}

// newEncodingBuf returns a scratch buffer large enough for any single
// primitive field's length prefix (list/string header up to 9 bytes, or a
// full 32-byte word).
var pooledBuf = sync.Pool{New: func() any { b := make([]byte, 33); return &b }}

func newEncodingBuf() []byte {
	p := pooledBuf.Get().(*[]byte)
	return (*p)[:33]
}

// NewEncodingBuf returns a pooled scratch buffer sized for any single
// primitive field's header. Callers (e.g. typed transaction encoders) must
// return it via PutEncodingBuf when done.
func NewEncodingBuf() []byte { return newEncodingBuf() }

func putEncodingBuf(b []byte) {
	pooledBuf.Put(&b)
}

// PutEncodingBuf releases a buffer obtained from an encoder back to the pool;
// exported so callers composing larger envelopes can reuse the same pool.
func PutEncodingBuf(b []byte) { putEncodingBuf(b) }

func EncodeStructSizePrefix(size int, w io.Writer, b []byte) error {
	n := EncodeListPrefix(size, b)
	_, err := w.Write(b[:n])
	return err
}

func EncodeStringSizePrefix(size int, w io.Writer, b []byte) error {
	switch {
	case size >= 56:
		beLen := (bits.Len64(uint64(size)) + 7) / 8
		var tmp [9]byte
		binary.BigEndian.PutUint64(tmp[1:], uint64(size))
		tmp[8-beLen] = 183 + byte(beLen)
		_, err := w.Write(tmp[8-beLen : 9])
		return err
	default:
		b[0] = 128 + byte(size)
		_, err := w.Write(b[:1])
		return err
	}
}

func EncodeInt(i uint64, w io.Writer, b []byte) error {
	n := 0
	switch {
	case i >= 128:
		beLen := (bits.Len64(i) + 7) / 8
		var tmp [9]byte
		binary.BigEndian.PutUint64(tmp[1:], i)
		tmp[8-beLen] = 128 + byte(beLen)
		copy(b, tmp[8-beLen:9])
		n = 1 + beLen
	case i == 0:
		b[0] = 128
		n = 1
	default:
		b[0] = byte(i)
		n = 1
	}
	_, err := w.Write(b[:n])
	return err
}

func EncodeUint256(i *uint256.Int, w io.Writer, b []byte) error {
	if i == nil || i.IsZero() {
		b[0] = 128
		_, err := w.Write(b[:1])
		return err
	}
	var buf [32]byte
	i.WriteToSlice(buf[:])
	blen := i.ByteLen()
	start := 32 - blen
	return EncodeString(buf[start:], w, b)
}

func EncodeString(s []byte, w io.Writer, b []byte) error {
	switch {
	case len(s) >= 56:
		beLen := (bits.Len(uint(len(s))) + 7) / 8
		var tmp [9]byte
		binary.BigEndian.PutUint64(tmp[1:], uint64(len(s)))
		tmp[8-beLen] = byte(beLen) + 183
		if _, err := w.Write(tmp[8-beLen : 9]); err != nil {
			return err
		}
		_, err := w.Write(s)
		return err
	case len(s) == 0:
		b[0] = 128
		_, err := w.Write(b[:1])
		return err
	case len(s) == 1 && s[0] < 128:
		_, err := w.Write(s)
		return err
	default:
		b[0] = byte(len(s)) + 128
		if _, err := w.Write(b[:1]); err != nil {
			return err
		}
		_, err := w.Write(s)
		return err
	}
}

func EncodeOptionalAddress(addr *[20]byte, w io.Writer, b []byte) error {
	if addr == nil {
		b[0] = 128
		_, err := w.Write(b[:1])
		return err
	}
	b[0] = 128 + 20
	if _, err := w.Write(b[:1]); err != nil {
		return err
	}
	_, err := w.Write(addr[:])
	return err
}
