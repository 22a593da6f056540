// Copyright 2024 The execore Authors
// This file is part of execore.

package rlp

import (
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"
)

// ErrElemTooLarge is returned when a string/list header claims a length that
// does not fit in the remaining input.
var ErrElemTooLarge = errors.New("rlp: element length exceeds input size")

// Stream reads successive RLP values from an underlying byte slice. It is a
// forward-only cursor; List/ListEnd bracket a nested list the way a JSON
// decoder brackets an object, and callers unwind by calling ListEnd once
// they've consumed every field they expect.
type Stream struct {
	buf   []byte
	pos   int
	stack []int // saved end-offsets of enclosing lists
}

// NewStream wraps buf for decoding. buf is not copied; callers must not
// mutate it while the Stream is in use.
func NewStream(buf []byte) *Stream {
	return &Stream{buf: buf}
}

func (s *Stream) Len() int { return len(s.buf) - s.pos }

func (s *Stream) atEnd() bool {
	if len(s.stack) == 0 {
		return s.pos >= len(s.buf)
	}
	return s.pos >= s.stack[len(s.stack)-1]
}

// readKind reads the next element's header and returns its payload bounds.
func (s *Stream) readKind() (isList bool, start, end int, err error) {
	if s.atEnd() {
		return false, 0, 0, EOL
	}
	b := s.buf[s.pos]
	switch {
	case b < 0x80:
		return false, s.pos, s.pos + 1, nil
	case b < 0xb8:
		size := int(b - 0x80)
		start = s.pos + 1
		end = start + size
	case b < 0xc0:
		sizeLen := int(b - 0xb7)
		start = s.pos + 1 + sizeLen
		size, e := beUint(s.buf[s.pos+1 : start])
		if e != nil {
			return false, 0, 0, e
		}
		end = start + size
	case b < 0xf8:
		size := int(b - 0xc0)
		start = s.pos + 1
		end = start + size
		isList = true
	default:
		sizeLen := int(b - 0xf7)
		start = s.pos + 1 + sizeLen
		size, e := beUint(s.buf[s.pos+1 : start])
		if e != nil {
			return false, 0, 0, e
		}
		end = start + size
		isList = true
	}
	if end > len(s.buf) || end < start {
		return false, 0, 0, ErrElemTooLarge
	}
	return isList, start, end, nil
}

func beUint(b []byte) (int, error) {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	if v > uint64(^uint(0)>>1) {
		return 0, ErrElemTooLarge
	}
	return int(v), nil
}

// List enters a nested list, returning the number of payload bytes it
// encloses. Pair every List with a ListEnd.
func (s *Stream) List() (size uint64, err error) {
	isList, start, end, err := s.readKind()
	if err != nil {
		return 0, err
	}
	if !isList {
		return 0, fmt.Errorf("rlp: expected list, got string")
	}
	s.stack = append(s.stack, end)
	s.pos = start
	return uint64(end - start), nil
}

// ListEnd closes the list opened by the matching List call, advancing past
// any trailing fields the caller chose not to decode.
func (s *Stream) ListEnd() error {
	if len(s.stack) == 0 {
		return errors.New("rlp: ListEnd without List")
	}
	end := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.pos = end
	return nil
}

// Uint decodes the next element as an unsigned integer.
func (s *Stream) Uint() (uint64, error) {
	_, start, end, err := s.readKind()
	if err != nil {
		return 0, err
	}
	v, err := beUint(s.buf[start:end])
	if err != nil {
		return 0, err
	}
	s.pos = end
	return uint64(v), nil
}

// Uint256Bytes decodes the next element as a big-endian unsigned integer
// into a *uint256.Int.
func (s *Stream) Uint256Bytes() (*uint256.Int, error) {
	_, start, end, err := s.readKind()
	if err != nil {
		return nil, err
	}
	if end-start > 32 {
		return nil, fmt.Errorf("rlp: uint256 payload too large (%d bytes)", end-start)
	}
	v := new(uint256.Int).SetBytes(s.buf[start:end])
	s.pos = end
	return v, nil
}

// Bytes decodes the next element as a byte string.
func (s *Stream) Bytes() ([]byte, error) {
	_, start, end, err := s.readKind()
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, s.buf[start:end])
	s.pos = end
	return out, nil
}

// Raw returns the next element's raw encoding (header + payload) without
// interpreting it, useful for opaque passthrough fields like EOF containers.
func (s *Stream) Raw() ([]byte, error) {
	_, _, end, err := s.readKind()
	if err != nil {
		return nil, err
	}
	headerStart := s.pos
	out := make([]byte, end-headerStart)
	copy(out, s.buf[headerStart:end])
	s.pos = end
	return out, nil
}

// IsList reports whether the next element is a list, without consuming it.
func (s *Stream) IsList() bool {
	isList, _, _, err := s.readKind()
	return err == nil && isList
}

// Decode reads an RLP-encoded value from r in full and returns a Stream
// positioned at its start. Used by codecs that receive an io.Reader
// (e.g. transaction pool wire decoding).
func Decode(r io.Reader) (*Stream, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewStream(data), nil
}
