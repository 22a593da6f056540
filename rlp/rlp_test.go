// Copyright 2024 The execore Authors
// This file is part of execore.

package rlp

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestEncodeInt(t *testing.T) {
	cases := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x81, 0x80}},
		{256, []byte{0x82, 0x01, 0x00}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		scratch := make([]byte, 9)
		require.NoError(t, EncodeInt(c.in, &buf, scratch))
		require.Equal(t, c.want, buf.Bytes())
	}
}

func TestEncodeString(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{nil, []byte{0x80}},
		{[]byte{0x61}, []byte{0x61}},
		{[]byte("dog"), []byte{0x83, 'd', 'o', 'g'}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		scratch := make([]byte, 2)
		require.NoError(t, EncodeString(c.in, &buf, scratch))
		require.Equal(t, c.want, buf.Bytes())
	}
}

func TestEncodeUint256RoundTrip(t *testing.T) {
	values := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(128),
		uint256.NewInt(1 << 40),
	}
	for _, v := range values {
		var buf bytes.Buffer
		scratch := make([]byte, 33)
		require.NoError(t, EncodeUint256(v, &buf, scratch))

		s := NewStream(buf.Bytes())
		got, err := s.Uint256Bytes()
		require.NoError(t, err)
		require.True(t, v.Eq(got), "want %s got %s", v, got)
	}
}

func TestStreamListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	scratch := make([]byte, 9)

	var payload bytes.Buffer
	require.NoError(t, EncodeInt(7, &payload, scratch))
	require.NoError(t, EncodeString([]byte("hi"), &payload, scratch))

	require.NoError(t, EncodeStructSizePrefix(payload.Len(), &buf, scratch))
	buf.Write(payload.Bytes())

	s := NewStream(buf.Bytes())
	size, err := s.List()
	require.NoError(t, err)
	require.Equal(t, uint64(payload.Len()), size)

	n, err := s.Uint()
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)

	str, err := s.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), str)

	require.NoError(t, s.ListEnd())
	require.Equal(t, 0, s.Len())
}

func TestStreamEOL(t *testing.T) {
	var buf bytes.Buffer
	scratch := make([]byte, 9)
	require.NoError(t, EncodeStructSizePrefix(0, &buf, scratch))

	s := NewStream(buf.Bytes())
	_, err := s.List()
	require.NoError(t, err)
	_, err = s.Uint()
	require.ErrorIs(t, err, EOL)
	require.NoError(t, s.ListEnd())
}

func TestListPrefixLenMatchesEncoded(t *testing.T) {
	for _, n := range []int{0, 1, 55, 56, 200, 70000} {
		got := ListPrefixLen(n)
		buf := make([]byte, got)
		written := EncodeListPrefix(n, buf)
		require.Equal(t, got, written)
	}
}
