// Copyright 2024 The execore Authors
// This file is part of execore.

package types

import (
	"bytes"

	"github.com/ethexec/execore/lib/common"
	"github.com/ethexec/execore/lib/crypto"
)

// EmptyRootHash is the keccak256 of the RLP encoding of an empty list,
// the trie root a header carries when its transaction or receipt set is
// empty. Grounded on erigon's types.EmptyRootHash constant (same value,
// the root of an empty Merkle-Patricia trie).
var EmptyRootHash = common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// Block pairs a header with the transactions it carries. execore does not
// model uncles (post-Merge the field is always the empty-uncle constant)
// or implement a Merkle-Patricia trie, so DeriveSimpleRoot below stands in
// for a real transaction/receipt trie root: a keccak256 over each item's
// own hash, not a consensus-matching trie commitment.
type Block struct {
	Header       *Header
	Transactions []Transaction
}

// NewBlock builds a block from header and txs, deriving header's TxRoot
// and filling UncleHash with the canonical empty-uncle value, the way
// erigon's NewBlock populates a fresh header's derived fields before
// handing the block to a caller. receipts supplies ReceiptRoot and the
// header's logs bloom.
func NewBlock(header *Header, txs []Transaction, receipts []*Receipt) *Block {
	h := *header
	h.UncleHash = EmptyUncleHash

	if len(txs) == 0 {
		h.TxRoot = EmptyRootHash
	} else {
		h.TxRoot = DeriveSimpleRoot(txHashes(txs))
	}

	if len(receipts) == 0 {
		h.ReceiptRoot = EmptyRootHash
	} else {
		hashes := make([]common.Hash, len(receipts))
		var bloom common.Bloom
		for i, r := range receipts {
			hashes[i] = crypto.Keccak256Hash(receiptSigningBytes(r))
			bloom.Or(r.Bloom)
		}
		h.ReceiptRoot = DeriveSimpleRoot(hashes)
		h.Bloom = bloom
	}

	return &Block{Header: &h, Transactions: txs}
}

func txHashes(txs []Transaction) []common.Hash {
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return hashes
}

func receiptSigningBytes(r *Receipt) []byte {
	var buf bytes.Buffer
	buf.Write(r.TxHash[:])
	buf.WriteByte(byte(r.Status))
	return buf.Bytes()
}

// DeriveSimpleRoot folds a list of item hashes into one keccak256 digest
// by hashing their concatenation in order. It is not a Merkle-Patricia
// trie root and will not match a canonical client's tx_trie/receipt_trie
// value; it exists so a pending block still carries a content-derived,
// order-sensitive commitment instead of a zero placeholder.
func DeriveSimpleRoot(hashes []common.Hash) common.Hash {
	if len(hashes) == 0 {
		return EmptyRootHash
	}
	buf := make([]byte, 0, len(hashes)*common.HashLength)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return crypto.Keccak256Hash(buf)
}
