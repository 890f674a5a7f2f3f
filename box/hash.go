// Package box implements the content-addressing and piece model: hashing
// a directory tree into a stable box identity, splitting it into
// fixed-size pieces, and reassembling it on a receiving peer with
// incremental verification against a memory-mapped destination.
package box

import (
	"hash"

	"golang.org/x/crypto/blake2s"
)

const (
	// PieceSize is the window size a file is split into for hashing,
	// requesting and transfer bookkeeping. The final piece of a file may
	// be shorter.
	PieceSize = 48_000
	// ChunkSize is the unit of wire transmission within a piece.
	ChunkSize = 256

	pieceHashSize = 16
	boxHashSize   = 24
)

// PieceHash is the Blake2s digest identifying a single piece.
type PieceHash [pieceHashSize]byte

// BoxHash identifies a box: the domain identifier peers exchange to find
// and verify a bundle. FileHash is the same width, used internally while
// folding a box's file hashes into the box hash.
type (
	BoxHash  [boxHashSize]byte
	FileHash [boxHashSize]byte
)

// newPieceHasher returns a fresh 16-byte Blake2s hasher.
func newPieceHasher() hash.Hash {
	h, err := blake2s.New(pieceHashSize, nil)
	if err != nil {
		// Only returns an error for a bad key or out-of-range size, both
		// of which are compile-time constants here.
		panic(err)
	}
	return h
}

// newBoxHasher returns a fresh 24-byte Blake2s hasher, used both for
// per-file hashes and for the whole-box hash.
func newBoxHasher() hash.Hash {
	h, err := blake2s.New(boxHashSize, nil)
	if err != nil {
		panic(err)
	}
	return h
}

// sumPiece computes the 16-byte Blake2s digest of a single piece window.
func sumPiece(data []byte) PieceHash {
	h := newPieceHasher()
	h.Write(data)
	var out PieceHash
	copy(out[:], h.Sum(nil))
	return out
}

// SumPiece computes the 16-byte Blake2s digest of a piece window. It is
// the same digest MappedFile uses internally, exported so callers beyond
// this package can compute the expected hash for a piece of known
// content without constructing a MappedFile.
func SumPiece(data []byte) PieceHash {
	return sumPiece(data)
}
