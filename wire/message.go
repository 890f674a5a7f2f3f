// Package wire implements the tagged message variants exchanged between
// nodes and their serialization to and from the bytes carried by the
// overlay's packets (see package overlay).
package wire

import "github.com/brackishlabs/cardboard/box"

// Message is the closed set of variants a node may send or receive.
// Concrete types are unexported-method-gated the same way box.pieceState
// is: only types declared in this package can satisfy it, so a switch
// over Message is exhaustive by construction.
type Message interface {
	message()
	// Reliable reports whether this variant must be dispatched over the
	// overlay's reliable-unordered path. Only SearchingForPeers travels
	// unreliably, since it is broadcast and repeated periodically on its
	// own regardless of loss.
	Reliable() bool
}

// SearchingForPeers is broadcast to discover peers on the LAN.
type SearchingForPeers struct{}

// ImHere answers a SearchingForPeers broadcast directly to its sender.
type ImHere struct{}

// FindMetadata asks a peer for a box's metadata.
type FindMetadata struct {
	ID box.BoxHash
}

// GotMetadata answers FindMetadata with the box's full metadata.
type GotMetadata struct {
	ID       box.BoxHash
	Metadata box.Metadata
}

// FindPiece asks a peer whether it holds a given piece.
type FindPiece struct {
	ID         box.BoxHash
	FileIndex  int
	PieceIndex int
}

// GotPiece tells a peer that we hold a piece it has asked about, and
// invites it to request the transfer.
type GotPiece struct {
	ID         box.BoxHash
	FileIndex  int
	PieceIndex int
}

// StartDownload asks the receiving peer to begin sending a piece's chunks.
type StartDownload struct {
	ID         box.BoxHash
	FileIndex  int
	PieceIndex int
}

// Upload carries one chunk of a piece's bytes.
type Upload struct {
	ID         box.BoxHash
	FileIndex  int
	PieceIndex int
	ChunkIndex int
	Data       []byte
}

func (SearchingForPeers) message() {}
func (ImHere) message()            {}
func (FindMetadata) message()      {}
func (GotMetadata) message()       {}
func (FindPiece) message()         {}
func (GotPiece) message()          {}
func (StartDownload) message()     {}
func (Upload) message()            {}

func (SearchingForPeers) Reliable() bool { return false }
func (ImHere) Reliable() bool            { return true }
func (FindMetadata) Reliable() bool      { return true }
func (GotMetadata) Reliable() bool       { return true }
func (FindPiece) Reliable() bool         { return true }
func (GotPiece) Reliable() bool          { return true }
func (StartDownload) Reliable() bool     { return true }
func (Upload) Reliable() bool            { return true }
