package box

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Metadata describes a box: its name and the ordered list of files it
// contains. It is what a host sends a receiver in response to
// FindMetadata, and what the receiver uses to materialize the box on
// disk; see FromMetadata.
type Metadata struct {
	Name  string
	Files []FileMeta
}

// FileMeta describes one file within a box: its path relative to the
// box's root directory, its declared byte length, and the ordered piece
// hashes a receiver verifies each PieceSize window against.
type FileMeta struct {
	Path   string
	Size   int
	Pieces []PieceHash
}

// metadataWire and fileMetaWire are the CBOR wire shapes for Metadata
// and FileMeta. cbor has no compact encoding for a Go fixed-size byte
// array, so piece hashes cross the wire as plain byte strings and are
// converted back to PieceHash at the Encode/Decode boundary; everything
// else marshals directly.
type metadataWire struct {
	Name  string         `cbor:"1,keyasint"`
	Files []fileMetaWire `cbor:"2,keyasint"`
}

type fileMetaWire struct {
	Path   string   `cbor:"1,keyasint"`
	Size   uint64   `cbor:"2,keyasint"`
	Pieces [][]byte `cbor:"3,keyasint"`
}

// Encode serialises metadata into the CBOR form used both for wire
// transfer and for folding into a box's hash. CBOR (github.com/
// fxamacker/cbor) is the self-describing binary codec spec §4.3 calls
// for, the closest available analogue to the original Rust's
// rmp_serde/MessagePack; it is grounded on
// other_examples/manifests/WebFirstLanguage-beenet, whose go.mod lists
// fxamacker/cbor as a direct dependency of a peer-to-peer networking
// stack.
func (m Metadata) Encode() []byte {
	w := metadataWire{Name: m.Name, Files: make([]fileMetaWire, len(m.Files))}
	for i, f := range m.Files {
		pieces := make([][]byte, len(f.Pieces))
		for j, h := range f.Pieces {
			pieces[j] = append([]byte(nil), h[:]...)
		}
		w.Files[i] = fileMetaWire{Path: f.Path, Size: uint64(f.Size), Pieces: pieces}
	}
	data, err := cbor.Marshal(w)
	if err != nil {
		panic(fmt.Sprintf("box: encode metadata: %v", err))
	}
	return data
}

// DecodeMetadata parses the form Encode produces.
func DecodeMetadata(data []byte) (Metadata, error) {
	var w metadataWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Metadata{}, fmt.Errorf("box: decode metadata: %w", err)
	}

	files := make([]FileMeta, len(w.Files))
	for i, f := range w.Files {
		pieces := make([]PieceHash, len(f.Pieces))
		for j, h := range f.Pieces {
			if len(h) != pieceHashSize {
				return Metadata{}, fmt.Errorf("box: decode metadata: file %d piece %d: %w", i, j, ErrInvalidInput)
			}
			copy(pieces[j][:], h)
		}
		files[i] = FileMeta{Path: f.Path, Size: int(f.Size), Pieces: pieces}
	}

	return Metadata{Name: w.Name, Files: files}, nil
}
