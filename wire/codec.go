package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/brackishlabs/cardboard/box"
)

// variant tags. Order is wire-stable; do not renumber existing entries.
const (
	tagSearchingForPeers uint8 = iota
	tagImHere
	tagFindMetadata
	tagGotMetadata
	tagFindPiece
	tagGotPiece
	tagStartDownload
	tagUpload
)

// ErrUnknownVariant is returned by Decode when a packet's leading tag
// byte does not name one of the variants in this package. Per the
// protocol, an unrecognised discriminant must be rejected rather than
// guessed at.
var ErrUnknownVariant = errors.New("wire: unknown message variant")

// ErrEmptyPacket is returned by Decode when given zero bytes: there is
// no tag byte to read.
var ErrEmptyPacket = errors.New("wire: empty packet")

// Wire DTOs for each variant carrying fields. cbor has no compact
// encoding for a Go fixed-size byte array, so BoxHash crosses the wire
// as a plain byte string and is converted back at the Encode/Decode
// boundary.
type findMetadataWire struct {
	ID []byte `cbor:"1,keyasint"`
}

type gotMetadataWire struct {
	ID       []byte `cbor:"1,keyasint"`
	Metadata []byte `cbor:"2,keyasint"` // already box.Metadata-encoded
}

type pieceRefWire struct {
	ID         []byte `cbor:"1,keyasint"`
	FileIndex  uint32 `cbor:"2,keyasint"`
	PieceIndex uint32 `cbor:"3,keyasint"`
}

type uploadWire struct {
	ID         []byte `cbor:"1,keyasint"`
	FileIndex  uint32 `cbor:"2,keyasint"`
	PieceIndex uint32 `cbor:"3,keyasint"`
	ChunkIndex uint32 `cbor:"4,keyasint"`
	Data       []byte `cbor:"5,keyasint"`
}

// Encode serialises a Message to the bytes carried by one overlay
// packet: a one-byte variant tag followed by the variant's fields CBOR
// encoded (github.com/fxamacker/cbor; grounded on
// other_examples/manifests/WebFirstLanguage-beenet, a peer-to-peer
// stack that takes cbor as a direct dependency). The leading tag byte
// closes the otherwise self-describing CBOR payload over a fixed
// variant set, the same role it played over the hand-rolled scheme
// this replaces.
func Encode(msg Message) []byte {
	var tag uint8
	var payload []byte

	switch m := msg.(type) {
	case SearchingForPeers:
		tag = tagSearchingForPeers
	case ImHere:
		tag = tagImHere
	case FindMetadata:
		tag = tagFindMetadata
		payload = marshal(findMetadataWire{ID: m.ID[:]})
	case GotMetadata:
		tag = tagGotMetadata
		payload = marshal(gotMetadataWire{ID: m.ID[:], Metadata: m.Metadata.Encode()})
	case FindPiece:
		tag = tagFindPiece
		payload = marshal(pieceRefWire{ID: m.ID[:], FileIndex: uint32(m.FileIndex), PieceIndex: uint32(m.PieceIndex)})
	case GotPiece:
		tag = tagGotPiece
		payload = marshal(pieceRefWire{ID: m.ID[:], FileIndex: uint32(m.FileIndex), PieceIndex: uint32(m.PieceIndex)})
	case StartDownload:
		tag = tagStartDownload
		payload = marshal(pieceRefWire{ID: m.ID[:], FileIndex: uint32(m.FileIndex), PieceIndex: uint32(m.PieceIndex)})
	case Upload:
		tag = tagUpload
		payload = marshal(uploadWire{
			ID: m.ID[:], FileIndex: uint32(m.FileIndex), PieceIndex: uint32(m.PieceIndex),
			ChunkIndex: uint32(m.ChunkIndex), Data: m.Data,
		})
	default:
		panic(fmt.Sprintf("wire: Encode: unhandled message type %T", msg))
	}

	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

func marshal(v any) []byte {
	data, err := cbor.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("wire: encode payload: %v", err))
	}
	return data
}

// Decode parses the form Encode produces. It returns ErrUnknownVariant
// for any tag byte outside the closed set above, and wraps any
// malformed-payload error encountered while decoding a known variant's
// CBOR body.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}
	tag := data[0]
	body := data[1:]

	switch tag {
	case tagSearchingForPeers:
		return SearchingForPeers{}, nil
	case tagImHere:
		return ImHere{}, nil
	case tagFindMetadata:
		var w findMetadataWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("wire: decode FindMetadata: %w", err)
		}
		id, err := boxHashFrom(w.ID)
		if err != nil {
			return nil, fmt.Errorf("wire: decode FindMetadata: %w", err)
		}
		return FindMetadata{ID: id}, nil
	case tagGotMetadata:
		var w gotMetadataWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("wire: decode GotMetadata: %w", err)
		}
		id, err := boxHashFrom(w.ID)
		if err != nil {
			return nil, fmt.Errorf("wire: decode GotMetadata: %w", err)
		}
		metadata, err := box.DecodeMetadata(w.Metadata)
		if err != nil {
			return nil, fmt.Errorf("wire: decode GotMetadata metadata: %w", err)
		}
		return GotMetadata{ID: id, Metadata: metadata}, nil
	case tagFindPiece, tagGotPiece, tagStartDownload:
		var w pieceRefWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("wire: decode piece reference: %w", err)
		}
		id, err := boxHashFrom(w.ID)
		if err != nil {
			return nil, fmt.Errorf("wire: decode piece reference: %w", err)
		}
		switch tag {
		case tagFindPiece:
			return FindPiece{ID: id, FileIndex: int(w.FileIndex), PieceIndex: int(w.PieceIndex)}, nil
		case tagGotPiece:
			return GotPiece{ID: id, FileIndex: int(w.FileIndex), PieceIndex: int(w.PieceIndex)}, nil
		default:
			return StartDownload{ID: id, FileIndex: int(w.FileIndex), PieceIndex: int(w.PieceIndex)}, nil
		}
	case tagUpload:
		var w uploadWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("wire: decode Upload: %w", err)
		}
		id, err := boxHashFrom(w.ID)
		if err != nil {
			return nil, fmt.Errorf("wire: decode Upload: %w", err)
		}
		return Upload{ID: id, FileIndex: int(w.FileIndex), PieceIndex: int(w.PieceIndex), ChunkIndex: int(w.ChunkIndex), Data: w.Data}, nil
	default:
		return nil, ErrUnknownVariant
	}
}

func boxHashFrom(b []byte) (box.BoxHash, error) {
	var h box.BoxHash
	if len(b) != len(h) {
		return box.BoxHash{}, fmt.Errorf("box hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
