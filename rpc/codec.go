package rpc

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/brackishlabs/cardboard/box"
)

const (
	reqCreateBox uint8 = iota
	reqDownloadBox
	reqGetBoxState
	reqGetAllPeers
	reqGetAllBoxes
)

const (
	respOk uint8 = iota
	respNotFound
	respBoxCreated
	respPeers
	respBox
	respBoxes
)

// ErrUnknownVariant is returned when a decoded tag byte does not name a
// known request or response variant.
var ErrUnknownVariant = errors.New("rpc: unknown variant")

// ErrEmptyMessage is returned when given zero bytes: there is no tag
// byte to read.
var ErrEmptyMessage = errors.New("rpc: empty message")

// Wire DTOs. As in package wire, BoxHash crosses the wire as a plain
// byte string since cbor has no compact encoding for a Go fixed-size
// byte array.
type createBoxWire struct {
	Name string `cbor:"1,keyasint"`
	Path string `cbor:"2,keyasint"`
}

type downloadBoxWire struct {
	Hash []byte `cbor:"1,keyasint"`
	Path string `cbor:"2,keyasint"`
}

type getBoxStateWire struct {
	Hash []byte `cbor:"1,keyasint"`
}

type boxCreatedWire struct {
	Hash []byte `cbor:"1,keyasint"`
}

type peersWire struct {
	Addrs []string `cbor:"1,keyasint"`
}

type boxWire struct {
	State boxStateWire `cbor:"1,keyasint"`
}

type boxesWire struct {
	States []boxStateWire `cbor:"1,keyasint"`
}

type boxStateWire struct {
	Name  string         `cbor:"1,keyasint"`
	Hash  []byte         `cbor:"2,keyasint"`
	Files []fileStateWire `cbor:"3,keyasint"`
}

type fileStateWire struct {
	Path             string `cbor:"1,keyasint"`
	PiecesDownloaded uint32 `cbor:"2,keyasint"`
	TotalPieces      uint32 `cbor:"3,keyasint"`
}

// EncodeRequest serialises a Request the same way wire.Encode does: a
// one-byte tag followed by the variant's fields, CBOR encoded
// (github.com/fxamacker/cbor; same grounding and rationale as
// wire/codec.go).
func EncodeRequest(req Request) []byte {
	var tag uint8
	var payload []byte

	switch r := req.(type) {
	case CreateBox:
		tag = reqCreateBox
		payload = marshal(createBoxWire{Name: r.Name, Path: r.Path})
	case DownloadBox:
		tag = reqDownloadBox
		payload = marshal(downloadBoxWire{Hash: r.Hash[:], Path: r.Path})
	case GetBoxState:
		tag = reqGetBoxState
		payload = marshal(getBoxStateWire{Hash: r.Hash[:]})
	case GetAllPeers:
		tag = reqGetAllPeers
	case GetAllBoxes:
		tag = reqGetAllBoxes
	default:
		panic(fmt.Sprintf("rpc: EncodeRequest: unhandled type %T", req))
	}

	return frame(tag, payload)
}

// DecodeRequest parses the form EncodeRequest produces.
func DecodeRequest(data []byte) (Request, error) {
	tag, body, err := unframe(data)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode request: %w", err)
	}

	switch tag {
	case reqCreateBox:
		var w createBoxWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode CreateBox: %w", err)
		}
		return CreateBox{Name: w.Name, Path: w.Path}, nil
	case reqDownloadBox:
		var w downloadBoxWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode DownloadBox: %w", err)
		}
		hash, err := boxHashFrom(w.Hash)
		if err != nil {
			return nil, fmt.Errorf("rpc: decode DownloadBox: %w", err)
		}
		return DownloadBox{Hash: hash, Path: w.Path}, nil
	case reqGetBoxState:
		var w getBoxStateWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode GetBoxState: %w", err)
		}
		hash, err := boxHashFrom(w.Hash)
		if err != nil {
			return nil, fmt.Errorf("rpc: decode GetBoxState: %w", err)
		}
		return GetBoxState{Hash: hash}, nil
	case reqGetAllPeers:
		return GetAllPeers{}, nil
	case reqGetAllBoxes:
		return GetAllBoxes{}, nil
	default:
		return nil, ErrUnknownVariant
	}
}

// EncodeResponse serialises a Response the same way EncodeRequest does.
func EncodeResponse(resp Response) []byte {
	var tag uint8
	var payload []byte

	switch r := resp.(type) {
	case Ok:
		tag = respOk
	case NotFound:
		tag = respNotFound
	case BoxCreated:
		tag = respBoxCreated
		payload = marshal(boxCreatedWire{Hash: r.Hash[:]})
	case Peers:
		tag = respPeers
		payload = marshal(peersWire{Addrs: r.Addrs})
	case Box:
		tag = respBox
		payload = marshal(boxWire{State: toBoxStateWire(r.State)})
	case Boxes:
		tag = respBoxes
		states := make([]boxStateWire, len(r.States))
		for i, s := range r.States {
			states[i] = toBoxStateWire(s)
		}
		payload = marshal(boxesWire{States: states})
	default:
		panic(fmt.Sprintf("rpc: EncodeResponse: unhandled type %T", resp))
	}

	return frame(tag, payload)
}

// DecodeResponse parses the form EncodeResponse produces.
func DecodeResponse(data []byte) (Response, error) {
	tag, body, err := unframe(data)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode response: %w", err)
	}

	switch tag {
	case respOk:
		return Ok{}, nil
	case respNotFound:
		return NotFound{}, nil
	case respBoxCreated:
		var w boxCreatedWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode BoxCreated: %w", err)
		}
		hash, err := boxHashFrom(w.Hash)
		if err != nil {
			return nil, fmt.Errorf("rpc: decode BoxCreated: %w", err)
		}
		return BoxCreated{Hash: hash}, nil
	case respPeers:
		var w peersWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode Peers: %w", err)
		}
		return Peers{Addrs: w.Addrs}, nil
	case respBox:
		var w boxWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode Box: %w", err)
		}
		state, err := fromBoxStateWire(w.State)
		if err != nil {
			return nil, fmt.Errorf("rpc: decode Box: %w", err)
		}
		return Box{State: state}, nil
	case respBoxes:
		var w boxesWire
		if err := cbor.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("rpc: decode Boxes: %w", err)
		}
		states := make([]BoxState, len(w.States))
		for i, s := range w.States {
			state, err := fromBoxStateWire(s)
			if err != nil {
				return nil, fmt.Errorf("rpc: decode Boxes[%d]: %w", i, err)
			}
			states[i] = state
		}
		return Boxes{States: states}, nil
	default:
		return nil, ErrUnknownVariant
	}
}

func toBoxStateWire(s BoxState) boxStateWire {
	var files []fileStateWire
	if len(s.Files) > 0 {
		files = make([]fileStateWire, len(s.Files))
		for i, f := range s.Files {
			files[i] = fileStateWire{
				Path:             f.Path,
				PiecesDownloaded: uint32(f.PiecesDownloaded),
				TotalPieces:      uint32(f.TotalPieces),
			}
		}
	}
	return boxStateWire{Name: s.Name, Hash: s.Hash[:], Files: files}
}

func fromBoxStateWire(w boxStateWire) (BoxState, error) {
	hash, err := boxHashFrom(w.Hash)
	if err != nil {
		return BoxState{}, err
	}
	var files []FileState
	if len(w.Files) > 0 {
		files = make([]FileState, len(w.Files))
		for i, f := range w.Files {
			files[i] = FileState{
				Path:             f.Path,
				PiecesDownloaded: int(f.PiecesDownloaded),
				TotalPieces:      int(f.TotalPieces),
			}
		}
	}
	return BoxState{Name: w.Name, Hash: hash, Files: files}, nil
}

func boxHashFrom(b []byte) (box.BoxHash, error) {
	var h box.BoxHash
	if len(b) != len(h) {
		return box.BoxHash{}, fmt.Errorf("box hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func marshal(v any) []byte {
	data, err := cbor.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("rpc: encode payload: %v", err))
	}
	return data
}

func frame(tag uint8, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

func unframe(data []byte) (uint8, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrEmptyMessage
	}
	return data[0], data[1:], nil
}
