package wire

import (
	"reflect"
	"testing"

	"github.com/brackishlabs/cardboard/box"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	encoded := Encode(msg)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return decoded
}

func TestRoundTrip_simpleVariants(t *testing.T) {
	cases := []Message{
		SearchingForPeers{},
		ImHere{},
		FindMetadata{ID: box.BoxHash{1, 2, 3}},
		FindPiece{ID: box.BoxHash{4}, FileIndex: 1, PieceIndex: 2},
		GotPiece{ID: box.BoxHash{5}, FileIndex: 3, PieceIndex: 4},
		StartDownload{ID: box.BoxHash{6}, FileIndex: 5, PieceIndex: 6},
		Upload{ID: box.BoxHash{7}, FileIndex: 1, PieceIndex: 2, ChunkIndex: 3, Data: []byte("chunk")},
	}

	for _, want := range cases {
		got := roundTrip(t, want)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestRoundTrip_gotMetadata(t *testing.T) {
	want := GotMetadata{
		ID: box.BoxHash{9},
		Metadata: box.Metadata{
			Name: "a box",
			Files: []box.FileMeta{
				{Path: "a.bin", Size: 10, Pieces: []box.PieceHash{{1}}},
			},
		},
	}
	got := roundTrip(t, want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecode_unknownVariantRejected(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	if err != ErrUnknownVariant {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestDecode_truncatedInputFails(t *testing.T) {
	full := Encode(FindMetadata{ID: box.BoxHash{1}})
	_, err := Decode(full[:len(full)-1])
	if err == nil {
		t.Fatal("expected an error decoding truncated input")
	}
}

func TestReliable(t *testing.T) {
	if (SearchingForPeers{}).Reliable() {
		t.Fatal("SearchingForPeers must be unreliable")
	}
	for _, msg := range []Message{
		ImHere{}, FindMetadata{}, GotMetadata{}, FindPiece{}, GotPiece{}, StartDownload{}, Upload{},
	} {
		if !msg.Reliable() {
			t.Errorf("%T should be dispatched reliably", msg)
		}
	}
}
