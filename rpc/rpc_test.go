package rpc

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/brackishlabs/cardboard/box"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		CreateBox{Name: "box", Path: "/tmp/x"},
		DownloadBox{Hash: box.BoxHash{1}, Path: "/tmp/y"},
		GetBoxState{Hash: box.BoxHash{2}},
		GetAllPeers{},
		GetAllBoxes{},
	}
	for _, want := range cases {
		got, err := DecodeRequest(EncodeRequest(want))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		Ok{},
		NotFound{},
		BoxCreated{Hash: box.BoxHash{3}},
		Peers{Addrs: []string{"10.0.0.1:25565", "10.0.0.2:25565"}},
		Box{State: BoxState{
			Name: "box",
			Hash: box.BoxHash{4},
			Files: []FileState{
				{Path: "a.bin", PiecesDownloaded: 1, TotalPieces: 2},
			},
		}},
		Boxes{States: []BoxState{{Name: "b", Hash: box.BoxHash{5}}}},
	}
	for _, want := range cases {
		got, err := DecodeResponse(EncodeResponse(want))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mismatch: got %+v, want %+v", got, want)
		}
	}
}

type fakeHandler struct {
	boxes map[box.BoxHash]BoxState
	peers []string
}

func (h *fakeHandler) CreateBox(name, path string) (box.BoxHash, error) {
	return box.BoxHash{9}, nil
}

func (h *fakeHandler) DownloadBox(hash box.BoxHash, path string) error {
	return nil
}

func (h *fakeHandler) GetBoxState(hash box.BoxHash) (BoxState, bool) {
	s, ok := h.boxes[hash]
	return s, ok
}

func (h *fakeHandler) GetAllPeers() []string {
	return h.peers
}

func (h *fakeHandler) GetAllBoxes() []BoxState {
	var out []BoxState
	for _, s := range h.boxes {
		out = append(out, s)
	}
	return out
}

func TestServerClient_endToEnd(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "cardboard.sock")
	handler := &fakeHandler{
		boxes: map[box.BoxHash]BoxState{
			{1}: {Name: "box", Hash: box.BoxHash{1}},
		},
		peers: []string{"10.0.0.1:25565"},
	}

	srv, err := Listen(sockPath, handler)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			srv.Accept()
		}
	}()

	resp, err := Call(sockPath, GetBoxState{Hash: box.BoxHash{1}})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := resp.(Box)
	if !ok || got.State.Name != "box" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp, err = Call(sockPath, GetBoxState{Hash: box.BoxHash{99}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := resp.(NotFound); !ok {
		t.Fatalf("expected NotFound, got %+v", resp)
	}

	srv.Close()
	<-done
}
