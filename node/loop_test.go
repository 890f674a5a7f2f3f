package node

import (
	"testing"
	"time"

	"github.com/brackishlabs/cardboard/overlay"
	"github.com/brackishlabs/cardboard/rpc"
	"github.com/brackishlabs/cardboard/wire"
)

func TestRunOnce_dispatchesInboundPacket(t *testing.T) {
	a, err := overlay.ListenEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := overlay.ListenEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	srv, err := rpc.Listen(t.TempDir()+"/c.sock", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	state := NewState(nil)
	n := New(state, b)

	if err := a.Send(b.LocalAddr(), wire.SearchingForPeers{}); err != nil {
		t.Fatal(err)
	}

	n.RunOnce(srv, b)

	if len(state.Peers()) != 1 {
		t.Fatalf("expected the SearchingForPeers sender to be recorded as a peer, got %d", len(state.Peers()))
	}
}

func TestRunOnce_fallsBackToSweepsOnTimeout(t *testing.T) {
	b, err := overlay.ListenEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	srv, err := rpc.Listen(t.TempDir()+"/c.sock", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	state := NewState(nil)
	n := New(state, b)

	start := time.Now()
	n.RunOnce(srv, b)
	if time.Since(start) < packetWait {
		t.Fatal("RunOnce should have waited out packetWait before falling back to sweeps")
	}
}
