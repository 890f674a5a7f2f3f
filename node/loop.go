package node

import (
	"time"

	"github.com/brackishlabs/cardboard/overlay"
	"github.com/brackishlabs/cardboard/rpc"
)

const packetWait = 400 * time.Millisecond

// RunOnce executes a single iteration of the event loop described in
// spec §4.5: serve one pending control-socket request if any, maybe
// broadcast peer search, then wait up to 400ms for an inbound packet
// before falling back to the periodic discovery/transfer sweeps.
// It returns after that one iteration; callers loop it forever (see
// cmd/cardboard-node).
func (n *Node) RunOnce(srv *rpc.Server, ov *overlay.Overlay) {
	srv.Accept()
	n.MaybeBroadcastPeerSearch(time.Now())

	select {
	case pkt := <-ov.Events():
		if n.State.ShouldFilter(pkt.From) {
			return
		}
		n.Dispatch(pkt.From, pkt.Msg)
	case <-time.After(packetWait):
		n.SearchForMetadata()
		n.SearchForPieces()
	}
}
