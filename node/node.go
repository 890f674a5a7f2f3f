package node

import (
	"log"
	"net"
	"time"

	"github.com/brackishlabs/cardboard/box"
	"github.com/brackishlabs/cardboard/wire"
)

const (
	peerSearchInterval  = 20 * time.Second
	interChunkPause     = 30 * time.Millisecond
	interPieceSearchGap = 10 * time.Millisecond
)

// sender is the subset of *overlay.Overlay a Node needs; accepting an
// interface here keeps the dispatch and sweep logic testable without a
// real socket.
type sender interface {
	Send(addr *net.UDPAddr, msg wire.Message) error
	Broadcast(msg wire.Message) error
}

// Node wires State to an outbound transport and implements the dispatch
// table of §4.4 and the periodic sweeps of the same section. It assumes
// single-threaded use: Dispatch, SearchForMetadata, SearchForPieces and
// MaybeBroadcastPeerSearch must never run concurrently with each other,
// which the event loop in RunOnce guarantees by construction.
type Node struct {
	State *State
	out   sender

	lastBroadcast time.Time
}

// New creates a Node that sends through out.
func New(state *State, out sender) *Node {
	return &Node{State: state, out: out}
}

// Dispatch handles one inbound packet per §4.4's table. Packets from the
// node's own filtered address are dropped by the caller (see
// State.ShouldFilter) before Dispatch is called.
func (n *Node) Dispatch(from *net.UDPAddr, msg wire.Message) {
	switch m := msg.(type) {
	case wire.SearchingForPeers:
		n.State.AddPeer(from)
		n.send(from, wire.ImHere{})

	case wire.ImHere:
		n.State.AddPeer(from)

	case wire.FindMetadata:
		b, ok := n.State.Box(m.ID)
		if !ok {
			return
		}
		n.send(from, wire.GotMetadata{ID: m.ID, Metadata: b.Metadata})

	case wire.GotMetadata:
		destDir, ok := n.State.IsDesired(m.ID)
		if !ok {
			return
		}
		n.State.ResolveDesire(m.ID)
		b, err := box.FromMetadata(destDir, m.ID, m.Metadata)
		if err != nil {
			log.Printf("node: materializing box %x: %v", m.ID, err)
			return
		}
		n.State.AddBox(b)

	case wire.FindPiece:
		b, ok := n.State.Box(m.ID)
		if !ok || m.FileIndex >= len(b.Files) {
			return
		}
		if b.Files[m.FileIndex].HasPiece(m.PieceIndex) {
			n.send(from, wire.GotPiece{ID: m.ID, FileIndex: m.FileIndex, PieceIndex: m.PieceIndex})
		}

	case wire.GotPiece:
		b, ok := n.State.Box(m.ID)
		if !ok || m.FileIndex >= len(b.Files) {
			return
		}
		if !b.Files[m.FileIndex].HasPiece(m.PieceIndex) {
			n.send(from, wire.StartDownload{ID: m.ID, FileIndex: m.FileIndex, PieceIndex: m.PieceIndex})
		}

	case wire.StartDownload:
		n.handleStartDownload(from, m)

	case wire.Upload:
		b, ok := n.State.Box(m.ID)
		if !ok || m.FileIndex >= len(b.Files) {
			return
		}
		f := b.Files[m.FileIndex]
		if !f.HasPiece(m.PieceIndex) {
			f.WriteChunk(m.PieceIndex, m.ChunkIndex, m.Data)
			if f.HasPiece(m.PieceIndex) && b.Complete() {
				if err := b.VerifyComplete(); err != nil {
					log.Printf("node: box %x complete: %v", m.ID, err)
				}
			}
		}
	}
}

// handleStartDownload streams every chunk of the requested piece to
// from, pausing interChunkPause between sends. This blocks the event
// loop for the duration of the upload, matching §4.4's "sleeping 30 ms
// between sends": the orchestrator is explicitly single-threaded and
// the pacing is itself the only flow control the system has.
func (n *Node) handleStartDownload(from *net.UDPAddr, m wire.StartDownload) {
	b, ok := n.State.Box(m.ID)
	if !ok || m.FileIndex >= len(b.Files) {
		return
	}
	data, ok := b.Files[m.FileIndex].ReadPiece(m.PieceIndex)
	if !ok {
		return
	}

	total := (len(data) + box.ChunkSize - 1) / box.ChunkSize
	for i := 0; i < total; i++ {
		start := i * box.ChunkSize
		end := start + box.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		n.send(from, wire.Upload{
			ID: m.ID, FileIndex: m.FileIndex, PieceIndex: m.PieceIndex,
			ChunkIndex: i, Data: data[start:end],
		})
		if i != total-1 {
			time.Sleep(interChunkPause)
		}
	}
}

// SearchForMetadata asks every known peer for every box still awaited.
func (n *Node) SearchForMetadata() {
	for _, hash := range n.State.LookingFor() {
		for _, peer := range n.State.Peers() {
			n.send(peer, wire.FindMetadata{ID: hash})
		}
	}
}

// SearchForPieces asks every known peer about every outstanding piece of
// every locally held box, pausing interPieceSearchGap between requests
// to avoid flooding slow peers.
func (n *Node) SearchForPieces() {
	peers := n.State.Peers()
	if len(peers) == 0 {
		return
	}
	for _, b := range n.State.Boxes() {
		for _, need := range b.NeededPieces() {
			for _, pieceIndex := range need.Pieces {
				for _, peer := range peers {
					n.send(peer, wire.FindPiece{ID: b.Hash, FileIndex: need.FileIndex, PieceIndex: pieceIndex})
					time.Sleep(interPieceSearchGap)
				}
			}
		}
	}
}

// MaybeBroadcastPeerSearch sends SearchingForPeers if the peer-search
// interval has elapsed since the last broadcast (or none has been sent
// yet), per §4.4. The peer set plays no part: an empty peer set does not
// bring the broadcast forward. now is passed in so callers control the
// clock.
func (n *Node) MaybeBroadcastPeerSearch(now time.Time) {
	if now.Sub(n.lastBroadcast) < peerSearchInterval {
		return
	}
	if err := n.out.Broadcast(wire.SearchingForPeers{}); err != nil {
		log.Printf("node: broadcast SearchingForPeers: %v", err)
	}
	n.lastBroadcast = now
}

func (n *Node) send(addr *net.UDPAddr, msg wire.Message) {
	if err := n.out.Send(addr, msg); err != nil {
		log.Printf("node: send %T to %s: %v", msg, addr, err)
	}
}
