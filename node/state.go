// Package node implements the single-threaded orchestrator: the state a
// running node holds (known boxes, known peers, desired-but-not-yet-
// materialized boxes), the inbound message dispatch table, and the
// periodic sweeps that drive discovery and transfer.
package node

import (
	"net"

	"github.com/brackishlabs/cardboard/box"
)

// desired records a box a node wants but has not yet received metadata
// for: the directory it should be materialized under once GotMetadata
// arrives.
type desired struct {
	destDir string
}

// State holds everything the orchestrator needs between iterations of
// its event loop. It is touched by exactly one goroutine (the event
// loop), so none of its fields are synchronised; see Node.
type State struct {
	boxes      map[box.BoxHash]*box.Box
	peers      map[string]*net.UDPAddr
	lookingFor map[box.BoxHash]desired
	filterFrom net.IP
}

// NewState creates empty node state. filterFrom, if non-nil, is the
// node's own LAN address: packets arriving from it are dropped before
// dispatch so a node never treats its own broadcasts as a new peer.
func NewState(filterFrom net.IP) *State {
	return &State{
		boxes:      make(map[box.BoxHash]*box.Box),
		peers:      make(map[string]*net.UDPAddr),
		lookingFor: make(map[box.BoxHash]desired),
		filterFrom: filterFrom,
	}
}

// ShouldFilter reports whether a packet arriving from addr should be
// dropped before dispatch because it is this node's own broadcast
// looping back.
func (s *State) ShouldFilter(addr *net.UDPAddr) bool {
	return s.filterFrom != nil && addr != nil && s.filterFrom.Equal(addr.IP)
}

// AddPeer records a peer's address. A peer already known is a no-op.
func (s *State) AddPeer(addr *net.UDPAddr) {
	s.peers[addr.String()] = addr
}

// Peers returns every known peer address. Order is unspecified.
func (s *State) Peers() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(s.peers))
	for _, a := range s.peers {
		out = append(out, a)
	}
	return out
}

// Box looks up a locally held box by hash.
func (s *State) Box(hash box.BoxHash) (*box.Box, bool) {
	b, ok := s.boxes[hash]
	return b, ok
}

// AddBox installs a fully-formed box (created locally, or materialized
// after GotMetadata) under its hash.
func (s *State) AddBox(b *box.Box) {
	s.boxes[b.Hash] = b
}

// Boxes returns every locally held box.
func (s *State) Boxes() map[box.BoxHash]*box.Box {
	return s.boxes
}

// Desire records hash as wanted, to be materialized under destDir once
// its metadata arrives. A hash already desired or already held is left
// untouched by the caller (cmd/cardboard-node's handler.DownloadBox
// checks both first).
func (s *State) Desire(hash box.BoxHash, destDir string) {
	s.lookingFor[hash] = desired{destDir: destDir}
}

// IsDesired reports whether hash is still awaiting metadata.
func (s *State) IsDesired(hash box.BoxHash) (string, bool) {
	d, ok := s.lookingFor[hash]
	return d.destDir, ok
}

// ResolveDesire removes hash from the desired set, which GotMetadata
// does unconditionally on first receipt so later duplicate replies are
// ignored (see §5: "GotMetadata is processed at most once per hash").
func (s *State) ResolveDesire(hash box.BoxHash) {
	delete(s.lookingFor, hash)
}

// LookingFor returns every hash still awaiting metadata.
func (s *State) LookingFor() []box.BoxHash {
	out := make([]box.BoxHash, 0, len(s.lookingFor))
	for h := range s.lookingFor {
		out = append(out, h)
	}
	return out
}
