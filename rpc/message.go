// Package rpc implements the control-plane protocol exposed over a
// local Unix-domain socket: one request per connection, one response,
// then both directions half-close (see original_source's rpc-client.rs
// for the reference shape this was distilled from).
package rpc

import "github.com/brackishlabs/cardboard/box"

// SocketPath is the fixed filesystem path the server listens on and the
// client dials. The server removes and recreates it at startup.
const SocketPath = "/var/run/cardboard.sock"

// Request is the closed set of calls a client may issue.
type Request interface {
	request()
}

// CreateBox asks the node to hash directory Path into a new box named
// Name and hold it locally.
type CreateBox struct {
	Name string
	Path string
}

// DownloadBox asks the node to fetch the box identified by Hash and
// materialize it under Path once metadata is found.
type DownloadBox struct {
	Hash box.BoxHash
	Path string
}

// GetBoxState asks for the download/seed progress of one known box.
type GetBoxState struct {
	Hash box.BoxHash
}

// GetAllPeers asks for every peer address the node currently knows.
type GetAllPeers struct{}

// GetAllBoxes asks for the state of every box the node holds. Boxes
// still awaiting metadata are not included.
type GetAllBoxes struct{}

func (CreateBox) request()    {}
func (DownloadBox) request()  {}
func (GetBoxState) request()  {}
func (GetAllPeers) request()  {}
func (GetAllBoxes) request()  {}

// Response is the closed set of replies a server may return.
type Response interface {
	response()
}

// Ok acknowledges a request with no further data to report.
type Ok struct{}

// NotFound answers GetBoxState for a hash the node has no record of.
type NotFound struct{}

// BoxCreated answers CreateBox with the new box's hash.
type BoxCreated struct {
	Hash box.BoxHash
}

// Peers answers GetAllPeers.
type Peers struct {
	Addrs []string
}

// Box answers GetBoxState with one box's progress.
type Box struct {
	State BoxState
}

// Boxes answers GetAllBoxes with every known box's progress.
type Boxes struct {
	States []BoxState
}

func (Ok) response()         {}
func (NotFound) response()   {}
func (BoxCreated) response() {}
func (Peers) response()      {}
func (Box) response()        {}
func (Boxes) response()      {}

// BoxState reports a box's name, hash, and per-file download progress.
type BoxState struct {
	Name  string
	Hash  box.BoxHash
	Files []FileState
}

// FileState reports one file's progress within a box.
type FileState struct {
	Path             string
	PiecesDownloaded int
	TotalPieces      int
}
