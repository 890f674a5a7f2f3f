// Command cardboard-node runs the long-lived daemon: it listens for
// peers on the LAN broadcast domain, serves boxes it holds, pulls boxes
// it has been asked to download, and exposes the control-plane RPC
// socket that cardboardctl talks to.
package main

import (
	"flag"
	"log"
	"net"

	"github.com/brackishlabs/cardboard/box"
	"github.com/brackishlabs/cardboard/node"
	"github.com/brackishlabs/cardboard/overlay"
	"github.com/brackishlabs/cardboard/rpc"
)

func main() {
	sockPath := flag.String("socket", rpc.SocketPath, "control socket path")
	noFilter := flag.Bool("no-self-filter", false, "do not drop packets that appear to originate from this node")
	flag.Parse()

	ov, err := overlay.Listen()
	if err != nil {
		log.Fatalf("cardboard-node: %v", err)
	}
	defer ov.Close()

	var filterFrom net.IP
	if !*noFilter {
		filterFrom, err = overlay.LocalIP()
		if err != nil {
			log.Printf("cardboard-node: could not determine local IP, broadcast self-filtering disabled: %v", err)
		}
	}

	state := node.NewState(filterFrom)
	n := node.New(state, ov)

	srv, err := rpc.Listen(*sockPath, &handler{state: state})
	if err != nil {
		log.Fatalf("cardboard-node: %v", err)
	}
	defer srv.Close()

	log.Printf("cardboard-node: listening on UDP %d, control socket %s", overlay.Port, *sockPath)
	for {
		n.RunOnce(srv, ov)
	}
}

// handler adapts node.State to rpc.Handler.
type handler struct {
	state *node.State
}

func (h *handler) CreateBox(name, path string) (box.BoxHash, error) {
	b, err := box.Create(name, path)
	if err != nil {
		return box.BoxHash{}, err
	}
	h.state.AddBox(b)
	return b.Hash, nil
}

func (h *handler) DownloadBox(hash box.BoxHash, path string) error {
	if _, ok := h.state.Box(hash); ok {
		return nil
	}
	if _, ok := h.state.IsDesired(hash); ok {
		return nil
	}
	h.state.Desire(hash, path)
	return nil
}

func (h *handler) GetBoxState(hash box.BoxHash) (rpc.BoxState, bool) {
	b, ok := h.state.Box(hash)
	if !ok {
		return rpc.BoxState{}, false
	}
	return boxState(b), true
}

func (h *handler) GetAllPeers() []string {
	var out []string
	for _, a := range h.state.Peers() {
		out = append(out, a.String())
	}
	return out
}

func (h *handler) GetAllBoxes() []rpc.BoxState {
	var out []rpc.BoxState
	for _, b := range h.state.Boxes() {
		out = append(out, boxState(b))
	}
	return out
}

func boxState(b *box.Box) rpc.BoxState {
	files := make([]rpc.FileState, len(b.Files))
	for i, f := range b.Files {
		total := len(f.Pieces())
		files[i] = rpc.FileState{
			Path:             b.Metadata.Files[i].Path,
			PiecesDownloaded: total - len(f.NeededPieces()),
			TotalPieces:      total,
		}
	}
	return rpc.BoxState{Name: b.Metadata.Name, Hash: b.Hash, Files: files}
}
