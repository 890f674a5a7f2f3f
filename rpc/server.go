package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/brackishlabs/cardboard/box"
)

// Handler executes requests against live node state. It is implemented
// by the node package's glue code in cmd/cardboard-node, kept as an
// interface here so this package never imports node (node already
// imports wire and overlay; rpc stays a leaf).
type Handler interface {
	CreateBox(name, path string) (box.BoxHash, error)
	DownloadBox(hash box.BoxHash, path string) error
	GetBoxState(hash box.BoxHash) (BoxState, bool)
	GetAllPeers() []string
	GetAllBoxes() []BoxState
}

// Server listens on a Unix socket and serves one request per connection.
type Server struct {
	listener net.Listener
	handler  Handler
}

// Listen removes any stale socket at path and binds a fresh one.
func Listen(path string, handler Handler) (*Server, error) {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen on %s: %w", path, err)
	}
	return &Server{listener: l, handler: handler}, nil
}

// Accept accepts and serves exactly one pending connection if one is
// ready, per §4.5 step 1 ("if the local control socket has a pending
// connection, accept it non-blocking..."). The listener must be a
// *net.UnixListener to support the short deadline below; a deadline that
// has already passed would make Accept time out without ever accepting.
func (s *Server) Accept() {
	ul, ok := s.listener.(*net.UnixListener)
	if !ok {
		return
	}
	ul.SetDeadline(time.Now().Add(time.Millisecond))
	conn, err := ul.Accept()
	if err != nil {
		return
	}
	s.serve(conn)
}

// Close releases the listening socket.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		log.Printf("rpc: read request length: %v", err)
		return
	}
	body := make([]byte, binary.LittleEndian.Uint32(lenBuf))
	if _, err := io.ReadFull(conn, body); err != nil {
		log.Printf("rpc: read request body: %v", err)
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		log.Printf("rpc: decode request: %v", err)
		return
	}

	resp := s.dispatch(req)
	encoded := EncodeResponse(resp)

	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(len(encoded)))
	if _, err := conn.Write(out[:]); err != nil {
		log.Printf("rpc: write response length: %v", err)
		return
	}
	if _, err := conn.Write(encoded); err != nil {
		log.Printf("rpc: write response body: %v", err)
		return
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}
}

func (s *Server) dispatch(req Request) Response {
	switch r := req.(type) {
	case CreateBox:
		hash, err := s.handler.CreateBox(r.Name, r.Path)
		if err != nil {
			log.Printf("rpc: CreateBox(%q, %q): %v", r.Name, r.Path, err)
			return NotFound{}
		}
		return BoxCreated{Hash: hash}
	case DownloadBox:
		if err := s.handler.DownloadBox(r.Hash, r.Path); err != nil {
			log.Printf("rpc: DownloadBox(%x, %q): %v", r.Hash, r.Path, err)
			return NotFound{}
		}
		return Ok{}
	case GetBoxState:
		state, ok := s.handler.GetBoxState(r.Hash)
		if !ok {
			return NotFound{}
		}
		return Box{State: state}
	case GetAllPeers:
		return Peers{Addrs: s.handler.GetAllPeers()}
	case GetAllBoxes:
		return Boxes{States: s.handler.GetAllBoxes()}
	default:
		return NotFound{}
	}
}
