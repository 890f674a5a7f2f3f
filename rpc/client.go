package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Call dials the control socket at path, sends req, and returns the
// decoded response. One request per connection, matching the server's
// half-close lifecycle.
func Call(path string, req Request) (Response, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", path, err)
	}
	defer conn.Close()

	encoded := EncodeRequest(req)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(encoded)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("rpc: write request length: %w", err)
	}
	if _, err := conn.Write(encoded); err != nil {
		return nil, fmt.Errorf("rpc: write request body: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	respLenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, respLenBuf); err != nil {
		return nil, fmt.Errorf("rpc: read response length: %w", err)
	}
	body := make([]byte, binary.LittleEndian.Uint32(respLenBuf))
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("rpc: read response body: %w", err)
	}

	resp, err := DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode response: %w", err)
	}
	return resp, nil
}
