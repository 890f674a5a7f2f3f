// Package overlay is the concrete stand-in for the datagram reliability
// overlay the specification treats as an external collaborator (see §6):
// a broadcast-capable UDP socket, a background read loop that decodes
// wire.Message packets onto a channel, and a send path. The protocol
// above already tolerates loss (every request with no response is
// simply re-emitted on the node's next periodic sweep), so this overlay
// does not itself retransmit; Reliable/unreliable is carried only as a
// hint for a future transport swap, not as distinct behavior here.
//
// Grounded on the teacher's dht/dht.go readLoop: a deadline-bounded
// ReadFromUDP loop selecting on a shutdown channel, handing decoded
// messages off so the caller's single-threaded loop never blocks on
// socket I/O.
package overlay

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/brackishlabs/cardboard/wire"
)

// Port is the fixed UDP port every node listens and broadcasts on.
const Port = 25565

// BroadcastAddr is the destination for periodic peer search.
const BroadcastAddr = "255.255.255.255:25565"

const maxPacketSize = 65507

const readDeadline = 500 * time.Millisecond

// Packet pairs a decoded message with the address it arrived from.
type Packet struct {
	From *net.UDPAddr
	Msg  wire.Message
}

// Overlay owns the UDP socket and the background read loop.
type Overlay struct {
	conn   *net.UDPConn
	events chan Packet

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Listen binds a broadcast-capable UDP socket on Port and starts the
// background read loop. Close stops the loop and releases the socket.
func Listen() (*Overlay, error) {
	return listenOn(Port)
}

// ListenEphemeral binds to an OS-assigned port instead of the fixed
// Port, so tests in other packages can run more than one Overlay in the
// same process without a port conflict. Production code always uses
// Listen.
func ListenEphemeral() (*Overlay, error) {
	return listenOn(0)
}

// LocalAddr returns the address this overlay's socket is bound to.
func (o *Overlay) LocalAddr() *net.UDPAddr {
	return o.conn.LocalAddr().(*net.UDPAddr)
}

func listenOn(port int) (*Overlay, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("overlay: listen on port %d: %w", port, err)
	}

	o := &Overlay{
		conn:     conn,
		events:   make(chan Packet, 64),
		shutdown: make(chan struct{}),
	}
	o.wg.Add(1)
	go o.readLoop()
	return o, nil
}

// Events yields every successfully decoded inbound packet. Packets that
// fail to decode (malformed, or tagged with an unknown variant) are
// dropped silently per §7's "malformed packet: discard silently".
func (o *Overlay) Events() <-chan Packet {
	return o.events
}

// Send transmits msg to addr as a single best-effort UDP write.
// msg.Reliable() is not consulted: reliable and unreliable variants
// are sent the same way.
func (o *Overlay) Send(addr *net.UDPAddr, msg wire.Message) error {
	_, err := o.conn.WriteToUDP(wire.Encode(msg), addr)
	return err
}

// Broadcast sends an unreliable SearchingForPeers-style message to the
// LAN broadcast address.
func (o *Overlay) Broadcast(msg wire.Message) error {
	addr, err := net.ResolveUDPAddr("udp4", BroadcastAddr)
	if err != nil {
		return fmt.Errorf("overlay: resolve broadcast address: %w", err)
	}
	return o.Send(addr, msg)
}

// LocalIP reports the IP address this overlay's socket would use to
// reach the network, which is also the address the node filters its own
// broadcasts by (see §4.4's loopback filtering and §9's "detect local
// addresses before binding"). It works by dialing a UDP "connection" (no
// packet is actually sent) and reading back the chosen local address,
// since no local-interface-enumeration library appears anywhere in the
// example pack.
func LocalIP() (net.IP, error) {
	conn, err := net.Dial("udp4", "255.255.255.255:1")
	if err != nil {
		return nil, fmt.Errorf("overlay: determine local IP: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

// Close stops the read loop and releases the socket.
func (o *Overlay) Close() error {
	close(o.shutdown)
	err := o.conn.Close()
	o.wg.Wait()
	return err
}

func (o *Overlay) readLoop() {
	defer o.wg.Done()
	buf := make([]byte, maxPacketSize)

	for {
		select {
		case <-o.shutdown:
			return
		default:
		}

		o.conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, addr, err := o.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-o.shutdown:
				return
			default:
				log.Printf("overlay: read error: %v", err)
				continue
			}
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			continue
		}

		select {
		case o.events <- Packet{From: addr, Msg: msg}:
		case <-o.shutdown:
			return
		}
	}
}
