package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ErrNoReply is returned when an echo request times out without a reply
var ErrNoReply = errors.New("no echo reply")

const protocolICMP = 1

// ICMPPinger sends ICMP echo requests. It prefers an unprivileged datagram
// socket and falls back to a raw socket.
type ICMPPinger struct {
	timeout time.Duration
	id      int
	seq     atomic.Uint32
}

// NewICMPPinger creates a pinger with a per-attempt timeout
func NewICMPPinger(timeout time.Duration) *ICMPPinger {
	return &ICMPPinger{
		timeout: timeout,
		id:      os.Getpid() & 0xffff,
	}
}

func (p *ICMPPinger) listen() (*icmp.PacketConn, string, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, "udp4", nil
	}

	conn, rawErr := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if rawErr != nil {
		return nil, "", fmt.Errorf("open icmp socket: %w", errors.Join(err, rawErr))
	}

	return conn, "ip4:icmp", nil
}

// Ping sends one echo request to address and waits for the matching reply
func (p *ICMPPinger) Ping(ctx context.Context, address string) (time.Duration, error) {
	dst, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", address, err)
	}

	conn, network, err := p.listen()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: []byte("netsentry"),
		},
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	var target net.Addr = dst
	if network == "udp4" {
		target = &net.UDPAddr{IP: dst.IP}
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, target); err != nil {
		return 0, fmt.Errorf("send echo: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, ErrNoReply
			}
			return 0, fmt.Errorf("read reply: %w", err)
		}

		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// The kernel rewrites the identifier on datagram sockets
		if network == "ip4:icmp" && echo.ID != p.id {
			continue
		}
		if !peerIP(peer).Equal(dst.IP) {
			continue
		}

		return time.Since(start), nil
	}
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}
