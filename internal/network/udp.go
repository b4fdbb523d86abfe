// Package network owns the UDP socket the peer loop reads and writes. The
// socket binds with SO_REUSEADDR so a battle can restart on the same port
// immediately, and can optionally be opened for broadcast sends.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxDatagramBytes sizes the read buffer. A maximal sticker message encodes
// to well under 64 KiB, the UDP payload ceiling.
const MaxDatagramBytes = 64 * 1024

// Conn is a bound UDP socket. Reads take a deadline so the owning loop can
// poll cooperatively; writes are addressed per datagram.
type Conn struct {
	logger zerolog.Logger
	conn   *net.UDPConn
}

// Listen binds a UDP socket on port. Port 0 asks the kernel for an ephemeral
// port; LocalAddr reports the bound address either way. With broadcast set,
// the socket may also send to the limited broadcast address.
func Listen(ctx context.Context, port int, broadcast bool) (*Conn, error) {
	lc := ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding udp port %d: %w", port, err)
	}
	conn := pc.(*net.UDPConn)

	if broadcast {
		if err := enableBroadcast(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enabling broadcast on port %d: %w", port, err)
		}
	}

	c := &Conn{
		logger: log.With().Str("component", "network").Logger(),
		conn:   conn,
	}
	c.logger.Info().
		Str("addr", conn.LocalAddr().String()).
		Bool("broadcast", broadcast).
		Msg("udp socket bound")
	return c, nil
}

// LocalAddr returns the bound address.
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// WriteTo transmits one datagram to dest.
func (c *Conn) WriteTo(data []byte, dest netip.AddrPort) error {
	if _, err := c.conn.WriteToUDPAddrPort(data, dest); err != nil {
		return fmt.Errorf("udp write to %s: %w", dest, err)
	}
	return nil
}

// ReadFrom waits for one datagram until deadline. A deadline expiry returns
// ErrReadTimeout so the caller can tick its timers and poll again.
func (c *Conn) ReadFrom(buf []byte, deadline time.Time) (int, netip.AddrPort, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, netip.AddrPort{}, err
	}
	n, src, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, ErrReadTimeout
		}
		return 0, netip.AddrPort{}, err
	}
	return n, src, nil
}

// Close releases the socket. Concurrent reads unblock with an error.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ErrReadTimeout reports a poll that expired without a datagram.
var ErrReadTimeout = errors.New("udp read timeout")

// BroadcastAddr returns the limited broadcast endpoint for port.
func BroadcastAddr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{255, 255, 255, 255}), port)
}
