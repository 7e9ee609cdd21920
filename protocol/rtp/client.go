/*
NAME
  client.go

DESCRIPTION
  client.go provides an RTP client that receives the RTP stream carrying
  video packets from a streaming host.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rtp provides an RTP receive client and an RTP sender for carrying
// stream data over UDP. RTP headers are handled by github.com/pion/rtp.
//
// See https://tools.ietf.org/html/rfc3550.
package rtp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
)

// MaxPacketSize is the largest RTP datagram the client expects.
const MaxPacketSize = 1500

const readTimeout = 5 * time.Second

// Client describes an RTP client that can receive an RTP stream and implements
// io.Reader.
type Client struct {
	r        *PacketReader
	mu       sync.Mutex
	ssrc     uint32
	sequence uint16
	cycles   uint16
}

// NewClient returns a pointer to a new Client.
//
// addr is the address of form <ip>:<port> that we expect to receive
// RTP at. A port of 0 picks a free port, see LocalAddr.
func NewClient(addr string) (*Client, error) {
	c := &Client{r: &PacketReader{}}

	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	c.r.PacketConn, err = net.ListenUDP("udp", a)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// SSRC returns the identifier of the source the RTP packets being received
// are coming from.
func (c *Client) SSRC() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ssrc
}

// Read implements io.Reader. Each call reads one datagram.
func (c *Client) Read(p []byte) (int, error) {
	_, n, err := c.read(p)
	return n, err
}

// ReadPacket reads one datagram into buf and parses it. The returned packet's
// payload shares storage with buf, so buf must not be reused while the
// payload is still referenced.
func (c *Client) ReadPacket(buf []byte) (*rtp.Packet, error) {
	pkt, _, err := c.read(buf)
	return pkt, err
}

func (c *Client) read(buf []byte) (*rtp.Packet, int, error) {
	n, err := c.r.Read(buf)
	if err != nil {
		return nil, n, err
	}
	var pkt rtp.Packet
	err = pkt.Unmarshal(buf[:n])
	if err != nil {
		return nil, n, fmt.Errorf("could not parse RTP packet: %w", err)
	}

	c.mu.Lock()
	if c.ssrc == 0 {
		c.ssrc = pkt.SSRC
	}
	c.mu.Unlock()
	c.setSequence(pkt.SequenceNumber)
	return &pkt, n, nil
}

// WriteTo writes b to addr from the client's socket.
func (c *Client) WriteTo(b []byte, addr net.Addr) (int, error) {
	return c.r.PacketConn.WriteTo(b, addr)
}

// LocalAddr returns the address the client is receiving on.
func (c *Client) LocalAddr() net.Addr {
	return c.r.PacketConn.LocalAddr()
}

// Close will close the RTP client's connection.
func (c *Client) Close() error {
	return c.r.PacketConn.Close()
}

// setSequence sets the most recently received sequence number, and updates the
// cycles count if the sequence number has rolled over.
func (c *Client) setSequence(s uint16) {
	c.mu.Lock()
	if s < c.sequence {
		c.cycles++
	}
	c.sequence = s
	c.mu.Unlock()
}

// Sequence returns the most recent RTP packet sequence number received.
func (c *Client) Sequence() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// Cycles returns the number of RTP sequence number cycles that have been received.
func (c *Client) Cycles() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

// IsTimeout returns true if err is a read deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// PacketReader provides an io.Reader interface to an underlying UDP PacketConn.
type PacketReader struct {
	net.PacketConn
}

// Read implements io.Reader.
func (r PacketReader) Read(b []byte) (int, error) {
	err := r.PacketConn.SetReadDeadline(time.Now().Add(readTimeout))
	if err != nil {
		return 0, fmt.Errorf("could not set read deadline for PacketConn: %w", err)
	}
	n, _, err := r.PacketConn.ReadFrom(b)
	return n, err
}
