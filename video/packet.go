/*
NAME
  packet.go

DESCRIPTION
  packet.go provides the transport video packet carried as the payload of
  each video RTP packet.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ausocean/gamestream/codec/codecutil"
)

// Video packet flags.
const (
	FlagContainsPicData = 0x1
	FlagEOF             = 0x2 // Last packet of a frame.
	FlagSOF             = 0x4 // First packet of a frame.
)

// HeaderSize is the size of the video packet header in bytes. The header is
// little endian:
//
//	frame index     uint32
//	packet index    uint32
//	flags           uint32
//	payload length  uint32
const HeaderSize = 16

var errShortPacket = errors.New("video packet shorter than header")

// Packet is a transport video packet holding one fragment of an access unit.
type Packet struct {
	FrameIndex    uint32 // Index of the access unit this fragment belongs to.
	Index         uint32 // Monotonic stream packet index assigned by the sender.
	Flags         uint32
	PayloadLength int // True length of the payload; Payload may include trailing padding.

	// Payload views the bytes following the header in the received datagram.
	Payload codecutil.Descriptor
}

// ParsePacket parses a video packet from d. The returned packet's Payload
// shares storage with d.
func ParsePacket(d codecutil.Descriptor) (Packet, error) {
	if d.Length < HeaderSize {
		return Packet{}, errShortPacket
	}
	h := d.Slice(0, HeaderSize).Bytes()
	p := Packet{
		FrameIndex:    binary.LittleEndian.Uint32(h[0:]),
		Index:         binary.LittleEndian.Uint32(h[4:]),
		Flags:         binary.LittleEndian.Uint32(h[8:]),
		PayloadLength: int(binary.LittleEndian.Uint32(h[12:])),
		Payload:       d.Advance(HeaderSize),
	}
	if p.PayloadLength > p.Payload.Length {
		return Packet{}, fmt.Errorf("declared payload length %d exceeds available %d bytes", p.PayloadLength, p.Payload.Length)
	}
	return p, nil
}

// SOF returns true if this packet starts a frame.
func (p *Packet) SOF() bool { return p.Flags&FlagSOF != 0 }

// EOF returns true if this packet ends a frame.
func (p *Packet) EOF() bool { return p.Flags&FlagEOF != 0 }

// Bytes writes the packet, header and full payload view, to buf and returns
// the written slice. buf is grown if it does not have sufficient capacity.
func (p *Packet) Bytes(buf []byte) []byte {
	n := HeaderSize + p.Payload.Length
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	binary.LittleEndian.PutUint32(buf[0:], p.FrameIndex)
	binary.LittleEndian.PutUint32(buf[4:], p.Index)
	binary.LittleEndian.PutUint32(buf[8:], p.Flags)
	binary.LittleEndian.PutUint32(buf[12:], uint32(p.PayloadLength))
	copy(buf[HeaderSize:], p.Payload.Bytes())
	return buf
}
