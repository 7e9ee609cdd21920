/*
NAME
  packetizer.go

DESCRIPTION
  packetizer.go provides Packetizer, which splits access units into
  transport video packets as a streaming host does.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import "github.com/ausocean/gamestream/codec/codecutil"

// DefaultPacketSize is the default maximum payload size of a video packet.
const DefaultPacketSize = 1024

// Packetizer splits access units into video packets. Packet indices start at
// 1 and increase by one for every packet; frame indices start at 1 and
// increase by one for every access unit.
type Packetizer struct {
	size  int
	frame uint32
	index uint32
}

// NewPacketizer returns a Packetizer producing packets with at most size
// payload bytes. A non-positive size means DefaultPacketSize.
func NewPacketizer(size int) *Packetizer {
	if size <= 0 {
		size = DefaultPacketSize
	}
	return &Packetizer{size: size}
}

// Packetize returns the packets carrying au. The packet payloads share
// storage with au.
func (p *Packetizer) Packetize(au []byte) []Packet {
	if len(au) == 0 {
		return nil
	}
	p.frame++

	pkts := make([]Packet, 0, (len(au)+p.size-1)/p.size)
	d := codecutil.NewDescriptor(au)
	for !d.Empty() {
		n := min(p.size, d.Length)
		p.index++
		pkt := Packet{
			FrameIndex:    p.frame,
			Index:         p.index,
			Flags:         FlagContainsPicData,
			PayloadLength: n,
			Payload:       d.Slice(0, n),
		}
		if len(pkts) == 0 {
			pkt.Flags |= FlagSOF
		}
		d = d.Advance(n)
		if d.Empty() {
			pkt.Flags |= FlagEOF
		}
		pkts = append(pkts, pkt)
	}
	return pkts
}
