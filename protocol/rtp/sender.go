/*
NAME
  sender.go

DESCRIPTION
  sender.go provides Sender, which wraps payloads in RTP packets and writes
  them to a destination.

AUTHOR
  Saxon Nelson-Milton (saxon@ausocean.org)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtp

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/pion/rtp"
)

const (
	rtpVer         = 2
	defaultPktType = 96    // Dynamic payload type.
	timestampFreq  = 90000 // Hz
)

// Sender wraps payloads into RTP packets and writes each packet to dst in a
// single write.
type Sender struct {
	dst           io.Writer
	ssrc          uint32
	seqNo         uint16
	clock         time.Duration
	frameInterval time.Duration
	buf           []byte
}

// NewSender returns a new Sender writing to dst at the given frame rate. The
// frame rate determines how far the RTP timestamp advances on each Tick.
func NewSender(dst io.Writer, fps int) *Sender {
	if fps <= 0 {
		fps = 30
	}
	return &Sender{
		dst:           dst,
		ssrc:          rand.Uint32(),
		frameInterval: time.Duration(float64(time.Second) / float64(fps)),
		buf:           make([]byte, MaxPacketSize),
	}
}

// Send wraps payload in an RTP packet and writes it. marker should be set on
// the last packet of a frame.
func (s *Sender) Send(payload []byte, marker bool) error {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        rtpVer,
			Marker:         marker,
			PayloadType:    defaultPktType,
			SequenceNumber: s.nxtSeqNo(),
			Timestamp:      s.timestamp(),
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	if n := pkt.MarshalSize(); n > cap(s.buf) {
		s.buf = make([]byte, n)
	}
	n, err := pkt.MarshalTo(s.buf[:cap(s.buf)])
	if err != nil {
		return fmt.Errorf("could not marshal RTP packet: %w", err)
	}
	_, err = s.dst.Write(s.buf[:n])
	return err
}

// Tick advances the clock one frame interval.
func (s *Sender) Tick() {
	s.clock += s.frameInterval
}

// SSRC returns the synchronisation source identifier of sent packets.
func (s *Sender) SSRC() uint32 { return s.ssrc }

func (s *Sender) timestamp() uint32 {
	return uint32(s.clock.Seconds() * timestampFreq)
}

func (s *Sender) nxtSeqNo() uint16 {
	s.seqNo++
	return s.seqNo - 1
}
