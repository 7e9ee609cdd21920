/*
NAME
  packet_test.go

DESCRIPTION
  packet_test.go provides tests for video packet parsing and the
  Packetizer.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import (
	"bytes"
	"testing"

	"github.com/ausocean/gamestream/codec/codecutil"
	"github.com/google/go-cmp/cmp"
)

func TestParsePacket(t *testing.T) {
	raw := []byte{
		0x2a, 0x00, 0x00, 0x00, // Frame index 42.
		0x01, 0x01, 0x00, 0x00, // Packet index 257.
		0x05, 0x00, 0x00, 0x00, // SOF | pic data.
		0x03, 0x00, 0x00, 0x00, // Payload length 3.
		0xaa, 0xbb, 0xcc, 0x00, 0x00, // Payload and padding.
	}

	p, err := ParsePacket(codecutil.NewDescriptor(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FrameIndex != 42 || p.Index != 257 || p.PayloadLength != 3 {
		t.Errorf("unexpected header: frame:%d index:%d length:%d", p.FrameIndex, p.Index, p.PayloadLength)
	}
	if !p.SOF() || p.EOF() {
		t.Errorf("unexpected flags: %#x", p.Flags)
	}
	if p.Payload.Length != 5 || p.Payload.Offset != HeaderSize {
		t.Errorf("unexpected payload view: %v", p.Payload)
	}

	// The payload is a view, not a copy.
	raw[HeaderSize] = 0x11
	if p.Payload.At(0) != 0x11 {
		t.Error("payload does not share storage with packet")
	}

	// Marshalling reproduces the datagram.
	if got := p.Bytes(nil); !bytes.Equal(got, raw) {
		t.Errorf("unexpected bytes:\ngot: %x\nwant:%x", got, raw)
	}
}

func TestParsePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty"},
		{name: "short header", raw: make([]byte, HeaderSize-1)},
		{name: "length exceeds payload", raw: append([]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0}, 1, 2, 3)},
	}
	for _, test := range tests {
		_, err := ParsePacket(codecutil.NewDescriptor(test.raw))
		if err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}

func TestPacketize(t *testing.T) {
	type header struct {
		Frame, Index, Flags uint32
		Data                []byte
	}
	headers := func(pkts []Packet) []header {
		var h []header
		for _, p := range pkts {
			h = append(h, header{p.FrameIndex, p.Index, p.Flags, p.Payload.Bytes()})
		}
		return h
	}

	pz := NewPacketizer(4)
	got := headers(pz.Packetize([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	got = append(got, headers(pz.Packetize([]byte{10, 11}))...)
	if pz.Packetize(nil) != nil {
		t.Error("expected no packets for empty access unit")
	}

	const pic = FlagContainsPicData
	want := []header{
		{1, 1, pic | FlagSOF, []byte{1, 2, 3, 4}},
		{1, 2, pic, []byte{5, 6, 7, 8}},
		{1, 3, pic | FlagEOF, []byte{9}},
		{2, 4, pic | FlagSOF | FlagEOF, []byte{10, 11}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected packets (-want +got):\n%s", diff)
	}
}
