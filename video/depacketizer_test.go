/*
NAME
  depacketizer_test.go

DESCRIPTION
  depacketizer_test.go provides tests for the Depacketizer.

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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ausocean/gamestream/codec/codecutil"
	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

// Access unit test data. None contain padding or reserved sequences.
var (
	sps   = []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xe0, 0x1f}
	pps   = []byte{0x00, 0x00, 0x00, 0x01, 0x68, 0xce, 0x3c, 0x80}
	idr   = []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x21, 0xa0}
	slice = []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9a, 0x02, 0x11}
)

type event struct {
	Kind     string
	From, To uint32
}

// recorder records status notifications and direct submissions in order.
type recorder struct {
	events []event
	units  []*DecodeUnit
}

func (r *recorder) FrameReceived(f uint32) {
	r.events = append(r.events, event{Kind: "received", From: f, To: f})
}

func (r *recorder) PacketsLost(from, to uint32) {
	r.events = append(r.events, event{"lost", from, to})
}

func (r *recorder) SinkTooSlow(from, to uint32) {
	r.events = append(r.events, event{"slow", from, to})
}

func (r *recorder) FrameLossDetected(from, to uint32) {
	r.events = append(r.events, event{"recovered", from, to})
}

func (r *recorder) SubmitDecodeUnit(du *DecodeUnit) {
	r.events = append(r.events, event{Kind: "submit", From: du.FrameNumber, To: du.FrameNumber})
	r.units = append(r.units, du)
}

func (r *recorder) count(kind string) int {
	var n int
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// pkt returns a packet with the given payload and no transport padding.
func pkt(frame, index, flags uint32, payload ...[]byte) Packet {
	b := bytes.Join(payload, nil)
	return Packet{
		FrameIndex:    frame,
		Index:         index,
		Flags:         flags | FlagContainsPicData,
		PayloadLength: len(b),
		Payload:       codecutil.NewDescriptor(b),
	}
}

// drain returns all queued decode units without blocking.
func drain(d *Depacketizer) []*DecodeUnit {
	var dus []*DecodeUnit
	for d.QueueLen() != 0 {
		du, err := d.NextDecodeUnit(context.Background())
		if err != nil {
			panic(err)
		}
		dus = append(dus, du)
	}
	return dus
}

func TestDepacketizerCodecConfigFrame(t *testing.T) {
	rec := &recorder{}
	d := NewDepacketizer(nil, rec, (*logging.TestLogger)(t))

	const frame = 7
	p1, p2, p3 := sps, []byte{0x11, 0x22, 0x33}, []byte{0x44, 0x55}
	d.AddInputData(pkt(frame, 1, FlagSOF, p1))
	d.AddInputData(pkt(frame, 2, 0, p2))
	d.AddInputData(pkt(frame, 3, FlagEOF, p3))

	dus := drain(d)
	if len(dus) != 1 {
		t.Fatalf("unexpected number of decode units: got:%d want:1", len(dus))
	}
	du := dus[0]
	if du.FrameNumber != frame {
		t.Errorf("unexpected frame number: got:%d want:%d", du.FrameNumber, frame)
	}
	if du.Flags != FlagCodecConfig {
		t.Errorf("unexpected flags: got:%b want:%b", du.Flags, FlagCodecConfig)
	}
	if du.Type != TypeH264 {
		t.Errorf("unexpected type: got:%v want:%v", du.Type, TypeH264)
	}
	want := bytes.Join([][]byte{p1, p2, p3}, nil)
	if du.Length != len(want) {
		t.Errorf("unexpected length: got:%d want:%d", du.Length, len(want))
	}
	if !bytes.Equal(du.Bytes(), want) {
		t.Errorf("unexpected bytes:\ngot: %x\nwant:%x", du.Bytes(), want)
	}
	if diff := cmp.Diff([]event{{"received", frame, frame}}, rec.events); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestDepacketizerLoss(t *testing.T) {
	tests := []struct {
		name      string
		last      uint32
		packets   []Packet
		want      []event
		wantUnits []uint32
	}{
		{
			name: "gap mid frame",
			packets: []Packet{
				pkt(1, 1, FlagSOF, idr),
				pkt(1, 2, 0, []byte{0x01, 0x02}),
				pkt(1, 4, FlagEOF, []byte{0x03}),
				pkt(2, 5, FlagSOF|FlagEOF, slice),
			},
			want: []event{
				{"lost", 3, 4},
				{"received", 2, 2},
				{"recovered", 1, 2},
			},
			wantUnits: []uint32{2},
		},
		{
			name: "recovery on next complete frame",
			packets: []Packet{
				pkt(1, 2, FlagSOF, idr),
				pkt(1, 3, FlagEOF, []byte{0x01}),
				pkt(2, 4, FlagSOF, slice),
				pkt(2, 5, FlagEOF, []byte{0x02}),
			},
			want: []event{
				{"lost", 1, 2},
				{"received", 2, 2},
				{"recovered", 1, 2},
			},
			wantUnits: []uint32{2},
		},
		{
			name: "continuation after gap is discarded",
			packets: []Packet{
				pkt(3, 9, 0, []byte{0x01}),
				pkt(3, 10, FlagEOF, []byte{0x02}),
			},
			want: []event{
				{"lost", 1, 9},
			},
		},
		{
			name: "index wraps",
			last: 0xfffffffe,
			packets: []Packet{
				pkt(5, 0xffffffff, FlagSOF, slice),
				pkt(5, 0, FlagEOF, []byte{0x01}),
			},
			want: []event{
				{"received", 5, 5},
			},
			wantUnits: []uint32{5},
		},
		{
			name: "reordered packet is loss",
			packets: []Packet{
				pkt(1, 1, FlagSOF|FlagEOF, slice),
				pkt(2, 3, FlagSOF|FlagEOF, slice),
				pkt(2, 2, FlagSOF|FlagEOF, slice),
			},
			want: []event{
				{"received", 1, 1},
				{"lost", 2, 3},
				{"lost", 4, 2},
			},
			wantUnits: []uint32{1},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := &recorder{}
			d := NewDepacketizer(nil, rec, (*logging.TestLogger)(t))
			d.lastIndex = test.last
			for _, p := range test.packets {
				d.AddInputData(p)
			}
			if diff := cmp.Diff(test.want, rec.events); diff != "" {
				t.Errorf("unexpected events (-want +got):\n%s", diff)
			}
			var got []uint32
			for _, du := range drain(d) {
				got = append(got, du.FrameNumber)
			}
			if diff := cmp.Diff(test.wantUnits, got); diff != "" {
				t.Errorf("unexpected decode units (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDepacketizerPadding(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		length  int
		want    [][]byte
	}{
		{
			name:    "fast path",
			payload: append(append([]byte{}, idr...), 0xff, 0xff, 0xff, 0xff),
			length:  len(idr),
			want:    [][]byte{idr},
		},
		{
			name:    "slow path",
			payload: append(append([]byte{}, sps...), 0x00, 0x01, 0x65, 0x00),
			length:  len(sps),
			want:    [][]byte{sps},
		},
		{
			name:    "slow path padding between parameter sets",
			payload: bytes.Join([][]byte{sps, {0x00, 0x00, 0x00}, pps}, nil),
			length:  len(sps) + 3 + len(pps),
			want:    [][]byte{sps, pps},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))
			d.AddInputData(Packet{
				FrameIndex:    1,
				Index:         1,
				Flags:         FlagSOF | FlagEOF,
				PayloadLength: test.length,
				Payload:       codecutil.NewDescriptor(test.payload),
			})
			var got [][]byte
			for _, du := range drain(d) {
				got = append(got, du.Bytes())
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected decode units (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDepacketizerOverflow(t *testing.T) {
	rec := &recorder{}
	d := NewDepacketizer(nil, rec, (*logging.TestLogger)(t))

	for i := uint32(1); i <= DecodeUnitLimit; i++ {
		d.AddInputData(pkt(i, i, FlagSOF|FlagEOF, slice))
	}
	if d.QueueLen() != DecodeUnitLimit {
		t.Fatalf("unexpected queue length: got:%d want:%d", d.QueueLen(), DecodeUnitLimit)
	}
	if rec.count("slow") != 0 {
		t.Fatalf("unexpected sink too slow notification before overflow")
	}

	const next = DecodeUnitLimit + 1
	d.AddInputData(pkt(next, next, FlagSOF|FlagEOF, slice))

	var slow []event
	for _, e := range rec.events {
		if e.Kind == "slow" {
			slow = append(slow, e)
		}
	}
	if diff := cmp.Diff([]event{{"slow", 1, next}}, slow); diff != "" {
		t.Errorf("unexpected sink too slow notifications (-want +got):\n%s", diff)
	}
	if rec.count("received") != next {
		t.Errorf("unexpected received notifications: got:%d want:%d", rec.count("received"), next)
	}

	dus := drain(d)
	if len(dus) != 1 || dus[0].FrameNumber != next {
		t.Errorf("expected only frame %d queued, got %d units", next, len(dus))
	}
}

func TestDepacketizerFlags(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int
	}{
		{name: "idr", payload: idr, want: FlagSyncFrame},
		{name: "sps", payload: sps, want: FlagCodecConfig},
		{name: "pps", payload: pps, want: FlagCodecConfig},
		{name: "non-idr slice", payload: slice, want: 0},
		{name: "sei", payload: []byte{0x00, 0x00, 0x00, 0x01, 0x06, 0x05, 0x11}, want: 0},
		{name: "short start code", payload: []byte{0x00, 0x00, 0x01, 0x65, 0x88}, want: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))
			d.AddInputData(pkt(1, 1, FlagSOF|FlagEOF, test.payload))
			dus := drain(d)
			if len(dus) != 1 {
				t.Fatalf("unexpected number of decode units: got:%d want:1", len(dus))
			}
			if dus[0].Flags != test.want {
				t.Errorf("unexpected flags: got:%b want:%b", dus[0].Flags, test.want)
			}
		})
	}
}

// TestDepacketizerPathIndependence checks that parameter sets and a slice
// scanned together by the slow path reassemble to the same units as when
// each NAL unit is sent in its own packets.
func TestDepacketizerPathIndependence(t *testing.T) {
	summarise := func(dus []*DecodeUnit) (lens, flags []int, data [][]byte) {
		for _, du := range dus {
			lens = append(lens, du.Length)
			flags = append(flags, du.Flags)
			data = append(data, du.Bytes())
		}
		return
	}

	slow := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))
	slow.AddInputData(pkt(1, 1, FlagSOF|FlagEOF, sps, pps, idr))

	fast := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))
	fast.AddInputData(pkt(1, 1, FlagSOF|FlagEOF, sps))
	fast.AddInputData(pkt(1, 2, FlagSOF|FlagEOF, pps))
	fast.AddInputData(pkt(1, 3, FlagSOF, idr[:5]))
	fast.AddInputData(pkt(1, 4, FlagEOF, idr[5:]))

	gotLens, gotFlags, gotData := summarise(drain(slow))
	wantLens, wantFlags, wantData := summarise(drain(fast))

	if diff := cmp.Diff(wantLens, gotLens); diff != "" {
		t.Errorf("unexpected lengths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantFlags, gotFlags); diff != "" {
		t.Errorf("unexpected flags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantData, gotData); diff != "" {
		t.Errorf("unexpected data (-want +got):\n%s", diff)
	}
	if want := []int{FlagCodecConfig, FlagCodecConfig, FlagSyncFrame}; !cmp.Equal(want, gotFlags) {
		t.Errorf("unexpected unit flags: got:%v want:%v", gotFlags, want)
	}
}

// TestDepacketizerStream checks that a packetized stream without loss is
// reassembled in frame order with every payload byte present exactly once.
func TestDepacketizerStream(t *testing.T) {
	aus := [][]byte{
		bytes.Join([][]byte{sps, pps, idr, idr[4:]}, nil),
		slice,
		bytes.Join([][]byte{slice, slice[4:], slice[4:]}, nil),
		idr,
		slice,
	}

	for _, size := range []int{1, 3, 5, 8, 64} {
		d := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))
		pz := NewPacketizer(size)
		var want []byte
		for _, au := range aus {
			want = append(want, au...)
			for _, p := range pz.Packetize(au) {
				d.AddInputData(p)
			}
		}

		var got []byte
		var last uint32
		for _, du := range drain(d) {
			if du.FrameNumber < last {
				t.Errorf("packet size %d: frame number decreased from %d to %d", size, last, du.FrameNumber)
			}
			last = du.FrameNumber
			got = append(got, du.Bytes()...)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("packet size %d: unexpected stream bytes:\ngot: %x\nwant:%x", size, got, want)
		}
	}
}

func TestDepacketizerDirectSubmit(t *testing.T) {
	rec := &recorder{}
	d := NewDepacketizer(rec, rec, (*logging.TestLogger)(t))

	for i := uint32(1); i <= DecodeUnitLimit+5; i++ {
		d.AddInputData(pkt(i, i, FlagSOF|FlagEOF, slice))
	}
	if d.QueueLen() != 0 {
		t.Errorf("unexpected queued units with direct submit: %d", d.QueueLen())
	}
	if len(rec.units) != DecodeUnitLimit+5 {
		t.Errorf("unexpected submitted units: got:%d want:%d", len(rec.units), DecodeUnitLimit+5)
	}
	if rec.count("slow") != 0 {
		t.Errorf("unexpected sink too slow notification with direct submit")
	}
	want := []event{{"submit", 1, 1}, {"received", 1, 1}}
	if diff := cmp.Diff(want, rec.events[:2]); diff != "" {
		t.Errorf("unexpected event order (-want +got):\n%s", diff)
	}
}

func TestNextDecodeUnit(t *testing.T) {
	d := NewDepacketizer(nil, nil, (*logging.TestLogger)(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.NextDecodeUnit(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unexpected error: got:%v want:%v", err, context.DeadlineExceeded)
	}

	got := make(chan *DecodeUnit)
	go func() {
		du, err := d.NextDecodeUnit(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- du
	}()
	d.AddInputData(pkt(4, 1, FlagSOF|FlagEOF, idr))

	select {
	case du := <-got:
		if du.FrameNumber != 4 {
			t.Errorf("unexpected frame number: got:%d want:4", du.FrameNumber)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decode unit")
	}
}
