/*
NAME
  depacketizer.go

DESCRIPTION
  depacketizer.go provides Depacketizer, which reassembles H.264 access
  units from transport video packets and hands them to a consumer.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package video provides the client video data plane: the transport video
// packet format, reassembly of access units from packets, and the video
// sub-stream that feeds a decoder renderer.
package video

import (
	"context"

	"github.com/ausocean/gamestream/codec/codecutil"
	"github.com/ausocean/gamestream/codec/h264"
	"github.com/ausocean/utils/logging"
)

const pkg = "video: "

// DecodeUnitLimit is the capacity of the decode unit queue.
const DecodeUnitLimit = 15

// Initial capacity of a fragment chain.
const chainCap = 8

// Depacketizer reassembles access units from transport video packets.
//
// AddInputData must only be called from a single goroutine and never blocks.
// NextDecodeUnit may be called concurrently from one consumer goroutine.
type Depacketizer struct {
	log    logging.Logger
	direct DirectSubmitter
	ctrl   StatusListener

	// Access unit under construction. A nil chain means no access unit is
	// open and fragments are discarded until one is.
	chain    []codecutil.Descriptor
	length   int
	decoding Type

	lastIndex        uint32
	awaitingRecovery bool
	lossFrame        uint32 // Frame index at which loss was last detected.

	units chan *DecodeUnit
}

// NewDepacketizer returns a new Depacketizer. If direct is not nil, decode
// units are submitted to it synchronously from AddInputData instead of being
// queued. ctrl is notified of received frames and loss.
func NewDepacketizer(direct DirectSubmitter, ctrl StatusListener, log logging.Logger) *Depacketizer {
	if ctrl == nil {
		ctrl = nopListener{}
	}
	return &Depacketizer{
		log:    log,
		direct: direct,
		ctrl:   ctrl,
		units:  make(chan *DecodeUnit, DecodeUnitLimit),
	}
}

// AddInputData ingests the next transport packet in delivery order.
func (d *Depacketizer) AddInputData(p Packet) {
	if p.Index != d.lastIndex+1 {
		d.log.Warning(pkg+"packet loss", "from", d.lastIndex+1, "to", p.Index)
		d.ctrl.PacketsLost(d.lastIndex+1, p.Index)
		d.awaitingRecovery = true
		d.lossFrame = p.FrameIndex
		d.clear()
		d.lastIndex = p.Index
		return
	}
	d.lastIndex = p.Index

	loc := p.Payload.Truncate(p.PayloadLength)

	if p.SOF() && h264.IsParameterSetStart(loc) {
		// Parameter sets are padded between NAL units so the fragment can't be
		// taken whole.
		d.clear()
		d.addSlow(p.FrameIndex, loc)
	} else {
		d.addFast(loc, p.SOF())
	}

	if !p.EOF() {
		return
	}
	if d.reassemble(p.FrameIndex) && d.awaitingRecovery {
		d.log.Info(pkg+"recovered from frame loss", "from", d.lossFrame, "to", p.FrameIndex)
		d.ctrl.FrameLossDetected(d.lossFrame, p.FrameIndex)
		d.awaitingRecovery = false
	}
}

// addFast appends loc whole to the chain, opening a new chain if first is
// true.
func (d *Depacketizer) addFast(loc codecutil.Descriptor, first bool) {
	if first {
		d.open()
	}
	if d.chain == nil {
		return
	}
	d.chain = append(d.chain, loc)
	d.length += loc.Length
}

// addSlow scans loc for start codes and padding, appending the NAL data
// between them to the chain and reassembling at each access unit boundary.
func (d *Depacketizer) addSlow(frame uint32, loc codecutil.Descriptor) {
	for !loc.Empty() {
		start := loc

		if seq, ok := h264.SpecialSequence(loc); ok {
			if h264.IsStartSequence(seq) {
				d.decoding = TypeH264
				if h264.IsFrameStart(seq) {
					d.reassemble(frame)
					d.open()
				}
				loc = loc.Advance(seq.Length)
			} else {
				if d.decoding == TypeH264 && h264.IsPadding(seq) {
					d.reassemble(frame)
				}
				d.decoding = TypeUnknown
				loc = loc.Advance(1)
			}
		}

		// Find the end of this run of NAL data. Padding only ends the run
		// while decoding.
		for !loc.Empty() {
			if loc.At(0) == 0x00 {
				seq, ok := h264.SpecialSequence(loc)
				if ok && (d.decoding != TypeUnknown || !h264.IsPadding(seq)) {
					break
				}
			}
			loc = loc.Advance(1)
		}

		if d.decoding == TypeH264 && d.chain != nil {
			n := loc.Offset - start.Offset
			d.chain = append(d.chain, start.Slice(0, n))
			d.length += n
		}
	}
}

// reassemble publishes the chain as a decode unit for frame, returning true
// if a unit was produced.
func (d *Depacketizer) reassemble(frame uint32) bool {
	if d.chain == nil || d.length == 0 {
		return false
	}

	du := &DecodeUnit{
		Type:        TypeH264,
		Fragments:   d.chain,
		Length:      d.length,
		Flags:       kindFlags[h264.Classify(d.chain[0])],
		FrameNumber: frame,
	}

	if d.direct != nil {
		d.direct.SubmitDecodeUnit(du)
	} else {
		d.enqueue(du)
	}

	d.ctrl.FrameReceived(frame)
	d.clear()
	return true
}

// enqueue adds du to the queue. If the queue is full it is flushed, the
// control listener is told which frames were discarded and du becomes the
// only queued unit.
func (d *Depacketizer) enqueue(du *DecodeUnit) {
	select {
	case d.units <- du:
		return
	default:
	}

	d.log.Warning(pkg+"decoder too slow, dropping decode units", "queued", len(d.units))

	from := du.FrameNumber
	select {
	case old := <-d.units:
		from = old.FrameNumber
	default:
		// Consumer emptied the queue in the meantime.
	}
	d.ctrl.SinkTooSlow(from, du.FrameNumber)

drain:
	for {
		select {
		case <-d.units:
		default:
			break drain
		}
	}

	// The consumer only removes units so there is room now.
	d.units <- du
}

// NextDecodeUnit blocks until a decode unit is available or ctx is done.
func (d *Depacketizer) NextDecodeUnit(ctx context.Context) (*DecodeUnit, error) {
	select {
	case du := <-d.units:
		return du, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueueLen returns the number of queued decode units.
func (d *Depacketizer) QueueLen() int { return len(d.units) }

func (d *Depacketizer) open() {
	d.chain = make([]codecutil.Descriptor, 0, chainCap)
	d.length = 0
}

func (d *Depacketizer) clear() {
	d.chain = nil
	d.length = 0
}

type nopListener struct{}

func (nopListener) FrameReceived(uint32) {}
func (nopListener) PacketsLost(uint32, uint32) {}
func (nopListener) SinkTooSlow(uint32, uint32) {}
func (nopListener) FrameLossDetected(uint32, uint32) {}
