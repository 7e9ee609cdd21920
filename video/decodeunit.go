/*
NAME
  decodeunit.go

DESCRIPTION
  decodeunit.go provides DecodeUnit, a reassembled access unit ready for a
  video decoder.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import (
	"io"

	"github.com/ausocean/gamestream/codec/codecutil"
	"github.com/ausocean/gamestream/codec/h264"
)

// Type is the bitstream type of a decode unit.
type Type int

const (
	TypeUnknown Type = iota
	TypeH264
)

func (t Type) String() string {
	if t == TypeH264 {
		return "h264"
	}
	return "unknown"
}

// Decode unit flags.
const (
	FlagCodecConfig = 1 << iota // Holds SPS or PPS.
	FlagSyncFrame               // Holds an IDR slice; decodable without prior frames.
)

// kindFlags maps an access unit classification to decode unit flags.
var kindFlags = map[h264.Kind]int{
	h264.KindCodecConfig: FlagCodecConfig,
	h264.KindSyncFrame:   FlagSyncFrame,
}

// DecodeUnit is a reassembled access unit. Fragments are views into received
// packet storage, in bitstream order. A DecodeUnit is not modified after
// construction; ownership passes to whichever consumer receives it.
type DecodeUnit struct {
	Type        Type
	Fragments   []codecutil.Descriptor
	Length      int // Sum of fragment lengths.
	Flags       int
	FrameNumber uint32
}

// IsKeyFrame returns true if the unit is a sync frame.
func (du *DecodeUnit) IsKeyFrame() bool { return du.Flags&FlagSyncFrame != 0 }

// IsCodecConfig returns true if the unit holds parameter sets.
func (du *DecodeUnit) IsCodecConfig() bool { return du.Flags&FlagCodecConfig != 0 }

// Bytes returns the concatenated fragments in a newly allocated slice.
func (du *DecodeUnit) Bytes() []byte {
	b := make([]byte, 0, du.Length)
	for _, f := range du.Fragments {
		b = append(b, f.Bytes()...)
	}
	return b
}

// WriteTo implements io.WriterTo, writing each fragment in turn.
func (du *DecodeUnit) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, f := range du.Fragments {
		m, err := w.Write(f.Bytes())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
