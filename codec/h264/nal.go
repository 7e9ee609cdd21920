/*
NAME
  nal.go

DESCRIPTION
  nal.go provides stateless helpers for recognising Annex-B special sequences
  (start codes and padding) at the front of a buffer descriptor, and for
  classifying the NAL header that follows them.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264

import "github.com/ausocean/gamestream/codec/codecutil"

// NAL unit types, see table 7-1 of ITU-T H.264.
const (
	NALTypeNonIDR              = 1
	NALTypeIDR                 = 5
	NALTypeSEI                 = 6
	NALTypeSPS                 = 7
	NALTypePPS                 = 8
	NALTypeAccessUnitDelimiter = 9
	NALTypeFillerData          = 12
)

// Special sequence lengths.
const (
	startCodeLen     = 4 // 00 00 00 01
	shortSequenceLen = 3 // 00 00 01, 00 00 00 etc.
)

const nalTypeMask = 0x1f

// NAL header bytes (forbidden_zero_bit 0, nal_ref_idc 3) that classify an
// access unit.
const (
	headerIDR = 0x65
	headerSPS = 0x67
	headerPPS = 0x68
)

// Kind classifies an access unit by its first NAL unit.
type Kind int

const (
	KindNone Kind = iota
	KindCodecConfig
	KindSyncFrame
)

func (k Kind) String() string {
	switch k {
	case KindCodecConfig:
		return "codec config"
	case KindSyncFrame:
		return "sync frame"
	default:
		return "none"
	}
}

// NALType returns the nal_unit_type of the NAL header byte b.
func NALType(b byte) int { return int(b & nalTypeMask) }

// SpecialSequence checks for a special sequence at the front of d. If one is
// found, a descriptor covering exactly the sequence is returned with ok true.
//
// Recognised sequences are the start codes 00 00 00 01 and 00 00 01,
// padding 00 00 00, the reserved 00 00 02, and 00 00 03 when not followed by
// 00-03 (in which case it is an emulation prevention sequence and not
// special).
func SpecialSequence(d codecutil.Descriptor) (seq codecutil.Descriptor, ok bool) {
	if d.Length < shortSequenceLen {
		return codecutil.Descriptor{}, false
	}
	if d.At(0) != 0x00 || d.At(1) != 0x00 {
		return codecutil.Descriptor{}, false
	}

	switch d.At(2) {
	case 0x00:
		// 00 00 00 01 is a start code, 00 00 00 alone is padding.
		if d.Length >= startCodeLen && d.At(3) == 0x01 {
			return d.Slice(0, startCodeLen), true
		}
		return d.Slice(0, shortSequenceLen), true
	case 0x01, 0x02:
		return d.Slice(0, shortSequenceLen), true
	case 0x03:
		if d.Length < startCodeLen {
			return codecutil.Descriptor{}, false
		}
		if d.At(3) <= 0x03 {
			return codecutil.Descriptor{}, false
		}
		return d.Slice(0, shortSequenceLen), true
	}
	return codecutil.Descriptor{}, false
}

// IsStartSequence returns true if seq is a start code i.e. 00 00 01 or
// 00 00 00 01.
func IsStartSequence(seq codecutil.Descriptor) bool {
	return seq.Length != 0 && seq.At(seq.Length-1) == 0x01
}

// IsPadding returns true if seq is the zero filler used between NAL units.
func IsPadding(seq codecutil.Descriptor) bool {
	return seq.Length != 0 && seq.At(seq.Length-1) == 0x00
}

// Header returns the NAL header byte immediately following seq in the
// backing storage of seq. ok is false if there is no such byte.
func Header(seq codecutil.Descriptor) (b byte, ok bool) {
	return seq.Peek(seq.Length)
}

// IsFrameStart returns true if seq is a four byte start code followed by the
// header of a NAL unit that begins a new access unit, i.e. a slice, SPS or
// PPS. Three byte start codes separate NAL units within an access unit.
func IsFrameStart(seq codecutil.Descriptor) bool {
	if seq.Length != startCodeLen || !IsStartSequence(seq) {
		return false
	}
	h, ok := Header(seq)
	if !ok {
		return false
	}
	switch NALType(h) {
	case NALTypeNonIDR, NALTypeIDR, NALTypeSPS, NALTypePPS:
		return true
	default:
		return false
	}
}

// Classify returns the Kind of an access unit whose first fragment is first.
// Only a frame start sequence at the very front of first is considered.
func Classify(first codecutil.Descriptor) Kind {
	seq, ok := SpecialSequence(first)
	if !ok || !IsFrameStart(seq) {
		return KindNone
	}
	h, _ := Header(seq)
	switch h {
	case headerSPS, headerPPS:
		return KindCodecConfig
	case headerIDR:
		return KindSyncFrame
	default:
		return KindNone
	}
}

// IsParameterSetStart returns true if d begins with a frame start sequence
// followed by an SPS header. Fragments beginning this way may carry padding
// between NAL units and cannot be assumed aligned to NAL boundaries.
func IsParameterSetStart(d codecutil.Descriptor) bool {
	seq, ok := SpecialSequence(d)
	if !ok || !IsFrameStart(seq) {
		return false
	}
	h, _ := Header(seq)
	return h == headerSPS
}
