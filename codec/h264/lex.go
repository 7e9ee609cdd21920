/*
NAME
  lex.go

DESCRIPTION
  lex.go provides a lexer to lex an H.264 Annex-B byte stream into access
  units.

AUTHOR
  Dan Kortschak <dan@ausocean.org>
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h264 provides H.264 Annex-B helpers: recognition and
// classification of start code sequences within received packet data, and
// a byte stream lexer that splits a stream into access units.
package h264

import (
	"io"
	"time"
)

var noDelay = make(chan time.Time)

func init() {
	close(noDelay)
}

// Lex lexes H.264 access units read from the Annex-B byte stream src into
// separate writes to dst, with successive writes performed not earlier than
// the specified delay. Each write holds one access unit including its start
// codes, and the slice passed to dst.Write is not reused by Lex.
//
// An access unit is ended by an access unit delimiter, SEI, SPS or PPS, or
// by the first slice of a new picture (first_mb_in_slice == 0), following a
// slice of the current access unit.
//
// Lex returns io.EOF once src is exhausted and the final access unit has
// been written.
func Lex(dst io.Writer, src io.Reader, delay time.Duration) error {
	var tick <-chan time.Time
	if delay == 0 {
		tick = noDelay
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	const bufSize = 8 << 10
	s := newNALScanner(src, make([]byte, 4<<10)) // Standard file buffer size.
	au := make([]byte, 0, bufSize)

	// sawSlice records whether au holds a coded slice.
	var sawSlice bool

	write := func() error {
		if len(au) == 0 {
			return nil
		}
		<-tick
		_, err := dst.Write(au)
		au = make([]byte, 0, bufSize)
		return err
	}

	for {
		nal, err := s.next()
		if err == io.EOF {
			err = write()
			if err != nil {
				return err
			}
			return io.EOF
		}
		if err != nil {
			return err
		}

		h := headerIndex(nal)
		if h < 0 {
			au = append(au, nal...)
			continue
		}
		typ := NALType(nal[h])
		isSlice := typ == NALTypeNonIDR || typ == NALTypeIDR

		var boundary bool
		switch typ {
		case NALTypeAccessUnitDelimiter, NALTypeSEI, NALTypeSPS, NALTypePPS:
			boundary = sawSlice
		case NALTypeNonIDR, NALTypeIDR:
			// The first bit of the slice header is 1 iff first_mb_in_slice is 0.
			boundary = sawSlice && h+1 < len(nal) && nal[h+1]&0x80 != 0
		}
		if boundary {
			err = write()
			if err != nil {
				return err
			}
			sawSlice = false
		}
		au = append(au, nal...)
		if isSlice {
			sawSlice = true
		}
	}
}
