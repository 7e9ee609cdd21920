/*
NAME
  scanner.go

DESCRIPTION
  scanner.go provides a scanner that splits an Annex-B byte stream into NAL
  units.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264

import (
	"bytes"
	"io"
)

// Initial capacity of a scanned NAL unit.
const nalCap = 1 << 10

// nalScanner reads NAL units, each with its leading start code, from an
// Annex-B byte stream. Bytes before the first start code are discarded and
// zero bytes beyond a 4 byte start code are kept as trailing zeros of the
// previous NAL unit.
type nalScanner struct {
	r   io.Reader
	buf []byte
	off int

	// pending holds the NAL unit being scanned.
	pending []byte
	started bool
}

func newNALScanner(r io.Reader, buf []byte) *nalScanner {
	return &nalScanner{r: r, buf: buf[:0]}
}

// next returns the next NAL unit. The returned slice is not reused by the
// scanner. next returns io.EOF once all NAL units have been returned.
func (s *nalScanner) next() ([]byte, error) {
	for {
		if s.off >= len(s.buf) {
			err := s.reload()
			if err == io.EOF {
				return s.flush()
			}
			if err != nil {
				return nil, err
			}
		}

		chunk := s.buf[s.off:]
		i := bytes.IndexByte(chunk, 0x01)
		if i < 0 {
			s.pending = append(s.pending, chunk...)
			s.off = len(s.buf)
			continue
		}
		s.pending = append(s.pending, chunk[:i]...)
		s.off += i + 1

		zeros := trailingZeros(s.pending)
		if zeros < 2 {
			s.pending = append(s.pending, 0x01)
			continue
		}

		// A start code; it begins the next NAL unit.
		prev := s.pending[:len(s.pending)-zeros]
		s.pending = make([]byte, zeros, nalCap)
		s.pending = append(s.pending, 0x01)

		if !s.started {
			s.started = true
			continue
		}
		if len(prev) != 0 {
			return prev, nil
		}
	}
}

// flush returns the final NAL unit.
func (s *nalScanner) flush() ([]byte, error) {
	if !s.started || len(s.pending) == 0 {
		return nil, io.EOF
	}
	p := s.pending
	s.pending = nil
	return p, nil
}

func (s *nalScanner) reload() error {
	n, err := s.r.Read(s.buf[:cap(s.buf)])
	s.buf = s.buf[:n]
	s.off = 0
	if n > 0 {
		return nil
	}
	return err
}

// trailingZeros returns the number of zero bytes ending p, up to the three
// that may form part of a start code.
func trailingZeros(p []byte) int {
	var n int
	for n < 3 && n < len(p) && p[len(p)-1-n] == 0x00 {
		n++
	}
	return n
}

// headerIndex returns the index of the NAL header byte following the start
// code that begins nal, or -1 if nal holds no header.
func headerIndex(nal []byte) int {
	i := bytes.IndexByte(nal, 0x01) + 1
	if i == 0 || i >= len(nal) {
		return -1
	}
	return i
}
