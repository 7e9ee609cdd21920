/*
NAME
  descriptor.go

DESCRIPTION
  descriptor.go provides Descriptor, a non-owning view over a region of a
  received packet's bytes.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codecutil provides Descriptor, a zero-copy view over received
// packet bytes shared by the codec and video packages.
package codecutil

import "fmt"

// Descriptor describes a view of Length bytes starting at Offset in Data.
// A Descriptor never owns Data; it is only valid for as long as the packet
// it was sliced from. Methods never modify the receiver, re-slicing always
// produces a new Descriptor over the same storage.
//
// The invariant Offset+Length <= len(Data) holds for every Descriptor
// produced by this package.
type Descriptor struct {
	Data   []byte
	Offset int
	Length int
}

// NewDescriptor returns a Descriptor viewing the whole of b.
func NewDescriptor(b []byte) Descriptor {
	return Descriptor{Data: b, Length: len(b)}
}

// Bytes returns the viewed bytes. The returned slice aliases Data.
func (d Descriptor) Bytes() []byte {
	return d.Data[d.Offset : d.Offset+d.Length]
}

// At returns the byte at index i relative to the start of the view.
func (d Descriptor) At(i int) byte {
	if i < 0 || i >= d.Length {
		panic(fmt.Sprintf("codecutil: index %d out of range for descriptor of length %d", i, d.Length))
	}
	return d.Data[d.Offset+i]
}

// Peek returns the byte at index i relative to the start of the view, which
// may lie beyond the end of the view but within the backing storage. ok is
// false if the index is outside of the backing storage.
func (d Descriptor) Peek(i int) (b byte, ok bool) {
	i += d.Offset
	if i < 0 || i >= len(d.Data) {
		return 0, false
	}
	return d.Data[i], true
}

// Advance returns a view with the first n bytes of d consumed.
func (d Descriptor) Advance(n int) Descriptor {
	if n < 0 || n > d.Length {
		panic(fmt.Sprintf("codecutil: cannot advance %d bytes in descriptor of length %d", n, d.Length))
	}
	return Descriptor{Data: d.Data, Offset: d.Offset + n, Length: d.Length - n}
}

// Truncate returns a view of at most the first n bytes of d.
func (d Descriptor) Truncate(n int) Descriptor {
	if n < 0 {
		n = 0
	}
	if n > d.Length {
		n = d.Length
	}
	return Descriptor{Data: d.Data, Offset: d.Offset, Length: n}
}

// Slice returns a view of n bytes starting at off relative to the start of d.
func (d Descriptor) Slice(off, n int) Descriptor {
	if off < 0 || n < 0 || off+n > d.Length {
		panic(fmt.Sprintf("codecutil: slice [%d:%d] out of range for descriptor of length %d", off, off+n, d.Length))
	}
	return Descriptor{Data: d.Data, Offset: d.Offset + off, Length: n}
}

// Empty returns true if the view has no bytes.
func (d Descriptor) Empty() bool { return d.Length == 0 }

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("{offset:%d length:%d}", d.Offset, d.Length)
}
