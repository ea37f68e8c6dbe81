/*
DESCRIPTION
  bytesource.go provides a repositionable byte source used to feed the
  arithmetic decoding engine.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package bits

// ByteSource is a sequential source of bytes whose cursor may be moved. The
// arithmetic decoder reads through Get and gives back pre-fetched bytes
// through SetPos once it terminates.
type ByteSource interface {
	// Pos returns the offset of the next byte Get will return.
	Pos() int

	// SetPos moves the cursor to offset p.
	SetPos(p int)

	// HasRemaining reports whether Get has a byte to return.
	HasRemaining() bool

	// Get returns the byte at the cursor and advances it. Get must only be
	// called if HasRemaining returns true.
	Get() byte
}

// ByteReader is a ByteSource backed by a byte slice.
type ByteReader struct {
	buf []byte
	off int
}

// NewByteReader returns a new ByteReader reading from b.
func NewByteReader(b []byte) *ByteReader {
	return &ByteReader{buf: b}
}

// Pos implements ByteSource.
func (r *ByteReader) Pos() int { return r.off }

// SetPos implements ByteSource. Positions outside of the underlying slice are
// clamped to its bounds.
func (r *ByteReader) SetPos(p int) {
	switch {
	case p < 0:
		p = 0
	case p > len(r.buf):
		p = len(r.buf)
	}
	r.off = p
}

// HasRemaining implements ByteSource.
func (r *ByteReader) HasRemaining() bool { return r.off < len(r.buf) }

// Get implements ByteSource.
func (r *ByteReader) Get() byte {
	b := r.buf[r.off]
	r.off++
	return b
}

// Remaining returns the bytes from the cursor to the end of the source.
func (r *ByteReader) Remaining() []byte { return r.buf[r.off:] }

// Len returns the total length of the source.
func (r *ByteReader) Len() int { return len(r.buf) }
