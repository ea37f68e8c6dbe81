/*
DESCRIPTION
  parse.go provides parsing utilities for the Exp-Golomb and fixed length
  syntax element descriptors of section 7.2 of the specifications.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"bytes"

	"github.com/ausocean/avc/codec/h264/h264dec/bits"
	"github.com/pkg/errors"
)

// Longest run of leading zeros accepted for a ue(v) element, which bounds
// codeNum to 2^32-2.
const maxUeZeros = 31

var errUeOverflow = errors.New("ue(v) prefix too long")

// fieldReader provides methods for reading bool and int fields from a
// bits.BitReader with a sticky error that may be checked after a series of
// parsing read calls.
type fieldReader struct {
	e    error
	br   *bits.BitReader
	rbsp []byte
}

// newFieldReader returns a new fieldReader reading from the raw byte sequence
// payload rbsp.
func newFieldReader(rbsp []byte) *fieldReader {
	return &fieldReader{br: bits.NewBitReader(bytes.NewReader(rbsp)), rbsp: rbsp}
}

// readBits returns n bits as a uint64. If we have an error already, we do not
// continue with the read.
func (r *fieldReader) readBits(n int) uint64 {
	if r.e != nil {
		return 0
	}
	var b uint64
	b, r.e = r.br.ReadBits(n)
	return b
}

// readFlag reads a single bit u(1) as a bool.
func (r *fieldReader) readFlag() bool {
	return r.readBits(1) == 1
}

// readUe parses a syntax element of ue(v) descriptor. The read does not happen
// if the fieldReader has a non-nil error.
func (r *fieldReader) readUe() int {
	if r.e != nil {
		return 0
	}
	var i int
	i, r.e = readUe(r.br)
	return i
}

// readSe parses a syntax element of se(v) descriptor. The read does not happen
// if the fieldReader has a non-nil error.
func (r *fieldReader) readSe() int {
	if r.e != nil {
		return 0
	}
	var i int
	i, r.e = readSe(r.br)
	return i
}

// moreRBSPData implements more_rbsp_data() (7.2); it reports whether any bits
// precede the rbsp_stop_one_bit.
func (r *fieldReader) moreRBSPData() bool {
	if r.e != nil {
		return false
	}
	return r.br.BitsRead() < stopBitPos(r.rbsp)
}

// pos returns the bit offset of the next read.
func (r *fieldReader) pos() int { return r.br.BitsRead() }

// err returns the fieldReader's error e.
func (r *fieldReader) err() error {
	return r.e
}

// stopBitPos returns the bit offset of the last set bit in rbsp, or -1 if
// there is none.
func stopBitPos(rbsp []byte) int {
	for i := len(rbsp) - 1; i >= 0; i-- {
		if b := rbsp[i]; b != 0 {
			n := 7
			for b&1 == 0 {
				b >>= 1
				n--
			}
			return i*8 + n
		}
	}
	return -1
}

// readUe parses a syntax element of ue(v) descriptor, i.e. an unsigned integer
// Exp-Golomb-coded element using method as specified in section 9.1 of ITU-T H.264.
func readUe(r *bits.BitReader) (int, error) {
	nZeros := 0
	for {
		b, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		nZeros++
		if nZeros > maxUeZeros {
			return 0, errUeOverflow
		}
	}
	rem, err := r.ReadBits(nZeros)
	if err != nil {
		return 0, err
	}
	return (1 << uint(nZeros)) - 1 + int(rem), nil
}

// readSe parses a syntax element with descriptor se(v), i.e. a signed integer
// Exp-Golomb-coded syntax element, using the method described in sections
// 9.1 and 9.1.1 in Rec. ITU-T H.264 (04/2017).
func readSe(r *bits.BitReader) (int, error) {
	codeNum, err := readUe(r)
	if err != nil {
		return 0, errors.Wrap(err, "error reading ue(v)")
	}
	if codeNum%2 == 0 {
		return -codeNum / 2, nil
	}
	return (codeNum + 1) / 2, nil
}

// ceilLog2 returns Ceil(Log2(n)) for n >= 1.
func ceilLog2(n int) int {
	l := 0
	for (1 << uint(l)) < n {
		l++
	}
	return l
}
