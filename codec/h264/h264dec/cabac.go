/*
DESCRIPTION
  cabac.go provides the arithmetic decoding engine for context-adaptive binary
  arithmetic decoding (CABAC) of H.264 slice data, as described by section
  9.3.3.2 of the specifications.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Bruce McMoran <mcmoranbjr@gmail.com>
  Shawn Smith <shawnpsmith@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"github.com/ausocean/avc/codec/h264/h264dec/bits"
	"github.com/pkg/errors"
)

// ErrMalformedStream is returned when there are not enough bytes to
// initialise the arithmetic decoding engine. The slice should be discarded.
var ErrMalformedStream = errors.New("malformed stream: not enough data to initialise arithmetic decoder")

// Register layout. The code register holds the 9 bit codIOffset window in
// bits 16 to 8, followed by up to 8 pre-fetched bits.
const (
	initRange    = 510
	minRange     = 256
	codeMask     = 0x1ffff
	windowShift  = 8
	bitsPerByte  = 8
	initPending  = 2*bitsPerByte - 9
	termRangeDec = 2
)

// Engine is implemented by arithmetic decoding engines. ArithmeticDecoder is
// the production implementation; Tracer wraps an Engine to log decoded bins.
type Engine interface {
	// InitRegister primes the engine from the current position of its byte
	// source (9.3.1.2).
	InitRegister() error

	// DecodeBin decodes a bin using the context model at ctxIdx (9.3.3.2.1).
	DecodeBin(ctxIdx int) int

	// DecodeBypass decodes an equiprobable bin (9.3.3.2.3).
	DecodeBypass() int

	// DecodeTerminate decodes a bin before termination (9.3.3.2.4).
	DecodeTerminate() int

	// Rewind returns unconsumed pre-fetched bytes to the byte source and
	// returns how many were returned.
	Rewind() int
}

// ArithmeticDecoder is the arithmetic decoding engine for a single slice. It
// must not be shared between goroutines.
type ArithmeticDecoder struct {
	src bits.ByteSource
	ctx *ContextTable

	rng     int // codIRange.
	code    int // codIOffset window followed by pre-fetched bits.
	pending int // Bits loaded into code but not yet consumed.

	// Set if the most recently loaded byte was zero fill after the end of
	// the source.
	fill bool
}

// NewArithmeticDecoder returns an ArithmeticDecoder reading from src and
// adapting the context models in ctx. The decoding engine is initialised from
// the current position of src.
func NewArithmeticDecoder(src bits.ByteSource, ctx *ContextTable) (*ArithmeticDecoder, error) {
	d := &ArithmeticDecoder{src: src, ctx: ctx}
	err := d.InitRegister()
	if err != nil {
		return nil, err
	}
	return d, nil
}

// InitRegister implements Engine. It may be called again after I_PCM samples
// have been read from the byte source.
func (d *ArithmeticDecoder) InitRegister() error {
	d.rng = initRange
	d.code = 0
	d.pending = 0
	d.fill = false
	for i := 0; i < 2; i++ {
		if !d.src.HasRemaining() {
			return errors.Wrapf(ErrMalformedStream, "got %d byte(s)", i)
		}
		d.code = d.code<<bitsPerByte | int(d.src.Get())
	}
	d.code <<= 1
	d.pending = initPending
	return nil
}

// DecodeBin implements Engine.
func (d *ArithmeticDecoder) DecodeBin(ctxIdx int) int {
	m := &d.ctx.Models[ctxIdx]
	rLPS := rangeLPS[(d.rng>>6)&3][m.State]
	d.rng -= rLPS

	if d.code < d.rng<<windowShift {
		bin := int(m.MPS)
		m.State = transIdxMPS[m.State]
		d.renorm()
		return bin
	}

	d.code -= d.rng << windowShift
	d.rng = rLPS
	bin := 1 - int(m.MPS)
	if m.State == 0 {
		m.MPS = 1 - m.MPS
	}
	m.State = transIdxLPS[m.State]
	d.renorm()
	return bin
}

// DecodeBypass implements Engine.
func (d *ArithmeticDecoder) DecodeBypass() int {
	d.code <<= 1
	d.pending--
	if d.pending <= 0 {
		d.load()
	}
	r := d.rng << windowShift
	if d.code < r {
		return 0
	}
	d.code -= r
	return 1
}

// DecodeTerminate implements Engine. When 1 is returned the register is left
// untouched and decoding of the slice should stop.
func (d *ArithmeticDecoder) DecodeTerminate() int {
	d.rng -= termRangeDec
	if d.code < d.rng<<windowShift {
		d.renorm()
		return 0
	}
	return 1
}

// Rewind implements Engine.
func (d *ArithmeticDecoder) Rewind() int {
	n := d.pending / bitsPerByte
	if n > 0 && d.fill {
		n--
	}
	d.src.SetPos(d.src.Pos() - n)
	if n > 0 {
		d.code &^= 0xff
		d.pending -= n * bitsPerByte
	}
	return n
}

// State returns the current values of codIRange, the code register and the
// number of pending bits.
func (d *ArithmeticDecoder) State() (rng, code, pending int) {
	return d.rng, d.code, d.pending
}

// renorm performs renormalisation (9.3.3.2.2).
func (d *ArithmeticDecoder) renorm() {
	for d.rng < minRange {
		d.rng <<= 1
		d.code = (d.code << 1) & codeMask
		d.pending--
		if d.pending <= 0 {
			d.load()
		}
	}
}

// load shifts the next source byte into the low bits of the code register.
// Past the end of the source zeros are loaded.
func (d *ArithmeticDecoder) load() {
	d.fill = !d.src.HasRemaining()
	if !d.fill {
		d.code |= int(d.src.Get())
	}
	d.pending += bitsPerByte
}
