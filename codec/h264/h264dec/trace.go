/*
DESCRIPTION
  trace.go provides an Engine decorator that logs every decoded bin, useful
  for comparing decoding against reference decoder traces.

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

import "github.com/ausocean/utils/logging"

const pkg = "h264dec: "

// Tracer wraps an Engine and logs each operation at debug level.
type Tracer struct {
	e   Engine
	log logging.Logger
	n   int // Bins decoded since the register was last initialised.
}

// NewTracer returns a Tracer decorating e. If l is nil, logging is discarded.
func NewTracer(e Engine, l logging.Logger) *Tracer {
	return &Tracer{e: e, log: orNop(l)}
}

// InitRegister implements Engine.
func (t *Tracer) InitRegister() error {
	t.n = 0
	err := t.e.InitRegister()
	if err != nil {
		t.log.Warning(pkg+"could not initialise decoding engine", "error", err.Error())
		return err
	}
	t.log.Debug(pkg + "decoding engine initialised")
	return nil
}

// DecodeBin implements Engine.
func (t *Tracer) DecodeBin(ctxIdx int) int {
	bin := t.e.DecodeBin(ctxIdx)
	t.log.Debug(pkg+"bin", "n", t.n, "ctxIdx", ctxIdx, "bin", bin)
	t.n++
	return bin
}

// DecodeBypass implements Engine.
func (t *Tracer) DecodeBypass() int {
	bin := t.e.DecodeBypass()
	t.log.Debug(pkg+"bypass bin", "n", t.n, "bin", bin)
	t.n++
	return bin
}

// DecodeTerminate implements Engine.
func (t *Tracer) DecodeTerminate() int {
	bin := t.e.DecodeTerminate()
	t.log.Debug(pkg+"terminate bin", "n", t.n, "bin", bin)
	t.n++
	return bin
}

// Rewind implements Engine.
func (t *Tracer) Rewind() int {
	n := t.e.Rewind()
	t.log.Debug(pkg+"rewound byte source", "bytes", n)
	return n
}

// Bins returns the number of bins decoded since the last initialisation.
func (t *Tracer) Bins() int { return t.n }

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Log(int8, string, ...interface{})  {}
func (nopLogger) SetLevel(int8)                     {}
func (nopLogger) Debug(string, ...interface{})      {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warning(string, ...interface{})    {}
func (nopLogger) Error(string, ...interface{})      {}
func (nopLogger) Fatal(string, ...interface{})      {}

func orNop(l logging.Logger) logging.Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
