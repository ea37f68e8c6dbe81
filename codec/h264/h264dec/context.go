/*
DESCRIPTION
  context.go provides the context model table used by the arithmetic decoder
  and its initialisation from (m, n) pairs as described by section 9.3.1.1 of
  the specifications.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Bruce McMoran <mcmoranbjr@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import "github.com/pkg/errors"

// ContextModel is the adaptive probability estimate for one context index;
// State is pStateIdx in [0,63] and MPS is valMPS, either 0 or 1.
type ContextModel struct {
	State uint8
	MPS   uint8
}

// ContextTable holds the context models of one slice, addressed by ctxIdx.
// A table is owned by the caller and must only be used by one decoder at a
// time.
type ContextTable struct {
	Models []ContextModel
}

// NewContextTable returns a table of n context models, each in state 0 with
// an MPS of 0.
func NewContextTable(n int) *ContextTable {
	return &ContextTable{Models: make([]ContextModel, n)}
}

// Len returns the number of context models in the table.
func (t *ContextTable) Len() int { return len(t.Models) }

// Clone returns a deep copy of the table.
func (t *ContextTable) Clone() *ContextTable {
	c := &ContextTable{Models: make([]ContextModel, len(t.Models))}
	copy(c.Models, t.Models)
	return c
}

// MN holds the m and n values used to initialise a context model, as found in
// tables 9-12 to 9-33 of the specifications.
type MN struct {
	M, N int
}

var errBadQP = errors.New("slice QP outside of valid range")

// Init initialises the first len(mn) context models for a slice with the given
// SliceQPY using the process of section 9.3.1.1. The table grows if it is too
// small to hold len(mn) models.
func (t *ContextTable) Init(mn []MN, sliceQPY int) error {
	if sliceQPY < -51 || sliceQPY > 51 {
		return errors.Wrapf(errBadQP, "SliceQPY: %d", sliceQPY)
	}
	if len(t.Models) < len(mn) {
		t.Models = append(t.Models, make([]ContextModel, len(mn)-len(t.Models))...)
	}
	for i, v := range mn {
		t.Models[i] = modelFor(v, sliceQPY)
	}
	return nil
}

// modelFor derives pStateIdx and valMPS from preCtxState (9-5).
func modelFor(v MN, sliceQPY int) ContextModel {
	pre := PreCtxState(v.M, v.N, sliceQPY)
	if pre <= 63 {
		return ContextModel{State: uint8(63 - pre), MPS: 0}
	}
	return ContextModel{State: uint8(pre - 64), MPS: 1}
}

// SliceQPy returns SliceQPY given the picture parameter set and slice header
// (7-30).
func SliceQPy(pps *PPS, header *SliceHeader) int {
	return 26 + pps.PicInitQpMinus26 + header.SliceQpDelta
}

// PreCtxState returns preCtxState as described by equation 9-5.
func PreCtxState(m, n, sliceQPy int) int {
	return Clip3(1, 126, ((m*Clip3(0, 51, sliceQPy))>>4)+n)
}

// Clip3 clips z to the range [x, y] (5-8).
func Clip3(x, y, z int) int {
	if z < x {
		return x
	}
	if z > y {
		return y
	}
	return z
}
