/*
DESCRIPTION
  binarize.go provides decoding of the binarizations of section 9.3.2 of the
  specifications, pulling bins from an arithmetic decoding Engine.

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

import "math"

// CtxSelector returns the ctxIdx to be used for decoding the bin at binIdx.
type CtxSelector func(binIdx int) int

// FixedCtx returns a CtxSelector that uses ctxIdx for every bin.
func FixedCtx(ctxIdx int) CtxSelector {
	return func(int) int { return ctxIdx }
}

// OffsetCtx returns a CtxSelector giving ctxIdxOffset plus the increment for
// binIdx from incs. Bins beyond the end of incs use the last increment, as
// is the case for table 9-39 rows ending in ">= n".
func OffsetCtx(ctxIdxOffset int, incs ...int) CtxSelector {
	return func(binIdx int) int {
		if binIdx >= len(incs) {
			binIdx = len(incs) - 1
		}
		return ctxIdxOffset + incs[binIdx]
	}
}

// DecodeUnary decodes a unary (U) binarized value (9.3.2.1).
func DecodeUnary(e Engine, sel CtxSelector) int {
	v := 0
	for e.DecodeBin(sel(v)) == 1 {
		v++
	}
	return v
}

// DecodeTruncUnary decodes a truncated unary (TU) binarized value with the
// given cMax (9.3.2.2).
func DecodeTruncUnary(e Engine, cMax int, sel CtxSelector) int {
	v := 0
	for v < cMax && e.DecodeBin(sel(v)) == 1 {
		v++
	}
	return v
}

// DecodeFixedLength decodes a fixed length (FL) binarized value with the
// given cMax (9.3.2.5). The first bin is the least significant bit.
func DecodeFixedLength(e Engine, cMax int, sel CtxSelector) int {
	v := 0
	for i := 0; i < fixedLen(cMax); i++ {
		v |= e.DecodeBin(sel(i)) << uint(i)
	}
	return v
}

// DecodeUEGk decodes a concatenated unary/k-th order Exp-Golomb (UEGk)
// binarized value (9.3.2.3). The truncated unary prefix is decoded with the
// contexts given by sel and the suffix and sign with bypass decoding.
func DecodeUEGk(e Engine, k, uCoff int, signedValFlag bool, sel CtxSelector) int {
	v := DecodeTruncUnary(e, uCoff, sel)
	if v >= uCoff {
		for e.DecodeBypass() == 1 {
			v += 1 << uint(k)
			k++
		}
		for k--; k >= 0; k-- {
			v += e.DecodeBypass() << uint(k)
		}
	}
	if signedValFlag && v != 0 && e.DecodeBypass() == 1 {
		v = -v
	}
	return v
}

// DecodeEndOfSlice decodes end_of_slice_flag using DecodeTerminate.
func DecodeEndOfSlice(e Engine) bool {
	return e.DecodeTerminate() == 1
}

// fixedLen returns the number of bins of a FL binarization with cMax.
func fixedLen(cMax int) int {
	return int(math.Ceil(math.Log2(float64(cMax + 1))))
}
