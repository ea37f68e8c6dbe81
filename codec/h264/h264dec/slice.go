/*
DESCRIPTION
  slice.go provides parsing of the slice header syntax structure of section
  7.3.3 of the specifications, and location of the slice data that follows.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  mrmod <mcmoranbjr@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import "github.com/pkg/errors"

// Slice types as defined by table 7-6 in specifications.
const (
	sliceTypeP  = 0
	sliceTypeB  = 1
	sliceTypeI  = 2
	sliceTypeSP = 3
	sliceTypeSI = 4
)

// Table 7-6
var sliceTypeNames = [5]string{"P", "B", "I", "SP", "SI"}

// Upper bound on list modification and memory management operations, which
// guards the loops below against malformed input.
const maxSliceHeaderOps = 64

var (
	errNotSlice     = errors.New("NAL unit does not contain a slice")
	errBadSlice     = errors.New("invalid slice header")
	errPPSMismatch  = errors.New("slice refers to a different PPS")
	errTooManyOps   = errors.New("too many operations in slice header")
	errBadSliceType = errors.New("invalid slice_type")
)

// RefPicListModification provides elements of a ref_pic_list_modification
// syntax structure as defined in 7.3.3.1 of the specifications.
type RefPicListModification struct {
	RefPicListModificationFlag [2]bool
	Ops                        [2][]RefPicListOp
}

// RefPicListOp is one modification_of_pic_nums_idc operation and its
// argument, which is abs_diff_pic_num_minus1 for idc 0 and 1 and
// long_term_pic_num for idc 2.
type RefPicListOp struct {
	ModificationOfPicNumsIDC int
	Value                    int
}

func newRefPicListModification(r *fieldReader, sliceType int) (*RefPicListModification, error) {
	m := &RefPicListModification{}
	lists := 0
	if sliceType != sliceTypeI && sliceType != sliceTypeSI {
		lists = 1
	}
	if sliceType == sliceTypeB {
		lists = 2
	}
	for l := 0; l < lists; l++ {
		m.RefPicListModificationFlag[l] = r.readFlag()
		if !m.RefPicListModificationFlag[l] {
			continue
		}
		for {
			op := RefPicListOp{ModificationOfPicNumsIDC: r.readUe()}
			if op.ModificationOfPicNumsIDC == 3 || r.err() != nil {
				break
			}
			if op.ModificationOfPicNumsIDC > 3 {
				return nil, errors.Wrapf(errBadSlice, "modification_of_pic_nums_idc: %d", op.ModificationOfPicNumsIDC)
			}
			op.Value = r.readUe()
			m.Ops[l] = append(m.Ops[l], op)
			if len(m.Ops[l]) > maxSliceHeaderOps {
				return nil, errTooManyOps
			}
		}
	}
	return m, nil
}

// PredWeightTable provides elements of a pred_weight_table syntax structure
// as defined in section 7.3.3.2 of the specifications. Entries for which the
// weight flags are false hold the inferred default values.
type PredWeightTable struct {
	LumaLog2WeightDenom   int
	ChromaLog2WeightDenom int
	LumaWeight            [2][]int
	LumaOffset            [2][]int
	ChromaWeight          [2][][2]int
	ChromaOffset          [2][][2]int
}

func newPredWeightTable(r *fieldReader, h *SliceHeader, chromaArrayType int) *PredWeightTable {
	p := &PredWeightTable{}
	p.LumaLog2WeightDenom = r.readUe()
	if chromaArrayType != 0 {
		p.ChromaLog2WeightDenom = r.readUe()
	}

	n := [2]int{h.NumRefIdxL0ActiveMinus1 + 1, 0}
	if h.SliceType%5 == sliceTypeB {
		n[1] = h.NumRefIdxL1ActiveMinus1 + 1
	}
	for l := 0; l < 2; l++ {
		for i := 0; i < n[l] && r.err() == nil; i++ {
			lw, lo := 1<<uint(p.LumaLog2WeightDenom), 0
			if r.readFlag() {
				lw, lo = r.readSe(), r.readSe()
			}
			p.LumaWeight[l] = append(p.LumaWeight[l], lw)
			p.LumaOffset[l] = append(p.LumaOffset[l], lo)

			if chromaArrayType == 0 {
				continue
			}
			cw := [2]int{1 << uint(p.ChromaLog2WeightDenom), 1 << uint(p.ChromaLog2WeightDenom)}
			var co [2]int
			if r.readFlag() {
				for j := 0; j < 2; j++ {
					cw[j], co[j] = r.readSe(), r.readSe()
				}
			}
			p.ChromaWeight[l] = append(p.ChromaWeight[l], cw)
			p.ChromaOffset[l] = append(p.ChromaOffset[l], co)
		}
	}
	return p
}

// DecRefPicMarking provides elements of a dec_ref_pic_marking syntax structure
// as defined in section 7.3.3.3 of the specifications.
type DecRefPicMarking struct {
	NoOutputOfPriorPicsFlag       bool
	LongTermReferenceFlag         bool
	AdaptiveRefPicMarkingModeFlag bool
	Ops                           []MMCO
}

// MMCO is a memory_management_control_operation with its arguments.
type MMCO struct {
	Op                        int
	DifferenceOfPicNumsMinus1 int
	LongTermPicNum            int
	LongTermFrameIdx          int
	MaxLongTermFrameIdxPlus1  int
}

func newDecRefPicMarking(r *fieldReader, idrPic bool) (*DecRefPicMarking, error) {
	d := &DecRefPicMarking{}
	if idrPic {
		d.NoOutputOfPriorPicsFlag = r.readFlag()
		d.LongTermReferenceFlag = r.readFlag()
		return d, nil
	}

	d.AdaptiveRefPicMarkingModeFlag = r.readFlag()
	if !d.AdaptiveRefPicMarkingModeFlag {
		return d, nil
	}
	for {
		m := MMCO{Op: r.readUe()}
		if m.Op == 0 || r.err() != nil {
			break
		}
		switch m.Op {
		case 1:
			m.DifferenceOfPicNumsMinus1 = r.readUe()
		case 2:
			m.LongTermPicNum = r.readUe()
		case 3:
			m.DifferenceOfPicNumsMinus1 = r.readUe()
			m.LongTermFrameIdx = r.readUe()
		case 4:
			m.MaxLongTermFrameIdxPlus1 = r.readUe()
		case 5:
		case 6:
			m.LongTermFrameIdx = r.readUe()
		default:
			return nil, errors.Wrapf(errBadSlice, "memory_management_control_operation: %d", m.Op)
		}
		d.Ops = append(d.Ops, m)
		if len(d.Ops) > maxSliceHeaderOps {
			return nil, errTooManyOps
		}
	}
	return d, nil
}

// SliceHeader describes a slice header as defined by section 7.3.3.
// For semantics see section 7.4.3.
type SliceHeader struct {
	FirstMbInSlice          int
	SliceType               int
	PPSID                   int
	ColorPlaneID            int
	FrameNum                int
	FieldPic                bool
	BottomField             bool
	IDRPicID                int
	PicOrderCntLsb          int
	DeltaPicOrderCntBottom  int
	DeltaPicOrderCnt        [2]int
	RedundantPicCnt         int
	DirectSpatialMvPred     bool
	NumRefIdxActiveOverride bool
	NumRefIdxL0ActiveMinus1 int
	NumRefIdxL1ActiveMinus1 int
	*RefPicListModification
	*PredWeightTable
	*DecRefPicMarking
	CabacInitIDC               int
	SliceQpDelta               int
	SpForSwitch                bool
	SliceQsDelta               int
	DisableDeblockingFilterIDC int
	SliceAlphaC0OffsetDiv2     int
	SliceBetaOffsetDiv2        int
	SliceGroupChangeCycle      int

	// Bit offset in the RBSP of the first bit following the header, and
	// whether slice data is CABAC coded.
	headerBits int
	cabac      bool
}

// NewSliceHeader parses the slice header at the start of the RBSP of the
// slice NAL unit nal, given the active sps and pps, following the syntax
// structure of section 7.3.3.
func NewSliceHeader(rbsp []byte, nal *NALUnit, sps *SPS, pps *PPS) (*SliceHeader, error) {
	if !nal.IsSlice() {
		return nil, errors.Wrapf(errNotSlice, "nal_unit_type: %d", nal.Type)
	}
	h := &SliceHeader{cabac: pps.EntropyCodingModeFlag}
	r := newFieldReader(rbsp)

	h.FirstMbInSlice = r.readUe()
	h.SliceType = r.readUe()
	if h.SliceType > 9 {
		return nil, errors.Wrapf(errBadSliceType, "slice_type: %d", h.SliceType)
	}
	st := h.SliceType % 5
	h.PPSID = r.readUe()
	if r.err() == nil && h.PPSID != pps.ID {
		return nil, errors.Wrapf(errPPSMismatch, "slice pps: %d, active pps: %d", h.PPSID, pps.ID)
	}

	if sps.SeparateColorPlaneFlag {
		h.ColorPlaneID = int(r.readBits(2))
	}
	h.FrameNum = int(r.readBits(sps.Log2MaxFrameNumMinus4 + 4))
	if !sps.FrameMBSOnlyFlag {
		h.FieldPic = r.readFlag()
		if h.FieldPic {
			h.BottomField = r.readFlag()
		}
	}
	if nal.IDR() {
		h.IDRPicID = r.readUe()
	}
	if sps.PicOrderCountType == 0 {
		h.PicOrderCntLsb = int(r.readBits(sps.Log2MaxPicOrderCntLSBMinus4 + 4))
		if pps.BottomFieldPicOrderInFramePresent && !h.FieldPic {
			h.DeltaPicOrderCntBottom = r.readSe()
		}
	}
	if sps.PicOrderCountType == 1 && !sps.DeltaPicOrderAlwaysZeroFlag {
		h.DeltaPicOrderCnt[0] = r.readSe()
		if pps.BottomFieldPicOrderInFramePresent && !h.FieldPic {
			h.DeltaPicOrderCnt[1] = r.readSe()
		}
	}
	if pps.RedundantPicCntPresent {
		h.RedundantPicCnt = r.readUe()
	}
	if st == sliceTypeB {
		h.DirectSpatialMvPred = r.readFlag()
	}

	h.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
	h.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
	if st == sliceTypeP || st == sliceTypeSP || st == sliceTypeB {
		h.NumRefIdxActiveOverride = r.readFlag()
		if h.NumRefIdxActiveOverride {
			h.NumRefIdxL0ActiveMinus1 = r.readUe()
			if st == sliceTypeB {
				h.NumRefIdxL1ActiveMinus1 = r.readUe()
			}
		}
	}
	if h.NumRefIdxL0ActiveMinus1 > 31 || h.NumRefIdxL1ActiveMinus1 > 31 {
		return nil, errors.Wrap(errBadSlice, "num_ref_idx_active_minus1 out of range")
	}

	var err error
	h.RefPicListModification, err = newRefPicListModification(r, st)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse ref_pic_list_modification")
	}

	if (pps.WeightedPred && (st == sliceTypeP || st == sliceTypeSP)) || (pps.WeightedBipredIDC == 1 && st == sliceTypeB) {
		h.PredWeightTable = newPredWeightTable(r, h, sps.ChromaArrayType())
	}
	if nal.RefIdc != 0 {
		h.DecRefPicMarking, err = newDecRefPicMarking(r, nal.IDR())
		if err != nil {
			return nil, errors.Wrap(err, "could not parse dec_ref_pic_marking")
		}
	}
	if pps.EntropyCodingModeFlag && st != sliceTypeI && st != sliceTypeSI {
		h.CabacInitIDC = r.readUe()
		if h.CabacInitIDC > 2 {
			return nil, errors.Wrapf(errBadSlice, "cabac_init_idc: %d", h.CabacInitIDC)
		}
	}
	h.SliceQpDelta = r.readSe()

	if st == sliceTypeSP || st == sliceTypeSI {
		if st == sliceTypeSP {
			h.SpForSwitch = r.readFlag()
		}
		h.SliceQsDelta = r.readSe()
	}
	if pps.DeblockingFilterControlPresent {
		h.DisableDeblockingFilterIDC = r.readUe()
		if h.DisableDeblockingFilterIDC != 1 {
			h.SliceAlphaC0OffsetDiv2 = r.readSe()
			h.SliceBetaOffsetDiv2 = r.readSe()
		}
	}
	if pps.NumSliceGroupsMinus1 > 0 && pps.SliceGroupMapType >= 3 && pps.SliceGroupMapType <= 5 {
		n := changeCycleBits(sps.PicSizeInMapUnits(), pps.SliceGroupChangeRateMinus1+1)
		h.SliceGroupChangeCycle = int(r.readBits(n))
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error from fieldReader")
	}
	if qp := SliceQPy(pps, h); qp < -6*sps.BitDepthLumaMinus8 || qp > 51 {
		return nil, errors.Wrapf(errBadSlice, "SliceQPY: %d", qp)
	}
	h.headerBits = r.pos()
	return h, nil
}

// SlicePPSID returns the pic_parameter_set_id of the slice header at the start
// of rbsp, so that the active parameter sets may be found before the header is
// parsed with NewSliceHeader.
func SlicePPSID(rbsp []byte) (int, error) {
	r := newFieldReader(rbsp)
	r.readUe() // first_mb_in_slice
	r.readUe() // slice_type
	id := r.readUe()
	if r.err() != nil {
		return 0, errors.Wrap(r.err(), "could not read pic_parameter_set_id")
	}
	return id, nil
}

// changeCycleBits returns the length of slice_group_change_cycle, given by
// Ceil(Log2(PicSizeInMapUnits ÷ SliceGroupChangeRate + 1)) (7-35).
func changeCycleBits(picSizeInMapUnits, changeRate int) int {
	n := 0
	for (1<<uint(n))*changeRate < picSizeInMapUnits+changeRate {
		n++
	}
	return n
}

// SliceTypeName returns the name of the slice type from table 7-6.
func (h *SliceHeader) SliceTypeName() string {
	return sliceTypeNames[h.SliceType%5]
}

// HeaderBits returns the length of the slice header in bits.
func (h *SliceHeader) HeaderBits() int { return h.headerBits }

// SliceDataOffset returns the byte offset in the RBSP at which slice data
// begins. For CABAC slices this is where the arithmetic decoder is
// initialised, following the cabac_alignment_one_bits.
func (h *SliceHeader) SliceDataOffset() int {
	return (h.headerBits + 7) / 8
}

// CABAC reports whether slice data is CABAC coded.
func (h *SliceHeader) CABAC() bool { return h.cabac }

// MbaffFrameFlag returns MbaffFrameFlag (7-25).
func (h *SliceHeader) MbaffFrameFlag(sps *SPS) bool {
	return sps.MBAdaptiveFrameFieldFlag && !h.FieldPic
}

// FirstMbAddr returns the address of the first macroblock of the slice. In
// MBAFF frames first_mb_in_slice counts macroblock pairs (7.4.3).
func (h *SliceHeader) FirstMbAddr(sps *SPS) int {
	return h.FirstMbInSlice * (1 + flagVal(h.MbaffFrameFlag(sps)))
}

// PicHeightInMbs returns PicHeightInMbs (7-26).
func (h *SliceHeader) PicHeightInMbs(sps *SPS) int {
	return sps.FrameHeightInMbs() / (1 + flagVal(h.FieldPic))
}

// PicSizeInMbs returns PicSizeInMbs (7-29).
func (h *SliceHeader) PicSizeInMbs(sps *SPS) int {
	return sps.PicWidthInMbs() * h.PicHeightInMbs(sps)
}

// Layout returns the frame layout of the picture the slice belongs to, as
// used to expand map units to macroblocks.
func (h *SliceHeader) Layout(sps *SPS) FrameLayout {
	switch {
	case sps.FrameMBSOnlyFlag:
		return FrameOnly
	case h.FieldPic:
		return FieldPicture
	case sps.MBAdaptiveFrameFieldFlag:
		return MBAFFFrame
	default:
		return NonMBAFFFrame
	}
}

// CheckCABACAlignment reports whether the cabac_alignment_one_bits between
// the header and slice data are all 1.
func (h *SliceHeader) CheckCABACAlignment(rbsp []byte) bool {
	for i := h.headerBits; i < h.SliceDataOffset()*8; i++ {
		if i/8 >= len(rbsp) || rbsp[i/8]&(0x80>>uint(i%8)) == 0 {
			return false
		}
	}
	return true
}
