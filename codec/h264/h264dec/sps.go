/*
DESCRIPTION
  sps.go provides parsing of a sequence parameter set as defined by section
  7.3.2.1.1 of the specifications, through to the frame cropping fields.

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

// Chroma formats as defined in section 6.2, tab 6-1.
const (
	chromaMonochrome = iota
	chroma420
	chroma422
	chroma444
)

// Profiles for which chroma format, bit depth and scaling matrices are
// present in the SPS.
var highProfiles = map[int]bool{
	100: true, 110: true, 122: true, 244: true, 44: true, 83: true, 86: true,
	118: true, 128: true, 138: true, 139: true, 134: true, 135: true,
}

var errBadSPS = errors.New("invalid sequence parameter set")

// SPS describes a sequence parameter set as defined by section 7.3.2.1.1 in
// the Specifications.
// For semantics see section 7.4.2.1. Comments for fields are excerpts from
// section 7.4.2.1.
type SPS struct {
	// profile_idc and level_idc indicate the profile and level to which the
	// coded video sequence conforms.
	Profile, LevelIDC int

	// constraint_set0_flag to constraint_set5_flag, bit 5 holding
	// constraint_set0_flag.
	Constraints uint8

	// seq_parameter_set_id identifies this sequence parameter set, and can then
	// be reference by the picture parameter set. The seq_parameter_set_id is
	// in the range of 0 to 31 inclusive.
	SPSID int

	// chroma_format_idc specifies the chroma sampling relative to the luma
	// sampling as specified in clause 6.2. Inferred to be 1 when not present.
	ChromaFormatIDC int

	// separate_colour_plane_flag if true specifies that the three components of
	// the 4:4:4 chroma format are coded separately.
	SeparateColorPlaneFlag bool

	BitDepthLumaMinus8              int
	BitDepthChromaMinus8            int
	QPPrimeYZeroTransformBypassFlag bool

	// seq_scaling_matrix_present_flag and seq_scaling_list_present_flag[i].
	SeqScalingMatrixPresentFlag bool
	SeqScalingListPresentFlag   []bool

	// Sequence scaling lists in zig-zag order, 4x4 lists first. A nil entry
	// is either absent or uses the default matrix as given by
	// UseDefaultScalingMatrix.
	ScalingLists            [][]int
	UseDefaultScalingMatrix []bool

	// log2_max_frame_num_minus4 allows for derivation of MaxFrameNum using eq 7-10.
	Log2MaxFrameNumMinus4 int

	// pic_order_cnt_type specifies the method to decode picture order count.
	PicOrderCountType int

	// log2_max_pic_order_cnt_lsb_minus4 allows for the derivation of
	// MaxPicOrderCntLsb using eq 7-11.
	Log2MaxPicOrderCntLSBMinus4 int

	DeltaPicOrderAlwaysZeroFlag    bool
	OffsetForNonRefPic             int
	OffsetForTopToBottomField      int
	NumRefFramesInPicOrderCntCycle int
	OffsetForRefFrameList          []int

	MaxNumRefFrames            int
	GapsInFrameNumValueAllowed bool

	// pic_width_in_mbs_minus1 plus 1 specifies the width of each decoded
	// picture in units of macroblocks. See eq 7-13.
	PicWidthInMBSMinus1 int

	// pic_height_in_map_units_minus1 plus 1 specifies the height in slice group
	// map units of a decoded frame or field. See eq 7-16.
	PicHeightInMapUnitsMinus1 int

	// frame_mbs_only_flag if 0 coded pictures of the coded video sequence may be
	// coded fields or coded frames. If 1 every coded picture of the coded video
	// sequence is a coded frame containing only frame macroblocks.
	FrameMBSOnlyFlag bool

	// mb_adaptive_frame_field_flag if 1 specifies the possible use of switching
	// between frame and field macroblocks within frames.
	MBAdaptiveFrameFieldFlag bool

	Direct8x8InferenceFlag bool

	FrameCroppingFlag     bool
	FrameCropLeftOffset   int
	FrameCropRightOffset  int
	FrameCropTopOffset    int
	FrameCropBottomOffset int

	// vui_parameters_present_flag. The VUI itself is not parsed.
	VUIParametersPresentFlag bool
}

// NewSPS parses a sequence parameter set raw byte sequence payload following
// the syntax structure specified in section 7.3.2.1.1, and returns as a new
// SPS.
func NewSPS(rbsp []byte) (*SPS, error) {
	sps := &SPS{ChromaFormatIDC: chroma420}
	r := newFieldReader(rbsp)

	sps.Profile = int(r.readBits(8))
	sps.Constraints = uint8(r.readBits(6))
	r.readBits(2) // reserved_zero_2bits
	sps.LevelIDC = int(r.readBits(8))
	sps.SPSID = r.readUe()

	if highProfiles[sps.Profile] {
		sps.ChromaFormatIDC = r.readUe()
		if sps.ChromaFormatIDC == chroma444 {
			sps.SeparateColorPlaneFlag = r.readFlag()
		}
		sps.BitDepthLumaMinus8 = r.readUe()
		sps.BitDepthChromaMinus8 = r.readUe()
		sps.QPPrimeYZeroTransformBypassFlag = r.readFlag()
		sps.SeqScalingMatrixPresentFlag = r.readFlag()

		if sps.SeqScalingMatrixPresentFlag {
			n := 12
			if sps.ChromaFormatIDC != chroma444 {
				n = 8
			}
			sps.SeqScalingListPresentFlag, sps.ScalingLists, sps.UseDefaultScalingMatrix = scalingMatrix(r, n)
		}
	}

	sps.Log2MaxFrameNumMinus4 = r.readUe()
	sps.PicOrderCountType = r.readUe()

	switch sps.PicOrderCountType {
	case 0:
		sps.Log2MaxPicOrderCntLSBMinus4 = r.readUe()
	case 1:
		sps.DeltaPicOrderAlwaysZeroFlag = r.readFlag()
		sps.OffsetForNonRefPic = r.readSe()
		sps.OffsetForTopToBottomField = r.readSe()
		sps.NumRefFramesInPicOrderCntCycle = r.readUe()
		if sps.NumRefFramesInPicOrderCntCycle > 255 {
			return nil, errors.Wrapf(errBadSPS, "num_ref_frames_in_pic_order_cnt_cycle: %d", sps.NumRefFramesInPicOrderCntCycle)
		}
		for i := 0; i < sps.NumRefFramesInPicOrderCntCycle; i++ {
			sps.OffsetForRefFrameList = append(sps.OffsetForRefFrameList, r.readSe())
		}
	}

	sps.MaxNumRefFrames = r.readUe()
	sps.GapsInFrameNumValueAllowed = r.readFlag()
	sps.PicWidthInMBSMinus1 = r.readUe()
	sps.PicHeightInMapUnitsMinus1 = r.readUe()
	sps.FrameMBSOnlyFlag = r.readFlag()

	if !sps.FrameMBSOnlyFlag {
		sps.MBAdaptiveFrameFieldFlag = r.readFlag()
	}

	sps.Direct8x8InferenceFlag = r.readFlag()
	sps.FrameCroppingFlag = r.readFlag()

	if sps.FrameCroppingFlag {
		sps.FrameCropLeftOffset = r.readUe()
		sps.FrameCropRightOffset = r.readUe()
		sps.FrameCropTopOffset = r.readUe()
		sps.FrameCropBottomOffset = r.readUe()
	}

	sps.VUIParametersPresentFlag = r.readFlag()

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error from fieldReader")
	}
	if sps.Log2MaxFrameNumMinus4 > 12 || sps.Log2MaxPicOrderCntLSBMinus4 > 12 {
		return nil, errors.Wrap(errBadSPS, "log2 max frame num or poc lsb out of range")
	}
	return sps, nil
}

// scalingMatrix parses n scaling list present flags and their scaling lists,
// 4x4 lists of 16 entries for i < 6 and 8x8 lists of 64 entries otherwise.
func scalingMatrix(r *fieldReader, n int) (present []bool, lists [][]int, useDefault []bool) {
	present = make([]bool, n)
	lists = make([][]int, n)
	useDefault = make([]bool, n)
	for i := 0; i < n; i++ {
		present[i] = r.readFlag()
		if !present[i] {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		lists[i], useDefault[i] = scalingList(r, size)
		if useDefault[i] {
			lists[i] = nil
		}
	}
	return present, lists, useDefault
}

// scalingList parses a scaling_list() (7.3.2.1.1.1) of the given size.
func scalingList(r *fieldReader, size int) ([]int, bool) {
	var (
		list       = make([]int, size)
		lastScale  = 8
		nextScale  = 8
		useDefault bool
	)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			deltaScale := r.readSe()
			nextScale = (lastScale + deltaScale + 256) % 256
			useDefault = j == 0 && nextScale == 0
		}
		if nextScale != 0 {
			list[j] = nextScale
		} else {
			list[j] = lastScale
		}
		lastScale = list[j]
	}
	return list, useDefault
}

// ChromaArrayType returns ChromaArrayType as given by the semantics of
// separate_colour_plane_flag.
func (s *SPS) ChromaArrayType() int {
	if s.SeparateColorPlaneFlag {
		return 0
	}
	return s.ChromaFormatIDC
}

// PicWidthInMbs returns PicWidthInMbs (7-13).
func (s *SPS) PicWidthInMbs() int { return s.PicWidthInMBSMinus1 + 1 }

// PicHeightInMapUnits returns PicHeightInMapUnits (7-16).
func (s *SPS) PicHeightInMapUnits() int { return s.PicHeightInMapUnitsMinus1 + 1 }

// PicSizeInMapUnits returns PicSizeInMapUnits (7-17).
func (s *SPS) PicSizeInMapUnits() int { return s.PicWidthInMbs() * s.PicHeightInMapUnits() }

// FrameHeightInMbs returns FrameHeightInMbs (7-18).
func (s *SPS) FrameHeightInMbs() int {
	return (2 - flagVal(s.FrameMBSOnlyFlag)) * s.PicHeightInMapUnits()
}

// MaxFrameNum returns MaxFrameNum (7-10).
func (s *SPS) MaxFrameNum() int { return 1 << uint(s.Log2MaxFrameNumMinus4+4) }

func flagVal(b bool) int {
	if b {
		return 1
	}
	return 0
}
