/*
DESCRIPTION
  pps.go provides parsing of a picture parameter set as defined by section
  7.3.2.2 of the specifications.

AUTHORS
  mrmod <mcmoranbjr@gmail.com>
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import "github.com/pkg/errors"

// Bounds from the semantics of section 7.4.2.2.
const (
	maxSliceGroups = 8
	maxPPSID       = 255
)

var errBadPPS = errors.New("invalid picture parameter set")

// PPS describes a picture parameter set as defined by section 7.3.2.2.
// For semantics see section 7.4.2.2.
type PPS struct {
	ID, SPSID int

	// entropy_coding_mode_flag, if true CABAC is used for slice data.
	EntropyCodingModeFlag bool

	BottomFieldPicOrderInFramePresent bool

	// Slice group fields; present only when NumSliceGroupsMinus1 > 0.
	NumSliceGroupsMinus1       int
	SliceGroupMapType          int
	RunLengthMinus1            []int
	TopLeft                    []int
	BottomRight                []int
	SliceGroupChangeDirection  bool
	SliceGroupChangeRateMinus1 int
	PicSizeInMapUnitsMinus1    int
	SliceGroupID               []int

	NumRefIdxL0DefaultActiveMinus1 int
	NumRefIdxL1DefaultActiveMinus1 int
	WeightedPred                   bool
	WeightedBipredIDC              int
	PicInitQpMinus26               int
	PicInitQsMinus26               int
	ChromaQpIndexOffset            int
	DeblockingFilterControlPresent bool
	ConstrainedIntraPred           bool
	RedundantPicCntPresent         bool

	// Trailing fields, present if more_rbsp_data().
	Transform8x8Mode          bool
	PicScalingMatrixPresent   bool
	PicScalingListPresent     []bool
	ScalingLists              [][]int
	UseDefaultScalingMatrix   []bool
	SecondChromaQpIndexOffset int
}

// NewPPS parses a picture parameter set raw byte sequence payload following
// the syntax structure of section 7.3.2.2. chromaFormat is chroma_format_idc
// of the referenced SPS, which sets the number of 8x8 scaling lists.
func NewPPS(rbsp []byte, chromaFormat int) (*PPS, error) {
	pps := &PPS{}
	r := newFieldReader(rbsp)

	pps.ID = r.readUe()
	pps.SPSID = r.readUe()
	pps.EntropyCodingModeFlag = r.readFlag()
	pps.BottomFieldPicOrderInFramePresent = r.readFlag()
	pps.NumSliceGroupsMinus1 = r.readUe()
	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error from fieldReader")
	}
	if pps.ID > maxPPSID || pps.NumSliceGroupsMinus1 >= maxSliceGroups {
		return nil, errors.Wrapf(errBadPPS, "pic_parameter_set_id: %d, num_slice_groups_minus1: %d", pps.ID, pps.NumSliceGroupsMinus1)
	}

	if pps.NumSliceGroupsMinus1 > 0 {
		pps.SliceGroupMapType = r.readUe()

		switch pps.SliceGroupMapType {
		case 0:
			pps.RunLengthMinus1 = make([]int, pps.NumSliceGroupsMinus1+1)
			for i := range pps.RunLengthMinus1 {
				pps.RunLengthMinus1[i] = r.readUe()
			}
		case 2:
			pps.TopLeft = make([]int, pps.NumSliceGroupsMinus1)
			pps.BottomRight = make([]int, pps.NumSliceGroupsMinus1)
			for i := range pps.TopLeft {
				pps.TopLeft[i] = r.readUe()
				pps.BottomRight[i] = r.readUe()
			}
		case 3, 4, 5:
			pps.SliceGroupChangeDirection = r.readFlag()
			pps.SliceGroupChangeRateMinus1 = r.readUe()
		case 6:
			pps.PicSizeInMapUnitsMinus1 = r.readUe()
			if r.err() == nil && pps.PicSizeInMapUnitsMinus1 >= len(rbsp)*8 {
				return nil, errors.Wrapf(errBadPPS, "pic_size_in_map_units_minus1: %d", pps.PicSizeInMapUnitsMinus1)
			}
			n := ceilLog2(pps.NumSliceGroupsMinus1 + 1)
			pps.SliceGroupID = make([]int, pps.PicSizeInMapUnitsMinus1+1)
			for i := range pps.SliceGroupID {
				pps.SliceGroupID[i] = int(r.readBits(n))
			}
		}
	}

	pps.NumRefIdxL0DefaultActiveMinus1 = r.readUe()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.readUe()
	pps.WeightedPred = r.readFlag()
	pps.WeightedBipredIDC = int(r.readBits(2))
	pps.PicInitQpMinus26 = r.readSe()
	pps.PicInitQsMinus26 = r.readSe()
	pps.ChromaQpIndexOffset = r.readSe()
	pps.DeblockingFilterControlPresent = r.readFlag()
	pps.ConstrainedIntraPred = r.readFlag()
	pps.RedundantPicCntPresent = r.readFlag()

	pps.SecondChromaQpIndexOffset = pps.ChromaQpIndexOffset
	if r.moreRBSPData() {
		pps.Transform8x8Mode = r.readFlag()
		pps.PicScalingMatrixPresent = r.readFlag()
		if pps.PicScalingMatrixPresent {
			n := 2
			if chromaFormat == chroma444 {
				n = 6
			}
			n = 6 + n*flagVal(pps.Transform8x8Mode)
			pps.PicScalingListPresent, pps.ScalingLists, pps.UseDefaultScalingMatrix = scalingMatrix(r, n)
		}
		pps.SecondChromaQpIndexOffset = r.readSe()
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error from fieldReader")
	}
	return pps, nil
}

// CABAC reports whether slices referring to the PPS use CABAC.
func (p *PPS) CABAC() bool { return p.EntropyCodingModeFlag }

// MapParams returns the slice group map parameters carried by the PPS.
func (p *PPS) MapParams() MapParams {
	mp := MapParams{
		Type:            p.SliceGroupMapType,
		NumGroups:       p.NumSliceGroupsMinus1 + 1,
		TopLeft:         p.TopLeft,
		BottomRight:     p.BottomRight,
		ChangeDirection: p.SliceGroupChangeDirection,
		ChangeRate:      p.SliceGroupChangeRateMinus1 + 1,
		SliceGroupID:    p.SliceGroupID,
	}
	if p.RunLengthMinus1 != nil {
		mp.RunLength = make([]int, len(p.RunLengthMinus1))
		for i, v := range p.RunLengthMinus1 {
			mp.RunLength[i] = v + 1
		}
	}
	return mp
}
