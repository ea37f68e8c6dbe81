/*
DESCRIPTION
  slice_test.go provides testing for parsing functionality found in slice.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>
  Shawn Smith <shawn@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"reflect"
	"testing"

	"github.com/ausocean/avc/codec/h264/h264dec/bits"
	"github.com/pkg/errors"
)

func TestNewRefPicListModification(t *testing.T) {
	tests := []struct {
		in        string
		sliceType int
		want      RefPicListModification
	}{
		{
			in: "1" + // u(1) ref_pic_list_modification_flag_l0=true
				// First modification for list0
				"1" + // ue(v) modification_of_pic_nums_idc[0][0] = 0
				"010" + // ue(v) abs_diff_pic_num_minus1[0][0] = 1

				// Second modification for list0
				"010" + // ue(v) modification_of_pic_nums_idc[0][1] = 1
				"011" + // ue(v) abs_diff_pic_num_minus1[0][1] = 2

				// Third modification for list0
				"011" + // ue(v) modification_of_pic_nums_idc[0][2] = 2
				"010" + // ue(v) long_term_pic_num = 1

				// Fourth modification does not exist
				"00100", // ue(v) modification_of_pic_nums_idc[0][3] = 3

			sliceType: sliceTypeSP,

			want: RefPicListModification{
				RefPicListModificationFlag: [2]bool{true, false},
				Ops: [2][]RefPicListOp{
					{
						{ModificationOfPicNumsIDC: 0, Value: 1},
						{ModificationOfPicNumsIDC: 1, Value: 2},
						{ModificationOfPicNumsIDC: 2, Value: 1},
					},
					nil,
				},
			},
		},
		{
			in: "0" + // u(1) ref_pic_list_modification_flag_l0=false
				"1" + // u(1) ref_pic_list_modification_flag_l1=true
				"1" + // ue(v) modification_of_pic_nums_idc[1][0] = 0
				"1" + // ue(v) abs_diff_pic_num_minus1[1][0] = 0
				"00100", // ue(v) modification_of_pic_nums_idc[1][1] = 3

			sliceType: sliceTypeB,

			want: RefPicListModification{
				RefPicListModificationFlag: [2]bool{false, true},
				Ops:                        [2][]RefPicListOp{nil, {{ModificationOfPicNumsIDC: 0, Value: 0}}},
			},
		},
		{
			in:        "1",
			sliceType: sliceTypeI,
			want:      RefPicListModification{},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}

		got, err := newRefPicListModification(newFieldReader(inBytes), test.sliceType)
		if err != nil {
			t.Fatalf("unexpected error %v for newRefPicListModification in test %d", err, i)
		}

		if !reflect.DeepEqual(*got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestNewPredWeightTable(t *testing.T) {
	tests := []struct {
		in              string
		sliceHeader     SliceHeader
		chromaArrayType int
		want            PredWeightTable
	}{
		{
			in: "011" + // ue(v) luma_log2_weight_denom = 2
				"00100" + // ue(v) chroma_log2_weigght_denom = 3

				// list0
				// i = 0
				"1" + // u(1) luma_weight_l0_flag = true
				"011" + // se(v) luma_weight_l0[0] = -1
				"010" + // se(v) luma_offset_l0[0] = 1
				"1" + // u(1) chroma_weight_l0_flag = true

				// i = 0, j = 0
				"010" + // se(v) chroma_weight_l0[0][0] = 1
				"010" + // se(v) chroma_offset_l0[0][0] = 1

				// i = 0, j = 1
				"010" + // se(v) chroma_weight_l0[0][1] = 1
				"010" + // se(v) chroma_offset_l0[0][1] = 1

				// i = 1
				"1" + // u(1) luma_weight_l0_flag = true
				"011" + // se(v) luma_weight_l0[1] = -1
				"00100" + // se(v) luma_offset_l0[1] = 2
				"1" + // u(1) chroma_weight_l0_flag = true

				// i = 1, j = 0
				"011" + // se(v) chroma_weight_l0[1][0] = -1
				"00101" + // se(v) chroma_offset_l0[1][0] = -2

				// i = 1, j = 1
				"011" + // se(v) chroma_weight_l0[1][1] = -1
				"011" + // se(v) chroma_offset_l0[1][1] = -1

				// list1
				// i = 0
				"1" + // u(1) luma_weight_l1_flag = true
				"011" + // se(v) luma_weight_l1[0] = -1
				"010" + // se(v) luma_offset_l1[0] = 1
				"1" + // u(1) chroma_weight_l1_flag = true

				// i = 0, j = 0
				"010" + // se(v) chroma_weight_l1[0][0] = 1
				"010" + // se(v) chroma_offset_l1[0][0] = 1

				// i = 0, j = 1
				"010" + // se(v) chroma_weight_l1[0][1] = 1
				"010" + // se(v) chroma_offset_l1[0][1] = 1

				// i = 1
				"1" + // u(1) luma_weight_l1_flag = true
				"011" + // se(v) luma_weight_l1[1] = -1
				"00100" + // se(v) luma_offset_l1[1] = 2
				"1" + // u(1) chroma_weight_l1_flag = true

				// i = 1, j = 0
				"011" + // se(v) chroma_weight_l1[1][0] = -1
				"00101" + // se(v) chroma_offset_l1[1][0] = -2

				// i = 1, j = 1
				"011" + // se(v) chroma_weight_l1[1][1] = -1
				"011", // se(v) chroma_offset_l1[1][1] = -1

			sliceHeader: SliceHeader{
				NumRefIdxL0ActiveMinus1: 1,
				NumRefIdxL1ActiveMinus1: 1,
				SliceType:               1,
			},

			chromaArrayType: 1,

			want: PredWeightTable{
				LumaLog2WeightDenom:   2,
				ChromaLog2WeightDenom: 3,
				LumaWeight:            [2][]int{{-1, -1}, {-1, -1}},
				LumaOffset:            [2][]int{{1, 2}, {1, 2}},
				ChromaWeight:          [2][][2]int{{{1, 1}, {-1, -1}}, {{1, 1}, {-1, -1}}},
				ChromaOffset:          [2][][2]int{{{1, 1}, {-2, -1}}, {{1, 1}, {-2, -1}}},
			},
		},
		{
			in: "010" + // ue(v) luma_log2_weight_denom = 1

				// list0
				"0" + // u(1) luma_weight_l0_flag = false
				"1" + // u(1) luma_weight_l0_flag = true
				"00101" + // se(v) luma_weight_l0[1] = -2
				"1", // se(v) luma_offset_l0[1] = 0

			sliceHeader: SliceHeader{
				NumRefIdxL0ActiveMinus1: 1,
				SliceType:               5,
			},

			want: PredWeightTable{
				LumaLog2WeightDenom: 1,
				LumaWeight:          [2][]int{{2, -2}, nil},
				LumaOffset:          [2][]int{{0, 0}, nil},
			},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}

		r := newFieldReader(inBytes)
		got := newPredWeightTable(r, &test.sliceHeader, test.chromaArrayType)
		if r.err() != nil {
			t.Fatalf("unexpected error %v for newPredWeightTable in test %d", r.err(), i)
		}

		if !reflect.DeepEqual(*got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestDecRefPicMarking(t *testing.T) {
	tests := []struct {
		in     string
		idrPic bool
		want   DecRefPicMarking
	}{
		{
			in: "0" + // u(1) no_output_of_prior_pics_flag = false
				"1", // u(1) long_term_reference_flag = true
			idrPic: true,
			want: DecRefPicMarking{
				NoOutputOfPriorPicsFlag: false,
				LongTermReferenceFlag:   true,
			},
		},
		{
			in: "1" + // u(1) adaptive_ref_pic_marking_mode_flag = true

				"010" + // ue(v) memory_management_control_operation = 1
				"011" + // ue(v) difference_of_pic_nums_minus1 = 2

				"00100" + // ue(v) memory_management_control_operation = 3
				"1" + // ue(v) difference_of_pic_nums_minus1 = 0
				"011" + // ue(v) long_term_frame_idx = 2

				"011" + // ue(v) memory_management_control_operation = 2
				"00100" + // ue(v) long_term_pic_num = 3

				"00101" + // ue(v) memory_management_control_operation = 4
				"010" + // ue(v) max_long_term_frame_idx_plus1 = 1

				"1", // ue(v) memory_management_control_operation = 0

			idrPic: false,

			want: DecRefPicMarking{
				AdaptiveRefPicMarkingModeFlag: true,
				Ops: []MMCO{
					{Op: 1, DifferenceOfPicNumsMinus1: 2},
					{Op: 3, DifferenceOfPicNumsMinus1: 0, LongTermFrameIdx: 2},
					{Op: 2, LongTermPicNum: 3},
					{Op: 4, MaxLongTermFrameIdxPlus1: 1},
				},
			},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}

		got, err := newDecRefPicMarking(newFieldReader(inBytes), test.idrPic)
		if err != nil {
			t.Fatalf("unexpected error %v for newDecRefPicMarking in test %d", err, i)
		}

		if !reflect.DeepEqual(*got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

// testSPS and testPPS describe a 4x4 macroblock frame coded with CABAC in two
// raster scan slice groups changing at 3 map units per cycle.
var (
	testSPS = SPS{
		Profile:                   77,
		ChromaFormatIDC:           chroma420,
		PicOrderCountType:         2,
		PicWidthInMBSMinus1:       3,
		PicHeightInMapUnitsMinus1: 3,
		FrameMBSOnlyFlag:          true,
	}
	testPPS = PPS{
		EntropyCodingModeFlag:      true,
		NumSliceGroupsMinus1:       1,
		SliceGroupMapType:          MapRasterScan,
		SliceGroupChangeRateMinus1: 2,
	}
)

// idrSliceHeader is an IDR I slice header of 24 bits for testSPS and testPPS.
const idrSliceHeader = "1" + // ue(v) first_mb_in_slice = 0
	"0001000" + // ue(v) slice_type = 7
	"1" + // ue(v) pic_parameter_set_id = 0
	"0000" + // u(4) frame_num = 0
	"1" + // ue(v) idr_pic_id = 0
	"0" + // u(1) no_output_of_prior_pics_flag = false
	"0" + // u(1) long_term_reference_flag = false
	"00100" + // se(v) slice_qp_delta = 2
	"101" // u(3) slice_group_change_cycle = 5

func TestNewSliceHeader(t *testing.T) {
	tests := []struct {
		in   string
		nal  NALUnit
		want SliceHeader
		off  int
	}{
		{
			in:  idrSliceHeader + "1001 1010" + "1000 0000",
			nal: NALUnit{RefIdc: 3, Type: NALTypeIDR},
			want: SliceHeader{
				SliceType:              7,
				RefPicListModification: &RefPicListModification{},
				DecRefPicMarking:       &DecRefPicMarking{},
				SliceQpDelta:           2,
				SliceGroupChangeCycle:  5,
				headerBits:             24,
				cabac:                  true,
			},
			off: 3,
		},
		{
			in: "00100" + // ue(v) first_mb_in_slice = 3
				"00110" + // ue(v) slice_type = 5
				"1" + // ue(v) pic_parameter_set_id = 0
				"0001" + // u(4) frame_num = 1
				"1" + // u(1) num_ref_idx_active_override_flag = true
				"010" + // ue(v) num_ref_idx_l0_active_minus1 = 1
				"1" + // u(1) ref_pic_list_modification_flag_l0 = true
				"1" + // ue(v) modification_of_pic_nums_idc = 0
				"011" + // ue(v) abs_diff_pic_num_minus1 = 2
				"00100" + // ue(v) modification_of_pic_nums_idc = 3
				"1" + // u(1) adaptive_ref_pic_marking_mode_flag = true
				"010" + // ue(v) memory_management_control_operation = 1
				"1" + // ue(v) difference_of_pic_nums_minus1 = 0
				"1" + // ue(v) memory_management_control_operation = 0
				"010" + // ue(v) cabac_init_idc = 1
				"011" + // se(v) slice_qp_delta = -1
				"010" + // u(3) slice_group_change_cycle = 2
				"1111" + // cabac_alignment_one_bit
				"0101 1010" + "1000 0000", // slice data
			nal: NALUnit{RefIdc: 2, Type: NALTypeNonIDR},
			want: SliceHeader{
				FirstMbInSlice:          3,
				SliceType:               5,
				FrameNum:                1,
				NumRefIdxActiveOverride: true,
				NumRefIdxL0ActiveMinus1: 1,
				RefPicListModification: &RefPicListModification{
					RefPicListModificationFlag: [2]bool{true, false},
					Ops:                        [2][]RefPicListOp{{{ModificationOfPicNumsIDC: 0, Value: 2}}, nil},
				},
				DecRefPicMarking: &DecRefPicMarking{
					AdaptiveRefPicMarkingModeFlag: true,
					Ops:                           []MMCO{{Op: 1}},
				},
				CabacInitIDC:          1,
				SliceQpDelta:          -1,
				SliceGroupChangeCycle: 2,
				headerBits:            44,
				cabac:                 true,
			},
			off: 6,
		},
	}

	for i, test := range tests {
		rbsp, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}

		sps, pps := testSPS, testPPS
		got, err := NewSliceHeader(rbsp, &test.nal, &sps, &pps)
		if err != nil {
			t.Fatalf("unexpected error %v for NewSliceHeader in test %d", err, i)
		}

		if !reflect.DeepEqual(*got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %+v\nWant: %+v\n", i, *got, test.want)
		}
		if got.SliceDataOffset() != test.off {
			t.Errorf("did not get expected slice data offset for test %d\nGot: %d\nWant: %d", i, got.SliceDataOffset(), test.off)
		}
		if !got.CheckCABACAlignment(rbsp) {
			t.Errorf("cabac_alignment_one_bits not accepted for test %d", i)
		}
	}
}

func TestNewSliceHeaderErrors(t *testing.T) {
	tests := []struct {
		in   string
		nal  NALUnit
		want error
	}{
		{
			in:   idrSliceHeader,
			nal:  NALUnit{RefIdc: 3, Type: NALTypeSPS},
			want: errNotSlice,
		},
		{
			in: "1" + // ue(v) first_mb_in_slice = 0
				"0001011" + // ue(v) slice_type = 10
				"1", // ue(v) pic_parameter_set_id = 0
			nal:  NALUnit{RefIdc: 3, Type: NALTypeIDR},
			want: errBadSliceType,
		},
		{
			in: "1" + // ue(v) first_mb_in_slice = 0
				"0001000" + // ue(v) slice_type = 7
				"010" + // ue(v) pic_parameter_set_id = 1
				"1000 0000",
			nal:  NALUnit{RefIdc: 3, Type: NALTypeIDR},
			want: errPPSMismatch,
		},
		{
			in: "1" + // ue(v) first_mb_in_slice = 0
				"0001000" + // ue(v) slice_type = 7
				"1" + // ue(v) pic_parameter_set_id = 0
				"0000" + // u(4) frame_num = 0
				"1" + // ue(v) idr_pic_id = 0
				"0" + // u(1) no_output_of_prior_pics_flag = false
				"0" + // u(1) long_term_reference_flag = false
				"0000001000001" + // se(v) slice_qp_delta = -32
				"101", // u(3) slice_group_change_cycle = 5
			nal:  NALUnit{RefIdc: 3, Type: NALTypeIDR},
			want: errBadSlice,
		},
	}

	for i, test := range tests {
		rbsp, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}
		sps, pps := testSPS, testPPS
		_, err = NewSliceHeader(rbsp, &test.nal, &sps, &pps)
		if errors.Cause(err) != test.want {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v", i, err, test.want)
		}
	}
}

func TestSlicePPSID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: idrSliceHeader, want: 0},
		{in: "00100" + "00110" + "00101" + "1000", want: 4},
		{in: "1" + "0001", wantErr: true},
	}
	for i, test := range tests {
		b, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}
		got, err := SlicePPSID(b)
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for test %d: %v", i, err)
		}
		if got != test.want {
			t.Errorf("did not get expected PPS id for test %d\nGot: %d\nWant: %d", i, got, test.want)
		}
	}
}

func TestChangeCycleBits(t *testing.T) {
	tests := []struct {
		size, rate, want int
	}{
		{size: 16, rate: 3, want: 3},
		{size: 16, rate: 1, want: 5},
		{size: 16, rate: 16, want: 1},
		{size: 99, rate: 1, want: 7},
		{size: 396, rate: 5, want: 7},
	}
	for _, test := range tests {
		if got := changeCycleBits(test.size, test.rate); got != test.want {
			t.Errorf("did not get expected bits for size %d rate %d\nGot: %d\nWant: %d", test.size, test.rate, got, test.want)
		}
	}
}

func TestSliceLayout(t *testing.T) {
	tests := []struct {
		sps  SPS
		h    SliceHeader
		want FrameLayout
	}{
		{sps: SPS{FrameMBSOnlyFlag: true}, want: FrameOnly},
		{sps: SPS{}, h: SliceHeader{FieldPic: true}, want: FieldPicture},
		{sps: SPS{MBAdaptiveFrameFieldFlag: true}, want: MBAFFFrame},
		{sps: SPS{MBAdaptiveFrameFieldFlag: true}, h: SliceHeader{FieldPic: true}, want: FieldPicture},
		{sps: SPS{}, want: NonMBAFFFrame},
	}
	for i, test := range tests {
		if got := test.h.Layout(&test.sps); got != test.want {
			t.Errorf("did not get expected layout for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestFirstMbAddr(t *testing.T) {
	tests := []struct {
		sps  SPS
		h    SliceHeader
		want int
	}{
		{sps: SPS{FrameMBSOnlyFlag: true}, h: SliceHeader{FirstMbInSlice: 5}, want: 5},
		{sps: SPS{MBAdaptiveFrameFieldFlag: true}, h: SliceHeader{FirstMbInSlice: 5}, want: 10},
		{sps: SPS{MBAdaptiveFrameFieldFlag: true}, h: SliceHeader{FirstMbInSlice: 5, FieldPic: true}, want: 5},
		{sps: SPS{}, h: SliceHeader{FirstMbInSlice: 3}, want: 3},
	}
	for i, test := range tests {
		if got := test.h.FirstMbAddr(&test.sps); got != test.want {
			t.Errorf("did not get expected first macroblock address for test %d\nGot: %d\nWant: %d", i, got, test.want)
		}
	}
}

func TestCheckCABACAlignment(t *testing.T) {
	h := &SliceHeader{headerBits: 4}
	tests := []struct {
		in   string
		want bool
	}{
		{in: "0000 1111", want: true},
		{in: "0000 1011", want: false},
	}
	for i, test := range tests {
		b, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("unexpected error %v for binToSlice in test %d", err, i)
		}
		if got := h.CheckCABACAlignment(b); got != test.want {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

// TestSliceToDecoder follows a slice NAL unit from its bytes through header
// parsing and map derivation to the start of its arithmetic decoder.
func TestSliceToDecoder(t *testing.T) {
	nalBytes := []byte{0x65, 0x88, 0x84, 0x25, 0x9a, 0x5c, 0x80}

	nal, err := NewNALUnit(nalBytes)
	if err != nil {
		t.Fatalf("did not expect error: %v from NewNALUnit", err)
	}
	sps, pps := testSPS, testPPS
	h, err := NewSliceHeader(nal.RBSP, nal, &sps, &pps)
	if err != nil {
		t.Fatalf("did not expect error: %v from NewSliceHeader", err)
	}

	mm, err := NewMapManager(&sps, &pps, nil)
	if err != nil {
		t.Fatalf("did not expect error: %v from NewMapManager", err)
	}
	m, err := mm.Mapper(h.FirstMbInSlice, h.SliceGroupChangeCycle)
	if err != nil {
		t.Fatalf("did not expect error: %v from Mapper", err)
	}
	pm, ok := m.(*PrebuiltMBlockMapper)
	if !ok {
		t.Fatalf("did not get prebuilt mapper, got: %T", m)
	}
	if pm.Group() != 0 || pm.Len() != 15 {
		t.Errorf("did not get expected slice group\nGot: group %d, len %d\nWant: group 0, len 15", pm.Group(), pm.Len())
	}
	if got := m.Address(14); got != 14 {
		t.Errorf("did not get expected address\nGot: %d\nWant: 14", got)
	}

	tab := NewContextTable(1)
	err = tab.Init([]MN{{M: 0, N: 64}}, SliceQPy(&pps, h))
	if err != nil {
		t.Fatalf("did not expect error: %v from Init", err)
	}
	d, err := NewArithmeticDecoder(bits.NewByteReader(nal.RBSP[h.SliceDataOffset():]), tab)
	if err != nil {
		t.Fatalf("did not expect error: %v from NewArithmeticDecoder", err)
	}
	_, code, _ := d.State()
	if want := (0x9a<<8 | 0x5c) << 1; code != want {
		t.Errorf("did not get expected code register\nGot: %#x\nWant: %#x", code, want)
	}
}
