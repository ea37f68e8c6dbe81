/*
DESCRIPTION
  nalunit_test.go provides testing for functionality in nalunit.go.

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
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestNewNALUnit(t *testing.T) {
	tests := []struct {
		in   string
		want *NALUnit
		err  error
	}{
		{
			in: "0" + // f(1) forbidden_zero_bit = 0
				"01" + // u(2) nal_ref_idc = 1
				"0 1110" + // u(5) nal_unit_type = 14
				"1" + // u(1) svc_extension_flag = true

				// svc extension
				"0" + // u(1) idr_flag = false
				"10 0000" + // u(6) priority_id = 32
				"0" + // u(1) no_inter_layer_pred_flag = false
				"001" + // u(3) dependency_id = 1
				"1000" + // u(4) quality_id = 8
				"010" + // u(3) temporal_id = 2
				"1" + // u(1) use_ref_base_pic_flag = true
				"0" + // u(1) discardable_flag = false
				"0" + // u(1) output_flag = false
				"11" + // ReservedThree2Bits

				// rbsp bytes
				"0000 0001" +
				"0000 0010" +
				"0000 0100" +
				"0000 1000" +
				"1000 0000", // trailing bits

			want: &NALUnit{
				RefIdc:           1,
				Type:             14,
				SVCExtensionFlag: true,
				Extension:        []byte{0x20, 0x18, 0x53},
				RBSP:             []byte{0x01, 0x02, 0x04, 0x08, 0x80},
			},
		},
		{
			in: "0" + // f(1) forbidden_zero_bit = 0
				"11" + // u(2) nal_ref_idc = 3
				"0 0101" + // u(5) nal_unit_type = 5

				// rbsp bytes with emulation prevention
				"0000 0000" +
				"0000 0000" +
				"0000 0011" + // emulation_prevention_three_byte
				"0000 0001" +
				"0000 0000" +
				"0000 0000" +
				"0000 0011" + // emulation_prevention_three_byte
				"0000 0000" +
				"0000 0011", // preceded by a single zero so kept

			want: &NALUnit{
				RefIdc:                   3,
				Type:                     NALTypeIDR,
				EmulationPreventionBytes: 2,
				RBSP:                     []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03},
			},
		},
		{
			in: "0" + // f(1) forbidden_zero_bit = 0
				"00" + // u(2) nal_ref_idc = 0
				"1 0101" + // u(5) nal_unit_type = 21
				"1" + // u(1) avc_3d_extension_flag = true
				"000 0000" + "0000 0000" + "0000 0001" + // 3D-AVC extension
				"1010 1010",

			want: &NALUnit{
				Type:               NALTypeSliceExt3D,
				AVC3DExtensionFlag: true,
				Extension:          []byte{0x00, 0x00, 0x01},
				RBSP:               []byte{0xaa},
			},
		},
		{
			in:  "1110 0101",
			err: errForbiddenBit,
		},
		{
			in: "0111 0100" + // nal_unit_type = 20
				"1000 0000",
			err: errShortExtension,
		},
		{
			in:  "",
			err: errEmptyNAL,
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("did not expect error %v from binToSlice for test %d", err, i)
		}

		got, err := NewNALUnit(inBytes)
		if errors.Cause(err) != test.err {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v\n", i, err, test.err)
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %+v\nWant: %+v\n", i, got, test.want)
		}
	}
}

func TestNALUnitKind(t *testing.T) {
	tests := []struct {
		typ   uint8
		slice bool
		idr   bool
		name  string
	}{
		{typ: NALTypeNonIDR, slice: true, name: "non-IDR slice"},
		{typ: NALTypeIDR, slice: true, idr: true, name: "IDR slice"},
		{typ: NALTypeSPS, name: "SPS"},
		{typ: NALTypeSliceExt, name: "slice extension"},
		{typ: 23, name: "reserved(23)"},
	}
	for _, test := range tests {
		n := &NALUnit{Type: test.typ}
		if n.IsSlice() != test.slice {
			t.Errorf("unexpected IsSlice for type %d: %v", test.typ, n.IsSlice())
		}
		if n.IDR() != test.idr {
			t.Errorf("unexpected IDR for type %d: %v", test.typ, n.IDR())
		}
		if got := NALTypeName(int(test.typ)); got != test.name {
			t.Errorf("did not get expected name for type %d\nGot: %s\nWant: %s", test.typ, got, test.name)
		}
	}
}
