/*
DESCRIPTION
  nalunit.go provides structures for a NAL unit as well as its extensions.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"fmt"

	"github.com/pkg/errors"
)

// NAL unit types as defined by table 7-1 of the specifications.
const (
	NALTypeNonIDR      = 1
	NALTypePartitionA  = 2
	NALTypeIDR         = 5
	NALTypeSEI         = 6
	NALTypeSPS         = 7
	NALTypePPS         = 8
	NALTypeAUD         = 9
	NALTypeEndOfSeq    = 10
	NALTypeEndOfStream = 11
	NALTypeFiller      = 12
	NALTypePrefix      = 14
	NALTypeSubsetSPS   = 15
	NALTypeSliceExt    = 20
	NALTypeSliceExt3D  = 21
)

// Length in bytes of the svc, mvc and 3davc header extensions.
const nalExtLen = 3

var (
	errEmptyNAL       = errors.New("empty NAL unit")
	errForbiddenBit   = errors.New("forbidden_zero_bit is set")
	errShortExtension = errors.New("NAL unit too short for header extension")
)

// NALUnit describes a network abstraction layer unit, as defined in section
// 7.3.1 of the specifications.
// Field semantics are defined in section 7.4.1.
type NALUnit struct {
	// nal_ref_idc, if not 0 indicates content of NAL contains a sequence parameter
	// set, a sequence parameter set extension, a subset sequence parameter set,
	// a picture parameter set, a slice of a reference picture, a slice data
	// partition of a reference picture, or a prefix NAL preceding a slice of
	// a reference picture.
	RefIdc uint8

	// nal_unit_type, specifies the type of RBSP data contained in the NAL as
	// defined in Table 7-1.
	Type uint8

	// svc_extension_flag, indicates whether a nal_unit_header_svc_extension()
	// (G.7.3.1.1) or nal_unit_header_mvc_extension() (H.7.3.1.1) follows.
	SVCExtensionFlag bool

	// avc_3d_extension_flag, for nal_unit_type = 21, indicates that a
	// nal_unit_header_3davc_extension() (J.7.3.1.1) follows.
	AVC3DExtensionFlag bool

	// The 23 bits of the header extension following the extension flag, kept
	// unparsed.
	Extension []byte

	// Number of emulation_prevention_three_bytes removed.
	EmulationPreventionBytes int

	// rbsp_byte, the raw byte sequence payload data for the NAL.
	RBSP []byte
}

// NewNALUnit parses the NAL unit b, not including any start code prefix,
// following the syntax structure specified in section 7.3.1, and returns as a
// new NALUnit.
func NewNALUnit(b []byte) (*NALUnit, error) {
	if len(b) == 0 {
		return nil, errEmptyNAL
	}
	if b[0]&0x80 != 0 {
		return nil, errForbiddenBit
	}

	n := &NALUnit{
		RefIdc: (b[0] >> 5) & 0x3,
		Type:   b[0] & 0x1f,
	}

	hdr := 1
	switch n.Type {
	case NALTypePrefix, NALTypeSliceExt, NALTypeSliceExt3D:
		if len(b) < 1+nalExtLen {
			return nil, errors.Wrapf(errShortExtension, "type %d, length %d", n.Type, len(b))
		}
		flag := b[1]&0x80 != 0
		if n.Type == NALTypeSliceExt3D {
			n.AVC3DExtensionFlag = flag
		} else {
			n.SVCExtensionFlag = flag
		}
		n.Extension = []byte{b[1] & 0x7f, b[2], b[3]}
		hdr += nalExtLen
	}

	n.RBSP, n.EmulationPreventionBytes = unescapeRBSP(b[hdr:])
	return n, nil
}

// IDR reports whether the NAL unit holds a slice of an IDR picture.
func (n *NALUnit) IDR() bool { return n.Type == NALTypeIDR }

// IsSlice reports whether the NAL unit holds a coded slice that can be
// decoded by this package.
func (n *NALUnit) IsSlice() bool {
	return n.Type == NALTypeNonIDR || n.Type == NALTypeIDR
}

// String implements fmt.Stringer.
func (n *NALUnit) String() string {
	return fmt.Sprintf("%s(ref_idc=%d, %d bytes)", NALTypeName(int(n.Type)), n.RefIdc, len(n.RBSP))
}

// unescapeRBSP removes emulation_prevention_three_bytes from b, returning the
// raw byte sequence payload and the number of bytes removed.
func unescapeRBSP(b []byte) ([]byte, int) {
	var (
		rbsp  = make([]byte, 0, len(b))
		zeros int
		n     int
	)
	for _, c := range b {
		if zeros >= 2 && c == 0x03 {
			zeros = 0
			n++
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		rbsp = append(rbsp, c)
	}
	return rbsp, n
}

var nalTypeNames = map[int]string{
	0:                  "unspecified",
	NALTypeNonIDR:      "non-IDR slice",
	NALTypePartitionA:  "slice data partition A",
	3:                  "slice data partition B",
	4:                  "slice data partition C",
	NALTypeIDR:         "IDR slice",
	NALTypeSEI:         "SEI",
	NALTypeSPS:         "SPS",
	NALTypePPS:         "PPS",
	NALTypeAUD:         "access unit delimiter",
	NALTypeEndOfSeq:    "end of sequence",
	NALTypeEndOfStream: "end of stream",
	NALTypeFiller:      "filler",
	13:                 "SPS extension",
	NALTypePrefix:      "prefix",
	NALTypeSubsetSPS:   "subset SPS",
	16:                 "depth PPS",
	19:                 "auxiliary slice",
	NALTypeSliceExt:    "slice extension",
	NALTypeSliceExt3D:  "3D slice extension",
}

// NALTypeName returns a readable name for the NAL unit type t.
func NALTypeName(t int) string {
	if s, ok := nalTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("reserved(%d)", t)
}
