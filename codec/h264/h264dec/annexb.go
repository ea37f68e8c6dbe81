/*
DESCRIPTION
  annexb.go provides splitting of a byte stream in the format of Annex B of
  the specifications into NAL units.

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
	"bufio"
	"bytes"
	"io"
)

// Buffer sizes for the AnnexBScanner.
const (
	initNALBuf = 64 << 10
	maxNALSize = 16 << 20
)

var startCode = []byte{0x00, 0x00, 0x01}

// AnnexBScanner reads NAL units from an Annex B byte stream. NAL units are
// returned without their start code prefix or trailing zero bytes.
type AnnexBScanner struct {
	s *bufio.Scanner
}

// NewAnnexBScanner returns a new AnnexBScanner reading from r.
func NewAnnexBScanner(r io.Reader) *AnnexBScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, initNALBuf), maxNALSize)
	s.Split(splitAnnexB)
	return &AnnexBScanner{s: s}
}

// Scan advances to the next NAL unit, returning false at the end of the
// stream or on error.
func (a *AnnexBScanner) Scan() bool { return a.s.Scan() }

// NAL returns the most recent NAL unit found by Scan. The underlying array
// may be overwritten by a subsequent call to Scan.
func (a *AnnexBScanner) NAL() []byte { return a.s.Bytes() }

// Err returns the first non-EOF error encountered.
func (a *AnnexBScanner) Err() error { return a.s.Err() }

// SplitAnnexB splits the Annex B byte stream b into NAL units. The returned
// slices share the backing array of b.
func SplitAnnexB(b []byte) [][]byte {
	var nals [][]byte
	for len(b) > 0 {
		adv, tok, _ := splitAnnexB(b, true)
		if adv == 0 {
			break
		}
		if tok != nil {
			nals = append(nals, tok)
		}
		b = b[adv:]
	}
	return nals
}

// splitAnnexB is a bufio.SplitFunc returning one NAL unit per token. Bytes
// before the first start code are discarded.
func splitAnnexB(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	i := bytes.Index(data, startCode)
	if i < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep enough bytes for a start code split across reads.
		if len(data) > len(startCode) {
			return len(data) - len(startCode) + 1, nil, nil
		}
		return 0, nil, nil
	}

	start := i + len(startCode)
	j := bytes.Index(data[start:], startCode)
	switch {
	case j >= 0:
		return start + j, trimNAL(data[start : start+j]), nil
	case atEOF:
		return len(data), trimNAL(data[start:]), nil
	case i > 0:
		return i, nil, nil
	default:
		return 0, nil, nil
	}
}

// trimNAL removes trailing zero bytes, returning nil if nothing remains.
func trimNAL(b []byte) []byte {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return nil
	}
	return b
}
