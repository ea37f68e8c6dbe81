/*
DESCRIPTION
  input.go provides opening of asomap input streams, decompressing gzip, xz
  and bzip2 files and extracting H.264 elementary streams from MPEG-TS.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/Comcast/gots/packet"
	"github.com/Comcast/gots/pes"
	"github.com/Comcast/gots/psi"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// MPEG-TS constants.
const (
	tsPacketSize   = 188
	tsSyncByte     = 0x47
	patPID         = 0
	h264StreamType = 0x1b
)

var errNoVideo = errors.New("no H.264 stream found in MPEG-TS")

// input is an opened input stream along with the closers of its layers.
type input struct {
	io.Reader
	closers []io.Closer
}

// Close closes all layers of the input, returning the first error.
func (in *input) Close() error {
	var err error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if e := in.closers[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// openInput opens the file at path, decompressing it according to its
// extension.
func openInput(path string) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open input")
	}
	in, err := decompress(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	in.closers = append([]io.Closer{f}, in.closers...)
	return in, nil
}

// decompress wraps r with a decompressor for the file extension ext, if any.
func decompress(r io.Reader, ext string) (*input, error) {
	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "could not create gzip reader")
		}
		return &input{Reader: zr, closers: []io.Closer{zr}}, nil
	case ".xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "could not create xz reader")
		}
		return &input{Reader: xr}, nil
	case ".bz2":
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, errors.Wrap(err, "could not create bzip2 reader")
		}
		return &input{Reader: br, closers: []io.Closer{br}}, nil
	default:
		return &input{Reader: r}, nil
	}
}

// annexBReader returns a reader of the Annex B byte stream carried by r. For
// MPEG-TS input the whole stream is read and the elementary stream with the
// given pid extracted; a pid of 0 selects the first H.264 stream of the PMT.
func annexBReader(r io.Reader, format string, pid int) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 2*tsPacketSize+1)
	if format == FormatDetect {
		format = FormatAnnexB
		if isTS(br) {
			format = FormatTS
		}
	}
	if format == FormatAnnexB {
		return br, nil
	}

	clip, err := io.ReadAll(br)
	if err != nil {
		return nil, errors.Wrap(err, "could not read MPEG-TS")
	}
	if pid == 0 {
		pid, err = videoPID(clip)
		if err != nil {
			return nil, err
		}
	}
	es, err := extractH264(clip, pid)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(es), nil
}

// isTS reports whether the stream in br starts with two MPEG-TS sync bytes a
// packet apart.
func isTS(br *bufio.Reader) bool {
	p, _ := br.Peek(tsPacketSize + 1)
	return len(p) == tsPacketSize+1 && p[0] == tsSyncByte && p[tsPacketSize] == tsSyncByte
}

// videoPID returns the PID of the first H.264 elementary stream given by the
// PMT of the lowest numbered program of clip.
func videoPID(clip []byte) (int, error) {
	var (
		pkt    packet.Packet
		pmtPID = -1
	)
	for i := 0; i+tsPacketSize <= len(clip); i += tsPacketSize {
		copy(pkt[:], clip[i:i+tsPacketSize])
		pid := int(pkt.PID())
		switch {
		case pid == patPID && pmtPID < 0:
			pat, err := psi.NewPAT(pkt[:])
			if err != nil {
				return 0, errors.Wrap(err, "could not parse PAT")
			}
			pmtPID = firstProgramPID(pat.ProgramMap())
		case pid == pmtPID:
			payload, err := pkt.Payload()
			if err != nil {
				return 0, errors.Wrap(err, "could not get PMT payload")
			}
			pmt, err := psi.NewPMT(payload)
			if err != nil {
				return 0, errors.Wrap(err, "could not parse PMT")
			}
			for _, s := range pmt.ElementaryStreams() {
				if s.StreamType() == h264StreamType {
					return int(s.ElementaryPid()), nil
				}
			}
			return 0, errNoVideo
		}
	}
	return 0, errNoVideo
}

// firstProgramPID returns the PMT PID of the lowest numbered program in
// programs, a map of program number to PMT PID, or -1 if it is empty.
func firstProgramPID(programs map[int]int) int {
	pn, pid := -1, -1
	for n, p := range programs {
		if pn < 0 || n < pn {
			pn, pid = n, p
		}
	}
	return pid
}

// extractH264 returns the concatenated PES payloads of packets in clip with
// the given pid.
func extractH264(clip []byte, pid int) ([]byte, error) {
	var (
		pkt packet.Packet
		es  []byte
	)
	for i := 0; i+tsPacketSize <= len(clip); i += tsPacketSize {
		copy(pkt[:], clip[i:i+tsPacketSize])
		if int(pkt.PID()) != pid {
			continue
		}

		// Packets holding only an adaptation field have no payload.
		payload, err := pkt.Payload()
		if err != nil {
			continue
		}

		// A PES header follows the start of a payload unit.
		if pkt.PayloadUnitStartIndicator() {
			hdr, err := pes.NewPESHeader(payload)
			if err != nil {
				return nil, errors.Wrapf(err, "could not parse PES header in packet %d", i/tsPacketSize)
			}
			payload = hdr.Data()
		}
		es = append(es, payload...)
	}
	if len(es) == 0 {
		return nil, errors.Wrapf(errNoVideo, "PID: %d", pid)
	}
	return es, nil
}
