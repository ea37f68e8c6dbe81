/*
DESCRIPTION
  analyser.go provides the analyser used by asomap to track parameter sets,
  activate slice group maps and report the macroblocks covered by each slice.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ausocean/avc/codec/h264/h264dec"
	"github.com/ausocean/avc/codec/h264/h264dec/bits"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// chroma_format_idc assumed until the SPS referenced by a PPS is known.
const chroma420 = 1

var errNoParamSet = errors.New("slice refers to unknown parameter set")

// activation holds the parameter sets referred to by a PPS id and the map
// managers built for them, one per frame layout.
type activation struct {
	sps  *h264dec.SPS
	pps  *h264dec.PPS
	mgrs map[h264dec.FrameLayout]*h264dec.MapManager
}

// analyser consumes NAL units and writes a line for each slice to out.
type analyser struct {
	log     logging.Logger
	out     io.Writer
	dumpMap bool

	sps    map[int]*h264dec.SPS
	ppsRaw map[int][]byte
	active map[int]*activation

	lastMap   *h264dec.SliceGroupMap
	slices    int
	errs      int
	malformed int
	spans     []float64
}

func newAnalyser(out io.Writer, dumpMap bool, l logging.Logger) *analyser {
	return &analyser{
		log:     l,
		out:     out,
		dumpMap: dumpMap,
		sps:     make(map[int]*h264dec.SPS),
		ppsRaw:  make(map[int][]byte),
		active:  make(map[int]*activation),
	}
}

// run analyses the Annex B byte stream read from r. Bad NAL units are logged
// and skipped; only read errors are returned.
func (a *analyser) run(r io.Reader) error {
	s := h264dec.NewAnnexBScanner(r)
	for s.Scan() {
		err := a.handle(s.NAL())
		if err != nil {
			a.errs++
			a.log.Warning(pkg+"could not handle NAL unit", "error", err.Error())
		}
	}
	return errors.Wrap(s.Err(), "could not scan byte stream")
}

func (a *analyser) handle(b []byte) error {
	nal, err := h264dec.NewNALUnit(b)
	if err != nil {
		return errors.Wrap(err, "could not parse NAL unit")
	}
	a.log.Debug(pkg+"got NAL unit", "nal", nal.String())

	switch {
	case nal.Type == h264dec.NALTypeSPS:
		sps, err := h264dec.NewSPS(nal.RBSP)
		if err != nil {
			return errors.Wrap(err, "could not parse SPS")
		}
		a.sps[sps.SPSID] = sps
		clear(a.active)
	case nal.Type == h264dec.NALTypePPS:
		pps, err := h264dec.NewPPS(nal.RBSP, chroma420)
		if err != nil {
			return errors.Wrap(err, "could not parse PPS")
		}
		a.ppsRaw[pps.ID] = nal.RBSP
		delete(a.active, pps.ID)
	case nal.IsSlice():
		return a.slice(nal)
	}
	return nil
}

// activate returns the activation for the PPS with the given id, parsing the
// PPS again against its SPS when it is first used.
func (a *analyser) activate(id int) (*activation, error) {
	if act, ok := a.active[id]; ok {
		return act, nil
	}
	raw, ok := a.ppsRaw[id]
	if !ok {
		return nil, errors.Wrapf(errNoParamSet, "pps: %d", id)
	}
	pps, err := h264dec.NewPPS(raw, chroma420)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse PPS")
	}
	sps, ok := a.sps[pps.SPSID]
	if !ok {
		return nil, errors.Wrapf(errNoParamSet, "sps: %d", pps.SPSID)
	}
	if sps.ChromaFormatIDC != chroma420 {
		pps, err = h264dec.NewPPS(raw, sps.ChromaFormatIDC)
		if err != nil {
			return nil, errors.Wrap(err, "could not parse PPS")
		}
	}
	act := &activation{sps: sps, pps: pps, mgrs: make(map[h264dec.FrameLayout]*h264dec.MapManager)}
	a.active[id] = act
	a.log.Debug(pkg+"activated parameter sets", "pps", id, "sps", pps.SPSID, "groups", pps.NumSliceGroupsMinus1+1)
	return act, nil
}

// manager returns the map manager of the activation for pictures of the
// given layout.
func (act *activation) manager(layout h264dec.FrameLayout, l logging.Logger) (*h264dec.MapManager, error) {
	if m, ok := act.mgrs[layout]; ok {
		return m, nil
	}
	g := h264dec.GeometryOf(act.sps)
	g.Layout = layout
	m, err := h264dec.NewMapManagerFromGeometry(g, act.pps.MapParams(), l)
	if err != nil {
		return nil, errors.Wrap(err, "could not create map manager")
	}
	act.mgrs[layout] = m
	return m, nil
}

func (a *analyser) slice(nal *h264dec.NALUnit) error {
	id, err := h264dec.SlicePPSID(nal.RBSP)
	if err != nil {
		return err
	}
	act, err := a.activate(id)
	if err != nil {
		return err
	}
	h, err := h264dec.NewSliceHeader(nal.RBSP, nal, act.sps, act.pps)
	if err != nil {
		return errors.Wrap(err, "could not parse slice header")
	}
	mgr, err := act.manager(h.Layout(act.sps), a.log)
	if err != nil {
		return err
	}
	first := h.FirstMbAddr(act.sps)
	mapper, err := mgr.Mapper(first, h.SliceGroupChangeCycle)
	if err != nil {
		return errors.Wrap(err, "could not get macroblock mapper")
	}

	group, span := 0, mgr.Geometry().SizeInMbs()-first
	if m, ok := mapper.(*h264dec.PrebuiltMBlockMapper); ok {
		group, span = m.Group(), m.Len()
	}

	fmt.Fprintf(a.out, "slice %d: nal=%s type=%s pps=%d first_mb=%d group=%d last_mb=%d span=%d cabac=%s\n",
		a.slices, h264dec.NALTypeName(int(nal.Type)), h.SliceTypeName(), id,
		first, group, mapper.Address(span-1), span, a.checkCABAC(h, nal.RBSP))
	a.slices++
	a.spans = append(a.spans, float64(span))

	if a.dumpMap && mgr.Map() != nil && mgr.Map() != a.lastMap {
		a.lastMap = mgr.Map()
		a.writeMap(a.lastMap, mgr.Geometry().Width)
	}
	return nil
}

// checkCABAC initialises an arithmetic decoder at the start of the slice data
// of CABAC slices and returns a short status.
func (a *analyser) checkCABAC(h *h264dec.SliceHeader, rbsp []byte) string {
	if !h.CABAC() {
		return "no"
	}
	off := h.SliceDataOffset()
	if off > len(rbsp) {
		off = len(rbsp)
	}
	_, err := h264dec.NewArithmeticDecoder(bits.NewByteReader(rbsp[off:]), h264dec.NewContextTable(0))
	if errors.Cause(err) == h264dec.ErrMalformedStream {
		a.malformed++
		a.log.Warning(pkg+"could not initialise arithmetic decoder", "offset", off, "error", err.Error())
		return "malformed"
	}
	if !h.CheckCABACAlignment(rbsp) {
		a.log.Warning(pkg+"bad cabac_alignment_one_bit", "headerBits", h.HeaderBits())
		return "ok,unaligned"
	}
	return "ok"
}

// writeMap writes the slice group of each macroblock of m as a grid.
func (a *analyser) writeMap(m *h264dec.SliceGroupMap, width int) {
	var sb strings.Builder
	for addr, g := range m.Groups {
		fmt.Fprintf(&sb, "%d", g)
		if (addr+1)%width == 0 {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
	io.WriteString(a.out, sb.String())
}

// summary writes slice statistics to out.
func (a *analyser) summary() {
	fmt.Fprintf(a.out, "slices=%d errors=%d cabac_malformed=%d", a.slices, a.errs, a.malformed)
	switch {
	case len(a.spans) > 1:
		mean, std := stat.MeanStdDev(a.spans, nil)
		fmt.Fprintf(a.out, " span_mean=%.2f span_std=%.2f", mean, std)
	case len(a.spans) == 1:
		fmt.Fprintf(a.out, " span_mean=%.2f", stat.Mean(a.spans, nil))
	}
	fmt.Fprintln(a.out)
}
