/*
DESCRIPTION
  mapmanager.go provides the MapManager, which owns the slice group map of the
  active picture parameter set, rebuilding it when the slice group change
  cycle of a dynamic map changes, and hands out MBlockMappers for slices.

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
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

var errBadFirstMb = errors.New("first_mb_in_slice outside of picture")

// Geometry describes the macroblock layout of a picture.
type Geometry struct {
	Width            int // PicWidthInMbs.
	HeightInMapUnits int // PicHeightInMapUnits.
	Layout           FrameLayout
}

// GeometryOf returns the Geometry of frame pictures of sps. Field pictures
// have a Layout of FieldPicture.
func GeometryOf(sps *SPS) Geometry {
	g := Geometry{Width: sps.PicWidthInMbs(), HeightInMapUnits: sps.PicHeightInMapUnits()}
	switch {
	case sps.FrameMBSOnlyFlag:
		g.Layout = FrameOnly
	case sps.MBAdaptiveFrameFieldFlag:
		g.Layout = MBAFFFrame
	default:
		g.Layout = NonMBAFFFrame
	}
	return g
}

// SizeInMbs returns the number of macroblocks in the picture.
func (g Geometry) SizeInMbs() int {
	return g.Width * g.HeightInMapUnits * g.Layout.mbsPerMapUnit()
}

// mapCache holds the most recently built map and the change cycle it was
// built for. Static maps are stored with a cycle of 0.
type mapCache struct {
	valid bool
	cycle int
	m     *SliceGroupMap
}

// fresh reports whether the cached map may be used for cycle.
func (c *mapCache) fresh(cycle int) bool { return c.valid && c.cycle == cycle }

func (c *mapCache) store(cycle int, m *SliceGroupMap) {
	c.valid, c.cycle, c.m = true, cycle, m
}

// MapManager owns the slice group map of a PPS activation. Static map types
// are built on construction, dynamic types when a slice first needs them and
// again whenever slice_group_change_cycle changes. A MapManager must not be
// used concurrently; the maps it returns may be.
type MapManager struct {
	geom   Geometry
	params MapParams
	log    logging.Logger
	cache  mapCache
	builds int
}

// NewMapManager returns a MapManager for frame pictures of the given
// sequence and picture parameter sets.
func NewMapManager(sps *SPS, pps *PPS, l logging.Logger) (*MapManager, error) {
	return NewMapManagerFromGeometry(GeometryOf(sps), pps.MapParams(), l)
}

// NewMapManagerFromGeometry returns a MapManager for pictures of geometry g
// and slice group map parameters p. Errors from building a static map are
// returned here.
func NewMapManagerFromGeometry(g Geometry, p MapParams, l logging.Logger) (*MapManager, error) {
	if g.Width < 1 || g.HeightInMapUnits < 1 {
		return nil, errors.Wrapf(ErrBadMapParams, "picture size: %dx%d", g.Width, g.HeightInMapUnits)
	}
	m := &MapManager{geom: g, params: p, log: orNop(l)}
	if p.NumGroups > 1 && (p.Type < MapInterleaved || p.Type > MapExplicit) {
		return nil, errors.Wrapf(ErrUnsupportedMapType, "slice_group_map_type: %d", p.Type)
	}
	if p.NumGroups > 1 && !p.Dynamic() {
		err := m.build(0)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// update makes sure the cached map is valid for changeCycle.
func (m *MapManager) update(changeCycle int) error {
	if m.params.NumGroups <= 1 {
		return nil
	}
	if !m.params.Dynamic() {
		changeCycle = 0
	}
	if m.cache.fresh(changeCycle) {
		return nil
	}
	return m.build(changeCycle)
}

func (m *MapManager) build(changeCycle int) error {
	units, err := BuildMapUnitMap(m.geom.Width, m.geom.HeightInMapUnits, m.params, changeCycle)
	if err != nil {
		return errors.Wrap(err, "could not build slice group map")
	}
	mbs := MbToSliceGroupMap(units, m.geom.Width, m.geom.Layout)
	m.cache.store(changeCycle, BuildMapIndices(mbs, m.params.NumGroups))
	m.builds++
	m.log.Debug(pkg+"built slice group map", "type", m.params.Type, "groups", m.params.NumGroups, "changeCycle", changeCycle, "mbs", len(mbs))
	return nil
}

// Mapper returns an MBlockMapper for a slice starting at macroblock firstMb
// with the given slice_group_change_cycle, rebuilding the map if needed.
func (m *MapManager) Mapper(firstMb, changeCycle int) (MBlockMapper, error) {
	if firstMb < 0 || firstMb >= m.geom.SizeInMbs() {
		return nil, errors.Wrapf(errBadFirstMb, "first_mb_in_slice: %d, picture size: %d", firstMb, m.geom.SizeInMbs())
	}
	err := m.update(changeCycle)
	if err != nil {
		return nil, err
	}
	if m.cache.m == nil {
		return NewFlatMBlockMapper(m.geom.Width, firstMb), nil
	}
	return NewPrebuiltMBlockMapper(m.cache.m, firstMb, m.geom.Width), nil
}

// Map returns the most recently built map, or nil if there is none, as is the
// case for a single slice group.
func (m *MapManager) Map() *SliceGroupMap { return m.cache.m }

// Geometry returns the picture geometry of the manager.
func (m *MapManager) Geometry() Geometry { return m.geom }

// Params returns the slice group map parameters of the manager.
func (m *MapManager) Params() MapParams { return m.params }

// Builds returns the number of times a map has been built.
func (m *MapManager) Builds() int { return m.builds }
