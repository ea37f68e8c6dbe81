/*
DESCRIPTION
  slicegroup.go provides derivation of the map unit to slice group map for
  the seven slice group map types of section 8.2.2 of the specifications,
  expansion of map units to macroblocks, and indexing of the resulting map.

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

// Slice group map types, slice_group_map_type in the PPS.
const (
	MapInterleaved = iota
	MapDispersed
	MapForeground
	MapBoxOut
	MapRasterScan
	MapWipe
	MapExplicit
)

var (
	// ErrUnsupportedMapType is returned when a map is requested for a
	// slice_group_map_type outside of 0 to 6.
	ErrUnsupportedMapType = errors.New("unsupported slice group map type")

	// ErrBadMapParams is returned when slice group map parameters are
	// inconsistent with the picture or with each other.
	ErrBadMapParams = errors.New("bad slice group map parameters")
)

// MapParams holds the PPS parameters that determine a slice group map.
// Fields are already in their derived form, i.e. run lengths and change rate
// are not minus 1.
type MapParams struct {
	Type      int
	NumGroups int

	// Type 0, run_length_minus1 + 1 for each group.
	RunLength []int

	// Type 2, top_left and bottom_right for groups 0 to NumGroups-2.
	TopLeft, BottomRight []int

	// Types 3 to 5, slice_group_change_direction_flag and
	// SliceGroupChangeRate.
	ChangeDirection bool
	ChangeRate      int

	// Type 6, slice_group_id for each map unit.
	SliceGroupID []int
}

// Dynamic reports whether the map evolves with slice_group_change_cycle.
func (p MapParams) Dynamic() bool {
	return p.Type >= MapBoxOut && p.Type <= MapWipe
}

// BuildMapUnitMap returns mapUnitToSliceGroupMap for a picture width map
// units wide and heightInMapUnits high, following section 8.2.2.1 to 8.2.2.7.
// changeCycle is slice_group_change_cycle and is used only by the dynamic map
// types. If there is a single slice group no map is needed and nil is
// returned.
func BuildMapUnitMap(width, heightInMapUnits int, p MapParams, changeCycle int) ([]int, error) {
	if p.Type < MapInterleaved || p.Type > MapExplicit {
		return nil, errors.Wrapf(ErrUnsupportedMapType, "slice_group_map_type: %d", p.Type)
	}
	if p.NumGroups < 1 || p.NumGroups > maxSliceGroups {
		return nil, errors.Wrapf(ErrBadMapParams, "number of slice groups: %d", p.NumGroups)
	}
	if width < 1 || heightInMapUnits < 1 {
		return nil, errors.Wrapf(ErrBadMapParams, "picture size: %dx%d", width, heightInMapUnits)
	}
	if p.NumGroups == 1 {
		return nil, nil
	}

	total := width * heightInMapUnits
	dir := p.ChangeDirection
	var quota int
	if p.Dynamic() {
		if p.ChangeRate < 1 {
			return nil, errors.Wrapf(ErrBadMapParams, "change rate: %d", p.ChangeRate)
		}
		if changeCycle < 0 {
			return nil, errors.Wrapf(ErrBadMapParams, "change cycle: %d", changeCycle)
		}
		quota = unitsInSliceGroup0(changeCycle, p.ChangeRate, total)
	}

	switch p.Type {
	case MapInterleaved:
		if len(p.RunLength) < p.NumGroups {
			return nil, errors.Wrapf(ErrBadMapParams, "%d run lengths for %d groups", len(p.RunLength), p.NumGroups)
		}
		for _, l := range p.RunLength[:p.NumGroups] {
			if l < 1 {
				return nil, errors.Wrapf(ErrBadMapParams, "run length: %d", l)
			}
		}
		return InterleavedMap(total, p.RunLength[:p.NumGroups]), nil
	case MapDispersed:
		return DispersedMap(width, total, p.NumGroups), nil
	case MapForeground:
		err := checkRects(width, total, p)
		if err != nil {
			return nil, err
		}
		return ForegroundMap(width, total, p.NumGroups, p.TopLeft, p.BottomRight), nil
	case MapBoxOut:
		return BoxOutMap(width, heightInMapUnits, dir, quota), nil
	case MapRasterScan:
		return RasterScanMap(total, dir, quota), nil
	case MapWipe:
		return WipeMap(width, heightInMapUnits, dir, quota), nil
	default:
		if len(p.SliceGroupID) < total {
			return nil, errors.Wrapf(ErrBadMapParams, "%d slice group ids for %d map units", len(p.SliceGroupID), total)
		}
		m := make([]int, total)
		for i, g := range p.SliceGroupID[:total] {
			if g < 0 || g >= p.NumGroups {
				return nil, errors.Wrapf(ErrBadMapParams, "slice_group_id[%d]: %d", i, g)
			}
			m[i] = g
		}
		return m, nil
	}
}

// unitsInSliceGroup0 returns mapUnitsInSliceGroup0 (7-34).
func unitsInSliceGroup0(changeCycle, changeRate, total int) int {
	if changeCycle > total/changeRate {
		return total
	}
	return mini(changeCycle*changeRate, total)
}

func checkRects(width, total int, p MapParams) error {
	n := p.NumGroups - 1
	if len(p.TopLeft) < n || len(p.BottomRight) < n {
		return errors.Wrapf(ErrBadMapParams, "%d/%d rectangles for %d groups", len(p.TopLeft), len(p.BottomRight), p.NumGroups)
	}
	for i := 0; i < n; i++ {
		tl, br := p.TopLeft[i], p.BottomRight[i]
		if tl < 0 || tl > br || br >= total || tl%width > br%width {
			return errors.Wrapf(ErrBadMapParams, "rectangle %d: top_left %d, bottom_right %d", i, tl, br)
		}
	}
	return nil
}

// InterleavedMap returns the map for slice_group_map_type 0 (8.2.2.1). Runs
// of runLength[iGroup] map units are assigned to each group in turn, cycling
// until the picture is filled.
func InterleavedMap(total int, runLength []int) []int {
	m := make([]int, total)
	i := 0
	for i < total {
		for iGroup := 0; iGroup < len(runLength) && i < total; iGroup++ {
			for j := 0; j < runLength[iGroup] && i+j < total; j++ {
				m[i+j] = iGroup
			}
			i += runLength[iGroup]
		}
	}
	return m
}

// DispersedMap returns the map for slice_group_map_type 1 (8.2.2.2).
func DispersedMap(width, total, numGroups int) []int {
	m := make([]int, total)
	for i := range m {
		m[i] = ((i % width) + (((i / width) * numGroups) / 2)) % numGroups
	}
	return m
}

// ForegroundMap returns the map for slice_group_map_type 2 (8.2.2.3). Map
// units outside all rectangles belong to the last group. Rectangles are
// written from the highest group down, so lower groups win overlaps.
func ForegroundMap(width, total, numGroups int, topLeft, bottomRight []int) []int {
	m := make([]int, total)
	for i := range m {
		m[i] = numGroups - 1
	}
	for iGroup := numGroups - 2; iGroup >= 0; iGroup-- {
		yTopLeft := topLeft[iGroup] / width
		xTopLeft := topLeft[iGroup] % width
		yBottomRight := bottomRight[iGroup] / width
		xBottomRight := bottomRight[iGroup] % width
		for y := yTopLeft; y <= yBottomRight; y++ {
			for x := xTopLeft; x <= xBottomRight; x++ {
				m[y*width+x] = iGroup
			}
		}
	}
	return m
}

// BoxOutMap returns the map for slice_group_map_type 3 (8.2.2.4). quota map
// units are assigned to group 0 spiralling out from the centre of the
// picture, clockwise if dir is false and anticlockwise otherwise. The rest
// belong to group 1.
func BoxOutMap(width, height int, dir bool, quota int) []int {
	m := make([]int, width*height)
	for i := range m {
		m[i] = 1
	}
	d := flagVal(dir)
	x := (width - d) / 2
	y := (height - d) / 2
	leftBound, topBound := x, y
	rightBound, bottomBound := x, y
	xDir, yDir := d-1, d

	for k := 0; k < quota; {
		vacant := m[y*width+x] == 1
		if vacant {
			m[y*width+x] = 0
		}
		switch {
		case xDir == -1 && x == leftBound:
			leftBound = maxi(leftBound-1, 0)
			x = leftBound
			xDir, yDir = 0, 2*d-1
		case xDir == 1 && x == rightBound:
			rightBound = mini(rightBound+1, width-1)
			x = rightBound
			xDir, yDir = 0, 1-2*d
		case yDir == -1 && y == topBound:
			topBound = maxi(topBound-1, 0)
			y = topBound
			xDir, yDir = 1-2*d, 0
		case yDir == 1 && y == bottomBound:
			bottomBound = mini(bottomBound+1, height-1)
			y = bottomBound
			xDir, yDir = 2*d-1, 0
		default:
			x += xDir
			y += yDir
		}
		if vacant {
			k++
		}
	}
	return m
}

// RasterScanMap returns the map for slice_group_map_type 4 (8.2.2.5).
func RasterScanMap(total int, dir bool, quota int) []int {
	d := flagVal(dir)
	upperLeft := quota
	if dir {
		upperLeft = total - quota
	}
	m := make([]int, total)
	for k := range m {
		if k < upperLeft {
			m[k] = d
		} else {
			m[k] = 1 - d
		}
	}
	return m
}

// WipeMap returns the map for slice_group_map_type 5 (8.2.2.6). It is the
// column-major equivalent of RasterScanMap.
func WipeMap(width, height int, dir bool, quota int) []int {
	d := flagVal(dir)
	upperLeft := quota
	if dir {
		upperLeft = width*height - quota
	}
	m := make([]int, width*height)
	k := 0
	for j := 0; j < width; j++ {
		for i := 0; i < height; i++ {
			if k < upperLeft {
				m[i*width+j] = d
			} else {
				m[i*width+j] = 1 - d
			}
			k++
		}
	}
	return m
}

// FrameLayout describes how map units relate to macroblocks in a picture.
type FrameLayout int

// Frame layouts, per the cases of section 8.2.2.8.
const (
	FrameOnly     FrameLayout = iota // frame_mbs_only_flag is 1.
	FieldPicture                     // field_pic_flag is 1.
	MBAFFFrame                       // MbaffFrameFlag is 1.
	NonMBAFFFrame                    // Frame picture, map units are macroblock pairs.
)

// mbsPerMapUnit returns the number of macroblocks in a map unit.
func (l FrameLayout) mbsPerMapUnit() int {
	if l == MBAFFFrame || l == NonMBAFFFrame {
		return 2
	}
	return 1
}

// MbToSliceGroupMap expands the map unit to slice group map mapUnits of a
// picture width macroblocks wide to a macroblock to slice group map as
// specified by section 8.2.2.8.
func MbToSliceGroupMap(mapUnits []int, width int, layout FrameLayout) []int {
	if mapUnits == nil {
		return nil
	}
	m := make([]int, len(mapUnits)*layout.mbsPerMapUnit())
	for i := range m {
		switch layout {
		case FrameOnly, FieldPicture:
			m[i] = mapUnits[i]
		case MBAFFFrame:
			m[i] = mapUnits[i/2]
		default:
			m[i] = mapUnits[(i/(2*width))*width+(i%width)]
		}
	}
	return m
}

// SliceGroupMap is an indexed macroblock to slice group map. It is not
// modified after construction and may be read concurrently.
type SliceGroupMap struct {
	// Groups holds the slice group of each macroblock address.
	Groups []int

	// Indices holds the position of each macroblock in the raster scan of its
	// own slice group.
	Indices []int

	// Inverse holds, for each slice group, its macroblock addresses in
	// raster scan order.
	Inverse [][]int
}

// BuildMapIndices indexes the macroblock to slice group map groups of a
// picture with numGroups slice groups.
func BuildMapIndices(groups []int, numGroups int) *SliceGroupMap {
	s := &SliceGroupMap{
		Groups:  groups,
		Indices: make([]int, len(groups)),
		Inverse: make([][]int, numGroups),
	}
	for addr, g := range groups {
		s.Indices[addr] = len(s.Inverse[g])
		s.Inverse[g] = append(s.Inverse[g], addr)
	}
	return s
}

// NumGroups returns the number of slice groups.
func (s *SliceGroupMap) NumGroups() int { return len(s.Inverse) }

// NextAddress returns nextMbAddress (8-16), the next macroblock address after
// n in the slice group of n, or the picture size if there is none.
func (s *SliceGroupMap) NextAddress(n int) int {
	i := n + 1
	for i < len(s.Groups) && s.Groups[i] != s.Groups[n] {
		i++
	}
	return i
}
