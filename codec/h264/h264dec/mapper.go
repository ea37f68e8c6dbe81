/*
DESCRIPTION
  mapper.go provides per slice views over the macroblock addresses of a slice,
  giving the address of the i'th macroblock of the slice and the availability
  of its neighbours as required by the neighbour derivation of section 6.4.

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

// MBlockMapper maps the index of a macroblock within a slice, counting from
// 0 at first_mb_in_slice, to its address in the picture. A neighbour is
// available if it is in the picture, in the same slice group and at or after
// the first macroblock of the slice.
type MBlockMapper interface {
	Address(i int) int
	MbX(i int) int
	MbY(i int) int
	LeftAvailable(i int) bool
	TopAvailable(i int) bool
	TopLeftAvailable(i int) bool
	TopRightAvailable(i int) bool
}

// FlatMBlockMapper is the MBlockMapper for pictures with a single slice
// group, where macroblocks of a slice are consecutive in raster scan.
type FlatMBlockMapper struct {
	width int
	first int
}

// NewFlatMBlockMapper returns a FlatMBlockMapper for a picture width
// macroblocks wide and a slice starting at firstMb.
func NewFlatMBlockMapper(width, firstMb int) *FlatMBlockMapper {
	return &FlatMBlockMapper{width: width, first: firstMb}
}

// Address implements MBlockMapper.
func (m *FlatMBlockMapper) Address(i int) int { return m.first + i }

// MbX implements MBlockMapper.
func (m *FlatMBlockMapper) MbX(i int) int { return m.Address(i) % m.width }

// MbY implements MBlockMapper.
func (m *FlatMBlockMapper) MbY(i int) int { return m.Address(i) / m.width }

// LeftAvailable implements MBlockMapper.
func (m *FlatMBlockMapper) LeftAvailable(i int) bool {
	addr := m.Address(i)
	return addr%m.width != 0 && addr > m.first
}

// TopAvailable implements MBlockMapper.
func (m *FlatMBlockMapper) TopAvailable(i int) bool {
	return m.Address(i)-m.width >= m.first
}

// TopLeftAvailable implements MBlockMapper.
func (m *FlatMBlockMapper) TopLeftAvailable(i int) bool {
	addr := m.Address(i)
	return addr%m.width != 0 && addr-m.width-1 >= m.first
}

// TopRightAvailable implements MBlockMapper.
func (m *FlatMBlockMapper) TopRightAvailable(i int) bool {
	addr := m.Address(i)
	return (addr+1)%m.width != 0 && addr-m.width+1 >= m.first
}

// PrebuiltMBlockMapper is the MBlockMapper for pictures with more than one
// slice group. It reads from a shared SliceGroupMap.
type PrebuiltMBlockMapper struct {
	sgm   *SliceGroupMap
	width int
	first int
	group int
	base  int // Index of first within its group.
}

// NewPrebuiltMBlockMapper returns a PrebuiltMBlockMapper over sgm for a
// picture width macroblocks wide and a slice starting at firstMb.
func NewPrebuiltMBlockMapper(sgm *SliceGroupMap, firstMb, width int) *PrebuiltMBlockMapper {
	return &PrebuiltMBlockMapper{
		sgm:   sgm,
		width: width,
		first: firstMb,
		group: sgm.Groups[firstMb],
		base:  sgm.Indices[firstMb],
	}
}

// Group returns the slice group of the slice.
func (m *PrebuiltMBlockMapper) Group() int { return m.group }

// Len returns the number of macroblocks from the first macroblock of the
// slice to the end of its slice group.
func (m *PrebuiltMBlockMapper) Len() int { return len(m.sgm.Inverse[m.group]) - m.base }

// Address implements MBlockMapper.
func (m *PrebuiltMBlockMapper) Address(i int) int {
	return m.sgm.Inverse[m.group][m.base+i]
}

// MbX implements MBlockMapper.
func (m *PrebuiltMBlockMapper) MbX(i int) int { return m.Address(i) % m.width }

// MbY implements MBlockMapper.
func (m *PrebuiltMBlockMapper) MbY(i int) int { return m.Address(i) / m.width }

// LeftAvailable implements MBlockMapper.
func (m *PrebuiltMBlockMapper) LeftAvailable(i int) bool {
	addr := m.Address(i)
	return addr%m.width != 0 && m.inSlice(addr-1)
}

// TopAvailable implements MBlockMapper.
func (m *PrebuiltMBlockMapper) TopAvailable(i int) bool {
	return m.inSlice(m.Address(i) - m.width)
}

// TopLeftAvailable implements MBlockMapper.
func (m *PrebuiltMBlockMapper) TopLeftAvailable(i int) bool {
	addr := m.Address(i)
	return addr%m.width != 0 && m.inSlice(addr-m.width-1)
}

// TopRightAvailable implements MBlockMapper.
func (m *PrebuiltMBlockMapper) TopRightAvailable(i int) bool {
	addr := m.Address(i)
	return (addr+1)%m.width != 0 && m.inSlice(addr-m.width+1)
}

// inSlice reports whether addr could belong to the slice, i.e. it is at or
// after the first macroblock and in the same slice group.
func (m *PrebuiltMBlockMapper) inSlice(addr int) bool {
	return addr >= m.first && m.sgm.Groups[addr] == m.group
}
