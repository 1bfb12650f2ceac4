package voxel

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexerRoundTrip(t *testing.T) {
	positions := []IVec3{
		{0, 0, 0},
		{-1, -1, -1},
		{2047, 127, 2047},
		{-2048, -128, -2048},
		{13, -7, -1000},
	}
	for _, p := range positions {
		require.True(t, WorldSectors.InBounds(p))
		require.Equal(t, p, SectorPos(SectorIndex(p)))
	}
	require.Equal(t, uint32(1|2<<12|3<<24), SectorIndex(IVec3{1, 3, 2}))

	require.False(t, WorldSectors.InBounds(IVec3{2048, 0, 0}))
	require.False(t, WorldSectors.InBounds(IVec3{0, -129, 0}))
	require.False(t, WorldSectors.InBounds(IVec3{0, 0, -2049}))

	require.Equal(t, uint32(1|2<<2|3<<4), SectorBricks.Index(IVec3{1, 3, 2}))
	require.Equal(t, uint32(7|5<<3|6<<6), BrickVoxels.Index(IVec3{7, 6, 5}))
	require.Equal(t, IVec3{7, 6, 5}, BrickVoxels.Pos(7|5<<3|6<<6))
}

func TestInBoundsVoxels(t *testing.T) {
	require.True(t, InBounds(IVec3{-65536, -4096, -65536}))
	require.True(t, InBounds(IVec3{65535, 4095, 65535}))
	require.False(t, InBounds(IVec3{65536, 0, 0}))
	require.False(t, InBounds(IVec3{0, -4097, 0}))
}

func TestMaterialEncoded(t *testing.T) {
	m := Material{Color: [3]uint8{255, 0, 255}, MetalFuzziness: 0x42, Emission: 1}
	enc := m.Encoded()

	require.Equal(t, uint64(0xF81F), enc&0xFFFF)
	require.Equal(t, uint64(0x3C00), enc>>16&0xFFFF)
	require.Equal(t, uint8(0x42), DecodeMetalFuzziness(enc))
	require.Equal(t, float32(1), DecodeEmission(enc))
	require.Equal(t, [3]float32{1, 0, 1}, DecodeColor(enc))
}

func TestHalfFloat(t *testing.T) {
	tests := []struct {
		in   float32
		half uint16
	}{
		{0, 0},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
		{1e6, 0x7C00},
		{6.103515625e-05, 0x0400},
	}
	for _, test := range tests {
		require.Equal(t, test.half, float32ToHalf(test.in), "%v", test.in)
		if test.half != 0x7C00 {
			require.Equal(t, test.in, halfToFloat32(test.half))
		}
	}
	require.Equal(t, float32(2.5), halfToFloat32(float32ToHalf(2.5)))
}

func TestBrickDispatchSIMD(t *testing.T) {
	var b Brick
	require.True(t, b.IsEmpty())

	changed := b.DispatchSIMD(func(p *DispatchLanes) bool {
		for i := range p.VoxelIDs {
			if p.X[i] == 17 && p.Y[i] == 10 && p.Z[i] == 9 {
				p.VoxelIDs[i] = 300
			}
		}
		return true
	}, IVec3{2, 1, 1})

	require.True(t, changed)
	require.False(t, b.IsEmpty())
	require.Equal(t, Voxel(255), b.Data[BrickVoxels.Index(IVec3{1, 2, 1})])

	changed = b.DispatchSIMD(func(p *DispatchLanes) bool { return false }, IVec3{})
	require.False(t, changed)
}

func TestSectorBricks(t *testing.T) {
	s := NewSector()
	require.Nil(t, s.Brick(5, false))

	for _, i := range []uint32{40, 5, 63, 0} {
		s.Brick(i, true).Data[0] = Voxel(i + 1)
	}
	require.Equal(t, uint64(1<<40|1<<5|1<<63|1), s.AllocationMask())
	require.Equal(t, 4, s.NumBricks())

	s.DeleteBricks(1<<5 | 1<<0)
	require.Equal(t, uint64(1<<40|1<<63), s.AllocationMask())
	require.Equal(t, Voxel(41), s.Brick(40, false).Data[0])
	require.Equal(t, Voxel(64), s.Brick(63, false).Data[0])

	// storage is compacted in bit order
	require.Equal(t, uint8(1), s.slots[40])
	require.Equal(t, uint8(2), s.slots[63])

	s.Brick(63, false).Data[0] = 0
	require.Equal(t, uint64(1<<63), s.DeleteEmptyBricks(^uint64(0)))
	require.Equal(t, uint64(1<<40), s.AllocationMask())
}

func TestBrickIndexFromSlot(t *testing.T) {
	masks := []uint64{1, 1 << 63, 0xF0F0_0000_0000_0F0F, ^uint64(0), 0x8000_0000_0000_0001}
	for _, mask := range masks {
		slot := uint32(0)
		for b := mask; b != 0; b &= b - 1 {
			i := uint32(bits.TrailingZeros64(b))
			require.Equal(t, i, BrickIndexFromSlot(mask, slot), "mask %x slot %d", mask, slot)
			slot++
		}
	}
}

func TestDirtyLedger(t *testing.T) {
	l := NewDirtyLedger()
	l.Mark(30, 1)
	l.Mark(10, 2)
	l.Mark(30, 4)
	l.Set(20, 0)

	require.Equal(t, 3, l.Len())
	mask, ok := l.Get(30)
	require.True(t, ok)
	require.Equal(t, uint64(5), mask)

	var order []uint32
	l.Ascend(func(sector uint32, mask uint64) bool {
		order = append(order, sector)
		return true
	})
	require.Equal(t, []uint32{10, 20, 30}, order)

	sector, mask, ok := l.PopMin()
	require.True(t, ok)
	require.Equal(t, uint32(10), sector)
	require.Equal(t, uint64(2), mask)

	l.Delete(20)
	l.Clear()
	_, _, ok = l.PopMin()
	require.False(t, ok)
}
