package storage

import (
	"encoding/binary"
	"math/bits"
	"unsafe"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxelsplace/voxrt/alloc"
	"github.com/voxelsplace/voxrt/voxel"
)

const (
	ErrTypeInvalidConfig = "storage_invalid_config"
	ErrTypeSyncAborted   = "storage_sync_aborted"
)

// NoSlot marks a view sector without bricks in BaseSlots.
const NoSlot = ^uint32(0)

type Config struct {
	// ViewSizeXZ and ViewSizeY are the view extent in sectors. Both must be
	// multiples of 4.
	ViewSizeXZ uint32
	ViewSizeY  uint32
	// InitialBricks is the smallest brick capacity of the buffer.
	InitialBricks uint32
	// MaxBricksPerSync bounds how many bricks one Sync call copies. At least
	// one sector is always drained.
	MaxBricksPerSync int
	// ArenaCapacity bounds the slots handed out. Zero means every brick of
	// the view.
	ArenaCapacity uint32
}

func DefaultConfig() Config {
	return Config{
		ViewSizeXZ:       16,
		ViewSizeY:        8,
		InitialBricks:    4096,
		MaxBricksPerSync: 65536,
	}
}

func (c Config) validate() error {
	if c.ViewSizeXZ == 0 || c.ViewSizeY == 0 || c.ViewSizeXZ%4 != 0 || c.ViewSizeY%4 != 0 {
		return errors.Newf("view size must be a non-zero multiple of 4").
			WithType(ErrTypeInvalidConfig).
			WithTag("xz", c.ViewSizeXZ).
			WithTag("y", c.ViewSizeY)
	}
	if c.ViewSizeXZ > 1024 || c.ViewSizeY > 256 {
		return errors.Newf("view size too large").
			WithType(ErrTypeInvalidConfig).
			WithTag("xz", c.ViewSizeXZ).
			WithTag("y", c.ViewSizeY)
	}
	if c.MaxBricksPerSync <= 0 {
		return errors.Newf("max bricks per sync must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_bricks_per_sync", c.MaxBricksPerSync)
	}
	return nil
}

// FlatStorage is the destination of the dirty sync: a dense brick array
// addressed through per-sector slot metadata, plus the occupancy masks used
// by the traversal. It covers a fixed size view of the world.
//
// Slots handed out by the allocator are 1-based; Bricks and the metadata are
// 0-based.
type FlatStorage struct {
	cfg   Config
	alloc *alloc.BrickSlotAllocator

	Palette [256]uint64
	// BaseSlots and AllocMasks are indexed by linear view sector index.
	BaseSlots  []uint32
	AllocMasks []uint64
	// SectorOccupancy has one word per 4x4x4 group of view sectors, with a bit
	// set for every sector that holds bricks.
	SectorOccupancy []uint64

	Bricks []voxel.Brick
	// Occupancy holds CellsPerBrick masks per brick slot.
	Occupancy []uint64
}

func New(cfg Config) (*FlatStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	numSectors := cfg.ViewSizeXZ * cfg.ViewSizeXZ * cfg.ViewSizeY
	capacity := cfg.ArenaCapacity
	if capacity == 0 {
		capacity = numSectors * voxel.BricksPerSector
	}

	f := &FlatStorage{
		cfg:             cfg,
		alloc:           alloc.NewBrickSlotAllocatorWithCapacity(cfg.ViewSizeXZ, cfg.ViewSizeY, capacity),
		BaseSlots:       make([]uint32, numSectors),
		AllocMasks:      make([]uint64, numSectors),
		SectorOccupancy: make([]uint64, numSectors/64),
	}
	f.resize(max(cfg.InitialBricks, 1))
	f.clearMeta()
	return f, nil
}

func (f *FlatStorage) Config() Config { return f.cfg }

// Allocator exposes the slot allocator, mostly for inspection.
func (f *FlatStorage) Allocator() *alloc.BrickSlotAllocator { return f.alloc }

func (f *FlatStorage) resize(numBricks uint32) {
	f.Bricks = make([]voxel.Brick, numBricks)
	f.Occupancy = make([]uint64, int(numBricks)*CellsPerBrick)
}

func (f *FlatStorage) clearMeta() {
	for i := range f.BaseSlots {
		f.BaseSlots[i] = NoSlot
		f.AllocMasks[i] = 0
	}
	clear(f.SectorOccupancy)
}

// ViewOrigin returns the world sector position of the view's first sector.
func (f *FlatStorage) ViewOrigin() voxel.IVec3 { return f.alloc.ViewOrigin() }

// ViewSize returns the view extent in voxels.
func (f *FlatStorage) ViewSize() voxel.IVec3 {
	xz := int32(f.cfg.ViewSizeXZ) << voxel.SectorShift
	return voxel.IVec3{X: xz, Y: int32(f.cfg.ViewSizeY) << voxel.SectorShift, Z: xz}
}

// Origin returns the world voxel position of the view's first voxel.
func (f *FlatStorage) Origin() voxel.IVec3 { return f.alloc.ViewOrigin().Shl(voxel.SectorShift) }

// SetViewOrigin moves the view. Everything in the buffer is dropped and the
// whole map is marked dirty so the next syncs republish it.
func (f *FlatStorage) SetViewOrigin(m *voxel.Map, sectorPos voxel.IVec3) {
	if sectorPos == f.alloc.ViewOrigin() {
		return
	}
	f.alloc.SetViewOrigin(sectorPos)
	f.clearMeta()
	m.MarkAllDirty()
}

// CenterView recenters the view on a world voxel position once it drifted at
// least two sectors away from the view center. It reports whether the view
// moved.
func (f *FlatStorage) CenterView(m *voxel.Map, pos voxel.IVec3) bool {
	half := voxel.IVec3{
		X: int32(f.cfg.ViewSizeXZ / 2),
		Y: int32(f.cfg.ViewSizeY / 2),
		Z: int32(f.cfg.ViewSizeXZ / 2),
	}
	center := f.alloc.ViewOrigin().Add(half)
	d := pos.Shr(voxel.SectorShift).Sub(center)
	if max(abs(d.X), abs(d.Y), abs(d.Z)) < 2 {
		return false
	}
	f.SetViewOrigin(m, pos.Shr(voxel.SectorShift).Sub(half))
	return true
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func (f *FlatStorage) viewSectorIndex(p voxel.IVec3) uint32 {
	xz := f.cfg.ViewSizeXZ
	return uint32(p.X) + uint32(p.Z)*xz + uint32(p.Y)*xz*xz
}

// InView reports whether the view space voxel position p is inside the view.
func (f *FlatStorage) InView(p voxel.IVec3) bool {
	size := f.ViewSize()
	return uint32(p.X) < uint32(size.X) && uint32(p.Y) < uint32(size.Y) && uint32(p.Z) < uint32(size.Z)
}

// BrickMask returns the allocation mask of the view sector at p, in view
// sector coordinates.
func (f *FlatStorage) BrickMask(p voxel.IVec3) uint64 {
	return f.AllocMasks[f.viewSectorIndex(p)]
}

// GroupMask returns the sector occupancy word of the 4x4x4 sector group g.
func (f *FlatStorage) GroupMask(g voxel.IVec3) uint64 {
	xz := f.cfg.ViewSizeXZ / 4
	return f.SectorOccupancy[uint32(g.X)+uint32(g.Z)*xz+uint32(g.Y)*xz*xz]
}

// BrickSlot resolves brick brickIdx of the view sector at p to its 0-based
// index in Bricks.
func (f *FlatStorage) BrickSlot(p voxel.IVec3, brickIdx uint32) (uint32, bool) {
	vi := f.viewSectorIndex(p)
	mask := f.AllocMasks[vi]
	bit := uint64(1) << brickIdx
	if mask&bit == 0 {
		return 0, false
	}
	return f.BaseSlots[vi] + uint32(bits.OnesCount64(mask&(bit-1))), true
}

// CellMask returns occupancy cell cell of the brick in slot.
func (f *FlatStorage) CellMask(slot, cell uint32) uint64 {
	return f.Occupancy[slot*CellsPerBrick+cell]
}

// VoxelAt returns voxel voxelIdx of the brick in slot.
func (f *FlatStorage) VoxelAt(slot, voxelIdx uint32) voxel.Voxel {
	return f.Bricks[slot].Data[voxelIdx]
}

// Material returns the encoded palette entry of v.
func (f *FlatStorage) Material(v voxel.Voxel) uint64 { return f.Palette[v] }

// Get reads the voxel at view space position p. Positions outside the view
// read as empty.
func (f *FlatStorage) Get(p voxel.IVec3) voxel.Voxel {
	if !f.InView(p) {
		return voxel.Empty
	}
	slot, ok := f.BrickSlot(p.Shr(voxel.SectorShift), voxel.SectorBricks.Index(p.Shr(voxel.BrickShift)))
	if !ok {
		return voxel.Empty
	}
	return f.VoxelAt(slot, voxel.BrickVoxels.Index(p))
}

// AppendMeta appends the little endian metadata blob: encoded palette, base
// slots, allocation masks and sector occupancy, in that order.
func (f *FlatStorage) AppendMeta(dst []byte) []byte {
	for _, m := range f.Palette {
		dst = binary.LittleEndian.AppendUint64(dst, m)
	}
	for _, s := range f.BaseSlots {
		dst = binary.LittleEndian.AppendUint32(dst, s)
	}
	for _, m := range f.AllocMasks {
		dst = binary.LittleEndian.AppendUint64(dst, m)
	}
	for _, m := range f.SectorOccupancy {
		dst = binary.LittleEndian.AppendUint64(dst, m)
	}
	return dst
}

// BrickBytes aliases the brick array as raw bytes.
func (f *FlatStorage) BrickBytes() []byte {
	if len(f.Bricks) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f.Bricks[0])), len(f.Bricks)*voxel.BrickVolume)
}

// OccupancyWords returns the occupancy masks, CellsPerBrick per slot.
func (f *FlatStorage) OccupancyWords() []uint64 { return f.Occupancy }
