package storage

import (
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/voxelsplace/voxrt/alloc"
	"github.com/voxelsplace/voxrt/voxel"
)

// SyncResult summarizes one Sync call.
type SyncResult struct {
	Sectors int
	Bricks  int
	// Remaining is the number of ledger entries left for later calls.
	Remaining int
	// Reset is set when the buffer was reallocated. The whole map was marked
	// dirty and nothing was copied.
	Reset bool
}

type sectorUpdate struct {
	index uint32
	info  *alloc.SectorInfo
	dirty uint64
}

// Sync drains the map's dirty ledger into the buffer, copying at most
// MaxBricksPerSync bricks unless a single sector needs more. Empty bricks and
// sectors are collected from the map on the way.
//
// When the allocator runs out of slots the cycle is aborted with an
// ErrTypeSyncAborted error. The failing sector is put back in the ledger and
// the sectors drained before it are still published.
func (f *FlatStorage) Sync(m *voxel.Map) (SyncResult, error) {
	var res SyncResult
	var batch []sectorUpdate
	var abortErr error
	numBricks := 0

	for numBricks < f.cfg.MaxBricksPerSync || len(batch) == 0 {
		idx, dirty, ok := m.Dirty.PopMin()
		if !ok {
			break
		}
		info := f.alloc.Sector(voxel.SectorPos(idx))
		if info == nil {
			continue
		}

		var freeMask, allocMask uint64
		if sector, ok := m.Sectors[idx]; ok {
			sector.DeleteEmptyBricks(dirty)
			allocMask = sector.AllocationMask()
			if allocMask == 0 {
				delete(m.Sectors, idx)
			}
			dirty &= allocMask
			freeMask = info.AllocMask &^ allocMask
		} else {
			dirty = 0
			freeMask = ^uint64(0)
		}

		if freeMask != 0 {
			dirty |= f.alloc.Free(info, freeMask)
		}
		if dirty != 0 {
			moved, err := f.alloc.Alloc(info, dirty)
			if err != nil {
				// The failed grow released the sector's slots, so all of its
				// bricks have to be placed again.
				m.Dirty.Mark(idx, allocMask)
				f.writeSectorMeta(info)
				abortErr = errors.New("sync aborted").
					WithType(ErrTypeSyncAborted).
					WithTag("sector", voxel.SectorPos(idx)).
					Wrap(err)
				break
			}
			dirty |= moved
		}
		batch = append(batch, sectorUpdate{index: idx, info: info, dirty: dirty})
		numBricks += bits.OnesCount64(dirty)
	}

	if need := f.alloc.Arena.HighWater() - 1; need > uint32(len(f.Bricks)) {
		f.grow(m, need)
		res.Reset = true
		res.Remaining = m.Dirty.Len()
		instrumentArena(f)
		return res, abortErr
	}

	for i := range m.Palette {
		f.Palette[i] = m.Palette[i].Encoded()
	}
	for _, u := range batch {
		f.publish(m, u)
		res.Bricks += bits.OnesCount64(u.dirty)
	}
	res.Sectors = len(batch)
	res.Remaining = m.Dirty.Len()

	instrumentSync(res.Bricks)
	instrumentArena(f)
	if abortErr != nil {
		instrumentSyncError(abortErr)
		logs.Warn(abortErr)
	}
	return res, abortErr
}

// SyncAll calls Sync until the ledger is empty.
func (f *FlatStorage) SyncAll(m *voxel.Map) error {
	for m.Dirty.Len() > 0 {
		if _, err := f.Sync(m); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlatStorage) publish(m *voxel.Map, u sectorUpdate) {
	if u.dirty != 0 {
		sector := m.Sectors[u.index]
		for b := u.dirty; b != 0; b &= b - 1 {
			i := uint32(bits.TrailingZeros64(b))
			slot := u.info.Slot(i) - 1
			f.Bricks[slot] = *sector.Brick(i, false)
			BuildCellMasks(&f.Bricks[slot], f.Occupancy[slot*CellsPerBrick:])
		}
	}
	f.writeSectorMeta(u.info)
}

func (f *FlatStorage) writeSectorMeta(info *alloc.SectorInfo) {
	vi := info.ViewIndex()
	f.AllocMasks[vi] = info.AllocMask
	f.BaseSlots[vi] = NoSlot
	if info.AllocMask != 0 {
		f.BaseSlots[vi] = info.BaseSlot - 1
	}
	viewPos := f.alloc.Pos(info).Sub(f.alloc.ViewOrigin())
	f.updateSectorOccupancy(viewPos, info.AllocMask != 0)
}

// grow reallocates the buffer at the next power of two that holds need
// bricks, drops every allocation and marks the whole map dirty.
func (f *FlatStorage) grow(m *voxel.Map, need uint32) {
	size := uint32(1) << bits.Len32(need-1)
	size = max(size, f.cfg.InitialBricks)

	logs.WithTag("from", len(f.Bricks)).
		WithTag("to", size).
		Debug("growing flat brick buffer")

	f.resize(size)
	f.alloc.Reset()
	f.clearMeta()
	m.MarkAllDirty()
	bufferResets.Inc()
}
