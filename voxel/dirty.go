package voxel

import "github.com/google/btree"

type dirtyEntry struct {
	sector uint32
	mask   uint64
}

func dirtyLess(a, b dirtyEntry) bool { return a.sector < b.sector }

// DirtyLedger tracks, per sector index, the bricks changed since they were
// last synced. Entries are kept in sector index order so a partial drain
// always resumes where it left off.
type DirtyLedger struct {
	tree *btree.BTreeG[dirtyEntry]
}

func NewDirtyLedger() *DirtyLedger {
	return &DirtyLedger{tree: btree.NewG(16, dirtyLess)}
}

// Mark ORs mask into the entry of sector.
func (l *DirtyLedger) Mark(sector uint32, mask uint64) {
	e, _ := l.tree.Get(dirtyEntry{sector: sector})
	e.sector = sector
	e.mask |= mask
	l.tree.ReplaceOrInsert(e)
}

// Set replaces the entry of sector, keeping it even when mask is zero. A zero
// entry still tells the sync step to look at the sector.
func (l *DirtyLedger) Set(sector uint32, mask uint64) {
	l.tree.ReplaceOrInsert(dirtyEntry{sector: sector, mask: mask})
}

func (l *DirtyLedger) Get(sector uint32) (uint64, bool) {
	e, ok := l.tree.Get(dirtyEntry{sector: sector})
	return e.mask, ok
}

func (l *DirtyLedger) Delete(sector uint32) {
	l.tree.Delete(dirtyEntry{sector: sector})
}

func (l *DirtyLedger) Len() int { return l.tree.Len() }

func (l *DirtyLedger) Clear() { l.tree.Clear(false) }

// Ascend calls fn for every entry in sector index order until fn returns false.
func (l *DirtyLedger) Ascend(fn func(sector uint32, mask uint64) bool) {
	l.tree.Ascend(func(e dirtyEntry) bool { return fn(e.sector, e.mask) })
}

// PopMin removes and returns the entry with the lowest sector index.
func (l *DirtyLedger) PopMin() (sector uint32, mask uint64, ok bool) {
	e, ok := l.tree.DeleteMin()
	return e.sector, e.mask, ok
}
