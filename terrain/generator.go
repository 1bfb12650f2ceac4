package terrain

import (
	"runtime"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/voxelsplace/voxrt/voxel"
)

// Result is a generated sector waiting to be spliced.
type Result struct {
	Pos    voxel.IVec3
	Sector *voxel.Sector
}

// Generator produces sectors on a pool of goroutines. Requests and results
// go through one mutex guarded queue; sectors only cross goroutines once
// fully built. Results must be spliced into a map by its owning goroutine.
type Generator struct {
	cfg Config

	mu       sync.Mutex
	cond     *sync.Cond
	requests []voxel.IVec3
	results  []Result
	// pending holds the sectors requested and not yet returned by Poll or
	// Next.
	pending map[voxel.IVec3]struct{}
	closed  bool

	wg sync.WaitGroup
}

func NewGenerator(cfg Config) *Generator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g := &Generator{
		cfg:     cfg,
		pending: make(map[voxel.IVec3]struct{}),
	}
	g.cond = sync.NewCond(&g.mu)

	for i := 0; i < workers; i++ {
		g.wg.Add(1)
		go g.work()
	}
	logs.WithTag("workers", workers).
		WithTag("seed", cfg.Seed).
		Debug("terrain generator started")
	return g
}

func (g *Generator) Config() Config { return g.cfg }

func (g *Generator) work() {
	defer g.wg.Done()
	for {
		g.mu.Lock()
		for len(g.requests) == 0 && !g.closed {
			g.cond.Wait()
		}
		if g.closed {
			g.mu.Unlock()
			return
		}
		pos := g.requests[0]
		g.requests = g.requests[1:]
		g.mu.Unlock()

		s := g.cfg.Generate(pos)

		g.mu.Lock()
		g.results = append(g.results, Result{Pos: pos, Sector: s})
		g.cond.Broadcast()
		g.mu.Unlock()
	}
}

// RequestSector queues the sector at pos. It returns false when the sector is
// already pending or the generator is closed.
func (g *Generator) RequestSector(pos voxel.IVec3) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	if _, ok := g.pending[pos]; ok {
		return false
	}
	g.pending[pos] = struct{}{}
	g.requests = append(g.requests, pos)
	g.cond.Broadcast()
	return true
}

// Pending returns the number of requested sectors not yet handed out.
func (g *Generator) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Poll returns a finished sector without blocking.
func (g *Generator) Poll() (voxel.IVec3, *voxel.Sector, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pop()
}

// Next blocks until a sector is finished. It returns false once nothing is
// pending or the generator is closed.
func (g *Generator) Next() (voxel.IVec3, *voxel.Sector, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for len(g.results) == 0 && len(g.pending) > 0 && !g.closed {
		g.cond.Wait()
	}
	return g.pop()
}

func (g *Generator) pop() (voxel.IVec3, *voxel.Sector, bool) {
	if len(g.results) == 0 {
		return voxel.IVec3{}, nil, false
	}
	r := g.results[0]
	g.results = g.results[1:]
	delete(g.pending, r.Pos)
	return r.Pos, r.Sector, true
}

// SpliceReady splices every finished sector into m and returns how many were
// spliced. It must run on the goroutine that owns m.
func (g *Generator) SpliceReady(m *voxel.Map) int {
	n := 0
	for {
		pos, s, ok := g.Poll()
		if !ok {
			return n
		}
		m.SpliceSector(pos, s)
		n++
	}
}

// Close stops the workers and waits for them. Queued requests are dropped.
func (g *Generator) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.requests = nil
	g.cond.Broadcast()
	g.mu.Unlock()

	g.wg.Wait()
	logs.WithTag("seed", g.cfg.Seed).Debug("terrain generator stopped")
}
