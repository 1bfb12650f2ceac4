package storage

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const errTypeLabel = "error_type"

var (
	syncPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxrt_sync_passes",
		Help: "The number of sync passes run against the flat buffer.",
	})

	syncedBricks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxrt_synced_bricks",
		Help: "The number of bricks copied into the flat buffer.",
	})

	bufferResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxrt_buffer_resets",
		Help: "The number of times the flat buffer was grown and republished.",
	})

	syncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxrt_sync_errors",
		Help: "The errors that aborted a sync pass.",
	}, []string{
		errTypeLabel,
	})

	allocatedSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxrt_allocated_slots",
		Help: "The number of brick slots in use.",
	})

	freeRanges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxrt_free_ranges",
		Help: "The number of free slot ranges in the arena.",
	})

	bufferBricks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxrt_buffer_bricks",
		Help: "The brick capacity of the flat buffer.",
	})
)

func instrumentSync(bricks int) {
	syncPasses.Inc()
	syncedBricks.Add(float64(bricks))
}

func instrumentSyncError(err error) {
	syncErrors.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentArena(f *FlatStorage) {
	allocatedSlots.Set(float64(f.alloc.Arena.NumAllocated()))
	freeRanges.Set(float64(f.alloc.Arena.NumFreeRanges()))
	bufferBricks.Set(float64(len(f.Bricks)))
}
