package workers

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"transmute/internal/config"
	"transmute/internal/logging"
)

// ResolutionClass buckets sources by decode and metric cost. Higher classes
// admit fewer concurrent files.
type ResolutionClass int

const (
	ResolutionSD ResolutionClass = iota
	ResolutionHD
	ResolutionUHD
)

func (r ResolutionClass) String() string {
	switch r {
	case ResolutionSD:
		return "sd"
	case ResolutionHD:
		return "hd"
	case ResolutionUHD:
		return "uhd"
	default:
		return "unknown"
	}
}

// ClassifyResolution buckets by the larger pixel dimension so portrait
// sources land in the same class as their rotated equivalents.
func ClassifyResolution(width, height int) ResolutionClass {
	long := width
	if height > long {
		long = height
	}
	switch {
	case long >= 3840:
		return ResolutionUHD
	case long >= 1920:
		return ResolutionHD
	default:
		return ResolutionSD
	}
}

// classCeiling bounds concurrency per resolution class. Encoders and the
// per-plane metric runs already parallelize internally; stacking too many
// UHD files thrashes memory.
func classCeiling(class ResolutionClass) int {
	switch class {
	case ResolutionUHD:
		return 2
	case ResolutionHD:
		return 4
	default:
		return 8
	}
}

// PoolSize resolves the batch fan-out from the host's CPUs and available
// memory, clamped by the heaviest resolution class in the batch.
func PoolSize(ctx context.Context, cfg config.Workers, class ResolutionClass, logger *slog.Logger) int {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil || logical <= 0 {
		logical = runtime.NumCPU()
	}

	availableMB := int64(-1)
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		availableMB = int64(vm.Available / (1024 * 1024))
	}

	size := poolSize(logical, availableMB, cfg, class)
	logging.NewComponentLogger(logger, "workers").Debug("pool sized",
		logging.Int("logical_cpus", logical),
		logging.Int64("available_mb", availableMB),
		logging.String("resolution_class", class.String()),
		logging.Int("workers", size))
	return size
}

// poolSize is the pure sizing rule: half the CPUs, clamped by class ceiling,
// free memory, and the configured maximum, floored at one.
func poolSize(logical int, availableMB int64, cfg config.Workers, class ResolutionClass) int {
	size := logical / 2
	if ceiling := classCeiling(class); size > ceiling {
		size = ceiling
	}
	if cfg.MinFreeMemoryMB > 0 && availableMB >= 0 {
		byMemory := int(availableMB / int64(cfg.MinFreeMemoryMB))
		if size > byMemory {
			size = byMemory
		}
	}
	if cfg.MaxWorkers > 0 && size > cfg.MaxWorkers {
		size = cfg.MaxWorkers
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Run fans jobs out over size workers and blocks until all dispatched jobs
// return. Cancellation stops dispatch; jobs already running finish on their
// own context handling.
func Run(ctx context.Context, size, jobs int, fn func(ctx context.Context, idx int)) {
	if size < 1 {
		size = 1
	}
	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < size; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				fn(ctx, idx)
			}
		}()
	}

	for i := 0; i < jobs; i++ {
		select {
		case <-ctx.Done():
			close(indices)
			wg.Wait()
			return
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()
}
