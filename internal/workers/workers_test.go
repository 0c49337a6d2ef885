package workers

import (
	"context"
	"sync"
	"testing"

	"transmute/internal/config"
)

func TestClassifyResolution(t *testing.T) {
	cases := []struct {
		width, height int
		want          ResolutionClass
	}{
		{1280, 720, ResolutionSD},
		{1920, 1080, ResolutionHD},
		{1080, 1920, ResolutionHD},
		{3840, 2160, ResolutionUHD},
		{2160, 3840, ResolutionUHD},
		{720, 480, ResolutionSD},
	}
	for _, tc := range cases {
		if got := ClassifyResolution(tc.width, tc.height); got != tc.want {
			t.Errorf("ClassifyResolution(%d, %d) = %v, want %v", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestPoolSizeRules(t *testing.T) {
	cfg := config.Workers{MinFreeMemoryMB: 1024}
	cases := []struct {
		name        string
		logical     int
		availableMB int64
		cfg         config.Workers
		class       ResolutionClass
		want        int
	}{
		{"half the cpus", 8, 1 << 20, cfg, ResolutionSD, 4},
		{"uhd ceiling", 32, 1 << 20, cfg, ResolutionUHD, 2},
		{"hd ceiling", 32, 1 << 20, cfg, ResolutionHD, 4},
		{"memory clamp", 16, 2048, cfg, ResolutionSD, 2},
		{"configured max", 16, 1 << 20, config.Workers{MaxWorkers: 3, MinFreeMemoryMB: 1024}, ResolutionSD, 3},
		{"floor of one", 1, 512, cfg, ResolutionSD, 1},
		{"memory unknown", 8, -1, cfg, ResolutionSD, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := poolSize(tc.logical, tc.availableMB, tc.cfg, tc.class); got != tc.want {
				t.Fatalf("poolSize = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRunExecutesAllJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	Run(context.Background(), 3, 10, func(_ context.Context, idx int) {
		mu.Lock()
		seen[idx] = true
		mu.Unlock()
	})
	if len(seen) != 10 {
		t.Fatalf("ran %d jobs, want 10", len(seen))
	}
}

func TestRunStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	ran := 0
	Run(ctx, 1, 100, func(_ context.Context, idx int) {
		mu.Lock()
		ran++
		mu.Unlock()
		if idx == 2 {
			cancel()
		}
	})
	mu.Lock()
	defer mu.Unlock()
	if ran >= 100 {
		t.Fatalf("ran %d jobs, cancel should stop dispatch", ran)
	}
}
