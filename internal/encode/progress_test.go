package encode

import (
	"strings"
	"testing"
	"time"
)

func TestReadProgressBlocks(t *testing.T) {
	stream := strings.Join([]string{
		"frame=120",
		"fps=48.2",
		"out_time_us=5000000",
		"speed=2.01x",
		"progress=continue",
		"frame=240",
		"fps=50.0",
		"out_time_us=10000000",
		"speed=2.10x",
		"progress=end",
	}, "\n")

	var updates []ProgressUpdate
	readProgress(strings.NewReader(stream), func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	if len(updates) != 2 {
		t.Fatalf("expected 2 progress blocks, got %d", len(updates))
	}
	first := updates[0]
	if first.Frame != 120 || first.FPS != 48.2 || first.Speed != 2.01 {
		t.Fatalf("unexpected first block: %+v", first)
	}
	if first.OutTime != 5*time.Second {
		t.Fatalf("out_time_us not converted: %v", first.OutTime)
	}
	if first.Done {
		t.Fatal("first block should not be final")
	}
	if !updates[1].Done {
		t.Fatal("final block should be marked done")
	}
	if updates[1].Frame != 240 {
		t.Fatalf("final frame = %d", updates[1].Frame)
	}
}

func TestReadProgressIgnoresMalformedLines(t *testing.T) {
	stream := strings.Join([]string{
		"not a key value line",
		"frame=abc",
		"frame=10",
		"speed=N/A",
		"progress=continue",
	}, "\n")

	var updates []ProgressUpdate
	readProgress(strings.NewReader(stream), func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	if len(updates) != 1 {
		t.Fatalf("expected 1 block, got %d", len(updates))
	}
	if updates[0].Frame != 10 {
		t.Fatalf("frame = %d, want 10", updates[0].Frame)
	}
	if updates[0].Speed != 0 {
		t.Fatalf("unparsable speed should stay zero, got %v", updates[0].Speed)
	}
}

func TestReadProgressNilCallback(t *testing.T) {
	readProgress(strings.NewReader("frame=1\nprogress=end\n"), nil)
}
