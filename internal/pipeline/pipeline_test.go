package pipeline

import (
	"context"
	"sync"
	"testing"

	"transmute/internal/explore"
	"transmute/internal/ledger"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/predict"
	"transmute/internal/services"
	"transmute/internal/testsupport"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	p, err := New(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewWiresConfiguredEncodePaths(t *testing.T) {
	plain := newTestPipeline(t)
	if plain.alt != nil || plain.fast != nil {
		t.Fatal("alternate or fast path wired without configuration")
	}

	cfg := testsupport.NewConfig(t,
		testsupport.WithTargetCodec("hevc"),
		testsupport.WithHardwareEncoder("hevc_videotoolbox"))
	cfg.Tools.X265 = "x265"
	p, err := New(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if p.alt == nil {
		t.Fatal("x265 alternate path not wired")
	}
	if p.fast == nil {
		t.Fatal("hardware fast path not wired")
	}
}

// The size-policy exemption is reserved for sources the playback platform
// cannot decode; asking for it on a native codec changes nothing.
func TestBestEffortAppliesOnlyToIncompatibleSources(t *testing.T) {
	p := newTestPipeline(t)
	if !p.bestEffortApplies(Request{BestEffort: true}, media.CodecVP9) {
		t.Fatal("vp9 source should qualify for best effort")
	}
	if p.bestEffortApplies(Request{BestEffort: true}, media.CodecH264) {
		t.Fatal("h264 plays natively and must keep the size policy")
	}
	if p.bestEffortApplies(Request{}, media.CodecVP9) {
		t.Fatal("best effort must be requested explicitly")
	}

	p.cfg.Encoding.AppleCompat = false
	if p.bestEffortApplies(Request{BestEffort: true}, media.CodecVP9) {
		t.Fatal("best effort requires the platform compatibility toggle")
	}
}

func TestDeriveOutputPath(t *testing.T) {
	cases := []struct {
		input, codec, want string
	}{
		{"/media/movie.mkv", "av1", "/media/movie.av1.mkv"},
		{"/media/movie.mp4", "HEVC", "/media/movie.hevc.mp4"},
		{"/media/noext", "av1", "/media/noext.av1.mkv"},
	}
	for _, tc := range cases {
		if got := DeriveOutputPath(tc.input, tc.codec); got != tc.want {
			t.Errorf("DeriveOutputPath(%q, %q) = %q, want %q", tc.input, tc.codec, got, tc.want)
		}
	}
}

func TestIsRejection(t *testing.T) {
	rejections := []error{
		services.Wrap(services.ErrPolicyNotMet, "explore", "op", "", nil),
		services.Wrap(services.ErrIterationLimit, "explore", "op", "", nil),
		services.Wrap(services.ErrQualityUnverifiable, "verify", "op", "", nil),
	}
	for _, err := range rejections {
		if !isRejection(err) {
			t.Errorf("isRejection(%v) = false", err)
		}
	}
	failures := []error{
		services.Wrap(services.ErrProbe, "media", "op", "", nil),
		services.Wrap(services.ErrEncode, "encode", "op", "", nil),
		services.Wrap(services.ErrStuck, "encode", "op", "", nil),
	}
	for _, err := range failures {
		if isRejection(err) {
			t.Errorf("isRejection(%v) = true", err)
		}
	}
}

func TestPredictMode(t *testing.T) {
	if predictMode(explore.SizeOnly) != predict.ModeSize {
		t.Fatal("size-only strategies should predict for size")
	}
	if predictMode(explore.CompressOnly) != predict.ModeSize {
		t.Fatal("compress-only strategies should predict for size")
	}
	if predictMode(explore.Ultimate) != predict.ModeQuality {
		t.Fatal("quality strategies should predict for quality")
	}
}

func TestBatchCollectsEveryOutcome(t *testing.T) {
	p := newTestPipeline(t)
	var mu sync.Mutex
	converted := map[string]bool{}
	p.convert = func(_ context.Context, req Request) Outcome {
		mu.Lock()
		converted[req.InputPath] = true
		mu.Unlock()
		status := StatusAccepted
		if req.InputPath == "/media/b.mkv" {
			status = StatusFailed
		}
		return Outcome{InputPath: req.InputPath, Strategy: req.Strategy, Status: status, RunID: p.runID}
	}

	requests := []Request{
		{InputPath: "/media/a.mkv", Strategy: explore.Ultimate},
		{InputPath: "/media/b.mkv", Strategy: explore.Ultimate},
		{InputPath: "/media/c.mkv", Strategy: explore.Ultimate},
	}
	outcomes := p.Batch(context.Background(), requests, nil, 2)

	if len(outcomes) != 3 {
		t.Fatalf("len = %d", len(outcomes))
	}
	for i, req := range requests {
		if outcomes[i].InputPath != req.InputPath {
			t.Fatalf("outcome %d out of order: %q", i, outcomes[i].InputPath)
		}
	}
	if outcomes[1].Status != StatusFailed {
		t.Fatal("one failed file must not stop the batch")
	}
	if len(converted) != 3 {
		t.Fatalf("converted %d files, want 3", len(converted))
	}
}

func TestBatchSkipsLedgeredFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := New(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	book := testsupport.MustOpenLedger(t, cfg)

	if err := book.Record(context.Background(), ledger.Record{
		InputPath: "/media/done.mkv", Status: "accepted", Strategy: "ultimate", InputBytes: 1, RunID: "old",
	}); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	converted := map[string]bool{}
	p.convert = func(_ context.Context, req Request) Outcome {
		mu.Lock()
		converted[req.InputPath] = true
		mu.Unlock()
		return Outcome{InputPath: req.InputPath, Strategy: req.Strategy, Status: StatusAccepted, RunID: p.runID}
	}

	outcomes := p.Batch(context.Background(), []Request{
		{InputPath: "/media/done.mkv", Strategy: explore.Ultimate},
		{InputPath: "/media/new.mkv", Strategy: explore.Ultimate},
	}, book, 1)

	if outcomes[0].Status != StatusSkipped {
		t.Fatalf("status = %v, want skipped", outcomes[0].Status)
	}
	if converted["/media/done.mkv"] {
		t.Fatal("completed file was reconverted")
	}
	if !converted["/media/new.mkv"] {
		t.Fatal("new file was not converted")
	}

	// The fresh outcome lands in the ledger for the next resume.
	done, err := book.Completed(context.Background(), "/media/new.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("new outcome not recorded")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusAccepted:   "accepted",
		StatusBestEffort: "best_effort",
		StatusRejected:   "rejected",
		StatusFailed:     "failed",
		StatusSkipped:    "skipped",
	}
	for status, want := range cases {
		if status.String() != want {
			t.Errorf("%d.String() = %q, want %q", status, status.String(), want)
		}
	}
}
