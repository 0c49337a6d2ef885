package verify

import (
	"context"
	"errors"
	"testing"

	"transmute/internal/config"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/metrics"
	"transmute/internal/services"
)

type fakeMeter struct {
	scores map[metrics.Kind]metrics.Score
	errs   map[metrics.Kind]error
	calls  []metrics.Kind
}

func (f *fakeMeter) Measure(_ context.Context, _, _ string, kind metrics.Kind) (metrics.Score, error) {
	f.calls = append(f.calls, kind)
	if err, ok := f.errs[kind]; ok {
		return metrics.Score{}, err
	}
	score, ok := f.scores[kind]
	if !ok {
		return metrics.Score{}, errors.New("unexpected kind")
	}
	return score, nil
}

func newTestVerifier(meter Meter) *Verifier {
	return New(meter, config.Default().Quality, logging.NewNop())
}

func testProbe(duration float64, codec media.Codec) *media.Probe {
	return &media.Probe{Path: "in.mkv", DurationSec: duration, Codec: codec, Width: 1920, Height: 1080}
}

func TestVerifyFusedPath(t *testing.T) {
	meter := &fakeMeter{scores: map[metrics.Kind]metrics.Score{
		metrics.MSSSIM:  {Kind: metrics.MSSSIM, Value: 0.994},
		metrics.SSIMAll: {Kind: metrics.SSIMAll, Value: 0.990},
	}}
	report, err := newTestVerifier(meter).Verify(context.Background(), testProbe(90, media.CodecH264), "in.mkv", "out.mkv", IntentBalanced)
	if err != nil {
		t.Fatal(err)
	}
	want := 0.7*0.994 + 0.3*0.990
	if diff := report.Fused - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("fused = %v, want %v", report.Fused, want)
	}
	if report.Path != "ms-ssim+ssim" {
		t.Fatalf("path = %q", report.Path)
	}
	if !report.Passed {
		t.Fatal("score above base threshold should pass")
	}
	if report.MSSSIM == nil || report.SSIM == nil {
		t.Fatal("report should retain both readings")
	}
}

func TestVerifyFallsBackToSSIM(t *testing.T) {
	meter := &fakeMeter{
		scores: map[metrics.Kind]metrics.Score{
			metrics.SSIMAll: {Kind: metrics.SSIMAll, Value: 0.990},
		},
		errs: map[metrics.Kind]error{
			metrics.MSSSIM: services.Wrap(services.ErrMetricUnavailable, "metrics", "ms-ssim", "boom", nil),
		},
	}
	report, err := newTestVerifier(meter).Verify(context.Background(), testProbe(90, media.CodecH264), "in.mkv", "out.mkv", IntentBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if report.Path != "ssim" {
		t.Fatalf("path = %q", report.Path)
	}
	if report.Fused != 0.990 {
		t.Fatalf("fused = %v", report.Fused)
	}
}

func TestVerifySkipsMSSSIMForPaletteLayouts(t *testing.T) {
	meter := &fakeMeter{scores: map[metrics.Kind]metrics.Score{
		metrics.SSIMAll: {Kind: metrics.SSIMAll, Value: 0.992},
	}}
	report, err := newTestVerifier(meter).Verify(context.Background(), testProbe(30, media.CodecGIF), "in.gif", "out.mkv", IntentBalanced)
	if err != nil {
		t.Fatal(err)
	}
	for _, kind := range meter.calls {
		if kind == metrics.MSSSIM {
			t.Fatal("ms-ssim must not be attempted on palette layouts")
		}
	}
	if report.Path != "ssim" {
		t.Fatalf("path = %q", report.Path)
	}
}

func TestVerifyLumaLastResort(t *testing.T) {
	metricErr := services.Wrap(services.ErrMetricUnavailable, "metrics", "x", "boom", nil)
	meter := &fakeMeter{
		scores: map[metrics.Kind]metrics.Score{
			metrics.SSIMLuma: {Kind: metrics.SSIMLuma, Value: 0.991},
		},
		errs: map[metrics.Kind]error{
			metrics.MSSSIM:  metricErr,
			metrics.SSIMAll: metricErr,
		},
	}
	report, err := newTestVerifier(meter).Verify(context.Background(), testProbe(90, media.CodecH264), "in.mkv", "out.mkv", IntentBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if report.Path != "ssim-luma" {
		t.Fatalf("path = %q", report.Path)
	}
	if !report.Passed {
		t.Fatal("luma score above threshold should pass")
	}
}

func TestVerifyUnverifiableWhenAllPathsFail(t *testing.T) {
	metricErr := services.Wrap(services.ErrMetricUnavailable, "metrics", "x", "boom", nil)
	meter := &fakeMeter{errs: map[metrics.Kind]error{
		metrics.MSSSIM:   metricErr,
		metrics.SSIMAll:  metricErr,
		metrics.SSIMLuma: metricErr,
	}}
	_, err := newTestVerifier(meter).Verify(context.Background(), testProbe(90, media.CodecH264), "in.mkv", "out.mkv", IntentBalanced)
	if !errors.Is(err, services.ErrQualityUnverifiable) {
		t.Fatalf("expected ErrQualityUnverifiable, got %v", err)
	}
}

func TestVerifyFailsBelowThreshold(t *testing.T) {
	meter := &fakeMeter{scores: map[metrics.Kind]metrics.Score{
		metrics.MSSSIM:  {Kind: metrics.MSSSIM, Value: 0.9},
		metrics.SSIMAll: {Kind: metrics.SSIMAll, Value: 0.9},
	}}
	report, err := newTestVerifier(meter).Verify(context.Background(), testProbe(90, media.CodecH264), "in.mkv", "out.mkv", IntentBalanced)
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed {
		t.Fatal("0.9 must not pass the 0.985 bar")
	}
}

func TestThresholdResolution(t *testing.T) {
	v := newTestVerifier(&fakeMeter{})
	base := config.Default().Quality.BaseThreshold

	cases := []struct {
		name   string
		class  media.DurationClass
		intent Intent
		want   float64
	}{
		{"balanced short", media.DurationShort, IntentBalanced, base},
		{"quality short", media.DurationShort, IntentQualityPriority, base + 0.005},
		{"size short", media.DurationShort, IntentSizeOnly, base - 0.015},
		{"balanced long", media.DurationLong, IntentBalanced, base - 0.005},
		{"balanced very long", media.DurationVeryLong, IntentBalanced, base - 0.010},
		{"quality very long", media.DurationVeryLong, IntentQualityPriority, base + 0.005 - 0.010},
	}
	for _, tc := range cases {
		got := v.Threshold(tc.class, tc.intent)
		if diff := got - tc.want; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("%s: threshold = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDurationClassBoundaries(t *testing.T) {
	cases := map[float64]media.DurationClass{
		0:     media.DurationShort,
		300:   media.DurationShort,
		300.5: media.DurationLong,
		600:   media.DurationLong,
		601:   media.DurationVeryLong,
	}
	for duration, want := range cases {
		if got := media.ClassifyDuration(duration); got != want {
			t.Errorf("class(%v) = %v, want %v", duration, got, want)
		}
	}
}
