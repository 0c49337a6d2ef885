package predict_test

import (
	"errors"
	"math"
	"testing"

	"transmute/internal/config"
	"transmute/internal/media"
	"transmute/internal/predict"
	"transmute/internal/services"
)

func tables(t *testing.T) config.Prediction {
	t.Helper()
	return config.Default().Prediction
}

func baseProbe() *media.Probe {
	return &media.Probe{
		Path:        "/videos/clip.mkv",
		SizeBytes:   100_000_000,
		DurationSec: 60,
		Codec:       media.CodecH264,
		CodecName:   "h264",
		Width:       1920,
		Height:      1080,
		FrameRate:   30,
		BitRate:     6_000_000,
		PixelFormat: "yuv420p",
		BitDepth:    8,
		BFrames:     2,
	}
}

func TestPredictAV1WithinClamp(t *testing.T) {
	target, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if target.CRF < 15 || target.CRF > 40 {
		t.Fatalf("CRF = %v, want within [15, 40]", target.CRF)
	}
	if target.Confidence <= 0.5 {
		t.Fatalf("confidence = %v, want above 0.5 for a well-described probe", target.Confidence)
	}
	if math.Mod(target.CRF*2, 1) != 0 {
		t.Fatalf("CRF = %v, want rounded to 0.5", target.CRF)
	}
}

func TestPredictHEVCWithinClamp(t *testing.T) {
	probe := baseProbe()
	probe.Codec = media.CodecGIF
	probe.CodecName = "gif"
	probe.Width, probe.Height = 640, 480
	probe.FrameRate = 10
	probe.BitRate = 0
	probe.SizeBytes = 5_000_000
	probe.DurationSec = 5

	target, err := predict.Predict(probe, tables(t), predict.Options{TargetCodec: "hevc"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if target.CRF > 35 {
		t.Fatalf("CRF = %v, want <= 35 for hevc", target.CRF)
	}
}

func TestPredictBiasOrdering(t *testing.T) {
	run := func(bias predict.Bias) float64 {
		target, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1", Bias: bias})
		if err != nil {
			t.Fatalf("Predict returned error: %v", err)
		}
		return target.CRF
	}
	conservative := run(predict.BiasConservative)
	balanced := run(predict.BiasBalanced)
	aggressive := run(predict.BiasAggressive)
	if conservative > balanced || aggressive < balanced {
		t.Fatalf("bias ordering wrong: %v / %v / %v", conservative, balanced, aggressive)
	}
}

func TestPredictSizeModeRaisesCRF(t *testing.T) {
	quality, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1", Mode: predict.ModeQuality})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	size, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1", Mode: predict.ModeSize})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	// Size mode shrinks effective bpp, which pushes the parameter upward.
	if size.CRF < quality.CRF {
		t.Fatalf("size-mode CRF %v below quality-mode CRF %v", size.CRF, quality.CRF)
	}
}

func TestPredictContentOffsets(t *testing.T) {
	plain, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	animation, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1", ContentType: "animation"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	grainy, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1", ContentType: "film_grain"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if animation.CRF <= plain.CRF {
		t.Fatalf("animation offset should raise CRF: %v vs %v", animation.CRF, plain.CRF)
	}
	if grainy.CRF >= plain.CRF {
		t.Fatalf("film grain offset should lower CRF: %v vs %v", grainy.CRF, plain.CRF)
	}
}

// The probe cannot derive the keyframe interval, so the GOP factor stays at
// the B-frame bonus until a caller supplies one.
func TestPredictGOPSizeCallerSupplied(t *testing.T) {
	unknown, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if unknown.Details.GOPFactor != 1.08 {
		t.Fatalf("GOP factor = %v, want the bare B-frame bonus", unknown.Details.GOPFactor)
	}

	probe := baseProbe()
	probe.GOPSize = 250
	known, err := predict.Predict(probe, tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if known.Details.GOPFactor != 1.20*1.08 {
		t.Fatalf("GOP factor = %v, want %v", known.Details.GOPFactor, 1.20*1.08)
	}
	if known.CRF >= unknown.CRF {
		t.Fatalf("long-GOP source should predict lower: %v vs %v", known.CRF, unknown.CRF)
	}
}

func TestPredictMissingRateAndSizeFails(t *testing.T) {
	probe := baseProbe()
	probe.BitRate = 0
	probe.SizeBytes = 0
	_, err := predict.Predict(probe, tables(t), predict.Options{TargetCodec: "av1"})
	if err == nil {
		t.Fatal("expected error when neither bitrate nor size is known")
	}
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe marker, got %v", err)
	}
	var missing *media.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
}

func TestPredictUnknownTargetCodec(t *testing.T) {
	_, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "theora"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPredictHDRSourceLowersCRF(t *testing.T) {
	sdr, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	probe := baseProbe()
	probe.ColorTransfer = "smpte2084"
	probe.ColorSpace = "bt2020nc"
	hdr, err := predict.Predict(probe, tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	// HDR inflates effective bpp, so the curve yields a lower parameter.
	if hdr.CRF > sdr.CRF {
		t.Fatalf("HDR CRF %v above SDR CRF %v", hdr.CRF, sdr.CRF)
	}
	if hdr.Details.HDRFactor != 1.25 {
		t.Fatalf("HDR factor = %v", hdr.Details.HDRFactor)
	}
}

func TestPredictLowBppScreenCaptureCapped(t *testing.T) {
	probe := baseProbe()
	probe.BitRate = 80_000 // near-static screen recording
	target, err := predict.Predict(probe, tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if target.CRF > 35 {
		t.Fatalf("low-bpp cap exceeded: CRF = %v", target.CRF)
	}
}

func TestPredictDeterministic(t *testing.T) {
	a, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	b, err := predict.Predict(baseProbe(), tables(t), predict.Options{TargetCodec: "av1"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if a != b {
		t.Fatalf("prediction not deterministic: %+v vs %+v", a, b)
	}
}
