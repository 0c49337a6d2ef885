package predict

import (
	"math"
	"strconv"
	"strings"

	"transmute/internal/config"
	"transmute/internal/media"
	"transmute/internal/services"
)

// Mode selects what the predicted parameter optimizes for.
type Mode int

const (
	ModeQuality Mode = iota
	ModeSize
	ModeSpeed
)

// Bias nudges the predicted parameter toward quality or compression.
type Bias int

const (
	BiasBalanced Bias = iota
	BiasConservative
	BiasAggressive
)

const (
	safeBppMin = 1e-6
	safeBppMax = 50.0
)

// Options carries the caller-supplied hints the probe cannot provide.
type Options struct {
	TargetCodec string
	Mode        Mode
	Bias        Bias
	// ContentType keys into the content-offset table; empty means unknown.
	ContentType string
	// SourcePreset is the encoder preset the source was produced with, when known.
	SourcePreset string
	HasFilmGrain bool
	// Spatial/temporal information scores; zero means unmeasured.
	SpatialComplexity  float64
	TemporalComplexity float64
}

// Details records every factor that shaped the prediction, for diagnostics.
type Details struct {
	RawBpp           float64
	CodecFactor      float64
	GOPFactor        float64
	ChromaFactor     float64
	HDRFactor        float64
	AspectFactor     float64
	ComplexityFactor float64
	GrainFactor      float64
	ResolutionFactor float64
	AlphaFactor      float64
	DepthFactor      float64
	ContentOffset    float64
	BiasOffset       float64
}

// Target is the predicted starting point for the parameter search.
type Target struct {
	CRF          float64
	EffectiveBpp float64
	Confidence   float64
	Details      Details
}

// Predict derives the starting quality parameter from the probe. It is a pure
// function of its inputs; when the probe lacks the data needed to estimate
// bits per pixel the prediction fails rather than guessing.
func Predict(probe *media.Probe, tables config.Prediction, opts Options) (Target, error) {
	if probe == nil {
		return Target{}, services.Wrap(services.ErrProbe, "predict", "input", "nil probe", nil)
	}
	if probe.Width <= 0 || probe.Height <= 0 {
		return Target{}, services.Wrap(services.ErrProbe, "predict", "input", probe.Path,
			&media.MissingFieldError{Field: "dimensions"})
	}
	codec := strings.ToLower(strings.TrimSpace(opts.TargetCodec))
	formula, ok := tables.Formulas[codec]
	if !ok {
		return Target{}, services.Wrap(services.ErrConfiguration, "predict", "formula",
			"no curve for target codec "+codec, nil)
	}
	divisor, ok := tables.TargetDivisors[codec]
	if !ok || divisor <= 0 {
		return Target{}, services.Wrap(services.ErrConfiguration, "predict", "divisor",
			"no target divisor for codec "+codec, nil)
	}

	pixels := probe.PixelCount()
	rawBpp, err := rawBitsPerPixel(probe)
	if err != nil {
		return Target{}, err
	}

	details := Details{
		RawBpp:           rawBpp,
		CodecFactor:      codecEfficiency(probe.Codec, opts.SourcePreset, tables),
		GOPFactor:        gopFactor(probe.GOPSize, probe.BFrames),
		ChromaFactor:     chromaFactor(probe.PixelFormat),
		HDRFactor:        hdrFactor(probe),
		AspectFactor:     aspectFactor(probe.AspectRatio()),
		ComplexityFactor: complexityFactor(opts.SpatialComplexity, opts.TemporalComplexity, rawBpp, pixels),
		GrainFactor:      1.0,
		ResolutionFactor: resolutionFactor(pixels),
		AlphaFactor:      1.0,
		DepthFactor:      colorDepthFactor(probe.BitDepth, probe.Codec),
		ContentOffset:    tables.ContentOffsets[strings.ToLower(opts.ContentType)],
	}
	if opts.HasFilmGrain {
		details.GrainFactor = 1.20
	}
	if probe.HasAlpha {
		details.AlphaFactor = 0.9
	}
	switch opts.Bias {
	case BiasConservative:
		details.BiasOffset = -2.0
	case BiasAggressive:
		details.BiasOffset = 2.0
	}

	modeAdjustment := 1.0
	switch opts.Mode {
	case ModeSize:
		modeAdjustment = 0.8
	case ModeSpeed:
		modeAdjustment = 0.9
	}

	effectiveBpp := rawBpp *
		details.GOPFactor *
		details.ChromaFactor *
		details.HDRFactor *
		details.AspectFactor *
		details.ComplexityFactor *
		details.GrainFactor *
		modeAdjustment *
		details.ResolutionFactor *
		details.AlphaFactor /
		details.CodecFactor /
		details.DepthFactor /
		divisor

	if effectiveBpp <= 0 || math.IsNaN(effectiveBpp) || math.IsInf(effectiveBpp, 0) {
		return Target{}, services.Wrap(services.ErrProbe, "predict", "bpp",
			"effective bits-per-pixel is not computable", nil)
	}
	effectiveBpp = clamp(effectiveBpp, safeBppMin, safeBppMax)

	crf := applyFormula(formula, effectiveBpp)
	crf += details.ContentOffset
	crf += details.BiasOffset
	crf = math.Round(crf*2) / 2
	crf = clamp(crf, formula.ClampMin, formula.ClampMax)

	return Target{
		CRF:          crf,
		EffectiveBpp: effectiveBpp,
		Confidence:   confidence(probe, opts),
		Details:      details,
	}, nil
}

// applyFormula evaluates base - scale*log2(bpp*100) with the codec's low and
// high bpp guards. Extremely low bpp (screen captures) caps the result so
// near-unwatchable sources do not explode the parameter; very high bpp
// (near-lossless sources) floors it.
func applyFormula(f config.Formula, bpp float64) float64 {
	curve := func(v float64) float64 {
		return f.Base - f.Scale*math.Log2(math.Max(v, 0.001)*100)
	}
	switch {
	case bpp < f.LowBppCutoff:
		return math.Min(f.LowBppCeil, curve(bpp))
	case bpp > f.HighBppStart:
		return math.Max(f.HighBppFloor, curve(bpp))
	default:
		return curve(bpp)
	}
}

// rawBitsPerPixel derives bpp from bitrate and frame rate, falling back to
// file size over duration. Frame rate falls back to the container family's
// conventional rate, which is reported in the result rather than hidden.
func rawBitsPerPixel(probe *media.Probe) (float64, error) {
	pixels := float64(probe.PixelCount())

	if probe.BitRate > 0 {
		fps := probe.FrameRate
		if fps <= 0 {
			fps = fallbackFrameRate(probe.Codec)
		}
		bitsPerFrame := float64(probe.BitRate) / fps
		return bitsPerFrame / pixels, nil
	}

	if probe.SizeBytes > 0 {
		if probe.DurationSec > 0 {
			fps := probe.FrameRate
			if fps <= 0 {
				fps = fallbackFrameRate(probe.Codec)
			}
			totalFrames := math.Max(probe.DurationSec*fps, 1)
			bitsPerFrame := float64(probe.SizeBytes*8) / totalFrames
			return bitsPerFrame / pixels, nil
		}
		return float64(probe.SizeBytes) / pixels, nil
	}

	return 0, services.Wrap(services.ErrProbe, "predict", "bpp", probe.Path,
		&media.MissingFieldError{Field: "bitrate or size"})
}

func fallbackFrameRate(codec media.Codec) float64 {
	switch codec {
	case media.CodecGIF:
		return 10
	case media.CodecAPNG:
		return 15
	case media.CodecWebP:
		return 20
	default:
		return 24
	}
}

func codecEfficiency(codec media.Codec, preset string, tables config.Prediction) float64 {
	base := 1.0
	if codec.IsLossless() {
		base = 1.0
	} else if factor, ok := tables.CodecEfficiency[string(codec)]; ok {
		base = factor
	}

	preset = strings.ToLower(strings.TrimSpace(preset))
	if preset == "" {
		return base
	}
	if factor, ok := tables.PresetFactors[preset]; ok {
		return base * factor
	}
	if num, err := strconv.Atoi(preset); err == nil {
		switch {
		case num <= 2:
			return base * 0.80
		case num <= 4:
			return base * 0.90
		case num <= 6:
			return base
		case num <= 8:
			return base * 1.10
		case num <= 10:
			return base * 1.20
		default:
			return base * 1.30
		}
	}
	return base
}

func gopFactor(gopSize, bFrames int) float64 {
	base := 1.0
	switch {
	case gopSize == 1:
		base = 0.70
	case gopSize >= 2 && gopSize <= 10:
		base = 0.85
	case gopSize >= 11 && gopSize <= 50:
		base = 1.0
	case gopSize >= 51 && gopSize <= 150:
		base = 1.15
	case gopSize >= 151 && gopSize <= 300:
		base = 1.20
	case gopSize > 300:
		base = 1.25
	}

	bonus := 1.0
	switch {
	case bFrames == 1:
		bonus = 1.05
	case bFrames == 2:
		bonus = 1.08
	case bFrames >= 3:
		bonus = 1.12
	}
	return base * bonus
}

func chromaFactor(pixFmt string) float64 {
	format := strings.ToLower(pixFmt)
	switch {
	case format == "":
		return 1.0
	case strings.Contains(format, "444"):
		return 1.15
	case strings.Contains(format, "422"):
		return 1.05
	case strings.Contains(format, "rgb"), strings.Contains(format, "gbr"):
		return 1.20
	default:
		return 1.0
	}
}

func hdrFactor(probe *media.Probe) float64 {
	if probe.IsHDR() {
		return 1.25
	}
	if probe.IsWideGamut() {
		return 1.15
	}
	return 1.0
}

func resolutionFactor(pixels int64) float64 {
	megapixels := float64(pixels) / 1e6
	switch {
	case megapixels > 8.0:
		return 0.80 + 0.05*math.Min(8.0/megapixels, 1.0)
	case megapixels > 2.0:
		return 0.85 + 0.05*((8.0-megapixels)/6.0)
	case megapixels > 0.5:
		return 0.90 + 0.05*((2.0-megapixels)/1.5)
	default:
		return 0.95 + 0.05*math.Min((0.5-megapixels)/0.5, 1.0)
	}
}

func colorDepthFactor(bitDepth int, codec media.Codec) float64 {
	switch {
	case bitDepth >= 1 && bitDepth <= 8:
		if codec == media.CodecGIF {
			return 1.3
		}
		return 1.0
	case bitDepth == 10:
		return 1.25
	case bitDepth == 12:
		return 1.5
	case bitDepth == 16:
		return 2.0
	default:
		return 1.0
	}
}

func aspectFactor(ratio float64) float64 {
	switch {
	case ratio > 2.5:
		return 1.08
	case ratio > 2.0:
		return 1.04
	case ratio > 0 && ratio < 0.5:
		return 1.08
	default:
		return 1.0
	}
}

func complexityFactor(si, ti, rawBpp float64, pixels int64) float64 {
	if si > 0 && ti > 0 {
		siRatio := si / 50.0
		tiRatio := ti / 20.0

		spatial := 1.0
		if siRatio > 1.3 {
			spatial = 1.15
		} else if siRatio < 0.7 {
			spatial = 0.90
		}

		temporal := 1.0
		if tiRatio > 1.5 {
			temporal = 1.10
		} else if tiRatio < 0.5 {
			temporal = 0.95
		}
		return spatial * temporal
	}

	// No measured complexity: compare the observed bpp to what this
	// resolution class typically needs.
	expected := 0.50
	switch {
	case pixels > 8_000_000:
		expected = 0.15
	case pixels > 2_000_000:
		expected = 0.20
	case pixels > 500_000:
		expected = 0.30
	}

	ratio := rawBpp / expected
	switch {
	case ratio > 2.0:
		return 1.15
	case ratio > 1.0:
		return 1.0 + 0.15*(ratio-1.0)
	case ratio > 0.5:
		return 1.0
	default:
		return 0.95
	}
}

// confidence scores how much of the probe the prediction could actually use.
func confidence(probe *media.Probe, opts Options) float64 {
	score, max := 0.0, 0.0

	add := func(weight float64, present bool) {
		max += weight
		if present {
			score += weight
		}
	}

	add(25, probe.Width > 0 && probe.Height > 0)
	add(20, probe.SizeBytes > 0 || probe.BitRate > 0)
	add(8, probe.Codec != media.CodecUnknown)
	add(5, probe.BitRate > 0)
	add(4, probe.GOPSize > 0)
	add(3, probe.BFrames > 0)
	add(3, probe.PixelFormat != "")
	add(3, probe.ColorSpace != "" || probe.ColorTransfer != "")
	add(2, opts.ContentType != "")
	add(3, opts.SpatialComplexity > 0 && opts.TemporalComplexity > 0)
	add(4, probe.DurationSec > 0)
	add(4, probe.FrameRate > 0)
	add(3, probe.BitDepth > 0)
	add(2, probe.FrameRate >= 1 && probe.FrameRate <= 240 && probe.DurationSec > 0)

	if probe.BitRate > 0 && probe.PixelCount() > 0 {
		fps := probe.FrameRate
		if fps <= 0 {
			fps = 24
		}
		estimate := float64(probe.BitRate) / (float64(probe.PixelCount()) * fps)
		add(2, estimate >= 0.01 && estimate <= 5.0)
	}

	return clamp(score/max, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
