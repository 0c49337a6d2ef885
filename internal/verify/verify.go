package verify

import (
	"context"
	"log/slog"

	"transmute/internal/config"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/metrics"
	"transmute/internal/services"
)

// Intent tells the verifier how strict the acceptance bar should be.
type Intent int

const (
	// IntentBalanced uses the base threshold.
	IntentBalanced Intent = iota
	// IntentQualityPriority raises the bar for quality-first strategies.
	IntentQualityPriority
	// IntentSizeOnly relaxes the bar when the caller opted into size-first
	// conversion.
	IntentSizeOnly
)

func (i Intent) String() string {
	switch i {
	case IntentQualityPriority:
		return "quality_priority"
	case IntentSizeOnly:
		return "size_only"
	default:
		return "balanced"
	}
}

// Report records everything a verification pass measured, pass or fail.
type Report struct {
	Passed    bool
	Threshold float64
	Fused     float64
	// Path names the metric combination actually used.
	Path string

	MSSSIM *metrics.Score
	SSIM   *metrics.Score
	PSNR   *metrics.Score
}

// Meter is the metric capability the verifier degrades across.
type Meter interface {
	Measure(ctx context.Context, ref, cand string, kind metrics.Kind) (metrics.Score, error)
}

// Verifier checks candidate encodes against a resolved quality threshold.
type Verifier struct {
	meter  Meter
	cfg    config.Quality
	logger *slog.Logger
}

func New(meter Meter, cfg config.Quality, logger *slog.Logger) *Verifier {
	return &Verifier{
		meter:  meter,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "verify"),
	}
}

// Threshold resolves the acceptance bar for a source duration and intent.
func (v *Verifier) Threshold(class media.DurationClass, intent Intent) float64 {
	threshold := v.cfg.BaseThreshold
	switch intent {
	case IntentQualityPriority:
		threshold += v.cfg.QualityPriorityAdj
	case IntentSizeOnly:
		threshold += v.cfg.SizeOnlyAdj
	}
	switch class {
	case media.DurationLong:
		threshold += v.cfg.LongVideoAdj
	case media.DurationVeryLong:
		threshold += v.cfg.VeryLongVideoAdj
	}
	return threshold
}

// Verify measures cand against ref and compares the best available score to
// the resolved threshold. The metric path degrades from fused MS-SSIM+SSIM
// down to luma-only SSIM before the candidate is declared unverifiable.
func (v *Verifier) Verify(ctx context.Context, probe *media.Probe, ref, cand string, intent Intent) (*Report, error) {
	report := &Report{
		Threshold: v.Threshold(media.ClassifyDuration(probe.DurationSec), intent),
	}

	msScore, msErr := v.measureMSSSIM(ctx, probe, ref, cand)
	if msErr == nil {
		report.MSSSIM = &msScore
	}

	ssimScore, ssimErr := v.meter.Measure(ctx, ref, cand, metrics.SSIMAll)
	if ssimErr == nil {
		report.SSIM = &ssimScore
	} else {
		v.logger.Warn("ssim measurement failed, degrading",
			logging.String(logging.FieldFile, cand),
			logging.Error(ssimErr))
	}

	switch {
	case msErr == nil && ssimErr == nil:
		report.Fused = v.cfg.MSSSIMWeight*msScore.Value + v.cfg.SSIMWeight*ssimScore.Value
		report.Path = "ms-ssim+ssim"
	case msErr == nil:
		report.Fused = msScore.Value
		report.Path = metrics.MSSSIM.String()
	case ssimErr == nil:
		report.Fused = ssimScore.Value
		report.Path = metrics.SSIMAll.String()
	default:
		lumaScore, lumaErr := v.meter.Measure(ctx, ref, cand, metrics.SSIMLuma)
		if lumaErr != nil {
			return nil, services.Wrap(services.ErrQualityUnverifiable, "verify", "measure",
				"every metric path failed", lumaErr)
		}
		v.logger.Warn("using luma-only verification",
			logging.String(logging.FieldFile, cand))
		report.SSIM = &lumaScore
		report.Fused = lumaScore.Value
		report.Path = metrics.SSIMLuma.String()
	}

	report.Passed = report.Fused >= report.Threshold
	v.logger.Info("quality verified",
		logging.String(logging.FieldFile, cand),
		logging.String("path", report.Path),
		logging.Float64(logging.FieldScore, report.Fused),
		logging.Float64("threshold", report.Threshold),
		logging.Bool("passed", report.Passed))
	return report, nil
}

func (v *Verifier) measureMSSSIM(ctx context.Context, probe *media.Probe, ref, cand string) (metrics.Score, error) {
	if err := metrics.CheckLayout(probe.Codec, metrics.MSSSIM); err != nil {
		v.logger.Debug("ms-ssim incompatible with source layout",
			logging.String("codec", string(probe.Codec)))
		return metrics.Score{}, err
	}
	score, err := v.meter.Measure(ctx, ref, cand, metrics.MSSSIM)
	if err != nil {
		v.logger.Warn("ms-ssim measurement failed, degrading",
			logging.String(logging.FieldFile, cand),
			logging.Error(err))
	}
	return score, err
}
