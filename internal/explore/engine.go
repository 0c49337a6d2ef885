package explore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"transmute/internal/config"
	"transmute/internal/encode"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/services"
	"transmute/internal/verify"
)

// Verifier is the quality-verification collaborator.
type Verifier interface {
	Verify(ctx context.Context, probe *media.Probe, ref, cand string, intent verify.Intent) (*verify.Report, error)
}

// Options selects the variant and parameter space for one search.
type Options struct {
	Strategy Strategy
	// Seed is the predicted parameter the search starts from.
	Seed float64
	// MinCRF and MaxCRF bound the valid range for the target encoder.
	MinCRF, MaxCRF float64
	// ArtifactPath is where candidate encodes are written. One search owns
	// exactly one candidate slot; trials overwrite it.
	ArtifactPath string
}

// Engine runs one search for one file. It exclusively owns its cache and
// state; instances are never shared across files.
type Engine struct {
	cfg      config.Search
	opts     Options
	probe    *media.Probe
	exact    encode.Capability
	alt      encode.Capability
	verifier Verifier
	logger   *slog.Logger

	cache      *TrialCache
	iterations int
	ceiling    int
	retried    bool
	target     int64
}

// New builds an engine. alt is an optional second committable path used for
// the one-shot retry after an encode failure; pass nil when only one exact
// path exists.
func New(cfg config.Search, probe *media.Probe, exact, alt encode.Capability, verifier Verifier, logger *slog.Logger, opts Options) *Engine {
	margin := metadataMargin(probe.SizeBytes, cfg.MetadataMarginPct, cfg.MetadataMarginMin, cfg.MetadataMarginMax)
	ceiling := cfg.MaxIterations
	if media.ClassifyDuration(probe.DurationSec) != media.DurationShort {
		ceiling = cfg.LongVideoIterations
	}
	return &Engine{
		cfg:      cfg,
		opts:     opts,
		probe:    probe,
		exact:    exact,
		alt:      alt,
		verifier: verifier,
		logger:   logging.NewComponentLogger(logger, "explorer"),
		cache:    NewTrialCache(),
		ceiling:  ceiling,
		target:   probe.SizeBytes - margin,
	}
}

// Run executes the configured strategy to a terminal result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.logger.Info("search starting",
		logging.String(logging.FieldFile, e.probe.Path),
		logging.String(logging.FieldStrategy, e.opts.Strategy.String()),
		logging.Float64(logging.FieldCRF, e.opts.Seed),
		logging.Float64("min_crf", e.opts.MinCRF),
		logging.Float64("max_crf", e.opts.MaxCRF),
		logging.Int64("target_bytes", e.target))

	var (
		result *Result
		err    error
	)
	switch e.opts.Strategy {
	case CompressOnly:
		result, err = e.exploreCompressOnly(ctx)
	case SizeOnly:
		result, err = e.exploreSizeOnly(ctx)
	case QualityMatch:
		result, err = e.exploreQualityMatch(ctx)
	case PreciseQuality:
		result, err = e.explorePreciseQuality(ctx)
	case PreciseQualityCompress:
		result, err = e.explorePreciseQualityCompress(ctx, false)
	case CompressWithQuality:
		result, err = e.exploreCompressWithQuality(ctx)
	case Ultimate:
		result, err = e.explorePreciseQualityCompress(ctx, true)
	default:
		return nil, services.Wrap(services.ErrValidation, "explore", "run",
			fmt.Sprintf("unhandled strategy %d", e.opts.Strategy), nil)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("search finished",
		logging.String(logging.FieldFile, e.probe.Path),
		logging.Float64(logging.FieldCRF, result.CRF),
		logging.Int64(logging.FieldSizeBytes, result.OutputSize),
		logging.Float64("size_change_pct", result.SizeChangePct),
		logging.Int(logging.FieldTrial, result.Iterations),
		logging.Int("cache_hits", result.CacheHits))
	return result, nil
}

// runTrial encodes at crf unless a trial for its quantized key exists. A
// cache hit never re-invokes the encoder.
func (e *Engine) runTrial(ctx context.Context, crf float64) (Trial, error) {
	crf = e.clamp(crf)
	if trial, ok := e.cache.Get(crf); ok {
		return trial, nil
	}
	if e.iterations >= e.cfg.EmergencyIterations {
		return Trial{}, services.Wrap(services.ErrIterationLimit, "explore", "trial",
			fmt.Sprintf("emergency ceiling %d reached", e.cfg.EmergencyIterations), nil)
	}
	e.iterations++

	size, err := e.encodeOnce(ctx, crf)
	if err != nil {
		return Trial{}, err
	}
	trial := Trial{CRF: crf, Size: size}
	e.cache.Put(trial)
	e.cache.MarkProduced(crf)

	e.logger.Debug("trial complete",
		logging.Float64(logging.FieldCRF, crf),
		logging.Int64(logging.FieldSizeBytes, size),
		logging.Float64("size_change_pct", sizeChangePct(e.probe.SizeBytes, size)),
		logging.Int(logging.FieldTrial, e.iterations))
	return trial, nil
}

// encodeOnce drives the primary path, retrying exactly once on the alternate
// path after an encode failure or a supervisor kill.
func (e *Engine) encodeOnce(ctx context.Context, crf float64) (int64, error) {
	size, err := e.exact.Encode(ctx, e.probe.Path, e.opts.ArtifactPath, crf)
	if err == nil {
		return size, nil
	}
	retriable := errors.Is(err, services.ErrEncode) || errors.Is(err, services.ErrStuck)
	if e.alt == nil || e.retried || !retriable || ctx.Err() != nil {
		return 0, err
	}
	e.retried = true
	e.logger.Warn("primary encode path failed, retrying on alternate",
		logging.String("primary", e.exact.Name()),
		logging.String("alternate", e.alt.Name()),
		logging.Error(err))
	return e.alt.Encode(ctx, e.probe.Path, e.opts.ArtifactPath, crf)
}

// measure attaches a quality report to a trial, memoized alongside its size.
func (e *Engine) measure(ctx context.Context, trial Trial) (Trial, error) {
	if trial.Measured {
		return trial, nil
	}
	trial, err := e.materialize(ctx, trial)
	if err != nil {
		return Trial{}, err
	}
	report, err := e.verifier.Verify(ctx, e.probe, e.probe.Path, e.opts.ArtifactPath, e.opts.Strategy.Intent())
	if err != nil {
		return Trial{}, err
	}
	trial.Measured = true
	trial.Score = report.Fused
	trial.Report = report
	e.cache.Put(trial)
	return trial, nil
}

// materialize guarantees the artifact on disk is the encode of trial.CRF,
// re-encoding at most once when the winner differs from the last produced
// key.
func (e *Engine) materialize(ctx context.Context, trial Trial) (Trial, error) {
	if e.cache.IsProduced(trial.CRF) {
		return trial, nil
	}
	e.logger.Debug("re-encoding winning parameter",
		logging.Float64(logging.FieldCRF, trial.CRF))
	size, err := e.encodeOnce(ctx, trial.CRF)
	if err != nil {
		return Trial{}, err
	}
	e.cache.MarkProduced(trial.CRF)
	trial.Size = size
	e.cache.Put(trial)
	return trial, nil
}

// finish materializes the winner and assembles the terminal result.
func (e *Engine) finish(ctx context.Context, trial Trial, qualityPassed bool) (*Result, error) {
	trial, err := e.materialize(ctx, trial)
	if err != nil {
		return nil, err
	}
	return &Result{
		Strategy:      e.opts.Strategy,
		CRF:           trial.CRF,
		OutputSize:    trial.Size,
		SizeChangePct: sizeChangePct(e.probe.SizeBytes, trial.Size),
		Iterations:    e.iterations,
		CacheHits:     e.cache.Hits(),
		Compressed:    e.compresses(trial.Size),
		QualityPassed: qualityPassed,
		Report:        trial.Report,
		ArtifactPath:  e.opts.ArtifactPath,
	}, nil
}

// compresses applies the metadata-margin compression target.
func (e *Engine) compresses(size int64) bool {
	return size < e.target
}

func (e *Engine) clamp(crf float64) float64 {
	return math.Min(math.Max(crf, e.opts.MinCRF), e.opts.MaxCRF)
}

// roundHalf snaps a parameter to the 0.5 grid the encoders accept.
func roundHalf(crf float64) float64 {
	return math.Round(crf*2) / 2
}

// plateauWindow resolves how many consecutive sub-epsilon gains terminate a
// quality-maximizing phase. Narrow ranges scale the window down, floored at
// three.
func (e *Engine) plateauWindow(exhaustive bool) int {
	base := e.cfg.PlateauWindow
	switch {
	case media.ClassifyDuration(e.probe.DurationSec) != media.DurationShort:
		base = e.cfg.PlateauWindowLong
	case exhaustive:
		base = e.cfg.PlateauWindowUlt
	}
	crfRange := e.opts.MaxCRF - e.opts.MinCRF
	if crfRange < 20 {
		factor := crfRange / 20
		if factor < 0.5 {
			factor = 0.5
		}
		base = int(math.Round(float64(base) * factor))
	}
	if base < 3 {
		base = 3
	}
	return base
}

func (e *Engine) iterationLimit(operation string) error {
	return services.Wrap(services.ErrIterationLimit, "explore", operation,
		fmt.Sprintf("iteration ceiling %d reached without convergence", e.ceiling), nil)
}
