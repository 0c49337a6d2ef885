package explore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"transmute/internal/config"
	"transmute/internal/encode"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/services"
)

// coarseStep is the fast-path probing stride. The fast path only needs to
// land near the boundary; the exact search refines from there.
const coarseStep = 2.0

// defaultUncertainty bounds the exact search around the mapped seed when a
// single probe pair was used.
const defaultUncertainty = 0.5

// Mapping relates the fast approximate parameter space to the exact one.
// Built from calibration probes; never reused across files.
type Mapping struct {
	// FastBoundary is the lowest fast-path parameter that compressed the
	// calibration sample.
	FastBoundary float64
	// Offset is added to fast-path parameters to reach the equivalent exact
	// parameter.
	Offset float64
	// Uncertainty widens the seeded range on both sides.
	Uncertainty float64
}

// SeedRange converts the mapping into a bounded exact-path search range.
func (m Mapping) SeedRange(minCRF, maxCRF float64) (seed, lo, hi float64) {
	seed = math.Min(m.FastBoundary+m.Offset, maxCRF)
	seed = math.Max(seed, minCRF)
	lo = math.Max(seed-m.Uncertainty, math.Max(m.FastBoundary, minCRF))
	if lo > seed {
		lo = math.Max(seed-m.Uncertainty, minCRF)
	}
	hi = math.Min(seed+m.Uncertainty, maxCRF)
	return seed, lo, hi
}

// Calibrator builds a Mapping by coarse-searching a bounded sample on the
// fast path and probing both paths at the resulting boundary.
type Calibrator struct {
	cfg    config.Search
	ffmpeg string
	fast   encode.Capability
	exact  encode.Capability
	// formulaScale is the target codec's CRF-per-doubling constant, used to
	// convert a size ratio into a parameter offset.
	formulaScale float64
	logger       *slog.Logger
}

func NewCalibrator(cfg config.Search, ffmpeg string, fast, exact encode.Capability, formulaScale float64, logger *slog.Logger) *Calibrator {
	return &Calibrator{
		cfg:          cfg,
		ffmpeg:       ffmpeg,
		fast:         fast,
		exact:        exact,
		formulaScale: formulaScale,
		logger:       logging.NewComponentLogger(logger, "calibrate"),
	}
}

// Calibrate returns a mapping, or nil when calibration could not produce a
// trustworthy one. A nil mapping means the caller searches the full range;
// that fallback is logged here, never silent.
func (c *Calibrator) Calibrate(ctx context.Context, probe *media.Probe, workDir string, seed, minCRF, maxCRF float64) (*Mapping, error) {
	samplePath, sampleSize, cleanup, err := c.extractSample(ctx, probe, workDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	margin := metadataMargin(sampleSize, c.cfg.MetadataMarginPct, c.cfg.MetadataMarginMin, c.cfg.MetadataMarginMax)
	target := sampleSize - margin

	boundary, fastSize, found, err := c.coarseFastSearch(ctx, samplePath, workDir, target, seed, minCRF, maxCRF)
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Warn("fast path cannot compress calibration sample, searching full range")
		return nil, nil
	}

	exactOut := filepath.Join(workDir, "calibrate-exact"+filepath.Ext(probe.Path))
	defer os.Remove(exactOut)
	exactSize, err := c.exact.Encode(ctx, samplePath, exactOut, boundary)
	if err != nil {
		return nil, err
	}

	if fastSize <= 0 || exactSize <= 0 {
		c.logger.Warn("zero-sized calibration probe, searching full range",
			logging.Int64("fast_bytes", fastSize),
			logging.Int64("exact_bytes", exactSize))
		return nil, nil
	}

	// Exact encoders compress better at the same parameter, so the exact
	// path needs a higher parameter to land on the same size.
	ratio := float64(exactSize) / float64(fastSize)
	offset := c.formulaScale * math.Log2(ratio)
	if !isConsistent(offset, minCRF, maxCRF) {
		c.logger.Warn("inconsistent calibration probes, searching full range",
			logging.Float64("size_ratio", ratio),
			logging.Float64("offset", offset))
		return nil, nil
	}

	mapping := &Mapping{
		FastBoundary: boundary,
		Offset:       offset,
		Uncertainty:  defaultUncertainty + math.Abs(offset)*0.1,
	}
	c.logger.Info("calibration mapping built",
		logging.Float64("fast_boundary", boundary),
		logging.Float64("offset", mapping.Offset),
		logging.Float64("uncertainty", mapping.Uncertainty))
	return mapping, nil
}

// isConsistent rejects offsets that would push the seed outside any
// plausible range.
func isConsistent(offset, minCRF, maxCRF float64) bool {
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return false
	}
	return math.Abs(offset) <= maxCRF-minCRF
}

// extractSample stream-copies a bounded-duration head sample. Short inputs
// are calibrated whole.
func (c *Calibrator) extractSample(ctx context.Context, probe *media.Probe, workDir string) (string, int64, func(), error) {
	if probe.DurationSec <= c.cfg.CalibrationSampleSec*1.2 {
		return probe.Path, probe.SizeBytes, func() {}, nil
	}

	samplePath := filepath.Join(workDir, "calibrate-sample"+filepath.Ext(probe.Path))
	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-hide_banner", "-nostdin", "-y", "-v", "error",
		"-t", fmt.Sprintf("%.0f", c.cfg.CalibrationSampleSec),
		"-i", probe.Path,
		"-map", "0", "-c", "copy",
		samplePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(samplePath)
		return "", 0, nil, services.Wrap(services.ErrEncode, "calibrate", "extract sample",
			string(out), err)
	}
	info, err := os.Stat(samplePath)
	if err != nil || info.Size() == 0 {
		os.Remove(samplePath)
		return "", 0, nil, services.Wrap(services.ErrEncode, "calibrate", "extract sample",
			"sample missing or empty", err)
	}
	return samplePath, info.Size(), func() { os.Remove(samplePath) }, nil
}

// coarseFastSearch walks the fast path in coarse strides to bracket the
// compression boundary on the sample.
func (c *Calibrator) coarseFastSearch(ctx context.Context, samplePath, workDir string, target int64, seed, minCRF, maxCRF float64) (float64, int64, bool, error) {
	out := filepath.Join(workDir, "calibrate-fast"+filepath.Ext(samplePath))
	defer os.Remove(out)

	encodeAt := func(crf float64) (int64, error) {
		return c.fast.Encode(ctx, samplePath, out, crf)
	}

	crf := math.Min(math.Max(seed, minCRF), maxCRF)
	size, err := encodeAt(crf)
	if err != nil {
		return 0, 0, false, err
	}

	if size < target {
		// Walk down toward higher quality while the sample still compresses.
		for crf-coarseStep >= minCRF {
			lower := crf - coarseStep
			lowerSize, err := encodeAt(lower)
			if err != nil {
				return 0, 0, false, err
			}
			if lowerSize >= target {
				break
			}
			crf, size = lower, lowerSize
		}
		return crf, size, true, nil
	}

	// Walk up until the sample compresses.
	for crf+coarseStep <= maxCRF {
		crf += coarseStep
		size, err = encodeAt(crf)
		if err != nil {
			return 0, 0, false, err
		}
		if size < target {
			return crf, size, true, nil
		}
	}
	return 0, 0, false, nil
}
