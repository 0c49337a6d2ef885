package explore

import (
	"context"
	"fmt"
	"math"

	"transmute/internal/logging"
	"transmute/internal/services"
)

// phi drives golden-section probing of the quality curve.
const phi = 0.618

func (e *Engine) exploreCompressOnly(ctx context.Context) (*Result, error) {
	seed, err := e.runTrial(ctx, e.opts.Seed)
	if err != nil {
		return nil, err
	}
	if e.compresses(seed.Size) {
		return e.finish(ctx, seed, true)
	}
	best, err := e.compressBinarySearch(ctx, seed.CRF, e.opts.MaxCRF)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, best, true)
}

func (e *Engine) exploreSizeOnly(ctx context.Context) (*Result, error) {
	trial, err := e.runTrial(ctx, e.opts.MaxCRF)
	if err != nil {
		return nil, err
	}
	if !e.compresses(trial.Size) {
		return nil, e.noCompression(trial)
	}
	// Quality is measured for reference only; there is no floor.
	if measured, err := e.measure(ctx, trial); err == nil {
		trial = measured
	} else {
		e.logger.Warn("reference quality measurement failed",
			logging.Float64(logging.FieldCRF, trial.CRF),
			logging.Error(err))
	}
	return e.finish(ctx, trial, true)
}

func (e *Engine) exploreQualityMatch(ctx context.Context) (*Result, error) {
	trial, err := e.runTrial(ctx, e.opts.Seed)
	if err != nil {
		return nil, err
	}
	trial, err = e.measure(ctx, trial)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, trial, trial.Report.Passed)
}

func (e *Engine) exploreCompressWithQuality(ctx context.Context) (*Result, error) {
	best, err := e.runTrial(ctx, e.opts.Seed)
	if err != nil {
		return nil, err
	}
	if !e.compresses(best.Size) {
		best, err = e.compressBinarySearch(ctx, best.CRF, e.opts.MaxCRF)
		if err != nil {
			return nil, err
		}
	}
	best, err = e.measure(ctx, best)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, best, best.Report.Passed)
}

// compressBinarySearch narrows [lo, hi] to the lowest parameter whose output
// beats the compression target. The hi endpoint is tested first; if even it
// cannot compress, no parameter can.
func (e *Engine) compressBinarySearch(ctx context.Context, lo, hi float64) (Trial, error) {
	best, err := e.runTrial(ctx, hi)
	if err != nil {
		return Trial{}, err
	}
	if !e.compresses(best.Size) {
		return Trial{}, e.noCompression(best)
	}

	for hi-lo > e.cfg.PrecisionStep {
		if e.iterations >= e.ceiling {
			return Trial{}, e.iterationLimit("compress search")
		}
		mid := roundHalf((lo + hi) / 2)
		if mid <= lo || mid >= hi {
			break
		}
		trial, err := e.runTrial(ctx, mid)
		if err != nil {
			return Trial{}, err
		}
		if e.compresses(trial.Size) {
			best = trial
			hi = mid
		} else {
			lo = mid
		}
	}
	return best, nil
}

func (e *Engine) explorePreciseQuality(ctx context.Context) (*Result, error) {
	minTrial, err := e.measureAt(ctx, e.opts.MinCRF)
	if err != nil {
		return nil, err
	}
	maxTrial, err := e.measureAt(ctx, e.opts.MaxCRF)
	if err != nil {
		return nil, err
	}

	best := minTrial
	if e.betterThan(maxTrial, best) {
		best = maxTrial
	}

	// A flat quality curve across the whole range short-circuits to the
	// most-compressive boundary.
	if minTrial.Score-maxTrial.Score < e.cfg.PlateauGainEpsilon {
		e.logger.Info("quality plateau across range, taking max parameter",
			logging.Float64("min_score", minTrial.Score),
			logging.Float64("max_score", maxTrial.Score))
		return e.finish(ctx, maxTrial, maxTrial.Report.Passed)
	}

	best, err = e.goldenSection(ctx, best, minTrial.Score)
	if err != nil {
		return nil, err
	}
	best, err = e.fineTune(ctx, best)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, best, best.Report.Passed)
}

func (e *Engine) goldenSection(ctx context.Context, best Trial, prevScore float64) (Trial, error) {
	lo, hi := e.opts.MinCRF, e.opts.MaxCRF
	for hi-lo > e.cfg.PrecisionStep {
		if e.iterations >= e.ceiling {
			return Trial{}, e.iterationLimit("golden section")
		}
		mid := roundHalf(lo + (hi-lo)*phi)
		if mid <= lo || mid >= hi {
			break
		}
		trial, err := e.measureAt(ctx, mid)
		if err != nil {
			return Trial{}, err
		}
		if e.betterThan(trial, best) {
			best = trial
		}
		// A quality drop past the mid point means the optimum is below it.
		if prevScore-trial.Score > 2*e.cfg.PlateauGainEpsilon {
			hi = mid
		} else {
			lo = mid
		}
		prevScore = trial.Score
	}
	return best, nil
}

// fineTune probes half-step then quarter-step offsets around the incumbent.
func (e *Engine) fineTune(ctx context.Context, best Trial) (Trial, error) {
	for _, offsets := range [][]float64{{-0.5, 0.5}, {-0.25, 0.25, -0.5, 0.5}} {
		for _, offset := range offsets {
			crf := e.clamp(best.CRF + offset)
			if e.cache.Contains(crf) || e.iterations >= e.ceiling {
				continue
			}
			trial, err := e.measureAt(ctx, crf)
			if err != nil {
				return Trial{}, err
			}
			if e.betterThan(trial, best) {
				best = trial
			}
		}
	}
	return best, nil
}

func (e *Engine) explorePreciseQualityCompress(ctx context.Context, exhaustive bool) (*Result, error) {
	boundary, err := e.compressionBoundary(ctx)
	if err != nil {
		return nil, err
	}
	if exhaustive {
		return e.exploreExhaustive(ctx, boundary)
	}

	best, err := e.measure(ctx, boundary)
	if err != nil {
		return nil, err
	}
	// Walk from the boundary toward higher quality through compressing
	// candidates until the floor is met or compression is lost.
	for crf := best.CRF - e.cfg.PrecisionStep; crf >= e.opts.MinCRF && !best.Report.Passed; crf -= e.cfg.PrecisionStep {
		if e.iterations >= e.ceiling {
			return nil, e.iterationLimit("quality walk")
		}
		trial, err := e.runTrial(ctx, crf)
		if err != nil {
			return nil, err
		}
		if !e.compresses(trial.Size) {
			break
		}
		trial, err = e.measure(ctx, trial)
		if err != nil {
			return nil, err
		}
		if e.betterThan(trial, best) || trial.Report.Passed {
			best = trial
		}
	}
	return e.finish(ctx, best, best.Report.Passed)
}

// compressionBoundary finds the lowest compressing parameter via binary
// search with early exits, then fine-tunes it in quarter steps.
func (e *Engine) compressionBoundary(ctx context.Context) (Trial, error) {
	minTrial, err := e.runTrial(ctx, e.opts.MinCRF)
	if err != nil {
		return Trial{}, err
	}
	if e.compresses(minTrial.Size) {
		// The whole range compresses; the lowest parameter wins outright.
		return minTrial, nil
	}

	boundary, err := e.runTrial(ctx, e.opts.MaxCRF)
	if err != nil {
		return Trial{}, err
	}
	if !e.compresses(boundary.Size) {
		return Trial{}, e.noCompression(boundary)
	}

	lo, hi := e.opts.MinCRF, e.opts.MaxCRF
	var (
		history  []float64
		prevSize int64
	)
	for hi-lo > e.cfg.PrecisionStep {
		if e.iterations >= e.ceiling {
			return Trial{}, e.iterationLimit("boundary search")
		}
		mid := roundHalf((lo + hi) / 2)
		if mid <= lo || mid >= hi {
			break
		}
		trial, err := e.runTrial(ctx, mid)
		if err != nil {
			return Trial{}, err
		}
		if e.compresses(trial.Size) {
			boundary = trial
			hi = mid
		} else {
			lo = mid
		}

		history = append(history, float64(trial.Size)/float64(e.probe.SizeBytes))
		if v, ok := windowVariance(history, e.cfg.EarlyExitWindow); ok && v < e.cfg.VarianceEarlyExit {
			e.logger.Debug("early exit, size variance converged",
				logging.Float64("variance", v))
			break
		}
		if prevSize > 0 && changeRate(prevSize, trial.Size) < e.cfg.ChangeRateEarlyExit {
			e.logger.Debug("early exit, size change rate negligible",
				logging.Float64("change_rate", changeRate(prevSize, trial.Size)))
			break
		}
		prevSize = trial.Size
	}

	return e.fineTuneBoundary(ctx, boundary)
}

// fineTuneBoundary probes quarter-step offsets below the boundary. The
// upward pass runs only when the boundary itself fails to compress; a
// compressing boundary is never traded for a lower-quality candidate.
func (e *Engine) fineTuneBoundary(ctx context.Context, boundary Trial) (Trial, error) {
	improved, err := e.walkBoundaryOffsets(ctx, boundary, []float64{-0.25, -0.5, -0.75, -1.0})
	if err != nil {
		return Trial{}, err
	}
	if quantize(improved.CRF) != quantize(boundary.CRF) {
		return improved, nil
	}
	if e.compresses(boundary.Size) {
		return boundary, nil
	}
	return e.walkBoundaryOffsets(ctx, boundary, []float64{0.25, 0.5, 0.75, 1.0})
}

func (e *Engine) walkBoundaryOffsets(ctx context.Context, boundary Trial, offsets []float64) (Trial, error) {
	best := boundary
	var prevSize int64
	for _, offset := range offsets {
		crf := boundary.CRF + offset
		if crf < e.opts.MinCRF || crf > e.opts.MaxCRF || e.cache.Contains(crf) {
			continue
		}
		if e.iterations >= e.ceiling {
			break
		}
		trial, err := e.runTrial(ctx, crf)
		if err != nil {
			return Trial{}, err
		}
		if !e.compresses(trial.Size) {
			break
		}
		best = trial
		if prevSize > 0 && changeRate(prevSize, trial.Size) < e.cfg.ChangeRateEarlyExit {
			break
		}
		prevSize = trial.Size
	}
	return best, nil
}

// exploreExhaustive walks from the compression boundary toward higher
// quality until a plateau of consecutive sub-epsilon gains.
func (e *Engine) exploreExhaustive(ctx context.Context, boundary Trial) (*Result, error) {
	best, err := e.measure(ctx, boundary)
	if err != nil {
		return nil, err
	}

	window := e.plateauWindow(true)
	zeroGains := 0
	for crf := boundary.CRF - e.cfg.PrecisionStep; crf >= e.opts.MinCRF; crf -= e.cfg.PrecisionStep {
		if e.iterations >= e.ceiling {
			return nil, e.iterationLimit("exhaustive search")
		}
		trial, err := e.runTrial(ctx, crf)
		if err != nil {
			return nil, err
		}
		if !e.compresses(trial.Size) {
			break
		}
		trial, err = e.measure(ctx, trial)
		if err != nil {
			return nil, err
		}
		gain := trial.Score - best.Score
		if trial.Score > best.Score+e.cfg.ScoreCompareEpsilon {
			best = trial
		}
		if gain < e.cfg.PlateauGainEpsilon {
			zeroGains++
			if zeroGains >= window {
				e.logger.Info("quality plateau reached",
					logging.Int("zero_gains", zeroGains),
					logging.Float64(logging.FieldCRF, best.CRF))
				break
			}
		} else {
			zeroGains = 0
		}
	}
	return e.finish(ctx, best, best.Report.Passed)
}

// measureAt runs and measures a trial in one step.
func (e *Engine) measureAt(ctx context.Context, crf float64) (Trial, error) {
	trial, err := e.runTrial(ctx, crf)
	if err != nil {
		return Trial{}, err
	}
	return e.measure(ctx, trial)
}

// betterThan prefers higher score; within the compare epsilon it prefers
// the higher parameter for the smaller file.
func (e *Engine) betterThan(candidate, incumbent Trial) bool {
	if candidate.Score > incumbent.Score+e.cfg.ScoreCompareEpsilon {
		return true
	}
	return candidate.Score >= incumbent.Score-e.cfg.ScoreCompareEpsilon && candidate.CRF > incumbent.CRF
}

func (e *Engine) noCompression(mostCompressive Trial) error {
	return services.Wrap(services.ErrPolicyNotMet, "explore", e.opts.Strategy.String(),
		fmt.Sprintf("no parameter compresses below input: crf %.1f produced %d bytes against target %d",
			mostCompressive.CRF, mostCompressive.Size, e.target), nil)
}

// windowVariance computes the variance of the last window entries.
func windowVariance(history []float64, window int) (float64, bool) {
	if len(history) < window || window == 0 {
		return 0, false
	}
	recent := history[len(history)-window:]
	mean := 0.0
	for _, v := range recent {
		mean += v
	}
	mean /= float64(len(recent))
	variance := 0.0
	for _, v := range recent {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(recent)), true
}

// changeRate is the relative size delta between consecutive trials.
func changeRate(prev, curr int64) float64 {
	if prev == 0 {
		return math.MaxFloat64
	}
	return math.Abs(float64(curr)-float64(prev)) / float64(prev)
}
