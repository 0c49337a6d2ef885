package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"transmute/internal/commit"
	"transmute/internal/config"
	"transmute/internal/encode"
	"transmute/internal/explore"
	"transmute/internal/heartbeat"
	"transmute/internal/ledger"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/metrics"
	"transmute/internal/predict"
	"transmute/internal/services"
	"transmute/internal/verify"
	"transmute/internal/workers"
)

// Pipeline wires probe, prediction, calibration, search, verification, and
// commit for one run. One pipeline serves many files; per-file state lives in
// the engine each file gets.
type Pipeline struct {
	cfg        *config.Config
	supervisor *heartbeat.Supervisor
	logger     *slog.Logger

	verifier  *verify.Verifier
	committer *commit.Committer

	exact encode.Capability
	alt   encode.Capability
	fast  encode.Capability

	runID string

	// convert is swappable for batch tests.
	convert func(ctx context.Context, req Request) Outcome
}

// New builds a pipeline from config. The exact path is always the software
// encoder; an x265 CLI alternate and a hardware fast path are wired when
// configured.
func New(cfg *config.Config, supervisor *heartbeat.Supervisor, logger *slog.Logger) (*Pipeline, error) {
	exact, err := encode.NewSoftware(cfg, supervisor, logger)
	if err != nil {
		return nil, err
	}

	var alt encode.Capability
	if strings.EqualFold(cfg.Encoding.TargetCodec, "hevc") && cfg.Tools.X265 != "" {
		x265, err := encode.NewX265(cfg, supervisor, logger)
		if err != nil {
			return nil, err
		}
		alt = x265
	}

	var fast encode.Capability
	if cfg.Tools.EnableHardware {
		hw, err := encode.NewHardware(cfg, supervisor, logger)
		if err != nil {
			return nil, err
		}
		fast = hw
	}

	meter := metrics.New(cfg, supervisor, logger)
	p := &Pipeline{
		cfg:        cfg,
		supervisor: supervisor,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		verifier:   verify.New(meter, cfg.Quality, logger),
		committer:  commit.New(cfg.Encoding, cfg.Search, logger),
		exact:      exact,
		alt:        alt,
		fast:       fast,
		runID:      uuid.NewString(),
	}
	p.convert = p.convertFile
	return p, nil
}

// RunID identifies this pipeline's lifetime in logs and the ledger.
func (p *Pipeline) RunID() string { return p.runID }

// Convert processes one file to a terminal outcome. Errors at any stage are
// folded into the outcome; Convert itself never fails.
func (p *Pipeline) Convert(ctx context.Context, req Request) Outcome {
	return p.convert(ctx, req)
}

func (p *Pipeline) convertFile(ctx context.Context, req Request) Outcome {
	start := time.Now()
	outcome := p.runFile(ctx, req)
	outcome.Elapsed = time.Since(start)
	outcome.RunID = p.runID

	p.logger.Info("file finished",
		logging.String(logging.FieldFile, outcome.InputPath),
		logging.String("status", outcome.Status.String()),
		logging.Float64(logging.FieldCRF, outcome.CRF),
		logging.Float64("size_change_pct", outcome.SizeChangePct),
		logging.Duration("elapsed", outcome.Elapsed))
	return outcome
}

func (p *Pipeline) runFile(ctx context.Context, req Request) Outcome {
	outcome := Outcome{
		InputPath: req.InputPath,
		Strategy:  req.Strategy,
	}

	probe, err := media.Inspect(ctx, p.cfg.Tools.FFprobe, req.InputPath)
	if err != nil {
		return p.failed(outcome, "probe", err)
	}
	outcome.InputSize = probe.SizeBytes

	target, err := predict.Predict(probe, p.cfg.Prediction, predict.Options{
		TargetCodec: p.cfg.Encoding.TargetCodec,
		Mode:        predictMode(req.Strategy),
		ContentType: req.ContentType,
	})
	if err != nil {
		return p.failed(outcome, "predict", err)
	}

	formula := p.cfg.Prediction.Formulas[strings.ToLower(p.cfg.Encoding.TargetCodec)]
	seed, minCRF, maxCRF := target.CRF, formula.ClampMin, formula.ClampMax

	workDir, err := os.MkdirTemp(p.cfg.Paths.WorkDir, "transmute-")
	if err != nil {
		return p.failed(outcome, "workdir", err)
	}
	defer os.RemoveAll(workDir)

	if p.fast != nil {
		mapping, err := p.calibrate(ctx, probe, workDir, seed, minCRF, maxCRF, formula.Scale)
		if err != nil {
			return p.failed(outcome, "calibrate", err)
		}
		if mapping != nil {
			seed, minCRF, maxCRF = mapping.SeedRange(formula.ClampMin, formula.ClampMax)
		}
	}

	artifact := filepath.Join(workDir, "candidate"+outputExt(req, probe))
	engine := explore.New(p.cfg.Search, probe, p.exact, p.alt, p.verifier, p.logger, explore.Options{
		Strategy:     req.Strategy,
		Seed:         seed,
		MinCRF:       minCRF,
		MaxCRF:       maxCRF,
		ArtifactPath: artifact,
	})

	result, err := engine.Run(ctx)
	if err != nil {
		if isRejection(err) {
			outcome.Status = StatusRejected
			outcome.Reason = err.Error()
			return outcome
		}
		return p.failed(outcome, "search", err)
	}

	outcome.CRF = result.CRF
	outcome.OutputSize = result.OutputSize
	outcome.SizeChangePct = result.SizeChangePct
	outcome.Iterations = result.Iterations
	if result.Report != nil {
		outcome.QualityScore = result.Report.Fused
		outcome.QualityPath = result.Report.Path
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = DeriveOutputPath(req.InputPath, p.cfg.Encoding.TargetCodec)
	}
	bestEffort := p.bestEffortApplies(req, probe.Codec)
	if req.BestEffort && !bestEffort {
		p.logger.Info("best-effort not applicable, source codec plays natively",
			logging.String(logging.FieldFile, req.InputPath),
			logging.String("codec", string(probe.Codec)))
	}
	receipt, err := p.committer.Commit(commit.Request{
		InputPath:       req.InputPath,
		InputSize:       probe.SizeBytes,
		ArtifactPath:    result.ArtifactPath,
		OutputPath:      outputPath,
		OutputSize:      result.OutputSize,
		VerificationRan: req.Strategy.VerifiesQuality(),
		QualityPassed:   result.QualityPassed,
		BestEffort:      bestEffort,
	})
	if err != nil {
		return p.failed(outcome, "commit", err)
	}

	switch receipt.Status {
	case commit.Accepted:
		outcome.Status = StatusAccepted
	case commit.BestEffortAccepted:
		outcome.Status = StatusBestEffort
	case commit.Rejected:
		outcome.Status = StatusRejected
		outcome.Reason = receipt.Reason
	}
	outcome.OutputPath = receipt.OutputPath
	return outcome
}

func (p *Pipeline) calibrate(ctx context.Context, probe *media.Probe, workDir string, seed, minCRF, maxCRF, formulaScale float64) (*explore.Mapping, error) {
	calibrator := explore.NewCalibrator(p.cfg.Search, p.cfg.Tools.FFmpeg, p.fast, p.exact, formulaScale, p.logger)
	return calibrator.Calibrate(ctx, probe, workDir, seed, minCRF, maxCRF)
}

func (p *Pipeline) failed(outcome Outcome, stage string, err error) Outcome {
	p.logger.Error("stage failed",
		logging.String(logging.FieldFile, outcome.InputPath),
		logging.String("stage", stage),
		logging.Error(err))
	outcome.Status = StatusFailed
	outcome.Reason = err.Error()
	return outcome
}

// bestEffortApplies limits the size-policy exemption to the compatibility
// re-encode: the platform toggle must be on and the source codec must not
// play natively. Any other request keeps the full size policy.
func (p *Pipeline) bestEffortApplies(req Request, codec media.Codec) bool {
	return req.BestEffort && p.cfg.Encoding.AppleCompat && !codec.ApplePlayable()
}

// isRejection distinguishes policy outcomes from operational failures.
func isRejection(err error) bool {
	return errors.Is(err, services.ErrPolicyNotMet) ||
		errors.Is(err, services.ErrIterationLimit) ||
		errors.Is(err, services.ErrQualityUnverifiable)
}

// predictMode maps the strategy's intent onto the prediction model.
func predictMode(strategy explore.Strategy) predict.Mode {
	if strategy.Intent() == verify.IntentSizeOnly {
		return predict.ModeSize
	}
	return predict.ModeQuality
}

// DeriveOutputPath places the output beside the input with the target codec
// in the name, so the source is never overwritten.
func DeriveOutputPath(inputPath, targetCodec string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if ext == "" {
		ext = ".mkv"
	}
	return fmt.Sprintf("%s.%s%s", base, strings.ToLower(targetCodec), ext)
}

func outputExt(req Request, probe *media.Probe) string {
	if req.OutputPath != "" {
		if ext := filepath.Ext(req.OutputPath); ext != "" {
			return ext
		}
	}
	if ext := filepath.Ext(probe.Path); ext != "" {
		return ext
	}
	return ".mkv"
}

// Batch converts files concurrently, recording outcomes in the ledger when
// one is supplied and skipping files it already shows complete.
func (p *Pipeline) Batch(ctx context.Context, requests []Request, book *ledger.Ledger, poolSize int) []Outcome {
	outcomes := make([]Outcome, len(requests))

	workers.Run(ctx, poolSize, len(requests), func(ctx context.Context, idx int) {
		req := requests[idx]
		if book != nil {
			done, err := book.Completed(ctx, req.InputPath)
			if err != nil {
				p.logger.Warn("ledger lookup failed",
					logging.String(logging.FieldFile, req.InputPath),
					logging.Error(err))
			} else if done {
				outcomes[idx] = Outcome{
					InputPath: req.InputPath,
					Strategy:  req.Strategy,
					Status:    StatusSkipped,
					Reason:    "already converted in a previous run",
					RunID:     p.runID,
				}
				return
			}
		}

		outcome := p.Convert(ctx, req)
		outcomes[idx] = outcome

		if book != nil && outcome.Status != StatusSkipped {
			if err := book.Record(ctx, ledgerRecord(outcome)); err != nil {
				p.logger.Warn("ledger record failed",
					logging.String(logging.FieldFile, req.InputPath),
					logging.Error(err))
			}
		}
	})
	return outcomes
}

func ledgerRecord(outcome Outcome) ledger.Record {
	return ledger.Record{
		InputPath:     outcome.InputPath,
		OutputPath:    outcome.OutputPath,
		Status:        outcome.Status.String(),
		Strategy:      outcome.Strategy.String(),
		CRF:           outcome.CRF,
		InputBytes:    outcome.InputSize,
		OutputBytes:   outcome.OutputSize,
		SizeChangePct: outcome.SizeChangePct,
		QualityScore:  outcome.QualityScore,
		QualityPath:   outcome.QualityPath,
		Reason:        outcome.Reason,
		RunID:         outcome.RunID,
	}
}
