package commit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"transmute/internal/config"
	"transmute/internal/fileutil"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// Status is the terminal acceptance state of one conversion.
type Status int

const (
	// Accepted means every active policy was satisfied and the artifact was
	// placed at its destination.
	Accepted Status = iota
	// BestEffortAccepted means the artifact was placed even though the size
	// policy was not met. Reserved for the platform-compatibility re-encode,
	// where the point of the conversion is the codec, not the savings.
	BestEffortAccepted
	// Rejected means a policy failed. The candidate artifact was removed and
	// the input is untouched.
	Rejected
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case BestEffortAccepted:
		return "best_effort"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Request carries the candidate artifact and the evidence gathered about it.
type Request struct {
	InputPath string
	InputSize int64

	// ArtifactPath is the candidate encode produced by the search.
	ArtifactPath string
	OutputPath   string
	OutputSize   int64

	// VerificationRan is true when the strategy measured quality;
	// QualityPassed is only meaningful when it did.
	VerificationRan bool
	QualityPassed   bool

	// BestEffort marks the compatibility re-encode, exempt from the size
	// policy.
	BestEffort bool
}

// Receipt records what happened and the numbers the decision was based on.
type Receipt struct {
	Status        Status
	OutputPath    string
	OutputSize    int64
	SizeChangePct float64
	Reason        string
}

// Committer applies the acceptance policy and places accepted artifacts
// atomically.
type Committer struct {
	encoding config.Encoding
	search   config.Search
	logger   *slog.Logger
}

func New(encoding config.Encoding, search config.Search, logger *slog.Logger) *Committer {
	return &Committer{
		encoding: encoding,
		search:   search,
		logger:   logging.NewComponentLogger(logger, "commit"),
	}
}

// Commit decides acceptance and, on success, moves the artifact into place
// through a hidden temp name in the destination directory so the final name
// only ever appears complete. Rejection removes the artifact and returns a
// Receipt, not an error; errors are reserved for I/O failures.
func (c *Committer) Commit(req Request) (*Receipt, error) {
	changePct := sizeChangePct(req.InputSize, req.OutputSize)

	if reason := c.rejectionReason(req); reason != "" {
		c.logger.Info("candidate rejected",
			logging.String(logging.FieldFile, req.InputPath),
			logging.Int64(logging.FieldSizeBytes, req.OutputSize),
			logging.Float64("size_change_pct", changePct),
			logging.String("reason", reason))
		if err := os.Remove(req.ArtifactPath); err != nil && !os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrValidation, "commit", "discard artifact", "", err)
		}
		return &Receipt{
			Status:        Rejected,
			OutputSize:    req.OutputSize,
			SizeChangePct: changePct,
			Reason:        reason,
		}, nil
	}

	if err := c.place(req.ArtifactPath, req.OutputPath); err != nil {
		os.Remove(req.ArtifactPath)
		return nil, err
	}

	status := Accepted
	if req.BestEffort && !c.meetsSizePolicy(req) {
		status = BestEffortAccepted
		c.logger.Warn("accepted on best effort, size policy not met",
			logging.String(logging.FieldFile, req.InputPath),
			logging.Float64("size_change_pct", changePct))
	} else {
		c.logger.Info("candidate accepted",
			logging.String(logging.FieldFile, req.InputPath),
			logging.Int64(logging.FieldSizeBytes, req.OutputSize),
			logging.Float64("size_change_pct", changePct))
	}

	return &Receipt{
		Status:        status,
		OutputPath:    req.OutputPath,
		OutputSize:    req.OutputSize,
		SizeChangePct: changePct,
	}, nil
}

// rejectionReason returns the first failed policy, or "" when all pass.
func (c *Committer) rejectionReason(req Request) string {
	if req.VerificationRan && !req.QualityPassed {
		return "quality verification failed"
	}
	if req.BestEffort {
		return ""
	}
	if !c.meetsSizePolicy(req) {
		if c.encoding.AllowSizeTolerance {
			return fmt.Sprintf("output %d bytes exceeds input %d by more than %.1f%%",
				req.OutputSize, req.InputSize, c.encoding.SizeTolerancePct)
		}
		return fmt.Sprintf("output %d bytes does not compress input %d", req.OutputSize, req.InputSize)
	}
	return ""
}

func (c *Committer) meetsSizePolicy(req Request) bool {
	if c.encoding.AllowSizeTolerance {
		limit := float64(req.InputSize) * (1 + c.encoding.SizeTolerancePct/100)
		return float64(req.OutputSize) <= limit
	}
	margin := metadataMargin(req.InputSize, c.search)
	return req.OutputSize < req.InputSize-margin
}

// place moves the artifact to a hidden temp name beside the destination and
// renames it into place. The temp lives in the destination directory so the
// final rename is atomic on the same filesystem.
func (c *Committer) place(artifact, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "commit", "create destination", "", err)
	}
	temp := tempPath(output)
	if err := fileutil.MoveFile(artifact, temp); err != nil {
		os.Remove(temp)
		return services.Wrap(services.ErrValidation, "commit", "stage artifact", "", err)
	}
	if err := os.Rename(temp, output); err != nil {
		os.Remove(temp)
		return services.Wrap(services.ErrValidation, "commit", "finalize artifact", "", err)
	}
	return nil
}

// tempPath builds the hidden staging name in output's directory.
func tempPath(output string) string {
	dir := filepath.Dir(output)
	ext := filepath.Ext(output)
	name := strings.TrimSuffix(filepath.Base(output), ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.transmute-tmp%s", name, ext))
}

func metadataMargin(inputSize int64, cfg config.Search) int64 {
	margin := int64(float64(inputSize) * cfg.MetadataMarginPct / 100)
	if margin < cfg.MetadataMarginMin {
		margin = cfg.MetadataMarginMin
	}
	if margin > cfg.MetadataMarginMax {
		margin = cfg.MetadataMarginMax
	}
	return margin
}

func sizeChangePct(inputSize, outputSize int64) float64 {
	if inputSize == 0 {
		return 0
	}
	return (float64(outputSize)/float64(inputSize) - 1) * 100
}
