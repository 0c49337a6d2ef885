package pipeline

import (
	"time"

	"transmute/internal/explore"
)

// Status is the terminal state of one file's conversion.
type Status int

const (
	StatusAccepted Status = iota
	StatusBestEffort
	StatusRejected
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusBestEffort:
		return "best_effort"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Request describes one file to convert.
type Request struct {
	InputPath  string
	OutputPath string
	Strategy   explore.Strategy
	// ContentType keys the prediction offset table; empty means unknown.
	ContentType string
	// BestEffort marks the platform-compatibility re-encode, exempt from the
	// size policy.
	BestEffort bool
}

// Outcome is the per-file result. Every failure mode lands here; a batch
// never aborts because one file failed.
type Outcome struct {
	InputPath  string
	OutputPath string
	Status     Status
	Strategy   explore.Strategy

	CRF           float64
	InputSize     int64
	OutputSize    int64
	SizeChangePct float64
	QualityScore  float64
	QualityPath   string
	Iterations    int

	Reason  string
	Elapsed time.Duration
	RunID   string
}
