package explore

import "transmute/internal/verify"

// Result is the terminal state of one search. The artifact at ArtifactPath
// is guaranteed to be the encode of CRF; the engine re-encodes once before
// returning when the winning trial was not the last one produced.
type Result struct {
	Strategy      Strategy
	CRF           float64
	OutputSize    int64
	SizeChangePct float64
	Iterations    int
	CacheHits     int

	// Compressed reports whether the output beat the compression target
	// (input size minus the metadata margin).
	Compressed bool
	// QualityPassed is false when verification ran and failed, and true for
	// strategies that do not verify.
	QualityPassed bool
	Report        *verify.Report

	ArtifactPath string
}

// metadataMargin returns the slack subtracted from the input size to form
// the compression target. Containers differ in metadata overhead; without
// the margin a nominally smaller encode can still end up larger after
// remuxing.
func metadataMargin(inputSize int64, pct float64, minBytes, maxBytes int64) int64 {
	margin := int64(float64(inputSize) * pct / 100)
	if margin < minBytes {
		margin = minBytes
	}
	if margin > maxBytes {
		margin = maxBytes
	}
	return margin
}

func sizeChangePct(inputSize, outputSize int64) float64 {
	if inputSize == 0 {
		return 0
	}
	return (float64(outputSize)/float64(inputSize) - 1) * 100
}
