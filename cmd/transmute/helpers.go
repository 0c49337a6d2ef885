package main

import (
	"fmt"

	"transmute/internal/pipeline"
	"transmute/internal/textutil"
)

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	for _, suffix := range suffixes {
		value /= unit
		if value < unit || suffix == suffixes[len(suffixes)-1] {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%d B", bytes)
}

func formatPct(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

func formatScore(score float64) string {
	if score == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", score)
}

func outcomeRow(outcome pipeline.Outcome) []string {
	size := "-"
	change := "-"
	crf := "-"
	if outcome.Status == pipeline.StatusAccepted || outcome.Status == pipeline.StatusBestEffort {
		size = humanSize(outcome.OutputSize)
		change = formatPct(outcome.SizeChangePct)
		crf = fmt.Sprintf("%.1f", outcome.CRF)
	}
	return []string{
		outcome.InputPath,
		textutil.Label(outcome.Status.String()),
		crf,
		size,
		change,
		formatScore(outcome.QualityScore),
		outcome.Reason,
	}
}

var outcomeHeaders = []string{"File", "Status", "CRF", "Output", "Change", "Quality", "Notes"}

var outcomeAligns = []columnAlignment{
	alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft,
}
