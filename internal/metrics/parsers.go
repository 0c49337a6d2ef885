package metrics

import (
	"math"
	"strconv"
	"strings"
)

// parseSSIM scans ffmpeg ssim-filter stderr for the requested plane score.
// The summary line looks like:
//
//	[Parsed_ssim_0 @ ...] SSIM Y:0.987 U:0.991 V:0.990 All:0.988 (19.2)
func parseSSIM(stderr, plane string) (float64, bool) {
	needle := plane + ":"
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, "SSIM") {
			continue
		}
		idx := strings.Index(line, needle)
		if idx < 0 {
			continue
		}
		if value, ok := leadingFloat(line[idx+len(needle):]); ok {
			return value, true
		}
	}
	return 0, false
}

// parsePSNR scans ffmpeg psnr-filter stderr for the average score. Identical
// inputs report "average:inf", which maps to +Inf.
func parsePSNR(stderr string) (float64, bool) {
	for _, line := range strings.Split(stderr, "\n") {
		idx := strings.Index(line, "average:")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len("average:"):])
		if strings.HasPrefix(rest, "inf") {
			return math.Inf(1), true
		}
		if value, ok := leadingFloat(rest); ok && value > 0 {
			return value, true
		}
	}
	return 0, false
}

// leadingFloat parses the numeric prefix of s.
func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			break
		}
		end++
	}
	if end == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
