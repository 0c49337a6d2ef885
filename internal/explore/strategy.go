package explore

import (
	"transmute/internal/services"
	"transmute/internal/verify"
)

// Strategy is the closed set of search variants. Every dispatch over it is an
// exhaustive switch; adding a variant must break compilation at each switch.
type Strategy int

const (
	// CompressOnly finds the lowest parameter whose output still compresses.
	CompressOnly Strategy = iota
	// SizeOnly maximizes compression with no quality floor.
	SizeOnly
	// QualityMatch runs one trial at the predicted parameter and verifies it.
	QualityMatch
	// PreciseQuality searches the full range for the highest measured quality.
	PreciseQuality
	// PreciseQualityCompress is PreciseQuality constrained to compressing
	// candidates.
	PreciseQualityCompress
	// CompressWithQuality is CompressOnly followed by one verification pass.
	CompressWithQuality
	// Ultimate continues past the first acceptable point until gains plateau.
	Ultimate
)

func (s Strategy) String() string {
	switch s {
	case CompressOnly:
		return "compress_only"
	case SizeOnly:
		return "size_only"
	case QualityMatch:
		return "quality_match"
	case PreciseQuality:
		return "precise_quality"
	case PreciseQualityCompress:
		return "precise_quality_compress"
	case CompressWithQuality:
		return "compress_with_quality"
	case Ultimate:
		return "ultimate"
	}
	return "unknown"
}

// ParseStrategy maps a CLI mode name onto its variant.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "compress_only", "compress-only":
		return CompressOnly, nil
	case "size_only", "size-only":
		return SizeOnly, nil
	case "quality_match", "quality-match":
		return QualityMatch, nil
	case "precise_quality", "precise-quality":
		return PreciseQuality, nil
	case "precise_quality_compress", "precise-quality-compress":
		return PreciseQualityCompress, nil
	case "compress_with_quality", "compress-with-quality":
		return CompressWithQuality, nil
	case "ultimate":
		return Ultimate, nil
	}
	return 0, services.Wrap(services.ErrValidation, "explore", "parse strategy",
		"unknown mode "+name, nil)
}

// Strategies lists every variant in display order.
func Strategies() []Strategy {
	return []Strategy{
		CompressOnly, SizeOnly, QualityMatch, PreciseQuality,
		PreciseQualityCompress, CompressWithQuality, Ultimate,
	}
}

// RequiresCompression reports whether accepted output must beat the
// compression target.
func (s Strategy) RequiresCompression() bool {
	switch s {
	case CompressOnly, SizeOnly, PreciseQualityCompress, CompressWithQuality, Ultimate:
		return true
	case QualityMatch, PreciseQuality:
		return false
	}
	return false
}

// VerifiesQuality reports whether the strategy runs the quality verifier.
func (s Strategy) VerifiesQuality() bool {
	switch s {
	case CompressOnly, SizeOnly:
		return false
	case QualityMatch, PreciseQuality, PreciseQualityCompress, CompressWithQuality, Ultimate:
		return true
	}
	return false
}

// Intent maps the strategy onto the verifier's strictness level.
func (s Strategy) Intent() verify.Intent {
	switch s {
	case SizeOnly, CompressOnly:
		return verify.IntentSizeOnly
	case PreciseQuality, Ultimate:
		return verify.IntentQualityPriority
	case QualityMatch, PreciseQualityCompress, CompressWithQuality:
		return verify.IntentBalanced
	}
	return verify.IntentBalanced
}

// Description is the human-facing summary shown by the modes command.
func (s Strategy) Description() string {
	switch s {
	case CompressOnly:
		return "guarantee output smaller than input, no quality verification"
	case SizeOnly:
		return "maximize compression, quality measured for reference only"
	case QualityMatch:
		return "single encode at the predicted parameter, then verify"
	case PreciseQuality:
		return "search the full range for the highest measured quality"
	case PreciseQualityCompress:
		return "highest measured quality among compressing candidates"
	case CompressWithQuality:
		return "compression search followed by one verification pass"
	case Ultimate:
		return "exhaustive search until quality gains plateau"
	}
	return ""
}
