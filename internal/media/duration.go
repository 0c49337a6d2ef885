package media

// DurationClass buckets sources by runtime. Longer sources get relaxed
// quality thresholds, tighter iteration ceilings, and sparser metric
// sampling.
type DurationClass int

const (
	DurationShort DurationClass = iota
	DurationLong
	DurationVeryLong
)

const (
	longVideoSeconds     = 300.0
	veryLongVideoSeconds = 600.0
)

// ClassifyDuration maps a runtime in seconds onto its class.
func ClassifyDuration(durationSec float64) DurationClass {
	switch {
	case durationSec > veryLongVideoSeconds:
		return DurationVeryLong
	case durationSec > longVideoSeconds:
		return DurationLong
	default:
		return DurationShort
	}
}

func (c DurationClass) String() string {
	switch c {
	case DurationLong:
		return "long"
	case DurationVeryLong:
		return "very_long"
	default:
		return "short"
	}
}
