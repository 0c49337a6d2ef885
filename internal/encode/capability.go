package encode

import "context"

// Kind distinguishes the two encode paths the search engine can drive.
type Kind int

const (
	// KindExact is the deterministic software path whose output is committed.
	KindExact Kind = iota
	// KindFast is the hardware-accelerated path used only for coarse probing.
	KindFast
)

func (k Kind) String() string {
	if k == KindFast {
		return "fast"
	}
	return "exact"
}

// Capability is one way of producing a candidate encode at a given quality
// parameter. Implementations must be safe for sequential reuse; the engine
// never runs two trials of one file concurrently.
type Capability interface {
	// Encode writes a candidate to output at the given parameter and returns
	// the artifact size in bytes.
	Encode(ctx context.Context, input, output string, crf float64) (int64, error)
	Name() string
	Kind() Kind
}
