package explore

import (
	"math"

	"transmute/internal/verify"
)

// Trial is one encode attempt at a quantized parameter. Immutable once
// recorded.
type Trial struct {
	CRF  float64
	Size int64

	// Measured quality, valid only when Measured is set.
	Measured bool
	Score    float64
	Report   *verify.Report
}

// quantize maps a CRF onto its cache key at 0.1 granularity, one decimal
// finer than the 0.5 precision step so fine-tune offsets stay distinct.
func quantize(crf float64) int {
	return int(math.Round(crf * 10))
}

// TrialCache memoizes trials within one search. It is exclusively owned by
// one engine instance; no locking. The cache also tracks which key the
// artifact on disk was most recently produced for, so the engine can skip
// the final re-encode when the winner is already materialized.
type TrialCache struct {
	trials       map[int]Trial
	lastProduced int
	hits         int
}

func NewTrialCache() *TrialCache {
	return &TrialCache{trials: map[int]Trial{}, lastProduced: -1}
}

func (c *TrialCache) Get(crf float64) (Trial, bool) {
	trial, ok := c.trials[quantize(crf)]
	if ok {
		c.hits++
	}
	return trial, ok
}

func (c *TrialCache) Put(trial Trial) {
	c.trials[quantize(trial.CRF)] = trial
}

// Contains reports whether a trial exists without counting a hit.
func (c *TrialCache) Contains(crf float64) bool {
	_, ok := c.trials[quantize(crf)]
	return ok
}

// MarkProduced records that the on-disk artifact now corresponds to crf.
func (c *TrialCache) MarkProduced(crf float64) {
	c.lastProduced = quantize(crf)
}

// IsProduced reports whether the artifact on disk is the one for crf.
func (c *TrialCache) IsProduced(crf float64) bool {
	return c.lastProduced == quantize(crf)
}

// Hits returns how many lookups were served without re-encoding.
func (c *TrialCache) Hits() int { return c.hits }

// Len returns the number of distinct parameters tried.
func (c *TrialCache) Len() int { return len(c.trials) }
