package explore

import "testing"

func TestQuantizeKeepsQuarterStepsDistinct(t *testing.T) {
	crfs := []float64{23.0, 23.1, 23.25, 23.5, 23.75, 24.0}
	seen := map[int]float64{}
	for _, crf := range crfs {
		key := quantize(crf)
		if prev, ok := seen[key]; ok && prev != crf {
			t.Fatalf("quantize collides: %v and %v share key %d", prev, crf, key)
		}
		seen[key] = crf
	}
	if quantize(23.25) != quantize(23.3) {
		t.Fatal("granularity finer than one decimal")
	}
}

func TestTrialCacheMemoizes(t *testing.T) {
	cache := NewTrialCache()
	cache.Put(Trial{CRF: 24, Size: 1000})

	if _, ok := cache.Get(23.5); ok {
		t.Fatal("unexpected hit")
	}
	trial, ok := cache.Get(24.04)
	if !ok || trial.Size != 1000 {
		t.Fatalf("lookup within quantization failed: ok=%v size=%d", ok, trial.Size)
	}
	if cache.Hits() != 1 {
		t.Fatalf("hits = %d, want 1", cache.Hits())
	}
	if cache.Contains(24) && cache.Hits() != 1 {
		t.Fatal("Contains must not count a hit")
	}
	if cache.Len() != 1 {
		t.Fatalf("len = %d", cache.Len())
	}
}

func TestTrialCacheProducedMarker(t *testing.T) {
	cache := NewTrialCache()
	if cache.IsProduced(24) {
		t.Fatal("fresh cache has no artifact")
	}
	cache.MarkProduced(24)
	if !cache.IsProduced(24) {
		t.Fatal("marker lost")
	}
	cache.MarkProduced(23.5)
	if cache.IsProduced(24) {
		t.Fatal("marker must track only the latest encode")
	}
	if !cache.IsProduced(23.5) {
		t.Fatal("latest marker missing")
	}
}
