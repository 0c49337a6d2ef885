package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/services"
)

// msssimSkipCeiling is the duration past which MS-SSIM is not computed at
// all; SSIM alone covers very long sources.
const msssimSkipCeiling = 1800.0

// msssimSampleRate picks a frame decimation factor by duration. Returns 0
// when the source is too long to measure.
func msssimSampleRate(durationSec float64) int {
	switch {
	case durationSec <= 60:
		return 1
	case durationSec <= 300:
		return 3
	case durationSec <= msssimSkipCeiling:
		return 10
	default:
		return 0
	}
}

// sampleFilter builds the frame-select prefix for a decimated comparison, or
// "" when every frame is measured.
func sampleFilter(rate int) string {
	if rate <= 1 {
		return ""
	}
	return fmt.Sprintf("select='not(mod(n\\,%d))',", rate)
}

// msssimChannels are measured concurrently; libvmaf decodes both inputs per
// channel, so the three runs share no state beyond their log files.
var msssimChannels = [3]string{"Y", "U", "V"}

func (m *Meter) measureMSSSIM(ctx context.Context, ref, cand string) (Score, error) {
	rate := 1
	if probe, err := media.Inspect(ctx, m.ffprobe, ref); err == nil {
		if probe.Codec.IsAnimatedImage() {
			return Score{}, CheckLayout(probe.Codec, MSSSIM)
		}
		rate = msssimSampleRate(probe.DurationSec)
	}
	if rate == 0 {
		return Score{}, services.Wrap(services.ErrMetricUnavailable, "metrics", MSSSIM.String(),
			"source exceeds sampling ceiling", ErrSkipped)
	}

	logDir, err := os.MkdirTemp("", "transmute-msssim-")
	if err != nil {
		return Score{}, services.Wrap(services.ErrMetricUnavailable, "metrics", MSSSIM.String(),
			"temp log dir", err)
	}
	defer os.RemoveAll(logDir)

	var (
		wg     sync.WaitGroup
		scores [3]float64
		errs   [3]error
	)
	for i, channel := range msssimChannels {
		wg.Add(1)
		go func(i int, channel string) {
			defer wg.Done()
			scores[i], errs[i] = m.measureChannel(ctx, ref, cand, channel, rate, logDir)
		}(i, channel)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			m.logger.Warn("plane measurement failed",
				logging.String("plane", msssimChannels[i]),
				logging.Error(err))
			return Score{}, err
		}
	}

	y, u, v := scores[0], scores[1], scores[2]
	total := m.lumaWeight + 2*m.chromaWeight
	fused := (m.lumaWeight*y + m.chromaWeight*u + m.chromaWeight*v) / total

	m.logger.Debug("ms-ssim measured",
		logging.Float64("y", y),
		logging.Float64("u", u),
		logging.Float64("v", v),
		logging.Float64(logging.FieldScore, fused),
		logging.Int("sample_rate", rate))

	return Score{Kind: MSSSIM, Value: fused, Y: y, U: u, V: v, SampleRate: rate}, nil
}

func (m *Meter) measureChannel(ctx context.Context, ref, cand, channel string, rate int, logDir string) (float64, error) {
	logPath := filepath.Join(logDir, uuid.NewString()+".json")
	sel := sampleFilter(rate)
	filter := fmt.Sprintf(
		"[0:v]%sscale='iw-mod(iw,2)':'ih-mod(ih,2)':flags=bicubic[ref];[1:v]%scopy[dist];"+
			"[ref][dist]libvmaf=feature=name=ms_ssim\\:channel=%s:log_fmt=json:log_path=%s",
		sel, sel, channel, logPath)

	if _, err := m.runFilter(ctx, MSSSIM, ref, cand, filter); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return 0, services.Wrap(services.ErrMetricUnavailable, "metrics", MSSSIM.String(),
			"libvmaf log missing for plane "+channel, ErrDecode)
	}
	score, err := parseVMAFLog(data)
	if err != nil {
		return 0, services.Wrap(services.ErrMetricUnavailable, "metrics", MSSSIM.String(),
			"libvmaf log unreadable for plane "+channel, err)
	}
	return score, nil
}

// vmafLog is the subset of libvmaf's JSON log the meter reads.
type vmafLog struct {
	PooledMetrics map[string]struct {
		Mean float64 `json:"mean"`
	} `json:"pooled_metrics"`
}

// parseVMAFLog extracts the pooled mean of the ms_ssim feature, accepting
// either feature spelling libvmaf emits.
func parseVMAFLog(data []byte) (float64, error) {
	var log vmafLog
	if err := json.Unmarshal(data, &log); err != nil {
		return 0, err
	}
	for _, key := range []string{"float_ms_ssim", "ms_ssim"} {
		if pooled, ok := log.PooledMetrics[key]; ok {
			score := pooled.Mean
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			return score, nil
		}
	}
	return 0, fmt.Errorf("ms_ssim not present in pooled metrics")
}
