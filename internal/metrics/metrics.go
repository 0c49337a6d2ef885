package metrics

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"transmute/internal/config"
	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/services"
)

// Kind selects which objective metric to compute.
type Kind int

const (
	// MSSSIM is multi-scale SSIM via libvmaf, measured per YUV plane.
	MSSSIM Kind = iota
	// SSIMAll is ffmpeg's ssim filter combined score.
	SSIMAll
	// SSIMLuma is the ssim filter's Y-plane score only.
	SSIMLuma
	// PSNR is the psnr filter's average score in dB.
	PSNR
)

func (k Kind) String() string {
	switch k {
	case MSSSIM:
		return "ms-ssim"
	case SSIMAll:
		return "ssim"
	case SSIMLuma:
		return "ssim-luma"
	case PSNR:
		return "psnr"
	default:
		return "unknown"
	}
}

// Failure causes, all carrying services.ErrMetricUnavailable so callers can
// classify without knowing which one fired.
var (
	// ErrToolMissing means the ffmpeg binary or its libvmaf build is absent.
	ErrToolMissing = errors.New("metric tool missing")
	// ErrDecode means ffmpeg could not decode one of the two inputs.
	ErrDecode = errors.New("metric decode failure")
	// ErrUnsupportedLayout means the source pixel layout cannot be measured.
	// Indexed-palette codecs decode to paletted frames, not planar YUV.
	ErrUnsupportedLayout = errors.New("pixel layout unsupported by metric")
	// ErrSkipped means the metric was deliberately not computed, currently
	// only for MS-SSIM on sources past the sampling ceiling.
	ErrSkipped = errors.New("metric skipped")
)

// Score is one metric reading.
type Score struct {
	Kind  Kind
	Value float64

	// Per-plane readings, populated for MSSSIM only.
	Y, U, V float64
	// SampleRate is the frame decimation used (1 = every frame), MSSSIM only.
	SampleRate int
}

// Meter computes objective quality metrics by shelling out to ffmpeg.
type Meter struct {
	ffmpeg       string
	ffprobe      string
	lumaWeight   float64
	chromaWeight float64
	supervisor   *heartbeat.Supervisor
	logger       *slog.Logger
}

func New(cfg *config.Config, supervisor *heartbeat.Supervisor, logger *slog.Logger) *Meter {
	return &Meter{
		ffmpeg:       cfg.Tools.FFmpeg,
		ffprobe:      cfg.Tools.FFprobe,
		lumaWeight:   cfg.Quality.LumaWeight,
		chromaWeight: cfg.Quality.ChromaWeight,
		supervisor:   supervisor,
		logger:       logging.NewComponentLogger(logger, "metrics"),
	}
}

// CheckLayout reports up front whether the given source codec can be measured
// with the given metric. MS-SSIM requires planar YUV frames, which animated
// image codecs never decode to.
func CheckLayout(codec media.Codec, kind Kind) error {
	if kind == MSSSIM && codec.IsAnimatedImage() {
		return services.Wrap(services.ErrMetricUnavailable, "metrics", kind.String(),
			string(codec)+" decodes to paletted frames", ErrUnsupportedLayout)
	}
	return nil
}

// Measure computes one metric comparing cand against ref.
func (m *Meter) Measure(ctx context.Context, ref, cand string, kind Kind) (Score, error) {
	switch kind {
	case MSSSIM:
		return m.measureMSSSIM(ctx, ref, cand)
	case SSIMAll, SSIMLuma:
		return m.measureSSIM(ctx, ref, cand, kind)
	case PSNR:
		return m.measurePSNR(ctx, ref, cand)
	default:
		return Score{}, services.Wrap(services.ErrMetricUnavailable, "metrics", "measure",
			"unknown metric kind", nil)
	}
}

// refScaleFilter trims odd dimensions so the compare filters accept sources
// with non-mod2 sizes.
const refScaleFilter = "[0:v]scale='iw-mod(iw,2)':'ih-mod(ih,2)':flags=bicubic[ref]"

func (m *Meter) measureSSIM(ctx context.Context, ref, cand string, kind Kind) (Score, error) {
	stderr, err := m.runFilter(ctx, kind, ref, cand, refScaleFilter+";[ref][1:v]ssim")
	if err != nil {
		return Score{}, err
	}
	plane := "All"
	if kind == SSIMLuma {
		plane = "Y"
	}
	value, ok := parseSSIM(stderr, plane)
	if !ok || value <= 0 || value > 1 {
		return Score{}, services.Wrap(services.ErrMetricUnavailable, "metrics", kind.String(),
			"no valid score in filter output", ErrDecode)
	}
	return Score{Kind: kind, Value: value}, nil
}

func (m *Meter) measurePSNR(ctx context.Context, ref, cand string) (Score, error) {
	stderr, err := m.runFilter(ctx, PSNR, ref, cand, refScaleFilter+";[ref][1:v]psnr")
	if err != nil {
		return Score{}, err
	}
	value, ok := parsePSNR(stderr)
	if !ok {
		return Score{}, services.Wrap(services.ErrMetricUnavailable, "metrics", PSNR.String(),
			"no valid score in filter output", ErrDecode)
	}
	return Score{Kind: PSNR, Value: value}, nil
}

// runFilter executes a two-input null-sink ffmpeg comparison and returns its
// stderr, where ffmpeg's compare filters print their summary lines.
func (m *Meter) runFilter(ctx context.Context, kind Kind, ref, cand, filter string) (string, error) {
	cmd := exec.CommandContext(ctx, m.ffmpeg,
		"-hide_banner", "-nostdin",
		"-i", ref,
		"-i", cand,
		"-lavfi", filter,
		"-f", "null", "-")
	stderr := &strings.Builder{}
	cmd.Stderr = stderr

	var ticket *heartbeat.Ticket
	if m.supervisor != nil {
		ticket = m.supervisor.Register(kind.String()+" "+cand, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		})
		defer ticket.Close()
	}

	err := cmd.Run()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", services.Wrap(services.ErrMetricUnavailable, "metrics", kind.String(),
				m.ffmpeg+" not found", ErrToolMissing)
		}
		if ticket.Killed() {
			return "", services.Wrap(services.ErrStuck, "metrics", kind.String(),
				"killed after progress silence", err)
		}
		m.logger.Warn("metric filter failed",
			logging.String(logging.FieldMetric, kind.String()),
			logging.String("stderr_tail", tail(stderr.String(), 512)))
		return "", services.Wrap(services.ErrMetricUnavailable, "metrics", kind.String(),
			tail(stderr.String(), 512), ErrDecode)
	}
	return stderr.String(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
