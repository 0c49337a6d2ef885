package encode

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"transmute/internal/config"
	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/media"
	"transmute/internal/services"
)

// Software is the deterministic software path. Its output is what the engine
// ultimately commits, so the same CRF must always reproduce the same artifact.
type Software struct {
	binary      string
	codec       media.Codec
	preset      string
	appleCompat bool
	supervisor  *heartbeat.Supervisor
	logger      *slog.Logger
}

// NewSoftware builds the exact encoder for the configured target codec.
func NewSoftware(cfg *config.Config, supervisor *heartbeat.Supervisor, logger *slog.Logger) (*Software, error) {
	codec := media.NormalizeCodec(cfg.Encoding.TargetCodec)
	if _, ok := softwareCodecArg(codec); !ok {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "software",
			fmt.Sprintf("no software encoder for target codec %q", cfg.Encoding.TargetCodec), nil)
	}
	return &Software{
		binary:      cfg.Tools.FFmpeg,
		codec:       codec,
		preset:      cfg.Encoding.Preset,
		appleCompat: cfg.Encoding.AppleCompat,
		supervisor:  supervisor,
		logger:      logging.NewComponentLogger(logger, "encode"),
	}, nil
}

func (s *Software) Name() string { return "software " + string(s.codec) }
func (s *Software) Kind() Kind   { return KindExact }

// Encode produces a candidate at the given CRF and returns its size in bytes.
func (s *Software) Encode(ctx context.Context, input, output string, crf float64) (int64, error) {
	args := softwareArgs(s.codec, s.preset, s.appleCompat, input, output, crf)
	cmd := exec.CommandContext(ctx, s.binary, args...)

	s.logger.Debug("starting software encode",
		logging.String(logging.FieldFile, input),
		logging.Float64(logging.FieldCRF, crf),
		logging.String("preset", s.preset))

	if err := runEncode(ctx, cmd, s.supervisor, s.logger, s.Name(), output); err != nil {
		return 0, err
	}
	return artifactSize(s.Name(), output)
}

// softwareCodecArg maps a normalized target codec to its ffmpeg encoder name.
func softwareCodecArg(codec media.Codec) (string, bool) {
	switch codec {
	case media.CodecAV1:
		return "libsvtav1", true
	case media.CodecHEVC:
		return "libx265", true
	default:
		return "", false
	}
}

func softwareArgs(codec media.Codec, preset string, appleCompat bool, input, output string, crf float64) []string {
	encoder, _ := softwareCodecArg(codec)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-map", "0",
		"-c", "copy",
		"-c:v:0", encoder,
		"-crf", formatCRF(crf),
	}
	if preset != "" {
		args = append(args, "-preset", preset)
	}
	if codec == media.CodecHEVC && appleCompat {
		args = append(args, "-tag:v", "hvc1")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", output)
	return args
}

// formatCRF renders a CRF without a trailing fractional zero, matching how
// the search quantizes parameters to half steps.
func formatCRF(crf float64) string {
	if crf == float64(int64(crf)) {
		return strconv.FormatInt(int64(crf), 10)
	}
	return strconv.FormatFloat(crf, 'f', 1, 64)
}
