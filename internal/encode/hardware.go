package encode

import (
	"context"
	"log/slog"
	"os/exec"

	"transmute/internal/config"
	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// Hardware is the fast probing path. Hardware encoders trade quality
// consistency for speed, so their artifacts are only used to narrow the
// search range during calibration and are never committed.
type Hardware struct {
	binary     string
	encoder    string
	supervisor *heartbeat.Supervisor
	logger     *slog.Logger
}

// NewHardware builds the fast encoder from tools.hardware_encoder, for
// example hevc_videotoolbox or av1_nvenc.
func NewHardware(cfg *config.Config, supervisor *heartbeat.Supervisor, logger *slog.Logger) (*Hardware, error) {
	if !cfg.Tools.EnableHardware || cfg.Tools.HardwareEncoder == "" {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "hardware",
			"hardware encoding is not enabled", nil)
	}
	return &Hardware{
		binary:     cfg.Tools.FFmpeg,
		encoder:    cfg.Tools.HardwareEncoder,
		supervisor: supervisor,
		logger:     logging.NewComponentLogger(logger, "encode"),
	}, nil
}

func (h *Hardware) Name() string { return "hardware " + h.encoder }
func (h *Hardware) Kind() Kind   { return KindFast }

func (h *Hardware) Encode(ctx context.Context, input, output string, crf float64) (int64, error) {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-map", "0:v:0",
		"-c:v", h.encoder,
		"-q:v", formatCRF(crf),
		"-an", "-sn",
		"-progress", "pipe:1", "-nostats",
		output,
	}
	cmd := exec.CommandContext(ctx, h.binary, args...)

	h.logger.Debug("starting hardware probe encode",
		logging.String(logging.FieldFile, input),
		logging.Float64(logging.FieldCRF, crf))

	if err := runEncode(ctx, cmd, h.supervisor, h.logger, h.Name(), output); err != nil {
		return 0, err
	}
	return artifactSize(h.Name(), output)
}
