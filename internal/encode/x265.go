package encode

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"transmute/internal/config"
	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// X265 drives the standalone x265 CLI instead of ffmpeg's libx265 wrapper.
// ffmpeg decodes the source to a y4m stream, x265 consumes it and emits an
// elementary HEVC stream, and a final ffmpeg pass muxes that stream back
// together with the untouched audio and subtitle tracks.
type X265 struct {
	ffmpeg      string
	x265        string
	preset      string
	appleCompat bool
	supervisor  *heartbeat.Supervisor
	logger      *slog.Logger
}

// NewX265 builds the pipeline encoder. Tools.X265 must point at the binary.
func NewX265(cfg *config.Config, supervisor *heartbeat.Supervisor, logger *slog.Logger) (*X265, error) {
	if cfg.Tools.X265 == "" {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "x265",
			"tools.x265 is not configured", nil)
	}
	return &X265{
		ffmpeg:      cfg.Tools.FFmpeg,
		x265:        cfg.Tools.X265,
		preset:      cfg.Encoding.Preset,
		appleCompat: cfg.Encoding.AppleCompat,
		supervisor:  supervisor,
		logger:      logging.NewComponentLogger(logger, "encode"),
	}, nil
}

func (x *X265) Name() string { return "x265 cli" }
func (x *X265) Kind() Kind   { return KindExact }

func (x *X265) Encode(ctx context.Context, input, output string, crf float64) (int64, error) {
	elementary := output + ".hevc"
	defer os.Remove(elementary)

	if err := x.runPipeline(ctx, input, elementary, crf); err != nil {
		return 0, err
	}
	if err := x.mux(ctx, input, elementary, output); err != nil {
		return 0, err
	}
	return artifactSize(x.Name(), output)
}

// runPipeline wires ffmpeg's y4m output into x265's stdin and waits for both.
func (x *X265) runPipeline(ctx context.Context, input, elementary string, crf float64) error {
	decode := exec.CommandContext(ctx, x.ffmpeg,
		"-hide_banner", "-nostdin", "-v", "error",
		"-i", input,
		"-map", "0:v:0",
		"-f", "yuv4mpegpipe", "-strict", "-1",
		"pipe:1")

	encodeArgs := []string{
		"--y4m",
		"--crf", formatCRF(crf),
		"--output", elementary,
		"--input", "-",
	}
	if x.preset != "" {
		encodeArgs = append(encodeArgs[:1], append([]string{"--preset", x.preset}, encodeArgs[1:]...)...)
	}
	encodeCmd := exec.CommandContext(ctx, x.x265, encodeArgs...)

	pipe, err := decode.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrEncode, "encode", x.Name(), "y4m pipe", err)
	}
	encodeCmd.Stdin = pipe

	decodeErr := &tailBuffer{}
	decode.Stderr = decodeErr
	encodeErr := &tailBuffer{}

	// x265 reports progress on stderr one line at a time; tee those lines
	// through the tail buffer so silence detection still works.
	progressLines, err := encodeCmd.StderrPipe()
	if err != nil {
		encodeCmd.Stderr = encodeErr
		progressLines = nil
	}

	if err := decode.Start(); err != nil {
		return services.Wrap(services.ErrEncode, "encode", x.Name(), "start decoder", err)
	}
	if err := encodeCmd.Start(); err != nil {
		_ = decode.Process.Kill()
		_ = decode.Wait()
		return services.Wrap(services.ErrEncode, "encode", x.Name(), "start x265", err)
	}

	ticket := x.registerKill(decode, encodeCmd, elementary)
	defer ticket.Close()

	done := make(chan struct{})
	if progressLines != nil {
		go func() {
			scanner := bufio.NewScanner(progressLines)
			for scanner.Scan() {
				line := scanner.Text()
				encodeErr.Write([]byte(line + "\n"))
				ticket.Beat(strings.TrimSpace(line))
			}
			close(done)
		}()
	} else {
		close(done)
	}

	encodeWait := encodeCmd.Wait()
	decodeWait := decode.Wait()
	<-done

	if encodeWait != nil || decodeWait != nil {
		_ = os.Remove(elementary)
		if ticket.Killed() {
			return services.Wrap(services.ErrStuck, "encode", x.Name(), "killed after progress silence", encodeWait)
		}
		detail := encodeErr.String()
		if detail == "" {
			detail = decodeErr.String()
		}
		cause := encodeWait
		if cause == nil {
			cause = decodeWait
		}
		x.logger.Error("x265 pipeline failed",
			logging.String("stderr_tail", detail))
		return services.Wrap(services.ErrEncode, "encode", x.Name(), detail, cause)
	}
	return nil
}

func (x *X265) registerKill(decode, encodeCmd *exec.Cmd, elementary string) *heartbeat.Ticket {
	if x.supervisor == nil {
		return nil
	}
	return x.supervisor.Register(x.Name()+" "+filepath.Base(elementary), func() {
		if encodeCmd.Process != nil {
			_ = encodeCmd.Process.Kill()
		}
		if decode.Process != nil {
			_ = decode.Process.Kill()
		}
	})
}

// mux rewraps the elementary stream with the source's remaining tracks.
func (x *X265) mux(ctx context.Context, input, elementary, output string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y", "-v", "error",
		"-i", elementary,
		"-i", input,
		"-map", "0:v:0",
		"-map", "1", "-map", "-1:v",
		"-c", "copy",
	}
	if x.appleCompat {
		args = append(args, "-tag:v", "hvc1")
	}
	args = append(args, output)

	cmd := exec.CommandContext(ctx, x.ffmpeg, args...)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(output)
		detail := stderr.String()
		if detail == "" {
			detail = "mux pass failed"
		}
		return services.Wrap(services.ErrEncode, "encode", x.Name(),
			fmt.Sprintf("mux: %s", detail), err)
	}
	return nil
}
