package encode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"transmute/internal/heartbeat"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// stderrTailLimit bounds how much encoder stderr is retained for diagnostics.
const stderrTailLimit = 8 * 1024

// tailBuffer keeps the last stderrTailLimit bytes written to it.
type tailBuffer struct {
	data []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if overflow := len(b.data) - stderrTailLimit; overflow > 0 {
		b.data = b.data[overflow:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.data))
}

// runEncode starts the prepared command, supervises it through the heartbeat
// registry, and classifies failure. The command must already have its
// progress stdout pipe configured by the caller via beat.
func runEncode(ctx context.Context, cmd *exec.Cmd, supervisor *heartbeat.Supervisor, logger *slog.Logger, name, output string) error {
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	progressOut, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrEncode, "encode", name, "progress pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrEncode, "encode", name, "start "+cmd.Path, err)
	}

	var ticket *heartbeat.Ticket
	if supervisor != nil {
		ticket = supervisor.Register(name+" "+output, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		})
		defer ticket.Close()
	}

	done := make(chan struct{})
	go func() {
		readProgress(progressOut, func(update ProgressUpdate) {
			ticket.Beat(fmt.Sprintf("frame %d speed %.2fx", update.Frame, update.Speed))
		})
		close(done)
	}()

	waitErr := cmd.Wait()
	<-done

	if waitErr != nil {
		_ = os.Remove(output)
		if ticket.Killed() {
			return services.Wrap(services.ErrStuck, "encode", name, "killed after progress silence", waitErr)
		}
		if ctx.Err() != nil {
			return services.Wrap(services.ErrEncode, "encode", name, "cancelled", ctx.Err())
		}
		detail := stderr.String()
		if detail == "" {
			detail = "encoder exited with failure"
		}
		logger.Error("encode failed",
			logging.String("encoder", name),
			logging.String("stderr_tail", detail))
		return services.Wrap(services.ErrEncode, "encode", name, detail, waitErr)
	}
	return nil
}

func artifactSize(name, output string) (int64, error) {
	info, err := os.Stat(output)
	if err != nil {
		return 0, services.Wrap(services.ErrEncode, "encode", name, "missing output artifact", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return 0, services.Wrap(services.ErrEncode, "encode", name, "zero-sized output artifact", nil)
	}
	return info.Size(), nil
}
