package encode

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate is one snapshot from ffmpeg's -progress side channel.
type ProgressUpdate struct {
	Frame   int64
	FPS     float64
	OutTime time.Duration
	Speed   float64
	Done    bool
}

// readProgress consumes ffmpeg's key=value progress stream and invokes the
// callback once per block (delimited by the "progress" key).
func readProgress(r io.Reader, callback func(ProgressUpdate)) {
	scanner := bufio.NewScanner(r)
	var current ProgressUpdate
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "frame":
			if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.Frame = parsed
			}
		case "fps":
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				current.FPS = parsed
			}
		case "out_time_us":
			if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.OutTime = time.Duration(parsed) * time.Microsecond
			}
		case "speed":
			if parsed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
				current.Speed = parsed
			}
		case "progress":
			current.Done = value == "end"
			if callback != nil {
				callback(current)
			}
		}
	}
}
