package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"transmute/internal/services"
)

// MissingFieldError names a required probe field the container does not carry.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field missing: %s", e.Field)
}

// Probe describes the characteristics of a source media file. Optional fields
// are zero when the container does not report them; required fields (codec,
// dimensions, duration, size) are guaranteed non-zero by Inspect.
type Probe struct {
	Path          string
	SizeBytes     int64
	Container     string
	DurationSec   float64
	Codec         Codec
	CodecName     string
	Width         int
	Height        int
	FrameRate     float64
	BitRate       int64
	PixelFormat   string
	BitDepth      int
	ColorSpace    string
	ColorTransfer string
	// GOPSize is the source keyframe interval in frames. Stream headers do
	// not carry it, so Inspect leaves it zero; callers with container-level
	// knowledge fill it in, and zero stays neutral in the prediction model.
	GOPSize int
	BFrames int
	HasAlpha      bool
	VideoStreams  int
	AudioStreams  int
}

// PixelCount returns width*height.
func (p *Probe) PixelCount() int64 {
	return int64(p.Width) * int64(p.Height)
}

// AspectRatio returns width/height, or 0 for degenerate dimensions.
func (p *Probe) AspectRatio() float64 {
	if p.Height == 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// IsHDR reports whether the source carries an HDR transfer function.
func (p *Probe) IsHDR() bool {
	switch strings.ToLower(p.ColorTransfer) {
	case "smpte2084", "arib-std-b67", "smpte428":
		return true
	}
	return false
}

// IsWideGamut reports whether the source is tagged with a BT.2020 color space.
func (p *Probe) IsWideGamut() bool {
	return strings.HasPrefix(strings.ToLower(p.ColorSpace), "bt2020")
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PixFmt        string `json:"pix_fmt"`
	BitRate       string `json:"bit_rate"`
	Duration      string `json:"duration"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	RFrameRate    string `json:"r_frame_rate"`
	ColorSpace    string `json:"color_space"`
	ColorTransfer string `json:"color_transfer"`
	BitsPerRaw    string `json:"bits_per_raw_sample"`
	HasBFrames    int    `json:"has_b_frames"`
}

type probeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Inspect executes ffprobe against the provided path and builds the probe
// model. Required fields the container does not report surface as a probe
// error carrying MissingFieldError; nothing is silently defaulted.
func Inspect(ctx context.Context, binary, path string) (*Probe, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrProbe, "media", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		detail := commandErrorDetail(err)
		return nil, services.Wrap(services.ErrProbe, "media", "inspect", detail, err)
	}

	probe, err := Parse(path, output)
	if err != nil {
		return nil, err
	}

	if probe.SizeBytes == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			probe.SizeBytes = info.Size()
		}
	}
	if probe.SizeBytes == 0 {
		return nil, services.Wrap(services.ErrProbe, "media", "inspect", path, &MissingFieldError{Field: "size"})
	}
	return probe, nil
}

// Parse builds the probe model from raw ffprobe JSON output.
func Parse(path string, data []byte) (*Probe, error) {
	var parsed probeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrProbe, "media", "parse", "malformed ffprobe output", err)
	}
	probe, err := buildProbe(path, parsed)
	if err != nil {
		return nil, services.Wrap(services.ErrProbe, "media", "inspect", path, err)
	}
	return probe, nil
}

func buildProbe(path string, parsed probeOutput) (*Probe, error) {
	var video *probeStream
	videoCount, audioCount := 0, 0
	for i := range parsed.Streams {
		stream := &parsed.Streams[i]
		switch strings.ToLower(stream.CodecType) {
		case "video":
			videoCount++
			if video == nil {
				video = stream
			}
		case "audio":
			audioCount++
		}
	}
	if video == nil {
		return nil, &MissingFieldError{Field: "video stream"}
	}
	if strings.TrimSpace(video.CodecName) == "" {
		return nil, &MissingFieldError{Field: "codec_name"}
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, &MissingFieldError{Field: "dimensions"}
	}

	duration := parseFloat(parsed.Format.Duration)
	if duration <= 0 {
		duration = parseFloat(video.Duration)
	}
	if duration <= 0 || math.IsNaN(duration) {
		return nil, &MissingFieldError{Field: "duration"}
	}

	bitrate := parseInt(video.BitRate)
	if bitrate <= 0 {
		bitrate = parseInt(parsed.Format.BitRate)
	}

	probe := &Probe{
		Path:          path,
		SizeBytes:     parseInt(parsed.Format.Size),
		Container:     strings.TrimSpace(parsed.Format.FormatName),
		DurationSec:   duration,
		Codec:         NormalizeCodec(video.CodecName),
		CodecName:     strings.TrimSpace(video.CodecName),
		Width:         video.Width,
		Height:        video.Height,
		FrameRate:     parseFrameRate(video.AvgFrameRate, video.RFrameRate),
		BitRate:       bitrate,
		PixelFormat:   strings.TrimSpace(video.PixFmt),
		BitDepth:      parseBitDepth(video.BitsPerRaw, video.PixFmt),
		ColorSpace:    strings.TrimSpace(video.ColorSpace),
		ColorTransfer: strings.TrimSpace(video.ColorTransfer),
		BFrames:       video.HasBFrames,
		HasAlpha:      pixelFormatHasAlpha(video.PixFmt),
		VideoStreams:  videoCount,
		AudioStreams:  audioCount,
	}
	return probe, nil
}

func parseFrameRate(avg, real string) float64 {
	if rate := parseRational(avg); rate > 0 {
		return rate
	}
	return parseRational(real)
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		return parseFloat(value)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 || math.IsNaN(n) || math.IsNaN(d) {
		return 0
	}
	return n / d
}

func parseBitDepth(bitsPerRaw, pixFmt string) int {
	if depth := int(parseFloat(bitsPerRaw)); depth > 0 {
		return depth
	}
	format := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(format, "16le"), strings.Contains(format, "16be"):
		return 16
	case strings.Contains(format, "12le"), strings.Contains(format, "12be"):
		return 12
	case strings.Contains(format, "10le"), strings.Contains(format, "10be"):
		return 10
	case format == "":
		return 0
	default:
		return 8
	}
}

func pixelFormatHasAlpha(pixFmt string) bool {
	format := strings.ToLower(strings.TrimSpace(pixFmt))
	switch {
	case strings.HasPrefix(format, "yuva"),
		strings.HasPrefix(format, "rgba"),
		strings.HasPrefix(format, "bgra"),
		strings.HasPrefix(format, "argb"),
		strings.HasPrefix(format, "abgr"),
		strings.HasPrefix(format, "ya"),
		strings.HasPrefix(format, "gbrap"):
		return true
	}
	return false
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func parseInt(value string) int64 {
	parsed := parseFloat(value)
	if math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return int64(parsed)
}

func commandErrorDetail(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return msg
		}
	}
	return "ffprobe failed"
}
