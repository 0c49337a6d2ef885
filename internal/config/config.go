package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Tools contains the external executables the engine drives.
type Tools struct {
	FFmpeg          string `toml:"ffmpeg"`
	FFprobe         string `toml:"ffprobe"`
	X265            string `toml:"x265"`
	HardwareEncoder string `toml:"hardware_encoder"`
	EnableHardware  bool   `toml:"enable_hardware"`
}

// Encoding contains target-codec selection and acceptance policy toggles.
type Encoding struct {
	TargetCodec        string  `toml:"target_codec"`
	Preset             string  `toml:"preset"`
	AllowSizeTolerance bool    `toml:"allow_size_tolerance"`
	SizeTolerancePct   float64 `toml:"size_tolerance_pct"`
	AppleCompat        bool    `toml:"apple_compat"`
}

// Search contains parameter-search tunables.
type Search struct {
	PrecisionStep        float64 `toml:"precision_step"`
	MaxIterations        int     `toml:"max_iterations"`
	LongVideoIterations  int     `toml:"long_video_iterations"`
	EmergencyIterations  int     `toml:"emergency_iterations"`
	PlateauWindow        int     `toml:"plateau_window"`
	PlateauWindowUlt     int     `toml:"plateau_window_ultimate"`
	PlateauWindowLong    int     `toml:"plateau_window_long"`
	PlateauGainEpsilon   float64 `toml:"plateau_gain_epsilon"`
	ScoreCompareEpsilon  float64 `toml:"score_compare_epsilon"`
	VarianceEarlyExit    float64 `toml:"variance_early_exit"`
	ChangeRateEarlyExit  float64 `toml:"change_rate_early_exit"`
	EarlyExitWindow      int     `toml:"early_exit_window"`
	MetadataMarginPct    float64 `toml:"metadata_margin_pct"`
	MetadataMarginMin    int64   `toml:"metadata_margin_min_bytes"`
	MetadataMarginMax    int64   `toml:"metadata_margin_max_bytes"`
	CalibrationSampleSec float64 `toml:"calibration_sample_seconds"`
}

// Quality contains verification thresholds and metric weighting.
type Quality struct {
	BaseThreshold      float64 `toml:"base_threshold"`
	QualityPriorityAdj float64 `toml:"quality_priority_adjustment"`
	SizeOnlyAdj        float64 `toml:"size_only_adjustment"`
	LongVideoAdj       float64 `toml:"long_video_adjustment"`
	VeryLongVideoAdj   float64 `toml:"very_long_video_adjustment"`
	MSSSIMWeight       float64 `toml:"msssim_weight"`
	SSIMWeight         float64 `toml:"ssim_weight"`
	LumaWeight         float64 `toml:"luma_weight"`
	ChromaWeight       float64 `toml:"chroma_weight"`
}

// Prediction contains the starting-point model tables. All values are
// multiplicative factors unless named otherwise.
type Prediction struct {
	CodecEfficiency map[string]float64 `toml:"codec_efficiency"`
	PresetFactors   map[string]float64 `toml:"preset_factors"`
	ContentOffsets  map[string]float64 `toml:"content_offsets"`
	TargetDivisors  map[string]float64 `toml:"target_divisors"`
	Formulas        map[string]Formula `toml:"formulas"`
}

// Formula holds the per-target-codec curve constants for the bpp model.
type Formula struct {
	Base         float64 `toml:"base"`
	Scale        float64 `toml:"scale"`
	LowBppCutoff float64 `toml:"low_bpp_cutoff"`
	LowBppCeil   float64 `toml:"low_bpp_ceiling"`
	HighBppFloor float64 `toml:"high_bpp_floor"`
	HighBppStart float64 `toml:"high_bpp_start"`
	ClampMin     float64 `toml:"clamp_min"`
	ClampMax     float64 `toml:"clamp_max"`
}

// Heartbeat contains the progress-supervision windows, all in seconds.
type Heartbeat struct {
	Interval    int `toml:"interval"`
	WarnAfter   int `toml:"warn_after"`
	KillCeiling int `toml:"kill_ceiling"`
}

// Workers contains batch fan-out limits.
type Workers struct {
	MaxWorkers      int `toml:"max_workers"`
	MinFreeMemoryMB int `toml:"min_free_memory_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for transmute.
//
// Configuration sections by subsystem:
//   - Paths: work, log, and ledger locations
//   - Tools: external executables (ffmpeg, ffprobe, x265, hardware encoder)
//   - Encoding: target codec, preset, and acceptance-policy toggles
//   - Search: parameter-search tunables and termination thresholds
//   - Quality: verification thresholds and metric weighting
//   - Prediction: starting-point model tables
//   - Heartbeat: progress supervision windows
//   - Workers: batch fan-out limits
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Encoding   Encoding   `toml:"encoding"`
	Search     Search     `toml:"search"`
	Quality    Quality    `toml:"quality"`
	Prediction Prediction `toml:"prediction"`
	Heartbeat  Heartbeat  `toml:"heartbeat"`
	Workers    Workers    `toml:"workers"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/transmute/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// file was actually found; defaults alone are a valid configuration.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transmute.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for engine operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if ledgerDir := filepath.Dir(c.Paths.LedgerPath); ledgerDir != "" {
		if err := os.MkdirAll(ledgerDir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %q: %w", ledgerDir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
