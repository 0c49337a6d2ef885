package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateHeartbeat(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoding() error {
	codec := c.Encoding.TargetCodec
	if _, ok := c.Prediction.Formulas[codec]; !ok {
		return fmt.Errorf("encoding.target_codec %q has no prediction.formulas entry", codec)
	}
	if _, ok := c.Prediction.TargetDivisors[codec]; !ok {
		return fmt.Errorf("encoding.target_codec %q has no prediction.target_divisors entry", codec)
	}
	if c.Encoding.SizeTolerancePct <= 0 || c.Encoding.SizeTolerancePct > 100 {
		return errors.New("encoding.size_tolerance_pct must be in (0, 100]")
	}
	if c.Tools.EnableHardware && strings.TrimSpace(c.Tools.HardwareEncoder) == "" {
		return errors.New("tools.hardware_encoder must be set when tools.enable_hardware is true")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if err := ensurePositiveMap(map[string]int{
		"search.max_iterations":        c.Search.MaxIterations,
		"search.long_video_iterations": c.Search.LongVideoIterations,
		"search.plateau_window":        c.Search.PlateauWindow,
		"search.early_exit_window":     c.Search.EarlyExitWindow,
	}); err != nil {
		return err
	}
	if c.Search.EmergencyIterations < c.Search.MaxIterations {
		return errors.New("search.emergency_iterations must be >= search.max_iterations")
	}
	if c.Search.PrecisionStep <= 0 || c.Search.PrecisionStep > 5 {
		return errors.New("search.precision_step must be in (0, 5]")
	}
	if c.Search.MetadataMarginPct <= 0 || c.Search.MetadataMarginPct >= 100 {
		return errors.New("search.metadata_margin_pct must be in (0, 100)")
	}
	if c.Search.MetadataMarginMax < c.Search.MetadataMarginMin {
		return errors.New("search.metadata_margin_max_bytes must be >= search.metadata_margin_min_bytes")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.BaseThreshold <= 0 || c.Quality.BaseThreshold >= 1 {
		return errors.New("quality.base_threshold must be between 0 and 1")
	}
	if c.Quality.MSSSIMWeight < 0 || c.Quality.SSIMWeight < 0 {
		return errors.New("quality metric weights must be >= 0")
	}
	if c.Quality.MSSSIMWeight+c.Quality.SSIMWeight == 0 {
		return errors.New("quality.msssim_weight and quality.ssim_weight cannot both be zero")
	}
	if c.Quality.LumaWeight <= 0 || c.Quality.ChromaWeight < 0 {
		return errors.New("quality channel weights invalid: luma must be positive, chroma >= 0")
	}
	return nil
}

func (c *Config) validateHeartbeat() error {
	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be positive")
	}
	if c.Heartbeat.WarnAfter <= c.Heartbeat.Interval {
		return errors.New("heartbeat.warn_after must be greater than heartbeat.interval")
	}
	if c.Heartbeat.KillCeiling <= c.Heartbeat.WarnAfter {
		return errors.New("heartbeat.kill_ceiling must be greater than heartbeat.warn_after")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.MaxWorkers < 0 {
		return errors.New("workers.max_workers must be >= 0 (0 means auto)")
	}
	if c.Workers.MinFreeMemoryMB < 0 {
		return errors.New("workers.min_free_memory_mb must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
