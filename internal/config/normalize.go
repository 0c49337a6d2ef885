package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeEncoding()
	c.normalizeSearch()
	c.normalizePrediction()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir()
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = "ffmpeg"
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = "ffprobe"
	}
	c.Tools.X265 = strings.TrimSpace(c.Tools.X265)
	c.Tools.HardwareEncoder = strings.TrimSpace(c.Tools.HardwareEncoder)
}

func (c *Config) normalizeEncoding() {
	c.Encoding.TargetCodec = strings.ToLower(strings.TrimSpace(c.Encoding.TargetCodec))
	if c.Encoding.TargetCodec == "" {
		c.Encoding.TargetCodec = defaultTargetCodec
	}
	c.Encoding.Preset = strings.ToLower(strings.TrimSpace(c.Encoding.Preset))
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaultPreset
	}
	if c.Encoding.SizeTolerancePct <= 0 {
		c.Encoding.SizeTolerancePct = defaultSizeTolerancePct
	}
}

func (c *Config) normalizeSearch() {
	if c.Search.PrecisionStep <= 0 {
		c.Search.PrecisionStep = defaultPrecisionStep
	}
	if c.Search.MaxIterations <= 0 {
		c.Search.MaxIterations = defaultMaxIterations
	}
	if c.Search.LongVideoIterations <= 0 {
		c.Search.LongVideoIterations = defaultLongVideoIterations
	}
	if c.Search.EmergencyIterations < c.Search.MaxIterations {
		c.Search.EmergencyIterations = defaultEmergencyIterations
	}
	if c.Search.PlateauWindow <= 0 {
		c.Search.PlateauWindow = defaultPlateauWindow
	}
	if c.Search.PlateauWindowUlt <= 0 {
		c.Search.PlateauWindowUlt = defaultPlateauWindowUlt
	}
	if c.Search.PlateauWindowLong <= 0 {
		c.Search.PlateauWindowLong = defaultPlateauWindowLong
	}
	if c.Search.PlateauGainEpsilon <= 0 {
		c.Search.PlateauGainEpsilon = defaultPlateauGainEpsilon
	}
	if c.Search.ScoreCompareEpsilon <= 0 {
		c.Search.ScoreCompareEpsilon = defaultCompareEpsilon
	}
	if c.Search.VarianceEarlyExit <= 0 {
		c.Search.VarianceEarlyExit = defaultVarianceEarlyExit
	}
	if c.Search.ChangeRateEarlyExit <= 0 {
		c.Search.ChangeRateEarlyExit = defaultChangeRateEarlyExit
	}
	if c.Search.EarlyExitWindow <= 0 {
		c.Search.EarlyExitWindow = defaultEarlyExitWindow
	}
	if c.Search.MetadataMarginPct <= 0 {
		c.Search.MetadataMarginPct = defaultMetadataMarginPct
	}
	if c.Search.MetadataMarginMin <= 0 {
		c.Search.MetadataMarginMin = defaultMetadataMarginMin
	}
	if c.Search.MetadataMarginMax < c.Search.MetadataMarginMin {
		c.Search.MetadataMarginMax = defaultMetadataMarginMax
	}
	if c.Search.CalibrationSampleSec <= 0 {
		c.Search.CalibrationSampleSec = defaultCalibrationSample
	}
}

// normalizePrediction merges user-supplied table entries over the defaults so a
// config file can override a single codec without restating the whole table.
func (c *Config) normalizePrediction() {
	defaults := Default().Prediction
	c.Prediction.CodecEfficiency = mergeFloatTable(defaults.CodecEfficiency, c.Prediction.CodecEfficiency)
	c.Prediction.PresetFactors = mergeFloatTable(defaults.PresetFactors, c.Prediction.PresetFactors)
	c.Prediction.ContentOffsets = mergeFloatTable(defaults.ContentOffsets, c.Prediction.ContentOffsets)
	c.Prediction.TargetDivisors = mergeFloatTable(defaults.TargetDivisors, c.Prediction.TargetDivisors)
	if c.Prediction.Formulas == nil {
		c.Prediction.Formulas = map[string]Formula{}
	}
	for codec, formula := range defaults.Formulas {
		if _, ok := c.Prediction.Formulas[codec]; !ok {
			c.Prediction.Formulas[codec] = formula
		}
	}
}

func mergeFloatTable(defaults, overrides map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return merged
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		c.Logging.Format = ""
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
