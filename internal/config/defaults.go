package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir     = "~/.local/share/transmute/logs"
	defaultLedgerPath = "~/.local/share/transmute/ledger.db"
	defaultLogFormat  = ""
	defaultLogLevel   = "info"

	defaultTargetCodec      = "av1"
	defaultPreset           = "medium"
	defaultSizeTolerancePct = 5.0

	defaultPrecisionStep       = 0.5
	defaultMaxIterations       = 60
	defaultLongVideoIterations = 40
	defaultEmergencyIterations = 500
	defaultPlateauWindow       = 4
	defaultPlateauWindowUlt    = 8
	defaultPlateauWindowLong   = 3
	defaultPlateauGainEpsilon  = 0.0002
	defaultCompareEpsilon      = 0.0001
	defaultVarianceEarlyExit   = 1e-5
	defaultChangeRateEarlyExit = 0.005
	defaultEarlyExitWindow     = 3
	defaultMetadataMarginPct   = 0.5
	defaultMetadataMarginMin   = 2048
	defaultMetadataMarginMax   = 102400
	defaultCalibrationSample   = 60.0

	defaultBaseThreshold      = 0.985
	defaultQualityPriorityAdj = 0.005
	defaultSizeOnlyAdj        = -0.015
	defaultLongVideoAdj       = -0.005
	defaultVeryLongVideoAdj   = -0.010
	defaultMSSSIMWeight       = 0.7
	defaultSSIMWeight         = 0.3
	defaultLumaWeight         = 6.0
	defaultChromaWeight       = 1.0

	defaultHeartbeatInterval = 15
	defaultHeartbeatWarn     = 120
	defaultHeartbeatKill     = 600

	defaultMinFreeMemoryMB = 2048
)

// Default returns a Config populated with repository defaults. The prediction
// tables mirror the curve the engine was tuned against; override individual
// entries in the config file rather than replacing whole tables.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir(),
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Encoding: Encoding{
			TargetCodec:        defaultTargetCodec,
			Preset:             defaultPreset,
			AllowSizeTolerance: false,
			SizeTolerancePct:   defaultSizeTolerancePct,
			AppleCompat:        true,
		},
		Search: Search{
			PrecisionStep:        defaultPrecisionStep,
			MaxIterations:        defaultMaxIterations,
			LongVideoIterations:  defaultLongVideoIterations,
			EmergencyIterations:  defaultEmergencyIterations,
			PlateauWindow:        defaultPlateauWindow,
			PlateauWindowUlt:     defaultPlateauWindowUlt,
			PlateauWindowLong:    defaultPlateauWindowLong,
			PlateauGainEpsilon:   defaultPlateauGainEpsilon,
			ScoreCompareEpsilon:  defaultCompareEpsilon,
			VarianceEarlyExit:    defaultVarianceEarlyExit,
			ChangeRateEarlyExit:  defaultChangeRateEarlyExit,
			EarlyExitWindow:      defaultEarlyExitWindow,
			MetadataMarginPct:    defaultMetadataMarginPct,
			MetadataMarginMin:    defaultMetadataMarginMin,
			MetadataMarginMax:    defaultMetadataMarginMax,
			CalibrationSampleSec: defaultCalibrationSample,
		},
		Quality: Quality{
			BaseThreshold:      defaultBaseThreshold,
			QualityPriorityAdj: defaultQualityPriorityAdj,
			SizeOnlyAdj:        defaultSizeOnlyAdj,
			LongVideoAdj:       defaultLongVideoAdj,
			VeryLongVideoAdj:   defaultVeryLongVideoAdj,
			MSSSIMWeight:       defaultMSSSIMWeight,
			SSIMWeight:         defaultSSIMWeight,
			LumaWeight:         defaultLumaWeight,
			ChromaWeight:       defaultChromaWeight,
		},
		Prediction: Prediction{
			CodecEfficiency: map[string]float64{
				"h264":   1.00,
				"hevc":   0.65,
				"vp8":    0.85,
				"vp9":    0.70,
				"av1":    0.50,
				"vvc":    0.35,
				"mpeg4":  1.30,
				"mpeg2":  1.80,
				"mpeg1":  2.50,
				"prores": 1.80,
				"dnxhd":  1.80,
				"mjpeg":  2.50,
				"gif":    3.00,
			},
			PresetFactors: map[string]float64{
				"placebo":   0.85,
				"veryslow":  0.85,
				"slower":    0.88,
				"slow":      0.90,
				"medium":    1.00,
				"fast":      1.15,
				"faster":    1.20,
				"veryfast":  1.25,
				"superfast": 1.28,
				"ultrafast": 1.30,
			},
			ContentOffsets: map[string]float64{
				"animation":        4.0,
				"screen_recording": 5.0,
				"gaming":           -1.0,
				"film_grain":       -3.0,
			},
			TargetDivisors: map[string]float64{
				"av1":  0.5,
				"hevc": 0.7,
			},
			Formulas: map[string]Formula{
				"av1": {
					Base:         50,
					Scale:        6,
					LowBppCutoff: 0.03,
					LowBppCeil:   35,
					HighBppStart: 2.0,
					HighBppFloor: 18,
					ClampMin:     15,
					ClampMax:     40,
				},
				"hevc": {
					Base:         46,
					Scale:        5,
					LowBppCutoff: 0.02,
					LowBppCeil:   35,
					HighBppStart: 2.0,
					HighBppFloor: 15,
					ClampMin:     0,
					ClampMax:     35,
				},
			},
		},
		Heartbeat: Heartbeat{
			Interval:    defaultHeartbeatInterval,
			WarnAfter:   defaultHeartbeatWarn,
			KillCeiling: defaultHeartbeatKill,
		},
		Workers: Workers{
			MinFreeMemoryMB: defaultMinFreeMemoryMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "transmute", "work")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/transmute/work"
	}
	return filepath.Join(home, ".cache", "transmute", "work")
}
