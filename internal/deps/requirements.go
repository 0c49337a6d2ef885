package deps

import "transmute/internal/config"

// Requirements builds the external-tool checklist for the given config.
// ffmpeg and ffprobe are always required; the x265 CLI and the hardware
// encoder path are checked only when configured.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Encoding, sample extraction, and metric filters",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Source media inspection",
		},
	}
	if cfg.Tools.X265 != "" {
		reqs = append(reqs, Requirement{
			Name:        "x265",
			Command:     cfg.Tools.X265,
			Description: "Alternate exact HEVC path",
			Optional:    true,
		})
	}
	return reqs
}

// MissingRequired returns the names of required tools that are unavailable.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
