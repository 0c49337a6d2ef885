// Package encode runs the external encoders that produce candidate files.
// The search engine sees every encoder as a Capability: the exact software
// paths (ffmpeg's libsvtav1/libx265 and the standalone x265 CLI) produce
// committable artifacts, while the hardware path exists only to narrow the
// parameter range quickly. All encoders stream progress to the heartbeat
// supervisor so a wedged process is killed instead of hanging a conversion.
package encode
