// Package media models source file characteristics via ffprobe and classifies
// video codecs into the families the predictor and search engine reason about.
package media
