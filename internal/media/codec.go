package media

import "strings"

// Codec identifies a video codec family after normalizing ffprobe's many
// encoder-specific names.
type Codec string

const (
	CodecH264     Codec = "h264"
	CodecHEVC     Codec = "hevc"
	CodecAV1      Codec = "av1"
	CodecVP8      Codec = "vp8"
	CodecVP9      Codec = "vp9"
	CodecVVC      Codec = "vvc"
	CodecMPEG4    Codec = "mpeg4"
	CodecMPEG2    Codec = "mpeg2"
	CodecMPEG1    Codec = "mpeg1"
	CodecWMV      Codec = "wmv"
	CodecProRes   Codec = "prores"
	CodecDNxHD    Codec = "dnxhd"
	CodecMJPEG    Codec = "mjpeg"
	CodecFFV1     Codec = "ffv1"
	CodecHuffYUV  Codec = "huffyuv"
	CodecUTVideo  Codec = "utvideo"
	CodecRawVideo Codec = "rawvideo"
	CodecGIF      Codec = "gif"
	CodecAPNG     Codec = "apng"
	CodecWebP     Codec = "webp"
	CodecUnknown  Codec = "unknown"
)

// NormalizeCodec maps an ffprobe codec name onto a codec family.
func NormalizeCodec(name string) Codec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "h264", "avc", "libx264":
		return CodecH264
	case "hevc", "h265", "libx265":
		return CodecHEVC
	case "av1", "libaom-av1", "libsvtav1":
		return CodecAV1
	case "vp8", "libvpx":
		return CodecVP8
	case "vp9", "libvpx-vp9":
		return CodecVP9
	case "vvc", "h266", "libvvenc":
		return CodecVVC
	case "mpeg4", "xvid", "divx":
		return CodecMPEG4
	case "mpeg2video":
		return CodecMPEG2
	case "mpeg1video":
		return CodecMPEG1
	case "wmv1", "wmv2", "wmv3", "vc1":
		return CodecWMV
	case "prores", "prores_ks":
		return CodecProRes
	case "dnxhd", "dnxhr":
		return CodecDNxHD
	case "mjpeg":
		return CodecMJPEG
	case "ffv1":
		return CodecFFV1
	case "huffyuv", "ffvhuff":
		return CodecHuffYUV
	case "utvideo":
		return CodecUTVideo
	case "rawvideo":
		return CodecRawVideo
	case "gif":
		return CodecGIF
	case "apng":
		return CodecAPNG
	case "webp":
		return CodecWebP
	default:
		return CodecUnknown
	}
}

// IsModern reports whether the codec already belongs to the efficient
// generation the converter targets.
func (c Codec) IsModern() bool {
	switch c {
	case CodecHEVC, CodecAV1, CodecVP9, CodecVVC:
		return true
	}
	return false
}

// IsLossless reports whether the codec stores pixels without loss.
func (c Codec) IsLossless() bool {
	switch c {
	case CodecFFV1, CodecHuffYUV, CodecUTVideo, CodecRawVideo:
		return true
	}
	return false
}

// ApplePlayable reports whether Apple platforms decode the codec natively.
// Sources outside this set are the compatibility re-encode case: converting
// them has value even when the output cannot undercut the input size.
func (c Codec) ApplePlayable() bool {
	switch c {
	case CodecH264, CodecHEVC, CodecProRes, CodecMJPEG:
		return true
	}
	return false
}

// IsProduction reports whether the codec is a mezzanine/intermediate format.
func (c Codec) IsProduction() bool {
	return c == CodecProRes || c == CodecDNxHD
}

// IsAnimatedImage reports whether the codec is an animated image layout.
// These use indexed palettes and cannot be decoded into the planar YUV frames
// the multi-scale metric requires.
func (c Codec) IsAnimatedImage() bool {
	switch c {
	case CodecGIF, CodecAPNG, CodecWebP:
		return true
	}
	return false
}

// DisplayName returns a human-facing codec label.
func (c Codec) DisplayName() string {
	switch c {
	case CodecH264:
		return "H.264/AVC"
	case CodecHEVC:
		return "H.265/HEVC"
	case CodecAV1:
		return "AV1"
	case CodecVP8:
		return "VP8"
	case CodecVP9:
		return "VP9"
	case CodecVVC:
		return "H.266/VVC"
	case CodecMPEG4:
		return "MPEG-4"
	case CodecMPEG2:
		return "MPEG-2"
	case CodecMPEG1:
		return "MPEG-1"
	case CodecWMV:
		return "WMV"
	case CodecProRes:
		return "ProRes"
	case CodecDNxHD:
		return "DNxHD"
	case CodecMJPEG:
		return "MJPEG"
	case CodecFFV1:
		return "FFV1"
	case CodecHuffYUV:
		return "HuffYUV"
	case CodecUTVideo:
		return "UT Video"
	case CodecRawVideo:
		return "Raw Video"
	case CodecGIF:
		return "GIF"
	case CodecAPNG:
		return "APNG"
	case CodecWebP:
		return "WebP (Animated)"
	default:
		return string(c)
	}
}
