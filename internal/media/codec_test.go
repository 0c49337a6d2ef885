package media_test

import (
	"testing"

	"transmute/internal/media"
)

func TestNormalizeCodecAliases(t *testing.T) {
	cases := map[string]media.Codec{
		"h264":       media.CodecH264,
		"libx264":    media.CodecH264,
		"HEVC":       media.CodecHEVC,
		"h265":       media.CodecHEVC,
		"libsvtav1":  media.CodecAV1,
		"mpeg2video": media.CodecMPEG2,
		"prores_ks":  media.CodecProRes,
		"ffvhuff":    media.CodecHuffYUV,
		"gif":        media.CodecGIF,
		"something":  media.CodecUnknown,
	}
	for name, want := range cases {
		if got := media.NormalizeCodec(name); got != want {
			t.Fatalf("NormalizeCodec(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestCodecClassification(t *testing.T) {
	if !media.CodecAV1.IsModern() || media.CodecH264.IsModern() {
		t.Fatal("modern classification wrong")
	}
	if !media.CodecFFV1.IsLossless() || media.CodecHEVC.IsLossless() {
		t.Fatal("lossless classification wrong")
	}
	if !media.CodecProRes.IsProduction() || media.CodecAV1.IsProduction() {
		t.Fatal("production classification wrong")
	}
	if !media.CodecGIF.IsAnimatedImage() || media.CodecVP9.IsAnimatedImage() {
		t.Fatal("animated image classification wrong")
	}
}

func TestApplePlayable(t *testing.T) {
	for _, codec := range []media.Codec{media.CodecH264, media.CodecHEVC, media.CodecProRes, media.CodecMJPEG} {
		if !codec.ApplePlayable() {
			t.Errorf("%s should play natively", codec)
		}
	}
	for _, codec := range []media.Codec{media.CodecVP8, media.CodecVP9, media.CodecAV1, media.CodecMPEG2, media.CodecGIF, media.CodecUnknown} {
		if codec.ApplePlayable() {
			t.Errorf("%s should need the compatibility re-encode", codec)
		}
	}
}
