package textutil

import "testing"

func TestLabel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"compress_with_quality", "Compress With Quality"},
		{"precise-quality", "Precise Quality"},
		{"ultimate", "Ultimate"},
		{"best_effort", "Best Effort"},
		{"", ""},
		{"  spaced_out  ", "Spaced Out"},
	}
	for _, tc := range cases {
		if got := Label(tc.in); got != tc.want {
			t.Errorf("Label(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTernary(t *testing.T) {
	if Ternary(true, "a", "b") != "a" {
		t.Fatal("true branch")
	}
	if Ternary(false, 1, 2) != 2 {
		t.Fatal("false branch")
	}
}
