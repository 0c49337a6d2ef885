package commit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transmute/internal/config"
	"transmute/internal/logging"
)

func writeArtifact(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "candidate.mkv")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCommitter(encoding config.Encoding) *Committer {
	return New(encoding, config.Default().Search, logging.NewNop())
}

func TestCommitAcceptsCompressingOutput(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 4096)
	output := filepath.Join(dir, "out", "movie.mkv")

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       filepath.Join(dir, "movie.src.mkv"),
		InputSize:       1 << 20,
		ArtifactPath:    artifact,
		OutputPath:      output,
		OutputSize:      4096,
		VerificationRan: true,
		QualityPassed:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Accepted {
		t.Fatalf("status = %v", receipt.Status)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatal("artifact should have moved")
	}
	if receipt.SizeChangePct >= 0 {
		t.Fatalf("size change = %v, want negative", receipt.SizeChangePct)
	}
}

func TestCommitRejectsLargerOutput(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 4096)
	input := filepath.Join(dir, "movie.src.mkv")
	if err := os.WriteFile(input, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       input,
		InputSize:       2048,
		ArtifactPath:    artifact,
		OutputPath:      filepath.Join(dir, "movie.mkv"),
		OutputSize:      4096,
		VerificationRan: true,
		QualityPassed:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Rejected {
		t.Fatalf("status = %v", receipt.Status)
	}
	if receipt.Reason == "" {
		t.Fatal("rejection must carry a reason")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatal("rejected artifact must be removed")
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatal("input must be preserved")
	}
}

func TestCommitRejectsFailedVerification(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 1024)

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       "in.mkv",
		InputSize:       1 << 20,
		ArtifactPath:    artifact,
		OutputPath:      filepath.Join(dir, "out.mkv"),
		OutputSize:      1024,
		VerificationRan: true,
		QualityPassed:   false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Rejected {
		t.Fatalf("status = %v", receipt.Status)
	}
	if !strings.Contains(receipt.Reason, "quality") {
		t.Fatalf("reason = %q", receipt.Reason)
	}
}

// The stock policy is strict: any growth at all is rejected until tolerance
// is switched on explicitly.
func TestCommitDefaultRejectsAnyGrowth(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 104)

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       "in.mkv",
		InputSize:       100,
		ArtifactPath:    artifact,
		OutputPath:      filepath.Join(dir, "out.mkv"),
		OutputSize:      104,
		VerificationRan: true,
		QualityPassed:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Rejected {
		t.Fatalf("status = %v, want rejected for 4%% growth under defaults", receipt.Status)
	}
}

func TestCommitToleranceOptIn(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 1100)

	encoding := config.Default().Encoding
	encoding.AllowSizeTolerance = true
	encoding.SizeTolerancePct = 15

	receipt, err := newCommitter(encoding).Commit(Request{
		InputPath:    "in.mkv",
		InputSize:    1000,
		ArtifactPath: artifact,
		OutputPath:   filepath.Join(dir, "out.mkv"),
		OutputSize:   1100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Accepted {
		t.Fatalf("status = %v, tolerance should admit a 10%% growth", receipt.Status)
	}

	artifact = writeArtifact(t, dir, 1200)
	receipt, err = newCommitter(encoding).Commit(Request{
		InputPath:    "in.mkv",
		InputSize:    1000,
		ArtifactPath: artifact,
		OutputPath:   filepath.Join(dir, "out2.mkv"),
		OutputSize:   1200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Rejected {
		t.Fatalf("status = %v, 20%% growth exceeds tolerance", receipt.Status)
	}
}

func TestCommitBestEffortBypassesSizePolicy(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 4096)

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       "in.mkv",
		InputSize:       2048,
		ArtifactPath:    artifact,
		OutputPath:      filepath.Join(dir, "out.mkv"),
		OutputSize:      4096,
		VerificationRan: true,
		QualityPassed:   true,
		BestEffort:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != BestEffortAccepted {
		t.Fatalf("status = %v", receipt.Status)
	}
}

func TestCommitBestEffortStillRequiresQuality(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir, 4096)

	receipt, err := newCommitter(config.Default().Encoding).Commit(Request{
		InputPath:       "in.mkv",
		InputSize:       2048,
		ArtifactPath:    artifact,
		OutputPath:      filepath.Join(dir, "out.mkv"),
		OutputSize:      4096,
		VerificationRan: true,
		QualityPassed:   false,
		BestEffort:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Status != Rejected {
		t.Fatalf("status = %v", receipt.Status)
	}
}

func TestTempPathShape(t *testing.T) {
	got := tempPath("/media/out/movie.mkv")
	if got != "/media/out/.movie.transmute-tmp.mkv" {
		t.Fatalf("temp path = %q", got)
	}
}
