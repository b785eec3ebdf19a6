package imgpress

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func newTestPipeline(t *testing.T, cfg Config, opts PipelineOptions) Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, opts)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return p
}

func TestNewPipeline_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "GIF"

	if _, err := NewPipeline(cfg, PipelineOptions{}); err == nil {
		t.Error("Expected error for unsupported target format")
	}
}

func TestPipeline_FormatChangeResizesAndDeletesOriginal(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 100, 80)

	cfg := DefaultConfig()
	cfg.MaxWidth = 50
	pipeline := newTestPipeline(t, cfg, PipelineOptions{})

	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got kind=%s err=%v", res.Kind, res.Err)
	}
	if !res.FormatChanged {
		t.Error("Expected format change to be reported")
	}

	output := filepath.Join(tmpDir, "photo.jpg")
	if res.OutputPath != output {
		t.Errorf("Expected output %s, got %s", output, res.OutputPath)
	}
	if !fileExists(t, output) {
		t.Fatal("Expected output file to exist")
	}
	if fileExists(t, input) {
		t.Error("Expected original to be deleted after format change")
	}
	if res.OriginalSize <= 0 || res.CompressedSize <= 0 {
		t.Errorf("Expected sizes to be recorded, got %d -> %d", res.OriginalSize, res.CompressedSize)
	}

	decoded, err := NewCodec().Decode(output)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if decoded.Bounds().Dx() != 50 || decoded.Bounds().Dy() != 40 {
		t.Errorf("Expected 50x40 output, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestPipeline_KeepsOriginalWhenDeleteDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 20, 20)

	cfg := DefaultConfig()
	cfg.DeleteOriginalOnFormatChange = false
	pipeline := newTestPipeline(t, cfg, PipelineOptions{})

	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	if !fileExists(t, input) {
		t.Error("Expected original to survive")
	}
	if !fileExists(t, filepath.Join(tmpDir, "photo.jpg")) {
		t.Error("Expected converted output to exist")
	}
}

func TestPipeline_JPEGAliasOverwritesInPlace(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestJPEG(t, tmpDir, "photo.jpeg", 30, 30)

	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{})
	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got kind=%s err=%v", res.Kind, res.Err)
	}
	if res.FormatChanged {
		t.Error("Expected .jpeg to count as the JPEG target format")
	}
	if res.OutputPath != input {
		t.Errorf("Expected in-place output at %s, got %s", input, res.OutputPath)
	}
	if fileExists(t, filepath.Join(tmpDir, "photo.jpg")) {
		t.Error("Expected no duplicate under the canonical extension")
	}
	if !fileExists(t, input) {
		t.Error("Expected the re-encoded file at the original path")
	}
}

func TestPipeline_NotFound(t *testing.T) {
	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{})

	res := pipeline.Process(context.Background(), FileTask{InputPath: "/nonexistent/photo.png"})

	if res.Success {
		t.Error("Expected failure")
	}
	if res.Kind != ErrKindNotFound {
		t.Errorf("Expected kind %s, got %s", ErrKindNotFound, res.Kind)
	}
	if res.OriginalSize != 0 {
		t.Errorf("Expected no original size recorded, got %d", res.OriginalSize)
	}
}

func TestPipeline_DecodeErrorLeavesNoOutput(t *testing.T) {
	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "broken.png")
	if err := os.WriteFile(input, nil, 0644); err != nil {
		t.Fatalf("Failed to create zero-byte file: %v", err)
	}

	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{})
	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if res.Success {
		t.Error("Expected failure")
	}
	if res.Kind != ErrKindDecode {
		t.Errorf("Expected kind %s, got %s", ErrKindDecode, res.Kind)
	}
	if fileExists(t, filepath.Join(tmpDir, "broken.jpg")) {
		t.Error("Expected no output file for a failed decode")
	}
	if !fileExists(t, input) {
		t.Error("Expected the broken input to be left in place")
	}
}

func TestPipeline_EmptySuffixBackupRenamesBeforeEncode(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestJPEG(t, tmpDir, "photo.jpg", 30, 30)
	originalBytes, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	cfg := DefaultConfig()
	cfg.BackupOriginal = true
	cfg.OutputSuffix = ""
	pipeline := newTestPipeline(t, cfg, PipelineOptions{})

	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}

	backupPath := input + ".bak"
	if !fileExists(t, backupPath) {
		t.Fatal("Expected .bak backup of the original")
	}
	backupBytes, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if !bytes.Equal(originalBytes, backupBytes) {
		t.Error("Expected backup to hold the original bytes")
	}
	if !fileExists(t, input) {
		t.Error("Expected re-encoded output at the original path")
	}
}

func TestPipeline_SuffixBackupKeepsOriginal(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestJPEG(t, tmpDir, "photo.jpg", 30, 30)
	originalBytes, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	cfg := DefaultConfig()
	cfg.BackupOriginal = true
	pipeline := newTestPipeline(t, cfg, PipelineOptions{})

	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	if !fileExists(t, filepath.Join(tmpDir, "photo_compressed.jpg")) {
		t.Error("Expected suffixed output file")
	}

	current, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Failed to re-read original: %v", err)
	}
	if !bytes.Equal(originalBytes, current) {
		t.Error("Expected original to be untouched")
	}
}

func TestPipeline_DryRunWritesNothing(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 40, 40)

	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{DryRun: true})
	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	if res.CompressedSize <= 0 {
		t.Errorf("Expected an estimated compressed size, got %d", res.CompressedSize)
	}
	if fileExists(t, filepath.Join(tmpDir, "photo.jpg")) {
		t.Error("Expected no output file in dry-run mode")
	}
	if !fileExists(t, input) {
		t.Error("Expected original to be untouched in dry-run mode")
	}
}

// panicCodec blows up on decode to exercise the pipeline boundary.
type panicCodec struct{}

func (panicCodec) Decode(string) (image.Image, error) { panic("codec exploded") }
func (panicCodec) Encode(image.Image, string, Format, EncodeParams) (int64, error) {
	panic("codec exploded")
}
func (panicCodec) EncodedSize(image.Image, Format, EncodeParams) (int64, error) {
	panic("codec exploded")
}

func TestPipeline_PanicBecomesUnknownFailure(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 10, 10)

	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{Codec: panicCodec{}})
	res := pipeline.Process(context.Background(), FileTask{InputPath: input})

	if res.Success {
		t.Error("Expected failure")
	}
	if res.Kind != ErrKindUnknown {
		t.Errorf("Expected kind %s, got %s", ErrKindUnknown, res.Kind)
	}
	if res.Err == nil {
		t.Error("Expected the panic to be captured as an error")
	}
}

// failingBackup rejects every upload.
type failingBackup struct{}

func (failingBackup) BackupOriginal(context.Context, string, string) error {
	return errors.New("bucket unavailable")
}

// recordingBackup captures the keys it was asked to upload.
type recordingBackup struct {
	keys []string
}

func (b *recordingBackup) BackupOriginal(_ context.Context, _, key string) error {
	b.keys = append(b.keys, key)
	return nil
}

func TestPipeline_BackupFailureAbortsBeforeEncode(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestJPEG(t, tmpDir, "photo.jpg", 20, 20)
	originalBytes, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	// Same-format run overwrites in place, which is destructive and
	// therefore requires the backup to succeed first.
	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{Backup: failingBackup{}})
	res := pipeline.Process(context.Background(), FileTask{InputPath: input, RelPath: "2021/a-images/photo.jpg"})

	if res.Success {
		t.Error("Expected failure")
	}
	if res.Kind != ErrKindFilesystem {
		t.Errorf("Expected kind %s, got %s", ErrKindFilesystem, res.Kind)
	}

	current, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("Failed to re-read input: %v", err)
	}
	if !bytes.Equal(originalBytes, current) {
		t.Error("Expected input to be untouched after a failed backup")
	}
}

func TestPipeline_BackupSkippedForNonDestructivePlans(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestJPEG(t, tmpDir, "photo.jpg", 20, 20)

	cfg := DefaultConfig()
	cfg.BackupOriginal = true // suffix copy, original untouched
	backup := &recordingBackup{}
	pipeline := newTestPipeline(t, cfg, PipelineOptions{Backup: backup})

	res := pipeline.Process(context.Background(), FileTask{InputPath: input, RelPath: "2021/a-images/photo.jpg"})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	if len(backup.keys) != 0 {
		t.Errorf("Expected no upload for a non-destructive plan, got %v", backup.keys)
	}
}

func TestPipeline_BackupReceivesRelKey(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 20, 20)

	backup := &recordingBackup{}
	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{Backup: backup})

	rel := filepath.Join("2021", "a-images", "photo.png")
	res := pipeline.Process(context.Background(), FileTask{InputPath: input, RelPath: rel})

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	if len(backup.keys) != 1 || backup.keys[0] != rel {
		t.Errorf("Expected backup key %q, got %v", rel, backup.keys)
	}
}

func TestPipeline_ScenarioPNGToJPEG(t *testing.T) {
	// photo.png converted to JPEG with a width cap: photo.jpg appears
	// with proportional dimensions, photo.png is gone.
	tmpDir := t.TempDir()
	input := writeTestPNG(t, tmpDir, "photo.png", 240, 160)

	cfg := DefaultConfig()
	cfg.MaxWidth = 192
	pipeline := newTestPipeline(t, cfg, PipelineOptions{})

	stats := NewStatsAggregator()
	res := pipeline.Process(context.Background(), FileTask{InputPath: input})
	stats.Record(res)

	if !res.Success {
		t.Fatalf("Expected success, got: %v", res.Err)
	}
	decoded, err := NewCodec().Decode(filepath.Join(tmpDir, "photo.jpg"))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if decoded.Bounds().Dx() != 192 || decoded.Bounds().Dy() != 128 {
		t.Errorf("Expected 192x128, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
	if fileExists(t, input) {
		t.Error("Expected photo.png to be deleted")
	}

	report := stats.Finalize()
	if report.Processed != 1 || report.Errors != 0 {
		t.Errorf("Expected processed=1 errors=0, got %d/%d", report.Processed, report.Errors)
	}
}

func TestPipeline_ErrorCountsAsError(t *testing.T) {
	pipeline := newTestPipeline(t, DefaultConfig(), PipelineOptions{})
	stats := NewStatsAggregator()

	res := pipeline.Process(context.Background(), FileTask{InputPath: "/missing.png"})
	stats.Record(res)

	report := stats.Finalize()
	if report.Processed != 0 {
		t.Errorf("Expected processed unchanged, got %d", report.Processed)
	}
	if report.Errors != 1 {
		t.Errorf("Expected errors=1, got %d", report.Errors)
	}
}
