package imgpress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vgoulart/imgpress/internal/logger"
)

// ErrorKind classifies a per-file failure.
type ErrorKind string

const (
	// ErrKindNone marks a successful result.
	ErrKindNone ErrorKind = ""
	// ErrKindNotFound means the input vanished before processing.
	ErrKindNotFound ErrorKind = "not_found"
	// ErrKindDecode means the input bytes were corrupt or unsupported.
	ErrKindDecode ErrorKind = "decode"
	// ErrKindEncode means the codec failed to write the output.
	ErrKindEncode ErrorKind = "encode"
	// ErrKindFilesystem means a rename, delete or backup step failed.
	ErrKindFilesystem ErrorKind = "filesystem"
	// ErrKindUnknown covers any other unexpected failure.
	ErrKindUnknown ErrorKind = "unknown"
)

// FileTask is one candidate image file awaiting processing. It is
// created per file and consumed once by the pipeline.
type FileTask struct {
	// InputPath is the absolute or working-directory-relative file path.
	InputPath string
	// RelPath is the path relative to the walk base, used as the remote
	// backup key.
	RelPath string
}

// CompressionResult is the outcome of processing one FileTask.
type CompressionResult struct {
	InputPath      string
	OutputPath     string
	Success        bool
	FormatChanged  bool
	OriginalSize   int64
	CompressedSize int64
	Kind           ErrorKind
	Err            error
}

// failed marks the result as a failure of the given kind.
func (r CompressionResult) failed(kind ErrorKind, err error) CompressionResult {
	r.Success = false
	r.Kind = kind
	r.Err = err
	return r
}

// Pipeline processes one file end to end: decode, transform, plan,
// encode, and apply the planned filesystem side effects.
type Pipeline interface {
	// Process never lets an error escape: every failure is captured in
	// the returned result.
	Process(ctx context.Context, task FileTask) CompressionResult
}

// PipelineOptions carries the optional collaborators of a pipeline.
type PipelineOptions struct {
	// Codec overrides the default filesystem codec (used by tests).
	Codec Codec
	// Backup, when set, receives the original bytes before any
	// destructive step.
	Backup OriginalBackup
	// Metadata, when set, copies EXIF tags onto the encoded output.
	Metadata MetadataCopier
	// DryRun plans and transforms but writes, renames and deletes nothing.
	DryRun bool
}

// pipeline implements the Pipeline interface.
type pipeline struct {
	cfg         Config
	target      Format
	codec       Codec
	transformer *ImageTransformer
	backup      OriginalBackup
	metadata    MetadataCopier
	dryRun      bool
}

// NewPipeline validates the configuration and creates a Pipeline.
// An unsupported target format is rejected here, before any file is
// processed.
func NewPipeline(cfg Config, opts PipelineOptions) (Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec := opts.Codec
	if codec == nil {
		codec = NewCodec()
	}
	return &pipeline{
		cfg:         cfg,
		target:      cfg.TargetFormat(),
		codec:       codec,
		transformer: NewImageTransformer(cfg),
		backup:      opts.Backup,
		metadata:    opts.Metadata,
		dryRun:      opts.DryRun,
	}, nil
}

// Process compresses a single file. Any panic below this boundary is
// converted to a failure result of kind unknown.
func (p *pipeline) Process(ctx context.Context, task FileTask) (res CompressionResult) {
	res = CompressionResult{InputPath: task.InputPath}
	defer func() {
		if r := recover(); r != nil {
			res = res.failed(ErrKindUnknown, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	info, err := os.Stat(task.InputPath)
	if err != nil {
		return res.failed(ErrKindNotFound, fmt.Errorf("file not found: %w", err))
	}
	res.OriginalSize = info.Size()

	img, err := p.codec.Decode(task.InputPath)
	if err != nil {
		return res.failed(ErrKindDecode, err)
	}

	img, params := p.transformer.Transform(img)

	plan := PlanOutput(task.InputPath, FormatFromPath(task.InputPath), p.cfg)
	res.OutputPath = plan.OutputPath
	res.FormatChanged = plan.FormatChanged

	if p.dryRun {
		size, err := p.codec.EncodedSize(img, p.target, params)
		if err != nil {
			return res.failed(ErrKindEncode, err)
		}
		res.CompressedSize = size
		res.Success = true
		p.logResult(task, res)
		return res
	}

	if p.backup != nil && plan.Destructive() {
		if err := p.backup.BackupOriginal(ctx, task.InputPath, task.RelPath); err != nil {
			return res.failed(ErrKindFilesystem, fmt.Errorf("remote backup failed: %w", err))
		}
	}

	// The pre-encode rename is the one step that touches the original
	// before the output exists. An encode failure after it leaves the
	// original under the .bak name; it is not rolled back.
	if plan.RenameToBak {
		if err := os.Rename(task.InputPath, plan.BackupPath); err != nil {
			return res.failed(ErrKindFilesystem, fmt.Errorf("backup rename failed: %w", err))
		}
		logger.Debug("Renamed original for backup", "from", task.InputPath, "to", plan.BackupPath)
	}

	size, err := p.codec.Encode(img, plan.OutputPath, p.target, params)
	if err != nil {
		return res.failed(ErrKindEncode, err)
	}
	res.CompressedSize = size

	if p.metadata != nil {
		src := task.InputPath
		if plan.RenameToBak {
			src = plan.BackupPath
		}
		if err := p.metadata.CopyTags(src, plan.OutputPath); err != nil {
			// Metadata loss is not worth failing an otherwise good encode.
			logger.Warn("Failed to copy metadata", "file", plan.OutputPath, "error", err)
		}
	}

	if plan.DeleteOriginal && plan.OutputPath != task.InputPath {
		if _, err := os.Stat(task.InputPath); err == nil {
			if err := os.Remove(task.InputPath); err != nil {
				return res.failed(ErrKindFilesystem, fmt.Errorf("failed to delete original: %w", err))
			}
			logger.Info("Deleted original after format change",
				"file", filepath.Base(task.InputPath), "target", string(p.target))
		}
	}

	res.Success = true
	p.logResult(task, res)
	return res
}

// logResult writes the per-file summary line.
func (p *pipeline) logResult(task FileTask, res CompressionResult) {
	ratio := 0.0
	if res.OriginalSize > 0 {
		ratio = (1 - float64(res.CompressedSize)/float64(res.OriginalSize)) * 100
	}
	logger.Info("Compressed",
		"input", filepath.Base(task.InputPath),
		"output", filepath.Base(res.OutputPath),
		"original_bytes", res.OriginalSize,
		"compressed_bytes", res.CompressedSize,
		"reduction_pct", fmt.Sprintf("%.1f", ratio),
		"format_changed", res.FormatChanged,
		"dry_run", p.dryRun,
	)
}
