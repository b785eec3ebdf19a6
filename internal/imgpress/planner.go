package imgpress

import (
	"path/filepath"
	"strings"
)

// OutputPlan is the derived decision for where the compressed file goes
// and what happens to the original. It is computed once per file and
// never mutated afterwards.
type OutputPlan struct {
	// OutputPath is where the encoded image will be written.
	OutputPath string
	// FormatChanged is true when the target format differs from the input.
	FormatChanged bool
	// BackupOriginal is true when the original survives the run, either
	// untouched next to a suffixed copy or renamed to BackupPath.
	BackupOriginal bool
	// DeleteOriginal schedules removal of the input after a successful
	// encode.
	DeleteOriginal bool
	// RenameToBak schedules renaming the input to BackupPath before the
	// encode. Only set for the backup-with-empty-suffix combination.
	RenameToBak bool
	// BackupPath is the pre-encode rename destination when RenameToBak
	// is set.
	BackupPath string
	// InPlace is true when the output overwrites the input file.
	InPlace bool
}

// Destructive reports whether the plan touches the original file:
// overwriting it in place, renaming it, or deleting it.
func (p OutputPlan) Destructive() bool {
	return p.InPlace || p.RenameToBak || p.DeleteOriginal
}

// PlanOutput derives the output path and original-file actions for one
// input. It is pure: the same inputs always produce the same plan.
//
// When the format changes, conversion wins unconditionally and no backup
// copy is produced even if BackupOriginal is set; the original survives
// unless DeleteOriginalOnFormatChange asks for its removal.
//
// When the format is unchanged, the input keeps its own extension even
// when it differs from the canonical one (.jpeg, .JPG), so the output
// lands on the input path instead of next to it.
func PlanOutput(inputPath string, originalFormat Format, cfg Config) OutputPlan {
	target := cfg.TargetFormat()
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)

	plan := OutputPlan{
		FormatChanged: originalFormat != target,
	}

	switch {
	case plan.FormatChanged:
		plan.OutputPath = stem + target.Extension()
		plan.DeleteOriginal = cfg.DeleteOriginalOnFormatChange && plan.OutputPath != inputPath

	case cfg.BackupOriginal && cfg.OutputSuffix == "":
		// Same format, backup requested but no suffix to distinguish the
		// copy: the original is renamed out of the way before encoding.
		plan.OutputPath = inputPath
		plan.BackupOriginal = true
		plan.RenameToBak = true
		plan.BackupPath = inputPath + ".bak"

	case cfg.BackupOriginal:
		plan.OutputPath = stem + cfg.OutputSuffix + ext
		plan.BackupOriginal = true

	default:
		plan.OutputPath = inputPath
	}

	plan.InPlace = plan.OutputPath == inputPath && !plan.FormatChanged
	return plan
}
