package imgpress

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/barasher/go-exiftool"

	"github.com/vgoulart/imgpress/internal/logger"
)

// MetadataCopier copies EXIF metadata from an original file onto its
// re-encoded replacement, which the codecs otherwise discard.
type MetadataCopier interface {
	// CopyTags copies all tags from srcPath to dstPath.
	CopyTags(srcPath, dstPath string) error
}

// metadataCopier implements the MetadataCopier interface via exiftool.
type metadataCopier struct {
	et *exiftool.Exiftool
}

// NewMetadataCopier creates a new MetadataCopier instance.
func NewMetadataCopier(et *exiftool.Exiftool) MetadataCopier {
	return &metadataCopier{et: et}
}

// CopyTags copies all tags from srcPath to dstPath. A source with no
// readable metadata is skipped silently.
func (m *metadataCopier) CopyTags(srcPath, dstPath string) error {
	if m.et == nil {
		return fmt.Errorf("exiftool not initialised")
	}

	metas := m.et.ExtractMetadata(srcPath)
	if len(metas) == 0 || metas[0].Err != nil || len(metas[0].Fields) == 0 {
		logger.Debug("No metadata to copy", "file", filepath.Base(srcPath))
		return nil
	}

	// -overwrite_original prevents exiftool's own backup file,
	// -P preserves the output's modification time.
	cmd := exec.Command("exiftool",
		"-TagsFromFile", srcPath,
		"-all:all",
		"-overwrite_original",
		"-P",
		dstPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to copy tags to %s: %w (output: %s)", dstPath, err, string(output))
	}

	logger.Debug("Copied metadata", "from", filepath.Base(srcPath), "to", filepath.Base(dstPath))
	return nil
}
