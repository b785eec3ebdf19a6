package imgpress

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vgoulart/imgpress/internal/logger"
)

// ImageDirectory is one directory of candidate image files.
type ImageDirectory struct {
	// Path is the full directory path.
	Path string
	// RelPath is the path relative to the walk base.
	RelPath string
	// Files are the recognised image files in the directory, in
	// lexical order.
	Files []string
}

// DirectoryWalker enumerates the image directories of a year-organised
// tree: {base}/{prefix}{year}/{glob}/ for every year in the range.
type DirectoryWalker struct {
	baseDir    string
	yearPrefix string
	dirGlob    string
	startYear  int
	endYear    int
}

// NewDirectoryWalker creates a walker over baseDir. Year directories are
// named {yearPrefix}{year}; image directories inside them are matched by
// dirGlob (for example "*-images").
func NewDirectoryWalker(baseDir, yearPrefix, dirGlob string, startYear, endYear int) *DirectoryWalker {
	return &DirectoryWalker{
		baseDir:    baseDir,
		yearPrefix: yearPrefix,
		dirGlob:    dirGlob,
		startYear:  startYear,
		endYear:    endYear,
	}
}

// Walk returns the image directories for the configured year range.
// Missing year directories are logged and skipped; a missing base
// directory is an error.
func (w *DirectoryWalker) Walk() ([]ImageDirectory, error) {
	if info, err := os.Stat(w.baseDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("base path is not a valid directory: %s", w.baseDir)
	}

	var dirs []ImageDirectory
	for year := w.startYear; year <= w.endYear; year++ {
		yearName := fmt.Sprintf("%s%d", w.yearPrefix, year)
		yearDir := filepath.Join(w.baseDir, yearName)

		if info, err := os.Stat(yearDir); err != nil || !info.IsDir() {
			logger.Warn("Year directory not found, skipping", "year", year, "path", yearDir)
			continue
		}
		logger.Info("Scanning year", "year", year, "path", yearDir)

		matches, err := filepath.Glob(filepath.Join(yearDir, w.dirGlob))
		if err != nil {
			return nil, fmt.Errorf("invalid directory pattern %q: %w", w.dirGlob, err)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				continue
			}
			files, err := w.listImages(match)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, ImageDirectory{
				Path:    match,
				RelPath: filepath.Join(yearName, filepath.Base(match)),
				Files:   files,
			})
		}
	}
	return dirs, nil
}

// listImages returns the recognised image files directly inside dir.
func (w *DirectoryWalker) listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsImageFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
