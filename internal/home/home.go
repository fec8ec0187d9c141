package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the mangatl home directory.
	DefaultDirName = ".mangatl"

	// DataDirName is the subdirectory for the chapter database.
	DataDirName = "data"

	// ChaptersDirName is the subdirectory for chapter sources and outputs.
	ChaptersDirName = "chapters"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DBFileName is the chapter database file name.
	DBFileName = "mangatl.db"
)

// Dir represents the mangatl home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.mangatl).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// DBPath returns the path to the chapter database.
func (d *Dir) DBPath() string {
	return filepath.Join(d.DataPath(), DBFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.ChaptersDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create chapters directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ChaptersDir returns the directory holding every chapter.
func (d *Dir) ChaptersDir() string {
	return filepath.Join(d.path, ChaptersDirName)
}

// ChapterDir returns the directory of one chapter.
func (d *Dir) ChapterDir(chapterID string) string {
	return filepath.Join(d.ChaptersDir(), chapterID)
}

// SourceDir returns the directory for the uploaded pages of a chapter.
func (d *Dir) SourceDir(chapterID string) string {
	return filepath.Join(d.ChapterDir(chapterID), "source")
}

// OutputDir returns the directory for translated pages of a chapter.
func (d *Dir) OutputDir(chapterID string) string {
	return filepath.Join(d.ChapterDir(chapterID), "output")
}

// SourcePagePath returns the path of an uploaded page.
// Page numbers are 1-indexed.
func (d *Dir) SourcePagePath(chapterID string, pageNum int, ext string) string {
	return filepath.Join(d.SourceDir(chapterID), PageFileName(pageNum, ext))
}

// OutputPagePath returns the path of a translated page.
// Page numbers are 1-indexed.
func (d *Dir) OutputPagePath(chapterID string, pageNum int, ext string) string {
	return filepath.Join(d.OutputDir(chapterID), PageFileName(pageNum, ext))
}

// FindSourcePage returns the uploaded file for a page whatever its extension.
func (d *Dir) FindSourcePage(chapterID string, pageNum int) (string, error) {
	return findPage(d.SourceDir(chapterID), pageNum)
}

// FindOutputPage returns the translated file for a page whatever its extension.
func (d *Dir) FindOutputPage(chapterID string, pageNum int) (string, error) {
	return findPage(d.OutputDir(chapterID), pageNum)
}

// EnsureChapterDirs creates the source and output directories of a chapter.
func (d *Dir) EnsureChapterDirs(chapterID string) error {
	if err := os.MkdirAll(d.SourceDir(chapterID), 0o755); err != nil {
		return fmt.Errorf("failed to create source directory: %w", err)
	}
	if err := os.MkdirAll(d.OutputDir(chapterID), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// RemoveChapter deletes the stored pages of a chapter. A missing directory
// is not an error.
func (d *Dir) RemoveChapter(chapterID string) error {
	if chapterID == "" || filepath.Base(chapterID) != chapterID || chapterID == "." || chapterID == ".." {
		return fmt.Errorf("invalid chapter id %q", chapterID)
	}
	if err := os.RemoveAll(d.ChapterDir(chapterID)); err != nil {
		return fmt.Errorf("failed to remove chapter directory: %w", err)
	}
	return nil
}

// PageFileName is page_NNNN.ext.
func PageFileName(pageNum int, ext string) string {
	return fmt.Sprintf("page_%04d.%s", pageNum, ext)
}

func findPage(dir string, pageNum int) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("page_%04d.*", pageNum)))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("page %d: %w", pageNum, os.ErrNotExist)
	}
	return matches[0], nil
}
