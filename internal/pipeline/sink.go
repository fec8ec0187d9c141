package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
)

// DirSink writes successful pages to the chapter output directory.
type DirSink struct {
	Home *home.Dir
}

var _ PageSink = (*DirSink)(nil)

// SavePage writes out.Image as page_NNNN.<ext>, replacing any earlier
// output of the same page.
func (s *DirSink) SavePage(_ context.Context, chapterID string, out *PageOutcome) error {
	if err := os.MkdirAll(s.Home.OutputDir(chapterID), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if old, err := s.Home.FindOutputPage(chapterID, out.Page); err == nil {
		os.Remove(old)
	}
	path := s.Home.OutputPagePath(chapterID, out.Page, ExtensionFor(out.ContentType))
	if err := os.WriteFile(path, out.Image, 0o644); err != nil {
		return fmt.Errorf("failed to write page %d: %w", out.Page, err)
	}
	return nil
}

// ExtensionFor maps an image content type to a file extension.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	default:
		return "png"
	}
}
