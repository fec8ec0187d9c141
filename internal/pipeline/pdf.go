package pipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// LoadPDFPages returns one image per PDF page, in page order. Scanned
// chapters embed each page as a single image; when a page holds several,
// the largest one is taken as the page.
func LoadPDFPages(data []byte) ([][]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([][]byte, pageCount)
	areas := make([]int, pageCount)
	digest := func(img model.Image, _ bool, _ int) error {
		idx := img.PageNr - 1
		if idx < 0 || idx >= pageCount {
			return nil
		}
		area := img.Width * img.Height
		if pages[idx] != nil && area <= areas[idx] {
			return nil
		}
		b, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("failed to read image on page %d: %w", img.PageNr, err)
		}
		pages[idx], areas[idx] = b, area
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), nil, digest, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	for i, p := range pages {
		if p == nil {
			return nil, fmt.Errorf("page %d has no embedded image", i+1)
		}
	}
	return pages, nil
}
