package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageText is the extracted plain text of one PDF page
type PageText struct {
	Page int
	Text string
}

// PageExtractor turns raw PDF bytes into per-page text
type PageExtractor interface {
	ExtractPages(data []byte) ([]PageText, error)
}

// PDFExtractor extracts per-page text from PDF bytes
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns the text of every page that yields any. A file that
// cannot be parsed, or where no page yields text, is a structural failure:
// the document can never be processed, retrying will not help.
func (e *PDFExtractor) ExtractPages(data []byte) (pages []PageText, err error) {
	// The parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = StructuralErr("extraction", fmt.Errorf("failed to parse PDF: %v", r))
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return nil, StructuralErr("extraction", fmt.Errorf("failed to parse PDF: %w", rerr))
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, terr := page.GetPlainText(nil)
		if terr != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, PageText{Page: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, StructuralErr("extraction", fmt.Errorf("no readable text in PDF (%d pages)", numPages))
	}

	return pages, nil
}
