package mupdf

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// GoFitzExtractor reads PDF text through the MuPDF library bundled with go-fitz (no external tools needed)
type GoFitzExtractor struct{}

func NewGoFitzExtractor() *GoFitzExtractor {
	return &GoFitzExtractor{}
}

// IsAvailable always returns true since go-fitz is embedded
func (g *GoFitzExtractor) IsAvailable() bool {
	return true
}

func (g *GoFitzExtractor) Name() string { return "fitz" }

// GetPageCount returns the number of pages in a PDF using go-fitz
func (g *GoFitzExtractor) GetPageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// ReadText returns the whole document as plain text, pages joined by a
// blank line, together with the page count.
func (g *GoFitzExtractor) ReadText(pdfPath string) (string, int, error) {
	log.Debug().Str("pdf", pdfPath).Msg("Extracting all text with go-fitz")

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	var result strings.Builder
	for i := 0; i < n; i++ {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("Failed to extract text from page")
			continue
		}
		if result.Len() > 0 {
			result.WriteString("\n\n")
		}
		result.WriteString(text)
	}

	text := result.String()
	log.Debug().Int("chars", len(text)).Int("pages", n).Msg("Extracted text from PDF")

	return text, n, nil
}
