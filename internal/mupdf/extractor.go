package mupdf

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Extractor handles text extraction using the MuPDF command line tools
type Extractor struct {
	Binary string
}

// NewExtractor creates a mutool-backed extractor; an empty binary means "mutool" on PATH.
func NewExtractor(binary string) *Extractor {
	if binary == "" {
		binary = "mutool"
	}
	return &Extractor{Binary: binary}
}

func (e *Extractor) Name() string { return "mutool" }

// IsAvailable checks if MuPDF tools are available
func (e *Extractor) IsAvailable() bool {
	_, err := exec.LookPath(e.Binary)
	return err == nil
}

// GetPageCount returns the number of pages in a PDF
func (e *Extractor) GetPageCount(pdfPath string) (int, error) {
	log.Debug().Str("pdf", pdfPath).Msg("Getting page count with mutool")

	output, err := exec.Command(e.Binary, "info", pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get PDF info with mutool: %w", err)
	}
	if n, ok := parsePagesLine(string(output)); ok {
		return n, nil
	}

	// mutool pages prints one line per page
	output, err = exec.Command(e.Binary, "pages", pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return countPageLines(string(output)), nil
}

// ReadText extracts all text with `mutool draw -F txt` and reports the page count.
func (e *Extractor) ReadText(pdfPath string) (string, int, error) {
	log.Debug().Str("pdf", pdfPath).Msg("Extracting all text with MuPDF")

	output, err := exec.Command(e.Binary, "draw", "-F", "txt", pdfPath).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", 0, fmt.Errorf("mutool failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", 0, fmt.Errorf("failed to extract text with mutool: %w", err)
	}

	pages, err := e.GetPageCount(pdfPath)
	if err != nil {
		return "", 0, err
	}

	// form feeds separate pages in mutool's text device
	text := strings.ReplaceAll(string(output), "\f", "\n\n")
	log.Debug().Int("chars", len(text)).Int("pages", pages).Msg("Extracted text from PDF")

	return text, pages, nil
}

// parsePagesLine finds "Pages: N" in mutool info output.
func parsePagesLine(out string) (int, bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		if n, err := strconv.Atoi(parts[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

func countPageLines(out string) int {
	out = strings.TrimSpace(out)
	if out == "" {
		return 0
	}
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "<page ") || strings.HasPrefix(strings.TrimSpace(line), "page") {
			n++
		}
	}
	if n == 0 {
		n = len(strings.Split(out, "\n"))
	}
	return n
}
