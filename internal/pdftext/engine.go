// Package pdftext reads plain text with the pure-Go ledongthuc/pdf reader.
// It needs no cgo and no external binaries.
package pdftext

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "ledongthuc" }

func (e *Engine) IsAvailable() bool { return true }

// ReadText returns the document's plain text and page count. Pages that fail
// to decode are skipped.
func (e *Engine) ReadText(path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	var buf bytes.Buffer
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("pdftext: page skipped")
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), total, nil
}
