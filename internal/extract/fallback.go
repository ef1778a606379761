package extract

import (
    "context"
    "fmt"
    "math"
    "os"
    "unicode/utf8"

    "github.com/local/pdfdeck/internal/content"
    "github.com/rs/zerolog/log"
)

// TempPrefix names the temp files written by the fallback stage; CleanupTemps sweeps them.
const TempPrefix = "pdfdeck-"

// TextEngine reads a PDF file as plain text and reports its page count.
type TextEngine interface {
    Name() string
    ReadText(path string) (string, int, error)
}

// FallbackExtractor hands the document to a plain-text engine through a temp
// file. Page boundaries are estimated.
type FallbackExtractor struct {
    engine  TextEngine
    tempDir string
}

// NewFallback builds the stage; an empty tempDir means os.TempDir().
func NewFallback(engine TextEngine, tempDir string) *FallbackExtractor {
    return &FallbackExtractor{engine: engine, tempDir: tempDir}
}

func (f *FallbackExtractor) Stage() content.Stage { return content.StageFallback }

func (f *FallbackExtractor) Extract(ctx context.Context, data []byte) (out *content.ExtractedContent, err error) {
    tmp, err := os.CreateTemp(f.tempDir, TempPrefix+"*.pdf")
    if err != nil { return nil, fallbackError(fmt.Errorf("create temp: %w", err)) }
    path := tmp.Name()
    defer os.Remove(path)

    defer func() {
        if r := recover(); r != nil {
            out, err = nil, fallbackError(fmt.Errorf("%s panic: %v", f.engine.Name(), r))
        }
    }()

    if _, err := tmp.Write(data); err != nil {
        tmp.Close()
        return nil, fallbackError(fmt.Errorf("write temp: %w", err))
    }
    if err := tmp.Close(); err != nil { return nil, fallbackError(fmt.Errorf("close temp: %w", err)) }

    text, pages, err := f.engine.ReadText(path)
    if err != nil { return nil, fallbackError(fmt.Errorf("%s: %w", f.engine.Name(), err)) }
    if pages < 1 { pages = 1 }

    out = content.New(text, EstimatePageBreaks(text, pages), pages, content.StageFallback)
    log.Debug().Str("engine", f.engine.Name()).Int("pages", pages).Int("chars", len(text)).Msg("fallback extraction complete")
    return out, nil
}

// EstimatePageBreaks spreads numPages-1 offsets evenly over the bytes of
// text: floor(avg*(i+1)) with avg = len(text)/numPages, moved back to the
// start of the rune it lands in. Offsets that would not be strictly
// increasing or would fall outside the text are dropped, so short texts may
// carry fewer breaks than pages.
func EstimatePageBreaks(text string, numPages int) []int {
    breaks := []int{}
    textLen := len(text)
    if numPages <= 1 || textLen <= 0 { return breaks }
    avg := float64(textLen) / float64(numPages)
    prev := -1
    for i := 0; i < numPages-1; i++ {
        off := int(math.Floor(avg * float64(i+1)))
        if off >= textLen { continue }
        for off > 0 && !utf8.RuneStart(text[off]) { off-- }
        if off <= prev { continue }
        breaks = append(breaks, off)
        prev = off
    }
    return breaks
}
