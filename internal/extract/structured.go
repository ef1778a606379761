package extract

import (
    "context"
    "fmt"
    "net/url"
    "strings"

    "github.com/local/pdfdeck/internal/content"
    "github.com/rs/zerolog/log"
)

// ParsedPage is one page as a structured parser reports it. Fills and runs
// carry percent-encoded text; Texts holds one run group per text object.
type ParsedPage struct {
    Fills []string
    Texts [][]string
}

// ParsedDocument holds every page in order. NumPages is the count the
// parser reports; zero means len(Pages).
type ParsedDocument struct {
    NumPages int
    Pages    []ParsedPage
}

// PageParser turns raw PDF bytes into pages of text runs. A returned error
// is a data error: the bytes could not be read as a PDF.
type PageParser interface {
    ParsePages(data []byte) (*ParsedDocument, error)
}

// pageBreakBlock surrounds the sentinel with paragraph separators so it
// always ends up as its own paragraph.
const pageBreakBlock = content.ParagraphSeparator + content.PageBreakSentinel + content.ParagraphSeparator

// StructuredExtractor rebuilds text from a page/run stream. Page boundaries
// are exact.
type StructuredExtractor struct {
    parser PageParser
}

func NewStructured(p PageParser) *StructuredExtractor {
    return &StructuredExtractor{parser: p}
}

func (s *StructuredExtractor) Stage() content.Stage { return content.StageStructured }

func (s *StructuredExtractor) Extract(ctx context.Context, data []byte) (out *content.ExtractedContent, err error) {
    defer func() {
        if r := recover(); r != nil {
            out, err = nil, parseError(fmt.Errorf("parser panic: %v", r))
        }
    }()

    doc, err := s.parser.ParsePages(data)
    if err != nil { return nil, parseError(err) }
    if doc == nil { return nil, parseError(fmt.Errorf("parser returned no document")) }
    numPages := doc.NumPages
    if numPages == 0 { numPages = len(doc.Pages) }
    if numPages != len(doc.Pages) {
        return nil, parseError(fmt.Errorf("parser reported %d pages but returned %d", numPages, len(doc.Pages)))
    }

    var b strings.Builder
    breaks := make([]int, 0, len(doc.Pages))
    for i, page := range doc.Pages {
        if i > 0 {
            breaks = append(breaks, b.Len())
            b.WriteString(pageBreakBlock)
        }
        for _, f := range page.Fills {
            t, err := url.PathUnescape(f)
            if err != nil { return nil, parseError(fmt.Errorf("page %d fill: %w", i+1, err)) }
            b.WriteString(t)
            b.WriteString(" ")
        }
        for _, group := range page.Texts {
            for _, run := range group {
                t, err := url.PathUnescape(run)
                if err != nil { return nil, parseError(fmt.Errorf("page %d text run: %w", i+1, err)) }
                b.WriteString(t)
                b.WriteString(" ")
            }
            b.WriteString("\n")
        }
    }

    out = content.New(b.String(), breaks, numPages, content.StageStructured)
    log.Debug().Int("pages", out.NumPages).Int("chars", len(out.Text)).Int("paragraphs", len(out.Paragraphs)).Msg("structured extraction complete")
    return out, nil
}
