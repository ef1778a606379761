package render

import (
    "context"
    "fmt"
    "strings"

    "github.com/local/pdfdeck/internal/layout"
)

// Output formats.
const (
    FormatPPTX = "pptx"
    FormatPDF  = "pdf"
    FormatXLSX = "xlsx"
)

// Meta carries document-level properties written into the output.
type Meta struct {
    Title  string
    Author string
}

// Renderer serializes laid-out pages into a document.
type Renderer interface {
    Format() string
    ContentType() string
    Render(ctx context.Context, pages []layout.Page, meta Meta) ([]byte, error)
}

// Options controls slide geometry and text styling, in inches where relevant.
type Options struct {
    SlideWidth   float64 `yaml:"slide_width"`
    SlideHeight  float64 `yaml:"slide_height"`
    BottomMargin float64 `yaml:"bottom_margin"`
    TextColor    string  `yaml:"text_color"`
    TableFontPt  float64 `yaml:"table_font_pt"`
    RepeatHeader bool    `yaml:"repeat_header"`
}

func DefaultOptions() Options {
    return Options{SlideWidth: 10, SlideHeight: 7.5, BottomMargin: 0.5, TextColor: "363636", TableFontPt: 10}
}

func (o Options) withDefaults() Options {
    d := DefaultOptions()
    if o.SlideWidth <= 0 { o.SlideWidth = d.SlideWidth }
    if o.SlideHeight <= 0 { o.SlideHeight = d.SlideHeight }
    if o.BottomMargin < 0 { o.BottomMargin = d.BottomMargin }
    if len(o.TextColor) != 6 { o.TextColor = d.TextColor }
    if o.TableFontPt <= 0 { o.TableFontPt = d.TableFontPt }
    return o
}

// PDFConverter turns a PPTX package into a PDF.
type PDFConverter interface {
    ConvertPPTXToPDF(ctx context.Context, pptx []byte) ([]byte, error)
}

// Set resolves renderers by format name.
type Set struct {
    byFormat map[string]Renderer
}

// NewSet builds the available renderers; PDF output is only offered when a converter is given.
func NewSet(opts Options, conv PDFConverter) *Set {
    pptx := NewPPTX(opts)
    s := &Set{byFormat: map[string]Renderer{
        FormatPPTX: pptx,
        FormatXLSX: NewXLSX(),
    }}
    if conv != nil {
        s.byFormat[FormatPDF] = &PDF{pptx: pptx, conv: conv}
    }
    return s
}

func (s *Set) Get(format string) (Renderer, error) {
    f := strings.ToLower(strings.TrimSpace(format))
    if f == "" { f = FormatPPTX }
    r, ok := s.byFormat[f]
    if !ok { return nil, fmt.Errorf("unsupported output format %q", format) }
    return r, nil
}

func (s *Set) Formats() []string {
    out := make([]string, 0, len(s.byFormat))
    for _, f := range []string{FormatPPTX, FormatPDF, FormatXLSX} {
        if _, ok := s.byFormat[f]; ok { out = append(out, f) }
    }
    return out
}

// PDF renders a deck and converts it.
type PDF struct {
    pptx *PPTX
    conv PDFConverter
}

func (p *PDF) Format() string      { return FormatPDF }
func (p *PDF) ContentType() string { return "application/pdf" }

func (p *PDF) Render(ctx context.Context, pages []layout.Page, meta Meta) ([]byte, error) {
    deck, err := p.pptx.Render(ctx, pages, meta)
    if err != nil { return nil, err }
    out, err := p.conv.ConvertPPTXToPDF(ctx, deck)
    if err != nil { return nil, fmt.Errorf("pdf conversion: %w", err) }
    return out, nil
}
