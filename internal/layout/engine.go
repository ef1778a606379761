package layout

import (
    "github.com/local/pdfdeck/internal/content"
    "github.com/rs/zerolog/log"
)

// EmptyNotice is the single block emitted when a document produced nothing to place.
const EmptyNotice = "No readable content was found in this document."

// Options holds slide geometry in inches.
type Options struct {
    PageHeight     float64 `yaml:"page_height"`
    TopMargin      float64 `yaml:"top_margin"`
    LeftMargin     float64 `yaml:"left_margin"`
    ContentWidth   float64 `yaml:"content_width"`
    TableRowHeight float64 `yaml:"table_row_height"`
}

// DefaultOptions matches a 10 x 7.5 inch slide.
func DefaultOptions() Options {
    return Options{PageHeight: 7.0, TopMargin: 0.5, LeftMargin: 0.5, ContentWidth: 9.0, TableRowHeight: 0.4}
}

// Block is a positioned element on a page: a *TextBlock or a *TableBlock.
type Block interface {
    Top() float64
    block()
}

type TextBlock struct {
    Content string
    Format  content.FormatHint
    X, Y    float64
    W, H    float64
}

func (b *TextBlock) Top() float64 { return b.Y }
func (*TextBlock) block()         {}

// TableBlock places one detected table. ColWidths are ratios summing to 1.
// AutoPage lets the renderer continue rows that overflow onto extra slides.
type TableBlock struct {
    Table     content.Table
    X, Y      float64
    W         float64
    ColWidths []float64
    RowHeight float64
    AutoPage  bool
}

func (b *TableBlock) Top() float64 { return b.Y }
func (*TableBlock) block()         {}

type Page struct {
    Blocks []Block
}

type Engine struct {
    opts Options
}

func New(opts Options) *Engine {
    d := DefaultOptions()
    if opts.PageHeight <= 0 { opts.PageHeight = d.PageHeight }
    if opts.TopMargin < 0 { opts.TopMargin = d.TopMargin }
    if opts.LeftMargin < 0 { opts.LeftMargin = d.LeftMargin }
    if opts.ContentWidth <= 0 { opts.ContentWidth = d.ContentWidth }
    if opts.TableRowHeight <= 0 { opts.TableRowHeight = d.TableRowHeight }
    return &Engine{opts: opts}
}

func (e *Engine) Options() Options { return e.opts }

// Advance is the vertical space a paragraph takes at the given size.
func Advance(sizePt float64) float64 { return (sizePt/12)*0.5 + 0.2 }

// Layout places paragraphs greedily top to bottom, then gives every table a
// page of its own. A page-break sentinel always closes the current page, so a
// blank source page yields an empty slide. A document with nothing to place
// gets a single notice page instead.
func (e *Engine) Layout(c *content.ExtractedContent) []Page {
    var pages []Page
    cur := Page{}
    y := e.opts.TopMargin
    overflow := false
    placed := 0

    flush := func(keepEmpty bool) {
        if keepEmpty || len(cur.Blocks) > 0 { pages = append(pages, cur) }
        cur = Page{}
        y = e.opts.TopMargin
        overflow = false
    }

    // the last page is kept when a sentinel opened it
    broken := false
    for _, p := range c.Paragraphs {
        if content.IsPageBreak(p) {
            flush(true)
            broken = true
            continue
        }
        if overflow { flush(false) }
        f := p.Format
        if f.SizePt <= 0 { f = content.DefaultFormat }
        h := Advance(f.SizePt)
        cur.Blocks = append(cur.Blocks, &TextBlock{
            Content: p.Content,
            Format:  f,
            X:       e.opts.LeftMargin,
            Y:       y,
            W:       e.opts.ContentWidth,
            H:       h,
        })
        placed++
        y += h
        // the overflowing block stays; the next one opens a new page
        if y > e.opts.PageHeight { overflow = true }
    }
    flush(broken)
    if placed == 0 { pages = nil }

    for _, t := range c.Tables {
        pages = append(pages, Page{Blocks: []Block{e.tableBlock(t)}})
    }

    if len(pages) == 0 {
        pages = append(pages, Page{Blocks: []Block{&TextBlock{
            Content: EmptyNotice,
            Format:  content.DefaultFormat,
            X:       e.opts.LeftMargin,
            Y:       e.opts.TopMargin,
            W:       e.opts.ContentWidth,
            H:       Advance(content.DefaultFormat.SizePt),
        }}})
    }

    log.Debug().Int("paragraphs", len(c.Paragraphs)).Int("tables", len(c.Tables)).Int("pages", len(pages)).Msg("layout complete")
    return pages
}

func (e *Engine) tableBlock(t content.Table) *TableBlock {
    cols := t.Columns()
    widths := make([]float64, cols)
    for i := range widths {
        widths[i] = 1 / float64(cols)
    }
    return &TableBlock{
        Table:     t,
        X:         e.opts.LeftMargin,
        Y:         e.opts.TopMargin,
        W:         e.opts.ContentWidth,
        ColWidths: widths,
        RowHeight: e.opts.TableRowHeight,
        AutoPage:  true,
    }
}
