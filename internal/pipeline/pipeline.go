// Package pipeline runs one conversion end to end: validate, extract (with an
// optional cache), detect tables, lay out pages and render them.
package pipeline

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfdeck/internal/content"
    "github.com/local/pdfdeck/internal/extract"
    "github.com/local/pdfdeck/internal/filetype"
    "github.com/local/pdfdeck/internal/layout"
    "github.com/local/pdfdeck/internal/metrics"
    "github.com/local/pdfdeck/internal/pdftest"
    "github.com/local/pdfdeck/internal/render"
    "github.com/local/pdfdeck/internal/tables"
)

// Extractor produces content from raw bytes and never fails.
type Extractor interface {
    ExtractWithReport(ctx context.Context, data []byte) (*content.ExtractedContent, extract.Report)
}

// Cache stores extraction results across conversions of identical bytes.
type Cache interface {
    Get(ctx context.Context, data []byte) (*content.ExtractedContent, bool, error)
    Put(ctx context.Context, data []byte, ec *content.ExtractedContent) error
}

// Prober diagnoses documents that yielded no text.
type Prober interface {
    HasExtractableText(data []byte) (bool, *pdftest.Diagnostics, error)
}

type Input struct {
    Data        []byte
    Name        string
    ContentType string
    Format      string
}

type Result struct {
    Output      []byte
    Format      string
    ContentType string
    FileName    string
    Content     *content.ExtractedContent
    Pages       int
    Report      extract.Report
    CacheHit    bool
    Diagnostics *pdftest.Diagnostics
    Duration    time.Duration
}

type Converter struct {
    extractor Extractor
    layout    *layout.Engine
    renderers *render.Set
    validator *filetype.Detector
    cache     Cache
    prober    Prober
}

type Option func(*Converter)

func WithValidator(d *filetype.Detector) Option { return func(c *Converter) { c.validator = d } }
func WithCache(cache Cache) Option              { return func(c *Converter) { c.cache = cache } }
func WithProber(p Prober) Option                { return func(c *Converter) { c.prober = p } }

func New(extractor Extractor, engine *layout.Engine, renderers *render.Set, opts ...Option) *Converter {
    c := &Converter{extractor: extractor, layout: engine, renderers: renderers}
    for _, o := range opts { o(c) }
    return c
}

// Formats lists the output formats this converter can produce.
func (c *Converter) Formats() []string { return c.renderers.Formats() }

// Convert returns either a complete rendered document or one error: a
// *filetype.ValidationError for rejected input, otherwise a *ConversionError.
func (c *Converter) Convert(ctx context.Context, in Input) (*Result, error) {
    start := time.Now()
    if c.validator != nil {
        if err := c.validator.Validate(in.Data, in.ContentType); err != nil {
            return nil, err
        }
    }
    r, err := c.renderers.Get(in.Format)
    if err != nil {
        return nil, &filetype.ValidationError{Field: "format", Reason: err.Error()}
    }

    res := &Result{Format: r.Format(), ContentType: r.ContentType(), FileName: OutputName(in.Name, r.Format())}
    res.Content, res.Report, res.CacheHit = c.extract(ctx, in.Data)

    if res.Content.Source == content.StagePlaceholder && c.prober != nil {
        res.Diagnostics = c.diagnose(in.Data)
    }

    // Detection works on a copy so cached content is never mutated.
    ec := *res.Content
    ec.Tables = tables.Detect(ec.Text)
    res.Content = &ec
    metrics.AddTables(len(ec.Tables))

    pages := c.layout.Layout(&ec)
    res.Pages = len(pages)
    metrics.ObservePages(len(pages))

    out, err := r.Render(ctx, pages, render.Meta{Title: title(in.Name)})
    if err != nil {
        if res.Diagnostics.ImageBased() {
            err = fmt.Errorf("%w (document looks image-based)", err)
        }
        cerr := newConversionError("render", err)
        metrics.ObserveConversion(r.Format(), "error", time.Since(start))
        zerolog.Ctx(ctx).Error().Err(err).Str("format", r.Format()).Str("hint", cerr.Hint).Msg("conversion failed")
        return nil, cerr
    }
    res.Output = out
    res.Duration = time.Since(start)
    metrics.ObserveConversion(r.Format(), "success", res.Duration)
    zerolog.Ctx(ctx).Info().
        Str("format", r.Format()).
        Str("stage", string(ec.Source)).
        Int("pages", res.Pages).
        Int("tables", len(ec.Tables)).
        Int("bytes", len(out)).
        Bool("cache_hit", res.CacheHit).
        Dur("took", res.Duration).
        Msg("conversion complete")
    return res, nil
}

func (c *Converter) extract(ctx context.Context, data []byte) (*content.ExtractedContent, extract.Report, bool) {
    if c.cache != nil {
        ec, ok, err := c.cache.Get(ctx, data)
        switch {
        case err != nil:
            metrics.IncCache("error")
            log.Warn().Err(err).Msg("extraction cache lookup failed")
        case ok:
            metrics.IncCache("hit")
            return ec, extract.Report{Stage: ec.Source}, true
        default:
            metrics.IncCache("miss")
        }
    }
    ec, rep := c.extractor.ExtractWithReport(ctx, data)
    if c.cache != nil {
        if err := c.cache.Put(ctx, data, ec); err != nil {
            log.Warn().Err(err).Msg("extraction cache store failed")
        }
    }
    return ec, rep, false
}

func (c *Converter) diagnose(data []byte) *pdftest.Diagnostics {
    ok, diag, err := c.prober.HasExtractableText(data)
    if err != nil {
        log.Warn().Err(err).Msg("text probe failed")
        return nil
    }
    if !ok {
        log.Warn().Int("pages", diag.TotalPages).Int("chars", diag.TotalCharsInSample).Msg("document looks image-based")
    }
    return diag
}

// OutputName swaps the extension of the uploaded file name for format.
func OutputName(name, format string) string {
    base := title(name)
    if base == "" { base = "presentation" }
    return base + "." + format
}

func title(name string) string {
    name = strings.TrimSpace(name)
    if i := strings.LastIndexAny(name, `/\`); i >= 0 { name = name[i+1:] }
    if i := strings.LastIndexByte(name, '.'); i > 0 { name = name[:i] }
    return name
}
