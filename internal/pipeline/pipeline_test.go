package pipeline

import (
    "archive/zip"
    "bytes"
    "context"
    "errors"
    "strings"
    "testing"

    "github.com/local/pdfdeck/internal/content"
    "github.com/local/pdfdeck/internal/extract"
    "github.com/local/pdfdeck/internal/filetype"
    "github.com/local/pdfdeck/internal/layout"
    "github.com/local/pdfdeck/internal/pdftest"
    "github.com/local/pdfdeck/internal/render"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type fakeExtractor struct {
    out   *content.ExtractedContent
    calls int
}

func (f *fakeExtractor) ExtractWithReport(context.Context, []byte) (*content.ExtractedContent, extract.Report) {
    f.calls++
    return f.out, extract.Report{Stage: f.out.Source}
}

type fakeCache struct {
    entries map[string]*content.ExtractedContent
    puts    int
}

func (c *fakeCache) Get(_ context.Context, data []byte) (*content.ExtractedContent, bool, error) {
    ec, ok := c.entries[string(data)]
    return ec, ok, nil
}

func (c *fakeCache) Put(_ context.Context, data []byte, ec *content.ExtractedContent) error {
    c.puts++
    c.entries[string(data)] = ec
    return nil
}

type fakeProber struct {
    diag  *pdftest.Diagnostics
    calls int
}

func (p *fakeProber) HasExtractableText([]byte) (bool, *pdftest.Diagnostics, error) {
    p.calls++
    return p.diag.HasExtractableText, p.diag, nil
}

type failingConv struct{ err error }

func (f failingConv) ConvertPPTXToPDF(context.Context, []byte) ([]byte, error) { return nil, f.err }

const reportText = "Quarterly report\n\nName    Age\nAlice    30\nBob    25\n\n--- Page Break ---\n\nClosing remarks"

func newConverter(ex Extractor, conv render.PDFConverter, opts ...Option) *Converter {
    return New(ex, layout.New(layout.DefaultOptions()), render.NewSet(render.DefaultOptions(), conv), opts...)
}

func slideCount(t *testing.T, data []byte) int {
    t.Helper()
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil {
        t.Fatalf("output is not a zip package: %v", err)
    }
    n := 0
    for _, f := range zr.File {
        if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
            n++
        }
    }
    return n
}

func TestConvertEndToEnd(t *testing.T) {
    ex := &fakeExtractor{out: content.New(reportText, []int{60}, 2, content.StageStructured)}
    c := newConverter(ex, nil, WithValidator(filetype.New(0)))

    res, err := c.Convert(context.Background(), Input{Data: pdfBytes, Name: "q3/report.pdf", ContentType: "application/pdf"})
    if err != nil {
        t.Fatal(err)
    }
    if res.Format != render.FormatPPTX || res.FileName != "report.pptx" {
        t.Fatalf("format %q file %q", res.Format, res.FileName)
    }
    if len(res.Content.Tables) != 1 || len(res.Content.Tables[0].Rows) != 3 {
        t.Fatalf("tables %+v", res.Content.Tables)
    }
    // two text pages split by the sentinel plus one table page
    if res.Pages != 3 || slideCount(t, res.Output) != 3 {
        t.Fatalf("pages %d slides %d", res.Pages, slideCount(t, res.Output))
    }
    if len(ex.out.Tables) != 0 {
        t.Fatal("extractor output was mutated")
    }
}

func TestConvertRejectsInput(t *testing.T) {
    ex := &fakeExtractor{out: content.New("x", nil, 1, content.StageStructured)}
    c := newConverter(ex, nil, WithValidator(filetype.New(0)))

    var verr *filetype.ValidationError
    if _, err := c.Convert(context.Background(), Input{Data: []byte("hello world")}); !errors.As(err, &verr) {
        t.Fatalf("plain text: %v", err)
    }
    if _, err := c.Convert(context.Background(), Input{Data: pdfBytes, Format: "docx"}); !errors.As(err, &verr) || verr.Field != "format" {
        t.Fatalf("unknown format: %v", err)
    }
    if _, err := c.Convert(context.Background(), Input{Data: pdfBytes, Format: "pdf"}); !errors.As(err, &verr) {
        t.Fatalf("pdf without converter: %v", err)
    }
    if ex.calls != 0 {
        t.Fatalf("extractor ran %d times for rejected input", ex.calls)
    }
}

func TestConvertUsesCache(t *testing.T) {
    ex := &fakeExtractor{out: content.New(reportText, nil, 2, content.StageFallback)}
    cache := &fakeCache{entries: map[string]*content.ExtractedContent{}}
    c := newConverter(ex, nil, WithCache(cache))

    first, err := c.Convert(context.Background(), Input{Data: pdfBytes})
    if err != nil || first.CacheHit {
        t.Fatalf("first: %v hit=%v", err, first.CacheHit)
    }
    second, err := c.Convert(context.Background(), Input{Data: pdfBytes, Format: "XLSX"})
    if err != nil || !second.CacheHit {
        t.Fatalf("second: %v hit=%v", err, second != nil && second.CacheHit)
    }
    if ex.calls != 1 || cache.puts != 1 {
        t.Fatalf("extractor calls %d puts %d", ex.calls, cache.puts)
    }
    if second.Report.Stage != content.StageFallback || len(second.Content.Tables) != 1 {
        t.Fatalf("cached result %+v", second.Report)
    }
    if len(cache.entries[string(pdfBytes)].Tables) != 0 {
        t.Fatal("cached entry was mutated")
    }
}

func TestPlaceholderRunsProbe(t *testing.T) {
    ex := &fakeExtractor{out: extract.Placeholder()}
    prober := &fakeProber{diag: &pdftest.Diagnostics{TotalPages: 4, Threshold: 300}}
    c := newConverter(ex, nil, WithProber(prober))

    res, err := c.Convert(context.Background(), Input{Data: pdfBytes})
    if err != nil {
        t.Fatal(err)
    }
    if prober.calls != 1 || !res.Diagnostics.ImageBased() {
        t.Fatalf("text checks %d diag %+v", prober.calls, res.Diagnostics)
    }
    if res.Pages != 1 {
        t.Fatalf("placeholder pages %d", res.Pages)
    }

    ex.out = content.New("text", nil, 1, content.StageStructured)
    if _, err := c.Convert(context.Background(), Input{Data: pdfBytes}); err != nil || prober.calls != 1 {
        t.Fatalf("text check ran for extracted text: %v calls=%d", err, prober.calls)
    }
}

func TestRenderFailureHints(t *testing.T) {
    cases := []struct {
        name    string
        out     *content.ExtractedContent
        diag    *pdftest.Diagnostics
        convErr error
        hint    string
    }{
        {"password", content.New("t", nil, 1, content.StageStructured), nil, errors.New("source is Password protected"), HintPassword},
        {"image", extract.Placeholder(), &pdftest.Diagnostics{TotalPages: 2}, errors.New("soffice exit status 1"), HintImageBased},
        {"generic", content.New("t", nil, 1, content.StageStructured), nil, errors.New("soffice exit status 1"), HintGeneric},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            var opts []Option
            if tc.diag != nil {
                opts = append(opts, WithProber(&fakeProber{diag: tc.diag}))
            }
            c := newConverter(&fakeExtractor{out: tc.out}, failingConv{tc.convErr}, opts...)
            res, err := c.Convert(context.Background(), Input{Data: pdfBytes, Format: "pdf"})
            var cerr *ConversionError
            if res != nil || !errors.As(err, &cerr) {
                t.Fatalf("res %v err %v", res, err)
            }
            if cerr.Op != "render" || cerr.Hint != tc.hint || !errors.Is(err, tc.convErr) {
                t.Fatalf("op %q hint %q err %v", cerr.Op, cerr.Hint, err)
            }
        })
    }
}

func TestOutputName(t *testing.T) {
    cases := map[string]string{
        "report.pdf":          "report.pptx",
        `C:\docs\Deck.v2.PDF`: "Deck.v2.pptx",
        "":                    "presentation.pptx",
    }
    for in, want := range cases {
        if got := OutputName(in, "pptx"); got != want {
            t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
        }
    }
}

func TestHintFor(t *testing.T) {
    if HintFor(nil) != "" {
        t.Fatal("nil error has a hint")
    }
    if HintFor(errors.New("document looks IMAGE-BASED")) != HintImageBased {
        t.Fatal("image-based not matched case-insensitively")
    }
}
