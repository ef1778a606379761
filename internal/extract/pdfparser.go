package extract

import (
    "bytes"
    "fmt"
    "net/url"
    "strings"
    "unicode"

    "github.com/ledongthuc/pdf"
    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// minPrintableRatio below which decoded runs are treated as unreadable glyph
// ids (fonts without a usable encoding). The fallback engines resolve those.
const minPrintableRatio = 0.6

// tjWordGap is the TJ adjustment, in thousandths of an em, read as a space.
const tjWordGap = -250

// PDFParser counts pages with pdfcpu and walks each page's content stream
// with the ledongthuc interpreter, decoding shown strings through the
// selected font's encoding.
type PDFParser struct{}

func NewPDFParser() *PDFParser { return &PDFParser{} }

func (p *PDFParser) ParsePages(data []byte) (doc *ParsedDocument, err error) {
    // the interpreter panics on malformed operators
    defer func() {
        if r := recover(); r != nil {
            doc, err = nil, fmt.Errorf("content stream: %v", r)
        }
    }()

    count, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
    if err != nil { return nil, fmt.Errorf("pdfcpu page count: %w", err) }
    rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil { return nil, fmt.Errorf("open pdf: %w", err) }

    doc = &ParsedDocument{NumPages: count, Pages: make([]ParsedPage, 0, count)}
    var all strings.Builder
    for i := 1; i <= count; i++ {
        var page ParsedPage
        if i <= rd.NumPage() {
            if pg := rd.Page(i); !pg.V.IsNull() { page = readPage(pg) }
        }
        doc.Pages = append(doc.Pages, page)
        collect(&all, page)
    }

    if s := all.String(); s != "" {
        if r := printableRatio(s); r < minPrintableRatio {
            return nil, fmt.Errorf("content stream text is not decodable (printable ratio %.2f)", r)
        }
    }
    return doc, nil
}

// pageText accumulates shown strings. Strings shown inside BT/ET form one
// run group per text object; strings outside any text object are fills.
type pageText struct {
    page   ParsedPage
    group  []string
    inText bool
}

func (t *pageText) show(s string) {
    if s == "" { return }
    enc := url.PathEscape(s)
    if t.inText {
        t.group = append(t.group, enc)
    } else {
        t.page.Fills = append(t.page.Fills, enc)
    }
}

func (t *pageText) endGroup() {
    if len(t.group) > 0 { t.page.Texts = append(t.page.Texts, t.group) }
    t.group = nil
}

func readPage(pg pdf.Page) ParsedPage {
    t := &pageText{}
    var enc pdf.TextEncoding
    decode := func(raw string) string {
        if enc == nil { return raw }
        return enc.Decode(raw)
    }

    run := func(strm pdf.Value) {
        pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
            n := stk.Len()
            args := make([]pdf.Value, n)
            for i := n - 1; i >= 0; i-- { args[i] = stk.Pop() }

            switch op {
            case "BT":
                t.endGroup()
                t.inText = true
            case "ET":
                t.endGroup()
                t.inText = false
            case "Tf":
                if n == 2 { enc = pg.Font(args[0].Name()).Encoder() }
            case "Tj", "'", "\"":
                if n > 0 { t.show(decode(args[n-1].RawString())) }
            case "TJ":
                if n > 0 { t.show(joinTJ(args[n-1], decode)) }
            }
        })
    }

    contents := pg.V.Key("Contents")
    switch contents.Kind() {
    case pdf.Array:
        for i := 0; i < contents.Len(); i++ { run(contents.Index(i)) }
    case pdf.Stream:
        run(contents)
    }
    t.endGroup()
    return t.page
}

func joinTJ(arr pdf.Value, decode func(string) string) string {
    var b strings.Builder
    for i := 0; i < arr.Len(); i++ {
        x := arr.Index(i)
        if x.Kind() == pdf.String {
            b.WriteString(decode(x.RawString()))
            continue
        }
        if x.Float64() <= tjWordGap && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") { b.WriteByte(' ') }
    }
    return b.String()
}

func collect(b *strings.Builder, p ParsedPage) {
    for _, f := range p.Fills {
        if t, err := url.PathUnescape(f); err == nil { b.WriteString(t) }
    }
    for _, g := range p.Texts {
        for _, r := range g {
            if t, err := url.PathUnescape(r); err == nil { b.WriteString(t) }
        }
    }
}

func printableRatio(s string) float64 {
    total, ok := 0, 0
    for _, r := range s {
        total++
        if r == unicode.ReplacementChar { continue }
        if unicode.IsPrint(r) || unicode.IsSpace(r) { ok++ }
    }
    if total == 0 { return 1 }
    return float64(ok) / float64(total)
}
