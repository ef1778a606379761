package render

import (
    "archive/zip"
    "bytes"
    "context"
    "encoding/xml"
    "errors"
    "fmt"
    "io"
    "strings"
    "testing"

    "github.com/local/pdfdeck/internal/content"
    "github.com/local/pdfdeck/internal/layout"
    "github.com/xuri/excelize/v2"
)

func readZip(t *testing.T, data []byte) map[string]string {
    t.Helper()
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil {
        t.Fatalf("open zip: %v", err)
    }
    out := map[string]string{}
    for _, f := range zr.File {
        rc, err := f.Open()
        if err != nil {
            t.Fatal(err)
        }
        b, _ := io.ReadAll(rc)
        rc.Close()
        out[f.Name] = string(b)
    }
    return out
}

func wellFormed(t *testing.T, name, body string) {
    t.Helper()
    d := xml.NewDecoder(strings.NewReader(body))
    for {
        _, err := d.Token()
        if err == io.EOF {
            return
        }
        if err != nil {
            t.Fatalf("%s is not well-formed XML: %v", name, err)
        }
    }
}

func samplePages() []layout.Page {
    eng := layout.New(layout.DefaultOptions())
    c := content.New("Title & <intro>\n\n--- Page Break ---\n\nline one\nline two\x01", nil, 2, content.StageStructured)
    c.Tables = []content.Table{{Rows: [][]string{{"Name", "Age"}, {"Alice", "30"}, {"Bob"}}}}
    return eng.Layout(c)
}

func TestPPTXPackage(t *testing.T) {
    data, err := NewPPTX(DefaultOptions()).Render(context.Background(), samplePages(), Meta{Title: "Report"})
    if err != nil {
        t.Fatal(err)
    }
    files := readZip(t, data)
    for _, name := range []string{
        "[Content_Types].xml", "_rels/.rels", "ppt/presentation.xml", "ppt/_rels/presentation.xml.rels",
        "ppt/slideMasters/slideMaster1.xml", "ppt/slideLayouts/slideLayout1.xml", "ppt/theme/theme1.xml",
        "ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml",
    } {
        body, ok := files[name]
        if !ok {
            t.Fatalf("missing part %s", name)
        }
        wellFormed(t, name, body)
    }
    if _, ok := files["ppt/slides/slide4.xml"]; ok {
        t.Fatalf("unexpected fourth slide")
    }
    if !strings.Contains(files["ppt/slides/slide1.xml"], "Title &amp; &lt;intro&gt;") {
        t.Errorf("text not escaped: %s", files["ppt/slides/slide1.xml"])
    }
    if !strings.Contains(files["ppt/slides/slide1.xml"], `sz="1200"`) || !strings.Contains(files["ppt/slides/slide1.xml"], `typeface="Arial"`) {
        t.Errorf("format hint not applied")
    }
    s3 := files["ppt/slides/slide3.xml"]
    if !strings.Contains(s3, "<a:tbl>") || strings.Count(s3, "<a:tr ") != 3 || strings.Count(s3, "<a:gridCol ") != 2 {
        t.Errorf("table slide malformed: %s", s3)
    }
    if strings.Count(s3, "<a:tc>") != 6 {
        t.Errorf("ragged row not padded")
    }
    if !strings.Contains(files["docProps/core.xml"], "<dc:title>Report</dc:title>") {
        t.Errorf("title missing")
    }
}

func TestPPTXTableAutoPaging(t *testing.T) {
    rows := [][]string{{"h1", "h2"}}
    for i := 0; i < 39; i++ {
        rows = append(rows, []string{fmt.Sprintf("r%d", i), "v"})
    }
    c := &content.ExtractedContent{Tables: []content.Table{{Rows: rows}}}
    pages := layout.New(layout.DefaultOptions()).Layout(c)
    if len(pages) != 1 {
        t.Fatalf("layout pages %d", len(pages))
    }

    // (7.5 - 0.5 - 0.5) / 0.4 = 16 rows per slide: 40 rows need 3 slides
    data, err := NewPPTX(DefaultOptions()).Render(context.Background(), pages, Meta{})
    if err != nil {
        t.Fatal(err)
    }
    files := readZip(t, data)
    total := 0
    for i := 1; i <= 3; i++ {
        body, ok := files[fmt.Sprintf("ppt/slides/slide%d.xml", i)]
        if !ok {
            t.Fatalf("missing slide %d", i)
        }
        total += strings.Count(body, "<a:tr ")
    }
    if total != 40 {
        t.Fatalf("rows across slides: %d", total)
    }

    opts := DefaultOptions()
    opts.RepeatHeader = true
    data, err = NewPPTX(opts).Render(context.Background(), pages, Meta{})
    if err != nil {
        t.Fatal(err)
    }
    files = readZip(t, data)
    if !strings.Contains(files["ppt/slides/slide2.xml"], "<a:t>h1</a:t>") {
        t.Errorf("header not repeated on continuation slide")
    }
}

func TestPPTXNoPages(t *testing.T) {
    if _, err := NewPPTX(Options{}).Render(context.Background(), nil, Meta{}); err == nil {
        t.Fatal("expected error")
    }
}

func TestXLSXExport(t *testing.T) {
    data, err := NewXLSX().Render(context.Background(), samplePages(), Meta{Title: "Report"})
    if err != nil {
        t.Fatal(err)
    }
    f, err := excelize.OpenReader(bytes.NewReader(data))
    if err != nil {
        t.Fatal(err)
    }
    defer f.Close()
    rows, err := f.GetRows("Table 1")
    if err != nil {
        t.Fatal(err)
    }
    if len(rows) != 3 || rows[1][0] != "Alice" || rows[1][1] != "30" {
        t.Fatalf("table rows %q", rows)
    }
    text, err := f.GetRows(textSheet)
    if err != nil {
        t.Fatal(err)
    }
    if len(text) != 3 || text[1][1] != "Title & <intro>" {
        t.Fatalf("text rows %q", text)
    }
}

type fakeConv struct{ err error }

func (f fakeConv) ConvertPPTXToPDF(_ context.Context, pptx []byte) ([]byte, error) {
    if f.err != nil {
        return nil, f.err
    }
    if _, err := zip.NewReader(bytes.NewReader(pptx), int64(len(pptx))); err != nil {
        return nil, err
    }
    return []byte("%PDF-1.7 fake"), nil
}

func TestSet(t *testing.T) {
    s := NewSet(DefaultOptions(), nil)
    if _, err := s.Get("pdf"); err == nil {
        t.Fatal("pdf offered without converter")
    }
    r, err := s.Get("")
    if err != nil || r.Format() != FormatPPTX {
        t.Fatalf("default renderer: %v %v", r, err)
    }

    s = NewSet(DefaultOptions(), fakeConv{})
    r, err = s.Get("PDF")
    if err != nil {
        t.Fatal(err)
    }
    out, err := r.Render(context.Background(), samplePages(), Meta{})
    if err != nil || !bytes.HasPrefix(out, []byte("%PDF")) {
        t.Fatalf("pdf render: %q %v", out, err)
    }
    if got := strings.Join(s.Formats(), ","); got != "pptx,pdf,xlsx" {
        t.Fatalf("formats %s", got)
    }

    s = NewSet(DefaultOptions(), fakeConv{err: errors.New("soffice missing")})
    r, _ = s.Get("pdf")
    if _, err := r.Render(context.Background(), samplePages(), Meta{}); err == nil {
        t.Fatal("expected conversion error")
    }
}

func TestEsc(t *testing.T) {
    if got := esc("a\x00b<c>\"d\""); got != "ab&lt;c&gt;&#34;d&#34;" {
        t.Fatalf("got %q", got)
    }
}
