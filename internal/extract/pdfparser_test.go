package extract

import (
    "context"
    "net/url"
    "reflect"
    "strings"
    "testing"
)

func decoded(t *testing.T, runs []string) []string {
    t.Helper()
    out := make([]string, len(runs))
    for i, r := range runs {
        s, err := url.PathUnescape(r)
        if err != nil {
            t.Fatalf("run %q not percent-encoded: %v", r, err)
        }
        out[i] = s
    }
    return out
}

func TestPDFParserGroupsAndFills(t *testing.T) {
    raw := buildTextPDF("/F1 12 Tf (stamp) Tj\n" +
        "BT /F1 12 Tf 72 712 Td (Hello) Tj ( World) Tj ET\n" +
        "BT /F1 12 Tf 0 -14 Td [(Ta) -300 (ble) 12 (s)] TJ T* (next line) ' ET")
    doc, err := NewPDFParser().ParsePages(raw)
    if err != nil {
        t.Fatal(err)
    }
    if doc.NumPages != 1 || len(doc.Pages) != 1 {
        t.Fatalf("pages %d/%d", doc.NumPages, len(doc.Pages))
    }
    page := doc.Pages[0]
    if got := decoded(t, page.Fills); !reflect.DeepEqual(got, []string{"stamp"}) {
        t.Errorf("fills: %q", got)
    }
    if len(page.Texts) != 2 {
        t.Fatalf("groups: %d", len(page.Texts))
    }
    if got := decoded(t, page.Texts[0]); !reflect.DeepEqual(got, []string{"Hello", " World"}) {
        t.Errorf("group 1: %q", got)
    }
    if got := decoded(t, page.Texts[1]); !reflect.DeepEqual(got, []string{"Ta bles", "next line"}) {
        t.Errorf("group 2: %q", got)
    }
}

func TestPDFParserDecodesFontEncoding(t *testing.T) {
    raw := buildTextPDF(`BT /F1 12 Tf 72 720 Td (\223Hello world\224) Tj ET`)
    c, err := NewStructured(NewPDFParser()).Extract(context.Background(), raw)
    if err != nil {
        t.Fatal(err)
    }
    if !strings.Contains(c.Text, "“Hello world”") {
        t.Fatalf("text %q", c.Text)
    }
    if strings.ContainsAny(c.Text, "\u0093\u0094") {
        t.Fatalf("raw bytes leaked into text %q", c.Text)
    }
}

func TestPDFParserContentsArray(t *testing.T) {
    raw := buildPDF([]string{
        "BT /F1 12 Tf 72 720 Td (first) Tj ET",
        "BT /F1 12 Tf 72 700 Td (second) Tj ET",
    })
    doc, err := NewPDFParser().ParsePages(raw)
    if err != nil {
        t.Fatal(err)
    }
    if len(doc.Pages[0].Texts) != 2 {
        t.Fatalf("groups %+v", doc.Pages[0])
    }
    if got := decoded(t, doc.Pages[0].Texts[1]); got[0] != "second" {
        t.Fatalf("second stream: %q", got)
    }
}

func TestPDFParserBlankPageKept(t *testing.T) {
    raw := buildPDF([]string{""}, []string{"BT /F1 12 Tf 72 720 Td (Second page text) Tj ET"})
    c, err := NewStructured(NewPDFParser()).Extract(context.Background(), raw)
    if err != nil {
        t.Fatal(err)
    }
    if c.NumPages != 2 || len(c.PageBreaks) != 1 || c.PageBreaks[0] != 0 {
        t.Fatalf("pages %d breaks %v", c.NumPages, c.PageBreaks)
    }
}

func TestPDFParserReadsPages(t *testing.T) {
    raw := buildTextPDF(
        "BT\n/F1 12 Tf\n72 720 Td\n(Hello World) Tj\nET",
        "BT\n/F1 12 Tf\n72 720 Td\n[(Sec) -20 (ond) -400 (page)] TJ\nET",
    )
    c, err := NewStructured(NewPDFParser()).Extract(context.Background(), raw)
    if err != nil {
        t.Fatal(err)
    }
    if !strings.Contains(c.Text, "Hello World") || !strings.Contains(c.Text, "Second page") {
        t.Fatalf("text %q", c.Text)
    }
    checkBreaks(t, c)
}

func TestPDFParserRejectsGarbage(t *testing.T) {
    if _, err := NewPDFParser().ParsePages([]byte("not a pdf at all")); err == nil {
        t.Fatal("expected error")
    }
}

func TestPrintableRatio(t *testing.T) {
    if r := printableRatio("plain text"); r != 1 {
        t.Fatalf("got %v", r)
    }
    if r := printableRatio("\x01\x02\x03a"); r >= minPrintableRatio {
        t.Fatalf("got %v", r)
    }
}
