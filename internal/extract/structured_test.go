package extract

import (
    "context"
    "errors"
    "strings"
    "testing"

    "github.com/local/pdfdeck/internal/content"
)

type fakeParser struct {
    doc *ParsedDocument
    err error
}

func (f fakeParser) ParsePages([]byte) (*ParsedDocument, error) { return f.doc, f.err }

func checkBreaks(t *testing.T, c *content.ExtractedContent) {
    t.Helper()
    if len(c.PageBreaks) != c.NumPages-1 {
        t.Fatalf("page breaks %v for %d pages", c.PageBreaks, c.NumPages)
    }
    prev := -1
    for _, b := range c.PageBreaks {
        if b <= prev || b >= len(c.Text) {
            t.Fatalf("page breaks not strictly increasing within text: %v (len %d)", c.PageBreaks, len(c.Text))
        }
        prev = b
    }
}

func TestStructuredTwoPages(t *testing.T) {
    doc := &ParsedDocument{Pages: []ParsedPage{
        {Texts: [][]string{{"Intro", "paragraph"}}},
        {Texts: [][]string{{"Second%20page", "text"}}},
    }}
    c, err := NewStructured(fakeParser{doc: doc}).Extract(context.Background(), []byte("%PDF"))
    if err != nil {
        t.Fatalf("extract: %v", err)
    }
    want := "Intro paragraph \n\n\n--- Page Break ---\n\nSecond page text \n"
    if c.Text != want {
        t.Fatalf("text:\n%q\nwant\n%q", c.Text, want)
    }
    if c.NumPages != 2 || len(c.PageBreaks) != 1 || c.PageBreaks[0] != len("Intro paragraph \n") {
        t.Fatalf("pages %d breaks %v", c.NumPages, c.PageBreaks)
    }
    checkBreaks(t, c)
    var paras []string
    for _, p := range c.Paragraphs {
        paras = append(paras, p.Content)
    }
    if strings.Join(paras, "|") != "Intro paragraph|--- Page Break ---|Second page text" {
        t.Fatalf("paragraphs: %q", paras)
    }
    if len(c.Formatting()) != len(c.Paragraphs) {
        t.Fatalf("formatting length mismatch")
    }
    if c.Source != content.StageStructured || len(c.Tables) != 0 || len(c.Images) != 0 {
        t.Fatalf("unexpected content: %+v", c)
    }
}

func TestStructuredFillsBeforeTexts(t *testing.T) {
    doc := &ParsedDocument{Pages: []ParsedPage{{
        Fills: []string{"stamp"},
        Texts: [][]string{{"a"}, {"b"}},
    }}}
    c, err := NewStructured(fakeParser{doc: doc}).Extract(context.Background(), nil)
    if err != nil {
        t.Fatal(err)
    }
    if c.Text != "stamp a \nb \n" {
        t.Fatalf("text %q", c.Text)
    }
    checkBreaks(t, c)
}

func TestStructuredManyPagesBreakInvariant(t *testing.T) {
    doc := &ParsedDocument{}
    for i := 0; i < 7; i++ {
        p := ParsedPage{}
        if i%2 == 0 {
            p.Texts = [][]string{{"page", "body"}}
        }
        doc.Pages = append(doc.Pages, p)
    }
    c, err := NewStructured(fakeParser{doc: doc}).Extract(context.Background(), nil)
    if err != nil {
        t.Fatal(err)
    }
    if c.NumPages != 7 {
        t.Fatalf("pages %d", c.NumPages)
    }
    checkBreaks(t, c)
}

func TestStructuredParserError(t *testing.T) {
    _, err := NewStructured(fakeParser{err: errors.New("bad xref")}).Extract(context.Background(), nil)
    if r, ok := ReasonOf(err); !ok || r != ReasonParse {
        t.Fatalf("got %v", err)
    }
}

func TestStructuredDecodeErrorIsParseError(t *testing.T) {
    doc := &ParsedDocument{Pages: []ParsedPage{{Texts: [][]string{{"%zz"}}}}}
    c, err := NewStructured(fakeParser{doc: doc}).Extract(context.Background(), nil)
    if c != nil {
        t.Fatalf("partial result returned")
    }
    if r, ok := ReasonOf(err); !ok || r != ReasonParse {
        t.Fatalf("got %v", err)
    }
}

type panicParser struct{}

func (panicParser) ParsePages([]byte) (*ParsedDocument, error) { panic("boom") }

func TestStructuredParserPanic(t *testing.T) {
    _, err := NewStructured(panicParser{}).Extract(context.Background(), nil)
    if r, ok := ReasonOf(err); !ok || r != ReasonParse {
        t.Fatalf("got %v", err)
    }
}

func TestStructuredPageCountMismatch(t *testing.T) {
    doc := &ParsedDocument{NumPages: 3, Pages: []ParsedPage{{}, {}}}
    _, err := NewStructured(fakeParser{doc: doc}).Extract(context.Background(), nil)
    if r, ok := ReasonOf(err); !ok || r != ReasonParse {
        t.Fatalf("got %v", err)
    }
}
