package content

import "testing"

func TestSplitParagraphs(t *testing.T) {
    cases := []struct {
        name string
        in   string
        want []string
    }{
        {"empty", "", nil},
        {"single", "hello", []string{"hello"}},
        {"two", "a\n\nb", []string{"a", "b"}},
        {"whitespace segments dropped", "a\n\n   \n\n\n\nb", []string{"a", "b"}},
        {"trimmed", "  a  \n\n\tb\n", []string{"a", "b"}},
        {"single newline kept", "a\nb\n\nc", []string{"a\nb", "c"}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            got := SplitParagraphs(tc.in)
            if len(got) != len(tc.want) {
                t.Fatalf("got %q, want %q", got, tc.want)
            }
            for i := range got {
                if got[i] != tc.want[i] {
                    t.Fatalf("segment %d: got %q, want %q", i, got[i], tc.want[i])
                }
            }
        })
    }
}

func TestNewFormattingMatchesParagraphs(t *testing.T) {
    c := New("Intro\n\n\n\n--- Page Break ---\n\nBody text\n\n  ", []int{7}, 2, StageStructured)
    if len(c.Paragraphs) != 3 {
        t.Fatalf("paragraphs: got %d, want 3", len(c.Paragraphs))
    }
    f := c.Formatting()
    if len(f) != len(c.Paragraphs) {
        t.Fatalf("formatting length %d != paragraphs %d", len(f), len(c.Paragraphs))
    }
    for i, h := range f {
        if h != DefaultFormat {
            t.Errorf("hint %d: got %+v", i, h)
        }
    }
    if !IsPageBreak(c.Paragraphs[1]) {
        t.Errorf("second paragraph should be the page break sentinel, got %q", c.Paragraphs[1].Content)
    }
    if c.Tables == nil || c.Images == nil {
        t.Errorf("tables and images should be empty, not nil")
    }
}

func TestNewClampsPageCount(t *testing.T) {
    c := New("x", nil, 0, StageFallback)
    if c.NumPages != 1 {
        t.Fatalf("NumPages: got %d, want 1", c.NumPages)
    }
    if c.PageBreaks == nil {
        t.Fatalf("PageBreaks should be non-nil")
    }
}

func TestTableColumns(t *testing.T) {
    tb := Table{Rows: [][]string{{"a", "b"}, {"c", "d", "e"}}}
    if tb.Columns() != 3 {
        t.Fatalf("got %d, want 3", tb.Columns())
    }
}
