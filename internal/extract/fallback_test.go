package extract

import (
    "context"
    "errors"
    "os"
    "reflect"
    "strings"
    "testing"
    "unicode/utf8"

    "github.com/local/pdfdeck/internal/content"
)

type fakeEngine struct {
    text  string
    pages int
    err   error
    seen  string
    data  []byte
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) ReadText(path string) (string, int, error) {
    f.seen = path
    f.data, _ = os.ReadFile(path)
    return f.text, f.pages, f.err
}

func TestEstimatePageBreaks(t *testing.T) {
    cases := []struct {
        text  string
        pages int
        want  []int
    }{
        {strings.Repeat("x", 100), 1, []int{}},
        {strings.Repeat("x", 100), 4, []int{25, 50, 75}},
        {strings.Repeat("x", 10), 3, []int{3, 6}},
        {"", 5, []int{}},
        {"xy", 5, []int{0, 1}},
        // 2-byte runes: 3 lands mid-rune and moves back to 2
        {"ééééé", 3, []int{2, 6}},
        // a 4-byte rune swallows both estimates; the repeat is dropped
        {"a😀b", 3, []int{1}},
    }
    for _, tc := range cases {
        got := EstimatePageBreaks(tc.text, tc.pages)
        if !reflect.DeepEqual(got, tc.want) {
            t.Errorf("EstimatePageBreaks(%q, %d) = %v, want %v", tc.text, tc.pages, got, tc.want)
        }
    }
}

func TestEstimatePageBreaksOnRuneStarts(t *testing.T) {
    text := strings.Repeat("Überschrift – Größe 😀 ", 40)
    for pages := 2; pages < 30; pages++ {
        for _, off := range EstimatePageBreaks(text, pages) {
            if !utf8.RuneStart(text[off]) {
                t.Fatalf("pages %d: break %d splits a rune", pages, off)
            }
            if !utf8.ValidString(text[:off]) {
                t.Fatalf("pages %d: prefix before %d is not valid UTF-8", pages, off)
            }
        }
    }
}

func TestFallbackExtract(t *testing.T) {
    dir := t.TempDir()
    eng := &fakeEngine{text: "Alpha\n\nBeta\n\nGamma\n\nDelta", pages: 3}
    c, err := NewFallback(eng, dir).Extract(context.Background(), []byte("%PDF-1.4 body"))
    if err != nil {
        t.Fatal(err)
    }
    if string(eng.data) != "%PDF-1.4 body" {
        t.Fatalf("engine saw %q", eng.data)
    }
    if _, err := os.Stat(eng.seen); !os.IsNotExist(err) {
        t.Fatalf("temp file %s still present", eng.seen)
    }
    if c.NumPages != 3 || c.Source != content.StageFallback {
        t.Fatalf("content %+v", c)
    }
    if !reflect.DeepEqual(c.PageBreaks, EstimatePageBreaks(c.Text, 3)) {
        t.Fatalf("breaks %v", c.PageBreaks)
    }
    if len(c.Paragraphs) != 4 {
        t.Fatalf("paragraphs %d", len(c.Paragraphs))
    }
}

func TestFallbackEngineErrorRemovesTemp(t *testing.T) {
    dir := t.TempDir()
    eng := &fakeEngine{err: errors.New("cannot open")}
    _, err := NewFallback(eng, dir).Extract(context.Background(), []byte("x"))
    if r, ok := ReasonOf(err); !ok || r != ReasonFallback {
        t.Fatalf("got %v", err)
    }
    entries, _ := os.ReadDir(dir)
    if len(entries) != 0 {
        t.Fatalf("temp dir not empty: %d entries", len(entries))
    }
}

func TestFallbackZeroPagesClamped(t *testing.T) {
    eng := &fakeEngine{text: "only", pages: 0}
    c, err := NewFallback(eng, t.TempDir()).Extract(context.Background(), nil)
    if err != nil {
        t.Fatal(err)
    }
    if c.NumPages != 1 || len(c.PageBreaks) != 0 {
        t.Fatalf("pages %d breaks %v", c.NumPages, c.PageBreaks)
    }
}
