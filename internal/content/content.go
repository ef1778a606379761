package content

import "strings"

// PageBreakSentinel marks a source page boundary inside extracted text. It is
// kept in the text as its own paragraph and consumed by the layout engine.
const PageBreakSentinel = "--- Page Break ---"

// ParagraphSeparator separates paragraphs in ExtractedContent.Text.
const ParagraphSeparator = "\n\n"

// PlaceholderText is what a conversion carries when no extractor could read the document.
const PlaceholderText = "PDF content could not be extracted.\n\n" +
    "The document may be image-based, password-protected or damaged. " +
    "Try exporting it again as a text PDF and re-uploading."

// Stage names the extraction strategy that produced a result.
type Stage string

const (
    StageStructured  Stage = "structured"
    StageFallback    Stage = "fallback"
    StagePlaceholder Stage = "placeholder"
)

// FormatHint is the font attached to a paragraph.
type FormatHint struct {
    Font   string  `json:"font"`
    SizePt float64 `json:"size_pt"`
}

// DefaultFormat is used for every paragraph; no extractor recovers real fonts.
var DefaultFormat = FormatHint{Font: "Arial", SizePt: 12}

type Paragraph struct {
    Content string     `json:"content"`
    Format  FormatHint `json:"format"`
}

// Table is a run of whitespace-aligned lines. Rows may have different cell counts.
type Table struct {
    Rows [][]string `json:"rows"`
}

// Columns returns the widest row's cell count.
func (t Table) Columns() int {
    n := 0
    for _, r := range t.Rows {
        if len(r) > n { n = len(r) }
    }
    return n
}

// ImageRef is reserved; extraction never fills it.
type ImageRef struct {
    Page int    `json:"page"`
    Name string `json:"name"`
}

// ExtractedContent is the intermediate representation shared by every stage
// after extraction. PageBreaks are byte offsets into Text.
type ExtractedContent struct {
    Text       string      `json:"text"`
    PageBreaks []int       `json:"page_breaks"`
    NumPages   int         `json:"num_pages"`
    Paragraphs []Paragraph `json:"paragraphs"`
    Tables     []Table     `json:"tables"`
    Images     []ImageRef  `json:"images"`
    Source     Stage       `json:"source"`
}

// New builds an ExtractedContent from text, deriving paragraphs and their hints.
func New(text string, pageBreaks []int, numPages int, source Stage) *ExtractedContent {
    if numPages < 1 { numPages = 1 }
    if pageBreaks == nil { pageBreaks = []int{} }
    return &ExtractedContent{
        Text:       text,
        PageBreaks: pageBreaks,
        NumPages:   numPages,
        Paragraphs: BuildParagraphs(text),
        Tables:     []Table{},
        Images:     []ImageRef{},
        Source:     source,
    }
}

// Formatting returns one hint per paragraph, in order.
func (c *ExtractedContent) Formatting() []FormatHint {
    out := make([]FormatHint, len(c.Paragraphs))
    for i, p := range c.Paragraphs {
        out[i] = p.Format
    }
    return out
}

// SplitParagraphs splits on blank-line separators, trims each segment and
// drops the ones that are empty after trimming.
func SplitParagraphs(text string) []string {
    parts := strings.Split(text, ParagraphSeparator)
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

func BuildParagraphs(text string) []Paragraph {
    segs := SplitParagraphs(text)
    out := make([]Paragraph, len(segs))
    for i, s := range segs {
        out[i] = Paragraph{Content: s, Format: DefaultFormat}
    }
    return out
}

// IsPageBreak reports whether a paragraph is the page-break sentinel.
func IsPageBreak(p Paragraph) bool { return p.Content == PageBreakSentinel }
