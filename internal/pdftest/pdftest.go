// Package pdftest checks whether a PDF carries a usable text layer by
// sampling a few pages. It backs the "looks image-based" diagnostics attached
// to conversions that ended with the placeholder.
package pdftest

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// PageProbe captures the result of probing a single PDF page.
type PageProbe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics provides detailed information about the text-extractability check.
type Diagnostics struct {
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Probes             []PageProbe `json:"probes"`
	HasExtractableText bool        `json:"has_extractable_text"`
	DurationMs         int64       `json:"duration_ms"`
}

// ImageBased reports whether the sample found pages but too little text.
func (d *Diagnostics) ImageBased() bool {
	return d != nil && d.TotalPages > 0 && !d.HasExtractableText
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

const maxSample = 5

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener turns raw PDF bytes into a Doc.
type Opener interface {
	OpenBytes(data []byte) (Doc, error)
}

// Prober samples pages through Opener.
type Prober struct {
	Opener    Opener
	Threshold int
}

// New returns a Prober backed by MuPDF.
func New(threshold int) *Prober {
	return &Prober{Opener: fitzOpener{}, Threshold: threshold}
}

// HasExtractableText samples up to five pages of data and reports whether
// they hold at least Threshold non-whitespace characters.
func (p *Prober) HasExtractableText(data []byte) (bool, *Diagnostics, error) {
	return p.HasExtractableTextWithPages(data, nil)
}

// HasExtractableTextWithPages is like HasExtractableText but samples the given
// zero-based page indices. A nil pages uses the default sampling.
func (p *Prober) HasExtractableTextWithPages(data []byte, pages []int) (bool, *Diagnostics, error) {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if p.Opener == nil {
		return false, nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := p.Opener.OpenBytes(data)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	diag := &Diagnostics{TotalPages: total, SampledPages: []int{}, Threshold: threshold}
	if total <= 0 {
		diag.DurationMs = time.Since(start).Milliseconds()
		return false, diag, nil
	}

	if pages != nil {
		diag.SampledPages = normalizeAndClampPages(pages, total)
	} else {
		diag.SampledPages = sampleIndices(total, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	for _, idx := range diag.SampledPages {
		probe := PageProbe{PageIndex: idx}
		text, terr := d.Text(idx)
		if terr != nil {
			probe.Err = terr.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}
		probe.CharCount = len([]rune(whitespaceRegex.ReplaceAllString(text, "")))
		diag.TotalCharsInSample += probe.CharCount
		diag.Probes = append(diag.Probes, probe)
		if diag.TotalCharsInSample >= threshold {
			break
		}
	}

	diag.HasExtractableText = diag.TotalCharsInSample >= threshold
	diag.DurationMs = time.Since(start).Milliseconds()
	return diag.HasExtractableText, diag, nil
}

// sampleIndices picks every page for short documents, otherwise first, middle
// and last plus random distinct pages up to maxSample.
func sampleIndices(total int, rnd *rand.Rand) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= maxSample {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	base := map[int]struct{}{0: {}, total / 2: {}, total - 1: {}}
	for len(base) < maxSample {
		base[rnd.Intn(total)] = struct{}{}
	}
	out := make([]int, 0, maxSample)
	for i := range base {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func normalizeAndClampPages(pages []int, total int) []int {
	m := make(map[int]struct{})
	for _, p := range pages {
		if p < 0 || p >= total {
			continue
		}
		m[p] = struct{}{}
	}
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
