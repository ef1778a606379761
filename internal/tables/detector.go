package tables

import (
    "fmt"
    "regexp"
    "strings"

    "github.com/local/pdfdeck/internal/content"
    "github.com/rs/zerolog/log"
)

// wideGap separates cells: a run of two or more whitespace characters. A lone
// tab is not a gap.
var wideGap = regexp.MustCompile(`\s{2,}`)

// DetectionError wraps a failure inside the scan. It is logged, never returned.
type DetectionError struct{ Cause interface{} }

func (e *DetectionError) Error() string { return fmt.Sprintf("table detection: %v", e.Cause) }

// minRows is both the minimum committed table height and the minimum run of
// consecutive candidate lines.
const minRows = 2

// Detect scans text line by line for runs of whitespace-aligned rows.
// It never fails: a panic during the scan is logged and whatever was
// committed before it is returned.
func Detect(text string) (found []content.Table) {
    found = []content.Table{}
    defer func() {
        if r := recover(); r != nil {
            log.Error().Err(&DetectionError{Cause: r}).Int("tables", len(found)).Msg("table detection error")
        }
    }()

    var rows [][]string
    consecutive := 0
    commit := func() {
        if len(rows) >= minRows && consecutive >= minRows {
            found = append(found, content.Table{Rows: rows})
        }
        rows = nil
        consecutive = 0
    }

    for _, line := range strings.Split(text, "\n") {
        cells := splitCells(line)
        if len(cells) >= 2 {
            rows = append(rows, cells)
            consecutive++
            continue
        }
        commit()
    }
    commit()

    if len(found) > 0 {
        log.Debug().Int("tables", len(found)).Msg("tables detected")
    }
    return found
}

// splitCells trims the line, splits on runs of two or more whitespace
// characters and keeps the non-empty cells.
func splitCells(line string) []string {
    line = strings.TrimSpace(line)
    if line == "" { return nil }
    parts := wideGap.Split(line, -1)
    cells := parts[:0]
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { cells = append(cells, p) }
    }
    return cells
}
