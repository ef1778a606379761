package render

import (
    "context"
    "fmt"

    "github.com/local/pdfdeck/internal/layout"
    "github.com/xuri/excelize/v2"
)

// XLSX exports the detected tables, one sheet each, plus a sheet listing the
// text blocks slide by slide.
type XLSX struct{}

func NewXLSX() *XLSX { return &XLSX{} }

func (x *XLSX) Format() string      { return FormatXLSX }
func (x *XLSX) ContentType() string { return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" }

const textSheet = "Text"

func (x *XLSX) Render(ctx context.Context, pages []layout.Page, meta Meta) ([]byte, error) {
    f := excelize.NewFile()
    defer f.Close()

    bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
    if err != nil { return nil, fmt.Errorf("xlsx style: %w", err) }

    if err := f.SetSheetName("Sheet1", textSheet); err != nil { return nil, fmt.Errorf("xlsx sheet: %w", err) }
    if err := f.SetSheetRow(textSheet, "A1", &[]interface{}{"Slide", "Text"}); err != nil { return nil, err }
    if err := f.SetCellStyle(textSheet, "A1", "B1", bold); err != nil { return nil, err }
    _ = f.SetColWidth(textSheet, "B", "B", 100)

    row, tables := 2, 0
    for pi, pg := range pages {
        if err := ctx.Err(); err != nil { return nil, err }
        for _, b := range pg.Blocks {
            switch v := b.(type) {
            case *layout.TextBlock:
                cell, _ := excelize.CoordinatesToCellName(1, row)
                if err := f.SetSheetRow(textSheet, cell, &[]interface{}{pi + 1, v.Content}); err != nil { return nil, err }
                row++
            case *layout.TableBlock:
                tables++
                if err := writeTableSheet(f, fmt.Sprintf("Table %d", tables), v, bold); err != nil { return nil, err }
            }
        }
    }

    if meta.Title != "" {
        _ = f.SetDocProps(&excelize.DocProperties{Title: meta.Title, Creator: "pdfdeck"})
    }
    buf, err := f.WriteToBuffer()
    if err != nil { return nil, fmt.Errorf("xlsx write: %w", err) }
    return buf.Bytes(), nil
}

func writeTableSheet(f *excelize.File, name string, t *layout.TableBlock, headerStyle int) error {
    if _, err := f.NewSheet(name); err != nil { return fmt.Errorf("xlsx sheet %s: %w", name, err) }
    for i, r := range t.Table.Rows {
        vals := make([]interface{}, len(r))
        for j, c := range r {
            vals[j] = c
        }
        cell, err := excelize.CoordinatesToCellName(1, i+1)
        if err != nil { return err }
        if err := f.SetSheetRow(name, cell, &vals); err != nil { return err }
    }
    if cols := t.Table.Columns(); cols > 0 {
        last, _ := excelize.CoordinatesToCellName(cols, 1)
        if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil { return err }
    }
    return nil
}
