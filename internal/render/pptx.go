package render

import (
    "archive/zip"
    "bytes"
    "context"
    "encoding/xml"
    "fmt"
    "math"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/local/pdfdeck/internal/content"
    "github.com/local/pdfdeck/internal/layout"
)

// XML namespaces used in PPTX files.
const (
    nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
    nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
    nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
    nsPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
    nsContentTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"

    relSlide       = nsRelationships + "/slide"
    relSlideMaster = nsRelationships + "/slideMaster"
    relSlideLayout = nsRelationships + "/slideLayout"
    relTheme       = nsRelationships + "/theme"

    ctSlide = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"

    emuPerInch = 914400
    xmlHeader  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// PPTX writes an Office Open XML presentation with one slide per page.
type PPTX struct {
    opts Options
    now  func() time.Time
}

func NewPPTX(opts Options) *PPTX {
    return &PPTX{opts: opts.withDefaults(), now: time.Now}
}

func (p *PPTX) Format() string { return FormatPPTX }
func (p *PPTX) ContentType() string {
    return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
}

func emu(in float64) int64 { return int64(math.Round(in * emuPerInch)) }

// slide is one output slide: a page, or a continuation of an auto-paged table.
type slide struct {
    blocks []layout.Block
}

func (p *PPTX) Render(ctx context.Context, pages []layout.Page, meta Meta) ([]byte, error) {
    slides := p.paginate(pages)
    if len(slides) == 0 { return nil, fmt.Errorf("no pages to render") }

    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    write := func(name, body string) error {
        w, err := zw.Create(name)
        if err != nil { return fmt.Errorf("zip %s: %w", name, err) }
        _, err = w.Write([]byte(body))
        return err
    }

    files := []struct{ name, body string }{
        {"[Content_Types].xml", contentTypesXML(len(slides))},
        {"_rels/.rels", rootRelsXML},
        {"docProps/core.xml", p.coreXML(meta)},
        {"docProps/app.xml", appXML(len(slides))},
        {"ppt/presentation.xml", p.presentationXML(len(slides))},
        {"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(slides))},
        {"ppt/slideMasters/slideMaster1.xml", slideMasterXML},
        {"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsXML},
        {"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML},
        {"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsXML},
        {"ppt/theme/theme1.xml", themeXML},
    }
    for _, f := range files {
        if err := write(f.name, f.body); err != nil { return nil, err }
    }
    for i, s := range slides {
        if err := ctx.Err(); err != nil { return nil, err }
        if err := write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), p.slideXML(s)); err != nil { return nil, err }
        if err := write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), slideRelsXML); err != nil { return nil, err }
    }
    if err := zw.Close(); err != nil { return nil, fmt.Errorf("zip close: %w", err) }
    return buf.Bytes(), nil
}

// paginate expands pages into slides, continuing auto-paged tables whose
// rows do not fit between their top and the bottom margin.
func (p *PPTX) paginate(pages []layout.Page) []slide {
    var out []slide
    for _, pg := range pages {
        cur := slide{}
        var extra []slide
        for _, b := range pg.Blocks {
            tb, ok := b.(*layout.TableBlock)
            if !ok || !tb.AutoPage {
                cur.blocks = append(cur.blocks, b)
                continue
            }
            chunks := p.splitTable(tb)
            cur.blocks = append(cur.blocks, chunks[0])
            for _, c := range chunks[1:] {
                extra = append(extra, slide{blocks: []layout.Block{c}})
            }
        }
        out = append(out, cur)
        out = append(out, extra...)
    }
    return out
}

func (p *PPTX) rowsPerSlide(tb *layout.TableBlock) int {
    avail := p.opts.SlideHeight - p.opts.BottomMargin - tb.Y
    n := int(math.Floor(avail/tb.RowHeight + 1e-9))
    if n < 2 { n = 2 }
    return n
}

func (p *PPTX) splitTable(tb *layout.TableBlock) []*layout.TableBlock {
    rows := tb.Table.Rows
    if tb.RowHeight <= 0 { return []*layout.TableBlock{tb} }
    per := p.rowsPerSlide(tb)
    if len(rows) <= per { return []*layout.TableBlock{tb} }

    var header []string
    if p.opts.RepeatHeader { header = rows[0] }
    var out []*layout.TableBlock
    for start := 0; start < len(rows); {
        n := per
        var chunk [][]string
        if start > 0 && header != nil {
            chunk = append(chunk, header)
            n--
        }
        end := start + n
        if end > len(rows) { end = len(rows) }
        chunk = append(chunk, rows[start:end]...)
        c := *tb
        c.Table = content.Table{Rows: chunk}
        out = append(out, &c)
        start = end
    }
    return out
}

func contentTypesXML(slides int) string {
    var b strings.Builder
    b.WriteString(xmlHeader)
    b.WriteString(`<Types xmlns="` + nsContentTypes + `">`)
    b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
    b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
    b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
    b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
    b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
    b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
    b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
    b.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
    for i := 1; i <= slides; i++ {
        fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="%s"/>`, i, ctSlide)
    }
    b.WriteString(`</Types>`)
    return b.String()
}

const rootRelsXML = xmlHeader + `<Relationships xmlns="` + nsPackageRels + `">` +
    `<Relationship Id="rId1" Type="` + nsRelationships + `/officeDocument" Target="ppt/presentation.xml"/>` +
    `<Relationship Id="rId2" Type="` + nsPackageRels + `/metadata/core-properties" Target="docProps/core.xml"/>` +
    `<Relationship Id="rId3" Type="` + nsRelationships + `/extended-properties" Target="docProps/app.xml"/>` +
    `</Relationships>`

func (p *PPTX) coreXML(meta Meta) string {
    title := meta.Title
    if title == "" { title = "Converted document" }
    author := meta.Author
    if author == "" { author = "pdfdeck" }
    ts := p.now().UTC().Format(time.RFC3339)
    return xmlHeader + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
        `xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
        `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
        `<dc:title>` + esc(title) + `</dc:title><dc:creator>` + esc(author) + `</dc:creator>` +
        `<dcterms:created xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:created>` +
        `<dcterms:modified xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:modified>` +
        `</cp:coreProperties>`
}

func appXML(slides int) string {
    return xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
        `<Application>pdfdeck</Application>` + fmt.Sprintf(`<Slides>%d</Slides>`, slides) + `</Properties>`
}

func (p *PPTX) presentationXML(slides int) string {
    var b strings.Builder
    b.WriteString(xmlHeader)
    b.WriteString(`<p:presentation xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsRelationships + `" xmlns:p="` + nsPresentationML + `" saveSubsetFonts="1">`)
    b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
    b.WriteString(`<p:sldIdLst>`)
    for i := 0; i < slides; i++ {
        fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
    }
    b.WriteString(`</p:sldIdLst>`)
    fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/>`, emu(p.opts.SlideWidth), emu(p.opts.SlideHeight))
    b.WriteString(`<p:notesSz cx="6858000" cy="9144000"/>`)
    b.WriteString(`</p:presentation>`)
    return b.String()
}

func presentationRelsXML(slides int) string {
    var b strings.Builder
    b.WriteString(xmlHeader)
    b.WriteString(`<Relationships xmlns="` + nsPackageRels + `">`)
    b.WriteString(`<Relationship Id="rId1" Type="` + relSlideMaster + `" Target="slideMasters/slideMaster1.xml"/>`)
    for i := 1; i <= slides; i++ {
        fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+1, relSlide, i)
    }
    fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="theme/theme1.xml"/>`, slides+2, relTheme)
    b.WriteString(`</Relationships>`)
    return b.String()
}

const emptyTree = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
    `<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

const pmlRoot = `xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsRelationships + `" xmlns:p="` + nsPresentationML + `"`

const slideMasterXML = xmlHeader + `<p:sldMaster ` + pmlRoot + `>` +
    `<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>` + emptyTree + `</p:spTree></p:cSld>` +
    `<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" ` +
    `accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
    `<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
    `<p:txStyles><p:titleStyle/><p:bodyStyle/><p:otherStyle/></p:txStyles>` +
    `</p:sldMaster>`

const slideMasterRelsXML = xmlHeader + `<Relationships xmlns="` + nsPackageRels + `">` +
    `<Relationship Id="rId1" Type="` + relSlideLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
    `<Relationship Id="rId2" Type="` + relTheme + `" Target="../theme/theme1.xml"/>` +
    `</Relationships>`

const slideLayoutXML = xmlHeader + `<p:sldLayout ` + pmlRoot + ` type="blank" preserve="1">` +
    `<p:cSld name="Blank"><p:spTree>` + emptyTree + `</p:spTree></p:cSld>` +
    `<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`

const slideLayoutRelsXML = xmlHeader + `<Relationships xmlns="` + nsPackageRels + `">` +
    `<Relationship Id="rId1" Type="` + relSlideMaster + `" Target="../slideMasters/slideMaster1.xml"/>` +
    `</Relationships>`

const slideRelsXML = xmlHeader + `<Relationships xmlns="` + nsPackageRels + `">` +
    `<Relationship Id="rId1" Type="` + relSlideLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
    `</Relationships>`

func themeColor(name, hex string) string {
    return `<a:` + name + `><a:srgbClr val="` + hex + `"/></a:` + name + `>`
}

var themeXML = xmlHeader + `<a:theme xmlns:a="` + nsDrawingML + `" name="Office Theme"><a:themeElements>` +
    `<a:clrScheme name="Office">` +
    `<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
    themeColor("dk2", "44546A") + themeColor("lt2", "E7E6E6") +
    themeColor("accent1", "4472C4") + themeColor("accent2", "ED7D31") + themeColor("accent3", "A5A5A5") +
    themeColor("accent4", "FFC000") + themeColor("accent5", "5B9BD5") + themeColor("accent6", "70AD47") +
    themeColor("hlink", "0563C1") + themeColor("folHlink", "954F72") +
    `</a:clrScheme>` +
    `<a:fontScheme name="Office">` +
    `<a:majorFont><a:latin typeface="Arial"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
    `<a:minorFont><a:latin typeface="Arial"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
    `</a:fontScheme>` +
    `<a:fmtScheme name="Office">` +
    `<a:fillStyleLst>` + strings.Repeat(`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`, 3) + `</a:fillStyleLst>` +
    `<a:lnStyleLst>` + strings.Repeat(`<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`, 3) + `</a:lnStyleLst>` +
    `<a:effectStyleLst>` + strings.Repeat(`<a:effectStyle><a:effectLst/></a:effectStyle>`, 3) + `</a:effectStyleLst>` +
    `<a:bgFillStyleLst>` + strings.Repeat(`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`, 3) + `</a:bgFillStyleLst>` +
    `</a:fmtScheme></a:themeElements><a:objectDefaults/><a:extraClrSchemeLst/></a:theme>`

func (p *PPTX) slideXML(s slide) string {
    var b strings.Builder
    b.WriteString(xmlHeader)
    b.WriteString(`<p:sld ` + pmlRoot + `><p:cSld><p:spTree>` + emptyTree)
    id := 2
    for _, blk := range s.blocks {
        switch v := blk.(type) {
        case *layout.TextBlock:
            p.writeText(&b, id, v)
        case *layout.TableBlock:
            p.writeTable(&b, id, v)
        }
        id++
    }
    b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
    return b.String()
}

func runProps(b *strings.Builder, f content.FormatHint, color string, bold bool) {
    fmt.Fprintf(b, `<a:rPr lang="en-US" sz="%d"`, int(math.Round(f.SizePt*100)))
    if bold { b.WriteString(` b="1"`) }
    b.WriteString(` dirty="0"><a:solidFill><a:srgbClr val="` + color + `"/></a:solidFill>`)
    b.WriteString(`<a:latin typeface="` + esc(f.Font) + `"/><a:cs typeface="` + esc(f.Font) + `"/></a:rPr>`)
}

func paragraphs(b *strings.Builder, text string, f content.FormatHint, color string, bold bool) {
    for _, line := range strings.Split(text, "\n") {
        line = strings.TrimRight(line, " \t\r")
        if line == "" {
            fmt.Fprintf(b, `<a:p><a:endParaRPr lang="en-US" sz="%d" dirty="0"/></a:p>`, int(math.Round(f.SizePt*100)))
            continue
        }
        b.WriteString(`<a:p><a:r>`)
        runProps(b, f, color, bold)
        b.WriteString(`<a:t>` + esc(line) + `</a:t></a:r></a:p>`)
    }
}

func (p *PPTX) writeText(b *strings.Builder, id int, t *layout.TextBlock) {
    f := t.Format
    if f.Font == "" { f.Font = content.DefaultFormat.Font }
    if f.SizePt <= 0 { f.SizePt = content.DefaultFormat.SizePt }
    fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Text %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, id, id-1)
    fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, emu(t.X), emu(t.Y), emu(t.W), emu(t.H))
    b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`)
    b.WriteString(`<p:txBody><a:bodyPr wrap="square" lIns="0" tIns="0" rIns="0" bIns="0" rtlCol="0"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
    paragraphs(b, t.Content, f, p.opts.TextColor, false)
    b.WriteString(`</p:txBody></p:sp>`)
}

const cellBorder = `<a:solidFill><a:srgbClr val="BFBFBF"/></a:solidFill>`

func (p *PPTX) writeTable(b *strings.Builder, id int, t *layout.TableBlock) {
    cols := t.Table.Columns()
    if cols == 0 { return }
    widths := t.ColWidths
    if len(widths) != cols {
        widths = make([]float64, cols)
        for i := range widths {
            widths[i] = 1 / float64(cols)
        }
    }
    f := content.FormatHint{Font: content.DefaultFormat.Font, SizePt: p.opts.TableFontPt}
    height := t.RowHeight * float64(len(t.Table.Rows))

    fmt.Fprintf(b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table %d"/>`, id, id-1)
    b.WriteString(`<p:cNvGraphicFramePr><a:graphicFrameLocks noGrp="1"/></p:cNvGraphicFramePr><p:nvPr/></p:nvGraphicFramePr>`)
    fmt.Fprintf(b, `<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`, emu(t.X), emu(t.Y), emu(t.W), emu(height))
    b.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl>`)
    b.WriteString(`<a:tblPr firstRow="1" bandRow="1"/><a:tblGrid>`)
    for _, w := range widths {
        fmt.Fprintf(b, `<a:gridCol w="%d"/>`, emu(t.W*w))
    }
    b.WriteString(`</a:tblGrid>`)
    for ri, row := range t.Table.Rows {
        fmt.Fprintf(b, `<a:tr h="%d">`, emu(t.RowHeight))
        for ci := 0; ci < cols; ci++ {
            cell := ""
            if ci < len(row) { cell = row[ci] }
            b.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:lstStyle/>`)
            paragraphs(b, cell, f, p.opts.TextColor, ri == 0)
            b.WriteString(`</a:txBody><a:tcPr>`)
            for _, side := range []string{"lnL", "lnR", "lnT", "lnB"} {
                b.WriteString(`<a:` + side + ` w="6350">` + cellBorder + `</a:` + side + `>`)
            }
            b.WriteString(`</a:tcPr></a:tc>`)
        }
        b.WriteString(`</a:tr>`)
    }
    b.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
}

// esc escapes text for XML and drops characters XML 1.0 cannot carry.
func esc(s string) string {
    clean := strings.Map(func(r rune) rune {
        if r == utf8.RuneError { return -1 }
        if r < 0x20 && r != '\t' && r != '\n' && r != '\r' { return -1 }
        if r == 0xFFFE || r == 0xFFFF { return -1 }
        return r
    }, s)
    var b bytes.Buffer
    _ = xml.EscapeText(&b, []byte(clean))
    return b.String()
}
