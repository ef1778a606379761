package extract

import (
    "strconv"
    "strings"
)

// buildTextPDF writes a valid PDF with one page per content stream.
func buildTextPDF(streams ...string) []byte {
    pages := make([][]string, len(streams))
    for i, s := range streams {
        pages[i] = []string{s}
    }
    return buildPDF(pages...)
}

// buildPDF writes a valid PDF with correct xref offsets. Each page lists its
// content streams; a page with several gets a /Contents array. Font /F1 is
// Helvetica with WinAnsiEncoding.
func buildPDF(pages ...[]string) []byte {
    // objects: 1 catalog, 2 pages, 3 font, then per page the page object
    // followed by its content streams
    pageObj := make([]int, len(pages))
    next := 4
    for i, p := range pages {
        pageObj[i] = next
        next += 1 + len(p)
    }
    total := next - 1
    offsets := make([]int, total+1)

    var b strings.Builder
    b.WriteString("%PDF-1.4\n")

    offsets[1] = b.Len()
    b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

    kids := make([]string, len(pages))
    for i := range pages {
        kids[i] = strconv.Itoa(pageObj[i]) + " 0 R"
    }
    offsets[2] = b.Len()
    b.WriteString("2 0 obj\n<< /Type /Pages /Kids [" + strings.Join(kids, " ") + "] /Count " + strconv.Itoa(len(pages)) + " >>\nendobj\n")

    offsets[3] = b.Len()
    b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n")

    for i, streams := range pages {
        refs := make([]string, len(streams))
        for j := range streams {
            refs[j] = strconv.Itoa(pageObj[i]+1+j) + " 0 R"
        }
        contents := strings.Join(refs, " ")
        if len(streams) != 1 {
            contents = "[" + contents + "]"
        }
        offsets[pageObj[i]] = b.Len()
        b.WriteString(strconv.Itoa(pageObj[i]) + " 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents " +
            contents + " /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n")
        for j, s := range streams {
            obj := pageObj[i] + 1 + j
            offsets[obj] = b.Len()
            b.WriteString(strconv.Itoa(obj) + " 0 obj\n<< /Length " + strconv.Itoa(len(s)) + " >>\nstream\n" + s + "\nendstream\nendobj\n")
        }
    }

    xref := b.Len()
    b.WriteString("xref\n0 " + strconv.Itoa(total+1) + "\n")
    b.WriteString("0000000000 65535 f \n")
    for i := 1; i <= total; i++ {
        off := strconv.Itoa(offsets[i])
        b.WriteString(strings.Repeat("0", 10-len(off)) + off + " 00000 n \n")
    }
    b.WriteString("trailer\n<< /Size " + strconv.Itoa(total+1) + " /Root 1 0 R >>\nstartxref\n" + strconv.Itoa(xref) + "\n%%EOF\n")
    return []byte(b.String())
}
