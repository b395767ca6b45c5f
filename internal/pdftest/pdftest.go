// Package pdftest assembles small PDF files from raw object bodies. Tests use
// it for documents fpdf cannot produce: AcroForms, composite fonts, object
// streams and cross-reference streams.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Build writes a PDF with a classic cross-reference table. Objects are
// numbered from 1 in argument order and object 1 must be the catalog.
func Build(objs ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// BuildCompressed writes a PDF 1.5 file: every non-stream object goes into a
// single object stream and the cross-reference data is a Flate-compressed
// xref stream.
func BuildCompressed(objs ...string) []byte {
	n := len(objs)
	objStmNum, xrefNum := n+1, n+2

	var header, body strings.Builder
	index := make(map[int]int) // object number -> index in object stream
	for i, obj := range objs {
		if strings.Contains(obj, "stream\n") {
			continue
		}
		index[i+1] = len(index)
		fmt.Fprintf(&header, "%d %d ", i+1, body.Len())
		body.WriteString(obj)
		body.WriteByte('\n')
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n")
	offsets := make(map[int]int)
	for i, obj := range objs {
		if _, packed := index[i+1]; packed {
			continue
		}
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	offsets[objStmNum] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", objStmNum,
		FlateStream(fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(index), header.Len()),
			[]byte(header.String()+body.String())))

	offsets[xrefNum] = buf.Len()
	var entries bytes.Buffer
	for num := 0; num <= xrefNum; num++ {
		if idx, packed := index[num]; packed {
			entries.Write([]byte{2, 0, 0, byte(objStmNum >> 8), byte(objStmNum), byte(idx >> 8), byte(idx)})
			continue
		}
		off, ok := offsets[num]
		if !ok {
			entries.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
			continue
		}
		entries.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0, 0})
	}
	fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", xrefNum,
		FlateStream(fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Root 1 0 R", xrefNum+1), entries.Bytes()))
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", offsets[xrefNum])
	return buf.Bytes()
}

// Stream formats a stream object body with a correct /Length.
func Stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// FlateStream formats a Flate-compressed stream object body.
func FlateStream(dict string, data []byte) string {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	w.Write(data)
	w.Close()
	return fmt.Sprintf("<< %s /Filter /FlateDecode /Length %d >>\nstream\n%s\nendstream", dict, z.Len(), z.Bytes())
}

// Page describes one page of a generated document.
type Page struct {
	Width, Height float64
	Content       string
}

// Field describes one AcroForm widget field of a generated document. Fields
// are placed on the first page.
type Field struct {
	Name  string
	Type  string // "Tx", "Btn", ...
	Value string
	Rect  [4]float64
	Flags int
}

// Fonts lists the font resource names every generated page carries.
const (
	FontRegular   = "F1" // Helvetica
	FontBold      = "F2" // Helvetica-Bold
	FontComposite = "F3" // Type0, unsupported by simple-font readers
)

// Document builds a document whose pages share one resource dictionary with
// the fonts listed above.
func Document(pages ...Page) []byte {
	return build(Build, pages, nil)
}

// CompressedDocument is Document written with object and xref streams.
func CompressedDocument(pages ...Page) []byte {
	return build(BuildCompressed, pages, nil)
}

// FormDocument builds a document with an AcroForm holding fields.
func FormDocument(page Page, fields ...Field) []byte {
	return build(Build, []Page{page}, fields)
}

func build(write func(...string) []byte, pages []Page, fields []Field) []byte {
	// 1 catalog, 2 page tree, 3-5 fonts, 6 resources, then per page: page, content; then fields.
	const firstPage = 7
	fieldStart := firstPage + 2*len(pages)

	var kids, fieldRefs []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", firstPage+2*i))
	}
	for i := range fields {
		fieldRefs = append(fieldRefs, fmt.Sprintf("%d 0 R", fieldStart+i))
	}

	catalog := "<< /Type /Catalog /Pages 2 0 R >>"
	if len(fields) > 0 {
		catalog = fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [%s] /DA (/F1 0 Tf 0 g) /DR 6 0 R >> >>",
			strings.Join(fieldRefs, " "))
	}

	objs := []string{
		catalog,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold /Encoding /WinAnsiEncoding >>",
		"<< /Type /Font /Subtype /Type0 /BaseFont /NotoSans /Encoding /Identity-H >>",
		"<< /Font << /F1 3 0 R /F2 4 0 R /F3 5 0 R >> >>",
	}
	for i, p := range pages {
		var annots string
		if i == 0 && len(fields) > 0 {
			annots = fmt.Sprintf(" /Annots [%s]", strings.Join(fieldRefs, " "))
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources 6 0 R /Contents %d 0 R%s >>",
				p.Width, p.Height, firstPage+2*i+1, annots),
			Stream("", p.Content),
		)
	}
	for _, f := range fields {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Annot /Subtype /Widget /FT /%s /T (%s) /V (%s) /Ff %d /Rect [%g %g %g %g] /P %d 0 R /DA (/F1 12 Tf 0 g) >>",
			f.Type, f.Name, f.Value, f.Flags, f.Rect[0], f.Rect[1], f.Rect[2], f.Rect[3], firstPage))
	}
	return write(objs...)
}
