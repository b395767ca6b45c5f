// Package pageops imports the pages of existing PDF documents into new fpdf
// documents and merges finished certificates into one printable file.
//
// Pages are imported with the gofpdi contrib package as form XObjects and
// drawn at full size on a page of the same dimensions, so anything added
// afterwards lands on top of the original content.
package pageops

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
)

// Page is an imported page of a source document.
type Page struct {
	Number        int // 1-based, in the source document
	Width, Height float64

	tpl int
	imp *gofpdi.Importer
}

// Place adds a page of the same size to pdf and draws the imported page on
// it. The new page is current when Place returns.
func (p Page) Place(pdf *fpdf.Fpdf) {
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: p.Width, Ht: p.Height})
	p.imp.UseImportedTemplate(pdf, p.tpl, 0, 0, p.Width, p.Height)
}

// Import registers every page of the PDF in data with pdf, which must use
// the "pt" unit. No pages are added to pdf; call Place for that. Failures
// inside the importer, which reports them by panicking, are returned as
// errors.
func Import(pdf *fpdf.Fpdf, data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pageops: importing pages: %v", r)
		}
	}()

	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))

	first := imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	sizes := imp.GetPageSizes()
	if len(sizes) == 0 {
		return nil, fmt.Errorf("pageops: document has no pages")
	}

	pages = make([]Page, 0, len(sizes))
	for n := 1; n <= len(sizes); n++ {
		tpl := first
		if n > 1 {
			tpl = imp.ImportPageFromStream(pdf, &rs, n, "/MediaBox")
		}
		w, h := sizes[n]["/MediaBox"]["w"], sizes[n]["/MediaBox"]["h"]
		if w <= 0 || h <= 0 {
			w, h = 612, 792 // US Letter
		}
		pages = append(pages, Page{Number: n, Width: w, Height: h, tpl: tpl, imp: imp})
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("pageops: importing pages: %w", err)
	}
	return pages, nil
}

// NewDocument returns an empty fpdf document in points with automatic page
// breaks off, ready for imported pages.
func NewDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	return pdf
}

// writePDFToFile writes the PDF to a file.
func writePDFToFile(pdf *fpdf.Fpdf, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("pageops: creating %s: %w", filename, err)
	}
	if err := pdf.Output(f); err != nil {
		f.Close()
		return fmt.Errorf("pageops: writing %s: %w", filename, err)
	}
	return f.Close()
}
