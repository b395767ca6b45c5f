package certfill_test

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"codeberg.org/go-pdf/fpdf"

	"github.com/lvillar/certfill"
)

func exampleTemplate() []byte {
	pdf := fpdf.New("L", "pt", "Letter", "")
	pdf.AddPage()
	pdf.SetFont("Times", "B", 36)
	pdf.Text(200, 180, "Certificate of Completion")
	pdf.SetFont("Helvetica", "", 24)
	pdf.Text(340, 320, "{{name}}")
	var buf bytes.Buffer
	pdf.Output(&buf)
	return buf.Bytes()
}

// ExampleEditor_Edit puts a name on a landscape certificate.
func ExampleEditor_Edit() {
	ed, err := certfill.New(certfill.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		fmt.Println(err)
		return
	}

	out, err := ed.Edit(exampleTemplate(), certfill.FormatName("Jordan", "", "Lee"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out.Strategy, out.Edits, out.Renders[0].Font)
	// Output:
	// overlay/stream 1 helvetica-bold 36
}

// ExampleFormatName shows how name components are joined.
func ExampleFormatName() {
	fmt.Println(certfill.FormatName("  Ana ", "María", "García", "López"))
	// Output:
	// Ana María García López
}
