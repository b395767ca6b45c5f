package form_test

import (
	"fmt"

	"github.com/lvillar/certfill/form"
	"github.com/lvillar/certfill/internal/pdftest"
	"github.com/lvillar/certfill/reader"
)

// ExampleFillBytes demonstrates setting the recipient field of a
// certificate form.
func ExampleFillBytes() {
	template := pdftest.FormDocument(
		pdftest.Page{Width: 792, Height: 612},
		pdftest.Field{Name: "recipient", Type: "Tx", Rect: [4]float64{196, 300, 596, 340}},
	)

	filled, err := form.FillBytes(template, map[string]string{"recipient": "Grace Hopper"})
	if err != nil {
		fmt.Println(err)
		return
	}

	doc, err := reader.Parse(filled)
	if err != nil {
		fmt.Println(err)
		return
	}
	field, err := doc.FormField("recipient")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(field.Value)
	// Output:
	// Grace Hopper
}
