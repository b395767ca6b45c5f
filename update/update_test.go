package update

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lvillar/certfill/internal/pdftest"
	"github.com/lvillar/certfill/reader"
)

var pages = []pdftest.Page{
	{Width: 612, Height: 792, Content: "BT /F1 12 Tf 72 700 Td (Awarded to) Tj ET"},
	{Width: 612, Height: 792, Content: "BT /F1 12 Tf 72 700 Td (Terms) Tj ET"},
}

func TestAppendContent(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		section string
	}{
		{"classic xref", pdftest.Document(pages...), "\nxref\n"},
		{"xref stream", pdftest.CompressedDocument(pages...), "/Type /XRef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			page, err := w.Document().Page(1)
			if err != nil {
				t.Fatal(err)
			}
			prefix := w.FontPrefix(page, "F")
			if prefix != "Fx" {
				t.Errorf("FontPrefix = %q, want Fx", prefix)
			}
			content := []byte("BT /" + prefix + "1 20 Tf 100 100 Td (Ada) Tj ET")
			if err := w.AppendContent(page, content, map[string]string{prefix + "1": "Helvetica-Bold"}); err != nil {
				t.Fatal(err)
			}

			out, err := w.Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(out, tt.data) {
				t.Fatal("original bytes not kept")
			}
			if !bytes.Contains(out[len(tt.data):], []byte(tt.section)) {
				t.Errorf("update lacks %q", tt.section)
			}

			doc, err := reader.Parse(out)
			if err != nil {
				t.Fatalf("parsing the update: %v", err)
			}
			edited, err := doc.Page(1)
			if err != nil {
				t.Fatal(err)
			}
			text, err := edited.ExtractText()
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(text, "Awarded to") || !strings.Contains(text, "Ada") {
				t.Errorf("text = %q", text)
			}
			stream, err := edited.ContentStream()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(stream, []byte("q\n")) || !bytes.Contains(stream, []byte("Q\nBT /Fx1")) {
				t.Errorf("addition not isolated from the original content: %q", stream)
			}
			fonts := edited.Resources.GetDict("Font")
			if len(fonts) != 4 {
				t.Errorf("fonts = %v", fonts)
			}

			// the other page still shares the original resources
			other, err := doc.Page(2)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := other.RawResources.(reader.Reference); !ok {
				t.Errorf("page 2 resources = %v", other.RawResources)
			}
		})
	}
}

func TestAppendContentTwice(t *testing.T) {
	w, err := New(pdftest.Document(pages...))
	if err != nil {
		t.Fatal(err)
	}
	page, err := w.Document().Page(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AppendContent(page, []byte("BT /A1 12 Tf (one) Tj ET"), map[string]string{"A1": "Helvetica"}); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendContent(page, []byte("BT /B1 12 Tf (two) Tj ET"), map[string]string{"B1": "Courier"}); err != nil {
		t.Fatal(err)
	}
	out, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	doc, err := reader.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	edited, _ := doc.Page(1)
	fonts := edited.Resources.GetDict("Font")
	for _, name := range []reader.Name{"F1", "A1", "B1"} {
		if _, ok := fonts[name]; !ok {
			t.Errorf("font %s missing from %v", name, fonts)
		}
	}
	if n := len(edited.Contents); n != 5 {
		t.Errorf("page has %d content streams, want 5", n)
	}
}

func TestBytesWithoutObjects(t *testing.T) {
	data := pdftest.Document(pages...)
	w, err := New(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("document changed without objects")
	}
}

func TestWriteObject(t *testing.T) {
	tests := []struct {
		name string
		obj  reader.Object
		want string
	}{
		{"null", nil, "null"},
		{"integer", reader.Integer(-3), "-3"},
		{"real", reader.Real(841.89), "841.89"},
		{"name", reader.Name("Helvetica-Bold"), "/Helvetica-Bold"},
		{"name escapes", reader.Name("Full Name#1"), "/Full#20Name#231"},
		{"string", reader.String{Value: []byte("Ada (x)")}, "<4164612028782920>"},
		{"reference", reader.Reference{Number: 12}, "12 0 R"},
		{"array", reader.Array{reader.Integer(0), reader.Boolean(true), reader.Name("F1")}, "[0 true /F1]"},
		{
			"dict sorted",
			reader.Dict{"Type": reader.Name("Font"), "BaseFont": reader.Name("Courier"), "Encoding": reader.Name("WinAnsiEncoding")},
			"<< /BaseFont /Courier /Encoding /WinAnsiEncoding /Type /Font >>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeObject(&buf, tt.obj); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var buf bytes.Buffer
	if err := writeObject(&buf, reader.Array{reader.Stream{}}); err == nil {
		t.Error("a direct stream was written")
	}
}

func TestRuns(t *testing.T) {
	got := runs([]int{3, 4, 5, 9, 11, 12})
	want := [][]int{{3, 4, 5}, {9}, {11, 12}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}
