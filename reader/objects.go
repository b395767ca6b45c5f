// Package reader parses existing PDF files far enough to locate text on a page.
//
// It understands classic cross-reference tables, cross-reference streams and
// object streams, the Flate/ASCIIHex/ASCII85 filters, the page tree and the
// AcroForm field tree. Page content streams are interpreted to produce
// positioned glyphs (see Page.Glyphs), which is what placeholder search needs.
package reader

import (
	"fmt"
)

// Object is the interface satisfied by all PDF object types.
// The unexported method prevents external types from implementing it.
type Object interface {
	pdfObject()
	String() string
}

// Null represents the PDF null object.
type Null struct{}

func (Null) pdfObject()     {}
func (Null) String() string { return "null" }

// Boolean represents a PDF boolean value.
type Boolean bool

func (Boolean) pdfObject() {}
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer represents a PDF integer value.
type Integer int64

func (Integer) pdfObject()       {}
func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }

// Real represents a PDF real value.
type Real float64

func (Real) pdfObject()       {}
func (r Real) String() string { return fmt.Sprintf("%g", float64(r)) }

// Name represents a PDF name object such as /Font.
type Name string

func (Name) pdfObject()       {}
func (n Name) String() string { return "/" + string(n) }

// String represents a PDF string, literal or hexadecimal.
type String struct {
	Value []byte
	IsHex bool
}

func (String) pdfObject() {}
func (s String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%x>", s.Value)
	}
	return fmt.Sprintf("(%s)", s.Value)
}

// Array represents a PDF array.
type Array []Object

func (Array) pdfObject()       {}
func (a Array) String() string { return fmt.Sprintf("[array len=%d]", len(a)) }

// Dict represents a PDF dictionary.
type Dict map[Name]Object

func (Dict) pdfObject()       {}
func (d Dict) String() string { return fmt.Sprintf("<<dict len=%d>>", len(d)) }

// GetName returns the value of a name entry, or "" if absent.
func (d Dict) GetName(key Name) Name {
	if n, ok := d[key].(Name); ok {
		return n
	}
	return ""
}

// GetInt returns the value of a numeric entry truncated to an integer.
func (d Dict) GetInt(key Name) (int64, bool) {
	f, ok := number(d[key])
	return int64(f), ok
}

// GetNumber returns the value of a numeric entry.
func (d Dict) GetNumber(key Name) (float64, bool) {
	return number(d[key])
}

// GetDict returns a direct sub-dictionary, or nil.
func (d Dict) GetDict(key Name) Dict {
	if sub, ok := d[key].(Dict); ok {
		return sub
	}
	return nil
}

// GetArray returns a direct array entry, or nil.
func (d Dict) GetArray(key Name) Array {
	if arr, ok := d[key].(Array); ok {
		return arr
	}
	return nil
}

// number converts an Integer or Real to float64.
func number(obj Object) (float64, bool) {
	switch n := obj.(type) {
	case Integer:
		return float64(n), true
	case Real:
		return float64(n), true
	}
	return 0, false
}

// numbers converts an array of numeric objects. Non-numeric elements fail the
// whole conversion.
func numbers(arr Array) ([]float64, bool) {
	out := make([]float64, len(arr))
	for i, v := range arr {
		f, ok := number(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Stream represents a PDF stream object.
type Stream struct {
	Dict Dict
	Data []byte // raw, possibly filtered
}

func (Stream) pdfObject()       {}
func (s Stream) String() string { return fmt.Sprintf("<<stream len=%d>>", len(s.Data)) }

// Reference represents an indirect object reference ("10 0 R").
type Reference struct {
	Number     int
	Generation int
}

func (Reference) pdfObject() {}
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject is a parsed "N G obj ... endobj" definition.
type IndirectObject struct {
	Reference
	Value Object
}

func (IndirectObject) pdfObject() {}
func (o IndirectObject) String() string {
	return fmt.Sprintf("%d %d obj %s", o.Number, o.Generation, o.Value)
}

// operator is a content stream keyword such as Tj or cm. It only appears
// while interpreting content streams and never inside document objects.
type operator string

func (operator) pdfObject()       {}
func (o operator) String() string { return string(o) }
