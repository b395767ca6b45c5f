package certfill_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/google/go-cmp/cmp"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/internal/pdftest"
	"github.com/lvillar/certfill/placeholder"
	"github.com/lvillar/certfill/reader"
	"github.com/lvillar/certfill/render"
)

var quiet = log.New(io.Discard, "", 0)

// template renders a Letter certificate. Each line is drawn at x=100 in
// 24pt Helvetica, one line every 50pt starting at y=200.
func template(t *testing.T, lines ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 24)
	pdf.AddPage()
	for i, line := range lines {
		pdf.Text(100, 200+50*float64(i), line)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("generating template: %v", err)
	}
	return buf.Bytes()
}

func newEditor(t *testing.T, opts ...certfill.Option) *certfill.Editor {
	t.Helper()
	ed, err := certfill.New(append([]certfill.Option{certfill.WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ed
}

func TestEditShortName(t *testing.T) {
	data := template(t, "Certificate of Completion", "{{name}}", "for finishing the course")
	out, err := newEditor(t).Edit(data, "Jordan Lee")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out.Strategy != certfill.StrategyOverlayStream || out.Edits != 1 || out.Pages != 1 {
		t.Fatalf("outcome = %+v", out)
	}

	res := out.Renders[0]
	if res.Font.Size != 36 || res.Overflow || res.Degraded {
		t.Errorf("render = %+v, want 36pt without degradation", res)
	}
	if mid := res.X + res.Width/2; math.Abs(mid-306) > 1e-6 {
		t.Errorf("name centered at %g, want 306", mid)
	}
	// placeholder baseline 250, lower edge 254.8; baseline 254.8 - 36/4
	if math.Abs(res.BaselineY-245.8) > 1e-6 {
		t.Errorf("baseline = %g, want 245.8", res.BaselineY)
	}

	// the result reads back with the name where it was drawn
	layouts, err := placeholder.StreamSource{}.Layouts(out.PDF)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	found := placeholder.Locate(layouts[0], "Jordan Lee")
	if len(found) != 1 {
		t.Fatalf("name not found in %q", layouts[0].Text())
	}
	if math.Abs(found[0].X0-res.X) > 0.05 || math.Abs(found[0].FontSize-36) > 0.01 {
		t.Errorf("name read back at %+v, drawn at x=%g", found[0], res.X)
	}
	if !strings.Contains(layouts[0].Text(), "Certificate of Completion") {
		t.Error("template text lost")
	}
}

func TestEditLongNameUsesMinFont(t *testing.T) {
	data := template(t, "{{name}}")
	name := certfill.FormatName("Maximiliano Alejandro", "de la Santísima Trinidad",
		"Fernández-Villalobos Castañeda y Montenegro de los Ríos Altos del Valle")
	out, err := newEditor(t).Edit(data, name)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	res := out.Renders[0]
	if res.Font.Size != render.DefaultMinFont || !res.Overflow {
		t.Errorf("render = %+v, want overflow at %d", res, render.DefaultMinFont)
	}
}

func TestEditLongNameReachesMinFont(t *testing.T) {
	const name = "Alexandria Montgomery-Fitzgerald the Third"
	tests := []struct {
		name     string
		opts     []certfill.Option
		min      float64
		overflow bool
	}{
		// 252pt wide in Helvetica-Bold 12, 273pt at 13; the usable width is 257pt
		{"fits at min", []certfill.Option{certfill.WithMargin(0.29)}, 12, false},
		{
			"narrow range",
			[]certfill.Option{certfill.WithMaxFont(24), certfill.WithMinFont(20), certfill.WithMargin(0.3)},
			20, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newEditor(t, tt.opts...).Edit(template(t, "{{name}}"), name)
			if err != nil {
				t.Fatalf("Edit: %v", err)
			}
			if out.Edits != 1 {
				t.Fatalf("edits = %d", out.Edits)
			}
			res := out.Renders[0]
			if res.Font.Size != tt.min || res.Overflow != tt.overflow {
				t.Errorf("size %g overflow %v, want %g overflow %v", res.Font.Size, res.Overflow, tt.min, tt.overflow)
			}
		})
	}
}

func TestEditWithoutPlaceholderIsUnchanged(t *testing.T) {
	data := template(t, "Certificate of Completion", "awarded to nobody in particular")
	out, err := newEditor(t).Edit(data, "Jordan Lee")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out.Edits != 0 || !bytes.Equal(out.PDF, data) {
		t.Errorf("edits = %d, unchanged = %v", out.Edits, bytes.Equal(out.PDF, data))
	}
}

func TestEditEveryToken(t *testing.T) {
	data := template(t, "XXXX", "[name]", "{name}", "{{name}}")
	out, err := newEditor(t).Edit(data, "Ada Lovelace")
	if err != nil {
		t.Fatal(err)
	}
	if out.Edits != 4 || len(out.Renders) != 4 {
		t.Fatalf("edits = %d, renders = %d, want 4", out.Edits, len(out.Renders))
	}
	for i := 1; i < len(out.Renders); i++ {
		if out.Renders[i].BaselineY <= out.Renders[i-1].BaselineY {
			t.Errorf("renders not in content order: %+v", out.Renders)
		}
	}
}

func TestEditCustomTokensAndFont(t *testing.T) {
	data := template(t, "<<RECIPIENT>>")
	out, err := newEditor(t, certfill.WithTokens("<<RECIPIENT>>"), certfill.WithFonts("times-bold")).Edit(data, "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if out.Edits != 1 || out.Renders[0].Font.Family != "times" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestEditMultiPage(t *testing.T) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 24)
	for _, line := range []string{"cover page", "{{name}}", "terms"} {
		pdf.AddPage()
		pdf.Text(100, 300, line)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}

	out, err := newEditor(t).Edit(buf.Bytes(), "Grace Hopper")
	if err != nil {
		t.Fatal(err)
	}
	if out.Pages != 3 || out.Edits != 1 {
		t.Errorf("outcome = %+v", out)
	}
	layouts, err := placeholder.StreamSource{}.Layouts(out.PDF)
	if err != nil {
		t.Fatal(err)
	}
	if len(layouts) != 3 || !strings.Contains(layouts[1].Text(), "Grace Hopper") {
		t.Errorf("name not on page 2")
	}
}

func TestEditKeepsAnnotationsAndUntouchedPages(t *testing.T) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Certificate of Completion", false)
	pdf.SetFont("Helvetica", "", 24)
	pdf.AddPage()
	pdf.Text(100, 300, "{{name}}")
	pdf.LinkString(100, 600, 200, 20, "https://certs.example.org/terms")
	pdf.AddPage()
	pdf.Text(100, 300, "terms and conditions")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	out, err := newEditor(t).Edit(data, "Grace Hopper")
	if err != nil {
		t.Fatal(err)
	}
	if out.Edits != 1 || !bytes.HasPrefix(out.PDF, data) {
		t.Fatalf("edits = %d, original bytes kept = %v", out.Edits, bytes.HasPrefix(out.PDF, data))
	}

	before, err := reader.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	after, err := reader.Parse(out.PDF)
	if err != nil {
		t.Fatal(err)
	}
	if after.NumPages() != 2 {
		t.Fatalf("pages = %d", after.NumPages())
	}
	if got := after.Metadata()["Title"]; got != "Certificate of Completion" {
		t.Errorf("title = %q", got)
	}

	first, _ := before.Page(1)
	edited, _ := after.Page(1)
	if edited.Dict["Annots"] == nil {
		t.Fatal("edited page lost its annotations")
	}
	if diff := cmp.Diff(first.Dict["Annots"], edited.Dict["Annots"]); diff != "" {
		t.Errorf("annotations mismatch (-before +after):\n%s", diff)
	}
	if !bytes.Contains(out.PDF, []byte("https://certs.example.org/terms")) {
		t.Error("link target lost")
	}

	second, _ := before.Page(2)
	untouched, _ := after.Page(2)
	if second.Ref != untouched.Ref {
		t.Errorf("page 2 is object %v, was %v", untouched.Ref, second.Ref)
	}
	if diff := cmp.Diff(second.Dict, untouched.Dict); diff != "" {
		t.Errorf("page 2 dictionary changed (-before +after):\n%s", diff)
	}
	was, err := second.ContentStream()
	if err != nil {
		t.Fatal(err)
	}
	is, err := untouched.ContentStream()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(was, is) {
		t.Errorf("page 2 content changed:\n%q\n%q", was, is)
	}
	rewritten := fmt.Sprintf("\n%d %d obj", second.Ref.Number, second.Ref.Generation)
	if bytes.Contains(out.PDF[len(data):], []byte(rewritten)) {
		t.Error("update rewrites page 2")
	}
}

func TestEditVerificationCode(t *testing.T) {
	data := template(t, "{{name}}")
	ed := newEditor(t, certfill.WithVerification(func(name string) string {
		return "https://certs.example.org/verify?name=" + name
	}, render.QR))
	out, err := ed.Edit(data, "Ada")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := reader.Parse(out.PDF)
	if err != nil {
		t.Fatal(err)
	}
	page, err := doc.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	content, err := page.ContentStream()
	if err != nil {
		t.Fatal(err)
	}
	// one rectangle per run of dark modules
	if n := bytes.Count(content, []byte(" re\n")); n < 20 {
		t.Errorf("verification code has %d module runs", n)
	}
}

func TestEditCompositeFontFallsBackToGlyphSource(t *testing.T) {
	// the stream interpreter rejects the Type0 font; the glyph source reads it
	data := pdftest.Document(pdftest.Page{Width: 612, Height: 792,
		Content: "BT /F3 12 Tf 100 500 Td <0041> Tj ET BT /F1 20 Tf 100 300 Td ({{name}}) Tj ET"})
	out, err := newEditor(t).Edit(data, "Ada")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out.Strategy != certfill.StrategyOverlayGlyph {
		t.Errorf("strategy = %s, want %s", out.Strategy, certfill.StrategyOverlayGlyph)
	}
}

func TestEditFormFields(t *testing.T) {
	data := pdftest.FormDocument(
		pdftest.Page{Width: 612, Height: 792},
		pdftest.Field{Name: "Recipient_Name", Type: "Tx", Rect: [4]float64{100, 300, 500, 330}},
		pdftest.Field{Name: "issuer", Type: "Tx", Value: "ACME", Rect: [4]float64{100, 100, 300, 120}},
	)
	ed := newEditor(t, certfill.WithStrategies(certfill.StrategyFormFields))
	out, err := ed.Edit(data, "Ada Lovelace")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out.Strategy != certfill.StrategyFormFields || out.Edits != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if !bytes.Contains(out.PDF, []byte("(Ada Lovelace)")) {
		t.Error("field value not written")
	}
}

func TestEditFormWithoutNameField(t *testing.T) {
	data := pdftest.FormDocument(
		pdftest.Page{Width: 612, Height: 792},
		pdftest.Field{Name: "issuer", Type: "Tx", Rect: [4]float64{100, 100, 300, 120}},
	)
	_, err := newEditor(t, certfill.WithStrategies(certfill.StrategyFormFields)).Edit(data, "Ada")
	if !errors.Is(err, certfill.ErrNoNameField) {
		t.Errorf("err = %v, want ErrNoNameField", err)
	}
}

type stubStrategy struct {
	name  string
	err   error
	panic bool
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Apply(template []byte, name string) (*certfill.Outcome, error) {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &certfill.Outcome{PDF: template}, nil
}

var errStub = errors.New("stub failure")

func TestEditFallsBackInOrder(t *testing.T) {
	var logs bytes.Buffer
	ed, err := certfill.New(
		certfill.WithLogger(log.New(&logs, "", 0)),
		certfill.WithCustomStrategies(
			stubStrategy{name: "erroring", err: errStub},
			stubStrategy{name: "panicking", panic: true},
			stubStrategy{name: "working"},
		),
	)
	if err != nil {
		t.Fatal(err)
	}

	out, err := ed.Edit([]byte("%PDF"), "Ada")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out.Strategy != "working" {
		t.Errorf("strategy = %q, want working", out.Strategy)
	}
	if got := strings.Count(logs.String(), "[WARN]"); got != 2 {
		t.Errorf("%d warnings logged, want 2:\n%s", got, logs.String())
	}
}

func TestEditAllStrategiesFail(t *testing.T) {
	ed := newEditor(t, certfill.WithCustomStrategies(
		stubStrategy{name: "a", err: errStub},
		stubStrategy{name: "b", panic: true},
	))
	_, err := ed.Edit([]byte("%PDF"), "Ada")

	var editErr *certfill.EditError
	if !errors.As(err, &editErr) || editErr.Op != "Edit" {
		t.Fatalf("err = %v, want *EditError", err)
	}
	if !errors.Is(err, certfill.ErrAllStrategiesFailed) || !errors.Is(err, errStub) {
		t.Errorf("err = %v does not match the sentinels", err)
	}
	if !strings.Contains(err.Error(), "b: panic: boom") {
		t.Errorf("panic not reported: %v", err)
	}
}

func TestEditCorruptTemplate(t *testing.T) {
	_, err := newEditor(t).Edit([]byte("%PDF-1.4\nthis is not a real document"), "Ada")
	if !errors.Is(err, certfill.ErrAllStrategiesFailed) {
		t.Errorf("err = %v, want ErrAllStrategiesFailed", err)
	}
}

func TestEditRejectsEmptyInput(t *testing.T) {
	ed := newEditor(t)
	if _, err := ed.Edit(nil, "Ada"); !errors.Is(err, certfill.ErrNoTemplate) {
		t.Errorf("nil template: %v", err)
	}
	if _, err := ed.Edit([]byte("%PDF"), "  "); !errors.Is(err, certfill.ErrEmptyName) {
		t.Errorf("blank name: %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  certfill.Option
	}{
		{"min above max", certfill.WithMinFont(40)},
		{"negative max", certfill.WithMaxFont(-1)},
		{"margin", certfill.WithMargin(0.5)},
		{"negative baseline ratio", certfill.WithBaselineRatio(-0.25)},
		{"negative mask margin", certfill.WithMaskMargin(-1)},
		{"workers", certfill.WithWorkers(0)},
		{"tokens", certfill.WithTokens()},
		{"strategy", certfill.WithStrategies("overlay/magic")},
		{"no strategies", certfill.WithStrategies()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := certfill.New(tt.opt); !errors.Is(err, certfill.ErrInvalidOption) {
				t.Errorf("err = %v, want ErrInvalidOption", err)
			}
		})
	}
}

func TestDefaultStrategies(t *testing.T) {
	got := newEditor(t).Strategies()
	want := []string{"overlay/stream", "overlay/glyph", "form-fields"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("strategies = %v, want %v", got, want)
	}
}
