package placeholder

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"

	"github.com/lvillar/certfill/reader"
)

// Source turns PDF bytes into one Layout per page.
type Source interface {
	Name() string
	Layouts(data []byte) ([]Layout, error)
}

// StreamSource reads layouts with the reader package's content interpreter.
// It handles simple fonts only and fails with reader.ErrUnsupportedFont when
// a page shows text in a composite font.
type StreamSource struct{}

// Name implements Source.
func (StreamSource) Name() string { return "stream" }

// Layouts implements Source.
func (StreamSource) Layouts(data []byte) ([]Layout, error) {
	doc, err := reader.Parse(data)
	if err != nil {
		return nil, err
	}

	layouts := make([]Layout, 0, doc.NumPages())
	for num, page := range doc.Pages() {
		glyphs, err := page.Glyphs()
		if err != nil {
			return nil, err
		}
		box := page.MediaBox
		layout := Layout{Page: num, Width: box.Width(), Height: box.Height()}
		layout.Glyphs = make([]Glyph, 0, len(glyphs))
		for _, g := range glyphs {
			layout.Glyphs = append(layout.Glyphs, Glyph{
				Rune:     g.Rune,
				X:        g.X - box.LLX,
				Baseline: box.URY - g.Y,
				Width:    g.Width,
				Size:     g.Size,
				NewLine:  g.NewLine,
			})
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// GlyphSource reads layouts with github.com/ledongthuc/pdf, which decodes
// composite fonts through their ToUnicode maps. It does not descend into
// form XObjects.
type GlyphSource struct{}

// Name implements Source.
func (GlyphSource) Name() string { return "glyph" }

// Layouts implements Source. Panics raised by the library on malformed input
// are returned as errors.
func (GlyphSource) Layouts(data []byte) (layouts []Layout, err error) {
	defer func() {
		if r := recover(); r != nil {
			layouts, err = nil, fmt.Errorf("placeholder: glyph extraction: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("placeholder: opening document: %w", err)
	}

	for num := 1; num <= r.NumPage(); num++ {
		page := r.Page(num)
		llx, lly, urx, ury := mediaBox(page)
		layout := Layout{Page: num, Width: urx - llx, Height: ury - lly}
		if !page.V.IsNull() {
			layout.Glyphs = glyphsOf(page.Content().Text, llx, ury)
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// glyphsOf converts per-character text runs. The library reports a "\n"
// run after every TJ array; it and any jump back or to another baseline
// start a new line. The library does not advance past glyphs of fonts that
// carry no /Widths (the standard 14); those are re-spaced with the bundled
// core font metrics.
func glyphsOf(texts []pdf.Text, llx, ury float64) []Glyph {
	var glyphs []Glyph
	brk := true
	var prev pdf.Text
	var prevX, prevW float64
	for _, t := range texts {
		if t.S == "\n" {
			brk = true
			continue
		}
		if len(glyphs) > 0 && (math.Abs(t.Y-prev.Y) > prev.FontSize/2 || t.X < prev.X) {
			brk = true
		}

		x, w := t.X, t.W
		if w == 0 {
			w = estimateWidth(t)
			if !brk && t.X == prev.X && prev.W == 0 {
				x = prevX + prevW
			}
		}
		for _, r := range t.S {
			glyphs = append(glyphs, Glyph{
				Rune:     r,
				X:        x - llx,
				Baseline: ury - t.Y,
				Width:    w,
				Size:     t.FontSize,
				NewLine:  brk,
			})
			brk = false
		}
		prev, prevX, prevW = t, x, w
	}
	return glyphs
}

func estimateWidth(t pdf.Text) float64 {
	var units float64
	for _, r := range t.S {
		w, ok := reader.StandardWidth(t.Font, r)
		if !ok {
			w = 500
		}
		units += w
	}
	return units / 1000 * t.FontSize
}

// mediaBox walks up the page tree for an inherited /MediaBox, defaulting
// to US Letter.
func mediaBox(page pdf.Page) (llx, lly, urx, ury float64) {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return box.Index(0).Float64(), box.Index(1).Float64(),
				box.Index(2).Float64(), box.Index(3).Float64()
		}
	}
	return 0, 0, 612, 792
}
