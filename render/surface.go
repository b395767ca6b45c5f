package render

import (
	"bytes"
	"fmt"
	"strconv"

	"codeberg.org/go-pdf/fpdf"

	"github.com/lvillar/certfill/placeholder"
)

// Box is a rectangle in top-left page coordinates.
type Box struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// InstanceBox returns the box of a located placeholder.
func InstanceBox(in placeholder.Instance) Box {
	return Box{X0: in.X0, Y0: in.Y0, X1: in.X1, Y1: in.Y1}
}

// TextBox returns the glyph box of a run drawn at (x, baseline).
func TextBox(x, baseline, width, size float64) Box {
	return Box{
		X0: x,
		Y0: baseline - placeholder.Ascent*size,
		X1: x + width,
		Y1: baseline + placeholder.Descent*size,
	}
}

// Grow returns b extended by m on every side.
func (b Box) Grow(m float64) Box {
	return Box{X0: b.X0 - m, Y0: b.Y0 - m, X1: b.X1 + m, Y1: b.Y1 + m}
}

// Width returns the horizontal extent of b.
func (b Box) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of b.
func (b Box) Height() float64 { return b.Y1 - b.Y0 }

// Color is an opaque RGB color.
type Color struct{ R, G, B uint8 }

var (
	White = Color{255, 255, 255}
	Black = Color{0, 0, 0}
)

// Surface is a page that masks and text can be drawn on.
type Surface interface {
	// Size returns the page width and height in points.
	Size() (w, h float64)
	SetFont(f FontSpec) error
	// StringWidth measures s, Windows-1252 encoded, in the current font.
	StringWidth(s string) float64
	FillRect(b Box, c Color)
	// Text draws s in opaque black with its baseline at y.
	Text(x, y float64, s string)
	Err() error
}

// Mask paints every box, grown by margin, in the fill color. Callers mask
// all instances of a page before drawing any text on it.
func Mask(s Surface, margin float64, fill Color, boxes ...Box) error {
	for _, b := range boxes {
		s.FillRect(b.Grow(margin), fill)
	}
	return s.Err()
}

// StreamSurface records masks and text as content stream operators for a
// page of an existing document. Text is measured with fpdf's core font
// metrics and shown in the matching standard Type1 faces, each registered
// under a resource name starting with the surface's prefix.
type StreamSurface struct {
	llx, ury float64
	w, h     float64
	prefix   string
	metrics  *fpdf.Fpdf
	face     FontSpec
	names    map[FontSpec]string
	buf      bytes.Buffer
}

// NewStreamSurface returns an empty surface for a page with the given
// media box.
func NewStreamSurface(llx, lly, urx, ury float64, prefix string) *StreamSurface {
	return &StreamSurface{
		llx:     llx,
		ury:     ury,
		w:       urx - llx,
		h:       ury - lly,
		prefix:  prefix,
		metrics: fpdf.New("P", "pt", "A4", ""),
		names:   make(map[FontSpec]string),
	}
}

// Size implements Surface.
func (s *StreamSurface) Size() (float64, float64) { return s.w, s.h }

// SetFont implements Surface. A face fpdf has no metrics for is reported as
// an error and leaves the surface usable.
func (s *StreamSurface) SetFont(f FontSpec) error {
	if err := s.metrics.Error(); err != nil {
		return err
	}
	s.metrics.SetFont(f.Family, f.Style, f.Size)
	if err := s.metrics.Error(); err != nil {
		s.metrics.ClearError()
		return err
	}
	if _, ok := f.BaseFont(); !ok {
		return fmt.Errorf("render: no standard face for %s", f)
	}
	s.face = f
	return nil
}

// StringWidth implements Surface.
func (s *StreamSurface) StringWidth(str string) float64 {
	return s.metrics.GetStringWidth(str)
}

// FillRect implements Surface.
func (s *StreamSurface) FillRect(b Box, c Color) {
	fmt.Fprintf(&s.buf, "%.3f %.3f %.3f rg %.2f %.2f %.2f %.2f re f\n",
		float64(c.R)/255, float64(c.G)/255, float64(c.B)/255,
		s.llx+b.X0, s.ury-b.Y1, b.Width(), b.Height())
}

// Text implements Surface.
func (s *StreamSurface) Text(x, y float64, str string) {
	key := FontSpec{Family: s.face.Family, Style: s.face.Style}
	name, ok := s.names[key]
	if !ok {
		name = s.prefix + strconv.Itoa(len(s.names)+1)
		s.names[key] = name
	}
	fmt.Fprintf(&s.buf, "BT 0 g /%s %.2f Tf %.2f %.2f Td <%X> Tj ET\n",
		name, s.face.Size, s.llx+x, s.ury-y, str)
}

// Err implements Surface.
func (s *StreamSurface) Err() error { return s.metrics.Error() }

// Content returns the recorded operators.
func (s *StreamSurface) Content() []byte { return s.buf.Bytes() }

// Fonts maps the resource names used by Text to their base font names.
func (s *StreamSurface) Fonts() map[string]string {
	fonts := make(map[string]string, len(s.names))
	for face, name := range s.names {
		fonts[name], _ = face.BaseFont()
	}
	return fonts
}
