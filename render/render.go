// Package render draws a name centered on a page at the largest font size
// that fits the usable width.
//
// Coordinates are in points with the origin at the top-left corner of the
// page, matching placeholder.Instance and fpdf with the "pt" unit.
package render

import (
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Defaults used by New.
const (
	DefaultMaxFont       = 36
	DefaultMinFont       = 12
	DefaultMargin        = 0.1
	DefaultBaselineRatio = 0.25
	DefaultMaskMargin    = 2
)

// MinUsableWidth is the floor applied to the usable width so that extreme
// margins never produce a zero or negative fit target.
const MinUsableWidth = 1.0

// DefaultFonts are the font candidates tried in order.
var DefaultFonts = []string{"helvetica-bold", "times-bold", "helvetica"}

// fallbackFont is used when no candidate is a supported standard face.
var fallbackFont = FontSpec{Family: "helvetica"}

// FontSpec names a standard face and a size.
type FontSpec struct {
	Family string  // "helvetica", "times" or "courier"
	Style  string  // "", "B", "I" or "BI"
	Size   float64 // points
}

// String returns the candidate form of the face, e.g. "times-bold 24".
func (f FontSpec) String() string {
	name := f.Family
	switch f.Style {
	case "B":
		name += "-bold"
	case "I":
		name += "-italic"
	case "BI":
		name += "-bolditalic"
	}
	if f.Size > 0 {
		name += fmt.Sprintf(" %g", f.Size)
	}
	return name
}

var baseFonts = map[string][4]string{
	"helvetica": {"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"},
	"times":     {"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"},
	"courier":   {"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"},
}

// BaseFont returns the standard Type1 font name of the face, e.g.
// "Times-Bold".
func (f FontSpec) BaseFont() (string, bool) {
	names, ok := baseFonts[f.Family]
	if !ok {
		return "", false
	}
	switch f.Style {
	case "":
		return names[0], true
	case "B":
		return names[1], true
	case "I":
		return names[2], true
	case "BI":
		return names[3], true
	}
	return "", false
}

var families = map[string]string{
	"helvetica": "helvetica",
	"arial":     "helvetica",
	"sans":      "helvetica",
	"times":     "times",
	"serif":     "times",
	"courier":   "courier",
	"mono":      "courier",
}

var styles = map[string]string{
	"":            "",
	"regular":     "",
	"roman":       "",
	"bold":        "B",
	"italic":      "I",
	"oblique":     "I",
	"bolditalic":  "BI",
	"boldoblique": "BI",
}

// ParseFont parses a candidate such as "helvetica-bold" or "Times-BoldItalic".
// It reports false when the name is not one of the standard faces.
func ParseFont(name string) (FontSpec, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	family, style, _ := strings.Cut(name, "-")
	fam, ok := families[family]
	if !ok {
		return FontSpec{}, false
	}
	st, ok := styles[strings.ReplaceAll(style, "-", "")]
	if !ok {
		return FontSpec{}, false
	}
	return FontSpec{Family: fam, Style: st}, true
}

// UsableWidth returns the page width minus a margin of margin*pageWidth on
// each side, floored at MinUsableWidth.
func UsableWidth(pageWidth, margin float64) float64 {
	return max(pageWidth*(1-2*margin), MinUsableWidth)
}

// FitSize returns the largest size, stepping down by 1 from maxSize, whose
// measured width is at most usable. When no size in [minSize, maxSize]
// fits, it returns minSize and overflow is true.
func FitSize(measure func(size float64) float64, usable, minSize, maxSize float64) (size float64, overflow bool) {
	for size = maxSize; size >= minSize; size-- {
		if measure(size) <= usable {
			return size, false
		}
	}
	return minSize, true
}

// CenterX returns the left edge that centers a run of the given width on
// the page.
func CenterX(pageWidth, width float64) float64 {
	return (pageWidth - width) / 2
}

// BaselineY returns the baseline for text anchored at anchorY, clamped to
// the top of the page.
func BaselineY(anchorY, size, ratio float64) float64 {
	return max(0, anchorY-size*ratio)
}

// Encode transcodes s to Windows-1252, the encoding of the core fonts.
// Runes with no Windows-1252 form become '?' and lossy is true.
func Encode(s string) (encoded string, lossy bool) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r == utf8.RuneError {
			buf, lossy = append(buf, '?'), true
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			buf, lossy = append(buf, '?'), true
			continue
		}
		buf = append(buf, b)
	}
	return string(buf), lossy
}

// Result describes one drawn name.
type Result struct {
	Font      FontSpec `json:"font"`
	X         float64  `json:"x"`
	BaselineY float64  `json:"baselineY"`
	Width     float64  `json:"width"`
	Box       Box      `json:"box"`
	Overflow  bool     `json:"overflow,omitempty"` // min size still wider than the usable width
	Degraded  bool     `json:"degraded,omitempty"` // font substituted or runes replaced
}

// Renderer fits and draws names. The zero value is not usable; use New.
// A Renderer is not modified by Draw and may be shared.
type Renderer struct {
	MaxFont       float64
	MinFont       float64
	Margin        float64
	BaselineRatio float64
	Fonts         []string
	Logger        *log.Logger
}

// New returns a Renderer with the default settings.
func New() *Renderer {
	return &Renderer{
		MaxFont:       DefaultMaxFont,
		MinFont:       DefaultMinFont,
		Margin:        DefaultMargin,
		BaselineRatio: DefaultBaselineRatio,
		Fonts:         DefaultFonts,
		Logger:        log.Default(),
	}
}

func (r *Renderer) logf(format string, args ...any) {
	l := r.Logger
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	l.Printf(format, args...)
}

// selectFont sets the first supported candidate the surface accepts. When
// every candidate is unknown or rejected it sets Helvetica and degraded is
// true.
func (r *Renderer) selectFont(s Surface) (face FontSpec, degraded bool) {
	for _, name := range r.Fonts {
		f, ok := ParseFont(name)
		if !ok {
			continue
		}
		err := s.SetFont(f)
		if err == nil {
			return f, false
		}
		r.logf("[WARN] render: font %s unavailable: %v", f, err)
	}
	r.logf("[WARN] render: no usable font in %q, using %s", r.Fonts, fallbackFont)
	// a rejected fallback is reported when the fitted size is set
	_ = s.SetFont(fallbackFont)
	return fallbackFont, true
}

// Draw renders text on the surface, centered on the page with its baseline
// just above anchorY. Font substitution, replaced runes and overflow are
// reported in the Result and logged; only surface failures are errors.
func (r *Renderer) Draw(s Surface, text string, anchorY float64) (Result, error) {
	face, degraded := r.selectFont(s)

	enc, lossy := Encode(text)
	if lossy {
		r.logf("[WARN] render: %q has characters outside Windows-1252", text)
		degraded = true
	}

	pageW, _ := s.Size()
	minSize, maxSize := r.MinFont, max(r.MaxFont, r.MinFont)
	size, overflow := FitSize(func(size float64) float64 {
		face.Size = size
		if err := s.SetFont(face); err != nil {
			return 0
		}
		return s.StringWidth(enc)
	}, UsableWidth(pageW, r.Margin), minSize, maxSize)
	if overflow {
		r.logf("[WARN] render: %q overflows the usable width at %gpt", text, size)
	}

	face.Size = size
	if err := s.SetFont(face); err != nil {
		return Result{}, fmt.Errorf("render: setting font %s: %w", face, err)
	}
	width := s.StringWidth(enc)
	x := CenterX(pageW, width)
	y := BaselineY(anchorY, size, r.BaselineRatio)
	s.Text(x, y, enc)
	if err := s.Err(); err != nil {
		return Result{}, fmt.Errorf("render: drawing text: %w", err)
	}

	return Result{
		Font:      face,
		X:         x,
		BaselineY: y,
		Width:     width,
		Box:       TextBox(x, y, width, size),
		Overflow:  overflow,
		Degraded:  degraded,
	}, nil
}
