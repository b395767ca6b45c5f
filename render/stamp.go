package render

import (
	"fmt"
	"image/color"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/qr"
)

// Symbology selects the verification code type.
type Symbology int

const (
	QR Symbology = iota
	PDF417
)

func (s Symbology) String() string {
	switch s {
	case QR:
		return "qr"
	case PDF417:
		return "pdf417"
	}
	return fmt.Sprintf("Symbology(%d)", int(s))
}

// ParseSymbology accepts "qr" and "pdf417".
func ParseSymbology(name string) (Symbology, error) {
	switch name {
	case "qr", "QR":
		return QR, nil
	case "pdf417", "PDF417":
		return PDF417, nil
	}
	return 0, fmt.Errorf("render: unknown symbology %q", name)
}

// Stamp placement relative to the page.
const (
	StampRatio = 0.12 // code width as a fraction of the page width
	StampInset = 18.0 // distance from the right and bottom edges
)

// StampBox returns where a code of the given symbology goes on a page of
// the given size: the bottom-right corner. PDF417 codes are twice as wide
// and a third as tall as the square QR box.
func StampBox(sym Symbology, pageW, pageH float64) Box {
	w := pageW * StampRatio
	h := w
	if sym == PDF417 {
		w, h = 2*w, w/3
	}
	x1, y1 := pageW-StampInset, pageH-StampInset
	return Box{X0: x1 - w, Y0: y1 - h, X1: x1, Y1: y1}
}

// StampQuiet is the white border painted around a code, in points.
const StampQuiet = 4.0

// Encode returns the modules of a code carrying payload.
func (sym Symbology) Encode(payload string) (barcode.Barcode, error) {
	if payload == "" {
		return nil, fmt.Errorf("render: empty verification payload")
	}
	var (
		code barcode.Barcode
		err  error
	)
	switch sym {
	case QR:
		code, err = qr.Encode(payload, qr.M, qr.Auto)
	case PDF417:
		code, err = pdf417.Encode(payload, 2)
	default:
		return nil, fmt.Errorf("render: unknown symbology %v", sym)
	}
	if err != nil {
		return nil, fmt.Errorf("render: encoding %v: %w", sym, err)
	}
	return code, nil
}

// Stamp draws a verification code carrying payload in the bottom-right
// corner of the page and returns its box. Dark modules are filled as
// rectangles, one per horizontal run, over a white quiet zone.
func (s *StreamSurface) Stamp(payload string, sym Symbology) (Box, error) {
	code, err := sym.Encode(payload)
	if err != nil {
		return Box{}, err
	}

	b := StampBox(sym, s.w, s.h)
	s.FillRect(b.Grow(StampQuiet), White)

	bounds := code.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	mw, mh := b.Width()/float64(cols), b.Height()/float64(rows)
	dark := func(x, y int) bool {
		return color.GrayModel.Convert(code.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y < 128
	}

	s.buf.WriteString("0 g\n")
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; {
			if !dark(x, y) {
				x++
				continue
			}
			start := x
			for x < cols && dark(x, y) {
				x++
			}
			fmt.Fprintf(&s.buf, "%.3f %.3f %.3f %.3f re\n",
				s.llx+b.X0+float64(start)*mw, s.ury-b.Y0-float64(y+1)*mh, float64(x-start)*mw, mh)
		}
	}
	s.buf.WriteString("f\n")
	return b, nil
}
