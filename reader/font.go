package reader

import (
	"strconv"
	"strings"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// fontInfo is the subset of a simple font needed to position glyphs: advance
// widths in glyph space (1/1000 em) and the byte-to-rune mapping.
type fontInfo struct {
	widths    [256]float64
	hasWidth  [256]bool
	missing   float64
	runes     [256]rune
	composite bool // Type0; codes are multi-byte and not handled here
}

func (f *fontInfo) width(code byte) float64 {
	if f.hasWidth[code] {
		return f.widths[code]
	}
	return f.missing
}

// defaultFont is used when text is shown before any Tf.
var defaultFont = func() *fontInfo {
	f := &fontInfo{missing: 500}
	f.runes = baseEncoding("WinAnsiEncoding")
	return f
}()

// loadFont builds a fontInfo from a font dictionary.
func (d *Document) loadFont(dict Dict) *fontInfo {
	if dict == nil {
		return defaultFont
	}
	if dict.GetName("Subtype") == "Type0" {
		return &fontInfo{composite: true}
	}

	f := &fontInfo{missing: 0}
	std := standardWidths(dict.GetName("BaseFont"))

	if desc := d.resolveDict(dict["FontDescriptor"]); desc != nil {
		if mw, ok := desc.GetNumber("MissingWidth"); ok {
			f.missing = mw
		}
	}

	first, _ := dict.GetInt("FirstChar")
	widths, hasWidths := numbers(d.resolveArray(dict["Widths"]))
	switch {
	case hasWidths && len(widths) > 0:
		for i, w := range widths {
			code := int(first) + i
			if code < 0 || code > 255 {
				continue
			}
			f.widths[code] = w
			f.hasWidth[code] = true
		}
	case std != nil:
		for code, w := range std {
			f.widths[code] = w
			f.hasWidth[code] = true
		}
	default:
		if f.missing == 0 {
			f.missing = 500
		}
	}

	f.runes = fontEncoding(d, dict)
	return f
}

// fontEncoding resolves /Encoding into a byte-to-rune table.
func fontEncoding(d *Document, dict Dict) [256]rune {
	enc, _ := d.Resolve(dict["Encoding"])
	switch e := enc.(type) {
	case Name:
		return baseEncoding(e)
	case Dict:
		table := baseEncoding(e.GetName("BaseEncoding"))
		code := -1
		for _, item := range d.resolveArray(e["Differences"]) {
			switch v := item.(type) {
			case Integer:
				code = int(v)
			case Name:
				if code >= 0 && code < 256 {
					if r, ok := glyphRune(string(v)); ok {
						table[code] = r
					}
				}
				code++
			}
		}
		return table
	}
	return baseEncoding("WinAnsiEncoding")
}

// baseEncoding returns a byte-to-rune table for one of the predefined
// encodings. ASCII is shared by all of them; only the upper half differs.
func baseEncoding(name Name) [256]rune {
	cm := charmap.Windows1252
	if name == "MacRomanEncoding" {
		cm = charmap.Macintosh
	}
	var table [256]rune
	for i := range table {
		table[i] = cm.DecodeByte(byte(i))
	}
	return table
}

// glyphNames maps the glyph names that appear in /Differences arrays for the
// ASCII range. Single-letter names map to themselves.
var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"quoteright": '’', "quoteleft": '‘', "parenleft": '(', "parenright": ')',
	"asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-', "period": '.',
	"slash": '/', "zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
}

// glyphRune maps a glyph name to a rune, including "uniXXXX" names.
func glyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if hex, ok := strings.CutPrefix(name, "uni"); ok && len(hex) == 4 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}

// standardFaces maps the standard 14 base font names (and common aliases) to
// fpdf core font family and style.
var standardFaces = map[string][2]string{
	"Helvetica":             {"helvetica", ""},
	"Helvetica-Bold":        {"helvetica", "B"},
	"Helvetica-Oblique":     {"helvetica", "I"},
	"Helvetica-BoldOblique": {"helvetica", "BI"},
	"Arial":                 {"helvetica", ""},
	"Arial,Bold":            {"helvetica", "B"},
	"Arial-BoldMT":          {"helvetica", "B"},
	"ArialMT":               {"helvetica", ""},
	"Times-Roman":           {"times", ""},
	"Times-Bold":            {"times", "B"},
	"Times-Italic":          {"times", "I"},
	"Times-BoldItalic":      {"times", "BI"},
	"TimesNewRoman":         {"times", ""},
	"TimesNewRoman,Bold":    {"times", "B"},
	"Courier":               {"courier", ""},
	"Courier-Bold":          {"courier", "B"},
	"Courier-Oblique":       {"courier", "I"},
	"Courier-BoldOblique":   {"courier", "BI"},
}

var standardCache sync.Map // family+style -> *[256]float64

// standardWidths returns the core font metrics bundled with fpdf for a
// standard base font, or nil when the name is not a standard face.
func standardWidths(baseFont Name) *[256]float64 {
	name := string(baseFont)
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:] // subset tag
	}
	face, ok := standardFaces[name]
	if !ok {
		return nil
	}
	key := face[0] + face[1]
	if w, ok := standardCache.Load(key); ok {
		return w.(*[256]float64)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont(face[0], face[1], 1000)
	if pdf.Err() {
		return nil
	}
	var widths [256]float64
	for code := 1; code < 256; code++ {
		widths[code] = pdf.GetStringWidth(string([]byte{byte(code)}))
	}
	w, _ := standardCache.LoadOrStore(key, &widths)
	return w.(*[256]float64)
}

// StandardWidth returns the advance of r in glyph units (1/1000 em) for a
// standard base font such as "Helvetica-Bold", using WinAnsi encoding.
func StandardWidth(baseFont string, r rune) (float64, bool) {
	widths := standardWidths(Name(baseFont))
	if widths == nil {
		return 0, false
	}
	code, ok := charmap.Windows1252.EncodeRune(r)
	if !ok {
		return 0, false
	}
	return widths[code], true
}
