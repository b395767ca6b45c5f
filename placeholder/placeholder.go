// Package placeholder finds name placeholders such as "{{name}}" in the text
// of PDF pages.
//
// Pages are described by a Layout: the shown glyphs in content order, in
// top-left page coordinates. A Source produces layouts from PDF bytes; this
// package ships two, one built on the reader package and one on
// github.com/ledongthuc/pdf.
package placeholder

import (
	"cmp"
	"slices"
)

// DefaultTokens are the recognized placeholder strings in priority order.
var DefaultTokens = []string{"{{name}}", "XXXX", "{name}", "[name]"}

// Glyph box proportions relative to the font size.
const (
	Ascent  = 0.8
	Descent = 0.2
)

// Glyph is a shown character in top-left page coordinates (y grows down).
type Glyph struct {
	Rune     rune
	X        float64 // left edge
	Baseline float64
	Width    float64
	Size     float64
	NewLine  bool // first glyph of a line or text object
}

// Layout is the text of one page.
type Layout struct {
	Page          int // 1-based
	Width, Height float64
	Glyphs        []Glyph
}

// Instance is one occurrence of a token. Coordinates are in points with the
// origin at the top-left corner of the page: (X0, Y0) is the top-left corner
// of the box and (X1, Y1) the bottom-right.
type Instance struct {
	Page     int     `json:"page"`
	Token    string  `json:"token"`
	X0       float64 `json:"x0"`
	Y0       float64 `json:"y0"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	FontSize float64 `json:"fontSize"`

	first, last int // glyph range [first, last)
}

// Width returns the horizontal extent of the instance.
func (in Instance) Width() float64 { return in.X1 - in.X0 }

// Height returns the vertical extent of the instance.
func (in Instance) Height() float64 { return in.Y1 - in.Y0 }

func (in Instance) overlaps(other Instance) bool {
	return in.first < other.last && other.first < in.last
}

// Locate returns every non-overlapping occurrence of token on the page, in
// content order. Matching is exact and case-sensitive; a token never matches
// across a line break. An empty token matches nothing.
func Locate(page Layout, token string) []Instance {
	needle := []rune(token)
	if len(needle) == 0 {
		return nil
	}

	var found []Instance
	glyphs := page.Glyphs
	for start := 0; start < len(glyphs); {
		end := start + 1
		for end < len(glyphs) && !glyphs[end].NewLine {
			end++
		}
		for i := start; i+len(needle) <= end; {
			if matches(glyphs[i:i+len(needle)], needle) {
				found = append(found, newInstance(page, token, i, i+len(needle)))
				i += len(needle)
				continue
			}
			i++
		}
		start = end
	}
	return found
}

func matches(glyphs []Glyph, needle []rune) bool {
	for i, r := range needle {
		if glyphs[i].Rune != r {
			return false
		}
	}
	return true
}

func newInstance(page Layout, token string, first, last int) Instance {
	g := page.Glyphs[first:last]
	size := 0.0
	for _, gl := range g {
		size = max(size, gl.Size)
	}
	end := g[len(g)-1]
	return Instance{
		Page:     page.Page,
		Token:    token,
		X0:       g[0].X,
		Y0:       g[0].Baseline - Ascent*size,
		X1:       end.X + end.Width,
		Y1:       g[0].Baseline + Descent*size,
		FontSize: size,
		first:    first,
		last:     last,
	}
}

// LocateAll locates every token in priority order. A match that overlaps a
// match of an earlier token is dropped, so "{{name}}" wins over the "{name}"
// it contains. The result is in content order.
func LocateAll(page Layout, tokens []string) []Instance {
	var accepted []Instance
	for _, token := range tokens {
	next:
		for _, in := range Locate(page, token) {
			for _, prev := range accepted {
				if in.overlaps(prev) {
					continue next
				}
			}
			accepted = append(accepted, in)
		}
	}
	slices.SortStableFunc(accepted, func(a, b Instance) int {
		return cmp.Compare(a.first, b.first)
	})
	return accepted
}

// Scan runs LocateAll over every page.
func Scan(pages []Layout, tokens []string) []Instance {
	var all []Instance
	for _, page := range pages {
		all = append(all, LocateAll(page, tokens)...)
	}
	return all
}

// Text returns the page text with a newline before each line break.
func (l Layout) Text() string {
	runes := make([]rune, 0, len(l.Glyphs))
	for i, g := range l.Glyphs {
		if g.NewLine && i > 0 {
			runes = append(runes, '\n')
		}
		runes = append(runes, g.Rune)
	}
	return string(runes)
}
