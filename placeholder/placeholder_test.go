package placeholder

import (
	"math"
	"testing"
)

// line lays out s as one line of 10pt glyphs, each 5pt wide, starting at x
// on the given baseline.
func line(s string, x, baseline float64) []Glyph {
	var out []Glyph
	for i, r := range []rune(s) {
		out = append(out, Glyph{
			Rune:     r,
			X:        x + float64(i)*5,
			Baseline: baseline,
			Width:    5,
			Size:     10,
			NewLine:  i == 0,
		})
	}
	return out
}

func layout(lines ...[]Glyph) Layout {
	l := Layout{Page: 1, Width: 612, Height: 792}
	for _, ln := range lines {
		l.Glyphs = append(l.Glyphs, ln...)
	}
	return l
}

func TestLocate(t *testing.T) {
	page := layout(line("Awarded to {{name}} today", 100, 300))

	got := Locate(page, "{{name}}")
	if len(got) != 1 {
		t.Fatalf("instances = %d, want 1", len(got))
	}
	in := got[0]
	if in.Page != 1 || in.Token != "{{name}}" {
		t.Errorf("instance = %+v", in)
	}
	// "Awarded to " is 11 glyphs
	if in.X0 != 155 || in.X1 != 195 {
		t.Errorf("x range = [%g, %g], want [155, 195]", in.X0, in.X1)
	}
	if in.Y0 != 292 || in.Y1 != 302 {
		t.Errorf("y range = [%g, %g], want [292, 302]", in.Y0, in.Y1)
	}
	if in.FontSize != 10 {
		t.Errorf("font size = %g, want 10", in.FontSize)
	}
}

func TestLocateEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		page  Layout
		token string
		want  int
	}{
		{"no match", layout(line("Certificate of Completion", 0, 100)), "{{name}}", 0},
		{"empty page", layout(), "{{name}}", 0},
		{"empty token", layout(line("XXXX", 0, 100)), "", 0},
		{"case sensitive", layout(line("{{NAME}}", 0, 100)), "{{name}}", 0},
		{"two on one line", layout(line("XXXX and XXXX", 0, 100)), "XXXX", 2},
		{"non-overlapping run", layout(line("XXXXXXXX", 0, 100)), "XXXX", 2},
		{"across a line break", layout(line("{{na", 0, 100), line("me}}", 0, 120)), "{{name}}", 0},
		{"one per line", layout(line("[name]", 0, 100), line("[name]", 0, 200)), "[name]", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Locate(tt.page, tt.token); len(got) != tt.want {
				t.Errorf("instances = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestLocateAllPriority(t *testing.T) {
	page := layout(
		line("[name] first", 0, 100),
		line("Dear {{name}},", 0, 200),
		line("{name}", 0, 300),
	)

	got := LocateAll(page, DefaultTokens)
	want := []struct {
		token    string
		baseline float64
	}{
		{"[name]", 100},
		{"{{name}}", 200},
		{"{name}", 300},
	}
	if len(got) != len(want) {
		t.Fatalf("instances = %+v, want %d", got, len(want))
	}
	for i, w := range want {
		if got[i].Token != w.token {
			t.Errorf("instance %d token = %q, want %q", i, got[i].Token, w.token)
		}
		if math.Abs(got[i].Y1-(w.baseline+2)) > 1e-9 {
			t.Errorf("instance %d Y1 = %g, want %g", i, got[i].Y1, w.baseline+2)
		}
	}
}

func TestLocateAllIsPureRead(t *testing.T) {
	page := layout(line("XXXX", 0, 100))
	before := page.Text()
	LocateAll(page, DefaultTokens)
	LocateAll(page, DefaultTokens)
	if page.Text() != before {
		t.Error("locating mutated the layout")
	}
}

func TestInstanceBoxUsesLargestGlyph(t *testing.T) {
	glyphs := line("XXXX", 0, 100)
	glyphs[2].Size = 20
	got := Locate(layout(glyphs), "XXXX")
	if len(got) != 1 {
		t.Fatalf("instances = %d", len(got))
	}
	if got[0].FontSize != 20 || got[0].Y0 != 84 || got[0].Y1 != 104 {
		t.Errorf("instance = %+v", got[0])
	}
	if got[0].Width() != 20 || got[0].Height() != 20 {
		t.Errorf("size = %gx%g, want 20x20", got[0].Width(), got[0].Height())
	}
}

func TestScan(t *testing.T) {
	pages := []Layout{
		{Page: 1, Glyphs: line("{{name}}", 0, 100)},
		{Page: 2, Glyphs: line("nothing here", 0, 100)},
		{Page: 3, Glyphs: line("XXXX", 0, 100)},
	}
	got := Scan(pages, DefaultTokens)
	if len(got) != 2 || got[0].Page != 1 || got[1].Page != 3 {
		t.Errorf("instances = %+v", got)
	}
}

func TestLayoutText(t *testing.T) {
	page := layout(line("ab", 0, 0), line("cd", 0, 10))
	if got := page.Text(); got != "ab\ncd" {
		t.Errorf("Text() = %q", got)
	}
}
