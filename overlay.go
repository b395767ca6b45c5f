package certfill

import (
	"fmt"

	"github.com/lvillar/certfill/placeholder"
	"github.com/lvillar/certfill/render"
	"github.com/lvillar/certfill/update"
)

// OverlayStrategy paints over placeholder tokens and draws the name on top.
// Pages with tokens get one more content stream, appended as an incremental
// update, holding all their masks first and then one centered name per
// token. Every other object of the template, including pages without
// tokens, annotations and the form, is left byte for byte as it was.
type OverlayStrategy struct {
	Source     placeholder.Source
	Renderer   *render.Renderer
	Tokens     []string
	MaskColor  render.Color
	MaskMargin float64

	// Verify, when set, returns the payload of a verification code drawn
	// on the first edited page.
	Verify    func(name string) string
	Symbology render.Symbology
}

// Name implements Strategy.
func (s *OverlayStrategy) Name() string { return "overlay/" + s.Source.Name() }

// Apply implements Strategy. A template without tokens is returned as is.
func (s *OverlayStrategy) Apply(template []byte, name string) (*Outcome, error) {
	layouts, err := s.Source.Layouts(template)
	if err != nil {
		return nil, fmt.Errorf("locating placeholders: %w", err)
	}

	found := make(map[int][]placeholder.Instance, len(layouts))
	total := 0
	for _, l := range layouts {
		in := placeholder.LocateAll(l, s.Tokens)
		found[l.Page] = in
		total += len(in)
	}
	out := &Outcome{Strategy: s.Name(), Pages: len(layouts)}
	if total == 0 {
		out.PDF = template
		return out, nil
	}

	up, err := update.New(template)
	if err != nil {
		return nil, err
	}
	doc := up.Document()
	if doc.NumPages() != len(layouts) {
		return nil, fmt.Errorf("document has %d pages, located on %d", doc.NumPages(), len(layouts))
	}

	stamped := false
	for n, page := range doc.Pages() {
		instances := found[n]
		if len(instances) == 0 {
			continue
		}

		box := page.MediaBox
		surface := render.NewStreamSurface(box.LLX, box.LLY, box.URX, box.URY, up.FontPrefix(page, "Cf"))
		boxes := make([]render.Box, len(instances))
		for i, in := range instances {
			boxes[i] = render.InstanceBox(in)
		}
		if err := render.Mask(surface, s.MaskMargin, s.MaskColor, boxes...); err != nil {
			return nil, fmt.Errorf("masking page %d: %w", n, err)
		}
		for _, in := range instances {
			res, err := s.Renderer.Draw(surface, name, in.Y1)
			if err != nil {
				return nil, fmt.Errorf("drawing on page %d: %w", n, err)
			}
			out.Renders = append(out.Renders, res)
		}
		out.Edits += len(instances)

		if s.Verify != nil && !stamped {
			if _, err := surface.Stamp(s.Verify(name), s.Symbology); err != nil {
				return nil, err
			}
			stamped = true
		}
		if err := up.AppendContent(page, surface.Content(), surface.Fonts()); err != nil {
			return nil, err
		}
	}

	if out.PDF, err = up.Bytes(); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	return out, nil
}
