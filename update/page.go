package update

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lvillar/certfill/reader"
)

// AppendContent draws content on top of page. The existing content streams
// are kept and wrapped in q/Q so graphics state they leave behind does not
// leak into the addition. fonts maps new resource names to standard Type1
// base fonts, e.g. "Helvetica-Bold", which are added with WinAnsiEncoding.
//
// The page dictionary is replaced; every other object of the page keeps its
// bytes, including its annotations.
func (w *Writer) AppendContent(page *reader.Page, content []byte, fonts map[string]string) error {
	if page.Ref.Number == 0 {
		return fmt.Errorf("update: page %d is not an indirect object", page.Number)
	}
	dict := maps.Clone(page.Dict)
	res := w.dict(page.RawResources)
	if prev, ok := w.objects[page.Ref.Number]; ok {
		// drawn on before in this update
		if d, ok := prev.obj.(reader.Dict); ok {
			dict = maps.Clone(d)
			res = w.dict(d["Resources"])
		}
	}

	var contents reader.Array
	if c, ok := dict["Contents"]; ok {
		obj, err := w.doc.Resolve(c)
		if err != nil {
			return fmt.Errorf("update: page %d contents: %w", page.Number, err)
		}
		switch v := obj.(type) {
		case reader.Array:
			contents = slices.Clone(v)
		case reader.Stream:
			contents = reader.Array{c}
		}
	}

	body, err := FlateStream(nil, append([]byte("Q\n"), content...))
	if err != nil {
		return err
	}
	push := w.Add(reader.Stream{Dict: reader.Dict{}, Data: []byte("q")})
	pop := w.Add(body)
	dict["Contents"] = append(append(reader.Array{push}, contents...), pop)

	if res == nil {
		res = reader.Dict{}
	}
	if len(fonts) > 0 {
		fontDict := w.dict(res["Font"])
		if fontDict == nil {
			fontDict = reader.Dict{}
		}
		for _, name := range slices.Sorted(maps.Keys(fonts)) {
			fontDict[reader.Name(name)] = w.Add(reader.Dict{
				"Type":     reader.Name("Font"),
				"Subtype":  reader.Name("Type1"),
				"BaseFont": reader.Name(fonts[name]),
				"Encoding": reader.Name("WinAnsiEncoding"),
			})
		}
		res["Font"] = fontDict
	}
	dict["Resources"] = res

	w.Set(page.Ref, dict)
	return nil
}

// FontPrefix returns base, extended with 'x' until none of the font
// resource names of page start with it.
func (w *Writer) FontPrefix(page *reader.Page, base string) string {
	fonts := w.dict(page.Resources["Font"])
	prefix := base
	for taken := true; taken; {
		taken = false
		for name := range fonts {
			if strings.HasPrefix(string(name), prefix) {
				prefix += "x"
				taken = true
				break
			}
		}
	}
	return prefix
}

// dict resolves obj and returns a copy of it as a dictionary, or nil.
func (w *Writer) dict(obj reader.Object) reader.Dict {
	if obj == nil {
		return nil
	}
	resolved, err := w.doc.Resolve(obj)
	if err != nil {
		return nil
	}
	d, ok := resolved.(reader.Dict)
	if !ok {
		return nil
	}
	return maps.Clone(d)
}
