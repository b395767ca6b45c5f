package reader

import (
	"fmt"
)

// Rectangle is a PDF rectangle [llx lly urx ury] in user space.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the width of the rectangle.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the height of the rectangle.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// defaultMediaBox is US Letter, used when the page tree carries no /MediaBox.
var defaultMediaBox = Rectangle{URX: 612, URY: 792}

// Page is a single page of a Document.
type Page struct {
	Number    int
	MediaBox  Rectangle
	CropBox   *Rectangle
	Resources Dict
	Contents  []Stream
	Rotate    int

	// Ref is the page object; it is zero for a page dictionary stored
	// inline in its parent's /Kids.
	Ref Reference
	// Dict is the page dictionary as stored, without inherited entries.
	Dict Dict
	// RawResources is the /Resources entry in effect, inherited or not,
	// before resolving.
	RawResources Object

	doc *Document
}

// Size returns the page width and height in points.
func (p *Page) Size() (float64, float64) {
	return p.MediaBox.Width(), p.MediaBox.Height()
}

// ContentStream returns the decoded page content. Multiple content streams
// are concatenated with a separating newline.
func (p *Page) ContentStream() ([]byte, error) {
	var result []byte
	for _, s := range p.Contents {
		decoded, err := decodeStream(s)
		if err != nil {
			return nil, fmt.Errorf("reader: decoding page %d content: %w", p.Number, err)
		}
		result = append(result, decoded...)
		result = append(result, '\n')
	}
	return result, nil
}

func parseRectangle(obj Object) (Rectangle, error) {
	arr, ok := obj.(Array)
	if !ok || len(arr) != 4 {
		return Rectangle{}, fmt.Errorf("reader: rectangle must be a 4-element array")
	}
	vals, ok := numbers(arr)
	if !ok {
		return Rectangle{}, fmt.Errorf("reader: rectangle has non-numeric elements")
	}
	r := Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r, nil
}

// buildPageList flattens the page tree into d.pages.
func (d *Document) buildPageList() error {
	catalog, err := d.Catalog()
	if err != nil {
		return err
	}
	root := d.resolveDict(catalog["Pages"])
	if root == nil {
		return fmt.Errorf("reader: missing or invalid /Pages: %w", ErrCorrupted)
	}

	d.pages = nil
	visited := make(map[int]bool)
	rootRef, _ := catalog["Pages"].(Reference)
	if rootRef.Number > 0 {
		visited[rootRef.Number] = true
	}
	return d.traversePageTree(root, rootRef, nil, visited)
}

// inheritable lists page attributes a /Pages node passes to its kids.
var inheritable = []Name{"MediaBox", "CropBox", "Resources", "Rotate"}

func (d *Document) traversePageTree(node Dict, ref Reference, inherited Dict, visited map[int]bool) error {
	merged := make(Dict, len(inheritable))
	for k, v := range inherited {
		merged[k] = v
	}
	for _, key := range inheritable {
		if v, ok := node[key]; ok {
			merged[key] = v
		}
	}

	if node.GetName("Type") == "Page" || (node["Kids"] == nil && node["Contents"] != nil) {
		d.pages = append(d.pages, d.newPage(node, ref, merged))
		return nil
	}

	for _, kid := range d.resolveArray(node["Kids"]) {
		kidRef, isRef := kid.(Reference)
		if isRef {
			if visited[kidRef.Number] {
				return fmt.Errorf("reader: page tree cycle at object %d: %w", kidRef.Number, ErrCorrupted)
			}
			visited[kidRef.Number] = true
		}
		kidDict := d.resolveDict(kid)
		if kidDict == nil {
			continue
		}
		if err := d.traversePageTree(kidDict, kidRef, merged, visited); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) newPage(node Dict, ref Reference, attrs Dict) *Page {
	page := &Page{
		Number:       len(d.pages) + 1,
		MediaBox:     defaultMediaBox,
		Ref:          ref,
		Dict:         node,
		RawResources: attrs["Resources"],
		doc:          d,
	}

	if mb, err := d.Resolve(attrs["MediaBox"]); err == nil {
		if rect, err := parseRectangle(mb); err == nil {
			page.MediaBox = rect
		}
	}
	if cb, err := d.Resolve(attrs["CropBox"]); err == nil {
		if rect, err := parseRectangle(cb); err == nil {
			page.CropBox = &rect
		}
	}
	page.Resources = d.resolveDict(attrs["Resources"])
	if rot, err := d.Resolve(attrs["Rotate"]); err == nil {
		if n, ok := number(rot); ok {
			page.Rotate = int(n)
		}
	}

	contents, err := d.Resolve(node["Contents"])
	if err != nil {
		return page
	}
	switch c := contents.(type) {
	case Stream:
		page.Contents = []Stream{c}
	case Array:
		for _, item := range c {
			obj, err := d.Resolve(item)
			if err != nil {
				continue
			}
			if s, ok := obj.(Stream); ok {
				page.Contents = append(page.Contents, s)
			}
		}
	}
	return page
}

// font returns the font dictionary registered under name in res.
func (d *Document) font(res Dict, name Name) Dict {
	fonts := d.resolveDict(res["Font"])
	if fonts == nil {
		return nil
	}
	return d.resolveDict(fonts[name])
}

// xobject returns the XObject stream registered under name in res.
func (d *Document) xobject(res Dict, name Name) (Stream, bool) {
	xobjs := d.resolveDict(res["XObject"])
	if xobjs == nil {
		return Stream{}, false
	}
	obj, err := d.Resolve(xobjs[name])
	if err != nil {
		return Stream{}, false
	}
	s, ok := obj.(Stream)
	return s, ok
}
