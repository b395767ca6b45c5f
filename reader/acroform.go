package reader

import (
	"fmt"
	"strconv"
)

// FormField is a node of the AcroForm field tree.
type FormField struct {
	Name     string       // partial name (/T)
	FullName string       // dotted fully qualified name
	Type     string       // "Tx", "Btn", "Ch" or "Sig", inherited from ancestors
	Value    string       // /V
	Flags    int          // /Ff
	Rect     Rectangle    // widget rectangle, when the field is its own widget
	Kids     []*FormField
	ObjNum   int          // object number, 0 for direct dictionaries
}

// IsReadOnly reports whether the ReadOnly flag (bit 1) is set.
func (f *FormField) IsReadOnly() bool { return f.Flags&1 != 0 }

// IsText reports whether the field holds free text.
func (f *FormField) IsText() bool { return f.Type == "Tx" }

// Terminal returns the fields of the tree that carry a value, i.e. those
// without named children, in document order.
func Terminal(fields []*FormField) []*FormField {
	var out []*FormField
	var walk func([]*FormField)
	walk = func(level []*FormField) {
		for _, f := range level {
			named := false
			for _, k := range f.Kids {
				if k.Name != "" {
					named = true
					break
				}
			}
			if named {
				walk(f.Kids)
			} else {
				out = append(out, f)
			}
		}
	}
	walk(fields)
	return out
}

// FormFields returns the top-level AcroForm fields. A document without a
// form yields an empty slice.
func (d *Document) FormFields() ([]*FormField, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	acroForm := d.resolveDict(catalog["AcroForm"])
	if acroForm == nil {
		return []*FormField{}, nil
	}

	fields := []*FormField{}
	visited := make(map[int]bool)
	for _, obj := range d.resolveArray(acroForm["Fields"]) {
		field, err := d.parseFormField(obj, "", "", visited)
		if err != nil {
			continue
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// FormField returns the field with the given fully qualified name, or nil.
func (d *Document) FormField(name string) (*FormField, error) {
	fields, err := d.FormFields()
	if err != nil {
		return nil, err
	}
	return findField(fields, name), nil
}

func findField(fields []*FormField, name string) *FormField {
	for _, f := range fields {
		if f.FullName == name {
			return f
		}
		if found := findField(f.Kids, name); found != nil {
			return found
		}
	}
	return nil
}

func (d *Document) parseFormField(obj Object, parentName, parentType string, visited map[int]bool) (*FormField, error) {
	field := &FormField{Type: parentType}
	if ref, ok := obj.(Reference); ok {
		if visited[ref.Number] {
			return nil, fmt.Errorf("reader: field tree cycle at object %d: %w", ref.Number, ErrCorrupted)
		}
		visited[ref.Number] = true
		field.ObjNum = ref.Number
	}

	dict := d.resolveDict(obj)
	if dict == nil {
		return nil, fmt.Errorf("reader: form field is not a dictionary")
	}

	if s, ok := dict["T"].(String); ok {
		field.Name = decodeTextString(s.Value)
	}
	switch {
	case parentName != "" && field.Name != "":
		field.FullName = parentName + "." + field.Name
	case field.Name != "":
		field.FullName = field.Name
	default:
		field.FullName = parentName
	}

	if ft := dict.GetName("FT"); ft != "" {
		field.Type = string(ft)
	}
	if v, err := d.Resolve(dict["V"]); err == nil {
		field.Value = objectToString(v)
	}
	if ff, ok := dict.GetInt("Ff"); ok {
		field.Flags = int(ff)
	}
	if r, err := d.Resolve(dict["Rect"]); err == nil {
		if rect, err := parseRectangle(r); err == nil {
			field.Rect = rect
		}
	}

	for _, kidObj := range d.resolveArray(dict["Kids"]) {
		kid, err := d.parseFormField(kidObj, field.FullName, field.Type, visited)
		if err != nil {
			continue
		}
		field.Kids = append(field.Kids, kid)
	}
	return field, nil
}

// objectToString renders a field value.
func objectToString(obj Object) string {
	switch v := obj.(type) {
	case String:
		return decodeTextString(v.Value)
	case Name:
		return string(v)
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Real:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Boolean:
		return v.String()
	}
	return ""
}
