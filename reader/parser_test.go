package reader

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Object
	}{
		{"integer", "24", Integer(24)},
		{"negative", "-18", Integer(-18)},
		{"real", "595.5", Real(595.5)},
		{"leading dot", "-.5", Real(-0.5)},
		{"name", "/Helvetica-Bold", Name("Helvetica-Bold")},
		{"name escape", "/Full#20Name", Name("Full Name")},
		{"literal", "({{name}})", String{Value: []byte("{{name}}")}},
		{"nested parens", "(Awarded to (you))", String{Value: []byte("Awarded to (you)")}},
		{"escapes", `(A\nB\r\t\\\(x\))`, String{Value: []byte("A\nB\r\t\\(x)")}},
		{"octal escape", `(\101da)`, String{Value: []byte("Ada")}},
		{"hex", "<7B7B6E616D657D7D>", String{Value: []byte("{{name}}"), IsHex: true}},
		{"hex odd digits", "<414>", String{Value: []byte("A@"), IsHex: true}},
		{"true", "true", Boolean(true)},
		{"false", "false", Boolean(false)},
		{"null", "null", Null{}},
		{"comment", "% certificate template\n7", Integer(7)},
		{"reference", "12 0 R", Reference{Number: 12}},
		{"array", "[0 0 841.89 595.28]", Array{Integer(0), Integer(0), Real(841.89), Real(595.28)}},
		{"mixed array", "[1 /F1 (x) 4 0 R]", Array{Integer(1), Name("F1"), String{Value: []byte("x")}, Reference{Number: 4}}},
		{
			"dict",
			"<< /Type /Annot /Subtype /Widget /T (recipient) /Rect [10 20 300 44] /P 3 0 R >>",
			Dict{
				"Type":    Name("Annot"),
				"Subtype": Name("Widget"),
				"T":       String{Value: []byte("recipient")},
				"Rect":    Array{Integer(10), Integer(20), Integer(300), Integer(44)},
				"P":       Reference{Number: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newParser([]byte(tt.in)).ParseObject()
			if err != nil {
				t.Fatalf("ParseObject(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseObject(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseObjectErrors(t *testing.T) {
	for _, in := range []string{"(unterminated", "<7B7B", "[1 2", "<< /K 1"} {
		if obj, err := newParser([]byte(in)).ParseObject(); err == nil {
			t.Errorf("ParseObject(%q) = %v, want error", in, obj)
		}
	}
}

func TestParseIndirectObject(t *testing.T) {
	const content = "BT /F1 24 Tf 100 500 Td ({{name}}) Tj ET"

	tests := []struct {
		name   string
		in     string
		length func(Object) int
		want   Object
	}{
		{
			name: "dict",
			in:   "5 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj",
			want: Dict{"Type": Name("Page"), "Parent": Reference{Number: 2}},
		},
		{
			name: "stream with direct length",
			in:   "6 0 obj\n<< /Length 40 >>\nstream\n" + content + "\nendstream\nendobj",
			want: Stream{Dict: Dict{"Length": Integer(40)}, Data: []byte(content)},
		},
		{
			name:   "unresolvable length",
			in:     "6 0 obj\n<< /Length 9 0 R >>\nstream\n" + content + "\nendstream\nendobj",
			length: func(Object) int { return -1 },
			want:   Stream{Dict: Dict{"Length": Reference{Number: 9}}, Data: []byte(content)},
		},
		{
			name: "length too short",
			in:   "6 0 obj\n<< /Length 3 >>\nstream\n" + content + "\nendstream\nendobj",
			want: Stream{Dict: Dict{"Length": Integer(3)}, Data: []byte(content)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := newParser([]byte(tt.in)).ParseIndirectObject(tt.length)
			if err != nil {
				t.Fatalf("ParseIndirectObject: %v", err)
			}
			if obj.Generation != 0 || (obj.Number != 5 && obj.Number != 6) {
				t.Errorf("object id = %d %d", obj.Number, obj.Generation)
			}
			if diff := cmp.Diff(tt.want, obj.Value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDictAccessors(t *testing.T) {
	d := Dict{
		"FT":   Name("Tx"),
		"Ff":   Integer(1),
		"MK":   Dict{"BG": Array{Integer(1)}},
		"Kids": Array{Reference{Number: 8}, Reference{Number: 9}},
	}

	if got := d.GetName("FT"); got != "Tx" {
		t.Errorf("GetName(FT) = %q", got)
	}
	if got := d.GetName("Kids"); got != "" {
		t.Errorf("GetName on array = %q, want empty", got)
	}
	if v, ok := d.GetInt("Ff"); !ok || v != 1 {
		t.Errorf("GetInt(Ff) = %d, %v", v, ok)
	}
	if _, ok := d.GetInt("Missing"); ok {
		t.Error("GetInt(Missing) reported ok")
	}
	if mk := d.GetDict("MK"); len(mk.GetArray("BG")) != 1 {
		t.Errorf("GetDict(MK) = %v", mk)
	}
	if kids := d.GetArray("Kids"); len(kids) != 2 {
		t.Errorf("GetArray(Kids) = %v", kids)
	}
}

func TestContentParser(t *testing.T) {
	p := newContentParser([]byte("q 1 0 0 1 0 0 cm BT /F1 24 Tf 100 500 Td ({{name}}) Tj 0 0 R ET Q"))
	var got []Object
	for {
		obj, err := p.ParseObject()
		if err != nil {
			break
		}
		got = append(got, obj)
	}

	// "0 0 R" stays two operands and an operator inside content streams.
	want := []Object{
		operator("q"),
		Integer(1), Integer(0), Integer(0), Integer(1), Integer(0), Integer(0), operator("cm"),
		operator("BT"),
		Name("F1"), Integer(24), operator("Tf"),
		Integer(100), Integer(500), operator("Td"),
		String{Value: []byte("{{name}}")}, operator("Tj"),
		Integer(0), Integer(0), operator("R"),
		operator("ET"),
		operator("Q"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("content objects mismatch (-want +got):\n%s", diff)
	}
}
