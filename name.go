package certfill

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FormatName joins the name components in the order first, middle, last.
// Each component is NFC-normalized and its whitespace collapsed; empty
// components are left out. The result is empty only if every component is.
func FormatName(first, middle string, last ...string) string {
	parts := make([]string, 0, 2+len(last))
	for _, p := range append([]string{first, middle}, last...) {
		if p = collapse(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NameTuple is one batch entry: (first, last) or (first, middle, last).
// The last component may hold several surnames separated by spaces.
type NameTuple []string

// Name formats the tuple. Tuples of any other length fail with
// ErrInvalidTuple, and tuples with only empty components with ErrEmptyName.
func (t NameTuple) Name() (string, error) {
	var name string
	switch len(t) {
	case 2:
		name = FormatName(t[0], "", t[1])
	case 3:
		name = FormatName(t[0], t[1], t[2])
	default:
		return "", fmt.Errorf("%w length: %d (expected 2 or 3)", ErrInvalidTuple, len(t))
	}
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// String returns the components joined with spaces, for reporting.
func (t NameTuple) String() string {
	return collapse(strings.Join(t, " "))
}

var filenameReplacer = strings.NewReplacer(" ", "_", ".", "", "/", "_", `\`, "_")

// OutputFilename returns the batch output file name for a formatted name:
// spaces become underscores and dots are removed.
func OutputFilename(name string) string {
	return "certificate_" + filenameReplacer.Replace(name) + ".pdf"
}
