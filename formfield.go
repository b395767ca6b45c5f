package certfill

import (
	"fmt"
	"strings"

	"github.com/lvillar/certfill/form"
	"github.com/lvillar/certfill/reader"
)

// FormFieldStrategy fills every editable AcroForm text field whose full
// name contains "name", ignoring case.
type FormFieldStrategy struct{}

// Name implements Strategy.
func (*FormFieldStrategy) Name() string { return StrategyFormFields }

// Apply implements Strategy. It fails with ErrNoNameField when the
// template has no matching field.
func (*FormFieldStrategy) Apply(template []byte, name string) (*Outcome, error) {
	doc, err := reader.Parse(template)
	if err != nil {
		return nil, err
	}
	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}

	values := make(map[string]string)
	for _, f := range NameFields(fields) {
		values[f.FullName] = name
	}
	if len(values) == 0 {
		return nil, ErrNoNameField
	}

	filled, err := form.FillBytes(template, values)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Strategy: StrategyFormFields,
		Edits:    len(values),
		Pages:    doc.NumPages(),
		PDF:      filled,
	}, nil
}

// NameFields returns the editable text fields among the terminal fields
// whose full name contains "name", ignoring case.
func NameFields(fields []*reader.FormField) []*reader.FormField {
	var out []*reader.FormField
	for _, f := range reader.Terminal(fields) {
		if f.IsText() && !f.IsReadOnly() && strings.Contains(strings.ToLower(f.FullName), "name") {
			out = append(out, f)
		}
	}
	return out
}
