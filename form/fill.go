// Package form sets AcroForm field values in existing PDF documents.
//
// Values are written by rewriting the field dictionaries in place and
// rebuilding the classic cross-reference table. Documents whose fields live
// in object streams, or that use cross-reference streams, are rejected.
package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"unicode/utf16"

	"github.com/lvillar/certfill/reader"
)

// ErrUnsupported is returned for documents whose structure cannot be
// rewritten in place.
var ErrUnsupported = errors.New("form: unsupported document structure")

var (
	stringValue = regexp.MustCompile(`/V\s*\((?:\\.|[^\\)])*\)`)
	hexValue    = regexp.MustCompile(`/V\s*<[0-9A-Fa-f\s]*>`)
	nameValue   = regexp.MustCompile(`/V\s*/[A-Za-z0-9#]+(\s+/AS\s+/[A-Za-z0-9#]+)?`)
	objHeader   = regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)
	acroFormRef = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+R`)
)

// Fill reads a PDF from input, fills form fields with the provided values,
// and writes the result to output. Field names are full names, matched
// case-sensitively. The AcroForm is marked /NeedAppearances so viewers
// redraw the widgets with the new values.
func Fill(input io.ReadSeeker, output io.Writer, values map[string]string) error {
	if len(values) == 0 {
		if _, err := input.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("form: seeking input: %w", err)
		}
		_, err := io.Copy(output, input)
		return err
	}

	data, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("form: reading input: %w", err)
	}
	filled, err := FillBytes(data, values)
	if err != nil {
		return err
	}
	_, err = output.Write(filled)
	return err
}

// FillBytes is Fill on an in-memory document. data is not modified.
func FillBytes(data []byte, values map[string]string) ([]byte, error) {
	doc, err := reader.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("form: parsing PDF: %w", err)
	}

	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("form: reading form fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("form: no form fields found in PDF")
	}

	fieldMap := make(map[string]*reader.FormField)
	for _, f := range flattenFields(fields) {
		fieldMap[f.FullName] = f
	}
	for name := range values {
		if _, ok := fieldMap[name]; !ok {
			return nil, fmt.Errorf("form: field %q not found in PDF", name)
		}
	}

	modified := bytes.Clone(data)
	for name, value := range values {
		var changed bool
		modified, changed = setFieldValue(modified, fieldMap[name], value)
		if !changed {
			return nil, fmt.Errorf("%w: field %q is not stored as a plain object", ErrUnsupported, name)
		}
	}
	modified = setNeedAppearances(modified)

	// Rebuild xref table to account for any byte offset changes
	return rebuildXref(modified)
}

// FillFile reads a PDF from inputPath, fills form fields, and writes to outputPath.
func FillFile(inputPath, outputPath string, values map[string]string) error {
	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("form: opening %s: %w", inputPath, err)
	}
	defer input.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("form: creating %s: %w", outputPath, err)
	}
	if err := Fill(input, out, values); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// flattenFields returns a flat list of all form fields, recursing into kids.
func flattenFields(fields []*reader.FormField) []*reader.FormField {
	var result []*reader.FormField
	for _, f := range fields {
		result = append(result, f)
		if len(f.Kids) > 0 {
			result = append(result, flattenFields(f.Kids)...)
		}
	}
	return result
}

// encodeText returns a PDF text string literal for s: a literal string when
// s is printable ASCII, UTF-16BE with a byte order mark otherwise.
func encodeText(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return "(" + escapePDFString(s) + ")"
	}
	var buf bytes.Buffer
	buf.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&buf, "%04X", u)
	}
	buf.WriteByte('>')
	return buf.String()
}

// setFieldValue modifies the raw PDF bytes to set a field's /V entry.
// Updates all occurrences (field appears in /Annots and /AcroForm /Fields).
// May change total data length; caller must rebuild xref after. It reports
// whether the field dictionary was found.
func setFieldValue(data []byte, field *reader.FormField, value string) ([]byte, bool) {
	escapedName := escapePDFString(field.Name)
	pattern := []byte(fmt.Sprintf("/T (%s)", escapedName))
	altPattern := []byte(fmt.Sprintf("/T(%s)", escapedName))

	var newValueStr string
	switch field.Type {
	case "Btn":
		if value == "true" || value == "Yes" || value == "on" {
			newValueStr = "/V /Yes /AS /Yes"
		} else {
			newValueStr = "/V /Off /AS /Off"
		}
	default:
		newValueStr = "/V " + encodeText(value)
	}

	found := false
	// Process up to 10 occurrences (field dict duplicated in Annots + Fields)
	for pass := 0; pass < 10; pass++ {
		idx := bytes.Index(data, pattern)
		if idx < 0 {
			idx = bytes.Index(data, altPattern)
		}
		if idx < 0 {
			break
		}

		dictStart := findDictStart(data, idx)
		dictEnd := findDictEnd(data, idx)
		if dictStart < 0 || dictEnd < 0 {
			break
		}
		found = true

		fieldDict := data[dictStart : dictEnd+2]
		var newDict []byte
		for _, re := range []*regexp.Regexp{stringValue, hexValue, nameValue} {
			if loc := re.FindIndex(fieldDict); loc != nil {
				newDict = make([]byte, 0, len(fieldDict)+len(newValueStr))
				newDict = append(newDict, fieldDict[:loc[0]]...)
				newDict = append(newDict, newValueStr...)
				newDict = append(newDict, fieldDict[loc[1]:]...)
				break
			}
		}
		if newDict == nil {
			newDict = make([]byte, 0, len(fieldDict)+len(newValueStr)+1)
			newDict = append(newDict, fieldDict[:len(fieldDict)-2]...)
			newDict = append(newDict, ' ')
			newDict = append(newDict, newValueStr...)
			newDict = append(newDict, '>', '>')
		}

		if bytes.Equal(fieldDict, newDict) {
			break
		}

		result := make([]byte, 0, len(data)-len(fieldDict)+len(newDict))
		result = append(result, data[:dictStart]...)
		result = append(result, newDict...)
		result = append(result, data[dictEnd+2:]...)
		data = result
	}

	return data, found
}

// setNeedAppearances adds /NeedAppearances true to the AcroForm dictionary,
// inline in the catalog or an indirect object, unless it is already set.
func setNeedAppearances(data []byte) []byte {
	if bytes.Contains(data, []byte("/NeedAppearances")) {
		return data
	}
	idx := bytes.Index(data, []byte("/AcroForm"))
	if idx < 0 {
		return data
	}
	rest := data[idx+len("/AcroForm"):]

	insertAt := -1
	if trimmed := bytes.TrimLeft(rest, " \t\r\n"); bytes.HasPrefix(trimmed, []byte("<<")) {
		insertAt = len(data) - len(trimmed) + 2
	} else if m := acroFormRef.FindSubmatch(rest); m != nil {
		header := regexp.MustCompile(fmt.Sprintf(`(?m)^%s\s+%s\s+obj\s*<<`, m[1], m[2]))
		if loc := header.FindIndex(data); loc != nil {
			insertAt = loc[1]
		}
	}
	if insertAt < 0 {
		return data
	}

	const entry = " /NeedAppearances true"
	result := make([]byte, 0, len(data)+len(entry))
	result = append(result, data[:insertAt]...)
	result = append(result, entry...)
	return append(result, data[insertAt:]...)
}

// rebuildXref scans the PDF body for object definitions and rebuilds the
// xref table with correct offsets. This handles byte-level modifications
// that shift object positions.
func rebuildXref(data []byte) ([]byte, error) {
	matches := objHeader.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no objects found", ErrUnsupported)
	}

	type objInfo struct {
		num, gen, offset int
	}
	offsets := make(map[int]objInfo)
	maxObj := 0
	for _, m := range matches {
		num, _ := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(data[m[4]:m[5]]))
		offsets[num] = objInfo{num: num, gen: gen, offset: m[0]}
		maxObj = max(maxObj, num)
	}

	// Find old xref table position
	xrefIdx := bytes.LastIndex(data, []byte("\nxref"))
	if xrefIdx < 0 {
		return nil, fmt.Errorf("%w: cross-reference streams", ErrUnsupported)
	}
	trailerIdx := bytes.Index(data[xrefIdx:], []byte("trailer"))
	if trailerIdx < 0 {
		return nil, fmt.Errorf("%w: missing trailer", ErrUnsupported)
	}
	trailerAbsIdx := xrefIdx + trailerIdx
	startxrefIdx := bytes.Index(data[trailerAbsIdx:], []byte("startxref"))
	if startxrefIdx < 0 {
		return nil, fmt.Errorf("%w: missing startxref", ErrUnsupported)
	}
	trailerDict := bytes.TrimSpace(data[trailerAbsIdx+len("trailer") : trailerAbsIdx+startxrefIdx])

	// Body = everything up to and including the newline before "xref"
	body := data[:xrefIdx+1]

	var result bytes.Buffer
	result.Write(body)
	result.WriteString("xref\n")
	fmt.Fprintf(&result, "0 %d\n", maxObj+1)
	result.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObj; i++ {
		if obj, ok := offsets[i]; ok {
			fmt.Fprintf(&result, "%010d %05d n \n", obj.offset, obj.gen)
		} else {
			result.WriteString("0000000000 00000 f \n")
		}
	}
	result.WriteString("trailer\n")
	result.Write(trailerDict)
	fmt.Fprintf(&result, "\nstartxref\n%d\n%%%%EOF\n", len(body))

	return result.Bytes(), nil
}

// findDictStart searches backward from pos for the nearest unmatched "<<".
func findDictStart(data []byte, pos int) int {
	depth := 0
	for i := pos - 1; i > 0; i-- {
		if i+1 < len(data) && data[i] == '>' && data[i+1] == '>' {
			depth++
		}
		if data[i] == '<' && data[i-1] == '<' {
			if depth == 0 {
				return i - 1
			}
			depth--
		}
	}
	return -1
}

// findDictEnd searches forward from pos for the matching ">>".
func findDictEnd(data []byte, pos int) int {
	depth := 0
	for i := pos; i < len(data)-1; i++ {
		if data[i] == '<' && data[i+1] == '<' {
			depth++
			i++
			continue
		}
		if data[i] == '>' && data[i+1] == '>' {
			if depth == 0 {
				return i
			}
			depth--
			i++
		}
	}
	return -1
}

// escapePDFString escapes special characters in a PDF literal string.
func escapePDFString(s string) string {
	var buf bytes.Buffer
	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	return buf.String()
}
