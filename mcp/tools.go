package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/pageops"
	"github.com/lvillar/certfill/placeholder"
	"github.com/lvillar/certfill/reader"
)

// toolset binds the tool handlers to one editor.
type toolset struct {
	ed *certfill.Editor
}

// RegisterDefaultTools adds the certificate tools to the server. All of
// them share ed and its configuration.
func RegisterDefaultTools(s *Server, ed *certfill.Editor) {
	ts := &toolset{ed: ed}
	s.AddTool(ts.fillCertificateTool())
	s.AddTool(ts.batchCertificatesTool())
	s.AddTool(ts.findPlaceholdersTool())
	s.AddTool(listFormFieldsTool())
	s.AddTool(mergePDFsTool())
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// stringsArg converts a JSON array argument into strings. Non-string
// elements are formatted with %v.
func stringsArg(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, len(raw))
	for i, item := range raw {
		if s, ok := item.(string); ok {
			out[i] = s
		} else {
			out[i] = fmt.Sprint(item)
		}
	}
	return out
}

func (ts *toolset) fillCertificateTool() Tool {
	return Tool{
		Name: "fill_certificate",
		Description: "Write a person's name over the placeholder of a certificate template PDF. " +
			"Give either the full name or its first/middle/last parts. Without outputPath the " +
			"filled PDF is returned as base64.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"templatePath": stringProp("Path to the certificate template PDF"),
				"name":         stringProp("Full name to write"),
				"first":        stringProp("First name, used when name is empty"),
				"middle":       stringProp("Middle name, optional"),
				"last":         stringProp("Last name, used when name is empty"),
				"outputPath":   stringProp("Where to save the filled PDF, optional"),
			},
			"required": []string{"templatePath"},
		},
		Handler: ts.handleFillCertificate,
	}
}

func (ts *toolset) handleFillCertificate(args map[string]any) (ToolResult, error) {
	templatePath := stringArg(args, "templatePath")
	if templatePath == "" {
		return ToolResult{}, fmt.Errorf("missing 'templatePath' argument")
	}
	name := certfill.FormatName(stringArg(args, "name"), "")
	if name == "" {
		name = certfill.FormatName(stringArg(args, "first"), stringArg(args, "middle"), stringArg(args, "last"))
	}
	if name == "" {
		return ToolResult{}, fmt.Errorf("missing 'name' or 'first'/'last' arguments")
	}

	if outputPath := stringArg(args, "outputPath"); outputPath != "" {
		out, err := ts.ed.EditFile(templatePath, outputPath, name)
		if err != nil {
			return ToolResult{}, err
		}
		return textResult("Certificate for %s saved to %s (strategy %s, %d edits)", name, outputPath, out.Strategy, out.Edits), nil
	}

	template, err := os.ReadFile(templatePath)
	if err != nil {
		return ToolResult{}, err
	}
	out, err := ts.ed.Edit(template, name)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Content: []ContentBlock{
			{Type: "text", Text: fmt.Sprintf("Certificate for %s filled (strategy %s, %d edits, %d bytes)", name, out.Strategy, out.Edits, len(out.PDF))},
			{Type: "resource", MIMEType: "application/pdf", Data: base64.StdEncoding.EncodeToString(out.PDF)},
		},
	}, nil
}

func (ts *toolset) batchCertificatesTool() Tool {
	return Tool{
		Name: "batch_certificates",
		Description: "Fill one certificate per entry. Each entry is [first, last] or " +
			"[first, middle, last]; other lengths fail individually. Returns the per-entry results.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"templatePath": stringProp("Path to the certificate template PDF"),
				"entries": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"description": "Name tuples",
				},
				"outputDir": stringProp("Directory for the certificates, defaults to the template's directory"),
				"mergePath": stringProp("Also merge the successful certificates into this file, optional"),
			},
			"required": []string{"templatePath", "entries"},
		},
		Handler: ts.handleBatchCertificates,
	}
}

func (ts *toolset) handleBatchCertificates(args map[string]any) (ToolResult, error) {
	templatePath := stringArg(args, "templatePath")
	raw, ok := args["entries"].([]any)
	if templatePath == "" || !ok {
		return ToolResult{}, fmt.Errorf("templatePath and entries are required")
	}

	entries := make([]certfill.NameTuple, len(raw))
	for i, e := range raw {
		entries[i] = certfill.NameTuple(stringsArg(e))
	}
	results := ts.ed.Batch(context.Background(), templatePath, entries, stringArg(args, "outputDir"))

	if mergePath := stringArg(args, "mergePath"); mergePath != "" {
		var paths []string
		for _, r := range results {
			if r.OK() {
				paths = append(paths, r.Path)
			}
		}
		if len(paths) > 0 {
			if err := pageops.MergeFiles(mergePath, paths...); err != nil {
				return ToolResult{}, fmt.Errorf("merging: %w", err)
			}
		}
	}
	return jsonResult(results)
}

func (ts *toolset) findPlaceholdersTool() Tool {
	return Tool{
		Name:        "find_placeholders",
		Description: "List the name placeholders of a PDF with their page and box in points (top-left origin).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": stringProp("Path to the PDF"),
				"tokens": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Placeholder strings to look for, defaults to the server's tokens",
				},
			},
			"required": []string{"path"},
		},
		Handler: ts.handleFindPlaceholders,
	}
}

type placeholderReport struct {
	Source    string                 `json:"source"`
	Pages     int                    `json:"pages"`
	Instances []placeholder.Instance `json:"instances"`
}

func (ts *toolset) handleFindPlaceholders(args map[string]any) (ToolResult, error) {
	path := stringArg(args, "path")
	if path == "" {
		return ToolResult{}, fmt.Errorf("missing 'path' argument")
	}
	tokens := ts.ed.Tokens()
	if t := stringsArg(args["tokens"]); len(t) > 0 {
		tokens = t
	}
	report, err := findPlaceholders(path, tokens)
	if err != nil {
		return ToolResult{}, err
	}
	return jsonResult(report)
}

// findPlaceholders scans with the content stream interpreter and falls back
// to glyph extraction when the interpreter cannot read the file.
func findPlaceholders(path string, tokens []string) (*placeholderReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, src := range []placeholder.Source{placeholder.StreamSource{}, placeholder.GlyphSource{}} {
		layouts, err := src.Layouts(data)
		if err != nil {
			lastErr = err
			continue
		}
		instances := placeholder.Scan(layouts, tokens)
		if instances == nil {
			instances = []placeholder.Instance{}
		}
		return &placeholderReport{Source: src.Name(), Pages: len(layouts), Instances: instances}, nil
	}
	return nil, fmt.Errorf("reading %s: %w", path, lastErr)
}

func listFormFieldsTool() Tool {
	return Tool{
		Name:        "list_form_fields",
		Description: "List the AcroForm fields of a PDF and mark those the form-fields strategy would fill with the name.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": stringProp("Path to the PDF"),
			},
			"required": []string{"path"},
		},
		Handler: handleListFormFields,
	}
}

type fieldInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     string `json:"value,omitempty"`
	ReadOnly  bool   `json:"readOnly,omitempty"`
	NameField bool   `json:"nameField,omitempty"`
}

func handleListFormFields(args map[string]any) (ToolResult, error) {
	path := stringArg(args, "path")
	if path == "" {
		return ToolResult{}, fmt.Errorf("missing 'path' argument")
	}
	infos, err := formFields(path)
	if err != nil {
		return ToolResult{}, err
	}
	return jsonResult(infos)
}

func formFields(path string) ([]fieldInfo, error) {
	doc, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}

	names := make(map[*reader.FormField]bool)
	for _, f := range certfill.NameFields(fields) {
		names[f] = true
	}
	infos := []fieldInfo{}
	for _, f := range reader.Terminal(fields) {
		infos = append(infos, fieldInfo{
			Name:      f.FullName,
			Type:      f.Type,
			Value:     f.Value,
			ReadOnly:  f.IsReadOnly(),
			NameField: names[f],
		})
	}
	return infos, nil
}

func mergePDFsTool() Tool {
	return Tool{
		Name:        "merge_pdfs",
		Description: "Merge certificate PDFs into a single file, for printing.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"inputPaths": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Paths to PDF files to merge, in order",
				},
				"outputPath": stringProp("Path for the merged output PDF"),
			},
			"required": []string{"inputPaths", "outputPath"},
		},
		Handler: handleMergePDFs,
	}
}

func handleMergePDFs(args map[string]any) (ToolResult, error) {
	paths := stringsArg(args["inputPaths"])
	outputPath := stringArg(args, "outputPath")
	if len(paths) == 0 || outputPath == "" {
		return ToolResult{}, fmt.Errorf("inputPaths and outputPath are required")
	}
	if err := pageops.MergeFiles(outputPath, paths...); err != nil {
		return ToolResult{}, fmt.Errorf("merging: %w", err)
	}
	return textResult("Merged %d PDFs into %s", len(paths), outputPath), nil
}
