package mcp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/reader"
)

// RegisterDefaultResources adds the template inspection resources. Each
// takes the file as a query parameter, e.g. pdf://pages?path=/tmp/cert.pdf.
func RegisterDefaultResources(s *Server, ed *certfill.Editor) {
	s.AddResource(Resource{
		URI:         "pdf://pages",
		Name:        "Template Pages",
		Description: "Page count, page sizes and metadata of a PDF: pdf://pages?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     handlePagesResource,
	})

	s.AddResource(Resource{
		URI:         "pdf://placeholders",
		Name:        "Template Placeholders",
		Description: "Name placeholders found in a PDF: pdf://placeholders?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler: func(uri string) ([]ResourceContent, error) {
			path, err := pathFromURI(uri)
			if err != nil {
				return nil, err
			}
			report, err := findPlaceholders(path, ed.Tokens())
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, report)
		},
	})

	s.AddResource(Resource{
		URI:         "pdf://form-fields",
		Name:        "Template Form Fields",
		Description: "AcroForm fields of a PDF: pdf://form-fields?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler: func(uri string) ([]ResourceContent, error) {
			path, err := pathFromURI(uri)
			if err != nil {
				return nil, err
			}
			infos, err := formFields(path)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, infos)
		},
	})
}

func pathFromURI(uri string) (string, error) {
	_, query, _ := strings.Cut(uri, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", uri, err)
	}
	path := values.Get("path")
	if path == "" {
		return "", fmt.Errorf("missing 'path' parameter in URI")
	}
	return path, nil
}

func jsonContent(uri string, v any) ([]ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []ResourceContent{{URI: uri, MIMEType: "application/json", Text: string(data)}}, nil
}

type pageInfo struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func handlePagesResource(uri string) ([]ResourceContent, error) {
	path, err := pathFromURI(uri)
	if err != nil {
		return nil, err
	}
	doc, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	pages := []pageInfo{}
	for n, page := range doc.Pages() {
		w, h := page.Size()
		pages = append(pages, pageInfo{Page: n, Width: w, Height: h})
	}
	return jsonContent(uri, map[string]any{
		"version":  doc.Version,
		"numPages": doc.NumPages(),
		"metadata": doc.Metadata(),
		"pages":    pages,
	})
}
