package pageops

import (
	"fmt"
	"io"
	"os"

	"codeberg.org/go-pdf/fpdf"
)

// MergeFiles combines multiple PDF files into a single output file.
// Pages are added in order: all pages from the first file, then all from the second, etc.
func MergeFiles(outputPath string, inputPaths ...string) error {
	pdf, err := merge(inputPaths)
	if err != nil {
		return err
	}
	return writePDFToFile(pdf, outputPath)
}

// Merge combines multiple PDF files and writes the result to w.
func Merge(w io.Writer, inputPaths ...string) error {
	pdf, err := merge(inputPaths)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func merge(inputPaths []string) (*fpdf.Fpdf, error) {
	if len(inputPaths) == 0 {
		return nil, fmt.Errorf("pageops: no input files provided")
	}

	pdf := NewDocument()
	for _, inputPath := range inputPaths {
		if err := appendFile(pdf, inputPath); err != nil {
			return nil, fmt.Errorf("pageops: merging %s: %w", inputPath, err)
		}
	}
	return pdf, nil
}

// appendFile imports all pages from a PDF file into the target PDF.
func appendFile(pdf *fpdf.Fpdf, inputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	pages, err := Import(pdf, data)
	if err != nil {
		return err
	}
	for _, p := range pages {
		p.Place(pdf)
	}
	return pdf.Error()
}
