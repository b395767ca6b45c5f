package certfill

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Batch result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// BatchResult reports one batch entry.
type BatchResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the entry succeeded.
func (r BatchResult) OK() bool { return r.Status == StatusSuccess }

func failed(name string, err error) BatchResult {
	return BatchResult{Name: name, Status: StatusFailed, Error: err.Error()}
}

// Batch writes one certificate per entry into outputDir, which defaults to
// the template's directory and is created if missing. Files are named by
// OutputFilename. Entries are edited concurrently; the results are in
// entry order and one entry's failure never affects another. Once ctx is
// done no further entries are started and those remaining are reported as
// failed with the context's error.
func (e *Editor) Batch(ctx context.Context, templatePath string, entries []NameTuple, outputDir string) []BatchResult {
	results := make([]BatchResult, len(entries))
	failAll := func(err error) []BatchResult {
		for i, entry := range entries {
			results[i] = failed(entry.String(), err)
		}
		return results
	}

	template, err := os.ReadFile(templatePath)
	if err != nil {
		return failAll(err)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(templatePath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return failAll(err)
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			results[i] = failed(entry.String(), err)
			continue
		}
		g.Go(func() error {
			results[i] = e.batchOne(ctx, bytes.Clone(template), entry, outputDir)
			return nil
		})
	}
	g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.OK() {
			succeeded++
		}
	}
	e.logger.Printf("[INFO] certfill: batch of %d from %s: %d succeeded", len(entries), templatePath, succeeded)
	return results
}

func (e *Editor) batchOne(ctx context.Context, template []byte, entry NameTuple, outputDir string) BatchResult {
	if err := ctx.Err(); err != nil {
		return failed(entry.String(), err)
	}
	name, err := entry.Name()
	if err != nil {
		return failed(entry.String(), err)
	}

	out, err := e.Edit(template, name)
	if err != nil {
		return failed(name, err)
	}
	path := filepath.Join(outputDir, OutputFilename(name))
	if err := WriteFile(path, out.PDF); err != nil {
		return failed(name, fmt.Errorf("writing %s: %w", path, err))
	}
	return BatchResult{Name: name, Status: StatusSuccess, Path: path}
}
