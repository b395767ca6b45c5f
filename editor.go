// Package certfill replaces name placeholders on certificate PDF templates
// with a recipient's name.
//
// An Editor tries whole-document strategies in order until one succeeds.
// The overlay strategies locate placeholder tokens such as "{{name}}",
// paint over them and draw the name centered on the page at the largest
// size that fits; the form-field strategy fills AcroForm name fields.
//
//	ed, err := certfill.New(certfill.WithFonts("times-bold"))
//	if err != nil {
//	    return err
//	}
//	out, err := ed.Edit(template, certfill.FormatName("Jordan", "", "Lee"))
package certfill

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lvillar/certfill/internal/tmpout"
	"github.com/lvillar/certfill/placeholder"
	"github.com/lvillar/certfill/render"
)

// Built-in strategy names.
const (
	StrategyOverlayStream = "overlay/stream"
	StrategyOverlayGlyph  = "overlay/glyph"
	StrategyFormFields    = "form-fields"
)

// DefaultStrategies are the built-in strategies in the order Edit tries
// them.
var DefaultStrategies = []string{StrategyOverlayStream, StrategyOverlayGlyph, StrategyFormFields}

// DefaultWorkers is the batch concurrency used unless WithWorkers is given.
const DefaultWorkers = 4

// Strategy is one whole-document way of putting a name on a template.
// Apply must not modify template.
type Strategy interface {
	Name() string
	Apply(template []byte, name string) (*Outcome, error)
}

// Outcome is the result of a successful edit.
type Outcome struct {
	Strategy string          `json:"strategy"`
	Edits    int             `json:"edits"` // placeholders or fields replaced
	Pages    int             `json:"pages"`
	PDF      []byte          `json:"-"`
	Renders  []render.Result `json:"renders,omitempty"`
}

// Editor puts names on templates. It is immutable after New and safe for
// concurrent use.
type Editor struct {
	renderer   render.Renderer
	tokens     []string
	maskColor  render.Color
	maskMargin float64
	workers    int
	logger     *log.Logger
	verify     func(name string) string
	symbology  render.Symbology

	strategyNames []string
	strategies    []Strategy

	err error
}

// New returns an Editor configured by opts.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{
		renderer:      *render.New(),
		tokens:        placeholder.DefaultTokens,
		maskColor:     render.White,
		maskMargin:    render.DefaultMaskMargin,
		workers:       DefaultWorkers,
		logger:        log.Default(),
		strategyNames: DefaultStrategies,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.renderer.MinFont > e.renderer.MaxFont {
		return nil, fmt.Errorf("%w: min font %g above max font %g", ErrInvalidOption, e.renderer.MinFont, e.renderer.MaxFont)
	}

	if e.strategies == nil {
		for _, name := range e.strategyNames {
			s, err := e.builtin(name)
			if err != nil {
				return nil, err
			}
			e.strategies = append(e.strategies, s)
		}
	}
	if len(e.strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies", ErrInvalidOption)
	}
	return e, nil
}

func (e *Editor) builtin(name string) (Strategy, error) {
	switch name {
	case StrategyOverlayStream:
		return e.overlay(placeholder.StreamSource{}), nil
	case StrategyOverlayGlyph:
		return e.overlay(placeholder.GlyphSource{}), nil
	case StrategyFormFields:
		return &FormFieldStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOption, name)
}

func (e *Editor) overlay(src placeholder.Source) *OverlayStrategy {
	r := e.renderer
	return &OverlayStrategy{
		Source:     src,
		Renderer:   &r,
		Tokens:     e.tokens,
		MaskColor:  e.maskColor,
		MaskMargin: e.maskMargin,
		Verify:     e.verify,
		Symbology:  e.symbology,
	}
}

// Strategies returns the names of the configured strategies in order.
func (e *Editor) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Tokens returns the placeholder tokens in priority order.
func (e *Editor) Tokens() []string { return e.tokens }

// Edit puts name on the template and returns the first successful
// strategy's outcome. A strategy that returns an error or panics is logged
// and the next one is tried. When every strategy fails the error is an
// *EditError matching ErrAllStrategiesFailed and each strategy's error.
//
// A template without placeholders is not a failure: the overlay strategy
// returns it unchanged with Edits == 0.
func (e *Editor) Edit(template []byte, name string) (*Outcome, error) {
	if len(template) == 0 {
		return nil, newEditError("Edit", ErrNoTemplate)
	}
	if strings.TrimSpace(name) == "" {
		return nil, newEditError("Edit", ErrEmptyName)
	}

	errs := []error{ErrAllStrategiesFailed}
	for _, s := range e.strategies {
		out, err := e.apply(s, template, name)
		if err != nil {
			e.logger.Printf("[WARN] certfill: strategy %s failed for %q: %v", s.Name(), name, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		e.logger.Printf("[INFO] certfill: %q via %s, %d edits on %d pages", name, out.Strategy, out.Edits, out.Pages)
		return out, nil
	}
	return nil, newEditError("Edit", errors.Join(errs...))
}

// apply runs one strategy on a private copy of the template, converting a
// panic into an error.
func (e *Editor) apply(s Strategy, template []byte, name string) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	out, err = s.Apply(bytes.Clone(template), name)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("no outcome")
	}
	if out.Strategy == "" {
		out.Strategy = s.Name()
	}
	return out, nil
}

// EditFile edits the template at templatePath and writes the result to
// outputPath atomically: the file appears only once it is complete.
func (e *Editor) EditFile(templatePath, outputPath, name string) (*Outcome, error) {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, newEditError("EditFile", err)
	}
	out, err := e.Edit(template, name)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(outputPath, out.PDF); err != nil {
		return nil, newEditError("EditFile", err)
	}
	return out, nil
}

// WriteFile writes data to path through a temporary file in the same
// directory that is renamed into place.
func WriteFile(path string, data []byte) error {
	f, err := tmpout.Acquire(filepath.Dir(path), ".certfill-*.pdf")
	if err != nil {
		return err
	}
	defer f.Release()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Commit(path)
}
