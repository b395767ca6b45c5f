package certfill

import (
	"fmt"
	"log"

	"github.com/lvillar/certfill/render"
)

// Option is a functional option for configuring an Editor via New.
type Option func(*Editor)

// invalid records the first bad option; New reports it.
func (e *Editor) invalid(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s", ErrInvalidOption, fmt.Sprintf(format, args...))
	}
}

// WithMaxFont sets the largest font size tried, in points.
func WithMaxFont(size float64) Option {
	return func(e *Editor) {
		if size <= 0 {
			e.invalid("max font %g", size)
			return
		}
		e.renderer.MaxFont = size
	}
}

// WithMinFont sets the smallest font size used, in points. Names that do
// not fit at this size are drawn at it anyway.
func WithMinFont(size float64) Option {
	return func(e *Editor) {
		if size <= 0 {
			e.invalid("min font %g", size)
			return
		}
		e.renderer.MinFont = size
	}
}

// WithMargin sets the side margin as a fraction of the page width.
func WithMargin(ratio float64) Option {
	return func(e *Editor) {
		if ratio < 0 || ratio >= 0.5 {
			e.invalid("margin %g outside [0, 0.5)", ratio)
			return
		}
		e.renderer.Margin = ratio
	}
}

// WithBaselineRatio sets how far above the placeholder's lower edge the
// baseline sits, as a fraction of the font size.
func WithBaselineRatio(ratio float64) Option {
	return func(e *Editor) {
		if ratio < 0 {
			e.invalid("baseline ratio %g", ratio)
			return
		}
		e.renderer.BaselineRatio = ratio
	}
}

// WithFonts sets the font candidates, e.g. "times-bold", tried in order.
func WithFonts(fonts ...string) Option {
	return func(e *Editor) {
		e.renderer.Fonts = fonts
	}
}

// WithTokens sets the placeholder tokens in priority order.
func WithTokens(tokens ...string) Option {
	return func(e *Editor) {
		if len(tokens) == 0 {
			e.invalid("no tokens")
			return
		}
		e.tokens = tokens
	}
}

// WithMaskColor sets the fill painted over placeholders. The default is
// white.
func WithMaskColor(c render.Color) Option {
	return func(e *Editor) {
		e.maskColor = c
	}
}

// WithMaskMargin sets how far, in points, masks extend past the
// placeholder box on every side.
func WithMaskMargin(margin float64) Option {
	return func(e *Editor) {
		if margin < 0 {
			e.invalid("mask margin %g", margin)
			return
		}
		e.maskMargin = margin
	}
}

// WithStrategies selects built-in strategies by name, in the order they
// are tried: "overlay/stream", "overlay/glyph" and "form-fields".
func WithStrategies(names ...string) Option {
	return func(e *Editor) {
		e.strategyNames = names
	}
}

// WithCustomStrategies replaces the strategy list. Built-in strategies can
// be included by constructing OverlayStrategy or FormFieldStrategy values.
func WithCustomStrategies(s ...Strategy) Option {
	return func(e *Editor) {
		e.strategies = s
	}
}

// WithWorkers sets how many batch entries are edited concurrently.
func WithWorkers(n int) Option {
	return func(e *Editor) {
		if n < 1 {
			e.invalid("workers %d", n)
			return
		}
		e.workers = n
	}
}

// WithLogger sets the logger for diagnostics. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(e *Editor) {
		e.logger = l
		e.renderer.Logger = l
	}
}

// WithVerification makes the overlay strategies draw a verification code
// on the first edited page. payload maps the formatted name to the encoded
// text, typically a lookup URL.
func WithVerification(payload func(name string) string, sym render.Symbology) Option {
	return func(e *Editor) {
		e.verify = payload
		e.symbology = sym
	}
}
