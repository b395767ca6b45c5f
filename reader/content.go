package reader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Glyph is one shown character in PDF user space (origin at the bottom-left
// of the page, y growing upward).
type Glyph struct {
	Rune  rune
	X, Y  float64 // origin on the baseline
	Width float64 // advance along the baseline, including character spacing
	Size  float64 // effective font size after text and graphics scaling

	// NewLine marks the first glyph of a text object or of a new line.
	// Glyphs on either side of a break do not belong to the same word.
	NewLine bool
}

// maxFormDepth bounds nested form XObjects.
const maxFormDepth = 8

// Glyphs interprets the page content and returns every shown glyph in
// content-stream order. Composite (Type0) fonts fail with ErrUnsupportedFont.
func (p *Page) Glyphs() ([]Glyph, error) {
	data, err := p.ContentStream()
	if err != nil {
		return nil, err
	}
	in := &interpreter{
		doc:   p.doc,
		gs:    graphicsState{ctm: identity, font: defaultFont, scale: 1},
		fonts: make(map[Reference]*fontInfo),
		brk:   true,
	}
	if err := in.run(data, p.Resources, 0); err != nil {
		return nil, fmt.Errorf("reader: page %d: %w", p.Number, err)
	}
	return in.glyphs, nil
}

// ExtractText returns the page text, with a space between lines and text
// objects.
func (p *Page) ExtractText() (string, error) {
	glyphs, err := p.Glyphs()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, g := range glyphs {
		if g.NewLine && b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(g.Rune)
	}
	return strings.TrimSpace(b.String()), nil
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// graphicsState holds the parts of the graphics and text state that affect
// glyph placement. Text state is saved and restored by q/Q.
type graphicsState struct {
	ctm     matrix
	font    *fontInfo
	size    float64
	charSp  float64 // Tc
	wordSp  float64 // Tw
	scale   float64 // Tz / 100
	leading float64 // TL
	rise    float64 // Ts
}

type interpreter struct {
	doc    *Document
	gs     graphicsState
	stack  []graphicsState
	tm     matrix
	tlm    matrix
	fonts  map[Reference]*fontInfo
	glyphs []Glyph
	brk    bool
}

func (in *interpreter) run(data []byte, res Dict, depth int) error {
	p := newContentParser(data)
	var operands []Object
	for {
		obj, err := p.ParseObject()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			// skip stray bytes the way viewers do
			p.pos++
			operands = operands[:0]
			continue
		}
		op, ok := obj.(operator)
		if !ok {
			operands = append(operands, obj)
			continue
		}
		if op == "ID" {
			skipInlineImage(p)
		} else if err := in.exec(op, operands, res, depth); err != nil {
			return err
		}
		operands = operands[:0]
	}
}

// skipInlineImage moves past inline image data up to and including EI.
func skipInlineImage(p *parser) {
	p.pos++ // single whitespace after ID
	for i := p.pos; i+2 <= len(p.data); i++ {
		if p.data[i] == 'E' && p.data[i+1] == 'I' &&
			i > 0 && isWhitespace(p.data[i-1]) &&
			(i+2 == len(p.data) || isWhitespace(p.data[i+2])) {
			p.pos = i + 2
			return
		}
	}
	p.pos = len(p.data)
}

func (in *interpreter) exec(op operator, args []Object, res Dict, depth int) error {
	nums, _ := numbers(Array(args))
	switch op {
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if len(nums) == 6 {
			in.gs.ctm = matrix(nums).mul(in.gs.ctm)
		}
	case "BT":
		in.tm, in.tlm = identity, identity
		in.brk = true
	case "ET":
		in.brk = true
	case "Tf":
		if len(args) == 2 {
			name, _ := args[0].(Name)
			size, _ := number(args[1])
			in.gs.font = in.font(res, name)
			in.gs.size = size
		}
	case "Tc":
		if len(nums) == 1 {
			in.gs.charSp = nums[0]
		}
	case "Tw":
		if len(nums) == 1 {
			in.gs.wordSp = nums[0]
		}
	case "Tz":
		if len(nums) == 1 {
			in.gs.scale = nums[0] / 100
		}
	case "TL":
		if len(nums) == 1 {
			in.gs.leading = nums[0]
		}
	case "Ts":
		if len(nums) == 1 {
			in.gs.rise = nums[0]
		}
	case "Td":
		if len(nums) == 2 {
			in.moveLine(nums[0], nums[1])
		}
	case "TD":
		if len(nums) == 2 {
			in.gs.leading = -nums[1]
			in.moveLine(nums[0], nums[1])
		}
	case "Tm":
		if len(nums) == 6 {
			in.tm, in.tlm = matrix(nums), matrix(nums)
			in.brk = true
		}
	case "T*":
		in.moveLine(0, -in.gs.leading)
	case "Tj":
		if len(args) == 1 {
			return in.show(args[0])
		}
	case "'":
		if len(args) == 1 {
			in.moveLine(0, -in.gs.leading)
			return in.show(args[0])
		}
	case "\"":
		if len(args) == 3 {
			in.gs.wordSp, _ = number(args[0])
			in.gs.charSp, _ = number(args[1])
			in.moveLine(0, -in.gs.leading)
			return in.show(args[2])
		}
	case "TJ":
		if len(args) == 1 {
			arr, _ := args[0].(Array)
			for _, item := range arr {
				if n, ok := number(item); ok {
					in.advance(-n / 1000 * in.gs.size * in.gs.scale)
					continue
				}
				if err := in.show(item); err != nil {
					return err
				}
			}
		}
	case "Do":
		if len(args) == 1 {
			name, _ := args[0].(Name)
			return in.form(res, name, depth)
		}
	}
	return nil
}

// moveLine starts a new line offset from the start of the current one. Only
// a vertical move breaks words; producers often position words on a line
// with horizontal Td.
func (in *interpreter) moveLine(tx, ty float64) {
	in.tlm = translate(tx, ty).mul(in.tlm)
	in.tm = in.tlm
	if ty != 0 {
		in.brk = true
	}
}

func (in *interpreter) advance(tx float64) {
	in.tm = translate(tx, 0).mul(in.tm)
}

func (in *interpreter) show(obj Object) error {
	s, ok := obj.(String)
	if !ok {
		return nil
	}
	gs := &in.gs
	if gs.font.composite {
		return ErrUnsupportedFont
	}

	for _, code := range s.Value {
		trm := matrix{gs.size * gs.scale, 0, 0, gs.size, 0, gs.rise}.mul(in.tm).mul(gs.ctm)
		x, y := trm[4], trm[5]

		tx := gs.font.width(code)/1000*gs.size + gs.charSp
		if code == ' ' {
			tx += gs.wordSp
		}
		tx *= gs.scale
		in.advance(tx)

		end := matrix{1, 0, 0, 1, 0, gs.rise}.mul(in.tm).mul(gs.ctm)
		in.glyphs = append(in.glyphs, Glyph{
			Rune:    gs.font.runes[code],
			X:       x,
			Y:       y,
			Width:   math.Hypot(end[4]-x, end[5]-y),
			Size:    math.Hypot(trm[2], trm[3]),
			NewLine: in.brk,
		})
		in.brk = false
	}
	return nil
}

func (in *interpreter) font(res Dict, name Name) *fontInfo {
	fonts := in.doc.resolveDict(res["Font"])
	if fonts == nil {
		return defaultFont
	}
	ref, isRef := fonts[name].(Reference)
	if isRef {
		if f, ok := in.fonts[ref]; ok {
			return f
		}
	}
	f := in.doc.loadFont(in.doc.resolveDict(fonts[name]))
	if isRef {
		in.fonts[ref] = f
	}
	return f
}

// form runs a form XObject with its own matrix and resources.
func (in *interpreter) form(res Dict, name Name, depth int) error {
	if depth >= maxFormDepth {
		return nil
	}
	xobj, ok := in.doc.xobject(res, name)
	if !ok || xobj.Dict.GetName("Subtype") != "Form" {
		return nil
	}
	data, err := decodeStream(xobj)
	if err != nil {
		return err
	}

	saved, savedTm, savedTlm := in.gs, in.tm, in.tlm
	if m, ok := numbers(xobj.Dict.GetArray("Matrix")); ok && len(m) == 6 {
		in.gs.ctm = matrix(m).mul(in.gs.ctm)
	}
	formRes := in.doc.resolveDict(xobj.Dict["Resources"])
	if formRes == nil {
		formRes = res
	}
	in.brk = true
	err = in.run(data, formRes, depth+1)
	in.gs, in.tm, in.tlm = saved, savedTm, savedTlm
	in.brk = true
	return err
}
