package reader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// parser is a recursive descent parser for PDF object syntax. The same parser
// reads document objects and content stream operands; with ops set, bare
// keywords are returned as operators instead of failing.
type parser struct {
	data []byte
	pos  int
	ops  bool
}

func newParser(data []byte) *parser {
	return &parser{data: data}
}

func newContentParser(data []byte) *parser {
	return &parser{data: data, ops: true}
}

// skipWhitespace advances past whitespace and comments.
func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', 0:
			p.pos++
		case '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// readToken reads the next run of regular characters.
func (p *parser) readToken() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// hasKeyword reports whether kw starts at the current position.
func (p *parser) hasKeyword(kw string) bool {
	return p.pos+len(kw) <= len(p.data) && string(p.data[p.pos:p.pos+len(kw)]) == kw
}

// ParseObject parses the next object from the current position.
func (p *parser) ParseObject() (Object, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, io.ErrUnexpectedEOF
	}

	b := p.data[p.pos]
	switch {
	case b == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDict()
		}
		return p.parseHexString()
	case b == '(':
		return p.parseLiteralString()
	case b == '/':
		return p.parseName()
	case b == '[':
		return p.parseArray()
	case b >= '0' && b <= '9', b == '+', b == '-', b == '.':
		return p.parseNumberOrRef()
	case isRegular(b):
		return p.parseKeyword()
	default:
		return nil, fmt.Errorf("reader: unexpected character %q at position %d", b, p.pos)
	}
}

// parseKeyword handles true, false, null and, in content streams, operators.
func (p *parser) parseKeyword() (Object, error) {
	start := p.pos
	tok := p.readToken()
	switch tok {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	}
	if p.ops && tok != "" {
		return operator(tok), nil
	}
	return nil, fmt.Errorf("reader: unexpected keyword %q at position %d", tok, start)
}

func (p *parser) parseName() (Name, error) {
	if p.data[p.pos] != '/' {
		return "", fmt.Errorf("reader: expected '/' at position %d", p.pos)
	}
	p.pos++

	var buf bytes.Buffer
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		if b == '#' && p.pos+2 < len(p.data) {
			hi, lo := unhex(p.data[p.pos+1]), unhex(p.data[p.pos+2])
			if hi >= 0 && lo >= 0 {
				buf.WriteByte(byte(hi<<4 | lo))
				p.pos += 3
				continue
			}
		}
		buf.WriteByte(b)
		p.pos++
	}
	return Name(buf.String()), nil
}

// parseNumberOrRef parses an integer, a real or an "N G R" reference.
func (p *parser) parseNumberOrRef() (Object, error) {
	start := p.pos
	tok := p.readToken()

	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		if p.ops {
			// references never appear in content streams
			return Integer(n), nil
		}
		after := p.pos
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			gen, err := strconv.ParseInt(p.readToken(), 10, 64)
			if err == nil {
				p.skipWhitespace()
				if p.pos < len(p.data) && p.data[p.pos] == 'R' &&
					(p.pos+1 == len(p.data) || !isRegular(p.data[p.pos+1])) {
					p.pos++
					return Reference{Number: int(n), Generation: int(gen)}, nil
				}
			}
		}
		p.pos = after
		return Integer(n), nil
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		// producers occasionally write "--5" or "5-"; treat as zero like viewers do
		if tok != "" {
			return Real(0), nil
		}
		return nil, fmt.Errorf("reader: invalid number at position %d", start)
	}
	return Real(f), nil
}

func (p *parser) parseLiteralString() (String, error) {
	raw, end := parseLiteralStringRaw(p.data, p.pos)
	if end > len(p.data) {
		return String{}, fmt.Errorf("reader: unterminated literal string")
	}
	p.pos = end
	return String{Value: raw}, nil
}

func (p *parser) parseHexString() (String, error) {
	raw, end := parseHexStringRaw(p.data, p.pos)
	if end > len(p.data) {
		return String{}, fmt.Errorf("reader: unterminated hex string")
	}
	p.pos = end
	return String{Value: raw, IsHex: true}, nil
}

func (p *parser) parseArray() (Array, error) {
	p.pos++ // '['
	arr := Array{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("reader: unterminated array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("reader: in array: %w", err)
		}
		arr = append(arr, obj)
	}
}

func (p *parser) parseDict() (Dict, error) {
	p.pos += 2 // '<<'
	d := make(Dict)
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("reader: unterminated dictionary")
		}
		if p.hasKeyword(">>") {
			p.pos += 2
			return d, nil
		}
		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("reader: dict key: %w", err)
		}
		val, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("reader: dict value for %s: %w", key, err)
		}
		d[key] = val
	}
}

// ParseIndirectObject parses "N G obj ... endobj", including stream data.
// The length resolver is consulted when /Length is an indirect reference.
func (p *parser) ParseIndirectObject(length func(Object) int) (*IndirectObject, error) {
	num, err := strconv.ParseInt(p.readToken(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("reader: expected object number: %w", err)
	}
	gen, err := strconv.ParseInt(p.readToken(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("reader: expected generation number: %w", err)
	}
	if tok := p.readToken(); tok != "obj" {
		return nil, fmt.Errorf("reader: expected 'obj', got %q", tok)
	}

	val, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("reader: object %d %d: %w", num, gen, err)
	}

	p.skipWhitespace()
	if p.hasKeyword("stream") {
		dict, ok := val.(Dict)
		if !ok {
			return nil, fmt.Errorf("reader: stream object %d %d has non-dict header", num, gen)
		}
		data, err := p.readStreamData(dict, length)
		if err != nil {
			return nil, fmt.Errorf("reader: object %d %d: %w", num, gen, err)
		}
		val = Stream{Dict: dict, Data: data}
	}

	p.skipWhitespace()
	if p.hasKeyword("endobj") {
		p.pos += len("endobj")
	}

	return &IndirectObject{
		Reference: Reference{Number: int(num), Generation: int(gen)},
		Value:     val,
	}, nil
}

// readStreamData reads the bytes between "stream" and "endstream". When the
// declared length is missing or wrong it falls back to searching for the
// endstream keyword.
func (p *parser) readStreamData(dict Dict, length func(Object) int) ([]byte, error) {
	p.pos += len("stream")
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}

	n := -1
	if v, ok := dict.GetInt("Length"); ok {
		n = int(v)
	} else if ref, ok := dict["Length"].(Reference); ok && length != nil {
		n = length(ref)
	}

	if n >= 0 && p.pos+n <= len(p.data) {
		rest := bytes.TrimLeft(p.data[p.pos+n:min(p.pos+n+32, len(p.data))], " \r\n\t")
		if bytes.HasPrefix(rest, []byte("endstream")) {
			data := p.data[p.pos : p.pos+n]
			p.pos += n
			p.skipWhitespace()
			p.pos += len("endstream")
			return data, nil
		}
	}

	end := bytes.Index(p.data[p.pos:], []byte("endstream"))
	if end < 0 {
		return nil, fmt.Errorf("stream without endstream")
	}
	data := bytes.TrimRight(p.data[p.pos:p.pos+end], "\r\n")
	p.pos += end + len("endstream")
	return data, nil
}

// parseLiteralStringRaw decodes a literal string starting at pos and returns
// its bytes and the position after the closing parenthesis.
func parseLiteralStringRaw(data []byte, pos int) ([]byte, int) {
	if pos >= len(data) || data[pos] != '(' {
		return nil, pos
	}
	pos++

	var buf bytes.Buffer
	depth := 1
	for pos < len(data) && depth > 0 {
		b := data[pos]
		pos++
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			if pos >= len(data) {
				break
			}
			esc := data[pos]
			pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if pos < len(data) && data[pos] == '\n' {
					pos++
				}
			case '\n':
				// line continuation
			default:
				if esc >= '0' && esc <= '7' {
					oct := int(esc - '0')
					for j := 0; j < 2 && pos < len(data) && data[pos] >= '0' && data[pos] <= '7'; j++ {
						oct = oct*8 + int(data[pos]-'0')
						pos++
					}
					buf.WriteByte(byte(oct))
				} else {
					buf.WriteByte(esc)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}
	if depth > 0 {
		return buf.Bytes(), len(data) + 1
	}
	return buf.Bytes(), pos
}

// parseHexStringRaw decodes a hex string starting at pos.
func parseHexStringRaw(data []byte, pos int) ([]byte, int) {
	if pos >= len(data) || data[pos] != '<' {
		return nil, pos
	}
	pos++

	var buf bytes.Buffer
	hi := -1
	for pos < len(data) {
		b := data[pos]
		pos++
		if b == '>' {
			if hi >= 0 {
				buf.WriteByte(byte(hi << 4))
			}
			return buf.Bytes(), pos
		}
		v := unhex(b)
		if v < 0 {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			buf.WriteByte(byte(hi<<4 | v))
			hi = -1
		}
	}
	return buf.Bytes(), len(data) + 1
}

func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}
