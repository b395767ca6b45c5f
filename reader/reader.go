package reader

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Sentinel errors returned (wrapped) by the reader.
var (
	ErrCorrupted       = errors.New("reader: document is corrupted")
	ErrEncrypted       = errors.New("reader: document is encrypted")
	ErrUnsupportedFont = errors.New("reader: unsupported font encoding")
)

// Document is a parsed PDF document. It caches decoded object streams and is
// not safe for concurrent use; open one Document per goroutine.
type Document struct {
	Version string // from the %PDF- header, e.g. "1.7"
	start   int64  // newest cross-reference section
	xref    xrefTable
	trailer Dict
	data    []byte
	pages   []*Page
	objStms map[int]*objectStream
}

// Open reads and parses a PDF file.
func Open(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reader: opening %s: %w", filename, err)
	}
	return Parse(data)
}

// ReadFrom reads r to the end and parses the result.
func ReadFrom(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reader: reading input: %w", err)
	}
	return Parse(data)
}

// Parse builds a Document from raw PDF bytes. The slice is retained and must
// not be modified afterwards.
func Parse(data []byte) (*Document, error) {
	doc := &Document{
		data:    data,
		Version: parseVersion(data),
		objStms: make(map[int]*objectStream),
	}

	startXRef, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	doc.start = startXRef
	doc.xref, doc.trailer, err = loadXRef(data, startXRef)
	if err != nil {
		return nil, err
	}

	if _, ok := doc.trailer["Encrypt"]; ok {
		return nil, ErrEncrypted
	}

	if err := doc.buildPageList(); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseVersion extracts the version from the "%PDF-x.y" header.
func parseVersion(data []byte) string {
	header := string(data[:min(1024, len(data))])
	idx := strings.Index(header, "%PDF-")
	if idx < 0 {
		return ""
	}
	end := idx + 5
	for end < len(header) && header[end] != '\n' && header[end] != '\r' && header[end] != ' ' {
		end++
	}
	return header[idx+5 : end]
}

// Trailer returns the newest trailer dictionary, or the stream dictionary
// when the newest section is a cross-reference stream.
func (d *Document) Trailer() Dict {
	return d.trailer
}

// XRefOffset returns the byte offset recorded after the last startxref.
func (d *Document) XRefOffset() int64 {
	return d.start
}

// XRefStream reports whether the newest cross-reference section is a
// stream rather than a classic table.
func (d *Document) XRefStream() bool {
	return newParser(d.data[d.start:]).readToken() != "xref"
}

// Size returns one more than the highest object number the document uses,
// and at least the trailer's /Size.
func (d *Document) Size() int {
	size := 0
	if n, ok := d.trailer.GetInt("Size"); ok {
		size = int(n)
	}
	for num := range d.xref {
		size = max(size, num+1)
	}
	return size
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int {
	return len(d.pages)
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("reader: page %d out of range [1, %d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// Pages iterates over all pages; the index is 1-based.
func (d *Document) Pages() iter.Seq2[int, *Page] {
	return func(yield func(int, *Page) bool) {
		for i, page := range d.pages {
			if !yield(i+1, page) {
				return
			}
		}
	}
}

// Resolve follows an indirect reference. Dangling references resolve to Null.
func (d *Document) Resolve(obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		return obj, nil
	}
	return d.resolve(ref)
}

// resolveDict resolves obj and returns it as a dictionary, or nil.
func (d *Document) resolveDict(obj Object) Dict {
	resolved, err := d.Resolve(obj)
	if err != nil {
		return nil
	}
	switch v := resolved.(type) {
	case Dict:
		return v
	case Stream:
		return v.Dict
	}
	return nil
}

// resolveArray resolves obj and returns it as an array, or nil.
func (d *Document) resolveArray(obj Object) Array {
	resolved, err := d.Resolve(obj)
	if err != nil {
		return nil
	}
	arr, _ := resolved.(Array)
	return arr
}

func (d *Document) resolve(ref Reference) (Object, error) {
	entry, ok := d.xref[ref.Number]
	if !ok || !entry.InUse {
		return Null{}, nil
	}
	if entry.InStream {
		return d.resolveCompressed(ref.Number, entry)
	}

	if entry.Offset < 0 || int(entry.Offset) >= len(d.data) {
		return nil, fmt.Errorf("reader: object %d offset %d out of bounds: %w", ref.Number, entry.Offset, ErrCorrupted)
	}
	obj, err := newParser(d.data[entry.Offset:]).ParseIndirectObject(d.lengthOf)
	if err != nil {
		return nil, fmt.Errorf("reader: parsing object %d: %w", ref.Number, err)
	}
	return obj.Value, nil
}

// lengthOf resolves an indirect /Length value, returning -1 when unknown.
func (d *Document) lengthOf(obj Object) int {
	ref, ok := obj.(Reference)
	if !ok {
		return -1
	}
	entry, ok := d.xref[ref.Number]
	if !ok || entry.InStream || entry.Offset <= 0 || int(entry.Offset) >= len(d.data) {
		return -1
	}
	// avoid recursion: a length object is never a stream
	obj2, err := newParser(d.data[entry.Offset:]).ParseIndirectObject(nil)
	if err != nil {
		return -1
	}
	n, ok := number(obj2.Value)
	if !ok {
		return -1
	}
	return int(n)
}

// objectStream holds the decoded body and object offsets of an /ObjStm.
type objectStream struct {
	data    []byte
	first   int
	offsets map[int]int // object number -> offset relative to first
}

func (d *Document) resolveCompressed(num int, entry xrefEntry) (Object, error) {
	stm, err := d.objectStream(entry.StreamNum)
	if err != nil {
		return nil, err
	}
	off, ok := stm.offsets[num]
	if !ok || stm.first+off >= len(stm.data) {
		return Null{}, nil
	}
	obj, err := newParser(stm.data[stm.first+off:]).ParseObject()
	if err != nil {
		return nil, fmt.Errorf("reader: object %d in stream %d: %w", num, entry.StreamNum, err)
	}
	return obj, nil
}

func (d *Document) objectStream(num int) (*objectStream, error) {
	if stm, ok := d.objStms[num]; ok {
		return stm, nil
	}

	entry, ok := d.xref[num]
	if !ok || entry.InStream {
		return nil, fmt.Errorf("reader: object stream %d missing: %w", num, ErrCorrupted)
	}
	obj, err := d.resolve(Reference{Number: num})
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok {
		return nil, fmt.Errorf("reader: object %d is not an object stream: %w", num, ErrCorrupted)
	}
	data, err := decodeStream(s)
	if err != nil {
		return nil, err
	}

	n, _ := s.Dict.GetInt("N")
	first, _ := s.Dict.GetInt("First")
	stm := &objectStream{data: data, first: int(first), offsets: make(map[int]int, n)}

	p := newParser(data[:min(int(first), len(data))])
	for i := int64(0); i < n; i++ {
		objNum, err1 := strconv.Atoi(p.readToken())
		off, err2 := strconv.Atoi(p.readToken())
		if err1 != nil || err2 != nil {
			break
		}
		stm.offsets[objNum] = off
	}

	d.objStms[num] = stm
	return stm, nil
}

// Catalog returns the document catalog (/Root).
func (d *Document) Catalog() (Dict, error) {
	catalog := d.resolveDict(d.trailer["Root"])
	if catalog == nil {
		return nil, fmt.Errorf("reader: missing or invalid /Root: %w", ErrCorrupted)
	}
	return catalog, nil
}

// decodeTextString decodes a PDF text string (UTF-16BE with BOM, otherwise
// treated as Latin-1 which matches PDFDocEncoding for printable ASCII).
func decodeTextString(data []byte) string {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	var b strings.Builder
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}

func decodeUTF16BE(data []byte) string {
	u16s := make([]uint16, len(data)/2)
	for i := range u16s {
		u16s[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(u16s))
}

// Metadata returns the string entries of the document information
// dictionary (/Info), such as Title, Author and Creator.
func (d *Document) Metadata() map[string]string {
	meta := make(map[string]string)
	for key, val := range d.resolveDict(d.trailer["Info"]) {
		resolved, err := d.Resolve(val)
		if err != nil {
			continue
		}
		if s, ok := resolved.(String); ok {
			meta[string(key)] = decodeTextString(s.Value)
		}
	}
	return meta
}
