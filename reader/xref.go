package reader

import (
	"bytes"
	"fmt"
	"strconv"
)

// xrefEntry locates one object. Objects stored in an object stream carry the
// stream's object number and their index inside it.
type xrefEntry struct {
	Offset     int64
	Generation int
	InUse      bool
	InStream   bool
	StreamNum  int
	Index      int
}

type xrefTable map[int]xrefEntry

// merge copies entries from older into t without overriding newer ones.
func (t xrefTable) merge(older xrefTable) {
	for num, entry := range older {
		if _, exists := t[num]; !exists {
			t[num] = entry
		}
	}
}

// findStartXRef locates the offset recorded after the last "startxref".
func findStartXRef(data []byte) (int64, error) {
	searchLen := min(2048, len(data))
	tail := data[len(data)-searchLen:]

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("reader: startxref not found: %w", ErrCorrupted)
	}

	p := newParser(tail[idx+len("startxref"):])
	tok := p.readToken()
	offset, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reader: invalid startxref offset %q: %w", tok, ErrCorrupted)
	}
	return offset, nil
}

// loadXRef follows the cross-reference chain starting at offset, combining
// tables and streams (including hybrid files with /XRefStm). The returned
// trailer is the newest one.
func loadXRef(data []byte, offset int64) (xrefTable, Dict, error) {
	table := make(xrefTable)
	var trailer Dict
	seen := make(map[int64]bool)

	for offset >= 0 {
		if seen[offset] {
			break
		}
		seen[offset] = true

		section, sectionTrailer, err := parseXRefSection(data, offset)
		if err != nil {
			if trailer == nil {
				return nil, nil, err
			}
			break // keep what the newer sections described
		}

		if stm, ok := sectionTrailer.GetInt("XRefStm"); ok {
			if hybrid, _, err := parseXRefStream(data, stm); err == nil {
				section.merge(hybrid)
			}
		}
		table.merge(section)
		if trailer == nil {
			trailer = sectionTrailer
		}

		prev, ok := sectionTrailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	return table, trailer, nil
}

// parseXRefSection parses one classic table or one cross-reference stream.
func parseXRefSection(data []byte, offset int64) (xrefTable, Dict, error) {
	if offset < 0 || int(offset) >= len(data) {
		return nil, nil, fmt.Errorf("reader: xref offset %d out of bounds: %w", offset, ErrCorrupted)
	}
	p := newParser(data[offset:])
	if p.readToken() != "xref" {
		return parseXRefStream(data, offset)
	}
	return parseXRefTable(p)
}

// parseXRefTable parses the subsections of a classic table and its trailer.
// The parser is positioned just after the "xref" keyword.
func parseXRefTable(p *parser) (xrefTable, Dict, error) {
	table := make(xrefTable)
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, nil, fmt.Errorf("reader: xref table without trailer: %w", ErrCorrupted)
		}
		if p.hasKeyword("trailer") {
			p.pos += len("trailer")
			break
		}

		startObj, err := strconv.ParseInt(p.readToken(), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("reader: xref subsection start: %w", ErrCorrupted)
		}
		count, err := strconv.ParseInt(p.readToken(), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("reader: xref subsection count: %w", ErrCorrupted)
		}

		for i := int64(0); i < count; i++ {
			off, err1 := strconv.ParseInt(p.readToken(), 10, 64)
			gen, err2 := strconv.ParseInt(p.readToken(), 10, 64)
			kind := p.readToken()
			if err1 != nil || err2 != nil {
				return nil, nil, fmt.Errorf("reader: xref entry %d: %w", startObj+i, ErrCorrupted)
			}
			num := int(startObj + i)
			if _, exists := table[num]; !exists {
				table[num] = xrefEntry{Offset: off, Generation: int(gen), InUse: kind == "n"}
			}
		}
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, nil, fmt.Errorf("reader: trailer dict: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, nil, fmt.Errorf("reader: trailer is not a dictionary: %w", ErrCorrupted)
	}
	return table, trailer, nil
}

// parseXRefStream parses a cross-reference stream (PDF 1.5+). The stream
// dictionary doubles as the trailer.
func parseXRefStream(data []byte, offset int64) (xrefTable, Dict, error) {
	if offset < 0 || int(offset) >= len(data) {
		return nil, nil, fmt.Errorf("reader: xref stream offset %d out of bounds: %w", offset, ErrCorrupted)
	}
	obj, err := newParser(data[offset:]).ParseIndirectObject(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("reader: xref stream object: %w", err)
	}
	stream, ok := obj.Value.(Stream)
	if !ok {
		return nil, nil, fmt.Errorf("reader: xref stream is not a stream object: %w", ErrCorrupted)
	}

	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, nil, fmt.Errorf("reader: decoding xref stream: %w", err)
	}

	w, ok := numbers(stream.Dict.GetArray("W"))
	if !ok || len(w) != 3 {
		return nil, nil, fmt.Errorf("reader: xref stream /W must have 3 numbers: %w", ErrCorrupted)
	}
	widths := [3]int{int(w[0]), int(w[1]), int(w[2])}
	entrySize := widths[0] + widths[1] + widths[2]

	var index []int
	if idx, ok := numbers(stream.Dict.GetArray("Index")); ok && len(idx) > 0 {
		for _, v := range idx {
			index = append(index, int(v))
		}
	} else {
		size, _ := stream.Dict.GetInt("Size")
		index = []int{0, int(size)}
	}

	table := make(xrefTable)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for j := 0; j < index[i+1]; j++ {
			if pos+entrySize > len(decoded) {
				return table, stream.Dict, nil
			}
			var fields [3]int64
			for f := 0; f < 3; f++ {
				for k := 0; k < widths[f]; k++ {
					fields[f] = fields[f]<<8 | int64(decoded[pos])
					pos++
				}
			}
			kind := fields[0]
			if widths[0] == 0 {
				kind = 1
			}

			num := index[i] + j
			switch kind {
			case 0:
				table[num] = xrefEntry{Generation: int(fields[2])}
			case 1:
				table[num] = xrefEntry{Offset: fields[1], Generation: int(fields[2]), InUse: true}
			case 2:
				table[num] = xrefEntry{InUse: true, InStream: true, StreamNum: int(fields[1]), Index: int(fields[2])}
			}
		}
	}
	return table, stream.Dict, nil
}
