package reader

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"
)

// decodeStream applies the stream's filter chain.
func decodeStream(s Stream) ([]byte, error) {
	var filters []Name
	switch f := s.Dict["Filter"].(type) {
	case nil:
		return s.Data, nil
	case Name:
		filters = []Name{f}
	case Array:
		for _, item := range f {
			n, ok := item.(Name)
			if !ok {
				return nil, fmt.Errorf("reader: filter array contains non-name: %T", item)
			}
			filters = append(filters, n)
		}
	default:
		return nil, fmt.Errorf("reader: unexpected filter type: %T", f)
	}

	params := decodeParams(s.Dict["DecodeParms"], len(filters))

	data := s.Data
	var err error
	for i, f := range filters {
		data, err = applyFilter(f, data, params[i])
		if err != nil {
			return nil, fmt.Errorf("reader: applying filter %s: %w", f, err)
		}
	}
	return data, nil
}

// decodeParams normalizes /DecodeParms into one (possibly nil) dictionary per filter.
func decodeParams(obj Object, n int) []Dict {
	out := make([]Dict, n)
	switch v := obj.(type) {
	case Dict:
		if n > 0 {
			out[0] = v
		}
	case Array:
		for i := 0; i < n && i < len(v); i++ {
			out[i], _ = v[i].(Dict)
		}
	}
	return out
}

func applyFilter(name Name, data []byte, params Dict) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		out, err := flateDecode(data)
		if err != nil {
			return nil, err
		}
		return unpredict(out, params)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	default:
		return nil, fmt.Errorf("unsupported filter: %s", name)
	}
}

func flateDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib init: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		// truncated streams are common; keep what was inflated
		if buf.Len() > 0 && (err == io.ErrUnexpectedEOF || err == zlib.ErrChecksum) {
			return buf.Bytes(), nil
		}
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// unpredict reverses PNG row predictors (Predictor >= 10), which producers use
// for cross-reference streams. TIFF predictor 2 is not supported.
func unpredict(data []byte, params Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, _ := params.GetInt("Predictor")
	if predictor < 10 {
		if predictor == 2 {
			return nil, fmt.Errorf("TIFF predictor not supported")
		}
		return data, nil
	}

	columns := int64(1)
	if c, ok := params.GetInt("Columns"); ok && c > 0 {
		columns = c
	}
	colors := int64(1)
	if c, ok := params.GetInt("Colors"); ok && c > 0 {
		colors = c
	}
	bpc := int64(8)
	if b, ok := params.GetInt("BitsPerComponent"); ok && b > 0 {
		bpc = b
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)

	var out bytes.Buffer
	prev := make([]byte, rowLen)
	for pos := 0; pos+1+rowLen <= len(data); pos += 1 + rowLen {
		kind := data[pos]
		row := make([]byte, rowLen)
		copy(row, data[pos+1:pos+1+rowLen])
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG predictor %d", kind)
			}
		}
		out.Write(row)
		prev = row
	}
	return out.Bytes(), nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// asciiHexDecode decodes ASCII hex data terminated by '>'.
func asciiHexDecode(data []byte) ([]byte, error) {
	var clean bytes.Buffer
	for _, b := range data {
		if b == '>' {
			break
		}
		if !isWhitespace(b) {
			clean.WriteByte(b)
		}
	}

	src := clean.Bytes()
	if len(src)%2 != 0 {
		src = append(src, '0')
	}

	dst := make([]byte, hex.DecodedLen(len(src)))
	if _, err := hex.Decode(dst, src); err != nil {
		return nil, fmt.Errorf("ascii hex decode: %w", err)
	}
	return dst, nil
}

// ascii85Decode decodes ASCII85 data terminated by "~>".
func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	if end := bytes.Index(data, []byte("~>")); end >= 0 {
		data = data[:end]
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, ascii85.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("ascii85 decode: %w", err)
	}
	return buf.Bytes(), nil
}
