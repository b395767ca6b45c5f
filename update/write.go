package update

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"slices"
	"strconv"

	"github.com/lvillar/certfill/reader"
)

// FlateStream returns a stream holding data compressed with FlateDecode.
func FlateStream(dict reader.Dict, data []byte) (reader.Stream, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return reader.Stream{}, err
	}
	if err := zw.Close(); err != nil {
		return reader.Stream{}, err
	}
	d := make(reader.Dict, len(dict)+1)
	for k, v := range dict {
		d[k] = v
	}
	d["Filter"] = reader.Name("FlateDecode")
	return reader.Stream{Dict: d, Data: buf.Bytes()}, nil
}

// writeIndirect writes the body of an indirect object. Streams are only
// allowed here; their /Length is set from the data.
func writeIndirect(buf *bytes.Buffer, obj reader.Object) error {
	s, ok := obj.(reader.Stream)
	if !ok {
		return writeObject(buf, obj)
	}
	d := make(reader.Dict, len(s.Dict)+1)
	for k, v := range s.Dict {
		d[k] = v
	}
	d["Length"] = reader.Integer(len(s.Data))
	if err := writeObject(buf, d); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(s.Data)
	buf.WriteString("\nendstream")
	return nil
}

// writeObject writes a direct object in PDF syntax. Strings are written in
// hexadecimal and dictionary keys in sorted order.
func writeObject(buf *bytes.Buffer, obj reader.Object) error {
	switch v := obj.(type) {
	case nil, reader.Null:
		buf.WriteString("null")
	case reader.Boolean:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case reader.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case reader.Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case reader.Name:
		writeName(buf, v)
	case reader.String:
		fmt.Fprintf(buf, "<%X>", v.Value)
	case reader.Reference:
		fmt.Fprintf(buf, "%d %d R", v.Number, v.Generation)
	case reader.Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case reader.Dict:
		keys := make([]reader.Name, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		buf.WriteString("<<")
		for _, k := range keys {
			buf.WriteByte(' ')
			writeName(buf, k)
			buf.WriteByte(' ')
			if err := writeObject(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteString(" >>")
	case reader.Stream:
		return fmt.Errorf("stream must be an indirect object")
	default:
		return fmt.Errorf("cannot write %T", obj)
	}
	return nil
}

// writeName escapes delimiters, whitespace, '#' and bytes outside the
// printable ASCII range.
func writeName(buf *bytes.Buffer, n reader.Name) {
	buf.WriteByte('/')
	for _, c := range []byte(n) {
		if c < 0x21 || c > 0x7e || c == '#' || bytes.IndexByte([]byte("()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}
