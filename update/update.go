// Package update appends incremental updates to existing PDF documents.
//
// The original bytes are kept as they are. New and replaced objects are
// written after them, followed by a cross-reference section whose /Prev
// points at the previous one, so every object that is not replaced keeps
// its bytes. Documents whose newest section is a cross-reference stream get
// a stream section; all others get a classic table.
package update

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/lvillar/certfill/reader"
)

type entry struct {
	gen int
	obj reader.Object
}

// Writer collects the objects of one update.
type Writer struct {
	doc     *reader.Document
	data    []byte
	next    int
	objects map[int]entry
}

// New parses data and starts an empty update. data is retained and must
// not be modified.
func New(data []byte) (*Writer, error) {
	doc, err := reader.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Writer{
		doc:     doc,
		data:    data,
		next:    max(doc.Size(), 1),
		objects: make(map[int]entry),
	}, nil
}

// Document returns the parsed original.
func (w *Writer) Document() *reader.Document { return w.doc }

// Add stores obj as a new indirect object and returns its reference.
func (w *Writer) Add(obj reader.Object) reader.Reference {
	ref := reader.Reference{Number: w.next}
	w.next++
	w.objects[ref.Number] = entry{obj: obj}
	return ref
}

// Set replaces the object ref points at.
func (w *Writer) Set(ref reader.Reference, obj reader.Object) {
	w.objects[ref.Number] = entry{gen: ref.Generation, obj: obj}
	w.next = max(w.next, ref.Number+1)
}

// Len returns the number of objects in the update.
func (w *Writer) Len() int { return len(w.objects) }

// Bytes returns the original document followed by the update. Without
// objects the original is returned unchanged.
func (w *Writer) Bytes() ([]byte, error) {
	if len(w.objects) == 0 {
		return w.data, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(w.data) + 1024)
	buf.Write(w.data)
	if last := w.data[len(w.data)-1]; last != '\n' && last != '\r' {
		buf.WriteByte('\n')
	}

	nums := make([]int, 0, len(w.objects))
	for num := range w.objects {
		nums = append(nums, num)
	}
	slices.Sort(nums)

	offsets := make(map[int]int64, len(nums)+1)
	for _, num := range nums {
		e := w.objects[num]
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d %d obj\n", num, e.gen)
		if err := writeIndirect(&buf, e.obj); err != nil {
			return nil, fmt.Errorf("update: object %d: %w", num, err)
		}
		buf.WriteString("\nendobj\n")
	}

	trailer := reader.Dict{"Prev": reader.Integer(w.doc.XRefOffset())}
	old := w.doc.Trailer()
	for _, key := range []reader.Name{"Root", "Info", "ID"} {
		if v, ok := old[key]; ok {
			trailer[key] = v
		}
	}

	var start int64
	var err error
	if w.doc.XRefStream() {
		start, err = w.writeXRefStream(&buf, nums, offsets, trailer)
	} else {
		start, err = w.writeXRefTable(&buf, nums, offsets, trailer)
	}
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)
	return buf.Bytes(), nil
}

// gen returns the generation number of an object in the update.
func (w *Writer) gen(num int) int {
	return w.objects[num].gen
}

func (w *Writer) writeXRefTable(buf *bytes.Buffer, nums []int, offsets map[int]int64, trailer reader.Dict) (int64, error) {
	start := int64(buf.Len())
	buf.WriteString("xref\n")
	for _, run := range runs(nums) {
		fmt.Fprintf(buf, "%d %d\n", run[0], len(run))
		for _, num := range run {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[num], w.gen(num))
		}
	}
	trailer["Size"] = reader.Integer(w.next)
	buf.WriteString("trailer\n")
	if err := writeObject(buf, trailer); err != nil {
		return 0, err
	}
	buf.WriteByte('\n')
	return start, nil
}

// writeXRefStream writes the section as a stream object that also lists
// itself. Fields are 1, 4 and 2 bytes wide.
func (w *Writer) writeXRefStream(buf *bytes.Buffer, nums []int, offsets map[int]int64, trailer reader.Dict) (int64, error) {
	self := w.next
	w.next++
	start := int64(buf.Len())
	offsets[self] = start
	nums = append(nums, self)

	var data bytes.Buffer
	var index reader.Array
	for _, run := range runs(nums) {
		index = append(index, reader.Integer(run[0]), reader.Integer(len(run)))
		for _, num := range run {
			data.WriteByte(1)
			encodeInt(&data, uint64(offsets[num]), 4)
			encodeInt(&data, uint64(w.gen(num)), 2)
		}
	}

	trailer["Type"] = reader.Name("XRef")
	trailer["Size"] = reader.Integer(w.next)
	trailer["W"] = reader.Array{reader.Integer(1), reader.Integer(4), reader.Integer(2)}
	trailer["Index"] = index

	fmt.Fprintf(buf, "%d 0 obj\n", self)
	if err := writeIndirect(buf, reader.Stream{Dict: trailer, Data: data.Bytes()}); err != nil {
		return 0, err
	}
	buf.WriteString("\nendobj\n")
	return start, nil
}

// runs splits sorted object numbers into consecutive runs.
func runs(nums []int) [][]int {
	var out [][]int
	for i, num := range nums {
		if i == 0 || num != nums[i-1]+1 {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], num)
	}
	return out
}

func encodeInt(buf *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		buf.WriteByte(byte(x >> (i * 8)))
	}
}
