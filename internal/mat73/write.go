package mat73

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf16"
)

// writer assembles the HDF5 region in memory. Offsets into buf are the
// stored addresses; the 512-byte userblock is prepended at the end, so every
// stored address is already relative to the base address.
type writer struct {
	buf   []byte
	level int
	refs  []member
	nrefs int
}

// member is one link inside a group, ready for a symbol table entry.
type member struct {
	name  string
	addr  uint64
	group bool
	btree uint64
	heap  uint64
}

type message struct {
	typ  uint16
	body []byte
}

// WriteFile renders vars as a MATLAB 7.3 container and atomically replaces
// path. level selects the DEFLATE level applied to large datasets.
func WriteFile(path string, vars map[string]*Array, level int) error {
	data, err := Encode(vars, level)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mat73-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Encode renders vars as the complete byte content of a MATLAB 7.3 file.
// Top-level variables and struct fields become HDF5 links, so their names
// must be non-empty and slash-free.
func Encode(vars map[string]*Array, level int) ([]byte, error) {
	if len(vars) == 0 {
		return nil, errors.New("no variables to write")
	}
	if level < 1 || level > 9 {
		level = 3
	}
	w := &writer{level: level}
	w.alloc(superblockSize)

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make([]member, 0, len(names)+1)
	for _, name := range names {
		if err := validName(name); err != nil {
			return nil, err
		}
		m, err := w.writeValue(vars[name])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		m.name = name
		members = append(members, m)
	}
	if len(w.refs) > 0 {
		refGroup, err := w.writeGroup(w.refs, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", refsGroupName, err)
		}
		refGroup.name = refsGroupName
		members = append(members, refGroup)
	}
	root, err := w.writeGroup(members, nil)
	if err != nil {
		return nil, err
	}
	w.patchSuperblock(root)

	out := make([]byte, userblockSize+len(w.buf))
	writeUserblock(out[:userblockSize])
	copy(out[userblockSize:], w.buf)
	return out, nil
}

func validName(name string) error {
	if name == "" {
		return errors.New("empty link name")
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid link name %q", name)
	}
	return nil
}

func (w *writer) writeValue(a *Array) (member, error) {
	if a == nil {
		a = EmptyDouble()
	}
	if a.IsEmpty() {
		return w.writeEmpty(a), nil
	}
	switch a.Class {
	case ClassStruct:
		return w.writeStruct(a)
	case ClassCell:
		return w.writeCell(a)
	case ClassChar:
		return w.writeChar(a)
	case ClassDouble, ClassLogical, ClassUint8, ClassInt32, ClassUint64:
		return w.writeNumeric(a)
	default:
		return member{}, fmt.Errorf("unsupported class %q", a.Class)
	}
}

// writeEmpty stores the MATLAB dimensions as uint64 data and marks the
// dataset with MATLAB_empty, matching how MATLAB persists empty arrays.
func (w *writer) writeEmpty(a *Array) member {
	dims := a.Dims
	if len(dims) == 0 {
		dims = []int{0, 0}
	}
	class := a.Class
	if class == "" {
		class = ClassDouble
	}
	data := make([]byte, 8*len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(d))
	}
	attrs := []attribute{classAttr(class), intAttr(attrMatlabEmpty, 1)}
	addr := w.writeDataset(data, []uint64{uint64(len(dims))}, storageFor(ClassUint64), attrs)
	return member{addr: addr}
}

func (w *writer) writeNumeric(a *Array) (member, error) {
	st := storageFor(a.Class)
	n := a.NumElements()
	if len(a.Float) != n {
		return member{}, fmt.Errorf("%s array %v holds %d elements", a.Class, a.Dims, len(a.Float))
	}
	data := make([]byte, n*st.size)
	for i, v := range a.Float {
		switch {
		case st.class == classFloat:
			binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
		case st.size == 1:
			data[i] = uint8(v)
		case st.size == 4:
			binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)))
		default:
			binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
		}
	}
	attrs := []attribute{classAttr(a.Class)}
	if a.Class == ClassLogical {
		attrs = append(attrs, intAttr(attrMatlabDecode, 1))
	}
	addr := w.writeDataset(data, fileDims(a.Dims), st, attrs)
	return member{addr: addr}, nil
}

func (w *writer) writeChar(a *Array) (member, error) {
	units := utf16.Encode([]rune(a.Chars))
	if len(units) != a.NumElements() {
		return member{}, fmt.Errorf("char array %v holds %d code units", a.Dims, len(units))
	}
	data := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(data[i*2:], u)
	}
	attrs := []attribute{classAttr(ClassChar), intAttr(attrMatlabDecode, 2)}
	addr := w.writeDataset(data, fileDims(a.Dims), storageFor(ClassChar), attrs)
	return member{addr: addr}, nil
}

// writeCell stores element values under #refs# and the cell itself as a
// dataset of object references.
func (w *writer) writeCell(a *Array) (member, error) {
	n := a.NumElements()
	if len(a.Cells) != n {
		return member{}, fmt.Errorf("cell array %v holds %d elements", a.Dims, len(a.Cells))
	}
	data := make([]byte, n*8)
	for i, el := range a.Cells {
		m, err := w.writeValue(el)
		if err != nil {
			return member{}, fmt.Errorf("element %d: %w", i, err)
		}
		m.name = w.nextRefName()
		w.refs = append(w.refs, m)
		binary.LittleEndian.PutUint64(data[i*8:], m.addr)
	}
	st := storage{class: classReference, size: 8}
	addr := w.writeDataset(data, fileDims(a.Dims), st, []attribute{classAttr(ClassCell)})
	return member{addr: addr}, nil
}

func (w *writer) writeStruct(a *Array) (member, error) {
	names := make([]string, 0, len(a.Fields))
	for name := range a.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	members := make([]member, 0, len(names))
	for _, name := range names {
		if err := validName(name); err != nil {
			return member{}, err
		}
		m, err := w.writeValue(a.Fields[name])
		if err != nil {
			return member{}, fmt.Errorf("field %q: %w", name, err)
		}
		m.name = name
		members = append(members, m)
	}
	return w.writeGroup(members, []attribute{classAttr(ClassStruct)})
}

// nextRefName yields a, b, ..., z, aa, ab, ... like MATLAB's own #refs#.
func (w *writer) nextRefName() string {
	i := w.nrefs
	w.nrefs++
	name := ""
	for {
		name = string(rune('a'+i%26)) + name
		i = i/26 - 1
		if i < 0 {
			return name
		}
	}
}

// writeDataset emits the data block (single DEFLATE chunk when large), then
// the object header, and returns the header address.
func (w *writer) writeDataset(data []byte, dims []uint64, st storage, attrs []attribute) uint64 {
	msgs := make([]message, 0, 6+len(attrs))
	msgs = append(msgs,
		message{msgDataspace, dataspaceBody(dims)},
		message{msgDatatype, datatypeBody(st)})

	if len(data) > compressThreshold {
		compressed := deflate(data, w.level)
		chunkAddr := w.append(compressed)
		btreeAddr := w.writeChunkBtree(dims, uint32(len(compressed)), chunkAddr)
		msgs = append(msgs,
			message{msgFillValue, fillBody(3)},
			message{msgLayout, chunkedLayoutBody(btreeAddr, dims, st.size)},
			message{msgFilters, deflateFilterBody(w.level)})
	} else {
		dataAddr := w.append(data)
		msgs = append(msgs,
			message{msgFillValue, fillBody(1)},
			message{msgLayout, contiguousLayoutBody(dataAddr, uint64(len(data)))})
	}
	for _, at := range attrs {
		msgs = append(msgs, at.message())
	}
	return w.writeObjectHeader(msgs)
}

// writeGroup lays out the local heap, symbol table nodes, and B-tree for the
// given members and returns the group's header address with its scratch
// values. Members are sorted here; callers pass any order.
func (w *writer) writeGroup(members []member, attrs []attribute) (member, error) {
	if len(members) > snodCapacity*2*groupInternalK {
		return member{}, fmt.Errorf("group with %d members exceeds format capacity", len(members))
	}
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	// The first eight bytes of the heap stay zero so offset 0 reads as the
	// empty string, which the leftmost B-tree key points at.
	heapData := make([]byte, 8)
	offsets := make([]uint64, len(members))
	for i, m := range members {
		offsets[i] = uint64(len(heapData))
		heapData = append(heapData, m.name...)
		heapData = append(heapData, 0)
		for len(heapData)%8 != 0 {
			heapData = append(heapData, 0)
		}
	}
	heapAddr := w.alloc(32)
	hb := w.buf[heapAddr:]
	copy(hb, heapSignature)
	binary.LittleEndian.PutUint64(hb[8:], uint64(len(heapData)))
	binary.LittleEndian.PutUint64(hb[16:], undefAddr)
	binary.LittleEndian.PutUint64(hb[24:], heapAddr+32)
	w.append(heapData)

	var snodAddrs, lastNames []uint64
	for start := 0; start < len(members); start += snodCapacity {
		end := start + snodCapacity
		if end > len(members) {
			end = len(members)
		}
		snodAddrs = append(snodAddrs, w.writeSnod(members[start:end], offsets[start:end]))
		lastNames = append(lastNames, offsets[end-1])
	}
	btreeAddr := w.writeGroupBtree(snodAddrs, lastNames)

	stBody := make([]byte, 16)
	binary.LittleEndian.PutUint64(stBody, btreeAddr)
	binary.LittleEndian.PutUint64(stBody[8:], heapAddr)
	msgs := []message{{msgSymbolTable, stBody}}
	for _, at := range attrs {
		msgs = append(msgs, at.message())
	}
	addr := w.writeObjectHeader(msgs)
	return member{addr: addr, group: true, btree: btreeAddr, heap: heapAddr}, nil
}

func (w *writer) writeSnod(members []member, offsets []uint64) uint64 {
	addr := w.alloc(snodHeaderSize + snodCapacity*symbolEntrySize)
	b := w.buf[addr:]
	copy(b, snodSignature)
	b[4] = 1
	binary.LittleEndian.PutUint16(b[6:], uint16(len(members)))
	off := snodHeaderSize
	for i, m := range members {
		binary.LittleEndian.PutUint64(b[off:], offsets[i])
		binary.LittleEndian.PutUint64(b[off+8:], m.addr)
		if m.group {
			binary.LittleEndian.PutUint32(b[off+16:], 1)
			binary.LittleEndian.PutUint64(b[off+24:], m.btree)
			binary.LittleEndian.PutUint64(b[off+32:], m.heap)
		}
		off += symbolEntrySize
	}
	return addr
}

// writeGroupBtree emits a leaf-level group B-tree. Separator keys carry the
// last name of the child to their left, so lookups that land on a boundary
// name descend into the node that holds it.
func (w *writer) writeGroupBtree(children, lastNames []uint64) uint64 {
	addr := w.alloc(24 + (2*groupInternalK+1)*8 + 2*groupInternalK*8)
	b := w.buf[addr:]
	copy(b, treeSignature)
	binary.LittleEndian.PutUint16(b[6:], uint16(len(children)))
	binary.LittleEndian.PutUint64(b[8:], undefAddr)
	binary.LittleEndian.PutUint64(b[16:], undefAddr)
	if len(children) == 0 {
		return addr
	}
	off := 24
	for i, child := range children {
		if i > 0 {
			binary.LittleEndian.PutUint64(b[off:], lastNames[i-1])
		}
		binary.LittleEndian.PutUint64(b[off+8:], child)
		off += 16
	}
	binary.LittleEndian.PutUint64(b[off:], lastNames[len(lastNames)-1])
	return addr
}

// writeChunkBtree emits a single-entry chunk B-tree describing the whole
// dataset as one filtered chunk at the origin.
func (w *writer) writeChunkBtree(dims []uint64, nbytes uint32, chunkAddr uint64) uint64 {
	rank := len(dims) + 1
	keySize := 8 + rank*8
	addr := w.alloc(24 + (2*chunkInternalK+1)*keySize + 2*chunkInternalK*8)
	b := w.buf[addr:]
	copy(b, treeSignature)
	b[4] = 1
	binary.LittleEndian.PutUint16(b[6:], 1)
	binary.LittleEndian.PutUint64(b[8:], undefAddr)
	binary.LittleEndian.PutUint64(b[16:], undefAddr)

	off := 24
	binary.LittleEndian.PutUint32(b[off:], nbytes)
	off += keySize
	binary.LittleEndian.PutUint64(b[off:], chunkAddr)
	off += 8
	// Closing key: the grid position just past the last chunk.
	off += 8
	for _, d := range dims {
		binary.LittleEndian.PutUint64(b[off:], d)
		off += 8
	}
	return addr
}

func (w *writer) writeObjectHeader(msgs []message) uint64 {
	total := 0
	for _, m := range msgs {
		total += 8 + alignTo8(len(m.body))
	}
	addr := w.alloc(objectHeaderPrefix + total)
	b := w.buf[addr:]
	b[0] = 1
	binary.LittleEndian.PutUint16(b[2:], uint16(len(msgs)))
	binary.LittleEndian.PutUint32(b[4:], 1)
	binary.LittleEndian.PutUint32(b[8:], uint32(total))
	off := objectHeaderPrefix
	for _, m := range msgs {
		binary.LittleEndian.PutUint16(b[off:], m.typ)
		binary.LittleEndian.PutUint16(b[off+2:], uint16(alignTo8(len(m.body))))
		copy(b[off+8:], m.body)
		off += 8 + alignTo8(len(m.body))
	}
	return addr
}

func (w *writer) patchSuperblock(root member) {
	b := w.buf[:superblockSize]
	copy(b, hdf5Signature)
	b[13] = 8
	b[14] = 8
	binary.LittleEndian.PutUint16(b[16:], groupLeafK)
	binary.LittleEndian.PutUint16(b[18:], groupInternalK)
	binary.LittleEndian.PutUint64(b[24:], userblockSize)
	binary.LittleEndian.PutUint64(b[32:], undefAddr)
	binary.LittleEndian.PutUint64(b[40:], uint64(len(w.buf)))
	binary.LittleEndian.PutUint64(b[48:], undefAddr)
	binary.LittleEndian.PutUint64(b[64:], root.addr)
	binary.LittleEndian.PutUint32(b[72:], 1)
	binary.LittleEndian.PutUint64(b[80:], root.btree)
	binary.LittleEndian.PutUint64(b[88:], root.heap)
}

func writeUserblock(b []byte) {
	desc := fmt.Sprintf("MATLAB 7.3 MAT-file, Platform: %s, Created on: %s HDF5 schema 1.00 .",
		strings.ToUpper(runtime.GOOS), time.Now().Format(time.ANSIC))
	for i := range b[:116] {
		b[i] = ' '
	}
	copy(b[:116], desc)
	binary.LittleEndian.PutUint16(b[124:], matVersion)
	b[126] = 'I'
	b[127] = 'M'
}

// alloc extends the buffer by n zero bytes at an 8-aligned address.
func (w *writer) alloc(n int) uint64 {
	w.pad()
	addr := uint64(len(w.buf))
	w.buf = append(w.buf, make([]byte, n)...)
	return addr
}

func (w *writer) append(data []byte) uint64 {
	w.pad()
	addr := uint64(len(w.buf))
	w.buf = append(w.buf, data...)
	return addr
}

func (w *writer) pad() {
	for len(w.buf)%8 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func deflate(data []byte, level int) []byte {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		zw, _ = zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	}
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

func fileDims(dims []int) []uint64 {
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = uint64(d)
	}
	return out
}

func dataspaceBody(dims []uint64) []byte {
	b := make([]byte, 8+8*len(dims))
	b[0] = 1
	b[1] = byte(len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(b[8+i*8:], d)
	}
	return b
}

func datatypeBody(st storage) []byte {
	switch st.class {
	case classFloat:
		b := make([]byte, 20)
		b[0] = 0x10 | classFloat
		b[1] = 0x20 // implied-msb mantissa normalization, little endian
		b[2] = 63   // sign bit location
		binary.LittleEndian.PutUint32(b[4:], 8)
		binary.LittleEndian.PutUint16(b[10:], 64)
		b[12] = 52
		b[13] = 11
		b[15] = 52
		binary.LittleEndian.PutUint32(b[16:], 1023)
		return b
	case classReference:
		b := make([]byte, 8)
		b[0] = 0x10 | classReference
		binary.LittleEndian.PutUint32(b[4:], 8)
		return b
	default:
		b := make([]byte, 12)
		b[0] = 0x10 | classFixed
		if st.signed {
			b[1] = 0x08
		}
		binary.LittleEndian.PutUint32(b[4:], uint32(st.size))
		binary.LittleEndian.PutUint16(b[10:], uint16(st.size*8))
		return b
	}
}

func strDatatypeBody(n int) []byte {
	b := make([]byte, 8)
	b[0] = 0x10 | classString
	binary.LittleEndian.PutUint32(b[4:], uint32(n))
	return b
}

func fillBody(allocTime byte) []byte {
	return []byte{2, allocTime, 2, 0}
}

func contiguousLayoutBody(addr, size uint64) []byte {
	b := make([]byte, 18)
	b[0] = 3
	b[1] = layoutContiguous
	binary.LittleEndian.PutUint64(b[2:], addr)
	binary.LittleEndian.PutUint64(b[10:], size)
	return b
}

func chunkedLayoutBody(btree uint64, dims []uint64, elemSize int) []byte {
	b := make([]byte, 11+4*(len(dims)+1))
	b[0] = 3
	b[1] = layoutChunked
	b[2] = byte(len(dims) + 1)
	binary.LittleEndian.PutUint64(b[3:], btree)
	off := 11
	for _, d := range dims {
		binary.LittleEndian.PutUint32(b[off:], uint32(d))
		off += 4
	}
	binary.LittleEndian.PutUint32(b[off:], uint32(elemSize))
	return b
}

func deflateFilterBody(level int) []byte {
	b := make([]byte, 24)
	b[0] = 1
	b[1] = 1
	binary.LittleEndian.PutUint16(b[8:], filterDeflate)
	binary.LittleEndian.PutUint16(b[14:], 1)
	binary.LittleEndian.PutUint32(b[16:], uint32(level))
	return b
}

type attribute struct {
	name   string
	dtype  []byte
	dspace []byte
	data   []byte
}

func classAttr(class string) attribute {
	return attribute{
		name:   attrMatlabClass,
		dtype:  strDatatypeBody(len(class)),
		dspace: dataspaceBody(nil),
		data:   []byte(class),
	}
}

func intAttr(name string, v int32) attribute {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return attribute{
		name:   name,
		dtype:  datatypeBody(storage{class: classFixed, size: 4, signed: true}),
		dspace: dataspaceBody(nil),
		data:   data,
	}
}

func (at attribute) message() message {
	nameLen := len(at.name) + 1
	body := make([]byte, 8+alignTo8(nameLen)+alignTo8(len(at.dtype))+alignTo8(len(at.dspace))+len(at.data))
	body[0] = 1
	binary.LittleEndian.PutUint16(body[2:], uint16(nameLen))
	binary.LittleEndian.PutUint16(body[4:], uint16(len(at.dtype)))
	binary.LittleEndian.PutUint16(body[6:], uint16(len(at.dspace)))
	off := 8
	copy(body[off:], at.name)
	off += alignTo8(nameLen)
	copy(body[off:], at.dtype)
	off += alignTo8(len(at.dtype))
	copy(body[off:], at.dspace)
	off += alignTo8(len(at.dspace))
	copy(body[off:], at.data)
	return message{msgAttribute, body}
}
