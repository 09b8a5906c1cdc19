package mat73

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf16"
)

// reader holds the HDF5 region of a file and the objects discovered in it,
// keyed by their stored (base-relative) header address.
type reader struct {
	buf     []byte
	objects map[uint64]*object
}

type object struct {
	addr     uint64
	group    bool
	children map[string]uint64
	attrs    map[string]attrValue
	dims     []uint64
	dtype    dtypeInfo
	layout   layoutInfo
	filters  []uint16
}

type dtypeInfo struct {
	class     int
	size      int
	signed    bool
	bigEndian bool
}

type layoutInfo struct {
	class     int
	addr      uint64
	size      uint64
	chunkDims []uint32
	compact   []byte
}

type attrValue struct {
	dtype dtypeInfo
	data  []byte
}

// ReadFile loads every variable of a MATLAB 7.3 container.
func ReadFile(path string) (map[string]*Array, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses the complete byte content of a MATLAB 7.3 file and
// materializes all top-level variables, resolving cell references eagerly so
// callers never touch file structure.
func Decode(data []byte) (map[string]*Array, error) {
	if len(data) < userblockSize+superblockSize {
		return nil, fmt.Errorf("%w: file too short", ErrNotMAT)
	}
	if !bytes.HasPrefix(data, []byte("MATLAB")) {
		return nil, fmt.Errorf("%w: missing MATLAB header", ErrNotMAT)
	}
	if data[126] != 'I' || data[127] != 'M' {
		return nil, fmt.Errorf("%w: unsupported byte order", ErrNotMAT)
	}
	if v := binary.LittleEndian.Uint16(data[124:]); v != matVersion {
		return nil, fmt.Errorf("%w: container version %#04x", ErrNotMAT, v)
	}
	buf := data[userblockSize:]
	if !bytes.HasPrefix(buf, hdf5Signature) {
		return nil, fmt.Errorf("%w: missing HDF5 signature", ErrNotMAT)
	}
	if buf[8] != 0 {
		return nil, fmt.Errorf("unsupported superblock version %d", buf[8])
	}
	if buf[13] != 8 || buf[14] != 8 {
		return nil, fmt.Errorf("unsupported offset or length size %d/%d", buf[13], buf[14])
	}

	r := &reader{buf: buf, objects: make(map[uint64]*object)}
	rootAddr := binary.LittleEndian.Uint64(buf[64:])
	root, err := r.parseObject(rootAddr)
	if err != nil {
		return nil, fmt.Errorf("root group: %w", err)
	}
	if !root.group {
		return nil, fmt.Errorf("root object is not a group")
	}
	vars := make(map[string]*Array, len(root.children))
	for name, addr := range root.children {
		if len(name) > 0 && name[0] == '#' {
			continue
		}
		arr, err := r.materialize(r.objects[addr], name, make(map[uint64]bool))
		if err != nil {
			return nil, err
		}
		vars[name] = arr
	}
	return vars, nil
}

// at returns n bytes at the stored address addr, bounds-checked.
func (r *reader) at(addr uint64, n int) ([]byte, error) {
	end := addr + uint64(n)
	if end < addr || end > uint64(len(r.buf)) {
		return nil, fmt.Errorf("address %#x+%d outside file", addr, n)
	}
	return r.buf[addr:end:end], nil
}

// parseObject reads a version-1 object header, following continuation
// messages, and recursively parses group members.
func (r *reader) parseObject(addr uint64) (*object, error) {
	if o, ok := r.objects[addr]; ok {
		return o, nil
	}
	o := &object{addr: addr, attrs: make(map[string]attrValue)}
	r.objects[addr] = o

	hdr, err := r.at(addr, objectHeaderPrefix)
	if err != nil {
		return nil, err
	}
	if hdr[0] != 1 {
		return nil, fmt.Errorf("unsupported object header version %d at %#x", hdr[0], addr)
	}
	remaining := int(binary.LittleEndian.Uint16(hdr[2:]))
	firstSize := binary.LittleEndian.Uint32(hdr[8:])

	var stBtree, stHeap uint64
	hasSymtab := false
	blocks := [][2]uint64{{addr + objectHeaderPrefix, uint64(firstSize)}}
	for bi := 0; bi < len(blocks) && remaining > 0; bi++ {
		off, size := blocks[bi][0], blocks[bi][1]
		end := off + size
		for off+8 <= end && remaining > 0 {
			mh, err := r.at(off, 8)
			if err != nil {
				return nil, err
			}
			typ := binary.LittleEndian.Uint16(mh)
			msize := int(binary.LittleEndian.Uint16(mh[2:]))
			body, err := r.at(off+8, msize)
			if err != nil {
				return nil, err
			}
			off += 8 + uint64(msize)
			remaining--

			switch typ {
			case msgDataspace:
				o.dims, err = parseDataspace(body)
			case msgDatatype:
				o.dtype, err = parseDatatype(body)
			case msgLayout:
				o.layout, err = parseLayout(body)
			case msgFilters:
				o.filters, err = parseFilters(body)
			case msgAttribute:
				err = parseAttribute(body, o.attrs)
			case msgSymbolTable:
				if msize < 16 {
					err = fmt.Errorf("short symbol table message")
				} else {
					stBtree = binary.LittleEndian.Uint64(body)
					stHeap = binary.LittleEndian.Uint64(body[8:])
					hasSymtab = true
				}
			case msgContinuation:
				if msize < 16 {
					err = fmt.Errorf("short continuation message")
				} else {
					blocks = append(blocks, [2]uint64{
						binary.LittleEndian.Uint64(body),
						binary.LittleEndian.Uint64(body[8:]),
					})
				}
			}
			if err != nil {
				return nil, fmt.Errorf("object at %#x: %w", addr, err)
			}
		}
	}

	if hasSymtab {
		o.group = true
		o.children = make(map[string]uint64)
		heapData, err := r.heapData(stHeap)
		if err != nil {
			return nil, fmt.Errorf("group at %#x: %w", addr, err)
		}
		if err := r.walkGroupNode(stBtree, heapData, o); err != nil {
			return nil, fmt.Errorf("group at %#x: %w", addr, err)
		}
	}
	return o, nil
}

func (r *reader) heapData(addr uint64) ([]byte, error) {
	h, err := r.at(addr, 32)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(h, heapSignature) {
		return nil, fmt.Errorf("bad local heap signature at %#x", addr)
	}
	size := binary.LittleEndian.Uint64(h[8:])
	dataAddr := binary.LittleEndian.Uint64(h[24:])
	return r.at(dataAddr, int(size))
}

func (r *reader) walkGroupNode(addr uint64, heapData []byte, o *object) error {
	hdr, err := r.at(addr, 24)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(hdr, treeSignature) || hdr[4] != 0 {
		return fmt.Errorf("bad group B-tree node at %#x", addr)
	}
	level := hdr[5]
	n := int(binary.LittleEndian.Uint16(hdr[6:]))
	body, err := r.at(addr+24, n*16+8)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		child := binary.LittleEndian.Uint64(body[i*16+8:])
		if level > 0 {
			if err := r.walkGroupNode(child, heapData, o); err != nil {
				return err
			}
			continue
		}
		if err := r.parseSnod(child, heapData, o); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) parseSnod(addr uint64, heapData []byte, o *object) error {
	h, err := r.at(addr, snodHeaderSize)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(h, snodSignature) {
		return fmt.Errorf("bad symbol table node at %#x", addr)
	}
	n := int(binary.LittleEndian.Uint16(h[6:]))
	entries, err := r.at(addr+snodHeaderSize, n*symbolEntrySize)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e := entries[i*symbolEntrySize:]
		nameOff := binary.LittleEndian.Uint64(e)
		headerAddr := binary.LittleEndian.Uint64(e[8:])
		name, err := cstringAt(heapData, nameOff)
		if err != nil {
			return err
		}
		o.children[name] = headerAddr
		if _, err := r.parseObject(headerAddr); err != nil {
			return err
		}
	}
	return nil
}

func cstringAt(heap []byte, off uint64) (string, error) {
	if off >= uint64(len(heap)) {
		return "", fmt.Errorf("name offset %d outside heap", off)
	}
	end := bytes.IndexByte(heap[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated name at heap offset %d", off)
	}
	return string(heap[off : off+uint64(end)]), nil
}

// materialize converts a parsed object into an Array, resolving references.
// active guards against reference cycles.
func (r *reader) materialize(o *object, path string, active map[uint64]bool) (*Array, error) {
	if active[o.addr] {
		return nil, fmt.Errorf("%s: object reference cycle", path)
	}
	active[o.addr] = true
	defer delete(active, o.addr)

	if o.group {
		fields := make(map[string]*Array, len(o.children))
		for name, child := range o.children {
			fa, err := r.materialize(r.objects[child], path+"."+name, active)
			if err != nil {
				return nil, err
			}
			fields[name] = fa
		}
		return &Array{Class: ClassStruct, Dims: []int{1, 1}, Fields: fields}, nil
	}

	class, _ := o.stringAttr(attrMatlabClass)
	if v, ok := o.intAttr(attrMatlabEmpty); ok && v != 0 {
		return r.materializeEmpty(o, class, path)
	}

	raw, err := r.readData(o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dims := matlabDims(o.dims)
	n := 1
	for _, d := range dims {
		n *= d
	}

	switch {
	case o.dtype.class == classReference:
		if len(raw) < n*8 {
			return nil, fmt.Errorf("%s: reference data truncated", path)
		}
		cells := make([]*Array, n)
		for i := 0; i < n; i++ {
			ref := binary.LittleEndian.Uint64(raw[i*8:])
			target, ok := r.objects[ref]
			if ref == 0 || !ok {
				return nil, fmt.Errorf("%s element %d: %w", path, i, ErrDanglingReference)
			}
			cells[i], err = r.materialize(target, fmt.Sprintf("%s{%d}", path, i), active)
			if err != nil {
				return nil, err
			}
		}
		return &Array{Class: ClassCell, Dims: dims, Cells: cells}, nil

	case class == ClassChar:
		if o.dtype.size != 2 || len(raw) < n*2 {
			return nil, fmt.Errorf("%s: malformed char data", path)
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		return &Array{Class: ClassChar, Dims: dims, Chars: string(utf16.Decode(units))}, nil

	default:
		vals, err := numericValues(raw, o.dtype, n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if class == "" {
			class = ClassDouble
		}
		return &Array{Class: class, Dims: dims, Float: vals}, nil
	}
}

func (r *reader) materializeEmpty(o *object, class, path string) (*Array, error) {
	raw, err := r.readData(o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	n := 1
	for _, d := range o.dims {
		n *= int(d)
	}
	vals, err := numericValues(raw, o.dtype, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dims := make([]int, len(vals))
	for i, v := range vals {
		dims[i] = int(v)
	}
	if len(dims) == 0 {
		dims = []int{0, 0}
	}
	if class == "" {
		class = ClassDouble
	}
	return &Array{Class: class, Dims: dims}, nil
}

func matlabDims(fileDims []uint64) []int {
	switch len(fileDims) {
	case 0:
		return []int{1, 1}
	case 1:
		return []int{int(fileDims[0]), 1}
	}
	out := make([]int, len(fileDims))
	for i, d := range fileDims {
		out[len(fileDims)-1-i] = int(d)
	}
	return out
}

func numericValues(raw []byte, dt dtypeInfo, n int) ([]float64, error) {
	if dt.bigEndian {
		return nil, fmt.Errorf("big-endian data not supported")
	}
	if dt.size == 0 || len(raw) < n*dt.size {
		return nil, fmt.Errorf("numeric data truncated: %d bytes for %d elements of %d", len(raw), n, dt.size)
	}
	vals := make([]float64, n)
	switch {
	case dt.class == classFloat && dt.size == 8:
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case dt.class == classFloat && dt.size == 4:
		for i := range vals {
			vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case dt.class == classFixed:
		for i := range vals {
			var u uint64
			switch dt.size {
			case 1:
				u = uint64(raw[i])
			case 2:
				u = uint64(binary.LittleEndian.Uint16(raw[i*2:]))
			case 4:
				u = uint64(binary.LittleEndian.Uint32(raw[i*4:]))
			case 8:
				u = binary.LittleEndian.Uint64(raw[i*8:])
			default:
				return nil, fmt.Errorf("unsupported integer width %d", dt.size)
			}
			if dt.signed {
				shift := 64 - uint(dt.size)*8
				vals[i] = float64(int64(u<<shift) >> shift)
			} else {
				vals[i] = float64(u)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported datatype class %d size %d", dt.class, dt.size)
	}
	return vals, nil
}

// readData returns the raw element bytes of a dataset in file order.
func (r *reader) readData(o *object) ([]byte, error) {
	elemSize := o.dtype.size
	n := 1
	for _, d := range o.dims {
		n *= int(d)
	}
	total := n * elemSize
	switch o.layout.class {
	case layoutCompact:
		if len(o.layout.compact) < total {
			return nil, fmt.Errorf("compact data truncated")
		}
		return o.layout.compact[:total], nil
	case layoutContiguous:
		if o.layout.addr == undefAddr {
			return make([]byte, total), nil
		}
		return r.at(o.layout.addr, total)
	case layoutChunked:
		out := make([]byte, total)
		if err := r.readChunks(o, out, elemSize); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported data layout class %d", o.layout.class)
	}
}

func (r *reader) readChunks(o *object, out []byte, elemSize int) error {
	if len(o.layout.chunkDims) != len(o.dims)+1 {
		return fmt.Errorf("chunk rank %d does not match dataspace rank %d",
			len(o.layout.chunkDims), len(o.dims))
	}
	return r.walkChunkNode(o.layout.addr, o, out, elemSize)
}

func (r *reader) walkChunkNode(addr uint64, o *object, out []byte, elemSize int) error {
	hdr, err := r.at(addr, 24)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(hdr, treeSignature) || hdr[4] != 1 {
		return fmt.Errorf("bad chunk B-tree node at %#x", addr)
	}
	level := hdr[5]
	n := int(binary.LittleEndian.Uint16(hdr[6:]))
	rank := len(o.layout.chunkDims)
	keySize := 8 + rank*8
	body, err := r.at(addr+24, n*(keySize+8)+keySize)
	if err != nil {
		return err
	}
	off := 0
	for i := 0; i < n; i++ {
		key := body[off : off+keySize]
		child := binary.LittleEndian.Uint64(body[off+keySize:])
		off += keySize + 8
		if level > 0 {
			if err := r.walkChunkNode(child, o, out, elemSize); err != nil {
				return err
			}
			continue
		}
		nbytes := binary.LittleEndian.Uint32(key)
		mask := binary.LittleEndian.Uint32(key[4:])
		offsets := make([]uint64, rank-1)
		for d := range offsets {
			offsets[d] = binary.LittleEndian.Uint64(key[8+d*8:])
		}
		if err := r.copyChunk(o, out, child, nbytes, mask, offsets, elemSize); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) copyChunk(o *object, out []byte, addr uint64, nbytes, mask uint32, offsets []uint64, elemSize int) error {
	raw, err := r.at(addr, int(nbytes))
	if err != nil {
		return err
	}
	chunkDims := o.layout.chunkDims[:len(o.layout.chunkDims)-1]
	expect := elemSize
	for _, d := range chunkDims {
		expect *= int(d)
	}
	data := raw
	if mask&1 == 0 {
		for _, id := range o.filters {
			if id != filterDeflate {
				return fmt.Errorf("unsupported filter %d", id)
			}
		}
		if len(o.filters) > 0 {
			data, err = inflate(raw, expect)
			if err != nil {
				return err
			}
		}
	}
	if len(data) < expect {
		return fmt.Errorf("chunk at %#x holds %d bytes, expected %d", addr, len(data), expect)
	}

	dims := o.dims
	rr := len(dims)
	if rr == 0 {
		copy(out, data[:elemSize])
		return nil
	}
	counts := make([]uint64, rr)
	for i := 0; i < rr; i++ {
		if offsets[i] >= dims[i] {
			return nil
		}
		counts[i] = dims[i] - offsets[i]
		if c := uint64(chunkDims[i]); c < counts[i] {
			counts[i] = c
		}
	}
	srcStride := make([]uint64, rr)
	dstStride := make([]uint64, rr)
	srcStride[rr-1] = uint64(elemSize)
	dstStride[rr-1] = uint64(elemSize)
	for i := rr - 2; i >= 0; i-- {
		srcStride[i] = srcStride[i+1] * uint64(chunkDims[i+1])
		dstStride[i] = dstStride[i+1] * dims[i+1]
	}
	run := counts[rr-1] * uint64(elemSize)
	idx := make([]uint64, rr)
	for {
		var so, do uint64
		for i := 0; i < rr-1; i++ {
			so += idx[i] * srcStride[i]
			do += (offsets[i] + idx[i]) * dstStride[i]
		}
		do += offsets[rr-1] * uint64(elemSize)
		copy(out[do:do+run], data[so:so+run])
		i := rr - 2
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < counts[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

func inflate(raw []byte, expect int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("inflate chunk: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(io.LimitReader(zr, int64(expect)+1))
	if err != nil {
		return nil, fmt.Errorf("inflate chunk: %w", err)
	}
	return data, nil
}

func parseDataspace(b []byte) ([]uint64, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("short dataspace message")
	}
	var rank int
	var off int
	switch b[0] {
	case 1:
		if len(b) < 8 {
			return nil, fmt.Errorf("short dataspace message")
		}
		rank = int(b[1])
		off = 8
	case 2:
		rank = int(b[1])
		off = 4
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", b[0])
	}
	if len(b) < off+8*rank {
		return nil, fmt.Errorf("dataspace message truncated")
	}
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = binary.LittleEndian.Uint64(b[off+i*8:])
	}
	return dims, nil
}

func parseDatatype(b []byte) (dtypeInfo, error) {
	if len(b) < 8 {
		return dtypeInfo{}, fmt.Errorf("short datatype message")
	}
	dt := dtypeInfo{
		class: int(b[0] & 0x0F),
		size:  int(binary.LittleEndian.Uint32(b[4:])),
	}
	switch dt.class {
	case classFixed:
		dt.signed = b[1]&0x08 != 0
		dt.bigEndian = b[1]&0x01 != 0
	case classFloat:
		dt.bigEndian = b[1]&0x01 != 0
	case classString, classReference:
	default:
		return dtypeInfo{}, fmt.Errorf("unsupported datatype class %d", dt.class)
	}
	return dt, nil
}

func parseLayout(b []byte) (layoutInfo, error) {
	if len(b) < 2 {
		return layoutInfo{}, fmt.Errorf("short layout message")
	}
	if b[0] != 3 {
		return layoutInfo{}, fmt.Errorf("unsupported layout version %d", b[0])
	}
	li := layoutInfo{class: int(b[1])}
	switch li.class {
	case layoutCompact:
		if len(b) < 4 {
			return layoutInfo{}, fmt.Errorf("layout message truncated")
		}
		size := int(binary.LittleEndian.Uint16(b[2:]))
		if len(b) < 4+size {
			return layoutInfo{}, fmt.Errorf("compact layout truncated")
		}
		li.compact = b[4 : 4+size]
	case layoutContiguous:
		if len(b) < 18 {
			return layoutInfo{}, fmt.Errorf("layout message truncated")
		}
		li.addr = binary.LittleEndian.Uint64(b[2:])
		li.size = binary.LittleEndian.Uint64(b[10:])
	case layoutChunked:
		if len(b) < 11 {
			return layoutInfo{}, fmt.Errorf("layout message truncated")
		}
		rank := int(b[2])
		li.addr = binary.LittleEndian.Uint64(b[3:])
		if len(b) < 11+4*rank {
			return layoutInfo{}, fmt.Errorf("chunked layout truncated")
		}
		li.chunkDims = make([]uint32, rank)
		for i := range li.chunkDims {
			li.chunkDims[i] = binary.LittleEndian.Uint32(b[11+i*4:])
		}
	default:
		return layoutInfo{}, fmt.Errorf("unsupported layout class %d", li.class)
	}
	return li, nil
}

func parseFilters(b []byte) ([]uint16, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("short filter pipeline message")
	}
	if b[0] != 1 {
		return nil, fmt.Errorf("unsupported filter pipeline version %d", b[0])
	}
	n := int(b[1])
	ids := make([]uint16, 0, n)
	off := 8
	for i := 0; i < n; i++ {
		if len(b) < off+8 {
			return nil, fmt.Errorf("filter pipeline truncated")
		}
		id := binary.LittleEndian.Uint16(b[off:])
		nameLen := int(binary.LittleEndian.Uint16(b[off+2:]))
		nclient := int(binary.LittleEndian.Uint16(b[off+6:]))
		off += 8 + alignTo8(nameLen) + 4*nclient
		if nclient%2 != 0 {
			off += 4
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseAttribute(b []byte, attrs map[string]attrValue) error {
	if len(b) < 8 {
		return fmt.Errorf("short attribute message")
	}
	version := b[0]
	nameSize := int(binary.LittleEndian.Uint16(b[2:]))
	dtSize := int(binary.LittleEndian.Uint16(b[4:]))
	dsSize := int(binary.LittleEndian.Uint16(b[6:]))

	var off int
	pad := alignTo8
	switch version {
	case 1:
		off = 8
	case 3:
		if b[1]&0x03 != 0 {
			return fmt.Errorf("shared attribute datatype not supported")
		}
		off = 9
		pad = func(n int) int { return n }
	default:
		return fmt.Errorf("unsupported attribute version %d", version)
	}
	if len(b) < off+pad(nameSize)+pad(dtSize)+pad(dsSize) {
		return fmt.Errorf("attribute message truncated")
	}
	nameEnd := off + nameSize
	name := string(b[off:nameEnd])
	if i := bytes.IndexByte([]byte(name), 0); i >= 0 {
		name = name[:i]
	}
	off += pad(nameSize)
	dt, err := parseDatatype(b[off : off+dtSize])
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	off += pad(dtSize) + pad(dsSize)
	attrs[name] = attrValue{dtype: dt, data: b[off:]}
	return nil
}

func (o *object) stringAttr(name string) (string, bool) {
	av, ok := o.attrs[name]
	if !ok || av.dtype.class != classString {
		return "", false
	}
	n := av.dtype.size
	if n > len(av.data) {
		n = len(av.data)
	}
	s := av.data[:n]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), true
}

func (o *object) intAttr(name string) (int64, bool) {
	av, ok := o.attrs[name]
	if !ok || av.dtype.class != classFixed {
		return 0, false
	}
	vals, err := numericValues(av.data, av.dtype, 1)
	if err != nil {
		return 0, false
	}
	return int64(vals[0]), true
}
