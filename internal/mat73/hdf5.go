package mat73

// HDF5 format constants for the version-0 superblock layout MATLAB uses.

const (
	userblockSize = 512
	matVersion    = 0x0200
	undefAddr     = ^uint64(0)

	superblockSize = 96

	// B-tree fanout parameters written into the superblock. Chunk B-trees
	// use the library default of 32 because a version-0 superblock has no
	// field for it.
	groupLeafK     = 32
	groupInternalK = 16
	chunkInternalK = 32

	symbolEntrySize = 40
	snodHeaderSize  = 8
	snodCapacity    = 2 * groupLeafK

	objectHeaderPrefix = 16
)

var (
	hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
	treeSignature = []byte("TREE")
	snodSignature = []byte("SNOD")
	heapSignature = []byte("HEAP")
)

// Object header message types.
const (
	msgNil          = 0x0000
	msgDataspace    = 0x0001
	msgDatatype     = 0x0003
	msgFillValueOld = 0x0004
	msgFillValue    = 0x0005
	msgLayout       = 0x0008
	msgFilters      = 0x000B
	msgAttribute    = 0x000C
	msgObjectMod    = 0x0012
	msgContinuation = 0x0010
	msgSymbolTable  = 0x0011
)

// Datatype classes.
const (
	classFixed     = 0
	classFloat     = 1
	classString    = 3
	classReference = 7
)

// Data layout classes.
const (
	layoutCompact    = 0
	layoutContiguous = 1
	layoutChunked    = 2
)

const filterDeflate = 1

// Attribute names carrying MATLAB metadata.
const (
	attrMatlabClass  = "MATLAB_class"
	attrMatlabEmpty  = "MATLAB_empty"
	attrMatlabDecode = "MATLAB_int_decode"
	attrMatlabFields = "MATLAB_fields"
)

const refsGroupName = "#refs#"

// datasets larger than this are stored as a single DEFLATE chunk.
const compressThreshold = 1024

func alignTo8(n int) int {
	return (n + 7) &^ 7
}

// storage describes how an Array's elements land on disk.
type storage struct {
	class     int
	size      int
	signed    bool
	byteOrder int
}

func storageFor(class string) storage {
	switch class {
	case ClassChar:
		return storage{class: classFixed, size: 2}
	case ClassLogical, ClassUint8:
		return storage{class: classFixed, size: 1}
	case ClassInt32:
		return storage{class: classFixed, size: 4, signed: true}
	case ClassUint64:
		return storage{class: classFixed, size: 8}
	default:
		return storage{class: classFloat, size: 8}
	}
}
