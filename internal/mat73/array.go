package mat73

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// MATLAB class names stored in the MATLAB_class attribute.
const (
	ClassDouble  = "double"
	ClassCell    = "cell"
	ClassStruct  = "struct"
	ClassChar    = "char"
	ClassLogical = "logical"
	ClassUint8   = "uint8"
	ClassInt32   = "int32"
	ClassUint64  = "uint64"
)

// ErrDanglingReference marks a cell element whose object reference does not
// resolve to any object in the file.
var ErrDanglingReference = errors.New("dangling object reference")

// ErrNotMAT marks a file whose userblock is not a MATLAB 7.3 header.
var ErrNotMAT = errors.New("not a MATLAB 7.3 file")

// Array is a MATLAB value. Dims follow MATLAB order and numeric or character
// data is stored column-major, matching the layout inside the container.
// Exactly one of Float, Cells, Fields, or Chars is populated depending on
// Class; empty arrays carry only Class and Dims.
type Array struct {
	Class string
	Dims  []int

	Float  []float64
	Cells  []*Array
	Fields map[string]*Array
	Chars  string
}

// NumElements returns the product of Dims.
func (a *Array) NumElements() int {
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// IsEmpty reports whether any dimension is zero.
func (a *Array) IsEmpty() bool {
	for _, d := range a.Dims {
		if d == 0 {
			return true
		}
	}
	return len(a.Dims) == 0
}

func (a *Array) isNumeric() bool {
	switch a.Class {
	case ClassDouble, ClassLogical, ClassUint8, ClassInt32, ClassUint64:
		return true
	}
	return false
}

// Scalar builds a 1x1 double.
func Scalar(v float64) *Array {
	return &Array{Class: ClassDouble, Dims: []int{1, 1}, Float: []float64{v}}
}

// String builds a 1xN char row vector. N counts UTF-16 code units, matching
// MATLAB character semantics.
func String(s string) *Array {
	n := len(utf16.Encode([]rune(s)))
	return &Array{Class: ClassChar, Dims: []int{1, n}, Chars: s}
}

// RowVector builds a 1xN double from v.
func RowVector(v []float64) *Array {
	return &Array{Class: ClassDouble, Dims: []int{1, len(v)}, Float: append([]float64(nil), v...)}
}

// ColumnVector builds an Nx1 double from v.
func ColumnVector(v []float64) *Array {
	return &Array{Class: ClassDouble, Dims: []int{len(v), 1}, Float: append([]float64(nil), v...)}
}

// FromMatrix builds an MxN double from row-major rows. Every row must have
// the same length.
func FromMatrix(rows [][]float64) (*Array, error) {
	m := len(rows)
	if m == 0 {
		return &Array{Class: ClassDouble, Dims: []int{0, 0}}, nil
	}
	n := len(rows[0])
	flat := make([]float64, m*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), n)
		}
		for j, v := range row {
			flat[j*m+i] = v
		}
	}
	return &Array{Class: ClassDouble, Dims: []int{m, n}, Float: flat}, nil
}

// CellRow builds a 1xN cell from elements.
func CellRow(elems []*Array) *Array {
	return &Array{Class: ClassCell, Dims: []int{1, len(elems)}, Cells: elems}
}

// CellMatrix builds an MxN cell from row-major rows, padding short rows with
// empty doubles so MATLAB sees a rectangular cell.
func CellMatrix(rows [][]*Array, cols int) *Array {
	m := len(rows)
	cells := make([]*Array, m*cols)
	for i, row := range rows {
		for j := 0; j < cols; j++ {
			var el *Array
			if j < len(row) {
				el = row[j]
			}
			if el == nil {
				el = EmptyDouble()
			}
			cells[j*m+i] = el
		}
	}
	return &Array{Class: ClassCell, Dims: []int{m, cols}, Cells: cells}
}

// Struct builds a scalar struct from fields.
func Struct(fields map[string]*Array) *Array {
	return &Array{Class: ClassStruct, Dims: []int{1, 1}, Fields: fields}
}

// EmptyDouble builds a 0x0 double.
func EmptyDouble() *Array {
	return &Array{Class: ClassDouble, Dims: []int{0, 0}}
}

// ScalarValue returns the single numeric element.
func (a *Array) ScalarValue() (float64, error) {
	if !a.isNumeric() {
		return 0, fmt.Errorf("class %q is not numeric", a.Class)
	}
	if len(a.Float) != 1 {
		return 0, fmt.Errorf("expected scalar, found %v", a.Dims)
	}
	return a.Float[0], nil
}

// StringValue returns the character data of a char array.
func (a *Array) StringValue() (string, error) {
	if a.Class != ClassChar {
		return "", fmt.Errorf("class %q is not char", a.Class)
	}
	return a.Chars, nil
}

// Vector returns numeric data as a flat slice regardless of orientation.
func (a *Array) Vector() ([]float64, error) {
	if !a.isNumeric() {
		return nil, fmt.Errorf("class %q is not numeric", a.Class)
	}
	return a.Float, nil
}

// Matrix returns a 2-D numeric array as row-major rows.
func (a *Array) Matrix() ([][]float64, error) {
	if !a.isNumeric() {
		return nil, fmt.Errorf("class %q is not numeric", a.Class)
	}
	if len(a.Dims) != 2 {
		return nil, fmt.Errorf("expected 2 dimensions, found %d", len(a.Dims))
	}
	m, n := a.Dims[0], a.Dims[1]
	if len(a.Float) != m*n {
		return nil, fmt.Errorf("%dx%d array holds %d elements", m, n, len(a.Float))
	}
	rows := make([][]float64, m)
	for i := 0; i < m; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = a.Float[j*m+i]
		}
	}
	return rows, nil
}

// Cell returns the element at row i, column j of a 2-D cell array.
func (a *Array) Cell(i, j int) (*Array, error) {
	if a.Class != ClassCell {
		return nil, fmt.Errorf("class %q is not cell", a.Class)
	}
	if len(a.Dims) != 2 {
		return nil, fmt.Errorf("expected 2 dimensions, found %d", len(a.Dims))
	}
	m, n := a.Dims[0], a.Dims[1]
	if i < 0 || i >= m || j < 0 || j >= n {
		return nil, fmt.Errorf("index (%d,%d) outside %dx%d cell", i, j, m, n)
	}
	return a.Cells[j*m+i], nil
}

// Field returns the named struct field.
func (a *Array) Field(name string) (*Array, error) {
	if a.Class != ClassStruct {
		return nil, fmt.Errorf("class %q is not struct", a.Class)
	}
	f, ok := a.Fields[name]
	if !ok {
		return nil, fmt.Errorf("struct has no field %q", name)
	}
	return f, nil
}

// HasField reports whether a struct carries the named field.
func (a *Array) HasField(name string) bool {
	if a.Class != ClassStruct {
		return false
	}
	_, ok := a.Fields[name]
	return ok
}
