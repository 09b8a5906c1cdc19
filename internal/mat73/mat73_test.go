package mat73_test

import (
	"math"
	"path/filepath"
	"testing"

	"emgpipe/internal/mat73"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTripScalarAndMatrix(t *testing.T) {
	mat, err := mat73.FromMatrix([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	vars := map[string]*mat73.Array{
		"fsamp": mat73.Scalar(2048),
		"data":  mat,
	}
	path := filepath.Join(t.TempDir(), "small.mat")
	if err := mat73.WriteFile(path, vars, 3); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := mat73.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	fs, err := got["fsamp"].ScalarValue()
	if err != nil {
		t.Fatalf("fsamp: %v", err)
	}
	if fs != 2048 {
		t.Errorf("fsamp = %v, want 2048", fs)
	}
	rows, err := got["data"].Matrix()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripStructCellChar(t *testing.T) {
	inner := mat73.CellRow([]*mat73.Array{
		mat73.RowVector([]float64{10, 20, 30}),
		mat73.RowVector([]float64{40}),
	})
	signal := mat73.Struct(map[string]*mat73.Array{
		"fsamp":    mat73.Scalar(2048),
		"gridname": mat73.CellRow([]*mat73.Array{mat73.String("GR08MM1305")}),
		"nested":   mat73.CellRow([]*mat73.Array{inner}),
		"target":   mat73.ColumnVector([]float64{0, 0.5, 1}),
	})
	params := mat73.Struct(map[string]*mat73.Array{
		"filename": mat73.String("sample_muedit.mat"),
		"pathname": mat73.String("/tmp/work"),
	})
	path := filepath.Join(t.TempDir(), "nested.mat")
	err := mat73.WriteFile(path, map[string]*mat73.Array{
		"signal":     signal,
		"parameters": params,
	}, 3)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := mat73.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	sig := got["signal"]
	if sig == nil || sig.Class != mat73.ClassStruct {
		t.Fatalf("signal = %+v, want struct", sig)
	}
	name, err := sig.Fields["gridname"].Cell(0, 0)
	if err != nil {
		t.Fatalf("gridname cell: %v", err)
	}
	if s, _ := name.StringValue(); s != "GR08MM1305" {
		t.Errorf("gridname = %q, want GR08MM1305", s)
	}

	nested, err := sig.Fields["nested"].Cell(0, 0)
	if err != nil {
		t.Fatalf("nested cell: %v", err)
	}
	second, err := nested.Cell(0, 1)
	if err != nil {
		t.Fatalf("inner cell: %v", err)
	}
	vec, err := second.Vector()
	if err != nil {
		t.Fatalf("inner vector: %v", err)
	}
	if diff := cmp.Diff([]float64{40}, vec); diff != "" {
		t.Errorf("inner cell mismatch (-want +got):\n%s", diff)
	}

	fn, err := got["parameters"].Field("filename")
	if err != nil {
		t.Fatalf("parameters.filename: %v", err)
	}
	if s, _ := fn.StringValue(); s != "sample_muedit.mat" {
		t.Errorf("filename = %q", s)
	}
}

func TestRoundTripEmptyArrays(t *testing.T) {
	vars := map[string]*mat73.Array{
		"mask":  mat73.EmptyDouble(),
		"cells": {Class: mat73.ClassCell, Dims: []int{0, 0}},
	}
	path := filepath.Join(t.TempDir(), "empty.mat")
	if err := mat73.WriteFile(path, vars, 3); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := mat73.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for name, want := range map[string]string{"mask": mat73.ClassDouble, "cells": mat73.ClassCell} {
		arr := got[name]
		if arr == nil {
			t.Fatalf("%s missing", name)
		}
		if arr.Class != want {
			t.Errorf("%s class = %q, want %q", name, arr.Class, want)
		}
		if !arr.IsEmpty() {
			t.Errorf("%s dims = %v, want empty", name, arr.Dims)
		}
	}
}

func TestRoundTripCompressedMatrix(t *testing.T) {
	const rows, cols = 64, 500
	src := make([][]float64, rows)
	for i := range src {
		src[i] = make([]float64, cols)
		for j := range src[i] {
			src[i][j] = math.Sin(float64(i)) * float64(j)
		}
	}
	mat, err := mat73.FromMatrix(src)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	data, err := mat73.Encode(map[string]*mat73.Array{"big": mat}, 3)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) >= rows*cols*8 {
		t.Errorf("encoded size %d not compressed below raw %d", len(data), rows*cols*8)
	}
	got, err := mat73.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	back, err := got["big"].Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if diff := cmp.Diff(src, back); diff != "" {
		t.Errorf("compressed matrix mismatch (-want +got):\n%s", diff)
	}
}

// A cell with more elements than one symbol table node holds forces the
// #refs# group onto multiple nodes.
func TestRoundTripManyCellElements(t *testing.T) {
	const n = 150
	elems := make([]*mat73.Array, n)
	for i := range elems {
		elems[i] = mat73.Scalar(float64(i))
	}
	vars := map[string]*mat73.Array{"trains": mat73.CellRow(elems)}
	data, err := mat73.Encode(vars, 3)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := mat73.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	trains := got["trains"]
	if trains.NumElements() != n {
		t.Fatalf("trains has %d elements, want %d", trains.NumElements(), n)
	}
	for i := 0; i < n; i++ {
		el, err := trains.Cell(0, i)
		if err != nil {
			t.Fatalf("element %d: %v", i, err)
		}
		v, err := el.ScalarValue()
		if err != nil {
			t.Fatalf("element %d: %v", i, err)
		}
		if v != float64(i) {
			t.Errorf("element %d = %v", i, v)
		}
	}
}

func TestDecodeRejectsNonMAT(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("just some text"),
		make([]byte, 2048),
	}
	for i, data := range cases {
		if _, err := mat73.Decode(data); err == nil {
			t.Errorf("case %d: Decode accepted invalid input", i)
		}
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]*mat73.Array{
		"no variables":  {},
		"slash in name": {"a/b": mat73.Scalar(1)},
		"wrong count":   {"x": {Class: mat73.ClassDouble, Dims: []int{2, 2}, Float: []float64{1}}},
	}
	for name, vars := range cases {
		if _, err := mat73.Encode(vars, 3); err == nil {
			t.Errorf("%s: Encode accepted invalid input", name)
		}
	}
}

func TestMatrixAccessors(t *testing.T) {
	arr, err := mat73.FromMatrix([][]float64{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if got := arr.Dims; got[0] != 3 || got[1] != 2 {
		t.Fatalf("dims = %v, want [3 2]", got)
	}
	// Column-major storage puts the first column first.
	want := []float64{1, 3, 5, 2, 4, 6}
	if diff := cmp.Diff(want, arr.Float); diff != "" {
		t.Errorf("storage order mismatch (-want +got):\n%s", diff)
	}
	rows, err := arr.Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	for i, row := range rows {
		for j, v := range row {
			if want := float64(i*2 + j + 1); v != want {
				t.Errorf("rows[%d][%d] = %v, want %v", i, j, v, want)
			}
		}
	}
}

func TestCellMatrixPadsShortRows(t *testing.T) {
	rows := [][]*mat73.Array{
		{mat73.Scalar(1), mat73.Scalar(2)},
		{mat73.Scalar(3)},
	}
	cm := mat73.CellMatrix(rows, 2)
	if cm.Dims[0] != 2 || cm.Dims[1] != 2 {
		t.Fatalf("dims = %v, want [2 2]", cm.Dims)
	}
	pad, err := cm.Cell(1, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if !pad.IsEmpty() {
		t.Errorf("padding element = %+v, want empty", pad)
	}
}

func TestStringValueUnits(t *testing.T) {
	for _, s := range []string{"FDI", "tibialis anterior"} {
		arr := mat73.String(s)
		if arr.Dims[1] != len(s) {
			t.Errorf("String(%q) dims = %v", s, arr.Dims)
		}
		got, err := arr.StringValue()
		if err != nil || got != s {
			t.Errorf("StringValue = %q, %v", got, err)
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := mat73.ReadFile(filepath.Join(t.TempDir(), "absent.mat")); err == nil {
		t.Fatal("ReadFile succeeded on missing file")
	}
}
