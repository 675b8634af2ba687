// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dtype maps the numeric element types of a tensor to the
// data types defined by the safetensors format.
package dtype

import (
	"fmt"
	"reflect"
)

// DType represents a numeric safetensors data type.
//
// Only the types having a native Go arithmetic counterpart are defined:
// BOOL, F16 and BF16 are not supported.
type DType uint8

const (
	// U8 represents an 8-bit unsigned integer data type.
	U8 DType = iota + 1
	// I8 represents an 8-bit signed integer data type.
	I8
	// U16 represents a 16-bit unsigned integer data type.
	U16
	// I16 represents a 16-bit signed integer data type.
	I16
	// U32 represents a 32-bit unsigned integer data type.
	U32
	// I32 represents a 32-bit signed integer data type.
	I32
	// F32 represents a 32-bit floating point data type.
	F32
	// U64 represents a 64-bit unsigned integer data type.
	U64
	// I64 represents a 64-bit signed integer data type.
	I64
	// F64 represents a 64-bit floating point data type.
	F64
)

type info struct {
	name string
	size int
}

var infos = [...]info{
	U8:  {"U8", 1},
	I8:  {"I8", 1},
	U16: {"U16", 2},
	I16: {"I16", 2},
	U32: {"U32", 4},
	I32: {"I32", 4},
	F32: {"F32", 4},
	U64: {"U64", 8},
	I64: {"I64", 8},
	F64: {"F64", 8},
}

var byName = func() map[string]DType {
	m := make(map[string]DType, len(infos)-1)
	for dt := U8; dt <= F64; dt++ {
		m[infos[dt].name] = dt
	}
	return m
}()

var byKind = map[reflect.Kind]DType{
	reflect.Uint8:   U8,
	reflect.Int8:    I8,
	reflect.Uint16:  U16,
	reflect.Int16:   I16,
	reflect.Uint32:  U32,
	reflect.Int32:   I32,
	reflect.Float32: F32,
	reflect.Uint64:  U64,
	reflect.Int64:   I64,
	reflect.Float64: F64,
}

// Of returns the DType corresponding to the Go type T.
//
// The type is resolved by its underlying kind, so that named types
// (such as "type Celsius float32") are supported too. The platform-dependent
// int and uint types are mapped to the 32-bit or 64-bit variants according
// to their actual size. An error is returned for any other type.
func Of[T any]() (DType, error) {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil {
		return 0, fmt.Errorf("no DType for interface type %T", zero)
	}
	kind := rt.Kind()
	switch kind {
	case reflect.Int:
		kind = sized(rt, reflect.Int32, reflect.Int64)
	case reflect.Uint:
		kind = sized(rt, reflect.Uint32, reflect.Uint64)
	}
	dt, ok := byKind[kind]
	if !ok {
		return 0, fmt.Errorf("no DType for Go type %s", rt)
	}
	return dt, nil
}

func sized(rt reflect.Type, k32, k64 reflect.Kind) reflect.Kind {
	if rt.Size() == 4 {
		return k32
	}
	return k64
}

// Parse returns the DType having the given safetensors name (e.g. "F32").
func Parse(s string) (DType, error) {
	dt, ok := byName[s]
	if !ok {
		return 0, fmt.Errorf("invalid DType string value %q", s)
	}
	return dt, nil
}

// Validate returns an error if the DType is not valid, otherwise nil.
func (dt DType) Validate() error {
	if dt < U8 || dt > F64 {
		return fmt.Errorf("invalid DType(%d)", dt)
	}
	return nil
}

// String returns the safetensors name of the DType.
func (dt DType) String() string {
	if err := dt.Validate(); err != nil {
		return err.Error()
	}
	return infos[dt].name
}

// Size returns the size in bytes of one element of this data type,
// or -1 if the DType value is invalid.
func (dt DType) Size() int {
	if err := dt.Validate(); err != nil {
		return -1
	}
	return infos[dt].size
}

// MarshalText satisfies encoding.TextMarshaler interface.
// Since DType is a text marshaler, it is encoded as a JSON string too.
func (dt DType) MarshalText() ([]byte, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return []byte(infos[dt].name), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (dt *DType) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return fmt.Errorf("failed to text-unmarshal DType: %w", err)
	}
	*dt = v
	return nil
}
