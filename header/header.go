// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package header reads, validates and encodes the header of a
// safetensors data stream.
//
// A safetensors stream starts with an unsigned 64-bit little-endian
// integer N, followed by N bytes of a JSON object (possibly padded with
// trailing spaces), followed by the byte-buffer holding the data of all
// tensors.
package header

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nlpodyssey/tensor4d/dtype"
)

const metadataKey = "__metadata__"

// Header provides tensors information and metadata.
type Header struct {
	Tensors  TensorMap
	Metadata Metadata
	// ByteBufferOffset is the position where the byte-buffer starts,
	// relative to the beginning of the whole safetensors stream.
	ByteBufferOffset int
}

// Metadata is a set of free-form key/value string pairs.
type Metadata map[string]string

// Tensor describes a single tensor within a safetensors header.
type Tensor struct {
	Name        string
	DType       dtype.DType
	Shape       Shape
	DataOffsets DataOffsets
}

// TensorMap is a set of Tensor objects mapped by their name.
type TensorMap map[string]Tensor

// Shape of a tensor, as stored in the header.
type Shape []int

// DataOffsets describes the "[Begin, End)" byte range of a tensor's data,
// relative to the beginning of the byte-buffer.
type DataOffsets struct {
	Begin int
	End   int
}

// Len is the amount of bytes within the range.
func (a DataOffsets) Len() int {
	return a.End - a.Begin
}

// Sorted returns all the tensors of the map, sorted by ascending
// DataOffsets, which is the order of their data in the byte-buffer.
func (tm TensorMap) Sorted() []Tensor {
	if len(tm) == 0 {
		return nil
	}
	ts := make([]Tensor, 0, len(tm))
	for _, t := range tm {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i].DataOffsets, ts[j].DataOffsets
		return a.Begin < b.Begin || (a.Begin == b.Begin && a.End < b.End)
	})
	return ts
}

// MarshalJSON encodes a nil Shape as "[]", instead of "null".
func (s Shape) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(s))
}

// MarshalJSON encodes the DataOffsets as an array of two numbers.
func (a DataOffsets) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{a.Begin, a.End})
}

// UnmarshalJSON decodes the DataOffsets from an array of two
// non-negative numbers.
func (a *DataOffsets) UnmarshalJSON(b []byte) error {
	var v []int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("invalid data-offsets value: %s", b)
	}
	if v[0] < 0 || v[1] < 0 {
		return fmt.Errorf("negative data-offsets value: %s", b)
	}
	*a = DataOffsets{Begin: v[0], End: v[1]}
	return nil
}

type jsonTensor struct {
	DType       *dtype.DType `json:"dtype"`
	Shape       *Shape       `json:"shape"`
	DataOffsets *DataOffsets `json:"data_offsets"`
}

// MarshalJSON encodes the Header to the JSON object expected by
// safetensors format. Empty metadata is omitted.
func (h Header) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(h.Tensors)+1)
	if len(h.Metadata) > 0 {
		obj[metadataKey] = h.Metadata
	}
	for name, t := range h.Tensors {
		t := t
		obj[name] = jsonTensor{
			DType:       &t.DType,
			Shape:       &t.Shape,
			DataOffsets: &t.DataOffsets,
		}
	}
	return json.Marshal(obj)
}
