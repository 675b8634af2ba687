// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nlpodyssey/tensor4d/dtype"
	"github.com/nlpodyssey/tensor4d/header"
)

// Element is the set of element types of a Tensor which can be
// serialized in safetensors format.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// NamedTensor is a pair of a Tensor and its name (or label, or key).
type NamedTensor[T Number] struct {
	Name   string
	Tensor *Tensor[T]
}

// Write serializes the given tensors and additional metadata to
// safetensors format, writing the result to w.
//
// The data of the tensors is laid out in the order they are given.
// Tensor names must be unique. Metadata can be nil.
func Write[T Element](w io.Writer, tensors []NamedTensor[T], metadata map[string]string) error {
	head, err := makeHeader(tensors, metadata)
	if err != nil {
		return err
	}
	if err = writeHeader(w, head); err != nil {
		return err
	}
	for _, nt := range tensors {
		if err = binary.Write(w, binary.LittleEndian, nt.Tensor.data); err != nil {
			return fmt.Errorf("failed to write data of tensor %q: %w", nt.Name, err)
		}
	}
	return nil
}

func makeHeader[T Element](tensors []NamedTensor[T], metadata map[string]string) (header.Header, error) {
	dt, err := dtype.Of[T]()
	if err != nil {
		return header.Header{}, err
	}
	tm := make(header.TensorMap, len(tensors))
	offset := 0
	for _, nt := range tensors {
		if nt.Tensor == nil {
			return header.Header{}, fmt.Errorf("tensor %q is nil", nt.Name)
		}
		if _, ok := tm[nt.Name]; ok {
			return header.Header{}, fmt.Errorf("duplicate tensor name %q", nt.Name)
		}
		shape := nt.Tensor.shape
		end := offset + nt.Tensor.Len()*dt.Size()
		tm[nt.Name] = header.Tensor{
			Name:        nt.Name,
			DType:       dt,
			Shape:       shape[:],
			DataOffsets: header.DataOffsets{Begin: offset, End: end},
		}
		offset = end
	}
	head := header.Header{Tensors: tm, Metadata: metadata}
	if err = head.Validate(); err != nil {
		return header.Header{}, fmt.Errorf("failed to generate a valid header: %w", err)
	}
	return head, nil
}

var headerPadding = [8]byte{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

func writeHeader(w io.Writer, head header.Header) error {
	jsonHeader, err := head.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to JSON-encode header: %w", err)
	}
	// 8-byte alignment of the byte-buffer
	pad := (8 - len(jsonHeader)%8) % 8

	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(jsonHeader)+pad))

	for _, b := range [][]byte{size[:], jsonHeader, headerPadding[:pad]} {
		if len(b) == 0 {
			continue
		}
		if _, err = w.Write(b); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	return nil
}
