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

// ST (short for "SafeTensors") is the result of reading the full content
// of a safetensors data stream (or file), with all tensors loaded in memory.
type ST[T Number] struct {
	Tensors  []NamedTensor[T]
	Metadata map[string]string
}

// Tensor returns the tensor with the given name, and whether it was found.
func (st ST[T]) Tensor(name string) (*Tensor[T], bool) {
	for _, nt := range st.Tensors {
		if nt.Name == name {
			return nt.Tensor, true
		}
	}
	return nil, false
}

// Read reads the whole content of a safetensors data stream (or file),
// loading all tensors in memory, in the order their data is stored.
//
// Every tensor must have exactly four dimensions, and a DType matching T
// (see dtype.Of); otherwise an error is returned.
//
// If headerSizeLimit is a positive number, it limits the amount of bytes
// read for the safetensors header, to guard against tampered or garbage
// data. Zero or a negative number have no limiting effect.
func Read[T Element](r io.Reader, headerSizeLimit int) (ST[T], error) {
	dt, err := dtype.Of[T]()
	if err != nil {
		return ST[T]{}, err
	}
	head, err := readValidHeader(r, headerSizeLimit)
	if err != nil {
		return ST[T]{}, err
	}

	sorted := head.Tensors.Sorted()
	tensors := make([]NamedTensor[T], len(sorted))
	for i, ht := range sorted {
		t, err := readTensor[T](r, ht, dt)
		if err != nil {
			return ST[T]{}, fmt.Errorf("failed to read tensor %q: %w", ht.Name, err)
		}
		tensors[i] = NamedTensor[T]{Name: ht.Name, Tensor: t}
	}
	return ST[T]{Tensors: tensors, Metadata: head.Metadata}, nil
}

func readValidHeader(r io.Reader, sizeLimit int) (header.Header, error) {
	if sizeLimit > 0 {
		r = io.LimitReader(r, int64(sizeLimit))
	}
	head, err := header.Read(r)
	if err != nil {
		return header.Header{}, fmt.Errorf("failed to read safetensors header: %w", err)
	}
	if err = head.Validate(); err != nil {
		return header.Header{}, fmt.Errorf("safetensors header is invalid: %w", err)
	}
	return head, nil
}

// readTensor reads from r the data of the tensor described by ht,
// which is expected to be of type dt.
func readTensor[T Element](r io.Reader, ht header.Tensor, dt dtype.DType) (*Tensor[T], error) {
	shape, err := tensorShape(ht, dt)
	if err != nil {
		return nil, err
	}
	data := make([]T, ht.DataOffsets.Len()/dt.Size())
	if err = binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return &Tensor[T]{shape: shape, data: data}, nil
}

func tensorShape(ht header.Tensor, dt dtype.DType) (Shape, error) {
	if ht.DType != dt {
		return Shape{}, fmt.Errorf("expected DType %s, actual %s", dt, ht.DType)
	}
	if len(ht.Shape) != Rank {
		return Shape{}, fmt.Errorf("expected shape of rank %d, actual %v", Rank, ht.Shape)
	}
	var shape Shape
	copy(shape[:], ht.Shape)
	return shape, nil
}
