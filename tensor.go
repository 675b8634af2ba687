// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tensor4d provides a dense tensor of fixed rank 4, holding numeric
// values of a generic type in a row-major buffer, and supporting in-place
// addition with one-directional broadcasting.
package tensor4d

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Number is the set of element types a Tensor can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// ErrShapeMismatch is returned (wrapped) when the shapes of two tensors
// are not compatible for an operation.
var ErrShapeMismatch = errors.New("shape mismatch")

// A Tensor of rank 4 with data fully owned and held in memory.
//
// Each Tensor is the unique owner of its data buffer: the buffer is
// allocated once, by New, and it is never exposed, resized or shared.
// Consequently, a Tensor must not be copied by value; always handle it
// through the pointer returned by New. Any copy is reported by
// "go vet" (copylocks check).
type Tensor[T Number] struct {
	noCopy noCopy
	shape  Shape
	data   []T
}

// noCopy may be embedded into structs which must not be copied after
// first use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by "go vet" copylocks checker.
func (*noCopy) Lock() {}

// Unlock is a no-op used by "go vet" copylocks checker.
func (*noCopy) Unlock() {}

// New creates a new Tensor with the given shape, copying the content
// of data into a newly allocated buffer.
//
// Since the values are copied, later modifications to data never affect
// the Tensor, and vice versa.
//
// An error is returned if the shape is not valid (see Shape.Validate),
// or if the length of data differs from the number of elements described
// by the shape. Zero extents are allowed, resulting in an empty Tensor.
func New[T Number](shape Shape, data []T) (*Tensor[T], error) {
	size, err := shape.Size()
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("the size computed from shape (%d) does not match data length (%d)", size, len(data))
	}
	owned := make([]T, size)
	copy(owned, data)
	return &Tensor[T]{shape: shape, data: owned}, nil
}

// The Shape of the tensor.
func (t *Tensor[T]) Shape() Shape {
	return t.shape
}

// Len returns the total number of elements of the tensor.
func (t *Tensor[T]) Len() int {
	return len(t.data)
}

// Data returns a copy of all the values of the tensor, in row-major order.
//
// The owned buffer is never returned directly: modifying the result has
// no effect on the Tensor.
func (t *Tensor[T]) Data() []T {
	out := make([]T, len(t.data))
	copy(out, t.data)
	return out
}

// At returns the value at the given coordinates.
// It panics if any coordinate is out of range.
func (t *Tensor[T]) At(c0, c1, c2, c3 int) T {
	coords := Shape{c0, c1, c2, c3}
	offset := 0
	strides := t.shape.Strides()
	for d, c := range coords {
		if c < 0 || c >= t.shape[d] {
			panic(fmt.Errorf("coordinate %d out of range [0, %d) at dimension %d", c, t.shape[d], d))
		}
		offset += c * strides[d]
	}
	return t.data[offset]
}

func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor%v%v", t.shape, t.data)
}
