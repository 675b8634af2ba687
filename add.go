// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

// Add adds the values of other to the values of t, element-wise and in
// place, and returns t itself, to allow chaining.
//
// The operation supports one-directional broadcasting: for each
// dimension, the extent of other must either be equal to the extent of t,
// or be 1. In the latter case, the single element of other along that
// dimension is reused for every position of t along the same dimension.
// For example, given t of shape [1 2 3 4] and other of shape [1 2 1 4],
// each of the 3 sub-tensors of t with shape [1 2 1 4] is added to other.
//
// If the shapes are not compatible, the returned error wraps
// ErrShapeMismatch, and t is left unchanged.
//
// The shapes of both tensors are never modified, and no memory is allocated.
// Passing t itself as other is allowed.
func (t *Tensor[T]) Add(other *Tensor[T]) (*Tensor[T], error) {
	if err := other.shape.BroadcastableTo(t.shape); err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] += other.data[broadcastIndex(t.shape, other.shape, i)]
	}
	return t, nil
}

// broadcastIndex maps the linear index i, relative to shape, to the
// linear index of the corresponding element of a tensor with the
// broadcastable shape "other".
func broadcastIndex(shape, other Shape, i int) int {
	coords := shape.Coords(i)
	j, stride := 0, 1
	for d := Rank - 1; d >= 0; d-- {
		if other[d] != 1 {
			j += coords[d] * stride
		}
		stride *= other[d]
	}
	return j
}
