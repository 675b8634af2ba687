// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

import "fmt"

// Rank is the number of dimensions of every Tensor.
const Rank = 4

// Shape holds the extents of the four dimensions of a Tensor.
//
// Dimensions are listed from the outermost (slowest-varying) to the
// innermost (fastest-varying), according to row-major ("C") ordering.
// Being an array, a Shape is always copied by value.
type Shape [Rank]int

// Validate returns an error if the Shape contains a negative extent, or if
// the number of elements it describes does not fit within the int type.
func (s Shape) Validate() error {
	_, err := s.Size()
	return err
}

// Size returns the number of elements described by the Shape, that is the
// product of all its extents. An error is returned under the same
// conditions described for Validate.
func (s Shape) Size() (int, error) {
	size := 1
	for d, v := range s {
		if v < 0 {
			return 0, fmt.Errorf("shape %v contains negative extent %d at dimension %d", s, v, d)
		}
		var err error
		if size, err = checkedMul(size, v); err != nil {
			return 0, fmt.Errorf("shape %v is too large: %w", s, err)
		}
	}
	return size, nil
}

// Strides returns the row-major strides of the Shape, in number of
// elements. The innermost dimension always has stride 1.
func (s Shape) Strides() Shape {
	var strides Shape
	stride := 1
	for d := Rank - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= s[d]
	}
	return strides
}

// Coords converts the linear (flat) index i into the coordinates of the
// corresponding element, by mixed-radix decomposition against the
// extents of the Shape, the innermost dimension varying fastest.
//
// All extents must be positive.
func (s Shape) Coords(i int) Shape {
	var coords Shape
	for d := Rank - 1; d >= 0; d-- {
		coords[d] = i % s[d]
		i /= s[d]
	}
	return coords
}

// BroadcastableTo returns an error wrapping ErrShapeMismatch unless, for
// each dimension, the extent of s either equals the one of target, or is 1.
//
// This is a one-directional rule: only s may be expanded over target,
// never the other way around.
func (s Shape) BroadcastableTo(target Shape) error {
	for d := range s {
		if s[d] != target[d] && s[d] != 1 {
			return fmt.Errorf("%w: cannot broadcast %v over %v (dimension %d: %d vs %d)",
				ErrShapeMismatch, s, target, d, s[d], target[d])
		}
	}
	return nil
}
