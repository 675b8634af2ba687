// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"math"
	"math/bits"
)

// Validate returns an error if the Header is not valid, otherwise nil.
//
// The following rules are checked:
//
//   - ByteBufferOffset must not be negative
//   - each key of Tensors must match the Name of the mapped Tensor
//   - the DataOffsets of all tensors must cover a contiguous area of the
//     byte-buffer starting at 0, without overlapping
//   - the byte size of each tensor, computed from Shape and DType (an empty
//     shape counting as one scalar value), must match its DataOffsets
//   - no computed size overflows the int type
func (h Header) Validate() error {
	if h.ByteBufferOffset < 0 {
		return fmt.Errorf("invalid byte-buffer offset negative value %d", h.ByteBufferOffset)
	}
	for name, t := range h.Tensors {
		if name != t.Name {
			return fmt.Errorf("tensor names mismatch: TensorMap key %q, Tensor.Name %q", name, t.Name)
		}
	}
	begin := 0
	for _, t := range h.Tensors.Sorted() {
		if err := validateTensor(t, begin); err != nil {
			return fmt.Errorf("invalid tensor %q: %w", t.Name, err)
		}
		begin = t.DataOffsets.End
	}
	return nil
}

func validateTensor(t Tensor, expectedBegin int) error {
	off := t.DataOffsets
	if off.Begin != expectedBegin {
		return fmt.Errorf("expected data-offsets begin %d, actual %d", expectedBegin, off.Begin)
	}
	if off.End < off.Begin {
		return fmt.Errorf("expected data-offsets end >= %d (begin), actual %d", off.Begin, off.End)
	}
	size, err := ByteSize(t.DType.Size(), t.Shape)
	if err != nil {
		return err
	}
	if size != off.Len() {
		return fmt.Errorf("byte size computed from shape (%d) differs from data-offsets size (%d)", size, off.Len())
	}
	return nil
}

// ByteSize returns the amount of bytes needed to store the data of a tensor
// with the given shape and elements of elemSize bytes each.
func ByteSize(elemSize int, shape Shape) (int, error) {
	if elemSize <= 0 {
		return 0, fmt.Errorf("invalid element size %d", elemSize)
	}
	size := uint(elemSize)
	for _, v := range shape {
		if v < 0 {
			return 0, fmt.Errorf("shape contains negative value %d", v)
		}
		var hi uint
		if hi, size = bits.Mul(size, uint(v)); hi != 0 {
			return 0, fmt.Errorf("int overflow computing tensor byte size from shape")
		}
	}
	if size > math.MaxInt {
		return 0, fmt.Errorf("tensor byte size computed from shape is too large for int type: %d", size)
	}
	return int(size), nil
}
