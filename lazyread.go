// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"sort"

	"github.com/nlpodyssey/tensor4d/dtype"
	"github.com/nlpodyssey/tensor4d/header"
)

// Lazy allows to read safetensors content, lazy-loading the data of
// individual tensors.
//
// Only the header information is retained in memory. The io.ReadSeeker
// given to NewLazy must remain available as long as tensors are loaded
// from it. Each loaded Tensor, instead, is completely independent from
// the Lazy object and its reader.
type Lazy struct {
	rs       io.ReadSeeker
	tensors  header.TensorMap
	metadata header.Metadata
	// dataOffset is the byte-buffer offset relative to the start of rs
	dataOffset int64
}

// NewLazy reads from rs the safetensors header and validates it.
//
// The current position of rs is used as base for all further
// seek-based operations. The headerSizeLimit has the same meaning
// described for Read.
func NewLazy(rs io.ReadSeeker, headerSizeLimit int) (*Lazy, error) {
	initialOffset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to get initial offset: %w", err)
	}
	head, err := readValidHeader(rs, headerSizeLimit)
	if err != nil {
		return nil, err
	}
	dataOffset, err := checkedAddNonNegInt64(initialOffset, int64(head.ByteBufferOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to calculate total byte-buffer offset: %w", err)
	}
	return &Lazy{
		rs:         rs,
		tensors:    head.Tensors,
		metadata:   head.Metadata,
		dataOffset: dataOffset,
	}, nil
}

// Metadata returns the free-form key/value string pairs of the
// safetensors header. It can be nil.
func (l *Lazy) Metadata() map[string]string {
	return l.metadata
}

// Names returns the sorted names of all tensors.
func (l *Lazy) Names() []string {
	if len(l.tensors) == 0 {
		return nil
	}
	names := make([]string, 0, len(l.tensors))
	for name := range l.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the DType and the shape of the named tensor, as
// described in the header, without reading any data.
// The returned boolean flag reports whether the tensor was found.
func (l *Lazy) Info(name string) (dtype.DType, []int, bool) {
	t, ok := l.tensors[name]
	if !ok {
		return 0, nil, false
	}
	return t.DType, append([]int(nil), t.Shape...), true
}

// Load reads and loads in memory the data of the tensor with the given
// name from l. Type and shape requirements are the same described for Read.
func Load[T Element](l *Lazy, name string) (*Tensor[T], error) {
	ht, ok := l.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found", name)
	}
	dt, err := dtype.Of[T]()
	if err != nil {
		return nil, err
	}
	offset, err := checkedAddNonNegInt64(l.dataOffset, int64(ht.DataOffsets.Begin))
	if err != nil {
		return nil, fmt.Errorf("failed to calculate data offset of tensor %q: %w", name, err)
	}
	if _, err = l.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to data of tensor %q: %w", name, err)
	}
	t, err := readTensor[T](l.rs, ht, dt)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor %q: %w", name, err)
	}
	return t, nil
}

var errInt64SumOverflow = errors.New("int64 sum overflow")

func checkedAddNonNegInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("unexpected negative number")
	}
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, errInt64SumOverflow
	}
	return int64(sum), nil
}
