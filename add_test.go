// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew[T Number](t *testing.T, shape Shape, data []T) *Tensor[T] {
	t.Helper()
	tensor, err := New(shape, data)
	require.NoError(t, err)
	return tensor
}

func TestTensor_Add(t *testing.T) {
	t.Run("doubled by adding itself", func(t *testing.T) {
		data := sequence[int](24)
		t0 := mustNew(t, Shape{1, 2, 3, 4}, data)
		t1 := mustNew(t, Shape{1, 2, 3, 4}, data)

		res, err := t0.Add(t1)
		require.NoError(t, err)
		assert.Same(t, t0, res)

		for i, v := range t0.Data() {
			assert.Equal(t, data[i]*2, v)
		}
		assert.Equal(t, data, t1.Data(), "other must not change")
	})

	t.Run("same tensor as other", func(t *testing.T) {
		data := sequence[int](24)
		t0 := mustNew(t, Shape{1, 2, 3, 4}, data)

		_, err := t0.Add(t0)
		require.NoError(t, err)
		for i, v := range t0.Data() {
			assert.Equal(t, data[i]*2, v)
		}
	})

	t.Run("broadcast over trailing singleton dimension", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 2, 3, 4}, []float32{
			1, 1, 1, 1,
			2, 2, 2, 2,
			3, 3, 3, 3,

			4, 4, 4, 4,
			5, 5, 5, 5,
			6, 6, 6, 6,
		})
		t1 := mustNew(t, Shape{1, 2, 3, 1}, []float32{
			6,
			5,
			4,

			3,
			2,
			1,
		})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		for _, v := range t0.Data() {
			assert.Equal(t, float32(7), v)
		}
	})

	t.Run("full broadcast from scalar", func(t *testing.T) {
		data := sequence[float64](24)
		t0 := mustNew(t, Shape{1, 2, 3, 4}, data)
		t1 := mustNew(t, Shape{1, 1, 1, 1}, []float64{1})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		for i, v := range t0.Data() {
			assert.Equal(t, data[i]+1, v)
		}
	})

	t.Run("broadcast over inner dimension", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 2, 3, 4}, make([]int, 24))
		t1 := mustNew(t, Shape{1, 2, 1, 4}, []int{
			1, 2, 3, 4,
			5, 6, 7, 8,
		})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		assert.Equal(t, []int{
			1, 2, 3, 4,
			1, 2, 3, 4,
			1, 2, 3, 4,

			5, 6, 7, 8,
			5, 6, 7, 8,
			5, 6, 7, 8,
		}, t0.Data())
	})

	t.Run("broadcast over outer dimensions", func(t *testing.T) {
		t0 := mustNew(t, Shape{2, 2, 1, 2}, make([]int64, 8))
		t1 := mustNew(t, Shape{1, 1, 1, 2}, []int64{10, 20})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 20, 10, 20, 10, 20, 10, 20}, t0.Data())
	})

	t.Run("chaining", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 1, 1, 2}, []int{1, 2})
		t1 := mustNew(t, Shape{1, 1, 1, 1}, []int{10})

		res, err := t0.Add(t1)
		require.NoError(t, err)
		res, err = res.Add(t1)
		require.NoError(t, err)
		assert.Equal(t, []int{21, 22}, res.Data())
	})

	t.Run("shapes are not changed", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 2, 3, 4}, sequence[uint8](24))
		t1 := mustNew(t, Shape{1, 2, 1, 1}, []uint8{1, 2})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		assert.Equal(t, Shape{1, 2, 3, 4}, t0.Shape())
		assert.Equal(t, Shape{1, 2, 1, 1}, t1.Shape())
	})

	t.Run("empty tensor", func(t *testing.T) {
		t0 := mustNew[int](t, Shape{1, 0, 3, 4}, nil)
		t1 := mustNew(t, Shape{1, 1, 3, 1}, []int{1, 2, 3})

		_, err := t0.Add(t1)
		assert.NoError(t, err)
		assert.Equal(t, 0, t0.Len())
	})

	t.Run("integer wrap-around", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 1, 1, 2}, []uint8{math.MaxUint8, 1})
		t1 := mustNew(t, Shape{1, 1, 1, 1}, []uint8{1})

		_, err := t0.Add(t1)
		require.NoError(t, err)
		assert.Equal(t, []uint8{0, 2}, t0.Data())
	})

	t.Run("shape mismatch", func(t *testing.T) {
		data := sequence[int](24)
		t0 := mustNew(t, Shape{1, 2, 3, 4}, data)

		for _, s := range []Shape{
			{1, 2, 3, 2},
			{1, 3, 3, 4},
			{2, 2, 3, 4},
		} {
			size, err := s.Size()
			require.NoError(t, err)
			t1 := mustNew(t, s, sequence[int](size))

			res, err := t0.Add(t1)
			assert.ErrorIs(t, err, ErrShapeMismatch, s)
			assert.Nil(t, res)
			assert.Equal(t, data, t0.Data(), "t0 must be left unchanged")
		}
	})

	t.Run("left operand is never broadcast", func(t *testing.T) {
		t0 := mustNew(t, Shape{1, 1, 1, 1}, []int{1})
		t1 := mustNew(t, Shape{1, 2, 3, 4}, sequence[int](24))

		_, err := t0.Add(t1)
		assert.ErrorIs(t, err, ErrShapeMismatch)
		assert.Equal(t, []int{1}, t0.Data())
	})
}

func TestTensor_Add_NoAllocation(t *testing.T) {
	t0 := mustNew(t, Shape{2, 3, 4, 5}, sequence[float32](120))
	t1 := mustNew(t, Shape{2, 1, 4, 1}, sequence[float32](8))

	allocs := testing.AllocsPerRun(10, func() {
		if _, err := t0.Add(t1); err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

func Test_broadcastIndex(t *testing.T) {
	shape := Shape{2, 3, 4, 5}
	other := Shape{2, 1, 4, 1}
	otherStrides := other.Strides()

	size, err := shape.Size()
	require.NoError(t, err)
	for i := 0; i < size; i++ {
		c := shape.Coords(i)
		want := c[0]*otherStrides[0] + c[2]*otherStrides[2]
		require.Equal(t, want, broadcastIndex(shape, other, i), "index %d, coords %v", i, c)
	}
}

func BenchmarkTensor_Add(b *testing.B) {
	t0, _ := New(Shape{8, 16, 32, 32}, make([]float32, 8*16*32*32))
	t1, _ := New(Shape{1, 16, 1, 32}, make([]float32, 16*32))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = t0.Add(t1)
	}
}
