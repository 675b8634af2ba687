// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor4d

import (
	"fmt"
	"math"
	"math/bits"
)

// checkedMul multiplies the non-negative values a and b, and checks
// that the result fits within the int type.
func checkedMul(a, b int) (int, error) {
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, fmt.Errorf("int overflow: %d * %d", a, b)
	}
	return int(lo), nil
}
