package utils

// Strides fills `strides` with row-major strides for `dims`, the first dimension being the
// slowest varying, and returns the total element count.
func Strides(strides, dims []int) int {
	if len(strides) != len(dims) {
		panic("size mismatch")
	}
	n := 1
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i] <= 0 {
			panic("bad dims")
		}
		strides[i] = n
		n *= dims[i]
	}
	return n
}

// IdxFor converts a multi-dimensional subscript into a row-major linear index. IdxFor is the
// converse of SubFor.
func IdxFor(sub, dims []int) int {
	if len(sub) != len(dims) {
		panic("size mismatch")
	}
	idx := 0
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		if sub[i] < 0 || sub[i] >= dims[i] {
			panic("bad index")
		}
		idx += sub[i] * stride
		stride *= dims[i]
	}
	return idx
}

// SubFor constructs the multi-dimensional subscript for the input linear index.
// Dims specifies the maximum size in each dimension. SubFor is the converse of
// IdxFor.
//
// If sub is non-nil the result is stored in-place into sub. If it is nil a new
// slice of the appropriate length is allocated.
func SubFor(sub []int, idx int, dims []int) []int {
	for _, v := range dims {
		if v <= 0 {
			panic("bad dims")
		}
	}
	if sub == nil {
		sub = make([]int, len(dims))
	}
	if len(sub) != len(dims) {
		panic("size mismatch")
	}
	if idx < 0 {
		panic("bad index")
	}
	stride := 1
	for i := len(dims) - 1; i >= 1; i-- {
		stride *= dims[i]
	}
	for i := 0; i < len(dims)-1; i++ {
		v := idx / stride
		if v >= dims[i] {
			panic("bad index")
		}
		sub[i] = v
		idx -= v * stride
		stride /= dims[i+1]
	}
	if idx >= dims[len(sub)-1] {
		panic("bad index")
	}
	sub[len(sub)-1] = idx
	return sub
}
