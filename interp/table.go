// Package interp implements piecewise multilinear interpolation over rectilinear grids whose
// samples are stored as fixed-point integers. Tables are immutable once built and evaluating them
// does not allocate, so they can be used from a control loop.
package interp

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/utils"
)

// DefaultScale is the fixed-point scale of table samples: a stored 10000 means 1.0.
const DefaultScale = 10000

// MaxDims is the largest number of dimensions a Table may have.
const MaxDims = 6

// Table is an N-dimensional lookup table over a rectilinear, non-uniform grid.
type Table struct {
	axes    [][]float64
	dims    []int
	strides []int
	values  []int32
	scale   float64

	min, max float64
}

// NewTable validates the axes and samples and builds a Table. Each axis must have at least two
// strictly increasing points and `values` must hold exactly one sample per grid point, laid out
// row-major with the first axis varying slowest. A non-positive scale selects DefaultScale.
func NewTable(axes [][]float64, values []int32, scale float64) (*Table, error) {
	if len(axes) == 0 || len(axes) > MaxDims {
		return nil, errors.Errorf("table must have between 1 and %d axes, got %d", MaxDims, len(axes))
	}
	if scale <= 0 {
		scale = DefaultScale
	}

	dims := make([]int, len(axes))
	ownAxes := make([][]float64, len(axes))
	for d, axis := range axes {
		if len(axis) < 2 {
			return nil, errors.Errorf("axis %d must have at least 2 points, got %d", d, len(axis))
		}
		for i := 1; i < len(axis); i++ {
			if !(axis[i] > axis[i-1]) {
				return nil, errors.Errorf("axis %d is not strictly increasing at index %d (%v after %v)",
					d, i, axis[i], axis[i-1])
			}
		}
		dims[d] = len(axis)
		ownAxes[d] = append([]float64(nil), axis...)
	}

	strides := make([]int, len(dims))
	if n := utils.Strides(strides, dims); n != len(values) {
		return nil, errors.Errorf("table with dims %v needs %d values, got %d", dims, n, len(values))
	}

	descaled := make([]float64, len(values))
	for i, v := range values {
		descaled[i] = float64(v) / scale
	}

	return &Table{
		axes:    ownAxes,
		dims:    dims,
		strides: strides,
		values:  append([]int32(nil), values...),
		scale:   scale,
		min:     floats.Min(descaled),
		max:     floats.Max(descaled),
	}, nil
}

// Dims returns the number of dimensions of the table.
func (t *Table) Dims() int {
	return len(t.axes)
}

// Axis returns a copy of the grid of dimension d.
func (t *Table) Axis(d int) []float64 {
	return append([]float64(nil), t.axes[d]...)
}

// Min returns the smallest descaled sample.
func (t *Table) Min() float64 {
	return t.min
}

// Max returns the largest descaled sample.
func (t *Table) Max() float64 {
	return t.max
}

// At returns the descaled sample stored at the grid subscript `sub`.
func (t *Table) At(sub ...int) float64 {
	return float64(t.values[utils.IdxFor(sub, t.dims)]) / t.scale
}

// Locate returns the index i of the grid cell [axis[i], axis[i+1]] used to interpolate `v`.
// Values at or below the first point use cell 0 and values at or above the last point use cell
// n-2; the boundary cell is then extrapolated linearly. A value equal to an interior grid point
// selects that point as the left endpoint.
func Locate(axis []float64, v float64) int {
	n := len(axis)
	if v <= axis[0] {
		return 0
	}
	if v >= axis[n-1] {
		return n - 2
	}
	lb := sort.SearchFloat64s(axis, v)
	if axis[lb] == v {
		return lb
	}
	return lb - 1
}

// weight returns the interpolation weight of `v` within cell i of `axis`.
func weight(axis []float64, i int, v float64) float64 {
	return (v - axis[i]) / (axis[i+1] - axis[i])
}

// Evaluate interpolates the table at `point`, which must have one coordinate per dimension. It
// returns NaN when the dimensions do not match.
func (t *Table) Evaluate(point ...float64) float64 {
	nd := len(t.axes)
	if len(point) != nd {
		return math.NaN()
	}

	var base int
	var w [MaxDims]float64
	for d := 0; d < nd; d++ {
		i := Locate(t.axes[d], point[d])
		w[d] = weight(t.axes[d], i, point[d])
		base += i * t.strides[d]
	}

	// Sum over the 2^nd corners of the cell. Bit d of `corner` picks the upper grid point of
	// dimension d.
	var sum float64
	for corner := 0; corner < 1<<nd; corner++ {
		cw := 1.0
		idx := base
		for d := 0; d < nd; d++ {
			if corner&(1<<d) != 0 {
				cw *= w[d]
				idx += t.strides[d]
			} else {
				cw *= 1 - w[d]
			}
		}
		sum += cw * (float64(t.values[idx]) / t.scale)
	}
	return sum
}

// Evaluate4D interpolates a four dimensional table at (x, y, z, w). It is Evaluate specialized
// to four coordinates so that no variadic slice is built.
func (t *Table) Evaluate4D(x, y, z, w float64) float64 {
	if len(t.axes) != 4 {
		return math.NaN()
	}
	point := [4]float64{x, y, z, w}
	return t.Evaluate(point[:]...)
}
