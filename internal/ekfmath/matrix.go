// Package ekfmath implements the fixed-capacity dense matrix and
// vector/quaternion algebra the navigation filter runs on.
//
// Matrix is a value type with a compile-time capacity so the filter's hot
// path never allocates: every result matrix is written into a caller-owned
// value, and every operation is total on its documented precondition,
// reporting a diagnosable failure on a shape mismatch rather than
// panicking or overrunning a buffer.
package ekfmath

import "math"

// MaxDim is the largest row or column count a Matrix can hold. The
// filter's largest object is the 16x16 state covariance, so 16 covers
// every use without wasting stack space on an MCU target.
const MaxDim = 16

// singularEpsilon is the pivot-magnitude floor below which Inverse
// declares a matrix singular.
const singularEpsilon = 1e-6

// Matrix is a dense, row-major matrix with runtime dimensions bounded by
// MaxDim. The zero value is a 0x0 matrix.
type Matrix struct {
	data [MaxDim][MaxDim]float64
	rows int
	cols int
}

// NewMatrix returns a zero-filled r x c matrix, clamping r and c to
// MaxDim.
func NewMatrix(r, c int) Matrix {
	if r > MaxDim {
		r = MaxDim
	}
	if c > MaxDim {
		c = MaxDim
	}
	if r < 0 {
		r = 0
	}
	if c < 0 {
		c = 0
	}
	return Matrix{rows: r, cols: c}
}

// Identity returns an n x n identity matrix, clamped to MaxDim.
func Identity(n int) Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < m.rows; i++ {
		m.data[i][i] = 1
	}
	return m
}

// Diagonal returns an r x c matrix with value on every diagonal entry.
func Diagonal(r, c int, value float64) Matrix {
	m := NewMatrix(r, c)
	n := m.rows
	if m.cols < n {
		n = m.cols
	}
	for i := 0; i < n; i++ {
		m.data[i][i] = value
	}
	return m
}

// DiagonalVector returns an r x c matrix whose diagonal entries are taken
// from values, in order. Extra diagonal slots beyond len(values) stay
// zero; extra values beyond the diagonal length are ignored.
func DiagonalVector(r, c int, values []float64) Matrix {
	m := NewMatrix(r, c)
	n := m.rows
	if m.cols < n {
		n = m.cols
	}
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		m.data[i][i] = values[i]
	}
	return m
}

// Rows returns the matrix's row count.
func (m Matrix) Rows() int { return m.rows }

// Cols returns the matrix's column count.
func (m Matrix) Cols() int { return m.cols }

// Get returns the value at (row, col) and whether the index was in bounds.
func (m Matrix) Get(row, col int) (float64, bool) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return 0, false
	}
	return m.data[row][col], true
}

// At returns the value at (row, col), or zero if out of bounds. It exists
// for call sites (like the EKF's own Jacobian builders) that already know
// the index is in range and don't want to check a second bool.
func (m Matrix) At(row, col int) float64 {
	v, _ := m.Get(row, col)
	return v
}

// Set writes value at (row, col) and reports whether the index was valid.
func (m *Matrix) Set(row, col int, value float64) bool {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return false
	}
	m.data[row][col] = value
	return true
}

// Zero clears every entry of m in place.
func (m *Matrix) Zero() {
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			m.data[i][j] = 0
		}
	}
}

// Add returns a+b. ok is false and the result is unspecified if the shapes
// differ.
func Add(a, b Matrix) (Matrix, bool) {
	if a.rows != b.rows || a.cols != b.cols {
		return Matrix{}, false
	}
	r := NewMatrix(a.rows, a.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			r.data[i][j] = a.data[i][j] + b.data[i][j]
		}
	}
	return r, true
}

// Sub returns a-b. ok is false and the result is unspecified if the shapes
// differ.
func Sub(a, b Matrix) (Matrix, bool) {
	if a.rows != b.rows || a.cols != b.cols {
		return Matrix{}, false
	}
	r := NewMatrix(a.rows, a.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			r.data[i][j] = a.data[i][j] - b.data[i][j]
		}
	}
	return r, true
}

// Mul returns a*b. ok is false and the result is unspecified if
// a.Cols() != b.Rows().
func Mul(a, b Matrix) (Matrix, bool) {
	if a.cols != b.rows {
		return Matrix{}, false
	}
	r := NewMatrix(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < b.cols; j++ {
			sum := 0.0
			for k := 0; k < a.cols; k++ {
				sum += a.data[i][k] * b.data[k][j]
			}
			r.data[i][j] = sum
		}
	}
	return r, true
}

// Scale returns m scaled by s.
func Scale(m Matrix, s float64) Matrix {
	r := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			r.data[i][j] = m.data[i][j] * s
		}
	}
	return r
}

// Transpose returns m's transpose.
func Transpose(m Matrix) Matrix {
	r := NewMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			r.data[j][i] = m.data[i][j]
		}
	}
	return r
}

// Copy returns an independent copy of m. Matrix is already a value type,
// so this is just m; it exists to make call sites that care about the
// distinction (e.g. before an in-place Gauss-Jordan pass) explicit.
func Copy(m Matrix) Matrix { return m }

// Inverse computes m's inverse via Gauss-Jordan elimination on an
// augmented [m | I] matrix with partial pivoting (largest |pivot| in the
// column). It fails if m is not square or if the chosen pivot magnitude
// ever falls below the singularity threshold.
func Inverse(m Matrix) (Matrix, bool) {
	if m.rows != m.cols {
		return Matrix{}, false
	}
	n := m.rows

	var aug Matrix
	aug.rows = n
	aug.cols = 2 * n
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.data[i][j] = m.data[i][j]
		}
		aug.data[i][i+n] = 1
	}

	for i := 0; i < n; i++ {
		pivot := i
		maxVal := math.Abs(aug.data[i][i])
		for j := i + 1; j < n; j++ {
			if v := math.Abs(aug.data[j][i]); v > maxVal {
				maxVal = v
				pivot = j
			}
		}
		if maxVal < singularEpsilon {
			return Matrix{}, false
		}
		if pivot != i {
			for j := 0; j < 2*n; j++ {
				aug.data[i][j], aug.data[pivot][j] = aug.data[pivot][j], aug.data[i][j]
			}
		}

		pivotVal := aug.data[i][i]
		for j := 0; j < 2*n; j++ {
			aug.data[i][j] /= pivotVal
		}

		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			factor := aug.data[j][i]
			if factor == 0 {
				continue
			}
			for k := 0; k < 2*n; k++ {
				aug.data[j][k] -= factor * aug.data[i][k]
			}
		}
	}

	r := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.data[i][j] = aug.data[i][j+n]
		}
	}
	return r, true
}

// SetRow writes vec into row, starting at column 0. ok is false if row is
// out of bounds or vec is longer than m.Cols().
func (m *Matrix) SetRow(row int, vec []float64) bool {
	if row < 0 || row >= m.rows || len(vec) > m.cols {
		return false
	}
	for j, v := range vec {
		m.data[row][j] = v
	}
	return true
}

// SetCol writes vec into col, starting at row 0. ok is false if col is out
// of bounds or vec is longer than m.Rows().
func (m *Matrix) SetCol(col int, vec []float64) bool {
	if col < 0 || col >= m.cols || len(vec) > m.rows {
		return false
	}
	for i, v := range vec {
		m.data[i][col] = v
	}
	return true
}

// Row returns a copy of row.
func (m Matrix) Row(row int) ([]float64, bool) {
	if row < 0 || row >= m.rows {
		return nil, false
	}
	out := make([]float64, m.cols)
	copy(out, m.data[row][:m.cols])
	return out, true
}

// Col returns a copy of col.
func (m Matrix) Col(col int) ([]float64, bool) {
	if col < 0 || col >= m.cols {
		return nil, false
	}
	out := make([]float64, m.rows)
	for i := range out {
		out[i] = m.data[i][col]
	}
	return out, true
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b Matrix) bool {
	return a.rows == b.rows && a.cols == b.cols
}
