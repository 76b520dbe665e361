package sparse

import (
	"fmt"

	"github.com/hyperjump/titlenorm/pkg/utils"
)

// CSR is a compressed sparse row matrix. Row i occupies Indices[IndPtr[i]:IndPtr[i+1]]
// and the matching Data range; column indices within a row are strictly increasing.
type CSR struct {
	Rows    int
	Cols    int
	IndPtr  []int
	Indices []int
	Data    []float64
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.Data) }

// Row returns row i as a read-only vector view sharing the matrix storage.
func (m *CSR) Row(i int) Vector {
	lo, hi := m.IndPtr[i], m.IndPtr[i+1]
	return Vector{Dim: m.Cols, Indices: m.Indices[lo:hi], Values: m.Data[lo:hi]}
}

// RowNorms returns the L2 norm of every row.
func (m *CSR) RowNorms() []float64 {
	norms := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		norms[i] = utils.L2Norm(m.Data[m.IndPtr[i]:m.IndPtr[i+1]])
	}
	return norms
}

// Validate checks the structural invariants of the matrix.
func (m *CSR) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("invalid shape %dx%d", m.Rows, m.Cols)
	}
	if len(m.IndPtr) != m.Rows+1 {
		return fmt.Errorf("row pointer length %d, want %d", len(m.IndPtr), m.Rows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("%d column indices for %d values", len(m.Indices), len(m.Data))
	}
	if m.IndPtr[0] != 0 || m.IndPtr[m.Rows] != len(m.Data) {
		return fmt.Errorf("row pointers span [%d, %d], want [0, %d]", m.IndPtr[0], m.IndPtr[m.Rows], len(m.Data))
	}
	for r := 0; r < m.Rows; r++ {
		lo, hi := m.IndPtr[r], m.IndPtr[r+1]
		if lo > hi {
			return fmt.Errorf("row %d: decreasing row pointers", r)
		}
		for k := lo; k < hi; k++ {
			c := m.Indices[k]
			if c < 0 || c >= m.Cols {
				return fmt.Errorf("row %d: column %d out of range", r, c)
			}
			if k > lo && c <= m.Indices[k-1] {
				return fmt.Errorf("row %d: columns not strictly increasing", r)
			}
		}
	}
	return nil
}

// Vector is a sparse vector with strictly increasing indices.
type Vector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 { return utils.L2Norm(v.Values) }

// Dot returns the inner product of two sparse vectors by merging their index lists.
func (v Vector) Dot(w Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(w.Indices) {
		switch {
		case v.Indices[i] < w.Indices[j]:
			i++
		case v.Indices[i] > w.Indices[j]:
			j++
		default:
			sum += v.Values[i] * w.Values[j]
			i++
			j++
		}
	}
	return sum
}
