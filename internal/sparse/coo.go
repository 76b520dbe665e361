// Package sparse provides the coordinate-list builder and compressed sparse row matrix
// used to hold TF-IDF weights.
package sparse

import (
	"fmt"
	"sort"
)

// Triplet is one (row, col, value) entry of a coordinate list.
type Triplet struct {
	Row   int
	Col   int
	Value float64
}

// Builder accumulates triplets for a rows x cols matrix. It is append-only and not safe
// for concurrent use; parallel producers keep local slices and call AppendAll once each.
type Builder struct {
	rows     int
	cols     int
	triplets []Triplet
}

// NewBuilder returns an empty builder for a rows x cols matrix.
func NewBuilder(rows, cols int) (*Builder, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid shape %dx%d", rows, cols)
	}
	return &Builder{rows: rows, cols: cols}, nil
}

// Append adds one entry.
func (b *Builder) Append(row, col int, value float64) error {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return fmt.Errorf("entry (%d, %d) out of range for %dx%d matrix", row, col, b.rows, b.cols)
	}
	b.triplets = append(b.triplets, Triplet{Row: row, Col: col, Value: value})
	return nil
}

// AppendAll adds a batch of entries, stopping at the first out-of-range one.
func (b *Builder) AppendAll(ts []Triplet) error {
	for _, t := range ts {
		if err := b.Append(t.Row, t.Col, t.Value); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many triplets have been appended.
func (b *Builder) Len() int { return len(b.triplets) }

// ToCSR sorts the triplets by row then column, sums duplicates and drops entries that
// sum to zero. The builder is left unchanged.
func (b *Builder) ToCSR() *CSR {
	ts := make([]Triplet, len(b.triplets))
	copy(ts, b.triplets)
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Row != ts[j].Row {
			return ts[i].Row < ts[j].Row
		}
		return ts[i].Col < ts[j].Col
	})

	m := &CSR{
		Rows:    b.rows,
		Cols:    b.cols,
		IndPtr:  make([]int, b.rows+1),
		Indices: make([]int, 0, len(ts)),
		Data:    make([]float64, 0, len(ts)),
	}
	for i := 0; i < len(ts); {
		row, col := ts[i].Row, ts[i].Col
		var sum float64
		for ; i < len(ts) && ts[i].Row == row && ts[i].Col == col; i++ {
			sum += ts[i].Value
		}
		if sum == 0 {
			continue
		}
		m.Indices = append(m.Indices, col)
		m.Data = append(m.Data, sum)
		m.IndPtr[row+1]++
	}
	for r := 0; r < b.rows; r++ {
		m.IndPtr[r+1] += m.IndPtr[r]
	}
	return m
}
