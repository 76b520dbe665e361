package tfidf

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/titlenorm/internal/sparse"
)

// ComputeMatrix weighs every document into one row of a CSR matrix. Workers own disjoint
// contiguous row ranges and collect local triplets; the ranges are then merged into the
// coordinate builder in row order by the calling goroutine.
func ComputeMatrix(ctx context.Context, docs [][]string, vocab *Vocabulary, df DocFreq, numDocs, workers int) (*sparse.CSR, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(df) != vocab.Len() {
		return nil, fmt.Errorf("doc frequency table has %d entries for %d terms", len(df), vocab.Len())
	}
	builder, err := sparse.NewBuilder(len(docs), vocab.Len())
	if err != nil {
		return nil, err
	}

	ranges := partition(len(docs), workers)
	local := make([][]sparse.Triplet, len(ranges))
	var g errgroup.Group
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ts []sparse.Triplet
			for row := r[0]; row < r[1]; row++ {
				v := Weigh(docs[row], vocab, df, numDocs)
				for k, col := range v.Indices {
					ts = append(ts, sparse.Triplet{Row: row, Col: col, Value: v.Values[k]})
				}
			}
			local[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ts := range local {
		if err := builder.AppendAll(ts); err != nil {
			return nil, err
		}
	}
	return builder.ToCSR(), nil
}

// partition splits [0, n) into at most workers contiguous half-open ranges.
func partition(n, workers int) [][2]int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 0 {
		return nil
	}
	ranges := make([][2]int, 0, workers)
	size, rem := n/workers, n%workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i < rem {
			end++
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	return ranges
}
