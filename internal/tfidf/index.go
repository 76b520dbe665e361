package tfidf

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/sparse"
	"github.com/hyperjump/titlenorm/internal/textnorm"
)

// Index is the persisted unit: vocabulary, document frequencies, document count and the
// weighted matrix, plus the fingerprint of the corpus it was built from.
type Index struct {
	Vocab       *Vocabulary
	DocFreq     DocFreq
	NumDocs     int
	Matrix      *sparse.CSR
	Fingerprint [32]byte
}

// Validate checks that the four parts describe the same corpus.
func (idx *Index) Validate() error {
	if idx.Vocab == nil || idx.Matrix == nil {
		return fmt.Errorf("index is missing its vocabulary or matrix")
	}
	if len(idx.DocFreq) != idx.Vocab.Len() {
		return fmt.Errorf("%d doc frequencies for %d terms", len(idx.DocFreq), idx.Vocab.Len())
	}
	if idx.Matrix.Rows != idx.NumDocs {
		return fmt.Errorf("matrix has %d rows for %d documents", idx.Matrix.Rows, idx.NumDocs)
	}
	if idx.Matrix.Cols != idx.Vocab.Len() {
		return fmt.Errorf("matrix has %d columns for %d terms", idx.Matrix.Cols, idx.Vocab.Len())
	}
	for i, n := range idx.DocFreq {
		if n < 1 || n > idx.NumDocs {
			return fmt.Errorf("term %q: doc frequency %d outside [1, %d]", idx.Vocab.Term(i), n, idx.NumDocs)
		}
	}
	return idx.Matrix.Validate()
}

// Builder runs the full pipeline over a corpus.
type Builder struct {
	normalizer *textnorm.Normalizer
	workers    int
	logger     *zap.Logger
}

// NewBuilder returns a builder using n for every document. workers <= 0 means GOMAXPROCS.
func NewBuilder(n *textnorm.Normalizer, workers int, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{normalizer: n, workers: workers, logger: logger}
}

// Normalizer returns the normalizer documents are built with.
func (b *Builder) Normalizer() *textnorm.Normalizer { return b.normalizer }

// Build normalizes the corpus, assigns the vocabulary and computes the matrix.
// The returned index has a zero fingerprint.
func (b *Builder) Build(ctx context.Context, corpus []string) (*Index, error) {
	start := time.Now()
	docs, err := b.normalizer.NormalizeAll(ctx, corpus, b.workers)
	if err != nil {
		return nil, fmt.Errorf("normalize corpus: %w", err)
	}
	vocab, df := BuildVocabulary(docs)
	matrix, err := ComputeMatrix(ctx, docs, vocab, df, len(docs), b.workers)
	if err != nil {
		return nil, fmt.Errorf("compute tf-idf matrix: %w", err)
	}
	b.logger.Debug("tfidf index built",
		zap.Int("documents", len(docs)),
		zap.Int("terms", vocab.Len()),
		zap.Int("nonzeros", matrix.NNZ()),
		zap.Duration("elapsed", time.Since(start)))
	return &Index{Vocab: vocab, DocFreq: df, NumDocs: len(docs), Matrix: matrix}, nil
}
