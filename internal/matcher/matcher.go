// Package matcher resolves query strings to the closest canonical title by cosine
// similarity over a TF-IDF index.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/titlenorm/internal/sparse"
	"github.com/hyperjump/titlenorm/internal/textnorm"
	"github.com/hyperjump/titlenorm/internal/tfidf"
	"github.com/hyperjump/titlenorm/pkg/utils"
)

// ErrEmptyIndex is returned when the index has no documents to match against.
var ErrEmptyIndex = errors.New("index has no documents")

// Match is the best canonical document for one query.
type Match struct {
	Query string
	Title string
	Row   int
	Score float64
}

// Matcher scans every document of an immutable index for each query.
// It is safe for concurrent use.
type Matcher struct {
	index      *tfidf.Index
	titles     []string
	normalizer *textnorm.Normalizer
	workers    int
	norms      []float64
	logger     *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the matcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns a matcher over index. titles[i] is the text of document row i, and n must
// be the normalizer the index was built with. workers <= 0 means no limit.
func New(index *tfidf.Index, titles []string, n *textnorm.Normalizer, workers int, opts ...Option) (*Matcher, error) {
	if index == nil || index.NumDocs == 0 {
		return nil, ErrEmptyIndex
	}
	if len(titles) != index.NumDocs {
		return nil, fmt.Errorf("%d titles for %d indexed documents", len(titles), index.NumDocs)
	}
	m := &Matcher{
		index:      index,
		titles:     titles,
		normalizer: n,
		workers:    workers,
		norms:      index.Matrix.RowNorms(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Project weighs normalized query terms with the index vocabulary and document
// frequencies. Terms outside the vocabulary are ignored.
func (m *Matcher) Project(terms []string) sparse.Vector {
	return tfidf.Weigh(terms, m.index.Vocab, m.index.DocFreq, m.index.NumDocs)
}

// Best returns the row with the highest cosine similarity to q. Only a strictly greater
// score replaces the current best, so ties resolve to the lowest row.
func (m *Matcher) Best(q sparse.Vector) (int, float64) {
	qn := q.Norm()
	best, bestScore := 0, m.score(q, qn, 0)
	for row := 1; row < m.index.NumDocs; row++ {
		if s := m.score(q, qn, row); s > bestScore {
			best, bestScore = row, s
		}
	}
	return best, bestScore
}

func (m *Matcher) score(q sparse.Vector, qn float64, row int) float64 {
	if qn == 0 || m.norms[row] == 0 {
		return 0
	}
	return utils.Cosine(q.Dot(m.index.Matrix.Row(row)), qn, m.norms[row])
}

// MatchOne matches a single query.
func (m *Matcher) MatchOne(query string) Match {
	return m.matchTerms(query, m.normalizer.Normalize(query))
}

func (m *Matcher) matchTerms(query string, terms []string) Match {
	row, score := m.Best(m.Project(terms))
	return Match{Query: query, Title: m.titles[row], Row: row, Score: score}
}

// MatchAll matches every query in parallel. Result i belongs to queries[i].
func (m *Matcher) MatchAll(ctx context.Context, queries []string) ([]Match, error) {
	docs, err := m.normalizer.NormalizeAll(ctx, queries, m.workers)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(queries))
	var g errgroup.Group
	if m.workers > 0 {
		g.SetLimit(m.workers)
	}
	for i := range queries {
		i := i
		g.Go(func() error {
			out[i] = m.matchTerms(queries[i], docs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m.logger.Debug("matched queries", zap.Int("queries", len(queries)), zap.Int("documents", m.index.NumDocs))
	return out, nil
}

// Mapping turns matches into a query -> title map. Duplicate queries share one key.
func Mapping(matches []Match) map[string]string {
	out := make(map[string]string, len(matches))
	for _, mt := range matches {
		out[mt.Query] = mt.Title
	}
	return out
}
