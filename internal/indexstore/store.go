package indexstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/metrics"
	"github.com/hyperjump/titlenorm/internal/tfidf"
)

// DefaultFileName is the cache file name used under the temp directory.
const DefaultFileName = "titlenorm_tfidf_index.bin"

// DefaultPath returns the well-known cache location in the process temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultFileName)
}

// Store caches one index at a fixed path.
type Store struct {
	path    string
	builder *tfidf.Builder
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records builds and loads on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a store that keeps its index at path and builds with builder.
func New(path string, builder *tfidf.Builder, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{path: path, builder: builder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the cache file path.
func (s *Store) Path() string { return s.path }

// LoadOrBuild returns the cached index when it was built from the same corpus and
// normalizer. A missing file is built and written; a file with another fingerprint is
// stale and is rebuilt and overwritten. A file that exists but cannot be read or decoded
// is an ErrCorruptIndex error and is left in place.
func (s *Store) LoadOrBuild(ctx context.Context, corpus []string) (*tfidf.Index, error) {
	fp := Fingerprint(s.builder.Normalizer().Signature(), corpus)
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.buildAndWrite(ctx, corpus, fp, metrics.SourceBuilt)
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptIndex, s.path, err)
	}

	idx, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", s.path, err)
	}
	if idx.Fingerprint != fp {
		s.logger.Info("Index cache is stale, rebuilding", zap.String("path", s.path))
		return s.buildAndWrite(ctx, corpus, fp, metrics.SourceRebuiltStale)
	}
	s.logger.Info("Loaded index from cache",
		zap.String("path", s.path),
		zap.Int("documents", idx.NumDocs),
		zap.Int("terms", idx.Vocab.Len()))
	s.metrics.ObserveLoad(metrics.SourceCache, idx.NumDocs, idx.Vocab.Len())
	return idx, nil
}

// Rebuild builds the index from corpus and overwrites the cache file unconditionally.
func (s *Store) Rebuild(ctx context.Context, corpus []string) (*tfidf.Index, error) {
	fp := Fingerprint(s.builder.Normalizer().Signature(), corpus)
	return s.buildAndWrite(ctx, corpus, fp, metrics.SourceForced)
}

// Read decodes the cache file as it is, without comparing fingerprints.
func (s *Store) Read() (*tfidf.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", s.path, err)
	}
	return Decode(data)
}

func (s *Store) buildAndWrite(ctx context.Context, corpus []string, fp [32]byte, source string) (*tfidf.Index, error) {
	start := time.Now()
	idx, err := s.builder.Build(ctx, corpus)
	s.metrics.ObserveBuild(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	idx.Fingerprint = fp

	data, err := Encode(idx)
	if err != nil {
		return nil, err
	}
	if err := writeFile(s.path, data); err != nil {
		return nil, fmt.Errorf("write index %s: %w", s.path, err)
	}
	s.logger.Info("Built index",
		zap.String("path", s.path),
		zap.String("source", source),
		zap.Int("documents", idx.NumDocs),
		zap.Int("terms", idx.Vocab.Len()),
		zap.Int("nonzeros", idx.Matrix.NNZ()),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	s.metrics.ObserveLoad(source, idx.NumDocs, idx.Vocab.Len())
	return idx, nil
}

// writeFile replaces path with data through a temp file in the same directory.
// The directory must already exist.
func writeFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
