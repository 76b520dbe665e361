// Package standardizer resolves free-text job titles to a canonical title catalog. It
// owns the catalog, the cached TF-IDF index and the matcher, loads them lazily on first
// use and swaps them wholesale on reload.
package standardizer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/titlenorm/internal/catalog"
	"github.com/hyperjump/titlenorm/internal/config"
	"github.com/hyperjump/titlenorm/internal/indexstore"
	"github.com/hyperjump/titlenorm/internal/matcher"
	"github.com/hyperjump/titlenorm/internal/metrics"
	"github.com/hyperjump/titlenorm/internal/models"
	"github.com/hyperjump/titlenorm/internal/storage"
	"github.com/hyperjump/titlenorm/internal/textnorm"
	"github.com/hyperjump/titlenorm/internal/tfidf"
)

// ErrHistoryDisabled is returned by history operations when no history store is set.
var ErrHistoryDisabled = errors.New("match history is disabled")

// DefaultSuggestions is how many close titles a lookup of an unknown title offers.
const DefaultSuggestions = 3

// Result is the resolved canonical title for one query.
type Result = models.MatchResult

// Options configures a Standardizer.
type Options struct {
	// CatalogPath is a .json, .yaml/.yml or .xlsx catalog; empty selects the bundled one.
	CatalogPath string
	// IndexPath is the index cache file; empty selects indexstore.DefaultPath().
	IndexPath      string
	BuildWorkers   int
	MatchWorkers   int
	FoldDiacritics bool
	// CacheSize bounds the match result cache; <= 0 disables it.
	CacheSize int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	History storage.History
}

// OptionsFromConfig maps the service configuration onto Options. Logger, Metrics and
// History are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CatalogPath:    cfg.Catalog.Path,
		IndexPath:      cfg.Index.CachePath,
		BuildWorkers:   cfg.Index.Workers,
		MatchWorkers:   cfg.Match.Workers,
		FoldDiacritics: cfg.Index.FoldDiacritics,
		CacheSize:      cfg.Match.CacheSize,
	}
}

// state is one immutable generation of catalog, index and matcher.
type state struct {
	gen      uint64
	catalog  *catalog.Catalog
	index    *tfidf.Index
	matcher  *matcher.Matcher
	loadedAt time.Time
}

// Standardizer is safe for concurrent use.
type Standardizer struct {
	opts       Options
	normalizer *textnorm.Normalizer
	store      *indexstore.Store
	logger     *zap.Logger
	metrics    *metrics.Metrics
	history    storage.History
	cache      *resultCache

	group singleflight.Group
	mu    sync.RWMutex
	st    *state
	gen   atomic.Uint64

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Standardizer. Nothing is loaded until the first call that needs the index.
func New(opts Options) *Standardizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := textnorm.NewNormalizer(textnorm.WithDiacriticFolding(opts.FoldDiacritics))
	builder := tfidf.NewBuilder(n, opts.BuildWorkers, logger)
	return &Standardizer{
		opts:       opts,
		normalizer: n,
		store:      indexstore.New(opts.IndexPath, builder, indexstore.WithLogger(logger), indexstore.WithMetrics(opts.Metrics)),
		logger:     logger,
		metrics:    opts.Metrics,
		history:    opts.History,
		cache:      newResultCache(opts.CacheSize),
	}
}

// Store returns the index store.
func (s *Standardizer) Store() *indexstore.Store { return s.store }

// History returns the match history store, or nil.
func (s *Standardizer) History() storage.History { return s.history }

// LoadCatalog reads the configured catalog.
func (s *Standardizer) LoadCatalog() (*catalog.Catalog, error) {
	if s.opts.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.Load(s.opts.CatalogPath)
}

func (s *Standardizer) current(ctx context.Context) (*state, error) {
	s.mu.RLock()
	st := s.st
	s.mu.RUnlock()
	if st != nil {
		return st, nil
	}
	v, err, _ := s.group.Do("load", func() (interface{}, error) {
		s.mu.RLock()
		st := s.st
		s.mu.RUnlock()
		if st != nil {
			return st, nil
		}
		// Waiters share this load, so it must outlive the caller that started it.
		return s.swap(context.WithoutCancel(ctx), false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*state), nil
}

// swap builds a new state and installs it. On failure the previous state stays in place.
func (s *Standardizer) swap(ctx context.Context, force bool) (*state, error) {
	cat, err := s.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	corpus := cat.Corpus()
	var idx *tfidf.Index
	if force {
		idx, err = s.store.Rebuild(ctx, corpus)
	} else {
		idx, err = s.store.LoadOrBuild(ctx, corpus)
	}
	if err != nil {
		return nil, err
	}
	m, err := matcher.New(idx, corpus, s.normalizer, s.opts.MatchWorkers, matcher.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	st := &state{
		gen:      s.gen.Add(1),
		catalog:  cat,
		index:    idx,
		matcher:  m,
		loadedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	s.cache.Purge()
	return st, nil
}

// Reload re-reads the catalog and loads or rebuilds the index for it. In-flight matches
// finish on the state they started with.
func (s *Standardizer) Reload(ctx context.Context) error {
	_, err, _ := s.group.Do("reload", func() (interface{}, error) {
		return s.swap(ctx, false)
	})
	s.metrics.ObserveReload(err)
	if err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		return err
	}
	return nil
}

// Rebuild re-reads the catalog and rebuilds the index unconditionally.
func (s *Standardizer) Rebuild(ctx context.Context) error {
	_, err, _ := s.group.Do("rebuild", func() (interface{}, error) {
		return s.swap(ctx, true)
	})
	return err
}

// Match resolves every query, in order.
func (s *Standardizer) Match(ctx context.Context, queries []string) ([]Result, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out := make([]Result, len(queries))
	var missIdx []int
	var missQueries []string
	for i, q := range queries {
		if r, ok := s.cache.Get(st.gen, q); ok {
			out[i] = r
			continue
		}
		missIdx = append(missIdx, i)
		missQueries = append(missQueries, q)
	}
	hits, misses := len(queries)-len(missIdx), len(missIdx)

	if len(missQueries) > 0 {
		matches, err := st.matcher.MatchAll(ctx, missQueries)
		if err != nil {
			return nil, err
		}
		for k, mt := range matches {
			r := st.result(mt)
			out[missIdx[k]] = r
			s.cache.Set(st.gen, mt.Query, r)
		}
	}

	if s.cache != nil {
		s.hits.Add(int64(hits))
		s.misses.Add(int64(misses))
		s.metrics.ObserveCache(hits, misses)
	}
	s.metrics.ObserveMatch(len(queries), countZero(out), time.Since(start))
	s.logger.Debug("match batch",
		zap.Int("queries", len(queries)),
		zap.Int("cache_hits", hits),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// MatchAll maps each query to its best canonical title.
func (s *Standardizer) MatchAll(ctx context.Context, queries []string) (map[string]string, error) {
	results, err := s.Match(ctx, queries)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(results))
	for _, r := range results {
		out[r.Query] = r.Title
	}
	return out, nil
}

// Standardize returns "<title> - <classification>" for each query, in order.
func (s *Standardizer) Standardize(ctx context.Context, queries []string) ([]string, error) {
	results, err := s.Match(ctx, queries)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Standardized()
	}
	return out, nil
}

// Lookup returns the classification and code of a canonical title or alias. Unknown
// titles, and any title while the catalog cannot be loaded, classify as themselves with
// ok false.
func (s *Standardizer) Lookup(title string) (classification, code string, ok bool) {
	st, err := s.current(context.Background())
	if err != nil {
		s.logger.Warn("lookup without catalog", zap.Error(err))
		return title, "", false
	}
	return st.catalog.Lookup(title)
}

// Suggest returns up to n known catalog titles spelled close to title.
func (s *Standardizer) Suggest(title string, n int) []catalog.Suggestion {
	st, err := s.current(context.Background())
	if err != nil {
		s.logger.Warn("suggest without catalog", zap.Error(err))
		return nil
	}
	return st.catalog.Suggest(title, n)
}

// Record stores results as one run in the match history.
func (s *Standardizer) Record(ctx context.Context, source string, results []Result) (*models.MatchRun, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	run := &models.MatchRun{
		Source:         source,
		ZeroScoreCount: countZero(results),
		Fingerprint:    hex.EncodeToString(st.index.Fingerprint[:]),
		Results:        results,
	}
	if err := s.history.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// Status describes the loaded index. It does not trigger a load.
func (s *Standardizer) Status() models.IndexStatus {
	st := models.IndexStatus{
		IndexPath:   s.store.Path(),
		CatalogPath: s.opts.CatalogPath,
		CacheHits:   s.hits.Load(),
		CacheMisses: s.misses.Load(),
	}
	if n, err := storage.DiskUsageBytes(s.store.Path()); err == nil {
		st.IndexBytes = n
	}
	s.mu.RLock()
	cur := s.st
	s.mu.RUnlock()
	if cur == nil {
		return st
	}
	st.Loaded = true
	st.Documents = cur.index.NumDocs
	st.Terms = cur.index.Vocab.Len()
	st.NonZeros = cur.index.Matrix.NNZ()
	st.Entries = cur.catalog.Len()
	st.Fingerprint = hex.EncodeToString(cur.index.Fingerprint[:])
	st.LoadedAt = cur.loadedAt
	return st
}

func (st *state) result(m matcher.Match) Result {
	classification, code, _ := st.catalog.Lookup(m.Title)
	return Result{
		Query:          m.Query,
		Title:          m.Title,
		Classification: classification,
		Code:           code,
		Row:            m.Row,
		Score:          m.Score,
	}
}

func countZero(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Score == 0 {
			n++
		}
	}
	return n
}
