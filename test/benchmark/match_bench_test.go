package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/catalog"
	"github.com/hyperjump/titlenorm/internal/indexstore"
	"github.com/hyperjump/titlenorm/internal/matcher"
	"github.com/hyperjump/titlenorm/internal/textnorm"
	"github.com/hyperjump/titlenorm/internal/tfidf"
)

// syntheticCorpus returns n alias titles drawn from a fixed word pool, so documents share
// terms the way real catalogs do.
func syntheticCorpus(n int) []string {
	levels := []string{"Junior", "Senior", "Lead", "Principal", "Staff", "Assistant", "Chief"}
	fields := []string{"Software", "Data", "Network", "Security", "Clinical", "Sales", "Marketing", "Finance", "Legal", "Civil"}
	roles := []string{"Engineer", "Analyst", "Manager", "Specialist", "Technician", "Consultant", "Director", "Coordinator"}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %s %s %d",
			levels[i%len(levels)], fields[(i/len(levels))%len(fields)], roles[(i/7)%len(roles)], i%13)
	}
	return out
}

func BenchmarkNormalize(b *testing.B) {
	n := textnorm.NewNormalizer()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = n.Normalize("Senior Registered Nurse, Intensive-Care Unit (Nights)")
	}
}

func BenchmarkBuildIndex(b *testing.B) {
	corpus := syntheticCorpus(5000)
	builder := tfidf.NewBuilder(textnorm.NewNormalizer(), 0, zap.NewNop())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(ctx, corpus); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeDecode(b *testing.B) {
	corpus := syntheticCorpus(5000)
	idx, err := tfidf.NewBuilder(textnorm.NewNormalizer(), 0, nil).Build(context.Background(), corpus)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := indexstore.Encode(idx)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := indexstore.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadOrBuild_Cached(b *testing.B) {
	corpus := syntheticCorpus(5000)
	store := indexstore.New(filepath.Join(b.TempDir(), "index.bin"), tfidf.NewBuilder(textnorm.NewNormalizer(), 0, nil))
	ctx := context.Background()
	if _, err := store.LoadOrBuild(ctx, corpus); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.LoadOrBuild(ctx, corpus); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMatchAll(b *testing.B) {
	cat, err := catalog.Default()
	if err != nil {
		b.Fatal(err)
	}
	n := textnorm.NewNormalizer()
	idx, err := tfidf.NewBuilder(n, 0, nil).Build(context.Background(), cat.Corpus())
	if err != nil {
		b.Fatal(err)
	}
	m, err := matcher.New(idx, cat.Corpus(), n, 0)
	if err != nil {
		b.Fatal(err)
	}
	queries := syntheticCorpus(1000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.MatchAll(ctx, queries); err != nil {
			b.Fatal(err)
		}
	}
}
