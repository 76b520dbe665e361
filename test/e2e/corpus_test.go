package e2e

import (
	"testing"

	"github.com/hyperjump/titlenorm/internal/catalog"
	"github.com/hyperjump/titlenorm/internal/textnorm"
)

func TestBuildCorpus_Sizes(t *testing.T) {
	c := BuildCorpus()
	if len(c.Entries) != len(occupations) {
		t.Errorf("expected %d entries, got %d", len(occupations), len(c.Entries))
	}
	if c.TotalAliases != len(occupations)*len(aliasPatterns) {
		t.Errorf("TotalAliases = %d", c.TotalAliases)
	}
	if c.TotalQueries != 3*len(occupations) || len(c.Queries()) != c.TotalQueries {
		t.Errorf("TotalQueries = %d", c.TotalQueries)
	}
}

func TestBuildCorpus_IsValidCatalog(t *testing.T) {
	c := BuildCorpus()
	cat, err := catalog.New(c.Entries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if len(cat.Corpus()) != c.TotalAliases {
		t.Errorf("corpus size = %d, want %d", len(cat.Corpus()), c.TotalAliases)
	}
}

func TestOccupations_DistinctStems(t *testing.T) {
	n := textnorm.NewNormalizer()
	seen := make(map[string]string)
	for _, occ := range occupations {
		terms := n.Normalize(occ)
		if len(terms) != 1 {
			t.Fatalf("%q normalizes to %v", occ, terms)
		}
		if prev, ok := seen[terms[0]]; ok {
			t.Errorf("%q and %q share stem %q", prev, occ, terms[0])
		}
		seen[terms[0]] = occ
	}
	for _, p := range []string{"Senior", "Apprentice", "Head", "Certified"} {
		if _, ok := seen[n.Normalize(p)[0]]; ok {
			t.Errorf("modifier %q collides with an occupation stem", p)
		}
	}
}
