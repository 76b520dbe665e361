// Package tfidf builds the term vocabulary, document frequencies and weighted sparse
// matrix of a title corpus.
package tfidf

import (
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/titlenorm/internal/sparse"
)

// Vocabulary maps terms to dense column indices in [0, Len()).
type Vocabulary struct {
	terms []string
	ids   map[string]int
}

// NewVocabulary builds a vocabulary whose term i has index i. Duplicate terms are rejected.
func NewVocabulary(terms []string) (*Vocabulary, error) {
	v := &Vocabulary{
		terms: make([]string, 0, len(terms)),
		ids:   make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		if _, dup := v.ids[t]; dup {
			return nil, fmt.Errorf("duplicate term %q", t)
		}
		v.add(t)
	}
	return v, nil
}

func (v *Vocabulary) add(term string) int {
	id := len(v.terms)
	v.terms = append(v.terms, term)
	v.ids[term] = id
	return id
}

// Lookup returns the index of term.
func (v *Vocabulary) Lookup(term string) (int, bool) {
	id, ok := v.ids[term]
	return id, ok
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Term returns the term with index i.
func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// DocFreq holds, for each vocabulary index, the number of documents containing the term.
type DocFreq []int

// BuildVocabulary scans docs in order, assigning each term an index the first time it is
// seen and counting each distinct term once per document.
func BuildVocabulary(docs [][]string) (*Vocabulary, DocFreq) {
	vocab := &Vocabulary{ids: make(map[string]int)}
	var df DocFreq
	seen := make(map[int]struct{})
	for _, doc := range docs {
		clear(seen)
		for _, term := range doc {
			id, ok := vocab.ids[term]
			if !ok {
				id = vocab.add(term)
				df = append(df, 0)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			df[id]++
		}
	}
	return vocab, df
}

// IDF returns ln(numDocs / df), or 0 for a term no document contains.
func IDF(df, numDocs int) float64 {
	if df <= 0 || numDocs <= 0 {
		return 0
	}
	return math.Log(float64(numDocs) / float64(df))
}

// Weigh returns the tf-idf vector of one normalized document in the vocabulary's column
// space. tf divides by the full token count, so terms outside the vocabulary dilute the
// weights without adding columns. Zero weights are omitted.
func Weigh(doc []string, vocab *Vocabulary, df DocFreq, numDocs int) sparse.Vector {
	v := sparse.Vector{Dim: vocab.Len()}
	if len(doc) == 0 {
		return v
	}
	counts := make(map[int]int, len(doc))
	for _, term := range doc {
		if id, ok := vocab.Lookup(term); ok {
			counts[id]++
		}
	}
	v.Indices = make([]int, 0, len(counts))
	for id := range counts {
		v.Indices = append(v.Indices, id)
	}
	sort.Ints(v.Indices)

	total := float64(len(doc))
	kept := v.Indices[:0]
	for _, id := range v.Indices {
		w := float64(counts[id]) / total * IDF(df[id], numDocs)
		if w == 0 {
			continue
		}
		kept = append(kept, id)
		v.Values = append(v.Values, w)
	}
	v.Indices = kept
	return v
}
