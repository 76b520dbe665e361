// Package textnorm turns raw title strings into sequences of stemmed terms.
package textnorm

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// wordPattern matches runs of Unicode word characters: letters, combining marks, decimal
// digits, letter numbers such as 'Ⅳ', connector punctuation such as '_', and the ZWNJ/ZWJ
// join controls.
const wordPattern = `[\p{L}\p{M}\p{Nd}\p{Nl}\p{Pc}\x{200C}\x{200D}]+`

// Normalizer tokenizes, lowercases and stems text. A Normalizer is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	word           *regexp.Regexp
	foldDiacritics bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDiacriticFolding strips combining marks before tokenizing ("Café" -> "cafe").
func WithDiacriticFolding(enabled bool) Option {
	return func(n *Normalizer) { n.foldDiacritics = enabled }
}

// NewNormalizer compiles the word pattern once. Build one Normalizer per process (or per
// test) and share it between index construction and query matching.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{word: regexp.MustCompile(wordPattern)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Signature identifies the normalization pipeline. Two normalizers with equal signatures
// produce identical terms for every input.
func (n *Normalizer) Signature() string {
	if n.foldDiacritics {
		return "snowball-english/fold-diacritics"
	}
	return "snowball-english"
}

// Tokenize splits text into lowercase word tokens without stemming.
func (n *Normalizer) Tokenize(text string) []string {
	if n.foldDiacritics {
		text = foldDiacritics(text)
	}
	words := n.word.FindAllString(text, -1)
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = strings.ToLower(w)
	}
	return tokens
}

// Normalize returns the stemmed terms of text in order of appearance.
func (n *Normalizer) Normalize(text string) []string {
	tokens := n.Tokenize(text)
	for i, t := range tokens {
		tokens[i] = english.Stem(t, true)
	}
	return tokens
}

// NormalizeAll normalizes texts on up to workers goroutines. The i-th result belongs to
// texts[i]. workers <= 0 means one goroutine per text.
func (n *Normalizer) NormalizeAll(ctx context.Context, texts []string, workers int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]string, len(texts))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range texts {
		i := i
		g.Go(func() error {
			out[i] = n.Normalize(texts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func foldDiacritics(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFD.String(s))
}
