package catalog

import (
	"sort"
	"strings"
)

// maxSuggestDistance bounds the edit distance of a suggestion from the requested title.
const maxSuggestDistance = 3

// Suggestion is a known title close to an unknown one.
type Suggestion struct {
	Title          string `json:"title"`
	Classification string `json:"classification"`
	Distance       int    `json:"distance"`
}

// Suggest returns up to n known titles within a small edit distance of title, nearest
// first. Comparison ignores case and surrounding space. Ties keep title order.
func (c *Catalog) Suggest(title string, n int) []Suggestion {
	if n <= 0 {
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return nil
	}

	var out []Suggestion
	for known, classification := range c.classify {
		lower := strings.ToLower(known)
		if lower == want {
			continue
		}
		// Length difference alone exceeds the bound.
		if d := len([]rune(lower)) - len([]rune(want)); d > maxSuggestDistance || -d > maxSuggestDistance {
			continue
		}
		if d := editDistance(want, lower); d <= maxSuggestDistance {
			out = append(out, Suggestion{Title: known, Classification: classification, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// editDistance is the Damerau-Levenshtein distance between a and b over runes: insertions,
// deletions, substitutions and adjacent transpositions each cost one.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
