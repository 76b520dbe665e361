// Package catalog loads the canonical title catalog: each entry names a classification
// and lists the alias titles that make up the matching corpus.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned for structurally invalid catalogs.
var ErrMalformed = errors.New("malformed catalog")

// Entry is one canonical classification and its alias titles.
type Entry struct {
	Name    string   `json:"title_name" yaml:"title_name"`
	Aliases []string `json:"other_titles" yaml:"other_titles"`
	Code    string   `json:"code,omitempty" yaml:"code,omitempty"`
}

// Catalog is an immutable, validated set of entries.
type Catalog struct {
	entries  []Entry
	corpus   []string
	classify map[string]string
	codes    map[string]string
}

// New validates entries and builds the corpus and reverse lookups.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries:  make([]Entry, len(entries)),
		classify: make(map[string]string),
		codes:    make(map[string]string),
	}
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty title_name", ErrMalformed, i)
		}
		for j, a := range e.Aliases {
			if strings.TrimSpace(a) == "" {
				return nil, fmt.Errorf("%w: entry %d (%s) alias %d is blank", ErrMalformed, i, name, j)
			}
		}
		e.Name = name
		e.Aliases = append([]string(nil), e.Aliases...)
		e.Code = strings.TrimSpace(e.Code)
		c.entries[i] = e

		c.corpus = append(c.corpus, e.Aliases...)
		for _, a := range e.Aliases {
			c.classify[a] = name
		}
		c.classify[name] = name
		if e.Code != "" {
			c.codes[name] = e.Code
		}
	}
	if len(c.corpus) == 0 {
		return nil, fmt.Errorf("%w: no alias titles", ErrMalformed)
	}
	return c, nil
}

// Load reads a catalog file. The format follows the extension: .json, .yaml/.yml or .xlsx.
func Load(path string) (*Catalog, error) {
	var parse func([]byte) (*Catalog, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return loadXLSX(path)
	case ".json":
		parse = ParseJSON
	case ".yaml", ".yml":
		parse = ParseYAML
	default:
		return nil, fmt.Errorf("%w: unsupported catalog format %q", ErrMalformed, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return parse(data)
}

// ParseJSON parses a JSON array of entries.
func ParseJSON(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return New(entries)
}

// ParseYAML parses a YAML sequence of entries.
func ParseYAML(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return New(entries)
}

// Corpus returns every alias in entry order, then alias order. Row i of an index built
// from it is Corpus()[i]. The slice must not be modified.
func (c *Catalog) Corpus() []string { return c.corpus }

// Entries returns a copy of the entries.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Classify maps an alias or title name to its entry's title name. When a title occurs in
// several entries the last one wins. Unknown titles map to themselves.
func (c *Catalog) Classify(title string) string {
	if name, ok := c.classify[title]; ok {
		return name
	}
	return title
}

// Code returns the external code of the classification title belongs to.
func (c *Catalog) Code(title string) (string, bool) {
	code, ok := c.codes[c.Classify(title)]
	return code, ok
}

// Lookup returns the classification and code for title, and whether title is known.
func (c *Catalog) Lookup(title string) (classification, code string, ok bool) {
	classification, ok = c.classify[title]
	if !ok {
		return title, "", false
	}
	return classification, c.codes[classification], true
}
