// Package extract reads batches of query titles from documents: one query per line,
// paragraph or spreadsheet cell.
package extract

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor turns document files into query lists.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractQueries reads the file at path and returns its non-blank queries in document
// order. The format follows the extension; unknown extensions are read as UTF-8 text.
func (e *Extractor) ExtractQueries(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.QueriesFromBytes(content, ext)
}

// QueriesFromBytes extracts queries from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) QueriesFromBytes(content []byte, ext string) ([]string, error) {
	switch ext {
	case ".pdf":
		return queriesFromPDF(content)
	case ".docx":
		return queriesFromDOCX(content)
	case ".xlsx":
		return queriesFromExcel(content)
	case ".ods":
		return queriesFromODS(content)
	case ".pptx":
		return queriesFromPPTX(content)
	case ".odp":
		return queriesFromODP(content)
	case ".odt", ".rtf":
		return queriesFromCat(content)
	default:
		return SplitLines(plainText(content)), nil
	}
}

// SplitLines returns the trimmed, non-blank lines of text.
func SplitLines(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}
