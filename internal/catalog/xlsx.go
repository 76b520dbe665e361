package catalog

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadXLSX reads the first sheet as rows of title_name | alias | code. A first row whose
// first cell is "title_name" is a header. Rows with the same title name are grouped into
// one entry, in first-seen order; a row without an alias only contributes its code.
func loadXLSX(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformed)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return entriesFromRows(rows)
}

func entriesFromRows(rows [][]string) (*Catalog, error) {
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "title_name") {
		rows = rows[1:]
	}
	var entries []Entry
	pos := make(map[string]int)
	for i, row := range rows {
		cell := func(j int) string {
			if j < len(row) {
				return strings.TrimSpace(row[j])
			}
			return ""
		}
		name, alias, code := cell(0), cell(1), cell(2)
		if name == "" && alias == "" && code == "" {
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("%w: row %d has an alias but no title_name", ErrMalformed, i+1)
		}
		k, ok := pos[name]
		if !ok {
			k = len(entries)
			pos[name] = k
			entries = append(entries, Entry{Name: name})
		}
		if alias != "" {
			entries[k].Aliases = append(entries[k].Aliases, alias)
		}
		if code != "" {
			entries[k].Code = code
		}
	}
	return New(entries)
}
