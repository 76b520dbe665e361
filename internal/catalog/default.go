package catalog

import (
	_ "embed"
)

//go:embed standardized_titles.json
var defaultCatalog []byte

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return ParseJSON(defaultCatalog)
}
