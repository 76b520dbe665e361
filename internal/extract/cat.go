package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// queriesFromCat handles OpenDocument text and RTF, one query per line.
func queriesFromCat(content []byte) ([]string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return SplitLines(text), nil
}
