package extract

import "fmt"

const odpContentPath = "content.xml"

var odpParagraph = element("text:p")

// queriesFromODP returns one query per non-empty text paragraph across all slides.
func queriesFromODP(content []byte) ([]string, error) {
	zr, err := openZip(content, "ODP")
	if err != nil {
		return nil, err
	}
	xml, err := readZipFile(zr, odpContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract ODP: %w", err)
	}
	if xml == nil {
		return nil, fmt.Errorf("extract ODP: %s not found", odpContentPath)
	}
	return elementTexts(string(xml), odpParagraph), nil
}
