package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const pptxSlidePathPrefix = "ppt/slides/slide"

var pptxParagraph = element("a:p")

// queriesFromPPTX returns one query per non-empty text paragraph, slides in numeric order.
func queriesFromPPTX(content []byte) ([]string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, pptxSlidePathPrefix), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var out []string
	for _, s := range slides {
		xml, err := readZipFile(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		out = append(out, elementTexts(string(xml), pptxParagraph)...)
	}
	return out, nil
}
