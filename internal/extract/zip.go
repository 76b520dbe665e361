package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// breakTag matches self-closing tab and line-break elements, which separate words.
var breakTag = regexp.MustCompile(`<(?:w:tab|w:br|a:br|text:tab|text:s|text:line-break)\b[^>]*/>`)

var anyTag = regexp.MustCompile(`<[^>]+>`)

// element returns a pattern capturing the content of every non-empty <name ...>...</name>.
func element(name string) *regexp.Regexp {
	q := regexp.QuoteMeta(name)
	return regexp.MustCompile(`(?s)<` + q + `(?:\s[^>]*[^/])?>(.*?)</` + q + `>`)
}

// elementTexts returns the text of each element matched by re, with markup removed and
// entities decoded. Blank elements are skipped.
func elementTexts(xml string, re *regexp.Regexp) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(xml, -1) {
		text := breakTag.ReplaceAllString(m[1], " ")
		text = html.UnescapeString(anyTag.ReplaceAllString(text, ""))
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the contents of the named entry, or nil if there is none.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}
