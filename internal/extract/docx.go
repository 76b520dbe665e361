package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// Override elements carry PartName and ContentType in either order.
var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

var docxParagraph = element("w:p")

// findDocxMainDocumentPath returns the main document part named in [Content_Types].xml,
// without the leading slash, or "" if none is declared.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

// queriesFromDOCX returns one query per non-empty paragraph. Runs inside a paragraph are
// concatenated, so titles split across formatting runs stay whole.
func queriesFromDOCX(content []byte) ([]string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return elementTexts(string(docXML), docxParagraph), nil
}
