package e2e

import (
	"archive/zip"
	"bytes"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
// The extractor also supports .pdf, .odt and .rtf; those are not generated here (no
// minimal PDF with extractable text, and .odt/.rtf go through lu4p/cat).
var SupportedFileExtensions = []string{
	".txt", ".csv", ".md",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// MinimalFile returns a minimal document of the given extension holding one query per
// line, paragraph or cell.
func MinimalFile(ext string, queries []string) []byte {
	switch ext {
	case ".docx":
		return minimalDocx(queries)
	case ".pptx":
		return minimalPptx(queries)
	case ".odp":
		return minimalOdp(queries)
	case ".ods":
		return minimalOds(queries)
	case ".xlsx":
		return minimalXlsx(queries)
	default:
		return []byte(strings.Join(queries, "\n") + "\n")
	}
}

func wrapEach(queries []string, open, close string) string {
	var b strings.Builder
	for _, q := range queries {
		b.WriteString(open)
		b.WriteString(html.EscapeString(q))
		b.WriteString(close)
	}
	return b.String()
}

func zipOf(name, content string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create(name)
	_, _ = fw.Write([]byte(content))
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocx(queries []string) []byte {
	body := wrapEach(queries, `<w:p><w:r><w:t>`, `</w:t></w:r></w:p>`)
	return zipOf("word/document.xml", `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+body+`</w:body></w:document>`)
}

func minimalPptx(queries []string) []byte {
	body := wrapEach(queries, `<a:p><a:r><a:t>`, `</a:t></a:r></a:p>`)
	return zipOf("ppt/slides/slide1.xml", `<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody>`+body+`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
}

func minimalOdp(queries []string) []byte {
	body := wrapEach(queries, `<text:p>`, `</text:p>`)
	return zipOf("content.xml", `<office:document><office:body><draw:page><draw:text-box>`+body+`</draw:text-box></draw:page></office:body></office:document>`)
}

func minimalOds(queries []string) []byte {
	body := wrapEach(queries, `<table:table-row><table:table-cell><text:p>`, `</text:p></table:table-cell></table:table-row>`)
	return zipOf("content.xml", `<office:document><office:body><table:table>`+body+`</table:table></office:body></office:document>`)
}

func minimalXlsx(queries []string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for i, q := range queries {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetCellValue("Sheet1", cell, q)
	}
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
