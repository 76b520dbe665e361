package extract

import "fmt"

const odsContentPath = "content.xml"

var odsCell = element("table:table-cell")

// queriesFromODS returns one query per non-empty spreadsheet cell.
func queriesFromODS(content []byte) ([]string, error) {
	zr, err := openZip(content, "ODS")
	if err != nil {
		return nil, err
	}
	xml, err := readZipFile(zr, odsContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract ODS: %w", err)
	}
	if xml == nil {
		return nil, fmt.Errorf("extract ODS: %s not found", odsContentPath)
	}
	return elementTexts(string(xml), odsCell), nil
}
