package codelist

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads order codes from the first sheet of an XLSX workbook.
// The first row is treated as a header and skipped.
func readXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open code list: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("code list %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read code list %s: %w", path, err)
	}

	var codes []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if code := cleanCode(row[0]); code != "" {
			codes = append(codes, code)
		}
	}

	return codes, nil
}
