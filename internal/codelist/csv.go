package codelist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// readCSV reads order codes from a CSV export. The first row is treated as
// a header and skipped. Rows with differing field counts are tolerated
// (legacy exports pad trailing columns inconsistently).
func readCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open code list: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var codes []string
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read code list %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(record) == 0 {
			continue
		}
		if code := cleanCode(record[0]); code != "" {
			codes = append(codes, code)
		}
	}

	return codes, nil
}
