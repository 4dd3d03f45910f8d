package sync

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

var spreadsheetExtensions = []string{".xlsx", ".xlsm", ".xls"}

// IsSpreadsheetName reports whether a stored file looks like a workbook the
// engine should import.
func IsSpreadsheetName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range spreadsheetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ReadWorkbookRows opens a workbook from memory and returns every row of its
// first worksheet as strings. The header row is included; callers drop it.
func ReadWorkbookRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}
