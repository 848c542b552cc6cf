package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
)

// extractXLS returns the cells of a legacy BIFF .xls workbook, one tab-separated
// line per row, each sheet introduced by its name.
func extractXLS(content []byte) (string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open XLS: %w", err)
	}
	var buf strings.Builder
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		rows := sheet.GetRows()
		if len(rows) == 0 {
			continue
		}
		buf.WriteString(sheet.GetName())
		buf.WriteByte('\n')
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(xlsRowValues(row.GetCols()), "\t"), "\t")
			if line == "" {
				continue
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func xlsRowValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		val := col.GetString()
		if val == "" {
			if num := col.GetFloat64(); num != 0 {
				val = strconv.FormatFloat(num, 'f', -1, 64)
			} else if in := col.GetInt64(); in != 0 {
				val = strconv.FormatInt(in, 10)
			}
		}
		out = append(out, strings.TrimSpace(val))
	}
	return out
}
