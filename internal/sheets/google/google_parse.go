package google

import (
	"fmt"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/ingest"
)

// parseValues converts a values matrix (as returned by the Sheets API) into
// transactions. The first row must carry the export header. The API omits
// trailing empty cells, so short rows are padded to the header width; rows
// wider than the header are dropped like malformed CSV lines.
func parseValues(values [][]interface{}) ([]core.Transaction, error) {
	if len(values) == 0 {
		return nil, ingest.ErrMissingHeader
	}
	header := toStrings(values[0])
	if indexOf(header, ingest.FieldDate) == -1 || indexOf(header, ingest.FieldAmount) == -1 {
		return nil, fmt.Errorf("unexpected header: missing %s or %s; got headers=%v",
			ingest.FieldDate, ingest.FieldAmount, header)
	}

	rows := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			for i := range padded {
				padded[i] = safeGet(row, i)
			}
			row = padded
		}
		rows = append(rows, row)
	}
	return ingest.ParseRows(header, rows), nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
