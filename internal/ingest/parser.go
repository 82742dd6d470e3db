// Package ingest turns raw transaction exports into typed records.
//
// Parsing is lenient at the row level: a line whose field count differs from
// the header is dropped, empty fields default to "" and unparsable amounts to
// zero. Only file-level problems (unreadable input, missing header) are errors.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

// Header field names of the transaction export.
const (
	FieldID             = "id"
	FieldDate           = "date"
	FieldType           = "type"
	FieldCategory       = "category"
	FieldDescription    = "description"
	FieldAmount         = "amount"
	FieldCurrency       = "currency"
	FieldMerchantID     = "merchantId"
	FieldMerchantName   = "merchantName"
	FieldMCC            = "mcc"
	FieldIsRecurring    = "isRecurring"
	FieldEssentiality   = "essentiality"
	FieldLabelRecurring = "labelRecurring"
	FieldLabelEssential = "labelEssential"
)

// Header is the canonical column order of the export.
var Header = []string{
	FieldID, FieldDate, FieldType, FieldCategory, FieldDescription, FieldAmount,
	FieldCurrency, FieldMerchantID, FieldMerchantName, FieldMCC, FieldIsRecurring,
	FieldEssentiality, FieldLabelRecurring, FieldLabelEssential,
}

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// ErrMissingHeader is returned when the input has no header line.
var ErrMissingHeader = errors.New("missing header line")

// Stats reports how many data rows were kept and dropped by a parse.
type Stats struct {
	Rows    int
	Dropped int
}

// Parse reads comma-delimited text with a header line and returns the
// transactions in input order.
func Parse(r io.Reader) ([]core.Transaction, error) {
	txns, _, err := ParseWithStats(r)
	return txns, err
}

// ParseWithStats is Parse plus row accounting for diagnostics. Input is
// split into lines first, so a malformed quote only loses its own line.
func ParseWithStats(r io.Reader) ([]core.Transaction, Stats, error) {
	var stats Stats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var header []string
	for header == nil && sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		fields, err := splitLine(sc.Text())
		if err != nil {
			return nil, stats, fmt.Errorf("read header: %w", err)
		}
		header = normalizeHeader(fields)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	if header == nil {
		return nil, stats, ErrMissingHeader
	}

	var out []core.Transaction
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, err := splitLine(line)
		if err != nil || len(fields) != len(header) {
			stats.Dropped++
			continue
		}
		out = append(out, recordFromFields(header, fields))
		stats.Rows++
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read row: %w", err)
	}
	return out, stats, nil
}

// splitLine splits one line on commas, honoring quoted fields. A quote left
// open runs to the end of the line and so yields the wrong field count.
func splitLine(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.Read()
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) ([]core.Transaction, error) {
	return Parse(strings.NewReader(s))
}

// ParseRows maps already-split rows (for example spreadsheet values) using
// the same rules as Parse.
func ParseRows(header []string, rows [][]string) []core.Transaction {
	header = normalizeHeader(header)
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		out = append(out, recordFromFields(header, row))
	}
	return out
}

func recordFromFields(header, fields []string) core.Transaction {
	get := func(name string) string {
		for i, h := range header {
			if h == name {
				return strings.TrimSpace(fields[i])
			}
		}
		return ""
	}
	recurring, _ := strconv.ParseBool(get(FieldIsRecurring))
	return core.Transaction{
		ID:             get(FieldID),
		Date:           get(FieldDate),
		Type:           core.TransactionType(get(FieldType)),
		Category:       get(FieldCategory),
		Description:    get(FieldDescription),
		Amount:         core.ParseAmount(get(FieldAmount)),
		Currency:       get(FieldCurrency),
		MerchantID:     get(FieldMerchantID),
		MerchantName:   get(FieldMerchantName),
		MCC:            get(FieldMCC),
		IsRecurring:    recurring,
		Essentiality:   get(FieldEssentiality),
		LabelRecurring: get(FieldLabelRecurring),
		LabelEssential: get(FieldLabelEssential),
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = h
	}
	return out
}
