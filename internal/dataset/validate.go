package dataset

import (
	"fmt"
	"strings"

	"github.com/wonny/horizon/backend/internal/contracts"
)

// Validate checks an uploaded table against the configured column
// mapping before any heavy work begins. It accumulates every problem it
// finds instead of stopping at the first one.
func Validate(t *RawTable, params *contracts.TrainingParams) contracts.ValidationResult {
	result := contracts.ValidationResult{IsValid: true, Errors: []string{}}

	fail := func(format string, args ...interface{}) {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if t == nil || len(t.Header) == 0 {
		fail("dataset has no header row")
		return result
	}
	if len(t.Rows) == 0 {
		fail("dataset has no data rows")
		return result
	}

	dateIdx, ok := t.ColumnIndex(params.DateColumn)
	if !ok {
		fail("date column %q not found in dataset", params.DateColumn)
	}

	_, ok = t.ColumnIndex(params.TargetColumn)
	if !ok {
		fail("target column %q not found in dataset", params.TargetColumn)
	}

	itemIdx := -1
	if params.ItemIDColumn != "" {
		idx, ok := t.ColumnIndex(params.ItemIDColumn)
		if !ok {
			fail("item id column %q not found in dataset", params.ItemIDColumn)
		} else {
			itemIdx = idx
		}
	}

	if !result.IsValid {
		return result
	}

	// Dates must parse; (item, date) pairs must be unique.
	seen := make(map[string]int, len(t.Rows))
	badDates := 0
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			fail("row %d has %d cells, expected %d", i+1, len(row), len(t.Header))
			continue
		}

		ts, err := ParseTimestamp(row[dateIdx])
		if err != nil {
			badDates++
			if badDates <= 3 {
				fail("row %d: unparseable date %q", i+1, strings.TrimSpace(row[dateIdx]))
			}
			continue
		}

		item := DefaultItemID
		if itemIdx >= 0 {
			item = strings.TrimSpace(row[itemIdx])
		}
		key := item + "\x00" + ts.Format("2006-01-02T15:04:05")
		if prev, dup := seen[key]; dup {
			fail("duplicate (item, date) pair at rows %d and %d: %s / %s",
				prev+1, i+1, item, ts.Format("2006-01-02"))
		} else {
			seen[key] = i
		}
	}
	if badDates > 3 {
		fail("%d further rows with unparseable dates", badDates-3)
	}

	return result
}
