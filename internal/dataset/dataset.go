package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/horizon/backend/internal/contracts"
)

// DefaultItemID is the series identity used when the caller configured
// no identity column: the whole dataset is treated as one series.
const DefaultItemID = "series"

// timestampLayouts are tried in order when parsing date cells.
var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// Record is one canonical observation: (item_id, timestamp, target).
// Missing marks targets that were absent or unparseable in the source
// row; the fill step clears it.
type Record struct {
	ItemID     string
	Timestamp  time.Time
	Target     float64
	Missing    bool
	Covariates map[string]float64
}

// Dataset is the canonical tabular form the pipeline operates on after
// user columns are renamed to the fixed (item_id, timestamp, target)
// triple.
type Dataset struct {
	Records []Record
}

// RawTable is a parsed CSV upload before canonicalization.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// ReadCSV parses a CSV stream into a raw table. The first row is the
// header.
func ReadCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV input")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	return &RawTable{
		Header: header,
		Rows:   records[1:],
	}, nil
}

// ColumnIndex returns the position of a named column.
func (t *RawTable) ColumnIndex(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// Canonicalize renames the caller's date/identity/target columns to the
// canonical triple and parses cell values. Rows with unparseable dates
// are rejected; rows with unparseable targets survive with Missing set.
func Canonicalize(t *RawTable, params *contracts.TrainingParams) (*Dataset, error) {
	dateIdx, ok := t.ColumnIndex(params.DateColumn)
	if !ok {
		return nil, fmt.Errorf("date column %q not found", params.DateColumn)
	}

	targetIdx, ok := t.ColumnIndex(params.TargetColumn)
	if !ok {
		return nil, fmt.Errorf("target column %q not found", params.TargetColumn)
	}

	itemIdx := -1
	if params.ItemIDColumn != "" {
		idx, ok := t.ColumnIndex(params.ItemIDColumn)
		if !ok {
			return nil, fmt.Errorf("item id column %q not found", params.ItemIDColumn)
		}
		itemIdx = idx
	}

	ds := &Dataset{Records: make([]Record, 0, len(t.Rows))}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i+1, len(row), len(t.Header))
		}

		ts, err := ParseTimestamp(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		rec := Record{
			ItemID:    DefaultItemID,
			Timestamp: ts,
		}
		if itemIdx >= 0 {
			rec.ItemID = strings.TrimSpace(row[itemIdx])
		}

		target, err := parseTarget(row[targetIdx])
		if err != nil {
			rec.Missing = true
		} else {
			rec.Target = target
		}

		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

// ParseTimestamp parses a date cell trying the supported layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseTarget(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty target")
	}
	return strconv.ParseFloat(s, 64)
}

// GroupByItem partitions records per series, preserving first-seen item
// order and sorting each group by timestamp.
func (d *Dataset) GroupByItem() ([]string, map[string][]Record) {
	order := make([]string, 0)
	groups := make(map[string][]Record)

	for _, rec := range d.Records {
		if _, seen := groups[rec.ItemID]; !seen {
			order = append(order, rec.ItemID)
		}
		groups[rec.ItemID] = append(groups[rec.ItemID], rec)
	}

	for _, id := range order {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Timestamp.Before(g[j].Timestamp)
		})
		groups[id] = g
	}

	return order, groups
}
