package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/dataset"
)

// TrainingDataFile is the post-normalization trainable snapshot, reused
// by downstream training/prediction calls without recomputation.
const TrainingDataFile = "training_data.parquet"

// NaiveForecastFile names the fallback-series side file for a session.
func NaiveForecastFile(sessionID string) string {
	return fmt.Sprintf("naive_forecast_%s.csv", sessionID)
}

// snapshotRow is the parquet schema of the trainable snapshot.
type snapshotRow struct {
	ItemID    string    `parquet:"item_id,dict"`
	Timestamp time.Time `parquet:"timestamp"`
	Target    float64   `parquet:"target"`
	IsHoliday float64   `parquet:"is_holiday"`
}

// WriteTrainableSnapshot persists the trainable record set under the
// session directory.
func WriteTrainableSnapshot(sessionDir string, records []dataset.Record) error {
	rows := make([]snapshotRow, 0, len(records))
	for _, rec := range records {
		if rec.Missing {
			continue
		}
		rows = append(rows, snapshotRow{
			ItemID:    rec.ItemID,
			Timestamp: rec.Timestamp,
			Target:    rec.Target,
			IsHoliday: rec.Covariates[dataset.HolidayCovariate],
		})
	}

	f, err := os.Create(filepath.Join(sessionDir, TrainingDataFile))
	if err != nil {
		return fmt.Errorf("failed to create training snapshot: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[snapshotRow](f)
	if _, err := w.Write(rows); err != nil {
		return fmt.Errorf("failed to write training snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize training snapshot: %w", err)
	}

	return nil
}

// ReadTrainableSnapshot loads the persisted trainable set back into
// canonical records.
func ReadTrainableSnapshot(sessionDir string) ([]dataset.Record, error) {
	path := filepath.Join(sessionDir, TrainingDataFile)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat training snapshot: %w", err)
	}

	rows, err := parquet.Read[snapshotRow](f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read training snapshot: %w", err)
	}

	records := make([]dataset.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, dataset.Record{
			ItemID:    row.ItemID,
			Timestamp: row.Timestamp,
			Target:    row.Target,
			Covariates: map[string]float64{
				dataset.HolidayCovariate: row.IsHoliday,
			},
		})
	}

	return records, nil
}

// WriteNaiveForecast persists the fallback rows once, as CSV in the
// caller's original column names. No file is written when no series was
// diverted.
func WriteNaiveForecast(sessionDir, sessionID string, records []dataset.Record, params *contracts.TrainingParams) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.Create(filepath.Join(sessionDir, NaiveForecastFile(sessionID)))
	if err != nil {
		return fmt.Errorf("failed to create naive forecast file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(outputHeader(params)); err != nil {
		return fmt.Errorf("failed to write naive forecast header: %w", err)
	}

	for _, rec := range records {
		if err := w.Write(outputRow(rec, params)); err != nil {
			return fmt.Errorf("failed to write naive forecast row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// outputHeader renders the caller's original column names in date,
// identity, target order.
func outputHeader(params *contracts.TrainingParams) []string {
	header := []string{params.DateColumn}
	if params.ItemIDColumn != "" {
		header = append(header, params.ItemIDColumn)
	}
	return append(header, params.TargetColumn)
}

// outputRow renders one canonical record back into the caller's
// columns.
func outputRow(rec dataset.Record, params *contracts.TrainingParams) []string {
	row := []string{FormatTimestamp(rec.Timestamp)}
	if params.ItemIDColumn != "" {
		row = append(row, rec.ItemID)
	}
	return append(row, strconv.FormatFloat(rec.Target, 'g', -1, 64))
}

// FormatTimestamp renders date-only timestamps without a clock part.
func FormatTimestamp(ts time.Time) string {
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04:05")
}
