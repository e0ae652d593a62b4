package strategy

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/horizon/backend/internal/contracts"
)

// WriteLeaderboard persists leaderboard entries as CSV. The engine
// column is included only for combined leaderboards.
func WriteLeaderboard(path string, entries []contracts.LeaderboardEntry, withEngine bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create leaderboard file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"model", "score_val"}
	if withEngine {
		header = append(header, "engine")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write leaderboard header: %w", err)
	}

	for _, e := range entries {
		row := []string{e.Model, strconv.FormatFloat(e.ScoreVal, 'g', -1, 64)}
		if withEngine {
			row = append(row, e.Engine)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write leaderboard row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// ReadLeaderboard loads a leaderboard CSV, tagging every entry with the
// given engine name when the file itself carries none.
func ReadLeaderboard(path, engineName string) ([]contracts.LeaderboardEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty leaderboard file")
	}

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		return -1
	}

	modelIdx, scoreIdx, engineIdx := col("model"), col("score_val"), col("engine")
	if modelIdx < 0 || scoreIdx < 0 {
		return nil, fmt.Errorf("leaderboard missing model/score_val columns")
	}

	entries := make([]contracts.LeaderboardEntry, 0, len(records)-1)
	for _, row := range records[1:] {
		score, err := strconv.ParseFloat(row[scoreIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("bad score_val %q: %w", row[scoreIdx], err)
		}

		entry := contracts.LeaderboardEntry{
			Model:    row[modelIdx],
			ScoreVal: score,
			Engine:   engineName,
		}
		if engineIdx >= 0 && row[engineIdx] != "" {
			entry.Engine = row[engineIdx]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// MergeLeaderboards concatenates each strategy's persisted leaderboard
// into one combined file at <sessionDir>/leaderboard.csv, tagging rows
// by originating strategy. A missing per-strategy leaderboard (failed
// or skipped strategy) is skipped, not an error.
func MergeLeaderboards(sessionDir string, strategyNames []string) ([]contracts.LeaderboardEntry, error) {
	combined := make([]contracts.LeaderboardEntry, 0)

	for _, name := range strategyNames {
		path := filepath.Join(sessionDir, name, LeaderboardFile)
		entries, err := ReadLeaderboard(path, name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("merge %s leaderboard: %w", name, err)
		}
		combined = append(combined, entries...)
	}

	if err := WriteLeaderboard(filepath.Join(sessionDir, LeaderboardFile), combined, true); err != nil {
		return nil, err
	}

	return combined, nil
}
