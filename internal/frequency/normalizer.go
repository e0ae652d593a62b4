// Package frequency regularizes irregular per-series observations onto
// a uniform time grid and decides which series carry enough history to
// train on versus being forced into a naive carry-forward fallback.
package frequency

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// Normalizer converts per-series observations to a uniform grid.
type Normalizer struct {
	logger *logger.Logger
}

// NewNormalizer creates a frequency normalizer.
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log.WithComponent("frequency.normalizer")}
}

// Result partitions the dataset into trainable series and naive
// fallback rows, with a human-readable message per affected series.
type Result struct {
	Trainable []dataset.Record
	Naive     []dataset.Record
	Messages  []string
}

// MinRequired is the minimum regularized observation count a series
// needs to be trainable: max(horizon+1, 5) + horizon.
func MinRequired(horizon int) int {
	base := horizon + 1
	if base < 5 {
		base = 5
	}
	return base + horizon
}

// ParseStep converts a frequency token to a fixed time step.
// Accepted: "D"/"daily", "H"/"hourly", "W"/"weekly", and "<n>m" /
// "<n>min" minute steps.
func ParseStep(freq string) (time.Duration, error) {
	f := strings.ToLower(strings.TrimSpace(freq))
	switch f {
	case "d", "daily", "1d":
		return 24 * time.Hour, nil
	case "h", "hourly", "1h":
		return time.Hour, nil
	case "w", "weekly", "1w":
		return 7 * 24 * time.Hour, nil
	}

	for _, suffix := range []string{"min", "m", "t"} {
		if strings.HasSuffix(f, suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(f, suffix))
			if err == nil && n > 0 {
				return time.Duration(n) * time.Minute, nil
			}
		}
	}

	return 0, fmt.Errorf("unsupported frequency %q", freq)
}

// Normalize regularizes every series onto the requested frequency.
// An empty or "auto" frequency passes the input through unchanged.
// Series whose regularized length falls below MinRequired contribute
// exactly horizon carry-forward rows to the naive set instead of the
// trainable set.
func (n *Normalizer) Normalize(ds *dataset.Dataset, freq string, horizon int) (*Result, error) {
	result := &Result{Messages: []string{}}

	if freq == "" || strings.EqualFold(freq, "auto") {
		result.Trainable = append(result.Trainable, ds.Records...)
		return result, nil
	}

	step, err := ParseStep(freq)
	if err != nil {
		return nil, err
	}

	minRequired := MinRequired(horizon)
	order, groups := ds.GroupByItem()

	for _, itemID := range order {
		group := groups[itemID]
		if len(group) == 0 {
			// Absence is valid: contributes nothing, must not raise.
			continue
		}

		regular := reindex(group, step)

		if len(regular) > len(group) {
			result.Messages = append(result.Messages, fmt.Sprintf(
				"series %q extended to frequency %s: %d -> %d rows",
				itemID, freq, len(group), len(regular)))
			n.logger.WithFields(map[string]interface{}{
				"item_id": itemID,
				"before":  len(group),
				"after":   len(regular),
			}).Debug("Series extended to target frequency")
		}

		if len(regular) < minRequired {
			last := regular[len(regular)-1]
			result.Naive = append(result.Naive, carryForward(last, step, horizon)...)
			result.Messages = append(result.Messages, fmt.Sprintf(
				"series %q has insufficient history after normalization (%d < %d): naive forecast generated",
				itemID, len(regular), minRequired))
			n.logger.WithFields(map[string]interface{}{
				"item_id":      itemID,
				"rows":         len(regular),
				"min_required": minRequired,
			}).Info("Series diverted to naive fallback")
			continue
		}

		result.Trainable = append(result.Trainable, regular...)
	}

	return result, nil
}

// reindex builds the full regular range spanning the group's observed
// min/max timestamp and forward-fills the target across reintroduced
// gaps. The group must be sorted by timestamp. The first observed value
// is never altered.
func reindex(group []dataset.Record, step time.Duration) []dataset.Record {
	byTime := make(map[int64]dataset.Record, len(group))
	for _, rec := range group {
		byTime[rec.Timestamp.UnixNano()] = rec
	}

	first := group[0]
	last := group[len(group)-1].Timestamp

	out := make([]dataset.Record, 0, len(group))
	prev := first
	for ts := first.Timestamp; !ts.After(last); ts = ts.Add(step) {
		if rec, ok := byTime[ts.UnixNano()]; ok {
			out = append(out, rec)
			prev = rec
			continue
		}

		// Gap: forward-fill from the most recent prior observation.
		filled := prev
		filled.Timestamp = ts
		out = append(out, filled)
	}

	return out
}

// carryForward produces exactly horizon synthetic rows continuing from
// the series' last observation at the target step, target held constant
// at the last observed value.
func carryForward(last dataset.Record, step time.Duration, horizon int) []dataset.Record {
	rows := make([]dataset.Record, 0, horizon)
	for i := 1; i <= horizon; i++ {
		rows = append(rows, dataset.Record{
			ItemID:    last.ItemID,
			Timestamp: last.Timestamp.Add(time.Duration(i) * step),
			Target:    last.Target,
		})
	}
	return rows
}
