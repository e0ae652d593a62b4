package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/horizon/backend/internal/dataset"
)

// artifactFile is the serialized model state inside an artifact dir.
const artifactFile = "model.json"

const seasonLength = 7

// Baseline is the built-in forecasting engine: it scores a small set of
// statistical baselines (last value, seasonal naive, drift) on a
// holdout split and keeps the winner. It stands in for the external
// AutoML runtimes wherever those are not wired, and gives every
// strategy a working fit/predict path.
type Baseline struct {
	name string
}

// NewBaseline creates a baseline engine reporting under the given name.
func NewBaseline(name string) *Baseline {
	return &Baseline{name: name}
}

// Name returns the engine name.
func (b *Baseline) Name() string {
	return b.name
}

// artifact is the persisted model state.
type artifact struct {
	Engine      string                 `json:"engine"`
	Best        string                 `json:"best"`
	StepSeconds int64                  `json:"step_seconds"`
	Series      map[string]seriesState `json:"series"`
}

type seriesState struct {
	LastTimestamp time.Time `json:"last_timestamp"`
	Recent        []float64 `json:"recent"` // newest last
}

var baselineModels = []string{"last_value", "seasonal_naive", "drift"}

// Fit evaluates the candidate baselines on a per-series holdout of
// horizon points, persists the per-series state under artifactDir and
// returns the scored leaderboard.
func (b *Baseline) Fit(ctx context.Context, records []dataset.Record, params Params, artifactDir string) (*FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no trainable records")
	}

	ds := &dataset.Dataset{Records: records}
	order, groups := ds.GroupByItem()

	scores := make(map[string]float64, len(baselineModels))
	counts := make(map[string]int, len(baselineModels))

	art := artifact{
		Engine:      b.name,
		StepSeconds: int64(inferStep(groups, order).Seconds()),
		Series:      make(map[string]seriesState, len(order)),
	}

	for _, itemID := range order {
		targets := targetsOf(groups[itemID])
		if len(targets) == 0 {
			continue
		}

		// Holdout evaluation when the series is long enough.
		if len(targets) > 2*params.Horizon && params.Horizon > 0 {
			train := targets[:len(targets)-params.Horizon]
			holdout := targets[len(targets)-params.Horizon:]
			for _, model := range baselineModels {
				forecast := forecastSeries(model, train, params.Horizon)
				scores[model] += meanAbsError(forecast, holdout)
				counts[model]++
			}
		}

		keep := 2 * seasonLength
		if len(targets) < keep {
			keep = len(targets)
		}
		group := groups[itemID]
		art.Series[itemID] = seriesState{
			LastTimestamp: group[len(group)-1].Timestamp,
			Recent:        targets[len(targets)-keep:],
		}
	}

	result := &FitResult{Models: make([]ModelScore, 0, len(baselineModels))}
	for _, model := range baselineModels {
		score := 0.0
		if counts[model] > 0 {
			score = scores[model] / float64(counts[model])
		}
		result.Models = append(result.Models, ModelScore{Model: model, ScoreVal: score})
	}
	sort.SliceStable(result.Models, func(i, j int) bool {
		return result.Models[i].ScoreVal < result.Models[j].ScoreVal
	})
	result.Best = result.Models[0].Model
	art.Best = result.Best

	if err := writeArtifact(artifactDir, &art); err != nil {
		return nil, err
	}

	return result, nil
}

// Predict loads the persisted state and forecasts horizon points per
// series, continuing from each series' last fitted timestamp.
func (b *Baseline) Predict(ctx context.Context, records []dataset.Record, params Params, artifactDir string) ([]dataset.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art, err := readArtifact(artifactDir)
	if err != nil {
		return nil, err
	}

	step := time.Duration(art.StepSeconds) * time.Second
	if step <= 0 {
		step = 24 * time.Hour
	}

	// Fresh observations for a known series refresh its state.
	if len(records) > 0 {
		ds := &dataset.Dataset{Records: records}
		order, groups := ds.GroupByItem()
		for _, itemID := range order {
			group := groups[itemID]
			art.Series[itemID] = seriesState{
				LastTimestamp: group[len(group)-1].Timestamp,
				Recent:        targetsOf(group),
			}
		}
	}

	items := make([]string, 0, len(art.Series))
	for itemID := range art.Series {
		items = append(items, itemID)
	}
	sort.Strings(items)

	out := make([]dataset.Record, 0, len(items)*params.Horizon)
	for _, itemID := range items {
		state := art.Series[itemID]
		forecast := forecastSeries(art.Best, state.Recent, params.Horizon)
		for i, value := range forecast {
			out = append(out, dataset.Record{
				ItemID:    itemID,
				Timestamp: state.LastTimestamp.Add(time.Duration(i+1) * step),
				Target:    value,
			})
		}
	}

	return out, nil
}

// forecastSeries produces horizon values from the given history.
func forecastSeries(model string, history []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	if len(history) == 0 {
		return out
	}

	last := history[len(history)-1]

	switch model {
	case "seasonal_naive":
		season := seasonLength
		if len(history) < season {
			season = 1
		}
		for i := 0; i < horizon; i++ {
			out[i] = history[len(history)-season+(i%season)]
		}
	case "drift":
		slope := 0.0
		if len(history) > 1 {
			slope = (last - history[0]) / float64(len(history)-1)
		}
		for i := 0; i < horizon; i++ {
			out[i] = last + slope*float64(i+1)
		}
	default: // last_value
		for i := 0; i < horizon; i++ {
			out[i] = last
		}
	}

	return out
}

func meanAbsError(forecast, actual []float64) float64 {
	n := len(forecast)
	if len(actual) < n {
		n = len(actual)
	}
	if n == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(forecast[i] - actual[i])
	}
	return sum / float64(n)
}

// inferStep takes the smallest positive spacing seen in the first
// series as the sampling step, defaulting to daily.
func inferStep(groups map[string][]dataset.Record, order []string) time.Duration {
	for _, itemID := range order {
		group := groups[itemID]
		best := time.Duration(0)
		for i := 1; i < len(group); i++ {
			d := group[i].Timestamp.Sub(group[i-1].Timestamp)
			if d > 0 && (best == 0 || d < best) {
				best = d
			}
		}
		if best > 0 {
			return best
		}
	}
	return 24 * time.Hour
}

func targetsOf(group []dataset.Record) []float64 {
	targets := make([]float64, 0, len(group))
	for _, rec := range group {
		if !rec.Missing {
			targets = append(targets, rec.Target)
		}
	}
	return targets
}

func writeArtifact(dir string, art *artifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, artifactFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	return nil
}

// ErrModelNotFound is returned by Predict when no fitted artifact
// exists in the session directory.
var ErrModelNotFound = fmt.Errorf("model not found")

func readArtifact(dir string) (*artifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, artifactFile))
	if os.IsNotExist(err) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if art.Series == nil {
		art.Series = make(map[string]seriesState)
	}
	return &art, nil
}
