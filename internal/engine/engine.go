// Package engine defines the contract between AutoML strategies and
// the underlying forecasting runtimes. The heavyweight fit/predict
// internals are external collaborators behind this interface.
package engine

import (
	"context"

	"github.com/wonny/horizon/backend/internal/dataset"
)

// Params is the advisory configuration handed to an engine. The time
// budget is passed through, not enforced here.
type Params struct {
	Horizon          int
	EvalMetric       string
	TimeLimitSeconds int
}

// ModelScore is one trained model variant and its validation score
// (lower is better).
type ModelScore struct {
	Model    string  `json:"model"`
	ScoreVal float64 `json:"score_val"`
}

// FitResult is what an engine reports after training.
type FitResult struct {
	// Models is the engine's leaderboard, best first.
	Models []ModelScore `json:"models"`

	// Best names the winning model variant.
	Best string `json:"best"`

	// EnsembleWeights is set when the winning variant is an ensemble.
	EnsembleWeights map[string]float64 `json:"ensemble_weights,omitempty"`
}

// Engine is one forecasting runtime. Fit persists its model artifacts
// under artifactDir; Predict loads them back from the same directory.
type Engine interface {
	Name() string

	Fit(ctx context.Context, records []dataset.Record, params Params, artifactDir string) (*FitResult, error)

	Predict(ctx context.Context, records []dataset.Record, params Params, artifactDir string) ([]dataset.Record, error)
}
