// Package strategy wraps each forecasting engine behind one uniform
// contract so the orchestrator can treat heterogeneous AutoML runtimes
// identically. Strategies are interchangeable and independently
// failing: one strategy's failure must not corrupt another's persisted
// artifacts.
package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/internal/engine"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// Strategy names double as session subdirectory names.
const (
	NameAutoGluon = "autogluon"
	NamePyCaret   = "pycaret"
)

// LeaderboardFile is the per-strategy (and combined) leaderboard
// filename.
const LeaderboardFile = "leaderboard.csv"

// MetadataFile is the per-strategy parameter snapshot filename.
const MetadataFile = "model_metadata.json"

// Strategy is the uniform engine contract. Train persists a leaderboard
// and metadata snapshot under the strategy's session subdirectory;
// Predict loads the persisted model artifact and fails with the
// engine's model-not-found condition when absent. Predictions come back
// in canonical columns; the API layer renames them to the caller's
// original column names.
type Strategy interface {
	Name() string

	Train(ctx context.Context, records []dataset.Record, params *contracts.TrainingParams, sessionID string) error

	Predict(ctx context.Context, records []dataset.Record, sessionID string, params *contracts.TrainingParams) ([]dataset.Record, error)
}

// Registry is the ordered list of strategies the orchestrator iterates.
type Registry struct {
	strategies []Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a strategy. Order is training order.
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// All returns the registered strategies in order.
func (r *Registry) All() []Strategy {
	return r.strategies
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Names returns the registered strategy names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// base carries what every engine strategy shares: its session
// subdirectory handling, leaderboard/metadata persistence and the
// wrapped engine.
type base struct {
	name   string
	eng    engine.Engine
	store  *session.Store
	logger *logger.Logger
}

// strategyDir returns (and creates) the strategy's subdirectory under
// the session path.
func (b *base) strategyDir(sessionID string) (string, error) {
	sessionDir, err := b.store.SessionDir(sessionID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(sessionDir, b.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create strategy directory: %w", err)
	}
	return dir, nil
}

// engineParams converts the request into the engine's advisory params.
func engineParams(params *contracts.TrainingParams) engine.Params {
	return engine.Params{
		Horizon:          params.PredictionHorizon,
		EvalMetric:       params.EvalMetric,
		TimeLimitSeconds: params.TimeLimitSeconds,
	}
}

// persistResults writes the strategy's leaderboard CSV and metadata
// JSON snapshot after a successful fit.
func (b *base) persistResults(dir string, params *contracts.TrainingParams, fit *engine.FitResult) error {
	entries := make([]contracts.LeaderboardEntry, 0, len(fit.Models))
	for _, m := range fit.Models {
		entries = append(entries, contracts.LeaderboardEntry{
			Model:    m.Model,
			ScoreVal: m.ScoreVal,
		})
	}
	if err := WriteLeaderboard(filepath.Join(dir, LeaderboardFile), entries, false); err != nil {
		return err
	}

	meta := map[string]interface{}{
		"engine":              b.name,
		"trained_at":          time.Now().UTC().Format(time.RFC3339),
		"training_parameters": params,
		"best_model":          fit.Best,
	}
	if len(fit.EnsembleWeights) > 0 {
		meta["ensemble_weights"] = fit.EnsembleWeights
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write model metadata: %w", err)
	}

	return nil
}

// predict is the shared predict path: artifacts must already exist.
func (b *base) predict(ctx context.Context, records []dataset.Record, sessionID string, params *contracts.TrainingParams) ([]dataset.Record, error) {
	sessionDir, err := b.store.SessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(sessionDir, b.name)

	predictions, err := b.eng.Predict(ctx, records, engineParams(params), dir)
	if err != nil {
		return nil, fmt.Errorf("%s predict: %w", b.name, err)
	}
	return predictions, nil
}
