package strategy

import (
	"context"
	"fmt"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/coordination"
	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/internal/engine"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// PyCaret is the exclusive strategy: its training calls take the
// coordination lock in write mode, draining every shared holder first
// and excluding all of them until release.
type PyCaret struct {
	base
	lock *coordination.EngineLock
}

// NewPyCaret creates the PyCaret strategy around an engine.
func NewPyCaret(eng engine.Engine, lock *coordination.EngineLock, store *session.Store, log *logger.Logger) *PyCaret {
	return &PyCaret{
		base: base{
			name:   NamePyCaret,
			eng:    eng,
			store:  store,
			logger: log.WithComponent("strategy.pycaret"),
		},
		lock: lock,
	}
}

// Name returns the strategy name.
func (s *PyCaret) Name() string {
	return NamePyCaret
}

// Train fits the engine under exclusive lock access and persists the
// leaderboard and metadata snapshot under <session>/pycaret/.
func (s *PyCaret) Train(ctx context.Context, records []dataset.Record, params *contracts.TrainingParams, sessionID string) error {
	dir, err := s.strategyDir(sessionID)
	if err != nil {
		return err
	}

	s.lock.AcquireWrite()
	defer s.lock.ReleaseWrite()

	s.logger.WithField("session_id", sessionID).Info("PyCaret training started")

	fit, err := s.eng.Fit(ctx, records, engineParams(params), dir)
	if err != nil {
		return fmt.Errorf("pycaret fit: %w", err)
	}

	if err := s.persistResults(dir, params, fit); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"best_model": fit.Best,
		"models":     len(fit.Models),
	}).Info("PyCaret training completed")

	return nil
}

// Predict loads the fitted artifact and forecasts.
func (s *PyCaret) Predict(ctx context.Context, records []dataset.Record, sessionID string, params *contracts.TrainingParams) ([]dataset.Record, error) {
	return s.predict(ctx, records, sessionID, params)
}
