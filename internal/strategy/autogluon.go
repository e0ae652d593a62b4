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

// AutoGluon is the shared-access strategy: its training calls take the
// coordination lock in read mode, so concurrent AutoGluon sessions may
// overlap each other but never a PyCaret fit.
type AutoGluon struct {
	base
	lock *coordination.EngineLock
}

// NewAutoGluon creates the AutoGluon strategy around an engine.
func NewAutoGluon(eng engine.Engine, lock *coordination.EngineLock, store *session.Store, log *logger.Logger) *AutoGluon {
	return &AutoGluon{
		base: base{
			name:   NameAutoGluon,
			eng:    eng,
			store:  store,
			logger: log.WithComponent("strategy.autogluon"),
		},
		lock: lock,
	}
}

// Name returns the strategy name.
func (s *AutoGluon) Name() string {
	return NameAutoGluon
}

// Train fits the engine under shared lock access and persists the
// leaderboard and metadata snapshot under <session>/autogluon/.
func (s *AutoGluon) Train(ctx context.Context, records []dataset.Record, params *contracts.TrainingParams, sessionID string) error {
	dir, err := s.strategyDir(sessionID)
	if err != nil {
		return err
	}

	s.acquireShared(sessionID)
	defer s.lock.ReleaseRead()

	s.logger.WithField("session_id", sessionID).Info("AutoGluon training started")

	fit, err := s.eng.Fit(ctx, records, engineParams(params), dir)
	if err != nil {
		return fmt.Errorf("autogluon fit: %w", err)
	}

	if err := s.persistResults(dir, params, fit); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"best_model": fit.Best,
		"models":     len(fit.Models),
	}).Info("AutoGluon training completed")

	return nil
}

// acquireShared takes read access, surfacing contention through the
// session's status document: a failed non-blocking attempt records that
// the exclusive engine holds the lock, and the flag is written back to
// false once read access is actually obtained (or immediately when no
// contention was observed). The flag is reporting only; metadata write
// failures inside SetLockContention are logged and swallowed there.
func (s *AutoGluon) acquireShared(sessionID string) {
	if s.lock.TryAcquireRead() {
		s.store.SetLockContention(sessionID, false)
		return
	}

	s.logger.WithField("session_id", sessionID).
		Info("Waiting for exclusive engine to release the coordination lock")
	s.store.SetLockContention(sessionID, true)

	s.lock.AcquireRead()
	s.store.SetLockContention(sessionID, false)
}

// Predict loads the fitted artifact and forecasts.
func (s *AutoGluon) Predict(ctx context.Context, records []dataset.Record, sessionID string, params *contracts.TrainingParams) ([]dataset.Record, error) {
	return s.predict(ctx, records, sessionID, params)
}
