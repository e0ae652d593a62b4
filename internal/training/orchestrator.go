// Package training drives the end-to-end training pipeline for one
// session and keeps its status document current.
package training

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/internal/frequency"
	"github.com/wonny/horizon/backend/internal/notify"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/internal/strategy"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// Progress checkpoints. Cooperative hints for polling UIs, not used for
// control flow.
const (
	progressValidated = 10
	progressHoliday   = 20
	progressFilled    = 30
	progressPrepared  = 40
	progressTrained   = 90
	progressMetadata  = 95
	progressDone      = 100
)

// StrategyResult is the tagged outcome of one strategy's training step.
type StrategyResult struct {
	Strategy string
	Err      error
}

// Orchestrator sequences the training pipeline: validate, holiday
// feature, missing-value fill, frequency normalization, one strategy at
// a time, leaderboard merge, completion. Any unrecovered failure flips
// the session to failed with a descriptive error; nothing is retried at
// this layer.
type Orchestrator struct {
	store      *session.Store
	normalizer *frequency.Normalizer
	registry   *strategy.Registry
	notifier   *notify.Notifier // optional

	// continueOnFailure decides whether one strategy failing aborts the
	// session or is skipped so the remaining strategies still surface.
	continueOnFailure bool

	logger *logger.Logger
}

// NewOrchestrator creates a training orchestrator.
func NewOrchestrator(store *session.Store, normalizer *frequency.Normalizer, registry *strategy.Registry, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		normalizer: normalizer,
		registry:   registry,
		logger:     log.WithComponent("training.orchestrator"),
	}
}

// WithNotifier attaches an optional completion webhook.
func (o *Orchestrator) WithNotifier(n *notify.Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithContinueOnFailure switches the per-strategy failure policy from
// abort (default) to skip-and-continue.
func (o *Orchestrator) WithContinueOnFailure(enabled bool) *Orchestrator {
	o.continueOnFailure = enabled
	return o
}

// Train runs the whole pipeline for one session. The session document
// must already exist in the initializing state; the caller owns id
// uniqueness.
func (o *Orchestrator) Train(ctx context.Context, table *dataset.RawTable, params *contracts.TrainingParams, sessionID, originalFilename string) error {
	log := o.logger.WithField("session_id", sessionID)
	startTime := time.Now()

	params.ApplyDefaults()

	sessionDir, err := o.store.SessionDir(sessionID)
	if err != nil {
		return o.fail(sessionID, err)
	}

	if err := o.store.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusRunning
		s.StartTime = session.Now()
		s.SessionPath = sessionDir
		s.OriginalFilename = originalFilename
		s.TrainingParameters = params
	}); err != nil {
		// Initial status persistence is the primary operation here:
		// treat its failure as fatal.
		return o.fail(sessionID, fmt.Errorf("failed to initialize session status: %w", err))
	}

	log.Info("Training pipeline started")

	// 1. Validation. Terminal on failure, no partial progress retained.
	if err := params.Validate(); err != nil {
		return o.fail(sessionID, err)
	}
	if result := dataset.Validate(table, params); !result.IsValid {
		return o.fail(sessionID, fmt.Errorf("dataset validation failed: %s", strings.Join(result.Errors, "; ")))
	}
	o.checkpoint(sessionID, progressValidated)

	ds, err := dataset.Canonicalize(table, params)
	if err != nil {
		return o.fail(sessionID, err)
	}

	// 2. Calendar-holiday feature.
	if params.HolidayFeature {
		dataset.AddHolidayFeature(ds)
	}
	o.checkpoint(sessionID, progressHoliday)

	// 3. Missing-value filling.
	if err := dataset.FillMissing(ds, params.FillMethod, params.FillGroupColumns); err != nil {
		return o.fail(sessionID, err)
	}
	o.checkpoint(sessionID, progressFilled)

	// 4. Frequency normalization and trainable/naive partition.
	norm, err := o.normalizer.Normalize(ds, params.Frequency, params.PredictionHorizon)
	if err != nil {
		return o.fail(sessionID, err)
	}

	if err := WriteTrainableSnapshot(sessionDir, norm.Trainable); err != nil {
		return o.fail(sessionID, err)
	}
	if err := WriteNaiveForecast(sessionDir, sessionID, norm.Naive, params); err != nil {
		return o.fail(sessionID, err)
	}

	messages := norm.Messages
	if err := o.store.Update(sessionID, func(s *session.Session) {
		s.Messages = append(s.Messages, messages...)
		s.Progress = progressPrepared
	}); err != nil {
		log.WithError(err).Warn("Failed to record preprocessing messages")
	}

	// 5. Strategies, strictly one at a time from this session's view.
	// Cross-session coordination happens inside each strategy via the
	// engine lock.
	trainable := norm.Trainable
	results := o.runStrategies(ctx, trainable, params, sessionID)

	// Best-effort frame release before the merge/completion steps.
	ds.Records = nil
	norm.Trainable = nil
	trainable = nil

	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Strategy, r.Err))
		}
	}
	if len(failed) > 0 && !o.continueOnFailure {
		return o.fail(sessionID, fmt.Errorf("strategy training failed: %s", strings.Join(failed, "; ")))
	}
	o.checkpoint(sessionID, progressTrained)

	// 6. Leaderboard merge. Missing per-strategy files are skipped.
	combined, err := strategy.MergeLeaderboards(sessionDir, o.strategyNames(params))
	if err != nil {
		return o.fail(sessionID, err)
	}
	o.checkpoint(sessionID, progressMetadata)

	// 7. Completion.
	if err := o.store.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusCompleted
		s.Progress = progressDone
		s.EndTime = session.Now()
		s.Leaderboard = combined
		for _, e := range combined {
			if e.Engine == strategy.NamePyCaret {
				s.PyCaret = append(s.PyCaret, e)
			}
		}
		for _, f := range failed {
			s.Messages = append(s.Messages, "strategy skipped: "+f)
		}
	}); err != nil {
		return o.fail(sessionID, err)
	}

	log.WithFields(map[string]interface{}{
		"duration": time.Since(startTime).Seconds(),
		"models":   len(combined),
	}).Info("Training pipeline completed")

	o.notifyFinished(sessionID)

	return nil
}

// runStrategies executes every selected strategy sequentially and
// returns a tagged result per strategy.
func (o *Orchestrator) runStrategies(ctx context.Context, records []dataset.Record, params *contracts.TrainingParams, sessionID string) []StrategyResult {
	names := o.strategyNames(params)
	results := make([]StrategyResult, 0, len(names))

	if len(records) == 0 {
		// Every series was diverted to the naive fallback; nothing to
		// fit, nothing to fail.
		o.logger.WithField("session_id", sessionID).
			Warn("No trainable series after normalization; skipping strategies")
		if err := o.store.Update(sessionID, func(s *session.Session) {
			s.Messages = append(s.Messages, "no trainable series after normalization: all forecasts are naive")
		}); err != nil {
			o.logger.WithError(err).Warn("Failed to record empty-trainable message")
		}
		return results
	}

	for i, name := range names {
		st, ok := o.registry.Get(name)
		if !ok {
			results = append(results, StrategyResult{
				Strategy: name,
				Err:      fmt.Errorf("unknown strategy %q", name),
			})
			continue
		}

		err := st.Train(ctx, records, params, sessionID)
		results = append(results, StrategyResult{Strategy: name, Err: err})

		if err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{
				"session_id": sessionID,
				"strategy":   name,
			}).Error("Strategy training failed")
			if !o.continueOnFailure {
				break
			}
		}

		progress := progressPrepared + (i+1)*(progressTrained-progressPrepared)/len(names)
		o.checkpoint(sessionID, progress)
	}

	return results
}

// Predict forecasts with one trained strategy of an existing session.
// When no fresh table is supplied the persisted trainable snapshot is
// reused without recomputation. The returned params let the caller
// rename canonical columns back to the original ones.
func (o *Orchestrator) Predict(ctx context.Context, sessionID, engineName string, table *dataset.RawTable) ([]dataset.Record, *contracts.TrainingParams, error) {
	sess, err := o.store.Load(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.TrainingParameters == nil {
		return nil, nil, fmt.Errorf("session %s not found", sessionID)
	}
	params := sess.TrainingParameters

	if engineName == "" {
		names := o.strategyNames(params)
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("session %s has no strategies", sessionID)
		}
		engineName = names[0]
	}

	st, ok := o.registry.Get(engineName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown strategy %q", engineName)
	}

	var records []dataset.Record
	if table != nil {
		ds, err := dataset.Canonicalize(table, params)
		if err != nil {
			return nil, nil, err
		}
		records = ds.Records
	} else {
		sessionDir, err := o.store.SessionDir(sessionID)
		if err != nil {
			return nil, nil, err
		}
		records, err = ReadTrainableSnapshot(sessionDir)
		if err != nil {
			return nil, nil, err
		}
	}

	predictions, err := st.Predict(ctx, records, sessionID, params)
	if err != nil {
		return nil, nil, err
	}

	return predictions, params, nil
}

// strategyNames resolves the engine list for a session: the request's
// override when present, otherwise the registry order.
func (o *Orchestrator) strategyNames(params *contracts.TrainingParams) []string {
	if len(params.Engines) > 0 {
		return params.Engines
	}
	return o.registry.Names()
}

// checkpoint advances the progress hint; failures are logged and
// swallowed since progress is advisory.
func (o *Orchestrator) checkpoint(sessionID string, progress int) {
	if err := o.store.Update(sessionID, func(s *session.Session) {
		if progress > s.Progress {
			s.Progress = progress
		}
	}); err != nil {
		o.logger.WithError(err).WithFields(map[string]interface{}{
			"session_id": sessionID,
			"progress":   progress,
		}).Warn("Failed to persist progress checkpoint")
	}
}

// fail flips the session to failed with the error message, persists it
// and returns the original error.
func (o *Orchestrator) fail(sessionID string, cause error) error {
	o.logger.WithError(cause).WithField("session_id", sessionID).
		Error("Training pipeline failed")

	if err := o.store.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusFailed
		s.Error = cause.Error()
		s.EndTime = session.Now()
	}); err != nil {
		o.logger.WithError(err).WithField("session_id", sessionID).
			Error("Failed to persist failure status")
	}

	o.notifyFinished(sessionID)

	return cause
}

// notifyFinished delivers the terminal document to the webhook, when
// one is configured.
func (o *Orchestrator) notifyFinished(sessionID string) {
	if o.notifier == nil {
		return
	}
	sess, err := o.store.Load(sessionID)
	if err != nil || sess == nil {
		return
	}
	go o.notifier.SessionFinished(sess)
}
