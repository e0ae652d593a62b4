package jobs

import (
	"context"

	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// SessionCleanupJob removes session directories older than the
// configured retention window.
type SessionCleanupJob struct {
	store  *session.Store
	logger *logger.Logger
}

// NewSessionCleanupJob creates a session cleanup job.
func NewSessionCleanupJob(store *session.Store, log *logger.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		store:  store,
		logger: log,
	}
}

// Name returns the job name.
func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

// Schedule returns the cron schedule (every 6 hours).
func (j *SessionCleanupJob) Schedule() string {
	return "0 0 */6 * * *"
}

// Run executes the cleanup sweep.
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	removed, err := j.store.CleanupOldSessions()
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Session cleanup completed")
	}

	return nil
}
