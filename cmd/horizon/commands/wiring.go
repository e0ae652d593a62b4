package commands

import (
	"fmt"

	"github.com/wonny/horizon/backend/internal/coordination"
	"github.com/wonny/horizon/backend/internal/engine"
	"github.com/wonny/horizon/backend/internal/frequency"
	"github.com/wonny/horizon/backend/internal/notify"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/internal/strategy"
	"github.com/wonny/horizon/backend/internal/training"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/database"
	"github.com/wonny/horizon/backend/pkg/logger"
	"github.com/wonny/horizon/backend/pkg/redis"
)

// services bundles everything a command needs after wiring.
type services struct {
	store        *session.Store
	index        *session.Repository
	orchestrator *training.Orchestrator
	db           *database.DB
	redisClient  *redis.Client
}

// buildServices wires the session store, optional Redis/Postgres
// mirrors, the strategies and the orchestrator from config.
func buildServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	svc := &services{}

	// Optional Redis status cache
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis init: %w", err)
	}
	svc.redisClient = redisClient

	svc.store = session.NewStore(cfg, log)
	if redisClient.Enabled() {
		svc.store.WithRemoteCache(redis.NewCache(redisClient, "horizon"))
	}

	// Optional Postgres session index
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("database init: %w", err)
		}
		svc.db = db
		svc.index = session.NewRepository(db.Pool)
		svc.store.WithIndex(svc.index)
	}

	// One process-wide lock coordinates the two AutoML runtimes.
	lock := coordination.NewEngineLock()

	registry := strategy.NewRegistry()
	for _, name := range cfg.Training.Engines {
		switch name {
		case strategy.NameAutoGluon:
			registry.Register(strategy.NewAutoGluon(
				engine.NewBaseline(strategy.NameAutoGluon), lock, svc.store, log))
		case strategy.NamePyCaret:
			registry.Register(strategy.NewPyCaret(
				engine.NewBaseline(strategy.NamePyCaret), lock, svc.store, log))
		default:
			return nil, fmt.Errorf("unknown engine %q in TRAIN_ENGINES", name)
		}
	}

	normalizer := frequency.NewNormalizer(log)
	svc.orchestrator = training.NewOrchestrator(svc.store, normalizer, registry, log).
		WithContinueOnFailure(cfg.Training.ContinueOnFailure)

	if cfg.WebhookURL != "" {
		svc.orchestrator.WithNotifier(notify.NewNotifier(cfg.WebhookURL, log))
	}

	return svc, nil
}

// close releases held connections.
func (s *services) close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
}
