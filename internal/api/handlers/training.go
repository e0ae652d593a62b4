package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/internal/strategy"
	"github.com/wonny/horizon/backend/internal/training"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// maxUploadBytes caps training/prediction uploads.
const maxUploadBytes = 64 << 20

// TrainingHandler handles the training/prediction API endpoints.
type TrainingHandler struct {
	orchestrator *training.Orchestrator
	store        *session.Store
	index        *session.Repository // optional
	logger       *logger.Logger
}

// NewTrainingHandler creates a training handler.
func NewTrainingHandler(orch *training.Orchestrator, store *session.Store, index *session.Repository, log *logger.Logger) *TrainingHandler {
	return &TrainingHandler{
		orchestrator: orch,
		store:        store,
		index:        index,
		logger:       log.WithComponent("api.training"),
	}
}

// StartTraining accepts a CSV upload plus training parameters, mints a
// session id and dispatches the pipeline to a background worker.
// POST /api/train  (multipart: file, params)
func (h *TrainingHandler) StartTraining(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	var params contracts.TrainingParams
	if raw := r.FormValue("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			respondError(w, http.StatusBadRequest, "invalid params JSON")
			return
		}
	} else {
		respondError(w, http.StatusBadRequest, "params field is required")
		return
	}
	params.ApplyDefaults()
	if err := params.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close()

	table, err := dataset.ReadCSV(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The store treats ids as opaque caller-supplied tokens; the API
	// boundary is the caller and mints UUIDs.
	sessionID := uuid.NewString()

	if _, err := h.store.SessionDir(sessionID); err != nil {
		h.logger.WithError(err).Error("Failed to create session directory")
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	if err := h.store.Save(sessionID, session.New(sessionID)); err != nil {
		h.logger.WithError(err).Error("Failed to persist initial session status")
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	// One background worker per training request, identified by its
	// session id. The request context dies with this handler, so the
	// pipeline runs on its own context.
	go func() {
		if err := h.orchestrator.Train(context.Background(), table, &params, sessionID, header.Filename); err != nil {
			h.logger.WithError(err).WithField("session_id", sessionID).
				Error("Background training failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
	})
}

// GetStatus returns the session status document.
// GET /api/train/status/{session_id}
func (h *TrainingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	sess, err := h.store.Load(sessionID)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).
			Error("Failed to load session")
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

// Predict forecasts with one trained strategy of an existing session.
// An uploaded CSV is optional; without one the session's trainable
// snapshot is reused.
// POST /api/predict/{session_id}?engine=autogluon
func (h *TrainingHandler) Predict(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	engineName := r.URL.Query().Get("engine")

	var table *dataset.RawTable
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			parsed, err := dataset.ReadCSV(file)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			table = parsed
		}
	}

	predictions, params, err := h.orchestrator.Predict(r.Context(), sessionID, engineName, table)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).
			Error("Prediction failed")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"predictions": renameColumns(predictions, params),
	})
}

// renameColumns renders canonical records back into the caller's
// original column names.
func renameColumns(records []dataset.Record, params *contracts.TrainingParams) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		row := map[string]interface{}{
			params.DateColumn:   training.FormatTimestamp(rec.Timestamp),
			params.TargetColumn: rec.Target,
		}
		if params.ItemIDColumn != "" {
			row[params.ItemIDColumn] = rec.ItemID
		}
		out = append(out, row)
	}
	return out
}

// GetLeaderboard returns the combined leaderboard of a completed
// session.
// GET /api/leaderboard/{session_id}
func (h *TrainingHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	path := filepath.Join(h.store.Root(), sessionID, strategy.LeaderboardFile)
	entries, err := strategy.ReadLeaderboard(path, "")
	if os.IsNotExist(err) {
		respondError(w, http.StatusNotFound, "leaderboard not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).
			Error("Failed to read leaderboard")
		respondError(w, http.StatusInternalServerError, "failed to read leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"leaderboard": entries,
	})
}

// ListSessions lists recent sessions, preferring the Postgres index
// when configured and falling back to a directory scan.
// GET /api/sessions?limit=50
func (h *TrainingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if h.index != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		summaries, err := h.index.ListRecent(ctx, limit)
		if err == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
			return
		}
		h.logger.WithError(err).Warn("Session index query failed, falling back to directory scan")
	}

	entries, err := os.ReadDir(h.store.Root())
	if err != nil {
		if os.IsNotExist(err) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": []interface{}{}})
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to scan sessions")
		return
	}

	sessions := make([]*session.Session, 0, limit)
	for _, entry := range entries {
		if !entry.IsDir() || len(sessions) >= limit {
			continue
		}
		sess, err := h.store.Load(entry.Name())
		if err != nil || sess == nil {
			continue
		}
		sessions = append(sessions, sess)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
