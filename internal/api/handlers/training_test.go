package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/horizon/backend/internal/coordination"
	"github.com/wonny/horizon/backend/internal/engine"
	"github.com/wonny/horizon/backend/internal/frequency"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/internal/strategy"
	"github.com/wonny/horizon/backend/internal/training"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

func newTestHandler(t *testing.T) (*TrainingHandler, *session.Store) {
	t.Helper()

	cfg := &config.Config{
		Sessions: config.SessionConfig{
			Root:      t.TempDir(),
			Retention: time.Hour,
		},
	}
	store := session.NewStore(cfg, logger.Nop())
	lock := coordination.NewEngineLock()

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewAutoGluon(engine.NewBaseline(strategy.NameAutoGluon), lock, store, logger.Nop()))
	registry.Register(strategy.NewPyCaret(engine.NewBaseline(strategy.NamePyCaret), lock, store, logger.Nop()))

	orch := training.NewOrchestrator(store, frequency.NewNormalizer(logger.Nop()), registry, logger.Nop())

	return NewTrainingHandler(orch, store, nil, logger.Nop()), store
}

func testRouter(h *TrainingHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/train", h.StartTraining).Methods("POST")
	r.HandleFunc("/api/train/status/{session_id}", h.GetStatus).Methods("GET")
	r.HandleFunc("/api/predict/{session_id}", h.Predict).Methods("POST")
	r.HandleFunc("/api/leaderboard/{session_id}", h.GetLeaderboard).Methods("GET")
	r.HandleFunc("/api/sessions", h.ListSessions).Methods("GET")
	return r
}

func uploadCSV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("Date,Shop,Sales\n")
	for d := 1; d <= 30; d++ {
		fmt.Fprintf(&buf, "2025-01-%02d,big,%d\n", d, 100+d)
	}
	return buf.String()
}

func trainRequest(t *testing.T, csvBody, params string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if csvBody != "" {
		part, err := w.CreateFormFile("file", "sales.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csvBody))
		require.NoError(t, err)
	}
	if params != "" {
		require.NoError(t, w.WriteField("params", params))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/train", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

const trainParams = `{"date_column":"Date","item_id_column":"Shop","target_column":"Sales","frequency":"D","prediction_horizon":3}`

func TestStartTraining(t *testing.T) {
	h, store := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, trainRequest(t, uploadCSV(t), trainParams))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	sessionID := resp["session_id"]
	require.NotEmpty(t, sessionID)

	// The pipeline runs in the background; wait for the terminal state.
	require.Eventually(t, func() bool {
		sess, err := store.Load(sessionID)
		return err == nil && sess != nil && sess.Terminal()
	}, 10*time.Second, 50*time.Millisecond)

	sess, err := store.Load(sessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status)
	assert.Equal(t, "sales.csv", sess.OriginalFilename)
}

func TestStartTraining_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"missing params", trainRequest(t, uploadCSV(t), "")},
		{"missing file", trainRequest(t, "", trainParams)},
		{"invalid params JSON", trainRequest(t, uploadCSV(t), "{not json")},
		{"missing target column in params", trainRequest(t, uploadCSV(t), `{"date_column":"Date"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestGetStatus(t *testing.T) {
	h, store := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/train/status/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sess := session.New("known")
	sess.Status = session.StatusRunning
	sess.Progress = 40
	require.NoError(t, store.Save("known", sess))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/train/status/known", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "known", doc["session_id"])
	assert.Equal(t, "running", doc["status"])
	assert.Equal(t, float64(40), doc["progress"])
	assert.Contains(t, doc, "pycaret_locked")
}

func TestGetLeaderboard_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrainThenPredictAndLeaderboard(t *testing.T) {
	h, store := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, trainRequest(t, uploadCSV(t), trainParams))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	sessionID := resp["session_id"]

	require.Eventually(t, func() bool {
		sess, err := store.Load(sessionID)
		return err == nil && sess != nil && sess.Status == session.StatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	// Leaderboard endpoint serves the combined file.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/"+sessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var lb struct {
		SessionID   string                   `json:"session_id"`
		Leaderboard []map[string]interface{} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lb))
	assert.Equal(t, sessionID, lb.SessionID)
	assert.NotEmpty(t, lb.Leaderboard)

	// Prediction without an upload reuses the trainable snapshot and
	// answers in the caller's original column names.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict/"+sessionID+"?engine=autogluon", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var pred struct {
		SessionID   string                   `json:"session_id"`
		Predictions []map[string]interface{} `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	require.Len(t, pred.Predictions, 3)
	for _, row := range pred.Predictions {
		assert.Contains(t, row, "Date")
		assert.Contains(t, row, "Shop")
		assert.Contains(t, row, "Sales")
		assert.Equal(t, "big", row["Shop"])
	}
}

func TestPredict_UnknownSession(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict/ghost", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessions_DirectoryScan(t *testing.T) {
	h, store := newTestHandler(t)
	router := testRouter(h)

	require.NoError(t, store.Save("s1", session.New("s1")))
	require.NoError(t, store.Save("s2", session.New("s2")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []map[string]interface{} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 2)
}
