package session

import (
	"time"

	"github.com/wonny/horizon/backend/internal/contracts"
)

// MetadataFile is the fixed filename of the status document inside each
// session directory.
const MetadataFile = "metadata.json"

// TimeFormat is how session timestamps are serialized (ISO-8601).
const TimeFormat = time.RFC3339

// Status is the session lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Session is the status/metadata document for one training attempt.
// One session = one attempt; ids are never reused.
//
// pycaret_locked is the only externally observable signal of engine
// lock contention. It has no effect on correctness, only on status
// reporting.
type Session struct {
	SessionID          string                       `json:"session_id"`
	Status             Status                       `json:"status"`
	Progress           int                          `json:"progress"`
	CreateTime         string                       `json:"create_time,omitempty"`
	StartTime          string                       `json:"start_time,omitempty"`
	EndTime            string                       `json:"end_time,omitempty"`
	SessionPath        string                       `json:"session_path,omitempty"`
	OriginalFilename   string                       `json:"original_filename,omitempty"`
	TrainingParameters *contracts.TrainingParams    `json:"training_parameters,omitempty"`
	Messages           []string                     `json:"messages,omitempty"`
	Error              string                       `json:"error,omitempty"`
	PyCaretLocked      bool                         `json:"pycaret_locked"`
	Leaderboard        []contracts.LeaderboardEntry `json:"leaderboard,omitempty"`
	PyCaret            []contracts.LeaderboardEntry `json:"pycaret,omitempty"`
}

// New creates a fresh session document in the initializing state.
func New(id string) *Session {
	return &Session{
		SessionID:  id,
		Status:     StatusInitializing,
		CreateTime: Now(),
	}
}

// Clone returns a deep copy of the document. The store hands out and
// caches clones only, so a status reader never shares a struct with a
// concurrent Update.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append([]string(nil), s.Messages...)
	cp.Leaderboard = append([]contracts.LeaderboardEntry(nil), s.Leaderboard...)
	cp.PyCaret = append([]contracts.LeaderboardEntry(nil), s.PyCaret...)
	if s.TrainingParameters != nil {
		p := *s.TrainingParameters
		p.FillGroupColumns = append([]string(nil), s.TrainingParameters.FillGroupColumns...)
		p.Engines = append([]string(nil), s.TrainingParameters.Engines...)
		cp.TrainingParameters = &p
	}
	return &cp
}

// Now returns the current time in the session timestamp format.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// Terminal reports whether the session has finished, successfully or
// not.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
