package contracts

import "fmt"

// TrainingParams is the caller's training request, snapshotted verbatim
// into the session status document.
type TrainingParams struct {
	// Column mapping from the uploaded table to the canonical triple.
	DateColumn   string `json:"date_column"`
	ItemIDColumn string `json:"item_id_column,omitempty"`
	TargetColumn string `json:"target_column"`

	// Frequency is the target sampling step ("D", "H", "W", "30m", ...).
	// Empty or "auto" means the input grid is taken as-is.
	Frequency string `json:"frequency,omitempty"`

	// PredictionHorizon is the number of future steps to forecast.
	PredictionHorizon int `json:"prediction_horizon"`

	// EvalMetric selects the validation score. Lower is better after
	// internal sign normalization.
	EvalMetric string `json:"eval_metric,omitempty"`

	// TimeLimitSeconds is an advisory fit-time budget passed through to
	// the engines; this layer does not enforce it.
	TimeLimitSeconds int `json:"time_limit_seconds,omitempty"`

	// Missing-value handling before frequency normalization.
	FillMethod       string   `json:"fill_method,omitempty"` // zero|mean|ffill|bfill|none
	FillGroupColumns []string `json:"fill_group_columns,omitempty"`

	// HolidayFeature adds a calendar-holiday covariate column.
	HolidayFeature bool `json:"holiday_feature,omitempty"`

	// Engines overrides the configured engine list for this session.
	Engines []string `json:"engines,omitempty"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (p *TrainingParams) ApplyDefaults() {
	if p.PredictionHorizon <= 0 {
		p.PredictionHorizon = 7
	}
	if p.EvalMetric == "" {
		p.EvalMetric = "MASE"
	}
	if p.FillMethod == "" {
		p.FillMethod = "none"
	}
}

// Validate checks structural sanity of the request itself. Dataset
// validation happens separately against the uploaded table.
func (p *TrainingParams) Validate() error {
	if p.DateColumn == "" {
		return fmt.Errorf("date_column is required")
	}
	if p.TargetColumn == "" {
		return fmt.Errorf("target_column is required")
	}
	if p.PredictionHorizon <= 0 {
		return fmt.Errorf("prediction_horizon must be positive")
	}
	switch p.FillMethod {
	case "", "none", "zero", "mean", "ffill", "bfill":
	default:
		return fmt.Errorf("unknown fill_method %q", p.FillMethod)
	}
	return nil
}

// ValidationResult is the dataset validator's verdict.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// LeaderboardEntry is one ranked model variant for a session.
// score_val follows a lower-is-better convention.
type LeaderboardEntry struct {
	Model    string  `json:"model"`
	ScoreVal float64 `json:"score_val"`
	Engine   string  `json:"engine,omitempty"`
}
