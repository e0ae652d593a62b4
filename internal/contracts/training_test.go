package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingParams_ApplyDefaults(t *testing.T) {
	p := &TrainingParams{DateColumn: "ds", TargetColumn: "y"}
	p.ApplyDefaults()

	assert.Equal(t, 7, p.PredictionHorizon)
	assert.Equal(t, "MASE", p.EvalMetric)
	assert.Equal(t, "none", p.FillMethod)

	// Explicit values survive.
	p = &TrainingParams{PredictionHorizon: 14, EvalMetric: "RMSE", FillMethod: "zero"}
	p.ApplyDefaults()
	assert.Equal(t, 14, p.PredictionHorizon)
	assert.Equal(t, "RMSE", p.EvalMetric)
	assert.Equal(t, "zero", p.FillMethod)
}

func TestTrainingParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  TrainingParams
		wantErr string
	}{
		{
			name:   "valid",
			params: TrainingParams{DateColumn: "ds", TargetColumn: "y", PredictionHorizon: 7},
		},
		{
			name:    "missing date column",
			params:  TrainingParams{TargetColumn: "y", PredictionHorizon: 7},
			wantErr: "date_column",
		},
		{
			name:    "missing target column",
			params:  TrainingParams{DateColumn: "ds", PredictionHorizon: 7},
			wantErr: "target_column",
		},
		{
			name:    "non-positive horizon",
			params:  TrainingParams{DateColumn: "ds", TargetColumn: "y"},
			wantErr: "prediction_horizon",
		},
		{
			name:    "unknown fill method",
			params:  TrainingParams{DateColumn: "ds", TargetColumn: "y", PredictionHorizon: 7, FillMethod: "spline"},
			wantErr: "fill_method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTrainingParams_JSONShape(t *testing.T) {
	data := []byte(`{
		"date_column": "Date",
		"item_id_column": "Shop",
		"target_column": "Sales",
		"frequency": "D",
		"prediction_horizon": 3,
		"fill_method": "ffill",
		"holiday_feature": true,
		"engines": ["autogluon"]
	}`)

	var p TrainingParams
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, "Date", p.DateColumn)
	assert.Equal(t, "Shop", p.ItemIDColumn)
	assert.Equal(t, 3, p.PredictionHorizon)
	assert.True(t, p.HolidayFeature)
	assert.Equal(t, []string{"autogluon"}, p.Engines)
}
