package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/horizon/backend/internal/contracts"
	"github.com/wonny/horizon/backend/internal/dataset"
	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// trainCmd runs one training session synchronously from a local CSV.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a session from a local CSV file",
	Long: `Runs the full training pipeline once, synchronously, and prints the
final status document.

Example:
  go run ./cmd/horizon train --file sales.csv \
    --date-column Date --item-column Shop --target-column Sales \
    --horizon 7 --frequency D`,
	RunE: runTrain,
}

var (
	trainFile       string
	trainDateCol    string
	trainItemCol    string
	trainTargetCol  string
	trainHorizon    int
	trainFrequency  string
	trainFillMethod string
	trainHoliday    bool
	trainEngines    []string
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainFile, "file", "", "CSV file to train on (required)")
	trainCmd.Flags().StringVar(&trainDateCol, "date-column", "", "date column name (required)")
	trainCmd.Flags().StringVar(&trainItemCol, "item-column", "", "series identity column name")
	trainCmd.Flags().StringVar(&trainTargetCol, "target-column", "", "target column name (required)")
	trainCmd.Flags().IntVar(&trainHorizon, "horizon", 7, "prediction horizon in steps")
	trainCmd.Flags().StringVar(&trainFrequency, "frequency", "", "target frequency (D, H, W, 30m; empty = as-is)")
	trainCmd.Flags().StringVar(&trainFillMethod, "fill", "none", "missing-value method (zero|mean|ffill|bfill|none)")
	trainCmd.Flags().BoolVar(&trainHoliday, "holiday", false, "add the calendar-holiday covariate")
	trainCmd.Flags().StringSliceVar(&trainEngines, "engines", nil, "engine override (default: configured list)")

	trainCmd.MarkFlagRequired("file")
	trainCmd.MarkFlagRequired("date-column")
	trainCmd.MarkFlagRequired("target-column")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	cfg.LogFormat = "console"

	log := logger.New(cfg)

	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.close()

	f, err := os.Open(trainFile)
	if err != nil {
		return fmt.Errorf("open training file: %w", err)
	}
	defer f.Close()

	table, err := dataset.ReadCSV(f)
	if err != nil {
		return err
	}

	params := contracts.TrainingParams{
		DateColumn:        trainDateCol,
		ItemIDColumn:      trainItemCol,
		TargetColumn:      trainTargetCol,
		PredictionHorizon: trainHorizon,
		Frequency:         trainFrequency,
		FillMethod:        trainFillMethod,
		HolidayFeature:    trainHoliday,
		Engines:           trainEngines,
	}
	params.ApplyDefaults()

	sessionID := uuid.NewString()
	if err := svc.store.Save(sessionID, session.New(sessionID)); err != nil {
		return err
	}

	trainErr := svc.orchestrator.Train(context.Background(), table, &params,
		sessionID, filepath.Base(trainFile))

	sess, loadErr := svc.store.Load(sessionID)
	if loadErr == nil && sess != nil {
		doc, _ := json.MarshalIndent(sess, "", "  ")
		fmt.Println(string(doc))
	}

	return trainErr
}
