package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// cleanupCmd runs the stale-session sweep once.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete session directories older than the retention window",
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.LogFormat = "console"

	log := logger.New(cfg)

	store := session.NewStore(cfg, log)
	removed, err := store.CleanupOldSessions()
	if err != nil {
		return err
	}

	fmt.Printf("removed %d stale session(s) under %s\n", removed, cfg.Sessions.Root)
	return nil
}
