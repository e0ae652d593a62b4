package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// statusCmd prints one session's status document.
var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Print a session's status document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := session.NewStore(cfg, logger.Nop())

	sess, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	doc, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(doc))

	return nil
}
