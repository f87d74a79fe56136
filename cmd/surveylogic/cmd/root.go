package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/core/db"
	"github.com/solatis/surveylogic/internal/logging"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	// logger is built from --log-level and --log-format before any command runs.
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:          "surveylogic",
	Short:        "surveylogic survey visibility engine",
	Long:         `surveylogic evaluates conditional show/hide rules against survey answers and decides which pages and questions a respondent sees.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// openDatabase opens the database named by --db-url.
func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}
