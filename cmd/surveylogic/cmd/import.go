package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/core/cache"
	"github.com/solatis/surveylogic/internal/core/config"
	"github.com/solatis/surveylogic/internal/core/db"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a survey layout and replace its rules",
	Long: `Saves the survey layout and atomically replaces the survey's rules with
those in the rules file, in file order. Every rule is validated first; nothing
is written if any rule is invalid. When a rule cache is configured the
survey's cache entry is invalidated.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("survey", "", "survey layout file (required)")
	importCmd.Flags().String("rules", "", "rules file (default: keep stored rules)")
	importCmd.MarkFlagRequired("survey")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	surveyPath, _ := cmd.Flags().GetString("survey")
	rulesPath, _ := cmd.Flags().GetString("rules")

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	survey, err := loadSurvey(surveyPath)
	if err != nil {
		return err
	}

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store := db.NewStore(database, queries, db.WithMaxRules(cfg.MaxRulesPerSurvey))

	if err := store.SaveSurvey(ctx, survey); err != nil {
		return err
	}
	logger.Info("saved survey", "survey_id", survey.ID, "pages", len(survey.Pages))

	if rulesPath != "" {
		set, err := loadRules(rulesPath, survey.ID)
		if err != nil {
			return err
		}
		if err := store.ReplaceRules(ctx, survey.ID, set); err != nil {
			return err
		}
		logger.Info("replaced rules", "survey_id", survey.ID, "rules", len(set))
	}

	if cfg.CacheURL != "" {
		client, err := cache.NewClient(ctx, cfg.CacheURL)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := cache.NewRuleCache(client, store, cfg.CacheTTL, logger).Invalidate(ctx, survey.ID); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported survey %s\n", survey.ID)
	return nil
}
