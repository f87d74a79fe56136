package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/rules"
	"github.com/solatis/surveylogic/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rules against a survey layout",
	Long: `Checks every rule in the rules file against the survey layout: references,
loop scope, operator and question type compatibility, and compare values.
Prints one line per invalid rule and exits non-zero if any rule is invalid.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("survey", "", "survey layout file (required)")
	validateCmd.Flags().String("rules", "", "rules file (required)")
	validateCmd.MarkFlagRequired("survey")
	validateCmd.MarkFlagRequired("rules")
}

func runValidate(cmd *cobra.Command, args []string) error {
	surveyPath, _ := cmd.Flags().GetString("survey")
	rulesPath, _ := cmd.Flags().GetString("rules")

	survey, err := loadSurvey(surveyPath)
	if err != nil {
		return err
	}
	index, err := types.NewLayoutIndex(survey)
	if err != nil {
		return fmt.Errorf("invalid survey layout: %w", err)
	}
	set, err := loadRules(rulesPath, survey.ID)
	if err != nil {
		return err
	}

	errs := rules.ValidateRules(set, index)
	for _, err := range errs {
		fmt.Fprintln(cmd.OutOrStdout(), err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d rules invalid", len(errs), len(set))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules valid\n", len(set))
	return nil
}
