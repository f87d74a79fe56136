package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/rules"
	"github.com/solatis/surveylogic/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate page visibility from fixture files",
	Long: `Runs one evaluation pass over a survey layout, its rules and an answer
snapshot read from YAML (or JSON) files, and prints the result as JSON.
Malformed rules are reported as warnings and evaluate false.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("survey", "", "survey layout file (required)")
	evaluateCmd.Flags().String("rules", "", "rules file (required)")
	evaluateCmd.Flags().String("answers", "", "answer snapshot file (default: no answers)")
	evaluateCmd.Flags().String("page", "", "page to evaluate (required)")
	evaluateCmd.Flags().StringToInt("loop-count", nil, "iteration count per loop group, e.g. children=3")
	evaluateCmd.MarkFlagRequired("survey")
	evaluateCmd.MarkFlagRequired("rules")
	evaluateCmd.MarkFlagRequired("page")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	surveyPath, _ := cmd.Flags().GetString("survey")
	rulesPath, _ := cmd.Flags().GetString("rules")
	answersPath, _ := cmd.Flags().GetString("answers")
	pageID, _ := cmd.Flags().GetString("page")
	loopCounts, _ := cmd.Flags().GetStringToInt("loop-count")

	survey, err := loadSurvey(surveyPath)
	if err != nil {
		return err
	}
	set, err := loadRules(rulesPath, survey.ID)
	if err != nil {
		return err
	}
	answers, err := loadAnswers(answersPath)
	if err != nil {
		return err
	}

	counts := make(map[types.QuestionID]int, len(loopCounts))
	for id, n := range loopCounts {
		counts[types.QuestionID(id)] = n
	}

	engine := rules.NewEngine(rules.WithLogger(logger))
	result, err := engine.EvaluatePage(rules.PassInput{
		Survey:     survey,
		PageID:     types.PageID(pageID),
		Rules:      set,
		Answers:    answers,
		LoopCounts: counts,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
