package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/surveylogic/internal/types"
)

// Fixture files are YAML; JSON documents parse as well since YAML is a superset.

// ruleFile is the rules fixture: a survey's rules in authoring order.
type ruleFile struct {
	Rules []types.ConditionalRule `yaml:"rules"`
}

func decodeFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func loadSurvey(path string) (*types.Survey, error) {
	var survey types.Survey
	if err := decodeFile(path, &survey); err != nil {
		return nil, err
	}
	if survey.ID == "" {
		return nil, fmt.Errorf("%s: survey id required", path)
	}
	return &survey, nil
}

// loadRules reads a rules fixture. Rules without a survey_id inherit surveyID.
func loadRules(path string, surveyID types.SurveyID) ([]types.ConditionalRule, error) {
	var f ruleFile
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	for i := range f.Rules {
		if f.Rules[i].SurveyID == "" {
			f.Rules[i].SurveyID = surveyID
		}
	}
	return f.Rules, nil
}

func loadAnswers(path string) (types.AnswerStore, error) {
	var store types.AnswerStore
	if path == "" {
		return store, nil
	}
	if err := decodeFile(path, &store); err != nil {
		return store, err
	}
	return store, nil
}
