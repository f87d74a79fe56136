package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/surveylogic/internal/rules"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestEvaluate_TopLevelPage(t *testing.T) {
	out, err := run(t, "evaluate",
		"--survey", "testdata/survey.yaml",
		"--rules", "testdata/rules.yaml",
		"--answers", "testdata/answers.yaml",
		"--page", "about")
	require.NoError(t, err)

	var result rules.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Visibility.QuestionVisible("drinks"))
	assert.True(t, result.Visibility.QuestionVisible("age"))
	assert.True(t, result.Visibility.PageVisible("about"))
	assert.Empty(t, result.Failures)
}

func TestEvaluate_LoopPage(t *testing.T) {
	out, err := run(t, "evaluate",
		"--survey", "testdata/survey.yaml",
		"--rules", "testdata/rules.yaml",
		"--answers", "testdata/answers.yaml",
		"--page", "family",
		"--loop-count", "children=3")
	require.NoError(t, err)

	var result rules.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Iterations["children"])
	assert.False(t, result.Visibility.LoopQuestionVisible("school", 0))
	assert.True(t, result.Visibility.LoopQuestionVisible("school", 1))
	// Third iteration has no answers yet
	assert.False(t, result.Visibility.LoopQuestionVisible("school", 2))
}

func TestEvaluate_UnknownPage(t *testing.T) {
	_, err := run(t, "evaluate",
		"--survey", "testdata/survey.yaml",
		"--rules", "testdata/rules.yaml",
		"--page", "missing")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		wantErr string
		wantOut string
	}{
		{name: "valid", rules: "testdata/rules.yaml", wantOut: "2 rules valid"},
		{name: "invalid", rules: "testdata/invalid_rules.yaml", wantErr: "1 of 2 rules invalid", wantOut: "bad-operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "validate", "--survey", "testdata/survey.yaml", "--rules", tt.rules)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}
