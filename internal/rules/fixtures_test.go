package rules

import (
	"testing"

	"github.com/solatis/surveylogic/internal/types"
)

// testSurvey returns a layout exercising every question type:
//
//	p1: country, age, notes, region
//	p2: has_children, children{child_age, child_school, child_name}, childcare
//	p3: dob, interests
//	p4: (no questions)
func testSurvey() *types.Survey {
	return &types.Survey{
		ID: "survey-1",
		Pages: []types.Page{
			{
				ID: "p1",
				Questions: []types.Question{
					{ID: "country", Type: types.QuestionSingleChoice},
					{ID: "age", Type: types.QuestionNumber},
					{ID: "notes", Type: types.QuestionText},
					{ID: "region", Type: types.QuestionText},
				},
			},
			{
				ID: "p2",
				Questions: []types.Question{
					{ID: "has_children", Type: types.QuestionBoolean},
					{
						ID:   "children",
						Type: types.QuestionLoopGroup,
						Subquestions: []types.Question{
							{ID: "child_age", Type: types.QuestionNumber},
							{ID: "child_school", Type: types.QuestionText},
							{ID: "child_name", Type: types.QuestionText},
						},
					},
					{ID: "childcare", Type: types.QuestionText},
				},
			},
			{
				ID: "p3",
				Questions: []types.Question{
					{ID: "dob", Type: types.QuestionDate},
					{ID: "interests", Type: types.QuestionMultiChoice},
				},
			},
			{ID: "p4"},
		},
	}
}

func testIndex(t *testing.T) *types.LayoutIndex {
	t.Helper()
	index, err := types.NewLayoutIndex(testSurvey())
	if err != nil {
		t.Fatalf("NewLayoutIndex() error = %v, want nil", err)
	}
	return index
}

// questionRule builds a single-condition rule targeting a question.
func questionRule(id types.RuleID, source types.QuestionID, op types.Operator, compare any, action types.Action, target types.QuestionID) types.ConditionalRule {
	return types.ConditionalRule{
		ID:               id,
		SurveyID:         "survey-1",
		SourceQuestionID: source,
		Operator:         op,
		CompareValue:     compare,
		TargetType:       types.TargetQuestion,
		TargetID:         string(target),
		Action:           action,
	}
}

// childrenAnswers returns answers for three children aged 3, 7 and 12.
func childrenAnswers() types.AnswerStore {
	return types.AnswerStore{
		Answers: map[types.QuestionID]types.AnswerValue{
			"has_children": types.Bool(true),
		},
		Loops: map[types.QuestionID][]types.LoopInstance{
			"children": {
				{Index: 0, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(3)}},
				{Index: 1, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(7)}},
				{Index: 2, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(12)}},
			},
		},
	}
}
