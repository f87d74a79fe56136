package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/surveylogic/internal/types"
)

type recordingObserver struct {
	mu    sync.Mutex
	stats []PassStats
}

func (o *recordingObserver) ObservePass(stats PassStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = append(o.stats, stats)
}

func mustEvaluate(t *testing.T, e *Engine, in PassInput) *PassResult {
	t.Helper()
	result, err := e.EvaluatePage(in)
	if err != nil {
		t.Fatalf("EvaluatePage() error = %v, want nil", err)
	}
	return result
}

func TestEvaluatePage_DefaultVisibility(t *testing.T) {
	e := NewEngine()
	for _, page := range []types.PageID{"p1", "p2", "p3", "p4"} {
		result := mustEvaluate(t, e, PassInput{
			Survey:  testSurvey(),
			PageID:  page,
			Answers: childrenAnswers(),
		})
		if !result.Visibility.PageVisible(page) {
			t.Errorf("PageVisible(%s) = false, want true", page)
		}
		for id, visible := range result.Visibility.Questions {
			if !visible {
				t.Errorf("QuestionVisible(%s) = false, want true", id)
			}
		}
		for id, iterations := range result.Visibility.LoopQuestions {
			for i, visible := range iterations {
				if !visible {
					t.Errorf("LoopQuestionVisible(%s, %d) = false, want true", id, i)
				}
			}
		}
	}
}

func TestEvaluatePage_HidePrecedence(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("show-region", "country", types.OpEquals, "France", types.ActionShow, "region"),
		questionRule("hide-region", "country", types.OpEquals, "France", types.ActionHide, "region"),
	}

	result := mustEvaluate(t, e, PassInput{
		Survey: testSurvey(),
		PageID: "p1",
		Rules:  rules,
		Answers: types.AnswerStore{
			Answers: map[types.QuestionID]types.AnswerValue{"country": types.Text("France")},
		},
	})

	if result.Visibility.QuestionVisible("region") {
		t.Error("QuestionVisible(region) = true, want false")
	}
	if len(result.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(result.Results))
	}
}

func TestEvaluatePage_UnansweredFailsClosed(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("show-notes", "region", types.OpEquals, "yes", types.ActionShow, "notes"),
		questionRule("hide-age", "region", types.OpEquals, "yes", types.ActionHide, "age"),
		questionRule("show-country", "region", types.OpIsNotAnswered, nil, types.ActionShow, "country"),
	}

	result := mustEvaluate(t, e, PassInput{Survey: testSurvey(), PageID: "p1", Rules: rules})

	if result.Visibility.QuestionVisible("notes") {
		t.Error("QuestionVisible(notes) = true, want false")
	}
	if !result.Visibility.QuestionVisible("age") {
		t.Error("QuestionVisible(age) = false, want true")
	}
	if !result.Visibility.QuestionVisible("country") {
		t.Error("QuestionVisible(country) = false, want true")
	}
}

func TestEvaluatePage_LoopIndependence(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("hide-school", "child_age", types.OpLessThan, 5, types.ActionHide, "child_school"),
	}
	answers := types.AnswerStore{
		Loops: map[types.QuestionID][]types.LoopInstance{
			"children": {
				{Index: 0, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(3)}},
				{Index: 1, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(8)}},
			},
		},
	}
	in := PassInput{
		Survey:     testSurvey(),
		PageID:     "p2",
		Rules:      rules,
		Answers:    answers,
		LoopCounts: map[types.QuestionID]int{"children": 3},
	}

	result := mustEvaluate(t, e, in)

	if len(result.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(result.Results))
	}
	want := []bool{false, true, true}
	for i, w := range want {
		if got := result.Visibility.LoopQuestionVisible("child_school", i); got != w {
			t.Errorf("LoopQuestionVisible(child_school, %d) = %v, want %v", i, got, w)
		}
	}

	// Answering iteration 2 must not disturb iterations 0 and 1.
	in.Answers.Loops["children"] = append(in.Answers.Loops["children"], types.LoopInstance{
		Index: 2, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(1)},
	})
	result = mustEvaluate(t, e, in)

	want = []bool{false, true, false}
	for i, w := range want {
		if got := result.Visibility.LoopQuestionVisible("child_school", i); got != w {
			t.Errorf("after change: LoopQuestionVisible(child_school, %d) = %v, want %v", i, got, w)
		}
	}
}

func TestEvaluatePage_BroadcastAndCollapse(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("show-name", "has_children", types.OpEquals, true, types.ActionShow, "child_name"),
		questionRule("show-childcare", "child_age", types.OpLessThan, 4, types.ActionShow, "childcare"),
	}

	result := mustEvaluate(t, e, PassInput{
		Survey:  testSurvey(),
		PageID:  "p2",
		Rules:   rules,
		Answers: childrenAnswers(),
	})

	for i := 0; i < 3; i++ {
		if !result.Visibility.LoopQuestionVisible("child_name", i) {
			t.Errorf("LoopQuestionVisible(child_name, %d) = false, want true", i)
		}
	}
	if !result.Visibility.QuestionVisible("childcare") {
		t.Error("QuestionVisible(childcare) = false, want true (one child is under 4)")
	}
	if got := result.Iterations["children"]; got != 3 {
		t.Errorf("Iterations[children] = %d, want 3", got)
	}

	// Without iterations the collapse rule has nothing to read.
	result = mustEvaluate(t, e, PassInput{Survey: testSurvey(), PageID: "p2", Rules: rules})
	if result.Visibility.QuestionVisible("childcare") {
		t.Error("no iterations: QuestionVisible(childcare) = true, want false")
	}
}

func TestEvaluatePage_CollapseOverZeroIterations(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("show-childcare", "child_age", types.OpLessThan, 4, types.ActionShow, "childcare"),
		questionRule("hide-has-children", "child_age", types.OpGreaterThan, 100, types.ActionHide, "has_children"),
	}

	// Stored answers exist but the override says the loop is empty
	result := mustEvaluate(t, e, PassInput{
		Survey:     testSurvey(),
		PageID:     "p2",
		Rules:      rules,
		Answers:    childrenAnswers(),
		LoopCounts: map[types.QuestionID]int{"children": 0},
	})

	if got := len(result.Results); got != 2 {
		t.Fatalf("len(Results) = %d, want 2 (one false result per rule)", got)
	}
	for _, r := range result.Results {
		if r.Outcome {
			t.Errorf("Results[%s].Outcome = true, want false", r.RuleID)
		}
		if r.LoopIndex != NoLoop {
			t.Errorf("Results[%s].LoopIndex = %d, want NoLoop", r.RuleID, r.LoopIndex)
		}
	}
	if result.Visibility.QuestionVisible("childcare") {
		t.Error("QuestionVisible(childcare) = true, want false (show rule cannot fire)")
	}
	if !result.Visibility.QuestionVisible("has_children") {
		t.Error("QuestionVisible(has_children) = false, want true (hide rule cannot fire)")
	}
}

func TestEvaluatePage_PageAutoHideBoundary(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("hide-dob", "age", types.OpLessThan, 18, types.ActionHide, "dob"),
		questionRule("hide-interests", "age", types.OpLessThan, 13, types.ActionHide, "interests"),
	}
	in := func(age float64) PassInput {
		return PassInput{
			Survey: testSurvey(),
			PageID: "p3",
			Rules:  rules,
			Answers: types.AnswerStore{
				Answers: map[types.QuestionID]types.AnswerValue{"age": types.Number(age)},
			},
		}
	}

	if mustEvaluate(t, e, in(10)).Visibility.PageVisible("p3") {
		t.Error("age 10: PageVisible(p3) = true, want false")
	}
	result := mustEvaluate(t, e, in(15))
	if !result.Visibility.PageVisible("p3") {
		t.Error("age 15: PageVisible(p3) = false, want true")
	}
	if !result.Visibility.QuestionVisible("interests") {
		t.Error("age 15: QuestionVisible(interests) = false, want true")
	}
}

func TestEvaluatePage_PageRule(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{{
		ID: "hide-p4", SurveyID: "survey-1", SourceQuestionID: "country", Operator: types.OpOneOf,
		CompareValue: []any{"France", "Spain"}, TargetType: types.TargetPage, TargetID: "p4", Action: types.ActionHide,
	}}

	result := mustEvaluate(t, e, PassInput{
		Survey: testSurvey(),
		PageID: "p4",
		Rules:  rules,
		Answers: types.AnswerStore{
			Answers: map[types.QuestionID]types.AnswerValue{"country": types.Text("spain")},
		},
	})

	if result.Visibility.PageVisible("p4") {
		t.Error("PageVisible(p4) = true, want false")
	}
}

func TestEvaluatePage_MalformedRulesIsolated(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	observer := &recordingObserver{}
	e := NewEngine(WithLogger(logger), WithObserver(observer))

	rules := []types.ConditionalRule{
		questionRule("bad-op", "country", "matches", "x", types.ActionHide, "region"),
		questionRule("bad-op", "country", "matches", "x", types.ActionHide, "region"),
		questionRule("dangling", "deleted", types.OpIsAnswered, nil, types.ActionShow, "notes"),
		questionRule("scope", "child_age", types.OpIsAnswered, nil, types.ActionShow, "country"),
		questionRule("elsewhere", "deleted", types.OpIsAnswered, nil, types.ActionShow, "dob"),
		questionRule("good", "country", types.OpEquals, "France", types.ActionHide, "age"),
	}

	result := mustEvaluate(t, e, PassInput{
		Survey: testSurvey(),
		PageID: "p1",
		Rules:  rules,
		Answers: types.AnswerStore{
			Answers: map[types.QuestionID]types.AnswerValue{"country": types.Text("France")},
		},
	})

	vis := result.Visibility
	if vis.QuestionVisible("age") {
		t.Error("QuestionVisible(age) = true, want false (valid rule still applies)")
	}
	if !vis.QuestionVisible("region") {
		t.Error("QuestionVisible(region) = false, want true (broken hide rule does not fire)")
	}
	if vis.QuestionVisible("notes") {
		t.Error("QuestionVisible(notes) = true, want false (broken show rule over-hides)")
	}
	if vis.QuestionVisible("country") {
		t.Error("QuestionVisible(country) = true, want false (scope violation treated as false)")
	}

	if len(result.Failures) != 5 {
		t.Errorf("len(Failures) = %d, want 5", len(result.Failures))
	}
	if got := strings.Count(logs.String(), "skipping malformed rule"); got != 4 {
		t.Errorf("malformed rule warnings = %d, want 4 (once per rule)", got)
	}

	if len(observer.stats) != 1 {
		t.Fatalf("observer passes = %d, want 1", len(observer.stats))
	}
	stats := observer.stats[0]
	if stats.Rules != 6 || stats.Targeted != 5 || stats.Failed != 5 {
		t.Errorf("PassStats = %+v, want Rules 6, Targeted 5, Failed 5", stats)
	}
}

func TestEvaluatePage_Errors(t *testing.T) {
	e := NewEngine()

	if _, err := e.EvaluatePage(PassInput{Survey: testSurvey(), PageID: "p9"}); !errors.Is(err, types.ErrPageNotFound) {
		t.Errorf("unknown page: error = %v, want %v", err, types.ErrPageNotFound)
	}
	if _, err := e.EvaluatePage(PassInput{PageID: "p1"}); !errors.Is(err, types.ErrSurveyNotFound) {
		t.Errorf("nil survey: error = %v, want %v", err, types.ErrSurveyNotFound)
	}

	dup := testSurvey()
	dup.Pages[1].Questions = append(dup.Pages[1].Questions, types.Question{ID: "age", Type: types.QuestionNumber})
	if _, err := e.EvaluatePage(PassInput{Survey: dup, PageID: "p1"}); !errors.Is(err, types.ErrDuplicateID) {
		t.Errorf("duplicate id: error = %v, want %v", err, types.ErrDuplicateID)
	}
}

func TestEvaluatePage_LargeLoopCountStaysFailClosed(t *testing.T) {
	e := NewEngine()
	rules := []types.ConditionalRule{
		questionRule("show-school", "child_age", types.OpIsAnswered, nil, types.ActionShow, "child_school"),
	}
	n := types.MaxLoopIterations + 10

	result := mustEvaluate(t, e, PassInput{
		Survey:     testSurvey(),
		PageID:     "p2",
		Rules:      rules,
		LoopCounts: map[types.QuestionID]int{"children": n},
	})

	if got := result.Iterations["children"]; got != n {
		t.Errorf("Iterations[children] = %d, want %d", got, n)
	}
	if got := len(result.Results); got != n {
		t.Errorf("len(Results) = %d, want %d", got, n)
	}
	for _, idx := range []int{0, types.MaxLoopIterations - 1, types.MaxLoopIterations, n - 1} {
		if result.Visibility.LoopQuestionVisible("child_school", idx) {
			t.Errorf("LoopQuestionVisible(child_school, %d) = true, want false (show rule not fired)", idx)
		}
	}
}

func TestEvaluatePage_ConcurrentPasses(t *testing.T) {
	e := NewEngine(WithObserver(&recordingObserver{}))
	rules := []types.ConditionalRule{
		questionRule("hide-school", "child_age", types.OpLessThan, 5, types.ActionHide, "child_school"),
		questionRule("hide-region", "country", types.OpEquals, "France", types.ActionHide, "region"),
	}
	answers := childrenAnswers()
	answers.Answers["country"] = types.Text("France")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(page types.PageID) {
			defer wg.Done()
			if _, err := e.EvaluatePage(PassInput{Survey: testSurvey(), PageID: page, Rules: rules, Answers: answers}); err != nil {
				t.Errorf("EvaluatePage(%s) error = %v", page, err)
			}
		}([]types.PageID{"p1", "p2"}[i%2])
	}
	wg.Wait()
}

// Property-based test: identical inputs yield byte-identical output
func TestEvaluatePage_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rules := []types.ConditionalRule{
		questionRule("r1", "country", types.OpOneOf, []any{"France", "Spain"}, types.ActionHide, "region"),
		questionRule("r2", "age", types.OpGreaterThan, 30, types.ActionShow, "notes"),
		questionRule("r3", "notes", types.OpContains, "vip", types.ActionHide, "country"),
		questionRule("r4", "child_age", types.OpLessThan, 6, types.ActionHide, "child_school"),
		questionRule("r5", "child_age", types.OpGreaterThan, 10, types.ActionShow, "childcare"),
	}
	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("repeated passes encode identically", prop.ForAll(
		func(country string, age int, notes string, childAges []int, page int) bool {
			answers := types.AnswerStore{
				Answers: map[types.QuestionID]types.AnswerValue{
					"country": types.Text(country),
					"age":     types.Number(float64(age)),
					"notes":   types.Text(notes),
					"dob":     types.Date(date),
				},
				Loops: map[types.QuestionID][]types.LoopInstance{},
			}
			for i, a := range childAges {
				answers.Loops["children"] = append(answers.Loops["children"], types.LoopInstance{
					Index: i, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(float64(a))},
				})
			}
			in := PassInput{
				Survey:  testSurvey(),
				PageID:  []types.PageID{"p1", "p2", "p3"}[page],
				Rules:   rules,
				Answers: answers,
			}

			first, err := NewEngine().EvaluatePage(in)
			if err != nil {
				return false
			}
			second, err := NewEngine().EvaluatePage(in)
			if err != nil {
				return false
			}

			a, errA := json.Marshal(first)
			b, errB := json.Marshal(second)
			return errA == nil && errB == nil && bytes.Equal(a, b)
		},
		gen.OneConstOf("France", "Spain", "Italy", ""),
		gen.IntRange(0, 99),
		gen.AlphaString(),
		gen.SliceOf(gen.IntRange(0, 17)),
		gen.IntRange(0, 2),
	))

	properties.Property("loop iterations evaluate independently", prop.ForAll(
		func(childAges []int, changed int, newAge int) bool {
			if len(childAges) == 0 {
				return true
			}
			changed %= len(childAges)

			build := func(ages []int) types.AnswerStore {
				store := types.AnswerStore{Loops: map[types.QuestionID][]types.LoopInstance{}}
				for i, a := range ages {
					store.Loops["children"] = append(store.Loops["children"], types.LoopInstance{
						Index: i, Answers: map[types.QuestionID]types.AnswerValue{"child_age": types.Number(float64(a))},
					})
				}
				return store
			}

			modified := append([]int(nil), childAges...)
			modified[changed] = newAge

			before, err := NewEngine().EvaluatePage(PassInput{Survey: testSurvey(), PageID: "p2", Rules: rules[3:4], Answers: build(childAges)})
			if err != nil {
				return false
			}
			after, err := NewEngine().EvaluatePage(PassInput{Survey: testSurvey(), PageID: "p2", Rules: rules[3:4], Answers: build(modified)})
			if err != nil {
				return false
			}

			for i := range childAges {
				if i == changed {
					continue
				}
				if before.Visibility.LoopQuestionVisible("child_school", i) != after.Visibility.LoopQuestionVisible("child_school", i) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 17)),
		gen.IntRange(0, 100),
		gen.IntRange(0, 17),
	))

	properties.TestingRun(t)
}
