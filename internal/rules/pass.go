// internal/rules/pass.go
package rules

import (
	"fmt"
	"time"

	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Page evaluation pass.
 *
 * Orchestrates one render of one page:
 *   1. Context build: index the layout, wrap the answer store
 *   2. Rule fan-out: compile each rule, keep those targeting the page,
 *      evaluate once or once per loop iteration per its fan-out mode
 *   3. Resolve: fold all results into a VisibilityMap
 *   4. Emit: return the map plus the raw results and failures
 *
 * The pass is re-run from scratch after every answer mutation. There is no
 * incremental evaluation: pages hold tens of questions and re-evaluation is
 * negligible next to UI latency, while memoization risks stale visibility.
 *
 * Partial-failure isolation: a rule that fails compilation (unknown operator,
 * dangling reference, scope violation) is logged once per pass, contributes a
 * false outcome for its target when the target is on the page, and never
 * aborts the pass for the other rules.
 */

// PassInput is everything one pass needs. The engine takes the full answer
// snapshot as an argument and never reads shared state.
type PassInput struct {
	Survey  *types.Survey
	PageID  types.PageID
	Rules   []types.ConditionalRule
	Answers types.AnswerStore
	// LoopCounts overrides the iteration count per loop group. Groups absent
	// here use the highest stored instance index + 1.
	LoopCounts map[types.QuestionID]int
}

// RuleFailure records a rule skipped during the pass.
type RuleFailure struct {
	RuleID types.RuleID `json:"rule_id"`
	Error  string       `json:"error"`
}

// PassResult is the output of one pass.
type PassResult struct {
	Visibility VisibilityMap            `json:"visibility"`
	Results    []EvaluationResult       `json:"results"`
	Failures   []RuleFailure            `json:"failures,omitempty"`
	Iterations map[types.QuestionID]int `json:"iterations,omitempty"`
}

// EvaluatePage runs one evaluation pass for in.PageID.
// Returns an error only when the layout is unusable or the page is unknown;
// rule problems are absorbed into false outcomes.
func (e *Engine) EvaluatePage(in PassInput) (*PassResult, error) {
	start := time.Now()

	if in.Survey == nil {
		return nil, fmt.Errorf("survey layout required: %w", types.ErrSurveyNotFound)
	}
	index, err := types.NewLayoutIndex(in.Survey)
	if err != nil {
		return nil, fmt.Errorf("invalid survey layout: %w", err)
	}
	page, ok := index.Page(in.PageID)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", in.PageID, types.ErrPageNotFound)
	}

	answers := NewAnswerContext(index, in.Answers)
	iterations := iterationCounts(page, answers, in.LoopCounts)

	result := &PassResult{Iterations: iterations}
	targeted := 0
	logged := make(map[types.RuleID]bool)

	for i := range in.Rules {
		rule := &in.Rules[i]

		compiled, err := Compile(rule, index)
		if err != nil {
			if !logged[rule.ID] {
				logged[rule.ID] = true
				e.logger.Warn("skipping malformed rule",
					"rule_id", rule.ID,
					"survey_id", in.Survey.ID,
					"page_id", page.ID,
					"error", err)
			}
			result.Failures = append(result.Failures, RuleFailure{RuleID: rule.ID, Error: err.Error()})

			keys := fallbackKeys(rule, index, page.ID, iterations)
			if len(keys) > 0 {
				targeted++
			}
			for _, idx := range keys {
				result.Results = append(result.Results, failedResult(rule, idx))
			}
			continue
		}

		if compiled.TargetPage != page.ID {
			continue
		}
		targeted++
		result.Results = append(result.Results, fanOut(compiled, answers, iterations[compiled.LoopGroup])...)
	}

	result.Visibility = Resolve(result.Results, page, iterations)

	if e.observer != nil {
		e.observer.ObservePass(PassStats{
			SurveyID: in.Survey.ID,
			PageID:   page.ID,
			Rules:    len(in.Rules),
			Targeted: targeted,
			Results:  len(result.Results),
			Failed:   len(result.Failures),
			Duration: time.Since(start),
		})
	}

	return result, nil
}

// fanOut evaluates compiled once or per iteration according to its mode.
func fanOut(compiled *CompiledRule, answers *AnswerContext, n int) []EvaluationResult {
	switch compiled.Fanout {
	case FanoutBroadcast:
		r := EvaluateRule(compiled, answers, NoLoop)
		out := make([]EvaluationResult, 0, n)
		for i := 0; i < n; i++ {
			r.LoopIndex = i
			out = append(out, r)
		}
		return out

	case FanoutPerIteration:
		out := make([]EvaluationResult, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, EvaluateRule(compiled, answers, i))
		}
		return out

	case FanoutCollapse:
		if n == 0 {
			// No iterations: the condition has nothing to read, so it is false.
			r := EvaluateRule(compiled, answers, NoLoop)
			r.Outcome = false
			return []EvaluationResult{r}
		}
		out := make([]EvaluationResult, 0, n)
		for i := 0; i < n; i++ {
			r := EvaluateRule(compiled, answers, i)
			r.LoopIndex = NoLoop
			out = append(out, r)
		}
		return out

	default:
		return []EvaluationResult{EvaluateRule(compiled, answers, NoLoop)}
	}
}

// iterationCounts decides N per loop group on the page. Every requested
// iteration is evaluated; callers facing untrusted input bound LoopCounts
// and instance indices before the pass.
func iterationCounts(page *types.Page, answers *AnswerContext, overrides map[types.QuestionID]int) map[types.QuestionID]int {
	counts := make(map[types.QuestionID]int)
	for _, q := range page.Questions {
		if q.Type != types.QuestionLoopGroup {
			continue
		}
		n, ok := overrides[q.ID]
		if !ok || n < 0 {
			n = answers.StoredIterations(q.ID)
		}
		counts[q.ID] = n
	}
	return counts
}

// fallbackKeys locates the keys a rule that failed to compile would have
// targeted on pageID, using only the raw target reference. Returns nil when
// the target is unknown or lies elsewhere; such rules cannot affect the page.
func fallbackKeys(rule *types.ConditionalRule, index *types.LayoutIndex, pageID types.PageID, iterations map[types.QuestionID]int) []int {
	switch rule.TargetType {
	case types.TargetPage:
		if types.PageID(rule.TargetID) == pageID {
			return []int{NoLoop}
		}
	case types.TargetQuestion:
		target, ok := index.Question(types.QuestionID(rule.TargetID))
		if !ok || target.PageID != pageID {
			return nil
		}
		if !target.InLoop() {
			return []int{NoLoop}
		}
		n := iterations[target.LoopGroup]
		keys := make([]int, 0, n)
		for i := 0; i < n; i++ {
			keys = append(keys, i)
		}
		return keys
	}
	return nil
}
