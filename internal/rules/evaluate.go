// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Rule evaluation.
 *
 * Evaluates a CompiledRule against the AnswerContext for one loop index.
 * Sources are looked up with the rule's own loop scope (not the target's):
 * top-level sources ignore the index, loop sources read that iteration.
 *
 * Grouping:
 *   - all: every condition must match (short-circuit on first non-match)
 *   - any: at least one condition must match (short-circuit on first match)
 *
 * Conditions arrive cost-ordered from compilation, which maximizes
 * short-circuit benefit without affecting outcomes.
 */

// EvaluationResult is the outcome of one rule for one result key.
type EvaluationResult struct {
	RuleID     types.RuleID     `json:"rule_id"`
	TargetType types.TargetType `json:"target_type"`
	TargetID   string           `json:"target_id"`
	LoopIndex  int              `json:"loop_index"` // NoLoop for top-level keys
	Outcome    bool             `json:"outcome"`
	Action     types.Action     `json:"action"`
}

// Key returns the resolver grouping key for the result.
func (r EvaluationResult) Key() EntityKey {
	return EntityKey{Type: r.TargetType, ID: r.TargetID, LoopIndex: r.LoopIndex}
}

// EvaluateRule evaluates rule at loopIndex (NoLoop for non-iterating rules).
// The result is keyed at loopIndex; callers re-key results for fan-out modes
// whose target key differs from the evaluation index.
func EvaluateRule(rule *CompiledRule, answers *AnswerContext, loopIndex int) EvaluationResult {
	return EvaluationResult{
		RuleID:     rule.RuleID,
		TargetType: rule.TargetType,
		TargetID:   rule.TargetID,
		LoopIndex:  loopIndex,
		Outcome:    evaluateConditions(rule, answers, loopIndex),
		Action:     rule.Action,
	}
}

// evaluateConditions combines condition outcomes with the rule's logic.
func evaluateConditions(rule *CompiledRule, answers *AnswerContext, loopIndex int) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for _, cond := range rule.Conditions {
		matched := evaluateCompiledCondition(cond, answers, loopIndex)
		if rule.Logic == types.LogicAny && matched {
			return true
		}
		if rule.Logic != types.LogicAny && !matched {
			return false
		}
	}

	return rule.Logic != types.LogicAny
}

// evaluateCompiledCondition orchestrates: lookup -> compare.
func evaluateCompiledCondition(cond CompiledCondition, answers *AnswerContext, loopIndex int) bool {
	value, ok := answers.Lookup(cond.Source, loopIndex)
	if !ok {
		value = types.AnswerValue{}
	}
	return EvaluateCondition(cond.Operator, cond.Compare, value)
}

// failedResult is the outcome recorded for a rule that could not compile:
// condition treated as false, so the rule's action does not fire.
func failedResult(rule *types.ConditionalRule, loopIndex int) EvaluationResult {
	return EvaluationResult{
		RuleID:     rule.ID,
		TargetType: rule.TargetType,
		TargetID:   rule.TargetID,
		LoopIndex:  loopIndex,
		Outcome:    false,
		Action:     rule.Action,
	}
}
