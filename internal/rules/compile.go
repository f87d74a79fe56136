// internal/rules/compile.go
package rules

import (
	"sort"

	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Rule compilation against a survey layout.
 *
 * Compiles types.ConditionalRule into a CompiledRule with resolved source
 * locations, converted compare values, cost-ordered conditions and a fan-out
 * mode describing how the pass evaluates it.
 *
 * Compilation workflow:
 *   1. Validate enums (operator, action, target type, logic) and limits
 *   2. Resolve every source question; derive the rule's loop scope
 *   3. Resolve the target and check it lies inside the loop scope
 *   4. Convert compare values to AnswerValue; order conditions by cost
 *
 * Fan-out modes:
 *   - FanoutOnce:         top-level sources, top-level target
 *   - FanoutBroadcast:    top-level sources, loop subquestion target; one
 *                         outcome copied to every iteration
 *   - FanoutPerIteration: loop sources, subquestion of the same loop; one
 *                         independent outcome per iteration
 *   - FanoutCollapse:     loop sources, top-level question on the loop's page;
 *                         every iteration's outcome lands on the same key
 *
 * Failures wrap taxonomy sentinels in types.RuleError. The pass treats every
 * compile failure as a false outcome (ReferenceError semantics), so a broken
 * rule over-hides instead of misapplying loop indices.
 *
 * Why stable sort: equal-cost conditions keep declaration order so
 * diagnostics name the same first failing condition across identical inputs.
 */

// Fanout describes how a compiled rule maps onto result keys.
type Fanout int

const (
	FanoutOnce Fanout = iota
	FanoutBroadcast
	FanoutPerIteration
	FanoutCollapse
)

// CompiledCondition is a resolved condition ready for evaluation.
type CompiledCondition struct {
	Source   types.QuestionID
	InLoop   bool
	Operator types.Operator
	Compare  types.AnswerValue
	Cost     int
}

// CompiledRule is a rule resolved against one survey layout.
type CompiledRule struct {
	RuleID     types.RuleID
	TargetType types.TargetType
	TargetID   string
	TargetPage types.PageID
	Action     types.Action
	Logic      types.Logic
	Conditions []CompiledCondition // ordered by ascending cost
	LoopGroup  types.QuestionID    // loop driving iteration; empty for FanoutOnce
	Fanout     Fanout
}

// Compile validates rule against index and pre-processes it for evaluation.
func Compile(rule *types.ConditionalRule, index *types.LayoutIndex) (*CompiledRule, error) {
	if rule.SurveyID != "" && index.SurveyID() != "" && rule.SurveyID != index.SurveyID() {
		return nil, types.NewRuleError(rule.ID, types.ErrSurveyMismatch, "rule survey %s, layout survey %s", rule.SurveyID, index.SurveyID())
	}
	if !rule.Action.Valid() {
		return nil, types.NewRuleError(rule.ID, types.ErrInvalidAction, "%q", rule.Action)
	}
	if !rule.TargetType.Valid() {
		return nil, types.NewRuleError(rule.ID, types.ErrInvalidTarget, "%q", rule.TargetType)
	}
	if !rule.Logic.Valid() {
		return nil, types.NewRuleError(rule.ID, types.ErrInvalidLogic, "%q", rule.Logic)
	}
	if 1+len(rule.Conditions) > types.MaxConditionsPerRule {
		return nil, types.NewRuleError(rule.ID, types.ErrTooManyConditions, "%d conditions", 1+len(rule.Conditions))
	}

	conditions, sourceLoop, err := compileConditions(rule, index)
	if err != nil {
		return nil, err
	}

	loop, err := resolveLoopScope(rule, index, sourceLoop)
	if err != nil {
		return nil, err
	}

	compiled := &CompiledRule{
		RuleID:     rule.ID,
		TargetType: rule.TargetType,
		TargetID:   rule.TargetID,
		Action:     rule.Action,
		Logic:      rule.Logic,
		Conditions: conditions,
		LoopGroup:  loop,
	}
	if compiled.Logic == "" {
		compiled.Logic = types.LogicAll
	}

	if err := resolveTarget(compiled, rule, index); err != nil {
		return nil, err
	}

	// Stable sort: equal-cost conditions maintain declaration order
	sort.SliceStable(compiled.Conditions, func(i, j int) bool {
		return compiled.Conditions[i].Cost < compiled.Conditions[j].Cost
	})

	return compiled, nil
}

// compileConditions resolves every condition's source and compare value.
// Returns the single loop group the sources live in, or empty.
func compileConditions(rule *types.ConditionalRule, index *types.LayoutIndex) ([]CompiledCondition, types.QuestionID, error) {
	all := rule.AllConditions()
	conditions := make([]CompiledCondition, 0, len(all))
	var sourceLoop types.QuestionID

	for i, cond := range all {
		if !cond.Operator.Valid() {
			return nil, "", types.NewRuleError(rule.ID, types.ErrInvalidOperator, "condition %d: %q", i, cond.Operator)
		}

		info, ok := index.Question(cond.SourceQuestionID)
		if !ok {
			return nil, "", types.NewRuleError(rule.ID, types.ErrReferenceNotFound, "condition %d: source question %s", i, cond.SourceQuestionID)
		}
		if info.Type == types.QuestionLoopGroup {
			return nil, "", types.NewRuleError(rule.ID, types.ErrTypeMismatch, "condition %d: loop group %s has no answer value", i, cond.SourceQuestionID)
		}

		if info.InLoop() {
			if sourceLoop != "" && sourceLoop != info.LoopGroup {
				return nil, "", types.NewRuleError(rule.ID, types.ErrScopeViolation, "sources span loop groups %s and %s", sourceLoop, info.LoopGroup)
			}
			sourceLoop = info.LoopGroup
		}

		compare, err := compileCompareValue(cond)
		if err != nil {
			return nil, "", types.NewRuleError(rule.ID, err, "condition %d", i)
		}

		conditions = append(conditions, CompiledCondition{
			Source:   cond.SourceQuestionID,
			InLoop:   info.InLoop(),
			Operator: cond.Operator,
			Compare:  compare,
			Cost:     CalculateConditionCost(cond.Operator, info.InLoop(), compare),
		})
	}

	return conditions, sourceLoop, nil
}

// compileCompareValue converts the untyped operand and checks its shape.
func compileCompareValue(cond types.Condition) (types.AnswerValue, error) {
	compare, err := types.ValueFromRaw(cond.CompareValue)
	if err != nil {
		return types.AnswerValue{}, err
	}

	switch cond.Operator {
	case types.OpIsAnswered, types.OpIsNotAnswered:
		return compare, nil
	}

	if !compare.Present() {
		return types.AnswerValue{}, types.ErrTypeMismatch
	}
	if list, ok := compare.AsList(); ok && len(list) > types.MaxCompareValues {
		return types.AnswerValue{}, types.ErrTooManyValues
	}
	return compare, nil
}

// resolveLoopScope reconciles the loop group derived from the sources with
// the rule's explicit LoopScope.
func resolveLoopScope(rule *types.ConditionalRule, index *types.LayoutIndex, sourceLoop types.QuestionID) (types.QuestionID, error) {
	if rule.LoopScope == "" {
		return sourceLoop, nil
	}
	if !index.IsLoopGroup(rule.LoopScope) {
		return "", types.NewRuleError(rule.ID, types.ErrScopeViolation, "loop scope %s is not a loop group", rule.LoopScope)
	}
	if sourceLoop != "" && sourceLoop != rule.LoopScope {
		return "", types.NewRuleError(rule.ID, types.ErrScopeViolation, "sources in %s, loop scope %s", sourceLoop, rule.LoopScope)
	}
	return rule.LoopScope, nil
}

// resolveTarget locates the target and selects the fan-out mode.
// Loop-scoped rules may target subquestions of their own loop group or
// questions on the page containing it, never pages.
func resolveTarget(compiled *CompiledRule, rule *types.ConditionalRule, index *types.LayoutIndex) error {
	loop := compiled.LoopGroup

	if rule.TargetType == types.TargetPage {
		page, ok := index.Page(types.PageID(rule.TargetID))
		if !ok {
			return types.NewRuleError(rule.ID, types.ErrReferenceNotFound, "target page %s", rule.TargetID)
		}
		if loop != "" {
			return types.NewRuleError(rule.ID, types.ErrScopeViolation, "loop-scoped rule cannot target page %s", rule.TargetID)
		}
		compiled.TargetPage = page.ID
		compiled.Fanout = FanoutOnce
		return nil
	}

	target, ok := index.Question(types.QuestionID(rule.TargetID))
	if !ok {
		return types.NewRuleError(rule.ID, types.ErrReferenceNotFound, "target question %s", rule.TargetID)
	}
	compiled.TargetPage = target.PageID

	switch {
	case loop == "" && !target.InLoop():
		compiled.Fanout = FanoutOnce
	case loop == "":
		compiled.Fanout = FanoutBroadcast
		compiled.LoopGroup = target.LoopGroup
	case target.LoopGroup == loop:
		compiled.Fanout = FanoutPerIteration
	case target.InLoop():
		return types.NewRuleError(rule.ID, types.ErrScopeViolation, "target %s belongs to loop group %s, rule scoped to %s", rule.TargetID, target.LoopGroup, loop)
	default:
		group, _ := index.Question(loop)
		if target.PageID != group.PageID {
			return types.NewRuleError(rule.ID, types.ErrScopeViolation, "target %s is not on page %s of loop group %s", rule.TargetID, group.PageID, loop)
		}
		compiled.Fanout = FanoutCollapse
	}
	return nil
}
