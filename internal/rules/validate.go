// internal/rules/validate.go
package rules

import (
	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Authoring-time rule validation.
 *
 * Runs before rules are persisted. Evaluation tolerates broken rules by
 * treating them as false; storage does not, so authors see the problem when
 * they save rather than when a respondent hits the page.
 *
 * Checks, in order:
 *   1. Everything Compile checks (enums, references, loop scope, limits)
 *   2. Operator is meaningful for the source question type
 *   3. Compare value coerces into the source question's domain
 *
 * Operator compatibility by source question type:
 *   - is_answered, is_not_answered: any type
 *   - equals, not_equals:           any type
 *   - contains, not_contains:       text, multi_choice
 *   - greater_than, less_than:      number, date
 *   - one_of, none_of:              single_choice, multi_choice, text
 */

// ValidateRule checks rule against the survey layout.
// Returns nil or a *types.RuleError wrapping a taxonomy sentinel.
func ValidateRule(rule *types.ConditionalRule, index *types.LayoutIndex) error {
	if _, err := Compile(rule, index); err != nil {
		return err
	}

	for i, cond := range rule.AllConditions() {
		// Compile resolved every source, so the lookup cannot fail here.
		info, _ := index.Question(cond.SourceQuestionID)
		if !operatorAllowed(cond.Operator, info.Type) {
			return types.NewRuleError(rule.ID, types.ErrTypeMismatch,
				"condition %d: operator %s not supported for %s question %s", i, cond.Operator, info.Type, info.ID)
		}
		if err := checkCompareValue(cond, info.Type); err != nil {
			return types.NewRuleError(rule.ID, err, "condition %d: compare value %v for %s question %s", i, cond.CompareValue, info.Type, info.ID)
		}
	}
	return nil
}

// ValidateRules validates every rule and additionally rejects repeated rule IDs.
// Errors are returned in rule order; an empty result means all rules are valid.
func ValidateRules(rules []types.ConditionalRule, index *types.LayoutIndex) []error {
	var errs []error
	seen := make(map[types.RuleID]bool, len(rules))

	for i := range rules {
		rule := &rules[i]
		if seen[rule.ID] {
			errs = append(errs, types.NewRuleError(rule.ID, types.ErrDuplicateID, "rule id repeated"))
			continue
		}
		seen[rule.ID] = true

		if err := ValidateRule(rule, index); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func operatorAllowed(op types.Operator, qt types.QuestionType) bool {
	switch op {
	case types.OpIsAnswered, types.OpIsNotAnswered, types.OpEquals, types.OpNotEquals:
		return true
	case types.OpContains, types.OpNotContains:
		return qt == types.QuestionText || qt == types.QuestionMultiChoice
	case types.OpGreaterThan, types.OpLessThan:
		return qt == types.QuestionNumber || qt == types.QuestionDate
	case types.OpOneOf, types.OpNoneOf:
		return qt == types.QuestionSingleChoice || qt == types.QuestionMultiChoice || qt == types.QuestionText
	default:
		return false
	}
}

// checkCompareValue verifies the operand can ever match an answer of type qt.
func checkCompareValue(cond types.Condition, qt types.QuestionType) error {
	switch cond.Operator {
	case types.OpIsAnswered, types.OpIsNotAnswered:
		return nil
	}

	compare, err := types.ValueFromRaw(cond.CompareValue)
	if err != nil {
		return err
	}

	switch cond.Operator {
	case types.OpOneOf, types.OpNoneOf:
		if _, ok := compare.AsList(); !ok {
			return types.ErrTypeMismatch
		}
		return nil
	case types.OpContains, types.OpNotContains:
		return nil
	}

	// A list equals a multi-select answer elementwise; only scalars need a domain.
	if _, ok := compare.AsList(); ok {
		if qt == types.QuestionMultiChoice && (cond.Operator == types.OpEquals || cond.Operator == types.OpNotEquals) {
			return nil
		}
		return types.ErrTypeMismatch
	}

	var ok bool
	switch qt {
	case types.QuestionNumber:
		_, ok = coerceNumber(compare)
	case types.QuestionDate:
		_, ok = coerceDate(compare)
	case types.QuestionBoolean:
		_, ok = coerceBool(compare)
	default:
		_, ok = coerceText(compare)
	}
	if !ok {
		return types.ErrTypeMismatch
	}
	return nil
}
