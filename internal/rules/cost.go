// internal/rules/cost.go
package rules

import "github.com/solatis/surveylogic/internal/types"

/*
 * Cost model for condition ordering.
 *
 * Conditions inside one rule are evaluated cheapest-first so all/any grouping
 * short-circuits early. Ordering never changes outcomes: operators are pure,
 * so a cost-ordered rule and a declaration-ordered rule agree on every input.
 *
 * Cost formula: lookup_cost + operator_cost * (1 + compare_list_length)
 *
 * Loop-scoped lookups pay an extra map hop; one_of/none_of and list contains
 * scale with the compare list.
 */

// Canonical cost constants.
const (
	// Operator base costs
	CostIsAnswered = 1
	CostEquals     = 5
	CostOrdered    = 7
	CostOneOf      = 8
	CostContains   = 10

	// Lookup costs
	CostLookupTopLevel = 2
	CostLookupLoop     = 4
)

// CalculateConditionCost computes the ordering cost of one condition.
func CalculateConditionCost(op types.Operator, inLoop bool, compare types.AnswerValue) int {
	lookup := CostLookupTopLevel
	if inLoop {
		lookup = CostLookupLoop
	}

	listLen := 0
	if list, ok := compare.AsList(); ok {
		listLen = len(list)
	}

	return lookup + operatorCost(op)*(1+listLen)
}

// operatorCost returns base cost for operator execution.
func operatorCost(op types.Operator) int {
	switch op {
	case types.OpIsAnswered, types.OpIsNotAnswered:
		return CostIsAnswered
	case types.OpEquals, types.OpNotEquals:
		return CostEquals
	case types.OpGreaterThan, types.OpLessThan:
		return CostOrdered
	case types.OpOneOf, types.OpNoneOf:
		return CostOneOf
	case types.OpContains, types.OpNotContains:
		return CostContains
	default:
		return CostEquals
	}
}
