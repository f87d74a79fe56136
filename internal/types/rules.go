// internal/types/rules.go
package types

/*
 * Domain types for conditional visibility rules.
 *
 * Provides ConditionalRule and Condition structures used by internal/rules
 * for compilation and evaluation, and by internal/core/db for storage. Enum
 * values are strings because they are persisted and exchanged as JSON text.
 *
 * Key types:
 *   - ConditionalRule: primary condition + optional extra conditions, target, action
 *   - Condition: one source question, operator and compare value
 *   - Operator, TargetType, Action, Logic: closed string enums with Valid()
 *
 * Dependencies: None
 */

// Operator names the comparison a condition performs.
type Operator string

const (
	OpEquals        Operator = "equals"
	OpNotEquals     Operator = "not_equals"
	OpContains      Operator = "contains"
	OpNotContains   Operator = "not_contains"
	OpGreaterThan   Operator = "greater_than"
	OpLessThan      Operator = "less_than"
	OpIsAnswered    Operator = "is_answered"
	OpIsNotAnswered Operator = "is_not_answered"
	OpOneOf         Operator = "one_of"
	OpNoneOf        Operator = "none_of"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan,
		OpLessThan, OpIsAnswered, OpIsNotAnswered, OpOneOf, OpNoneOf:
		return true
	}
	return false
}

// TargetType is the kind of entity a rule affects.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetPage     TargetType = "page"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetQuestion || t == TargetPage
}

// Action is applied to the target when the rule's conditions evaluate true.
type Action string

const (
	ActionShow Action = "show"
	ActionHide Action = "hide"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionShow || a == ActionHide
}

// Logic combines the conditions of one rule.
type Logic string

const (
	LogicAll Logic = "all"
	LogicAny Logic = "any"
)

// Valid reports whether l is a known grouping. Empty means LogicAll.
func (l Logic) Valid() bool {
	return l == "" || l == LogicAll || l == LogicAny
}

// Condition is a single comparison against one source question's answer.
type Condition struct {
	SourceQuestionID QuestionID `json:"source_question_id" yaml:"source_question_id"`
	Operator         Operator   `json:"operator" yaml:"operator"`
	CompareValue     any        `json:"compare_value,omitempty" yaml:"compare_value,omitempty"` // nil for is_answered/is_not_answered
}

// ConditionalRule is an author-defined condition-action pair.
// The embedded primary condition is always evaluated; Conditions are
// combined with it according to Logic.
type ConditionalRule struct {
	ID               RuleID      `json:"id" yaml:"id"`
	SurveyID         SurveyID    `json:"survey_id" yaml:"survey_id"`
	SourceQuestionID QuestionID  `json:"source_question_id" yaml:"source_question_id"`
	Operator         Operator    `json:"operator" yaml:"operator"`
	CompareValue     any         `json:"compare_value,omitempty" yaml:"compare_value,omitempty"`
	Conditions       []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Logic            Logic       `json:"logic,omitempty" yaml:"logic,omitempty"`
	TargetType       TargetType  `json:"target_type" yaml:"target_type"`
	TargetID         string      `json:"target_id" yaml:"target_id"`
	Action           Action      `json:"action" yaml:"action"`
	LoopScope        QuestionID  `json:"loop_scope,omitempty" yaml:"loop_scope,omitempty"`
}

// AllConditions returns the primary condition followed by Conditions.
func (r *ConditionalRule) AllConditions() []Condition {
	all := make([]Condition, 0, 1+len(r.Conditions))
	all = append(all, Condition{
		SourceQuestionID: r.SourceQuestionID,
		Operator:         r.Operator,
		CompareValue:     r.CompareValue,
	})
	return append(all, r.Conditions...)
}
