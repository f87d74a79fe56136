package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule validation and evaluation.
var (
	// ErrReferenceNotFound indicates a rule points at a question or page that
	// does not exist in the survey layout.
	ErrReferenceNotFound = errors.New("referenced question or page not found")

	// ErrTypeMismatch indicates an operator or compare value incompatible with
	// the source question's answer type.
	ErrTypeMismatch = errors.New("operator incompatible with question type")

	// ErrScopeViolation indicates a loop-scoped rule targeting outside its loop group.
	ErrScopeViolation = errors.New("rule targets outside its loop scope")

	// ErrInvalidOperator indicates an unknown operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidAction indicates an action other than show or hide.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidTarget indicates a target type other than question or page.
	ErrInvalidTarget = errors.New("invalid target type")

	// ErrInvalidLogic indicates a condition grouping other than all or any.
	ErrInvalidLogic = errors.New("invalid condition logic")

	// ErrTooManyConditions indicates a rule exceeds MaxConditionsPerRule.
	ErrTooManyConditions = errors.New("rule has too many conditions")

	// ErrTooManyValues indicates a compare list exceeds MaxCompareValues.
	ErrTooManyValues = errors.New("compare value list too long")

	// ErrSurveyMismatch indicates a rule whose survey differs from the layout.
	ErrSurveyMismatch = errors.New("rule belongs to a different survey")

	// ErrDuplicateID indicates a survey layout reuses a question or page ID.
	ErrDuplicateID = errors.New("duplicate question or page id")

	// ErrNestedLoop indicates a loop group declared inside another loop group.
	ErrNestedLoop = errors.New("loop groups cannot nest")

	// ErrPageNotFound indicates an evaluation pass for a page the survey lacks.
	ErrPageNotFound = errors.New("page not found")

	// ErrSurveyNotFound indicates storage has no survey with the requested ID.
	ErrSurveyNotFound = errors.New("survey not found")
)

// RuleError ties a validation or compilation failure to the rule that caused it.
type RuleError struct {
	RuleID RuleID
	Err    error
	Detail string
}

func (e *RuleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
	}
	return fmt.Sprintf("rule %s: %v: %s", e.RuleID, e.Err, e.Detail)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// NewRuleError builds a RuleError with a formatted detail message.
func NewRuleError(id RuleID, err error, format string, args ...any) *RuleError {
	return &RuleError{RuleID: id, Err: err, Detail: fmt.Sprintf(format, args...)}
}
