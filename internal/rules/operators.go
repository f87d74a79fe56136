// internal/rules/operators.go
package rules

import (
	"strings"

	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the 10 condition operators over AnswerValue operands. Each
 * comparison helper returns (matched, comparable); negated operators only
 * invert matched when the operands were comparable, so a type mismatch is
 * false for both an operator and its negation.
 *
 * Operators:
 *   - is_answered/is_not_answered: only operators valid for unanswered values
 *   - equals/not_equals: bool -> number -> date -> case-insensitive text
 *   - contains/not_contains: list membership or case-insensitive substring
 *   - greater_than/less_than: numeric, else date
 *   - one_of/none_of: intersection with the compare sequence
 *
 * Fail-closed: every operator except is_not_answered is false against an
 * unanswered value. A rule cannot reveal a question based on a value that
 * does not exist yet.
 *
 * Why function-based: one switch over 10 operators keeps the whole truth
 * table in one screen; the behavior variation per operator is small.
 */

// EvaluateCondition applies op with compare as the reference operand to the
// looked-up answer value. Absent or empty values count as unanswered.
// Pure and deterministic; never panics.
func EvaluateCondition(op types.Operator, compare, value types.AnswerValue) bool {
	answered := !value.IsEmpty()

	switch op {
	case types.OpIsAnswered:
		return answered
	case types.OpIsNotAnswered:
		return !answered
	}

	if !answered {
		return false
	}

	var matched, comparable bool
	switch op {
	case types.OpEquals, types.OpNotEquals:
		matched, comparable = compareEqual(value, compare)
	case types.OpContains, types.OpNotContains:
		matched, comparable = compareContains(value, compare)
	case types.OpGreaterThan:
		var cmp int
		cmp, comparable = compareOrdered(value, compare)
		matched = cmp > 0
	case types.OpLessThan:
		var cmp int
		cmp, comparable = compareOrdered(value, compare)
		matched = cmp < 0
	case types.OpOneOf, types.OpNoneOf:
		matched, comparable = compareIntersects(value, compare)
	default:
		return false
	}

	if !comparable {
		return false
	}
	switch op {
	case types.OpNotEquals, types.OpNotContains, types.OpNoneOf:
		return !matched
	default:
		return matched
	}
}

// compareEqual performs structural equality after normalization.
// Sequences compare elementwise; a sequence equals a scalar only when it
// holds exactly that one element.
func compareEqual(a, b types.AnswerValue) (bool, bool) {
	la, aList := a.AsList()
	lb, bList := b.AsList()

	switch {
	case aList && bList:
		if len(la) != len(lb) {
			return false, true
		}
		for i := range la {
			if !textEqual(la[i], lb[i]) {
				return false, true
			}
		}
		return true, true
	case aList:
		if len(la) != 1 {
			return false, true
		}
		return scalarEqual(types.Text(la[0]), b)
	case bList:
		if len(lb) != 1 {
			return false, true
		}
		return scalarEqual(a, types.Text(lb[0]))
	default:
		return scalarEqual(a, b)
	}
}

// scalarEqual tries the bool, number and date domains before falling back to
// case-insensitive text. An operand with a typed kind pins the domain: a Bool
// answer never equals "maybe" textually.
func scalarEqual(a, b types.AnswerValue) (bool, bool) {
	if ba, oka := coerceBool(a); oka {
		if bb, okb := coerceBool(b); okb {
			return ba == bb, true
		}
	}
	if a.Kind() == types.KindBool || b.Kind() == types.KindBool {
		return false, false
	}

	if na, oka := coerceNumber(a); oka {
		if nb, okb := coerceNumber(b); okb {
			return na == nb, true
		}
	}
	if a.Kind() == types.KindNumber || b.Kind() == types.KindNumber {
		return false, false
	}

	if a.Kind() == types.KindDate || b.Kind() == types.KindDate {
		ta, oka := coerceDate(a)
		tb, okb := coerceDate(b)
		if !oka || !okb {
			return false, false
		}
		return ta.Equal(tb), true
	}

	sa, oka := coerceText(a)
	sb, okb := coerceText(b)
	if !oka || !okb {
		return false, false
	}
	return textEqual(sa, sb), true
}

// textEqual compares option labels and free text case-insensitively.
func textEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// compareContains tests list membership or substring containment.
// A list compare value requires every element to be contained.
func compareContains(value, compare types.AnswerValue) (bool, bool) {
	needles, ok := compare.AsList()
	if !ok {
		s, ok := coerceText(compare)
		if !ok {
			return false, false
		}
		needles = []string{s}
	}

	if list, ok := value.AsList(); ok {
		for _, needle := range needles {
			if !containsFold(list, needle) {
				return false, true
			}
		}
		return true, true
	}

	text, ok := value.AsText()
	if !ok {
		return false, false
	}
	haystack := strings.ToLower(text)
	for _, needle := range needles {
		if !strings.Contains(haystack, strings.ToLower(needle)) {
			return false, true
		}
	}
	return true, true
}

// containsFold reports whether list holds item under textEqual.
func containsFold(list []string, item string) bool {
	for _, elem := range list {
		if textEqual(elem, item) {
			return true
		}
	}
	return false
}

// compareOrdered performs three-way comparison in the number domain, falling
// back to dates. Returns comparable=false when neither domain fits both operands.
func compareOrdered(a, b types.AnswerValue) (int, bool) {
	if na, oka := coerceNumber(a); oka {
		if nb, okb := coerceNumber(b); okb {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	ta, oka := coerceDate(a)
	tb, okb := coerceDate(b)
	if !oka || !okb {
		return 0, false
	}
	return ta.Compare(tb), true
}

// compareIntersects reports whether value (scalar or sequence) shares an
// element with compare. A scalar compare value acts as a one-element sequence.
func compareIntersects(value, compare types.AnswerValue) (bool, bool) {
	options, ok := compare.AsList()
	if !ok {
		if !compare.Present() {
			return false, false
		}
		options = []string{compare.String()}
	}

	var candidates []types.AnswerValue
	if list, ok := value.AsList(); ok {
		for _, item := range list {
			candidates = append(candidates, types.Text(item))
		}
	} else {
		candidates = []types.AnswerValue{value}
	}

	comparable := false
	for _, candidate := range candidates {
		for _, option := range options {
			matched, ok := scalarEqual(candidate, types.Text(option))
			if !ok {
				continue
			}
			comparable = true
			if matched {
				return true, true
			}
		}
	}
	return false, comparable
}
