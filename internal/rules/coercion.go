// internal/rules/coercion.go
package rules

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Type coercion for condition evaluation.
 *
 * Answers persist in mixed textual/boolean/numeric forms, so every comparison
 * first coerces both operands into one domain. Coercion happens only here;
 * operators never inspect raw kinds themselves.
 *
 * Domains:
 *   - BOOL: Lenient for text - "true"/"yes" and "false"/"no" (case-insensitive)
 *   - NUMBER: Numbers and numeric text; booleans rejected (strict mode)
 *   - DATE: Dates and date text (RFC 3339, ISO date, ISO datetime without zone)
 *   - TEXT: Lenient - scalars render as text; lists rejected
 *
 * Coercion failure returns types.ErrTypeMismatch. Callers turn that into a
 * false condition outcome; it never escapes the evaluator.
 */

// Domain selects the comparison domain for coercion.
type Domain int

const (
	DomainBool Domain = iota
	DomainNumber
	DomainDate
	DomainText
)

// dateLayouts are tried in order when coercing text to a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CoercionResult holds the value coerced into one domain.
// Only the field matching the requested domain is meaningful.
type CoercionResult struct {
	Bool   bool
	Number float64
	Date   time.Time
	Text   string
}

// Coerce converts value into the requested domain.
// Returns types.ErrTypeMismatch for absent values and impossible coercions.
func Coerce(value types.AnswerValue, domain Domain) (CoercionResult, error) {
	if !value.Present() {
		return CoercionResult{}, types.ErrTypeMismatch
	}

	switch domain {
	case DomainBool:
		b, ok := coerceBool(value)
		if !ok {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Bool: b}, nil
	case DomainNumber:
		n, ok := coerceNumber(value)
		if !ok {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Number: n}, nil
	case DomainDate:
		t, ok := coerceDate(value)
		if !ok {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Date: t}, nil
	case DomainText:
		s, ok := coerceText(value)
		if !ok {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Text: s}, nil
	default:
		return CoercionResult{}, types.ErrTypeMismatch
	}
}

// coerceBool accepts booleans and the textual forms answers are stored in.
func coerceBool(v types.AnswerValue) (bool, bool) {
	if b, ok := v.AsBool(); ok {
		return b, true
	}
	s, ok := v.AsText()
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	default:
		return false, false
	}
}

// coerceNumber accepts numbers and numeric text.
// Whitespace-only text, NaN and infinities are rejected so ordering stays total.
func coerceNumber(v types.AnswerValue) (float64, bool) {
	if n, ok := v.AsNumber(); ok {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	s, ok := v.AsText()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// coerceDate accepts dates and date text in the RFC 3339 / ISO 8601 forms.
func coerceDate(v types.AnswerValue) (time.Time, bool) {
	if t, ok := v.AsDate(); ok {
		return t, true
	}
	s, ok := v.AsText()
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceText renders scalars as text. Lists have no single textual form.
func coerceText(v types.AnswerValue) (string, bool) {
	switch v.Kind() {
	case types.KindText, types.KindBool, types.KindNumber, types.KindDate:
		if s, ok := v.AsText(); ok {
			return s, true
		}
		return v.String(), true
	default:
		return "", false
	}
}
