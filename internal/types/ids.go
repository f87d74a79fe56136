package types

import (
	"github.com/google/uuid"
)

// SurveyID identifies a survey. Rules and layouts belong to exactly one survey.
type SurveyID string

// PageID identifies a page within a survey layout.
type PageID string

// QuestionID identifies a question or loop-group subquestion within a survey.
type QuestionID string

// RuleID identifies a conditional rule.
type RuleID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewSurveyID generates a UUIDv7 survey identifier.
func NewSurveyID() SurveyID {
	return SurveyID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering storage.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}
