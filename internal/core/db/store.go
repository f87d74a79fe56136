package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/surveylogic/internal/rules"
	"github.com/solatis/surveylogic/internal/types"
)

// DefaultMaxRulesPerSurvey bounds stored rules per survey when no limit is configured.
const DefaultMaxRulesPerSurvey = 2000

// ErrRuleNotFound indicates a delete or lookup for a rule the survey lacks.
var ErrRuleNotFound = errors.New("rule not found")

// ErrRuleLimit indicates a survey already holds the maximum number of rules.
var ErrRuleLimit = errors.New("survey rule limit reached")

// ErrRuleConflict indicates a rule ID already stored under another survey.
var ErrRuleConflict = errors.New("rule belongs to another survey")

// Store persists survey layouts and their conditional rules.
//
// Rules are validated against the stored layout before they are written, so
// the evaluation engine only ever has to tolerate rules that went stale after
// authoring (a question deleted later), never rules that were broken at save.
type Store struct {
	db       *sqlx.DB
	queries  *Queries
	maxRules int
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxRules overrides DefaultMaxRulesPerSurvey.
func WithMaxRules(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxRules = n
		}
	}
}

// NewStore creates a store over an open database and its loaded queries.
func NewStore(db *sqlx.DB, queries *Queries, opts ...StoreOption) *Store {
	s := &Store{
		db:       db,
		queries:  queries,
		maxRules: DefaultMaxRulesPerSurvey,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type surveyRow struct {
	SurveyID  string    `db:"survey_id"`
	Layout    string    `db:"layout"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type ruleRow struct {
	RuleID     string    `db:"rule_id"`
	SurveyID   string    `db:"survey_id"`
	Position   int       `db:"position"`
	Definition string    `db:"definition"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// SaveSurvey creates or replaces a survey layout.
// The layout must index cleanly (unique IDs, no nested loops).
// Existing rules are kept; rules the new layout breaks evaluate false until fixed.
func (s *Store) SaveSurvey(ctx context.Context, survey *types.Survey) error {
	if survey.ID == "" {
		return fmt.Errorf("survey id required")
	}
	if _, err := types.NewLayoutIndex(survey); err != nil {
		return fmt.Errorf("invalid survey layout: %w", err)
	}

	layout, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("failed to encode survey: %w", err)
	}

	now := s.now()
	if _, err := s.queries.ExecContext(ctx, "upsert-survey", string(survey.ID), string(layout), now, now); err != nil {
		return fmt.Errorf("failed to save survey %s: %w", survey.ID, err)
	}
	return nil
}

// GetSurvey loads a survey layout. Returns types.ErrSurveyNotFound if absent.
func (s *Store) GetSurvey(ctx context.Context, id types.SurveyID) (*types.Survey, error) {
	var row surveyRow
	err := s.queries.GetContext(ctx, "get-survey", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("survey %s: %w", id, types.ErrSurveyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load survey %s: %w", id, err)
	}

	var survey types.Survey
	if err := json.Unmarshal([]byte(row.Layout), &survey); err != nil {
		return nil, fmt.Errorf("corrupt layout for survey %s: %w", id, err)
	}
	return &survey, nil
}

// DeleteSurvey removes a survey and, through the foreign key, its rules.
func (s *Store) DeleteSurvey(ctx context.Context, id types.SurveyID) error {
	res, err := s.queries.ExecContext(ctx, "delete-survey", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete survey %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("survey %s: %w", id, types.ErrSurveyNotFound)
	}
	return nil
}

// SaveRule validates rule against its survey's layout and upserts it at position.
// A new rule without an ID gets a UUIDv7.
func (s *Store) SaveRule(ctx context.Context, rule *types.ConditionalRule, position int) error {
	survey, err := s.GetSurvey(ctx, rule.SurveyID)
	if err != nil {
		return err
	}
	index, err := types.NewLayoutIndex(survey)
	if err != nil {
		return fmt.Errorf("invalid survey layout: %w", err)
	}

	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	if err := rules.ValidateRule(rule, index); err != nil {
		return err
	}

	var owner string
	err = s.queries.GetContext(ctx, "rule-survey", &owner, string(rule.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// New rule; updates of existing rules never count against the limit
		var count int
		if err := s.queries.GetContext(ctx, "count-rules", &count, string(rule.SurveyID)); err != nil {
			return fmt.Errorf("failed to count rules: %w", err)
		}
		if count >= s.maxRules {
			return fmt.Errorf("survey %s has %d rules: %w", rule.SurveyID, count, ErrRuleLimit)
		}
	case err != nil:
		return fmt.Errorf("failed to look up rule %s: %w", rule.ID, err)
	case owner != string(rule.SurveyID):
		return fmt.Errorf("rule %s is owned by survey %s: %w", rule.ID, owner, ErrRuleConflict)
	}

	return s.upsertRule(ctx, s.queries, rule, position)
}

// ReplaceRules validates every rule and atomically replaces the survey's
// rule set. Rules keep the order given. Returns all validation errors, joined.
func (s *Store) ReplaceRules(ctx context.Context, surveyID types.SurveyID, set []types.ConditionalRule) error {
	survey, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return err
	}
	index, err := types.NewLayoutIndex(survey)
	if err != nil {
		return fmt.Errorf("invalid survey layout: %w", err)
	}
	if len(set) > s.maxRules {
		return fmt.Errorf("survey %s: %d rules: %w", surveyID, len(set), ErrRuleLimit)
	}

	for i := range set {
		if set[i].ID == "" {
			set[i].ID = types.NewRuleID()
		}
		if set[i].SurveyID == "" {
			set[i].SurveyID = surveyID
		}
	}
	errs := rules.ValidateRules(set, index)
	for i := range set {
		if set[i].SurveyID != surveyID {
			errs = append(errs, &types.RuleError{RuleID: set[i].ID, Err: ErrRuleConflict,
				Detail: fmt.Sprintf("survey_id %s in set for survey %s", set[i].SurveyID, surveyID)})
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if _, err := q.ExecContext(ctx, "delete-survey-rules", string(surveyID)); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}
	for i := range set {
		if err := s.upsertRule(ctx, q, &set[i], i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

func (s *Store) upsertRule(ctx context.Context, q *Queries, rule *types.ConditionalRule, position int) error {
	definition, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule %s: %w", rule.ID, err)
	}

	now := s.now()
	res, err := q.ExecContext(ctx, "upsert-rule",
		string(rule.ID), string(rule.SurveyID), position, string(definition), now, now)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	// The conflict update is scoped to the owning survey; zero rows means the
	// ID is taken by another one
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleConflict)
	}
	return nil
}

// ListRules returns the survey's rules ordered by position, then rule ID.
func (s *Store) ListRules(ctx context.Context, surveyID types.SurveyID) ([]types.ConditionalRule, error) {
	var rows []ruleRow
	if err := s.queries.SelectContext(ctx, "list-rules", &rows, string(surveyID)); err != nil {
		return nil, fmt.Errorf("failed to list rules for survey %s: %w", surveyID, err)
	}

	out := make([]types.ConditionalRule, 0, len(rows))
	for _, row := range rows {
		var rule types.ConditionalRule
		if err := json.Unmarshal([]byte(row.Definition), &rule); err != nil {
			return nil, fmt.Errorf("corrupt definition for rule %s: %w", row.RuleID, err)
		}
		// Columns are authoritative over the encoded copy
		rule.ID = types.RuleID(row.RuleID)
		rule.SurveyID = types.SurveyID(row.SurveyID)
		out = append(out, rule)
	}
	return out, nil
}

// DeleteRule removes one rule. Returns ErrRuleNotFound if the survey lacks it.
func (s *Store) DeleteRule(ctx context.Context, surveyID types.SurveyID, ruleID types.RuleID) error {
	res, err := s.queries.ExecContext(ctx, "delete-rule", string(surveyID), string(ruleID))
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrRuleNotFound)
	}
	return nil
}

// LoadSurveyRules returns a survey layout together with its rules.
func (s *Store) LoadSurveyRules(ctx context.Context, surveyID types.SurveyID) (*types.Survey, []types.ConditionalRule, error) {
	survey, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	set, err := s.ListRules(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	return survey, set, nil
}
