// Package api provides the visibility service shared by the gRPC and REST
// transports of surveylogic.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/surveylogic/internal/core/auth"
	"github.com/solatis/surveylogic/internal/logging"
	"github.com/solatis/surveylogic/internal/rules"
	"github.com/solatis/surveylogic/internal/types"
)

// RuleSource loads a survey layout together with its stored rules.
// Implemented by *db.Store and *cache.RuleCache.
type RuleSource interface {
	LoadSurveyRules(ctx context.Context, surveyID types.SurveyID) (*types.Survey, []types.ConditionalRule, error)
}

// EvaluatePageRequest asks for the visibility of one page.
// Previous, when set, is the map the client rendered last; the response then
// carries the changes from it.
type EvaluatePageRequest struct {
	SurveyID   types.SurveyID           `json:"survey_id"`
	PageID     types.PageID             `json:"page_id"`
	Answers    types.AnswerStore        `json:"answers"`
	LoopCounts map[types.QuestionID]int `json:"loop_counts,omitempty"`
	Previous   *rules.VisibilityMap     `json:"previous,omitempty"`
}

// EvaluatePageResponse is the outcome of one evaluation pass.
type EvaluatePageResponse struct {
	Visibility rules.VisibilityMap      `json:"visibility"`
	Failures   []rules.RuleFailure      `json:"failures,omitempty"`
	Iterations map[types.QuestionID]int `json:"iterations,omitempty"`
	Changes    []rules.Change           `json:"changes,omitempty"`
}

// ValidateRulesRequest checks rules against a stored survey layout.
// With no Rules, the survey's stored rules are validated.
type ValidateRulesRequest struct {
	SurveyID types.SurveyID          `json:"survey_id"`
	Rules    []types.ConditionalRule `json:"rules,omitempty"`
}

// RuleIssue is one rule that failed validation.
type RuleIssue struct {
	RuleID types.RuleID `json:"rule_id"`
	Error  string       `json:"error"`
}

// ValidateRulesResponse lists the rules that failed validation.
type ValidateRulesResponse struct {
	Valid   bool        `json:"valid"`
	Checked int         `json:"checked"`
	Issues  []RuleIssue `json:"issues,omitempty"`
}

// VisibilityService evaluates pages and validates rules for stored surveys.
// Thin orchestration layer over the rule source and the rules engine.
type VisibilityService struct {
	source  RuleSource
	engine  *rules.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewVisibilityService creates the service. timeout bounds loading a survey
// and its rules; zero disables it.
func NewVisibilityService(source RuleSource, engine *rules.Engine, timeout time.Duration, logger *slog.Logger) (*VisibilityService, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &VisibilityService{
		source:  source,
		engine:  engine,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *VisibilityService) load(ctx context.Context, surveyID types.SurveyID) (*types.Survey, []types.ConditionalRule, error) {
	if surveyID == "" {
		return nil, nil, fmt.Errorf("%w: survey_id required", ErrInvalidRequest)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.source.LoadSurveyRules(ctx, surveyID)
}

// EvaluatePage runs one evaluation pass over the stored survey and rules.
func (s *VisibilityService) EvaluatePage(ctx context.Context, req *EvaluatePageRequest) (*EvaluatePageResponse, error) {
	if req.PageID == "" {
		return nil, fmt.Errorf("%w: page_id required", ErrInvalidRequest)
	}
	if err := checkLoopBounds(req); err != nil {
		return nil, err
	}
	survey, set, err := s.load(ctx, req.SurveyID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.EvaluatePage(rules.PassInput{
		Survey:     survey,
		PageID:     req.PageID,
		Rules:      set,
		Answers:    req.Answers,
		LoopCounts: req.LoopCounts,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("evaluated page",
		"client_id", auth.ClientIDFromContext(ctx),
		"survey_id", req.SurveyID,
		"page_id", req.PageID,
		"rules", len(set),
		"failures", len(result.Failures))

	resp := &EvaluatePageResponse{
		Visibility: result.Visibility,
		Failures:   result.Failures,
		Iterations: result.Iterations,
	}
	if req.Previous != nil {
		resp.Changes = rules.Diff(*req.Previous, result.Visibility)
	}
	return resp, nil
}

// checkLoopBounds rejects loop counts and instance indices above
// types.MaxLoopIterations. The engine evaluates every iteration it is given.
func checkLoopBounds(req *EvaluatePageRequest) error {
	for group, n := range req.LoopCounts {
		if n > types.MaxLoopIterations {
			return fmt.Errorf("%w: loop_counts[%s] = %d exceeds %d", ErrInvalidRequest, group, n, types.MaxLoopIterations)
		}
	}
	for group, instances := range req.Answers.Loops {
		for _, inst := range instances {
			if inst.Index < 0 || inst.Index >= types.MaxLoopIterations {
				return fmt.Errorf("%w: loop %s instance index %d out of range [0, %d)", ErrInvalidRequest, group, inst.Index, types.MaxLoopIterations)
			}
		}
	}
	return nil
}

// ValidateRules validates req.Rules, or the stored rules when none are given,
// against the stored survey layout.
func (s *VisibilityService) ValidateRules(ctx context.Context, req *ValidateRulesRequest) (*ValidateRulesResponse, error) {
	survey, stored, err := s.load(ctx, req.SurveyID)
	if err != nil {
		return nil, err
	}
	index, err := types.NewLayoutIndex(survey)
	if err != nil {
		return nil, fmt.Errorf("invalid survey layout: %w", err)
	}

	set := stored
	if len(req.Rules) > 0 {
		set = make([]types.ConditionalRule, len(req.Rules))
		copy(set, req.Rules)
		for i := range set {
			if set[i].SurveyID == "" {
				set[i].SurveyID = req.SurveyID
			}
		}
	}

	resp := &ValidateRulesResponse{Checked: len(set)}
	for _, err := range rules.ValidateRules(set, index) {
		issue := RuleIssue{Error: err.Error()}
		var ruleErr *types.RuleError
		if errors.As(err, &ruleErr) {
			issue.RuleID = ruleErr.RuleID
		}
		resp.Issues = append(resp.Issues, issue)
	}
	resp.Valid = len(resp.Issues) == 0
	return resp, nil
}
