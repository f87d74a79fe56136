package types

import "fmt"

// QuestionType determines which operators a question's answers support.
type QuestionType string

const (
	QuestionText         QuestionType = "text"
	QuestionNumber       QuestionType = "number"
	QuestionDate         QuestionType = "date"
	QuestionBoolean      QuestionType = "boolean"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionLoopGroup    QuestionType = "loop_group"
)

// Question is one entry on a page. Loop groups carry Subquestions answered
// once per iteration.
type Question struct {
	ID           QuestionID   `json:"id" yaml:"id"`
	Type         QuestionType `json:"type" yaml:"type"`
	Subquestions []Question   `json:"subquestions,omitempty" yaml:"subquestions,omitempty"`
}

// Page is a rendered unit of a survey.
type Page struct {
	ID        PageID     `json:"id" yaml:"id"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Survey is the layout rules are validated and evaluated against.
type Survey struct {
	ID    SurveyID `json:"id" yaml:"id"`
	Pages []Page   `json:"pages" yaml:"pages"`
}

// QuestionInfo locates a question inside a survey layout.
type QuestionInfo struct {
	ID        QuestionID
	Type      QuestionType
	PageID    PageID
	LoopGroup QuestionID // empty for top-level questions
}

// InLoop reports whether the question is a loop-group subquestion.
func (q QuestionInfo) InLoop() bool {
	return q.LoopGroup != ""
}

// LayoutIndex provides O(1) lookup of questions and pages by ID.
// Built once per pass from the survey; immutable afterwards.
type LayoutIndex struct {
	survey    *Survey
	questions map[QuestionID]QuestionInfo
	pages     map[PageID]*Page
}

// NewLayoutIndex indexes every page, question and subquestion of survey.
// Returns ErrDuplicateID if IDs collide and ErrNestedLoop for nested loop groups.
func NewLayoutIndex(survey *Survey) (*LayoutIndex, error) {
	idx := &LayoutIndex{
		survey:    survey,
		questions: make(map[QuestionID]QuestionInfo),
		pages:     make(map[PageID]*Page, len(survey.Pages)),
	}

	for i := range survey.Pages {
		page := &survey.Pages[i]
		if _, exists := idx.pages[page.ID]; exists {
			return nil, fmt.Errorf("page %s: %w", page.ID, ErrDuplicateID)
		}
		idx.pages[page.ID] = page

		for _, q := range page.Questions {
			if err := idx.add(q, page.ID, ""); err != nil {
				return nil, err
			}
			if q.Type != QuestionLoopGroup {
				continue
			}
			for _, sub := range q.Subquestions {
				if sub.Type == QuestionLoopGroup {
					return nil, fmt.Errorf("question %s: %w", sub.ID, ErrNestedLoop)
				}
				if err := idx.add(sub, page.ID, q.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	return idx, nil
}

func (idx *LayoutIndex) add(q Question, page PageID, loop QuestionID) error {
	if _, exists := idx.questions[q.ID]; exists {
		return fmt.Errorf("question %s: %w", q.ID, ErrDuplicateID)
	}
	idx.questions[q.ID] = QuestionInfo{ID: q.ID, Type: q.Type, PageID: page, LoopGroup: loop}
	return nil
}

// SurveyID returns the indexed survey's ID.
func (idx *LayoutIndex) SurveyID() SurveyID {
	return idx.survey.ID
}

// Question returns location info for id.
func (idx *LayoutIndex) Question(id QuestionID) (QuestionInfo, bool) {
	q, ok := idx.questions[id]
	return q, ok
}

// Page returns the page with id.
func (idx *LayoutIndex) Page(id PageID) (*Page, bool) {
	p, ok := idx.pages[id]
	return p, ok
}

// IsLoopGroup reports whether id names a loop-group question.
func (idx *LayoutIndex) IsLoopGroup(id QuestionID) bool {
	q, ok := idx.questions[id]
	return ok && q.Type == QuestionLoopGroup
}
