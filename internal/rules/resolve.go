// internal/rules/resolve.go
package rules

import (
	"sort"

	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Visibility resolution.
 *
 * Aggregates every EvaluationResult of a pass into one visible/hidden
 * decision per entity key (target type, target ID, loop index).
 *
 * Precedence is a commutative, associative fold over per-rule verdicts:
 *   - hide fired      -> hidden, regardless of any show rule
 *   - any show rule   -> visible iff at least one show rule fired
 *   - no rules        -> visible
 *
 * Hide-wins is a behavioral contract: when a show and a hide rule fire
 * together the entity is hidden. A show rule that failed to evaluate counts
 * as not fired, so broken rules over-hide rather than leak.
 *
 * Page auto-hide: a page is hidden when a page rule hides it, or when it has
 * at least one top-level question and every one of them is hidden. Loop
 * subquestions do not participate; their loop group question does.
 */

// EntityKey groups results targeting the same entity instance.
type EntityKey struct {
	Type      types.TargetType
	ID        string
	LoopIndex int
}

// verdict is the fold state for one key.
type verdict struct {
	hasShow   bool
	showFired bool
	hideFired bool
}

// verdictOf lifts one result into the fold domain.
func verdictOf(r EvaluationResult) verdict {
	switch r.Action {
	case types.ActionShow:
		return verdict{hasShow: true, showFired: r.Outcome}
	case types.ActionHide:
		return verdict{hideFired: r.Outcome}
	default:
		return verdict{}
	}
}

// merge combines two verdicts. Commutative and associative.
func (v verdict) merge(o verdict) verdict {
	return verdict{
		hasShow:   v.hasShow || o.hasShow,
		showFired: v.showFired || o.showFired,
		hideFired: v.hideFired || o.hideFired,
	}
}

func (v verdict) visible() bool {
	if v.hideFired {
		return false
	}
	return !v.hasShow || v.showFired
}

// Fold reduces results to a visibility decision per key that has at least
// one targeting rule. Keys absent from the result are visible.
func Fold(results []EvaluationResult) map[EntityKey]bool {
	verdicts := make(map[EntityKey]verdict, len(results))
	for _, r := range results {
		key := r.Key()
		verdicts[key] = verdicts[key].merge(verdictOf(r))
	}

	out := make(map[EntityKey]bool, len(verdicts))
	for key, v := range verdicts {
		out[key] = v.visible()
	}
	return out
}

// VisibilityMap is the output of one pass. Every entity on the evaluated page
// has an entry; lookups for entities without an entry default to visible.
type VisibilityMap struct {
	Pages         map[types.PageID]bool             `json:"pages"`
	Questions     map[types.QuestionID]bool         `json:"questions"`
	LoopQuestions map[types.QuestionID]map[int]bool `json:"loop_questions"`
}

// PageVisible reports page visibility, defaulting to visible.
func (m VisibilityMap) PageVisible(id types.PageID) bool {
	v, ok := m.Pages[id]
	return !ok || v
}

// QuestionVisible reports top-level question visibility, defaulting to visible.
func (m VisibilityMap) QuestionVisible(id types.QuestionID) bool {
	v, ok := m.Questions[id]
	return !ok || v
}

// LoopQuestionVisible reports subquestion visibility in one iteration,
// defaulting to visible.
func (m VisibilityMap) LoopQuestionVisible(id types.QuestionID, loopIndex int) bool {
	v, ok := m.LoopQuestions[id][loopIndex]
	return !ok || v
}

// Resolve folds results into the VisibilityMap for page. iterations gives
// the evaluated iteration count per loop group on the page.
func Resolve(results []EvaluationResult, page *types.Page, iterations map[types.QuestionID]int) VisibilityMap {
	decided := Fold(results)
	lookup := func(key EntityKey) bool {
		v, ok := decided[key]
		return !ok || v
	}

	m := VisibilityMap{
		Pages:         make(map[types.PageID]bool, 1),
		Questions:     make(map[types.QuestionID]bool, len(page.Questions)),
		LoopQuestions: make(map[types.QuestionID]map[int]bool),
	}

	anyVisible := false
	for _, q := range page.Questions {
		visible := lookup(EntityKey{Type: types.TargetQuestion, ID: string(q.ID), LoopIndex: NoLoop})
		m.Questions[q.ID] = visible
		if visible {
			anyVisible = true
		}

		if q.Type != types.QuestionLoopGroup {
			continue
		}
		n := iterations[q.ID]
		for _, sub := range q.Subquestions {
			perIteration := make(map[int]bool, n)
			for i := 0; i < n; i++ {
				perIteration[i] = lookup(EntityKey{Type: types.TargetQuestion, ID: string(sub.ID), LoopIndex: i})
			}
			m.LoopQuestions[sub.ID] = perIteration
		}
	}

	pageVisible := lookup(EntityKey{Type: types.TargetPage, ID: string(page.ID), LoopIndex: NoLoop})
	if len(page.Questions) > 0 && !anyVisible {
		pageVisible = false
	}
	m.Pages[page.ID] = pageVisible

	return m
}

// Change is one entity whose visibility differs between two maps.
type Change struct {
	Type      types.TargetType `json:"type"`
	ID        string           `json:"id"`
	LoopIndex int              `json:"loop_index"`
	Visible   bool             `json:"visible"`
}

// Diff lists entities revealed or hidden going from prev to next, sorted by
// type, ID and loop index. Entities missing from a map count as visible, so
// the runtime can hide or re-show fields without discarding their answers.
func Diff(prev, next VisibilityMap) []Change {
	var changes []Change
	add := func(t types.TargetType, id string, idx int, before, after bool) {
		if before != after {
			changes = append(changes, Change{Type: t, ID: id, LoopIndex: idx, Visible: after})
		}
	}

	for id := range unionKeys(prev.Pages, next.Pages) {
		add(types.TargetPage, string(id), NoLoop, prev.PageVisible(id), next.PageVisible(id))
	}
	for id := range unionKeys(prev.Questions, next.Questions) {
		add(types.TargetQuestion, string(id), NoLoop, prev.QuestionVisible(id), next.QuestionVisible(id))
	}
	for id := range unionKeys(prev.LoopQuestions, next.LoopQuestions) {
		for idx := range unionKeys(prev.LoopQuestions[id], next.LoopQuestions[id]) {
			add(types.TargetQuestion, string(id), idx, prev.LoopQuestionVisible(id, idx), next.LoopQuestionVisible(id, idx))
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.LoopIndex < b.LoopIndex
	})
	return changes
}

func unionKeys[K comparable, V any](a, b map[K]V) map[K]struct{} {
	keys := make(map[K]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
