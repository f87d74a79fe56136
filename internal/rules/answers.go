// internal/rules/answers.go
package rules

import (
	"github.com/solatis/surveylogic/internal/types"
)

/*
 * Answer context for a single evaluation pass.
 *
 * Normalizes the runtime's AnswerStore (flat answers plus loop instances)
 * into one query: Lookup(questionID, loopIndex). The survey layout decides
 * whether a question is top-level or a loop-group subquestion, so callers
 * never traverse string-keyed paths.
 *
 * Lookup semantics:
 *   - Top-level question: returns the flat answer, loopIndex is ignored
 *   - Subquestion with loopIndex >= 0: returns that iteration's answer
 *   - Subquestion with NoLoop, or iteration not yet added: unanswered
 *   - Unknown question: unanswered (dangling references fail closed)
 *
 * Built fresh per pass; nothing is cached across passes so a mutated answer
 * store can never produce stale reads.
 */

// NoLoop marks a top-level evaluation or result key.
const NoLoop = -1

// AnswerContext answers lookups for one pass.
type AnswerContext struct {
	index     *types.LayoutIndex
	flat      map[types.QuestionID]types.AnswerValue
	instances map[types.QuestionID]map[int]map[types.QuestionID]types.AnswerValue
	counts    map[types.QuestionID]int
}

// NewAnswerContext indexes store against the survey layout.
// Loop instances are keyed by their Index field, not their slice position.
// When an index repeats, the last instance wins.
func NewAnswerContext(index *types.LayoutIndex, store types.AnswerStore) *AnswerContext {
	ctx := &AnswerContext{
		index:     index,
		flat:      store.Answers,
		instances: make(map[types.QuestionID]map[int]map[types.QuestionID]types.AnswerValue, len(store.Loops)),
		counts:    make(map[types.QuestionID]int, len(store.Loops)),
	}

	for group, instances := range store.Loops {
		byIndex := make(map[int]map[types.QuestionID]types.AnswerValue, len(instances))
		count := 0
		for _, inst := range instances {
			if inst.Index < 0 {
				continue
			}
			byIndex[inst.Index] = inst.Answers
			if inst.Index+1 > count {
				count = inst.Index + 1
			}
		}
		ctx.instances[group] = byIndex
		ctx.counts[group] = count
	}

	return ctx
}

// Lookup returns the answer for questionID, scoped to loopIndex when the
// question is a loop-group subquestion. The bool is false when no answer exists.
func (c *AnswerContext) Lookup(questionID types.QuestionID, loopIndex int) (types.AnswerValue, bool) {
	info, ok := c.index.Question(questionID)
	if !ok {
		return types.AnswerValue{}, false
	}

	if !info.InLoop() {
		v, ok := c.flat[questionID]
		return v, ok && v.Present()
	}

	if loopIndex < 0 {
		return types.AnswerValue{}, false
	}
	iteration, ok := c.instances[info.LoopGroup][loopIndex]
	if !ok {
		return types.AnswerValue{}, false
	}
	v, ok := iteration[questionID]
	return v, ok && v.Present()
}

// StoredIterations returns the number of iterations the store implies for a
// loop group: highest instance index + 1, or 0 without instances.
func (c *AnswerContext) StoredIterations(group types.QuestionID) int {
	return c.counts[group]
}
