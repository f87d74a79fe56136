// Package types provides domain models shared across surveylogic components.
//
// Survey layout and rule types use only the standard library. AnswerValue
// also decodes from YAML fixtures (yaml.v3) and ID utilities in ids.go import
// uuid; no storage or transport deps are pulled in.
//
// Wire formats are plain JSON. Rules and answers arrive untyped from storage
// and the runtime; answers are normalized into AnswerValue at the boundary.
package types

// Resource limits enforced by validation and compilation.
const (
	// MaxConditionsPerRule bounds the number of conditions one rule combines.
	// 16 covers realistic branching without turning a rule into a program.
	MaxConditionsPerRule = 16

	// MaxCompareValues limits one_of/none_of lists.
	// 64 values supports option-style checks without quadratic intersection cost.
	MaxCompareValues = 64

	// MaxLoopIterations bounds loop counts and instance indices accepted by
	// the service. The engine itself evaluates every requested iteration.
	MaxLoopIterations = 256
)
