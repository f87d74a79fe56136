package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueKind tags the variant held by an AnswerValue.
type ValueKind uint8

const (
	KindAbsent ValueKind = iota
	KindBool
	KindText
	KindNumber
	KindDate
	KindTextList
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindTextList:
		return "text_list"
	default:
		return "absent"
	}
}

// AnswerValue is a closed tagged variant: Bool | Text | Number | Date | TextList.
// The zero value is absent (no answer).
type AnswerValue struct {
	kind ValueKind
	b    bool
	s    string
	n    float64
	t    time.Time
	list []string
}

// Bool returns a boolean answer.
func Bool(b bool) AnswerValue { return AnswerValue{kind: KindBool, b: b} }

// Text returns a text answer (free text or a single option label).
func Text(s string) AnswerValue { return AnswerValue{kind: KindText, s: s} }

// Number returns a numeric answer.
func Number(n float64) AnswerValue { return AnswerValue{kind: KindNumber, n: n} }

// Date returns a date answer.
func Date(t time.Time) AnswerValue { return AnswerValue{kind: KindDate, t: t} }

// TextList returns a multi-select answer. The slice is copied.
func TextList(items ...string) AnswerValue {
	list := make([]string, len(items))
	copy(list, items)
	return AnswerValue{kind: KindTextList, list: list}
}

// Kind returns the variant tag.
func (v AnswerValue) Kind() ValueKind { return v.kind }

// Present reports whether the value holds any variant.
func (v AnswerValue) Present() bool { return v.kind != KindAbsent }

// IsEmpty reports whether the value counts as unanswered:
// absent, empty text, or an empty list.
func (v AnswerValue) IsEmpty() bool {
	switch v.kind {
	case KindAbsent:
		return true
	case KindText:
		return v.s == ""
	case KindTextList:
		return len(v.list) == 0
	default:
		return false
	}
}

// AsBool returns the boolean payload if the value is a Bool.
func (v AnswerValue) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsText returns the text payload if the value is Text.
func (v AnswerValue) AsText() (string, bool) { return v.s, v.kind == KindText }

// AsNumber returns the numeric payload if the value is a Number.
func (v AnswerValue) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsDate returns the date payload if the value is a Date.
func (v AnswerValue) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

// AsList returns the list payload if the value is a TextList.
// The returned slice must not be modified.
func (v AnswerValue) AsList() ([]string, bool) { return v.list, v.kind == KindTextList }

func (v AnswerValue) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindDate:
		return v.t.Format(time.RFC3339)
	case KindTextList:
		return fmt.Sprintf("%q", v.list)
	default:
		return "<absent>"
	}
}

// ValueFromRaw converts an untyped value (decoded JSON/YAML, or a rule's
// compare value) into an AnswerValue. nil maps to the absent value.
// Nested objects and nested lists are rejected with ErrTypeMismatch.
func ValueFromRaw(raw any) (AnswerValue, error) {
	switch v := raw.(type) {
	case nil:
		return AnswerValue{}, nil
	case AnswerValue:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return Text(v), nil
	case time.Time:
		return Date(v), nil
	case []string:
		return TextList(v...), nil
	case []any:
		items := make([]string, 0, len(v))
		for i, elem := range v {
			s, ok := scalarText(elem)
			if !ok {
				return AnswerValue{}, fmt.Errorf("list element %d (%T): %w", i, elem, ErrTypeMismatch)
			}
			items = append(items, s)
		}
		return AnswerValue{kind: KindTextList, list: items}, nil
	}

	if n, ok := rawNumber(raw); ok {
		return Number(n), nil
	}
	return AnswerValue{}, fmt.Errorf("unsupported answer type %T: %w", raw, ErrTypeMismatch)
}

// rawNumber handles the numeric types produced by encoding/json, yaml.v3 and Go literals.
func rawNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// scalarText renders a list element as text. Multi-select options are labels,
// so numbers and booleans inside lists are kept in their textual form.
func scalarText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.Format(time.RFC3339), true
	}
	if n, ok := rawNumber(raw); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// MarshalJSON encodes the payload as its natural JSON form. Dates encode as
// RFC 3339 strings; absent encodes as null.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindText:
		return json.Marshal(v.s)
	case KindNumber:
		return json.Marshal(v.n)
	case KindDate:
		return json.Marshal(v.t.Format(time.RFC3339))
	case KindTextList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes untyped JSON through ValueFromRaw.
// Numbers are decoded with UseNumber to avoid precision surprises.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueFromRaw(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML decodes a scalar or a sequence of scalars through ValueFromRaw.
// Timestamp-looking scalars stay text and are coerced to dates on comparison.
func (v *AnswerValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		return fmt.Errorf("line %d: answer must be a scalar or list: %w", node.Line, ErrTypeMismatch)
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueFromRaw(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// LoopInstance holds one iteration of a loop group.
type LoopInstance struct {
	Index   int                        `json:"index" yaml:"index"`
	Answers map[QuestionID]AnswerValue `json:"answers" yaml:"answers"`
}

// AnswerStore is the raw answer snapshot supplied by the survey runtime.
// Answers holds top-level questions; Loops holds iterations keyed by the
// loop-group question's ID.
type AnswerStore struct {
	Answers map[QuestionID]AnswerValue    `json:"answers" yaml:"answers"`
	Loops   map[QuestionID][]LoopInstance `json:"loops,omitempty" yaml:"loops,omitempty"`
}
