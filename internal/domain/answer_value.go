package domain

import "sort"

// AnswerValue is a one-of holder for a question response. Exactly one field
// is set, matching the question's type; ShapeFor rejects mismatches.
type AnswerValue struct {
	Selected *int    `json:"selected,omitempty"`     // single_choice option index
	Multi    []int   `json:"multi,omitempty"`        // multi_select option indices (deduplicated, sorted)
	Bool     *bool   `json:"boolAnswer,omitempty"`   // true_false
	Text     *string `json:"text,omitempty"`         // short_answer / essay
}

// SelectOption builds a single_choice answer.
func SelectOption(index int) AnswerValue {
	return AnswerValue{Selected: &index}
}

// SelectOptions builds a multi_select answer. Duplicates are dropped and the
// indices sorted so values compare and serialize deterministically.
func SelectOptions(indices ...int) AnswerValue {
	seen := make(map[int]struct{}, len(indices))
	multi := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		multi = append(multi, i)
	}
	sort.Ints(multi)
	return AnswerValue{Multi: multi}
}

// BoolOf builds a true_false answer.
func BoolOf(v bool) AnswerValue {
	return AnswerValue{Bool: &v}
}

// TextOf builds a short_answer or essay answer.
func TextOf(s string) AnswerValue {
	return AnswerValue{Text: &s}
}

// ShapeFor reports whether the value's shape matches the question type.
// Option indices must be in range for choice types.
func (v AnswerValue) ShapeFor(q Question) bool {
	switch q.Type {
	case QuestionSingleChoice:
		return v.Selected != nil && v.Multi == nil && v.Bool == nil && v.Text == nil &&
			*v.Selected >= 0 && *v.Selected < len(q.Options)
	case QuestionMultiSelect:
		if v.Multi == nil || v.Selected != nil || v.Bool != nil || v.Text != nil {
			return false
		}
		for _, i := range v.Multi {
			if i < 0 || i >= len(q.Options) {
				return false
			}
		}
		return true
	case QuestionTrueFalse:
		return v.Bool != nil && v.Selected == nil && v.Multi == nil && v.Text == nil
	case QuestionShortAnswer, QuestionEssay:
		return v.Text != nil && v.Selected == nil && v.Multi == nil && v.Bool == nil
	default:
		return false
	}
}

// Answered reports whether the value counts as an answer. An empty string is
// a saved draft, not an answer.
func (v AnswerValue) Answered() bool {
	switch {
	case v.Selected != nil, v.Bool != nil:
		return true
	case v.Multi != nil:
		return len(v.Multi) > 0
	case v.Text != nil:
		return *v.Text != ""
	default:
		return false
	}
}

// Equal compares two answer values field by field.
func (v AnswerValue) Equal(o AnswerValue) bool {
	switch {
	case (v.Selected == nil) != (o.Selected == nil),
		(v.Bool == nil) != (o.Bool == nil),
		(v.Text == nil) != (o.Text == nil),
		len(v.Multi) != len(o.Multi):
		return false
	}
	if v.Selected != nil && *v.Selected != *o.Selected {
		return false
	}
	if v.Bool != nil && *v.Bool != *o.Bool {
		return false
	}
	if v.Text != nil && *v.Text != *o.Text {
		return false
	}
	for i := range v.Multi {
		if v.Multi[i] != o.Multi[i] {
			return false
		}
	}
	return true
}
