package dialogue

import (
	"fmt"
	"strings"
)

// #region deep-copy
// DeepCopy copies JSON-shaped values (maps, slices, scalars). Unknown types
// are returned as-is; they are treated as immutable.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = DeepCopy(item)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, item := range t {
			out[i] = item.Clone()
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item).(map[string]any)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []MatchObject:
		return append([]MatchObject(nil), t...)
	default:
		return v
	}
}

// #endregion deep-copy

// #region list-helpers
// IsNonEmptyList reports whether v is a list with at least one element.
func IsNonEmptyList(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case []map[string]any:
		return len(t) > 0
	case []MatchObject:
		return len(t) > 0
	case []Record:
		return len(t) > 0
	}
	return false
}

// Strings flattens a scalar or list value into display strings. Nested maps
// are skipped.
func Strings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, Strings(item)...)
		}
		return out
	case map[string]any, Record, []map[string]any, []MatchObject, []Record:
		return nil
	default:
		return []string{fmt.Sprint(t)}
	}
}

// Display renders a scalar value as a string.
func Display(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Normalize lowercases and trims s for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EqualText compares two strings after normalization.
func EqualText(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// #endregion list-helpers

// #region match-decode
// MatchObjectFrom converts a map-shaped value into a MatchObject.
func MatchObjectFrom(v any) (MatchObject, bool) {
	var m map[string]any
	switch t := v.(type) {
	case MatchObject:
		return t, true
	case map[string]any:
		m = t
	case Record:
		m = t
	default:
		return MatchObject{}, false
	}
	field := func(k string) string {
		if raw, ok := m[k]; ok && raw != nil {
			return Display(raw)
		}
		return ""
	}
	return MatchObject{
		Works:     field(SlotWorks),
		NamePlace: field(SlotNamePlace),
		Address:   field(SlotAddress),
		Time:      field(SlotTime),
	}, true
}

// #endregion match-decode

// #region matcher
// Matcher decides whether a candidate sub-offering satisfies a constraint
// object rebuilt from the mapping table.
type Matcher func(constraint, candidate MatchObject) bool

// MatchFields is the default Matcher: every non-empty field of the constraint
// must equal the candidate's field after normalization. A constraint with no
// fields matches nothing.
func MatchFields(constraint, candidate MatchObject) bool {
	seen := false
	for _, slot := range MappingSlots {
		want := constraint.Field(slot)
		if want == "" {
			continue
		}
		seen = true
		if !EqualText(want, candidate.Field(slot)) {
			return false
		}
	}
	return seen
}

// #endregion matcher
