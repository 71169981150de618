package routing

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

// LookupPath resolves a dot-path against a nested field map. Traversal
// stops and reports undefined as soon as an intermediate segment is
// missing or not an object; it never panics.
func LookupPath(fields map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = fields
	for _, segment := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// MatchAny reports whether any condition holds. Rules use these
// semantics: an empty condition list always matches.
func MatchAny(conditions []Condition, fields map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, cond := range conditions {
		if Eval(cond, fields) {
			return true
		}
	}
	return false
}

// MatchAll reports whether every condition holds. Targets use these
// semantics: an empty condition list is always applicable.
func MatchAll(conditions []Condition, fields map[string]any) bool {
	for _, cond := range conditions {
		if !Eval(cond, fields) {
			return false
		}
	}
	return true
}

// Eval evaluates one condition against the field map. An undefined field
// never matches, and evaluation errors (bad regex, unknown operator)
// degrade to a non-match with a log line rather than failing the item.
func Eval(cond Condition, fields map[string]any) bool {
	value, ok := LookupPath(fields, cond.Field)
	if !ok {
		return false
	}

	fieldStr := stringify(value)
	wantStr := stringify(cond.Value)

	switch cond.Operator {
	case OpEquals:
		return fieldStr == wantStr
	case OpNotEquals:
		return fieldStr != wantStr
	case OpContains:
		return contains(value, fieldStr, wantStr)
	case OpNotContains:
		return !contains(value, fieldStr, wantStr)
	case OpStartsWith:
		return strings.HasPrefix(fieldStr, wantStr)
	case OpEndsWith:
		return strings.HasSuffix(fieldStr, wantStr)
	case OpRegex:
		re, err := regexp.Compile(wantStr)
		if err != nil {
			zap.L().Warn("Invalid condition regex",
				zap.String("field", cond.Field), zap.String("pattern", wantStr), zap.Error(err))
			return false
		}
		return re.MatchString(fieldStr)
	case OpIn:
		return valueSet(cond.Value).Contains(fieldStr)
	case OpNotIn:
		return !valueSet(cond.Value).Contains(fieldStr)
	default:
		zap.L().Warn("Unknown condition operator",
			zap.String("field", cond.Field), zap.String("operator", string(cond.Operator)))
		return false
	}
}

// contains checks substring membership for strings and element membership
// for list-valued fields.
func contains(value any, fieldStr, wantStr string) bool {
	if list, ok := value.([]any); ok {
		for _, element := range list {
			if stringify(element) == wantStr {
				return true
			}
		}
		return false
	}
	return strings.Contains(fieldStr, wantStr)
}

// valueSet builds the membership set for in/not_in conditions.
func valueSet(value any) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	switch v := value.(type) {
	case []any:
		for _, element := range v {
			set.Add(stringify(element))
		}
	case []string:
		for _, element := range v {
			set.Add(element)
		}
	default:
		set.Add(stringify(value))
	}
	return set
}

// stringify renders a scalar for comparison. Condition evaluation is
// string-typed, matching how rule values are authored.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
