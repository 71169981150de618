package routing

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Operator is a condition operator. Legacy camelCase spellings are
// normalized to the canonical snake_case form at parse time, so
// evaluation never branches on aliases.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegex       Operator = "regex"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// operatorAliases maps every accepted spelling to its canonical operator.
var operatorAliases = map[string]Operator{
	"equals":       OpEquals,
	"not_equals":   OpNotEquals,
	"notEquals":    OpNotEquals,
	"contains":     OpContains,
	"not_contains": OpNotContains,
	"notContains":  OpNotContains,
	"starts_with":  OpStartsWith,
	"startsWith":   OpStartsWith,
	"ends_with":    OpEndsWith,
	"endsWith":     OpEndsWith,
	"regex":        OpRegex,
	"regex_match":  OpRegex,
	"in":           OpIn,
	"in_set":       OpIn,
	"not_in":       OpNotIn,
	"not_in_set":   OpNotIn,
	"notIn":        OpNotIn,
}

// ParseOperator normalizes an operator spelling via the alias table.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[s]; ok {
		return op, nil
	}
	return "", fmt.Errorf("unknown condition operator %q", s)
}

// UnmarshalText normalizes aliases when operators are decoded from JSON
// or YAML.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// UnmarshalYAML normalizes aliases for YAML-authored rules, where yaml.v3
// does not consult TextUnmarshaler.
func (o *Operator) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return o.UnmarshalText([]byte(s))
}

// Condition is one field/operator/value triple evaluated against an
// item's field map.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// ActionType is a closed enumeration of rule action kinds.
type ActionType string

const (
	ActionInvokeConnector ActionType = "invoke_connector"
	ActionUpdateFields    ActionType = "update_item_fields"
	ActionSkipRemaining   ActionType = "skip_remaining_distribution"
)

var actionAliases = map[string]ActionType{
	"invoke_connector":            ActionInvokeConnector,
	"invokeConnector":             ActionInvokeConnector,
	"update_item_fields":          ActionUpdateFields,
	"update_fields":               ActionUpdateFields,
	"updateItemFields":            ActionUpdateFields,
	"skip_remaining_distribution": ActionSkipRemaining,
	"skip_distribution":           ActionSkipRemaining,
	"skipRemainingDistribution":   ActionSkipRemaining,
}

// UnmarshalText normalizes action type aliases at parse time.
func (a *ActionType) UnmarshalText(text []byte) error {
	if t, ok := actionAliases[string(text)]; ok {
		*a = t
		return nil
	}
	return fmt.Errorf("unknown action type %q", string(text))
}

// UnmarshalYAML normalizes action type aliases for YAML-authored rules.
func (a *ActionType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

// Action is one step a matched rule executes, in declaration order.
type Action struct {
	Type ActionType `json:"type" yaml:"type"`
	// Connector references a connector by id or by display name for
	// invoke_connector actions.
	Connector string `json:"connector,omitempty" yaml:"connector,omitempty"`
	Tool      string `json:"tool,omitempty" yaml:"tool,omitempty"`
	// Fields holds the mutation payload for update_item_fields actions.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Rule is one owner-authored routing rule. A rule with no conditions
// matches every item; a rule matches when any of its conditions is true.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Owner      string      `json:"owner" yaml:"owner"`
	Priority   int         `json:"priority" yaml:"priority"`
	Active     bool        `json:"active" yaml:"active"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []Action    `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// SortRules orders rules by priority descending, then creation time
// ascending as the stable tie-break.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}
