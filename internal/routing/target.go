package routing

import "sort"

// TargetKindMCP marks targets delivered through the connector facade.
// Any other kind is looked up in the plain adapter registry.
const TargetKindMCP = "mcp"

// Target is a statically configured distribution destination, independent
// of rules. A target with no conditions is always applicable; a target
// matches only when all of its conditions hold (unlike rules, which match
// on any).
type Target struct {
	ID          string         `json:"id" yaml:"id"`
	Owner       string         `json:"owner" yaml:"owner"`
	ConnectorID string         `json:"connector_id" yaml:"connector_id"`
	Kind        string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Priority    int            `json:"priority" yaml:"priority"`
	Conditions  []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Tool        string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// SortTargets orders targets by priority descending, preserving the
// original order of equal priorities.
func SortTargets(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority > targets[j].Priority
	})
}
